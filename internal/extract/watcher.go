package extract

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stockyard/stockyard/internal/storage"
)

// Watcher polls the pending prefix and dispatches creation events for new
// objects, standing in for bucket notifications. Zero-length objects are
// upload placeholders and stay pending until their content arrives.
type Watcher struct {
	store         storage.ObjectStorage
	extractor     *Extractor
	pendingPrefix string
	interval      time.Duration
	seen          map[string]struct{}
}

// NewWatcher creates a pending-prefix watcher.
func NewWatcher(store storage.ObjectStorage, extractor *Extractor, pendingPrefix string, interval time.Duration) *Watcher {
	return &Watcher{
		store:         store,
		extractor:     extractor,
		pendingPrefix: pendingPrefix,
		interval:      interval,
		seen:          make(map[string]struct{}),
	}
}

// Run polls until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Poll runs one scan of the pending prefix. Exported for tests and for the
// single-process mode's synchronous drain.
func (w *Watcher) Poll(ctx context.Context) {
	objects, err := w.store.ListObjects(ctx, w.pendingPrefix)
	if err != nil {
		log.Warn().Err(err).Str("prefix", w.pendingPrefix).Msg("listing pending artifacts failed")
		return
	}

	listed := make(map[string]struct{}, len(objects))
	for _, obj := range objects {
		listed[obj.Key] = struct{}{}
		if obj.Size == 0 {
			continue
		}
		if _, ok := w.seen[obj.Key]; ok {
			continue
		}

		if err := w.extractor.HandleObjectCreated(ctx, obj.Key); err != nil {
			// Left out of seen so the next poll retries it.
			log.Error().Err(err).Str("key", obj.Key).Msg("artifact extraction failed")
			continue
		}
		w.seen[obj.Key] = struct{}{}
	}

	// Archived artifacts vanish from the listing; drop their bookkeeping.
	for key := range w.seen {
		if _, ok := listed[key]; !ok {
			delete(w.seen, key)
		}
	}
}
