// Package extract turns uploaded catalog artifacts into work messages.
//
// The stage streams each artifact through the record codec, enqueues one JSON
// work message per row, and archives the artifact only after every enqueue
// has succeeded. Any earlier failure leaves the artifact in place, so a
// retried extraction starts from the original. Downstream upserts absorb the
// duplicate messages a retry produces.
package extract

import (
	"context"
	"encoding/json"
	"io"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/stockyard/stockyard/internal/artifact"
	"github.com/stockyard/stockyard/internal/csvcodec"
	"github.com/stockyard/stockyard/internal/observability"
	"github.com/stockyard/stockyard/internal/queue"
)

// Options configures an Extractor.
type Options struct {
	// Delimiter is the record codec field separator. Defaults to ','.
	Delimiter byte
	// Malformed selects the codec bad-row policy.
	Malformed csvcodec.MalformedPolicy
	// DefaultCount is the stock count supplied when the artifact header has
	// no count field.
	DefaultCount int64
}

// Extractor drains one artifact into the work queue.
type Extractor struct {
	tracker *artifact.Tracker
	work    queue.Queue
	stats   *observability.PipelineStats
	opts    Options
}

// NewExtractor creates an extraction stage.
func NewExtractor(tracker *artifact.Tracker, work queue.Queue, stats *observability.PipelineStats, opts Options) *Extractor {
	return &Extractor{
		tracker: tracker,
		work:    work,
		stats:   stats,
		opts:    opts,
	}
}

// HandleObjectCreated processes one artifact creation event. The raw key may
// be percent-encoded as event transports deliver it.
func (e *Extractor) HandleObjectCreated(ctx context.Context, rawKey string) error {
	key, err := artifact.DecodeKey(rawKey)
	if err != nil {
		return err
	}

	rc, err := e.tracker.Open(ctx, key)
	if err != nil {
		return err
	}
	defer rc.Close()

	dec := csvcodec.NewDecoder(rc, csvcodec.Options{
		Delimiter: e.opts.Delimiter,
		Malformed: e.opts.Malformed,
		Source:    key,
	})

	enqueued := 0
	for {
		record, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		// The extraction stage owns the count default so every work
		// message downstream carries one.
		if _, ok := record["count"]; !ok {
			record["count"] = strconv.FormatInt(e.opts.DefaultCount, 10)
		}

		body, err := json.Marshal(record)
		if err != nil {
			return err
		}
		if err := e.work.Enqueue(ctx, body); err != nil {
			return err
		}
		enqueued++
	}

	e.stats.RowsParsed(int64(enqueued))
	e.stats.RowsDropped(int64(dec.Dropped()))
	e.stats.MessagesEnqueued(int64(enqueued))
	e.stats.ArtifactExtracted()

	if enqueued == 0 {
		log.Info().Str("key", key).Msg("artifact yielded no records")
	}

	// Archive runs last. Everything above succeeded, so losing the race to
	// archive at worst re-extracts into idempotent upserts.
	if err := e.tracker.Archive(ctx, key); err != nil {
		return err
	}
	e.stats.ArtifactArchived()

	log.Info().
		Str("key", key).
		Int("records", enqueued).
		Int("dropped", dec.Dropped()).
		Msg("artifact extracted")
	return nil
}
