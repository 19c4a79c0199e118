// Package artifact tracks uploaded file artifacts through their lifecycle.
//
// An artifact lives under the pending prefix until the extraction stage has
// drained it, then moves to the processed prefix. The move is copy-then-delete
// and always runs last, so a retried extraction still finds the original.
package artifact

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	pErrors "github.com/stockyard/stockyard/internal/errors"
	"github.com/stockyard/stockyard/internal/storage"
)

// ErrNotPending is returned for keys outside the pending prefix.
var ErrNotPending = errors.New("artifact key is not under the pending prefix")

// Tracker performs artifact state transitions against the object store.
type Tracker struct {
	store           storage.ObjectStorage
	pendingPrefix   string
	processedPrefix string
}

// NewTracker creates a Tracker for the given prefixes.
func NewTracker(store storage.ObjectStorage, pendingPrefix, processedPrefix string) *Tracker {
	return &Tracker{
		store:           store,
		pendingPrefix:   pendingPrefix,
		processedPrefix: processedPrefix,
	}
}

// DecodeKey normalizes an object key from a creation event. Event transports
// percent-encode keys, so "uploaded/my%20file.csv" arrives for
// "uploaded/my file.csv".
func DecodeKey(raw string) (string, error) {
	key, err := url.QueryUnescape(raw)
	if err != nil {
		return "", pErrors.NewStorageError(pErrors.CodeFetchFailed, "decoding artifact key", err)
	}
	return key, nil
}

// PendingKey reports whether the key is under the pending prefix.
func (t *Tracker) PendingKey(key string) bool {
	return strings.HasPrefix(key, t.pendingPrefix)
}

// ProcessedKey returns the destination key for an archived artifact.
func (t *Tracker) ProcessedKey(pendingKey string) (string, error) {
	if !t.PendingKey(pendingKey) {
		return "", ErrNotPending
	}
	name := strings.TrimPrefix(pendingKey, t.pendingPrefix)
	return t.processedPrefix + name, nil
}

// Open fetches the artifact content for extraction.
func (t *Tracker) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if !t.PendingKey(key) {
		return nil, ErrNotPending
	}
	rc, err := t.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, pErrors.NewStorageError(pErrors.CodeObjectNotFound, "artifact missing from pending prefix", err)
		}
		return nil, pErrors.NewStorageError(pErrors.CodeFetchFailed, "fetching artifact", err)
	}
	return rc, nil
}

// Archive transitions the artifact from pending to processed: copy to the
// processed namespace, then delete the original. Called only after every
// derived message has been enqueued; on any earlier failure the original
// stays untouched so a retry can re-extract.
func (t *Tracker) Archive(ctx context.Context, pendingKey string) error {
	processedKey, err := t.ProcessedKey(pendingKey)
	if err != nil {
		return err
	}

	if err := t.store.Copy(ctx, pendingKey, processedKey); err != nil {
		return pErrors.NewStorageError(pErrors.CodeArchiveFailed, "copying artifact to processed prefix", err)
	}
	if err := t.store.Delete(ctx, pendingKey); err != nil {
		// The copy landed; a dangling pending object means a redundant
		// re-extraction at worst, which downstream upserts absorb.
		return pErrors.NewStorageError(pErrors.CodeArchiveFailed, "deleting archived artifact original", err)
	}

	log.Info().Str("from", pendingKey).Str("to", processedKey).Msg("artifact archived")
	return nil
}
