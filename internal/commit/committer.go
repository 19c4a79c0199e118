package commit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spaolacci/murmur3"

	"github.com/stockyard/stockyard/internal/catalog"
	pErrors "github.com/stockyard/stockyard/internal/errors"
	"github.com/stockyard/stockyard/internal/events"
	"github.com/stockyard/stockyard/internal/observability"
	"github.com/stockyard/stockyard/internal/queue"
)

const idlePollDelay = 250 * time.Millisecond

// DeadLetter is the envelope written to the dead-letter queue for records
// that fail validation.
type DeadLetter struct {
	Category string          `json:"category"`
	Code     string          `json:"code"`
	Reason   string          `json:"reason"`
	Record   json.RawMessage `json:"record"`
}

// Options configures a Committer.
type Options struct {
	// Workers is the pool size. Defaults to 1.
	Workers int
	// BatchSize caps messages pulled per receive. Defaults to 5.
	BatchSize int
}

// Committer is the commit-stage consumer pool. Each received record is
// validated and dual-written on its own: one bad record dead-letters without
// taking its batch siblings down with it.
type Committer struct {
	work  queue.Queue
	dead  queue.Queue
	store catalog.Store
	pub   events.Publisher
	stats *observability.PipelineStats
	opts  Options
}

// NewCommitter creates a commit stage.
func NewCommitter(work, dead queue.Queue, store catalog.Store, pub events.Publisher, stats *observability.PipelineStats, opts Options) *Committer {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 5
	}
	return &Committer{
		work:  work,
		dead:  dead,
		store: store,
		pub:   pub,
		stats: stats,
		opts:  opts,
	}
}

// Run pulls and processes batches until the context is cancelled.
func (c *Committer) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := c.work.ReceiveBatch(ctx, c.opts.BatchSize)
		if err != nil {
			log.Warn().Err(err).Msg("receiving work batch failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(idlePollDelay):
			}
			continue
		}
		if len(batch) == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(idlePollDelay):
			}
			continue
		}

		if err := c.ProcessBatch(ctx, batch); err != nil {
			log.Error().Err(err).Int("batch", len(batch)).Msg("batch processing failed")
		}
	}
}

type parsedMessage struct {
	msg       queue.Message
	candidate Candidate
	invalid   *pErrors.PipelineError
}

// ProcessBatch validates and commits one batch. Messages are sharded across
// the pool by record id hash so the same id is never dual-written
// concurrently in-process. Store failures leave their messages unacked for
// redelivery; if any occur, one aggregate failure notification goes out for
// the batch.
func (c *Committer) ProcessBatch(ctx context.Context, batch []queue.Message) error {
	buckets := make([][]parsedMessage, c.opts.Workers)
	for _, msg := range batch {
		c.stats.MessageReceived()

		pm := parsedMessage{msg: msg}
		candidate, verr := ParseCandidate(msg.Body)
		shardKey := msg.ID
		if verr != nil {
			pm.invalid = verr
		} else {
			pm.candidate = candidate
			shardKey = candidate.Product.ID
		}

		idx := murmur3.Sum32([]byte(shardKey)) % uint32(c.opts.Workers)
		buckets[idx] = append(buckets[idx], pm)
	}

	var failed atomic.Int64
	var wg sync.WaitGroup
	for _, bucket := range buckets {
		if len(bucket) == 0 {
			continue
		}
		wg.Add(1)
		go func(bucket []parsedMessage) {
			defer wg.Done()
			for _, pm := range bucket {
				if err := c.processOne(ctx, pm); err != nil {
					failed.Add(1)
				}
			}
		}(bucket)
	}
	wg.Wait()

	if n := failed.Load(); n > 0 {
		msg := fmt.Sprintf("failed to commit %d of %d records", n, len(batch))
		if err := c.pub.PublishFailure(ctx, msg); err != nil {
			c.stats.PublishFailed()
			log.Warn().Err(err).Msg("publishing failure notification failed")
		}
		return pErrors.NewInternalError(msg, nil)
	}
	return nil
}

func (c *Committer) processOne(ctx context.Context, pm parsedMessage) error {
	if pm.invalid != nil {
		return c.deadLetter(ctx, pm)
	}

	cand := pm.candidate
	if err := c.store.CreateProduct(ctx, cand.Product, cand.Count); err != nil {
		// Unacked: the visibility window expires and the queue redelivers.
		// The upsert keyed by id makes the retry safe.
		log.Error().Err(err).Str("id", cand.Product.ID).Msg("catalog write failed")
		return err
	}
	c.stats.RecordCommitted()

	if err := c.pub.Publish(ctx, events.NewProductCreated(cand.Product)); err != nil {
		// The write already landed; the event is fire-and-forget.
		c.stats.PublishFailed()
		log.Warn().Err(err).Str("id", cand.Product.ID).Msg("publishing commit event failed")
	} else {
		c.stats.EventPublished()
	}

	return c.ack(ctx, pm.msg)
}

// deadLetter routes an invalid record aside and acks the original so it is
// never redelivered. A failed dead-letter enqueue leaves the message unacked
// instead, trading a duplicate validation for not losing the record.
func (c *Committer) deadLetter(ctx context.Context, pm parsedMessage) error {
	c.stats.RecordInvalid()

	envelope, err := json.Marshal(DeadLetter{
		Category: string(pm.invalid.Category),
		Code:     pm.invalid.Code,
		Reason:   pm.invalid.Message,
		Record:   json.RawMessage(pm.msg.Body),
	})
	if err != nil {
		return pErrors.NewInternalError("encoding dead-letter envelope", err)
	}

	if err := c.dead.Enqueue(ctx, envelope); err != nil {
		log.Error().Err(err).Str("msg_id", pm.msg.ID).Msg("dead-letter enqueue failed")
		return err
	}
	c.stats.RecordDeadLettered()

	log.Warn().
		Str("msg_id", pm.msg.ID).
		Str("code", pm.invalid.Code).
		Str("reason", pm.invalid.Message).
		Msg("record dead-lettered")

	if err := c.ack(ctx, pm.msg); err != nil {
		return err
	}
	return nil
}

func (c *Committer) ack(ctx context.Context, msg queue.Message) error {
	if err := c.work.Ack(ctx, msg); err != nil {
		log.Warn().Err(err).Str("msg_id", msg.ID).Msg("ack failed")
		return err
	}
	c.stats.MessageAcked()
	return nil
}
