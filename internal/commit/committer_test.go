package commit

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stockyard/stockyard/internal/catalog"
	pErrors "github.com/stockyard/stockyard/internal/errors"
	"github.com/stockyard/stockyard/internal/events"
	"github.com/stockyard/stockyard/internal/observability"
	"github.com/stockyard/stockyard/internal/queue"
	"github.com/stockyard/stockyard/pkg/types"
)

type harness struct {
	work     *queue.MemoryQueue
	dead     *queue.MemoryQueue
	store    catalog.Store
	router   *events.Router
	premium  *events.Subscriber
	standard *events.Subscriber
	all      *events.Subscriber
	stats    *observability.PipelineStats
	com      *Committer
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	store, err := catalog.NewSQLiteStore(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	h := &harness{
		work:   queue.NewMemoryQueue(30 * time.Second),
		dead:   queue.NewMemoryQueue(30 * time.Second),
		store:  store,
		router: events.NewRouter(16),
		stats:  observability.NewPipelineStats(),
	}
	h.premium = h.router.Subscribe("premium", events.PriceAbove(100))
	h.standard = h.router.Subscribe("standard", events.PriceAtOrBelow(100))
	h.all = h.router.Subscribe("all", nil)
	h.com = NewCommitter(h.work, h.dead, h.store, h.router, h.stats, opts)
	return h
}

func (h *harness) enqueue(t *testing.T, bodies ...string) {
	t.Helper()
	for _, b := range bodies {
		if err := h.work.Enqueue(context.Background(), []byte(b)); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}
}

func (h *harness) processAll(t *testing.T) error {
	t.Helper()
	batch, err := h.work.ReceiveBatch(context.Background(), 10)
	if err != nil {
		t.Fatalf("ReceiveBatch failed: %v", err)
	}
	return h.com.ProcessBatch(context.Background(), batch)
}

func drainEvents(ch chan events.CommitEvent) []events.CommitEvent {
	var out []events.CommitEvent
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestProcessBatch_ValidRecordCommitted(t *testing.T) {
	h := newHarness(t, Options{})
	h.enqueue(t, `{"id":"p-1","title":"Widget","description":"A widget","price":"42","count":"5"}`)

	if err := h.processAll(t); err != nil {
		t.Fatalf("ProcessBatch failed: %v", err)
	}

	got, err := h.store.GetProduct(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if got.Count != 5 || got.Price != 42 {
		t.Errorf("unexpected product: %+v", got)
	}

	if evs := drainEvents(h.standard.Ch); len(evs) != 1 {
		t.Errorf("standard class got %d events, want 1", len(evs))
	}
	if evs := drainEvents(h.premium.Ch); len(evs) != 0 {
		t.Errorf("premium class got %d events, want 0", len(evs))
	}

	h.work.ExpireInflight()
	if h.work.Len() != 0 {
		t.Error("committed message must be acked")
	}
}

func TestProcessBatch_InvalidRecordDeadLettered(t *testing.T) {
	h := newHarness(t, Options{})
	h.enqueue(t, `{"title":"Widget","description":"A widget","price":"-3","count":"5"}`)

	if err := h.processAll(t); err != nil {
		t.Fatalf("ProcessBatch failed: %v", err)
	}

	dead, err := h.dead.ReceiveBatch(context.Background(), 10)
	if err != nil || len(dead) != 1 {
		t.Fatalf("dead-letter queue: %v, %d messages", err, len(dead))
	}
	var envelope DeadLetter
	if err := json.Unmarshal(dead[0].Body, &envelope); err != nil {
		t.Fatalf("decoding dead-letter envelope: %v", err)
	}
	if envelope.Code != pErrors.CodeInvalidPrice {
		t.Errorf("code = %q, want %q", envelope.Code, pErrors.CodeInvalidPrice)
	}
	var original map[string]string
	if err := json.Unmarshal(envelope.Record, &original); err != nil {
		t.Fatalf("original record not preserved: %v", err)
	}
	if original["title"] != "Widget" {
		t.Errorf("original record = %v", original)
	}

	products, _ := h.store.ListProducts(context.Background())
	if len(products) != 0 {
		t.Error("invalid record must not reach the store")
	}
	h.work.ExpireInflight()
	if h.work.Len() != 0 {
		t.Error("dead-lettered message must be acked off the work queue")
	}
}

func TestProcessBatch_PerRecordIsolation(t *testing.T) {
	h := newHarness(t, Options{Workers: 2})
	h.enqueue(t,
		`{"id":"good-1","title":"Widget","description":"A widget","price":"42","count":"5"}`,
		`{"title":"","description":"broken","price":"1","count":"0"}`,
		`{"id":"good-2","title":"Gadget","description":"A gadget","price":"150","count":"1"}`,
	)

	if err := h.processAll(t); err != nil {
		t.Fatalf("ProcessBatch failed: %v", err)
	}

	products, err := h.store.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("ListProducts failed: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("got %d products, want 2 (bad sibling isolated)", len(products))
	}

	if evs := drainEvents(h.standard.Ch); len(evs) != 1 {
		t.Errorf("standard class got %d events, want 1", len(evs))
	}
	if evs := drainEvents(h.premium.Ch); len(evs) != 1 {
		t.Errorf("premium class got %d events, want 1", len(evs))
	}
	if h.dead.Len() != 1 {
		t.Errorf("dead-letter queue has %d messages, want 1", h.dead.Len())
	}
}

func TestProcessBatch_IdempotentRedelivery(t *testing.T) {
	h := newHarness(t, Options{})
	body := `{"id":"p-1","title":"Widget","description":"A widget","price":"42","count":"5"}`

	h.enqueue(t, body)
	if err := h.processAll(t); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	// The transport redelivers the same message.
	h.enqueue(t, body)
	if err := h.processAll(t); err != nil {
		t.Fatalf("second delivery failed: %v", err)
	}

	products, err := h.store.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("ListProducts failed: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("got %d products, want 1 after redelivery", len(products))
	}
}

type failingStore struct{}

func (failingStore) CreateProduct(context.Context, types.Product, int64) error {
	return pErrors.NewStoreError(pErrors.CodeWriteFailed, "disk full", nil)
}
func (failingStore) GetProduct(context.Context, string) (types.ProductWithStock, error) {
	return types.ProductWithStock{}, pErrors.NewStoreError(pErrors.CodeNotFound, "product not found", nil)
}
func (failingStore) ListProducts(context.Context) ([]types.ProductWithStock, error) {
	return nil, nil
}
func (failingStore) Close() error { return nil }

func TestProcessBatch_StoreFailureLeavesUnacked(t *testing.T) {
	h := newHarness(t, Options{})
	h.com = NewCommitter(h.work, h.dead, failingStore{}, h.router, h.stats, Options{})
	h.enqueue(t, `{"id":"p-1","title":"Widget","description":"A widget","price":"42","count":"5"}`)

	if err := h.processAll(t); err == nil {
		t.Fatal("expected batch error when the store fails")
	}

	// Unacked: comes back after the visibility window for a retry.
	h.work.ExpireInflight()
	again, err := h.work.ReceiveBatch(context.Background(), 10)
	if err != nil || len(again) != 1 {
		t.Fatalf("redelivery: %v, %d messages", err, len(again))
	}
	if again[0].DeliveryCount != 2 {
		t.Errorf("delivery count = %d, want 2", again[0].DeliveryCount)
	}

	// One aggregate failure notification, to the unfiltered class only.
	evs := drainEvents(h.all.Ch)
	if len(evs) != 1 || evs[0].Subject != events.SubjectCommitFailure {
		t.Errorf("unfiltered class got %+v, want one failure notification", evs)
	}
	if evs := drainEvents(h.premium.Ch); len(evs) != 0 {
		t.Error("price-filtered class must not see failure notifications")
	}
}

type failingPublisher struct{ failures int }

func (p *failingPublisher) Publish(context.Context, events.CommitEvent) error {
	p.failures++
	return pErrors.NewPublishError("topic unavailable", nil)
}
func (p *failingPublisher) PublishFailure(context.Context, string) error { return nil }

func TestProcessBatch_PublishFailureDoesNotBlockAck(t *testing.T) {
	h := newHarness(t, Options{})
	pub := &failingPublisher{}
	h.com = NewCommitter(h.work, h.dead, h.store, pub, h.stats, Options{})
	h.enqueue(t, `{"id":"p-1","title":"Widget","description":"A widget","price":"42","count":"5"}`)

	if err := h.processAll(t); err != nil {
		t.Fatalf("ProcessBatch failed: %v", err)
	}

	if pub.failures != 1 {
		t.Errorf("publish attempts = %d, want 1", pub.failures)
	}
	// The write stands and the message is acked despite the publish failure.
	if _, err := h.store.GetProduct(context.Background(), "p-1"); err != nil {
		t.Errorf("product should be committed: %v", err)
	}
	h.work.ExpireInflight()
	if h.work.Len() != 0 {
		t.Error("message must be acked even when the event publish fails")
	}
	if got := h.stats.SnapshotNow().PublishFailures; got != 1 {
		t.Errorf("publish failures = %d, want 1", got)
	}
}

func TestProcessBatch_Stats(t *testing.T) {
	h := newHarness(t, Options{})
	h.enqueue(t,
		`{"id":"p-1","title":"Widget","description":"A widget","price":"42","count":"5"}`,
		`{"title":"W","description":"D","price":"zero","count":"0"}`,
	)

	if err := h.processAll(t); err != nil {
		t.Fatalf("ProcessBatch failed: %v", err)
	}

	snap := h.stats.SnapshotNow()
	if snap.MessagesReceived != 2 || snap.MessagesAcked != 2 {
		t.Errorf("message counters: %+v", snap)
	}
	if snap.RecordsCommitted != 1 || snap.RecordsInvalid != 1 || snap.RecordsDeadLetter != 1 {
		t.Errorf("record counters: %+v", snap)
	}
	if snap.EventsPublished != 1 {
		t.Errorf("event counters: %+v", snap)
	}
}
