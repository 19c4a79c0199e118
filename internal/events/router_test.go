package events

import (
	"context"
	"testing"

	"github.com/stockyard/stockyard/pkg/types"
)

func drain(ch chan CommitEvent) []CommitEvent {
	var out []CommitEvent
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestRouter_PricePartition(t *testing.T) {
	r := NewRouter(16)
	premium := r.Subscribe("premium", PriceAbove(100))
	standard := r.Subscribe("standard", PriceAtOrBelow(100))
	ctx := context.Background()

	cheap := NewProductCreated(types.Product{ID: "a", Title: "Widget", Description: "A widget", Price: 42})
	costly := NewProductCreated(types.Product{ID: "b", Title: "Gadget", Description: "A gadget", Price: 150})

	if err := r.Publish(ctx, cheap); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := r.Publish(ctx, costly); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	got := drain(standard.Ch)
	if len(got) != 1 || got[0].Message.Product.ID != "a" {
		t.Errorf("standard class got %+v, want only product a", got)
	}
	got = drain(premium.Ch)
	if len(got) != 1 || got[0].Message.Product.ID != "b" {
		t.Errorf("premium class got %+v, want only product b", got)
	}
}

func TestRouter_BoundaryPriceRoutesLow(t *testing.T) {
	r := NewRouter(16)
	premium := r.Subscribe("premium", PriceAbove(100))
	standard := r.Subscribe("standard", PriceAtOrBelow(100))

	ev := NewProductCreated(types.Product{ID: "c", Title: "Edge", Description: "On the line", Price: 100})
	if err := r.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if got := drain(standard.Ch); len(got) != 1 {
		t.Errorf("standard class got %d events, want 1", len(got))
	}
	if got := drain(premium.Ch); len(got) != 0 {
		t.Errorf("premium class got %d events, want 0", len(got))
	}
}

func TestRouter_EventPayload(t *testing.T) {
	r := NewRouter(16)
	all := r.Subscribe("all", nil)

	p := types.Product{ID: "d", Title: "Widget", Description: "A widget", Price: 42}
	if err := r.Publish(context.Background(), NewProductCreated(p)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	got := drain(all.Ch)
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	if got[0].Subject != SubjectProductCreated {
		t.Errorf("subject = %q", got[0].Subject)
	}
	if got[0].Message.Message != "Successfully created product: Widget" {
		t.Errorf("message = %q", got[0].Message.Message)
	}
	if got[0].Message.Product != p {
		t.Errorf("product = %+v", got[0].Message.Product)
	}
	if got[0].Price != 42 {
		t.Errorf("price attribute = %v", got[0].Price)
	}
}

func TestRouter_FailureSkipsFilteredClasses(t *testing.T) {
	r := NewRouter(16)
	premium := r.Subscribe("premium", PriceAbove(100))
	standard := r.Subscribe("standard", PriceAtOrBelow(100))
	all := r.Subscribe("all", nil)

	if err := r.PublishFailure(context.Background(), "3 records failed"); err != nil {
		t.Fatalf("PublishFailure failed: %v", err)
	}

	if got := drain(premium.Ch); len(got) != 0 {
		t.Errorf("premium class got %d failure events, want 0", len(got))
	}
	if got := drain(standard.Ch); len(got) != 0 {
		t.Errorf("standard class got %d failure events, want 0", len(got))
	}
	got := drain(all.Ch)
	if len(got) != 1 {
		t.Fatalf("unfiltered class got %d events, want 1", len(got))
	}
	if got[0].Subject != SubjectCommitFailure {
		t.Errorf("subject = %q", got[0].Subject)
	}
	if got[0].Message.Message != "3 records failed" {
		t.Errorf("message = %q", got[0].Message.Message)
	}
}

func TestRouter_FullChannelDoesNotBlock(t *testing.T) {
	r := NewRouter(1)
	sub := r.Subscribe("slow", nil)
	ctx := context.Background()

	ev := NewProductCreated(types.Product{ID: "e", Title: "W", Description: "D", Price: 1})
	for i := 0; i < 10; i++ {
		if err := r.Publish(ctx, ev); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	if got := drain(sub.Ch); len(got) != 1 {
		t.Errorf("buffered %d events, want 1", len(got))
	}
}

func TestRouter_Unsubscribe(t *testing.T) {
	r := NewRouter(16)
	sub := r.Subscribe("gone", nil)
	r.Unsubscribe("gone")

	if _, ok := <-sub.Ch; ok {
		t.Error("channel should be closed after unsubscribe")
	}

	// Publishing after unsubscribe must not panic on the closed channel.
	ev := NewProductCreated(types.Product{ID: "f", Title: "W", Description: "D", Price: 1})
	if err := r.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
}
