package events

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// PricePredicate decides whether a subscriber class receives a commit event.
type PricePredicate func(price float64) bool

// PriceAbove matches events with price strictly greater than threshold.
func PriceAbove(threshold float64) PricePredicate {
	return func(price float64) bool { return price > threshold }
}

// PriceAtOrBelow matches events with price at or below threshold. Together
// with PriceAbove at the same threshold it partitions the price line: every
// event matches exactly one of the two.
func PriceAtOrBelow(threshold float64) PricePredicate {
	return func(price float64) bool { return price <= threshold }
}

// Subscriber is one registered consumer class on the router.
type Subscriber struct {
	ID      string
	Matches PricePredicate // nil means receive everything, failures included
	Ch      chan CommitEvent
}

// Router is the in-process Publisher. It fans commit events out to
// subscriber classes filtered by price predicate.
type Router struct {
	subscribers sync.Map
	bufferSize  int
}

// NewRouter creates an in-process event router. bufferSize bounds each
// subscriber channel.
func NewRouter(bufferSize int) *Router {
	return &Router{
		bufferSize: bufferSize,
	}
}

// Subscribe registers a consumer class under id. A nil predicate subscribes
// to all events, including failure notifications.
func (r *Router) Subscribe(id string, pred PricePredicate) *Subscriber {
	sub := &Subscriber{
		ID:      id,
		Matches: pred,
		Ch:      make(chan CommitEvent, r.bufferSize),
	}
	r.subscribers.Store(sub.ID, sub)
	return sub
}

// SubscribeAutoID registers a consumer class with a generated ID.
func (r *Router) SubscribeAutoID(pred PricePredicate) *Subscriber {
	return r.Subscribe("sub_"+time.Now().Format("20060102150405.000000000"), pred)
}

// Unsubscribe removes a subscriber and closes its channel.
func (r *Router) Unsubscribe(subID string) {
	if value, ok := r.subscribers.LoadAndDelete(subID); ok {
		close(value.(*Subscriber).Ch)
	}
}

// Publish fans the event out to every subscriber whose predicate matches its
// price. Non-blocking: a full subscriber channel drops the event rather than
// stalling the commit stage.
func (r *Router) Publish(_ context.Context, ev CommitEvent) error {
	r.subscribers.Range(func(_, value interface{}) bool {
		sub := value.(*Subscriber)
		if sub.Matches != nil && !sub.Matches(ev.Price) {
			return true
		}
		select {
		case sub.Ch <- ev:
		default:
			log.Warn().
				Str("subscriber", sub.ID).
				Str("subject", ev.Subject).
				Msg("subscriber channel full, event dropped")
		}
		return true
	})
	return nil
}

// PublishFailure delivers a failure notification to unfiltered subscribers
// only. Price-filtered classes never see it because it has no price.
func (r *Router) PublishFailure(_ context.Context, message string) error {
	ev := CommitEvent{
		Subject: SubjectCommitFailure,
		Message: EventMessage{Message: message},
	}
	r.subscribers.Range(func(_, value interface{}) bool {
		sub := value.(*Subscriber)
		if sub.Matches != nil {
			return true
		}
		select {
		case sub.Ch <- ev:
		default:
			log.Warn().
				Str("subscriber", sub.ID).
				Msg("subscriber channel full, failure notification dropped")
		}
		return true
	})
	return nil
}
