// Package events defines commit events and their filtered fan-out to
// subscriber classes.
package events

import (
	"context"
	"fmt"

	"github.com/stockyard/stockyard/pkg/types"
)

// SubjectProductCreated is the subject of successful commit events.
const SubjectProductCreated = "New Product Created"

// SubjectCommitFailure is the subject of aggregate failure notifications.
const SubjectCommitFailure = "Error Creating Products"

// EventMessage is the published message body.
type EventMessage struct {
	Message string        `json:"message"`
	Product types.Product `json:"product"`
}

// CommitEvent is a fire-and-forget notification of a successful catalog
// write. Price rides alongside as a numeric attribute so subscribers can
// filter without parsing the body.
type CommitEvent struct {
	Subject string
	Message EventMessage
	Price   float64
}

// NewProductCreated builds the commit event for a freshly written product.
func NewProductCreated(p types.Product) CommitEvent {
	return CommitEvent{
		Subject: SubjectProductCreated,
		Message: EventMessage{
			Message: fmt.Sprintf("Successfully created product: %s", p.Title),
			Product: p,
		},
		Price: p.Price,
	}
}

// Publisher is the commit event sink port.
type Publisher interface {
	// Publish delivers a commit event. Failure is logged by callers and
	// never rolls back the store write it announces.
	Publish(ctx context.Context, ev CommitEvent) error

	// PublishFailure sends one aggregate failure notification. It carries
	// no price attribute, so price-filtered subscriber classes do not
	// receive it.
	PublishFailure(ctx context.Context, message string) error
}
