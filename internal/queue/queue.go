// Package queue provides the at-least-once work queue between the extraction
// and commit stages. Delivery is unordered; a received message becomes
// re-deliverable after its visibility window elapses without an ack.
package queue

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/golang/snappy"

	pErrors "github.com/stockyard/stockyard/internal/errors"
)

// Message is a delivered work item. The body is the raw payload handed to
// Enqueue; transport-level compression is invisible to consumers.
type Message struct {
	// ID is the transport-assigned message identifier.
	ID string

	// Body is the message payload.
	Body []byte

	// DeliveryCount is how many times this message has been delivered,
	// including this delivery.
	DeliveryCount int

	// handle is the transport receipt used to ack this delivery.
	handle string
}

// Queue is the work queue port.
type Queue interface {
	// Enqueue appends a message. Durable once it returns nil.
	Enqueue(ctx context.Context, body []byte) error

	// ReceiveBatch returns up to max messages. May return fewer or none.
	// Received messages stay invisible to other consumers for the
	// visibility window.
	ReceiveBatch(ctx context.Context, max int) ([]Message, error)

	// Ack removes a delivered message permanently. Un-acked messages are
	// redelivered after the visibility window.
	Ack(ctx context.Context, msg Message) error
}

const compressedPrefix = "snappy:"

// encodeBody prepares a payload for the wire, snappy-compressing bodies above
// the threshold. SQS caps message size, so large rows ride compressed.
func encodeBody(body []byte, threshold int) string {
	if threshold > 0 && len(body) > threshold {
		packed := snappy.Encode(nil, body)
		return compressedPrefix + base64.StdEncoding.EncodeToString(packed)
	}
	return string(body)
}

// decodeBody reverses encodeBody.
func decodeBody(wire string) ([]byte, error) {
	if !strings.HasPrefix(wire, compressedPrefix) {
		return []byte(wire), nil
	}
	packed, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(wire, compressedPrefix))
	if err != nil {
		return nil, pErrors.NewQueueError(pErrors.CodeReceiveFailed, "decoding compressed message body", err)
	}
	body, err := snappy.Decode(nil, packed)
	if err != nil {
		return nil, pErrors.NewQueueError(pErrors.CodeReceiveFailed, "decompressing message body", err)
	}
	return body, nil
}
