package bus

import (
	"context"
)

// Message is one opaque payload pulled from the bus. Ack removes it from
// the source; Nack asks for redelivery. Exactly one of the two must be
// called once processing resolves.
type Message struct {
	Data []byte
	Ack  func() error
	Nack func() error
}

// Subscriber pulls batches of messages from the bus with at-least-once
// delivery and no ordering guarantee.
type Subscriber interface {
	Connect() error
	Fetch(ctx context.Context, batch int) ([]*Message, error)
	Close() error
}
