package events

import "context"

// Streams fan-out rides on. Negotiation events are routed to open chat
// sockets by negotiation id; user events go to any socket the user holds.
const (
	StreamNegotiation = "events:negotiation"
	StreamUser        = "events:user"
)

// Event types
const (
	EventNegotiationUpdated = "negotiation_updated"
	EventMessageCreated     = "message_created"
	EventPaymentUpdate      = "payment_update"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}

// NoopPublisher discards events. Used in tests and when redis is not
// configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, Event) error { return nil }
