package bus

import "time"

// EventBus is an in-process pub/sub bus for engine lifecycle events.
//
// Delivery is synchronous, in the publisher's goroutine, in subscription
// order. Handler errors are joined and returned from Publish; a panicking
// handler is reported as an error and does not stop delivery to the rest.
// All methods are safe for concurrent use.
type EventBus interface {
	Publish(event Event) error

	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels sub. A nil sub is ignored.
	Unsubscribe(sub Subscription) error
	// Subscribers returns the number of active subscriptions for eventType.
	Subscribers(eventType string) int
}

// Event is an immutable message routed by Type.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
}

type EventHandler func(event Event) error

type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	// Cancel removes the handler from the bus. Repeated calls are no-ops.
	Cancel() error
}
