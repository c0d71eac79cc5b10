package shared

import "context"

// EventHandler consumes domain events off the bus. Sync lifecycle events
// and parked-conflict notifications flow through here.
type EventHandler interface {
	// Handle processes a single event
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes lists the event types the handler wants. Empty means
	// every event.
	EventTypes() []string
}

// EventPublisher is the write side of the bus
type EventPublisher interface {
	// Publish delivers one or more events to subscribed handlers
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventSubscriber is the read side of the bus
type EventSubscriber interface {
	// Subscribe registers a handler for the given event types, or for
	// all events when none are given
	Subscribe(handler EventHandler, eventTypes ...string)
	// Unsubscribe removes a previously registered handler
	Unsubscribe(handler EventHandler)
}

// EventBus couples publishing and subscription with a lifecycle so
// background delivery can be started and drained on shutdown
type EventBus interface {
	EventPublisher
	EventSubscriber
	// Start begins delivering published events
	Start(ctx context.Context) error
	// Stop drains in-flight events and stops delivery
	Stop(ctx context.Context) error
}
