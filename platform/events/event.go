// Package events provides an in-process publish/subscribe bus used to hand
// session changes to live consumers such as the dashboard stream.
// This is part of the platform layer and contains no business logic.
package events

import (
	"context"
	"time"
)

// Event is implemented by everything published on a Bus.
type Event interface {
	// EventName is the subscription key of the event type.
	EventName() string
	// OccurredAt is when the event was raised.
	OccurredAt() time.Time
}

// BaseEvent carries the timestamp shared by all events. Embed it.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// OccurredAt implements Event.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps an event with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler consumes events it subscribed to.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus routes events to the handlers subscribed to their name.
type Bus interface {
	// Publish dispatches without waiting for handlers.
	Publish(ctx context.Context, event Event)
	// PublishSync dispatches and returns the joined handler errors.
	PublishSync(ctx context.Context, event Event) error
	// Subscribe registers handler for events named eventName.
	Subscribe(eventName string, handler Handler)
}
