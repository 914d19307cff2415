package instance

// Event represents an instance lifecycle event.
// Minimal and stable: name + model/instance ids and optional fields via
// key/values.
type Event struct {
	Name     string
	Model    string
	Instance string
	Fields   map[string]any
}

// EventPublisher receives events from the instance set. Implementations
// should be lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
