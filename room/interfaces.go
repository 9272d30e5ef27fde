package room

// Subscriber is an opaque handle to a live connection's outbound channel.
// A handle belongs to at most one room at a time.
type Subscriber interface {
	GetID() string
	Send(message string) error
	Close() error
}

// Broadcaster defines the interface for fanning a message out to a room's
// subscribers. This is defined here to break the import cycle between room
// and broadcast. Publish returns the subscribers whose delivery failed.
type Broadcaster interface {
	Publish(roomID string, subscribers []Subscriber, message string) []Subscriber
}
