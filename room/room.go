// room/room.go
package room

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chessworld/gameserver/rules"
)

var (
	// ErrIllegalMove is returned for a well-formed move that chess rules
	// reject in the room's current position.
	ErrIllegalMove = errors.New("illegal move")
	// ErrRoomClosed is returned when an operation races the room's teardown.
	// Callers resolve the room again through the registry.
	ErrRoomClosed = errors.New("room closed")
)

// Room 是一局棋的核心结构: it owns the authoritative position and the set of
// subscribed connections. Every mutation of either goes through one mutex,
// so at most one move application is in flight per room and the broadcast
// sequence matches the application sequence exactly.
type Room struct {
	ID        string
	CreatedAt time.Time

	engine      rules.Engine
	broadcaster Broadcaster
	registry    *Registry

	mutex       sync.Mutex
	position    *rules.Position
	subscribers map[string]Subscriber
	closed      bool
}

func newRoom(id string, engine rules.Engine, broadcaster Broadcaster, registry *Registry) *Room {
	return &Room{
		ID:          id,
		CreatedAt:   time.Now(),
		engine:      engine,
		broadcaster: broadcaster,
		registry:    registry,
		position:    engine.StartingPosition(),
		subscribers: make(map[string]Subscriber),
	}
}

// Join registers handle as a subscriber and pushes the current position to
// it, inside the room's critical section so no later broadcast can overtake
// the initial frame.
func (r *Room) Join(handle Subscriber) (*rules.Position, error) {
	r.mutex.Lock()
	if r.closed {
		r.mutex.Unlock()
		return nil, ErrRoomClosed
	}

	r.subscribers[handle.GetID()] = handle
	pos := r.position
	err := handle.Send(r.engine.FEN(pos))
	if err != nil {
		delete(r.subscribers, handle.GetID())
		remaining := len(r.subscribers)
		r.mutex.Unlock()
		if remaining == 0 {
			r.registry.Remove(r.ID)
		}
		return nil, err
	}

	r.mutex.Unlock()
	return pos, nil
}

// Leave deregisters handle. The last leave signals the registry to retire
// the room; the registry re-checks emptiness under its own discipline, so a
// join racing this call keeps the room alive.
func (r *Room) Leave(handle Subscriber) {
	r.mutex.Lock()
	if _, exists := r.subscribers[handle.GetID()]; !exists {
		r.mutex.Unlock()
		return
	}
	delete(r.subscribers, handle.GetID())
	remaining := len(r.subscribers)
	r.mutex.Unlock()

	if remaining == 0 {
		r.registry.Remove(r.ID)
	}
}

// SubmitMove parses and validates raw against the current position, applies
// it, and fans the new position out to every subscriber. Moves are applied
// strictly in arrival order; a rejected move leaves the position untouched
// and is reported only to the caller. Subscribers whose delivery fails are
// removed and closed, never surfacing as an error here. Callers wanting
// terminal status derive it from the returned position.
func (r *Room) SubmitMove(raw string) (*rules.Position, error) {
	r.mutex.Lock()
	if r.closed {
		r.mutex.Unlock()
		return nil, ErrRoomClosed
	}

	move, err := r.engine.ParseMove(r.position, raw)
	if err != nil {
		r.mutex.Unlock()
		return nil, err
	}
	if !r.engine.IsLegal(r.position, move) {
		r.mutex.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrIllegalMove, raw)
	}

	r.position = r.engine.Apply(r.position, move)
	pos := r.position
	fen := r.engine.FEN(pos)

	// Publish while still serialized: subscribers observe positions in the
	// order they were produced. Delivery itself only enqueues per handle.
	failed := r.broadcaster.Publish(r.ID, r.snapshotLocked(), fen)
	for _, sub := range failed {
		delete(r.subscribers, sub.GetID())
	}
	remaining := len(r.subscribers)
	r.mutex.Unlock()

	for _, sub := range failed {
		sub.Close()
	}
	if remaining == 0 {
		r.registry.Remove(r.ID)
	}

	return pos, nil
}

// FEN returns the current position's FEN encoding.
func (r *Room) FEN() string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.engine.FEN(r.position)
}

// SubscriberCount returns the current number of subscribers.
func (r *Room) SubscriberCount() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.subscribers)
}

// Info is a point-in-time view of a room for inspection surfaces.
type Info struct {
	ID          string `json:"id"`
	FEN         string `json:"fen"`
	Subscribers int    `json:"subscribers"`
	Status      string `json:"status,omitempty"`
}

// Snapshot captures the room's inspectable state in one critical section.
func (r *Room) Snapshot() Info {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return Info{
		ID:          r.ID,
		FEN:         r.engine.FEN(r.position),
		Subscribers: len(r.subscribers),
		Status:      string(r.position.Status()),
	}
}

func (r *Room) snapshotLocked() []Subscriber {
	subscribers := make([]Subscriber, 0, len(r.subscribers))
	for _, sub := range r.subscribers {
		subscribers = append(subscribers, sub)
	}
	return subscribers
}
