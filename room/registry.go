// room/registry.go
package room

import (
	"sync"

	"github.com/chessworld/gameserver/rules"
)

// Registry 管理所有房间. Any string names a room: unknown ids are created on
// first reference with a fresh starting position, and entries are purely
// in-memory. The registry's mutex guards the set of rooms only; each room's
// content has its own lock, taken after the registry's when both are needed.
type Registry struct {
	rooms       map[string]*Room
	mutex       sync.RWMutex
	engine      rules.Engine
	broadcaster Broadcaster
}

func NewRegistry(engine rules.Engine, broadcaster Broadcaster) *Registry {
	return &Registry{
		rooms:       make(map[string]*Room),
		engine:      engine,
		broadcaster: broadcaster,
	}
}

// GetOrCreate returns the room named id, creating it if necessary. Exactly
// one room survives concurrent creation attempts for the same id.
func (reg *Registry) GetOrCreate(id string) *Room {
	reg.mutex.RLock()
	room, exists := reg.rooms[id]
	reg.mutex.RUnlock()
	if exists {
		return room
	}

	reg.mutex.Lock()
	defer reg.mutex.Unlock()
	if room, exists := reg.rooms[id]; exists {
		return room
	}
	room = newRoom(id, reg.engine, reg.broadcaster, reg)
	reg.rooms[id] = room
	return room
}

// Get returns the room named id without creating it.
func (reg *Registry) Get(id string) (*Room, bool) {
	reg.mutex.RLock()
	defer reg.mutex.RUnlock()
	room, exists := reg.rooms[id]
	return room, exists
}

// Remove retires the room named id if, and only if, its subscriber set is
// observed empty while both locks are held. A subscriber that joined in the
// meantime keeps the room alive; the removed room rejects late joins with
// ErrRoomClosed so callers re-resolve through GetOrCreate.
func (reg *Registry) Remove(id string) bool {
	reg.mutex.Lock()
	defer reg.mutex.Unlock()

	room, exists := reg.rooms[id]
	if !exists {
		return false
	}

	room.mutex.Lock()
	if len(room.subscribers) > 0 {
		room.mutex.Unlock()
		return false
	}
	room.closed = true
	room.mutex.Unlock()

	delete(reg.rooms, id)
	return true
}

// Count returns the number of live rooms.
func (reg *Registry) Count() int {
	reg.mutex.RLock()
	defer reg.mutex.RUnlock()
	return len(reg.rooms)
}

// List snapshots every live room for inspection surfaces.
func (reg *Registry) List() []Info {
	reg.mutex.RLock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		rooms = append(rooms, room)
	}
	reg.mutex.RUnlock()

	infos := make([]Info, 0, len(rooms))
	for _, room := range rooms {
		infos = append(infos, room.Snapshot())
	}
	return infos
}
