// Package room keeps named sets of client connections and fans messages out
// to them.
package room

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"smartstock.app/internal/domain"
)

type room struct {
	mu      sync.RWMutex
	members map[string]struct{}
}

// Broadcaster owns every room. Rooms are created on first join and removed
// when the last member leaves. Each room has its own lock so fan-out in one
// room does not contend with membership changes in another.
type Broadcaster struct {
	deliverer domain.Deliverer
	logger    *zap.Logger

	mu          sync.RWMutex
	rooms       map[string]*room
	memberships map[string]map[string]struct{}
}

func NewBroadcaster(deliverer domain.Deliverer, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		deliverer:   deliverer,
		logger:      logger.Named("room"),
		rooms:       make(map[string]*room),
		memberships: make(map[string]map[string]struct{}),
	}
}

// Join adds connID to name. It returns the room size afterwards and whether
// the connection was newly added.
func (b *Broadcaster) Join(connID, name string) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.rooms[name]
	if !ok {
		r = &room{members: make(map[string]struct{})}
		b.rooms[name] = r
	}

	r.mu.Lock()
	_, existed := r.members[connID]
	r.members[connID] = struct{}{}
	size := len(r.members)
	r.mu.Unlock()

	rooms, ok := b.memberships[connID]
	if !ok {
		rooms = make(map[string]struct{})
		b.memberships[connID] = rooms
	}
	rooms[name] = struct{}{}

	return size, !existed
}

// Leave removes connID from name. Leaving a room never joined is a no-op.
func (b *Broadcaster) Leave(connID, name string) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.leaveLocked(connID, name)
}

// LeaveAll removes connID from every room and returns the rooms it left
// along with their remaining sizes.
func (b *Broadcaster) LeaveAll(connID string) map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()

	left := make(map[string]int, len(b.memberships[connID]))
	for name := range b.memberships[connID] {
		if size, ok := b.leaveLocked(connID, name); ok {
			left[name] = size
		}
	}
	delete(b.memberships, connID)
	return left
}

// Broadcast delivers payload as event to every member of name except
// exclude (empty excludes nobody) and returns how many members accepted it.
// Delivery is non-blocking per member; a full or closed member is skipped.
func (b *Broadcaster) Broadcast(name, event string, payload any, exclude string) int {
	members := b.snapshot(name)

	delivered := 0
	for _, connID := range members {
		if connID == exclude {
			continue
		}
		if b.deliverer.Deliver(connID, event, payload) {
			delivered++
		} else {
			b.logger.Debug("delivery skipped",
				zap.String("room", name),
				zap.String("conn_id", connID),
				zap.String("event", event),
			)
		}
	}
	return delivered
}

// Members returns the sorted member ids of name.
func (b *Broadcaster) Members(name string) []string {
	members := b.snapshot(name)
	sort.Strings(members)
	return members
}

func (b *Broadcaster) Size(name string) int {
	b.mu.RLock()
	r, ok := b.rooms[name]
	b.mu.RUnlock()
	if !ok {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Rooms returns the sorted rooms connID belongs to.
func (b *Broadcaster) Rooms(connID string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.memberships[connID]))
	for name := range b.memberships[connID] {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RoomCount is the number of non-empty rooms.
func (b *Broadcaster) RoomCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms)
}

func (b *Broadcaster) snapshot(name string) []string {
	b.mu.RLock()
	r, ok := b.rooms[name]
	if !ok {
		b.mu.RUnlock()
		return nil
	}
	r.mu.RLock()
	b.mu.RUnlock()
	defer r.mu.RUnlock()

	members := make([]string, 0, len(r.members))
	for id := range r.members {
		members = append(members, id)
	}
	return members
}

func (b *Broadcaster) leaveLocked(connID, name string) (int, bool) {
	r, ok := b.rooms[name]
	if !ok {
		return 0, false
	}

	r.mu.Lock()
	_, member := r.members[connID]
	delete(r.members, connID)
	size := len(r.members)
	r.mu.Unlock()

	if size == 0 {
		delete(b.rooms, name)
	}
	if rooms, ok := b.memberships[connID]; ok {
		delete(rooms, name)
		if len(rooms) == 0 {
			delete(b.memberships, connID)
		}
	}
	return size, member
}
