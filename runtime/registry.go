// Package runtime holds the live, cross-session state of the server: the
// presence registry and the dispatcher that executes client actions
// against it. Durable state lives in repositories, not here.
package runtime

import (
	"sort"
	"strings"
	"sync"

	"mystiko/contract"
	"mystiko/errors"
)

type Set map[string]struct{}

// Registry is the process-wide table of who is connected and which room
// each username occupies. It is the single source of truth for presence:
// a username appears in at most one room's member set, and every entry
// corresponds to exactly one live session.
//
// All lookups are keyed by lowercased username/room name; display casing
// is kept separately so replies show names as their owners typed them.
type Registry struct {
	mu        sync.RWMutex
	sinks     map[string]contract.FrameSink // lower(user) -> write path
	names     map[string]string             // lower(user) -> display name
	occupancy map[string]string             // lower(user) -> lower(room)
	members   map[string]Set                // lower(room) -> lower(user) set
	roomNames map[string]string             // lower(room) -> display name
}

func NewRegistry() *Registry {
	return &Registry{
		sinks:     make(map[string]contract.FrameSink),
		names:     make(map[string]string),
		occupancy: make(map[string]string),
		members:   make(map[string]Set),
		roomNames: make(map[string]string),
	}
}

// Connect registers a session's write path under its authenticated
// username. A username may be online once: a second login is rejected.
func (r *Registry) Connect(username string, sink contract.FrameSink) error {
	key := strings.ToLower(username)
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, online := r.sinks[key]; online {
		return errors.ErrAlreadyLoggedIn
	}
	r.sinks[key] = sink
	r.names[key] = username
	return nil
}

// Disconnect removes a session entirely. The caller is responsible for
// broadcasting any leave notice first; after this returns no trace of the
// username remains in the registry.
func (r *Registry) Disconnect(username string) {
	key := strings.ToLower(username)
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeFromRoomLocked(key)
	delete(r.sinks, key)
	delete(r.names, key)
}

// Join moves a username into a room, implicitly leaving any prior room.
// It returns the display name of the prior room (empty if none) and the
// post-join member list, in one atomic step so two concurrent joins can
// never observe each other's intermediate state.
func (r *Registry) Join(username, room string) (previous string, members []string) {
	userKey := strings.ToLower(username)
	roomKey := strings.ToLower(room)

	r.mu.Lock()
	defer r.mu.Unlock()

	previous = r.roomNames[r.occupancy[userKey]]
	r.removeFromRoomLocked(userKey)

	if _, ok := r.members[roomKey]; !ok {
		r.members[roomKey] = make(Set)
	}
	r.members[roomKey][userKey] = struct{}{}
	r.occupancy[userKey] = roomKey
	r.roomNames[roomKey] = room

	return previous, r.membersLocked(roomKey)
}

// Leave removes a username from whatever room it occupies and returns the
// room's display name. It is a no-op returning "" when not in any room.
func (r *Registry) Leave(username string) string {
	key := strings.ToLower(username)
	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.roomNames[r.occupancy[key]]
	r.removeFromRoomLocked(key)
	return room
}

// MembersOf returns the display names of a room's current members.
func (r *Registry) MembersOf(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.membersLocked(strings.ToLower(room))
}

// RoomOf returns the display name of the room a username occupies.
func (r *Registry) RoomOf(username string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roomKey, ok := r.occupancy[strings.ToLower(username)]
	if !ok {
		return "", false
	}
	return r.roomNames[roomKey], true
}

// EvictRoom empties a room and returns the display names of everyone who
// was present. Used when a room is deleted under its members.
func (r *Registry) EvictRoom(room string) []string {
	roomKey := strings.ToLower(room)
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := r.membersLocked(roomKey)
	for userKey := range r.members[roomKey] {
		delete(r.occupancy, userKey)
	}
	delete(r.members, roomKey)
	delete(r.roomNames, roomKey)
	return evicted
}

// SinkFor resolves an online username to its write path and display name.
func (r *Registry) SinkFor(username string) (contract.FrameSink, string, bool) {
	key := strings.ToLower(username)
	r.mu.RLock()
	defer r.mu.RUnlock()

	sink, ok := r.sinks[key]
	if !ok {
		return nil, "", false
	}
	return sink, r.names[key], true
}

// SinksForRoom returns the write paths of every member of a room.
func (r *Registry) SinksForRoom(room string) []contract.FrameSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []contract.FrameSink
	for userKey := range r.members[strings.ToLower(room)] {
		if sink, ok := r.sinks[userKey]; ok {
			active = append(active, sink)
		}
	}
	return active
}

// removeFromRoomLocked detaches a username from its current room and
// cleans up empty member sets so rooms don't leak. Callers hold r.mu.
func (r *Registry) removeFromRoomLocked(userKey string) {
	roomKey, ok := r.occupancy[userKey]
	if !ok {
		return
	}
	delete(r.occupancy, userKey)

	if members, ok := r.members[roomKey]; ok {
		delete(members, userKey)
		if len(members) == 0 {
			delete(r.members, roomKey)
			delete(r.roomNames, roomKey)
		}
	}
}

func (r *Registry) membersLocked(roomKey string) []string {
	members := r.members[roomKey]
	names := make([]string, 0, len(members))
	for userKey := range members {
		names = append(names, r.names[userKey])
	}
	sort.Strings(names)
	return names
}
