package room

import (
	"sort"
	"sync"
)

// Capacity is the maximum number of members in a room.
const Capacity = 2

// Outcome is the result of a join attempt.
type Outcome int

const (
	// Created means the room was empty and the participant is its sole member.
	Created Outcome = iota
	// Joined means the participant became the second member.
	Joined
	// Full means the room already had Capacity members. Nothing changed.
	Full
	// Duplicate means the participant was already a member. Nothing changed.
	Duplicate
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Joined:
		return "joined"
	case Full:
		return "full"
	case Duplicate:
		return "duplicate"
	}
	return "unknown"
}

// Stats is a point-in-time summary of the registry.
type Stats struct {
	Rooms        int `json:"rooms"`
	Waiting      int `json:"waiting"`
	Paired       int `json:"paired"`
	Participants int `json:"participants"`
}

// Registry maps room IDs to their members. Empty rooms are deleted
// eagerly; a room ID carries no state beyond its member set.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]map[string]struct{})}
}

// Join adds participant to room if there is space for it.
func (r *Registry) Join(room, participant string) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.rooms[room]
	if _, ok := members[participant]; ok {
		return Duplicate
	}

	switch len(members) {
	case 0:
		r.rooms[room] = map[string]struct{}{participant: {}}
		return Created
	case Capacity - 1:
		members[participant] = struct{}{}
		return Joined
	default:
		return Full
	}
}

// Leave removes participant from room. It is a no-op if participant is not
// a member.
func (r *Registry) Leave(room, participant string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(members, participant)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}

// MemberCount returns the number of members in room.
func (r *Registry) MemberCount(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

// Members returns the sorted member IDs of room.
func (r *Registry) Members(room string) []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.rooms[room]))
	for id := range r.rooms[room] {
		out = append(out, id)
	}
	r.mu.RUnlock()

	sort.Strings(out)
	return out
}

// Stats summarises the registry.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var s Stats
	for _, members := range r.rooms {
		s.Rooms++
		s.Participants += len(members)
		if len(members) == Capacity {
			s.Paired++
		} else {
			s.Waiting++
		}
	}
	return s
}
