package chat

import "sync"

// Registry maps each live connection to at most one room (the set of
// connections subscribed to a conversation). It is purely transient state,
// rebuilt from connection events, and safe for arbitrary concurrent use.
// Rooms carry their own lock so joins, leaves and snapshots on unrelated
// rooms do not serialize against each other.
type Registry struct {
	mu    sync.Mutex               // guards conns only
	conns map[string]*subscription // connID -> its current subscription
	rooms sync.Map                 // postKey -> *room
}

type subscription struct {
	mu      sync.Mutex // serializes join/leave for one connection
	postKey string
	gone    bool // set by Leave once the registry no longer tracks this subscription
}

type room struct {
	mu      sync.RWMutex
	members map[string]struct{}
	dead    bool // set when the room emptied and was removed from the map
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*subscription)}
}

// Join subscribes connID to postKey's room. A connection holds at most one
// membership: joining a new room atomically leaves the previous one.
// Malformed requests are a no-op.
func (r *Registry) Join(connID, postKey string) {
	if connID == "" || postKey == "" {
		return
	}
	for {
		r.mu.Lock()
		sub := r.conns[connID]
		if sub == nil {
			sub = &subscription{}
			r.conns[connID] = sub
		}
		r.mu.Unlock()

		sub.mu.Lock()
		if sub.gone {
			// A concurrent Leave retired this subscription after we looked
			// it up. Joining through it would add a membership the registry
			// no longer tracks; start over with a fresh registration.
			sub.mu.Unlock()
			continue
		}
		if sub.postKey == postKey {
			sub.mu.Unlock()
			return
		}
		if sub.postKey != "" {
			r.removeMember(sub.postKey, connID)
		}
		sub.postKey = postKey
		r.addMember(postKey, connID)
		sub.mu.Unlock()
		return
	}
}

// Leave removes connID from whatever room it occupies. Idempotent: leaving
// twice, or leaving while unjoined, is a no-op.
func (r *Registry) Leave(connID string) {
	r.mu.Lock()
	sub := r.conns[connID]
	delete(r.conns, connID)
	r.mu.Unlock()
	if sub == nil {
		return
	}
	sub.mu.Lock()
	defer sub.mu.Unlock()
	sub.gone = true
	if sub.postKey != "" {
		r.removeMember(sub.postKey, connID)
		sub.postKey = ""
	}
}

// SubscribersOf returns a point-in-time snapshot of postKey's room.
func (r *Registry) SubscribersOf(postKey string) []string {
	v, ok := r.rooms.Load(postKey)
	if !ok {
		return nil
	}
	rm := v.(*room)
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	out := make([]string, 0, len(rm.members))
	for id := range rm.members {
		out = append(out, id)
	}
	return out
}

// RoomOf reports the room connID is currently joined to, if any.
func (r *Registry) RoomOf(connID string) (string, bool) {
	r.mu.Lock()
	sub := r.conns[connID]
	r.mu.Unlock()
	if sub == nil {
		return "", false
	}
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.postKey == "" {
		return "", false
	}
	return sub.postKey, true
}

func (r *Registry) addMember(postKey, connID string) {
	for {
		v, _ := r.rooms.LoadOrStore(postKey, &room{members: make(map[string]struct{})})
		rm := v.(*room)
		rm.mu.Lock()
		if rm.dead {
			// Lost a race with the room being emptied and dropped;
			// retry against a fresh room.
			rm.mu.Unlock()
			continue
		}
		rm.members[connID] = struct{}{}
		rm.mu.Unlock()
		return
	}
}

func (r *Registry) removeMember(postKey, connID string) {
	v, ok := r.rooms.Load(postKey)
	if !ok {
		return
	}
	rm := v.(*room)
	rm.mu.Lock()
	delete(rm.members, connID)
	if len(rm.members) == 0 {
		rm.dead = true
		r.rooms.Delete(postKey)
	}
	rm.mu.Unlock()
}
