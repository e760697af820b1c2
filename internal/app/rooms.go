package app

import (
	"sort"
	"sync"

	"github.com/dkeye/polyglot/internal/core"
	"github.com/dkeye/polyglot/internal/domain"
	"github.com/rs/zerolog/log"
)

// liveRoom is the set of connections currently subscribed to one room.
// Broadcast holds the lock exclusively so every subscriber observes
// messages in the same order.
type liveRoom struct {
	id   domain.RoomID
	mu   sync.Mutex
	subs map[core.ConnID]LiveConn
}

func (lr *liveRoom) broadcast(except domain.UserID, f core.Frame) core.PublishResult {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	res := core.PublishResult{}
	for id, sub := range lr.subs {
		if sub.User == except {
			continue
		}
		if err := sub.Conn.TrySend(f); err != nil {
			res.Dropped = append(res.Dropped, id)
			continue
		}
		res.SendTo++
	}
	return res
}

// RoomRegistry tracks which live connections are subscribed to which room.
// It is a derived cache; membership itself lives in the directory.
// A connection is subscribed to at most one room at a time.
type RoomRegistry struct {
	mu     sync.RWMutex
	rooms  map[domain.RoomID]*liveRoom
	roomOf map[core.ConnID]domain.RoomID
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms:  make(map[domain.RoomID]*liveRoom),
		roomOf: make(map[core.ConnID]domain.RoomID),
	}
}

// Join subscribes c to roomID, leaving its previous room first. Joining
// the current room again is a no-op. It does not check authorization.
func (r *RoomRegistry) Join(c LiveConn, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.roomOf[c.ID]; ok {
		if cur == roomID {
			return
		}
		r.removeLocked(c.ID, cur)
	}
	lr, ok := r.rooms[roomID]
	if !ok {
		lr = &liveRoom{id: roomID, subs: make(map[core.ConnID]LiveConn)}
		r.rooms[roomID] = lr
	}
	lr.mu.Lock()
	lr.subs[c.ID] = c
	lr.mu.Unlock()
	r.roomOf[c.ID] = roomID
	log.Info().Str("module", "app.rooms").Str("conn", string(c.ID)).Str("room", string(roomID)).Msg("subscribed")
}

// Leave unsubscribes the connection from whatever room it is in.
func (r *RoomRegistry) Leave(id core.ConnID) (domain.RoomID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.roomOf[id]
	if !ok {
		return "", false
	}
	r.removeLocked(id, cur)
	log.Info().Str("module", "app.rooms").Str("conn", string(id)).Str("room", string(cur)).Msg("unsubscribed")
	return cur, true
}

func (r *RoomRegistry) removeLocked(id core.ConnID, roomID domain.RoomID) {
	delete(r.roomOf, id)
	lr, ok := r.rooms[roomID]
	if !ok {
		return
	}
	lr.mu.Lock()
	delete(lr.subs, id)
	empty := len(lr.subs) == 0
	lr.mu.Unlock()
	if empty {
		delete(r.rooms, roomID)
	}
}

// MembersOf returns the live connection ids subscribed to roomID. Used for
// delivery only, never for authorization.
func (r *RoomRegistry) MembersOf(roomID domain.RoomID) []core.ConnID {
	r.mu.RLock()
	lr, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	lr.mu.Lock()
	defer lr.mu.Unlock()
	out := make([]core.ConnID, 0, len(lr.subs))
	for id := range lr.subs {
		out = append(out, id)
	}
	return out
}

func (r *RoomRegistry) RoomOf(id core.ConnID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roomID, ok := r.roomOf[id]
	return roomID, ok
}

// Broadcast hands f to every subscriber of roomID not owned by except.
func (r *RoomRegistry) Broadcast(roomID domain.RoomID, except domain.UserID, f core.Frame) core.PublishResult {
	r.mu.RLock()
	lr, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return core.PublishResult{}
	}
	res := lr.broadcast(except, f)
	log.Debug().Str("module", "app.rooms").Str("room", string(roomID)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *RoomRegistry) List() []core.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(r.rooms))
	for id, lr := range r.rooms {
		lr.mu.Lock()
		out = append(out, core.RoomInfo{ID: id, Live: len(lr.subs)})
		lr.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
