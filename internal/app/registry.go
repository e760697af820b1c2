package app

import (
	"context"
	"sync"

	"github.com/dkeye/polyglot/internal/core"
	"github.com/dkeye/polyglot/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// LiveConn is a registered connection as seen by delivery code.
type LiveConn struct {
	ID   core.ConnID
	User domain.UserID
	Conn core.SignalConnection
}

type connEntry struct {
	Participant domain.Participant
	Conn        core.SignalConnection
	Cancel      context.CancelFunc
}

// Registry is the presence table: live connections and the identity each
// one is bound to. An identity may hold several connections (devices).
type Registry struct {
	mu     sync.RWMutex
	conns  map[core.ConnID]*connEntry
	byUser map[domain.UserID]map[core.ConnID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[core.ConnID]*connEntry),
		byUser: make(map[domain.UserID]map[core.ConnID]struct{}),
	}
}

// Register binds a new connection to a participant. The identity is fixed
// for the lifetime of the connection.
func (r *Registry) Register(conn core.SignalConnection, p domain.Participant, cancel context.CancelFunc) core.ConnID {
	id := core.ConnID(uuid.NewString())
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[id] = &connEntry{Participant: p, Conn: conn, Cancel: cancel}
	set, ok := r.byUser[p.ID]
	if !ok {
		set = make(map[core.ConnID]struct{})
		r.byUser[p.ID] = set
	}
	set[id] = struct{}{}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("user", string(p.ID)).Int("devices", len(set)).Msg("registered connection")
	return id
}

// Unregister removes the connection. It reports false when the connection
// was already gone, so callers can run cleanup exactly once.
func (r *Registry) Unregister(id core.ConnID) (domain.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return domain.Participant{}, false
	}
	delete(r.conns, id)
	if set, ok := r.byUser[e.Participant.ID]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(r.byUser, e.Participant.ID)
		}
	}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("user", string(e.Participant.ID)).Msg("unregistered connection")
	return e.Participant, true
}

// Resolve returns every live connection of an identity; empty when offline.
func (r *Registry) Resolve(uid domain.UserID) []LiveConn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.byUser[uid]
	out := make([]LiveConn, 0, len(set))
	for id := range set {
		out = append(out, LiveConn{ID: id, User: uid, Conn: r.conns[id].Conn})
	}
	return out
}

func (r *Registry) Online(uid domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[uid]) > 0
}

func (r *Registry) Get(id core.ConnID) (LiveConn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok {
		return LiveConn{}, false
	}
	return LiveConn{ID: id, User: e.Participant.ID, Conn: e.Conn}, true
}

func (r *Registry) Participant(id core.ConnID) (domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.conns[id]; ok {
		return e.Participant, true
	}
	return domain.Participant{}, false
}

// UpdateLanguage refreshes the cached language on every live connection of uid.
func (r *Registry) UpdateLanguage(uid domain.UserID, language string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.byUser[uid] {
		r.conns[id].Participant.Language = language
	}
	log.Info().Str("module", "app.registry").Str("user", string(uid)).Str("language", language).Msg("updated language")
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Cancel stops the connection's pumps; cleanup follows from the read loop.
func (r *Registry) Cancel(id core.ConnID) bool {
	r.mu.RLock()
	e, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("canceled connection")
	return true
}
