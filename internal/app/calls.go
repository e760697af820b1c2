package app

import (
	"errors"
	"sync"
	"time"

	"github.com/dkeye/polyglot/internal/core"
	"github.com/dkeye/polyglot/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrBusy     = errors.New("participant is in another call")
	ErrSelfCall = errors.New("cannot call yourself")
)

// Call is a tracked call session between two identities. CalleeConn stays
// empty until one of the callee's devices answers.
type Call struct {
	ID         string
	Caller     domain.UserID
	Callee     domain.UserID
	CallerConn core.ConnID
	CalleeConn core.ConnID
	State      domain.CallState
	StartedAt  time.Time
}

func (c Call) between(a, b domain.UserID) bool {
	return (c.Caller == a && c.Callee == b) || (c.Caller == b && c.Callee == a)
}

// Peer returns the other side of the call.
func (c Call) Peer(of domain.UserID) domain.UserID {
	if c.Caller == of {
		return c.Callee
	}
	return c.Caller
}

// CallBook owns call sessions. Each identity takes part in at most one call.
type CallBook struct {
	mu     sync.Mutex
	byUser map[domain.UserID]*Call
}

func NewCallBook() *CallBook {
	return &CallBook{byUser: make(map[domain.UserID]*Call)}
}

// Offer records caller ringing callee and reports whether a new call was
// created. An offer between two parties that already share a call renews it
// (renegotiation) and reports false; otherwise either party being in a call
// yields ErrBusy.
func (cb *CallBook) Offer(caller domain.UserID, callerConn core.ConnID, callee domain.UserID) (Call, bool, error) {
	if caller == callee {
		return Call{}, false, ErrSelfCall
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if c, ok := cb.byUser[caller]; ok && c.between(caller, callee) {
		if c.Caller == caller {
			c.CallerConn = callerConn
		} else {
			c.CalleeConn = callerConn
		}
		return *c, false, nil
	}
	if _, ok := cb.byUser[caller]; ok {
		return Call{}, false, ErrBusy
	}
	if _, ok := cb.byUser[callee]; ok {
		return Call{}, false, ErrBusy
	}

	c := &Call{
		ID:         uuid.NewString(),
		Caller:     caller,
		Callee:     callee,
		CallerConn: callerConn,
		State:      domain.CallOffered,
		StartedAt:  time.Now(),
	}
	cb.byUser[caller] = c
	cb.byUser[callee] = c
	log.Info().Str("module", "app.calls").Str("call", c.ID).Str("caller", string(caller)).Str("callee", string(callee)).Msg("call offered")
	return *c, true, nil
}

// Answer marks the call active and pins the answering connection. Only the
// callee answers, and only towards the caller; anything else reports false,
// as does an answer for a call that no longer exists.
func (cb *CallBook) Answer(from domain.UserID, fromConn core.ConnID, to domain.UserID) (Call, bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	c, ok := cb.byUser[from]
	if !ok || c.Callee != from || c.Caller != to {
		return Call{}, false
	}
	c.CalleeConn = fromConn
	if c.State != domain.CallActive {
		c.State = domain.CallActive
		log.Info().Str("module", "app.calls").Str("call", c.ID).Msg("call active")
	}
	return *c, true
}

// Between returns the live call shared by a and b.
func (cb *CallBook) Between(a, b domain.UserID) (Call, bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	c, ok := cb.byUser[a]
	if !ok || !c.between(a, b) {
		return Call{}, false
	}
	return *c, true
}

// Of returns the live call uid takes part in.
func (cb *CallBook) Of(uid domain.UserID) (Call, bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	c, ok := cb.byUser[uid]
	if !ok {
		return Call{}, false
	}
	return *c, true
}

// End removes the call between a and b. The second End of the same call
// reports false.
func (cb *CallBook) End(a, b domain.UserID) (Call, bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	c, ok := cb.byUser[a]
	if !ok || !c.between(a, b) {
		return Call{}, false
	}
	return cb.endLocked(c), true
}

func (cb *CallBook) endLocked(c *Call) Call {
	delete(cb.byUser, c.Caller)
	delete(cb.byUser, c.Callee)
	c.State = domain.CallEnded
	log.Info().Str("module", "app.calls").Str("call", c.ID).Dur("duration", time.Since(c.StartedAt)).Msg("call ended")
	return *c
}

// DropConnection ends the call that depended on a connection that just
// went away. online reports whether uid still has any live connection.
// A ringing callee keeps the call while another device could still answer.
func (cb *CallBook) DropConnection(id core.ConnID, uid domain.UserID, online func(domain.UserID) bool) (Call, bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	c, ok := cb.byUser[uid]
	if !ok {
		return Call{}, false
	}
	switch {
	case c.CallerConn == id || c.CalleeConn == id:
	case !online(uid):
	default:
		return Call{}, false
	}
	return cb.endLocked(c), true
}

func (cb *CallBook) Count() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return len(cb.byUser) / 2
}
