// Package orch wires the presence table, live rooms, calls and the message
// publisher into the operations the transport layer calls.
package orch

import (
	"context"
	"errors"

	"github.com/dkeye/polyglot/internal/app"
	"github.com/dkeye/polyglot/internal/app/chat"
	"github.com/dkeye/polyglot/internal/core"
	"github.com/dkeye/polyglot/internal/domain"
	"github.com/dkeye/polyglot/internal/metrics"
	"github.com/dkeye/polyglot/internal/protocol"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownConn = errors.New("unknown connection")
	ErrNotInRoom   = errors.New("connection is not in that room")
)

type Orchestrator struct {
	Registry  *app.Registry
	Rooms     *app.RoomRegistry
	Calls     *app.CallBook
	Chat      *chat.Publisher
	Directory core.Directory
	Policy    app.Policy
	Metrics   metrics.Collector
}

func (o *Orchestrator) collector() metrics.Collector {
	if o.Metrics == nil {
		return metrics.Nop{}
	}
	return o.Metrics
}

// Connect registers a live connection for p. cancel stops the connection's
// pumps when the server decides to drop it.
func (o *Orchestrator) Connect(conn core.SignalConnection, p domain.Participant, cancel context.CancelFunc) core.ConnID {
	id := o.Registry.Register(conn, p, cancel)
	o.collector().ClientConnected()
	return id
}

// Disconnect runs connection cleanup once: the room subscription goes away
// and a call that depended on this connection is ended for the peer.
// Further calls for the same id are no-ops.
func (o *Orchestrator) Disconnect(id core.ConnID) {
	p, ok := o.Registry.Unregister(id)
	if !ok {
		return
	}
	o.collector().ClientDisconnected()
	o.Rooms.Leave(id)

	call, ended := o.Calls.DropConnection(id, p.ID, o.Registry.Online)
	if !ended {
		return
	}
	peer := call.Peer(p.ID)
	n := o.deliver(peer, protocol.NewCallEnded(p.ID, peer))
	log.Info().Str("module", "app.orch").Str("conn", string(id)).Str("call", call.ID).Str("peer", string(peer)).Int("delivered", n).Msg("call ended by disconnect")
}

// deliver sends v to every live connection of uid and reports how many
// accepted it. An offline uid yields zero.
func (o *Orchestrator) deliver(uid domain.UserID, v any) int {
	f, err := protocol.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Msg("encode event")
		return 0
	}
	n := 0
	for _, c := range o.Registry.Resolve(uid) {
		if err := c.Conn.TrySend(f); err != nil {
			log.Warn().Err(err).Str("module", "app.orch").Str("conn", string(c.ID)).Msg("deliver failed")
			o.applyPolicy(c.ID, "")
			continue
		}
		n++
	}
	return n
}

func (o *Orchestrator) applyPolicy(id core.ConnID, roomID domain.RoomID) {
	if o.Policy == nil {
		return
	}
	switch o.Policy.OnBackPressure(id, string(roomID)) {
	case app.KickMember:
		o.Registry.Cancel(id)
	case app.DropFrame:
		log.Debug().Str("module", "app.orch").Str("conn", string(id)).Str("room", string(roomID)).Msg("frame dropped for slow consumer")
	}
}

// SetLanguage stores a new preferred language for the connection's identity.
func (o *Orchestrator) SetLanguage(ctx context.Context, id core.ConnID, language string) (domain.Participant, error) {
	p, ok := o.Registry.Participant(id)
	if !ok {
		return domain.Participant{}, ErrUnknownConn
	}
	language, err := o.SetUserLanguage(ctx, p.ID, language)
	if err != nil {
		return domain.Participant{}, err
	}
	p.Language = language
	return p, nil
}

// SetUserLanguage updates the directory and every live connection of uid.
// It returns the normalized language code.
func (o *Orchestrator) SetUserLanguage(ctx context.Context, uid domain.UserID, language string) (string, error) {
	language, err := domain.NormalizeLanguage(language)
	if err != nil {
		return "", err
	}
	if err := o.Directory.SetLanguage(ctx, uid, language); err != nil {
		return "", err
	}
	o.Registry.UpdateLanguage(uid, language)
	return language, nil
}
