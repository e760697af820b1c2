package orch

import (
	"context"

	"github.com/dkeye/polyglot/internal/core"
	"github.com/dkeye/polyglot/internal/domain"
	"github.com/rs/zerolog/log"
)

// Join subscribes the connection to roomID once the directory allows it.
// A connection already in another room is moved.
func (o *Orchestrator) Join(ctx context.Context, id core.ConnID, roomID domain.RoomID) (core.RoomInfo, error) {
	c, ok := o.Registry.Get(id)
	if !ok {
		return core.RoomInfo{}, ErrUnknownConn
	}
	if err := o.Directory.Authorize(ctx, roomID, c.User); err != nil {
		log.Warn().Err(err).Str("module", "app.orch").Str("conn", string(id)).Str("room", string(roomID)).Msg("join refused")
		return core.RoomInfo{}, err
	}
	o.Rooms.Join(c, roomID)
	return core.RoomInfo{ID: roomID, Live: len(o.Rooms.MembersOf(roomID))}, nil
}

func (o *Orchestrator) Leave(id core.ConnID) (domain.RoomID, bool) {
	return o.Rooms.Leave(id)
}

// RoomOf reports the room the connection is subscribed to.
func (o *Orchestrator) RoomOf(id core.ConnID) (domain.RoomID, bool) {
	return o.Rooms.RoomOf(id)
}
