package signal

import (
	"context"

	"github.com/dkeye/polyglot/internal/domain"
	"github.com/dkeye/polyglot/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleJoin(ctx context.Context, conn *WsSignalConn, data []byte) {
	var p protocol.JoinRoom
	if !ctl.decode(conn, data, &p) {
		return
	}
	info, err := ctl.Orch.Join(ctx, conn.id, domain.RoomID(p.RoomID))
	if err != nil {
		ctl.sendError(conn, errorCode(err))
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(conn.id)).Str("room", p.RoomID).Msg("join")
	ctl.sendJSON(conn, protocol.RoomJoined{Type: protocol.TypeRoomJoined, RoomID: string(info.ID), Live: info.Live})
}

// handleLeave leaves the current room; the connection stays open.
func (ctl *SignalWSController) handleLeave(conn *WsSignalConn) {
	roomID, _ := ctl.Orch.Leave(conn.id)
	log.Info().Str("module", "signal").Str("conn", string(conn.id)).Str("room", string(roomID)).Msg("leave")
	ctl.sendJSON(conn, protocol.RoomLeft{Type: protocol.TypeRoomLeft, RoomID: string(roomID)})
}
