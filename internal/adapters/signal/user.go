package signal

import (
	"context"

	"github.com/dkeye/polyglot/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleSetLanguage(ctx context.Context, conn *WsSignalConn, data []byte) {
	var p protocol.SetLanguage
	if !ctl.decode(conn, data, &p) {
		return
	}
	if _, err := ctl.Orch.SetLanguage(ctx, conn.id, p.Language); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(conn.id)).Msg("set language")
		ctl.sendError(conn, errorCode(err))
		return
	}
	ctl.sendSession(conn)
}

// sendSession tells the client who it is, where it is, and which ICE
// servers to use for calls.
func (ctl *SignalWSController) sendSession(conn *WsSignalConn) {
	p, ok := ctl.Orch.Registry.Participant(conn.id)
	if !ok {
		return
	}
	resp := protocol.Session{
		Type:       protocol.TypeSession,
		UserID:     string(p.ID),
		Name:       p.DisplayName(),
		Language:   p.Lang(),
		ICEServers: ctl.opts.ICEServers,
	}
	if roomID, ok := ctl.Orch.RoomOf(conn.id); ok {
		resp.Room = string(roomID)
	}
	ctl.sendJSON(conn, resp)
}
