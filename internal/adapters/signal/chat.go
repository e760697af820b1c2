package signal

import (
	"context"

	"github.com/dkeye/polyglot/internal/domain"
	"github.com/dkeye/polyglot/internal/protocol"
)

// handleRoomMessage publishes into the sender's room. Only a failed save is
// reported back; the sender already shows the message locally.
func (ctl *SignalWSController) handleRoomMessage(ctx context.Context, conn *WsSignalConn, data []byte) {
	var p protocol.RoomMessage
	if !ctl.decode(conn, data, &p) {
		return
	}
	if !ctl.limiter.Allow(conn.user) {
		ctl.sendError(conn, protocol.ErrorRateLimited)
		return
	}
	_, err := ctl.Orch.Publish(ctx, conn.id, domain.RoomID(p.RoomID), p.Message, protocol.SentAtTime(p.SentAt))
	if err != nil {
		ctl.sendError(conn, errorCode(err))
	}
}
