package signal

import (
	"github.com/dkeye/polyglot/internal/domain"
	"github.com/dkeye/polyglot/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Call events carry opaque payloads; the relay never looks inside them.

func (ctl *SignalWSController) handleOffer(conn *WsSignalConn, data []byte) {
	var p protocol.VideoOffer
	if !ctl.decode(conn, data, &p) {
		return
	}
	if err := ctl.Orch.Offer(conn.id, domain.UserID(p.To), p.Offer); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(conn.id)).Msg("offer")
		ctl.sendError(conn, errorCode(err))
	}
}

func (ctl *SignalWSController) handleAnswer(conn *WsSignalConn, data []byte) {
	var p protocol.VideoAnswer
	if !ctl.decode(conn, data, &p) {
		return
	}
	if err := ctl.Orch.Answer(conn.id, domain.UserID(p.To), p.Answer); err != nil {
		ctl.sendError(conn, errorCode(err))
	}
}

func (ctl *SignalWSController) handleCandidate(conn *WsSignalConn, data []byte) {
	var p protocol.ICECandidate
	if !ctl.decode(conn, data, &p) {
		return
	}
	if err := ctl.Orch.Candidate(conn.id, domain.UserID(p.To), p.Candidate); err != nil {
		ctl.sendError(conn, errorCode(err))
	}
}

func (ctl *SignalWSController) handleCallEnded(conn *WsSignalConn, data []byte) {
	var p protocol.CallEnded
	if !ctl.decode(conn, data, &p) {
		return
	}
	if err := ctl.Orch.EndCall(conn.id, domain.UserID(p.To)); err != nil {
		ctl.sendError(conn, errorCode(err))
	}
}
