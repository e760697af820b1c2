package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dkeye/polyglot/internal/app"
	"github.com/dkeye/polyglot/internal/app/chat"
	"github.com/dkeye/polyglot/internal/app/orch"
	"github.com/dkeye/polyglot/internal/core"
	"github.com/dkeye/polyglot/internal/domain"
	"github.com/dkeye/polyglot/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("conn", string(c.id)).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("ping failed")
				return
			}
		}
	}
}

// readPump handles one event at a time, so events from a connection are
// processed in the order they were sent. Leaving it runs disconnect cleanup.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(c.id)).Msg("readPump closing")
		cancel()
		c.Close()
		ctl.Orch.Disconnect(c.id)
	}()

	pongWait := ctl.opts.pongWait()
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("readPump read error")
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		ctl.handleSignal(ctx, c, data)
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, c *WsSignalConn, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(c, protocol.ErrorBadPayload)
		return
	}

	switch env.Type {
	case protocol.TypeJoinRoom:
		ctl.handleJoin(ctx, c, data)
	case protocol.TypeLeaveRoom:
		ctl.handleLeave(c)
	case protocol.TypeRoomMessage:
		ctl.handleRoomMessage(ctx, c, data)
	case protocol.TypeVideoOffer:
		ctl.handleOffer(c, data)
	case protocol.TypeVideoAnswer:
		ctl.handleAnswer(c, data)
	case protocol.TypeICECandidate:
		ctl.handleCandidate(c, data)
	case protocol.TypeCallEnded:
		ctl.handleCallEnded(c, data)
	case protocol.TypeSetLanguage:
		ctl.handleSetLanguage(ctx, c, data)
	case protocol.TypeWhoAmI:
		ctl.sendSession(c)
	case protocol.TypePing:
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.sendError(c, protocol.ErrorUnknownType)
	}
}

// decode unmarshals and validates an event, answering bad_payload itself.
func (ctl *SignalWSController) decode(c *WsSignalConn, data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("bad payload")
		ctl.sendError(c, protocol.ErrorBadPayload)
		return false
	}
	if err := ctl.validate.Struct(v); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("invalid payload")
		ctl.sendError(c, protocol.ErrorBadPayload)
		return false
	}
	return true
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, v any) {
	f, err := protocol.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := c.TrySend(f); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("sendJSON")
	}
}

func (ctl *SignalWSController) sendError(c *WsSignalConn, code string) {
	ctl.sendJSON(c, protocol.NewError(code))
}

// errorCode maps application errors onto wire error codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, core.ErrRoomNotFound):
		return protocol.ErrorRoomNotFound
	case errors.Is(err, core.ErrNotMember):
		return protocol.ErrorNotAuthorized
	case errors.Is(err, orch.ErrNotInRoom):
		return protocol.ErrorNotInRoom
	case errors.Is(err, chat.ErrNotSaved):
		return protocol.ErrorNotSaved
	case errors.Is(err, app.ErrSelfCall):
		return protocol.ErrorBadPayload
	case errors.Is(err, domain.ErrLanguageInvalid):
		return protocol.ErrorInvalidLanguage
	default:
		return protocol.ErrorInternal
	}
}
