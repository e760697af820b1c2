package orch

import (
	"encoding/json"
	"errors"

	"github.com/dkeye/polyglot/internal/app"
	"github.com/dkeye/polyglot/internal/core"
	"github.com/dkeye/polyglot/internal/domain"
	"github.com/dkeye/polyglot/internal/metrics"
	"github.com/dkeye/polyglot/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Offer relays a call offer to every live connection of to. The from field
// is always the sender's identity. Offers to an offline identity are
// dropped without recording a call. Only a new call rings the callee; a
// renegotiation offer inside an existing call is relayed without
// call-incoming.
func (o *Orchestrator) Offer(id core.ConnID, to domain.UserID, offer json.RawMessage) error {
	from, ok := o.Registry.Participant(id)
	if !ok {
		return ErrUnknownConn
	}
	logger := log.With().Str("module", "app.orch").Str("from", string(from.ID)).Str("to", string(to)).Logger()
	if !o.Registry.Online(to) {
		o.collector().SignalDropped(protocol.TypeVideoOffer, metrics.DropOffline)
		logger.Debug().Msg("offer target offline")
		return nil
	}

	call, created, err := o.Calls.Offer(from.ID, id, to)
	switch {
	case errors.Is(err, app.ErrBusy):
		o.collector().SignalDropped(protocol.TypeVideoOffer, metrics.DropBusy)
		o.deliver(from.ID, protocol.CallBusy{Type: protocol.TypeCallBusy, To: string(to)})
		logger.Info().Msg("offer target busy")
		return nil
	case err != nil:
		return err
	}

	n := o.deliver(to, protocol.VideoOffer{Type: protocol.TypeVideoOffer, Offer: offer, To: string(to), From: string(from.ID)})
	if created {
		o.deliver(to, protocol.CallIncoming{Type: protocol.TypeCallIncoming, From: string(from.ID)})
	}
	o.collector().SignalForwarded(protocol.TypeVideoOffer, n)
	logger.Debug().Str("call", call.ID).Bool("renegotiation", !created).Int("delivered", n).Msg("offer relayed")
	return nil
}

// Answer relays the answer back to the caller and marks the call active.
// Answers for a call that no longer exists are dropped.
func (o *Orchestrator) Answer(id core.ConnID, to domain.UserID, answer json.RawMessage) error {
	from, ok := o.Registry.Participant(id)
	if !ok {
		return ErrUnknownConn
	}
	if _, ok := o.Calls.Answer(from.ID, id, to); !ok {
		o.collector().SignalDropped(protocol.TypeVideoAnswer, metrics.DropNoCall)
		return nil
	}
	n := o.deliver(to, protocol.VideoAnswer{Type: protocol.TypeVideoAnswer, Answer: answer, To: string(to), From: string(from.ID)})
	o.collector().SignalForwarded(protocol.TypeVideoAnswer, n)
	return nil
}

// Candidate relays one ICE candidate while the pair shares a call.
func (o *Orchestrator) Candidate(id core.ConnID, to domain.UserID, candidate json.RawMessage) error {
	from, ok := o.Registry.Participant(id)
	if !ok {
		return ErrUnknownConn
	}
	if _, ok := o.Calls.Between(from.ID, to); !ok {
		o.collector().SignalDropped(protocol.TypeICECandidate, metrics.DropNoCall)
		return nil
	}
	n := o.deliver(to, protocol.ICECandidate{Type: protocol.TypeICECandidate, Candidate: candidate, To: string(to), From: string(from.ID)})
	o.collector().SignalForwarded(protocol.TypeICECandidate, n)
	return nil
}

// EndCall ends the call between the sender and to and tells to once.
func (o *Orchestrator) EndCall(id core.ConnID, to domain.UserID) error {
	from, ok := o.Registry.Participant(id)
	if !ok {
		return ErrUnknownConn
	}
	if _, ok := o.Calls.End(from.ID, to); !ok {
		o.collector().SignalDropped(protocol.TypeCallEnded, metrics.DropNoCall)
		return nil
	}
	n := o.deliver(to, protocol.NewCallEnded(from.ID, to))
	o.collector().SignalForwarded(protocol.TypeCallEnded, n)
	return nil
}
