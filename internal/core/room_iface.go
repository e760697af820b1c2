package core

import "github.com/dkeye/polyglot/internal/domain"

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []ConnID
}

type RoomInfo struct {
	ID   domain.RoomID `json:"id"`
	Live int           `json:"live"`
}
