package gateway

import (
	"context"
	"time"

	"github.com/curax/triage/internal/engine"
	"github.com/curax/triage/internal/types"
)

// TurnStatus represents the lifecycle state of a queued Turn.
type TurnStatus string

const (
	TurnStatusQueued   TurnStatus = "queued"
	TurnStatusRunning  TurnStatus = "running"
	TurnStatusComplete TurnStatus = "complete"
	TurnStatusFailed   TurnStatus = "failed"
)

// Turn tracks a single queued user contribution to a session.
type Turn struct {
	ID         types.RequestID
	SessionID  types.SessionID
	Input      engine.TurnInput
	Status     TurnStatus
	Attempts   int
	CreatedAt  time.Time
	StartedAt  *time.Time
	EndedAt    *time.Time
	Error      error
	Ctx        context.Context
	OnComplete func(*engine.TurnResult)
	OnError    func(error)
}

// NewTurn creates a Turn in the Queued state for the given session.
func NewTurn(sessionID types.SessionID, input engine.TurnInput) *Turn {
	return &Turn{
		ID:        types.NewRequestID(),
		SessionID: sessionID,
		Input:     input,
		Status:    TurnStatusQueued,
		CreatedAt: time.Now(),
	}
}
