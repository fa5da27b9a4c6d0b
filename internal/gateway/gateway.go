package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/curax/triage/internal/engine"
	"github.com/curax/triage/internal/types"
)

// Gateway feeds user turns into the engine through per-session lanes,
// giving the engine the single-writer-per-session guarantee it requires.
type Gateway struct {
	engine *engine.Engine
	Queue  *Queue
	retry  *RetryPolicy

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Gateway around the engine with the given concurrency limit
// for simultaneous turn processing.
func New(eng *engine.Engine, maxConcurrent ...int64) *Gateway {
	var concurrency int64 = 2
	if len(maxConcurrent) > 0 && maxConcurrent[0] > 0 {
		concurrency = maxConcurrent[0]
	}
	g := &Gateway{
		engine: eng,
		Queue:  NewQueue(concurrency),
		retry:  DefaultRetryPolicy(),
	}
	g.Queue.SetProcessor(g.processTurn)
	return g
}

// Start initialises the gateway's context and starts the internal queue.
func (g *Gateway) Start(ctx context.Context) {
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.Queue.Start(g.ctx)
}

// Stop cancels the gateway context, stops the queue, and waits for any
// outstanding work to finish.
func (g *Gateway) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.Queue.Stop()
	g.wg.Wait()
}

// TurnOption configures optional behavior on a queued Turn.
type TurnOption func(*Turn)

// WithOnComplete sets a callback invoked with the turn's result.
func WithOnComplete(fn func(*engine.TurnResult)) TurnOption {
	return func(t *Turn) { t.OnComplete = fn }
}

// WithOnError sets a callback invoked when the turn ultimately fails.
func WithOnError(fn func(error)) TurnOption {
	return func(t *Turn) { t.OnError = fn }
}

// Submit wraps the input in a Turn and enqueues it on the session's lane.
func (g *Gateway) Submit(sessionID types.SessionID, input engine.TurnInput, opts ...TurnOption) error {
	turn := NewTurn(sessionID, input)
	for _, opt := range opts {
		opt(turn)
	}
	return g.Queue.Enqueue(turn)
}

func (g *Gateway) processTurn(turn *Turn) error {
	now := time.Now()
	turn.StartedAt = &now
	turn.Status = TurnStatusRunning

	var result *engine.TurnResult
	err := g.retry.Execute(func() error {
		turn.Attempts++
		var turnErr error
		result, turnErr = g.engine.ProcessTurn(turn.Ctx, turn.SessionID, turn.Input)
		return turnErr
	})

	ended := time.Now()
	turn.EndedAt = &ended
	if err != nil {
		turn.Status = TurnStatusFailed
		turn.Error = err
		return err
	}
	turn.Status = TurnStatusComplete
	if turn.OnComplete != nil {
		turn.OnComplete(result)
	}
	return nil
}
