// Package scheduler runs periodic model health checks on a cron schedule
// and flips registry availability based on the results.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/curax/triage/internal/model"
	"github.com/curax/triage/pkg/llm"
)

// Prober checks whether one model can serve traffic.
type Prober interface {
	Probe(ctx context.Context, m *model.Model) error
}

// CompleterProbe probes a model by issuing a minimal completion.
type CompleterProbe struct {
	Completer llm.Completer
	Timeout   time.Duration
}

func (p CompleterProbe) Probe(ctx context.Context, m *model.Model) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := p.Completer.Complete(ctx, m.ID, "", "ping", llm.Sampling{MaxTokens: 1})
	return err
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Scheduler drives the health-check loop.
type Scheduler struct {
	registry *model.Registry
	prober   Prober
	schedule string
	logger   *slog.Logger
	cron     *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Scheduler that probes every model on the given cron
// schedule (e.g. "@every 1m").
func New(registry *model.Registry, prober Prober, schedule string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		registry: registry,
		prober:   prober,
		schedule: schedule,
		logger:   logger,
		cron:     cron.New(cron.WithParser(cronParser)),
	}
}

// Start registers the health-check entry and starts the cron ticker.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if _, err := s.cron.AddFunc(s.schedule, func() { s.CheckAll(s.ctx) }); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("health checks scheduled", "schedule", s.schedule)
	return nil
}

// Stop stops the cron ticker and cancels in-flight probes.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.cron.Stop()
}

// CheckAll probes every model in the catalog sequentially and updates its
// availability flag. A probe failure marks the model unavailable; a later
// success brings it back.
func (s *Scheduler) CheckAll(ctx context.Context) {
	for _, m := range s.registry.List() {
		if ctx.Err() != nil {
			return
		}
		err := s.prober.Probe(ctx, m)
		available := err == nil
		if available != m.Available {
			s.logger.Info("model availability changed",
				"model_id", m.ID,
				"available", available,
				"error", err)
		}
		if setErr := s.registry.SetAvailable(m.ID, available); setErr != nil {
			s.logger.Error("failed to update availability", "model_id", m.ID, "error", setErr)
		}
	}
}
