package onboarding

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fieldlabs/profile-service/internal/platform/log"
)

var stepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "profile_onboarding_steps_total", Help: "processed onboarding steps",
}, []string{"action", "status"})

// Executor performs one onboarding action for a run.
type Executor func(ctx context.Context, runID uuid.UUID, payload map[string]any) error

// Manager polls the step queue and dispatches each claimed step to the
// executor registered for its action. Register all executors before calling
// RunPoller; the registry is not locked.
type Manager struct {
	store     *Store
	executors map[string]Executor
	log       *log.Logger
	ticker    *time.Ticker
}

func NewManager(store *Store, interval time.Duration, logger *log.Logger) *Manager {
	return &Manager{
		store:     store,
		executors: make(map[string]Executor),
		log:       logger,
		ticker:    time.NewTicker(interval),
	}
}

func (m *Manager) Store() *Store {
	return m.store
}

func (m *Manager) Register(action string, fn Executor) {
	m.executors[action] = fn
}

func (m *Manager) RunPoller(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Manager) tick(ctx context.Context) {
	step, ok, err := m.store.ClaimNext(ctx)
	if err != nil {
		m.log.Error("failed to claim onboarding step", log.Err(err))
		return
	}
	if !ok {
		return
	}

	status, errText := "done", ""
	if err := m.execute(ctx, step); err != nil {
		status, errText = "failed", err.Error()
		m.log.Warn("onboarding step failed",
			log.Str("run_id", step.RunID.String()),
			log.Str("action", step.Action),
			log.Err(err))
	}
	stepsTotal.WithLabelValues(step.Action, status).Inc()

	if err := m.store.MarkStep(ctx, step.RunID, step.StepNo, status, errText); err != nil {
		m.log.Error("failed to mark onboarding step", log.Err(err))
		return
	}
	if status == "done" {
		if err := m.store.TryCompleteRun(ctx, step.RunID); err != nil {
			m.log.Error("failed to complete onboarding run", log.Err(err))
		}
	}
}

func (m *Manager) execute(ctx context.Context, step *ClaimedStep) error {
	if fn, ok := m.executors[step.Action]; ok {
		return fn(ctx, step.RunID, step.Payload)
	}
	m.log.Info("no executor for onboarding action",
		log.Str("run_id", step.RunID.String()),
		log.Str("action", step.Action))

	return nil
}
