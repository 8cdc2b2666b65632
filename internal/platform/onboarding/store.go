package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldlabs/profile-service/internal/platform/log"
)

// Store persists onboarding runs and their ordered steps. Steps are claimed
// with FOR UPDATE SKIP LOCKED so several pollers can share the queue.
type Store struct {
	pool *pgxpool.Pool
	log  *log.Logger
}

func NewStore(pool *pgxpool.Pool, logger *log.Logger) *Store {
	return &Store{pool: pool, log: logger}
}

type Step struct {
	StepNo  int
	Name    string
	Action  string
	Payload map[string]any
}

type ClaimedStep struct {
	RunID   uuid.UUID
	StepNo  int
	Name    string
	Action  string
	Payload map[string]any
}

func (s *Store) Create(ctx context.Context, name string, steps []Step, data map[string]any) (uuid.UUID, error) {
	id := uuid.New()
	b, err := json.Marshal(data)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal run data: %w", err)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.log.Error("failed to rollback tx", log.Err(err))
		}
	}()

	if _, err := tx.Exec(ctx, `INSERT INTO onboarding_runs(id, name, state, data) VALUES ($1,$2,'pending',$3)`, id, name, b); err != nil {
		return uuid.Nil, err
	}
	for _, st := range steps {
		sb, err := json.Marshal(st.Payload)
		if err != nil {
			return uuid.Nil, fmt.Errorf("marshal step payload: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO onboarding_steps(run_id, step_no, name, status, action, payload)
			VALUES ($1,$2,$3,'pending',$4,$5)`,
			id, st.StepNo, st.Name, st.Action, sb); err != nil {
			return uuid.Nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, err
	}

	return id, nil
}

// ClaimNext picks the oldest pending step and marks it started. The second
// return is false when the queue is empty.
func (s *Store) ClaimNext(ctx context.Context) (*ClaimedStep, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.log.Error("failed to rollback tx", log.Err(err))
		}
	}()

	var (
		st ClaimedStep
		pl []byte
	)
	row := tx.QueryRow(ctx, `
		SELECT os.run_id, os.step_no, os.name, os.action, os.payload
		FROM onboarding_steps os
		JOIN onboarding_runs r ON r.id = os.run_id
		WHERE os.status = 'pending' AND r.state = 'pending'
		ORDER BY r.created_at, os.step_no
		LIMIT 1
		FOR UPDATE SKIP LOCKED`)
	if err := row.Scan(&st.RunID, &st.StepNo, &st.Name, &st.Action, &pl); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if _, err := tx.Exec(ctx, `UPDATE onboarding_steps SET status='started', started_at=now() WHERE run_id=$1 AND step_no=$2`, st.RunID, st.StepNo); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	if err := json.Unmarshal(pl, &st.Payload); err != nil {
		return nil, false, fmt.Errorf("unmarshal step payload: %w", err)
	}

	return &st, true, nil
}

func (s *Store) MarkStep(ctx context.Context, runID uuid.UUID, stepNo int, status, errText string) error {
	_, err := s.pool.Exec(ctx, `UPDATE onboarding_steps SET status=$3, error=$4, finished_at=now() WHERE run_id=$1 AND step_no=$2`,
		runID, stepNo, status, nullIfEmpty(errText))

	return err
}

// TryCompleteRun flips the run to completed once no step remains unfinished.
func (s *Store) TryCompleteRun(ctx context.Context, runID uuid.UUID) error {
	var remaining int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM onboarding_steps WHERE run_id=$1 AND status <> 'done'`, runID).Scan(&remaining); err != nil {
		return err
	}
	if remaining == 0 {
		_, err := s.pool.Exec(ctx, `UPDATE onboarding_runs SET state='completed', updated_at=now() WHERE id=$1`, runID)
		return err
	}

	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}

	return s
}
