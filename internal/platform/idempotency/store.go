package idempotency

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fieldlabs/profile-service/internal/platform/log"
)

type Querier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Store remembers the outcome of a write keyed by the client-supplied
// Idempotency-Key header so retries replay the original response.
type Store struct {
	q   Querier
	log *log.Logger
}

func NewStore(q Querier, logger *log.Logger) *Store {
	return &Store{q: q, log: logger}
}

func (s *Store) Save(ctx context.Context, key, route string, profileID uuid.UUID, status int) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO idempotency_keys (key, route, profile_id, status_code)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (key, route) DO NOTHING`, key, route, profileID, status)
	if err != nil {
		s.log.Error("failed to save idempotency key", log.Err(err))
		return err
	}

	return nil
}

type Result struct {
	ProfileID uuid.UUID
	Status    int
	Found     bool
}

func (s *Store) Get(ctx context.Context, key, route string) (*Result, error) {
	var r Result
	err := s.q.QueryRow(ctx, `
		SELECT profile_id, status_code FROM idempotency_keys
		WHERE key = $1 AND route = $2 AND ttl_at > now()`, key, route).Scan(&r.ProfileID, &r.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return &Result{Found: false}, nil
	}
	if err != nil {
		s.log.Error("failed to get idempotency key", log.Err(err))
		return nil, err
	}
	r.Found = true

	return &r, nil
}
