package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldlabs/profile-service/internal/profile/domain"
	"github.com/fieldlabs/profile-service/internal/platform/log"
)

var (
	ErrNotFound      = errors.New("profile not found")
	ErrInvalidCursor = errors.New("invalid cursor")
)

type Repo struct {
	pool *pgxpool.Pool
	log  *log.Logger
}

func New(pool *pgxpool.Pool, logger *log.Logger) *Repo {
	return &Repo{pool: pool, log: logger}
}

const profileColumns = `id, name, age, email, status, addresses, tags, created_at, updated_at`

func (r *Repo) CreateInTx(ctx context.Context, tx pgx.Tx, p *domain.Profile) error {
	addresses, err := json.Marshal(p.Addresses)
	if err != nil {
		return fmt.Errorf("marshal addresses: %w", err)
	}
	tags, err := json.Marshal(p.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO profiles (`+profileColumns+`)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.Name, p.Age, p.Email, p.Status, addresses, tags, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}

	return nil
}

func (r *Repo) AddOutboxInTx(ctx context.Context, tx pgx.Tx, aggregateID uuid.UUID, eventType string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO outbox (aggregate_id, aggregate_type, event_type, payload)
		VALUES ($1,'profile',$2,$3)`,
		aggregateID, eventType, b)
	if err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}

	return nil
}

func (r *Repo) UpdateStatusInTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.Status) error {
	ct, err := tx.Exec(ctx, `UPDATE profiles SET status=$2, updated_at=now() WHERE id=$1`, id, status)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *Repo) UpdateEmailInTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, email string) error {
	ct, err := tx.Exec(ctx, `UPDATE profiles SET email=$2, updated_at=now() WHERE id=$1`, id, email)
	if err != nil {
		return fmt.Errorf("update email: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *Repo) Get(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id=$1`, id)

	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return p, nil
}

type Page struct {
	Profiles []*domain.Profile `json:"profiles"`
	Next     string            `json:"next,omitempty"`
}

// List pages through profiles with a keyset cursor over (created_at, id).
func (r *Repo) List(ctx context.Context, limit int, cursor string) (*Page, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var (
		rows pgx.Rows
		err  error
	)
	if cursor == "" {
		rows, err = r.pool.Query(ctx, `
			SELECT `+profileColumns+`
			FROM profiles
			ORDER BY created_at, id
			LIMIT $1`, limit+1)
	} else {
		ts, id, cerr := parseCursor(cursor)
		if cerr != nil {
			return nil, cerr
		}
		rows, err = r.pool.Query(ctx, `
			SELECT `+profileColumns+`
			FROM profiles
			WHERE (created_at, id) > ($1, $2)
			ORDER BY created_at, id
			LIMIT $3`, ts, id, limit+1)
	}
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var page Page
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		page.Profiles = append(page.Profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	if len(page.Profiles) > limit {
		last := page.Profiles[limit-1]
		page.Profiles = page.Profiles[:limit]
		page.Next = fmt.Sprintf("%s|%s", last.CreatedAt.UTC().Format(time.RFC3339Nano), last.ID)
	}

	return &page, nil
}

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var (
		p         domain.Profile
		addresses []byte
		tags      []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Age, &p.Email, &p.Status, &addresses, &tags, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(addresses, &p.Addresses); err != nil {
		return nil, fmt.Errorf("unmarshal addresses: %w", err)
	}
	if err := json.Unmarshal(tags, &p.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}

	return &p, nil
}

func parseCursor(cursor string) (time.Time, uuid.UUID, error) {
	parts := strings.SplitN(cursor, "|", 2)
	if len(parts) != 2 {
		return time.Time{}, uuid.Nil, ErrInvalidCursor
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, uuid.Nil, ErrInvalidCursor
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return time.Time{}, uuid.Nil, ErrInvalidCursor
	}

	return ts, id, nil
}
