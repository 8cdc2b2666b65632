//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"

	"github.com/fieldlabs/profile-service/internal/platform/idempotency"
	"github.com/fieldlabs/profile-service/internal/platform/onboarding"
	"github.com/fieldlabs/profile-service/internal/profile/domain"
	pgrepo "github.com/fieldlabs/profile-service/internal/profile/repository/postgres"
)

func withDB(t *testing.T, fn func(ctx context.Context, pool *pgxpool.Pool)) {
	t.Helper()
	ctx := context.Background()

	pg, err := postgres.Run(ctx, "postgres:16",
		postgres.WithDatabase("profiles"),
		postgres.WithUsername("app"),
		postgres.WithPassword("app"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, pg)
	if err != nil {
		t.Fatalf("container: %v", err)
	}

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("dsn: %v", err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("sql open: %v", err)
	}
	defer db.Close()
	migs := []string{
		"../../../../migrations/001_init.sql",
		"../../../../migrations/002_outbox_idempotency.sql",
		"../../../../migrations/003_onboarding.sql",
	}
	for _, p := range migs {
		b, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("read %s: %v", p, err)
		}
		if _, err := db.Exec(string(b)); err != nil {
			t.Fatalf("apply %s: %v", p, err)
		}
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool: %v", err)
	}
	defer pool.Close()

	fn(ctx, pool)
}

func TestRepo_Create_Get_List_Update_Outbox(t *testing.T) {
	withDB(t, func(ctx context.Context, pool *pgxpool.Pool) {
		r := pgrepo.New(pool, zap.NewNop())

		tx, err := pool.Begin(ctx)
		if err != nil {
			t.Fatal(err)
		}
		defer tx.Rollback(ctx)

		p, err := domain.New("Test", 20, "test@example.com", []domain.Address{
			{Street: "Main 1", City: "Springfield", Zip: "12345"},
		}, []string{"beta"})
		if err != nil {
			t.Fatal(err)
		}
		if err := r.CreateInTx(ctx, tx, p); err != nil {
			t.Fatal(err)
		}
		if err := r.AddOutboxInTx(ctx, tx, p.ID, "profile.created", p); err != nil {
			t.Fatal(err)
		}
		if err := tx.Commit(ctx); err != nil {
			t.Fatal(err)
		}

		got, err := r.Get(ctx, p.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Email != p.Email || len(got.Addresses) != 1 {
			t.Fatalf("roundtrip mismatch: %+v", got)
		}

		page, err := r.List(ctx, 10, "")
		if err != nil || len(page.Profiles) == 0 {
			t.Fatalf("list err: %v len=%d", err, len(page.Profiles))
		}

		tx2, err := pool.Begin(ctx)
		if err != nil {
			t.Fatal(err)
		}
		defer tx2.Rollback(ctx)

		if err := r.UpdateStatusInTx(ctx, tx2, p.ID, domain.StatusSuspended); err != nil {
			t.Fatal(err)
		}
		if err := r.UpdateEmailInTx(ctx, tx2, p.ID, "new@example.com"); err != nil {
			t.Fatal(err)
		}
		if err := r.AddOutboxInTx(ctx, tx2, p.ID, "profile.suspended", map[string]any{"id": p.ID}); err != nil {
			t.Fatal(err)
		}
		if err := tx2.Commit(ctx); err != nil {
			t.Fatal(err)
		}

		var cnt int
		if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE aggregate_id=$1`, p.ID).Scan(&cnt); err != nil {
			t.Fatal(err)
		}
		if cnt != 2 {
			t.Fatalf("want 2 outbox rows, got %d", cnt)
		}

		if _, err := r.Get(ctx, uuid.New()); !errors.Is(err, pgrepo.ErrNotFound) {
			t.Fatalf("want ErrNotFound, got %v", err)
		}
	})
}

func TestRepo_ListPagination(t *testing.T) {
	withDB(t, func(ctx context.Context, pool *pgxpool.Pool) {
		r := pgrepo.New(pool, zap.NewNop())

		for i := 0; i < 5; i++ {
			p, err := domain.New("Test", 20, "test@example.com", nil, nil)
			if err != nil {
				t.Fatal(err)
			}
			tx, err := pool.Begin(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if err := r.CreateInTx(ctx, tx, p); err != nil {
				t.Fatal(err)
			}
			if err := tx.Commit(ctx); err != nil {
				t.Fatal(err)
			}
		}

		first, err := r.List(ctx, 3, "")
		if err != nil {
			t.Fatal(err)
		}
		if len(first.Profiles) != 3 || first.Next == "" {
			t.Fatalf("first page: len=%d next=%q", len(first.Profiles), first.Next)
		}
		second, err := r.List(ctx, 3, first.Next)
		if err != nil {
			t.Fatal(err)
		}
		if len(second.Profiles) != 2 || second.Next != "" {
			t.Fatalf("second page: len=%d next=%q", len(second.Profiles), second.Next)
		}
	})
}

func TestIdempotencyStore(t *testing.T) {
	withDB(t, func(ctx context.Context, pool *pgxpool.Pool) {
		s := idempotency.NewStore(pool, zap.NewNop())
		id := uuid.New()

		res, err := s.Get(ctx, "key-1", "POST:/api/v1/profiles")
		if err != nil || res.Found {
			t.Fatalf("expected miss: %+v err=%v", res, err)
		}
		if err := s.Save(ctx, "key-1", "POST:/api/v1/profiles", id, 201); err != nil {
			t.Fatal(err)
		}
		// replay of the same key is a no-op
		if err := s.Save(ctx, "key-1", "POST:/api/v1/profiles", uuid.New(), 500); err != nil {
			t.Fatal(err)
		}
		res, err = s.Get(ctx, "key-1", "POST:/api/v1/profiles")
		if err != nil {
			t.Fatal(err)
		}
		if !res.Found || res.ProfileID != id || res.Status != 201 {
			t.Fatalf("replay mismatch: %+v", res)
		}
	})
}

func TestOnboardingQueue(t *testing.T) {
	withDB(t, func(ctx context.Context, pool *pgxpool.Pool) {
		s := onboarding.NewStore(pool, zap.NewNop())
		profileID := uuid.New().String()

		runID, err := s.Create(ctx, "profile-onboarding", []onboarding.Step{
			{StepNo: 1, Name: "welcome", Action: "send-welcome-email", Payload: map[string]any{"profile_id": profileID}},
			{StepNo: 2, Name: "index", Action: "index-profile", Payload: map[string]any{"profile_id": profileID}},
		}, map[string]any{"profile_id": profileID})
		if err != nil {
			t.Fatal(err)
		}

		st, ok, err := s.ClaimNext(ctx)
		if err != nil || !ok {
			t.Fatalf("claim: ok=%v err=%v", ok, err)
		}
		if st.RunID != runID || st.StepNo != 1 || st.Action != "send-welcome-email" {
			t.Fatalf("claimed wrong step: %+v", st)
		}
		if err := s.MarkStep(ctx, st.RunID, st.StepNo, "done", ""); err != nil {
			t.Fatal(err)
		}
		if err := s.TryCompleteRun(ctx, runID); err != nil {
			t.Fatal(err)
		}

		var state string
		if err := pool.QueryRow(ctx, `SELECT state FROM onboarding_runs WHERE id=$1`, runID).Scan(&state); err != nil {
			t.Fatal(err)
		}
		if state != "pending" {
			t.Fatalf("run should stay pending with a step left, got %s", state)
		}

		st2, ok, err := s.ClaimNext(ctx)
		if err != nil || !ok || st2.StepNo != 2 {
			t.Fatalf("second claim: %+v ok=%v err=%v", st2, ok, err)
		}
		if err := s.MarkStep(ctx, st2.RunID, st2.StepNo, "done", ""); err != nil {
			t.Fatal(err)
		}
		if err := s.TryCompleteRun(ctx, runID); err != nil {
			t.Fatal(err)
		}
		if err := pool.QueryRow(ctx, `SELECT state FROM onboarding_runs WHERE id=$1`, runID).Scan(&state); err != nil {
			t.Fatal(err)
		}
		if state != "completed" {
			t.Fatalf("run state: got %s want completed", state)
		}

		if _, ok, err := s.ClaimNext(ctx); err != nil || ok {
			t.Fatalf("queue should be empty: ok=%v err=%v", ok, err)
		}
	})
}
