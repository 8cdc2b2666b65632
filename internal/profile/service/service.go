package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fieldlabs/profile-service/internal/platform/db"
	"github.com/fieldlabs/profile-service/internal/platform/log"
	"github.com/fieldlabs/profile-service/internal/platform/observability"
	"github.com/fieldlabs/profile-service/internal/profile/domain"
	"github.com/fieldlabs/profile-service/internal/profile/repository/postgres"
)

type Repo interface {
	CreateInTx(ctx context.Context, tx pgx.Tx, p *domain.Profile) error
	UpdateStatusInTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.Status) error
	UpdateEmailInTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, email string) error
	AddOutboxInTx(ctx context.Context, tx pgx.Tx, aggregateID uuid.UUID, eventType string, payload any) error

	Get(ctx context.Context, id uuid.UUID) (*domain.Profile, error)
	List(ctx context.Context, limit int, cursor string) (*Page, error)
}

type Page = postgres.Page

type Service struct {
	repo Repo
	tx   *db.TxManager
	log  *log.Logger
}

func New(repo Repo, tx *db.TxManager, logger *log.Logger) *Service {
	return &Service{repo: repo, tx: tx, log: logger}
}

var (
	profilesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "profiles_created_total",
		Help: "total number of profiles created",
	})
	statusChanged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "profile_status_changes_total",
		Help: "number of profile status changes",
	}, []string{"status"})
	emailsUpdated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "profile_email_updates_total",
		Help: "number of profile email updates",
	})
)

func (s *Service) Create(ctx context.Context, name string, age uint, email string, addresses []domain.Address, tags []string) (*domain.Profile, error) {
	ctx, span := observability.Tracer("profile.service").Start(ctx, "Create")
	defer span.End()

	p, err := domain.New(name, age, email, addresses, tags)
	if err != nil {
		return nil, err
	}
	if err := s.tx.InTx(ctx, func(tx pgx.Tx) error {
		if err := s.repo.CreateInTx(ctx, tx, p); err != nil {
			return err
		}

		return s.repo.AddOutboxInTx(ctx, tx, p.ID, "profile.created", p)
	}); err != nil {
		s.log.Error("failed to create profile", log.Err(err))
		return nil, err
	}

	profilesCreated.Inc()
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	ctx, span := observability.Tracer("profile.service").Start(ctx, "Get")
	defer span.End()

	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, limit int, cursor string) (*Page, error) {
	ctx, span := observability.Tracer("profile.service").Start(ctx, "List")
	defer span.End()

	return s.repo.List(ctx, limit, cursor)
}

// UpdateStatus loads the profile, applies the domain transition and persists
// the result with its event in one transaction.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, target domain.Status) (*domain.Profile, error) {
	ctx, span := observability.Tracer("profile.service").Start(ctx, "UpdateStatus")
	defer span.End()

	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := transition(p, target); err != nil {
		return nil, err
	}
	if err := s.tx.InTx(ctx, func(tx pgx.Tx) error {
		if err := s.repo.UpdateStatusInTx(ctx, tx, id, p.Status); err != nil {
			return err
		}
		payload := map[string]any{"id": id, "status": p.Status}

		return s.repo.AddOutboxInTx(ctx, tx, id, eventForStatus(p.Status), payload)
	}); err != nil {
		s.log.Error("failed to update profile status", log.Err(err))
		return nil, err
	}

	statusChanged.WithLabelValues(string(p.Status)).Inc()
	return p, nil
}

func (s *Service) UpdateEmail(ctx context.Context, id uuid.UUID, email string) (*domain.Profile, error) {
	ctx, span := observability.Tracer("profile.service").Start(ctx, "UpdateEmail")
	defer span.End()

	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := p.UpdateEmail(email); err != nil {
		return nil, err
	}
	if err := s.tx.InTx(ctx, func(tx pgx.Tx) error {
		if err := s.repo.UpdateEmailInTx(ctx, tx, id, email); err != nil {
			return err
		}
		payload := map[string]any{"id": id, "email": email}

		return s.repo.AddOutboxInTx(ctx, tx, id, "profile.email_updated", payload)
	}); err != nil {
		s.log.Error("failed to update profile email", log.Err(err))
		return nil, err
	}

	emailsUpdated.Inc()
	return p, nil
}

func transition(p *domain.Profile, target domain.Status) error {
	switch target {
	case domain.StatusSuspended:
		return p.Suspend()
	case domain.StatusActive:
		return p.Reactivate()
	case domain.StatusDeactivated:
		return p.Deactivate()
	default:
		return domain.ErrUnknownStatus
	}
}

func eventForStatus(s domain.Status) string {
	switch s {
	case domain.StatusSuspended:
		return "profile.suspended"
	case domain.StatusActive:
		return "profile.reactivated"
	case domain.StatusDeactivated:
		return "profile.deactivated"
	default:
		return "profile.updated"
	}
}
