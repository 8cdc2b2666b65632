package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fieldlabs/profile-service/internal/platform/idempotency"
	"github.com/fieldlabs/profile-service/internal/platform/log"
	"github.com/fieldlabs/profile-service/internal/platform/onboarding"
	"github.com/fieldlabs/profile-service/internal/profile/domain"
	"github.com/fieldlabs/profile-service/internal/profile/repository/postgres"
	profilesvc "github.com/fieldlabs/profile-service/internal/profile/service"
	"github.com/fieldlabs/profile-service/pkg/jsonbody"
	"github.com/fieldlabs/profile-service/pkg/respond"
)

var decodeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "profile_request_decode_failures_total",
	Help: "request body failures by kind (read vs decode)",
}, []string{"kind"})

type Service interface {
	Create(ctx context.Context, name string, age uint, email string, addresses []domain.Address, tags []string) (*domain.Profile, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Profile, error)
	List(ctx context.Context, limit int, cursor string) (*profilesvc.Page, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, target domain.Status) (*domain.Profile, error)
	UpdateEmail(ctx context.Context, id uuid.UUID, email string) (*domain.Profile, error)
}

type Handler struct {
	svc     Service
	log     *log.Logger
	idem    *idempotency.Store
	onboard *onboarding.Manager
	maxBody int64
}

func NewHandler(svc Service, logger *log.Logger, idem *idempotency.Store, onboard *onboarding.Manager, maxBody int64) *Handler {
	return &Handler{svc: svc, log: logger, idem: idem, onboard: onboard, maxBody: maxBody}
}

type addressReq struct {
	Street string `json:"street" validate:"required"`
	City   string `json:"city" validate:"required"`
	Zip    string `json:"zip" validate:"required"`
}

type createProfileReq struct {
	Name      string       `json:"name" validate:"required"`
	Age       uint         `json:"age"`
	Email     string       `json:"email" validate:"required,email"`
	Addresses []addressReq `json:"addresses" validate:"dive"`
	Tags      []string     `json:"tags"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	body, err := jsonbody.Bind[createProfileReq](w, r, jsonbody.MaxBytes(h.maxBody))
	if err != nil {
		decodeFailures.WithLabelValues(failureKind(err)).Inc()
		h.log.Warn("failed to bind request body", log.Err(err))
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	req := body.Unwrap()

	addresses := make([]domain.Address, 0, len(req.Addresses))
	for _, a := range req.Addresses {
		addresses = append(addresses, domain.Address{Street: a.Street, City: a.City, Zip: a.Zip})
	}

	const route = "POST:/api/v1/profiles"
	key := r.Header.Get("Idempotency-Key")
	if key != "" && h.idem != nil {
		if res, err := h.idem.Get(r.Context(), key, route); err == nil && res.Found {
			if p, err := h.svc.Get(r.Context(), res.ProfileID); err == nil && p != nil {
				respond.JSON(w, res.Status, p)
				return
			}
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.svc.Create(ctx, req.Name, req.Age, req.Email, addresses, req.Tags)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if key != "" && h.idem != nil {
		if err := h.idem.Save(r.Context(), key, route, p.ID, http.StatusCreated); err != nil {
			h.log.Error("failed to save idempotency key", log.Err(err))
		}
	}
	h.enqueueOnboarding(r.Context(), p)

	respond.JSON(w, http.StatusCreated, p)
}

func (h *Handler) enqueueOnboarding(ctx context.Context, p *domain.Profile) {
	if h.onboard == nil {
		return
	}
	steps := []onboarding.Step{
		{StepNo: 1, Name: "welcome", Action: "send-welcome-email",
			Payload: map[string]any{"profile_id": p.ID.String(), "email": p.Email}},
		{StepNo: 2, Name: "index", Action: "index-profile",
			Payload: map[string]any{"profile_id": p.ID.String()}},
	}
	if _, err := h.onboard.Store().Create(ctx, "profile-onboarding", steps, map[string]any{"profile_id": p.ID.String()}); err != nil {
		h.log.Error("failed to enqueue onboarding", log.Err(err))
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chiURLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid id")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	p, err := h.svc.Get(ctx, id)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "not found")
			return
		}
		respond.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	respond.JSON(w, http.StatusOK, p)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	page, err := h.svc.List(ctx, limit, cursor)
	if err != nil {
		if errors.Is(err, postgres.ErrInvalidCursor) {
			respond.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error("failed to list profiles", log.Err(err))
		respond.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	respond.JSON(w, http.StatusOK, page)
}

type patchStatusReq struct {
	Status string `json:"status" validate:"required"`
}

// PatchStatus is wired through jsonbody.Handler, so a bad body never
// reaches it.
func (h *Handler) PatchStatus(w http.ResponseWriter, r *http.Request, body jsonbody.Body[patchStatusReq]) {
	id, err := uuid.Parse(chiURLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid id")
		return
	}

	var target domain.Status
	switch body.Value.Status {
	case string(domain.StatusActive):
		target = domain.StatusActive
	case string(domain.StatusSuspended):
		target = domain.StatusSuspended
	case string(domain.StatusDeactivated):
		target = domain.StatusDeactivated
	default:
		respond.Error(w, http.StatusBadRequest, "unsupported status")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	p, err := h.svc.UpdateStatus(ctx, id, target)
	if err != nil {
		respond.Error(w, statusFromErr(err), err.Error())
		return
	}
	respond.JSON(w, http.StatusOK, p)
}

type updateEmailReq struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *Handler) UpdateEmail(w http.ResponseWriter, r *http.Request, body jsonbody.Body[updateEmailReq]) {
	id, err := uuid.Parse(chiURLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	p, err := h.svc.UpdateEmail(ctx, id, body.Value.Email)
	if err != nil {
		respond.Error(w, statusFromErr(err), err.Error())
		return
	}
	respond.JSON(w, http.StatusOK, p)
}

func statusFromErr(err error) int {
	if errors.Is(err, postgres.ErrNotFound) {
		return http.StatusNotFound
	}

	return http.StatusBadRequest
}

func failureKind(err error) string {
	var re *jsonbody.ReadError
	if errors.As(err, &re) {
		return "read"
	}
	var d *jsonbody.Diagnostic
	if errors.As(err, &d) {
		return "decode"
	}

	return "other"
}

// --- tiny shims to decouple router from handler for tests ---

type ctxKey string

func WithURLParam(r *http.Request, key, val string) *http.Request {
	ctx := context.WithValue(r.Context(), ctxKey(key), val)

	return r.WithContext(ctx)
}

func chiURLParam(r *http.Request, key string) string {
	if v := r.Context().Value(ctxKey(key)); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}

	return ""
}
