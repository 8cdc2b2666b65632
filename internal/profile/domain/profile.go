package domain

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive      Status = "active"
	StatusSuspended   Status = "suspended"
	StatusDeactivated Status = "deactivated"
)

const MaxAge = 150

var ErrUnknownStatus = errors.New("unknown status")

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

type Address struct {
	Street string `json:"street"`
	City   string `json:"city"`
	Zip    string `json:"zip"`
}

type Profile struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Age       uint      `json:"age"`
	Email     string    `json:"email"`
	Addresses []Address `json:"addresses"`
	Tags      []string  `json:"tags,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func New(name string, age uint, email string, addresses []Address, tags []string) (*Profile, error) {
	if name == "" {
		return nil, errors.New("name is required")
	}
	if age > MaxAge {
		return nil, errors.New("age is out of range")
	}
	if !emailRe.MatchString(email) {
		return nil, errors.New("invalid email")
	}
	for _, a := range addresses {
		if a.Street == "" || a.City == "" || a.Zip == "" {
			return nil, errors.New("address needs street, city and zip")
		}
	}
	now := time.Now().UTC()

	return &Profile{
		ID:        uuid.New(),
		Name:      name,
		Age:       age,
		Email:     email,
		Addresses: addresses,
		Tags:      normalizeTags(tags),
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// normalizeTags lowercases, trims and deduplicates while keeping order.
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	return out
}

func (p *Profile) Suspend() error {
	if p.Status != StatusActive {
		return errors.New("only active profiles can be suspended")
	}
	p.Status = StatusSuspended
	p.touch()

	return nil
}

func (p *Profile) Reactivate() error {
	if p.Status != StatusSuspended {
		return errors.New("only suspended profiles can be reactivated")
	}
	p.Status = StatusActive
	p.touch()

	return nil
}

// Deactivate is terminal and idempotent.
func (p *Profile) Deactivate() error {
	if p.Status == StatusDeactivated {
		return nil
	}
	p.Status = StatusDeactivated
	p.touch()

	return nil
}

func (p *Profile) UpdateEmail(email string) error {
	if p.Status == StatusDeactivated {
		return errors.New("profile is deactivated")
	}
	if !emailRe.MatchString(email) {
		return errors.New("invalid email")
	}
	p.Email = email
	p.touch()

	return nil
}

func (p *Profile) touch() {
	p.UpdatedAt = time.Now().UTC()
}
