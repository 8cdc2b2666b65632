package domain

import "testing"

func TestNewProfileValidatesAndNormalizes(t *testing.T) {
	p, err := New("Test", 20, "test@example.com", []Address{
		{Street: "Main 1", City: "Springfield", Zip: "12345"},
	}, []string{" Beta ", "beta", "ALPHA", ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status != StatusActive {
		t.Fatalf("status: got %s want active", p.Status)
	}
	if got, want := len(p.Tags), 2; got != want {
		t.Fatalf("tags: got %d want %d", got, want)
	}
	if p.Tags[0] != "beta" || p.Tags[1] != "alpha" {
		t.Fatalf("tags normalized wrong: %v", p.Tags)
	}
}

func TestNewProfileRejectsBadInput(t *testing.T) {
	if _, err := New("", 20, "test@example.com", nil, nil); err == nil {
		t.Fatalf("empty name should fail")
	}
	if _, err := New("Test", MaxAge+1, "test@example.com", nil, nil); err == nil {
		t.Fatalf("age over limit should fail")
	}
	if _, err := New("Test", 20, "not-an-email", nil, nil); err == nil {
		t.Fatalf("bad email should fail")
	}
	if _, err := New("Test", 20, "test@example.com", []Address{{Street: "Main 1"}}, nil); err == nil {
		t.Fatalf("incomplete address should fail")
	}
}

func TestStatusTransitions(t *testing.T) {
	p, err := New("Test", 20, "test@example.com", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Suspend(); err != nil {
		t.Fatalf("suspend err: %v", err)
	}
	if err := p.Suspend(); err == nil {
		t.Fatalf("double suspend should fail")
	}
	if err := p.Reactivate(); err != nil {
		t.Fatalf("reactivate err: %v", err)
	}
	if err := p.Deactivate(); err != nil {
		t.Fatalf("deactivate err: %v", err)
	}
	if err := p.Deactivate(); err != nil {
		t.Fatalf("deactivate should be idempotent: %v", err)
	}
	if err := p.Suspend(); err == nil {
		t.Fatalf("suspend after deactivate should fail")
	}
}

func TestUpdateEmail(t *testing.T) {
	p, err := New("Test", 20, "test@example.com", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.UpdateEmail("new@example.com"); err != nil {
		t.Fatalf("update email err: %v", err)
	}
	if p.Email != "new@example.com" {
		t.Fatalf("email: got %q", p.Email)
	}
	if err := p.UpdateEmail("nope"); err == nil {
		t.Fatalf("bad email should fail")
	}
	_ = p.Deactivate()
	if err := p.UpdateEmail("again@example.com"); err == nil {
		t.Fatalf("update on deactivated profile should fail")
	}
}
