package jsonbody

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type brokenBody struct{}

func (brokenBody) Read([]byte) (int, error) { return 0, errors.New("connection reset by peer") }
func (brokenBody) Close() error             { return nil }

func TestReadBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"ok":true}`))
	w := httptest.NewRecorder()
	data, err := ReadBody(w, r, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := string(data), `{"ok":true}`; got != want {
		t.Fatalf("body: got %q want %q", got, want)
	}
}

func TestReadBodyTransportFailure(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Body = brokenBody{}
	w := httptest.NewRecorder()
	_, err := ReadBody(w, r, 0)
	var re *ReadError
	if !errors.As(err, &re) {
		t.Fatalf("expected *ReadError, got %T: %v", err, err)
	}
	if got, want := re.Error(), "Failed to read request body: connection reset by peer"; got != want {
		t.Fatalf("message: got %q want %q", got, want)
	}
}

func TestReadBodyOverLimit(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 64)))
	w := httptest.NewRecorder()
	_, err := ReadBody(w, r, 8)
	var re *ReadError
	if !errors.As(err, &re) {
		t.Fatalf("expected *ReadError, got %T: %v", err, err)
	}
	if !strings.HasPrefix(re.Error(), "Failed to read request body: ") {
		t.Fatalf("message: got %q", re.Error())
	}
	var mbe *http.MaxBytesError
	if !errors.As(err, &mbe) {
		t.Fatalf("cause should be *http.MaxBytesError, got %v", re.Cause)
	}
}
