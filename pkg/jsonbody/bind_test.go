package jsonbody

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func decodeErrorBody(t *testing.T, res *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not json: %v", err)
	}
	return body.Error
}

func TestBindMutableWrapper(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Test","age":20}`))
	w := httptest.NewRecorder()
	b, err := Bind[account](w, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b.Value.Age = 33
	if got, want := b.Unwrap().Age, uint(33); got != want {
		t.Fatalf("age after write: got %d want %d", got, want)
	}
}

func TestHandlerPassesBodyThrough(t *testing.T) {
	h := Handler(func(w http.ResponseWriter, r *http.Request, b Body[account]) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(b.Unwrap())
	})

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Test","age":20}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d want %d", w.Code, http.StatusOK)
	}
	var got account
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("response decode: %v", err)
	}
	if got.Name != "Test" || got.Age != 20 {
		t.Fatalf("echoed body: got %+v", got)
	}
}

func TestHandlerRejectsBadContent(t *testing.T) {
	called := false
	h := Handler(func(http.ResponseWriter, *http.Request, Body[account]) { called = true })

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Test","age":"invalid"}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if called {
		t.Fatalf("handler ran on invalid body")
	}
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d want %d", w.Code, http.StatusBadRequest)
	}
	if got, want := decodeErrorBody(t, w), "Invalid JSON at age: expected uint, got string"; got != want {
		t.Fatalf("error: got %q want %q", got, want)
	}
}

func TestHandlerRejectsBrokenTransport(t *testing.T) {
	h := Handler(func(http.ResponseWriter, *http.Request, Body[account]) {
		t.Fatalf("handler ran on broken transport")
	})

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Body = brokenBody{}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d want %d", w.Code, http.StatusBadRequest)
	}
	if got, want := decodeErrorBody(t, w), "Failed to read request body: connection reset by peer"; got != want {
		t.Fatalf("error: got %q want %q", got, want)
	}
}

func TestHandlerHonorsMaxBytes(t *testing.T) {
	h := Handler(func(http.ResponseWriter, *http.Request, Body[account]) {
		t.Fatalf("handler ran on oversized body")
	}, MaxBytes(8))

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Test","age":20}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d want %d", w.Code, http.StatusBadRequest)
	}
	if got := decodeErrorBody(t, w); !strings.HasPrefix(got, "Failed to read request body: ") {
		t.Fatalf("error: got %q", got)
	}
}

func TestHandlerRejectsMissingRequiredField(t *testing.T) {
	h := Handler(func(http.ResponseWriter, *http.Request, Body[account]) {
		t.Fatalf("handler ran despite missing field")
	})

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"age":20}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if got, want := decodeErrorBody(t, w), "Invalid JSON at name: missing required field"; got != want {
		t.Fatalf("error: got %q want %q", got, want)
	}
}
