package postgres

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestParseCursorRoundTrip(t *testing.T) {
	ts := time.Now().UTC().Truncate(time.Microsecond)
	id := uuid.New()
	cursor := fmt.Sprintf("%s|%s", ts.Format(time.RFC3339Nano), id)

	gotTS, gotID, err := parseCursor(cursor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !gotTS.Equal(ts) {
		t.Fatalf("ts: got %v want %v", gotTS, ts)
	}
	if gotID != id {
		t.Fatalf("id: got %s want %s", gotID, id)
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	for _, c := range []string{"", "no-separator", "2024-01-01|not-a-uuid", "not-a-time|" + uuid.NewString()} {
		if _, _, err := parseCursor(c); err == nil {
			t.Fatalf("cursor %q should fail", c)
		}
	}
}
