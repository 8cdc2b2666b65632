package jsonbody

import (
	"io"
	"net/http"
)

// MaxBodyBytes caps request body size unless overridden per call.
const MaxBodyBytes = 1 << 20

// ReadBody drains the request body up to limit bytes. A limit of zero or
// less falls back to MaxBodyBytes. Any failure, whether the connection died
// mid-read or the cap was exceeded, comes back as a *ReadError so callers
// can tell transport trouble apart from malformed content.
func ReadBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = MaxBodyBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, &ReadError{Cause: err}
	}
	return data, nil
}
