package jsonbody

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var (
	errUnexpectedEnd = errors.New("unexpected end of JSON input")
	errTrailingData  = errors.New("unexpected data after top-level value")
)

// Decode parses data into a value of type T. On failure it returns a
// *Diagnostic whose Path names the rejected node; on success the value has
// also passed any field rules declared on T via validate tags.
func Decode[T any](data []byte, opts ...Option) (T, error) {
	return decode[T](data, newOptions(opts))
}

func decode[T any](data []byte, o options) (T, error) {
	var v, zero T
	dec := json.NewDecoder(bytes.NewReader(data))
	if !o.allowUnknown {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(&v); err != nil {
		return zero, diagnose(data, err)
	}
	if err := dec.Decode(new(struct{})); !errors.Is(err, io.EOF) {
		return zero, &Diagnostic{Cause: errTrailingData}
	}
	if o.validate != nil {
		if d := checkRequired(o.validate, &v); d != nil {
			return zero, d
		}
	}
	return v, nil
}

// diagnose turns an encoding/json error into a Diagnostic with the path of
// the rejected node filled in.
func diagnose(data []byte, err error) *Diagnostic {
	var typErr *json.UnmarshalTypeError
	if errors.As(err, &typErr) {
		p := locateOffset(data, typErr.Offset)
		if len(p) == 0 && typErr.Field != "" {
			p = fieldPath(typErr.Field)
		}
		return &Diagnostic{
			Path:  p,
			Cause: fmt.Errorf("expected %s, got %s", typErr.Type, typErr.Value),
		}
	}
	var synErr *json.SyntaxError
	if errors.As(err, &synErr) {
		return &Diagnostic{Path: locateOffset(data, synErr.Offset), Cause: synErr}
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &Diagnostic{Path: locateOffset(data, int64(len(data))), Cause: errUnexpectedEnd}
	}
	if name, ok := unknownField(err); ok {
		return &Diagnostic{Path: locateKey(data, name), Cause: fmt.Errorf("unknown field %q", name)}
	}
	return &Diagnostic{Cause: err}
}

// fieldPath parses the dotted field chain an UnmarshalTypeError carries when
// no usable offset is present.
func fieldPath(dotted string) Path {
	var p Path
	for _, part := range strings.Split(dotted, ".") {
		if part != "" {
			p = append(p, Segment{Key: part})
		}
	}
	return p
}

const unknownFieldPrefix = "json: unknown field "

// unknownField recognizes the error DisallowUnknownFields produces. It is
// an unexported fmt error inside encoding/json, so the message is all there
// is to match on.
func unknownField(err error) (string, bool) {
	msg := err.Error()
	if !strings.HasPrefix(msg, unknownFieldPrefix) {
		return "", false
	}
	name, uerr := strconv.Unquote(strings.TrimPrefix(msg, unknownFieldPrefix))
	if uerr != nil {
		return "", false
	}
	return name, true
}
