package jsonbody

import (
	"net/http"

	"github.com/fieldlabs/profile-service/pkg/respond"
)

// Body wraps a successfully decoded value. The wrapper is transparent: Value
// is exported for direct reads and writes, and Unwrap hands the value over
// when the wrapper itself is no longer wanted.
type Body[T any] struct {
	Value T
}

func (b Body[T]) Unwrap() T { return b.Value }

// Bind drains the request body and decodes it into a Body[T]. The error is
// either a *ReadError (transport) or a *Diagnostic (content); both render a
// client-facing message via Error().
func Bind[T any](w http.ResponseWriter, r *http.Request, opts ...Option) (Body[T], error) {
	o := newOptions(opts)
	data, err := ReadBody(w, r, o.maxBytes)
	if err != nil {
		return Body[T]{}, err
	}
	v, err := decode[T](data, o)
	if err != nil {
		return Body[T]{}, err
	}
	return Body[T]{Value: v}, nil
}

// Handler adapts a body-consuming function into an http.HandlerFunc. Bind
// failures of either kind short-circuit with a 400 and never reach fn.
func Handler[T any](fn func(http.ResponseWriter, *http.Request, Body[T]), opts ...Option) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := Bind[T](w, r, opts...)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		fn(w, r, b)
	}
}
