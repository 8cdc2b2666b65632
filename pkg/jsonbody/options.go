package jsonbody

import "github.com/go-playground/validator/v10"

type options struct {
	maxBytes     int64
	allowUnknown bool
	validate     *validator.Validate
}

// Option adjusts how Bind, Handler and Decode treat the body.
type Option func(*options)

func newOptions(opts []Option) options {
	o := options{maxBytes: MaxBodyBytes, validate: DefaultValidator()}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// MaxBytes caps the request body at n bytes instead of MaxBodyBytes.
func MaxBytes(n int64) Option {
	return func(o *options) { o.maxBytes = n }
}

// AllowUnknownFields accepts object members the target type does not declare
// instead of rejecting them.
func AllowUnknownFields() Option {
	return func(o *options) { o.allowUnknown = true }
}

// WithValidator swaps the validator used for post-decode field checks.
// Passing nil disables them.
func WithValidator(v *validator.Validate) Option {
	return func(o *options) { o.validate = v }
}
