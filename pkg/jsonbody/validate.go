package jsonbody

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	defaultOnce     sync.Once
	defaultValidate *validator.Validate
)

// DefaultValidator returns the shared validator used when no WithValidator
// option is given. It reports fields under their json tag names so that
// diagnostics line up with what the client actually sent.
func DefaultValidator() *validator.Validate {
	defaultOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		defaultValidate = v
	})
	return defaultValidate
}

// checkRequired runs declared field rules against a decoded value and maps
// the first violation to a Diagnostic. Non-struct targets carry no rules and
// pass unconditionally.
func checkRequired(v *validator.Validate, val any) *Diagnostic {
	err := v.Struct(val)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return nil
	}
	fe := verrs[0]
	cause := errors.New("missing required field")
	if fe.Tag() != "required" {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		cause = fmt.Errorf("does not satisfy the %s rule", rule)
	}
	return &Diagnostic{Path: namespacePath(fe.Namespace()), Cause: cause}
}

// namespacePath converts a validator namespace such as
// "createReq.addresses[1].zip" into a Path. The leading segment names the
// root type and is dropped.
func namespacePath(ns string) Path {
	parts := strings.Split(ns, ".")
	if len(parts) > 0 {
		parts = parts[1:]
	}
	var p Path
	for _, part := range parts {
		for part != "" {
			i := strings.IndexByte(part, '[')
			if i < 0 {
				p = append(p, Segment{Key: part})
				break
			}
			if i > 0 {
				p = append(p, Segment{Key: part[:i]})
			}
			j := strings.IndexByte(part[i:], ']')
			if j < 0 {
				break
			}
			raw := part[i+1 : i+j]
			if n, err := strconv.Atoi(raw); err == nil {
				p = append(p, Segment{Index: n, Array: true})
			} else {
				p = append(p, Segment{Key: raw})
			}
			part = part[i+j+1:]
		}
	}
	return p
}
