package errors

import (
	"context"
	goerrors "errors"
	"reflect"
	"strings"
	"unicode"
)

// Classifier is implemented by errors that name their own metric class.
type Classifier interface {
	ErrorClass() string
}

// Classify returns a low-cardinality name for err, suitable for a metric label.
// Context expiry and cancellation map to fixed names, then the outermost
// Classifier in the chain wins. Anything else falls back to the type name of
// the innermost error.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case goerrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case goerrors.Is(err, context.Canceled):
		return "canceled"
	}

	var c Classifier
	if goerrors.As(err, &c) {
		if class := Slug(c.ErrorClass()); class != "" {
			return class
		}
	}

	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}
	if name := Slug(t.String()); name != "" {
		return name
	}
	return "unknown"
}

// Slug lowercases s and collapses every run of other characters into one
// underscore: "Login failed (setup)" becomes "login_failed_setup".
func Slug(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}
