// Package gateway is the boundary to the external generative-AI service. It
// turns provider responses into either decoded record candidates or free
// text and classifies every failure as a config, transport or parse error.
package gateway

import (
	"context"
	"fmt"
)

// Gateway is the consumed AI interface. Record candidates are returned as
// decoded JSON values and must go through the sanitizer before use.
type Gateway interface {
	GenerateRecords(ctx context.Context, prompt string, schema *Schema) ([]any, error)
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Kind classifies gateway failures.
type Kind string

const (
	KindConfig    Kind = "config"
	KindTransport Kind = "transport"
	KindParse     Kind = "parse"
)

// Error is returned by every Gateway method on failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Sentinels for errors.Is.
var (
	ErrConfig    = &Error{Kind: KindConfig}
	ErrTransport = &Error{Kind: KindTransport}
	ErrParse     = &Error{Kind: KindParse}
)

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s %s error: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s error", e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrParse) works
// regardless of the wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Ready reports whether gw can serve requests. Gateways that know they are
// misconfigured implement Ready() error; all others are assumed ready.
func Ready(gw Gateway) error {
	if r, ok := gw.(interface{ Ready() error }); ok {
		return r.Ready()
	}
	return nil
}

// Unconfigured is a Gateway that fails every call with a config error. It is
// installed when no credential is available so the process can still start.
type Unconfigured struct {
	Reason string
}

func (u Unconfigured) Ready() error {
	return newError(KindConfig, "ready", fmt.Errorf("%s", u.Reason))
}

func (u Unconfigured) GenerateRecords(context.Context, string, *Schema) ([]any, error) {
	return nil, newError(KindConfig, "generate_records", fmt.Errorf("%s", u.Reason))
}

func (u Unconfigured) GenerateText(context.Context, string) (string, error) {
	return "", newError(KindConfig, "generate_text", fmt.Errorf("%s", u.Reason))
}
