package upgrader

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is a stable identifier for an upgrade failure. Each code has a
// message template with one {} placeholder per parameter.
type ErrorCode string

const (
	// CodeNotImplemented is returned when a stage type declares no upgrade
	// path. Parameters: library, stage name, stage instance.
	CodeNotImplemented ErrorCode = "UPGRADER_00"

	// CodeCannotUpgrade is returned when a version range is not covered or a
	// step fails. Parameters: library, stage name, stage instance,
	// from version, to version.
	CodeCannotUpgrade ErrorCode = "UPGRADER_01"
)

var templates = map[ErrorCode]string{
	CodeNotImplemented: "Upgrader not implemented for stage '{}:{}' instance '{}'",
	CodeCannotUpgrade:  "Cannot upgrade stage '{}:{}' instance '{}' from version '{}' to version '{}'",
}

// Code returns the code itself; it mirrors Error for callers that only
// want the identifier.
func (c ErrorCode) Code() string { return string(c) }

// Message returns the unformatted message template.
func (c ErrorCode) Message() string { return templates[c] }

// Error lets a bare code be used as an errors.Is target.
func (c ErrorCode) Error() string { return string(c) }

// Error is a structured upgrade failure: a stable code plus the ordered
// parameters of its message template. Cause, when set, is the step error that
// triggered a CodeCannotUpgrade.
type Error struct {
	Code   ErrorCode
	Params []any
	Cause  error
}

// NewError returns an *Error for code with params in template order.
func NewError(code ErrorCode, params ...any) *Error {
	return &Error{Code: code, Params: params}
}

// NotImplementedError builds the CodeNotImplemented error.
func NotImplementedError(library, stageName, stageInstance string) *Error {
	return NewError(CodeNotImplemented, library, stageName, stageInstance)
}

// CannotUpgradeError builds the CodeCannotUpgrade error. cause may be nil.
func CannotUpgradeError(library, stageName, stageInstance string, fromVersion, toVersion int, cause error) *Error {
	e := NewError(CodeCannotUpgrade, library, stageName, stageInstance, fromVersion, toVersion)
	e.Cause = cause
	return e
}

// Message renders the code's template with Params.
func (e *Error) Message() string {
	return Format(e.Code.Message(), e.Params...)
}

func (e *Error) Error() string {
	msg := string(e.Code) + " - " + e.Message()
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is e's ErrorCode or an *Error with the same code.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case ErrorCode:
		return e.Code == t
	case *Error:
		return t != nil && e.Code == t.Code
	}
	return false
}

// Format substitutes each {} in template with the next param. Surplus
// placeholders are left as-is; surplus params are ignored.
func Format(template string, params ...any) string {
	var b strings.Builder
	rest := template
	for _, p := range params {
		i := strings.Index(rest, "{}")
		if i < 0 {
			break
		}
		b.WriteString(rest[:i])
		fmt.Fprint(&b, p)
		rest = rest[i+2:]
	}
	b.WriteString(rest)
	return b.String()
}

// AsError returns the *Error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func IsNotImplemented(err error) bool { return errors.Is(err, CodeNotImplemented) }
func IsCannotUpgrade(err error) bool  { return errors.Is(err, CodeCannotUpgrade) }
