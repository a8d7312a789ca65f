// Package errors defines the structured diagnostics produced while rendering
// a template.
//
// Every problem found during a render is a RenderError with one of two
// severities. A fatal error empties the node that caused it; siblings and
// ancestors keep rendering. A warning drops only the offending attribute,
// value, or child list, and the element itself still renders.
package errors

import (
	"errors"
	"fmt"
)

// Severity distinguishes subtree-fatal errors from recoverable warnings.
type Severity string

const (
	SeverityFatal   Severity = "fatal"
	SeverityWarning Severity = "warning"
)

// Common error codes.
const (
	ErrCodeInvalidTemplate     = "ERR_INVALID_TEMPLATE"
	ErrCodeTagNotAllowed       = "ERR_TAG_NOT_ALLOWED"
	ErrCodeAttributeNotAllowed = "ERR_ATTRIBUTE_NOT_ALLOWED"
	ErrCodeInvalidAttribute    = "ERR_INVALID_ATTRIBUTE"
	ErrCodeURLBlocked          = "ERR_URL_BLOCKED"
	ErrCodeStyleInvalid        = "ERR_STYLE_INVALID"
	ErrCodeStyleBlocked        = "ERR_STYLE_BLOCKED"
	ErrCodeStyleInjection      = "ERR_STYLE_INJECTION"
	ErrCodePropertyBlocked     = "ERR_PROPERTY_BLOCKED"
	ErrCodeNestedComment       = "ERR_NESTED_COMMENT"
	ErrCodeInvalidPath         = "ERR_INVALID_PATH"
	ErrCodeInvalidCondition    = "ERR_INVALID_CONDITION"
	ErrCodeVoidChildren        = "ERR_VOID_CHILDREN"
	ErrCodeMaxDepth            = "ERR_MAX_DEPTH"
)

// RenderError is a structured render diagnostic with context.
type RenderError struct {
	Severity  Severity
	Code      string
	Message   string
	Tag       string
	Attribute string
	Cause     error
	Context   map[string]interface{}
}

// Error implements the error interface. Only the message and cause are part
// of the text so that sinks receive the same wording the user wrote against.
func (e *RenderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}

	return e.Message
}

// Unwrap returns the underlying cause error.
func (e *RenderError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison on severity and code.
func (e *RenderError) Is(target error) bool {
	var t *RenderError
	if errors.As(target, &t) {
		return e.Severity == t.Severity && e.Code == t.Code
	}

	return false
}

// Fatal reports whether the error empties its subtree.
func (e *RenderError) Fatal() bool {
	return e.Severity == SeverityFatal
}

// WithTag records the element the error belongs to.
func (e *RenderError) WithTag(tag string) *RenderError {
	e.Tag = tag

	return e
}

// WithAttribute records the attribute the error belongs to.
func (e *RenderError) WithAttribute(name string) *RenderError {
	e.Attribute = name

	return e
}

// WithCause attaches an underlying error.
func (e *RenderError) WithCause(cause error) *RenderError {
	e.Cause = cause

	return e
}

// WithContext adds context information to the error.
func (e *RenderError) WithContext(key string, value interface{}) *RenderError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// Fields flattens the error into key/value pairs for structured sinks.
func (e *RenderError) Fields() []interface{} {
	fields := []interface{}{"code", e.Code}
	if e.Tag != "" {
		fields = append(fields, "tag", e.Tag)
	}
	if e.Attribute != "" {
		fields = append(fields, "attribute", e.Attribute)
	}
	for k, v := range e.Context {
		fields = append(fields, k, v)
	}

	return fields
}

// NewFatal creates an error that empties the offending subtree.
func NewFatal(code, message string) *RenderError {
	return &RenderError{
		Severity: SeverityFatal,
		Code:     code,
		Message:  message,
	}
}

// NewWarning creates a recoverable error.
func NewWarning(code, message string) *RenderError {
	return &RenderError{
		Severity: SeverityWarning,
		Code:     code,
		Message:  message,
	}
}

// Fatalf formats a fatal error message.
func Fatalf(code, format string, args ...interface{}) *RenderError {
	return NewFatal(code, fmt.Sprintf(format, args...))
}

// Warnf formats a warning message.
func Warnf(code, format string, args ...interface{}) *RenderError {
	return NewWarning(code, fmt.Sprintf(format, args...))
}

// IsFatal checks if an error empties its subtree.
func IsFatal(err error) bool {
	var re *RenderError
	if errors.As(err, &re) {
		return re.Severity == SeverityFatal
	}

	return false
}

// IsWarning checks if an error is recoverable.
func IsWarning(err error) bool {
	var re *RenderError
	if errors.As(err, &re) {
		return re.Severity == SeverityWarning
	}

	return false
}

// HasCode checks if err carries the given code.
func HasCode(err error, code string) bool {
	var re *RenderError
	if errors.As(err, &re) {
		return re.Code == code
	}

	return false
}
