// Package docfill provides custom error types for better error handling and reporting.
package docfill

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is a machine-readable error category reported to callers.
type Kind string

const (
	KindCorruptArchive      Kind = "corrupt_archive"
	KindMissingEntry        Kind = "missing_entry"
	KindTemplateSyntax      Kind = "template_syntax"
	KindRendererUnavailable Kind = "renderer_unavailable"
	KindRenderTimeout       Kind = "render_timeout"
	KindRenderFailed        Kind = "render_failed"
	KindIO                  Kind = "io"
	KindInvalidInput        Kind = "invalid_input"
	KindUnknown             Kind = "unknown"
)

// ArchiveError reports input that is not a usable document container.
type ArchiveError struct {
	Reason string
	Cause  error
}

func (e *ArchiveError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("corrupt archive: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("corrupt archive: %s", e.Reason)
}

func (e *ArchiveError) Unwrap() error {
	return e.Cause
}

// MissingEntryError reports a requested package entry that does not exist.
type MissingEntryError struct {
	Path string
}

func (e *MissingEntryError) Error() string {
	return fmt.Sprintf("missing entry: %s", e.Path)
}

// TemplateSyntaxError represents an error in the template's loop structure
type TemplateSyntaxError struct {
	Message string
	Marker  string
	Offset  int
}

func (e *TemplateSyntaxError) Error() string {
	if e.Marker != "" {
		return fmt.Sprintf("template syntax error at offset %d near '%s': %s", e.Offset, e.Marker, e.Message)
	}
	return fmt.Sprintf("template syntax error: %s", e.Message)
}

// RenderError reports a failed conversion to the portable format. Kind is
// one of KindRendererUnavailable, KindRenderTimeout or KindRenderFailed.
type RenderError struct {
	Kind     Kind
	Strategy string
	Cause    error
}

func (e *RenderError) Error() string {
	msg := "render failed"
	switch e.Kind {
	case KindRendererUnavailable:
		msg = "renderer unavailable"
	case KindRenderTimeout:
		msg = "render timed out"
	}
	if e.Strategy != "" {
		msg = e.Strategy + ": " + msg
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// DocumentError represents an error during document operations
type DocumentError struct {
	Operation string
	Path      string
	Cause     error
}

func (e *DocumentError) Error() string {
	if e.Path != "" && e.Cause != nil {
		return fmt.Sprintf("document error during %s of '%s': %v", e.Operation, e.Path, e.Cause)
	} else if e.Path != "" {
		return fmt.Sprintf("document error during %s of '%s'", e.Operation, e.Path)
	} else if e.Cause != nil {
		return fmt.Sprintf("document error during %s: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("document error during %s", e.Operation)
}

func (e *DocumentError) Unwrap() error {
	return e.Cause
}

// NewDocumentError creates a new document error
func NewDocumentError(operation, path string, cause error) error {
	return &DocumentError{
		Operation: operation,
		Path:      path,
		Cause:     cause,
	}
}

// InputError reports request data the engine cannot use, such as a
// negative row count.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// MultiError collects multiple errors
type MultiError struct {
	errors []error
}

// NewMultiError creates a new multi-error collector
func NewMultiError() *MultiError {
	return &MultiError{
		errors: make([]error, 0),
	}
}

// Add adds an error to the collection (ignores nil errors)
func (m *MultiError) Add(err error) {
	if err != nil {
		m.errors = append(m.errors, err)
	}
}

// Len returns the number of errors
func (m *MultiError) Len() int {
	return len(m.errors)
}

// Err returns the multi-error or nil if empty
func (m *MultiError) Err() error {
	if len(m.errors) == 0 {
		return nil
	}
	if len(m.errors) == 1 {
		return m.errors[0]
	}
	return m
}

func (m *MultiError) Error() string {
	if len(m.errors) == 0 {
		return "no errors"
	}

	if len(m.errors) == 1 {
		return m.errors[0].Error()
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("%d errors occurred:", len(m.errors)))
	for i, err := range m.errors {
		parts = append(parts, fmt.Sprintf("  [%d] %v", i+1, err))
	}
	return strings.Join(parts, "\n")
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (m *MultiError) Unwrap() []error {
	return m.errors
}

// ContextError adds context to an existing error
type ContextError struct {
	Operation string
	Context   map[string]interface{}
	Cause     error
}

func (e *ContextError) Error() string {
	var contextParts []string
	for k, v := range e.Context {
		contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
	}

	if len(contextParts) > 0 {
		return fmt.Sprintf("%s [%s]: %v", e.Operation, strings.Join(contextParts, ", "), e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Cause)
}

func (e *ContextError) Unwrap() error {
	return e.Cause
}

// WithContext wraps an error with additional context
func WithContext(err error, operation string, context map[string]interface{}) error {
	if err == nil {
		return nil
	}
	return &ContextError{
		Operation: operation,
		Context:   context,
		Cause:     err,
	}
}

// KindOf returns the category of err, looking through wrapping. The
// outermost categorised error wins, so a RenderError whose cause is an
// ArchiveError still reports a render kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if k, ok := kindOf(err); ok {
		return k
	}
	return KindUnknown
}

func kindOf(err error) (Kind, bool) {
	switch e := err.(type) {
	case *TemplateSyntaxError:
		return KindTemplateSyntax, true
	case *ArchiveError:
		return KindCorruptArchive, true
	case *MissingEntryError:
		return KindMissingEntry, true
	case *RenderError:
		return e.Kind, true
	case *InputError:
		return KindInvalidInput, true
	case *DocumentError:
		if e.Cause != nil {
			if k, ok := kindOf(e.Cause); ok {
				return k, true
			}
		}
		return KindIO, true
	}

	switch u := err.(type) {
	case interface{ Unwrap() error }:
		if next := u.Unwrap(); next != nil {
			return kindOf(next)
		}
	case interface{ Unwrap() []error }:
		for _, next := range u.Unwrap() {
			if k, ok := kindOf(next); ok {
				return k, true
			}
		}
	}
	return "", false
}

// IsCorruptArchive checks if an error is a corrupt archive error
func IsCorruptArchive(err error) bool {
	return KindOf(err) == KindCorruptArchive
}

// IsMissingEntry checks if an error is a missing entry error
func IsMissingEntry(err error) bool {
	return KindOf(err) == KindMissingEntry
}

// IsTemplateSyntaxError checks if an error is a template syntax error
func IsTemplateSyntaxError(err error) bool {
	return KindOf(err) == KindTemplateSyntax
}

// IsRenderError checks if an error came from the portable-format renderer
func IsRenderError(err error) bool {
	var re *RenderError
	return errors.As(err, &re)
}
