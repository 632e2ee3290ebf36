package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors used for classification with errors.Is.
var (
	ErrParse       = errors.New("malformed source document")
	ErrSchema      = errors.New("required field is absent")
	ErrMappingGap  = errors.New("severity token has no defined band")
	ErrLookupLoad  = errors.New("failed to load lookup table")
	ErrUnsupported = errors.New("unsupported")
)

// New returns an error with the given text.
func New(text string) error { return errors.New(text) }

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool { return errors.As(err, target) }

// ParseError reports a source document that could not be parsed.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() []error { return []error{ErrParse, e.Err} }

// NewParseError creates a ParseError for the given source.
func NewParseError(source string, err error) error {
	return &ParseError{Source: source, Err: err}
}

// SchemaError reports a well-formed document that lacks a required field.
type SchemaError struct {
	Source string
	Record string
	Field  string
}

func (e *SchemaError) Error() string {
	if e.Record == "" {
		return fmt.Sprintf("%s: required field %q is missing", e.Source, e.Field)
	}
	return fmt.Sprintf("%s: record %s: required field %q is missing", e.Source, e.Record, e.Field)
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// NewSchemaError creates a SchemaError.
func NewSchemaError(source, record, field string) error {
	return &SchemaError{Source: source, Record: record, Field: field}
}

// MappingGapError is returned when a severity token is not part of the static severity table.
type MappingGapError struct {
	Family string
	Token  string
	Record string
}

func (e *MappingGapError) Error() string {
	msg := fmt.Sprintf("no impact band defined for %s severity %q", e.Family, e.Token)
	if e.Record != "" {
		msg += fmt.Sprintf(" (record %s)", e.Record)
	}
	return msg
}

func (e *MappingGapError) Unwrap() error { return ErrMappingGap }

// NewMappingGapError creates a MappingGapError.
func NewMappingGapError(family, token string) error {
	return &MappingGapError{Family: family, Token: token}
}

// LookupLoadError reports a missing or malformed reference CSV.
type LookupLoadError struct {
	Table string
	Err   error
}

func (e *LookupLoadError) Error() string {
	return fmt.Sprintf("lookup table %q: %v", e.Table, e.Err)
}

func (e *LookupLoadError) Unwrap() []error { return []error{ErrLookupLoad, e.Err} }

// NewLookupLoadError creates a LookupLoadError.
func NewLookupLoadError(table string, err error) error {
	return &LookupLoadError{Table: table, Err: err}
}

// Custom error type for not implemented errors
type NotImplementedError struct {
	MethodName string
	Subject    string
}

// Implement the error interface for NotImplementedError
func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("method %q is not implemented for %q", e.MethodName, e.Subject)
}

func (e *NotImplementedError) Unwrap() error { return ErrUnsupported }

// Constructor for NotImplementedError
func NewNotImplementedError(methodName, subject string) error {
	return &NotImplementedError{
		MethodName: methodName,
		Subject:    subject,
	}
}

// CommandError represents an error that occurred during command execution together with the exit code.
type CommandError struct {
	ExitCode    int
	CommonError string
	Err         error
}

// Error implements the error interface, returning the message from the common error.
func (e *CommandError) Error() string {
	return e.CommonError
}

func (e *CommandError) Unwrap() error { return e.Err }

// NewCommandError creates a new CommandError instance wrapping err.
func NewCommandError(err error, code int) *CommandError {
	return &CommandError{
		ExitCode:    code,
		CommonError: err.Error(),
		Err:         err,
	}
}

// ExitCode maps an error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode
	}
	switch {
	case errors.Is(err, ErrParse):
		return 2
	case errors.Is(err, ErrSchema):
		return 3
	case errors.Is(err, ErrMappingGap):
		return 4
	case errors.Is(err, ErrLookupLoad):
		return 5
	default:
		return 1
	}
}
