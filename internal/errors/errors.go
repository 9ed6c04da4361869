package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/standardbeagle/smaliref/internal/types"
)

// Error types for the smaliref system
type ErrorType string

const (
	// Corpus errors
	ErrorTypeLoad  ErrorType = "load"
	ErrorTypeParse ErrorType = "parse"

	// Search errors
	ErrorTypeSearch   ErrorType = "search"
	ErrorTypeContract ErrorType = "contract"

	// File errors
	ErrorTypeFileNotFound ErrorType = "file_not_found"
	ErrorTypeFileTooLarge ErrorType = "file_too_large"
	ErrorTypePermission   ErrorType = "permission"

	// Configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// ErrContractViolation is matched by every ContractError via errors.Is.
var ErrContractViolation = errors.New("contract violation")

// LoadError represents an error while loading documents into the corpus
type LoadError struct {
	Type        ErrorType
	FileID      types.FileID
	FilePath    string
	Operation   string
	Underlying  error
	Timestamp   time.Time
	Recoverable bool
}

// NewLoadError creates a new load error with context
func NewLoadError(op string, err error) *LoadError {
	return &LoadError{
		Type:       ErrorTypeLoad,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// WithFile adds file information to the error
func (e *LoadError) WithFile(fileID types.FileID, path string) *LoadError {
	e.FileID = fileID
	e.FilePath = path
	return e
}

// WithRecoverable marks the error as recoverable
func (e *LoadError) WithRecoverable(recoverable bool) *LoadError {
	e.Recoverable = recoverable
	return e
}

// Error implements the error interface
func (e *LoadError) Error() string {
	if e.FilePath != "" {
		return fmt.Sprintf("%s %s failed for %s: %v", e.Type, e.Operation, e.FilePath, e.Underlying)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Type, e.Operation, e.Underlying)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *LoadError) Unwrap() error {
	return e.Underlying
}

// IsRecoverable checks if the loader may skip the file and continue
func (e *LoadError) IsRecoverable() bool {
	return e.Recoverable
}

// ParseError represents a parsing error in a source document
type ParseError struct {
	Type       ErrorType
	FilePath   string
	Line       int
	Column     int
	Underlying error
	Timestamp  time.Time
}

// NewParseError creates a new parse error
func NewParseError(path string, line, column int, err error) *ParseError {
	return &ParseError{
		Type:       ErrorTypeParse,
		FilePath:   path,
		Line:       line,
		Column:     column,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %s:%d:%d: %v", e.FilePath, e.Line, e.Column, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ParseError) Unwrap() error {
	return e.Underlying
}

// SearchError represents a reference search failure at an outer boundary
// (CLI, MCP). The search core itself returns collaborator faults unchanged.
type SearchError struct {
	Type       ErrorType
	Class      string
	Token      string
	Underlying error
	Timestamp  time.Time
}

// NewSearchError creates a new search error
func NewSearchError(class string, err error) *SearchError {
	return &SearchError{
		Type:       ErrorTypeSearch,
		Class:      class,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// WithToken records the search token that was in use
func (e *SearchError) WithToken(token string) *SearchError {
	e.Token = token
	return e
}

// Error implements the error interface
func (e *SearchError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("reference search for %s (%s) failed: %v", e.Class, e.Token, e.Underlying)
	}
	return fmt.Sprintf("reference search for %s failed: %v", e.Class, e.Underlying)
}

// Unwrap returns the underlying error
func (e *SearchError) Unwrap() error {
	return e.Underlying
}

// ContractError reports a caller contract violation: a request missing a
// required field or carrying an unrecognized scope variant.
type ContractError struct {
	Type      ErrorType
	Field     string
	Reason    string
	Timestamp time.Time
}

// NewContractError creates a new contract error
func NewContractError(field, reason string) *ContractError {
	return &ContractError{
		Type:      ErrorTypeContract,
		Field:     field,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface
func (e *ContractError) Error() string {
	return fmt.Sprintf("contract violation: %s %s", e.Field, e.Reason)
}

// Is matches ErrContractViolation
func (e *ContractError) Is(target error) bool {
	return target == ErrContractViolation
}

// FileError represents a file-related error
type FileError struct {
	Type       ErrorType
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewFileError creates a new file error
func NewFileError(op, path string, err error) *FileError {
	errorType := ErrorTypeFileNotFound
	if isPermissionError(err) {
		errorType = ErrorTypePermission
	}

	return &FileError{
		Type:       errorType,
		Path:       path,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// NewFileTooLargeError creates a file error for a file above the size limit
func NewFileTooLargeError(path string, size, limit int64) *FileError {
	return &FileError{
		Type:       ErrorTypeFileTooLarge,
		Path:       path,
		Operation:  "read",
		Underlying: fmt.Errorf("size %d exceeds limit %d", size, limit),
		Timestamp:  time.Now(),
	}
}

// isPermissionError checks if the error is a permission error
func isPermissionError(err error) bool {
	return err != nil && errors.Is(err, fs.ErrPermission)
}

// Error implements the error interface
func (e *FileError) Error() string {
	return fmt.Sprintf("file %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *FileError) Unwrap() error {
	return e.Underlying
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error
func NewMultiError(errs []error) *MultiError {
	// Filter out nil errors
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}

// ErrorOrNil returns nil when no errors were collected
func (e *MultiError) ErrorOrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}
