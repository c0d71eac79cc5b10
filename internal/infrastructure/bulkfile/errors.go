package bulkfile

import (
	"errors"
	"fmt"
	"strings"
)

// Row-level error codes surfaced in bulk operation records and reports
const (
	ErrCodeRequiredField   = "BULK_REQUIRED_FIELD"
	ErrCodeInvalidType     = "BULK_INVALID_TYPE"
	ErrCodeInvalidRange    = "BULK_INVALID_RANGE"
	ErrCodeInvalidLength   = "BULK_INVALID_LENGTH"
	ErrCodePatternMismatch = "BULK_PATTERN_MISMATCH"
	ErrCodeDuplicateInFile = "BULK_DUPLICATE_IN_FILE"
)

// File-level parse errors
var (
	// ErrEmptyFile is returned when the input holds no bytes
	ErrEmptyFile = errors.New("bulkfile: file is empty")

	// ErrInvalidEncoding is returned when the input is not valid UTF-8
	ErrInvalidEncoding = errors.New("bulkfile: file is not valid UTF-8")

	// ErrMissingHeader is returned when the input has no header row
	ErrMissingHeader = errors.New("bulkfile: missing header row")

	// ErrUnsupportedEntityKind is returned when no schema exists for the kind
	ErrUnsupportedEntityKind = errors.New("bulkfile: entity kind not supported for bulk files")
)

// RowError describes one invalid field in one input row
type RowError struct {
	Line    int    `json:"line"`
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// Error implements the error interface
func (e RowError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("line %d, field '%s': %s", e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// RowErrors aggregates every problem found in a single row
type RowErrors []RowError

// Error joins the individual messages
func (e RowErrors) Error() string {
	msgs := make([]string, len(e))
	for i, re := range e {
		msgs[i] = re.Error()
	}
	return strings.Join(msgs, "; ")
}

// ErrorCollection accumulates row errors up to a cap. Errors past the cap
// are counted but not stored, keeping memory bounded on large broken files.
type ErrorCollection struct {
	errors    []RowError
	maxErrors int
	total     int
}

// NewErrorCollection creates a collection with the given cap
func NewErrorCollection(maxErrors int) *ErrorCollection {
	if maxErrors <= 0 {
		maxErrors = 100
	}
	return &ErrorCollection{
		errors:    make([]RowError, 0, maxErrors),
		maxErrors: maxErrors,
	}
}

// Add records one error
func (c *ErrorCollection) Add(err RowError) {
	c.total++
	if len(c.errors) < c.maxErrors {
		c.errors = append(c.errors, err)
	}
}

// Errors returns the stored errors
func (c *ErrorCollection) Errors() []RowError {
	return c.errors
}

// Total returns the full error count, including any past the cap
func (c *ErrorCollection) Total() int {
	return c.total
}

// Truncated reports whether errors were dropped by the cap
func (c *ErrorCollection) Truncated() bool {
	return c.total > len(c.errors)
}
