package errors

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Category represents the type of error.
type Category string

const (
	CategoryMisuse    Category = "misuse"
	CategoryRender    Category = "render"
	CategoryScheduler Category = "scheduler"
	CategoryBoundary  Category = "boundary"
	CategoryList      Category = "list"
	CategoryConfig    Category = "config"
	CategoryCLI       Category = "cli"
)

// Severity distinguishes warnings from errors.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Location represents a source code location.
type Location struct {
	File     string
	Line     int
	Column   int
	Function string
}

// String returns the location as a formatted string.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Error is a structured diagnostic with a stable code, call sites, and documentation.
type Error struct {
	// Code is a unique identifier (e.g., "E101" or "W201").
	Code string

	// Name is the stable snake_case name of the condition.
	Name string

	// Severity is error or warning.
	Severity Severity

	// Category is the error type (misuse, render, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Location is the primary source location, if known.
	Location *Location

	// Sites lists additional call sites that contributed to the condition.
	Sites []Location

	// Context contains surrounding source code lines.
	Context []string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// DocURL is a link to documentation about this error.
	DocURL string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// IsWarning reports whether the diagnostic is a warning.
func (e *Error) IsWarning() bool {
	return e.Severity == SeverityWarning
}

// WithLocation adds source location to the error.
func (e *Error) WithLocation(file string, line, column int) *Error {
	e.Location = &Location{File: file, Line: line, Column: column}
	e.Context = readContextLines(file, line, 5)
	return e
}

// WithSites records the call sites that contributed to the error. The first
// site also becomes the primary location when none is set.
func (e *Error) WithSites(sites []Location) *Error {
	e.Sites = append(e.Sites[:0:0], sites...)
	if e.Location == nil && len(sites) > 0 {
		first := sites[0]
		e.Location = &first
		e.Context = readContextLines(first.File, first.Line, 5)
	}
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *Error) WithDetail(d string) *Error {
	e.Detail = d
	return e
}

// WithContext adds custom context lines to the error.
func (e *Error) WithContext(lines []string) *Error {
	e.Context = lines
	return e
}

// Wrap wraps another error.
func (e *Error) Wrap(err error) *Error {
	e.Wrapped = err
	return e
}

// readContextLines reads lines around the specified line number from a file.
func readContextLines(filename string, targetLine, contextSize int) []string {
	if filename == "" || targetLine <= 0 {
		return nil
	}
	file, err := os.Open(filename)
	if err != nil {
		return nil
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	lineNum := 0
	startLine := targetLine - contextSize/2
	endLine := targetLine + contextSize/2

	for scanner.Scan() {
		lineNum++
		if lineNum >= startLine && lineNum <= endLine {
			lines = append(lines, scanner.Text())
		}
		if lineNum > endLine {
			break
		}
	}

	return lines
}

// New creates an Error from a registered code.
func New(code string) *Error {
	template, ok := registry[code]
	if !ok {
		return &Error{
			Code:     code,
			Severity: SeverityError,
			Message:  "Unknown error",
		}
	}
	severity := SeverityError
	if strings.HasPrefix(code, "W") {
		severity = SeverityWarning
	}
	return &Error{
		Code:     code,
		Name:     template.Name,
		Severity: severity,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
		DocURL:   template.DocURL,
	}
}

// Newf creates a new Error with a formatted message (no code).
func Newf(category Category, format string, args ...any) *Error {
	return &Error{
		Severity: SeverityError,
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in an Error.
func FromError(err error, code string) *Error {
	if err == nil {
		return nil
	}
	if ve, ok := err.(*Error); ok {
		return ve
	}
	return New(code).Wrap(err)
}

// Lookup returns the registered code for a stable condition name.
func Lookup(name string) (string, bool) {
	for code, t := range registry {
		if t.Name == name {
			return code, true
		}
	}
	return "", false
}
