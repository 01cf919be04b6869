package collector

import (
	"errors"
	"fmt"
	"net/http"
)

// Category classifies an error for exit codes and machine-readable output.
type Category string

const (
	CategoryInvalidURL  Category = "invalid-url"
	CategoryNetwork     Category = "network"
	CategoryFilesystem  Category = "filesystem"
	CategoryUnsupported Category = "unsupported"
	CategoryRestricted  Category = "restricted"
	CategoryNoData      Category = "no-data"
)

// CategorizedError attaches a Category to an underlying error.
type CategorizedError struct {
	Category Category
	Err      error
}

func (e CategorizedError) Error() string {
	if e.Err == nil {
		return string(e.Category)
	}
	return e.Err.Error()
}

func (e CategorizedError) Unwrap() error { return e.Err }

func wrapCategory(category Category, err error) error {
	if err == nil {
		return nil
	}
	return CategorizedError{Category: category, Err: err}
}

// CategoryOf returns the error's category, or the empty string when the
// error carries none.
func CategoryOf(err error) Category {
	var ce CategorizedError
	if errors.As(err, &ce) {
		return ce.Category
	}
	return ""
}

// ExitCode maps an error to the process exit code. Errors without a
// category exit 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch CategoryOf(err) {
	case CategoryInvalidURL:
		return 2
	case CategoryUnsupported:
		return 3
	case CategoryRestricted:
		return 4
	case CategoryNetwork:
		return 5
	case CategoryFilesystem:
		return 6
	case CategoryNoData:
		return 7
	default:
		return 1
	}
}

// reportedError marks an error that has already been printed, so callers
// can decide not to print it again.
type reportedError struct {
	err error
}

func (e reportedError) Error() string { return e.err.Error() }

func (e reportedError) Unwrap() error { return e.err }

func markReported(err error) error {
	if err == nil {
		return nil
	}
	return reportedError{err: err}
}

// IsReported returns true if the error has already been printed to stderr.
func IsReported(err error) bool {
	var re reportedError
	return errors.As(err, &re)
}

// statusCategory maps an unexpected HTTP status to an error category.
func statusCategory(code int) Category {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return CategoryRestricted
	case http.StatusNotFound, http.StatusGone:
		return CategoryNoData
	default:
		return CategoryNetwork
	}
}

// ProviderError wraps a failure from a single source invocation. Transport,
// auth and format errors all surface through it so callers see which source
// produced them.
type ProviderError struct {
	Source string
	Err    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// providerErr wraps err in a ProviderError unless it already carries one.
func providerErr(source string, err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Source: source, Err: err}
}
