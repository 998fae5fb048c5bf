package framework

import (
	"fmt"
	"strings"
)

// AggregatedError collects failures of independent operations, like
// polling several devices in one loop iteration.
type AggregatedError struct {
	Errors []error
}

// Error implements error.
func (e *AggregatedError) Error() string {
	switch len(e.Errors) {
	case 0:
		return ""
	case 1:
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for n, err := range e.Errors {
		msgs[n] = err.Error()
	}
	return fmt.Sprintf("%d errors: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Add appends errors, skipping nil.
func (e *AggregatedError) Add(errs ...error) *AggregatedError {
	for _, err := range errs {
		if err != nil {
			e.Errors = append(e.Errors, err)
		}
	}
	return e
}

// Unwrap lets errors.Is and errors.As look into every collected error.
func (e *AggregatedError) Unwrap() []error {
	return e.Errors
}

// Aggregate returns nil if nothing failed, or e.
func (e *AggregatedError) Aggregate() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}
