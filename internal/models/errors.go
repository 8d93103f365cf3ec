package models

import "fmt"

// ValidationError represents a data validation error found during ingestion
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}

// FilterError reports a malformed query parameter. It is raised before the
// record store is touched and maps to a client error.
type FilterError struct {
	Parameter string
	Value     string
	Message   string
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Parameter, e.Message)
}

// IsTransient returns false; resubmitting the same parameter fails the same way
func (e *FilterError) IsTransient() bool {
	return false
}

// StoreUnavailableError reports that the record store could not be read
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("record store unavailable during %s", e.Op)
	}
	return fmt.Sprintf("record store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

// IsTransient returns true; the store may recover without operator action
func (e *StoreUnavailableError) IsTransient() bool {
	return true
}
