package filter

import (
	"fmt"
)

// Error types for filter operations
type (
	// CompilationError indicates a filter expression could not be compiled
	CompilationError struct {
		Expression string
		Reason     string
		Err        error
	}

	// EvaluationError indicates a filter could not be evaluated against a torrent
	EvaluationError struct {
		Expression string
		Torrent    string
		Err        error
	}

	// PresetError indicates a configured filter preset is invalid
	PresetError struct {
		Name string
		Err  error
	}
)

func (e *CompilationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid filter '%s': %s: %v", e.Expression, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid filter '%s': %s", e.Expression, e.Reason)
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation of '%s' failed on torrent '%s': %v", e.Expression, e.Torrent, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

func (e *PresetError) Error() string {
	return fmt.Sprintf("filter preset %q: %v", e.Name, e.Err)
}

func (e *PresetError) Unwrap() error {
	return e.Err
}
