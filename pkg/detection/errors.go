package detection

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrModelNotFound is returned when a model file is missing.
	ErrModelNotFound = errors.New("detection: model file not found")

	// ErrModelLoad is returned when a model file cannot be loaded.
	ErrModelLoad = errors.New("detection: model failed to load")

	// ErrEmptyImage is returned when a frame decodes to nothing.
	ErrEmptyImage = errors.New("detection: empty image")
)

// DetectorError wraps an error with the detector that produced it.
type DetectorError struct {
	Detector string
	Err      error
}

// Error implements the error interface.
func (e *DetectorError) Error() string {
	return fmt.Sprintf("detection [%s]: %v", e.Detector, e.Err)
}

// Unwrap returns the underlying error.
func (e *DetectorError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with detector context.
func WrapError(detector string, err error) error {
	if err == nil {
		return nil
	}
	return &DetectorError{Detector: detector, Err: err}
}
