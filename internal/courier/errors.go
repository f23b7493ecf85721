package courier

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedContent indicates the email carries a content variant the
	// courier cannot map. No provider call has been made.
	ErrUnsupportedContent = errors.New("unsupported content")

	// ErrValidation indicates the email lacks data the provider requires,
	// such as a reply-to address a template declares as a placeholder.
	ErrValidation = errors.New("validation failed")

	// ErrTransmission indicates the provider call failed or was rejected.
	ErrTransmission = errors.New("transmission failed")
)

// UnsupportedContent returns an ErrUnsupportedContent error naming the
// offending content.
func UnsupportedContent(courierName string, content any) error {
	return fmt.Errorf("%s: %w: %T", courierName, ErrUnsupportedContent, content)
}

// TransmissionError describes a failed provider call.
type TransmissionError struct {
	// Provider is the courier name.
	Provider string
	// Code is the provider's error code, if it returned one.
	Code string
	// StatusCode is the HTTP status of the provider response, or 0.
	StatusCode int
	Message    string
	Err        error
}

func (e *TransmissionError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.StatusCode != 0 && e.Code != "":
		return fmt.Sprintf("%s: transmission failed (HTTP %d, code %s): %s", e.Provider, e.StatusCode, e.Code, msg)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: transmission failed (HTTP %d): %s", e.Provider, e.StatusCode, msg)
	default:
		return fmt.Sprintf("%s: transmission failed: %s", e.Provider, msg)
	}
}

func (e *TransmissionError) Unwrap() error {
	return e.Err
}

// Is makes every TransmissionError match ErrTransmission.
func (e *TransmissionError) Is(target error) bool {
	return target == ErrTransmission
}
