package skymath

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidNumber is wrapped by every NumberError.
	ErrInvalidNumber = errors.New("invalid number")
	// ErrInvalidDate is wrapped by every DateError.
	ErrInvalidDate = errors.New("invalid date")
)

// NumberError is returned when a numeric or sexagesimal string cannot be parsed.
type NumberError struct {
	Input string
	Err   error // underlying cause, may be nil
}

func (e *NumberError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid number %q: %v", e.Input, e.Err)
	}
	return fmt.Sprintf("invalid number %q", e.Input)
}

func (e *NumberError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidNumber}
	}
	return []error{ErrInvalidNumber, e.Err}
}

// DateError is returned when a date or date-time string cannot be parsed.
type DateError struct {
	Input  string
	Reason string
}

func (e *DateError) Error() string {
	return fmt.Sprintf("invalid date %q: %s", e.Input, e.Reason)
}

func (e *DateError) Unwrap() error {
	return ErrInvalidDate
}
