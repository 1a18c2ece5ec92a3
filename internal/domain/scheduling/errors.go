package scheduling

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrInvalidDate         = errors.New("invalid date, expected yyyy-MM-ddTHH:mm")

	// ErrConflict is the parent of every state conflict; handlers map it to 409.
	ErrConflict         = errors.New("conflict")
	ErrOverlap          = fmt.Errorf("%w: appointment overlaps an existing booking", ErrConflict)
	ErrPastAppointment  = fmt.Errorf("%w: appointment has already started", ErrConflict)
	ErrDoctorReferenced = fmt.Errorf("%w: doctor still has appointments", ErrConflict)
)

// ValidationError carries the messages of every failed rule.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

// Message returns the last recorded message, which is what clients see.
func (e *ValidationError) Message() string {
	if len(e.Messages) == 0 {
		return ""
	}
	return e.Messages[len(e.Messages)-1]
}
