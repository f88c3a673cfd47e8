package scheduling

import "errors"

var (
	ErrPatientNotFound      = errors.New("patient not found")
	ErrPsychologistNotFound = errors.New("psychologist not found")
	ErrWindowNotFound       = errors.New("availability window not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrEventNotFound        = errors.New("event not found")
	ErrSessionNotFound      = errors.New("course session not found")

	// ErrSlotUnavailable means no free window covers the requested slot.
	ErrSlotUnavailable = errors.New("no free availability window for slot")

	// ErrWindowConflict means a concurrent booking won the race for a window.
	ErrWindowConflict = errors.New("window already claimed by concurrent booking")

	ErrAlreadyRegistered = errors.New("participant already registered")
	ErrNotRegistered     = errors.New("participant not registered")
	ErrCapacityExceeded  = errors.New("capacity exceeded")

	ErrInvalidTransition = errors.New("invalid status transition")
	ErrOverlappingWindow = errors.New("window overlaps an existing one")
	ErrBadClock          = errors.New("time must be an HH:MM clock value")
)
