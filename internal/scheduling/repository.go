package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BookingParams is everything the repository needs to commit a booking as
// one transaction: the window claim, the appointment row, and its reminder.
type BookingParams struct {
	WindowID       uuid.UUID
	PsychologistID uuid.UUID
	PatientID      uuid.UUID
	Day            time.Time
	At             string
	Reason         string
	ReminderMsg    string
	ReminderDueAt  time.Time
}

// Repository contains all persistence interactions needed by the core.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetPsychologistByID(ctx context.Context, id uuid.UUID) (*Psychologist, error)

	// Availability windows
	CreateWindow(ctx context.Context, w AvailabilityWindow) (*AvailabilityWindow, error)
	ListWindows(ctx context.Context, psychologistID uuid.UUID, day time.Time) ([]AvailabilityWindow, error)
	FindFreeWindow(ctx context.Context, psychologistID uuid.UUID, day time.Time, clock string) (*AvailabilityWindow, error)
	// SetWindowStatus is a conditional update; ErrWindowConflict when the
	// window is no longer in the expected status.
	SetWindowStatus(ctx context.Context, windowID uuid.UUID, from, to WindowStatus) error
	// FreeBookedWindow releases the booked window for owner+day whose
	// [start, end) interval contains clock, reporting whether one was found.
	// Absence is not an error.
	FreeBookedWindow(ctx context.Context, psychologistID uuid.UUID, day time.Time, clock string) (bool, error)

	// Appointments
	// CreateBooking atomically claims the window (free -> booked), inserts
	// the appointment, and inserts its reminder. ErrWindowConflict when the
	// claim loses a race.
	CreateBooking(ctx context.Context, p BookingParams) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)

	// Events. AddEventParticipant is the authoritative admission check: the
	// duplicate and capacity decisions commit together with the append.
	GetEvent(ctx context.Context, id uuid.UUID) (*Event, error)
	AddEventParticipant(ctx context.Context, eventID, patientID uuid.UUID, joinedAt time.Time) error
	RemoveEventParticipant(ctx context.Context, eventID, patientID uuid.UUID) (bool, error)

	// Course sessions
	GetCourseSession(ctx context.Context, id uuid.UUID) (*CourseSession, error)
	UpdateCourseSession(ctx context.Context, id uuid.UUID, changes SessionChanges) (*CourseSession, error)
	AddSessionParticipant(ctx context.Context, sessionID, userID uuid.UUID, enrolledAt time.Time) error
	MarkParticipantsNotified(ctx context.Context, sessionID uuid.UUID, userIDs []uuid.UUID) error

	// Reminders
	CreateReminder(ctx context.Context, r Reminder) (*Reminder, error)
	DueReminders(ctx context.Context, now time.Time, maxAttempts int) ([]Reminder, error)
	// MarkReminderDelivered flips delivered false -> true, reporting whether
	// this call performed the transition.
	MarkReminderDelivered(ctx context.Context, id uuid.UUID) (bool, error)
	BumpReminderAttempts(ctx context.Context, id uuid.UUID) error
}
