package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type WindowStatus string

const (
	WindowFree   WindowStatus = "free"
	WindowBooked WindowStatus = "booked"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
)

type ReminderKind string

const (
	KindAppointment ReminderKind = "appointment"
	KindEvent       ReminderKind = "event"
)

type Psychologist struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AvailabilityWindow is a psychologist's declared time interval on a day.
// Start and End are HH:MM wall-clock values; a window covers [Start, End).
type AvailabilityWindow struct {
	ID             uuid.UUID
	PsychologistID uuid.UUID
	Day            time.Time
	Start          string
	End            string
	Status         WindowStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Contains reports whether the canonical HH:MM clock falls inside the window.
// Zero-padded HH:MM strings order correctly under plain string comparison.
func (w AvailabilityWindow) Contains(clock string) bool {
	return w.Start <= clock && clock < w.End
}

// Overlaps reports whether two [Start, End) intervals on the same day touch.
func (w AvailabilityWindow) Overlaps(start, end string) bool {
	return w.Start < end && start < w.End
}

type Appointment struct {
	ID             uuid.UUID
	PsychologistID uuid.UUID
	PatientID      uuid.UUID
	Day            time.Time
	At             string // HH:MM
	Reason         string
	Status         AppointmentStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type EventParticipant struct {
	PatientID uuid.UUID
	JoinedAt  time.Time
}

type Event struct {
	ID              uuid.UUID
	Title           string
	Description     string
	Day             time.Time
	Start           string // HH:MM
	DurationMinutes int
	Capacity        int
	Participants    []EventParticipant
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// StartsAt combines the event day with its start clock.
func (e Event) StartsAt() time.Time {
	return CombineDayClock(e.Day, e.Start)
}

type SessionParticipant struct {
	UserID        uuid.UUID
	EnrolledAt    time.Time
	Notified      bool
	RemindersSent int
}

type CourseSession struct {
	ID           uuid.UUID
	Title        string
	CourseID     uuid.UUID
	StartsAt     time.Time
	EndsAt       time.Time
	Location     string
	Capacity     int
	Participants []SessionParticipant
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SessionChanges carries the reschedulable fields; nil means unchanged.
type SessionChanges struct {
	StartsAt *time.Time
	EndsAt   *time.Time
	Location *string
}

type Reminder struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	Kind      ReminderKind
	TargetID  uuid.UUID
	Message   string
	DueAt     time.Time
	Delivered bool
	Read      bool
	Attempts  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ParseClock validates an HH:MM wall-clock value and returns it in canonical
// zero-padded form.
func ParseClock(s string) (string, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return "", ErrBadClock
	}
	return t.Format("15:04"), nil
}

// CombineDayClock builds the instant a day+clock pair refers to. The clock is
// assumed canonical; a malformed value collapses to midnight.
func CombineDayClock(day time.Time, clock string) time.Time {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return day
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location())
}
