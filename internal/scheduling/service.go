package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hajri-aziz/Backend-sub000/internal/config"
	"github.com/hajri-aziz/Backend-sub000/internal/notify"
	"github.com/hajri-aziz/Backend-sub000/internal/redisclient"
)

// Service is the booking state machine. It owns the transition logic between
// appointments and availability windows and the enrollment flows for events
// and course sessions.
type Service struct {
	repo   Repository
	ledger *Ledger
	locker redisclient.Locker
	mailer notify.Mailer
	cfg    config.Config
	log    zerolog.Logger
}

func NewService(repo Repository, ledger *Ledger, locker redisclient.Locker, mailer notify.Mailer, cfg config.Config, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		ledger: ledger,
		locker: locker,
		mailer: mailer,
		cfg:    cfg,
		log:    log.With().Str("component", "scheduling").Logger(),
	}
}

func (s *Service) Ledger() *Ledger {
	return s.ledger
}

// BookAppointment reserves a matching free window for the patient. The
// window claim, the appointment row, and the reminder commit as a single
// transaction; losing the window race to a concurrent booking is retried
// once against a fresh window lookup before surfacing.
func (s *Service) BookAppointment(ctx context.Context, psychologistID, patientID uuid.UUID, day time.Time, clock, reason string) (*Appointment, error) {
	clock, err := ParseClock(clock)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetPatientByID(ctx, patientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	appt, err := s.tryBook(ctx, psychologistID, patientID, day, clock, reason)
	if errors.Is(err, ErrWindowConflict) {
		// Benign race: someone took the window between lookup and claim.
		// One more lookup may find another window covering the slot.
		appt, err = s.tryBook(ctx, psychologistID, patientID, day, clock, reason)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("psychologist_id", psychologistID.String()).
		Str("day", day.Format("2006-01-02")).
		Str("time", clock).
		Msg("appointment booked")

	return appt, nil
}

func (s *Service) tryBook(ctx context.Context, psychologistID, patientID uuid.UUID, day time.Time, clock, reason string) (*Appointment, error) {
	window, err := s.ledger.FindFree(ctx, psychologistID, day, clock)
	if err != nil {
		return nil, err
	}

	startsAt := CombineDayClock(day, clock)
	params := BookingParams{
		WindowID:       window.ID,
		PsychologistID: psychologistID,
		PatientID:      patientID,
		Day:            day,
		At:             clock,
		Reason:         reason,
		ReminderMsg:    fmt.Sprintf("Reminder: your appointment is on %s at %s.", day.Format("2006-01-02"), clock),
		ReminderDueAt:  startsAt.Add(-s.cfg.ReminderLead),
	}

	var created *Appointment
	err = s.locker.WithLock(ctx, "window:"+window.ID.String(), func(lockCtx context.Context) error {
		appt, err := s.repo.CreateBooking(lockCtx, params)
		if err != nil {
			return err
		}
		created = appt
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			// Another instance holds the window section; treat as the same
			// race the transactional claim would have reported.
			return nil, ErrWindowConflict
		}
		return nil, err
	}
	return created, nil
}

// ConfirmAppointment moves a pending appointment to confirmed.
func (s *Service) ConfirmAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status != StatusPending {
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, StatusPending, StatusConfirmed)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("confirm appointment: %w", err)
	}
	return updated, nil
}

// CancelAppointment marks the appointment cancelled and releases the window
// containing its slot. The release is best-effort: a window that no longer
// matches owner+day+time is simply not there to free.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status == StatusCancelled {
		return nil, ErrInvalidTransition
	}

	cancelled, err := s.repo.UpdateAppointmentStatus(ctx, id, appt.Status, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	if err := s.ledger.MarkFree(ctx, appt.PsychologistID, appt.Day, appt.At); err != nil {
		s.log.Warn().Err(err).
			Str("appointment_id", id.String()).
			Msg("could not release window after cancellation")
	}

	s.log.Info().Str("appointment_id", id.String()).Msg("appointment cancelled")
	return cancelled, nil
}

// RegisterForEvent admits the patient if the event has room and they are not
// already on the list, then schedules the event reminder.
func (s *Service) RegisterForEvent(ctx context.Context, eventID, patientID uuid.UUID) (*Event, error) {
	ev, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := canEnroll(eventParticipantIDs(ev), ev.Capacity, patientID); err != nil {
		return nil, err
	}

	// The repository re-evaluates the guard under the event row lock; the
	// precheck above only classifies the common failure cheaply.
	if err := s.repo.AddEventParticipant(ctx, eventID, patientID, time.Now()); err != nil {
		return nil, err
	}

	_, err = s.repo.CreateReminder(ctx, Reminder{
		PatientID: patientID,
		Kind:      KindEvent,
		TargetID:  eventID,
		Message:   fmt.Sprintf("Reminder: %s starts on %s at %s.", ev.Title, ev.Day.Format("2006-01-02"), ev.Start),
		DueAt:     ev.StartsAt().Add(-s.cfg.ReminderLead),
	})
	if err != nil {
		// Registration already committed; the patient just loses the nudge.
		s.log.Error().Err(err).
			Str("event_id", eventID.String()).
			Str("patient_id", patientID.String()).
			Msg("could not create event reminder")
	}

	return s.repo.GetEvent(ctx, eventID)
}

// CancelEventRegistration removes the patient from the participant list.
func (s *Service) CancelEventRegistration(ctx context.Context, eventID, patientID uuid.UUID) (*Event, error) {
	if _, err := s.repo.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}

	removed, err := s.repo.RemoveEventParticipant(ctx, eventID, patientID)
	if err != nil {
		return nil, fmt.Errorf("remove participant: %w", err)
	}
	if !removed {
		return nil, ErrNotRegistered
	}

	return s.repo.GetEvent(ctx, eventID)
}

// EnrollInCourseSession admits a user to a session under the same guard
// discipline as event registration.
func (s *Service) EnrollInCourseSession(ctx context.Context, sessionID, userID uuid.UUID) (*CourseSession, error) {
	sess, err := s.repo.GetCourseSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := canEnroll(sessionParticipantIDs(sess), sess.Capacity, userID); err != nil {
		return nil, err
	}

	if err := s.repo.AddSessionParticipant(ctx, sessionID, userID, time.Now()); err != nil {
		return nil, err
	}

	return s.repo.GetCourseSession(ctx, sessionID)
}

// RescheduleCourseSession applies schedule changes and notifies every
// enrolled participant once per update. Per-recipient dispatch failures are
// logged and do not abort the fan-out.
func (s *Service) RescheduleCourseSession(ctx context.Context, sessionID uuid.UUID, changes SessionChanges) (*CourseSession, int, error) {
	sess, err := s.repo.GetCourseSession(ctx, sessionID)
	if err != nil {
		return nil, 0, err
	}

	changeList := diffSession(sess, changes)

	updated, err := s.repo.UpdateCourseSession(ctx, sessionID, changes)
	if err != nil {
		return nil, 0, fmt.Errorf("update session: %w", err)
	}

	if len(changeList) == 0 || len(sess.Participants) == 0 {
		return updated, 0, nil
	}

	subject := fmt.Sprintf("Schedule change: %s", sess.Title)
	body := "The session schedule has changed:\n"
	for _, c := range changeList {
		body += "- " + c + "\n"
	}

	notified := 0
	var notifiedIDs []uuid.UUID
	for _, p := range sess.Participants {
		patient, err := s.repo.GetPatientByID(ctx, p.UserID)
		if err != nil || patient.Email == nil || *patient.Email == "" {
			s.log.Warn().
				Str("session_id", sessionID.String()).
				Str("user_id", p.UserID.String()).
				Msg("no contact address for participant, skipping notice")
			continue
		}
		if err := s.mailer.Send(ctx, *patient.Email, subject, body); err != nil {
			s.log.Error().Err(err).
				Str("session_id", sessionID.String()).
				Str("user_id", p.UserID.String()).
				Msg("schedule change notice failed")
			continue
		}
		notified++
		notifiedIDs = append(notifiedIDs, p.UserID)
	}

	if err := s.repo.MarkParticipantsNotified(ctx, sessionID, notifiedIDs); err != nil {
		s.log.Error().Err(err).
			Str("session_id", sessionID.String()).
			Msg("could not mark participants notified")
	}

	s.log.Info().
		Str("session_id", sessionID.String()).
		Int("notified", notified).
		Int("participants", len(sess.Participants)).
		Msg("session rescheduled")

	return updated, notified, nil
}

// diffSession produces a human-readable change list; an empty list means
// nothing notification-worthy changed.
func diffSession(sess *CourseSession, changes SessionChanges) []string {
	var out []string
	if changes.StartsAt != nil && !changes.StartsAt.Equal(sess.StartsAt) {
		out = append(out, fmt.Sprintf("start moved from %s to %s",
			sess.StartsAt.Format(time.RFC1123), changes.StartsAt.Format(time.RFC1123)))
	}
	if changes.EndsAt != nil && !changes.EndsAt.Equal(sess.EndsAt) {
		out = append(out, fmt.Sprintf("end moved from %s to %s",
			sess.EndsAt.Format(time.RFC1123), changes.EndsAt.Format(time.RFC1123)))
	}
	if changes.Location != nil && *changes.Location != sess.Location {
		out = append(out, fmt.Sprintf("location moved from %q to %q", sess.Location, *changes.Location))
	}
	return out
}
