package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanPsychologist(row pgx.Row) (*Psychologist, error) {
	var p Psychologist
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Specialty, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPsychologistNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanWindow(row pgx.Row) (*AvailabilityWindow, error) {
	var w AvailabilityWindow
	err := row.Scan(&w.ID, &w.PsychologistID, &w.Day, &w.Start, &w.End, &w.Status, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWindowNotFound
		}
		return nil, err
	}
	return &w, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PsychologistID, &a.PatientID, &a.Day, &a.At, &a.Reason, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func scanReminder(row pgx.Row) (*Reminder, error) {
	var r Reminder
	err := row.Scan(&r.ID, &r.PatientID, &r.Kind, &r.TargetID, &r.Message, &r.DueAt, &r.Delivered, &r.Read, &r.Attempts, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Patients / psychologists

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetPsychologistByID(ctx context.Context, id uuid.UUID) (*Psychologist, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, specialty, created_at, updated_at
		FROM psychologists
		WHERE id = $1
	`, id)
	return scanPsychologist(row)
}

// Availability windows

func (r *PgRepository) CreateWindow(ctx context.Context, w AvailabilityWindow) (*AvailabilityWindow, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO availability_windows (id, psychologist_id, day, start_time, end_time, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'free', now(), now())
		RETURNING id, psychologist_id, day, start_time, end_time, status, created_at, updated_at
	`, id, w.PsychologistID, w.Day, w.Start, w.End)

	return scanWindow(row)
}

func (r *PgRepository) ListWindows(ctx context.Context, psychologistID uuid.UUID, day time.Time) ([]AvailabilityWindow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, psychologist_id, day, start_time, end_time, status, created_at, updated_at
		FROM availability_windows
		WHERE psychologist_id = $1 AND day = $2
		ORDER BY start_time
	`, psychologistID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AvailabilityWindow
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *w)
	}
	return result, rows.Err()
}

func (r *PgRepository) FindFreeWindow(ctx context.Context, psychologistID uuid.UUID, day time.Time, clock string) (*AvailabilityWindow, error) {
	// Zero-padded HH:MM values compare correctly as text.
	row := r.pool.QueryRow(ctx, `
		SELECT id, psychologist_id, day, start_time, end_time, status, created_at, updated_at
		FROM availability_windows
		WHERE psychologist_id = $1
		  AND day = $2
		  AND status = 'free'
		  AND start_time <= $3
		  AND end_time > $3
		ORDER BY start_time
		LIMIT 1
	`, psychologistID, day, clock)
	return scanWindow(row)
}

func (r *PgRepository) SetWindowStatus(ctx context.Context, windowID uuid.UUID, from, to WindowStatus) error {
	ct, err := r.pool.Exec(ctx, `
		UPDATE availability_windows
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3
	`, windowID, to, from)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrWindowConflict
	}
	return nil
}

func (r *PgRepository) FreeBookedWindow(ctx context.Context, psychologistID uuid.UUID, day time.Time, clock string) (bool, error) {
	// Same owner+day+containment rule as FindFreeWindow, so only the window
	// bound to the cancelled appointment is released.
	ct, err := r.pool.Exec(ctx, `
		UPDATE availability_windows
		SET status = 'free', updated_at = now()
		WHERE psychologist_id = $1
		  AND day = $2
		  AND status = 'booked'
		  AND start_time <= $3
		  AND end_time > $3
	`, psychologistID, day, clock)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// Appointments

func (r *PgRepository) CreateBooking(ctx context.Context, p BookingParams) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Claim the window first so a lost race aborts before anything is written.
	ct, err := tx.Exec(ctx, `
		UPDATE availability_windows
		SET status = 'booked', updated_at = now()
		WHERE id = $1 AND status = 'free'
	`, p.WindowID)
	if err != nil {
		return nil, fmt.Errorf("claim window: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return nil, ErrWindowConflict
	}

	apptID := uuid.New()
	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (id, psychologist_id, patient_id, day, at_time, reason, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', now(), now())
		RETURNING id, psychologist_id, patient_id, day, at_time, reason, status, created_at, updated_at
	`, apptID, p.PsychologistID, p.PatientID, p.Day, p.At, p.Reason)

	appt, err := scanAppointment(row)
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO reminders (id, patient_id, kind, target_id, message, due_at, created_at, updated_at)
		VALUES ($1, $2, 'appointment', $3, $4, $5, now(), now())
	`, uuid.New(), p.PatientID, appt.ID, p.ReminderMsg, p.ReminderDueAt)
	if err != nil {
		return nil, fmt.Errorf("insert reminder: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return appt, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, psychologist_id, patient_id, day, at_time, reason, status, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING id, psychologist_id, patient_id, day, at_time, reason, status, created_at, updated_at
	`, id, to, from)
	return scanAppointment(row)
}

// Events

func (r *PgRepository) GetEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, title, description, day, start_time, duration_minutes, capacity, created_at, updated_at
		FROM events
		WHERE id = $1
	`, id)

	var e Event
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Day, &e.Start, &e.DurationMinutes, &e.Capacity, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT patient_id, joined_at
		FROM event_participants
		WHERE event_id = $1
		ORDER BY joined_at
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p EventParticipant
		if err := rows.Scan(&p.PatientID, &p.JoinedAt); err != nil {
			return nil, err
		}
		e.Participants = append(e.Participants, p)
	}
	return &e, rows.Err()
}

// AddEventParticipant serializes concurrent registrations on the event row
// lock so the capacity count and the append commit as one step.
func (r *PgRepository) AddEventParticipant(ctx context.Context, eventID, patientID uuid.UUID, joinedAt time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var capacity int
	err = tx.QueryRow(ctx, `
		SELECT capacity FROM events WHERE id = $1 FOR UPDATE
	`, eventID).Scan(&capacity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrEventNotFound
		}
		return err
	}

	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM event_participants WHERE event_id = $1 AND patient_id = $2)
	`, eventID, patientID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyRegistered
	}

	var count int
	err = tx.QueryRow(ctx, `
		SELECT count(*) FROM event_participants WHERE event_id = $1
	`, eventID).Scan(&count)
	if err != nil {
		return err
	}
	if count >= capacity {
		return ErrCapacityExceeded
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO event_participants (event_id, patient_id, joined_at)
		VALUES ($1, $2, $3)
	`, eventID, patientID, joinedAt)
	if err != nil {
		return fmt.Errorf("append participant: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) RemoveEventParticipant(ctx context.Context, eventID, patientID uuid.UUID) (bool, error) {
	ct, err := r.pool.Exec(ctx, `
		DELETE FROM event_participants
		WHERE event_id = $1 AND patient_id = $2
	`, eventID, patientID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// Course sessions

func (r *PgRepository) GetCourseSession(ctx context.Context, id uuid.UUID) (*CourseSession, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, title, course_id, starts_at, ends_at, location, capacity, created_at, updated_at
		FROM course_sessions
		WHERE id = $1
	`, id)

	var s CourseSession
	err := row.Scan(&s.ID, &s.Title, &s.CourseID, &s.StartsAt, &s.EndsAt, &s.Location, &s.Capacity, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT user_id, enrolled_at, notified, reminders_sent
		FROM session_participants
		WHERE session_id = $1
		ORDER BY enrolled_at
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p SessionParticipant
		if err := rows.Scan(&p.UserID, &p.EnrolledAt, &p.Notified, &p.RemindersSent); err != nil {
			return nil, err
		}
		s.Participants = append(s.Participants, p)
	}
	return &s, rows.Err()
}

func (r *PgRepository) UpdateCourseSession(ctx context.Context, id uuid.UUID, changes SessionChanges) (*CourseSession, error) {
	_, err := r.pool.Exec(ctx, `
		UPDATE course_sessions
		SET starts_at = COALESCE($2, starts_at),
		    ends_at   = COALESCE($3, ends_at),
		    location  = COALESCE($4, location),
		    updated_at = now()
		WHERE id = $1
	`, id, changes.StartsAt, changes.EndsAt, changes.Location)
	if err != nil {
		return nil, err
	}
	return r.GetCourseSession(ctx, id)
}

func (r *PgRepository) AddSessionParticipant(ctx context.Context, sessionID, userID uuid.UUID, enrolledAt time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var capacity int
	err = tx.QueryRow(ctx, `
		SELECT capacity FROM course_sessions WHERE id = $1 FOR UPDATE
	`, sessionID).Scan(&capacity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSessionNotFound
		}
		return err
	}

	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM session_participants WHERE session_id = $1 AND user_id = $2)
	`, sessionID, userID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyRegistered
	}

	var count int
	err = tx.QueryRow(ctx, `
		SELECT count(*) FROM session_participants WHERE session_id = $1
	`, sessionID).Scan(&count)
	if err != nil {
		return err
	}
	if count >= capacity {
		return ErrCapacityExceeded
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO session_participants (session_id, user_id, enrolled_at)
		VALUES ($1, $2, $3)
	`, sessionID, userID, enrolledAt)
	if err != nil {
		return fmt.Errorf("enroll participant: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) MarkParticipantsNotified(ctx context.Context, sessionID uuid.UUID, userIDs []uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE session_participants
		SET notified = true
		WHERE session_id = $1 AND user_id = ANY($2)
	`, sessionID, userIDs)
	return err
}

// Reminders

func (r *PgRepository) CreateReminder(ctx context.Context, rem Reminder) (*Reminder, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO reminders (id, patient_id, kind, target_id, message, due_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING id, patient_id, kind, target_id, message, due_at, delivered, read, attempts, created_at, updated_at
	`, id, rem.PatientID, rem.Kind, rem.TargetID, rem.Message, rem.DueAt)

	return scanReminder(row)
}

func (r *PgRepository) DueReminders(ctx context.Context, now time.Time, maxAttempts int) ([]Reminder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, kind, target_id, message, due_at, delivered, read, attempts, created_at, updated_at
		FROM reminders
		WHERE NOT delivered
		  AND due_at <= $1
		  AND attempts < $2
		ORDER BY due_at
	`, now, maxAttempts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rem)
	}
	return result, rows.Err()
}

func (r *PgRepository) MarkReminderDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE reminders
		SET delivered = true, updated_at = now()
		WHERE id = $1 AND NOT delivered
	`, id)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (r *PgRepository) BumpReminderAttempts(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE reminders
		SET attempts = attempts + 1, updated_at = now()
		WHERE id = $1
	`, id)
	return err
}
