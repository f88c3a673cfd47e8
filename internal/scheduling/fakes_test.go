package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hajri-aziz/Backend-sub000/internal/redisclient"
)

// memRepo is an in-memory Repository. A single mutex gives each method the
// same atomicity the Postgres implementation gets from conditional updates
// and row locks.
type memRepo struct {
	mu            sync.Mutex
	patients      map[uuid.UUID]Patient
	psychologists map[uuid.UUID]Psychologist
	windows       map[uuid.UUID]AvailabilityWindow
	appointments  map[uuid.UUID]Appointment
	events        map[uuid.UUID]Event
	sessions      map[uuid.UUID]CourseSession
	reminders     map[uuid.UUID]Reminder
}

func newMemRepo() *memRepo {
	return &memRepo{
		patients:      make(map[uuid.UUID]Patient),
		psychologists: make(map[uuid.UUID]Psychologist),
		windows:       make(map[uuid.UUID]AvailabilityWindow),
		appointments:  make(map[uuid.UUID]Appointment),
		events:        make(map[uuid.UUID]Event),
		sessions:      make(map[uuid.UUID]CourseSession),
		reminders:     make(map[uuid.UUID]Reminder),
	}
}

// Fixture helpers

func (m *memRepo) addPatient(email string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	p := Patient{ID: id, Name: "patient " + id.String()[:8]}
	if email != "" {
		p.Email = &email
	}
	m.patients[id] = p
	return id
}

func (m *memRepo) addPsychologist() uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.psychologists[id] = Psychologist{ID: id, Name: "dr " + id.String()[:8]}
	return id
}

func (m *memRepo) addWindow(owner uuid.UUID, day time.Time, start, end string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.windows[id] = AvailabilityWindow{
		ID: id, PsychologistID: owner, Day: day, Start: start, End: end, Status: WindowFree,
	}
	return id
}

func (m *memRepo) addEvent(title string, day time.Time, start string, capacity int) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.events[id] = Event{ID: id, Title: title, Day: day, Start: start, DurationMinutes: 60, Capacity: capacity}
	return id
}

func (m *memRepo) addSession(title string, startsAt, endsAt time.Time, location string, capacity int) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.sessions[id] = CourseSession{
		ID: id, Title: title, CourseID: uuid.New(),
		StartsAt: startsAt, EndsAt: endsAt, Location: location, Capacity: capacity,
	}
	return id
}

func (m *memRepo) addReminder(patientID uuid.UUID, kind ReminderKind, dueAt time.Time) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.reminders[id] = Reminder{
		ID: id, PatientID: patientID, Kind: kind, TargetID: uuid.New(),
		Message: "test reminder", DueAt: dueAt,
	}
	return id
}

func (m *memRepo) window(id uuid.UUID) AvailabilityWindow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.windows[id]
}

func (m *memRepo) reminder(id uuid.UUID) Reminder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reminders[id]
}

func (m *memRepo) remindersForPatient(patientID uuid.UUID) []Reminder {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Reminder
	for _, r := range m.reminders {
		if r.PatientID == patientID {
			out = append(out, r)
		}
	}
	return out
}

func (m *memRepo) liveAppointments() []Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appointments {
		if a.Status != StatusCancelled {
			out = append(out, a)
		}
	}
	return out
}

// Repository implementation

func (m *memRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (m *memRepo) GetPsychologistByID(_ context.Context, id uuid.UUID) (*Psychologist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.psychologists[id]
	if !ok {
		return nil, ErrPsychologistNotFound
	}
	return &p, nil
}

func (m *memRepo) CreateWindow(_ context.Context, w AvailabilityWindow) (*AvailabilityWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w.ID = uuid.New()
	w.Status = WindowFree
	m.windows[w.ID] = w
	return &w, nil
}

func (m *memRepo) ListWindows(_ context.Context, psychologistID uuid.UUID, day time.Time) ([]AvailabilityWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AvailabilityWindow
	for _, w := range m.windows {
		if w.PsychologistID == psychologistID && w.Day.Equal(day) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}

func (m *memRepo) FindFreeWindow(_ context.Context, psychologistID uuid.UUID, day time.Time, clock string) (*AvailabilityWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findFreeLocked(psychologistID, day, clock)
}

func (m *memRepo) findFreeLocked(psychologistID uuid.UUID, day time.Time, clock string) (*AvailabilityWindow, error) {
	var best *AvailabilityWindow
	for _, w := range m.windows {
		w := w
		if w.PsychologistID == psychologistID && w.Day.Equal(day) && w.Status == WindowFree && w.Contains(clock) {
			if best == nil || w.Start < best.Start {
				best = &w
			}
		}
	}
	if best == nil {
		return nil, ErrWindowNotFound
	}
	return best, nil
}

func (m *memRepo) SetWindowStatus(_ context.Context, windowID uuid.UUID, from, to WindowStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[windowID]
	if !ok || w.Status != from {
		return ErrWindowConflict
	}
	w.Status = to
	m.windows[windowID] = w
	return nil
}

func (m *memRepo) FreeBookedWindow(_ context.Context, psychologistID uuid.UUID, day time.Time, clock string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	freed := false
	for id, w := range m.windows {
		if w.PsychologistID == psychologistID && w.Day.Equal(day) && w.Status == WindowBooked && w.Contains(clock) {
			w.Status = WindowFree
			m.windows[id] = w
			freed = true
		}
	}
	return freed, nil
}

func (m *memRepo) CreateBooking(_ context.Context, p BookingParams) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[p.WindowID]
	if !ok || w.Status != WindowFree {
		return nil, ErrWindowConflict
	}
	w.Status = WindowBooked
	m.windows[p.WindowID] = w

	appt := Appointment{
		ID: uuid.New(), PsychologistID: p.PsychologistID, PatientID: p.PatientID,
		Day: p.Day, At: p.At, Reason: p.Reason, Status: StatusPending,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	m.appointments[appt.ID] = appt

	rem := Reminder{
		ID: uuid.New(), PatientID: p.PatientID, Kind: KindAppointment,
		TargetID: appt.ID, Message: p.ReminderMsg, DueAt: p.ReminderDueAt,
	}
	m.reminders[rem.ID] = rem

	return &appt, nil
}

func (m *memRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (m *memRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	m.appointments[id] = a
	return &a, nil
}

func (m *memRepo) GetEvent(_ context.Context, id uuid.UUID) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	e.Participants = append([]EventParticipant(nil), e.Participants...)
	return &e, nil
}

func (m *memRepo) AddEventParticipant(_ context.Context, eventID, patientID uuid.UUID, joinedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[eventID]
	if !ok {
		return ErrEventNotFound
	}
	for _, p := range e.Participants {
		if p.PatientID == patientID {
			return ErrAlreadyRegistered
		}
	}
	if len(e.Participants) >= e.Capacity {
		return ErrCapacityExceeded
	}
	e.Participants = append(e.Participants, EventParticipant{PatientID: patientID, JoinedAt: joinedAt})
	m.events[eventID] = e
	return nil
}

func (m *memRepo) RemoveEventParticipant(_ context.Context, eventID, patientID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[eventID]
	if !ok {
		return false, nil
	}
	for i, p := range e.Participants {
		if p.PatientID == patientID {
			e.Participants = append(e.Participants[:i], e.Participants[i+1:]...)
			m.events[eventID] = e
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) GetCourseSession(_ context.Context, id uuid.UUID) (*CourseSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.Participants = append([]SessionParticipant(nil), s.Participants...)
	return &s, nil
}

func (m *memRepo) UpdateCourseSession(_ context.Context, id uuid.UUID, changes SessionChanges) (*CourseSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if changes.StartsAt != nil {
		s.StartsAt = *changes.StartsAt
	}
	if changes.EndsAt != nil {
		s.EndsAt = *changes.EndsAt
	}
	if changes.Location != nil {
		s.Location = *changes.Location
	}
	s.UpdatedAt = time.Now()
	m.sessions[id] = s
	s.Participants = append([]SessionParticipant(nil), s.Participants...)
	return &s, nil
}

func (m *memRepo) AddSessionParticipant(_ context.Context, sessionID, userID uuid.UUID, enrolledAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	for _, p := range s.Participants {
		if p.UserID == userID {
			return ErrAlreadyRegistered
		}
	}
	if len(s.Participants) >= s.Capacity {
		return ErrCapacityExceeded
	}
	s.Participants = append(s.Participants, SessionParticipant{UserID: userID, EnrolledAt: enrolledAt})
	m.sessions[sessionID] = s
	return nil
}

func (m *memRepo) MarkParticipantsNotified(_ context.Context, sessionID uuid.UUID, userIDs []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	for i, p := range s.Participants {
		for _, id := range userIDs {
			if p.UserID == id {
				s.Participants[i].Notified = true
			}
		}
	}
	m.sessions[sessionID] = s
	return nil
}

func (m *memRepo) CreateReminder(_ context.Context, r Reminder) (*Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = uuid.New()
	m.reminders[r.ID] = r
	return &r, nil
}

func (m *memRepo) DueReminders(_ context.Context, now time.Time, maxAttempts int) ([]Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Reminder
	for _, r := range m.reminders {
		if !r.Delivered && !r.DueAt.After(now) && r.Attempts < maxAttempts {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	return out, nil
}

func (m *memRepo) MarkReminderDelivered(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reminders[id]
	if !ok || r.Delivered {
		return false, nil
	}
	r.Delivered = true
	m.reminders[id] = r
	return true, nil
}

func (m *memRepo) BumpReminderAttempts(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reminders[id]
	if !ok {
		return nil
	}
	r.Attempts++
	m.reminders[id] = r
	return nil
}

// memLocker serializes critical sections per key, like the Redis locker but
// blocking instead of failing fast.
type memLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newMemLocker() *memLocker {
	return &memLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *memLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	lk, ok := l.locks[key]
	if !ok {
		lk = &sync.Mutex{}
		l.locks[key] = lk
	}
	l.mu.Unlock()

	lk.Lock()
	defer lk.Unlock()
	return fn(ctx)
}

// memLeaser grants the lease to at most one holder at a time.
type memLeaser struct {
	mu sync.Mutex
}

func (l *memLeaser) TryLease(_ context.Context, _ string, _ time.Duration) (func(), error) {
	if !l.mu.TryLock() {
		return nil, redisclient.ErrLeaseNotAcquired
	}
	return l.mu.Unlock, nil
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

// memMailer records sends; addresses in failFor fail their dispatch.
type memMailer struct {
	mu      sync.Mutex
	sent    []sentMail
	failFor map[string]bool
}

func newMemMailer() *memMailer {
	return &memMailer{failFor: make(map[string]bool)}
}

func (m *memMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[to] {
		return errDispatch
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *memMailer) sentTo(to string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sent {
		if s.To == to {
			n++
		}
	}
	return n
}

func (m *memMailer) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

var errDispatch = dispatchError{}

type dispatchError struct{}

func (dispatchError) Error() string { return "smtp unreachable" }
