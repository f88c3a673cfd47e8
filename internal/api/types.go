package api

import (
	"time"

	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

type BookAppointmentRequest struct {
	PsychologistID string `json:"psychologist_id" validate:"required,uuid4"`
	PatientID      string `json:"patient_id" validate:"required,uuid4"`
	Date           string `json:"date" validate:"required,datetime=2006-01-02"`
	Time           string `json:"time" validate:"required"`
	Reason         string `json:"reason" validate:"max=500"`
}

type AppointmentResponse struct {
	ID             uuid.UUID `json:"id"`
	PsychologistID uuid.UUID `json:"psychologist_id"`
	PatientID      uuid.UUID `json:"patient_id"`
	Date           string    `json:"date"`
	Time           string    `json:"time"`
	Reason         string    `json:"reason,omitempty"`
	Status         string    `json:"status"`
}

type CreateWindowRequest struct {
	PsychologistID string `json:"psychologist_id" validate:"required,uuid4"`
	Date           string `json:"date" validate:"required,datetime=2006-01-02"`
	Start          string `json:"start" validate:"required"`
	End            string `json:"end" validate:"required"`
}

type WindowResponse struct {
	ID             uuid.UUID `json:"id"`
	PsychologistID uuid.UUID `json:"psychologist_id"`
	Date           string    `json:"date"`
	Start          string    `json:"start"`
	End            string    `json:"end"`
	Status         string    `json:"status"`
}

type RegisterRequest struct {
	PatientID string `json:"patient_id" validate:"required,uuid4"`
}

type EventResponse struct {
	ID           uuid.UUID   `json:"id"`
	Title        string      `json:"title"`
	Date         string      `json:"date"`
	Start        string      `json:"start"`
	Capacity     int         `json:"capacity"`
	Participants []uuid.UUID `json:"participants"`
}

type EnrollRequest struct {
	UserID string `json:"user_id" validate:"required,uuid4"`
}

type RescheduleRequest struct {
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
	Location *string    `json:"location"`
}

type SessionResponse struct {
	ID            uuid.UUID `json:"id"`
	Title         string    `json:"title"`
	StartsAt      time.Time `json:"starts_at"`
	EndsAt        time.Time `json:"ends_at"`
	Location      string    `json:"location"`
	Capacity      int       `json:"capacity"`
	Enrolled      int       `json:"enrolled"`
	NotifiedCount *int      `json:"notified_count,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
