package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hajri-aziz/Backend-sub000/internal/scheduling"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func appointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:             a.ID,
		PsychologistID: a.PsychologistID,
		PatientID:      a.PatientID,
		Date:           a.Day.Format(dateLayout),
		Time:           a.At,
		Reason:         a.Reason,
		Status:         string(a.Status),
	}
}

func windowResponse(w *scheduling.AvailabilityWindow) WindowResponse {
	return WindowResponse{
		ID:             w.ID,
		PsychologistID: w.PsychologistID,
		Date:           w.Day.Format(dateLayout),
		Start:          w.Start,
		End:            w.End,
		Status:         string(w.Status),
	}
}

func eventResponse(e *scheduling.Event) EventResponse {
	resp := EventResponse{
		ID:       e.ID,
		Title:    e.Title,
		Date:     e.Day.Format(dateLayout),
		Start:    e.Start,
		Capacity: e.Capacity,
	}
	for _, p := range e.Participants {
		resp.Participants = append(resp.Participants, p.PatientID)
	}
	return resp
}

func sessionResponse(s *scheduling.CourseSession, notified *int) SessionResponse {
	return SessionResponse{
		ID:            s.ID,
		Title:         s.Title,
		StartsAt:      s.StartsAt.UTC(),
		EndsAt:        s.EndsAt.UTC(),
		Location:      s.Location,
		Capacity:      s.Capacity,
		Enrolled:      len(s.Participants),
		NotifiedCount: notified,
	}
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}
