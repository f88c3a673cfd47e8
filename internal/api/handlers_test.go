package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hajri-aziz/Backend-sub000/internal/scheduling"
)

func TestHandleSchedulingError(t *testing.T) {
	cases := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{scheduling.ErrPatientNotFound, http.StatusNotFound, "patient_not_found"},
		{scheduling.ErrEventNotFound, http.StatusNotFound, "event_not_found"},
		{scheduling.ErrNotRegistered, http.StatusNotFound, "not_registered"},
		{scheduling.ErrSlotUnavailable, http.StatusConflict, "slot_unavailable"},
		{scheduling.ErrWindowConflict, http.StatusConflict, "slot_conflict"},
		{scheduling.ErrCapacityExceeded, http.StatusConflict, "capacity_exceeded"},
		{scheduling.ErrAlreadyRegistered, http.StatusConflict, "already_registered"},
		{scheduling.ErrInvalidTransition, http.StatusConflict, "invalid_status_transition"},
		{scheduling.ErrBadClock, http.StatusBadRequest, "invalid_time"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		handleSchedulingError(rec, tc.err)

		if rec.Code != tc.wantStatus {
			t.Errorf("%v: status = %d, want %d", tc.err, rec.Code, tc.wantStatus)
		}
		var resp ErrorResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Errorf("%v: decode body: %v", tc.err, err)
			continue
		}
		if resp.Error != tc.wantCode {
			t.Errorf("%v: code = %q, want %q", tc.err, resp.Error, tc.wantCode)
		}
	}
}

func TestBookAppointmentHandlerRejectsBadInput(t *testing.T) {
	// Rejection happens before the service is touched.
	handler := bookAppointmentHandler(nil)

	cases := []struct {
		name string
		body string
	}{
		{name: "malformed JSON", body: `{"psychologist_id":`},
		{name: "malformed psychologist id", body: `{"psychologist_id":"not-a-uuid","patient_id":"7e8c5a1e-2f6d-4a4e-9f0a-3b1c2d3e4f5a","date":"2025-06-10","time":"09:30"}`},
		{name: "malformed patient id", body: `{"psychologist_id":"7e8c5a1e-2f6d-4a4e-9f0a-3b1c2d3e4f5a","patient_id":"nope","date":"2025-06-10","time":"09:30"}`},
		{name: "malformed date", body: `{"psychologist_id":"7e8c5a1e-2f6d-4a4e-9f0a-3b1c2d3e4f5a","patient_id":"7e8c5a1e-2f6d-4a4e-9f0a-3b1c2d3e4f5b","date":"June 10","time":"09:30"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()

			handler(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}
