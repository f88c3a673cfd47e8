package scheduling

import "github.com/google/uuid"

// canEnroll is the shared admission predicate for capacity-bounded entities.
// It classifies the failure for the caller; the authoritative check-then-
// commit happens inside the repository's conditional append.
func canEnroll(participants []uuid.UUID, capacity int, candidate uuid.UUID) error {
	for _, id := range participants {
		if id == candidate {
			return ErrAlreadyRegistered
		}
	}
	if len(participants) >= capacity {
		return ErrCapacityExceeded
	}
	return nil
}

func eventParticipantIDs(e *Event) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(e.Participants))
	for _, p := range e.Participants {
		ids = append(ids, p.PatientID)
	}
	return ids
}

func sessionParticipantIDs(s *CourseSession) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s.Participants))
	for _, p := range s.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}
