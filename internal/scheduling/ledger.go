package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Ledger owns the availability window set and its status transitions.
// Nothing else mutates window status.
type Ledger struct {
	repo Repository
}

func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo}
}

// FindFree returns the free window owned by the psychologist whose
// [start, end) interval contains the requested clock on the given day.
// The clock is validated before the lookup.
func (l *Ledger) FindFree(ctx context.Context, psychologistID uuid.UUID, day time.Time, clock string) (*AvailabilityWindow, error) {
	canonical, err := ParseClock(clock)
	if err != nil {
		return nil, err
	}

	w, err := l.repo.FindFreeWindow(ctx, psychologistID, day, canonical)
	if err != nil {
		if errors.Is(err, ErrWindowNotFound) {
			return nil, ErrSlotUnavailable
		}
		return nil, fmt.Errorf("find free window: %w", err)
	}
	return w, nil
}

// MarkBooked transitions free -> booked. ErrWindowConflict when a concurrent
// booking got there first.
func (l *Ledger) MarkBooked(ctx context.Context, windowID uuid.UUID) error {
	return l.repo.SetWindowStatus(ctx, windowID, WindowFree, WindowBooked)
}

// MarkFree releases the booked window for owner+day containing clock. A
// missing window is a no-op, tolerating manual edits to the availability set.
func (l *Ledger) MarkFree(ctx context.Context, psychologistID uuid.UUID, day time.Time, clock string) error {
	_, err := l.repo.FreeBookedWindow(ctx, psychologistID, day, clock)
	if err != nil {
		return fmt.Errorf("free window: %w", err)
	}
	return nil
}

// CreateWindow declares a new free window, rejecting malformed clocks and
// same-day overlap with the owner's existing windows.
func (l *Ledger) CreateWindow(ctx context.Context, psychologistID uuid.UUID, day time.Time, start, end string) (*AvailabilityWindow, error) {
	startC, err := ParseClock(start)
	if err != nil {
		return nil, err
	}
	endC, err := ParseClock(end)
	if err != nil {
		return nil, err
	}
	if startC >= endC {
		return nil, ErrBadClock
	}

	if _, err := l.repo.GetPsychologistByID(ctx, psychologistID); err != nil {
		return nil, err
	}

	existing, err := l.repo.ListWindows(ctx, psychologistID, day)
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}
	for _, w := range existing {
		if w.Overlaps(startC, endC) {
			return nil, ErrOverlappingWindow
		}
	}

	created, err := l.repo.CreateWindow(ctx, AvailabilityWindow{
		PsychologistID: psychologistID,
		Day:            day,
		Start:          startC,
		End:            endC,
	})
	if err != nil {
		return nil, fmt.Errorf("create window: %w", err)
	}
	return created, nil
}

// ListWindows returns the owner's windows for a day, booked ones included.
func (l *Ledger) ListWindows(ctx context.Context, psychologistID uuid.UUID, day time.Time) ([]AvailabilityWindow, error) {
	return l.repo.ListWindows(ctx, psychologistID, day)
}
