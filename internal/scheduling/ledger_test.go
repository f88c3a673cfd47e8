package scheduling

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestParseClock(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "09:30", want: "09:30"},
		{in: "9:30", want: "09:30"},
		{in: "00:00", want: "00:00"},
		{in: "23:59", want: "23:59"},
		{in: "24:00", wantErr: true},
		{in: "09:60", wantErr: true},
		{in: "half past nine", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseClock(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrBadClock) {
				t.Errorf("ParseClock(%q) err = %v, want ErrBadClock", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClock(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseClock(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLedgerCreateWindow(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a free window with canonical clocks", func(t *testing.T) {
		repo := newMemRepo()
		ledger := NewLedger(repo)
		psy := repo.addPsychologist()

		w, err := ledger.CreateWindow(ctx, psy, day(2025, 6, 10), "9:00", "10:30")
		if err != nil {
			t.Fatalf("CreateWindow: %v", err)
		}
		if w.Start != "09:00" || w.End != "10:30" {
			t.Errorf("window = [%s, %s), want [09:00, 10:30)", w.Start, w.End)
		}
		if w.Status != WindowFree {
			t.Errorf("status = %s, want free", w.Status)
		}
	})

	t.Run("rejects inverted and degenerate intervals", func(t *testing.T) {
		repo := newMemRepo()
		ledger := NewLedger(repo)
		psy := repo.addPsychologist()

		if _, err := ledger.CreateWindow(ctx, psy, day(2025, 6, 10), "10:00", "09:00"); !errors.Is(err, ErrBadClock) {
			t.Errorf("inverted err = %v, want ErrBadClock", err)
		}
		if _, err := ledger.CreateWindow(ctx, psy, day(2025, 6, 10), "10:00", "10:00"); !errors.Is(err, ErrBadClock) {
			t.Errorf("empty err = %v, want ErrBadClock", err)
		}
	})

	t.Run("rejects overlap with an existing same-day window", func(t *testing.T) {
		repo := newMemRepo()
		ledger := NewLedger(repo)
		psy := repo.addPsychologist()
		d := day(2025, 6, 10)
		repo.addWindow(psy, d, "09:00", "11:00")

		if _, err := ledger.CreateWindow(ctx, psy, d, "10:00", "12:00"); !errors.Is(err, ErrOverlappingWindow) {
			t.Errorf("err = %v, want ErrOverlappingWindow", err)
		}

		// Touching at the boundary is not overlap.
		if _, err := ledger.CreateWindow(ctx, psy, d, "11:00", "12:00"); err != nil {
			t.Errorf("adjacent window: %v", err)
		}
		// A different day never conflicts.
		if _, err := ledger.CreateWindow(ctx, psy, day(2025, 6, 11), "10:00", "12:00"); err != nil {
			t.Errorf("other day: %v", err)
		}
	})

	t.Run("unknown owner", func(t *testing.T) {
		repo := newMemRepo()
		ledger := NewLedger(repo)

		if _, err := ledger.CreateWindow(ctx, uuid.New(), day(2025, 6, 10), "09:00", "10:00"); !errors.Is(err, ErrPsychologistNotFound) {
			t.Errorf("err = %v, want ErrPsychologistNotFound", err)
		}
	})
}

func TestLedgerFindFree(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	ledger := NewLedger(repo)

	psy := repo.addPsychologist()
	d := day(2025, 6, 10)
	winID := repo.addWindow(psy, d, "09:00", "10:00")

	t.Run("start is inclusive, end is exclusive", func(t *testing.T) {
		w, err := ledger.FindFree(ctx, psy, d, "09:00")
		if err != nil {
			t.Fatalf("at start: %v", err)
		}
		if w.ID != winID {
			t.Errorf("found window %s, want %s", w.ID, winID)
		}
		if _, err := ledger.FindFree(ctx, psy, d, "10:00"); !errors.Is(err, ErrSlotUnavailable) {
			t.Errorf("at end err = %v, want ErrSlotUnavailable", err)
		}
	})

	t.Run("non-canonical clock still matches", func(t *testing.T) {
		if _, err := ledger.FindFree(ctx, psy, d, "9:30"); err != nil {
			t.Errorf("FindFree(9:30): %v", err)
		}
	})

	t.Run("booked windows are invisible", func(t *testing.T) {
		if err := ledger.MarkBooked(ctx, winID); err != nil {
			t.Fatalf("MarkBooked: %v", err)
		}
		if _, err := ledger.FindFree(ctx, psy, d, "09:30"); !errors.Is(err, ErrSlotUnavailable) {
			t.Errorf("err = %v, want ErrSlotUnavailable", err)
		}
	})

	t.Run("booking a booked window is a conflict", func(t *testing.T) {
		if err := ledger.MarkBooked(ctx, winID); !errors.Is(err, ErrWindowConflict) {
			t.Errorf("err = %v, want ErrWindowConflict", err)
		}
	})
}

func TestLedgerMarkFree(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	ledger := NewLedger(repo)

	psy := repo.addPsychologist()
	d := day(2025, 6, 10)
	winID := repo.addWindow(psy, d, "09:00", "10:00")

	if err := ledger.MarkBooked(ctx, winID); err != nil {
		t.Fatalf("MarkBooked: %v", err)
	}
	if err := ledger.MarkFree(ctx, psy, d, "09:30"); err != nil {
		t.Fatalf("MarkFree: %v", err)
	}
	if got := repo.window(winID).Status; got != WindowFree {
		t.Errorf("status = %s, want free", got)
	}

	// Nothing booked left; releasing again is a no-op.
	if err := ledger.MarkFree(ctx, psy, d, "09:30"); err != nil {
		t.Errorf("repeat MarkFree: %v", err)
	}
}

func TestLedgerMarkFreeReleasesOnlyContainingWindow(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	ledger := NewLedger(repo)

	psy := repo.addPsychologist()
	d := day(2025, 6, 10)
	morning := repo.addWindow(psy, d, "09:00", "10:00")
	afternoon := repo.addWindow(psy, d, "14:00", "15:00")

	if err := ledger.MarkBooked(ctx, morning); err != nil {
		t.Fatalf("book morning: %v", err)
	}
	if err := ledger.MarkBooked(ctx, afternoon); err != nil {
		t.Fatalf("book afternoon: %v", err)
	}

	if err := ledger.MarkFree(ctx, psy, d, "09:30"); err != nil {
		t.Fatalf("MarkFree: %v", err)
	}
	if got := repo.window(morning).Status; got != WindowFree {
		t.Errorf("morning window status = %s, want free", got)
	}
	if got := repo.window(afternoon).Status; got != WindowBooked {
		t.Errorf("afternoon window status = %s, want booked", got)
	}
}
