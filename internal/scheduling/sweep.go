package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hajri-aziz/Backend-sub000/internal/notify"
	"github.com/hajri-aziz/Backend-sub000/internal/redisclient"
)

const (
	sweepLeaseKey  = "reminder-sweep"
	perItemTimeout = 10 * time.Second
)

// Sweeper delivers due reminders. It exclusively owns the pending ->
// delivered transition.
type Sweeper struct {
	repo        Repository
	mailer      notify.Mailer
	leaser      redisclient.Leaser
	leaseTTL    time.Duration
	maxAttempts int
	log         zerolog.Logger
}

func NewSweeper(repo Repository, mailer notify.Mailer, leaser redisclient.Leaser, leaseTTL time.Duration, maxAttempts int, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		repo:        repo,
		mailer:      mailer,
		leaser:      leaser,
		leaseTTL:    leaseTTL,
		maxAttempts: maxAttempts,
		log:         log.With().Str("component", "reminder-sweep").Logger(),
	}
}

type SweepStats struct {
	Due       int
	Delivered int
	Skipped   int
	Failed    int
}

// RunReminderSweep scans pending reminders whose due time has elapsed and
// dispatches each at most once per run. The lease keeps runs from
// overlapping across instances; the conditional delivered-mark keeps the
// state transition one-way even if a reminder is seen twice. Dispatch is
// ordered before marking so a crash in between re-delivers rather than
// silently drops.
func (s *Sweeper) RunReminderSweep(ctx context.Context, now time.Time) (SweepStats, error) {
	var stats SweepStats

	release, err := s.leaser.TryLease(ctx, sweepLeaseKey, s.leaseTTL)
	if err != nil {
		if errors.Is(err, redisclient.ErrLeaseNotAcquired) {
			s.log.Debug().Msg("previous sweep still holds the lease, skipping run")
			return stats, nil
		}
		return stats, fmt.Errorf("acquire sweep lease: %w", err)
	}
	defer release()

	due, err := s.repo.DueReminders(ctx, now, s.maxAttempts)
	if err != nil {
		return stats, fmt.Errorf("query due reminders: %w", err)
	}
	stats.Due = len(due)

	for _, rem := range due {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		s.process(ctx, rem, &stats)
	}

	if stats.Due > 0 {
		s.log.Info().
			Int("due", stats.Due).
			Int("delivered", stats.Delivered).
			Int("skipped", stats.Skipped).
			Int("failed", stats.Failed).
			Msg("sweep complete")
	}
	return stats, nil
}

func (s *Sweeper) process(ctx context.Context, rem Reminder, stats *SweepStats) {
	// One slow dispatch must not stall the whole sweep.
	itemCtx, cancel := context.WithTimeout(ctx, perItemTimeout)
	defer cancel()

	patient, err := s.repo.GetPatientByID(itemCtx, rem.PatientID)
	if err != nil || patient.Email == nil || *patient.Email == "" {
		stats.Skipped++
		s.log.Warn().
			Str("reminder_id", rem.ID.String()).
			Str("patient_id", rem.PatientID.String()).
			Msg("no contact address, will retry within attempt budget")
		s.bump(ctx, rem)
		return
	}

	subject := "Appointment reminder"
	if rem.Kind == KindEvent {
		subject = "Event reminder"
	}

	if err := s.mailer.Send(itemCtx, *patient.Email, subject, rem.Message); err != nil {
		stats.Failed++
		s.log.Error().Err(err).
			Str("reminder_id", rem.ID.String()).
			Msg("dispatch failed, leaving reminder pending")
		s.bump(ctx, rem)
		return
	}

	marked, err := s.repo.MarkReminderDelivered(ctx, rem.ID)
	if err != nil {
		// Sent but not recorded: the next sweep re-sends. Biased toward
		// at-least-once rather than losing the reminder.
		stats.Failed++
		s.log.Error().Err(err).
			Str("reminder_id", rem.ID.String()).
			Msg("could not mark reminder delivered after send")
		return
	}
	if !marked {
		s.log.Warn().
			Str("reminder_id", rem.ID.String()).
			Msg("reminder already marked delivered elsewhere")
		return
	}
	stats.Delivered++
}

func (s *Sweeper) bump(ctx context.Context, rem Reminder) {
	if err := s.repo.BumpReminderAttempts(ctx, rem.ID); err != nil {
		s.log.Error().Err(err).
			Str("reminder_id", rem.ID.String()).
			Msg("could not record delivery attempt")
	}
	if rem.Attempts+1 >= s.maxAttempts {
		s.log.Error().
			Str("reminder_id", rem.ID.String()).
			Int("attempts", rem.Attempts+1).
			Msg("reminder exhausted its attempt budget")
	}
}
