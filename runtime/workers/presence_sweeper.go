package workers

import (
	"chat-presence/domain"
	"chat-presence/errors"
	"chat-presence/repositories"
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

const (
	DefaultSweepPeriod     = 15 * time.Second
	DefaultExpiryThreshold = 10 * time.Second
)

// SweepReport describes one sweep cycle.
// Failed is keyed by participant name. A name can be both Evicted and Failed
// when the participant was removed but its departure notice could not be stored.
type SweepReport struct {
	Evicted    []string
	Skipped    []string
	Failed     map[string]error
	Err        error
	Overlapped bool
}

// PresenceSweeper evicts participants that stopped sending heartbeats and
// announces each departure in the message log.
type PresenceSweeper struct {
	log          *slog.Logger
	participants repositories.IParticipantRepository
	messages     repositories.IMessageRepository
	clock        domain.Clock
	period       time.Duration
	threshold    time.Duration
	sweeping     atomic.Bool
}

// NewPresenceSweeper requires threshold < period so a participant that keeps
// its heartbeats can never be caught between two sweeps.
func NewPresenceSweeper(
	log *slog.Logger,
	participants repositories.IParticipantRepository,
	messages repositories.IMessageRepository,
	clock domain.Clock,
	period, threshold time.Duration,
) (*PresenceSweeper, error) {
	if threshold <= 0 || period <= 0 || threshold >= period {
		return nil, fmt.Errorf("%w: threshold=%s period=%s", errors.ErrInvalidSweepConfig, threshold, period)
	}
	return &PresenceSweeper{
		log:          log,
		participants: participants,
		messages:     messages,
		clock:        clock,
		period:       period,
		threshold:    threshold,
	}, nil
}

func (s *PresenceSweeper) Name() string {
	return "presence-sweeper"
}

// Run sweeps every period until ctx is cancelled.
func (s *PresenceSweeper) Run(ctx context.Context) error {
	s.log.Info("Starting presence sweeper", "period", s.period, "threshold", s.threshold)
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Debug("Stopping presence sweeper")
			return ctx.Err()
		case <-ticker.C:
			report := s.Sweep(ctx)
			if len(report.Evicted) > 0 || len(report.Failed) > 0 {
				s.log.Info("Sweep done",
					"evicted", report.Evicted,
					"skipped", report.Skipped,
					"failed", len(report.Failed))
			}
		}
	}
}

// Sweep runs one cycle. Each stale participant is processed on its own:
// a failure is recorded in the report and the cycle moves on.
// A call made while another sweep is running returns at once with Overlapped set.
func (s *PresenceSweeper) Sweep(ctx context.Context) SweepReport {
	if !s.sweeping.CompareAndSwap(false, true) {
		s.log.Warn("Sweep already in progress, skipping")
		return SweepReport{Overlapped: true}
	}
	defer s.sweeping.Store(false)

	report := SweepReport{Failed: make(map[string]error)}
	participants, err := s.participants.List()
	if err != nil {
		s.log.Error("Failed to snapshot participants", "error", err)
		report.Err = err
		return report
	}

	now := s.clock.Now()
	staleBefore := now.Add(-s.threshold)
	for _, participant := range participants {
		if ctx.Err() != nil {
			report.Err = ctx.Err()
			break
		}
		if participant.IsStale(now, s.threshold) {
			s.evict(participant, staleBefore, &report)
		}
	}
	return report
}

// evict removes the participant, then appends the departure notice.
// The two writes are not atomic: a failed notice leaves the participant
// removed without announcement.
func (s *PresenceSweeper) evict(participant domain.Participant, staleBefore time.Time, report *SweepReport) {
	removed, err := s.participants.RemoveIfStale(participant.ID, staleBefore)
	if err != nil {
		s.log.Error("Failed to remove stale participant", "name", participant.Name, "error", err)
		report.Failed[participant.Name] = err
		return
	}
	if !removed {
		s.log.Debug("Participant refreshed or gone before removal", "name", participant.Name)
		report.Skipped = append(report.Skipped, participant.Name)
		return
	}
	report.Evicted = append(report.Evicted, participant.Name)

	notice := domain.NewStatusMessage(participant.Name, domain.LeftText, s.clock.Now())
	if _, err := s.messages.Append(notice); err != nil {
		s.log.Error("Participant removed without departure notice", "name", participant.Name, "error", err)
		report.Failed[participant.Name] = err
	}
}
