package cycle

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// TipReader gives read access to the chain tip.
type TipReader interface {
	CurrentTip() []byte
}

type timerFactory func(time.Duration) <-chan time.Time

// Scheduler drives the phases of the consensus cycle. It loops through
// Construction, Campaigning and Voting until its context is cancelled, and
// emits a PhaseChange at every transition.
type Scheduler struct {
	timing Timing
	align  bool
	tips   TipReader

	phaseCh      chan PhaseChange
	timerFactory timerFactory
	now          func() time.Time

	logger *logrus.Entry
}

// NewScheduler creates a Scheduler. When align is true, cycles start on
// multiples of the cycle duration since the zero time, so that nodes with
// synchronized clocks share phase boundaries.
func NewScheduler(timing Timing, align bool, tips TipReader, logger *logrus.Entry) (*Scheduler, error) {
	if err := timing.Validate(); err != nil {
		return nil, err
	}

	return &Scheduler{
		timing:       timing,
		align:        align,
		tips:         tips,
		phaseCh:      make(chan PhaseChange, 6),
		timerFactory: time.After,
		now:          time.Now,
		logger:       logger.WithField("component", "scheduler"),
	}, nil
}

// PhaseChanges returns the channel of transitions. It is closed when Run
// returns.
func (s *Scheduler) PhaseChanges() <-chan PhaseChange {
	return s.phaseCh
}

// NextCycleStart returns the start of the first cycle that begins at or after
// t.
func (s *Scheduler) NextCycleStart(t time.Time) time.Time {
	if !s.align {
		return t
	}
	start := t.Truncate(s.timing.CycleDuration())
	if start.Before(t) {
		start = start.Add(s.timing.CycleDuration())
	}
	return start
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	defer close(s.phaseCh)

	steps := s.timing.steps()
	next := s.NextCycleStart(s.now())

	s.logger.WithField("first_cycle", next).Debug("Scheduler started")

	for i := 0; ; i = (i + 1) % len(steps) {
		select {
		case <-s.timerFactory(next.Sub(s.now())):
		case <-ctx.Done():
			return ctx.Err()
		}

		pc := PhaseChange{
			Name:         steps[i].name,
			Status:       steps[i].status,
			PreviousHash: s.tips.CurrentTip(),
			Timestamp:    s.now(),
		}

		select {
		case s.phaseCh <- pc:
		case <-ctx.Done():
			return ctx.Err()
		}

		s.logger.WithField("phase", pc.String()).Debug("Phase change")

		next = next.Add(steps[i].duration)
	}
}
