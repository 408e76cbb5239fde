package cycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/catalyst-network/Catalyst-sub014/src/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tip struct {
	sync.Mutex
	hash []byte
}

func (t *tip) CurrentTip() []byte {
	t.Lock()
	defer t.Unlock()
	return t.hash
}

func (t *tip) set(h []byte) {
	t.Lock()
	defer t.Unlock()
	t.hash = h
}

// fakeClock moves forward by the duration of every timer it creates.
type fakeClock struct {
	sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.Lock()
	defer c.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.Lock()
	defer c.Unlock()
	if d > 0 {
		c.now = c.now.Add(d)
	}
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func testTiming() Timing {
	return Timing{
		Construction: PhaseTiming{Producing: 1 * time.Second, Collating: 2 * time.Second},
		Campaigning:  PhaseTiming{Producing: 3 * time.Second, Collating: 4 * time.Second},
		Voting:       PhaseTiming{Producing: 5 * time.Second, Collating: 6 * time.Second},
	}
}

func newTestScheduler(t *testing.T, align bool, tips TipReader, start time.Time) (*Scheduler, *fakeClock) {
	s, err := NewScheduler(testTiming(), align, tips, common.NewTestEntry(t, logrus.DebugLevel))
	require.NoError(t, err)

	clock := &fakeClock{now: start}
	s.now = clock.Now
	s.timerFactory = clock.After
	return s, clock
}

func TestSchedulerOrder(t *testing.T) {
	tips := &tip{hash: []byte("genesis")}
	start := time.Unix(1000, 0)
	s, _ := newTestScheduler(t, false, tips, start)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error)
	go func() { done <- s.Run(ctx) }()

	expected := []struct {
		name   PhaseName
		status PhaseStatus
		offset time.Duration
	}{
		{Construction, Producing, 0},
		{Construction, Collating, 1 * time.Second},
		{Campaigning, Producing, 3 * time.Second},
		{Campaigning, Collating, 6 * time.Second},
		{Voting, Producing, 10 * time.Second},
		{Voting, Collating, 15 * time.Second},
		{Construction, Producing, 21 * time.Second},
		{Construction, Collating, 22 * time.Second},
	}

	for i, e := range expected {
		pc := <-s.PhaseChanges()
		assert.Equal(t, e.name, pc.Name, "event %d", i)
		assert.Equal(t, e.status, pc.Status, "event %d", i)
		assert.Equal(t, start.Add(e.offset), pc.Timestamp, "event %d", i)
		assert.Equal(t, []byte("genesis"), pc.PreviousHash)
	}

	cancel()
	// drain until the channel is closed
	for range s.PhaseChanges() {
	}
	assert.Equal(t, context.Canceled, <-done)
}

func TestSchedulerReadsTipAtEmission(t *testing.T) {
	tips := &tip{hash: []byte("genesis")}
	s, _ := newTestScheduler(t, false, tips, time.Unix(0, 0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	var pc PhaseChange
	for {
		pc = <-s.PhaseChanges()
		if pc.Is(Voting, Collating) {
			break
		}
	}

	tips.set([]byte("next"))

	// the buffered events may have been computed before the change, but the
	// next cycle is anchored on the new tip
	for {
		pc = <-s.PhaseChanges()
		if pc.Is(Construction, Producing) && string(pc.PreviousHash) == "next" {
			break
		}
	}
	assert.Equal(t, []byte("next"), pc.PreviousHash)
}

func TestNextCycleStart(t *testing.T) {
	tips := &tip{}
	s, _ := newTestScheduler(t, true, tips, time.Unix(0, 0))

	cycle := testTiming().CycleDuration()
	require.Equal(t, 21*time.Second, cycle)

	aligned := time.Unix(0, 0).Truncate(cycle).Add(100 * cycle)
	assert.Equal(t, aligned, s.NextCycleStart(aligned))
	assert.Equal(t, aligned.Add(cycle), s.NextCycleStart(aligned.Add(time.Millisecond)))
	assert.Equal(t, aligned.Add(cycle), s.NextCycleStart(aligned.Add(cycle-time.Millisecond)))
}

func TestSchedulerAlignedStart(t *testing.T) {
	cycle := testTiming().CycleDuration()
	start := time.Unix(0, 0).Truncate(cycle).Add(50*cycle + 7*time.Second)

	s, _ := newTestScheduler(t, true, &tip{}, start)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	pc := <-s.PhaseChanges()
	assert.True(t, pc.Is(Construction, Producing))
	assert.Equal(t, start.Add(cycle-7*time.Second), pc.Timestamp)
}

func TestTimingValidate(t *testing.T) {
	assert.NoError(t, DefaultTiming().Validate())
	assert.Error(t, Timing{}.Validate())

	bad := DefaultTiming()
	bad.Voting.Collating = -time.Second
	assert.Error(t, bad.Validate())

	_, err := NewScheduler(Timing{}, false, &tip{}, common.NewTestEntry(t, logrus.DebugLevel))
	assert.Error(t, err)
}
