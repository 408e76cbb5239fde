package cycle

import (
	"fmt"
	"time"

	"github.com/catalyst-network/Catalyst-sub014/src/common"
)

// PhaseName ...
type PhaseName uint8

const (
	// Construction is the phase in which producers build candidates
	Construction PhaseName = iota
	// Campaigning is the phase in which nodes vote for their favourite
	Campaigning
	// Voting is the phase in which the winner is committed
	Voting
)

// String ...
func (p PhaseName) String() string {
	switch p {
	case Construction:
		return "Construction"
	case Campaigning:
		return "Campaigning"
	case Voting:
		return "Voting"
	default:
		return "Unknown"
	}
}

// PhaseStatus ...
type PhaseStatus uint8

const (
	// Producing is the window of the local action of a phase
	Producing PhaseStatus = iota
	// Collating is a listening window that lets gossip diffuse
	Collating
)

// String ...
func (s PhaseStatus) String() string {
	switch s {
	case Producing:
		return "Producing"
	case Collating:
		return "Collating"
	default:
		return "Unknown"
	}
}

// PhaseChange is emitted once per phase/status transition. PreviousHash is the
// chain tip at emission time.
type PhaseChange struct {
	Name         PhaseName
	Status       PhaseStatus
	PreviousHash []byte
	Timestamp    time.Time
}

// String ...
func (pc PhaseChange) String() string {
	return fmt.Sprintf("%s/%s %s", pc.Name, pc.Status, common.EncodeToString(pc.PreviousHash))
}

// Is ...
func (pc PhaseChange) Is(name PhaseName, status PhaseStatus) bool {
	return pc.Name == name && pc.Status == status
}

// PhaseTiming is the duration of the two windows of a phase.
type PhaseTiming struct {
	Producing time.Duration `mapstructure:"producing"`
	Collating time.Duration `mapstructure:"collating"`
}

// Duration ...
func (pt PhaseTiming) Duration() time.Duration {
	return pt.Producing + pt.Collating
}

// Timing holds the durations of the three phases of a cycle.
type Timing struct {
	Construction PhaseTiming `mapstructure:"construction"`
	Campaigning  PhaseTiming `mapstructure:"campaigning"`
	Voting       PhaseTiming `mapstructure:"voting"`
}

// DefaultTiming ...
func DefaultTiming() Timing {
	return Timing{
		Construction: PhaseTiming{Producing: 2 * time.Second, Collating: 2 * time.Second},
		Campaigning:  PhaseTiming{Producing: 2 * time.Second, Collating: 2 * time.Second},
		Voting:       PhaseTiming{Producing: 2 * time.Second, Collating: 2 * time.Second},
	}
}

// CycleDuration is the length of one Construction-Campaigning-Voting cycle.
func (t Timing) CycleDuration() time.Duration {
	return t.Construction.Duration() + t.Campaigning.Duration() + t.Voting.Duration()
}

// Validate ...
func (t Timing) Validate() error {
	for _, d := range []time.Duration{
		t.Construction.Producing, t.Construction.Collating,
		t.Campaigning.Producing, t.Campaigning.Collating,
		t.Voting.Producing, t.Voting.Collating,
	} {
		if d < 0 {
			return fmt.Errorf("negative phase duration %v", d)
		}
	}
	if t.CycleDuration() <= 0 {
		return fmt.Errorf("cycle duration must be positive")
	}
	return nil
}

type step struct {
	name     PhaseName
	status   PhaseStatus
	duration time.Duration
}

// steps lists the transitions of a cycle in order.
func (t Timing) steps() []step {
	return []step{
		{Construction, Producing, t.Construction.Producing},
		{Construction, Collating, t.Construction.Collating},
		{Campaigning, Producing, t.Campaigning.Producing},
		{Campaigning, Collating, t.Campaigning.Collating},
		{Voting, Producing, t.Voting.Producing},
		{Voting, Collating, t.Voting.Collating},
	}
}
