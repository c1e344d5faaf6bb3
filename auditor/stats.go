package auditor

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/screwyprof/ballotaudit/pkg/contracts"
)

// VoterStat counts the ballots a voter could vote on and did vote on.
// BallotsVoted never exceeds BallotsEligible.
type VoterStat struct {
	BallotsEligible uint64
	BallotsVoted    uint64
	MiningKey       *common.Address
	Identity        *contracts.Validator
}

// Missed is the number of eligible ballots the voter did not vote on.
func (s VoterStat) Missed() uint64 {
	return s.BallotsEligible - s.BallotsVoted
}

// Participation is voted/eligible, or 1 when the voter was never eligible.
func (s VoterStat) Participation() float64 {
	if s.BallotsEligible == 0 {
		return 1
	}
	return float64(s.BallotsVoted) / float64(s.BallotsEligible)
}

// Stats maps voting keys to their statistics. Entries are created on the
// first ballot a voter is eligible for. After Freeze every mutation fails.
type Stats struct {
	voters  map[common.Address]*VoterStat
	ballots int
	frozen  bool
}

// NewStats returns empty stats.
func NewStats() *Stats {
	return &Stats{voters: make(map[common.Address]*VoterStat)}
}

// AddBallot counts one ballot: every eligible voter gains an eligible ballot,
// those in voted also gain a vote. Voters outside eligible are not counted.
func (s *Stats) AddBallot(eligible []common.Address, voted map[common.Address]struct{}) error {
	if s.frozen {
		return ErrStatsFrozen
	}
	for _, voter := range eligible {
		vs, ok := s.voters[voter]
		if !ok {
			vs = &VoterStat{}
			s.voters[voter] = vs
		}
		vs.BallotsEligible++
		if _, ok := voted[voter]; ok {
			vs.BallotsVoted++
		}
	}
	s.ballots++
	return nil
}

// SetMetadata attaches the mining key and, if known, the identity of a voter.
func (s *Stats) SetMetadata(voter, miningKey common.Address, identity *contracts.Validator) error {
	if s.frozen {
		return ErrStatsFrozen
	}
	vs, ok := s.voters[voter]
	if !ok {
		return fmt.Errorf("no stats for voter %s", voter.Hex())
	}
	key := miningKey
	vs.MiningKey = &key
	vs.Identity = identity
	return nil
}

// Freeze makes the stats read-only.
func (s *Stats) Freeze() {
	s.frozen = true
}

func (s *Stats) Frozen() bool {
	return s.frozen
}

// Get returns a copy of the stats of voter.
func (s *Stats) Get(voter common.Address) (VoterStat, bool) {
	vs, ok := s.voters[voter]
	if !ok {
		return VoterStat{}, false
	}
	return *vs, true
}

// Voters returns all tallied voters in address order.
func (s *Stats) Voters() []common.Address {
	out := make([]common.Address, 0, len(s.voters))
	for a := range s.voters {
		out = append(out, a)
	}
	SortAddresses(out)
	return out
}

// Ballots returns the number of ballots counted.
func (s *Stats) Ballots() int {
	return s.ballots
}

func (s *Stats) Len() int {
	return len(s.voters)
}
