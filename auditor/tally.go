package auditor

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TallyConfig holds the caller-supplied ballot filters. The zero value
// accepts every ballot.
type TallyConfig struct {
	MinBlock uint64
	MinTime  time.Time
}

// FetchVotesFunc returns the votes cast on a ballot by the contract that created it.
type FetchVotesFunc func(ctx context.Context, ballot BallotCreated) ([]Vote, error)

// BlockTimer returns block timestamps
type BlockTimer interface {
	BlockTime(ctx context.Context, number uint64) (time.Time, error)
}

// BallotTally counts eligibility and participation for every ballot, in the
// order ballots are applied.
type BallotTally struct {
	cfg     TallyConfig
	tracker *VoterSetTracker
	stats   *Stats
	votes   FetchVotesFunc
	blocks  BlockTimer
	emit    func(Event)
}

// NewBallotTally creates a tally. emit may be nil.
func NewBallotTally(cfg TallyConfig, tracker *VoterSetTracker, stats *Stats, votes FetchVotesFunc, blocks BlockTimer, emit func(Event)) *BallotTally {
	if emit == nil {
		emit = func(Event) {}
	}
	return &BallotTally{
		cfg:     cfg,
		tracker: tracker,
		stats:   stats,
		votes:   votes,
		blocks:  blocks,
		emit:    emit,
	}
}

// Config returns the filters the tally was created with.
func (t *BallotTally) Config() TallyConfig {
	return t.cfg
}

// Apply tallies one ballot against the voter set as it is right now.
func (t *BallotTally) Apply(ctx context.Context, ballot BallotCreated) error {
	skip, reason, err := t.skip(ctx, ballot)
	if err != nil {
		return err
	}
	if skip {
		t.emit(BallotSkipped{Block: ballot.Block, Ballot: ballot, Reason: reason})
		return nil
	}

	votes, err := t.votes(ctx, ballot)
	if err != nil {
		return fmt.Errorf("fetching votes of ballot %s: %w", ballot.ID, err)
	}

	voted := make(map[common.Address]struct{}, len(votes))
	for _, v := range votes {
		if v.BallotID == nil || v.BallotID.Cmp(ballot.ID) != 0 {
			continue
		}
		if _, dup := voted[v.Voter]; dup {
			t.emit(DuplicateVote{BallotID: ballot.ID, Voter: v.Voter})
			continue
		}
		voted[v.Voter] = struct{}{}

		if t.tracker.Insert(v.Voter) {
			t.emit(UnexpectedVoter{BallotID: ballot.ID, Voter: v.Voter})
		}
	}

	eligible := t.tracker.Voters().Sorted()
	if err := t.stats.AddBallot(eligible, voted); err != nil {
		return err
	}

	t.emit(BallotTallied{Block: ballot.Block, Ballot: ballot, Eligible: len(eligible), Voted: len(voted)})
	return nil
}

func (t *BallotTally) skip(ctx context.Context, ballot BallotCreated) (bool, string, error) {
	return t.cfg.excludes(ctx, t.blocks, ballot)
}

// excludes reports whether a ballot falls before the counting window.
func (c TallyConfig) excludes(ctx context.Context, blocks BlockTimer, ballot BallotCreated) (bool, string, error) {
	if ballot.Block < c.MinBlock {
		return true, fmt.Sprintf("block %d is below the minimum block %d", ballot.Block, c.MinBlock), nil
	}
	if c.MinTime.IsZero() {
		return false, "", nil
	}

	created, err := blocks.BlockTime(ctx, ballot.Block)
	if err != nil {
		return false, "", fmt.Errorf("%w: reading time of block %d: %w", ErrTransport, ballot.Block, err)
	}
	if created.Before(c.MinTime) {
		return true, fmt.Sprintf("created at %s, before %s", created.Format(time.RFC3339), c.MinTime.Format(time.RFC3339)), nil
	}
	return false, "", nil
}
