package auditor

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/screwyprof/ballotaudit/pkg/contracts"
)

// Enricher resolves mining keys and validator identities for tallied voters.
// Only a transport failure while reading an identity aborts; every other
// miss is reported through EnrichmentFailed and the voter keeps its counts.
type Enricher struct {
	caller   Caller
	metadata common.Address
	found    bool
	emit     func(Event)
}

// NewEnricher uses the newest registered validator metadata contract. emit may be nil.
func NewEnricher(caller Caller, registry *Registry, emit func(Event)) *Enricher {
	if emit == nil {
		emit = func(Event) {}
	}
	addr, _, ok := registry.Newest(contracts.ValidatorMetadata)
	return &Enricher{caller: caller, metadata: addr, found: ok, emit: emit}
}

// Enrich annotates stats and freezes them.
func (e *Enricher) Enrich(ctx context.Context, stats *Stats) error {
	defer stats.Freeze()

	for _, voter := range stats.Voters() {
		if err := e.enrichVoter(ctx, stats, voter); err != nil {
			return err
		}
	}
	return nil
}

func (e *Enricher) enrichVoter(ctx context.Context, stats *Stats, voter common.Address) error {
	if !e.found {
		e.emit(EnrichmentFailed{Voter: voter, Err: fmt.Errorf("%w: no validator metadata contract registered", ErrIdentityUnavailable)})
		return nil
	}

	miningKey, err := contracts.MiningByVotingKey(ctx, e.caller, e.metadata, voter)
	if err != nil {
		e.emit(EnrichmentFailed{Voter: voter, Err: fmt.Errorf("%w: mining key lookup: %w", ErrIdentityUnavailable, err)})
		return nil
	}
	if miningKey == (common.Address{}) {
		e.emit(EnrichmentFailed{Voter: voter, Err: fmt.Errorf("%w: no mining key for voting key", ErrIdentityUnavailable)})
		return nil
	}

	validator, err := contracts.ValidatorByMiningKey(ctx, e.caller, e.metadata, miningKey)
	switch {
	case errors.Is(err, contracts.ErrCallFailed):
		return fmt.Errorf("%w: validator lookup for %s: %w", ErrTransport, miningKey.Hex(), err)
	case err != nil:
		e.emit(EnrichmentFailed{Voter: voter, Err: fmt.Errorf("%w: %w", ErrIdentityUnavailable, err)})
		return stats.SetMetadata(voter, miningKey, nil)
	case validator.DisplayName() == "":
		e.emit(EnrichmentFailed{Voter: voter, Err: fmt.Errorf("%w: empty validator name", ErrIdentityUnavailable)})
		return stats.SetMetadata(voter, miningKey, nil)
	}

	return stats.SetMetadata(voter, miningKey, &validator)
}
