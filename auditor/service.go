package auditor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"github.com/screwyprof/ballotaudit/pkg/clock"
	"github.com/screwyprof/ballotaudit/pkg/contracts"
)

// Option configures the Service
// ------------------------------------------------
type Option func(*Service)

// WithClock injects a custom Clock (e.g., for testing)
func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithTallyConfig sets the minimum block and time a ballot must have to be counted
func WithTallyConfig(cfg TallyConfig) Option {
	return func(s *Service) { s.tallyConfig = cfg }
}

// WithToBlock bounds the replay at the given block instead of the latest one
func WithToBlock(n uint64) Option {
	return func(s *Service) { s.toBlock = &n }
}

// WithMaxBlockAge sets how old the latest block may be before the node is reported stale
func WithMaxBlockAge(d time.Duration) Option {
	return func(s *Service) { s.maxBlockAge = d }
}

// WithVoteConcurrency fetches the votes of up to n ballots in parallel before replaying
func WithVoteConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.voteConcurrency = n
		}
	}
}

// Service replays governance events and tallies participation
// -----------------------------------------------------------
type Service struct {
	chain           Chain
	registry        *Registry
	classifier      *Classifier
	clock           Clock
	tallyConfig     TallyConfig
	toBlock         *uint64
	maxBlockAge     time.Duration
	voteConcurrency int
	events          chan Event
}

// NewService constructs a Service with required dependencies and options
// ---------------------------------------------------------------------
// By default, it uses a real clock, replays up to the latest block, counts
// every ballot and fetches votes one ballot at a time.
func NewService(chain Chain, registry *Registry, opts ...Option) *Service {
	s := &Service{
		chain:           chain,
		registry:        registry,
		classifier:      NewClassifier(registry),
		clock:           clock.SystemClock{},
		maxBlockAge:     DefaultMaxBlockAge,
		voteConcurrency: DefaultVoteConcurrency,
		events:          make(chan Event, defaultEventsBufferSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the audit and returns the events channel and done channel.
//
// The run ends with exactly one AuditCompleted or AuditFailed event, after
// which the events channel is closed. Subscribe before waiting on done:
//
//	events, done := service.Start(ctx)
//	closer := auditor.NewSubscriber(events, auditor.OnAuditCompleted(...))
//	defer closer()
//	<-done
func (s *Service) Start(ctx context.Context) (<-chan Event, <-chan struct{}) {
	done := make(chan struct{})
	go func() {
		defer close(s.events)
		defer close(done)
		s.run(ctx)
	}()
	return s.events, done
}

func (s *Service) run(ctx context.Context) {
	start := s.clock.Now()

	report, err := s.audit(ctx)
	if err != nil {
		s.emit(AuditFailed{Err: err})
		return
	}

	s.emit(AuditCompleted{
		Report:   report,
		Duration: s.clock.Now().Sub(start),
	})
}

func (s *Service) emit(ev Event) {
	s.events <- ev
}

// audit runs one replay: staleness check, event fetch, classification,
// replay in block order, enrichment and report.
func (s *Service) audit(ctx context.Context) (*Report, error) {
	s.emit(AuditStarted{StartedAt: s.clock.Now(), FromBlock: 0, ToBlock: s.toBlock})

	latest, err := s.checkSynced(ctx)
	if err != nil {
		return nil, err
	}

	logs, err := s.fetchEvents(ctx)
	if err != nil {
		return nil, err
	}
	s.emit(EventsFetched{Count: len(logs)})
	if len(logs) == 0 {
		return nil, ErrNoEventsFound
	}

	classified := make([]Classification, 0, len(logs))
	for _, l := range logs {
		c, err := s.classifier.Classify(l)
		if err != nil {
			return nil, err
		}
		if c.Event == nil {
			s.emit(EventDropped{Block: l.BlockNumber, Address: l.Address, Name: c.Name})
			continue
		}
		classified = append(classified, c)
	}

	fetch := s.fetchVotes
	if s.voteConcurrency > 1 {
		fetch, err = s.prefetchVotes(ctx, classified)
		if err != nil {
			return nil, err
		}
	}

	stats := NewStats()
	tracker := NewVoterSetTracker(s.resolveVoter, s.emit)
	tally := NewBallotTally(s.tallyConfig, tracker, stats, fetch, s.chain, s.emit)

	for _, c := range classified {
		if ballot, ok := c.Event.(BallotCreated); ok {
			err = tally.Apply(ctx, ballot)
		} else {
			err = tracker.Apply(ctx, c.Event)
		}
		if err != nil {
			return nil, err
		}
	}

	if err := NewEnricher(s.chain, s.registry, s.emit).Enrich(ctx, stats); err != nil {
		return nil, err
	}

	toBlock := latest
	if s.toBlock != nil {
		toBlock = *s.toBlock
	}
	return NewReport(stats, s.tallyConfig.MinBlock, toBlock), nil
}

// checkSynced emits NodeStale if the latest block is older than the allowed age.
func (s *Service) checkSynced(ctx context.Context) (uint64, error) {
	number, ts, err := s.chain.LatestBlock(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: reading latest block: %w", ErrTransport, err)
	}
	if s.clock.Now().Sub(ts) > s.maxBlockAge {
		s.emit(NodeStale{LatestBlock: number, LatestTime: ts, MaxAge: s.maxBlockAge})
	}
	return number, nil
}

// fetchEvents reads every ballot and voter-set event from genesis, since the
// voter set has to be rebuilt from the start even when early ballots are skipped.
func (s *Service) fetchEvents(ctx context.Context) ([]types.Log, error) {
	q := ethereum.FilterQuery{
		FromBlock: big.NewInt(0),
		ToBlock:   s.toBlockNumber(),
		Topics:    [][]common.Hash{s.classifier.Topics()},
	}
	logs, err := s.chain.FilterLogs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching events: %w", ErrTransport, err)
	}
	sortLogs(logs)
	return logs, nil
}

func (s *Service) fetchVotes(ctx context.Context, ballot BallotCreated) ([]Vote, error) {
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(ballot.Block),
		ToBlock:   s.toBlockNumber(),
		Addresses: []common.Address{ballot.Address},
		Topics:    VoteTopics(ballot.ID),
	}
	logs, err := s.chain.FilterLogs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching votes: %w", ErrTransport, err)
	}
	sortLogs(logs)

	votes := make([]Vote, 0, len(logs))
	for _, l := range logs {
		if l.Address != ballot.Address {
			continue
		}
		v, err := DecodeVote(l, ballot.Version)
		if err != nil {
			return nil, err
		}
		votes = append(votes, v)
	}
	return votes, nil
}

type ballotKey struct {
	contract common.Address
	id       string
}

// prefetchVotes fetches the votes of every ballot inside the counting window
// concurrently and returns a fetcher serving them from memory. Ballots are
// still folded one by one in block order by the tally.
func (s *Service) prefetchVotes(ctx context.Context, classified []Classification) (FetchVotesFunc, error) {
	var (
		mu      sync.Mutex
		fetched = make(map[ballotKey][]Vote)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.voteConcurrency)
	for _, c := range classified {
		ballot, ok := c.Event.(BallotCreated)
		if !ok || ballot.Block < s.tallyConfig.MinBlock {
			continue
		}
		g.Go(func() error {
			skip, _, err := s.tallyConfig.excludes(gctx, s.chain, ballot)
			if err != nil || skip {
				return err
			}
			votes, err := s.fetchVotes(gctx, ballot)
			if err != nil {
				return err
			}
			mu.Lock()
			fetched[ballotKey{ballot.Address, ballot.ID.String()}] = votes
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return func(ctx context.Context, ballot BallotCreated) ([]Vote, error) {
		if votes, ok := fetched[ballotKey{ballot.Address, ballot.ID.String()}]; ok {
			return votes, nil
		}
		return s.fetchVotes(ctx, ballot)
	}, nil
}

// resolveVoter looks a mining key up in the keys manager of the same
// generation, falling back to the newest one registered.
func (s *Service) resolveVoter(ctx context.Context, version contracts.Version, miningKey common.Address) (common.Address, error) {
	keysManager, ok := s.registry.Address(version, contracts.KeysManager)
	if !ok {
		keysManager, _, ok = s.registry.Newest(contracts.KeysManager)
	}
	if !ok {
		return common.Address{}, fmt.Errorf("%w: no keys manager registered to resolve pending voter sets", ErrInvalidRegistry)
	}

	voter, err := contracts.VotingByMining(ctx, s.chain, keysManager, miningKey)
	if errors.Is(err, contracts.ErrCallFailed) {
		return common.Address{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return voter, err
}

func (s *Service) toBlockNumber() *big.Int {
	if s.toBlock == nil {
		return nil
	}
	return new(big.Int).SetUint64(*s.toBlock)
}

// sortLogs orders logs by block and position within the block.
func sortLogs(logs []types.Log) {
	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].Index < logs[j].Index
	})
}
