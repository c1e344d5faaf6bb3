package auditor

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Sentinel errors for failure cases
var (
	ErrTransport           = errors.New("transport failure")
	ErrUnrecognizedEvent   = errors.New("unrecognized event")
	ErrNoEventsFound       = errors.New("no events found; make sure the node runs in full mode and the contract addresses and block range are right")
	ErrIdentityUnavailable = errors.New("validator identity unavailable")
	ErrInvalidRegistry     = errors.New("invalid contract registry")
	ErrStatsFrozen         = errors.New("stats are frozen")
)

// Default configuration values
const (
	DefaultMaxBlockAge      = time.Hour
	DefaultVoteConcurrency  = 1
	defaultEventsBufferSize = 64
)

// RawEvent is an undecoded log as returned by the node
type RawEvent = types.Log

// LogSource returns logs matching a filter, in chain order
// ---------------------------------------------------------
type LogSource interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]RawEvent, error)
}

// Caller executes read-only contract calls against the latest state
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// BlockReader reads block timestamps
type BlockReader interface {
	BlockTime(ctx context.Context, number uint64) (time.Time, error)
	LatestBlock(ctx context.Context) (uint64, time.Time, error)
}

// Chain is everything a run needs from the node
type Chain interface {
	LogSource
	Caller
	BlockReader
}

// Clock abstracts time for production and testing
// ------------------------------------------------
type Clock interface {
	Now() time.Time
}

// Event represents a trace or lifecycle event of an audit run
// -----------------------------------------------------------
type Event any

type AuditStarted struct {
	StartedAt time.Time
	FromBlock uint64
	ToBlock   *uint64 // nil means latest
}

type NodeStale struct {
	LatestBlock uint64
	LatestTime  time.Time
	MaxAge      time.Duration
}

type EventsFetched struct {
	Count int
}

// EventDropped is emitted for a log that decoded correctly but came from an
// address not registered for the decoder's generation and role.
type EventDropped struct {
	Block   uint64
	Address common.Address
	Name    string
}

type KeyChangeApplied struct {
	Block   uint64
	Action  string
	Key     common.Address
	Changed bool // false when adding a present key or removing an absent one
}

type KeyChangeIgnored struct {
	Block  uint64
	Action string
	Key    common.Address
}

type VoterSetReplaced struct {
	Block  uint64
	Voters []common.Address
}

type PendingSetBuffered struct {
	Block      uint64
	ParentHash common.Hash
	Candidates []common.Address
}

type PendingSetResolved struct {
	Block  uint64
	Voters []common.Address
}

type BallotSkipped struct {
	Block  uint64
	Ballot BallotCreated
	Reason string
}

type BallotTallied struct {
	Block    uint64
	Ballot   BallotCreated
	Eligible int
	Voted    int
}

type UnexpectedVoter struct {
	BallotID *big.Int
	Voter    common.Address
}

type DuplicateVote struct {
	BallotID *big.Int
	Voter    common.Address
}

type EnrichmentFailed struct {
	Voter common.Address
	Err   error
}

type AuditCompleted struct {
	Report   *Report
	Duration time.Duration
}

type AuditFailed struct {
	Err error
}
