package auditor

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/screwyprof/ballotaudit/pkg/contracts"
)

// Source locates a decoded event on chain
type Source struct {
	Block    uint64
	LogIndex uint
	Address  common.Address
	Version  contracts.Version
}

func (s Source) source() Source { return s }

// DomainEvent is one of KeyChange, FullSetReplace, PendingSetInitiated,
// BallotCreated or Vote.
type DomainEvent interface {
	source() Source
}

// SourceOf returns where ev was emitted.
func SourceOf(ev DomainEvent) Source { return ev.source() }

// KeyAction is the direction of a KeyChange
type KeyAction int

const (
	KeyActionUnknown KeyAction = iota
	KeyAdd
	KeyRemove
)

// ParseKeyAction maps the on-chain action string onto a KeyAction.
func ParseKeyAction(s string) KeyAction {
	switch strings.ToLower(s) {
	case contracts.ActionAdded:
		return KeyAdd
	case contracts.ActionRemoved:
		return KeyRemove
	default:
		return KeyActionUnknown
	}
}

func (a KeyAction) String() string {
	switch a {
	case KeyAdd:
		return "ADD"
	case KeyRemove:
		return "REMOVE"
	default:
		return "UNKNOWN"
	}
}

// KeyChange adds or removes a single voting key.
type KeyChange struct {
	Source
	Action    KeyAction
	RawAction string
	Key       common.Address
}

// FullSetReplace replaces the whole voter set.
type FullSetReplace struct {
	Source
	NewSet []common.Address
}

// PendingSetInitiated proposes a set of mining keys that takes effect when
// the next one is initiated.
type PendingSetInitiated struct {
	Source
	ParentHash common.Hash
	Candidates []common.Address
}

// BallotCreated opens a ballot.
type BallotCreated struct {
	Source
	ID         *big.Int
	BallotType *big.Int
	Creator    common.Address
}

func (b BallotCreated) String() string {
	return fmt.Sprintf("BallotCreated { id: %s, ballot_type: %s, creator: %s }", b.ID, b.BallotType, b.Creator.Hex())
}

// Vote is a vote cast on a ballot.
type Vote struct {
	Source
	BallotID *big.Int
	Voter    common.Address
	Decision *big.Int
	Time     *big.Int
}
