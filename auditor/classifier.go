package auditor

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/screwyprof/ballotaudit/pkg/contracts"
)

var errNoMatch = errors.New("log does not match event")

// decoder parses one event of one contract generation.
type decoder struct {
	name    string
	version contracts.Version
	kind    contracts.Kind
	event   abi.Event
	build   func(fields map[string]any, src Source) (DomainEvent, error)
}

// Classification is the outcome of classifying one log. A nil Event means the
// log decoded under Name but its emitter is not registered for that decoder.
type Classification struct {
	Event DomainEvent
	Name  string
}

// Classifier turns raw logs into domain events, trying decoders newest
// generation first and accepting a match only from a registered address.
type Classifier struct {
	registry *Registry
	decoders []decoder
}

// NewClassifier creates a classifier bound to registry.
func NewClassifier(registry *Registry) *Classifier {
	keyChanged := contracts.KeysManagerABI.Events[contracts.EventVotingKeyChanged]
	ballotCreated := contracts.VotingToChangeKeysABI.Events[contracts.EventBallotCreated]
	changeFinalized := contracts.NetworkConsensusABI.Events[contracts.EventChangeFinalized]
	initiateChange := contracts.NetworkConsensusABI.Events[contracts.EventInitiateChange]

	return &Classifier{
		registry: registry,
		decoders: []decoder{
			{"v2 VotingKeyChanged", contracts.V2, contracts.KeysManager, keyChanged, buildKeyChange},
			{"v2 BallotCreated", contracts.V2, contracts.VotingToChangeKeys, ballotCreated, buildBallotCreated},
			{"v2 ChangeFinalized", contracts.V2, contracts.NetworkConsensus, changeFinalized, buildFullSetReplace},
			{"v1 BallotCreated", contracts.V1, contracts.VotingToChangeKeys, ballotCreated, buildBallotCreated},
			{"v1 ChangeFinalized", contracts.V1, contracts.NetworkConsensus, changeFinalized, buildFullSetReplace},
			{"legacy InitiateChange", contracts.V1, contracts.NetworkConsensus, initiateChange, buildPendingSet},
		},
	}
}

// Topics returns the distinct event signatures of all decoders, in priority order.
func (c *Classifier) Topics() []common.Hash {
	seen := make(map[common.Hash]struct{}, len(c.decoders))
	topics := make([]common.Hash, 0, len(c.decoders))
	for _, d := range c.decoders {
		if _, ok := seen[d.event.ID]; ok {
			continue
		}
		seen[d.event.ID] = struct{}{}
		topics = append(topics, d.event.ID)
	}
	return topics
}

// Classify decodes log. It fails with ErrUnrecognizedEvent only when no
// decoder can parse the log at all.
func (c *Classifier) Classify(log types.Log) (Classification, error) {
	var parsedAs string
	for _, d := range c.decoders {
		fields, err := unpackLog(d.event, log)
		if err != nil {
			continue
		}

		src := Source{Block: log.BlockNumber, LogIndex: log.Index, Address: log.Address, Version: d.version}
		ev, err := d.build(fields, src)
		if err != nil {
			continue
		}
		if !c.registry.Registered(log.Address, d.version, d.kind) {
			if parsedAs == "" {
				parsedAs = d.name
			}
			continue
		}
		return Classification{Event: ev, Name: d.name}, nil
	}

	if parsedAs != "" {
		return Classification{Name: parsedAs}, nil
	}
	return Classification{}, fmt.Errorf("%w: block %d, address %s, topics %v",
		ErrUnrecognizedEvent, log.BlockNumber, log.Address.Hex(), log.Topics)
}

// VoteTopics returns the topic filter selecting the votes of one ballot.
func VoteTopics(ballotID *big.Int) [][]common.Hash {
	vote := contracts.VotingToChangeKeysABI.Events[contracts.EventVote]
	return [][]common.Hash{{vote.ID}, {common.BigToHash(ballotID)}}
}

// DecodeVote decodes a Vote log emitted by the given generation.
func DecodeVote(log types.Log, version contracts.Version) (Vote, error) {
	vote := contracts.VotingToChangeKeysABI.Events[contracts.EventVote]
	fields, err := unpackLog(vote, log)
	if err != nil {
		return Vote{}, fmt.Errorf("%w: vote at block %d: %w", ErrUnrecognizedEvent, log.BlockNumber, err)
	}

	id, err1 := field[*big.Int](fields, "id")
	voter, err2 := field[common.Address](fields, "voter")
	decision, err3 := field[*big.Int](fields, "decision")
	ts, err4 := field[*big.Int](fields, "time")
	if err := errors.Join(err1, err2, err3, err4); err != nil {
		return Vote{}, fmt.Errorf("%w: vote at block %d: %w", ErrUnrecognizedEvent, log.BlockNumber, err)
	}

	return Vote{
		Source:   Source{Block: log.BlockNumber, LogIndex: log.Index, Address: log.Address, Version: version},
		BallotID: id,
		Voter:    voter,
		Decision: decision,
		Time:     ts,
	}, nil
}

// unpackLog decodes both the indexed and the data fields of log as event.
func unpackLog(event abi.Event, log types.Log) (map[string]any, error) {
	if len(log.Topics) == 0 || log.Topics[0] != event.ID {
		return nil, errNoMatch
	}

	var indexed abi.Arguments
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(log.Topics) != len(indexed)+1 {
		return nil, fmt.Errorf("%s: want %d topics, got %d", event.Name, len(indexed)+1, len(log.Topics))
	}

	fields := make(map[string]any, len(event.Inputs))
	if err := event.Inputs.UnpackIntoMap(fields, log.Data); err != nil {
		return nil, fmt.Errorf("%s: %w", event.Name, err)
	}
	if err := abi.ParseTopicsIntoMap(fields, indexed, log.Topics[1:]); err != nil {
		return nil, fmt.Errorf("%s: %w", event.Name, err)
	}
	return fields, nil
}

func field[T any](fields map[string]any, name string) (T, error) {
	v, ok := fields[name].(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("field %q has type %T", name, fields[name])
	}
	return v, nil
}

func buildKeyChange(fields map[string]any, src Source) (DomainEvent, error) {
	key, err1 := field[common.Address](fields, "key")
	action, err2 := field[string](fields, "action")
	if err := errors.Join(err1, err2); err != nil {
		return nil, err
	}
	return KeyChange{Source: src, Action: ParseKeyAction(action), RawAction: action, Key: key}, nil
}

func buildBallotCreated(fields map[string]any, src Source) (DomainEvent, error) {
	id, err1 := field[*big.Int](fields, "id")
	ballotType, err2 := field[*big.Int](fields, "ballotType")
	creator, err3 := field[common.Address](fields, "creator")
	if err := errors.Join(err1, err2, err3); err != nil {
		return nil, err
	}
	return BallotCreated{Source: src, ID: id, BallotType: ballotType, Creator: creator}, nil
}

func buildFullSetReplace(fields map[string]any, src Source) (DomainEvent, error) {
	set, err := field[[]common.Address](fields, "newSet")
	if err != nil {
		return nil, err
	}
	return FullSetReplace{Source: src, NewSet: set}, nil
}

func buildPendingSet(fields map[string]any, src Source) (DomainEvent, error) {
	parent, err1 := field[[32]byte](fields, "parentHash")
	set, err2 := field[[]common.Address](fields, "newSet")
	if err := errors.Join(err1, err2); err != nil {
		return nil, err
	}
	return PendingSetInitiated{Source: src, ParentHash: common.Hash(parent), Candidates: set}, nil
}
