// Package contracts holds the ABI definitions of the governance contracts and
// typed helpers for the read-only calls made against them.
package contracts

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Event names as they appear in the ABIs
const (
	EventVotingKeyChanged = "VotingKeyChanged"
	EventBallotCreated    = "BallotCreated"
	EventVote             = "Vote"
	EventChangeFinalized  = "ChangeFinalized"
	EventInitiateChange   = "InitiateChange"
)

// Key change actions emitted by VotingKeyChanged
const (
	ActionAdded   = "added"
	ActionRemoved = "removed"
)

const keysManagerJSON = `[
	{"type":"event","name":"VotingKeyChanged","anonymous":false,"inputs":[
		{"name":"key","type":"address","indexed":false},
		{"name":"miningKey","type":"address","indexed":true},
		{"name":"action","type":"string","indexed":false}]},
	{"type":"function","name":"getVotingByMining","constant":true,"stateMutability":"view",
		"inputs":[{"name":"_miningKey","type":"address"}],
		"outputs":[{"name":"","type":"address"}]}
]`

const votingToChangeKeysJSON = `[
	{"type":"event","name":"BallotCreated","anonymous":false,"inputs":[
		{"name":"id","type":"uint256","indexed":true},
		{"name":"ballotType","type":"uint256","indexed":true},
		{"name":"creator","type":"address","indexed":true}]},
	{"type":"event","name":"Vote","anonymous":false,"inputs":[
		{"name":"id","type":"uint256","indexed":true},
		{"name":"decision","type":"uint256","indexed":false},
		{"name":"voter","type":"address","indexed":true},
		{"name":"time","type":"uint256","indexed":false}]}
]`

const validatorMetadataJSON = `[
	{"type":"function","name":"getMiningByVotingKey","constant":true,"stateMutability":"view",
		"inputs":[{"name":"_votingKey","type":"address"}],
		"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"validators","constant":true,"stateMutability":"view",
		"inputs":[{"name":"","type":"address"}],
		"outputs":[
			{"name":"firstName","type":"bytes32"},
			{"name":"lastName","type":"bytes32"},
			{"name":"licenseId","type":"bytes32"},
			{"name":"fullAddress","type":"string"},
			{"name":"state","type":"bytes32"},
			{"name":"zipcode","type":"uint256"},
			{"name":"expirationDate","type":"uint256"},
			{"name":"createdDate","type":"uint256"},
			{"name":"updatedDate","type":"uint256"},
			{"name":"minThreshold","type":"uint256"}]}
]`

const networkConsensusJSON = `[
	{"type":"event","name":"ChangeFinalized","anonymous":false,"inputs":[
		{"name":"newSet","type":"address[]","indexed":false}]},
	{"type":"event","name":"InitiateChange","anonymous":false,"inputs":[
		{"name":"parentHash","type":"bytes32","indexed":true},
		{"name":"newSet","type":"address[]","indexed":false}]}
]`

// Parsed ABIs. The event and function signatures are shared by every
// deployed generation; which generation emitted a log is decided by its address.
var (
	KeysManagerABI        = mustParse(keysManagerJSON)
	VotingToChangeKeysABI = mustParse(votingToChangeKeysJSON)
	ValidatorMetadataABI  = mustParse(validatorMetadataJSON)
	NetworkConsensusABI   = mustParse(networkConsensusJSON)
)

func mustParse(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic("contracts: invalid ABI: " + err.Error())
	}
	return parsed
}
