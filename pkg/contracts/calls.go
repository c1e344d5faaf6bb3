package contracts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

// Sentinel errors for contract calls
var (
	ErrCallFailed       = errors.New("contract call failed")
	ErrReverted         = errors.New("contract call reverted")
	ErrUnexpectedOutput = errors.New("unexpected contract call output")
)

// JSON-RPC error codes nodes use for a call that reverted on chain.
const (
	revertCode       = 3
	parityRevertCode = -32015
)

// Caller executes read-only calls. A nil block number means the latest block.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Validator is the identity registered for a mining key.
type Validator struct {
	FirstName string
	LastName  string
}

// DisplayName joins first and last name.
func (v Validator) DisplayName() string {
	return strings.TrimSpace(v.FirstName + " " + v.LastName)
}

// VotingByMining resolves the voting key of a mining key through the keys manager.
func VotingByMining(ctx context.Context, c Caller, keysManager, miningKey common.Address) (common.Address, error) {
	out, err := call(ctx, c, KeysManagerABI, keysManager, "getVotingByMining", miningKey)
	if err != nil {
		return common.Address{}, err
	}
	return unpackAddress(KeysManagerABI, "getVotingByMining", out)
}

// MiningByVotingKey resolves the mining key of a voting key through the validator metadata contract.
func MiningByVotingKey(ctx context.Context, c Caller, metadata, votingKey common.Address) (common.Address, error) {
	out, err := call(ctx, c, ValidatorMetadataABI, metadata, "getMiningByVotingKey", votingKey)
	if err != nil {
		return common.Address{}, err
	}
	return unpackAddress(ValidatorMetadataABI, "getMiningByVotingKey", out)
}

// ValidatorByMiningKey reads the identity registered for a mining key.
func ValidatorByMiningKey(ctx context.Context, c Caller, metadata, miningKey common.Address) (Validator, error) {
	out, err := call(ctx, c, ValidatorMetadataABI, metadata, "validators", miningKey)
	if err != nil {
		return Validator{}, err
	}

	values, err := ValidatorMetadataABI.Unpack("validators", out)
	if err != nil {
		return Validator{}, fmt.Errorf("%w: %w", ErrUnexpectedOutput, err)
	}
	if len(values) < 2 {
		return Validator{}, fmt.Errorf("%w: validators returned %d values", ErrUnexpectedOutput, len(values))
	}
	first, ok1 := values[0].([32]byte)
	last, ok2 := values[1].([32]byte)
	if !ok1 || !ok2 {
		return Validator{}, fmt.Errorf("%w: validators name fields are not bytes32", ErrUnexpectedOutput)
	}

	return Validator{
		FirstName: BytesToString(first[:]),
		LastName:  BytesToString(last[:]),
	}, nil
}

// BytesToString converts a NUL-padded fixed byte array into a string.
func BytesToString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func call(ctx context.Context, c Caller, contract abi.ABI, to common.Address, method string, args ...any) ([]byte, error) {
	input, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("packing %s: %w", method, err)
	}

	out, err := c.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
	switch {
	case err == nil:
		return out, nil
	case isRevert(err):
		return nil, fmt.Errorf("%w: %s on %s: %w", ErrReverted, method, to.Hex(), err)
	default:
		return nil, fmt.Errorf("%w: %s on %s: %w", ErrCallFailed, method, to.Hex(), err)
	}
}

// isRevert tells an on-chain revert apart from a transport failure.
func isRevert(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case revertCode, parityRevertCode:
			return true
		}
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) && dataErr.ErrorData() != nil {
		return true
	}

	return strings.Contains(strings.ToLower(err.Error()), "revert")
}

func unpackAddress(contract abi.ABI, method string, out []byte) (common.Address, error) {
	values, err := contract.Unpack(method, out)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %s: %w", ErrUnexpectedOutput, method, err)
	}
	if len(values) != 1 {
		return common.Address{}, fmt.Errorf("%w: %s returned %d values", ErrUnexpectedOutput, method, len(values))
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s did not return an address", ErrUnexpectedOutput, method)
	}
	return addr, nil
}
