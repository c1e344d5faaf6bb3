package auditor_test

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/ballotaudit/auditor"
	"github.com/screwyprof/ballotaudit/pkg/contracts"
)

var (
	keysManagerV1 = common.HexToAddress("0x00000000000000000000000000000000000a0001")
	ballotsV1     = common.HexToAddress("0x00000000000000000000000000000000000a0002")
	metadataV1    = common.HexToAddress("0x00000000000000000000000000000000000a0003")
	consensusV1   = common.HexToAddress("0x00000000000000000000000000000000000a0004")

	keysManagerV2 = common.HexToAddress("0x00000000000000000000000000000000000b0001")
	ballotsV2     = common.HexToAddress("0x00000000000000000000000000000000000b0002")
	metadataV2    = common.HexToAddress("0x00000000000000000000000000000000000b0003")
	consensusV2   = common.HexToAddress("0x00000000000000000000000000000000000b0004")

	stranger = common.HexToAddress("0x00000000000000000000000000000000000f0000")

	voterA = common.HexToAddress("0x000000000000000000000000000000000000000a")
	voterB = common.HexToAddress("0x000000000000000000000000000000000000000b")
	voterC = common.HexToAddress("0x000000000000000000000000000000000000000c")
	voterD = common.HexToAddress("0x000000000000000000000000000000000000000d")

	miningA = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	miningB = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	miningC = common.HexToAddress("0x00000000000000000000000000000000000000c1")

	genesisTime = time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
)

// testRegistry registers both generations at distinct addresses.
func testRegistry() *auditor.Registry {
	return auditor.NewRegistry(map[auditor.Contract]common.Address{
		{Version: contracts.V1, Kind: contracts.KeysManager}:        keysManagerV1,
		{Version: contracts.V1, Kind: contracts.VotingToChangeKeys}: ballotsV1,
		{Version: contracts.V1, Kind: contracts.ValidatorMetadata}:  metadataV1,
		{Version: contracts.V1, Kind: contracts.NetworkConsensus}:   consensusV1,
		{Version: contracts.V2, Kind: contracts.KeysManager}:        keysManagerV2,
		{Version: contracts.V2, Kind: contracts.VotingToChangeKeys}: ballotsV2,
		{Version: contracts.V2, Kind: contracts.ValidatorMetadata}:  metadataV2,
		{Version: contracts.V2, Kind: contracts.NetworkConsensus}:   consensusV2,
	})
}

// Log builders

func keyChangeLog(block uint64, contract, key common.Address, action string) types.Log {
	ev := contracts.KeysManagerABI.Events[contracts.EventVotingKeyChanged]
	return types.Log{
		Address:     contract,
		BlockNumber: block,
		Topics:      []common.Hash{ev.ID, addressTopic(key)},
		Data:        mustPack(ev.Inputs.NonIndexed(), key, action),
	}
}

func ballotLog(block uint64, contract common.Address, id int64) types.Log {
	ev := contracts.VotingToChangeKeysABI.Events[contracts.EventBallotCreated]
	return types.Log{
		Address:     contract,
		BlockNumber: block,
		Topics: []common.Hash{
			ev.ID,
			common.BigToHash(big.NewInt(id)),
			common.BigToHash(big.NewInt(1)),
			addressTopic(voterA),
		},
	}
}

func voteLog(block uint64, contract common.Address, id int64, voter common.Address) types.Log {
	ev := contracts.VotingToChangeKeysABI.Events[contracts.EventVote]
	return types.Log{
		Address:     contract,
		BlockNumber: block,
		Topics:      []common.Hash{ev.ID, common.BigToHash(big.NewInt(id)), addressTopic(voter)},
		Data:        mustPack(ev.Inputs.NonIndexed(), big.NewInt(1), big.NewInt(int64(block))),
	}
}

func changeFinalizedLog(block uint64, contract common.Address, set ...common.Address) types.Log {
	ev := contracts.NetworkConsensusABI.Events[contracts.EventChangeFinalized]
	if set == nil {
		set = []common.Address{}
	}
	return types.Log{
		Address:     contract,
		BlockNumber: block,
		Topics:      []common.Hash{ev.ID},
		Data:        mustPack(ev.Inputs.NonIndexed(), set),
	}
}

func initiateChangeLog(block uint64, contract common.Address, set ...common.Address) types.Log {
	ev := contracts.NetworkConsensusABI.Events[contracts.EventInitiateChange]
	return types.Log{
		Address:     contract,
		BlockNumber: block,
		Topics:      []common.Hash{ev.ID, common.BigToHash(new(big.Int).SetUint64(block))},
		Data:        mustPack(ev.Inputs.NonIndexed(), set),
	}
}

func at(l types.Log, index uint) types.Log {
	l.Index = index
	return l
}

func addressTopic(a common.Address) common.Hash {
	return common.BytesToHash(a.Bytes())
}

func mustPack(args abi.Arguments, values ...any) []byte {
	data, err := args.Pack(values...)
	if err != nil {
		panic(fmt.Sprintf("packing test log: %v", err))
	}
	return data
}

// fakeChain serves logs, calls and block times from memory.
type fakeChain struct {
	mu         sync.Mutex
	logs       []types.Log
	calls      map[string][]byte
	blockTimes map[uint64]time.Time
	latest     uint64
	latestTime time.Time
	filterErr  error
	callErr    error
	queryErrs  map[uint64]error
	queries    []ethereum.FilterQuery
}

func newFakeChain(logs ...types.Log) *fakeChain {
	c := &fakeChain{
		calls:      make(map[string][]byte),
		blockTimes: make(map[uint64]time.Time),
		queryErrs:  make(map[uint64]error),
		latestTime: genesisTime,
	}
	for _, l := range logs {
		c.withLog(l)
	}
	return c
}

func (c *fakeChain) withLog(l types.Log) *fakeChain {
	c.logs = append(c.logs, l)
	if l.BlockNumber > c.latest {
		c.latest = l.BlockNumber
	}
	return c
}

// withValidator makes voter resolvable through metadata to a mining key and a name.
func (c *fakeChain) withValidator(metadata, voter, mining common.Address, first, last string) *fakeChain {
	c.calls[callKey(metadata, mustCall(contracts.ValidatorMetadataABI, "getMiningByVotingKey", voter))] =
		mustPack(contracts.ValidatorMetadataABI.Methods["getMiningByVotingKey"].Outputs, mining)

	var f, l [32]byte
	copy(f[:], first)
	copy(l[:], last)
	c.calls[callKey(metadata, mustCall(contracts.ValidatorMetadataABI, "validators", mining))] =
		mustPack(contracts.ValidatorMetadataABI.Methods["validators"].Outputs,
			f, l, [32]byte{}, "", [32]byte{}, big.NewInt(0),
			big.NewInt(0), big.NewInt(0), big.NewInt(0), big.NewInt(0))
	return c
}

// withVotingKey makes mining resolvable to voter through keysManager.
func (c *fakeChain) withVotingKey(keysManager, mining, voter common.Address) *fakeChain {
	c.calls[callKey(keysManager, mustCall(contracts.KeysManagerABI, "getVotingByMining", mining))] =
		mustPack(contracts.KeysManagerABI.Methods["getVotingByMining"].Outputs, voter)
	return c
}

func (c *fakeChain) withBlockTime(block uint64, ts time.Time) *fakeChain {
	c.blockTimes[block] = ts
	return c
}

// withFailingQuery makes every log query starting at block fail with err.
func (c *fakeChain) withFailingQuery(block uint64, err error) *fakeChain {
	c.queryErrs[block] = err
	return c
}

func (c *fakeChain) withLatest(block uint64, ts time.Time) *fakeChain {
	c.latest = block
	c.latestTime = ts
	return c
}

func (c *fakeChain) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.queries = append(c.queries, q)
	if c.filterErr != nil {
		return nil, c.filterErr
	}
	if q.FromBlock != nil {
		if err, ok := c.queryErrs[q.FromBlock.Uint64()]; ok {
			return nil, err
		}
	}

	var out []types.Log
	for _, l := range c.logs {
		if matches(q, l) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (c *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if c.callErr != nil {
		return nil, c.callErr
	}
	out, ok := c.calls[callKey(*msg.To, msg.Data)]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return out, nil
}

func (c *fakeChain) BlockTime(_ context.Context, number uint64) (time.Time, error) {
	ts, ok := c.blockTimes[number]
	if !ok {
		return time.Time{}, fmt.Errorf("block %d not found", number)
	}
	return ts, nil
}

func (c *fakeChain) LatestBlock(context.Context) (uint64, time.Time, error) {
	return c.latest, c.latestTime, nil
}

func (c *fakeChain) voteQueries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, q := range c.queries {
		if len(q.Addresses) > 0 {
			n++
		}
	}
	return n
}

func matches(q ethereum.FilterQuery, l types.Log) bool {
	if q.FromBlock != nil && l.BlockNumber < q.FromBlock.Uint64() {
		return false
	}
	if q.ToBlock != nil && l.BlockNumber > q.ToBlock.Uint64() {
		return false
	}
	if len(q.Addresses) > 0 && !containsAddress(q.Addresses, l.Address) {
		return false
	}
	for i, want := range q.Topics {
		if len(want) == 0 {
			continue
		}
		if i >= len(l.Topics) || !containsHash(want, l.Topics[i]) {
			return false
		}
	}
	return true
}

func containsAddress(addrs []common.Address, a common.Address) bool {
	for _, x := range addrs {
		if x == a {
			return true
		}
	}
	return false
}

func containsHash(hashes []common.Hash, h common.Hash) bool {
	for _, x := range hashes {
		if x == h {
			return true
		}
	}
	return false
}

func callKey(to common.Address, data []byte) string {
	return to.Hex() + common.Bytes2Hex(data)
}

func mustCall(contract abi.ABI, method string, args ...any) []byte {
	data, err := contract.Pack(method, args...)
	if err != nil {
		panic(fmt.Sprintf("packing test call: %v", err))
	}
	return data
}

// eventRecorder collects emitted events in order.
type eventRecorder struct {
	events []auditor.Event
}

func (r *eventRecorder) emit(ev auditor.Event) {
	r.events = append(r.events, ev)
}

func eventsOfType[T any](events []auditor.Event) []T {
	var out []T
	for _, ev := range events {
		if e, ok := ev.(T); ok {
			out = append(out, e)
		}
	}
	return out
}

// runAudit starts svc and collects all events until the run ends.
func runAudit(t *testing.T, svc *auditor.Service) []auditor.Event {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, done := svc.Start(ctx)
	var collected []auditor.Event
	for ev := range events {
		collected = append(collected, ev)
	}

	select {
	case <-done:
	case <-ctx.Done():
		require.FailNow(t, "audit did not finish in time")
	}
	return collected
}

func completedReport(t *testing.T, events []auditor.Event) *auditor.Report {
	t.Helper()

	failed := eventsOfType[auditor.AuditFailed](events)
	require.Empty(t, failed, "audit failed")

	completed := eventsOfType[auditor.AuditCompleted](events)
	require.Len(t, completed, 1)
	return completed[0].Report
}

func lineOf(t *testing.T, r *auditor.Report, voter common.Address) auditor.ReportLine {
	t.Helper()
	for _, l := range r.Lines {
		if l.Voter == voter {
			return l
		}
	}
	require.FailNow(t, "voter not in report", voter.Hex())
	return auditor.ReportLine{}
}
