// Package ethrpc is the JSON-RPC transport used to read logs, make read-only
// calls and inspect block headers.
package ethrpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	lru "github.com/hashicorp/golang-lru"
)

// DefaultURL is the endpoint used when none is configured.
const DefaultURL = "http://127.0.0.1:8545"

const blockTimeCacheSize = 1024

// ErrBlockNotFound is returned when the node does not know the requested block.
var ErrBlockNotFound = errors.New("block not found")

// Client represents an Ethereum JSON-RPC client
type Client struct {
	rpc        *rpc.Client
	eth        *ethclient.Client
	blockTimes *lru.Cache
}

// Dial connects to the endpoint at url using the given HTTP client.
func Dial(ctx context.Context, url string, httpClient *http.Client) (*Client, error) {
	rpcClient, err := rpc.DialOptions(ctx, url, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	return NewClient(rpcClient), nil
}

// NewClient wraps an existing RPC connection.
func NewClient(rpcClient *rpc.Client) *Client {
	cache, err := lru.New(blockTimeCacheSize)
	if err != nil {
		// only fails for a non-positive size
		panic(err)
	}
	return &Client{
		rpc:        rpcClient,
		eth:        ethclient.NewClient(rpcClient),
		blockTimes: cache,
	}
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// FilterLogs returns the logs matching q in chain order.
func (c *Client) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	logs, err := c.eth.FilterLogs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("getting logs: %w", err)
	}
	return logs, nil
}

// CallContract executes a read-only call. A nil block number means latest.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	out, err := c.eth.CallContract(ctx, msg, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("calling contract: %w", err)
	}
	return out, nil
}

// blockHeader is the subset of the eth_getBlockByNumber result we need.
type blockHeader struct {
	Number    hexutil.Uint64 `json:"number"`
	Timestamp hexutil.Uint64 `json:"timestamp"`
}

// BlockTime returns the timestamp of the given block. Results are cached.
func (c *Client) BlockTime(ctx context.Context, number uint64) (time.Time, error) {
	if v, ok := c.blockTimes.Get(number); ok {
		return v.(time.Time), nil
	}

	head, err := c.header(ctx, hexutil.EncodeUint64(number))
	if err != nil {
		return time.Time{}, err
	}

	ts := time.Unix(int64(head.Timestamp), 0).UTC()
	c.blockTimes.Add(number, ts)
	return ts, nil
}

// LatestBlock returns the number and timestamp of the node's latest block.
func (c *Client) LatestBlock(ctx context.Context) (uint64, time.Time, error) {
	head, err := c.header(ctx, "latest")
	if err != nil {
		return 0, time.Time{}, err
	}
	return uint64(head.Number), time.Unix(int64(head.Timestamp), 0).UTC(), nil
}

func (c *Client) header(ctx context.Context, number string) (*blockHeader, error) {
	var head *blockHeader
	if err := c.rpc.CallContext(ctx, &head, "eth_getBlockByNumber", number, false); err != nil {
		return nil, fmt.Errorf("getting block %s: %w", number, err)
	}
	if head == nil {
		return nil, fmt.Errorf("%w: %s", ErrBlockNotFound, number)
	}
	return head, nil
}
