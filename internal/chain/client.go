package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

// Contracts binds each event kind to its emitting contract.
type Contracts struct {
	YCRV           common.Address
	Settlement     common.Address
	VotingEscrow   common.Address
	Bribe          common.Address
	FeeDistributor common.Address
}

func (c Contracts) AddressFor(kind EventKind) (common.Address, error) {
	var addr common.Address
	switch kind {
	case KindMint:
		addr = c.YCRV
	case KindSettlement, KindTrade:
		addr = c.Settlement
	case KindSupply, KindModifyLock:
		addr = c.VotingEscrow
	case KindRewardAdded:
		addr = c.Bribe
	case KindCheckpointToken:
		addr = c.FeeDistributor
	default:
		return addr, fmt.Errorf("unknown event kind %q", kind)
	}
	if addr == (common.Address{}) {
		return addr, fmt.Errorf("no contract configured for event kind %q", kind)
	}
	return addr, nil
}

// ClientOptions parameterise the RPC-backed reader.
type ClientOptions struct {
	RPCURL    string
	Timeout   time.Duration
	Contracts Contracts
}

// Client implements Reader on top of an Ethereum JSON-RPC endpoint.
type Client struct {
	opts      ClientOptions
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
	chainID   *big.Int
}

// NewClient builds an RPC-backed reader. The connection is dialled on
// first use.
func NewClient(opts ClientOptions, logger zerolog.Logger) *Client {
	return &Client{opts: opts, logger: logger.With().Str("component", "chain_reader").Logger()}
}

func (c *Client) getClient(ctx context.Context) (*ethclient.Client, error) {
	c.clientMux.Lock()
	defer c.clientMux.Unlock()

	if c.client != nil {
		return c.client, nil
	}
	if c.opts.RPCURL == "" {
		return nil, errors.New("ethereum rpc url not configured")
	}

	client, err := ethclient.DialContext(ctx, c.opts.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial ethereum rpc: %w", err)
	}
	c.client = client
	return client, nil
}

func (c *Client) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := c.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// HeadBlock returns the current chain height.
func (c *Client) HeadBlock(ctx context.Context) (uint64, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	client, err := c.getClient(ctx)
	if err != nil {
		return 0, err
	}
	head, err := client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch head block: %w", err)
	}
	return head, nil
}

// LogsInRange filters and decodes logs of kind within [from, to].
func (c *Client) LogsInRange(ctx context.Context, kind EventKind, from, to uint64, filter *TopicFilter) ([]Record, error) {
	spec, err := specFor(kind)
	if err != nil {
		return nil, err
	}
	contract, err := c.opts.Contracts.AddressFor(kind)
	if err != nil {
		return nil, err
	}

	topics := [][]common.Hash{{spec.abi.Events[spec.event].ID}}
	if filter != nil {
		for len(topics) < filter.Position {
			topics = append(topics, nil)
		}
		topics = append(topics, filter.Values)
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{contract},
		Topics:    topics,
	}

	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	client, err := c.getClient(ctx)
	if err != nil {
		return nil, err
	}

	logs, err := client.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("filter %s logs: %w", kind, err)
	}

	records := make([]Record, 0, len(logs))
	for _, lg := range logs {
		rec, ok, decodeErr := decodeLog(kind, lg)
		if decodeErr != nil {
			return nil, decodeErr
		}
		if ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// Receipt fetches the post-execution summary of a transaction.
func (c *Client) Receipt(ctx context.Context, tx common.Hash) (*Receipt, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	client, err := c.getClient(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := client.TransactionReceipt(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("fetch receipt %s: %w", tx, err)
	}

	logs := make([]types.Log, 0, len(raw.Logs))
	for _, lg := range raw.Logs {
		logs = append(logs, *lg)
	}

	gasPrice := raw.EffectiveGasPrice
	if gasPrice == nil {
		gasPrice = big.NewInt(0)
	}

	return &Receipt{
		TxHash:      tx,
		BlockNumber: raw.BlockNumber.Uint64(),
		TxIndex:     raw.TransactionIndex,
		GasUsed:     raw.GasUsed,
		GasPrice:    gasPrice,
		Failed:      raw.Status == types.ReceiptStatusFailed,
		Logs:        logs,
	}, nil
}

// PointRead performs a view call at an explicit block height. Block 0
// means latest.
func (c *Client) PointRead(ctx context.Context, contract common.Address, method string, block uint64, args ...any) ([]any, error) {
	payload, err := viewABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	client, err := c.getClient(ctx)
	if err != nil {
		return nil, err
	}

	var at *big.Int
	if block > 0 {
		at = new(big.Int).SetUint64(block)
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: payload}, at)
	if err != nil {
		return nil, fmt.Errorf("call %s at block %d: %w", method, block, err)
	}

	outputs, err := viewABI.Unpack(method, res)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return outputs, nil
}

// BlockTransactions lists the transaction hashes of a block in order.
func (c *Client) BlockTransactions(ctx context.Context, block uint64) ([]common.Hash, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	client, err := c.getClient(ctx)
	if err != nil {
		return nil, err
	}

	blk, err := client.BlockByNumber(ctx, new(big.Int).SetUint64(block))
	if err != nil {
		return nil, fmt.Errorf("fetch block %d: %w", block, err)
	}

	txs := blk.Transactions()
	hashes := make([]common.Hash, 0, len(txs))
	for _, tx := range txs {
		hashes = append(hashes, tx.Hash())
	}
	return hashes, nil
}

// BlockTime returns the timestamp of a block.
func (c *Client) BlockTime(ctx context.Context, block uint64) (time.Time, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	client, err := c.getClient(ctx)
	if err != nil {
		return time.Time{}, err
	}

	header, err := client.HeaderByNumber(ctx, new(big.Int).SetUint64(block))
	if err != nil {
		return time.Time{}, fmt.Errorf("fetch header %d: %w", block, err)
	}
	return time.Unix(int64(header.Time), 0).UTC(), nil
}

// TransactionSender recovers the sender of a mined transaction.
func (c *Client) TransactionSender(ctx context.Context, txHash common.Hash) (common.Address, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	client, err := c.getClient(ctx)
	if err != nil {
		return common.Address{}, err
	}

	tx, _, err := client.TransactionByHash(ctx, txHash)
	if err != nil {
		return common.Address{}, fmt.Errorf("fetch transaction %s: %w", txHash, err)
	}

	chainID, err := c.getChainID(ctx, client)
	if err != nil {
		return common.Address{}, err
	}

	sender, err := types.Sender(types.LatestSignerForChainID(chainID), tx)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover sender %s: %w", txHash, err)
	}
	return sender, nil
}

func (c *Client) getChainID(ctx context.Context, client *ethclient.Client) (*big.Int, error) {
	c.clientMux.Lock()
	defer c.clientMux.Unlock()

	if c.chainID != nil {
		return c.chainID, nil
	}
	id, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}
	c.chainID = id
	return id, nil
}

var _ Reader = (*Client)(nil)
