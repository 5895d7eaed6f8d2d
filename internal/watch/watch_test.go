package watch

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"chain-alerts/internal/chain"
	"chain-alerts/internal/scan"
)

// fakeReader is the in-memory chain.Reader backing the routine tests.
type fakeReader struct {
	head      uint64
	logs      map[chain.EventKind][]chain.Record
	receipts  map[common.Hash]*chain.Receipt
	pointRead func(contract common.Address, method string, block uint64, args ...any) ([]any, error)
	blockTxs  map[uint64][]common.Hash
	senders   map[common.Hash]common.Address
}

func (f *fakeReader) HeadBlock(ctx context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeReader) LogsInRange(ctx context.Context, kind chain.EventKind, from, to uint64, filter *chain.TopicFilter) ([]chain.Record, error) {
	var out []chain.Record
	for _, rec := range f.logs[kind] {
		if rec.Block >= from && rec.Block <= to {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeReader) Receipt(ctx context.Context, tx common.Hash) (*chain.Receipt, error) {
	receipt, ok := f.receipts[tx]
	if !ok {
		return nil, errors.New("receipt not found")
	}
	return receipt, nil
}

func (f *fakeReader) PointRead(ctx context.Context, contract common.Address, method string, block uint64, args ...any) ([]any, error) {
	if f.pointRead == nil {
		return nil, errors.New("no point reads configured")
	}
	return f.pointRead(contract, method, block, args...)
}

func (f *fakeReader) BlockTransactions(ctx context.Context, block uint64) ([]common.Hash, error) {
	txs, ok := f.blockTxs[block]
	if !ok {
		return nil, errors.New("block not found")
	}
	return txs, nil
}

func (f *fakeReader) BlockTime(ctx context.Context, block uint64) (time.Time, error) {
	return time.Unix(1_700_000_000, 0).UTC(), nil
}

func (f *fakeReader) TransactionSender(ctx context.Context, tx common.Hash) (common.Address, error) {
	sender, ok := f.senders[tx]
	if !ok {
		return common.Address{}, errors.New("sender not found")
	}
	return sender, nil
}

var _ chain.Reader = (*fakeReader)(nil)

var testContracts = chain.Contracts{
	YCRV:           common.HexToAddress("0xFCc5c47bE19d06BF83eB04298b026F81069ff65b"),
	Settlement:     common.HexToAddress("0x9008D19f58AAbD9eD0D60971565AA8510560ab41"),
	VotingEscrow:   common.HexToAddress("0x90c1f9220d90d3966FbeE24045EDd73E1d588aD5"),
	Bribe:          common.HexToAddress("0x6666666666666666666666666666666666666666"),
	FeeDistributor: common.HexToAddress("0x7777777777777777777777777777777777777777"),
}

// newRunDeps builds the run-scoped collaborators the way the engine
// does, over the given fake reader.
func newRunDeps(reader *fakeReader) runDeps {
	logger := zerolog.Nop()
	weth := common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	tokens := chain.NewTokenDirectory(reader, weth, logger)
	return runDeps{
		reader:     reader,
		correlator: scan.NewCorrelator(reader, testContracts, logger),
		metrics:    scan.NewMetricComputer(reader, tokens, common.Address{}, testContracts.Settlement, logger),
		tokens:     tokens,
		logger:     logger,
	}
}
