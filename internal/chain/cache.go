package chain

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// RunCache wraps a Reader with per-run memoisation of receipt and sender
// lookups, so that multiple routines touching the same transaction within
// one scan pass share a single network call. Discard it when the run ends;
// cached receipts must not outlive a run.
type RunCache struct {
	inner Reader

	mu       sync.Mutex
	receipts map[common.Hash]*Receipt
	senders  map[common.Hash]common.Address
}

// NewRunCache builds a fresh cache around reader.
func NewRunCache(reader Reader) *RunCache {
	return &RunCache{
		inner:    reader,
		receipts: make(map[common.Hash]*Receipt),
		senders:  make(map[common.Hash]common.Address),
	}
}

func (rc *RunCache) HeadBlock(ctx context.Context) (uint64, error) {
	return rc.inner.HeadBlock(ctx)
}

func (rc *RunCache) LogsInRange(ctx context.Context, kind EventKind, from, to uint64, filter *TopicFilter) ([]Record, error) {
	return rc.inner.LogsInRange(ctx, kind, from, to, filter)
}

// Receipt returns the cached receipt for tx, fetching it once.
func (rc *RunCache) Receipt(ctx context.Context, tx common.Hash) (*Receipt, error) {
	rc.mu.Lock()
	if receipt, ok := rc.receipts[tx]; ok {
		rc.mu.Unlock()
		return receipt, nil
	}
	rc.mu.Unlock()

	receipt, err := rc.inner.Receipt(ctx, tx)
	if err != nil {
		return nil, err
	}

	rc.mu.Lock()
	rc.receipts[tx] = receipt
	rc.mu.Unlock()
	return receipt, nil
}

func (rc *RunCache) PointRead(ctx context.Context, contract common.Address, method string, block uint64, args ...any) ([]any, error) {
	return rc.inner.PointRead(ctx, contract, method, block, args...)
}

func (rc *RunCache) BlockTransactions(ctx context.Context, block uint64) ([]common.Hash, error) {
	return rc.inner.BlockTransactions(ctx, block)
}

func (rc *RunCache) BlockTime(ctx context.Context, block uint64) (time.Time, error) {
	return rc.inner.BlockTime(ctx, block)
}

func (rc *RunCache) TransactionSender(ctx context.Context, tx common.Hash) (common.Address, error) {
	rc.mu.Lock()
	if sender, ok := rc.senders[tx]; ok {
		rc.mu.Unlock()
		return sender, nil
	}
	rc.mu.Unlock()

	sender, err := rc.inner.TransactionSender(ctx, tx)
	if err != nil {
		return common.Address{}, err
	}

	rc.mu.Lock()
	rc.senders[tx] = sender
	rc.mu.Unlock()
	return sender, nil
}

var _ Reader = (*RunCache)(nil)
