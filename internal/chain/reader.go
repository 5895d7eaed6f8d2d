package chain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// EventKind identifies a decoded log stream.
type EventKind string

const (
	KindMint            EventKind = "mint"
	KindSettlement      EventKind = "settlement"
	KindTrade           EventKind = "trade"
	KindSupply          EventKind = "supply"
	KindModifyLock      EventKind = "modify_lock"
	KindRewardAdded     EventKind = "reward_added"
	KindCheckpointToken EventKind = "checkpoint_token"
)

// Record is a single decoded event log. Immutable once decoded; the
// Payload holds the closed per-kind struct from records.go.
type Record struct {
	Kind     EventKind
	Block    uint64
	TxHash   common.Hash
	LogIndex uint
	Payload  any
}

// Receipt summarises a mined transaction.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	TxIndex     uint
	GasUsed     uint64
	GasPrice    *big.Int
	Failed      bool
	Logs        []types.Log
}

// TopicFilter restricts a log query to given values of one indexed argument.
type TopicFilter struct {
	// Position is the indexed-argument slot, 1-based as in the topics array
	// (topic 0 is the event signature).
	Position int
	Values   []common.Hash
}

// AddressFilter builds a TopicFilter over the first indexed argument.
func AddressFilter(addrs ...common.Address) *TopicFilter {
	values := make([]common.Hash, 0, len(addrs))
	for _, a := range addrs {
		values = append(values, common.BytesToHash(a.Bytes()))
	}
	return &TopicFilter{Position: 1, Values: values}
}

// Reader is the ledger query capability. Implementations own no state
// across calls beyond connection handling; all methods are safe for
// concurrent use.
type Reader interface {
	// HeadBlock returns the current chain height.
	HeadBlock(ctx context.Context) (uint64, error)

	// LogsInRange fetches and decodes all logs of kind within
	// [from, to] inclusive, optionally narrowed by an indexed filter.
	// Records come back ordered by (block, logIndex) ascending.
	LogsInRange(ctx context.Context, kind EventKind, from, to uint64, filter *TopicFilter) ([]Record, error)

	// Receipt returns the post-execution summary for a transaction.
	Receipt(ctx context.Context, tx common.Hash) (*Receipt, error)

	// PointRead performs a view call against contract at an explicit
	// block height (0 means latest) and returns the unpacked outputs.
	PointRead(ctx context.Context, contract common.Address, method string, block uint64, args ...any) ([]any, error)

	// BlockTransactions lists the transaction hashes of a block in order.
	BlockTransactions(ctx context.Context, block uint64) ([]common.Hash, error)

	// BlockTime returns the timestamp of a block.
	BlockTime(ctx context.Context, block uint64) (time.Time, error)

	// TransactionSender recovers the sender of a mined transaction.
	TransactionSender(ctx context.Context, tx common.Hash) (common.Address, error)
}

// DecodeReceiptLogs decodes every log in the receipt that matches kind.
// Logs emitted by other contracts or events are skipped.
func DecodeReceiptLogs(receipt *Receipt, kind EventKind, contract common.Address) ([]Record, error) {
	records := make([]Record, 0)
	for _, lg := range receipt.Logs {
		if lg.Address != contract {
			continue
		}
		rec, ok, err := decodeLog(kind, lg)
		if err != nil {
			return nil, err
		}
		if ok {
			records = append(records, rec)
		}
	}
	return records, nil
}
