package scan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"chain-alerts/internal/chain"
)

// fakeReader is the in-memory chain.Reader shared by the scan tests.
type fakeReader struct {
	head         uint64
	headErr      error
	logs         map[chain.EventKind][]chain.Record
	receipts     map[common.Hash]*chain.Receipt
	receiptErrs  map[common.Hash]error
	receiptCalls int
	pointRead    func(contract common.Address, method string, block uint64, args ...any) ([]any, error)
	pointCalls   int
	blockTxs     map[uint64][]common.Hash
}

func (f *fakeReader) HeadBlock(ctx context.Context) (uint64, error) {
	return f.head, f.headErr
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
	f.receiptCalls++
	if err, ok := f.receiptErrs[tx]; ok {
		return nil, err
	}
	receipt, ok := f.receipts[tx]
	if !ok {
		return nil, errors.New("receipt not found")
	}
	return receipt, nil
}

func (f *fakeReader) PointRead(ctx context.Context, contract common.Address, method string, block uint64, args ...any) ([]any, error) {
	f.pointCalls++
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
	return common.Address{}, errors.New("not implemented")
}

var _ chain.Reader = (*fakeReader)(nil)

var testContracts = chain.Contracts{
	YCRV:           common.HexToAddress("0xFCc5c47bE19d06BF83eB04298b026F81069ff65b"),
	Settlement:     common.HexToAddress("0x9008D19f58AAbD9eD0D60971565AA8510560ab41"),
	VotingEscrow:   common.HexToAddress("0x90c1f9220d90d3966FbeE24045EDd73E1d588aD5"),
	Bribe:          common.HexToAddress("0x6666666666666666666666666666666666666666"),
	FeeDistributor: common.HexToAddress("0x7777777777777777777777777777777777777777"),
}

func supplyRecord(block uint64, tx common.Hash, index uint) chain.Record {
	return chain.Record{Kind: chain.KindSupply, Block: block, TxHash: tx, LogIndex: index, Payload: chain.SupplyEvent{}}
}

func TestIndexPairedConsumesSecondariesInOrder(t *testing.T) {
	tx := common.HexToHash("0xaa")

	modifyRaw := modifyLockLog(testContracts.VotingEscrow, tx, 5)
	reader := &fakeReader{
		logs: map[chain.EventKind][]chain.Record{
			chain.KindSupply: {
				supplyRecord(100, tx, 4),
				supplyRecord(100, tx, 8),
			},
		},
		receipts: map[common.Hash]*chain.Receipt{
			tx: {TxHash: tx, BlockNumber: 100, Logs: modifyRaw},
		},
	}

	correlator := NewCorrelator(reader, testContracts, zerolog.Nop())
	facts, err := correlator.IndexPaired(context.Background(), Window{Start: 1, End: 200}, chain.KindSupply, chain.KindModifyLock, nil)
	if err != nil {
		t.Fatalf("IndexPaired 失败: %v", err)
	}

	// Two primaries, one secondary: the second primary is a soft miss.
	if len(facts) != 1 {
		t.Fatalf("应产出 1 个配对事实, 实际 %d", len(facts))
	}
	if facts[0].Primary.LogIndex != 4 {
		t.Fatalf("应配对第一个 primary: %+v", facts[0].Primary)
	}
	if len(facts[0].Secondary) != 1 || facts[0].Secondary[0].Kind != chain.KindModifyLock {
		t.Fatalf("secondary 配对错误: %+v", facts[0].Secondary)
	}
	if facts[0].Receipt == nil {
		t.Fatal("事实应携带收据")
	}
}

func TestTxGroupedAttachesAllSecondaries(t *testing.T) {
	tx := common.HexToHash("0xbb")
	solver := common.HexToAddress("0x8a4e90e9AFC809a69D2a3BDBE5fff17A12979609")

	tradeRaw := tradeLogs(testContracts.Settlement, tx, 3)
	reader := &fakeReader{
		logs: map[chain.EventKind][]chain.Record{
			chain.KindSettlement: {
				{Kind: chain.KindSettlement, Block: 50, TxHash: tx, LogIndex: 9, Payload: chain.SettlementEvent{Solver: solver}},
			},
		},
		receipts: map[common.Hash]*chain.Receipt{
			tx: {TxHash: tx, BlockNumber: 50, Logs: tradeRaw},
		},
	}

	correlator := NewCorrelator(reader, testContracts, zerolog.Nop())
	facts, err := correlator.TxGrouped(context.Background(), Window{Start: 1, End: 100}, chain.KindSettlement, chain.KindTrade, nil)
	if err != nil {
		t.Fatalf("TxGrouped 失败: %v", err)
	}

	if len(facts) != 1 {
		t.Fatalf("应产出 1 个事实, 实际 %d", len(facts))
	}
	if len(facts[0].Secondary) != 3 {
		t.Fatalf("应附带全部 3 条 Trade, 实际 %d", len(facts[0].Secondary))
	}
}

func TestTxGroupedSkipsTransientReceiptFailures(t *testing.T) {
	good := common.HexToHash("0xcc")
	bad := common.HexToHash("0xdd")

	reader := &fakeReader{
		logs: map[chain.EventKind][]chain.Record{
			chain.KindSettlement: {
				{Kind: chain.KindSettlement, Block: 10, TxHash: bad, LogIndex: 1, Payload: chain.SettlementEvent{}},
				{Kind: chain.KindSettlement, Block: 11, TxHash: good, LogIndex: 1, Payload: chain.SettlementEvent{}},
			},
		},
		receipts: map[common.Hash]*chain.Receipt{
			good: {TxHash: good, BlockNumber: 11},
		},
		receiptErrs: map[common.Hash]error{
			bad: errors.New("connection reset"),
		},
	}

	correlator := NewCorrelator(reader, testContracts, zerolog.Nop())
	facts, err := correlator.TxGrouped(context.Background(), Window{Start: 1, End: 100}, chain.KindSettlement, chain.KindTrade, nil)
	if err != nil {
		t.Fatalf("瞬时失败不应中止整个扫描: %v", err)
	}

	if len(facts) != 1 || facts[0].Primary.TxHash != good {
		t.Fatalf("失败的交易应被跳过, 其余继续: %+v", facts)
	}
	if len(facts[0].Secondary) != 0 {
		t.Fatalf("无 secondary 的 primary 仍应产出空事实: %+v", facts[0].Secondary)
	}
}

func TestFetchPrimariesOrdersRecords(t *testing.T) {
	txA := common.HexToHash("0x01")
	txB := common.HexToHash("0x02")

	reader := &fakeReader{
		logs: map[chain.EventKind][]chain.Record{
			chain.KindSupply: {
				supplyRecord(200, txB, 2),
				supplyRecord(100, txA, 7),
				supplyRecord(100, txA, 3),
			},
		},
	}

	correlator := NewCorrelator(reader, testContracts, zerolog.Nop())
	records, err := correlator.fetchPrimaries(context.Background(), Window{Start: 1, End: 300}, chain.KindSupply, nil)
	if err != nil {
		t.Fatalf("fetchPrimaries 失败: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("记录数量不正确: %d", len(records))
	}
	if records[0].Block != 100 || records[0].LogIndex != 3 {
		t.Fatalf("排序错误: %+v", records[0])
	}
	if records[2].Block != 200 {
		t.Fatalf("排序错误: %+v", records[2])
	}
}
