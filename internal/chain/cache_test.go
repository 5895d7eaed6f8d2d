package chain

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

type countingReader struct {
	Reader
	receiptCalls int
	senderCalls  int
}

func (c *countingReader) Receipt(ctx context.Context, tx common.Hash) (*Receipt, error) {
	c.receiptCalls++
	return &Receipt{TxHash: tx, BlockNumber: 100}, nil
}

func (c *countingReader) TransactionSender(ctx context.Context, tx common.Hash) (common.Address, error) {
	c.senderCalls++
	return common.HexToAddress("0x5555555555555555555555555555555555555555"), nil
}

func TestRunCacheMemoisesReceipts(t *testing.T) {
	inner := &countingReader{}
	cached := NewRunCache(inner)

	tx := common.HexToHash("0x01")
	for i := 0; i < 3; i++ {
		receipt, err := cached.Receipt(context.Background(), tx)
		if err != nil {
			t.Fatalf("Receipt 失败: %v", err)
		}
		if receipt.TxHash != tx {
			t.Fatalf("返回了错误的收据: %+v", receipt)
		}
	}
	if inner.receiptCalls != 1 {
		t.Fatalf("同一交易应只抓取一次收据, 实际 %d 次", inner.receiptCalls)
	}

	other := common.HexToHash("0x02")
	if _, err := cached.Receipt(context.Background(), other); err != nil {
		t.Fatalf("Receipt 失败: %v", err)
	}
	if inner.receiptCalls != 2 {
		t.Fatalf("不同交易应各抓取一次, 实际 %d 次", inner.receiptCalls)
	}
}

func TestRunCacheMemoisesSenders(t *testing.T) {
	inner := &countingReader{}
	cached := NewRunCache(inner)

	tx := common.HexToHash("0x03")
	for i := 0; i < 2; i++ {
		if _, err := cached.TransactionSender(context.Background(), tx); err != nil {
			t.Fatalf("TransactionSender 失败: %v", err)
		}
	}
	if inner.senderCalls != 1 {
		t.Fatalf("同一交易应只恢复一次发送者, 实际 %d 次", inner.senderCalls)
	}
}
