package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func mintLog(minter, receiver common.Address, value *big.Int, burned bool) types.Log {
	burnedWord := make([]byte, 32)
	if burned {
		burnedWord[31] = 1
	}

	data := append(common.LeftPadBytes(value.Bytes(), 32), burnedWord...)
	return types.Log{
		Address: common.HexToAddress("0xFCc5c47bE19d06BF83eB04298b026F81069ff65b"),
		Topics: []common.Hash{
			ycrvABI.Events["Mint"].ID,
			common.BytesToHash(minter.Bytes()),
			common.BytesToHash(receiver.Bytes()),
		},
		Data:        data,
		BlockNumber: 17_000_001,
		TxHash:      common.HexToHash("0xabc1"),
		Index:       3,
	}
}

func TestDecodeMintLog(t *testing.T) {
	minter := common.HexToAddress("0x1111111111111111111111111111111111111111")
	receiver := common.HexToAddress("0x2222222222222222222222222222222222222222")
	value := new(big.Int).Mul(big.NewInt(200_000), big.NewInt(1e18))

	rec, ok, err := decodeLog(KindMint, mintLog(minter, receiver, value, true))
	if err != nil {
		t.Fatalf("解码 Mint 日志失败: %v", err)
	}
	if !ok {
		t.Fatal("签名匹配的日志应被解码")
	}

	if rec.Kind != KindMint || rec.Block != 17_000_001 || rec.LogIndex != 3 {
		t.Fatalf("记录元数据不正确: %+v", rec)
	}

	ev, ok := rec.Payload.(MintEvent)
	if !ok {
		t.Fatalf("Payload 类型应为 MintEvent, 实际 %T", rec.Payload)
	}
	if ev.Minter != minter || ev.Receiver != receiver {
		t.Fatalf("indexed 参数解码错误: %+v", ev)
	}
	if ev.Value.Cmp(value) != 0 {
		t.Fatalf("value 解码错误: %s", ev.Value)
	}
	if !ev.Burned {
		t.Fatal("burned 应为 true")
	}
}

func TestDecodeLogForeignSignature(t *testing.T) {
	lg := mintLog(common.Address{}, common.Address{}, big.NewInt(1), false)
	lg.Topics[0] = common.HexToHash("0xdeadbeef")

	_, ok, err := decodeLog(KindMint, lg)
	if err != nil {
		t.Fatalf("不匹配的签名不应报错: %v", err)
	}
	if ok {
		t.Fatal("不匹配的签名不应产出记录")
	}
}

func TestDecodeReceiptLogsFiltersContract(t *testing.T) {
	contract := common.HexToAddress("0xFCc5c47bE19d06BF83eB04298b026F81069ff65b")
	other := common.HexToAddress("0x3333333333333333333333333333333333333333")

	matching := mintLog(common.Address{}, common.Address{}, big.NewInt(5), false)
	foreign := mintLog(common.Address{}, common.Address{}, big.NewInt(7), false)
	foreign.Address = other

	receipt := &Receipt{Logs: []types.Log{foreign, matching}}
	records, err := DecodeReceiptLogs(receipt, KindMint, contract)
	if err != nil {
		t.Fatalf("DecodeReceiptLogs 失败: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("应只解码目标合约的日志, 实际 %d 条", len(records))
	}

	ev := records[0].Payload.(MintEvent)
	if ev.Value.Int64() != 5 {
		t.Fatalf("解码了错误的日志: %+v", ev)
	}
}
