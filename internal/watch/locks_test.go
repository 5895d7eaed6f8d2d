package watch

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"chain-alerts/internal/alerting"
	"chain-alerts/internal/chain"
	"chain-alerts/internal/scan"
)

var modifyLockTopic = crypto.Keccak256Hash([]byte("ModifyLock(address,address,uint256,uint256,uint256)"))

func rawModifyLockLog(tx common.Hash, user common.Address, amount *big.Int, index uint) types.Log {
	data := common.LeftPadBytes(amount.Bytes(), 32)
	data = append(data, common.LeftPadBytes(big.NewInt(1_800_000_000).Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(big.NewInt(1_700_000_000).Bytes(), 32)...)

	return types.Log{
		Address: testContracts.VotingEscrow,
		Topics: []common.Hash{
			modifyLockTopic,
			common.BytesToHash(user.Bytes()),
			common.BytesToHash(user.Bytes()),
		},
		Data:   data,
		TxHash: tx,
		Index:  index,
	}
}

func supplyRecord(block uint64, tx common.Hash, index uint, oldSupply, newSupply *big.Int) chain.Record {
	return chain.Record{
		Kind:     chain.KindSupply,
		Block:    block,
		TxHash:   tx,
		LogIndex: index,
		Payload:  chain.SupplyEvent{OldSupply: oldSupply, NewSupply: newSupply, Ts: big.NewInt(1_700_000_000)},
	}
}

func TestLockRoutineClassifiesDepositAndWithdrawal(t *testing.T) {
	user := common.HexToAddress("0x1212121212121212121212121212121212121212")
	depositTx := common.HexToHash("0xd1")
	withdrawTx := common.HexToHash("0xd2")

	reader := &fakeReader{
		logs: map[chain.EventKind][]chain.Record{
			chain.KindSupply: {
				supplyRecord(16_100_000, depositTx, 2, tokens18(1000), tokens18(1500)),
				supplyRecord(16_100_500, withdrawTx, 4, tokens18(1500), tokens18(1200)),
			},
		},
		receipts: map[common.Hash]*chain.Receipt{
			depositTx:  {TxHash: depositTx, Logs: []types.Log{rawModifyLockLog(depositTx, user, tokens18(500), 3)}},
			withdrawTx: {TxHash: withdrawTx, Logs: []types.Log{rawModifyLockLog(withdrawTx, user, big.NewInt(0), 5)}},
		},
		pointRead: func(contract common.Address, method string, block uint64, args ...any) ([]any, error) {
			// Non-zero prior lock: an existing locker.
			return []any{big.NewInt(1)}, nil
		},
	}

	routine := newLockRoutine(newRunDeps(reader), testContracts.VotingEscrow, 15_974_608, NewPolicy(true, decimal.Zero, nil))
	alerts, err := routine.Scan(context.Background(), scan.Window{Start: 16_000_000, End: 16_200_000})
	if err != nil {
		t.Fatalf("Scan 失败: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("应产出 2 条告警, 实际 %d", len(alerts))
	}

	deposit, withdrawal := alerts[0], alerts[1]
	if deposit.SubLabel != "deposit" || !deposit.Amounts[0].Value.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("存入分类错误: %+v", deposit)
	}
	if withdrawal.SubLabel != "withdrawal" || !withdrawal.Amounts[0].Value.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("提取分类错误: %+v", withdrawal)
	}
	if withdrawal.Kind != alerting.KindLockChanged || withdrawal.Participant != user {
		t.Fatalf("告警归属错误: %+v", withdrawal)
	}
	if deposit.NewParticipant {
		t.Fatal("已有锁仓的用户不应标记为新用户")
	}
}

func TestLockRoutineSoftMissYieldsNoAlert(t *testing.T) {
	tx := common.HexToHash("0xd3")
	reader := &fakeReader{
		logs: map[chain.EventKind][]chain.Record{
			chain.KindSupply: {supplyRecord(16_100_000, tx, 2, tokens18(1000), tokens18(1500))},
		},
		receipts: map[common.Hash]*chain.Receipt{
			// Receipt carries no ModifyLock log at all.
			tx: {TxHash: tx},
		},
	}

	routine := newLockRoutine(newRunDeps(reader), testContracts.VotingEscrow, 15_974_608, NewPolicy(true, decimal.Zero, nil))
	alerts, err := routine.Scan(context.Background(), scan.Window{Start: 16_000_000, End: 16_200_000})
	if err != nil {
		t.Fatalf("软性错配不应报错: %v", err)
	}
	if len(alerts) != 0 {
		t.Fatalf("无配对 ModifyLock 的 Supply 不应产出告警: %+v", alerts)
	}
}
