package scan

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Raw-log builders for the secondary streams the correlator decodes out
// of receipts. Topics and data follow the on-chain ABI encoding exactly.

var (
	modifyLockTopic = crypto.Keccak256Hash([]byte("ModifyLock(address,address,uint256,uint256,uint256)"))
	tradeTopic      = crypto.Keccak256Hash([]byte("Trade(address,address,address,uint256,uint256,uint256,bytes)"))
)

func word(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}

func addressWord(a common.Address) []byte {
	return common.LeftPadBytes(a.Bytes(), 32)
}

// modifyLockLog returns a single raw ModifyLock log inside tx.
func modifyLockLog(escrow common.Address, tx common.Hash, index uint) []types.Log {
	data := append(word(big.NewInt(1e18)), word(big.NewInt(1_800_000_000))...)
	data = append(data, word(big.NewInt(1_700_000_000))...)

	return []types.Log{{
		Address: escrow,
		Topics: []common.Hash{
			modifyLockTopic,
			common.BytesToHash(common.HexToAddress("0x1010101010101010101010101010101010101010").Bytes()),
			common.BytesToHash(common.HexToAddress("0x2020202020202020202020202020202020202020").Bytes()),
		},
		Data:   data,
		TxHash: tx,
		Index:  index,
	}}
}

// tradeLogs returns count raw Trade logs inside tx, with an empty order
// uid (dynamic bytes tail of length zero).
func tradeLogs(settlement common.Address, tx common.Hash, count int) []types.Log {
	logs := make([]types.Log, 0, count)
	for i := 0; i < count; i++ {
		data := addressWord(common.HexToAddress("0x3030303030303030303030303030303030303030"))
		data = append(data, addressWord(common.HexToAddress("0x4040404040404040404040404040404040404040"))...)
		data = append(data, word(big.NewInt(int64(1000+i)))...)
		data = append(data, word(big.NewInt(int64(990+i)))...)
		data = append(data, word(big.NewInt(5))...)
		data = append(data, word(big.NewInt(0xC0))...)
		data = append(data, word(big.NewInt(0))...)

		logs = append(logs, types.Log{
			Address: settlement,
			Topics: []common.Hash{
				tradeTopic,
				common.BytesToHash(common.HexToAddress("0x5050505050505050505050505050505050505050").Bytes()),
			},
			Data:   data,
			TxHash: tx,
			Index:  uint(i + 1),
		})
	}
	return logs
}
