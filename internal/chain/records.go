package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Closed record types, one per event kind, decoded once at the reader
// boundary so downstream logic never touches raw topics or data blobs.

// MintEvent is emitted by the yCRV token on every mint.
type MintEvent struct {
	Minter   common.Address
	Receiver common.Address
	Value    *big.Int
	Burned   bool
}

// SettlementEvent marks a batch settlement executed by a solver.
type SettlementEvent struct {
	Solver common.Address
}

// TradeEvent is one order execution inside a settlement.
type TradeEvent struct {
	Owner      common.Address
	SellToken  common.Address
	BuyToken   common.Address
	SellAmount *big.Int
	BuyAmount  *big.Int
	FeeAmount  *big.Int
	OrderUid   []byte
}

// SupplyEvent reports the voting-escrow total supply before and after a
// lock modification.
type SupplyEvent struct {
	OldSupply *big.Int
	NewSupply *big.Int
	Ts        *big.Int
}

// ModifyLockEvent describes a single lock deposit, extension or exit.
type ModifyLockEvent struct {
	Sender   common.Address
	User     common.Address
	Amount   *big.Int
	Locktime *big.Int
	Ts       *big.Int
}

// RewardAddedEvent is a bribe posted against a gauge.
type RewardAddedEvent struct {
	Briber      common.Address
	Gauge       common.Address
	RewardToken common.Address
	Amount      *big.Int
}

// CheckpointTokenEvent reports fees pulled into the distributor.
type CheckpointTokenEvent struct {
	Time   *big.Int
	Tokens *big.Int
}
