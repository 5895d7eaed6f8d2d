package alerting

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Kind classifies an alert for routing and rendering.
type Kind string

const (
	KindLargeMint        Kind = "large-mint"
	KindSolverSettlement Kind = "solver-settlement"
	KindBribeAdded       Kind = "bribe-added"
	KindLockChanged      Kind = "lock-changed"
	KindFeesCheckpointed Kind = "fees-checkpointed"
	KindFailedTx         Kind = "failed-tx"
)

// Amount is a decimal-normalised token quantity. Approximate marks values
// scaled with fallback precision after a failed metadata lookup.
type Amount struct {
	Label       string
	Value       decimal.Decimal
	Symbol      string
	Approximate bool
}

// TradeLine is one executed order inside a settlement alert.
type TradeLine struct {
	Owner     common.Address
	SellToken common.Address
	Sell      Amount
	BuyToken  common.Address
	Buy       Amount
	OrderUid  string
}

// SlippageLine is the signed balance delta of one destination token.
type SlippageLine struct {
	Token  common.Address
	Symbol string
	Amount decimal.Decimal
}

// Alert is a fully-resolved alert fact, ready for formatting. Immutable;
// consumed exactly once by the router.
type Alert struct {
	Kind        Kind
	SubLabel    string
	TxHash      common.Hash
	Block       uint64
	At          time.Time
	Participant common.Address
	// NewParticipant is set for kinds that classify the participant by
	// comparing their prior-block balance to zero.
	NewParticipant bool
	Amounts        []Amount
	Trades         []TradeLine
	Slippage       []SlippageLine
	GasNative      *decimal.Decimal
	GasUSD         *decimal.Decimal
	// Position is the transaction's ordinal inside its block, or a
	// negative sentinel when unknown.
	Position int
}
