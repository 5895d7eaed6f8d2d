package watch

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"chain-alerts/internal/chain"
)

// Policy is the kind-specific suppression rule set applied before an
// alert fact is constructed. Amounts are compared after decimal
// normalisation; thresholds are strict (strictly greater than passes).
type Policy struct {
	SuppressZero bool
	MinAmount    decimal.Decimal
	SkipList     map[common.Address]bool
}

// NewPolicy assembles a policy from configuration values.
func NewPolicy(suppressZero bool, minAmount decimal.Decimal, skip []common.Address) Policy {
	skipList := make(map[common.Address]bool, len(skip))
	for _, addr := range skip {
		skipList[addr] = true
	}
	return Policy{SuppressZero: suppressZero, MinAmount: minAmount, SkipList: skipList}
}

// Allows reports whether an alert for participant with the given
// normalised amount survives suppression.
func (p Policy) Allows(participant common.Address, amount decimal.Decimal) bool {
	if p.SuppressZero && amount.IsZero() {
		return false
	}
	if !p.MinAmount.IsZero() && amount.Abs().Cmp(p.MinAmount) <= 0 {
		return false
	}
	if p.SkipList[participant] {
		return false
	}
	return true
}

// isNewParticipant classifies a participant by comparing their balance
// on contract one block before the event to zero. Read failures
// classify as existing: the label is cosmetic and must not drop alerts.
func isNewParticipant(ctx context.Context, reader chain.Reader, contract, participant common.Address, block uint64) bool {
	outputs, err := reader.PointRead(ctx, contract, "balanceOf", block-1, participant)
	if err != nil || len(outputs) == 0 {
		return false
	}
	balance, ok := outputs[0].(*big.Int)
	if !ok {
		return false
	}
	return balance.Sign() == 0
}
