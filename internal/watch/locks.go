package watch

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"chain-alerts/internal/alerting"
	"chain-alerts/internal/chain"
	"chain-alerts/internal/scan"
)

// lockRoutine pairs voting-escrow Supply changes with the ModifyLock
// event from the same transaction. The pairing is positional by log
// index; a Supply change with no paired ModifyLock is a soft miss.
type lockRoutine struct {
	deps        runDeps
	escrow      common.Address
	deployBlock uint64
	policy      Policy
}

func newLockRoutine(deps runDeps, escrow common.Address, deployBlock uint64, policy Policy) *lockRoutine {
	return &lockRoutine{deps: deps, escrow: escrow, deployBlock: deployBlock, policy: policy}
}

func (r *lockRoutine) Name() string        { return "escrow_locks" }
func (r *lockRoutine) Kind() alerting.Kind { return alerting.KindLockChanged }

func (r *lockRoutine) Scan(ctx context.Context, window scan.Window) ([]alerting.Alert, error) {
	w, err := window.ClampedTo("contracts.voting_escrow", r.deployBlock)
	if err != nil {
		return nil, err
	}

	facts, err := r.deps.correlator.IndexPaired(ctx, w, chain.KindSupply, chain.KindModifyLock, nil)
	if err != nil {
		return nil, fmt.Errorf("correlate lock changes: %w", err)
	}

	alerts := make([]alerting.Alert, 0, len(facts))
	for _, fact := range facts {
		supply, ok := fact.Primary.Payload.(chain.SupplyEvent)
		if !ok || len(fact.Secondary) == 0 {
			continue
		}
		lock, ok := fact.Secondary[0].Payload.(chain.ModifyLockEvent)
		if !ok {
			continue
		}

		delta := new(big.Int).Sub(supply.NewSupply, supply.OldSupply)
		amount := scan.NormalizeAmount(delta, 18)
		if !r.policy.Allows(lock.User, amount) {
			continue
		}

		subLabel := "deposit"
		if delta.Sign() < 0 {
			subLabel = "withdrawal"
		}

		alerts = append(alerts, alerting.Alert{
			Kind:           alerting.KindLockChanged,
			SubLabel:       subLabel,
			TxHash:         fact.Primary.TxHash,
			Block:          fact.Primary.Block,
			At:             r.deps.blockTime(ctx, fact.Primary.Block),
			Participant:    lock.User,
			NewParticipant: r.isNewLocker(ctx, lock.User, fact.Primary.Block),
			Amounts: []alerting.Amount{{
				Label: subLabel,
				Value: amount.Abs(),
			}},
			Position: scan.PositionUnknown,
		})
	}
	return alerts, nil
}

// isNewLocker checks the user's locked amount one block before the
// event. Read failures classify as existing.
func (r *lockRoutine) isNewLocker(ctx context.Context, user common.Address, block uint64) bool {
	outputs, err := r.deps.reader.PointRead(ctx, r.escrow, "locked", block-1, user)
	if err != nil || len(outputs) == 0 {
		return false
	}
	amount, ok := outputs[0].(*big.Int)
	if !ok {
		return false
	}
	return amount.Sign() == 0
}
