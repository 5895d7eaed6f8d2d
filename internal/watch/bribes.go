package watch

import (
	"context"
	"fmt"

	"chain-alerts/internal/alerting"
	"chain-alerts/internal/chain"
	"chain-alerts/internal/scan"
)

// bribeRoutine watches bribe postings, skipping configured bribers and
// amounts at or below the floor.
type bribeRoutine struct {
	deps        runDeps
	deployBlock uint64
	policy      Policy
}

func newBribeRoutine(deps runDeps, deployBlock uint64, policy Policy) *bribeRoutine {
	return &bribeRoutine{deps: deps, deployBlock: deployBlock, policy: policy}
}

func (r *bribeRoutine) Name() string        { return "bribes" }
func (r *bribeRoutine) Kind() alerting.Kind { return alerting.KindBribeAdded }

func (r *bribeRoutine) Scan(ctx context.Context, window scan.Window) ([]alerting.Alert, error) {
	w, err := window.ClampedTo("contracts.bribe", r.deployBlock)
	if err != nil {
		return nil, err
	}

	records, err := r.deps.reader.LogsInRange(ctx, chain.KindRewardAdded, w.Start, w.End, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch bribe logs: %w", err)
	}

	alerts := make([]alerting.Alert, 0)
	for _, rec := range records {
		ev, ok := rec.Payload.(chain.RewardAddedEvent)
		if !ok {
			continue
		}

		token := r.deps.tokens.Lookup(ctx, ev.RewardToken)
		amount := scan.NormalizeAmount(ev.Amount, token.Decimals)
		if !r.policy.Allows(ev.Briber, amount) {
			continue
		}

		alerts = append(alerts, alerting.Alert{
			Kind:        alerting.KindBribeAdded,
			TxHash:      rec.TxHash,
			Block:       rec.Block,
			At:          r.deps.blockTime(ctx, rec.Block),
			Participant: ev.Briber,
			Amounts: []alerting.Amount{{
				Label:       "bribe",
				Value:       amount,
				Symbol:      token.Symbol,
				Approximate: token.Approximate,
			}},
			Position: scan.PositionUnknown,
		})
	}
	return alerts, nil
}
