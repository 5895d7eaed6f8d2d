package watch

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"chain-alerts/internal/alerting"
	"chain-alerts/internal/chain"
	"chain-alerts/internal/scan"
)

// feeDistRoutine watches fee-distributor checkpoints. Zero-token
// checkpoints (idle weeks) are suppressed.
type feeDistRoutine struct {
	deps        runDeps
	deployBlock uint64
	feeToken    common.Address
	policy      Policy
}

func newFeeDistRoutine(deps runDeps, deployBlock uint64, feeToken common.Address, policy Policy) *feeDistRoutine {
	return &feeDistRoutine{deps: deps, deployBlock: deployBlock, feeToken: feeToken, policy: policy}
}

func (r *feeDistRoutine) Name() string        { return "fee_distribution" }
func (r *feeDistRoutine) Kind() alerting.Kind { return alerting.KindFeesCheckpointed }

func (r *feeDistRoutine) Scan(ctx context.Context, window scan.Window) ([]alerting.Alert, error) {
	w, err := window.ClampedTo("contracts.fee_distributor", r.deployBlock)
	if err != nil {
		return nil, err
	}

	records, err := r.deps.reader.LogsInRange(ctx, chain.KindCheckpointToken, w.Start, w.End, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch fee checkpoint logs: %w", err)
	}

	alerts := make([]alerting.Alert, 0)
	for _, rec := range records {
		ev, ok := rec.Payload.(chain.CheckpointTokenEvent)
		if !ok {
			continue
		}

		token := r.deps.tokens.Lookup(ctx, r.feeToken)
		amount := scan.NormalizeAmount(ev.Tokens, token.Decimals)
		if !r.policy.Allows(common.Address{}, amount) {
			continue
		}

		alerts = append(alerts, alerting.Alert{
			Kind:   alerting.KindFeesCheckpointed,
			TxHash: rec.TxHash,
			Block:  rec.Block,
			At:     r.deps.blockTime(ctx, rec.Block),
			Amounts: []alerting.Amount{{
				Label:       "fees",
				Value:       amount,
				Symbol:      token.Symbol,
				Approximate: token.Approximate,
			}},
			Position: scan.PositionUnknown,
		})
	}
	return alerts, nil
}
