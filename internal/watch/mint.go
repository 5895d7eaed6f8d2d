package watch

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"chain-alerts/internal/alerting"
	"chain-alerts/internal/chain"
	"chain-alerts/internal/scan"
)

// mintRoutine watches yCRV Mint events above a size threshold. The
// sub-label distinguishes fresh CRV locks from yveCRV migrations via the
// event's burned flag.
type mintRoutine struct {
	deps        runDeps
	ycrv        common.Address
	deployBlock uint64
	policy      Policy
}

func newMintRoutine(deps runDeps, ycrv common.Address, deployBlock uint64, policy Policy) *mintRoutine {
	return &mintRoutine{deps: deps, ycrv: ycrv, deployBlock: deployBlock, policy: policy}
}

func (r *mintRoutine) Name() string        { return "ycrv_mint" }
func (r *mintRoutine) Kind() alerting.Kind { return alerting.KindLargeMint }

func (r *mintRoutine) Scan(ctx context.Context, window scan.Window) ([]alerting.Alert, error) {
	w, err := window.ClampedTo("contracts.ycrv", r.deployBlock)
	if err != nil {
		return nil, err
	}

	records, err := r.deps.reader.LogsInRange(ctx, chain.KindMint, w.Start, w.End, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch mint logs: %w", err)
	}

	alerts := make([]alerting.Alert, 0)
	for _, rec := range records {
		ev, ok := rec.Payload.(chain.MintEvent)
		if !ok {
			continue
		}

		amount := scan.NormalizeAmount(ev.Value, 18)
		if !r.policy.Allows(ev.Receiver, amount) {
			continue
		}

		subLabel := "locked"
		if ev.Burned {
			subLabel = "migrated"
		}

		alerts = append(alerts, alerting.Alert{
			Kind:           alerting.KindLargeMint,
			SubLabel:       subLabel,
			TxHash:         rec.TxHash,
			Block:          rec.Block,
			At:             r.deps.blockTime(ctx, rec.Block),
			Participant:    ev.Receiver,
			NewParticipant: isNewParticipant(ctx, r.deps.reader, r.ycrv, ev.Receiver, rec.Block),
			Amounts: []alerting.Amount{{
				Label:  "minted",
				Value:  amount,
				Symbol: "yCRV",
			}},
			Position: scan.PositionUnknown,
		})
	}
	return alerts, nil
}
