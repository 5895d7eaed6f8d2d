package watch

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"chain-alerts/internal/alerting"
	"chain-alerts/internal/scan"
)

// failedTxRoutine detects reverted transactions sent by a watched
// address set. There is no log stream to filter on, so it walks block
// transaction lists and inspects receipt status; sender recovery only
// happens for failed receipts. The walk is capped so a long offline gap
// cannot fan out into an unbounded receipt sweep.
type failedTxRoutine struct {
	deps      runDeps
	watched   map[common.Address]bool
	maxBlocks uint64
	weth      common.Address
}

func newFailedTxRoutine(deps runDeps, watched []common.Address, maxBlocks uint64, weth common.Address) *failedTxRoutine {
	set := make(map[common.Address]bool, len(watched))
	for _, addr := range watched {
		set[addr] = true
	}
	return &failedTxRoutine{deps: deps, watched: set, maxBlocks: maxBlocks, weth: weth}
}

func (r *failedTxRoutine) Name() string        { return "failed_txs" }
func (r *failedTxRoutine) Kind() alerting.Kind { return alerting.KindFailedTx }

func (r *failedTxRoutine) Scan(ctx context.Context, window scan.Window) ([]alerting.Alert, error) {
	start := window.Start
	if r.maxBlocks > 0 && window.End-start >= r.maxBlocks {
		start = window.End - r.maxBlocks + 1
		r.deps.logger.Warn().
			Uint64("window_start", window.Start).
			Uint64("effective_start", start).
			Msg("failed-tx sweep capped, skipping older blocks")
	}

	alerts := make([]alerting.Alert, 0)
	for block := start; block <= window.End; block++ {
		select {
		case <-ctx.Done():
			return alerts, ctx.Err()
		default:
		}

		hashes, err := r.deps.reader.BlockTransactions(ctx, block)
		if err != nil {
			r.deps.logger.Warn().Err(err).Uint64("block", block).Msg("block tx list unavailable, skipping block")
			continue
		}

		for _, tx := range hashes {
			receipt, err := r.deps.reader.Receipt(ctx, tx)
			if err != nil {
				r.deps.logger.Warn().Err(err).Str("tx", tx.Hex()).Msg("receipt fetch failed, skipping tx")
				continue
			}
			if !receipt.Failed {
				continue
			}

			sender, err := r.deps.reader.TransactionSender(ctx, tx)
			if err != nil {
				r.deps.logger.Warn().Err(err).Str("tx", tx.Hex()).Msg("sender recovery failed, skipping tx")
				continue
			}
			if !r.watched[sender] {
				continue
			}

			gas := r.deps.metrics.GasCost(ctx, receipt, r.weth)
			alerts = append(alerts, alerting.Alert{
				Kind:        alerting.KindFailedTx,
				TxHash:      tx,
				Block:       block,
				At:          r.deps.blockTime(ctx, block),
				Participant: sender,
				GasNative:   &gas.Native,
				GasUSD:      gas.USD,
				Position:    int(receipt.TxIndex),
			})
		}
	}
	return alerts, nil
}
