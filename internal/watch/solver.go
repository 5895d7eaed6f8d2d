package watch

import (
	"context"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"chain-alerts/internal/alerting"
	"chain-alerts/internal/chain"
	"chain-alerts/internal/scan"
)

// solverRoutine watches settlements executed by the configured solver
// set and attaches every trade in the same transaction, plus the derived
// metrics that need chain state on both sides of the settlement block.
type solverRoutine struct {
	deps        runDeps
	deployBlock uint64
	solvers     []common.Address
	prodSolver  common.Address
	weth        common.Address
}

func newSolverRoutine(deps runDeps, deployBlock uint64, solvers []common.Address, prodSolver, weth common.Address) *solverRoutine {
	return &solverRoutine{deps: deps, deployBlock: deployBlock, solvers: solvers, prodSolver: prodSolver, weth: weth}
}

func (r *solverRoutine) Name() string        { return "seasolver" }
func (r *solverRoutine) Kind() alerting.Kind { return alerting.KindSolverSettlement }

func (r *solverRoutine) Scan(ctx context.Context, window scan.Window) ([]alerting.Alert, error) {
	w, err := window.ClampedTo("contracts.settlement", r.deployBlock)
	if err != nil {
		return nil, err
	}

	facts, err := r.deps.correlator.TxGrouped(ctx, w, chain.KindSettlement, chain.KindTrade, chain.AddressFilter(r.solvers...))
	if err != nil {
		return nil, fmt.Errorf("correlate settlements: %w", err)
	}

	alerts := make([]alerting.Alert, 0, len(facts))
	for _, fact := range facts {
		settlement, ok := fact.Primary.Payload.(chain.SettlementEvent)
		if !ok {
			continue
		}

		trades := make([]chain.TradeEvent, 0, len(fact.Secondary))
		for _, sec := range fact.Secondary {
			if trade, ok := sec.Payload.(chain.TradeEvent); ok {
				trades = append(trades, trade)
			}
		}

		subLabel := "barn"
		if settlement.Solver == r.prodSolver {
			subLabel = "prod"
		}

		gas := r.deps.metrics.GasCost(ctx, fact.Receipt, r.weth)
		alert := alerting.Alert{
			Kind:        alerting.KindSolverSettlement,
			SubLabel:    subLabel,
			TxHash:      fact.Primary.TxHash,
			Block:       fact.Primary.Block,
			At:          r.deps.blockTime(ctx, fact.Primary.Block),
			Participant: settlement.Solver,
			Trades:      r.tradeLines(ctx, trades),
			Slippage:    r.slippageLines(ctx, trades, fact.Primary.Block),
			GasNative:   &gas.Native,
			GasUSD:      gas.USD,
			Position:    r.deps.metrics.PositionInBlock(ctx, fact.Primary.TxHash, fact.Primary.Block),
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

func (r *solverRoutine) tradeLines(ctx context.Context, trades []chain.TradeEvent) []alerting.TradeLine {
	lines := make([]alerting.TradeLine, 0, len(trades))
	for _, trade := range trades {
		sell := r.deps.tokens.Lookup(ctx, trade.SellToken)
		buy := r.deps.tokens.Lookup(ctx, trade.BuyToken)
		lines = append(lines, alerting.TradeLine{
			Owner:     trade.Owner,
			SellToken: trade.SellToken,
			Sell: alerting.Amount{
				Label:       "sell",
				Value:       scan.NormalizeAmount(trade.SellAmount, sell.Decimals),
				Symbol:      sell.Symbol,
				Approximate: sell.Approximate,
			},
			BuyToken: trade.BuyToken,
			Buy: alerting.Amount{
				Label:       "buy",
				Value:       scan.NormalizeAmount(trade.BuyAmount, buy.Decimals),
				Symbol:      buy.Symbol,
				Approximate: buy.Approximate,
			},
			OrderUid: hexutil.Encode(trade.OrderUid),
		})
	}
	return lines
}

func (r *solverRoutine) slippageLines(ctx context.Context, trades []chain.TradeEvent, block uint64) []alerting.SlippageLine {
	deltas := r.deps.metrics.Slippage(ctx, trades, block)

	lines := make([]alerting.SlippageLine, 0, len(deltas))
	for token, amount := range deltas {
		info := r.deps.tokens.Lookup(ctx, token)
		lines = append(lines, alerting.SlippageLine{Token: token, Symbol: info.Symbol, Amount: amount})
	}
	// Map iteration order is random; alert text must be deterministic.
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].Token.Hex() < lines[j].Token.Hex()
	})
	return lines
}
