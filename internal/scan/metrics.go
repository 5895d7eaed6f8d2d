package scan

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"chain-alerts/internal/chain"
)

// PositionUnknown is the sentinel returned when a transaction cannot be
// located in its block. Cosmetic, never an error.
const PositionUnknown = -1

// GasCost is the native and USD-normalised execution cost of a
// transaction. USD is nil when the oracle read failed; render without it.
type GasCost struct {
	Native decimal.Decimal
	USD    *decimal.Decimal
}

// MetricComputer derives values not present in any single log. All
// reads are point-in-time against an explicit block; failures degrade
// the metric rather than aborting the alert.
type MetricComputer struct {
	reader  chain.Reader
	tokens  *chain.TokenDirectory
	oracle  common.Address
	account common.Address
	logger  zerolog.Logger
}

// NewMetricComputer builds a computer tracking balances of account
// (the settlement contract) and pricing through the lens oracle.
func NewMetricComputer(reader chain.Reader, tokens *chain.TokenDirectory, oracle, account common.Address, logger zerolog.Logger) *MetricComputer {
	return &MetricComputer{
		reader:  reader,
		tokens:  tokens,
		oracle:  oracle,
		account: account,
		logger:  logger.With().Str("component", "metrics").Logger(),
	}
}

// GasCost computes gasUsed*gasPrice in the native asset plus a USD
// normalisation via an oracle read at the transaction's block. The USD
// leg fails soft: a reverting oracle leaves USD nil.
func (m *MetricComputer) GasCost(ctx context.Context, receipt *chain.Receipt, weth common.Address) GasCost {
	wei := new(big.Int).Mul(new(big.Int).SetUint64(receipt.GasUsed), receipt.GasPrice)
	cost := GasCost{Native: decimal.NewFromBigInt(wei, -18)}

	if m.oracle == (common.Address{}) {
		return cost
	}

	outputs, err := m.reader.PointRead(ctx, m.oracle, "getPriceUsdcRecommended", receipt.BlockNumber, weth)
	if err != nil {
		m.logger.Warn().Err(fmt.Errorf("%w: %v", ErrMetricUnavailable, err)).
			Str("tx", receipt.TxHash.Hex()).Msg("gas price oracle read failed")
		return cost
	}
	price, ok := firstBigInt(outputs)
	if !ok || price.Sign() == 0 {
		return cost
	}

	// Oracle prices are USDC-scaled (1e6).
	usd := cost.Native.Mul(decimal.NewFromBigInt(price, -6))
	cost.USD = &usd
	return cost
}

// Slippage measures the tracked account's balance change across the
// blocks immediately surrounding block, per distinct destination token
// of the given trades. The native placeholder is normalised to WETH
// first, since the account cannot hold the native asset directly.
// Distinct tokens are computed once, so each token costs exactly two
// balance reads regardless of how many trades share it. A failed read
// for one token never aborts the others.
func (m *MetricComputer) Slippage(ctx context.Context, trades []chain.TradeEvent, block uint64) map[common.Address]decimal.Decimal {
	distinct := make([]common.Address, 0, len(trades))
	seen := make(map[common.Address]bool)
	for _, trade := range trades {
		token := m.tokens.Normalize(trade.BuyToken)
		if !seen[token] {
			seen[token] = true
			distinct = append(distinct, token)
		}
	}

	result := make(map[common.Address]decimal.Decimal, len(distinct))
	for _, token := range distinct {
		before, err := m.balanceAt(ctx, token, block-1)
		if err != nil {
			m.logger.Warn().Err(fmt.Errorf("%w: %v", ErrMetricUnavailable, err)).
				Str("token", token.Hex()).Msg("pre-block balance read failed")
			continue
		}
		after, err := m.balanceAt(ctx, token, block+1)
		if err != nil {
			m.logger.Warn().Err(fmt.Errorf("%w: %v", ErrMetricUnavailable, err)).
				Str("token", token.Hex()).Msg("post-block balance read failed")
			continue
		}

		info := m.tokens.Lookup(ctx, token)
		delta := new(big.Int).Sub(after, before)
		result[token] = decimal.NewFromBigInt(delta, -info.Decimals)
	}
	return result
}

// PositionInBlock finds the ordinal position of tx inside block via a
// linear scan of the block's transaction list. Returns PositionUnknown
// when the transaction is absent or the block cannot be read.
func (m *MetricComputer) PositionInBlock(ctx context.Context, tx common.Hash, block uint64) int {
	hashes, err := m.reader.BlockTransactions(ctx, block)
	if err != nil {
		m.logger.Debug().Err(err).Uint64("block", block).Msg("block transaction list unavailable")
		return PositionUnknown
	}
	for i, h := range hashes {
		if h == tx {
			return i
		}
	}
	return PositionUnknown
}

func (m *MetricComputer) balanceAt(ctx context.Context, token common.Address, block uint64) (*big.Int, error) {
	outputs, err := m.reader.PointRead(ctx, token, "balanceOf", block, m.account)
	if err != nil {
		return nil, err
	}
	balance, ok := firstBigInt(outputs)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf output for %s", token.Hex())
	}
	return balance, nil
}

func firstBigInt(outputs []any) (*big.Int, bool) {
	if len(outputs) == 0 {
		return nil, false
	}
	value, ok := outputs[0].(*big.Int)
	return value, ok
}

// NormalizeAmount scales a raw token amount by the token's decimal
// precision.
func NormalizeAmount(raw *big.Int, decimals int32) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -decimals)
}
