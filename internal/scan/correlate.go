package scan

import (
	"context"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"chain-alerts/internal/chain"
)

// Fact is one primary event plus the secondary events from the same
// transaction needed to fully describe an alertable occurrence. Every
// member shares the primary's transaction; the receipt rides along so
// metric computation does not refetch it.
type Fact struct {
	Primary   chain.Record
	Secondary []chain.Record
	Receipt   *chain.Receipt
}

// Correlator pairs independent event streams that belong to the same
// transaction. Receipts are fetched once per transaction; wrap the reader
// in a chain.RunCache so concurrent routines share lookups.
type Correlator struct {
	reader    chain.Reader
	contracts chain.Contracts
	logger    zerolog.Logger
}

// NewCorrelator builds a correlator over reader.
func NewCorrelator(reader chain.Reader, contracts chain.Contracts, logger zerolog.Logger) *Correlator {
	return &Correlator{
		reader:    reader,
		contracts: contracts,
		logger:    logger.With().Str("component", "correlator").Logger(),
	}
}

// TxGrouped fetches primary events over the window and attaches every
// secondary event found in the same receipt, regardless of position. A
// primary with no matching secondaries still yields a Fact with an empty
// secondary set; callers decide whether that is alertable.
func (c *Correlator) TxGrouped(ctx context.Context, window Window, primary, secondary chain.EventKind, filter *chain.TopicFilter) ([]Fact, error) {
	primaries, err := c.fetchPrimaries(ctx, window, primary, filter)
	if err != nil {
		return nil, err
	}

	secondaryContract, err := c.contracts.AddressFor(secondary)
	if err != nil {
		return nil, err
	}

	facts := make([]Fact, 0, len(primaries))
	for _, rec := range primaries {
		receipt, err := c.reader.Receipt(ctx, rec.TxHash)
		if err != nil {
			// Transient read failure: skip this item, keep the routine going.
			c.logger.Warn().Err(err).Str("tx", rec.TxHash.Hex()).Msg("receipt fetch failed, skipping event")
			continue
		}

		matches, err := chain.DecodeReceiptLogs(receipt, secondary, secondaryContract)
		if err != nil {
			c.logger.Warn().Err(err).Str("tx", rec.TxHash.Hex()).Msg("secondary decode failed, skipping event")
			continue
		}

		facts = append(facts, Fact{Primary: rec, Secondary: matches, Receipt: receipt})
	}
	return facts, nil
}

// IndexPaired fetches primary events over the window and pairs each with
// one secondary event, positionally in log-index order within the same
// transaction. A primary whose position has no matching secondary yields
// no Fact: that soft miss is deliberate policy, since stricter pairing
// would change alert volume.
func (c *Correlator) IndexPaired(ctx context.Context, window Window, primary, secondary chain.EventKind, filter *chain.TopicFilter) ([]Fact, error) {
	primaries, err := c.fetchPrimaries(ctx, window, primary, filter)
	if err != nil {
		return nil, err
	}

	secondaryContract, err := c.contracts.AddressFor(secondary)
	if err != nil {
		return nil, err
	}

	facts := make([]Fact, 0, len(primaries))
	consumed := make(map[common.Hash]int)

	for _, rec := range primaries {
		receipt, err := c.reader.Receipt(ctx, rec.TxHash)
		if err != nil {
			c.logger.Warn().Err(err).Str("tx", rec.TxHash.Hex()).Msg("receipt fetch failed, skipping event")
			continue
		}

		matches, err := chain.DecodeReceiptLogs(receipt, secondary, secondaryContract)
		if err != nil {
			c.logger.Warn().Err(err).Str("tx", rec.TxHash.Hex()).Msg("secondary decode failed, skipping event")
			continue
		}

		idx := consumed[rec.TxHash]
		consumed[rec.TxHash] = idx + 1
		if idx >= len(matches) {
			// Soft miss: secondary stream exhausted before this primary.
			c.logger.Debug().Str("tx", rec.TxHash.Hex()).Int("position", idx).Msg("no paired secondary event")
			continue
		}

		facts = append(facts, Fact{Primary: rec, Secondary: []chain.Record{matches[idx]}, Receipt: receipt})
	}
	return facts, nil
}

// fetchPrimaries queries the primary stream and enforces chronological
// delivery order on the result.
func (c *Correlator) fetchPrimaries(ctx context.Context, window Window, kind chain.EventKind, filter *chain.TopicFilter) ([]chain.Record, error) {
	records, err := c.reader.LogsInRange(ctx, kind, window.Start, window.End, filter)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Block != records[j].Block {
			return records[i].Block < records[j].Block
		}
		return records[i].LogIndex < records[j].LogIndex
	})
	return records, nil
}
