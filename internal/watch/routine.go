package watch

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"chain-alerts/internal/alerting"
	"chain-alerts/internal/chain"
	"chain-alerts/internal/scan"
)

// Routine is one independent alert producer. Routines read disjoint
// event kinds over the same window and may run concurrently; they share
// only the run-scoped cached reader.
type Routine interface {
	Name() string
	Kind() alerting.Kind
	Scan(ctx context.Context, window scan.Window) ([]alerting.Alert, error)
}

// runDeps bundles the run-scoped collaborators handed to every routine.
type runDeps struct {
	reader     chain.Reader
	correlator *scan.Correlator
	metrics    *scan.MetricComputer
	tokens     *chain.TokenDirectory
	logger     zerolog.Logger
}

// blockTime resolves a block timestamp, degrading to the wall clock when
// the header read fails; the timestamp is presentation only.
func (d runDeps) blockTime(ctx context.Context, block uint64) time.Time {
	at, err := d.reader.BlockTime(ctx, block)
	if err != nil {
		d.logger.Debug().Err(err).Uint64("block", block).Msg("block timestamp unavailable")
		return time.Now().UTC()
	}
	return at
}
