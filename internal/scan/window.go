package scan

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"chain-alerts/internal/chain"
)

// Window is one inclusive scan range. Start never decreases across runs:
// it is sourced from the last committed checkpoint.
type Window struct {
	Start uint64
	End   uint64
}

// Empty reports whether the window contains no blocks. This happens when
// the committed checkpoint already covers the chain head.
func (w Window) Empty() bool {
	return w.Start > w.End
}

// ClampedTo raises the window start to the deployment block of an alert
// kind. Deployment blocks are mandatory per kind; zero is a fatal
// configuration fault.
func (w Window) ClampedTo(kind string, deployBlock uint64) (Window, error) {
	if deployBlock == 0 {
		return Window{}, NewConfigError(kind, "deployment block not configured")
	}
	if deployBlock > w.Start {
		w.Start = deployBlock
	}
	if w.Start > w.End {
		// Deployed beyond the current head; nothing to scan yet.
		w.Start = w.End
	}
	return w, nil
}

// RangeScanner resolves the scan window for each run. It is read-only:
// the checkpoint write happens once, centrally, after all routines finish.
type RangeScanner struct {
	reader       chain.Reader
	checkpoints  CheckpointStore
	defaultStart uint64
	logger       zerolog.Logger
}

// NewRangeScanner builds a scanner that falls back to defaultStart when
// no checkpoint exists.
func NewRangeScanner(reader chain.Reader, checkpoints CheckpointStore, defaultStart uint64, logger zerolog.Logger) *RangeScanner {
	return &RangeScanner{
		reader:       reader,
		checkpoints:  checkpoints,
		defaultStart: defaultStart,
		logger:       logger.With().Str("component", "range_scanner").Logger(),
	}
}

// ResolveWindow reads the checkpoint (or the default start) and the
// current head, and returns the window for this run. The checkpoint
// block is fully processed, so the window resumes one block after it;
// consecutive runs never share a block.
func (s *RangeScanner) ResolveWindow(ctx context.Context) (Window, error) {
	var start uint64
	checkpoint, err := s.checkpoints.Get(ctx)
	switch {
	case errors.Is(err, ErrCheckpointNotFound):
		start = s.defaultStart
		s.logger.Info().Uint64("default_start", start).Msg("no checkpoint, starting from configured default")
	case err != nil:
		return Window{}, fmt.Errorf("read checkpoint: %w", err)
	default:
		start = checkpoint + 1
	}

	head, err := s.reader.HeadBlock(ctx)
	if err != nil {
		return Window{}, fmt.Errorf("resolve head block: %w", err)
	}

	if start > head {
		// Nothing new, or the node's view lags the checkpoint (replica
		// behind); either way the empty window waits it out.
		s.logger.Debug().Uint64("start", start).Uint64("head", head).Msg("no unprocessed blocks")
	}

	return Window{Start: start, End: head}, nil
}
