package watch

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"chain-alerts/internal/alerting"
	"chain-alerts/internal/chain"
	"chain-alerts/internal/config"
	"chain-alerts/internal/scan"
	"chain-alerts/internal/storage"
)

// Engine runs one full scan pass: resolve the window, run every enabled
// alert routine over it, route the resulting facts, then commit the new
// head. The checkpoint write happens exactly once, after every routine
// has completed or reported a recoverable failure; only a configuration
// fault prevents it.
type Engine struct {
	cfg         *config.Config
	reader      chain.Reader
	scanner     *scan.RangeScanner
	checkpoints scan.CheckpointStore
	router      *alerting.Router
	audit       storage.AlertAuditStore
	contracts   chain.Contracts
	logger      zerolog.Logger
}

// Summary reports the outcome of one scan pass.
type Summary struct {
	Window    scan.Window
	Alerts    int
	Delivered int
	Routines  int
	Failed    int
}

// NewEngine wires a scan engine. router and audit may be nil; alerts are
// then logged without delivery or persistence.
func NewEngine(cfg *config.Config, reader chain.Reader, checkpoints scan.CheckpointStore, router *alerting.Router, audit storage.AlertAuditStore, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:         cfg,
		reader:      reader,
		scanner:     scan.NewRangeScanner(reader, checkpoints, cfg.Scanner.DefaultStartBlock, logger),
		checkpoints: checkpoints,
		router:      router,
		audit:       audit,
		contracts:   contractsFromConfig(cfg.Contracts),
		logger:      logger.With().Str("component", "engine").Logger(),
	}
}

// RunOnce executes one scan pass over the unprocessed window.
func (e *Engine) RunOnce(ctx context.Context) (Summary, error) {
	window, err := e.scanner.ResolveWindow(ctx)
	if err != nil {
		return Summary{}, err
	}
	if window.Empty() {
		// The committed checkpoint already covers the head; nothing to
		// scan and nothing to commit.
		e.logger.Debug().Uint64("head", window.End).Msg("no new blocks to scan")
		return Summary{Window: window}, nil
	}

	// Run-scoped reader: receipts and senders are fetched once per
	// transaction no matter how many routines touch it.
	cached := chain.NewRunCache(e.reader)
	tokens := chain.NewTokenDirectory(cached, common.HexToAddress(e.cfg.Contracts.WETH), e.logger)
	deps := runDeps{
		reader:     cached,
		correlator: scan.NewCorrelator(cached, e.contracts, e.logger),
		metrics: scan.NewMetricComputer(
			cached,
			tokens,
			common.HexToAddress(e.cfg.Contracts.Oracle),
			e.contracts.Settlement,
			e.logger,
		),
		tokens: tokens,
		logger: e.logger,
	}

	routines := e.buildRoutines(deps)

	if e.router != nil {
		kinds := make([]alerting.Kind, 0, len(routines))
		for _, routine := range routines {
			kinds = append(kinds, routine.Kind())
		}
		// A missing channel mapping is fatal before any scanning starts.
		if err := e.router.Validate(kinds); err != nil {
			return Summary{}, err
		}
	}

	summary := Summary{Window: window, Routines: len(routines)}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		configErr error
	)

	for _, routine := range routines {
		wg.Add(1)
		go func(routine Routine) {
			defer wg.Done()

			logger := e.logger.With().Str("routine", routine.Name()).Logger()
			alerts, err := routine.Scan(ctx, window)
			if err != nil {
				mu.Lock()
				if scan.IsConfigError(err) && configErr == nil {
					configErr = err
				}
				summary.Failed++
				mu.Unlock()
				logger.Error().Err(err).Msg("routine failed")
				return
			}

			delivered := e.dispatch(ctx, logger, alerts)

			mu.Lock()
			summary.Alerts += len(alerts)
			summary.Delivered += delivered
			mu.Unlock()
		}(routine)
	}
	wg.Wait()

	if configErr != nil {
		// Fatal misconfiguration: the window stays unprocessed.
		return summary, configErr
	}

	if err := e.checkpoints.Set(ctx, window.End); err != nil {
		return summary, fmt.Errorf("commit checkpoint %d: %w", window.End, err)
	}

	e.logger.Info().
		Uint64("from", window.Start).
		Uint64("to", window.End).
		Int("alerts", summary.Alerts).
		Int("delivered", summary.Delivered).
		Int("failed_routines", summary.Failed).
		Msg("scan pass complete")
	return summary, nil
}

// dispatch routes alerts in chronological order. One alert's delivery
// failure is independent of the others.
func (e *Engine) dispatch(ctx context.Context, logger zerolog.Logger, alerts []alerting.Alert) int {
	delivered := 0
	for _, alert := range alerts {
		ok := true
		channel := ""
		if e.router != nil {
			if id, err := e.router.ChannelFor(alert.Kind); err == nil {
				channel = id
			}
			if err := e.router.Route(ctx, alert); err != nil {
				ok = false
				logger.Error().Err(err).Str("tx", alert.TxHash.Hex()).Msg("alert delivery failed")
			}
		} else {
			logger.Info().
				Str("kind", string(alert.Kind)).
				Str("tx", alert.TxHash.Hex()).
				Msg("alerting disabled, alert not delivered")
		}
		if ok {
			delivered++
		}

		e.recordAudit(ctx, logger, alert, ok, channel)
	}
	return delivered
}

func (e *Engine) recordAudit(ctx context.Context, logger zerolog.Logger, alert alerting.Alert, delivered bool, channel string) {
	if e.audit == nil {
		return
	}

	amount := decimal.Zero
	if len(alert.Amounts) > 0 {
		amount = alert.Amounts[0].Value
	}

	record := storage.AlertRecord{
		Kind:      string(alert.Kind),
		SubLabel:  alert.SubLabel,
		TxHash:    alert.TxHash.Hex(),
		Block:     int64(alert.Block),
		Amount:    amount,
		Channel:   channel,
		Delivered: delivered,
	}
	if _, err := e.audit.InsertAlert(ctx, record); err != nil {
		logger.Error().Err(err).Str("tx", alert.TxHash.Hex()).Msg("failed to persist alert record")
	}
}

func (e *Engine) buildRoutines(deps runDeps) []Routine {
	weth := common.HexToAddress(e.cfg.Contracts.WETH)

	routines := []Routine{
		newMintRoutine(
			deps,
			e.contracts.YCRV,
			e.cfg.Contracts.YCRV.DeployBlock,
			NewPolicy(true, decimal.NewFromFloat(e.cfg.Watch.MintThreshold), nil),
		),
		newSolverRoutine(
			deps,
			e.cfg.Contracts.Settlement.DeployBlock,
			parseAddresses(e.cfg.Watch.BarnSolver, e.cfg.Watch.ProdSolver),
			common.HexToAddress(e.cfg.Watch.ProdSolver),
			weth,
		),
	}

	if e.cfg.Contracts.VotingEscrow.Address != "" {
		routines = append(routines, newLockRoutine(
			deps,
			e.contracts.VotingEscrow,
			e.cfg.Contracts.VotingEscrow.DeployBlock,
			NewPolicy(true, decimal.Zero, nil),
		))
	}

	if e.cfg.Contracts.Bribe.Address != "" {
		routines = append(routines, newBribeRoutine(
			deps,
			e.cfg.Contracts.Bribe.DeployBlock,
			NewPolicy(true, decimal.NewFromFloat(e.cfg.Watch.BribeThreshold), parseAddresses(e.cfg.Watch.BribeSkipList...)),
		))
	}

	if e.cfg.Contracts.FeeDistributor.Address != "" {
		routines = append(routines, newFeeDistRoutine(
			deps,
			e.cfg.Contracts.FeeDistributor.DeployBlock,
			common.HexToAddress(e.cfg.Contracts.FeeToken),
			NewPolicy(true, decimal.Zero, nil),
		))
	}

	if len(e.cfg.Watch.WatchedAddresses) > 0 {
		routines = append(routines, newFailedTxRoutine(
			deps,
			parseAddresses(e.cfg.Watch.WatchedAddresses...),
			e.cfg.Scanner.MaxFailedTxBlocks,
			weth,
		))
	}

	return routines
}

func contractsFromConfig(cfg config.ContractsConfig) chain.Contracts {
	return chain.Contracts{
		YCRV:           common.HexToAddress(cfg.YCRV.Address),
		Settlement:     common.HexToAddress(cfg.Settlement.Address),
		VotingEscrow:   common.HexToAddress(cfg.VotingEscrow.Address),
		Bribe:          common.HexToAddress(cfg.Bribe.Address),
		FeeDistributor: common.HexToAddress(cfg.FeeDistributor.Address),
	}
}

func parseAddresses(values ...string) []common.Address {
	addrs := make([]common.Address, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		addrs = append(addrs, common.HexToAddress(v))
	}
	return addrs
}
