package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"chain-alerts/internal/alerting"
	"chain-alerts/internal/chain"
	"chain-alerts/internal/config"
	"chain-alerts/internal/scan"
	"chain-alerts/internal/scheduler"
	"chain-alerts/internal/storage"
	"chain-alerts/internal/watch"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newReader() *chain.Client {
	return chain.NewClient(chain.ClientOptions{
		RPCURL:  a.Config.Ethereum.RPCURL,
		Timeout: a.Config.Ethereum.RequestTimeout,
		Contracts: chain.Contracts{
			YCRV:           addr(a.Config.Contracts.YCRV.Address),
			Settlement:     addr(a.Config.Contracts.Settlement.Address),
			VotingEscrow:   addr(a.Config.Contracts.VotingEscrow.Address),
			Bribe:          addr(a.Config.Contracts.Bribe.Address),
			FeeDistributor: addr(a.Config.Contracts.FeeDistributor.Address),
		},
	}, a.Logger)
}

func (a *App) newRouter() *alerting.Router {
	if !a.Config.Alerting.Enabled {
		return nil
	}

	notifier := alerting.NewTelegramNotifier(
		a.Config.Alerting.Telegram.BotToken,
		a.Config.Alerting.Telegram.APIBase,
		a.Config.Alerting.Telegram.Timeout,
		a.Logger,
	)

	routes := make(map[alerting.Kind]alerting.Route, len(a.Config.Alerting.Routes))
	for kind, route := range a.Config.Alerting.Routes {
		routes[alerting.Kind(kind)] = alerting.Route{Default: route.Default, Live: route.Live}
	}

	return alerting.NewRouter(notifier, a.Config.Alerting.Channels, routes, a.Config.Alerting.Live, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// newEngine wires the scan engine plus the resources it borrows. The
// returned closer is nil when no database is configured.
func (a *App) newEngine(ctx context.Context) (*watch.Engine, func(), error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	var checkpoints scan.CheckpointStore
	var audit storage.AlertAuditStore
	if store != nil {
		checkpoints = store
		audit = store
	} else {
		checkpoints = scan.NewFileCheckpoint(a.Config.Scanner.CheckpointPath)
		a.Logger.Warn().Msg("database.dsn not configured; using file checkpoint, audit trail disabled")
	}

	engine := watch.NewEngine(a.Config, a.newReader(), checkpoints, a.newRouter(), audit, a.Logger)
	return engine, closeStore, nil
}

// Scan executes a single scan pass and exits.
func (a *App) Scan(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	engine, closeStore, err := a.newEngine(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	_, err = engine.RunOnce(ctx)
	return err
}

// Watch runs scan passes on the configured cadence until interrupted.
func (a *App) Watch(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	engine, closeStore, err := a.newEngine(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToStart,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	a.Logger.Info().Msg("starting watch loop")
	err = sched.Run(ctx, func(ctx context.Context) error {
		_, runErr := engine.RunOnce(ctx)
		return runErr
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watch loop terminated with error")
		return err
	}

	a.Logger.Info().Msg("watch loop stopped")
	return nil
}

// ExportOptions hold parameters for exporting the alert history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

func addr(v string) common.Address {
	return common.HexToAddress(v)
}
