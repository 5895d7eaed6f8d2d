package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"chain-alerts/internal/logging"
)

// Config materialises application configuration. It is passed explicitly
// into construction; there are no process-wide mutable singletons.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	Scanner   ScannerConfig   `mapstructure:"scanner"`
	Contracts ContractsConfig `mapstructure:"contracts"`
	Watch     WatchConfig     `mapstructure:"watch"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity. Optional: without
// a DSN the checkpoint lives in the JSON state file and no audit trail
// is written.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs scan cadence in watch mode.
type SchedulerConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	AlignToStart bool          `mapstructure:"align_to_start"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
}

// EthereumConfig covers on-chain data access.
type EthereumConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ScannerConfig governs window resolution and checkpointing.
type ScannerConfig struct {
	DefaultStartBlock uint64 `mapstructure:"default_start_block"`
	CheckpointPath    string `mapstructure:"checkpoint_path"`
	MaxFailedTxBlocks uint64 `mapstructure:"max_failed_tx_blocks"`
}

// ContractConfig binds one watched contract to its deployment height.
type ContractConfig struct {
	Address     string `mapstructure:"address"`
	DeployBlock uint64 `mapstructure:"deploy_block"`
}

// ContractsConfig is the watched contract table.
type ContractsConfig struct {
	YCRV           ContractConfig `mapstructure:"ycrv"`
	Settlement     ContractConfig `mapstructure:"settlement"`
	VotingEscrow   ContractConfig `mapstructure:"voting_escrow"`
	Bribe          ContractConfig `mapstructure:"bribe"`
	FeeDistributor ContractConfig `mapstructure:"fee_distributor"`
	Oracle         string         `mapstructure:"oracle"`
	WETH           string         `mapstructure:"weth"`
	FeeToken       string         `mapstructure:"fee_token"`
}

// WatchConfig holds per-routine thresholds and address sets.
type WatchConfig struct {
	MintThreshold    float64  `mapstructure:"mint_threshold"`
	BribeThreshold   float64  `mapstructure:"bribe_threshold"`
	BribeSkipList    []string `mapstructure:"bribe_skip_list"`
	BarnSolver       string   `mapstructure:"barn_solver"`
	ProdSolver       string   `mapstructure:"prod_solver"`
	WatchedAddresses []string `mapstructure:"watched_addresses"`
}

// RouteConfig names the quiet and live channels of one alert kind.
type RouteConfig struct {
	Default string `mapstructure:"default"`
	Live    string `mapstructure:"live"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	BotToken string        `mapstructure:"bot_token"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// AlertingConfig defines delivery channels and routing.
type AlertingConfig struct {
	Enabled  bool                   `mapstructure:"enabled"`
	Live     bool                   `mapstructure:"live"`
	Telegram TelegramConfig         `mapstructure:"telegram"`
	Channels map[string]string      `mapstructure:"channels"`
	Routes   map[string]RouteConfig `mapstructure:"routes"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CHAINALERTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "chainalerts")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "5m")
	v.SetDefault("scheduler.align_to_start", true)
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("ethereum.request_timeout", "10s")

	v.SetDefault("scanner.default_start_block", uint64(15_000_000))
	v.SetDefault("scanner.checkpoint_path", "local_data.json")
	v.SetDefault("scanner.max_failed_tx_blocks", uint64(1_000))

	v.SetDefault("contracts.ycrv.address", "0xFCc5c47bE19d06BF83eB04298b026F81069ff65b")
	v.SetDefault("contracts.ycrv.deploy_block", uint64(15_624_808))
	v.SetDefault("contracts.settlement.address", "0x9008D19f58AAbD9eD0D60971565AA8510560ab41")
	v.SetDefault("contracts.settlement.deploy_block", uint64(15_624_808))
	v.SetDefault("contracts.voting_escrow.address", "0x90c1f9220d90d3966FbeE24045EDd73E1d588aD5")
	v.SetDefault("contracts.voting_escrow.deploy_block", uint64(15_974_608))
	v.SetDefault("contracts.weth", "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")

	v.SetDefault("watch.mint_threshold", 150_000.0)
	v.SetDefault("watch.barn_solver", "0x8a4e90e9AFC809a69D2a3BDBE5fff17A12979609")
	v.SetDefault("watch.prod_solver", "0x398890BE7c4FAC5d766E1AEFFde44B2EE99F38EF")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.live", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.timeout", "10s")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Scanner.DefaultStartBlock == 0 {
		return fmt.Errorf("scanner.default_start_block must be greater than zero")
	}
	if c.Scanner.CheckpointPath == "" && c.Database.DSN == "" {
		return fmt.Errorf("scanner.checkpoint_path 或 database.dsn 必须配置其一")
	}
	if c.Watch.MintThreshold < 0 {
		return fmt.Errorf("watch.mint_threshold cannot be negative")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	for name, addr := range map[string]string{
		"contracts.ycrv.address":       c.Contracts.YCRV.Address,
		"contracts.settlement.address": c.Contracts.Settlement.Address,
	} {
		if addr != "" && !common.IsHexAddress(addr) {
			return fmt.Errorf("%s is not a valid address", name)
		}
	}
	if c.Alerting.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if len(c.Alerting.Channels) == 0 {
			return fmt.Errorf("alerting.channels 必须配置")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
