// Package config loads the engine's configuration surface: a YAML
// file on disk, overlaid with TRADER_-prefixed environment variables,
// overlaid with CLI flags. Precedence is flags > env > file > defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the fully resolved, read-only configuration snapshot taken
// at startup. ControlPlane commands mutate engine runtime state, never
// this struct.
type Config struct {
	Logging LoggingConfig
	Server  ServerConfig
	Storage StorageConfig
	Trading TradingConfig
	AutoSelection AutoSelectionConfig
	LLM     LLMConfig
}

// LoggingConfig controls zap construction.
type LoggingConfig struct {
	Level  string // debug|info|warn|error
	Format string // console|json
}

// ServerConfig controls the operator HTTP/WS surface.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	JWTSecret    string
}

// StorageConfig points at the durable SQLite database.
type StorageConfig struct {
	DSN string
}

// TradingWindow is the local-time entry-suppression window.
type TradingWindow struct {
	Start string // "HH:MM"
	End   string // "HH:MM"
}

// TradingRisk is the risk-limit subset of trading.*.
type TradingRisk struct {
	DailyLossLimit    decimal.Decimal
	WeeklyLossLimit   decimal.Decimal
	MaxPosition       decimal.Decimal
	MaxHoldMinutes    int
	PerTradeLossLimit decimal.Decimal
}

// TradingStock is the stock sizing subset of trading.*.
type TradingStock struct {
	InitialShares  int64
	ShareIncrement int64
}

// TradingBridge points at the out-of-process broker/market-data bridge.
type TradingBridge struct {
	URL       string
	TimeoutMs int
}

// TradingConfig groups the trading.* keys.
type TradingConfig struct {
	Mode            string // "stock" | "futures"
	Timezone        string
	Window          TradingWindow
	Risk            TradingRisk
	Stock           TradingStock
	Bridge          TradingBridge
	Capital         decimal.Decimal
	LotSize         int64
	BlackoutFile    string // optional YAML earnings calendar
}

// AutoSelectionConfig groups the auto_selection.* keys.
type AutoSelectionConfig struct {
	MinSharpe    decimal.Decimal
	MinReturn    decimal.Decimal
	MinWinRate   decimal.Decimal
	MaxDrawdown  decimal.Decimal
	ShadowCount  int
	Cron         string
}

// LLMConfig groups the optional llm.* advisor keys.
type LLMConfig struct {
	URL       string
	Model     string
	TimeoutMs int
	Enabled   bool
}

// Load builds a *viper.Viper bound to flags and environment, reads the
// YAML file at path (if non-empty and present), and returns the
// resolved Config. Fails fast if required keys are missing.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Server: ServerConfig{
			Host:         v.GetString("server.host"),
			Port:         v.GetInt("server.port"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
			JWTSecret:    v.GetString("server.jwt_secret"),
		},
		Storage: StorageConfig{
			DSN: v.GetString("storage.dsn"),
		},
		Trading: TradingConfig{
			Mode:     v.GetString("trading.mode"),
			Timezone: v.GetString("trading.timezone"),
			Window: TradingWindow{
				Start: v.GetString("trading.window.start"),
				End:   v.GetString("trading.window.end"),
			},
			Risk: TradingRisk{
				DailyLossLimit:    decimalOr(v, "trading.risk.daily_loss_limit", 4600),
				WeeklyLossLimit:   decimalOr(v, "trading.risk.weekly_loss_limit", 15000),
				MaxPosition:       decimalOr(v, "trading.risk.max_position", 0.25),
				MaxHoldMinutes:    v.GetInt("trading.risk.max_hold_minutes"),
				PerTradeLossLimit: decimalOr(v, "trading.risk.per_trade_loss_limit", 500),
			},
			Stock: TradingStock{
				InitialShares:  v.GetInt64("trading.stock.initial_shares"),
				ShareIncrement: v.GetInt64("trading.stock.share_increment"),
			},
			Bridge: TradingBridge{
				URL:       v.GetString("trading.bridge.url"),
				TimeoutMs: v.GetInt("trading.bridge.timeout_ms"),
			},
			Capital:      decimalOr(v, "trading.capital", 2000000),
			LotSize:      v.GetInt64("trading.lot_size"),
			BlackoutFile: v.GetString("trading.blackout_file"),
		},
		AutoSelection: AutoSelectionConfig{
			MinSharpe:   decimalOr(v, "auto_selection.min_sharpe", 0.5),
			MinReturn:   decimalOr(v, "auto_selection.min_return", 10),
			MinWinRate:  decimalOr(v, "auto_selection.min_win_rate", 50),
			MaxDrawdown: decimalOr(v, "auto_selection.max_drawdown", 20),
			ShadowCount: v.GetInt("auto_selection.shadow_count"),
			Cron:        v.GetString("auto_selection.cron"),
		},
		LLM: LLMConfig{
			URL:       v.GetString("llm.url"),
			Model:     v.GetString("llm.model"),
			TimeoutMs: v.GetInt("llm.timeout_ms"),
			Enabled:   v.GetBool("llm.enabled"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decimalOr(v *viper.Viper, key string, def float64) decimal.Decimal {
	if !v.IsSet(key) {
		return decimal.NewFromFloat(def)
	}
	return decimal.NewFromFloat(v.GetFloat64(key))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("storage.dsn", "trader.db")
	v.SetDefault("trading.mode", "stock")
	v.SetDefault("trading.timezone", "Asia/Taipei")
	v.SetDefault("trading.window.start", "09:00")
	v.SetDefault("trading.window.end", "13:30")
	v.SetDefault("trading.stock.initial_shares", 1000)
	v.SetDefault("trading.stock.share_increment", 1000)
	v.SetDefault("trading.bridge.url", "http://localhost:9100")
	v.SetDefault("trading.bridge.timeout_ms", 3000)
	v.SetDefault("trading.lot_size", 1000)
	v.SetDefault("auto_selection.shadow_count", 5)
	v.SetDefault("auto_selection.cron", "0 18 * * *")
	v.SetDefault("llm.enabled", false)
	v.SetDefault("llm.timeout_ms", 3000)
}

func (c *Config) validate() error {
	if c.Trading.Mode != "stock" && c.Trading.Mode != "futures" {
		return fmt.Errorf("config: trading.mode must be stock or futures, got %q", c.Trading.Mode)
	}
	if _, err := time.LoadLocation(c.Trading.Timezone); err != nil {
		return fmt.Errorf("config: trading.timezone %q: %w", c.Trading.Timezone, err)
	}
	if c.Trading.Bridge.URL == "" {
		return fmt.Errorf("config: trading.bridge.url is required")
	}
	return nil
}
