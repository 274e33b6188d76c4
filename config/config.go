package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// Market identifies the venue a pair trades on.
const (
	MarketForex  = "forex"
	MarketCrypto = "crypto"
)

type Config struct {
	TradingConfig      TradingConfig      `json:"trading"`
	PriceFeedConfig    PriceFeedConfig    `json:"price_feed"`
	SignalConfig       SignalConfig       `json:"signal"`
	NotificationConfig NotificationConfig `json:"notification"`
	ServerConfig       ServerConfig       `json:"server"`
	DatabaseConfig     DatabaseConfig     `json:"database"`
	RedisConfig        RedisConfig        `json:"redis"`
	LoggingConfig      LoggingConfig      `json:"logging"`
}

// Pair is a single instrument the orchestrator analyzes.
type Pair struct {
	Symbol      string   `json:"symbol"`
	Market      string   `json:"market"` // forex or crypto
	Timeframes  []string `json:"timeframes"`
	Enabled     bool     `json:"enabled"`
	RiskPercent float64  `json:"risk_percent"` // % of account balance risked per trade on this pair
	RewardRatio float64  `json:"reward_ratio"` // informational reward:risk ratio
}

type TradingConfig struct {
	Pairs                 []Pair  `json:"pairs"`
	AccountBalance        float64 `json:"account_balance"`
	RiskPerTradePercent   float64 `json:"risk_per_trade_percent"`   // default when a pair has no risk_percent
	DailyLossLimitPercent float64 `json:"daily_loss_limit_percent"` // halt trading for the day past this loss
	MaxConcurrentTrades   int     `json:"max_concurrent_trades"`
	ScheduleIntervalMins  int     `json:"schedule_interval_minutes"` // analysis tick interval
	MonitorIntervalSecs   int     `json:"monitor_interval_seconds"`  // per-position price poll interval
	AnalysisDelaySecs     int     `json:"analysis_delay_seconds"`    // pause between sequential signal requests
	MinConfidence         float64 `json:"min_confidence"`            // signals below this are ignored
}

type PriceFeedConfig struct {
	BaseURL  string `json:"base_url"`
	APIKey   string `json:"api_key"`
	MockMode bool   `json:"mock_mode"` // use simulated prices when the feed is unavailable
}

type SignalConfig struct {
	BaseURL        string `json:"base_url"`
	APIKey         string `json:"api_key"`
	TimeoutSecs    int    `json:"timeout_seconds"`
	RequestsPerSec int    `json:"requests_per_sec"`
	MockMode       bool   `json:"mock_mode"`
}

type NotificationConfig struct {
	Enabled  bool           `json:"enabled"`
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
	Webhook  WebhookConfig  `json:"webhook"`
}

type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

type DiscordConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

type WebhookConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
}

type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	ProductionMode  bool   `json:"production_mode"`
	AllowedOrigins  string `json:"allowed_origins"`
	ShutdownTimeout int    `json:"shutdown_timeout"` // seconds
}

type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type LoggingConfig struct {
	Level   string `json:"level"`   // debug, info, warn, error
	Console bool   `json:"console"` // human-readable console output instead of JSON
}

// Store loads and persists the orchestrator configuration file.
// Save is used by the control surface when config is updated at runtime.
type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	if path == "" {
		path = "config.json"
	}
	return &Store{path: path}
}

// Load reads the config file (if present) and applies environment overrides.
func (s *Store) Load() (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := &Config{}
	data, err := os.ReadFile(s.path)
	if err != nil {
		// A missing file is fine (defaults + env apply); anything else,
		// like a permission error, must fail loudly at startup.
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error reading config file %s: %w", s.path, err)
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file %s: %w", s.path, err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

// Save writes the config back to the file the store was loaded from.
func (s *Store) Save(cfg *Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("error writing config file %s: %w", s.path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.PriceFeedConfig.BaseURL = getEnvOrDefault("PRICE_FEED_BASE_URL", cfg.PriceFeedConfig.BaseURL)
	cfg.PriceFeedConfig.APIKey = getEnvOrDefault("PRICE_FEED_API_KEY", cfg.PriceFeedConfig.APIKey)
	cfg.PriceFeedConfig.MockMode = getEnvOrDefault("PRICE_FEED_MOCK", boolString(cfg.PriceFeedConfig.MockMode)) == "true"

	cfg.SignalConfig.BaseURL = getEnvOrDefault("SIGNAL_BASE_URL", cfg.SignalConfig.BaseURL)
	cfg.SignalConfig.APIKey = getEnvOrDefault("SIGNAL_API_KEY", cfg.SignalConfig.APIKey)
	cfg.SignalConfig.MockMode = getEnvOrDefault("SIGNAL_MOCK", boolString(cfg.SignalConfig.MockMode)) == "true"

	cfg.NotificationConfig.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.NotificationConfig.Telegram.BotToken)
	cfg.NotificationConfig.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.NotificationConfig.Telegram.ChatID)
	cfg.NotificationConfig.Discord.WebhookURL = getEnvOrDefault("DISCORD_WEBHOOK_URL", cfg.NotificationConfig.Discord.WebhookURL)
	cfg.NotificationConfig.Webhook.URL = getEnvOrDefault("NOTIFY_WEBHOOK_URL", cfg.NotificationConfig.Webhook.URL)

	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", cfg.ServerConfig.Host)

	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Database)

	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDR", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
}

func applyDefaults(cfg *Config) {
	if cfg.TradingConfig.ScheduleIntervalMins == 0 {
		cfg.TradingConfig.ScheduleIntervalMins = 15
	}
	if cfg.TradingConfig.MonitorIntervalSecs == 0 {
		cfg.TradingConfig.MonitorIntervalSecs = 60
	}
	if cfg.TradingConfig.AnalysisDelaySecs == 0 {
		cfg.TradingConfig.AnalysisDelaySecs = 2
	}
	if cfg.TradingConfig.MinConfidence == 0 {
		cfg.TradingConfig.MinConfidence = 70
	}
	if cfg.SignalConfig.TimeoutSecs == 0 {
		cfg.SignalConfig.TimeoutSecs = 30
	}
	if cfg.SignalConfig.RequestsPerSec == 0 {
		cfg.SignalConfig.RequestsPerSec = 5
	}
	if cfg.ServerConfig.Port == 0 {
		cfg.ServerConfig.Port = 8088
	}
	if cfg.ServerConfig.Host == "" {
		cfg.ServerConfig.Host = "0.0.0.0"
	}
	if cfg.ServerConfig.ShutdownTimeout == 0 {
		cfg.ServerConfig.ShutdownTimeout = 10
	}
	if cfg.DatabaseConfig.SSLMode == "" {
		cfg.DatabaseConfig.SSLMode = "disable"
	}
	if cfg.RedisConfig.Address == "" {
		cfg.RedisConfig.Address = "localhost:6379"
	}
	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "info"
	}
}

// Validate checks the risk parameters the orchestrator cannot run without.
// A validation failure is fatal at startup.
func (c *Config) Validate() error {
	t := c.TradingConfig
	if t.AccountBalance <= 0 {
		return fmt.Errorf("trading.account_balance must be positive, got %.2f", t.AccountBalance)
	}
	if t.DailyLossLimitPercent <= 0 || t.DailyLossLimitPercent > 100 {
		return fmt.Errorf("trading.daily_loss_limit_percent must be in (0, 100], got %.2f", t.DailyLossLimitPercent)
	}
	if t.MaxConcurrentTrades < 1 {
		return fmt.Errorf("trading.max_concurrent_trades must be at least 1, got %d", t.MaxConcurrentTrades)
	}
	if t.ScheduleIntervalMins < 1 {
		return fmt.Errorf("trading.schedule_interval_minutes must be at least 1, got %d", t.ScheduleIntervalMins)
	}
	for i, p := range t.Pairs {
		if p.Symbol == "" {
			return fmt.Errorf("trading.pairs[%d]: symbol is required", i)
		}
		if p.Market != MarketForex && p.Market != MarketCrypto {
			return fmt.Errorf("trading.pairs[%d] (%s): market must be %q or %q, got %q",
				i, p.Symbol, MarketForex, MarketCrypto, p.Market)
		}
		if p.Enabled && len(p.Timeframes) == 0 {
			return fmt.Errorf("trading.pairs[%d] (%s): enabled pair needs at least one timeframe", i, p.Symbol)
		}
	}
	return nil
}

// Clone returns a deep copy. The pairs and their timeframes get fresh
// backing arrays so decoding or mutating the copy never touches the
// original, which the scheduler reads concurrently.
func (c *Config) Clone() *Config {
	out := *c
	out.TradingConfig.Pairs = make([]Pair, len(c.TradingConfig.Pairs))
	for i, p := range c.TradingConfig.Pairs {
		p.Timeframes = append([]string(nil), p.Timeframes...)
		out.TradingConfig.Pairs[i] = p
	}
	return &out
}

// RiskPercentFor returns the risk percentage to use for a pair, falling back
// to the account-wide default.
func (c *Config) RiskPercentFor(p Pair) float64 {
	if p.RiskPercent > 0 {
		return p.RiskPercent
	}
	return c.TradingConfig.RiskPerTradePercent
}

// ScheduleInterval returns the analysis tick interval as a duration.
func (c *Config) ScheduleInterval() time.Duration {
	return time.Duration(c.TradingConfig.ScheduleIntervalMins) * time.Minute
}

// MonitorInterval returns the per-position price poll interval as a duration.
func (c *Config) MonitorInterval() time.Duration {
	return time.Duration(c.TradingConfig.MonitorIntervalSecs) * time.Second
}

// AnalysisDelay returns the pause between sequential signal requests.
func (c *Config) AnalysisDelay() time.Duration {
	return time.Duration(c.TradingConfig.AnalysisDelaySecs) * time.Second
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
