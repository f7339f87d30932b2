package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
)

// Config is the full set of settings for a single-instrument trading bot
// instance: one strategy, one risk envelope, one exchange credential set.
type Config struct {
	StrategyConfig StrategyConfig `json:"strategy"`
	RiskConfig     RiskConfig     `json:"risk"`
	BinanceConfig  BinanceConfig  `json:"binance"`
	LoggingConfig  LoggingConfig  `json:"logging"`
	VaultConfig    VaultConfig    `json:"vault"`
	RedisConfig    RedisConfig    `json:"redis"`
	DatabaseConfig DatabaseConfig `json:"database"`
	ServerConfig   ServerConfig   `json:"server"`
}

// StrategyConfig selects and parameterizes the signal engine.
type StrategyConfig struct {
	Engine      string `json:"engine"` // "trend" or "hybrid"
	Symbol      string `json:"symbol"`
	TimeframeMs int64  `json:"timeframe_ms"`
	Mode        string `json:"mode"` // "dry-run" or "live"

	// Trend engine (C5) and V1 half of the hybrid engine (C6).
	EMAFastLen  int     `json:"ema_fast_len"`
	EMAMidLen   int     `json:"ema_mid_len"`
	EMASlowLen  int     `json:"ema_slow_len"`
	RSILength   int     `json:"rsi_length"`
	RSIMinLong  float64 `json:"rsi_min_long"`
	RSIMaxShort float64 `json:"rsi_max_short"`

	V1EMAMicroFastLen int     `json:"v1_ema_micro_fast_len"`
	V1EMAMicroSlowLen int     `json:"v1_ema_micro_slow_len"`
	MinBarsBetween    int     `json:"min_bars_between"`
	MinMovePercent    float64 `json:"min_move_percent"`

	// V2 half of the hybrid engine.
	V2EMAFastLen         int     `json:"v2_ema_fast_len"`
	V2EMAMidLen          int     `json:"v2_ema_mid_len"`
	V2EMASlowLen         int     `json:"v2_ema_slow_len"`
	V2RSILength          int     `json:"v2_rsi_length"`
	RSIMomentumThreshold float64 `json:"rsi_momentum_threshold"`
	VolumeLookback       int     `json:"volume_lookback"`
	VolumeMultiplier     float64 `json:"volume_multiplier"`
	ExitVolumeMultiplier float64 `json:"exit_volume_multiplier"`

	ADXLength             int     `json:"adx_length"`
	ADXThreshold          float64 `json:"adx_threshold"`
	RequireTrendingMarket bool    `json:"require_trending_market"`
}

// RiskConfig is the risk envelope governing position sizing and
// protective exits.
type RiskConfig struct {
	MaxPositionSize    float64 `json:"max_position_size"`
	MaxLeverage        int     `json:"max_leverage"`
	MaxFlipsPerHour    int     `json:"max_flips_per_hour"`
	PositionSizePct    float64 `json:"position_size_pct"`
	UseStopLoss        bool    `json:"use_stop_loss"`
	StopLossPct        float64 `json:"stop_loss_pct"`
	TakeProfitPct      float64 `json:"take_profit_pct"`
	EmergencyStopLoss  float64 `json:"emergency_stop_loss"`
}

// BinanceConfig holds exchange connectivity settings. Credentials are
// opaque to the core and are normally supplied via VaultConfig instead
// of this struct.
type BinanceConfig struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
	BaseURL   string `json:"base_url"`
	TestNet   bool   `json:"testnet"`
	MockMode  bool   `json:"mock_mode"`
}

type LoggingConfig struct {
	Level       string `json:"level"`
	Output      string `json:"output"`
	JSONFormat  bool   `json:"json_format"`
	IncludeFile bool   `json:"include_file"`
}

// VaultConfig holds HashiCorp Vault configuration for credential loading.
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"`
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

// RedisConfig holds Redis configuration for the Redis-backed warm-state
// store variant.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
	KeyPrefix string `json:"key_prefix"`
}

// DatabaseConfig holds PostgreSQL configuration for best-effort trade
// history persistence.
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// ServerConfig holds the read-only status/control HTTP surface settings.
type ServerConfig struct {
	Enabled         bool   `json:"enabled"`
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"`
	ReadTimeout     int    `json:"read_timeout"`
	WriteTimeout    int    `json:"write_timeout"`
	ShutdownTimeout int    `json:"shutdown_timeout"`
}

// Load reads config.json if present, then applies environment overrides
// (which always take precedence). A config.json that exists but cannot
// be read or parsed is an error. The three switches that default to
// true (logging.json_format, server.enabled, risk.use_stop_loss) stay
// true unless the environment sets them otherwise; a false for them in
// config.json is not read.
func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = &Config{}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.StrategyConfig.Engine = getEnvOrDefault("STRATEGY_ENGINE", orDefault(cfg.StrategyConfig.Engine, "trend"))
	cfg.StrategyConfig.Symbol = getEnvOrDefault("STRATEGY_SYMBOL", orDefault(cfg.StrategyConfig.Symbol, "BTCUSDT"))
	cfg.StrategyConfig.TimeframeMs = int64(getEnvIntOrDefault("STRATEGY_TIMEFRAME_MS", int(cfg.StrategyConfig.TimeframeMs)))
	cfg.StrategyConfig.Mode = getEnvOrDefault("STRATEGY_MODE", orDefault(cfg.StrategyConfig.Mode, "dry-run"))

	cfg.BinanceConfig.BaseURL = getEnvOrDefault("BINANCE_BASE_URL", orDefault(cfg.BinanceConfig.BaseURL, "https://fapi.binance.com"))
	cfg.BinanceConfig.TestNet = getEnvOrDefault("BINANCE_TESTNET", strconv.FormatBool(cfg.BinanceConfig.TestNet)) == "true"
	cfg.BinanceConfig.MockMode = getEnvOrDefault("MOCK_MODE", strconv.FormatBool(cfg.BinanceConfig.MockMode)) == "true"

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", orDefault(cfg.LoggingConfig.Level, "INFO"))
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", orDefault(cfg.LoggingConfig.Output, "stdout"))
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"
	cfg.LoggingConfig.IncludeFile = getEnvOrDefault("LOG_INCLUDE_FILE", strconv.FormatBool(cfg.LoggingConfig.IncludeFile)) == "true"

	cfg.VaultConfig.Enabled = getEnvOrDefault("VAULT_ENABLED", strconv.FormatBool(cfg.VaultConfig.Enabled)) == "true"
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", orDefault(cfg.VaultConfig.Address, "http://localhost:8200"))
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", orDefault(cfg.VaultConfig.MountPath, "secret"))
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", orDefault(cfg.VaultConfig.SecretPath, "trading-bot/api-keys"))
	cfg.VaultConfig.TLSEnabled = getEnvOrDefault("VAULT_TLS_ENABLED", strconv.FormatBool(cfg.VaultConfig.TLSEnabled)) == "true"

	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", strconv.FormatBool(cfg.RedisConfig.Enabled)) == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", orDefault(cfg.RedisConfig.Address, "localhost:6379"))
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", orDefaultInt(cfg.RedisConfig.PoolSize, 10))
	cfg.RedisConfig.KeyPrefix = getEnvOrDefault("REDIS_KEY_PREFIX", orDefault(cfg.RedisConfig.KeyPrefix, "tradingbot:warmstate"))

	cfg.DatabaseConfig.Enabled = getEnvOrDefault("DATABASE_ENABLED", strconv.FormatBool(cfg.DatabaseConfig.Enabled)) == "true"
	cfg.DatabaseConfig.Host = getEnvOrDefault("DATABASE_HOST", orDefault(cfg.DatabaseConfig.Host, "localhost"))
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DATABASE_PORT", orDefaultInt(cfg.DatabaseConfig.Port, 5432))
	cfg.DatabaseConfig.User = getEnvOrDefault("DATABASE_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DATABASE_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DATABASE_NAME", orDefault(cfg.DatabaseConfig.Database, "tradingbot"))
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DATABASE_SSLMODE", orDefault(cfg.DatabaseConfig.SSLMode, "disable"))

	cfg.ServerConfig.Enabled = getEnvOrDefault("SERVER_ENABLED", "true") == "true"
	cfg.ServerConfig.Port = getEnvIntOrDefault("SERVER_PORT", orDefaultInt(cfg.ServerConfig.Port, 8080))
	cfg.ServerConfig.Host = getEnvOrDefault("SERVER_HOST", orDefault(cfg.ServerConfig.Host, "0.0.0.0"))
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", orDefault(cfg.ServerConfig.AllowedOrigins, "*"))
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", orDefaultInt(cfg.ServerConfig.ReadTimeout, 30))
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", orDefaultInt(cfg.ServerConfig.WriteTimeout, 30))
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", orDefaultInt(cfg.ServerConfig.ShutdownTimeout, 10))

	cfg.RiskConfig.MaxPositionSize = getEnvFloatOrDefault("RISK_MAX_POSITION_SIZE", orDefaultFloat(cfg.RiskConfig.MaxPositionSize, 100))
	cfg.RiskConfig.MaxLeverage = getEnvIntOrDefault("RISK_MAX_LEVERAGE", orDefaultInt(cfg.RiskConfig.MaxLeverage, 10))
	cfg.RiskConfig.MaxFlipsPerHour = getEnvIntOrDefault("RISK_MAX_FLIPS_PER_HOUR", orDefaultInt(cfg.RiskConfig.MaxFlipsPerHour, 4))
	cfg.RiskConfig.PositionSizePct = getEnvFloatOrDefault("RISK_POSITION_SIZE_PCT", cfg.RiskConfig.PositionSizePct)
	cfg.RiskConfig.UseStopLoss = getEnvOrDefault("RISK_USE_STOP_LOSS", "true") == "true"
	cfg.RiskConfig.StopLossPct = getEnvFloatOrDefault("RISK_STOP_LOSS_PCT", cfg.RiskConfig.StopLossPct)
	cfg.RiskConfig.TakeProfitPct = getEnvFloatOrDefault("RISK_TAKE_PROFIT_PCT", cfg.RiskConfig.TakeProfitPct)
	cfg.RiskConfig.EmergencyStopLoss = getEnvFloatOrDefault("RISK_EMERGENCY_STOP_LOSS", orDefaultFloat(cfg.RiskConfig.EmergencyStopLoss, 3.0))
}

func orDefaultFloat(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
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

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// GenerateSampleConfig writes a sample configuration file with reasonable
// defaults for a BTCUSDT hybrid-engine dry-run instance.
func GenerateSampleConfig(filename string) error {
	config := Config{
		StrategyConfig: StrategyConfig{
			Engine:               "hybrid",
			Symbol:               "BTCUSDT",
			TimeframeMs:          30000,
			Mode:                 "dry-run",
			EMAFastLen:           8,
			EMAMidLen:            21,
			EMASlowLen:           48,
			RSILength:            14,
			RSIMinLong:           42,
			RSIMaxShort:          58,
			V1EMAMicroFastLen:    3,
			V1EMAMicroSlowLen:    6,
			MinBarsBetween:       3,
			MinMovePercent:       0.10,
			V2EMAFastLen:         5,
			V2EMAMidLen:          10,
			V2EMASlowLen:         20,
			V2RSILength:          7,
			RSIMomentumThreshold: 3.0,
			VolumeLookback:       20,
			VolumeMultiplier:     1.5,
			ExitVolumeMultiplier: 1.2,
			ADXLength:            14,
			ADXThreshold:         20,
			RequireTrendingMarket: true,
		},
		RiskConfig: RiskConfig{
			MaxPositionSize:   100,
			MaxLeverage:       10,
			MaxFlipsPerHour:   4,
			PositionSizePct:   0,
			UseStopLoss:       true,
			StopLossPct:       1.5,
			TakeProfitPct:     3.0,
			EmergencyStopLoss: 3.0,
		},
		BinanceConfig: BinanceConfig{
			BaseURL: "https://fapi.binance.com",
			TestNet: true,
		},
		LoggingConfig: LoggingConfig{
			Level:      "INFO",
			Output:     "stdout",
			JSONFormat: true,
		},
		ServerConfig: ServerConfig{
			Enabled: true,
			Port:    8080,
			Host:    "0.0.0.0",
		},
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
