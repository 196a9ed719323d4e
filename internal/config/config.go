package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/liamashdown/tokengate/internal/risk"
	"github.com/liamashdown/tokengate/internal/secrets"
)

// ScamPolicy decides what an anomaly (scam) signal does to an accepted asset.
type ScamPolicy string

const (
	// ScamPolicyAlert records a scam alert and still accepts the asset.
	ScamPolicyAlert ScamPolicy = "alert"
	// ScamPolicyBlock rejects the asset before it is stored.
	ScamPolicyBlock ScamPolicy = "block"
)

// StreamKind selects the realtime ingestion source.
type StreamKind string

const (
	StreamNone       StreamKind = "none"
	StreamPumpPortal StreamKind = "pumpportal"
	StreamEVM        StreamKind = "evm"
)

// Config holds all application configuration
type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseDriver      string // mysql, postgres, sqlite
	DatabaseDSN         string
	DatabaseMaxConns    int
	DatabaseMaxIdleTime time.Duration

	// Cache
	RedisURL string // empty selects the in-process cache
	CacheTTL time.Duration

	// Risk-signal providers
	DexScreenerBaseURL string
	BirdeyeBaseURL     string
	BirdeyeAPIKey      string
	RugCheckBaseURL    string
	VolumeCheckURL     string
	VolumeCheckAPIKey  string
	ProviderTimeout    time.Duration

	// Rate limits (requests per second)
	DexScreenerRPS float64
	BirdeyeRPS     float64
	RugCheckRPS    float64
	VolumeCheckRPS float64

	// Detection thresholds
	MinRiskScore        float64
	MaxConcentration    float64
	TopHolders          int
	FakeVolumeThreshold float64
	FakePriceChangeMax  float64
	FakeMinMakers       int
	PumpThreshold       float64
	ProfitThreshold     float64
	AnomalyWindow       int
	AnomalyMinSamples   int
	AnomalyZThreshold   float64
	AnomalyTurnoverMax  float64
	ScamPolicy          ScamPolicy

	// Trading filters used by the ingestion loop and by API calls without filters
	DefaultFilters    risk.FilterConfig
	FilterPresetsFile string
	FilterPresets     map[string]risk.FilterConfig

	// Trade trigger
	AutoTradeEnabled bool
	TradeAPIURL      string // empty selects dry-run execution
	TradeAPIKey      string
	TradeAmount      float64
	TradeSlippage    float64
	TradePriorityFee float64
	TradePool        string

	// Ingestion
	StreamKind        StreamKind
	StreamURL         string
	StreamWorkers     int
	ReconnectMinDelay time.Duration
	ReconnectMaxDelay time.Duration
	EVMFactoryAddress string
	EVMQuoteTokens    []string

	// HTTP entrypoint
	HTTPPort    int
	OverrideKey string

	// Alerts
	AlertMode          string // comma-separated: log, discord, telegram, smtp
	DiscordWebhookURLs []string
	TelegramBotToken   string
	TelegramChatID     string
	SMTPHost           string
	SMTPPort           int
	SMTPUser           string
	SMTPPassword       string
	SMTPFrom           string
	SMTPTo             []string

	// Scheduler
	ReseedSchedule string
	GaugeSchedule  string
}

// Load reads configuration from environment variables, after loading an
// optional .env file from the working directory.
func Load() (*Config, error) {
	// A missing .env is normal in containers.
	_ = godotenv.Load()

	cfg := &Config{
		Environment:         getEnv("ENVIRONMENT", "production"),
		DatabaseDriver:      getEnv("DATABASE_DRIVER", "mysql"),
		DatabaseDSN:         secrets.Optional("DATABASE_DSN", "tokengate:tokengate@tcp(mysql:3306)/tokengate?parseTime=true"),
		DatabaseMaxConns:    getEnvInt("DATABASE_MAX_CONNS", 25),
		DatabaseMaxIdleTime: time.Duration(getEnvInt("DATABASE_MAX_IDLE_TIME_MINS", 5)) * time.Minute,
		RedisURL:            secrets.Optional("REDIS_URL", ""),
		CacheTTL:            getEnvDuration("CACHE_TTL", time.Hour),
		DexScreenerBaseURL:  getEnv("DEXSCREENER_BASE_URL", "https://api.dexscreener.com"),
		BirdeyeBaseURL:      getEnv("BIRDEYE_BASE_URL", "https://public-api.birdeye.so"),
		BirdeyeAPIKey:       secrets.Optional("BIRDEYE_API_KEY", ""),
		RugCheckBaseURL:     getEnv("RUGCHECK_BASE_URL", "https://api.rugcheck.xyz"),
		VolumeCheckURL:      getEnv("VOLUME_CHECK_URL", ""),
		VolumeCheckAPIKey:   secrets.Optional("VOLUME_CHECK_API_KEY", ""),
		ProviderTimeout:     getEnvDuration("PROVIDER_TIMEOUT", 10*time.Second),
		DexScreenerRPS:      getEnvFloat("DEXSCREENER_RPS", 5.0),
		BirdeyeRPS:          getEnvFloat("BIRDEYE_RPS", 1.0),
		RugCheckRPS:         getEnvFloat("RUGCHECK_RPS", 2.0),
		VolumeCheckRPS:      getEnvFloat("VOLUME_CHECK_RPS", 2.0),
		MinRiskScore:        getEnvFloat("MIN_RISK_SCORE", 50),
		MaxConcentration:    getEnvFloat("MAX_CONCENTRATION", 0.5),
		TopHolders:          getEnvInt("TOP_HOLDERS", 10),
		FakeVolumeThreshold: getEnvFloat("FAKE_VOLUME_THRESHOLD", 100000),
		FakePriceChangeMax:  getEnvFloat("FAKE_PRICE_CHANGE_MAX", 5),
		FakeMinMakers:       getEnvInt("FAKE_MIN_MAKERS", 10),
		PumpThreshold:       getEnvFloat("PUMP_THRESHOLD", 5.0),
		ProfitThreshold:     getEnvFloat("PROFIT_THRESHOLD", 10.0),
		AnomalyWindow:       getEnvInt("ANOMALY_WINDOW", 500),
		AnomalyMinSamples:   getEnvInt("ANOMALY_MIN_SAMPLES", 30),
		AnomalyZThreshold:   getEnvFloat("ANOMALY_Z_THRESHOLD", 3.5),
		AnomalyTurnoverMax:  getEnvFloat("ANOMALY_TURNOVER_MAX", 50),
		ScamPolicy:          ScamPolicy(getEnv("SCAM_POLICY", string(ScamPolicyAlert))),
		DefaultFilters: risk.FilterConfig{
			MinLiquidity:           getEnvFloat("FILTER_MIN_LIQUIDITY", 5000),
			MinTokenAgeHours:       getEnvFloat("FILTER_MIN_TOKEN_AGE_HOURS", 0),
			MinVolume:              getEnvFloat("FILTER_MIN_VOLUME", 1000),
			RequireLockedLiquidity: getEnvBool("FILTER_REQUIRE_LOCKED_LIQUIDITY", false),
		},
		FilterPresetsFile:  getEnv("FILTER_PRESETS_FILE", ""),
		AutoTradeEnabled:   getEnvBool("AUTO_TRADE_ENABLED", true),
		TradeAPIURL:        getEnv("TRADE_API_URL", ""),
		TradeAPIKey:        secrets.Optional("TRADE_API_KEY", ""),
		TradeAmount:        getEnvFloat("TRADE_AMOUNT", 0.05),
		TradeSlippage:      getEnvFloat("TRADE_SLIPPAGE", 0.11),
		TradePriorityFee:   getEnvFloat("TRADE_PRIORITY_FEE", 0.0005),
		TradePool:          getEnv("TRADE_POOL", "pump"),
		StreamKind:         StreamKind(getEnv("STREAM_KIND", string(StreamPumpPortal))),
		StreamURL:          getEnv("STREAM_URL", "wss://pumpportal.fun/api/data"),
		StreamWorkers:      getEnvInt("STREAM_WORKERS", 8),
		ReconnectMinDelay:  getEnvDuration("RECONNECT_MIN_DELAY", time.Second),
		ReconnectMaxDelay:  getEnvDuration("RECONNECT_MAX_DELAY", 30*time.Second),
		EVMFactoryAddress:  getEnv("EVM_FACTORY_ADDRESS", "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"),
		EVMQuoteTokens:     parseCSV(getEnv("EVM_QUOTE_TOKENS", "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")),
		HTTPPort:           getEnvInt("HTTP_PORT", 8080),
		OverrideKey:        secrets.Optional("OVERRIDE_KEY", ""),
		AlertMode:          getEnv("ALERT_MODE", "log"),
		DiscordWebhookURLs: parseCSV(secrets.Optional("DISCORD_WEBHOOK_URLS", "")),
		TelegramBotToken:   secrets.Optional("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:     getEnv("TELEGRAM_CHAT_ID", ""),
		SMTPHost:           getEnv("SMTP_HOST", ""),
		SMTPPort:           getEnvInt("SMTP_PORT", 587),
		SMTPUser:           getEnv("SMTP_USER", ""),
		SMTPPassword:       secrets.Optional("SMTP_PASSWORD", ""),
		SMTPFrom:           getEnv("SMTP_FROM", "tokengate@example.com"),
		SMTPTo:             parseCSV(getEnv("SMTP_TO", "")),
		ReseedSchedule:     getEnv("RESEED_SCHEDULE", "@every 1h"),
		GaugeSchedule:      getEnv("GAUGE_SCHEDULE", "@every 5m"),
	}

	if cfg.FilterPresetsFile != "" {
		presets, err := LoadFilterPresets(cfg.FilterPresetsFile)
		if err != nil {
			return nil, err
		}
		cfg.FilterPresets = presets
		if def, ok := presets["default"]; ok {
			cfg.DefaultFilters = def
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN is required")
	}

	switch c.DatabaseDriver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("invalid DATABASE_DRIVER: %s (must be mysql, postgres, or sqlite)", c.DatabaseDriver)
	}

	switch c.ScamPolicy {
	case ScamPolicyAlert, ScamPolicyBlock:
	default:
		return fmt.Errorf("invalid SCAM_POLICY: %s (must be alert or block)", c.ScamPolicy)
	}

	switch c.StreamKind {
	case StreamNone, StreamPumpPortal, StreamEVM:
	default:
		return fmt.Errorf("invalid STREAM_KIND: %s (must be none, pumpportal, or evm)", c.StreamKind)
	}
	if c.StreamKind != StreamNone && c.StreamURL == "" {
		return fmt.Errorf("STREAM_URL is required when STREAM_KIND is %s", c.StreamKind)
	}

	if c.MaxConcentration <= 0 || c.MaxConcentration > 1 {
		return fmt.Errorf("MAX_CONCENTRATION must be in (0, 1], got %v", c.MaxConcentration)
	}
	if c.TopHolders <= 0 {
		return fmt.Errorf("TOP_HOLDERS must be positive, got %d", c.TopHolders)
	}
	if c.ProfitThreshold < c.PumpThreshold {
		return fmt.Errorf("PROFIT_THRESHOLD (%v) must not be below PUMP_THRESHOLD (%v)", c.ProfitThreshold, c.PumpThreshold)
	}
	if c.StreamWorkers <= 0 {
		return fmt.Errorf("STREAM_WORKERS must be positive, got %d", c.StreamWorkers)
	}
	if c.AutoTradeEnabled && c.TradeAmount <= 0 {
		return fmt.Errorf("TRADE_AMOUNT must be positive when AUTO_TRADE_ENABLED")
	}

	// Validate alert mode (comma-separated list)
	for _, mode := range parseCSV(c.AlertMode) {
		switch mode {
		case "log":
		case "discord":
			if len(c.DiscordWebhookURLs) == 0 {
				return fmt.Errorf("DISCORD_WEBHOOK_URLS is required when discord is in ALERT_MODE")
			}
		case "telegram":
			if c.TelegramBotToken == "" || c.TelegramChatID == "" {
				return fmt.Errorf("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required when telegram is in ALERT_MODE")
			}
		case "smtp":
			if c.SMTPHost == "" || len(c.SMTPTo) == 0 {
				return fmt.Errorf("SMTP_HOST and SMTP_TO are required when smtp is in ALERT_MODE")
			}
		default:
			return fmt.Errorf("invalid ALERT_MODE value: %s (valid values: log, discord, telegram, smtp)", mode)
		}
	}

	return nil
}

// AlertModes returns the configured alert modes, trimmed.
func (c *Config) AlertModes() []string {
	return parseCSV(c.AlertMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func parseCSV(s string) []string {
	var result []string
	for _, item := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
