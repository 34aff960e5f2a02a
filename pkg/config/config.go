package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"FxPipe/pkg/util"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development"`
	Server      ServerConfig     `yaml:"server"`
	Log         LogConfig        `yaml:"log"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Cron        CronConfig       `yaml:"cron"`
	Storage     StorageConfig    `yaml:"storage"`
	Postgres    PostgresConfig   `yaml:"postgres"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Redis       RedisConfig      `yaml:"redis"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	Provider    ProviderConfig   `yaml:"provider"`
	Ingest      IngestConfig     `yaml:"ingest"`
	History     HistoryConfig    `yaml:"history"`
	Gap         GapConfig        `yaml:"gap"`
	Validation  ValidateConfig   `yaml:"validate"`
	Strategy    StrategyConfig   `yaml:"strategy"`
	Notify      NotifyConfig     `yaml:"notify"`
	Scheduler   SchedulerConfig  `yaml:"scheduler"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"120s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"json"`
	Output string `yaml:"output" default:"stdout"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

// CronConfig guards the job trigger surface.
type CronConfig struct {
	Secret           string  `yaml:"secret"`
	TriggerBurst     float64 `yaml:"trigger_burst" default:"3"`
	TriggerPerMinute float64 `yaml:"trigger_per_minute" default:"6"`
}

type StorageConfig struct {
	Backend string `yaml:"backend" default:"postgres"` // postgres | memory
	Bars    string `yaml:"bars" default:"postgres"`    // postgres | clickhouse | memory
}

type PostgresConfig struct {
	URL             string        `yaml:"url"`
	Host            string        `yaml:"host" default:"localhost"`
	Port            int           `yaml:"port" default:"5432"`
	User            string        `yaml:"user" default:"postgres"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database" default:"fxpipe"`
	SSLMode         string        `yaml:"sslmode" default:"disable"`
	MaxOpenConns    int           `yaml:"max_open_conns" default:"10"`
	MaxIdleConns    int           `yaml:"max_idle_conns" default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" default:"5m"`
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"fxpipe"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert" default:"true"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	RequiredAcks int      `yaml:"required_acks" default:"-1"`
	Compression  string   `yaml:"compression" default:"gzip"`
	Topics       struct {
		Intents string `yaml:"intents" default:"fx.trade-intents"`
	} `yaml:"topics"`
	Producer struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"50ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	} `yaml:"producer"`
	Consumer struct {
		Enabled    bool          `yaml:"enabled"`
		GroupID    string        `yaml:"group_id" default:"fxpipe-notify"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
		MinBytes   int           `yaml:"min_bytes" default:"1"`
		MaxBytes   int           `yaml:"max_bytes" default:"1048576"`
	} `yaml:"consumer"`
}

type ProviderConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url" default:"https://api.twelvedata.com"`
	Timeout time.Duration `yaml:"timeout" default:"30s"`
}

type IngestConfig struct {
	OutputSize   int           `yaml:"outputsize" default:"10"`
	RequestDelay time.Duration `yaml:"request_delay" default:"8s"`
}

type HistoryConfig struct {
	RequestDelay time.Duration `yaml:"request_delay" default:"8s"`
	MaxRequests  int           `yaml:"max_requests_per_run" default:"6"`
	OutputSize   int           `yaml:"outputsize" default:"5000"`
	WindowDays   int           `yaml:"window_days" default:"365"`
}

type GapConfig struct {
	RequestDelay time.Duration `yaml:"request_delay" default:"8s"`
	MaxRequests  int           `yaml:"max_requests_per_run" default:"6"`
	OutputSize   int           `yaml:"outputsize" default:"5000"`
	MaxFillBars  int           `yaml:"max_fill_bars_per_run" default:"120"`
}

type ValidateConfig struct {
	Lookback    int           `yaml:"lookback" default:"200"`
	MinInterval time.Duration `yaml:"min_interval"`
}

type StrategyConfig struct {
	Symbols    []string      `yaml:"symbols" default:"[\"EURUSD\",\"GBPUSD\",\"USDJPY\",\"EURJPY\",\"GBPJPY\",\"AUDUSD\"]"`
	AppBaseURL string        `yaml:"app_base_url" default:"https://yourapp.com"`
	FXRateTTL  time.Duration `yaml:"fx_rate_ttl" default:"10m"` // reuse window for a fetched conversion rate
}

type NotifyConfig struct {
	MaxAttempts int `yaml:"max_attempts" default:"5"`
	BatchSize   int `yaml:"batch_size" default:"20"`
	Telegram    struct {
		BaseURL  string `yaml:"base_url" default:"https://api.telegram.org"`
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Email struct {
		BaseURL string `yaml:"base_url" default:"https://api.resend.com"`
		APIKey  string `yaml:"api_key"`
		From    string `yaml:"from"`
		To      string `yaml:"to"`
	} `yaml:"email"`
	Push struct {
		VAPIDPublicKey  string        `yaml:"vapid_public_key"`
		VAPIDPrivateKey string        `yaml:"vapid_private_key"`
		Subject         string        `yaml:"subject"`
		TTL             time.Duration `yaml:"ttl" default:"1h"`
	} `yaml:"push"`
	Timeout time.Duration `yaml:"timeout" default:"15s"`
}

type SchedulerConfig struct {
	Enabled bool              `yaml:"enabled" default:"true"`
	Jobs    map[string]string `yaml:"jobs" default:"{\"ingest-bars\":\"5 * * * *\",\"validate-bars\":\"10 * * * *\",\"generate-signals\":\"15 * * * *\",\"notify\":\"*/2 * * * *\",\"fill-missing-bars\":\"30 */6 * * *\",\"ingest-history\":\"0 3 * * *\"}"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads .env (if present), the YAML file (if present), and then environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := parse(path)
	if err != nil {
		return nil, err
	}

	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Default returns a config populated only from struct defaults.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	return &c
}

func parse(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	envString("TWELVE_DATA_API_KEY", &c.Provider.APIKey)
	envInt("TWELVE_DATA_OUTPUTSIZE", &c.Ingest.OutputSize)

	envMillis("HISTORY_REQUEST_DELAY_MS", &c.History.RequestDelay)
	envInt("HISTORY_MAX_REQUESTS_PER_RUN", &c.History.MaxRequests)
	envInt("HISTORY_OUTPUTSIZE", &c.History.OutputSize)

	envMillis("GAP_REQUEST_DELAY_MS", &c.Gap.RequestDelay)
	envInt("GAP_MAX_REQUESTS_PER_RUN", &c.Gap.MaxRequests)
	envInt("GAP_OUTPUTSIZE", &c.Gap.OutputSize)
	envInt("GAP_MAX_FILL_BARS_PER_RUN", &c.Gap.MaxFillBars)

	envInt("VALIDATE_LOOKBACK", &c.Validation.Lookback)
	if v := os.Getenv("VALIDATE_MIN_INTERVAL_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Validation.MinInterval = time.Duration(n) * time.Second
		}
	}

	envString("CRON_SECRET", &c.Cron.Secret)
	envString("APP_BASE_URL", &c.Strategy.AppBaseURL)

	envString("TELEGRAM_BOT_TOKEN", &c.Notify.Telegram.BotToken)
	envString("TELEGRAM_CHAT_ID", &c.Notify.Telegram.ChatID)
	envString("RESEND_API_KEY", &c.Notify.Email.APIKey)
	envString("RESEND_FROM", &c.Notify.Email.From)
	envString("RESEND_TO", &c.Notify.Email.To)
	envString("VAPID_PUBLIC_KEY", &c.Notify.Push.VAPIDPublicKey)
	envString("VAPID_PRIVATE_KEY", &c.Notify.Push.VAPIDPrivateKey)
	envString("VAPID_SUBJECT", &c.Notify.Push.Subject)

	envString("DATABASE_URL", &c.Postgres.URL)
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitCSV(v)
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Strategy.Symbols = util.SplitCSV(v)
	}
	envString("LOG_LEVEL", &c.Log.Level)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Storage.Backend {
	case "postgres", "memory":
	default:
		return fmt.Errorf("storage.backend must be 'postgres' or 'memory', got '%s'", c.Storage.Backend)
	}
	switch c.Storage.Bars {
	case "postgres", "clickhouse", "memory":
	default:
		return fmt.Errorf("storage.bars must be 'postgres', 'clickhouse' or 'memory', got '%s'", c.Storage.Bars)
	}
	if len(c.Strategy.Symbols) == 0 {
		return fmt.Errorf("strategy.symbols cannot be empty")
	}
	if c.Ingest.OutputSize <= 0 || c.History.OutputSize <= 0 || c.Gap.OutputSize <= 0 {
		return fmt.Errorf("outputsize values must be positive")
	}
	if c.History.MaxRequests < 0 || c.Gap.MaxRequests < 0 || c.Gap.MaxFillBars < 0 {
		return fmt.Errorf("per-run quotas cannot be negative")
	}
	if c.Validation.Lookback <= 0 {
		return fmt.Errorf("validate.lookback must be positive")
	}
	if c.Notify.MaxAttempts <= 0 || c.Notify.BatchSize <= 0 {
		return fmt.Errorf("notify.max_attempts and notify.batch_size must be positive")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		*dst = util.ParseIntDefault(v, *dst)
	}
}

func envMillis(key string, dst *time.Duration) {
	var ms int
	if v := os.Getenv(key); v != "" {
		ms = -1
		envInt(key, &ms)
		if ms >= 0 {
			*dst = time.Duration(ms) * time.Millisecond
		}
	}
}
