package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Log           LogConfig           `mapstructure:"log"`
	Risk          RiskConfig          `mapstructure:"risk"`
	FX            FXConfig            `mapstructure:"fx"`
	Providers     ProvidersConfig     `mapstructure:"providers"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	WebhookSink   WebhookSinkConfig   `mapstructure:"webhook_sink"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig configures validation of tokens minted by the external auth
// service. The core never mints tokens itself.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// RiskConfig tunes the three-signal scorer and its hard rules.
type RiskConfig struct {
	SupervisedWeight   float64       `mapstructure:"supervised_weight"`
	UnsupervisedWeight float64       `mapstructure:"unsupervised_weight"`
	RuleWeight         float64       `mapstructure:"rule_weight"`
	Threshold          float64       `mapstructure:"threshold"`
	MaxAmount          float64       `mapstructure:"max_amount"`
	LargeAmount        float64       `mapstructure:"large_amount"`
	VelocityThreshold  int64         `mapstructure:"velocity_threshold"`
	TrainerInterval    time.Duration `mapstructure:"trainer_interval"`
	TrainerWindow      time.Duration `mapstructure:"trainer_window"`
}

// FXConfig tunes quoting.
type FXConfig struct {
	SpreadBps int64         `mapstructure:"spread_bps"`
	QuoteTTL  time.Duration `mapstructure:"quote_ttl"`
}

// ProviderConfig holds credentials for one external rail.
type ProviderConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type ProvidersConfig struct {
	CoolDown    time.Duration  `mapstructure:"cool_down"`
	Flutterwave ProviderConfig `mapstructure:"flutterwave"`
	Paystack    ProviderConfig `mapstructure:"paystack"`
}

// NotificationsConfig points at the external push notification service.
type NotificationsConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// WebhookSinkConfig points at the downstream event consumer. An empty URL
// disables outbound event delivery.
type WebhookSinkConfig struct {
	URL    string `mapstructure:"url"`
	Secret string `mapstructure:"secret"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: QPC_ (QuantumPay Core).
// Nested keys use underscore: QPC_DATABASE_HOST, QPC_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "quantumpay")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "quantumpay-auth")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("risk.supervised_weight", 0.5)
	v.SetDefault("risk.unsupervised_weight", 0.25)
	v.SetDefault("risk.rule_weight", 0.25)
	v.SetDefault("risk.threshold", 0.65)
	v.SetDefault("risk.max_amount", 20000)
	v.SetDefault("risk.large_amount", 1000)
	v.SetDefault("risk.velocity_threshold", 5)
	v.SetDefault("risk.trainer_interval", "1h")
	v.SetDefault("risk.trainer_window", "720h")
	v.SetDefault("fx.spread_bps", 50)
	v.SetDefault("fx.quote_ttl", "2m")
	v.SetDefault("providers.cool_down", "5m")
	v.SetDefault("providers.flutterwave.base_url", "https://api.flutterwave.com/v3")
	v.SetDefault("providers.flutterwave.secret_key", "")
	v.SetDefault("providers.flutterwave.webhook_secret", "")
	v.SetDefault("providers.paystack.base_url", "https://api.paystack.co")
	v.SetDefault("providers.paystack.secret_key", "")
	v.SetDefault("providers.paystack.webhook_secret", "")
	v.SetDefault("notifications.base_url", "")
	v.SetDefault("notifications.api_key", "")
	v.SetDefault("webhook_sink.url", "")
	v.SetDefault("webhook_sink.secret", "")

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: QPC_DATABASE_HOST -> database.host
	v.SetEnvPrefix("QPC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required — env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
