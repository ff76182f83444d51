package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Log         LogConfig         `mapstructure:"log"`
	Marketplace MarketplaceConfig `mapstructure:"marketplace"`
	Registry    RegistryConfig    `mapstructure:"registry"`
	Events      EventsConfig      `mapstructure:"events"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"` // memory, postgres
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
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// AuthConfig tunes wallet sign-in.
type AuthConfig struct {
	MaxDrift time.Duration `mapstructure:"max_drift"` // accepted login timestamp skew
	NonceTTL time.Duration `mapstructure:"nonce_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error, disabled
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

type MarketplaceConfig struct {
	Address      string `mapstructure:"address"`
	FeeAccount   string `mapstructure:"fee_account"`
	FeePercent   int64  `mapstructure:"fee_percent"`
	ExcessPolicy string `mapstructure:"excess_policy"` // refund, retain
}

// AddressValue returns the custody address. Call after Validate.
func (m MarketplaceConfig) AddressValue() common.Address { return common.HexToAddress(m.Address) }

// FeeAccountValue returns the fee recipient. Call after Validate.
func (m MarketplaceConfig) FeeAccountValue() common.Address { return common.HexToAddress(m.FeeAccount) }

type RegistryConfig struct {
	Address         string `mapstructure:"address"`
	Name            string `mapstructure:"name"`
	Symbol          string `mapstructure:"symbol"`
	MetadataCacheMB int    `mapstructure:"metadata_cache_mb"` // 0 disables the cache
}

// AddressValue returns the registry identity. Call after Validate.
func (r RegistryConfig) AddressValue() common.Address { return common.HexToAddress(r.Address) }

type EventsConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	BatchSize     int           `mapstructure:"batch_size"`
	Stream        string        `mapstructure:"stream"` // redis stream key, empty disables
	StreamMaxLen  int64         `mapstructure:"stream_max_len"`
	WebhookURL    string        `mapstructure:"webhook_url"` // empty disables
	WebhookSecret string        `mapstructure:"webhook_secret"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: MKT_.
// Nested keys use underscore: MKT_DATABASE_HOST, MKT_MARKETPLACE_FEE_PERCENT, etc.
// A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("storage.driver", DriverMemory)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "marketplace")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "nft-marketplace")
	v.SetDefault("auth.max_drift", "5m")
	v.SetDefault("auth.nonce_ttl", "10m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("marketplace.address", "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	v.SetDefault("marketplace.fee_account", "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	v.SetDefault("marketplace.fee_percent", 1)
	v.SetDefault("marketplace.excess_policy", "refund")
	v.SetDefault("registry.address", "0x5FbDB2315678afecb367f032d93F642f64180aa3")
	v.SetDefault("registry.name", "DApp NFT")
	v.SetDefault("registry.symbol", "DAPP")
	v.SetDefault("registry.metadata_cache_mb", 16)
	v.SetDefault("events.poll_interval", "500ms")
	v.SetDefault("events.batch_size", 100)
	v.SetDefault("events.stream", "marketplace:events")
	v.SetDefault("events.stream_max_len", 100000)
	v.SetDefault("events.webhook_url", "")
	v.SetDefault("events.webhook_secret", "")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "nftmarket")

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: MKT_DATABASE_HOST -> database.host
	v.SetEnvPrefix("MKT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
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

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case DriverMemory, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	}
	if c.Marketplace.FeePercent < 0 || c.Marketplace.FeePercent > 100 {
		errs = append(errs, fmt.Errorf("marketplace.fee_percent: %d outside [0, 100]", c.Marketplace.FeePercent))
	}
	switch c.Marketplace.ExcessPolicy {
	case "refund", "retain":
	default:
		errs = append(errs, fmt.Errorf("marketplace.excess_policy: unknown policy %q", c.Marketplace.ExcessPolicy))
	}
	for key, addr := range map[string]string{
		"marketplace.address":     c.Marketplace.Address,
		"marketplace.fee_account": c.Marketplace.FeeAccount,
		"registry.address":        c.Registry.Address,
	} {
		if !common.IsHexAddress(addr) || common.HexToAddress(addr) == (common.Address{}) {
			errs = append(errs, fmt.Errorf("%s: invalid address %q", key, addr))
		}
	}
	if c.Events.WebhookURL != "" && c.Events.WebhookSecret == "" {
		errs = append(errs, errors.New("events.webhook_secret is required with events.webhook_url"))
	}

	return errors.Join(errs...)
}
