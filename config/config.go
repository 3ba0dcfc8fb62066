package config

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/viper"

	"fusion-swap/pkg/logger"
	"fusion-swap/pkg/types"
)

const (
	DefaultBaseURL        = "https://api.1inch.dev/fusion-plus"
	DefaultAPIVersion     = "v1.0"
	DefaultPollInterval   = 5 * time.Second
	DefaultRequestTimeout = 15 * time.Second
	DefaultDomainName     = "1inch Limit Order Protocol"
	DefaultDomainVersion  = "4"
	DefaultStorePath      = ".fusion-swap-orders.json"
	DefaultEventsExchange = "fusion-swap.events"
)

// Store drivers
const (
	StoreNone  = "none"
	StoreFile  = "file"
	StoreRedis = "redis"
)

// Config holds the application configuration
type Config struct {
	APIKey         string
	BaseURL        string
	APIVersion     string
	PrivateKey     string
	PollInterval   time.Duration
	RequestTimeout time.Duration

	Order  OrderConfig
	Log    logger.Config
	Store  StoreConfig
	Events EventsConfig

	// RPCURLs and LimitOrderContracts are keyed by chain id.
	RPCURLs             map[uint64]string
	LimitOrderContracts map[uint64]string
}

// OrderConfig controls the EIP-712 domain used when signing orders.
type OrderConfig struct {
	DomainName    string
	DomainVersion string
}

// StoreConfig selects the crash-recovery store for order attempts.
type StoreConfig struct {
	Driver        string
	Path          string
	EncryptionKey string
	Redis         RedisConfig
}

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// EventsConfig configures lifecycle event publishing.
type EventsConfig struct {
	AMQPURL  string
	Exchange string
}

// Load reads configuration from environment variables and the optional config file
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".fusion-swap")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME")
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix("FUSION_SWAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, types.ConfigurationError("failed to read config file: %v", err)
		}
	}

	return FromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("api_version", DefaultAPIVersion)
	v.SetDefault("poll_interval", DefaultPollInterval)
	v.SetDefault("request_timeout", DefaultRequestTimeout)
	v.SetDefault("order.domain_name", DefaultDomainName)
	v.SetDefault("order.domain_version", DefaultDomainVersion)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	v.SetDefault("store.driver", StoreNone)
	v.SetDefault("store.redis.prefix", "fusion-swap:orders")
	v.SetDefault("events.exchange", DefaultEventsExchange)
}

// FromViper builds and validates a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	cfg := &Config{
		APIKey:         v.GetString("api_key"),
		BaseURL:        strings.TrimRight(v.GetString("base_url"), "/"),
		APIVersion:     v.GetString("api_version"),
		PrivateKey:     v.GetString("private_key"),
		PollInterval:   v.GetDuration("poll_interval"),
		RequestTimeout: v.GetDuration("request_timeout"),
		Order: OrderConfig{
			DomainName:    v.GetString("order.domain_name"),
			DomainVersion: v.GetString("order.domain_version"),
		},
		Log: logger.Config{
			Level:   v.GetString("log.level"),
			Format:  v.GetString("log.format"),
			Outputs: v.GetStringSlice("log.outputs"),
		},
		Store: StoreConfig{
			Driver:        strings.ToLower(v.GetString("store.driver")),
			Path:          v.GetString("store.path"),
			EncryptionKey: v.GetString("store.encryption_key"),
			Redis: RedisConfig{
				Addr:     v.GetString("store.redis.addr"),
				Password: v.GetString("store.redis.password"),
				DB:       v.GetInt("store.redis.db"),
				Prefix:   v.GetString("store.redis.prefix"),
			},
		},
		Events: EventsConfig{
			AMQPURL:  v.GetString("events.amqp_url"),
			Exchange: v.GetString("events.exchange"),
		},
	}

	var err error
	if cfg.RPCURLs, err = chainMap(v.GetStringMapString("rpc_urls")); err != nil {
		return nil, err
	}
	if cfg.LimitOrderContracts, err = chainMap(v.GetStringMapString("limit_order_contracts")); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that are fatal when missing.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return types.ConfigurationError("API key not found. Please set FUSION_SWAP_API_KEY environment variable or create a .fusion-swap.yaml config file")
	}
	if c.PollInterval <= 0 {
		return types.ConfigurationError("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.RequestTimeout <= 0 {
		return types.ConfigurationError("request_timeout must be positive, got %s", c.RequestTimeout)
	}

	switch c.Store.Driver {
	case "", StoreNone:
	case StoreFile, StoreRedis:
		if _, err := c.SealKey(); err != nil {
			return err
		}
		if c.Store.Driver == StoreRedis && c.Store.Redis.Addr == "" {
			return types.ConfigurationError("store.redis.addr is required for the redis store")
		}
	default:
		return types.ConfigurationError("unknown store driver %q", c.Store.Driver)
	}
	return nil
}

// SealKey decodes the store encryption key.
func (c *Config) SealKey() ([]byte, error) {
	raw := strings.TrimPrefix(c.Store.EncryptionKey, "0x")
	if raw == "" {
		return nil, types.ConfigurationError("store.encryption_key is required when an order store is enabled")
	}
	key, err := hex.DecodeString(raw)
	if err != nil || len(key) != 32 {
		return nil, types.ConfigurationError("store.encryption_key must be 32 hex-encoded bytes")
	}
	return key, nil
}

// SigningKey parses the maker's private key.
func (c *Config) SigningKey() (*ecdsa.PrivateKey, error) {
	if c.PrivateKey == "" {
		return nil, types.ConfigurationError("private key not configured. Please set FUSION_SWAP_PRIVATE_KEY")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(c.PrivateKey, "0x"))
	if err != nil {
		return nil, types.ConfigurationError("invalid private key: %v", err)
	}
	return key, nil
}

// LimitOrderContract returns the spender checked by the allowance preflight.
func (c *Config) LimitOrderContract(chainID uint64) (common.Address, bool) {
	addr, ok := c.LimitOrderContracts[chainID]
	if !ok || !common.IsHexAddress(addr) {
		return common.Address{}, false
	}
	return common.HexToAddress(addr), true
}

func chainMap(raw map[string]string) (map[uint64]string, error) {
	out := make(map[uint64]string, len(raw))
	for k, v := range raw {
		id, err := strconv.ParseUint(k, 10, 64)
		if err != nil {
			return nil, types.ConfigurationError("invalid chain id %q: %v", k, err)
		}
		out[id] = v
	}
	return out, nil
}

// String renders the config without secrets.
func (c *Config) String() string {
	return fmt.Sprintf("base_url=%s api_version=%s store=%s poll_interval=%s request_timeout=%s",
		c.BaseURL, c.APIVersion, c.Store.Driver, c.PollInterval, c.RequestTimeout)
}
