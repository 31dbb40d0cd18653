package config

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/spf13/viper"

	"github.com/0gfoundation/0g-coupon-ledger/internal/account"
)

const (
	BackendRedis   = "redis"
	BackendLevelDB = "leveldb"
	BackendMemory  = "memory"
)

type Config struct {
	Server  ServerConfig
	Redis   RedisConfig
	Store   StoreConfig
	Ledger  LedgerConfig
	Journal JournalConfig
	Audit   AuditConfig
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
}

type StoreConfig struct {
	Backend   string `mapstructure:"backend"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

type LedgerConfig struct {
	ID             string `mapstructure:"id"`
	Owner          string `mapstructure:"owner"`
	BatchCapacity  int    `mapstructure:"batch_capacity"`
	InitialFunding string `mapstructure:"initial_funding"`
}

type JournalConfig struct {
	MaxLen int `mapstructure:"max_len"`
}

type AuditConfig struct {
	IntervalSec int64 `mapstructure:"interval_sec"`
}

func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("redis.addr", "redis:6379")
	v.SetDefault("store.backend", BackendRedis)
	v.SetDefault("store.path", "./data/ledger")
	v.SetDefault("store.namespace", "couponsd")
	v.SetDefault("ledger.batch_capacity", 5)
	v.SetDefault("ledger.initial_funding", "0")
	v.SetDefault("journal.max_len", 10000)
	v.SetDefault("audit.interval_sec", 60)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	_ = v.ReadInConfig()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit env bindings
	bindings := map[string]string{
		"server.port":            "PORT",
		"redis.addr":             "REDIS_ADDR",
		"redis.password":         "REDIS_PASSWORD",
		"store.backend":          "STORE_BACKEND",
		"store.path":             "STORE_PATH",
		"store.namespace":        "STORE_NAMESPACE",
		"ledger.id":              "LEDGER_ID",
		"ledger.owner":           "LEDGER_OWNER",
		"ledger.batch_capacity":  "BATCH_CAPACITY",
		"ledger.initial_funding": "INITIAL_FUNDING",
		"journal.max_len":        "JOURNAL_MAX_LEN",
		"audit.interval_sec":     "AUDIT_INTERVAL_SEC",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	type req struct {
		val  string
		name string
	}
	for _, r := range []req{
		{c.Ledger.ID, "LEDGER_ID"},
		{c.Ledger.Owner, "LEDGER_OWNER"},
	} {
		if r.val == "" {
			return fmt.Errorf("required config missing: %s", r.name)
		}
	}
	if _, err := c.Ledger.Identity(); err != nil {
		return fmt.Errorf("LEDGER_ID: %w", err)
	}
	if _, err := c.Ledger.OwnerIdentity(); err != nil {
		return fmt.Errorf("LEDGER_OWNER: %w", err)
	}
	if _, err := c.Ledger.Funding(); err != nil {
		return fmt.Errorf("INITIAL_FUNDING: %w", err)
	}
	if c.Ledger.BatchCapacity <= 0 {
		return fmt.Errorf("BATCH_CAPACITY must be positive, got %d", c.Ledger.BatchCapacity)
	}
	if c.Audit.IntervalSec <= 0 {
		return fmt.Errorf("AUDIT_INTERVAL_SEC must be positive, got %d", c.Audit.IntervalSec)
	}
	switch c.Store.Backend {
	case BackendRedis, BackendLevelDB, BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}
	return nil
}

func (l LedgerConfig) Identity() (account.ID, error)      { return account.Parse(l.ID) }
func (l LedgerConfig) OwnerIdentity() (account.ID, error) { return account.Parse(l.Owner) }

// Funding is the amount minted to the ledger account the first time the
// service starts against an empty bank.
func (l LedgerConfig) Funding() (*uint256.Int, error) {
	if l.InitialFunding == "" {
		return new(uint256.Int), nil
	}
	return uint256.FromDecimal(l.InitialFunding)
}
