package atm

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is a configuration for the cash machine application
type Config struct {
	HTTPAddr    string `yaml:"http_addr"`
	ISO8583Addr string `yaml:"iso8583_addr"`
	// MaxWithdrawal caps a single withdrawal in currency units.
	MaxWithdrawal int64 `yaml:"max_withdrawal"`

	// BankURL points at a remote bank API. When empty the ledger runs in process.
	BankURL string `yaml:"bank_url"`
	// RepoBackend selects the in-process ledger storage: mem or pg.
	RepoBackend string `yaml:"repo_backend"`
	DBDSN       string `yaml:"db_dsn"`
	// StaleTransactionAge is how old an unfinished ledger transaction gets
	// before the sweeper aborts it.
	StaleTransactionAge time.Duration `yaml:"stale_transaction_age"`

	// RedisAddr enables the shared redis depot. When empty stock is kept in memory.
	RedisAddr string       `yaml:"redis_addr"`
	RedisKey  string       `yaml:"redis_key"`
	Stock     []StockEntry `yaml:"stock"`

	PANHashKey     string         `yaml:"pan_hash_key"`
	PVVKey         string         `yaml:"pvv_key"`
	BINPrefix      string         `yaml:"bin_prefix"`
	CardProduct    string         `yaml:"card_product"`
	MaxPINAttempts int            `yaml:"max_pin_attempts"`
	ExpiryTZ       string         `yaml:"expiry_tz"`
	ProductYears   map[string]int `yaml:"product_years"`
}

// StockEntry is loaded into the depot at start. Count -1 means unbounded.
type StockEntry struct {
	Currency string `yaml:"currency"`
	Value    int64  `yaml:"value"`
	Count    int64  `yaml:"count"`
}

func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:            "localhost:8080",
		ISO8583Addr:         "localhost:8583",
		MaxWithdrawal:       DefaultMaxAmount,
		RepoBackend:         "mem",
		StaleTransactionAge: 5 * time.Minute,
		RedisKey:            "atm:depot",
		PANHashKey:          "dev-secret-pepper",
		PVVKey:              "dev-pvv-key",
		BINPrefix:           "421234",
		CardProduct:         "debit",
		MaxPINAttempts:      3,
		Stock: []StockEntry{
			{Currency: "PL", Value: 10, Count: 100},
			{Currency: "PL", Value: 20, Count: 100},
			{Currency: "PL", Value: 50, Count: 100},
			{Currency: "PL", Value: 100, Count: 100},
			{Currency: "PL", Value: 200, Count: 100},
		},
	}
}

// LoadConfig reads a YAML file over the defaults and then applies environment
// overrides. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	config.RepoBackend = getenv("REPO_BACKEND", config.RepoBackend)
	config.DBDSN = getenv("DB_DSN", config.DBDSN)
	config.PANHashKey = getenv("PAN_HASH_KEY", config.PANHashKey)
	config.PVVKey = getenv("PVV_KEY", config.PVVKey)
	config.RedisAddr = getenv("REDIS_ADDR", config.RedisAddr)
	config.BankURL = getenv("BANK_URL", config.BankURL)

	return config, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
