package types

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"
)

// Config contains global configuration for the payment client.
type Config struct {
	// Network is the blockchain network payments are made on.
	Network Network `json:"network"`

	// RPCUrl is the endpoint of the settlement RPC collaborator.
	RPCUrl string `json:"rpcUrl"`

	// PrivateKeyHex is the hex-encoded signing credential. Never logged
	// or persisted by the client.
	PrivateKeyHex string `json:"-"`

	// MaxSpend is the per-call spend guard in atomic units of the asset.
	// A challenge demanding more fails with SPEND_LIMIT_EXCEEDED; it is
	// never silently clamped. Empty means no limit.
	MaxSpend string `json:"maxSpend,omitempty"`

	// DefaultTimeout bounds each network-bound step.
	DefaultTimeout time.Duration `json:"defaultTimeout,omitempty"`

	// RetryCount bounds transient-failure retries before an
	// authorization has been signed.
	RetryCount int `json:"retryCount,omitempty"`

	// RetryBaseDelay is the initial backoff delay; doubled per attempt.
	RetryBaseDelay time.Duration `json:"retryBaseDelay,omitempty"`

	// VerifyTimeout bounds settlement verification polling.
	VerifyTimeout time.Duration `json:"verifyTimeout,omitempty"`

	// Retention is how long settlement records are kept before eviction.
	Retention time.Duration `json:"retention,omitempty"`

	LogLevel      string `json:"logLevel,omitempty"`
	EnableMetrics bool   `json:"enableMetrics,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults on Base Sepolia.
func DefaultConfig() *Config {
	return &Config{
		Network:        NetworkBaseSepolia,
		DefaultTimeout: 30 * time.Second,
		RetryCount:     3,
		RetryBaseDelay: 100 * time.Millisecond,
		VerifyTimeout:  60 * time.Second,
		Retention:      24 * time.Hour,
		LogLevel:       "info",
	}
}

// FromEnv builds a Config from the process environment. The signing
// credential comes from WALLET_PRIVATE_KEY; everything else from
// PAYGATE_* variables with defaults filled in.
func FromEnv() *Config {
	cfg := DefaultConfig()
	cfg.PrivateKeyHex = os.Getenv("WALLET_PRIVATE_KEY")
	if v := os.Getenv("PAYGATE_NETWORK"); v != "" {
		cfg.Network = Network(v)
	}
	if v := os.Getenv("PAYGATE_RPC_URL"); v != "" {
		cfg.RPCUrl = v
	}
	if v := os.Getenv("PAYGATE_MAX_SPEND"); v != "" {
		cfg.MaxSpend = v
	}
	if v := os.Getenv("PAYGATE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PAYGATE_RETRY_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RetryCount = n
		}
	}
	if v := os.Getenv("PAYGATE_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DefaultTimeout = time.Duration(n) * time.Second
		}
	}
	return cfg
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if !c.Network.IsEVM() {
		return &Error{Code: ErrConfigError, Message: fmt.Sprintf("unsupported network: %q", c.Network)}
	}
	if c.PrivateKeyHex == "" {
		return &Error{Code: ErrConfigError, Message: "signing credential missing"}
	}
	if c.MaxSpend != "" {
		if _, ok := new(big.Int).SetString(c.MaxSpend, 10); !ok {
			return &Error{Code: ErrConfigError, Message: fmt.Sprintf("invalid maxSpend: %q", c.MaxSpend)}
		}
	}
	if c.DefaultTimeout <= 0 {
		return &Error{Code: ErrConfigError, Message: "defaultTimeout must be positive"}
	}
	if c.RetryCount < 0 {
		return &Error{Code: ErrConfigError, Message: "retryCount must not be negative"}
	}
	return nil
}

// MaxSpendBig returns the spend guard as a big integer, or nil if unset.
func (c *Config) MaxSpendBig() *big.Int {
	if c.MaxSpend == "" {
		return nil
	}
	v, _ := new(big.Int).SetString(c.MaxSpend, 10)
	return v
}
