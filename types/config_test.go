package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PrivateKeyHex = testKey
	require.NoError(t, cfg.Validate())

	t.Run("missing credential", func(t *testing.T) {
		c := DefaultConfig()
		err := c.Validate()
		require.Error(t, err)
		assert.Equal(t, ErrConfigError, CodeOf(err))
	})

	t.Run("unsupported network", func(t *testing.T) {
		c := DefaultConfig()
		c.PrivateKeyHex = testKey
		c.Network = "solana"
		assert.Equal(t, ErrConfigError, CodeOf(c.Validate()))
	})

	t.Run("malformed spend guard", func(t *testing.T) {
		c := DefaultConfig()
		c.PrivateKeyHex = testKey
		c.MaxSpend = "1.5"
		assert.Equal(t, ErrConfigError, CodeOf(c.Validate()))
	})

	t.Run("negative retry count", func(t *testing.T) {
		c := DefaultConfig()
		c.PrivateKeyHex = testKey
		c.RetryCount = -1
		assert.Equal(t, ErrConfigError, CodeOf(c.Validate()))
	})
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("WALLET_PRIVATE_KEY", testKey)
	t.Setenv("PAYGATE_NETWORK", "polygon-amoy")
	t.Setenv("PAYGATE_RPC_URL", "https://rpc-amoy.polygon.technology")
	t.Setenv("PAYGATE_MAX_SPEND", "500000")
	t.Setenv("PAYGATE_RETRY_COUNT", "5")
	t.Setenv("PAYGATE_TIMEOUT_SECONDS", "10")

	cfg := FromEnv()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, NetworkPolygonAmoy, cfg.Network)
	assert.Equal(t, "https://rpc-amoy.polygon.technology", cfg.RPCUrl)
	assert.Equal(t, "500000", cfg.MaxSpend)
	assert.Equal(t, 5, cfg.RetryCount)
	assert.Equal(t, 10*time.Second, cfg.DefaultTimeout)
}

func TestConfigMaxSpendBig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Nil(t, cfg.MaxSpendBig())

	cfg.MaxSpend = "1000000"
	require.NotNil(t, cfg.MaxSpendBig())
	assert.Equal(t, "1000000", cfg.MaxSpendBig().String())
}
