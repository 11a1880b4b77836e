package utils

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAmount(t *testing.T) {
	dec, err := ValidateAmount("10000")
	require.NoError(t, err)
	assert.Equal(t, "10000", dec.String())

	_, err = ValidateAmount("")
	assert.Error(t, err)
	_, err = ValidateAmount("-5")
	assert.Error(t, err)
	_, err = ValidateAmount("ten")
	assert.Error(t, err)
}

func TestValidateBigInt(t *testing.T) {
	v, err := ValidateBigInt("340282366920938463463374607431768211456")
	require.NoError(t, err)
	assert.Equal(t, "340282366920938463463374607431768211456", v.String())

	_, err = ValidateBigInt("")
	assert.Error(t, err)
	_, err = ValidateBigInt("1.5")
	assert.Error(t, err)
}

func TestValidateTransactionHash(t *testing.T) {
	valid := "0xf408d6d1f1d1bca7c6396ed30f00a46ca4e5b073fff983e42b348776a5aa651c"
	assert.NoError(t, ValidateTransactionHash(valid))

	assert.Error(t, ValidateTransactionHash(""))
	assert.Error(t, ValidateTransactionHash("abc"))
	assert.Error(t, ValidateTransactionHash("0x1234"))
	assert.Error(t, ValidateTransactionHash("0xzz08d6d1f1d1bca7c6396ed30f00a46ca4e5b073fff983e42b348776a5aa651c"))
}

func TestValidateNonce(t *testing.T) {
	assert.NoError(t, ValidateNonce("0xf408d6d1f1d1bca7c6396ed30f00a46ca4e5b073fff983e42b348776a5aa651c"))
	assert.Error(t, ValidateNonce("f408d6d1f1d1bca7c6396ed30f00a46ca4e5b073fff983e42b348776a5aa651c"))
	assert.Error(t, ValidateNonce("0xdead"))
}

func TestValidateDeadline(t *testing.T) {
	assert.NoError(t, ValidateDeadline(time.Now().Add(time.Minute)))
	assert.Error(t, ValidateDeadline(time.Now().Add(-time.Minute)))
}

func TestAtomicConversions(t *testing.T) {
	d, err := AtomicToDecimal("10000", 6)
	require.NoError(t, err)
	assert.Equal(t, "0.01", d.String())

	assert.Equal(t, "10000", DecimalToAtomic(decimal.NewFromFloat(0.01), 6))
	assert.Equal(t, "10000", DecimalToAtomic(decimal.RequireFromString("0.0100009"), 6))

	_, err = AtomicToDecimal("nope", 6)
	assert.Error(t, err)
}
