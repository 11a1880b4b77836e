package utils

import (
	"encoding/json"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ValidateJSON validates that a string is valid JSON
func ValidateJSON(data string) error {
	var js json.RawMessage
	return json.Unmarshal([]byte(data), &js)
}

// ValidateAmount checks if an amount string is a valid non-negative decimal
func ValidateAmount(amount string) (*decimal.Decimal, error) {
	if amount == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}

	if dec.IsNegative() {
		return nil, fmt.Errorf("amount cannot be negative")
	}

	return &dec, nil
}

// ValidateBigInt checks if a string is a valid big integer
func ValidateBigInt(value string) (*big.Int, error) {
	if value == "" {
		return nil, fmt.Errorf("value cannot be empty")
	}

	bigInt := new(big.Int)
	_, success := bigInt.SetString(value, 10)
	if !success {
		return nil, fmt.Errorf("invalid big integer format")
	}

	return bigInt, nil
}

// ValidateTransactionHash validates an EVM transaction hash
func ValidateTransactionHash(hash string) error {
	if hash == "" {
		return fmt.Errorf("transaction hash cannot be empty")
	}
	if !strings.HasPrefix(hash, "0x") {
		return fmt.Errorf("transaction hash must start with 0x")
	}
	if len(hash) != 66 {
		return fmt.Errorf("transaction hash must be 66 characters long")
	}
	if !isHexString(hash[2:]) {
		return fmt.Errorf("transaction hash must be valid hex")
	}
	return nil
}

// ValidateAddressForNetwork validates an EVM address
func ValidateAddressForNetwork(address string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}
	if !strings.HasPrefix(address, "0x") {
		return fmt.Errorf("address must start with 0x")
	}
	if len(address) != 42 {
		return fmt.Errorf("address must be 42 characters long")
	}
	if !isHexString(address[2:]) {
		return fmt.Errorf("address must be valid hex")
	}
	return nil
}

// ValidateNonce validates a 32-byte hex challenge nonce
func ValidateNonce(nonce string) error {
	if !strings.HasPrefix(nonce, "0x") || len(nonce) != 66 || !isHexString(nonce[2:]) {
		return fmt.Errorf("nonce must be a 0x-prefixed 32-byte hex string")
	}
	return nil
}

// ValidateDeadline ensures a deadline is in the future
func ValidateDeadline(deadline time.Time) error {
	if deadline.Before(time.Now()) {
		return fmt.Errorf("deadline must be in the future")
	}

	return nil
}

// AtomicToDecimal converts an atomic-unit amount to a human-readable
// decimal given the asset's decimals (e.g. 10000 with 6 decimals -> 0.01).
func AtomicToDecimal(atomic string, decimals int32) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(atomic)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid atomic amount: %w", err)
	}
	return d.Shift(-decimals), nil
}

// DecimalToAtomic converts a human-readable amount to atomic units.
func DecimalToAtomic(amount decimal.Decimal, decimals int32) string {
	return amount.Shift(decimals).Truncate(0).String()
}

// Helper function to check if a string is valid hexadecimal
func isHexString(s string) bool {
	match, _ := regexp.MatchString("^[0-9a-fA-F]+$", s)
	return match
}
