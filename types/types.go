package types

import (
	"fmt"
	"math/big"
	"regexp"
	"time"
)

// ProtocolVersion is the payment protocol version this client speaks.
const ProtocolVersion = 1

// PaymentScheme represents different payment schemes
type PaymentScheme string

const (
	SchemeExact PaymentScheme = "exact"
)

// PaymentRequired is the body of a 402 response. The server lists every
// challenge it is willing to accept for the gated resource.
type PaymentRequired struct {
	// Version of the payment protocol.
	Version int `json:"x402Version"`

	// Message from the resource server indicating any processing error.
	Error string `json:"error,omitempty"`

	// Accepts is the list of payment challenges the resource server accepts.
	Accepts []PaymentChallenge `json:"accepts"`
}

// PaymentChallenge is a single payable option parsed from a 402 response.
// A challenge is single-use: its nonce identifies exactly one payable
// request instance and may never gate a second authorization.
type PaymentChallenge struct {
	// Scheme of the payment protocol to use (e.g., "exact").
	Scheme string `json:"scheme" validate:"required"`

	// Network of the blockchain to send payment on (e.g., "base-sepolia").
	Network string `json:"network" validate:"required"`

	// Amount required to pay for the resource in atomic units of the asset.
	// Represented as a string because Go does not support uint256.
	Amount string `json:"amount" validate:"required"`

	// Asset is the address of the EIP-3009 compliant ERC20 contract.
	Asset string `json:"asset" validate:"required"`

	// PayTo is the address to which the payment must be sent.
	PayTo string `json:"payTo" validate:"required"`

	// Resource is the URL of the resource the challenge gates.
	Resource string `json:"resource,omitempty"`

	// Nonce is the server-issued 32-byte hex challenge nonce.
	Nonce string `json:"nonce" validate:"required"`

	// Expiry is the unix timestamp after which the challenge is stale.
	Expiry int64 `json:"expiry" validate:"required"`

	// Extra carries scheme-specific data. For "exact" on EVM this holds
	// the EIP-712 domain fields `name` and `version` of the token.
	Extra map[string]string `json:"extra,omitempty"`
}

var (
	nonceRegex   = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
	addressRegex = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
)

// Validate checks the structural invariants of a challenge. Expiry is
// checked separately by the authorizer so a stale challenge surfaces as
// CHALLENGE_EXPIRED rather than a protocol violation.
func (c *PaymentChallenge) Validate() error {
	if c.Scheme != string(SchemeExact) {
		return &Error{Code: ErrProtocolViolation, Message: fmt.Sprintf("unsupported scheme: %q", c.Scheme)}
	}
	if !Network(c.Network).IsEVM() {
		return &Error{Code: ErrUnsupportedNetwork, Message: fmt.Sprintf("unsupported network: %q", c.Network)}
	}
	if _, ok := new(big.Int).SetString(c.Amount, 10); !ok {
		return &Error{Code: ErrProtocolViolation, Message: fmt.Sprintf("invalid amount: %q", c.Amount)}
	}
	if !addressRegex.MatchString(c.Asset) {
		return &Error{Code: ErrProtocolViolation, Message: fmt.Sprintf("invalid asset address: %q", c.Asset)}
	}
	if !addressRegex.MatchString(c.PayTo) {
		return &Error{Code: ErrProtocolViolation, Message: fmt.Sprintf("invalid payTo address: %q", c.PayTo)}
	}
	if !nonceRegex.MatchString(c.Nonce) {
		return &Error{Code: ErrProtocolViolation, Message: fmt.Sprintf("invalid challenge nonce: %q", c.Nonce)}
	}
	if c.Expiry <= 0 {
		return &Error{Code: ErrProtocolViolation, Message: "challenge expiry missing"}
	}
	return nil
}

// Expired reports whether the challenge is past its expiry at the given time.
func (c *PaymentChallenge) Expired(now time.Time) bool {
	return now.Unix() >= c.Expiry
}

// AmountBig returns the challenge amount as a big integer.
func (c *PaymentChallenge) AmountBig() *big.Int {
	v, _ := new(big.Int).SetString(c.Amount, 10)
	return v
}

// EVMAuthorization contains the EIP-3009 transferWithAuthorization
// parameters derived from a challenge.
type EVMAuthorization struct {
	// From is the payer's address.
	From string `json:"from"`

	// To is the recipient's address.
	To string `json:"to"`

	// Value is the payment amount in atomic units.
	Value string `json:"value"`

	// ValidAfter is the unix timestamp after which the authorization is valid.
	ValidAfter string `json:"validAfter"`

	// ValidBefore is the unix timestamp before which the authorization is valid.
	ValidBefore string `json:"validBefore"`

	// Nonce is the 32-byte hex nonce binding this authorization to its challenge.
	Nonce string `json:"nonce"`
}

// PaymentAuthorization is a signed proof of payment tied to one challenge
// nonce. Immutable after signing; never transferable across challenges.
type PaymentAuthorization struct {
	// Version of the payment protocol.
	Version int `json:"x402Version"`

	// Accepted is the challenge this authorization was signed against.
	Accepted PaymentChallenge `json:"accepted"`

	// Authorization holds the EIP-3009 parameters.
	Authorization EVMAuthorization `json:"authorization"`

	// Signature is the hex-encoded 65-byte ECDSA signature.
	Signature string `json:"signature"`
}

// SettleResponse is decoded from the X-PAYMENT-RESPONSE header a resource
// server attaches after settling a payment.
type SettleResponse struct {
	// Success indicates whether the payment was successfully settled.
	Success bool `json:"success"`

	// ErrorReason provides a short error code if the payment failed.
	ErrorReason string `json:"errorReason,omitempty"`

	// Transaction is the blockchain transaction hash.
	Transaction string `json:"transaction,omitempty"`

	// Network is the blockchain network where the payment was settled.
	Network string `json:"network,omitempty"`

	// Payer is the address that made the payment.
	Payer string `json:"payer,omitempty"`
}

// SettlementStatus tracks the on-chain outcome of an authorization.
type SettlementStatus string

const (
	StatusPending   SettlementStatus = "pending"
	StatusConfirmed SettlementStatus = "confirmed"
	StatusFailed    SettlementStatus = "failed"
	StatusExpired   SettlementStatus = "expired"
	StatusNotFound  SettlementStatus = "not_found"
)

// Terminal reports whether the status can no longer change.
func (s SettlementStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed || s == StatusExpired
}

// SettlementRecord tracks a payment outcome per request fingerprint.
// Owned exclusively by the ledger; mutated only through its methods.
type SettlementRecord struct {
	Fingerprint   string                `json:"fingerprint"`
	Nonce         string                `json:"nonce"`
	Authorization *PaymentAuthorization `json:"authorization,omitempty"`
	Status        SettlementStatus      `json:"status"`
	Transaction   string                `json:"transaction,omitempty"`
	CreatedAt     time.Time             `json:"createdAt"`
	UpdatedAt     time.Time             `json:"updatedAt"`
}

// ProofExpired reports whether the record's cached authorization is past
// the expiry of the challenge it was signed against.
func (r *SettlementRecord) ProofExpired(now time.Time) bool {
	if r.Authorization == nil {
		return true
	}
	return r.Authorization.Accepted.Expired(now)
}

// PaymentEvent is produced on terminal success of a payment flow and handed
// to the notification sink. Delivery is fire-and-forget; a lost event never
// affects payment correctness.
type PaymentEvent struct {
	Fingerprint string        `json:"fingerprint"`
	Resource    string        `json:"resource"`
	Network     string        `json:"network"`
	Amount      string        `json:"amount"`
	Asset       string        `json:"asset"`
	Recipient   string        `json:"recipient"`
	Payer       string        `json:"payer,omitempty"`
	Transaction string        `json:"transaction,omitempty"`
	Duration    time.Duration `json:"duration"`
	Timestamp   time.Time     `json:"timestamp"`
}
