package utils

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/aurahive/paygate/types"
	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ParsePaymentRequired parses the body of a 402 response. A body that does
// not decode, or decodes to zero accepted challenges, is a protocol
// violation. Individual challenges are not validated here: a server may
// list options this client cannot pay, and the caller selects and
// validates a payable one.
func ParsePaymentRequired(data []byte) (*types.PaymentRequired, error) {
	var pr types.PaymentRequired

	if err := json.Unmarshal(data, &pr); err != nil {
		return nil, &types.Error{
			Code:    types.ErrProtocolViolation,
			Message: fmt.Sprintf("failed to parse payment-required body: %v", err),
		}
	}

	if len(pr.Accepts) == 0 {
		return nil, &types.Error{
			Code:    types.ErrProtocolViolation,
			Message: "payment-required body carries no challenges",
		}
	}

	return &pr, nil
}

// EncodeAuthorizationHeader serializes a payment authorization for the
// X-PAYMENT header as base64-encoded JSON.
func EncodeAuthorizationHeader(auth *types.PaymentAuthorization) (string, error) {
	if auth == nil {
		return "", fmt.Errorf("authorization is nil")
	}
	raw, err := json.Marshal(auth)
	if err != nil {
		return "", fmt.Errorf("failed to marshal authorization: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeAuthorizationHeader decodes an X-PAYMENT header value.
func DecodeAuthorizationHeader(encoded string) (*types.PaymentAuthorization, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}
	var auth types.PaymentAuthorization
	if err := json.Unmarshal(raw, &auth); err != nil {
		return nil, fmt.Errorf("failed to unmarshal authorization: %w", err)
	}
	return &auth, nil
}

// DecodeSettlementHeader decodes an X-PAYMENT-RESPONSE header value.
// Returns nil if the header is empty or malformed; a missing settlement
// echo is not an error.
func DecodeSettlementHeader(encoded string) *types.SettleResponse {
	if encoded == "" {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil
	}
	var settle types.SettleResponse
	if err := json.Unmarshal(raw, &settle); err != nil {
		return nil
	}
	return &settle
}

// ValidateStruct runs validator tags against any struct.
func ValidateStruct(v interface{}) error {
	return validate.Struct(v)
}
