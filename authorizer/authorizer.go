// Package authorizer constructs and signs payment authorizations from
// challenges. It holds the signing credential and has no network side
// effects; submitting the proof is the orchestrator's job.
package authorizer

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/aurahive/paygate/types"
	"github.com/aurahive/paygate/utils"
)

// Authorizer signs EIP-3009 transferWithAuthorization typed data with a
// held secp256k1 credential. Signing is deterministic: the challenge nonce
// is used verbatim as the EIP-3009 nonce and validAfter is pinned to zero,
// so re-signing the same challenge yields a byte-identical authorization.
type Authorizer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	maxSpend   *big.Int
}

// New creates an Authorizer from a hex-encoded private key. maxSpend is the
// per-call spend guard in atomic units; nil disables the guard.
func New(privateKeyHex string, maxSpend *big.Int) (*Authorizer, error) {
	key, err := utils.PrivateKeyFromHex(privateKeyHex)
	if err != nil {
		return nil, &types.Error{Code: types.ErrConfigError, Message: "invalid signing credential", Err: err}
	}
	return &Authorizer{
		privateKey: key,
		address:    utils.AddressFromPrivateKey(key),
		maxSpend:   maxSpend,
	}, nil
}

// Address returns the payer address derived from the credential.
func (a *Authorizer) Address() common.Address {
	return a.address
}

// Authorize validates the challenge and returns a signed payment
// authorization bound to its nonce.
//
// A challenge past its expiry is rejected before signing. A challenge
// demanding more than the spend guard fails with SPEND_LIMIT_EXCEEDED and
// is never clamped.
func (a *Authorizer) Authorize(challenge *types.PaymentChallenge) (*types.PaymentAuthorization, error) {
	if err := challenge.Validate(); err != nil {
		return nil, err
	}
	if challenge.Expired(timeNow()) {
		return nil, &types.Error{
			Code:    types.ErrChallengeExpired,
			Message: fmt.Sprintf("challenge nonce %s expired at %d", challenge.Nonce, challenge.Expiry),
		}
	}

	amount := challenge.AmountBig()
	if a.maxSpend != nil && amount.Cmp(a.maxSpend) > 0 {
		return nil, &types.Error{
			Code:    types.ErrSpendLimitExceeded,
			Message: fmt.Sprintf("challenge demands %s atomic units, spend guard is %s", amount, a.maxSpend),
		}
	}

	auth := types.EVMAuthorization{
		From:        a.address.Hex(),
		To:          common.HexToAddress(challenge.PayTo).Hex(),
		Value:       amount.String(),
		ValidAfter:  "0",
		ValidBefore: big.NewInt(challenge.Expiry).String(),
		Nonce:       common.HexToHash(challenge.Nonce).Hex(),
	}

	signature, err := a.sign(challenge, &auth)
	if err != nil {
		return nil, &types.Error{Code: types.ErrSigningFailed, Message: "failed to sign authorization", Err: err}
	}

	return &types.PaymentAuthorization{
		Version:       types.ProtocolVersion,
		Accepted:      *challenge,
		Authorization: auth,
		Signature:     signature,
	}, nil
}

func (a *Authorizer) sign(challenge *types.PaymentChallenge, auth *types.EVMAuthorization) (string, error) {
	// EIP-712 domain fields default to the USDC domain when the challenge
	// does not carry them. An empty name would be dropped from the domain
	// map and fail the typed-data hash.
	name := challenge.Extra["name"]
	if name == "" {
		name = "USD Coin"
	}
	version := challenge.Extra["version"]
	if version == "" {
		version = "2"
	}

	chainID := big.NewInt(types.Network(challenge.Network).ChainID())
	value, _ := new(big.Int).SetString(auth.Value, 10)
	validBefore := big.NewInt(challenge.Expiry)

	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"TransferWithAuthorization": []apitypes.Type{
				{Name: "from", Type: "address"},
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "validAfter", Type: "uint256"},
				{Name: "validBefore", Type: "uint256"},
				{Name: "nonce", Type: "bytes32"},
			},
		},
		PrimaryType: "TransferWithAuthorization",
		Domain: apitypes.TypedDataDomain{
			Name:              name,
			Version:           version,
			ChainId:           (*math.HexOrDecimal256)(chainID),
			VerifyingContract: common.HexToAddress(challenge.Asset).Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"from":        auth.From,
			"to":          auth.To,
			"value":       (*math.HexOrDecimal256)(value),
			"validAfter":  (*math.HexOrDecimal256)(big.NewInt(0)),
			"validBefore": (*math.HexOrDecimal256)(validBefore),
			"nonce":       auth.Nonce,
		},
	}

	digest, err := utils.TypedDataDigest(typedData)
	if err != nil {
		return "", err
	}

	signature, err := crypto.Sign(digest, a.privateKey)
	if err != nil {
		return "", err
	}
	// Legacy v offset expected by EIP-3009 verifiers.
	signature[64] += 27

	return hexutil.Encode(signature), nil
}
