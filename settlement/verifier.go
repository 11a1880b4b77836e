// Package settlement confirms payment outcomes against the chain. The
// verifier answers one question: was the authorization for a given
// challenge nonce consumed on-chain? It is idempotent and safe to call
// repeatedly for the same nonce.
package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/aurahive/paygate/logger"
	"github.com/aurahive/paygate/types"
)

// ChainBackend reports whether an authorization nonce has been consumed on
// the asset contract for a given payer.
type ChainBackend interface {
	AuthorizationState(ctx context.Context, asset, payer, nonce string) (bool, error)
	Close()
}

// Verifier polls a ChainBackend with bounded retries and backoff.
type Verifier struct {
	backend   ChainBackend
	timeout   time.Duration
	pollDelay time.Duration
	log       logger.Logger
}

// NewVerifier creates a Verifier. timeout bounds the whole polling cycle;
// pollDelay is the initial delay between polls, doubled per attempt.
func NewVerifier(backend ChainBackend, timeout time.Duration, log logger.Logger) *Verifier {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Verifier{
		backend:   backend,
		timeout:   timeout,
		pollDelay: 500 * time.Millisecond,
		log:       log,
	}
}

// Verify checks settlement state for an authorization. It resolves to:
//
//	confirmed  — the nonce was consumed on-chain
//	not_found  — the nonce never appeared within the timeout (the
//	             orchestrator treats this as failed: fail-closed, a payment
//	             is never assumed on ambiguity)
//
// A backend that cannot be reached at all yields SETTLEMENT_AMBIGUOUS.
func (v *Verifier) Verify(ctx context.Context, auth *types.PaymentAuthorization) (types.SettlementStatus, error) {
	if auth == nil {
		return types.StatusNotFound, &types.Error{Code: types.ErrValidationError, Message: "authorization is nil"}
	}

	verifyCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	asset := auth.Accepted.Asset
	payer := auth.Authorization.From
	nonce := auth.Authorization.Nonce

	delay := v.pollDelay
	var lastErr error
	attempts := 0

	for {
		consumed, err := v.backend.AuthorizationState(verifyCtx, asset, payer, nonce)
		attempts++
		if err == nil {
			if consumed {
				v.log.Info("settlement confirmed", map[string]any{"nonce": nonce, "attempts": attempts})
				return types.StatusConfirmed, nil
			}
			lastErr = nil
		} else {
			lastErr = err
			v.log.Warn("settlement poll failed", map[string]any{"nonce": nonce, "error": err.Error()})
		}

		select {
		case <-verifyCtx.Done():
			if lastErr != nil {
				return types.StatusPending, &types.Error{
					Code:    types.ErrSettlementAmbiguous,
					Message: fmt.Sprintf("settlement state unreachable for nonce %s", nonce),
					Err:     lastErr,
				}
			}
			// Definitive answer from the chain: the nonce never appeared.
			return types.StatusNotFound, nil
		case <-time.After(delay):
		}
		if delay < 8*time.Second {
			delay *= 2
		}
	}
}

// Close releases the backend connection.
func (v *Verifier) Close() {
	if v.backend != nil {
		v.backend.Close()
	}
}
