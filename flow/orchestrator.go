// Package flow drives one logical tool call through the payment-gated
// request state machine: send, detect challenge, authorize, resubmit,
// verify, return.
package flow

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aurahive/paygate/ledger"
	"github.com/aurahive/paygate/logger"
	"github.com/aurahive/paygate/metrics"
	"github.com/aurahive/paygate/types"
	"github.com/aurahive/paygate/utils"
)

// PaymentHeader carries the serialized authorization on resubmission.
const PaymentHeader = "X-PAYMENT"

// SettlementHeader carries the server's settlement echo.
const SettlementHeader = "X-PAYMENT-RESPONSE"

// state enumerates the per-call machine. Transitions only move forward
// except for the single allowed fall-back from resubmitting to
// awaitingChallenge on a rejected proof.
type state int

const (
	stateInitiated state = iota
	stateAwaitingChallenge
	stateAuthorizing
	stateResubmitting
	stateVerifying
	stateSucceeded
	stateFailed
)

func (s state) String() string {
	switch s {
	case stateInitiated:
		return "initiated"
	case stateAwaitingChallenge:
		return "awaiting_challenge"
	case stateAuthorizing:
		return "authorizing"
	case stateResubmitting:
		return "resubmitting"
	case stateVerifying:
		return "verifying"
	case stateSucceeded:
		return "succeeded"
	case stateFailed:
		return "failed"
	}
	return "unknown"
}

// Authorizer signs payment authorizations from challenges.
type Authorizer interface {
	Authorize(challenge *types.PaymentChallenge) (*types.PaymentAuthorization, error)
}

// SettlementVerifier resolves the on-chain state of an authorization.
type SettlementVerifier interface {
	Verify(ctx context.Context, auth *types.PaymentAuthorization) (types.SettlementStatus, error)
}

// Request describes one logical call to a gated resource. Body must be the
// full replayable payload; the orchestrator may send it several times.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Result is the outcome of a completed flow.
type Result struct {
	StatusCode  int
	Header      http.Header
	Body        []byte
	Fingerprint string

	// Paid reports whether a payment was attached to obtain this result.
	Paid bool

	// Settlement is the server's settlement echo, if any.
	Settlement *types.SettleResponse
}

// Orchestrator executes payment-gated requests. Safe for concurrent use;
// calls sharing a fingerprint serialize through the ledger so at most one
// authorization is ever signed while a prior one is unresolved.
type Orchestrator struct {
	client     *http.Client
	authorizer Authorizer
	verifier   SettlementVerifier
	ledger     *ledger.Ledger

	retryCount int
	retryBase  time.Duration

	log     logger.Logger
	metrics metrics.Recorder

	// OnPayment, when set, receives an event for every terminal
	// successful payment. Invoked synchronously; keep it fast.
	OnPayment func(types.PaymentEvent)
}

// Config bundles the orchestrator's collaborators.
type Config struct {
	Client     *http.Client
	Authorizer Authorizer
	Verifier   SettlementVerifier
	Ledger     *ledger.Ledger
	RetryCount int
	RetryBase  time.Duration
	Logger     logger.Logger
	Metrics    metrics.Recorder
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NoopLogger{}
	}
	rec := cfg.Metrics
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	retryBase := cfg.RetryBase
	if retryBase <= 0 {
		retryBase = 100 * time.Millisecond
	}
	return &Orchestrator{
		client:     client,
		authorizer: cfg.Authorizer,
		verifier:   cfg.Verifier,
		ledger:     cfg.Ledger,
		retryCount: cfg.RetryCount,
		retryBase:  retryBase,
		log:        log,
		metrics:    rec,
	}
}

// Execute runs one logical call through the state machine. Concurrent
// executions with an identical fingerprint collapse into a single flight
// and share its result.
func (o *Orchestrator) Execute(ctx context.Context, req *Request) (*Result, error) {
	fp := utils.Fingerprint(req.Method, req.URL, req.Body)

	v, err := o.ledger.Do(fp, func() (interface{}, error) {
		return o.run(ctx, fp, req)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

type httpResult struct {
	status int
	header http.Header
	body   []byte
}

func (o *Orchestrator) run(ctx context.Context, fp string, req *Request) (*Result, error) {
	start := time.Now()
	st := stateInitiated

	var (
		challenge       *types.PaymentChallenge
		auth            *types.PaymentAuthorization
		resp            *httpResult
		freshChallenges int
		verifyResubmits int

		// settled is set once the verifier confirms the current
		// authorization on-chain. From that point no new authorization
		// may be signed for this flight.
		settled bool
	)

	for {
		o.log.Debug("flow transition", map[string]any{"fingerprint": fp, "state": st.String()})

		switch st {
		case stateInitiated:
			if rec, ok := o.ledger.Get(fp); ok && rec.Authorization != nil {
				// A confirmed, unexpired proof skips payment entirely.
				if rec.Status == types.StatusConfirmed && !rec.ProofExpired(time.Now()) {
					auth = rec.Authorization
					o.log.Info("reusing settled authorization", map[string]any{
						"fingerprint": fp, "nonce": rec.Nonce,
					})
					st = stateResubmitting
					continue
				}
				// A pending record means a prior authorization is
				// unresolved. Reconcile it before any new payment
				// activity; signing now could pay twice.
				if rec.Status == types.StatusPending {
					auth = rec.Authorization
					o.log.Info("reconciling unresolved authorization", map[string]any{
						"fingerprint": fp, "nonce": rec.Nonce,
					})
					st = stateVerifying
					continue
				}
			}

			r, err := o.sendWithRetry(ctx, req, nil)
			if err != nil {
				return nil, err
			}
			resp = r
			st = stateAwaitingChallenge

		case stateAwaitingChallenge:
			if resp.status != http.StatusPaymentRequired {
				return o.finish(fp, resp, auth != nil, start), nil
			}

			pr, err := utils.ParsePaymentRequired(resp.body)
			if err != nil {
				// Malformed challenge payload is fatal, never retried.
				return nil, err
			}
			challenge, err = o.selectChallenge(pr)
			if err != nil {
				return nil, err
			}
			st = stateAuthorizing

		case stateAuthorizing:
			signed, err := o.authorizer.Authorize(challenge)
			if err != nil {
				o.ledger.Put(fp, &types.SettlementRecord{
					Nonce:  challenge.Nonce,
					Status: types.StatusFailed,
				})
				o.metrics.IncCounter("authorization_failed", map[string]string{"network": challenge.Network})
				return nil, err
			}
			auth = signed
			o.ledger.Put(fp, &types.SettlementRecord{
				Nonce:         challenge.Nonce,
				Authorization: auth,
				Status:        types.StatusPending,
			})
			o.metrics.IncCounter("authorization_signed", map[string]string{"network": challenge.Network})
			st = stateResubmitting

		case stateResubmitting:
			r, err := o.resubmit(ctx, req, auth)
			if err != nil {
				// An authorization is signed and possibly in flight;
				// never retry blind, reconcile through the verifier.
				o.log.Warn("resubmission failed after signing", map[string]any{
					"fingerprint": fp, "error": err.Error(),
				})
				resp = nil
				st = stateVerifying
				continue
			}
			resp = r

			switch {
			case resp.status == http.StatusPaymentRequired:
				// Once the chain confirmed the authorization, a fresh
				// challenge is the server declining an already-settled
				// proof. Paying again is never an option.
				if settled {
					return nil, &types.Error{
						Code:    types.ErrNetworkError,
						Message: "payment settled but resource response could not be fetched",
					}
				}
				// The server rejected the proof. Accept one fresh
				// challenge; a second rejection is terminal.
				if freshChallenges >= 1 {
					o.ledger.UpdateStatus(fp, types.StatusFailed)
					return nil, &types.Error{
						Code:    types.ErrSettlementFailed,
						Message: "payment proof rejected twice",
					}
				}
				freshChallenges++
				// A confirmed record stays confirmed; it is the audit of
				// a settled payment, not the state of this flight.
				if rec, ok := o.ledger.Get(fp); !ok || rec.Status != types.StatusConfirmed {
					o.ledger.UpdateStatus(fp, types.StatusFailed)
				}
				auth = nil
				st = stateAwaitingChallenge

			case resp.status >= 200 && resp.status < 300:
				o.confirm(fp, resp)
				st = stateSucceeded

			default:
				// Unexpected status with a proof attached; reconcile
				// before deciding what to surface.
				st = stateVerifying
			}

		case stateVerifying:
			status, err := o.verifier.Verify(ctx, auth)
			switch {
			case status == types.StatusConfirmed:
				settled = true
				o.confirm(fp, resp)
				if resp != nil {
					// The resource answered; surface its response.
					return o.finish(fp, resp, true, start), nil
				}
				// Payment landed but the response was lost. Refetch with
				// the same proof; no second authorization is signed.
				if verifyResubmits >= 1 {
					return nil, &types.Error{
						Code:    types.ErrNetworkError,
						Message: "payment settled but resource response could not be fetched",
					}
				}
				verifyResubmits++
				st = stateResubmitting

			case status == types.StatusNotFound:
				// Definitive: the nonce never landed. Fail closed.
				o.ledger.UpdateStatus(fp, types.StatusFailed)
				o.metrics.IncCounter("payment_failed", map[string]string{"network": auth.Accepted.Network})
				return nil, &types.Error{
					Code:    types.ErrSettlementFailed,
					Message: fmt.Sprintf("payment for nonce %s was never settled", auth.Authorization.Nonce),
				}

			default:
				// Unresolved. The record stays pending for later
				// reconciliation; the caller may safely retry.
				if err == nil {
					err = &types.Error{
						Code:    types.ErrSettlementAmbiguous,
						Message: "settlement state unresolved within verification timeout",
					}
				}
				o.metrics.IncCounter("payment_ambiguous", map[string]string{"network": auth.Accepted.Network})
				return nil, err
			}

		case stateSucceeded:
			return o.finish(fp, resp, true, start), nil

		case stateFailed:
			// Unreachable: failures return directly. Kept for the
			// exhaustive switch.
			return nil, &types.Error{Code: types.ErrProtocolViolation, Message: "invalid flow state"}
		}
	}
}

// selectChallenge picks the first challenge this client can pay, in the
// server's preference order. Entries for other schemes or networks are
// skipped; a server may list options this client does not speak.
func (o *Orchestrator) selectChallenge(pr *types.PaymentRequired) (*types.PaymentChallenge, error) {
	var lastErr error
	for i := range pr.Accepts {
		c := &pr.Accepts[i]
		if c.Scheme != string(types.SchemeExact) || !types.Network(c.Network).IsEVM() {
			continue
		}
		if err := c.Validate(); err != nil {
			lastErr = err
			continue
		}
		return c, nil
	}
	if lastErr != nil {
		// The server offered payable options but every one was broken.
		return nil, lastErr
	}
	return nil, &types.Error{
		Code:    types.ErrUnsupportedNetwork,
		Message: "no payable challenge among server's payment options",
	}
}

// confirm marks the ledger record settled and emits the payment event.
func (o *Orchestrator) confirm(fp string, resp *httpResult) {
	o.ledger.UpdateStatus(fp, types.StatusConfirmed)

	var settle *types.SettleResponse
	if resp != nil {
		settle = utils.DecodeSettlementHeader(resp.header.Get(SettlementHeader))
	}
	if settle != nil && settle.Transaction != "" {
		o.ledger.SetTransaction(fp, settle.Transaction)
	}

	rec, _ := o.ledger.Get(fp)
	if rec == nil || rec.Authorization == nil {
		return
	}
	acc := rec.Authorization.Accepted
	o.metrics.IncCounter("payment_confirmed", map[string]string{"network": acc.Network})
	if o.OnPayment != nil {
		event := types.PaymentEvent{
			Fingerprint: fp,
			Resource:    acc.Resource,
			Network:     acc.Network,
			Amount:      acc.Amount,
			Asset:       acc.Asset,
			Recipient:   acc.PayTo,
			Payer:       rec.Authorization.Authorization.From,
			Transaction: rec.Transaction,
			Timestamp:   time.Now(),
		}
		o.OnPayment(event)
	}
}

// finish assembles the caller-facing result and records latency.
func (o *Orchestrator) finish(fp string, resp *httpResult, paid bool, start time.Time) *Result {
	network := ""
	if rec, ok := o.ledger.Get(fp); ok && rec.Authorization != nil {
		network = rec.Authorization.Accepted.Network
	}
	o.metrics.ObserveLatency("flow", time.Since(start), map[string]string{"network": network})

	return &Result{
		StatusCode:  resp.status,
		Header:      resp.header,
		Body:        resp.body,
		Fingerprint: fp,
		Paid:        paid,
		Settlement:  utils.DecodeSettlementHeader(resp.header.Get(SettlementHeader)),
	}
}

// sendWithRetry issues the plain request with bounded exponential backoff.
// Only used before an authorization exists; once one is signed, all retry
// decisions go through the verifier.
func (o *Orchestrator) sendWithRetry(ctx context.Context, req *Request, auth *types.PaymentAuthorization) (*httpResult, error) {
	var lastErr error
	delay := o.retryBase

	for attempt := 0; attempt <= o.retryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, &types.Error{Code: types.ErrNetworkError, Message: "request deadline exceeded", Err: ctx.Err()}
			case <-time.After(delay):
			}
			delay *= 2
		}

		resp, err := o.send(ctx, req, auth)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	return nil, &types.Error{
		Code:    types.ErrNetworkError,
		Message: fmt.Sprintf("request failed after %d attempts", o.retryCount+1),
		Err:     lastErr,
	}
}

// resubmit reissues the original request with the proof attached. No local
// retry: a signed authorization must never race a blind resend.
func (o *Orchestrator) resubmit(ctx context.Context, req *Request, auth *types.PaymentAuthorization) (*httpResult, error) {
	return o.send(ctx, req, auth)
}

func (o *Orchestrator) send(ctx context.Context, req *Request, auth *types.PaymentAuthorization) (*httpResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, err
	}
	for k, vals := range req.Header {
		for _, v := range vals {
			httpReq.Header.Add(k, v)
		}
	}
	if auth != nil {
		encoded, err := utils.EncodeAuthorizationHeader(auth)
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set(PaymentHeader, encoded)
	}

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &httpResult{status: resp.StatusCode, header: resp.Header, body: body}, nil
}
