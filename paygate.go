// Package paygate implements an HTTP-native payment-gated client for
// metered oracle resources. It recognizes payment-required responses,
// signs payment authorizations against a held credential, resubmits the
// original request with proof of payment attached and reconciles
// settlement outcomes, guaranteeing a caller is never charged twice for
// one logical request.
package paygate

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aurahive/paygate/authorizer"
	"github.com/aurahive/paygate/flow"
	"github.com/aurahive/paygate/ledger"
	"github.com/aurahive/paygate/logger"
	"github.com/aurahive/paygate/metrics"
	"github.com/aurahive/paygate/notify"
	"github.com/aurahive/paygate/settlement"
	"github.com/aurahive/paygate/tools"
	"github.com/aurahive/paygate/types"
)

// evictInterval is how often the ledger sweeps expired records.
const evictInterval = 10 * time.Minute

// Paygate is the top-level client wiring the payment flow together.
type Paygate struct {
	config       *types.Config
	ledger       *ledger.Ledger
	authorizer   *authorizer.Authorizer
	verifier     *settlement.Verifier
	orchestrator *flow.Orchestrator
	adapter      *tools.Adapter
	sink         notify.Sink

	log     logger.Logger
	metrics metrics.Recorder

	httpClient *http.Client
	backend    settlement.ChainBackend
	extraTools []tools.Tool

	stopEvict chan struct{}
}

// New creates a Paygate instance from the given configuration.
func New(config *types.Config, opts ...Option) (*Paygate, error) {
	if config == nil {
		config = types.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Paygate{
		config: config,
		sink:   notify.NoopSink{},
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.log == nil {
		p.log = logger.NewZapLogger(config.LogLevel)
	}
	if p.metrics == nil {
		if config.EnableMetrics {
			p.metrics = metrics.NewPrometheusRecorder()
		} else {
			p.metrics = metrics.NoopRecorder{}
		}
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{Timeout: config.DefaultTimeout}
	}

	auth, err := authorizer.New(config.PrivateKeyHex, config.MaxSpendBig())
	if err != nil {
		return nil, err
	}
	p.authorizer = auth

	if p.backend == nil {
		if config.RPCUrl == "" {
			return nil, &types.Error{Code: types.ErrConfigError, Message: "settlement RPC endpoint not configured"}
		}
		backend, err := settlement.NewEVMBackend(config.Network, config.RPCUrl)
		if err != nil {
			return nil, err
		}
		p.backend = backend
	}
	p.verifier = settlement.NewVerifier(p.backend, config.VerifyTimeout, p.log)

	p.ledger = ledger.New(config.Retention)

	p.orchestrator = flow.New(flow.Config{
		Client:     p.httpClient,
		Authorizer: p.authorizer,
		Verifier:   p.verifier,
		Ledger:     p.ledger,
		RetryCount: config.RetryCount,
		RetryBase:  config.RetryBaseDelay,
		Logger:     p.log,
		Metrics:    p.metrics,
	})
	p.orchestrator.OnPayment = p.signalPayment

	p.adapter = tools.NewAdapter(p.orchestrator, p.sink, p.log)
	for _, t := range p.extraTools {
		p.adapter.Register(t)
	}

	p.stopEvict = make(chan struct{})
	go p.evictLoop()

	return p, nil
}

// NewFromEnv creates a Paygate instance configured from the environment.
func NewFromEnv(opts ...Option) (*Paygate, error) {
	return New(types.FromEnv(), opts...)
}

// Execute runs one payment-gated request through the flow state machine.
func (p *Paygate) Execute(ctx context.Context, req *flow.Request) (*flow.Result, error) {
	return p.orchestrator.Execute(ctx, req)
}

// Call runs a registered oracle tool by name.
func (p *Paygate) Call(ctx context.Context, tool string, params map[string]any) (map[string]any, error) {
	return p.adapter.Call(ctx, tool, params)
}

// RegisterTool adds an oracle tool to the adapter.
func (p *Paygate) RegisterTool(t tools.Tool) {
	p.adapter.Register(t)
}

// PayerAddress returns the payer address derived from the credential.
func (p *Paygate) PayerAddress() string {
	return p.authorizer.Address().Hex()
}

// signalPayment forwards a settled-payment event to the notification sink.
// Delivery runs detached; a lost signal never affects payment correctness.
func (p *Paygate) signalPayment(event types.PaymentEvent) {
	p.log.Info("payment settled", map[string]any{
		"fingerprint": event.Fingerprint,
		"network":     event.Network,
		"amount":      event.Amount,
		"recipient":   event.Recipient,
	})
	content := fmt.Sprintf(
		"[Payment Settled]\nResource: %s\nAmount: %s (asset %s) on %s\nPayer: %s",
		event.Resource, event.Amount, event.Asset, event.Network, event.Payer,
	)
	go func() {
		if err := p.sink.Emit(context.Background(), content); err != nil {
			p.log.Warn("payment signal delivery failed", map[string]any{"error": err.Error()})
		}
	}()
}

func (p *Paygate) evictLoop() {
	ticker := time.NewTicker(evictInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopEvict:
			return
		case <-ticker.C:
			if n := p.ledger.EvictExpired(); n > 0 {
				p.log.Debug("ledger eviction", map[string]any{"evicted": n})
			}
		}
	}
}

// Close stops background work and releases connections.
func (p *Paygate) Close() {
	close(p.stopEvict)
	p.verifier.Close()
}
