package paygate

import (
	"net/http"

	"github.com/aurahive/paygate/logger"
	"github.com/aurahive/paygate/metrics"
	"github.com/aurahive/paygate/notify"
	"github.com/aurahive/paygate/settlement"
	"github.com/aurahive/paygate/tools"
)

// Option configures a Paygate instance.
type Option func(*Paygate)

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(p *Paygate) {
		p.log = log
	}
}

// WithMetrics sets a custom metrics recorder.
func WithMetrics(rec metrics.Recorder) Option {
	return func(p *Paygate) {
		p.metrics = rec
	}
}

// WithSink sets the notification sink that receives payment signals
// and tool reports.
func WithSink(sink notify.Sink) Option {
	return func(p *Paygate) {
		p.sink = sink
	}
}

// WithHTTPClient sets the HTTP client used for gated requests.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Paygate) {
		p.httpClient = client
	}
}

// WithBackend sets the chain backend used for settlement verification,
// replacing the default RPC-dialled one.
func WithBackend(backend settlement.ChainBackend) Option {
	return func(p *Paygate) {
		p.backend = backend
	}
}

// WithTool registers an oracle tool at construction time.
func WithTool(t tools.Tool) Option {
	return func(p *Paygate) {
		p.extraTools = append(p.extraTools, t)
	}
}
