// Package notify delivers result reports to a social-signaling sink.
// Delivery is best-effort by contract: the payment core only produces
// events, it never depends on their delivery.
package notify

import "context"

// Sink receives result reports.
type Sink interface {
	Emit(ctx context.Context, content string) error
}

// NoopSink discards every report.
type NoopSink struct{}

// Emit implements Sink.
func (NoopSink) Emit(context.Context, string) error { return nil }
