// Package metrics counts payment-flow events and observes operation
// latencies. Label cardinality is bounded to event type and network.
package metrics

import "time"

// Recorder receives counters and latency observations from the payment flow.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
