// Package ledger holds the process-wide idempotency state mapping request
// fingerprints to payment outcomes. It is the only mutable shared state in
// the client; all mutation goes through its methods.
package ledger

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/aurahive/paygate/types"
)

// Ledger is an in-memory settlement record store with per-fingerprint
// single-flight. Concurrent calls sharing a fingerprint serialize on first
// authorization: only one caller pays, the rest await and reuse its record.
type Ledger struct {
	mu        sync.RWMutex
	records   map[string]*types.SettlementRecord
	group     singleflight.Group
	retention time.Duration
}

// New creates a Ledger that evicts records older than retention.
func New(retention time.Duration) *Ledger {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &Ledger{
		records:   make(map[string]*types.SettlementRecord),
		retention: retention,
	}
}

// Get returns a copy of the record for a fingerprint, if present.
func (l *Ledger) Get(fingerprint string) (*types.SettlementRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[fingerprint]
	if !ok {
		return nil, false
	}
	cp := *rec
	return &cp, true
}

// Put stores a record keyed by fingerprint, stamping timestamps.
func (l *Ledger) Put(fingerprint string, rec *types.SettlementRecord) {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	rec.Fingerprint = fingerprint
	if rec.CreatedAt.IsZero() {
		if prev, ok := l.records[fingerprint]; ok {
			rec.CreatedAt = prev.CreatedAt
		} else {
			rec.CreatedAt = now
		}
	}
	rec.UpdatedAt = now
	cp := *rec
	l.records[fingerprint] = &cp
}

// UpdateStatus transitions the record's status in place. Updating a missing
// fingerprint is a no-op.
func (l *Ledger) UpdateStatus(fingerprint string, status types.SettlementStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[fingerprint]
	if !ok {
		return
	}
	rec.Status = status
	rec.UpdatedAt = time.Now()
}

// SetTransaction records the settlement transaction hash on the record.
func (l *Ledger) SetTransaction(fingerprint, tx string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[fingerprint]
	if !ok {
		return
	}
	rec.Transaction = tx
	rec.UpdatedAt = time.Now()
}

// Do serializes fn per fingerprint: concurrent callers with the same key
// share the single in-flight execution and its result. This is what
// enforces at-most-one authorization per fingerprint under concurrency.
func (l *Ledger) Do(fingerprint string, fn func() (interface{}, error)) (interface{}, error) {
	v, err, _ := l.group.Do(fingerprint, fn)
	return v, err
}

// EvictExpired drops records older than the retention window and returns
// how many were removed. A dropped record only means a fresh payment cycle
// on next use; duplicate payment stays prevented by challenge nonce
// uniqueness at the protocol layer.
func (l *Ledger) EvictExpired() int {
	cutoff := time.Now().Add(-l.retention)
	l.mu.Lock()
	defer l.mu.Unlock()
	evicted := 0
	for fp, rec := range l.records {
		if rec.UpdatedAt.Before(cutoff) {
			delete(l.records, fp)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of live records.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}
