package ledger

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurahive/paygate/types"
)

const fp = "2b31a81a1d1f1bca7c6396ed30f00a46ca4e5b073fff983e42b348776a5aa651"

func TestPutGet(t *testing.T) {
	l := New(time.Hour)

	_, ok := l.Get(fp)
	assert.False(t, ok)

	l.Put(fp, &types.SettlementRecord{
		Nonce:  "0xf408",
		Status: types.StatusPending,
	})

	rec, ok := l.Get(fp)
	require.True(t, ok)
	assert.Equal(t, fp, rec.Fingerprint)
	assert.Equal(t, types.StatusPending, rec.Status)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.False(t, rec.UpdatedAt.IsZero())
	assert.Equal(t, 1, l.Len())
}

func TestGetReturnsCopy(t *testing.T) {
	l := New(time.Hour)
	l.Put(fp, &types.SettlementRecord{Status: types.StatusPending})

	rec, _ := l.Get(fp)
	rec.Status = types.StatusFailed

	again, _ := l.Get(fp)
	assert.Equal(t, types.StatusPending, again.Status)
}

func TestPutPreservesCreatedAt(t *testing.T) {
	l := New(time.Hour)
	l.Put(fp, &types.SettlementRecord{Status: types.StatusPending})
	first, _ := l.Get(fp)

	time.Sleep(5 * time.Millisecond)
	l.Put(fp, &types.SettlementRecord{Status: types.StatusConfirmed})
	second, _ := l.Get(fp)

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
}

func TestUpdateStatus(t *testing.T) {
	l := New(time.Hour)

	// Missing fingerprint is a no-op.
	l.UpdateStatus(fp, types.StatusConfirmed)
	assert.Equal(t, 0, l.Len())

	l.Put(fp, &types.SettlementRecord{Status: types.StatusPending})
	l.UpdateStatus(fp, types.StatusConfirmed)

	rec, _ := l.Get(fp)
	assert.Equal(t, types.StatusConfirmed, rec.Status)
}

func TestSetTransaction(t *testing.T) {
	l := New(time.Hour)
	l.Put(fp, &types.SettlementRecord{Status: types.StatusConfirmed})
	l.SetTransaction(fp, "0xabc123")

	rec, _ := l.Get(fp)
	assert.Equal(t, "0xabc123", rec.Transaction)
}

func TestEvictExpired(t *testing.T) {
	l := New(time.Nanosecond)
	l.Put("stale-1", &types.SettlementRecord{Status: types.StatusConfirmed})
	l.Put("stale-2", &types.SettlementRecord{Status: types.StatusFailed})

	time.Sleep(2 * time.Millisecond)
	assert.Equal(t, 2, l.EvictExpired())
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, 0, l.EvictExpired())
}

func TestDoSingleFlight(t *testing.T) {
	l := New(time.Hour)

	var calls int32
	var wg sync.WaitGroup
	results := make([]interface{}, 16)

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := l.Do(fp, func() (interface{}, error) {
				atomic.AddInt32(&calls, 1)
				time.Sleep(20 * time.Millisecond)
				return "shared", nil
			})
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, v := range results {
		assert.Equal(t, "shared", v)
	}
}

func TestDoDistinctKeysRunIndependently(t *testing.T) {
	l := New(time.Hour)

	var calls int32
	var wg sync.WaitGroup
	for _, key := range []string{"fp-a", "fp-b", "fp-c"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			_, _ = l.Do(key, func() (interface{}, error) {
				atomic.AddInt32(&calls, 1)
				time.Sleep(10 * time.Millisecond)
				return key, nil
			})
		}(key)
	}
	wg.Wait()

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}
