package audit_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronicle/internal/audit"
	"chronicle/internal/audit/store/memory"
)

func logRoutine(t *testing.T, svc *audit.Service, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := svc.Log(context.Background(), audit.Operation{
			TableName: "Projects",
			RecordID:  "p-" + strconv.Itoa(i),
			Action:    audit.ActionCreated,
		}, audit.RequestContext{})
		require.NoError(t, err)
	}
}

func TestBatcher_FlushesOnSizeThreshold(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(t, store, audit.WithConfig(audit.Config{
		BatchSize:     50,
		BatchInterval: time.Hour,
		ChunkSize:     10,
		ChunkPause:    time.Millisecond,
	}))

	logRoutine(t, svc, 60)

	// The 50th enqueue crosses the threshold and flushes without waiting
	// for the interval timer.
	require.Eventually(t, func() bool {
		return len(store.Records()) >= 50
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return len(store.Records())+svc.Pending() == 60
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBatcher_FlushesOnTimer(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(t, store, audit.WithConfig(audit.Config{
		BatchSize:     50,
		BatchInterval: 30 * time.Millisecond,
	}))

	logRoutine(t, svc, 3)
	require.Equal(t, 3, svc.Pending())

	require.Eventually(t, func() bool {
		return len(store.Records()) == 3 && svc.Pending() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBatcher_QuarantinesAfterRetryBudget(t *testing.T) {
	store := memory.NewStore()
	store.SetCreateErr(errors.New("store down"))
	svc := newTestService(t, store, audit.WithConfig(audit.Config{
		BatchSize:     50,
		BatchInterval: 20 * time.Millisecond,
		MaxRetries:    2,
	}))

	logRoutine(t, svc, 1)

	require.Eventually(t, func() bool {
		return len(svc.Quarantined()) == 1
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, svc.Pending())
	assert.Empty(t, store.Records())

	// Operator path: once the store recovers, quarantined entries can be
	// re-admitted and flush normally.
	store.SetCreateErr(nil)
	require.Equal(t, 1, svc.RequeueQuarantined())

	require.Eventually(t, func() bool {
		return len(store.Records()) == 1 && len(svc.Quarantined()) == 0
	}, 3*time.Second, 10*time.Millisecond)
}

// ackThenFailStore persists every record but still reports failure,
// simulating a store whose acknowledgment is lost in transit.
type ackThenFailStore struct {
	mu      sync.Mutex
	records []audit.Record
}

func (s *ackThenFailStore) Create(_ context.Context, rec audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return errors.New("ack lost")
}

func (s *ackThenFailStore) List(context.Context, audit.ListQuery) (audit.ListPage, error) {
	return audit.ListPage{}, nil
}

func (s *ackThenFailStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// A write that persisted but reported failure is retried, so the trail can
// hold duplicates of the same entry ID. Deduplication is the reader's job.
func TestBatcher_ReflushAfterLostAckDuplicates(t *testing.T) {
	store := &ackThenFailStore{}
	svc := newTestService(t, store, audit.WithConfig(audit.Config{
		BatchSize:     50,
		BatchInterval: 20 * time.Millisecond,
		MaxRetries:    2,
	}))

	logRoutine(t, svc, 1)

	require.Eventually(t, func() bool {
		return len(svc.Quarantined()) == 1
	}, 3*time.Second, 10*time.Millisecond)

	assert.Equal(t, 2, store.count(), "each retry cycle persists another copy")
}
