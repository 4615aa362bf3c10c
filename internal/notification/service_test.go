package notification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orchidlab/labpredict/internal/errors"
	"github.com/orchidlab/labpredict/internal/observability/metrics"
)

// countingStore wraps InMemoryStore and counts Exists calls that reach it
type countingStore struct {
	*InMemoryStore
	exists int
}

func (s *countingStore) Exists(ctx context.Context, key Key) (bool, error) {
	s.exists++
	return s.InMemoryStore.Exists(ctx, key)
}

type failingStore struct {
	*InMemoryStore
}

func (failingStore) Save(context.Context, *Notification) error {
	return errors.NewStd("disk full")
}

func newTestService(t *testing.T, store Store, cfg *ServiceConfig) (*Service, *metrics.MemoryRecorder) {
	t.Helper()
	rec := metrics.NewMemoryRecorder()
	if cfg == nil {
		cfg = DefaultServiceConfig()
	}
	cfg.Recorder = rec
	return NewService(store, cfg), rec
}

func TestServiceCreate(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	svc, rec := newTestService(t, store, nil)

	id, err := svc.Create(t.Context(), "ana", germination(3), KindBaselineElapsed, map[string]any{
		PayloadTitle:   "Germination G-003 check",
		PayloadMessage: "5 days since sowing",
		"code":         "G-003",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	n, err := svc.Get(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, "ana", n.Recipient)
	assert.Equal(t, germination(3), n.Subject)
	assert.Equal(t, KindBaselineElapsed, n.Kind)
	assert.Equal(t, PriorityMedium, n.Priority)
	assert.Equal(t, StatusUnread, n.Status)
	assert.Equal(t, "Germination G-003 check", n.Title)
	assert.Equal(t, "5 days since sowing", n.Message)
	assert.Equal(t, "G-003", n.Payload["code"])
	assert.False(t, n.CreatedAt.IsZero())

	assert.Equal(t, 1, rec.OperationCount(metrics.OpNotificationCreate, metrics.StatusSuccess))
	assert.Len(t, rec.Durations(metrics.OpNotificationCreate), 1)
}

func TestServiceCreateDuplicate(t *testing.T) {
	t.Parallel()

	svc, rec := newTestService(t, NewInMemoryStore(), nil)

	_, err := svc.Create(t.Context(), "ana", germination(3), KindPredictionProximity, nil)
	require.NoError(t, err)

	id, err := svc.Create(t.Context(), "ana", germination(3), KindPredictionProximity, nil)
	require.ErrorIs(t, err, ErrDuplicate)
	assert.Empty(t, id)
	assert.True(t, errors.IsConflict(err))
	assert.Equal(t, 1, rec.OperationCount(metrics.OpNotificationCreate, metrics.StatusDuplicate))
}

func TestServiceCreateValidation(t *testing.T) {
	t.Parallel()

	svc, rec := newTestService(t, NewInMemoryStore(), nil)

	tests := []struct {
		name      string
		recipient string
		subject   Subject
		kind      Kind
	}{
		{"missing recipient", " ", germination(1), KindBaselineElapsed},
		{"missing subject id", "ana", germination(0), KindBaselineElapsed},
		{"unknown subject kind", "ana", Subject{Kind: "seedling", ID: 1}, KindBaselineElapsed},
		{"unknown kind", "ana", germination(1), Kind("weekly")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(t.Context(), tt.recipient, tt.subject, tt.kind, nil)
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		})
	}
	assert.Equal(t, len(tests), rec.ErrorCount(metrics.OpNotificationCreate, "validation"))
}

func TestServiceCreateStoreFailure(t *testing.T) {
	t.Parallel()

	svc, rec := newTestService(t, failingStore{NewInMemoryStore()}, nil)

	_, err := svc.Create(t.Context(), "ana", germination(1), KindBaselineElapsed, nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicate)
	assert.True(t, errors.IsCategory(err, errors.CategoryNotification))
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, rec.ErrorCount(metrics.OpNotificationCreate, "store"))
}

func TestServiceExistsUsesCache(t *testing.T) {
	t.Parallel()

	store := &countingStore{InMemoryStore: NewInMemoryStore()}
	svc, rec := newTestService(t, store, nil)

	ok, err := svc.Exists(t.Context(), "ana", germination(2), KindBaselineElapsed)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, store.exists)

	// Negative answers are not cached
	ok, err = svc.Exists(t.Context(), "ana", germination(2), KindBaselineElapsed)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, store.exists)

	_, err = svc.Create(t.Context(), "ana", germination(2), KindBaselineElapsed, nil)
	require.NoError(t, err)

	ok, err = svc.Exists(t.Context(), "ana", germination(2), KindBaselineElapsed)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, store.exists, "positive answer should come from the cache")
	assert.Equal(t, 1, rec.OperationCount(metrics.OpNotificationExists, metrics.StatusCacheHit))
	assert.Equal(t, 2, rec.OperationCount(metrics.OpNotificationExists, metrics.StatusCacheMiss))
}

func TestServiceWithStoreSkipsCache(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, NewInMemoryStore(), nil)
	txStore := &countingStore{InMemoryStore: NewInMemoryStore()}
	scoped := svc.WithStore(txStore)

	_, err := scoped.Create(t.Context(), "ana", germination(4), KindBaselineElapsed, nil)
	require.NoError(t, err)

	ok, err := scoped.Exists(t.Context(), "ana", germination(4), KindBaselineElapsed)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, txStore.exists)

	// The parent service neither saw the write nor cached it
	ok, err = svc.Exists(t.Context(), "ana", germination(4), KindBaselineElapsed)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestServiceRateLimit(t *testing.T) {
	t.Parallel()

	svc, rec := newTestService(t, NewInMemoryStore(), &ServiceConfig{
		RateLimit:  1,
		RateWindow: time.Hour,
	})

	_, err := svc.Create(t.Context(), "ana", germination(1), KindBaselineElapsed, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	_, err = svc.Create(ctx, "ana", germination(2), KindBaselineElapsed, nil)
	require.ErrorIs(t, err, ErrRateLimited)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, rec.OperationCount(metrics.OpNotificationCreate, metrics.StatusRateLimited))
	assert.Equal(t, 1, rec.ErrorCount(metrics.OpNotificationCreate, "rate_limit"))
}
