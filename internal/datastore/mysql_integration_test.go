//go:build integration

package datastore

import (
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/orchidlab/labpredict/internal/conf"
	"github.com/orchidlab/labpredict/internal/logger"
	"github.com/orchidlab/labpredict/internal/notification"
)

func newMySQLStore(t *testing.T) *DataStore {
	t.Helper()
	ctx := t.Context()

	ctr, err := tcmysql.Run(ctx, "mysql:8.0.36",
		tcmysql.WithDatabase("labpredict"),
		tcmysql.WithUsername("lab"),
		tcmysql.WithPassword("lab"),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "parseTime=true", "loc=UTC")
	require.NoError(t, err)

	ds, err := Open(conf.DatabaseSettings{Type: TypeMySQL, DSN: dsn},
		WithLogger(logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

func TestMySQLConcurrentFlagAndNotification(t *testing.T) {
	ds := newMySQLStore(t)
	ctx := t.Context()

	g := &Germination{Code: "G-MY", BaselineDate: day(2024, 1, 1), CreatedBy: owner("ana")}
	require.NoError(t, ds.CreateGermination(ctx, g))
	subject := notification.Subject{Kind: notification.SubjectGermination, ID: g.ID}

	const writers = 8
	var (
		wg                sync.WaitGroup
		mu                sync.Mutex
		flagWins, inserts int
	)
	for range writers {
		wg.Go(func() {
			changed, err := ds.MarkBaselineSent(ctx, subject)
			assert.NoError(t, err)

			n := notification.NewNotification("ana", subject, notification.KindBaselineElapsed, nil)
			saveErr := ds.Notifications().Save(ctx, n)
			if saveErr != nil {
				assert.ErrorIs(t, saveErr, notification.ErrDuplicate)
			}

			mu.Lock()
			defer mu.Unlock()
			if changed {
				flagWins++
			}
			if saveErr == nil {
				inserts++
			}
		})
	}
	wg.Wait()

	assert.Equal(t, 1, flagWins)
	assert.Equal(t, 1, inserts)

	got, err := ds.BaselineCandidates(ctx, notification.SubjectGermination, day(2024, 2, 1))
	require.NoError(t, err)
	assert.Empty(t, got)
}
