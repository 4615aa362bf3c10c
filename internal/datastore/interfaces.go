// interfaces.go: the DataStore type, opening, migration and transactions
package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/orchidlab/labpredict/internal/conf"
	"github.com/orchidlab/labpredict/internal/errors"
	"github.com/orchidlab/labpredict/internal/logger"
	"github.com/orchidlab/labpredict/internal/observability/metrics"
)

// Database types accepted in settings
const (
	TypeSQLite = "sqlite"
	TypeMySQL  = "mysql"
)

// slowQueryThreshold is when a statement is logged as slow
const slowQueryThreshold = 200 * time.Millisecond

// flagConflictRecorder counts compare-and-set updates that found the flag set
type flagConflictRecorder interface {
	RecordFlagConflict(table, flag string)
}

// DataStore implements the record collaborator and the notification store
// using a GORM database.
type DataStore struct {
	DB *gorm.DB

	recorder  metrics.Recorder
	conflicts flagConflictRecorder
	log       logger.Logger
	now       func() time.Time
}

// Option configures a DataStore
type Option func(*DataStore)

// WithMetrics records operation metrics and flag conflicts
func WithMetrics(m *metrics.DatastoreMetrics) Option {
	return func(ds *DataStore) {
		if m != nil {
			ds.recorder = m
			ds.conflicts = m
		}
	}
}

// WithLogger overrides the package logger
func WithLogger(l logger.Logger) Option {
	return func(ds *DataStore) {
		if l != nil {
			ds.log = l
		}
	}
}

// WithClock overrides the time source used for projection timestamps
func WithClock(now func() time.Time) Option {
	return func(ds *DataStore) {
		if now != nil {
			ds.now = now
		}
	}
}

// Open connects to the configured database and migrates the schema
func Open(settings conf.DatabaseSettings, opts ...Option) (*DataStore, error) {
	ds := &DataStore{
		recorder: metrics.NopRecorder{},
		log:      GetLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(ds)
	}

	var (
		dialector gorm.Dialector
		err       error
	)
	switch settings.Type {
	case TypeSQLite, "":
		dialector, err = sqliteDialector(settings.Path)
	case TypeMySQL:
		dialector, err = mysqlDialector(settings.DSN)
	default:
		err = validationError("unsupported database type", "database.type", settings.Type)
	}
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.NewGormLoggerAdapter(ds.log.Module("gorm"), slowQueryThreshold),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, dbError(err, "open", errors.PriorityCritical, "type", settings.Type)
	}

	if settings.Type != TypeMySQL && settings.Path == MemoryPath {
		// every connection to :memory: is a separate database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, dbError(err, "open", errors.PriorityCritical, "type", settings.Type)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	ds.DB = db
	if err := ds.migrate(); err != nil {
		_ = ds.Close()
		return nil, err
	}

	ds.log.Info("database opened",
		logger.String("type", orDefault(settings.Type, TypeSQLite)),
		logger.String("path", settings.Path))
	return ds, nil
}

// migrate creates or updates the schema
func (ds *DataStore) migrate() error {
	if err := ds.DB.AutoMigrate(Models()...); err != nil {
		return dbError(err, "auto_migrate", errors.PriorityCritical)
	}
	return nil
}

// Close closes the underlying connection pool
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return errors.NewStd("database connection is not initialized")
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "close", "")
	}
	return sqlDB.Close()
}

// Ping checks the database connection
func (ds *DataStore) Ping(ctx context.Context) error {
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "ping", "")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return dbError(err, "ping", "")
	}
	return nil
}

// Transaction runs fn with a DataStore bound to one database transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
func (ds *DataStore) Transaction(ctx context.Context, fn func(tx *DataStore) error) error {
	start := time.Now()
	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ds.withDB(tx))
	})
	ds.recorder.RecordDuration(metrics.OpTransaction, time.Since(start).Seconds())
	if err != nil {
		ds.recorder.RecordOperation(metrics.OpTransaction, metrics.StatusError)
		return err
	}
	ds.recorder.RecordOperation(metrics.OpTransaction, metrics.StatusSuccess)
	return nil
}

// withDB returns a shallow copy using db
func (ds *DataStore) withDB(db *gorm.DB) *DataStore {
	clone := *ds
	clone.DB = db
	return &clone
}

// observe records the outcome and duration of one statement group
func (ds *DataStore) observe(op string, start time.Time, err error) {
	ds.recorder.RecordDuration(op, time.Since(start).Seconds())
	if err != nil {
		ds.recorder.RecordError(op, categorizeError(err))
		return
	}
	ds.recorder.RecordOperation(op, metrics.StatusSuccess)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
