package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/orchidlab/labpredict/internal/datastore"
)

// Tables in export order. Notifications reference records by subject, so
// records go first.
const (
	tableGerminations  = "germinations"
	tablePollinations  = "pollinations"
	tableNotifications = "notifications"
)

// Migrator copies rows from a source database into a target database.
type Migrator struct {
	cfg      Config
	out      io.Writer
	sourceDB *gorm.DB
	targetDB *gorm.DB
}

// MigrationStats tracks export statistics.
type MigrationStats struct {
	StartTime time.Time
	EndTime   time.Time
	Tables    []TableStats
}

// TableStats tracks per-table export statistics.
type TableStats struct {
	Name      string
	Migrated  int64
	Skipped   int64
	Errors    int64
	Duration  time.Duration
	BatchSize int
}

// Totals sums the per-table counters.
func (s *MigrationStats) Totals() (migrated, skipped, errs int64) {
	for _, t := range s.Tables {
		migrated += t.Migrated
		skipped += t.Skipped
		errs += t.Errors
	}
	return migrated, skipped, errs
}

// Print writes the export summary table.
func (s *MigrationStats) Print(w io.Writer) {
	rule := strings.Repeat("-", 70)

	fmt.Fprintln(w, "\n=== Export Summary ===")
	fmt.Fprintf(w, "Duration: %s\n\n", s.EndTime.Sub(s.StartTime).Round(time.Millisecond))

	fmt.Fprintf(w, "%-25s %10s %10s %10s %12s\n", "Table", "Migrated", "Skipped", "Errors", "Duration")
	fmt.Fprintln(w, rule)
	for _, t := range s.Tables {
		fmt.Fprintf(w, "%-25s %10d %10d %10d %12s\n",
			t.Name, t.Migrated, t.Skipped, t.Errors, t.Duration.Round(time.Millisecond))
	}
	fmt.Fprintln(w, rule)

	migrated, skipped, errs := s.Totals()
	fmt.Fprintf(w, "%-25s %10d %10d %10d\n", "TOTAL", migrated, skipped, errs)
}

// NewMigrator opens the SQLite source and MySQL target named in cfg.
func NewMigrator(cfg *Config, out io.Writer) (*Migrator, error) {
	gormConfig := gormConfig(cfg.Verbose)

	sourceDB, err := gorm.Open(sqlite.Open(cfg.SQLitePath), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	targetDB, err := gorm.Open(mysql.Open(cfg.MySQLDSN), gormConfig)
	if err != nil {
		closeDB(sourceDB)
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	m, err := newMigrator(cfg, out, sourceDB, targetDB)
	if err != nil {
		closeDB(sourceDB)
		closeDB(targetDB)
		return nil, err
	}
	fmt.Fprintln(out, "Database connections established successfully")
	return m, nil
}

// newMigrator wraps already opened connections after checking both respond.
func newMigrator(cfg *Config, out io.Writer, sourceDB, targetDB *gorm.DB) (*Migrator, error) {
	for name, db := range map[string]*gorm.DB{"source": sourceDB, "target": targetDB} {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get %s connection: %w", name, err)
		}
		if err := sqlDB.Ping(); err != nil {
			return nil, fmt.Errorf("failed to ping %s database: %w", name, err)
		}
	}
	return &Migrator{cfg: *cfg, out: out, sourceDB: sourceDB, targetDB: targetDB}, nil
}

func gormConfig(verbose bool) *gorm.Config {
	logLevel := logger.Silent
	if verbose {
		logLevel = logger.Info
	}
	return &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	}
}

func closeDB(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// Close closes both database connections.
func (m *Migrator) Close() {
	closeDB(m.sourceDB)
	closeDB(m.targetDB)
}

// Run executes the full export.
func (m *Migrator) Run(ctx context.Context) (*MigrationStats, error) {
	stats := &MigrationStats{StartTime: time.Now()}

	if m.cfg.AutoMigrate {
		if err := m.autoMigrateTables(ctx); err != nil {
			return nil, fmt.Errorf("failed to auto-migrate tables: %w", err)
		}
	}
	if m.cfg.Clean {
		if err := m.cleanTables(ctx); err != nil {
			return nil, fmt.Errorf("failed to clean tables: %w", err)
		}
	}

	tables := []struct {
		name    string
		migrate func(context.Context, *Migrator, string, int) (*TableStats, error)
	}{
		{tableGerminations, migrateTable[datastore.Germination]},
		{tablePollinations, migrateTable[datastore.Pollination]},
		{tableNotifications, migrateTable[datastore.NotificationRecord]},
	}

	for _, t := range tables {
		tableStats, err := t.migrate(ctx, m, t.name, m.cfg.BatchSize)
		if err != nil {
			return stats, fmt.Errorf("failed to migrate %s: %w", t.name, err)
		}
		stats.Tables = append(stats.Tables, *tableStats)
	}

	stats.EndTime = time.Now()
	return stats, nil
}

// autoMigrateTables creates the labpredict schema in the target database.
func (m *Migrator) autoMigrateTables(ctx context.Context) error {
	fmt.Fprintln(m.out, "Creating tables in target database...")
	for _, model := range datastore.Models() {
		if err := m.targetDB.WithContext(ctx).AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}
	fmt.Fprintln(m.out, "Tables created successfully")
	return nil
}

// cleanTables deletes every target row, notifications first.
func (m *Migrator) cleanTables(ctx context.Context) error {
	fmt.Fprintln(m.out, "Cleaning target tables...")
	for _, table := range []string{tableNotifications, tablePollinations, tableGerminations} {
		if err := m.targetDB.WithContext(ctx).Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("could not clean table %s: %w", table, err)
		}
		if m.cfg.Verbose {
			fmt.Fprintf(m.out, "  Cleaned: %s\n", table)
		}
	}
	fmt.Fprintln(m.out, "Tables cleaned")
	return nil
}

// migrateTable copies one table in primary key batches. Rows whose key
// already exists in the target are counted as skipped.
func migrateTable[T any](ctx context.Context, m *Migrator, tableName string, batchSize int) (*TableStats, error) {
	start := time.Now()
	stats := &TableStats{
		Name:      tableName,
		BatchSize: batchSize,
	}

	fmt.Fprintf(m.out, "Migrating %s...\n", tableName)

	var sourceCount int64
	if err := m.sourceDB.WithContext(ctx).Model(new(T)).Count(&sourceCount).Error; err != nil {
		return stats, fmt.Errorf("failed to count source records: %w", err)
	}
	if sourceCount == 0 {
		fmt.Fprintf(m.out, "  %s: no records to migrate\n", tableName)
		stats.Duration = time.Since(start)
		return stats, nil
	}

	var processed int64
	batchNum := 0

	err := m.sourceDB.WithContext(ctx).Model(new(T)).FindInBatches(new([]T), batchSize, func(tx *gorm.DB, _ int) error {
		batchNum++
		records := tx.Statement.Dest.(*[]T)

		result := m.targetDB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(records)
		if result.Error != nil {
			stats.Errors += int64(len(*records))
			fmt.Fprintf(m.out, "  Batch %d error: %v\n", batchNum, result.Error)
			// keep going, the summary reports the failed rows
			return nil //nolint:nilerr // a failed batch does not abort the export
		}

		stats.Migrated += result.RowsAffected
		stats.Skipped += int64(len(*records)) - result.RowsAffected
		processed += int64(len(*records))

		if m.cfg.Verbose || batchNum%10 == 0 {
			fmt.Fprintf(m.out, "  %s: %d/%d (%.1f%%)\n", tableName, processed, sourceCount,
				float64(processed)/float64(sourceCount)*100)
		}
		return nil
	}).Error
	if err != nil {
		return stats, err
	}

	stats.Duration = time.Since(start)
	fmt.Fprintf(m.out, "  %s: completed (%d migrated, %d skipped, %d errors) in %s\n",
		tableName, stats.Migrated, stats.Skipped, stats.Errors, stats.Duration.Round(time.Millisecond))
	return stats, nil
}
