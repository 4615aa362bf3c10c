package datastore

import (
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// MemoryPath opens a private in-memory SQLite database
const MemoryPath = ":memory:"

// sqliteDialector builds the SQLite dialector for path. File databases use
// WAL with a busy timeout so refresh workers can write concurrently.
func sqliteDialector(path string) (gorm.Dialector, error) {
	if path == "" {
		return nil, validationError("sqlite path is required", "database.path", path)
	}
	if path == MemoryPath {
		return sqlite.Open("file::memory:?_foreign_keys=on"), nil
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, dbError(err, "create_database_dir", "", "path", dir)
		}
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return sqlite.Open(path + sep + "_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"), nil
}
