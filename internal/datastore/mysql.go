package datastore

import (
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// mysqlDialector builds the MySQL dialector. parseTime is forced on since
// dates are scanned into time.Time.
func mysqlDialector(dsn string) (gorm.Dialector, error) {
	if dsn == "" {
		return nil, validationError("mysql dsn is required", "database.dsn", "")
	}
	if !strings.Contains(dsn, "parseTime=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "parseTime=true&loc=UTC"
	}
	return mysql.New(mysql.Config{
		DSN:                       dsn,
		DefaultStringSize:         255,
		SkipInitializeWithVersion: false,
	}), nil
}
