package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/spf13/viper"
)

// Config holds the configuration for the export tool.
type Config struct {
	SQLitePath string
	MySQLDSN   string

	BatchSize   int
	Clean       bool
	AutoMigrate bool
	SkipVerify  bool
	Verbose     bool

	// ConfigPath is a labpredict.yaml used to fill missing connection flags
	ConfigPath string
}

var dsnPassword = regexp.MustCompile(`^([^:@/]+):[^@]*@`)

// Load validates the configuration, falling back to labpredict.yaml for
// connection settings not given as flags.
func (c *Config) Load() error {
	if c.SQLitePath == "" || c.MySQLDSN == "" {
		// a missing file is only fatal when flags are missing too
		_ = c.loadFromConfigFile()
	}

	if c.SQLitePath == "" {
		return fmt.Errorf("--sqlite-path is required (or provide labpredict.yaml)")
	}
	if _, err := os.Stat(c.SQLitePath); os.IsNotExist(err) {
		return fmt.Errorf("SQLite database not found: %s", c.SQLitePath)
	}
	if c.MySQLDSN == "" {
		return fmt.Errorf("--mysql-dsn is required")
	}

	if c.BatchSize < 1 {
		return fmt.Errorf("batch-size must be at least 1")
	}
	if c.BatchSize > 10000 {
		return fmt.Errorf("batch-size too large (max 10000)")
	}
	return nil
}

// loadFromConfigFile reads database.path and, for a mysql configuration,
// database.dsn from a labpredict config file.
func (c *Config) loadFromConfigFile() error {
	v := viper.New()

	configPath := c.ConfigPath
	if configPath == "" {
		if homeDir, err := os.UserHomeDir(); err == nil {
			p := filepath.Join(homeDir, ".config", "labpredict", "labpredict.yaml")
			if _, statErr := os.Stat(p); statErr == nil {
				configPath = p
			}
		}
		if configPath == "" {
			configPath = "labpredict.yaml"
		}
	}

	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if c.SQLitePath == "" && v.GetString("database.type") != "mysql" {
		c.SQLitePath = v.GetString("database.path")
	}
	if c.MySQLDSN == "" && v.GetString("database.type") == "mysql" {
		c.MySQLDSN = v.GetString("database.dsn")
	}
	return nil
}

// SanitizedMySQLDSN returns the MySQL DSN with the password masked for logging.
func (c *Config) SanitizedMySQLDSN() string {
	return dsnPassword.ReplaceAllString(c.MySQLDSN, "$1:****@")
}
