package histstats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/orchidlab/labpredict/internal/errors"
	"github.com/orchidlab/labpredict/internal/estimate"
	"github.com/orchidlab/labpredict/internal/logger"
)

// Artifact is the packaged stats file
type Artifact struct {
	Version     string    `json:"version" yaml:"version"`
	Germination TableData `json:"germination" yaml:"germination"`
	Maturation  TableData `json:"maturation" yaml:"maturation"`
}

// Store gives per-milestone access to the loaded tables
type Store struct {
	version string
	tables  map[estimate.Milestone]*Table
}

// NewStore builds a store from an in-memory artifact
func NewStore(a Artifact) *Store {
	return &Store{
		version: a.Version,
		tables: map[estimate.Milestone]*Table{
			estimate.Germination: NewTable(a.Germination),
			estimate.Maturation:  NewTable(a.Maturation),
		},
	}
}

// Empty returns a store with no rows; every lookup misses
func Empty() *Store { return NewStore(Artifact{}) }

// Load reads a JSON or YAML artifact. An empty path yields an empty store.
// A file that cannot be read, parsed or that holds inconsistent rows is an
// error of category stats-load.
func Load(path string) (*Store, error) {
	if path == "" {
		return Empty(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, loadError(err, path, "read")
	}

	var a Artifact
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &a)
	default:
		err = json.Unmarshal(data, &a)
	}
	if err != nil {
		return nil, loadError(err, path, "parse")
	}

	if err := a.validate(); err != nil {
		return nil, loadError(err, path, "validate")
	}

	s := NewStore(a)
	GetLogger().Info("historical stats loaded",
		logger.String("path", path),
		logger.String("version", a.Version),
		logger.Int("germination_rows", a.Germination.rows()),
		logger.Int("maturation_rows", a.Maturation.rows()))
	return s, nil
}

func loadError(err error, path, op string) error {
	return errors.New(err).
		Component("histstats").
		Category(errors.CategoryStatsLoad).
		Context("path", path).
		Context("operation", op).
		Build()
}

func (a *Artifact) validate() error {
	for name, d := range map[string]*TableData{"germination": &a.Germination, "maturation": &a.Maturation} {
		for _, group := range [][]Stats{d.Species, d.Genus, d.Type} {
			for _, s := range group {
				if !s.check() {
					return fmt.Errorf("%s: inconsistent stats row %q", name, s.Key)
				}
			}
		}
		for _, row := range d.GenusType {
			if row.Genus == "" || row.Type == "" {
				return fmt.Errorf("%s: genus_type row needs genus and type", name)
			}
			s := row.Stats
			if s.Key == "" {
				s.Key = row.Genus + "/" + row.Type
			}
			if !s.check() {
				return fmt.Errorf("%s: inconsistent genus_type row %s/%s", name, row.Genus, row.Type)
			}
		}
	}
	return nil
}

// Version returns the artifact version string
func (s *Store) Version() string { return s.version }

// Table returns the table for a milestone, never nil
func (s *Store) Table(m estimate.Milestone) *Table {
	if s == nil {
		return NewTable(TableData{})
	}
	if t, ok := s.tables[m]; ok {
		return t
	}
	return NewTable(TableData{})
}
