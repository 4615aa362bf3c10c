package histstats

import (
	"sort"
	"strings"

	"github.com/orchidlab/labpredict/internal/estimate"
)

// Table holds the lookups for one milestone. It is immutable after
// construction and safe for concurrent readers.
type Table struct {
	species   map[string]Stats
	genus     map[string]Stats
	types     map[string]Stats
	genusType map[string]Stats

	// species rows ordered by count desc then key, for deterministic fuzzy matches
	speciesOrder []foldedStats
}

type foldedStats struct {
	fold  string
	stats Stats
}

// TableData is the serialized form of a Table
type TableData struct {
	Species   []Stats        `json:"species" yaml:"species"`
	Genus     []Stats        `json:"genus" yaml:"genus"`
	Type      []Stats        `json:"type" yaml:"type"`
	GenusType []GenusTypeRow `json:"genus_type" yaml:"genus_type"`
}

// GenusTypeRow keys a Stats row by genus and pollination type
type GenusTypeRow struct {
	Genus string `json:"genus" yaml:"genus"`
	Type  string `json:"type" yaml:"type"`
	Stats Stats  `json:"stats" yaml:"stats"`
}

// NewTable indexes data. Later duplicates of a key replace earlier ones.
func NewTable(data TableData) *Table {
	t := &Table{
		species:   indexRows(data.Species),
		genus:     indexRows(data.Genus),
		types:     indexRows(data.Type),
		genusType: make(map[string]Stats, len(data.GenusType)),
	}
	for _, row := range data.GenusType {
		t.genusType[genusTypeKey(row.Genus, row.Type)] = row.Stats
	}

	t.speciesOrder = make([]foldedStats, 0, len(t.species))
	for fold, s := range t.species {
		t.speciesOrder = append(t.speciesOrder, foldedStats{fold: fold, stats: s})
	}
	sort.Slice(t.speciesOrder, func(i, j int) bool {
		a, b := t.speciesOrder[i], t.speciesOrder[j]
		if a.stats.Count != b.stats.Count {
			return a.stats.Count > b.stats.Count
		}
		return a.fold < b.fold
	})
	return t
}

func indexRows(rows []Stats) map[string]Stats {
	m := make(map[string]Stats, len(rows))
	for _, r := range rows {
		m[estimate.FoldKey(r.Key)] = r
	}
	return m
}

func genusTypeKey(genus, typ string) string {
	return estimate.FoldKey(genus) + "\x00" + estimate.FoldKey(typ)
}

func get(m map[string]Stats, key string) (Stats, bool) {
	if m == nil {
		return Stats{}, false
	}
	k := estimate.FoldKey(key)
	if k == "" {
		return Stats{}, false
	}
	s, ok := m[k]
	return s, ok
}

// Lookup finds the species row by exact (case and accent folded) name
func (t *Table) Lookup(species string) (Stats, bool) { return get(t.species, species) }

// LookupGenus finds the genus row
func (t *Table) LookupGenus(genus string) (Stats, bool) { return get(t.genus, genus) }

// LookupType finds the pollination-type row
func (t *Table) LookupType(typ string) (Stats, bool) { return get(t.types, typ) }

// LookupGenusType finds the combined genus × type row
func (t *Table) LookupGenusType(genus, typ string) (Stats, bool) {
	if estimate.FoldKey(genus) == "" || estimate.FoldKey(typ) == "" {
		return Stats{}, false
	}
	s, ok := t.genusType[genusTypeKey(genus, typ)]
	return s, ok
}

// FuzzyLookup finds a species row whose name contains the query or is
// contained by it. Among several candidates the best supported wins, ties
// broken alphabetically.
func (t *Table) FuzzyLookup(species string) (Stats, bool) {
	q := estimate.FoldKey(species)
	if q == "" {
		return Stats{}, false
	}
	for _, fs := range t.speciesOrder {
		if fs.stats.Count < 1 {
			continue
		}
		if strings.Contains(fs.fold, q) || strings.Contains(q, fs.fold) {
			return fs.stats, true
		}
	}
	return Stats{}, false
}

// SpeciesCount returns the number of species rows
func (t *Table) SpeciesCount() int { return len(t.species) }

// Empty reports whether the table has no rows at all
func (t *Table) Empty() bool {
	return len(t.species) == 0 && len(t.genus) == 0 && len(t.types) == 0 && len(t.genusType) == 0
}

func (d TableData) rows() int {
	return len(d.Species) + len(d.Genus) + len(d.Type) + len(d.GenusType)
}
