package hnsw

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/patrikhermansson/hanndb/core"
	"gopkg.in/yaml.v3"
)

// Selection names a neighbor-selection policy.
type Selection string

const (
	// SelectHeuristic keeps a candidate only if it is closer to the owner than to every
	// neighbor already kept, then backfills with the closest rejected candidates.
	SelectHeuristic Selection = "heuristic"
	// SelectSimple keeps the M closest candidates.
	SelectSimple Selection = "simple"
)

// maxLevelCap is the upper bound for a node's level.
const maxLevelCap = 32

// Params holds the tunables of an index. They are fixed once the index is created.
type Params struct {
	// M is the maximum number of neighbors per node on layers above 0.
	M int `yaml:"m"`
	// M0 is the maximum number of neighbors per node on layer 0. Zero means 2*M.
	M0 int `yaml:"m0"`
	// EfConstruction is the beam width used while inserting and repairing.
	EfConstruction int `yaml:"ef_construction"`
	// EfSearch is the default beam width used by queries.
	EfSearch int `yaml:"ef_search"`
	// Distance is a key of core.Distances.
	Distance string `yaml:"distance"`
	// Selection is the neighbor-selection policy.
	Selection Selection `yaml:"selection"`
	// MaxLevel clamps sampled node levels.
	MaxLevel int `yaml:"max_level"`
	// Seed drives level sampling. Zero means core.GetSeed().
	Seed int64 `yaml:"seed"`
}

// DefaultParams returns M=32, M0=64, ef_construction=40, ef_search=15 with squared Euclidean distance.
func DefaultParams() Params {
	return Params{
		M:              32,
		M0:             64,
		EfConstruction: 40,
		EfSearch:       15,
		Distance:       core.DefaultDistance,
		Selection:      SelectHeuristic,
		MaxLevel:       16,
	}
}

// Normalize fills unset fields from the defaults.
func (p Params) Normalize() Params {
	d := DefaultParams()
	if p.M == 0 {
		p.M = d.M
	}
	if p.M0 == 0 {
		p.M0 = 2 * p.M
	}
	if p.EfConstruction == 0 {
		p.EfConstruction = d.EfConstruction
	}
	if p.EfSearch == 0 {
		p.EfSearch = d.EfSearch
	}
	if p.Distance == "" {
		p.Distance = d.Distance
	}
	if p.Selection == "" {
		p.Selection = d.Selection
	}
	if p.MaxLevel == 0 {
		p.MaxLevel = d.MaxLevel
	}
	return p
}

// Validate reports the first unusable field.
func (p Params) Validate() error {
	switch {
	case p.M < 2:
		return fmt.Errorf("%w: m must be at least 2, got %d", core.ErrInvalidParams, p.M)
	case p.M0 < p.M:
		return fmt.Errorf("%w: m0 (%d) must be >= m (%d)", core.ErrInvalidParams, p.M0, p.M)
	case p.EfConstruction < 1:
		return fmt.Errorf("%w: ef_construction must be positive, got %d", core.ErrInvalidParams, p.EfConstruction)
	case p.EfSearch < 1:
		return fmt.Errorf("%w: ef_search must be positive, got %d", core.ErrInvalidParams, p.EfSearch)
	case p.MaxLevel < 0 || p.MaxLevel > maxLevelCap:
		return fmt.Errorf("%w: max_level must be in [0, %d], got %d", core.ErrInvalidParams, maxLevelCap, p.MaxLevel)
	}
	if p.Selection != SelectHeuristic && p.Selection != SelectSimple {
		return fmt.Errorf("%w: unknown selection policy %q", core.ErrInvalidParams, p.Selection)
	}
	if _, err := core.LookupDistance(p.Distance); err != nil {
		return fmt.Errorf("%w: %w", core.ErrInvalidParams, err)
	}
	return nil
}

// LoadParams reads YAML parameters from path on top of DefaultParams.
// An empty path returns the defaults.
func LoadParams(path string) (Params, error) {
	if path == "" {
		return DefaultParams(), nil
	}
	file, err := os.Open(path)
	if err != nil {
		return Params{}, fmt.Errorf("failed to open index config: %w", err)
	}
	defer file.Close()
	return DecodeParams(file)
}

// DecodeParams parses YAML parameters with strict field checking.
func DecodeParams(r io.Reader) (Params, error) {
	p := DefaultParams()
	p.M0 = 0

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Params{}, fmt.Errorf("failed to parse index config: %w", err)
	}
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}
