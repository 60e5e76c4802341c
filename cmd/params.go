package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/patrikhermansson/hanndb/collection"
	"github.com/patrikhermansson/hanndb/hnsw"
	"github.com/patrikhermansson/hanndb/internal/codec"
	"github.com/spf13/cobra"
)

// paramFlags binds the index construction flags shared by build and bench.
type paramFlags struct {
	config         string
	m              int
	m0             int
	efConstruction int
	efSearch       int
	distance       string
	selection      string
	seed           int64
	compression    string
}

func (p *paramFlags) register(cmd *cobra.Command) {
	def := hnsw.DefaultParams()
	f := cmd.Flags()
	f.StringVar(&p.config, "config", "", "YAML file with index parameters")
	f.IntVar(&p.m, "m", def.M, "max neighbors per node above layer 0")
	f.IntVar(&p.m0, "m0", 0, "max neighbors per node at layer 0, 0 for 2*m")
	f.IntVar(&p.efConstruction, "ef-construction", def.EfConstruction, "beam width during insertion")
	f.IntVar(&p.efSearch, "ef-search", def.EfSearch, "default beam width during search")
	f.StringVar(&p.distance, "distance", def.Distance, "distance function")
	f.StringVar(&p.selection, "selection", string(def.Selection), "neighbor selection policy (heuristic|simple)")
	f.Int64Var(&p.seed, "seed", 0, "level sampling seed, 0 for HANNDB_SEED or the clock")
	f.StringVar(&p.compression, "compression", codec.CompressionZstd.String(), "snapshot compression (none|lz4|zstd)")
}

// params loads --config, then applies every flag set on the command line over it.
func (p *paramFlags) params(cmd *cobra.Command) (hnsw.Params, error) {
	params, err := hnsw.LoadParams(p.config)
	if err != nil {
		return hnsw.Params{}, err
	}
	f := cmd.Flags()
	if f.Changed("m") {
		params.M = p.m
		params.M0 = 0
	}
	if f.Changed("m0") {
		params.M0 = p.m0
	}
	if f.Changed("ef-construction") {
		params.EfConstruction = p.efConstruction
	}
	if f.Changed("ef-search") {
		params.EfSearch = p.efSearch
	}
	if f.Changed("distance") {
		params.Distance = p.distance
	}
	if f.Changed("selection") {
		params.Selection = hnsw.Selection(p.selection)
	}
	if f.Changed("seed") {
		params.Seed = p.seed
	}
	params = params.Normalize()
	return params, params.Validate()
}

func (p *paramFlags) options(name string) ([]collection.Option, error) {
	comp, err := codec.ParseCompression(p.compression)
	if err != nil {
		return nil, err
	}
	return []collection.Option{collection.WithName(name), collection.WithCompression(comp)}, nil
}

// parseVector reads a comma or whitespace separated list of floats.
func parseVector(s string) ([]float32, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty vector")
	}
	vec := make([]float32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %d %q: %w", i, f, err)
		}
		vec[i] = float32(v)
	}
	return vec, nil
}
