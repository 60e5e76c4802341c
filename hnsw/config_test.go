package hnsw_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/patrikhermansson/hanndb/core"
	"github.com/patrikhermansson/hanndb/hnsw"
)

func TestDefaultParams(t *testing.T) {
	p := hnsw.DefaultParams()
	if p.M != 32 || p.M0 != 64 {
		t.Errorf("expected M=32 M0=64, got M=%d M0=%d", p.M, p.M0)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestNormalizeDerivesM0(t *testing.T) {
	p := hnsw.Params{M: 2}.Normalize()
	if p.M0 != 4 {
		t.Errorf("expected M0=4 for M=2, got %d", p.M0)
	}
	if p.Distance != core.DefaultDistance || p.Selection != hnsw.SelectHeuristic {
		t.Errorf("unexpected defaults: %+v", p)
	}
}

func TestDecodeParams(t *testing.T) {
	src := `
m: 8
ef_construction: 100
ef_search: 50
distance: cosine
selection: simple
seed: 7
`
	p, err := hnsw.DecodeParams(strings.NewReader(src))
	if err != nil {
		t.Fatalf("DecodeParams failed: %v", err)
	}
	if p.M != 8 || p.M0 != 16 || p.EfConstruction != 100 || p.EfSearch != 50 {
		t.Errorf("unexpected params: %+v", p)
	}
	if p.Distance != "cosine" || p.Selection != hnsw.SelectSimple || p.Seed != 7 {
		t.Errorf("unexpected params: %+v", p)
	}
}

func TestDecodeParamsRejectsUnknownField(t *testing.T) {
	_, err := hnsw.DecodeParams(strings.NewReader("m: 8\nefsearch: 3\n"))
	if err == nil {
		t.Fatal("expected error for unknown field, got none")
	}
}

func TestDecodeParamsValidation(t *testing.T) {
	tests := []string{
		"m: 1\n",
		"m: 8\nm0: 4\n",
		"distance: hamming\n",
		"selection: random\n",
		"max_level: 99\n",
	}
	for _, src := range tests {
		if _, err := hnsw.DecodeParams(strings.NewReader(src)); !errors.Is(err, core.ErrInvalidParams) {
			t.Errorf("DecodeParams(%q): expected ErrInvalidParams, got %v", src, err)
		}
	}
}

func TestLoadParams(t *testing.T) {
	p, err := hnsw.LoadParams("")
	if err != nil || p != hnsw.DefaultParams() {
		t.Fatalf("LoadParams(\"\") = %+v, %v; want defaults", p, err)
	}

	path := filepath.Join(t.TempDir(), "index.yaml")
	if err := os.WriteFile(path, []byte("m: 4\nef_search: 20\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	p, err = hnsw.LoadParams(path)
	if err != nil {
		t.Fatalf("LoadParams failed: %v", err)
	}
	if p.M != 4 || p.M0 != 8 || p.EfSearch != 20 {
		t.Errorf("unexpected params: %+v", p)
	}

	if _, err := hnsw.LoadParams(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file, got none")
	}
}
