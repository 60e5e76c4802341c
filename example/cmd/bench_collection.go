//go:build ignore
// +build ignore

package main

import (
	"context"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/patrikhermansson/hanndb/example"
	"github.com/patrikhermansson/hanndb/hnsw"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Set the logger to output to the console.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Start the pprof HTTP server on port 6060.
	// This will expose profiling endpoints at /debug/pprof/
	go func() {
		log.Info().Msg("Starting pprof server on :6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			log.Error().Err(err).Msg("pprof server failed")
		}
	}()

	// Benchmarking collections with FashionMNIST and Glove datasets
	root := "example/data/nearest-neighbors-datasets"
	bench(root+"/fashion-mnist-784-euclidean", hnsw.Params{M: 32, EfConstruction: 200, EfSearch: 300, Distance: "squared_euclidean"})
	bench(root+"/glove-25-angular", hnsw.Params{M: 16, EfConstruction: 200, EfSearch: 300, Distance: "cosine"})
	bench(root+"/glove-200-angular", hnsw.Params{M: 32, EfConstruction: 200, EfSearch: 300, Distance: "cosine"})
}

func bench(dir string, params hnsw.Params) {
	ds, err := example.LoadDataset(dir)
	if err != nil {
		log.Fatal().Err(err).Msgf("Failed to load %s", dir)
	}
	cfg := example.BenchConfig{K: 100, Progress: os.Stderr}
	if _, err := example.RunDataset(context.Background(), os.Stdout, ds, params, cfg, 0, 5); err != nil {
		log.Fatal().Err(err).Msg("Benchmark failed")
	}
}
