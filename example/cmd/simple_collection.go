//go:build ignore
// +build ignore

package main

import (
	"fmt"
	"os"

	"github.com/patrikhermansson/hanndb/collection"
	"github.com/patrikhermansson/hanndb/core"
	"github.com/patrikhermansson/hanndb/hnsw"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {

	// Set the logger to output to the console.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Collection parameters.
	dim := 6
	params := hnsw.Params{M: 5, EfConstruction: 40, EfSearch: 10, Distance: "euclidean"}

	c, err := collection.New[int](dim, params, collection.WithName("simple"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create collection")
	}
	fmt.Println("Created new collection.")

	// Add a few records in a fixed order.
	fmt.Println("Inserting records...")
	vectors := [][]float32{
		{1, 2, 3, 4, 5, 6},
		{6, 5, 4, 3, 2, 1},
		{1, 1, 1, 1, 1, 1},
		{2, 2, 2, 2, 2, 2},
		{3, 3, 3, 3, 3, 3},
		{4, 4, 4, 4, 4, 4},
		{5, 5, 5, 5, 5, 5},
		{6, 6, 6, 6, 6, 6},
		{7, 7, 7, 7, 7, 7},
		{8, 8, 8, 8, 8, 8},
	}
	for i, vec := range vectors {
		id := i + 1
		if err := c.Insert(id, vec, core.Object{"name": core.Text(fmt.Sprintf("vec-%d", id))}); err != nil {
			log.Fatal().Msgf("Insert failed for id %d: %v", id, err)
		}
	}
	fmt.Printf("Collection stats after Insert: %+v\n", c.Stats())

	// Search for the nearest neighbors of a query vector.
	query := []float32{1, 2, 3, 4, 5, 6}
	fmt.Println("Searching nearest neighbors for vector:", query)
	neighbors, err := c.Search(query, 2)
	if err != nil {
		log.Fatal().Msgf("Search failed: %v", err)
	}
	fmt.Println("Search results:")
	for _, n := range neighbors {
		fmt.Printf("ID: %d, Distance: %f, Data: %v\n", n.ID, n.Distance, core.ToAny(n.Data))
	}

	// Update the vector of a record; its metadata is kept.
	fmt.Println("Updating vector with id 2...")
	if _, err := c.Update(2, []float32{2, 2, 2, 2, 2, 2}, nil); err != nil {
		log.Fatal().Msgf("Update failed: %v", err)
	}
	fmt.Printf("Collection stats after Update: %+v\n", c.Stats())

	// Delete a record.
	fmt.Println("Deleting record with id 3...")
	if !c.Delete(3) {
		log.Fatal().Msg("Delete failed: id 3 not found")
	}
	fmt.Printf("Collection stats after Delete: %+v\n", c.Stats())

	// Save the collection to disk.
	filePath := "simple_collection.hndb"
	fmt.Println("Saving collection to file:", filePath)
	if err := c.SaveFile(filePath); err != nil {
		log.Fatal().Msgf("Save failed: %v", err)
	}

	// Load the saved collection into a new instance.
	fmt.Println("Loading collection from file:", filePath)
	loaded, err := collection.LoadFile[int](filePath)
	if err != nil {
		log.Fatal().Msgf("Load failed: %v", err)
	}
	fmt.Printf("Collection stats after Load: %+v\n", loaded.Stats())

	// Search in the loaded collection.
	fmt.Println("Searching in loaded collection...")
	neighbors, err = loaded.Search(query, 2)
	if err != nil {
		log.Fatal().Msgf("Search in loaded collection failed: %v", err)
	}
	fmt.Println("Search results from loaded collection:")
	for _, n := range neighbors {
		fmt.Printf("ID: %d, Distance: %f\n", n.ID, n.Distance)
	}

	// Remove the file now that we don't need it anymore.
	if err := os.Remove(filePath); err != nil {
		log.Warn().Msgf("Could not remove temporary file %s: %v", filePath, err)
	}
}
