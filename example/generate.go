package example

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sort"

	"github.com/patrikhermansson/hanndb/collection"
	"github.com/patrikhermansson/hanndb/core"
	"golang.org/x/sync/errgroup"
)

// GenerateVectors returns n vectors with components uniform in [-1, 1).
func GenerateVectors(n, dim int, seed int64) [][]float32 {
	rng := rand.New(rand.NewSource(seed))
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for j := range v {
			v[j] = rng.Float32()*2 - 1
		}
		out[i] = v
	}
	return out
}

// GenerateRecords returns n records with ids 0..n-1, random vectors and a small
// object payload.
func GenerateRecords(n, dim int, seed int64) []collection.Record[int] {
	vectors := GenerateVectors(n, dim, seed)
	records := make([]collection.Record[int], n)
	for i, v := range vectors {
		records[i] = collection.Record[int]{
			ID:     i,
			Vector: v,
			Data: core.Object{
				"index":  core.Integer(i),
				"label":  core.Text(fmt.Sprintf("record-%d", i)),
				"weight": core.Float(core.Norm(v)),
			},
		}
	}
	return records
}

// GenerateDataset builds a synthetic dataset with exact ground truth for k neighbors.
func GenerateDataset(ctx context.Context, name string, train, test, dim, k int, distance string, seed int64) (*Dataset, error) {
	ds := &Dataset{
		Name:  name,
		Train: GenerateVectors(train, dim, seed),
		Test:  GenerateVectors(test, dim, seed+1),
	}
	var err error
	ds.Neighbors, ds.Distances, err = GroundTruth(ctx, ds.Train, ds.Test, k, distance)
	if err != nil {
		return nil, err
	}
	return ds, nil
}

// BruteForce returns the ids (row numbers) and distances of the k rows of train
// closest to query, closest first, ties broken by row number.
func BruteForce(train [][]float32, query []float32, k int, distance core.DistanceFunc) ([]int, []float64) {
	ids := make([]int, len(train))
	dists := make([]float64, len(train))
	for i, v := range train {
		ids[i] = i
		dists[i] = distance(query, v)
	}
	sort.SliceStable(ids, func(a, b int) bool { return dists[ids[a]] < dists[ids[b]] })
	if len(ids) > k {
		ids = ids[:k]
	}
	out := make([]float64, len(ids))
	for i, id := range ids {
		out[i] = dists[id]
	}
	return ids, out
}

// GroundTruth computes BruteForce for every query, spreading queries over the CPUs.
func GroundTruth(ctx context.Context, train, queries [][]float32, k int, distance string) ([][]int, [][]float64, error) {
	fn, err := core.LookupDistance(distance)
	if err != nil {
		return nil, nil, err
	}
	neighbors := make([][]int, len(queries))
	distances := make([][]float64, len(queries))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			neighbors[i], distances[i] = BruteForce(train, q, k, fn)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return neighbors, distances, nil
}
