package collection_test

import (
	"bytes"
	"math/rand"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/patrikhermansson/hanndb/collection"
	"github.com/patrikhermansson/hanndb/core"
	"github.com/patrikhermansson/hanndb/hnsw"
	"github.com/patrikhermansson/hanndb/internal/codec"
	"github.com/patrikhermansson/hanndb/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testParams = hnsw.Params{M: 8, EfConstruction: 64, Seed: 1234}

func randomVector(rng *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = rng.Float32()*2 - 1
	}
	return v
}

func populated(t *testing.T, n, dim int, opts ...collection.Option) *collection.Collection[int] {
	t.Helper()
	c, err := collection.New[int](dim, testParams, opts...)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(int64(n)))
	for i := 0; i < n; i++ {
		require.NoError(t, c.Insert(i, randomVector(rng, dim), core.Integer(i*10)))
	}
	return c
}

func ids[K comparable](results []core.Neighbor[K]) []K {
	out := make([]K, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

func TestConcreteScenario(t *testing.T) {
	// Arrange
	c, err := collection.New[int](2, hnsw.Params{M: 2, Seed: 7})
	require.NoError(t, err)
	require.NoError(t, c.Insert(1, []float32{0, 0}, nil))
	require.NoError(t, c.Insert(2, []float32{1, 0}, nil))
	require.NoError(t, c.Insert(3, []float32{0, 1}, nil))
	require.NoError(t, c.Insert(4, []float32{5, 5}, nil))
	query := []float32{0, 0.1}

	// Act & Assert
	results, err := c.Search(query, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, ids(results))
	assert.InDelta(t, 0.01, results[0].Distance, 1e-6)
	assert.InDelta(t, 0.81, results[1].Distance, 1e-6)

	require.True(t, c.Delete(1))
	results, err = c.Search(query, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, ids(results))
	require.NoError(t, c.Verify())
}

func TestDuplicateIDRejected(t *testing.T) {
	c, err := collection.New[int](2, hnsw.Params{M: 2, Seed: 7})
	require.NoError(t, err)
	require.NoError(t, c.Insert(2, []float32{1, 0}, core.Text("original")))

	err = c.Insert(2, []float32{9, 9}, core.Text("other"))
	require.ErrorIs(t, err, core.ErrDuplicateID)

	rec, ok := c.Get(2)
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0}, rec.Vector)
	assert.Equal(t, core.Text("original"), rec.Data)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 1, c.Stats().Count)
}

func TestDimensionInvariant(t *testing.T) {
	c := populated(t, 20, 4)
	before := c.Stats()

	err := c.Insert(100, []float32{1, 2, 3}, nil)
	var dimErr *core.DimensionMismatchError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 4, dimErr.Expected)
	assert.Equal(t, 3, dimErr.Actual)

	_, err = c.Search([]float32{1}, 3)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)

	ok, err := c.Update(5, []float32{1, 2}, nil)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
	assert.False(t, ok)

	assert.Equal(t, before, c.Stats())
	assert.False(t, c.Contains(100))
	c.Range(func(r collection.Record[int]) bool {
		assert.Len(t, r.Vector, 4)
		return true
	})
	require.NoError(t, c.Verify())
}

func TestNewWithRecords(t *testing.T) {
	records := []collection.Record[string]{
		{ID: "a", Vector: []float32{0, 0}},
		{ID: "b", Vector: []float32{1, 1}, Data: core.Boolean(true)},
	}
	c, err := collection.NewWithRecords(2, hnsw.Params{M: 4, Seed: 3}, records)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 2, c.Dimension())
	assert.False(t, c.IsEmpty())

	rec, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, core.Null{}, rec.Data)

	records = append(records, collection.Record[string]{ID: "c", Vector: []float32{1}})
	_, err = collection.NewWithRecords(2, hnsw.Params{}, records)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)

	dup := []collection.Record[string]{{ID: "a", Vector: []float32{0, 0}}, {ID: "a", Vector: []float32{1, 0}}}
	_, err = collection.NewWithRecords(2, hnsw.Params{}, dup)
	assert.ErrorIs(t, err, core.ErrDuplicateID)
}

func TestInvalidArguments(t *testing.T) {
	_, err := collection.New[int](0, hnsw.Params{})
	assert.ErrorIs(t, err, core.ErrInvalidParams)

	c := populated(t, 5, 3)
	_, err = c.Search([]float32{0, 0, 0}, 0)
	assert.ErrorIs(t, err, core.ErrInvalidK)

	empty, err := collection.New[int](3, hnsw.Params{})
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())
	results, err := empty.Search([]float32{0, 0, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDeleteThenReinsert(t *testing.T) {
	c := populated(t, 200, 8)
	rec, ok := c.Get(42)
	require.True(t, ok)

	require.True(t, c.Delete(42))
	assert.False(t, c.Delete(42))
	assert.False(t, c.Contains(42))
	_, ok = c.Get(42)
	assert.False(t, ok)

	results, err := c.Search(rec.Vector, 5)
	require.NoError(t, err)
	assert.NotContains(t, ids(results), 42)

	require.NoError(t, c.Insert(42, rec.Vector, rec.Data))
	results, err = c.Search(rec.Vector, 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, 42, results[0].ID)
	assert.InDelta(t, 0, results[0].Distance, 1e-9)
	assert.Equal(t, 1, c.Stats().Tombstones)
	require.NoError(t, c.Verify())
}

func TestDeleteAnySingleNodeKeepsEntryPoint(t *testing.T) {
	base := populated(t, 25, 3)
	data, err := base.Serialize()
	require.NoError(t, err)

	for id := 0; id < 25; id++ {
		c, err := collection.Restore[int](data)
		require.NoError(t, err)
		require.True(t, c.Delete(id))

		stats := c.Stats()
		assert.GreaterOrEqual(t, stats.TopLevel, 0, "deleting %d emptied the entry point", id)
		results, err := c.SearchWithEf([]float32{0, 0, 0}, 24, 100)
		require.NoError(t, err)
		assert.Len(t, results, 24, "deleting %d disconnected the graph", id)
		require.NoError(t, c.Verify())
	}
}

func TestUpdate(t *testing.T) {
	c := populated(t, 50, 4)
	sizeBefore := c.Stats()

	// Unknown id.
	ok, err := c.Update(999, []float32{1, 1, 1, 1}, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	// Metadata only: no graph effect.
	ok, err = c.Update(7, nil, core.Text("seven"))
	require.NoError(t, err)
	require.True(t, ok)
	rec, _ := c.Get(7)
	assert.Equal(t, core.Text("seven"), rec.Data)
	assert.Equal(t, sizeBefore, c.Stats())

	// Nothing to change.
	ok, err = c.Update(7, nil, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	// Vector change keeps the metadata and reinserts.
	moved := []float32{3, 3, 3, 3}
	ok, err = c.Update(7, moved, nil)
	require.NoError(t, err)
	require.True(t, ok)
	rec, _ = c.Get(7)
	assert.Equal(t, moved, rec.Vector)
	assert.Equal(t, core.Text("seven"), rec.Data)
	assert.Equal(t, 50, c.Len())
	assert.Equal(t, 1, c.Stats().Tombstones)

	results, err := c.Search(moved, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 7, results[0].ID)
	assert.Equal(t, core.Text("seven"), results[0].Data)
	require.NoError(t, c.Verify())
}

// exactNeighbors ranks every live record by distance to query.
func exactNeighbors(c *collection.Collection[int], query []float32, k int) map[int]bool {
	type hit struct {
		id   int
		dist float64
	}
	var hits []hit
	c.Range(func(r collection.Record[int]) bool {
		hits = append(hits, hit{r.ID, core.SquaredEuclidean(query, r.Vector)})
		return true
	})
	sort.Slice(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })
	out := make(map[int]bool, k)
	for _, h := range hits[:k] {
		out[h.id] = true
	}
	return out
}

func TestRecallImprovesWithEf(t *testing.T) {
	const dim, k = 12, 10
	c := populated(t, 800, dim)
	rng := rand.New(rand.NewSource(99))

	queries := make([][]float32, 20)
	truth := make([]map[int]bool, len(queries))
	for i := range queries {
		queries[i] = randomVector(rng, dim)
		truth[i] = exactNeighbors(c, queries[i], k)
	}

	prev := 0.0
	for _, ef := range []int{10, 40, 160, 800} {
		hits := 0
		for i, q := range queries {
			results, err := c.SearchWithEf(q, k, ef)
			require.NoError(t, err)
			for _, r := range results {
				if truth[i][r.ID] {
					hits++
				}
			}
		}
		recall := float64(hits) / float64(k*len(queries))
		assert.GreaterOrEqual(t, recall, prev, "recall dropped at ef=%d", ef)
		prev = recall
	}
	assert.GreaterOrEqual(t, prev, 0.99)
}

func TestSerializeRestoreRoundTrip(t *testing.T) {
	for _, comp := range []codec.Compression{codec.CompressionNone, codec.CompressionLZ4, codec.CompressionZstd} {
		t.Run(comp.String(), func(t *testing.T) {
			// Arrange
			c := populated(t, 300, 6, collection.WithCompression(comp), collection.WithName("rt"))
			for id := 0; id < 300; id += 7 {
				c.Delete(id)
			}
			_, err := c.Update(1, nil, core.Object{"tag": core.List{core.Text("x"), core.Float(1.5)}})
			require.NoError(t, err)

			// Act
			data, err := c.Serialize()
			require.NoError(t, err)
			restored, err := collection.Restore[int](data)
			require.NoError(t, err)

			// Assert
			require.NoError(t, restored.Verify())
			assert.Equal(t, "rt", restored.Name())
			assert.Equal(t, c.Stats(), restored.Stats())
			assert.Equal(t, c.Params(), restored.Params())
			rec, ok := restored.Get(1)
			require.True(t, ok)
			assert.True(t, core.EqualMetadata(core.Object{"tag": core.List{core.Text("x"), core.Float(1.5)}}, rec.Data))

			rng := rand.New(rand.NewSource(5))
			for i := 0; i < 30; i++ {
				q := randomVector(rng, 6)
				want, err := c.Search(q, 10)
				require.NoError(t, err)
				got, err := restored.Search(q, 10)
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}

			// Both continue identically.
			for i := 1000; i < 1020; i++ {
				v := randomVector(rng, 6)
				require.NoError(t, c.Insert(i, v, nil))
				require.NoError(t, restored.Insert(i, v, nil))
			}
			q := randomVector(rng, 6)
			want, _ := c.Search(q, 15)
			got, _ := restored.Search(q, 15)
			assert.Equal(t, want, got)
		})
	}
}

func TestRestoreEmptyCollection(t *testing.T) {
	c, err := collection.New[string](3, hnsw.Params{Seed: 9})
	require.NoError(t, err)
	data, err := c.Serialize()
	require.NoError(t, err)

	restored, err := collection.Restore[string](data)
	require.NoError(t, err)
	assert.True(t, restored.IsEmpty())
	require.NoError(t, restored.Insert("x", []float32{1, 2, 3}, nil))
}

func TestRestoreCorruptInput(t *testing.T) {
	c := populated(t, 40, 3)
	data, err := c.Serialize()
	require.NoError(t, err)

	flipped := bytes.Clone(data)
	flipped[len(flipped)/2] ^= 0x5A
	garbagePayload, err := codec.Encode([]byte("definitely not gob"), codec.CompressionNone)
	require.NoError(t, err)

	for name, input := range map[string][]byte{
		"empty":     nil,
		"truncated": data[:len(data)/2],
		"flipped":   flipped,
		"garbage":   garbagePayload,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := collection.Restore[int](input)
			assert.ErrorIs(t, err, core.ErrCorruptState)
		})
	}

	// A snapshot of string ids does not restore as int ids.
	_, err = collection.Restore[string](data)
	assert.ErrorIs(t, err, core.ErrCorruptState)
}

func TestSaveLoad(t *testing.T) {
	c := populated(t, 60, 5)

	var buf bytes.Buffer
	require.NoError(t, c.Save(&buf))
	loaded, err := collection.Load[int](&buf, collection.WithName("loaded"))
	require.NoError(t, err)
	assert.Equal(t, "loaded", loaded.Name())
	assert.Equal(t, c.Len(), loaded.Len())

	path := filepath.Join(t.TempDir(), "snap.hndb")
	require.NoError(t, c.SaveFile(path))
	require.NoError(t, c.SaveFile(path))
	fromFile, err := collection.LoadFile[int](path)
	require.NoError(t, err)
	assert.Equal(t, c.Stats(), fromFile.Stats())

	_, err = collection.LoadFile[int](filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestRangeAndGet(t *testing.T) {
	c, err := collection.New[string](2, hnsw.Params{Seed: 1})
	require.NoError(t, err)
	for _, id := range []string{"delta", "alpha", "charlie", "bravo"} {
		require.NoError(t, c.Insert(id, []float32{float32(len(id)), 0}, core.Text(id)))
	}
	c.Delete("charlie")

	var seen []string
	c.Range(func(r collection.Record[string]) bool {
		seen = append(seen, r.ID)
		assert.Equal(t, core.Text(r.ID), r.Data)
		return true
	})
	assert.Equal(t, []string{"alpha", "bravo", "delta"}, seen)

	var first []string
	c.Range(func(r collection.Record[string]) bool {
		first = append(first, r.ID)
		return false
	})
	assert.Equal(t, []string{"alpha"}, first)

	rec, ok := c.Get("alpha")
	require.True(t, ok)
	rec.Vector[0] = 100
	again, _ := c.Get("alpha")
	assert.Equal(t, float32(5), again.Vector[0])
}

func TestCompact(t *testing.T) {
	c := populated(t, 120, 4)
	for id := 0; id < 120; id += 3 {
		require.True(t, c.Delete(id))
	}
	rng := rand.New(rand.NewSource(17))
	queries := make([][]float32, 10)
	want := make([][]int, len(queries))
	for i := range queries {
		queries[i] = randomVector(rng, 4)
		res, err := c.SearchWithEf(queries[i], 5, 120)
		require.NoError(t, err)
		want[i] = ids(res)
	}

	removed := c.Compact()

	assert.Equal(t, 40, removed)
	assert.Equal(t, 0, c.Stats().Tombstones)
	assert.Equal(t, 80, c.Len())
	require.NoError(t, c.Verify())
	for i, q := range queries {
		res, err := c.SearchWithEf(q, 5, 120)
		require.NoError(t, err)
		assert.Equal(t, want[i], ids(res))
	}
	rec, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, core.Integer(10), rec.Data)
	require.NoError(t, c.Insert(0, rec.Vector, nil))
}

func TestConcurrentReadersAndWriter(t *testing.T) {
	c := populated(t, 200, 8)
	var wg sync.WaitGroup
	errs := make(chan error, 16)

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < 100; i++ {
				if _, err := c.Search(randomVector(rng, 8), 5); err != nil {
					errs <- err
					return
				}
				c.Contains(i)
				c.Stats()
			}
		}(int64(r))
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		rng := rand.New(rand.NewSource(77))
		for i := 200; i < 300; i++ {
			if err := c.Insert(i, randomVector(rng, 8), nil); err != nil {
				errs <- err
				return
			}
			c.Delete(i - 150)
		}
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	assert.Equal(t, 200, c.Len())
	require.NoError(t, c.Verify())
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg, "test")
	c := populated(t, 10, 2, collection.WithMetrics(m), collection.WithName("docs"))

	c.Delete(3)
	c.Delete(3)
	_, _ = c.Update(4, nil, core.Text("x"))
	_ = c.Insert(5, []float32{1, 2}, nil)
	_, _ = c.Search([]float32{0, 0}, 2)

	assert.Equal(t, 10.0, testutil.ToFloat64(m.Operations.WithLabelValues("docs", "insert", metrics.OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("docs", "insert", metrics.OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("docs", "delete", metrics.OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("docs", "delete", metrics.OutcomeNotFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("docs", "update", metrics.OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("docs", "search", metrics.OutcomeOK)))
	assert.Equal(t, 9.0, testutil.ToFloat64(m.LiveRecords.WithLabelValues("docs")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Tombstones.WithLabelValues("docs")))
}

func TestStoreInterface(t *testing.T) {
	var store core.Store[string]
	c, err := collection.New[string](2, hnsw.Params{Seed: 2})
	require.NoError(t, err)
	store = c

	require.NoError(t, store.Insert("a", []float32{1, 1}, nil))
	ok, err := store.Update("a", nil, core.Integer(1))
	require.NoError(t, err)
	assert.True(t, ok)
	res, err := store.Search([]float32{1, 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", res[0].ID)
	assert.True(t, store.Delete("a"))
	assert.Equal(t, 0, store.Stats().Count)
}
