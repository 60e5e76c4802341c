// Package collection is the public face of the vector database: a set of
// records addressed by caller-chosen ids and backed by one HNSW index.
package collection

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/patrikhermansson/hanndb/core"
	"github.com/patrikhermansson/hanndb/hnsw"
	"github.com/patrikhermansson/hanndb/internal/codec"
	"github.com/patrikhermansson/hanndb/metrics"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/btree"
)

// Record is a caller-visible unit: an id, its vector and its metadata.
type Record[K cmp.Ordered] struct {
	ID     K
	Vector []float32
	Data   core.Metadata
}

// idEntry maps one live id to its graph slot.
type idEntry[K cmp.Ordered] struct {
	id  K
	ref hnsw.NodeRef
}

func idLess[K cmp.Ordered](a, b idEntry[K]) bool { return cmp.Less(a.id, b.id) }

// Collection owns an HNSW index together with the id mapping.
// Searches run concurrently; inserts, deletes and updates are exclusive.
type Collection[K cmp.Ordered] struct {
	mu          sync.RWMutex
	name        string
	dimension   int
	index       *hnsw.Index
	ids         *btree.BTreeG[idEntry[K]] // live id -> slot, ordered by id
	keys        []K                       // slot -> id, zero for tombstones
	compression codec.Compression
	obs         *metrics.Observer
}

var _ core.Store[string] = (*Collection[string])(nil)

// New creates an empty collection for vectors of the given dimension.
func New[K cmp.Ordered](dimension int, params hnsw.Params, opts ...Option) (*Collection[K], error) {
	index, err := hnsw.New(dimension, params)
	if err != nil {
		return nil, err
	}
	c := build[K](index, resolve(defaultOptions(), opts))
	log.Info().Msgf("Created collection %q with dimension %d", c.name, dimension)
	return c, nil
}

// NewWithRecords creates a collection and inserts records one at a time, in order.
// All vectors are checked before the first insert.
func NewWithRecords[K cmp.Ordered](dimension int, params hnsw.Params, records []Record[K], opts ...Option) (*Collection[K], error) {
	for i, r := range records {
		if err := core.CheckDimension(r.Vector, dimension); err != nil {
			return nil, fmt.Errorf("record %d (id %v): %w", i, r.ID, err)
		}
	}
	c, err := New[K](dimension, params, opts...)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if err := c.Insert(r.ID, r.Vector, r.Data); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func build[K cmp.Ordered](index *hnsw.Index, o options) *Collection[K] {
	return &Collection[K]{
		name:        o.name,
		dimension:   index.Dimension(),
		index:       index,
		ids:         btree.NewBTreeG[idEntry[K]](idLess[K]),
		compression: o.compression,
		obs:         o.metrics.For(o.name),
	}
}

func (c *Collection[K]) lookup(id K) (hnsw.NodeRef, bool) {
	e, ok := c.ids.Get(idEntry[K]{id: id})
	return e.ref, ok
}

// Name returns the name used in logs and metrics.
func (c *Collection[K]) Name() string { return c.name }

// Dimension returns the fixed vector length of the collection.
func (c *Collection[K]) Dimension() int { return c.dimension }

// Params returns the index parameters, including the resolved seed.
func (c *Collection[K]) Params() hnsw.Params {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index.Params()
}

// Len returns the number of live records.
func (c *Collection[K]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ids.Len()
}

// IsEmpty reports whether the collection holds no live record.
func (c *Collection[K]) IsEmpty() bool { return c.Len() == 0 }

// Contains reports whether id is live.
func (c *Collection[K]) Contains(id K) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.lookup(id)
	return ok
}

// Get returns a copy of the record stored under id.
func (c *Collection[K]) Get(id K) (Record[K], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ref, ok := c.lookup(id)
	if !ok {
		return Record[K]{}, false
	}
	return c.record(id, ref), true
}

func (c *Collection[K]) record(id K, ref hnsw.NodeRef) Record[K] {
	return Record[K]{ID: id, Vector: slices.Clone(c.index.Vector(ref)), Data: c.index.Data(ref)}
}

// Range calls fn for every live record in ascending id order until fn returns false.
// fn runs under the read lock and must not modify the collection.
func (c *Collection[K]) Range(fn func(Record[K]) bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.ids.Scan(func(e idEntry[K]) bool {
		return fn(c.record(e.id, e.ref))
	})
}

// Insert adds a record. A nil data is stored as core.Null.
// It fails with core.ErrDuplicateID when id is live and with a
// *core.DimensionMismatchError when the vector has the wrong length.
func (c *Collection[K]) Insert(id K, vector []float32, data core.Metadata) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.insert(id, vector, data)
	c.observe("insert", err)
	return err
}

func (c *Collection[K]) insert(id K, vector []float32, data core.Metadata) error {
	if err := core.CheckDimension(vector, c.dimension); err != nil {
		return err
	}
	if _, ok := c.lookup(id); ok {
		return fmt.Errorf("%w: %v", core.ErrDuplicateID, id)
	}
	if data == nil {
		data = core.Null{}
	}
	ref, err := c.index.Insert(vector, data)
	if err != nil {
		return err
	}
	c.ids.Set(idEntry[K]{id: id, ref: ref})
	c.keys = append(c.keys, id)
	log.Debug().Msgf("Collection %q: inserted %v at slot %d", c.name, id, ref)
	return nil
}

// Delete tombstones the record under id and reports whether it was live.
// The id can be inserted again right away.
func (c *Collection[K]) Delete(id K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ok := c.delete(id)
	if ok {
		c.observe("delete", nil)
	} else {
		c.obs.Op("delete", metrics.OutcomeNotFound)
	}
	return ok
}

func (c *Collection[K]) delete(id K) bool {
	ref, ok := c.lookup(id)
	if !ok {
		return false
	}
	c.ids.Delete(idEntry[K]{id: id})
	var zero K
	c.keys[ref] = zero
	c.index.Delete(ref)
	log.Debug().Msgf("Collection %q: deleted %v at slot %d", c.name, id, ref)
	return true
}

// Update changes the vector and/or metadata of a live record. A nil vector or a
// nil data keeps the current one. Changing the vector reinserts the record, so
// its neighbors are selected afresh. It reports false when id is not live.
func (c *Collection[K]) Update(id K, vector []float32, data core.Metadata) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ok, err := c.update(id, vector, data)
	switch {
	case err != nil:
		c.obs.Op("update", metrics.OutcomeError)
	case !ok:
		c.obs.Op("update", metrics.OutcomeNotFound)
	default:
		c.observe("update", nil)
	}
	return ok, err
}

func (c *Collection[K]) update(id K, vector []float32, data core.Metadata) (bool, error) {
	ref, ok := c.lookup(id)
	if !ok {
		return false, nil
	}
	if vector == nil {
		if data != nil {
			c.index.SetData(ref, data)
		}
		return true, nil
	}
	if err := core.CheckDimension(vector, c.dimension); err != nil {
		return false, err
	}
	if data == nil {
		data = c.index.Data(ref)
	}
	c.delete(id)
	if err := c.insert(id, vector, data); err != nil {
		return false, err
	}
	return true, nil
}

// Search returns up to k records closest to query, ascending by distance.
func (c *Collection[K]) Search(query []float32, k int) ([]core.Neighbor[K], error) {
	return c.SearchWithEf(query, k, 0)
}

// SearchWithEf is Search with an explicit beam width. ef <= 0 uses the
// collection's ef_search; the effective width is never below k.
func (c *Collection[K]) SearchWithEf(query []float32, k, ef int) ([]core.Neighbor[K], error) {
	start := time.Now()
	c.mu.RLock()
	results, err := c.index.Search(query, k, ef)
	var out []core.Neighbor[K]
	if err == nil {
		out = make([]core.Neighbor[K], len(results))
		for i, r := range results {
			out[i] = core.Neighbor[K]{ID: c.keys[r.Ref], Distance: r.Distance, Data: c.index.Data(r.Ref)}
		}
	}
	c.mu.RUnlock()
	c.obs.Search(time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Stats returns counters describing the collection and its graph.
func (c *Collection[K]) Stats() core.IndexStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index.Stats()
}

// Verify checks the invariants of the graph and of the id mapping.
func (c *Collection[K]) Verify() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.index.Verify(); err != nil {
		return err
	}
	if len(c.keys) != c.index.Size() {
		return fmt.Errorf("key table has %d slots, index has %d", len(c.keys), c.index.Size())
	}
	if c.ids.Len() != c.index.Len() {
		return fmt.Errorf("%d ids map to %d live nodes", c.ids.Len(), c.index.Len())
	}
	var err error
	c.ids.Scan(func(e idEntry[K]) bool {
		if int(e.ref) >= len(c.keys) || c.index.IsDeleted(e.ref) || c.keys[e.ref] != e.id {
			err = fmt.Errorf("id %v maps to invalid slot %d", e.id, e.ref)
			return false
		}
		return true
	})
	return err
}

// Compact drops every tombstone from the graph and renumbers the slots.
// It returns the number of tombstones removed.
func (c *Collection[K]) Compact() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	before := c.index.Size()
	remap := c.index.Compact()

	keys := make([]K, c.index.Size())
	c.ids = btree.NewBTreeG[idEntry[K]](idLess[K])
	for old, ref := range remap {
		if ref == hnsw.InvalidRef {
			continue
		}
		keys[ref] = c.keys[old]
		c.ids.Set(idEntry[K]{id: keys[ref], ref: ref})
	}
	c.keys = keys
	c.observe("compact", nil)
	return before - len(keys)
}

// observe counts op and refreshes the size gauges. Callers hold the lock.
func (c *Collection[K]) observe(op string, err error) {
	if c.obs == nil {
		return
	}
	if err != nil {
		c.obs.Op(op, metrics.OutcomeError)
		return
	}
	c.obs.Op(op, metrics.OutcomeOK)
	c.obs.Size(c.index.Len(), c.index.Size()-c.index.Len())
}
