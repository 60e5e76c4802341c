package hnsw

import (
	"container/heap"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/patrikhermansson/hanndb/core"
)

// Result is one search hit.
type Result struct {
	Ref      NodeRef
	Distance float64
}

// Search returns up to k live nodes closest to query, ascending by distance.
// The beam width is max(ef, k); ef <= 0 uses the EfSearch parameter.
func (h *Index) Search(query []float32, k, ef int) ([]Result, error) {
	if err := core.CheckDimension(query, h.dimension); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, core.ErrInvalidK
	}
	if !h.hasEntry {
		return nil, nil
	}
	if ef <= 0 {
		ef = h.params.EfSearch
	}
	ef = max(ef, k)

	// Greedy search down from the top layer.
	cur := candidate{h.entry, h.distance(query, h.nodes[h.entry].Vector)}
	for l := h.topLevel; l > 0; l-- {
		cur = h.greedyClosest(query, cur, l)
	}

	found := h.searchLayer(query, []candidate{cur}, 0, ef)
	if len(found) > k {
		found = found[:k]
	}
	results := make([]Result, len(found))
	for i, c := range found {
		results[i] = Result{Ref: c.ref, Distance: c.dist}
	}
	return results, nil
}

// greedyClosest walks level from cur, moving to any neighbor strictly closer to
// query, until no neighbor improves.
func (h *Index) greedyClosest(query []float32, cur candidate, level int) candidate {
	changed := true
	for changed {
		changed = false
		for _, e := range h.nodes[cur.ref].Neighbors[level] {
			if d := h.distance(query, h.nodes[e.Ref].Vector); d < cur.dist {
				cur = candidate{e.Ref, d}
				changed = true
			}
		}
	}
	return cur
}

// searchLayer performs a best-first search at a given level from the entry
// candidates and returns up to ef live nodes, closest first. A tombstone in
// entries is expanded but never enters the result set. Live nodes hold no
// edges to tombstones, so queries never reach one; repair is the only caller
// that seeds the search with a deleted node, which then bridges to its old
// neighbors.
func (h *Index) searchLayer(query []float32, entries []candidate, level, ef int) []candidate {
	visited := roaring.New()
	candQueue := make(candidateMinHeap, 0, ef)
	resultQueue := make(candidateMaxHeap, 0, ef+1)

	for _, c := range entries {
		if !visited.CheckedAdd(uint32(c.ref)) {
			continue
		}
		candQueue = append(candQueue, c)
		if !h.nodes[c.ref].Deleted {
			resultQueue = append(resultQueue, c)
		}
	}
	heap.Init(&candQueue)
	heap.Init(&resultQueue)
	for resultQueue.Len() > ef {
		heap.Pop(&resultQueue)
	}

	// Explore candidates while there are promising ones.
	for candQueue.Len() > 0 {
		current := heap.Pop(&candQueue).(candidate)
		if resultQueue.Len() >= ef && closer(resultQueue[0], current) {
			break
		}
		node := h.nodes[current.ref]
		if level > node.Level {
			continue
		}
		for _, e := range node.Neighbors[level] {
			if !visited.CheckedAdd(uint32(e.Ref)) {
				continue
			}
			next := candidate{e.Ref, h.distance(query, h.nodes[e.Ref].Vector)}
			if resultQueue.Len() >= ef && !closer(next, resultQueue[0]) {
				continue
			}
			heap.Push(&candQueue, next)
			if h.nodes[e.Ref].Deleted {
				continue
			}
			heap.Push(&resultQueue, next)
			if resultQueue.Len() > ef {
				heap.Pop(&resultQueue)
			}
		}
	}

	// Collect and sort results.
	results := make([]candidate, resultQueue.Len())
	for i := len(results) - 1; i >= 0; i-- {
		results[i] = heap.Pop(&resultQueue).(candidate)
	}
	return results
}
