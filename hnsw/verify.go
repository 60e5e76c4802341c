package hnsw

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// Verify checks the graph invariants: neighbor capacities, layer nesting, no live
// edge to a tombstone, inbound sets matching out-edges, and a live entry point
// on the top level. It returns the first violation found.
func (h *Index) Verify() error {
	topLive := -1
	live := 0
	for i, n := range h.nodes {
		ref := NodeRef(i)
		if n.Deleted != h.deleted.Contains(uint32(i)) {
			return fmt.Errorf("node %d: tombstone bitmap out of sync", i)
		}
		if !n.Deleted {
			live++
			topLive = max(topLive, n.Level)
		}
		for l, edges := range n.Neighbors {
			if !n.Deleted && len(edges) > h.capacity(l) {
				return fmt.Errorf("node %d: %d neighbors at layer %d exceed %d", i, len(edges), l, h.capacity(l))
			}
			seen := roaring.New()
			for _, e := range edges {
				to := h.nodes[e.Ref]
				switch {
				case e.Ref == ref:
					return fmt.Errorf("node %d: self loop at layer %d", i, l)
				case !seen.CheckedAdd(uint32(e.Ref)):
					return fmt.Errorf("node %d: duplicate edge to %d at layer %d", i, e.Ref, l)
				case to.Level < l:
					return fmt.Errorf("node %d: edge to %d at layer %d above its level %d", i, e.Ref, l, to.Level)
				case !n.Deleted && to.Deleted:
					return fmt.Errorf("node %d: live node links to tombstone %d at layer %d", i, e.Ref, l)
				case !to.inbound[l].Contains(uint32(i)):
					return fmt.Errorf("node %d: edge to %d at layer %d missing from inbound set", i, e.Ref, l)
				}
			}
		}
		for l, in := range n.inbound {
			it := in.Iterator()
			for it.HasNext() {
				from := NodeRef(it.Next())
				if !h.nodes[from].hasEdge(l, ref) {
					return fmt.Errorf("node %d: stale inbound entry %d at layer %d", i, from, l)
				}
			}
		}
	}

	if live != h.live {
		return fmt.Errorf("live count %d, want %d", h.live, live)
	}
	if !h.hasEntry {
		if live > 0 || h.topLevel != -1 {
			return fmt.Errorf("no entry point with %d live nodes", live)
		}
		return nil
	}
	ep := h.nodes[h.entry]
	if ep.Deleted || ep.Level != h.topLevel || h.topLevel != topLive {
		return fmt.Errorf("entry point %d (level %d, deleted %t) does not match top level %d",
			h.entry, ep.Level, ep.Deleted, topLive)
	}
	return nil
}

// Reachable returns the live nodes reachable at layer 0 from the entry point.
// Tombstones are traversed but not counted.
func (h *Index) Reachable() int {
	if !h.hasEntry {
		return 0
	}
	visited := roaring.BitmapOf(uint32(h.entry))
	stack := []NodeRef{h.entry}
	count := 0
	for len(stack) > 0 {
		ref := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !h.nodes[ref].Deleted {
			count++
		}
		for _, e := range h.nodes[ref].Neighbors[0] {
			if visited.CheckedAdd(uint32(e.Ref)) {
				stack = append(stack, e.Ref)
			}
		}
	}
	return count
}
