package hnsw

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/rs/zerolog/log"
)

// Delete tombstones ref and repairs the live nodes that linked to it.
// It reports false when ref is out of range or already deleted.
//
// The tombstone keeps its own out-edges and its vector so that it can still
// bridge searches until Compact removes it.
func (h *Index) Delete(ref NodeRef) bool {
	if int(ref) >= len(h.nodes) || h.nodes[ref].Deleted {
		return false
	}
	node := h.nodes[ref]
	node.Deleted = true
	h.deleted.Add(uint32(ref))
	h.live--

	repaired := 0
	for l := 0; l <= node.Level; l++ {
		for _, owner := range node.inbound[l].ToArray() {
			o := NodeRef(owner)
			if h.nodes[o].Deleted {
				continue
			}
			h.dropEdge(o, ref, l)
			h.repair(o, ref, l)
			repaired++
		}
	}

	if h.entry == ref {
		h.promoteEntryPoint()
	}
	log.Debug().Msgf("Deleted node %d, repaired %d neighbor lists", ref, repaired)
	return true
}

// repair refills the neighbor list of owner at level after losing the edge to
// removed. The search starts from the remaining neighbors and from the removed
// node itself, whose edges still reach the region it used to connect.
func (h *Index) repair(owner, removed NodeRef, level int) {
	o := h.nodes[owner]
	entries := make([]candidate, 0, len(o.Neighbors[level])+1)
	for _, e := range o.Neighbors[level] {
		entries = append(entries, candidate{e.Ref, e.Dist})
	}
	entries = append(entries, candidate{removed, h.distance(o.Vector, h.nodes[removed].Vector)})

	found := h.searchLayer(o.Vector, entries, level, h.params.EfConstruction)

	pool := make([]candidate, 0, len(found)+len(o.Neighbors[level]))
	seen := roaring.BitmapOf(uint32(owner))
	for _, e := range o.Neighbors[level] {
		if seen.CheckedAdd(uint32(e.Ref)) {
			pool = append(pool, candidate{e.Ref, e.Dist})
		}
	}
	for _, c := range found {
		if seen.CheckedAdd(uint32(c.ref)) {
			pool = append(pool, c)
		}
	}
	sortCandidates(pool)

	previous := roaring.New()
	for _, e := range o.Neighbors[level] {
		previous.Add(uint32(e.Ref))
	}
	selected := h.selectNeighbors(pool, h.capacity(level))
	h.setNeighbors(owner, level, selected)

	// New neighbors link back so the repaired region stays reachable from both sides.
	for _, s := range selected {
		if !previous.Contains(uint32(s.ref)) {
			h.link(s.ref, owner, s.dist, level)
		}
	}
}

// promoteEntryPoint picks the live node with the highest level, lowest slot first.
func (h *Index) promoteEntryPoint() {
	h.hasEntry = false
	h.topLevel = -1
	for i, n := range h.nodes {
		if n.Deleted || n.Level <= h.topLevel {
			continue
		}
		h.entry = NodeRef(i)
		h.hasEntry = true
		h.topLevel = n.Level
	}
	if h.hasEntry {
		log.Debug().Msgf("Promoted node %d at level %d to entry point", h.entry, h.topLevel)
	} else {
		h.entry = 0
		log.Debug().Msg("Index has no live nodes left")
	}
}

// Compact drops every tombstone from the arena. Live nodes keep their relative
// order, so ties still resolve by insertion order. The returned slice maps each
// old slot to its new slot, or to InvalidRef for removed tombstones.
func (h *Index) Compact() []NodeRef {
	remap := make([]NodeRef, len(h.nodes))
	kept := make([]*Node, 0, h.live)
	for i, n := range h.nodes {
		if n.Deleted {
			remap[i] = InvalidRef
			continue
		}
		remap[i] = NodeRef(len(kept))
		kept = append(kept, n)
	}

	for _, n := range kept {
		for l, edges := range n.Neighbors {
			out := edges[:0]
			for _, e := range edges {
				if to := remap[e.Ref]; to != InvalidRef {
					out = append(out, Edge{Ref: to, Dist: e.Dist})
				}
			}
			n.Neighbors[l] = out
		}
	}

	removed := len(h.nodes) - len(kept)
	h.nodes = kept
	h.rebuildInbound()
	h.deleted.Clear()
	if h.hasEntry {
		h.entry = remap[h.entry]
	}
	log.Info().Msgf("Compacted HNSW index: removed %d tombstones, %d nodes remain", removed, len(kept))
	return remap
}

// rebuildInbound recomputes every inbound set from the out-edges.
func (h *Index) rebuildInbound() {
	for _, n := range h.nodes {
		n.resetInbound()
	}
	for i, n := range h.nodes {
		for l, edges := range n.Neighbors {
			for _, e := range edges {
				h.nodes[e.Ref].inbound[l].Add(uint32(i))
			}
		}
	}
}
