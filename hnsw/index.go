package hnsw

import (
	"fmt"
	"math"
	"math/rand"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/patrikhermansson/hanndb/core"
	"github.com/rs/zerolog/log"
)

// Index is an HNSW graph over an arena of nodes.
//
// Index does no locking of its own. Searches may run concurrently with each other,
// but every mutation must be exclusive; collection.Collection enforces this.
type Index struct {
	dimension int               // dimension of the vectors
	params    Params            // fixed tunables
	distance  core.DistanceFunc // function to calculate distance between vectors
	mL        float64           // level normalization factor, 1/ln(M)

	nodes    []*Node         // arena indexed by NodeRef
	entry    NodeRef         // starting point for searches
	hasEntry bool            // false iff no live node exists
	topLevel int             // level of the entry point, -1 when empty
	deleted  *roaring.Bitmap // tombstoned slots
	live     int             // number of live nodes

	seed  int64      // resolved level sampling seed
	rng   *rand.Rand // level sampling source
	draws uint64     // number of values drawn from rng
}

// New creates an empty index for vectors of the given dimension.
// Zero fields of params take their defaults.
func New(dimension int, params Params) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", core.ErrInvalidParams, dimension)
	}
	params = params.Normalize()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	seed := params.Seed
	if seed == 0 {
		seed = core.GetSeed()
	}
	h := &Index{
		dimension: dimension,
		params:    params,
		topLevel:  -1,
		deleted:   roaring.New(),
	}
	h.init(seed, 0)
	log.Info().Msgf("Creating new HNSW index with dimension=%d, M=%d, M0=%d, ef_construction=%d, ef_search=%d, distance=%s, selection=%s",
		dimension, params.M, params.M0, params.EfConstruction, params.EfSearch, params.Distance, params.Selection)
	return h, nil
}

// init derives the runtime fields from params and positions the level source
// after draws values.
func (h *Index) init(seed int64, draws uint64) {
	h.distance = core.Distances[h.params.Distance]
	h.mL = 1 / math.Log(float64(h.params.M))
	h.seed = seed
	h.rng = rand.New(rand.NewSource(seed))
	for i := uint64(0); i < draws; i++ {
		h.rng.Float64()
	}
	h.draws = draws
}

// Dimension returns the vector length accepted by the index.
func (h *Index) Dimension() int { return h.dimension }

// Params returns the resolved parameters. Seed holds the seed actually in use.
func (h *Index) Params() Params {
	p := h.params
	p.Seed = h.seed
	return p
}

// Len returns the number of live nodes.
func (h *Index) Len() int { return h.live }

// Size returns the number of arena slots, tombstones included.
func (h *Index) Size() int { return len(h.nodes) }

// TopLevel returns the level of the entry point, or -1 when the index holds no live node.
func (h *Index) TopLevel() int { return h.topLevel }

// EntryPoint returns the current entry point.
func (h *Index) EntryPoint() (NodeRef, bool) { return h.entry, h.hasEntry }

// Vector returns the stored vector of ref. The slice must not be modified.
func (h *Index) Vector(ref NodeRef) []float32 { return h.nodes[ref].Vector }

// Data returns the metadata stored with ref.
func (h *Index) Data(ref NodeRef) core.Metadata { return h.nodes[ref].Data }

// Level returns the top layer of ref.
func (h *Index) Level(ref NodeRef) int { return h.nodes[ref].Level }

// IsDeleted reports whether ref is a tombstone.
func (h *Index) IsDeleted(ref NodeRef) bool { return h.nodes[ref].Deleted }

// Neighbors returns the out-neighbors of ref at level, closest first.
func (h *Index) Neighbors(ref NodeRef, level int) []NodeRef {
	n := h.nodes[ref]
	if level < 0 || level > n.Level {
		return nil
	}
	out := make([]NodeRef, len(n.Neighbors[level]))
	for i, e := range n.Neighbors[level] {
		out[i] = e.Ref
	}
	return out
}

// SetData replaces the metadata of a live node. It has no effect on the graph.
func (h *Index) SetData(ref NodeRef, data core.Metadata) bool {
	if int(ref) >= len(h.nodes) || h.nodes[ref].Deleted {
		return false
	}
	h.nodes[ref].Data = data
	return true
}

// capacity returns the maximum neighbor count at the given layer.
func (h *Index) capacity(level int) int {
	if level == 0 {
		return h.params.M0
	}
	return h.params.M
}

// randomLevel samples floor(-ln(U) * mL), clamped to MaxLevel.
func (h *Index) randomLevel() int {
	r := h.rng.Float64()
	h.draws++
	if r == 0 {
		return h.params.MaxLevel
	}
	level := int(math.Floor(-math.Log(r) * h.mL))
	if level > h.params.MaxLevel {
		level = h.params.MaxLevel
	}
	return level
}

// Insert adds a vector with its metadata and returns the new slot.
// The vector is copied. A dimension mismatch fails before the graph is touched.
func (h *Index) Insert(vector []float32, data core.Metadata) (NodeRef, error) {
	if err := core.CheckDimension(vector, h.dimension); err != nil {
		return 0, err
	}
	if len(h.nodes) >= int(InvalidRef) {
		return 0, fmt.Errorf("index is full: %d slots in use", len(h.nodes))
	}

	level := h.randomLevel()
	ref := NodeRef(len(h.nodes))
	node := newNode(slices.Clone(vector), data, level)
	h.nodes = append(h.nodes, node)
	h.live++

	// If index is empty, set this node as entry point.
	if !h.hasEntry {
		h.entry = ref
		h.hasEntry = true
		h.topLevel = level
		log.Debug().Msgf("Inserted node %d at level %d as entry point", ref, level)
		return ref, nil
	}

	// Navigate the graph from the top level down to the node's level.
	cur := candidate{h.entry, h.distance(node.Vector, h.nodes[h.entry].Vector)}
	for l := h.topLevel; l > level; l-- {
		cur = h.greedyClosest(node.Vector, cur, l)
	}

	entries := []candidate{cur}
	for l := min(level, h.topLevel); l >= 0; l-- {
		found := h.searchLayer(node.Vector, entries, l, h.params.EfConstruction)
		selected := h.selectNeighbors(found, h.capacity(l))
		for _, s := range selected {
			h.addEdge(ref, s.ref, s.dist, l)
			h.link(s.ref, ref, s.dist, l)
		}
		if len(found) > 0 {
			entries = found
		}
	}

	// Update entry point if the new node has a higher level.
	if level > h.topLevel {
		h.entry = ref
		h.topLevel = level
	}
	log.Debug().Msgf("Inserted node %d at level %d", ref, level)
	return ref, nil
}

// addEdge records from -> to at level without any capacity check.
func (h *Index) addEdge(from, to NodeRef, dist float64, level int) {
	h.nodes[from].Neighbors[level] = append(h.nodes[from].Neighbors[level], Edge{Ref: to, Dist: dist})
	h.nodes[to].inbound[level].Add(uint32(from))
}

// dropEdge removes from -> to at level.
func (h *Index) dropEdge(from, to NodeRef, level int) {
	if h.nodes[from].removeEdge(level, to) {
		h.nodes[to].inbound[level].Remove(uint32(from))
	}
}

// link adds from -> to at level and reselects the neighbors of from when it overflows.
func (h *Index) link(from, to NodeRef, dist float64, level int) {
	n := h.nodes[from]
	if n.hasEdge(level, to) {
		return
	}
	h.addEdge(from, to, dist, level)
	if len(n.Neighbors[level]) > h.capacity(level) {
		h.shrink(from, level)
	}
}

// shrink reselects the neighbors of ref at level down to capacity.
func (h *Index) shrink(ref NodeRef, level int) {
	n := h.nodes[ref]
	cands := make([]candidate, len(n.Neighbors[level]))
	for i, e := range n.Neighbors[level] {
		cands[i] = candidate{e.Ref, e.Dist}
	}
	sortCandidates(cands)
	h.setNeighbors(ref, level, h.selectNeighbors(cands, h.capacity(level)))
}

// setNeighbors replaces the out-edges of ref at level, keeping inbound sets in sync.
func (h *Index) setNeighbors(ref NodeRef, level int, selected []candidate) {
	n := h.nodes[ref]
	for _, e := range n.Neighbors[level] {
		h.nodes[e.Ref].inbound[level].Remove(uint32(ref))
	}
	edges := make([]Edge, len(selected))
	for i, s := range selected {
		edges[i] = Edge{Ref: s.ref, Dist: s.dist}
		h.nodes[s.ref].inbound[level].Add(uint32(ref))
	}
	n.Neighbors[level] = edges
}

// Stats returns counters describing the graph.
func (h *Index) Stats() core.IndexStats {
	edges := 0
	for _, n := range h.nodes {
		for _, l := range n.Neighbors {
			edges += len(l)
		}
	}
	return core.IndexStats{
		Count:      h.live,
		Tombstones: int(h.deleted.GetCardinality()),
		Dimension:  h.dimension,
		Distance:   h.params.Distance,
		TopLevel:   h.topLevel,
		M:          h.params.M,
		M0:         h.params.M0,
		Edges:      edges,
	}
}
