package hnsw

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/patrikhermansson/hanndb/core"
	"github.com/rs/zerolog/log"
)

// serializedNode is used to store a Node during gob encoding/decoding.
type serializedNode struct {
	Vector    []float32
	Data      core.Metadata
	Level     int
	Neighbors [][]Edge
	Deleted   bool
}

// serializedIndex is the serializable version of the Index.
type serializedIndex struct {
	Dimension int
	Params    Params
	Seed      int64
	Draws     uint64
	Entry     NodeRef
	HasEntry  bool
	TopLevel  int
	Nodes     []serializedNode
}

// GobEncode serializes the whole graph, tombstones included.
func (h *Index) GobEncode() ([]byte, error) {
	si := serializedIndex{
		Dimension: h.dimension,
		Params:    h.params,
		Seed:      h.seed,
		Draws:     h.draws,
		Entry:     h.entry,
		HasEntry:  h.hasEntry,
		TopLevel:  h.topLevel,
		Nodes:     make([]serializedNode, len(h.nodes)),
	}
	for i, n := range h.nodes {
		si.Nodes[i] = serializedNode{
			Vector:    n.Vector,
			Data:      n.Data,
			Level:     n.Level,
			Neighbors: n.Neighbors,
			Deleted:   n.Deleted,
		}
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(si); err != nil {
		log.Error().Err(err).Msg("Failed to encode HNSW index")
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode restores a graph written by GobEncode. Every structural problem
// is reported as core.ErrCorruptState and leaves h untouched.
func (h *Index) GobDecode(data []byte) error {
	var si serializedIndex
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&si); err != nil {
		log.Error().Err(err).Msg("Failed to decode HNSW index")
		return fmt.Errorf("%w: %w", core.ErrCorruptState, err)
	}
	if err := si.validate(); err != nil {
		log.Error().Err(err).Msg("Rejected HNSW index snapshot")
		return err
	}

	restored := Index{
		dimension: si.Dimension,
		params:    si.Params,
		nodes:     make([]*Node, len(si.Nodes)),
		entry:     si.Entry,
		hasEntry:  si.HasEntry,
		topLevel:  si.TopLevel,
		deleted:   roaring.New(),
	}
	for i, sn := range si.Nodes {
		neighbors := make([][]Edge, sn.Level+1)
		copy(neighbors, sn.Neighbors)
		restored.nodes[i] = &Node{
			Vector:    sn.Vector,
			Data:      sn.Data,
			Level:     sn.Level,
			Neighbors: neighbors,
			Deleted:   sn.Deleted,
		}
		if sn.Deleted {
			restored.deleted.Add(uint32(i))
		} else {
			restored.live++
		}
	}
	restored.rebuildInbound()
	restored.init(si.Seed, si.Draws)

	*h = restored
	log.Info().Msgf("Restored HNSW index with %d live nodes and %d tombstones", h.live, h.deleted.GetCardinality())
	return nil
}

// validate checks the structural invariants of a decoded snapshot.
func (si *serializedIndex) validate() error {
	if si.Dimension <= 0 {
		return core.Corrupt("dimension must be positive, got %d", si.Dimension)
	}
	if err := si.Params.Validate(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrCorruptState, err)
	}
	if si.Seed == 0 {
		return core.Corrupt("missing level sampling seed")
	}
	if len(si.Nodes) > int(InvalidRef) {
		return core.Corrupt("too many nodes: %d", len(si.Nodes))
	}

	n := NodeRef(len(si.Nodes))
	topLive := -1
	for i, sn := range si.Nodes {
		if len(sn.Vector) != si.Dimension {
			return core.Corrupt("node %d has dimension %d, want %d", i, len(sn.Vector), si.Dimension)
		}
		if sn.Level < 0 || sn.Level > si.Params.MaxLevel {
			return core.Corrupt("node %d has level %d outside [0, %d]", i, sn.Level, si.Params.MaxLevel)
		}
		if len(sn.Neighbors) > sn.Level+1 {
			return core.Corrupt("node %d has %d neighbor layers at level %d", i, len(sn.Neighbors), sn.Level)
		}
		if !sn.Deleted {
			topLive = max(topLive, sn.Level)
		}
		for l, edges := range sn.Neighbors {
			if !sn.Deleted && len(edges) > si.capacity(l) {
				return core.Corrupt("node %d has %d neighbors at layer %d", i, len(edges), l)
			}
			for _, e := range edges {
				switch {
				case e.Ref >= n:
					return core.Corrupt("node %d links to missing node %d", i, e.Ref)
				case e.Ref == NodeRef(i):
					return core.Corrupt("node %d links to itself", i)
				case si.Nodes[e.Ref].Level < l:
					return core.Corrupt("node %d links to node %d above its level at layer %d", i, e.Ref, l)
				case !sn.Deleted && si.Nodes[e.Ref].Deleted:
					return core.Corrupt("live node %d links to deleted node %d", i, e.Ref)
				}
			}
		}
	}

	if !si.HasEntry {
		if topLive != -1 || si.TopLevel != -1 {
			return core.Corrupt("missing entry point with live nodes present")
		}
		return nil
	}
	switch {
	case si.Entry >= n:
		return core.Corrupt("entry point %d out of range", si.Entry)
	case si.Nodes[si.Entry].Deleted:
		return core.Corrupt("entry point %d is deleted", si.Entry)
	case si.Nodes[si.Entry].Level != si.TopLevel || si.TopLevel != topLive:
		return core.Corrupt("entry point level %d does not match top level %d", si.Nodes[si.Entry].Level, si.TopLevel)
	}
	return nil
}

func (si *serializedIndex) capacity(level int) int {
	if level == 0 {
		return si.Params.M0
	}
	return si.Params.M
}
