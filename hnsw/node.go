package hnsw

import (
	"math"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/patrikhermansson/hanndb/core"
)

// NodeRef is the arena slot of a node. Slots are assigned in insertion order and never reused.
type NodeRef uint32

// InvalidRef marks a slot that no longer exists, for example in a compaction remap.
const InvalidRef NodeRef = math.MaxUint32

// Edge is a directed link to another node with the cached distance between the two vectors.
type Edge struct {
	Ref  NodeRef
	Dist float64
}

// Node represents a vector in the HNSW graph along with its links.
type Node struct {
	Vector    []float32     // vector data
	Data      core.Metadata // caller payload
	Level     int           // highest layer the node takes part in
	Neighbors [][]Edge      // out-edges per layer, len(Neighbors) == Level+1
	Deleted   bool          // tombstone flag

	// inbound[l] holds every node with an edge to this node at layer l.
	inbound []*roaring.Bitmap
}

func newNode(vector []float32, data core.Metadata, level int) *Node {
	n := &Node{
		Vector:    vector,
		Data:      data,
		Level:     level,
		Neighbors: make([][]Edge, level+1),
	}
	n.resetInbound()
	return n
}

func (n *Node) resetInbound() {
	n.inbound = make([]*roaring.Bitmap, n.Level+1)
	for l := range n.inbound {
		n.inbound[l] = roaring.New()
	}
}

// hasEdge reports whether n links to ref at the given layer.
func (n *Node) hasEdge(level int, ref NodeRef) bool {
	for _, e := range n.Neighbors[level] {
		if e.Ref == ref {
			return true
		}
	}
	return false
}

// removeEdge drops the edge to ref at the given layer and reports whether it existed.
func (n *Node) removeEdge(level int, ref NodeRef) bool {
	edges := n.Neighbors[level]
	for i, e := range edges {
		if e.Ref == ref {
			n.Neighbors[level] = append(edges[:i], edges[i+1:]...)
			return true
		}
	}
	return false
}
