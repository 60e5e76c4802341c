package core

// Store is the record-level surface of an embeddable vector collection.
// Implementations accept many concurrent readers but serialize writers.
type Store[K comparable] interface {

	// Insert adds a record. It fails with ErrDuplicateID or ErrDimensionMismatch.
	Insert(id K, vector []float32, data Metadata) error

	// Delete tombstones the record with the given id and reports whether it was live.
	Delete(id K) bool

	// Update replaces the vector and/or metadata of a live record. A nil vector or nil
	// metadata leaves that part unchanged. It reports false when the id is unknown.
	Update(id K, vector []float32, data Metadata) (bool, error)

	// Search returns up to k records nearest to query, ascending by distance.
	Search(query []float32, k int) ([]Neighbor[K], error)

	// Stats returns information about the collection, such as count and dimensionality.
	Stats() IndexStats
}

// Neighbor holds a record id, its distance to the query and its metadata.
type Neighbor[K comparable] struct {
	ID       K
	Distance float64
	Data     Metadata
}

// IndexStats contains information about an index.
type IndexStats struct {
	Count      int    // live records
	Tombstones int    // deleted records still present as graph bridges
	Dimension  int    // dimensionality of vectors
	Distance   string // distance metric name
	TopLevel   int    // highest populated layer, -1 when empty
	M          int    // neighbors per node above layer 0
	M0         int    // neighbors per node at layer 0
	Edges      int    // directed edges over all layers
}
