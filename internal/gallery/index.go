package gallery

import (
	"fmt"

	"github.com/coder/hnsw"
)

// Index proposes the nearest gallery entry for a query embedding. The
// gallery recomputes the exact distance for the returned position, so an
// approximate index never changes acceptance-threshold semantics, it can
// only propose a different (near-optimal) candidate.
type Index interface {
	// Nearest returns the position of the closest entry, or ok=false for
	// an empty index.
	Nearest(query []float32) (pos int, ok bool)
}

func newIndex(kind string, entries []Entry) (Index, error) {
	switch kind {
	case "", "exhaustive":
		return newExhaustiveIndex(entries), nil
	case "hnsw":
		return newHNSWIndex(entries), nil
	default:
		return nil, fmt.Errorf("unknown gallery index %q", kind)
	}
}

// exhaustiveIndex scans every entry. O(gallery size) per query, exact, and
// deterministic: ties at the minimum distance keep the first entry in
// gallery order.
type exhaustiveIndex struct {
	entries []Entry
}

func newExhaustiveIndex(entries []Entry) *exhaustiveIndex {
	return &exhaustiveIndex{entries: entries}
}

func (x *exhaustiveIndex) Nearest(query []float32) (int, bool) {
	if len(x.entries) == 0 {
		return 0, false
	}

	best := 0
	bestDist := Distance(query, x.entries[0].Embedding)
	for i := 1; i < len(x.entries); i++ {
		// Strict less-than keeps the earlier entry on equal distance.
		if d := Distance(query, x.entries[i].Embedding); d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best, true
}

// hnswIndex is an approximate alternative for large galleries.
type hnswIndex struct {
	graph *hnsw.Graph[int]
	size  int
}

func newHNSWIndex(entries []Entry) *hnswIndex {
	g := hnsw.NewGraph[int]()
	g.Distance = hnsw.EuclideanDistance

	for i, e := range entries {
		g.Add(hnsw.MakeNode(i, e.Embedding))
	}

	return &hnswIndex{graph: g, size: len(entries)}
}

func (x *hnswIndex) Nearest(query []float32) (int, bool) {
	if x.size == 0 {
		return 0, false
	}

	neighbors := x.graph.Search(query, 1)
	if len(neighbors) == 0 {
		return 0, false
	}
	return neighbors[0].Key, true
}
