// Package grid maps a global problem onto the partitions of a simulated
// cluster. The decomposition is a 1-D split of the row space into equal
// contiguous blocks, one per partition, fixed for the lifetime of a solve.
package grid

import "fmt"

// A Face names a direction towards a neighboring partition.
type Face int

const (
	FaceLow  Face = iota // towards lower-ranked rows
	FaceHigh             // towards higher-ranked rows

	NumFaces = 2
)

// Geometry describes one partition's place in the global problem. It is
// immutable after construction.
type Geometry struct {
	// GlobalRows is the number of rows across all partitions.
	GlobalRows int

	// NumParts is the number of partitions.
	NumParts int

	// Rank identifies this partition, in [0, NumParts).
	Rank int

	localRows int
	neighbors [NumFaces]int
}

// NewGeometry builds the geometry for one partition.
//
// The row space must divide evenly across partitions; an uneven split is a
// configuration error and panics. This must be caught before a solve ever
// starts, so there is no error return to thread through the solver.
func NewGeometry(globalRows, numParts, rank int) *Geometry {
	if globalRows <= 0 || numParts <= 0 {
		panic(fmt.Sprintf("invalid problem shape: %d rows over %d partitions",
			globalRows, numParts))
	}
	if rank < 0 || rank >= numParts {
		panic(fmt.Sprintf("rank %d out of range [0, %d)", rank, numParts))
	}
	if globalRows%numParts != 0 {
		panic(fmt.Sprintf("uneven partitioning: %d rows over %d partitions",
			globalRows, numParts))
	}
	g := &Geometry{
		GlobalRows: globalRows,
		NumParts:   numParts,
		Rank:       rank,
		localRows:  globalRows / numParts,
	}
	g.neighbors[FaceLow] = rank - 1
	g.neighbors[FaceHigh] = rank + 1
	if g.neighbors[FaceHigh] >= numParts {
		g.neighbors[FaceHigh] = -1
	}
	return g
}

// LocalRows returns the number of rows this partition owns.
func (g *Geometry) LocalRows() int {
	return g.localRows
}

// FirstRow returns the global index of local row 0.
func (g *Geometry) FirstRow() int {
	return g.Rank * g.localRows
}

// OwnsRow reports whether the given global row lives on this partition.
func (g *Geometry) OwnsRow(global int) bool {
	return g.RankOfRow(global) == g.Rank
}

// RankOfRow returns the partition that owns a global row.
func (g *Geometry) RankOfRow(global int) int {
	if global < 0 || global >= g.GlobalRows {
		panic(fmt.Sprintf("global row %d out of range [0, %d)", global, g.GlobalRows))
	}
	return global / g.localRows
}

// LocalToGlobal converts a local owned-row index to its global index.
func (g *Geometry) LocalToGlobal(local int) int {
	if local < 0 || local >= g.localRows {
		panic(fmt.Sprintf("local row %d out of range [0, %d)", local, g.localRows))
	}
	return g.FirstRow() + local
}

// GlobalToLocal converts a global row owned by this partition to its local
// index.
func (g *Geometry) GlobalToLocal(global int) int {
	if !g.OwnsRow(global) {
		panic(fmt.Sprintf("global row %d is not owned by rank %d", global, g.Rank))
	}
	return global - g.FirstRow()
}

// Neighbor returns the rank across the given face, or -1 at the boundary of
// the row space.
func (g *Geometry) Neighbor(f Face) int {
	return g.neighbors[f]
}

// Coarsen returns the geometry of the same partition on a grid with half
// the rows. The coarse row space must still split evenly.
func (g *Geometry) Coarsen() *Geometry {
	if g.GlobalRows%2 != 0 {
		panic(fmt.Sprintf("cannot coarsen %d rows", g.GlobalRows))
	}
	return NewGeometry(g.GlobalRows/2, g.NumParts, g.Rank)
}
