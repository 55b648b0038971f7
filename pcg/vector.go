// Package pcg implements a multigrid-preconditioned conjugate-gradient
// solver over a row-partitioned sparse matrix. Each partition runs as one
// goroutine on a virtual-time executor; ghost values cross partitions by
// explicit halo exchange and scalar reductions travel a combine tree as
// deferred values.
package pcg

import (
	"fmt"

	"github.com/lsandvik/dist-cg/grid"
)

// A Vector is one partition's slice of a distributed vector.
//
// The first LocalRows entries are exclusively owned and writable by this
// partition. Entries beyond that, up to Cols, are ghost slots: read-only
// copies of neighbor-owned values that are only valid after a halo
// exchange.
type Vector struct {
	Geom *grid.Geometry

	// Rows is the owned length, Cols the owned length plus ghost slots.
	Rows int
	Cols int

	data []float64
}

// NewVector allocates a vector with the given number of ghost slots.
func NewVector(geom *grid.Geometry, ghosts int) *Vector {
	rows := geom.LocalRows()
	return &Vector{
		Geom: geom,
		Rows: rows,
		Cols: rows + ghosts,
		data: make([]float64, rows+ghosts),
	}
}

// Owned borrows the exclusively-owned segment for writing. Ghost slots are
// not reachable through this view, which keeps stencil writers honest.
func (v *Vector) Owned() []float64 {
	return v.data[:v.Rows]
}

// Full borrows the whole local segment, ghosts included, for reading.
// Callers must not write through this view.
func (v *Vector) Full() []float64 {
	return v.data
}

// ghost borrows the ghost region for the halo exchange to refresh.
func (v *Vector) ghost() []float64 {
	return v.data[v.Rows:]
}

// Zero clears the owned segment.
func (v *Vector) Zero() {
	for i := range v.Owned() {
		v.data[i] = 0
	}
}

// Fill sets every owned entry to val.
func (v *Vector) Fill(val float64) {
	for i := range v.Owned() {
		v.data[i] = val
	}
}

// CopyVector duplicates src's owned and ghost contents into dst, as far as
// dst has room for ghosts. The owned lengths must agree; a mismatch is a
// configuration error that must not survive setup.
func CopyVector(src, dst *Vector) {
	if src.Rows != dst.Rows {
		panic(fmt.Sprintf("copy between mismatched partitions: %d vs %d rows",
			src.Rows, dst.Rows))
	}
	n := src.Cols
	if dst.Cols < n {
		n = dst.Cols
	}
	copy(dst.data[:n], src.data[:n])
}
