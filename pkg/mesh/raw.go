package mesh

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// BoundsError reports an inconsistent raw mesh: an index past the end of the
// position list, or a buffer whose length is not a whole number of triangles.
type BoundsError struct {
	Index  int // position in Cells, or -1 for a length error
	Value  int
	Limit  int
	Reason string
}

func (e *BoundsError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("mesh: %s (length %d)", e.Reason, e.Value)
	}
	return fmt.Sprintf("mesh: cell %d references vertex %d, only %d vertices", e.Index, e.Value, e.Limit)
}

// RawMesh is extracted geometry before centering and normal estimation.
// When Indexed is set, Cells holds three vertex indices per triangle;
// otherwise Cells is empty and every consecutive position triple is one
// triangle.
type RawMesh struct {
	Positions []r3.Vec
	Cells     []uint32
	Indexed   bool
}

// TriangleCount returns the number of triangles in either representation.
func (m *RawMesh) TriangleCount() int {
	if m.Indexed {
		return len(m.Cells) / 3
	}
	return len(m.Positions) / 3
}

// IsEmpty reports whether the mesh holds no triangles.
func (m *RawMesh) IsEmpty() bool {
	return m.TriangleCount() == 0
}

// Validate checks the representation invariants.
func (m *RawMesh) Validate() error {
	if !m.Indexed {
		if len(m.Cells) != 0 {
			return &BoundsError{Index: -1, Value: len(m.Cells), Reason: "flat mesh carries cells"}
		}
		if len(m.Positions)%3 != 0 {
			return &BoundsError{Index: -1, Value: len(m.Positions), Reason: "flat position count not a multiple of 3"}
		}
		return nil
	}
	if len(m.Cells)%3 != 0 {
		return &BoundsError{Index: -1, Value: len(m.Cells), Reason: "cell count not a multiple of 3"}
	}
	for i, c := range m.Cells {
		if int(c) >= len(m.Positions) {
			return &BoundsError{Index: i, Value: int(c), Limit: len(m.Positions)}
		}
	}
	return nil
}

