// Package mesh holds the raw geometry produced by isosurface extraction and
// the post-processing that turns it into a renderable mesh: recentering and
// per-vertex normal estimation.
package mesh

// Mesh is a triangle mesh suitable for rendering.
// All arrays are flat: vertices has 3 floats per vertex (x,y,z),
// normals has 3 floats per vertex, indices has 3 uint32s per triangle.
// A Flat mesh never shares vertices between triangles and its indices are
// simply 0..n-1.
type Mesh struct {
	Vertices []float32 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Normals  []float32 `json:"normals"`  // [nx0,ny0,nz0, ...]
	Indices  []uint32  `json:"indices"`  // [i0,i1,i2, ...] triangles
	Flat     bool      `json:"flat"`
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// Centroid returns the mean vertex position, or the origin for an empty mesh.
func (m *Mesh) Centroid() [3]float64 {
	var c [3]float64
	n := m.VertexCount()
	if n == 0 {
		return c
	}
	for i := 0; i < n; i++ {
		c[0] += float64(m.Vertices[i*3])
		c[1] += float64(m.Vertices[i*3+1])
		c[2] += float64(m.Vertices[i*3+2])
	}
	for k := range c {
		c[k] /= float64(n)
	}
	return c
}
