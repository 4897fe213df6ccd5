package sssbake

import (
	"errors"
	"fmt"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrInvalidMesh is returned when a mesh fails Validate.
var ErrInvalidMesh = errors.New("invalid mesh")

// Mesh is a vertex-colored triangle mesh with exactly one UV per vertex.
// Per-corner UVs must be collapsed by the loader.
type Mesh struct {
	Positions []r3.Vec
	Colors    []colorful.Color // RGB in [0,1]
	UVs       []r2.Vec         // [0,1]x[0,1]
	Faces     [][3]int
}

func (m *Mesh) VertexCount() int {
	return len(m.Positions)
}

func (m *Mesh) FaceCount() int {
	return len(m.Faces)
}

// Validate checks that attribute slices line up and that every face
// references an existing vertex.
func (m *Mesh) Validate() error {
	n := len(m.Positions)
	if len(m.Colors) != n {
		return fmt.Errorf("%w: %d colors for %d vertices", ErrInvalidMesh, len(m.Colors), n)
	}
	if len(m.UVs) != n {
		return fmt.Errorf("%w: %d uvs for %d vertices", ErrInvalidMesh, len(m.UVs), n)
	}
	for fi, f := range m.Faces {
		for corner, idx := range f {
			if idx < 0 || idx >= n {
				return fmt.Errorf("%w: face %d corner %d references vertex %d (have %d)",
					ErrInvalidMesh, fi, corner, idx, n)
			}
		}
	}
	return nil
}

// ComputeNormals returns area-weighted vertex normals. Vertices touched by
// no face (or only by zero-area faces) get +Z.
func (m *Mesh) ComputeNormals() []r3.Vec {
	normals := make([]r3.Vec, len(m.Positions))
	for _, f := range m.Faces {
		p0 := m.Positions[f[0]]
		// Unnormalized cross product: its length is twice the face area.
		n := r3.Cross(r3.Sub(m.Positions[f[1]], p0), r3.Sub(m.Positions[f[2]], p0))
		for _, idx := range f {
			normals[idx] = r3.Add(normals[idx], n)
		}
	}
	for i, n := range normals {
		if r3.Norm(n) < 1e-8 {
			normals[i] = r3.Vec{Z: 1}
			continue
		}
		normals[i] = r3.Unit(n)
	}
	return normals
}

// Bounds returns the component-wise min and max of the positions.
func (m *Mesh) Bounds() (lo, hi r3.Vec) {
	if len(m.Positions) == 0 {
		return
	}
	lo, hi = m.Positions[0], m.Positions[0]
	for _, p := range m.Positions[1:] {
		lo = r3.Vec{X: min(lo.X, p.X), Y: min(lo.Y, p.Y), Z: min(lo.Z, p.Z)}
		hi = r3.Vec{X: max(hi.X, p.X), Y: max(hi.Y, p.Y), Z: max(hi.Z, p.Z)}
	}
	return
}
