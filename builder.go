package sssbake

import (
	"fmt"
	"image"
	"log"

	"gonum.org/v1/gonum/spatial/r3"
)

// Builder runs one mesh-to-texture conversion and keeps every product of
// the run.
type Builder struct {
	Mesh      *Mesh
	Normals   []r3.Vec
	Atlas     *Atlas
	Thickness *ThicknessMap
}

func NewBuilder(m *Mesh) *Builder {
	return &Builder{Mesh: m}
}

// Build validates the mesh, computes normals, bakes the color atlas and
// synthesizes the thickness map. An invalid mesh aborts before any
// rasterization.
func (b *Builder) Build(opt Options) error {
	if b.Mesh == nil {
		return fmt.Errorf("build: %w: nil mesh", ErrInvalidMesh)
	}
	if err := opt.Validate(); err != nil {
		return fmt.Errorf("build: %w", err)
	}
	if err := b.Mesh.Validate(); err != nil {
		return fmt.Errorf("build: %w", err)
	}

	log.Printf("computing normals for %d vertices, %d faces", b.Mesh.VertexCount(), b.Mesh.FaceCount())
	b.Normals = b.Mesh.ComputeNormals()

	log.Printf("baking vertex colors to %dx%d atlas", opt.Resolution, opt.Resolution)
	atlas, err := Bake(b.Mesh, opt)
	if err != nil {
		return fmt.Errorf("bake: %w", err)
	}
	b.Atlas = atlas

	log.Printf("generating thickness map")
	tm, err := Synthesize(atlas, opt)
	if err != nil {
		return fmt.Errorf("thickness: %w", err)
	}
	b.Thickness = tm
	return nil
}

// ColorImage returns the 8-bit base color atlas, or nil before Build.
func (b *Builder) ColorImage() *image.RGBA {
	if b.Atlas == nil {
		return nil
	}
	return b.Atlas.Image()
}

// ThicknessImage returns the packed 8-bit thickness map, or nil before Build.
func (b *Builder) ThicknessImage() *image.RGBA {
	if b.Thickness == nil {
		return nil
	}
	return b.Thickness.Image()
}
