package utils

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/setanarut/sssbake"
)

const (
	BaseColorImage = "baseColor.png"
	ThicknessImage = "thickness.png"
)

// Material extensions written on the tissue material.
const (
	extDiffuseTransmission = "KHR_materials_diffuse_transmission"
	extVolume              = "KHR_materials_volume"
)

// SceneOptions controls the material written into the glTF document.
type SceneOptions struct {
	// Directory, relative to the .gltf file, holding the two textures.
	ImagesDir           string
	Generator           string
	Roughness           float64
	AttenuationColor    [3]float64 // warm red: light absorbed by blood and tissue
	AttenuationDistance float64
}

func DefaultSceneOptions(name string) SceneOptions {
	return SceneOptions{
		ImagesDir:           name + "_images",
		Generator:           "sssbake",
		Roughness:           0.4,
		AttenuationColor:    [3]float64{0.8, 0.2, 0.15},
		AttenuationDistance: 0.5,
	}
}

// DiffuseTransmission is the KHR_materials_diffuse_transmission payload.
type DiffuseTransmission struct {
	DiffuseTransmissionFactor float64 `json:"diffuseTransmissionFactor"`
}

// Volume is the KHR_materials_volume payload.
type Volume struct {
	ThicknessFactor     float64           `json:"thicknessFactor"`
	ThicknessTexture    *gltf.TextureInfo `json:"thicknessTexture,omitempty"`
	AttenuationColor    [3]float64        `json:"attenuationColor"`
	AttenuationDistance float64           `json:"attenuationDistance"`
}

// BuildGLTF returns a single-mesh document whose first buffer holds
// positions, normals, tangents, UVs and indices. The buffer is named
// <name>.bin; the textures are referenced under opt.ImagesDir.
func BuildGLTF(name string, m *sssbake.Mesh, normals []r3.Vec, opt SceneOptions) (*gltf.Document, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	n := m.VertexCount()
	if len(normals) != n {
		return nil, fmt.Errorf("%d normals for %d vertices", len(normals), n)
	}

	positions := make([][3]float32, n)
	norms := make([][3]float32, n)
	// No normal map, so a constant tangent frame.
	tangents := make([][4]float32, n)
	uvs := make([][2]float32, n)
	for i, p := range m.Positions {
		positions[i] = [3]float32{float32(p.X), float32(p.Y), float32(p.Z)}
		nv := normals[i]
		norms[i] = [3]float32{float32(nv.X), float32(nv.Y), float32(nv.Z)}
		tangents[i] = [4]float32{1, 0, 0, 1}
		uvs[i] = [2]float32{float32(m.UVs[i].X), float32(m.UVs[i].Y)}
	}
	indices := make([]uint32, 0, 3*m.FaceCount())
	for _, f := range m.Faces {
		indices = append(indices, uint32(f[0]), uint32(f[1]), uint32(f[2]))
	}

	doc := gltf.NewDocument()
	doc.Asset.Generator = opt.Generator
	doc.ExtensionsUsed = []string{extDiffuseTransmission, extVolume}

	attrs := map[string]int{
		gltf.POSITION:   modeler.WritePosition(doc, positions),
		gltf.NORMAL:     modeler.WriteNormal(doc, norms),
		gltf.TANGENT:    modeler.WriteTangent(doc, tangents),
		gltf.TEXCOORD_0: modeler.WriteTextureCoord(doc, uvs),
	}
	idx := modeler.WriteIndices(doc, indices)
	doc.Buffers[0].URI = name + ".bin"

	doc.Meshes = []*gltf.Mesh{{
		Name: name,
		Primitives: []*gltf.Primitive{{
			Attributes: attrs,
			Indices:    gltf.Index(idx),
			Material:   gltf.Index(0),
		}},
	}}
	doc.Nodes = []*gltf.Node{{Name: name, Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = []int{0}

	doc.Materials = []*gltf.Material{{
		Name: "dental_sss",
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorTexture: &gltf.TextureInfo{Index: 0},
			MetallicFactor:   gltf.Float(0),
			RoughnessFactor:  gltf.Float(opt.Roughness),
		},
		DoubleSided: true,
		Extensions: gltf.Extensions{
			extDiffuseTransmission: &DiffuseTransmission{DiffuseTransmissionFactor: 1},
			extVolume: &Volume{
				ThicknessFactor:     1,
				ThicknessTexture:    &gltf.TextureInfo{Index: 1},
				AttenuationColor:    opt.AttenuationColor,
				AttenuationDistance: opt.AttenuationDistance,
			},
		},
	}}
	doc.Samplers = []*gltf.Sampler{{
		MagFilter: gltf.MagLinear,
		MinFilter: gltf.MinLinearMipMapLinear,
		WrapS:     gltf.WrapRepeat,
		WrapT:     gltf.WrapRepeat,
	}}
	doc.Images = []*gltf.Image{
		{URI: opt.ImagesDir + "/" + BaseColorImage, MimeType: "image/png"},
		{URI: opt.ImagesDir + "/" + ThicknessImage, MimeType: "image/png"},
	}
	doc.Textures = []*gltf.Texture{
		{Source: gltf.Index(0), Sampler: gltf.Index(0)},
		{Source: gltf.Index(1), Sampler: gltf.Index(0)},
	}
	return doc, nil
}

// WriteGLTF writes <dir>/<name>.gltf and <dir>/<name>.bin. The textures are
// referenced, not written.
func WriteGLTF(dir, name string, m *sssbake.Mesh, normals []r3.Vec, opt SceneOptions) error {
	doc, err := BuildGLTF(name, m, normals, opt)
	if err != nil {
		return fmt.Errorf("build glTF: %w", err)
	}
	path := filepath.Join(dir, name+".gltf")
	if err := gltf.Save(doc, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	log.Printf("wrote %s (%d byte buffer)", path, doc.Buffers[0].ByteLength)
	return nil
}
