package utils

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/setanarut/sssbake"
)

// ErrUnsupportedPLY is returned for PLY files this reader cannot decode.
var ErrUnsupportedPLY = errors.New("unsupported PLY")

// PLYProperty is one property line of a PLY header.
type PLYProperty struct {
	Name     string
	Type     string // scalar type; empty for lists
	IsList   bool
	ListType string // type of the list count
	DataType string // type of the list items
}

// PLYElement is one element block of a PLY header.
type PLYElement struct {
	Name  string
	Count int
	Props []PLYProperty
}

// PLYHeader is the parsed header of a PLY file.
type PLYHeader struct {
	Format   string
	Version  string
	Elements []PLYElement
}

// LoadPLY reads a binary little-endian PLY with per-vertex positions and
// colors and per-vertex or per-corner texture coordinates.
func LoadPLY(path string) (*sssbake.Mesh, error) {
	start := time.Now()
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := ReadPLY(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Printf("loaded %s: %d vertices, %d faces in %v", path, m.VertexCount(), m.FaceCount(), time.Since(start))
	return m, nil
}

// ReadPLY decodes a PLY stream into a Mesh. Per-corner UVs are collapsed to
// one UV per vertex; when corners disagree the last face read wins.
func ReadPLY(r io.Reader) (*sssbake.Mesh, error) {
	br := bufio.NewReaderSize(r, 1<<20)
	header, err := ParsePLYHeader(br)
	if err != nil {
		return nil, fmt.Errorf("parse PLY header: %w", err)
	}
	if header.Format != "binary_little_endian" {
		return nil, fmt.Errorf("%w: format %q", ErrUnsupportedPLY, header.Format)
	}

	m := &sssbake.Mesh{}
	var hasColors, hasUVs bool
	for _, el := range header.Elements {
		switch el.Name {
		case "vertex":
			hasColors, hasUVs, err = readVertices(br, el, m)
		case "face":
			var faceUVs bool
			faceUVs, err = readFaces(br, el, m)
			hasUVs = hasUVs || faceUVs
		default:
			err = skipElement(br, el)
		}
		if err != nil {
			return nil, err
		}
	}
	if !hasUVs {
		return nil, fmt.Errorf("%w: no texture coordinates", ErrUnsupportedPLY)
	}
	if !hasColors {
		log.Println("ply warning: no vertex colors, using white")
		for i := range m.Colors {
			m.Colors[i] = colorful.Color{R: 1, G: 1, B: 1}
		}
	}
	return m, nil
}

// ParsePLYHeader consumes the header through end_header, leaving br at the
// first data byte.
func ParsePLYHeader(br *bufio.Reader) (*PLYHeader, error) {
	header := &PLYHeader{}
	magic, err := br.ReadString('\n')
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(magic) != "ply" {
		return nil, fmt.Errorf("%w: missing ply magic", ErrUnsupportedPLY)
	}
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("reading header: %w", err)
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		switch parts[0] {
		case "end_header":
			return header, nil
		case "format":
			if len(parts) < 3 {
				return nil, fmt.Errorf("invalid format line: %q", strings.TrimSpace(line))
			}
			header.Format, header.Version = parts[1], parts[2]
		case "comment", "obj_info":
		case "element":
			if len(parts) < 3 {
				return nil, fmt.Errorf("invalid element line: %q", strings.TrimSpace(line))
			}
			count, err := strconv.Atoi(parts[2])
			if err != nil || count < 0 {
				return nil, fmt.Errorf("invalid element count: %s", parts[2])
			}
			header.Elements = append(header.Elements, PLYElement{Name: parts[1], Count: count})
		case "property":
			if len(header.Elements) == 0 {
				return nil, fmt.Errorf("property before any element")
			}
			prop, err := parsePLYProperty(parts[1:])
			if err != nil {
				return nil, err
			}
			el := &header.Elements[len(header.Elements)-1]
			el.Props = append(el.Props, prop)
		default:
			return nil, fmt.Errorf("unknown header keyword %q", parts[0])
		}
	}
}

func parsePLYProperty(parts []string) (PLYProperty, error) {
	if len(parts) < 2 {
		return PLYProperty{}, fmt.Errorf("invalid property definition")
	}
	if parts[0] == "list" {
		if len(parts) < 4 {
			return PLYProperty{}, fmt.Errorf("invalid list property definition")
		}
		return PLYProperty{IsList: true, ListType: parts[1], DataType: parts[2], Name: parts[3]}, nil
	}
	return PLYProperty{Type: parts[0], Name: parts[1]}, nil
}

func typeSize(t string) int {
	switch t {
	case "char", "int8", "uchar", "uint8":
		return 1
	case "short", "int16", "ushort", "uint16":
		return 2
	case "int", "int32", "uint", "uint32", "float", "float32":
		return 4
	case "double", "float64":
		return 8
	default:
		return 0
	}
}

// readScalar reads one little-endian value of PLY type t.
func readScalar(br *bufio.Reader, t string, buf []byte) (float64, error) {
	n := typeSize(t)
	if n == 0 {
		return 0, fmt.Errorf("%w: property type %q", ErrUnsupportedPLY, t)
	}
	if _, err := io.ReadFull(br, buf[:n]); err != nil {
		return 0, err
	}
	le := binary.LittleEndian
	switch t {
	case "char", "int8":
		return float64(int8(buf[0])), nil
	case "uchar", "uint8":
		return float64(buf[0]), nil
	case "short", "int16":
		return float64(int16(le.Uint16(buf))), nil
	case "ushort", "uint16":
		return float64(le.Uint16(buf)), nil
	case "int", "int32":
		return float64(int32(le.Uint32(buf))), nil
	case "uint", "uint32":
		return float64(le.Uint32(buf)), nil
	case "float", "float32":
		return float64(math.Float32frombits(le.Uint32(buf))), nil
	default:
		return math.Float64frombits(le.Uint64(buf)), nil
	}
}

func readList(br *bufio.Reader, prop PLYProperty, buf []byte, dst []float64) ([]float64, error) {
	count, err := readScalar(br, prop.ListType, buf)
	if err != nil {
		return nil, err
	}
	dst = dst[:0]
	for range int(count) {
		v, err := readScalar(br, prop.DataType, buf)
		if err != nil {
			return nil, err
		}
		dst = append(dst, v)
	}
	return dst, nil
}

// colorScale maps a stored color channel to [0,1].
func colorScale(t string) float64 {
	switch t {
	case "uchar", "uint8":
		return 1.0 / 255.0
	case "ushort", "uint16":
		return 1.0 / 65535.0
	default:
		return 1
	}
}

// Header counts are untrusted; slices start at most this large and grow as
// records are actually read.
const maxPrealloc = 1 << 16

func readVertices(br *bufio.Reader, el PLYElement, m *sssbake.Mesh) (hasColors, hasUVs bool, err error) {
	n := min(el.Count, maxPrealloc)
	m.Positions = make([]r3.Vec, 0, n)
	m.Colors = make([]colorful.Color, 0, n)
	m.UVs = make([]r2.Vec, 0, n)
	for _, p := range el.Props {
		switch p.Name {
		case "red", "r", "green", "g", "blue", "b":
			hasColors = true
		case "u", "s", "texture_u", "v", "t", "texture_v":
			hasUVs = true
		}
	}
	var buf [8]byte
	var scratch []float64
	for i := range el.Count {
		var pos r3.Vec
		var col colorful.Color
		var uv r2.Vec
		for _, p := range el.Props {
			if p.IsList {
				if scratch, err = readList(br, p, buf[:], scratch); err != nil {
					return false, false, fmt.Errorf("vertex %d property %s: %w", i, p.Name, err)
				}
				continue
			}
			v, err := readScalar(br, p.Type, buf[:])
			if err != nil {
				return false, false, fmt.Errorf("vertex %d property %s: %w", i, p.Name, err)
			}
			switch p.Name {
			case "x":
				pos.X = v
			case "y":
				pos.Y = v
			case "z":
				pos.Z = v
			case "red", "r":
				col.R = v * colorScale(p.Type)
			case "green", "g":
				col.G = v * colorScale(p.Type)
			case "blue", "b":
				col.B = v * colorScale(p.Type)
			case "u", "s", "texture_u":
				uv.X = v
			case "v", "t", "texture_v":
				uv.Y = v
			}
		}
		m.Positions = append(m.Positions, pos)
		m.Colors = append(m.Colors, col)
		m.UVs = append(m.UVs, uv)
	}
	return hasColors, hasUVs, nil
}

func readFaces(br *bufio.Reader, el PLYElement, m *sssbake.Mesh) (hasUVs bool, err error) {
	m.Faces = make([][3]int, 0, min(el.Count, maxPrealloc))
	var buf [8]byte
	var indices, texcoords []float64
	for i := range el.Count {
		var gotIndices, gotUVs bool
		for _, p := range el.Props {
			switch {
			case p.IsList && (p.Name == "vertex_indices" || p.Name == "vertex_index"):
				if indices, err = readList(br, p, buf[:], indices); err != nil {
					return false, fmt.Errorf("face %d vertex indices: %w", i, err)
				}
				if len(indices) != 3 {
					return false, fmt.Errorf("%w: face %d has %d vertices, only triangles are supported",
						ErrUnsupportedPLY, i, len(indices))
				}
				gotIndices = true
			case p.IsList && (p.Name == "texcoord" || p.Name == "texcoords"):
				if texcoords, err = readList(br, p, buf[:], texcoords); err != nil {
					return false, fmt.Errorf("face %d texcoords: %w", i, err)
				}
				gotUVs = true
			case p.IsList:
				if _, err = readList(br, p, buf[:], nil); err != nil {
					return false, fmt.Errorf("face %d property %s: %w", i, p.Name, err)
				}
			default:
				if _, err = readScalar(br, p.Type, buf[:]); err != nil {
					return false, fmt.Errorf("face %d property %s: %w", i, p.Name, err)
				}
			}
		}
		if !gotIndices {
			return false, fmt.Errorf("%w: face element without vertex_indices", ErrUnsupportedPLY)
		}
		face := [3]int{int(indices[0]), int(indices[1]), int(indices[2])}
		m.Faces = append(m.Faces, face)
		if !gotUVs {
			continue
		}
		if len(texcoords) != 6 {
			return false, fmt.Errorf("face %d has %d texcoords, want 6", i, len(texcoords))
		}
		hasUVs = true
		for c, idx := range face {
			// Out-of-range indices are reported by Mesh.Validate.
			if idx >= 0 && idx < len(m.UVs) {
				m.UVs[idx] = r2.Vec{X: texcoords[2*c], Y: texcoords[2*c+1]}
			}
		}
	}
	return hasUVs, nil
}

func skipElement(br *bufio.Reader, el PLYElement) error {
	var buf [8]byte
	for i := range el.Count {
		for _, p := range el.Props {
			var err error
			if p.IsList {
				_, err = readList(br, p, buf[:], nil)
			} else {
				_, err = readScalar(br, p.Type, buf[:])
			}
			if err != nil {
				return fmt.Errorf("%s %d property %s: %w", el.Name, i, p.Name, err)
			}
		}
	}
	return nil
}
