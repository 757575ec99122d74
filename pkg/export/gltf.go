// Package export writes cut fragments to glTF 2.0, either as JSON with an
// embedded buffer or as a binary .glb container.
package export

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/emilyslouie/xri-two-hands/pkg/kernel"
)

// ErrNoMeshes is returned when there is nothing to export.
var ErrNoMeshes = errors.New("export: no non-empty meshes")

// Palette is cycled through to give each fragment its own material.
var Palette = [][4]float32{
	{0.290, 0.565, 0.851, 1}, // #4A90D9
	{0.902, 0.494, 0.133, 1}, // #E67E22
	{0.180, 0.800, 0.443, 1}, // #2ECC71
	{0.608, 0.349, 0.714, 1}, // #9B59B6
	{0.906, 0.298, 0.235, 1}, // #E74C3C
	{0.102, 0.737, 0.612, 1}, // #1ABC9C
	{0.953, 0.612, 0.071, 1}, // #F39C12
	{0.204, 0.596, 0.859, 1}, // #3498DB
}

func paletteMaterial(doc *gltf.Document, name string) uint32 {
	color := Palette[len(doc.Materials)%len(Palette)]
	doc.Materials = append(doc.Materials, &gltf.Material{
		Name:        name,
		DoubleSided: true,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &color,
		},
	})
	return uint32(len(doc.Materials) - 1)
}

// Document builds a glTF document with one mesh and one node per non-empty
// fragment, all in the default scene. Node and mesh names are the fragment
// names; each fragment gets a double-sided material colored from Palette.
func Document(meshes []*kernel.Mesh) (*gltf.Document, error) {
	doc := gltf.NewDocument()

	for _, m := range meshes {
		if m == nil || m.IsEmpty() {
			continue
		}
		if len(m.Vertices)%3 != 0 || len(m.Indices)%3 != 0 {
			return nil, errors.Errorf("export: mesh %q has malformed buffers", m.PartName)
		}

		positions := make([][3]float32, m.VertexCount())
		for i := range positions {
			positions[i] = [3]float32{m.Vertices[i*3], m.Vertices[i*3+1], m.Vertices[i*3+2]}
		}
		indices := make([]uint32, len(m.Indices))
		copy(indices, m.Indices)

		attributes := map[string]uint32{
			"POSITION": modeler.WritePosition(doc, positions),
		}
		if len(m.Normals) == len(m.Vertices) {
			normals := make([][3]float32, m.VertexCount())
			for i := range normals {
				normals[i] = [3]float32{m.Normals[i*3], m.Normals[i*3+1], m.Normals[i*3+2]}
			}
			attributes["NORMAL"] = modeler.WriteNormal(doc, normals)
		}

		doc.Meshes = append(doc.Meshes, &gltf.Mesh{
			Name: m.PartName,
			Primitives: []*gltf.Primitive{{
				Indices:    gltf.Index(modeler.WriteIndices(doc, indices)),
				Attributes: attributes,
				Material:   gltf.Index(paletteMaterial(doc, m.PartName)),
			}},
		})
		doc.Nodes = append(doc.Nodes, &gltf.Node{
			Name: m.PartName,
			Mesh: gltf.Index(uint32(len(doc.Meshes) - 1)),
		})
		doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(len(doc.Nodes)-1))
	}

	if len(doc.Meshes) == 0 {
		return nil, ErrNoMeshes
	}
	return doc, nil
}

// WriteGLTF encodes meshes to w. With binary set the output is a .glb
// container; otherwise it is glTF JSON with the buffer embedded as a data URI.
func WriteGLTF(w io.Writer, meshes []*kernel.Mesh, binary bool) error {
	doc, err := Document(meshes)
	if err != nil {
		return err
	}
	if !binary {
		for _, b := range doc.Buffers {
			b.EmbeddedResource()
		}
	}

	enc := gltf.NewEncoder(w)
	enc.AsBinary = binary
	return errors.Wrap(enc.Encode(doc), "export: encode gltf")
}

// SaveGLTF writes meshes to path, choosing the binary container when the
// extension is .glb.
func SaveGLTF(path string, meshes []*kernel.Mesh) error {
	binary := strings.EqualFold(filepath.Ext(path), ".glb")

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "export: create %s", path)
	}
	if err := WriteGLTF(f, meshes, binary); err != nil {
		f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "export: close %s", path)
}
