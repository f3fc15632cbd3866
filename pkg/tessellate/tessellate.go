// Package tessellate walks a scene's placement tree and produces triangle
// meshes using a geometry kernel. One mesh is produced per placed volume
// instance.
package tessellate

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/chazu/pixelgeo/pkg/geometry"
	"github.com/chazu/pixelgeo/pkg/kernel"
	"github.com/chazu/pixelgeo/pkg/orientation"
)

// DefaultMaxInstances caps how many instances of each periodic rule are
// expanded.
const DefaultMaxInstances = 64

// Options tune a tessellation run.
type Options struct {
	// MaxInstances caps the instances expanded per periodic rule. Zero
	// selects DefaultMaxInstances, a negative value expands every instance.
	MaxInstances int
	// SkipMaterials lists materials whose volumes produce no mesh, typically
	// the ambient fill of world and wrapper volumes. Their daughters are
	// still walked.
	SkipMaterials []string
	Log           logrus.FieldLogger
}

// walker carries the state of one traversal. Meshes are generated once per
// solid in its local frame and copied for every placement.
type walker struct {
	scene *geometry.Scene
	k     kernel.Kernel
	max   int
	skip  map[string]bool
	log   logrus.FieldLogger
	local map[geometry.SolidID]*kernel.Mesh
}

// Tessellate walks scene from its root volume and produces one mesh per
// placed volume instance using the provided geometry kernel. Periodic rules
// are expanded instance by instance, never materialised in the scene. The
// tessellator is read-only and never mutates the scene.
func Tessellate(scene *geometry.Scene, k kernel.Kernel, opts Options) ([]*kernel.Mesh, error) {
	if scene == nil {
		return nil, nil
	}
	root, ok := scene.Root()
	if !ok {
		return nil, fmt.Errorf("tessellate: scene has no root volume")
	}

	w := &walker{
		scene: scene,
		k:     k,
		max:   opts.MaxInstances,
		skip:  make(map[string]bool, len(opts.SkipMaterials)),
		log:   opts.Log,
		local: make(map[geometry.SolidID]*kernel.Mesh),
	}
	if w.max == 0 {
		w.max = DefaultMaxInstances
	}
	if w.log == nil {
		w.log = logrus.StandardLogger()
	}
	for _, m := range opts.SkipMaterials {
		w.skip[strings.ToLower(m)] = true
	}

	var meshes []*kernel.Mesh
	if err := w.walk(root, orientation.IdentityTransform(), 0, &meshes); err != nil {
		return nil, fmt.Errorf("tessellate: %w", err)
	}
	return meshes, nil
}

// walk emits v at transform t, then recurses into its daughters.
func (w *walker) walk(id geometry.VolumeID, t orientation.Transform, copyNo int, out *[]*kernel.Mesh) error {
	v := w.scene.Volume(id)
	if v == nil {
		return fmt.Errorf("volume %d: %w", id, geometry.ErrUnknownVolume)
	}

	if !w.skip[v.Material.Name()] {
		mesh, err := w.mesh(v)
		if err != nil {
			return err
		}
		if mesh.IsEmpty() {
			w.log.Debugf("Volume %s produced an empty mesh", v.Name)
		} else {
			mesh.Apply(t)
			mesh.Copy = copyNo
			*out = append(*out, mesh)
		}
	}

	for _, p := range w.scene.PlacementsIn(id) {
		if err := w.walk(p.Child, p.Transform.Then(t), p.Copy, out); err != nil {
			return err
		}
	}

	for _, rule := range w.scene.PeriodicIn(id) {
		n := rule.Len()
		if w.max > 0 && n > w.max {
			w.log.Debugf("Expanding %d of %d instances of %s", w.max, n, rule.Name)
			n = w.max
		}
		for k := 0; k < n; k++ {
			inst, _ := rule.Instance(k)
			if err := w.walk(rule.Child, orientation.Translation(inst.Translation).Then(t), inst.Index, out); err != nil {
				return err
			}
		}
	}
	return nil
}

// mesh returns a fresh copy of v's solid tessellated in its local frame.
func (w *walker) mesh(v *geometry.Volume) (*kernel.Mesh, error) {
	local, ok := w.local[v.Solid]
	if !ok {
		solid, err := kernel.Realise(w.k, w.scene, v.Solid)
		if err != nil {
			return nil, fmt.Errorf("volume %s: %w", v.Name, err)
		}
		if local, err = w.k.ToMesh(solid); err != nil {
			return nil, fmt.Errorf("volume %s: ToMesh failed: %w", v.Name, err)
		}
		w.local[v.Solid] = local
	}
	m := local.Clone()
	m.Volume = v.Name
	m.Material = v.Material.Name()
	return m, nil
}
