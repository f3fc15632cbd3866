package construct

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/pixelgeo/pkg/config"
	"github.com/chazu/pixelgeo/pkg/detector"
	"github.com/chazu/pixelgeo/pkg/geometry"
	"github.com/chazu/pixelgeo/pkg/material"
	"github.com/chazu/pixelgeo/pkg/orientation"
)

// Part is a volume together with its single placement.
type Part struct {
	Volume    geometry.VolumeID
	Placement geometry.PlacementID
}

// Grid is a cell volume together with the periodic rule placing it.
type Grid struct {
	Cell geometry.VolumeID
	Rule geometry.PeriodicID
}

// DetectorVolumes are the handles created for one detector, for downstream
// sensitisation and output mapping.
type DetectorVolumes struct {
	Detector  string
	Transform orientation.Transform

	Wrapper Part
	Sensor  Part
	Pixels  Grid

	// Chip is nil when the model has no chip.
	Chip     *Part
	Supports []Part

	// BumpsWrapper and Bumps are nil for models without bump bonds.
	BumpsWrapper *Part
	Bumps        *Grid
}

// DetectorBuilder assembles detector volume trees inside the world volume.
type DetectorBuilder struct {
	scene     *geometry.Scene
	world     geometry.VolumeID
	ambient   material.Material
	materials *material.Registry
	log       logrus.FieldLogger
}

// NewDetectorBuilder returns a builder placing detectors in world. Wrappers
// and bump containers are filled with ambient.
func NewDetectorBuilder(scene *geometry.Scene, world geometry.VolumeID, ambient material.Material, materials *material.Registry, log logrus.FieldLogger) *DetectorBuilder {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &DetectorBuilder{scene: scene, world: world, ambient: ambient, materials: materials, log: log}
}

// names holds the per-detector naming scheme.
type names string

func (n names) of(part string) string             { return part + "_" + string(n) }
func (n names) indexed(part string, i int) string { return fmt.Sprintf("%s_%s_%d", part, string(n), i) }

// Build creates the volumes of d. Errors carry the detector's name.
func (b *DetectorBuilder) Build(d *detector.Detector) (*DetectorVolumes, error) {
	vols, err := b.build(d)
	if err != nil {
		return nil, entityErr(KindDetector, d.Name, err)
	}
	return vols, nil
}

func (b *DetectorBuilder) build(d *detector.Detector) (*DetectorVolumes, error) {
	m := d.Model
	n := names(d.Name)
	log := b.log.WithField("detector", d.Name)
	log.Debugf("Wrapper dimensions of model: %v", m.Size())

	silicon, err := b.materials.Lookup("silicon")
	if err != nil {
		return nil, err
	}

	vols := &DetectorVolumes{Detector: d.Name, Transform: d.Transform}

	// Wrapper: the box around the whole assembly, centred on the model envelope.
	wrapper, err := b.part(n.of("wrapper"), r3.Scale(0.5, m.Size()), b.ambient, b.world, d.Transform)
	if err != nil {
		return nil, err
	}
	vols.Wrapper = wrapper

	// Sensor and its pixel grid.
	sensorPos := d.LocalToWrapper(m.SensorCenter())
	log.Debugf("  - Sensor\t: %v", sensorPos)
	if vols.Sensor, err = b.part(n.of("sensor"), r3.Scale(0.5, m.SensorSize()), silicon, wrapper.Volume, orientation.Translation(sensorPos)); err != nil {
		return nil, err
	}

	pitch, grid := m.PixelSize(), m.GridSize()
	pixelSolid, err := b.scene.MakeBox(n.of("pixel"), r3.Vec{X: pitch.X / 2, Y: pitch.Y / 2, Z: m.SensorSize().Z / 2})
	if err != nil {
		return nil, err
	}
	pixel, err := b.scene.NewVolume(n.of("pixel")+"_log", pixelSolid, silicon)
	if err != nil {
		return nil, err
	}
	pixelRule, err := b.scene.PlacePeriodic(geometry.PeriodicSpec{
		Name:   n.of("pixel") + "_param",
		Parent: vols.Sensor.Volume,
		Child:  pixel,
		Count:  m.NPixels(),
		Pitch:  pitch,
		Origin: config.Vec2{X: -grid.X / 2, Y: -grid.Y / 2},
	})
	if err != nil {
		return nil, err
	}
	vols.Pixels = Grid{Cell: pixel, Rule: pixelRule}

	// Chip, only when thick enough to matter.
	if m.HasChip() {
		chipPos := d.LocalToWrapper(m.ChipCenter())
		log.Debugf("  - Chip\t: %v", chipPos)
		chip, err := b.part(n.of("chip"), r3.Scale(0.5, m.ChipSize()), silicon, wrapper.Volume, orientation.Translation(chipPos))
		if err != nil {
			return nil, err
		}
		vols.Chip = &chip
	}

	// Support layers, each optionally with a hole.
	for i, layer := range m.SupportLayers() {
		support, err := b.support(n, i, layer, d, wrapper.Volume)
		if err != nil {
			return nil, entityErr(KindSupport, n.indexed("support", i), err)
		}
		log.Debugf("  - Support\t: %v", d.LocalToWrapper(layer.Center))
		vols.Supports = append(vols.Supports, support)
	}

	// Bump bonds, only for models that have them.
	if bumps, ok := m.Bumps(); ok {
		if err := b.bumps(n, d, bumps, wrapper.Volume, vols); err != nil {
			return nil, err
		}
	}

	log.Tracef("Constructed detector %s successfully", d.Name)
	return vols, nil
}

// part creates a box solid, its volume, and a single placement.
func (b *DetectorBuilder) part(name string, half r3.Vec, mat material.Material, parent geometry.VolumeID, t orientation.Transform) (Part, error) {
	solid, err := b.scene.MakeBox(name, half)
	if err != nil {
		return Part{}, err
	}
	return b.place(name, solid, mat, parent, t)
}

func (b *DetectorBuilder) place(name string, solid geometry.SolidID, mat material.Material, parent geometry.VolumeID, t orientation.Transform) (Part, error) {
	vol, err := b.scene.NewVolume(name+"_log", solid, mat)
	if err != nil {
		return Part{}, err
	}
	pl, err := b.scene.Place(geometry.PlacementSpec{
		Name:      name + "_phys",
		Parent:    parent,
		Child:     vol,
		Transform: t,
	})
	if err != nil {
		return Part{}, err
	}
	return Part{Volume: vol, Placement: pl}, nil
}

func (b *DetectorBuilder) support(n names, i int, layer detector.SupportLayer, d *detector.Detector, parent geometry.VolumeID) (Part, error) {
	mat, err := b.materials.Lookup(layer.Material)
	if err != nil {
		return Part{}, err
	}
	half := r3.Scale(0.5, layer.Size)
	solid, err := b.scene.MakeBox(n.indexed("support", i), half)
	if err != nil {
		return Part{}, err
	}
	if layer.HasHole() {
		hole, err := b.scene.MakeBox(fmt.Sprintf("support_%s_hole_%d", n, i), geometry.HoleCutter(layer.HoleSize, half.Z))
		if err != nil {
			return Part{}, err
		}
		at := orientation.Translation(r3.Sub(layer.HoleCenter, layer.Center))
		if solid, err = b.scene.Subtract(fmt.Sprintf("support_%s_subtraction_%d", n, i), solid, hole, at); err != nil {
			return Part{}, err
		}
	}
	vol, err := b.scene.NewVolume(fmt.Sprintf("support_%s_log_%d", n, i), solid, mat)
	if err != nil {
		return Part{}, err
	}
	pl, err := b.scene.Place(geometry.PlacementSpec{
		Name:      fmt.Sprintf("support_%s_phys_%d", n, i),
		Parent:    parent,
		Child:     vol,
		Transform: orientation.Translation(d.LocalToWrapper(layer.Center)),
	})
	if err != nil {
		return Part{}, err
	}
	return Part{Volume: vol, Placement: pl}, nil
}

func (b *DetectorBuilder) bumps(n names, d *detector.Detector, bumps detector.BumpGeometry, parent geometry.VolumeID, vols *DetectorVolumes) error {
	solder, err := b.materials.Lookup("solder")
	if err != nil {
		return err
	}
	bump := n.of("bump")
	sphere, err := b.scene.MakeSphere(bump+"_sphere", geometry.SphereData{
		RMax:       bumps.SphereRadius,
		PhiDelta:   2 * math.Pi,
		ThetaDelta: math.Pi,
	})
	if err != nil {
		return err
	}
	tube, err := b.scene.MakeTube(bump+"_tube", geometry.TubeData{
		RMax:     bumps.CylinderRadius,
		HalfZ:    bumps.Height / 2,
		PhiDelta: 2 * math.Pi,
	})
	if err != nil {
		return err
	}
	cellSolid, err := b.scene.Unite(bump, sphere, tube)
	if err != nil {
		return err
	}

	pos := d.LocalToWrapper(bumps.Center)
	b.log.WithField("detector", d.Name).Debugf("  - Bumps\t: %v", pos)
	wrapper, err := b.part(n.of("bumpbox"), r3.Scale(0.5, bumps.Size), b.ambient, parent, orientation.Translation(pos))
	if err != nil {
		return err
	}
	vols.BumpsWrapper = &wrapper

	cell, err := b.scene.NewVolume(bump+"_log", cellSolid, solder)
	if err != nil {
		return err
	}
	m := d.Model
	pitch, count := m.PixelSize(), m.NPixels()
	offset := r3.Sub(bumps.Center, m.SensorCenter())
	rule, err := b.scene.PlacePeriodic(geometry.PeriodicSpec{
		Name:   bump + "_param",
		Parent: wrapper.Volume,
		Child:  cell,
		Count:  count,
		Pitch:  pitch,
		Origin: config.Vec2{
			X: -float64(count[0])*pitch.X/2 + offset.X,
			Y: -float64(count[1])*pitch.Y/2 + offset.Y,
		},
	})
	if err != nil {
		return err
	}
	vols.Bumps = &Grid{Cell: cell, Rule: rule}
	return nil
}
