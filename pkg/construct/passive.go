package construct

import (
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/pixelgeo/pkg/config"
	"github.com/chazu/pixelgeo/pkg/geometry"
	"github.com/chazu/pixelgeo/pkg/material"
	"github.com/chazu/pixelgeo/pkg/orientation"
)

// Shape names a passive item type.
type Shape string

const (
	ShapeBox      Shape = "box"
	ShapeCylinder Shape = "cylinder"
	ShapeTube     Shape = "tube"
	ShapeSphere   Shape = "sphere"
)

// PassiveItem is one configured block of passive material, validated and
// ready to build. Angles read from the configuration are in half turns and
// converted to radians here.
type PassiveItem struct {
	Name      string
	Shape     Shape
	Position  r3.Vec
	Transform orientation.Transform
	Material  string
	// Filling is the material of the inner filling volume, empty for none.
	Filling string

	box      r3.Vec // full size
	tube     tubeShape
	cylinder geometry.TubeData
	sphere   geometry.SphereData
}

type tubeShape struct {
	outer, inner config.Vec2
	length       float64
}

// PassiveVolumes are the handles created for one passive item. Filling is
// nil when no filling material is configured.
type PassiveVolumes struct {
	Item    string
	Part    Part
	Filling *Part
}

// NewPassiveItem reads and validates a passive block. Materials default to
// defaultMaterial and are lowercased.
func NewPassiveItem(s *config.Section, defaultMaterial string) (*PassiveItem, error) {
	item, err := newPassiveItem(s, defaultMaterial)
	if err != nil {
		return nil, entityErr(KindPassive, s.Name(), err)
	}
	return item, nil
}

func newPassiveItem(s *config.Section, defaultMaterial string) (*PassiveItem, error) {
	typ, err := s.String("type")
	if err != nil {
		return nil, err
	}
	p := &PassiveItem{Name: s.Name(), Shape: Shape(typ)}

	if p.Position, err = s.Vec3Or("position", r3.Vec{}); err != nil {
		return nil, err
	}
	angles, err := s.Vec3Or("orientation", r3.Vec{})
	if err != nil {
		return nil, err
	}
	mode, err := s.StringOr("orientation_mode", string(orientation.DefaultMode))
	if err != nil {
		return nil, err
	}
	if p.Transform, err = orientation.NewTransform(angles, mode, p.Position); err != nil {
		return nil, &config.KeyError{Section: s.Name(), Key: "orientation_mode", Err: err}
	}
	mat, err := s.StringOr("material", defaultMaterial)
	if err != nil {
		return nil, err
	}
	p.Material = strings.ToLower(mat)
	filling, err := s.StringOr("filling_material", "")
	if err != nil {
		return nil, err
	}
	p.Filling = strings.ToLower(filling)

	switch p.Shape {
	case ShapeBox:
		err = p.readBox(s)
	case ShapeCylinder:
		err = p.readCylinder(s)
	case ShapeTube:
		err = p.readTube(s)
	case ShapeSphere:
		err = p.readSphere(s)
	default:
		return nil, s.InvalidValue("type", "passive type should be 'box', 'cylinder', 'tube' or 'sphere', got %q", typ)
	}
	if err != nil {
		return nil, err
	}
	if p.Filling != "" && p.Shape == ShapeBox {
		return nil, s.InvalidValue("filling_material", "a box has no inner volume to fill")
	}
	return p, nil
}

func (p *PassiveItem) readBox(s *config.Section) error {
	size, err := s.Vec2("size")
	if err != nil {
		return err
	}
	thickness, err := s.Float("thickness")
	if err != nil {
		return err
	}
	if size.X <= 0 || size.Y <= 0 || thickness <= 0 {
		return fmt.Errorf("%w: box size %gmm x %gmm x %gmm", ErrInvalidDimensions, size.X, size.Y, thickness)
	}
	p.box = r3.Vec{X: size.X, Y: size.Y, Z: thickness}
	return nil
}

func (p *PassiveItem) readCylinder(s *config.Section) error {
	inner, err := s.FloatOr("inner_radius", 0)
	if err != nil {
		return err
	}
	outer, err := s.Float("outer_radius")
	if err != nil {
		return err
	}
	height, err := s.Float("height")
	if err != nil {
		return err
	}
	start, err := s.FloatOr("starting_angle", 0)
	if err != nil {
		return err
	}
	arc, err := s.FloatOr("arc_length", 2)
	if err != nil {
		return err
	}
	if inner < 0 || inner >= outer || height <= 0 || arc <= 0 {
		return fmt.Errorf("%w: cylinder radii %gmm..%gmm, height %gmm, arc %gπ", ErrInvalidDimensions, inner, outer, height, arc)
	}
	if p.Filling != "" && inner <= 0 {
		return s.InvalidValue("filling_material", "cylinder without inner radius cannot be filled")
	}
	p.cylinder = geometry.TubeData{
		RMin:     inner,
		RMax:     outer,
		HalfZ:    height / 2,
		PhiStart: start * math.Pi,
		PhiDelta: arc * math.Pi,
	}
	return nil
}

func (p *PassiveItem) readTube(s *config.Section) error {
	outer, err := s.Vec2("outer_diameter")
	if err != nil {
		return err
	}
	inner, err := s.Vec2("inner_diameter")
	if err != nil {
		return err
	}
	length, err := s.Float("length")
	if err != nil {
		return err
	}
	if inner.X >= outer.X || inner.Y >= outer.Y {
		return fmt.Errorf("%w: inner diameter %gmm x %gmm is not below outer diameter %gmm x %gmm", ErrInvalidDimensions, inner.X, inner.Y, outer.X, outer.Y)
	}
	if inner.X <= 0 || inner.Y <= 0 || length <= 0 {
		return fmt.Errorf("%w: tube inner diameter and length must be positive", ErrInvalidDimensions)
	}
	p.tube = tubeShape{outer: outer, inner: inner, length: length}
	return nil
}

func (p *PassiveItem) readSphere(s *config.Section) error {
	inner, err := s.FloatOr("inner_radius", 0)
	if err != nil {
		return err
	}
	outer, err := s.Float("outer_radius")
	if err != nil {
		return err
	}
	vals := []struct {
		key string
		def float64
		dst *float64
	}{
		{"starting_angle_phi", 0, &p.sphere.PhiStart},
		{"arc_length_phi", 2, &p.sphere.PhiDelta},
		{"starting_angle_theta", 0, &p.sphere.ThetaStart},
		{"arc_length_theta", 1, &p.sphere.ThetaDelta},
	}
	for _, v := range vals {
		f, err := s.FloatOr(v.key, v.def)
		if err != nil {
			return err
		}
		*v.dst = f * math.Pi
	}
	if inner < 0 || inner >= outer || p.sphere.PhiDelta <= 0 || p.sphere.ThetaDelta <= 0 {
		return fmt.Errorf("%w: sphere radii %gmm..%gmm", ErrInvalidDimensions, inner, outer)
	}
	if p.Filling != "" && inner <= 0 {
		return s.InvalidValue("filling_material", "sphere without inner radius cannot be filled")
	}
	p.sphere.RMin, p.sphere.RMax = inner, outer
	return nil
}

// Points returns the eight corners of the item's bounding box around its
// position. The orientation is not applied.
func (p *PassiveItem) Points() [8]r3.Vec {
	var half r3.Vec
	switch p.Shape {
	case ShapeBox:
		half = r3.Scale(0.5, p.box)
	case ShapeTube:
		half = r3.Vec{X: p.tube.outer.X / 2, Y: p.tube.outer.Y / 2, Z: p.tube.length / 2}
	case ShapeCylinder:
		half = r3.Vec{X: p.cylinder.RMax, Y: p.cylinder.RMax, Z: p.cylinder.HalfZ}
	case ShapeSphere:
		half = r3.Vec{X: p.sphere.RMax, Y: p.sphere.RMax, Z: p.sphere.RMax}
	}
	corners := geometry.BoxFromHalf(half).Corners()
	for i, c := range corners {
		corners[i] = r3.Add(c, p.Position)
	}
	return corners
}

// PassiveBuilder places passive items in the world volume.
type PassiveBuilder struct {
	scene     *geometry.Scene
	world     geometry.VolumeID
	materials *material.Registry
	log       logrus.FieldLogger
}

// NewPassiveBuilder returns a builder placing items in world.
func NewPassiveBuilder(scene *geometry.Scene, world geometry.VolumeID, materials *material.Registry, log logrus.FieldLogger) *PassiveBuilder {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &PassiveBuilder{scene: scene, world: world, materials: materials, log: log}
}

// Build creates the solids and volumes of p. Errors carry the item's name.
func (b *PassiveBuilder) Build(p *PassiveItem) (*PassiveVolumes, error) {
	vols, err := b.build(p)
	if err != nil {
		return nil, entityErr(KindPassive, p.Name, err)
	}
	return vols, nil
}

func (b *PassiveBuilder) build(p *PassiveItem) (*PassiveVolumes, error) {
	log := b.log.WithField("item", p.Name)
	mat, err := b.materials.Lookup(p.Material)
	if err != nil {
		return nil, err
	}
	var filling material.Material
	if p.Filling != "" {
		if filling, err = b.materials.Lookup(p.Filling); err != nil {
			return nil, fmt.Errorf("filling: %w", err)
		}
	}

	var shell, fill geometry.SolidID
	hasFill := p.Filling != ""
	switch p.Shape {
	case ShapeBox:
		shell, err = b.scene.MakeBox(p.Name+"_volume", r3.Scale(0.5, p.box))
	case ShapeCylinder:
		if shell, err = b.scene.MakeTube(p.Name+"_volume", p.cylinder); err != nil || !hasFill {
			break
		}
		// The filling keeps the full height as its half length.
		f := p.cylinder
		f.RMin, f.RMax, f.HalfZ = 0, p.cylinder.RMin, 2*p.cylinder.HalfZ
		fill, err = b.scene.MakeTube(p.Name+"_filling_volume", f)
	case ShapeTube:
		if shell, err = b.tube(p); err != nil || !hasFill {
			break
		}
		fill, err = b.scene.MakeBox(p.Name+"_filling_volume", r3.Vec{X: p.tube.inner.X / 2, Y: p.tube.inner.Y / 2, Z: p.tube.length / 2})
	case ShapeSphere:
		if shell, err = b.scene.MakeSphere(p.Name+"_volume", p.sphere); err != nil || !hasFill {
			break
		}
		f := p.sphere
		f.RMin, f.RMax = 0, p.sphere.RMin
		fill, err = b.scene.MakeSphere(p.Name+"_filling_volume", f)
	default:
		err = fmt.Errorf("%w: unknown passive type %q", config.ErrInvalidValue, p.Shape)
	}
	if err != nil {
		return nil, err
	}

	log.Debugf("Placing %s of %s at %v", p.Shape, mat, p.Position)
	vols := &PassiveVolumes{Item: p.Name}
	if vols.Part, err = b.place(p.Name, shell, mat, p.Transform); err != nil {
		return nil, err
	}
	if hasFill {
		part, err := b.place(p.Name+"_filling", fill, filling, p.Transform)
		if err != nil {
			return nil, err
		}
		vols.Filling = &part
	}
	return vols, nil
}

// tube builds a rectangular tube as an outer box minus an inner box that is
// 10% longer, so the cut leaves no end faces.
func (b *PassiveBuilder) tube(p *PassiveItem) (geometry.SolidID, error) {
	outer, err := b.scene.MakeBox(p.Name+"_outer_volume", r3.Vec{X: p.tube.outer.X / 2, Y: p.tube.outer.Y / 2, Z: p.tube.length / 2})
	if err != nil {
		return 0, err
	}
	inner, err := b.scene.MakeBox(p.Name+"_inner_volume", r3.Vec{X: p.tube.inner.X / 2, Y: p.tube.inner.Y / 2, Z: 1.1 * p.tube.length / 2})
	if err != nil {
		return 0, err
	}
	return b.scene.Subtract(p.Name+"_final_volume", outer, inner, orientation.IdentityTransform())
}

func (b *PassiveBuilder) place(name string, solid geometry.SolidID, mat material.Material, t orientation.Transform) (Part, error) {
	vol, err := b.scene.NewVolume(name+"_log", solid, mat)
	if err != nil {
		return Part{}, err
	}
	pl, err := b.scene.Place(geometry.PlacementSpec{
		Name:      name + "_phys",
		Parent:    b.world,
		Child:     vol,
		Transform: t,
	})
	if err != nil {
		return Part{}, err
	}
	return Part{Volume: vol, Placement: pl}, nil
}
