// Package detector describes pixel detector models, the detectors placed
// from them, and the manager that tracks the extent of everything placed in
// the world.
package detector

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/pixelgeo/pkg/config"
	"github.com/chazu/pixelgeo/pkg/geometry"
)

// Type distinguishes monolithic sensors from hybrid sensor+chip assemblies.
type Type string

const (
	Monolithic Type = "monolithic"
	Hybrid     Type = "hybrid"
)

// DefaultSupportMaterial is used for support layers without a material.
const DefaultSupportMaterial = "g10"

// BumpGeometry holds the bump-bond parameters of a hybrid model. Center is
// the centre of the bump layer in the model's local frame.
type BumpGeometry struct {
	Height         float64
	SphereRadius   float64
	CylinderRadius float64
	Offset         config.Vec2
	Center         r3.Vec
	Size           r3.Vec
}

// Model is the geometric description of one detector type, expressed in a
// local frame where the pixel grid and the sensor are centred at the origin
// and the sensor spans z in [-t/2, t/2].
type Model struct {
	name string
	typ  Type

	nPixels    [2]int
	pixelSize  config.Vec2
	sensorSize r3.Vec
	chipSize   r3.Vec
	chipCenter r3.Vec

	supports []SupportLayer
	bumps    *BumpGeometry

	center r3.Vec
	size   r3.Vec
}

// Name returns the model name.
func (m *Model) Name() string { return m.name }

// Type returns monolithic or hybrid.
func (m *Model) Type() Type { return m.typ }

// NPixels returns the pixel count as (columns, rows).
func (m *Model) NPixels() [2]int { return m.nPixels }

// PixelSize returns the pixel pitch.
func (m *Model) PixelSize() config.Vec2 { return m.pixelSize }

// GridSize returns the extent of the pixel matrix.
func (m *Model) GridSize() config.Vec2 {
	return config.Vec2{
		X: float64(m.nPixels[0]) * m.pixelSize.X,
		Y: float64(m.nPixels[1]) * m.pixelSize.Y,
	}
}

// SensorSize returns the full sensor extents.
func (m *Model) SensorSize() r3.Vec { return m.sensorSize }

// SensorCenter returns the sensor centre, always the local origin.
func (m *Model) SensorCenter() r3.Vec { return r3.Vec{} }

// ChipSize returns the readout chip extents; Z is zero when there is no chip.
func (m *Model) ChipSize() r3.Vec { return m.chipSize }

// ChipCenter returns the readout chip centre.
func (m *Model) ChipCenter() r3.Vec { return m.chipCenter }

// SupportLayers returns the support layers in declaration order.
func (m *Model) SupportLayers() []SupportLayer {
	return append([]SupportLayer(nil), m.supports...)
}

// Bumps reports the bump-bond geometry of hybrid models.
func (m *Model) Bumps() (BumpGeometry, bool) {
	if m.bumps == nil {
		return BumpGeometry{}, false
	}
	return *m.bumps, true
}

// Center returns the centre of the envelope of every part.
func (m *Model) Center() r3.Vec { return m.center }

// Size returns the full extents of the envelope of every part.
func (m *Model) Size() r3.Vec { return m.size }

// NewModel reads a model from its configuration section.
func NewModel(s *config.Section) (*Model, error) {
	typ, err := s.String("type")
	if err != nil {
		return nil, err
	}
	m := &Model{name: s.Name(), typ: Type(typ)}
	if m.typ != Monolithic && m.typ != Hybrid {
		return nil, s.InvalidValue("type", "model type should be either 'monolithic' or 'hybrid', got %q", typ)
	}

	if m.nPixels, err = s.IntVec2("number_of_pixels"); err != nil {
		return nil, err
	}
	if m.nPixels[0] <= 0 || m.nPixels[1] <= 0 {
		return nil, &config.KeyError{
			Section: s.Name(),
			Key:     "number_of_pixels",
			Err:     fmt.Errorf("%w: %d x %d", geometry.ErrInvalidGridSize, m.nPixels[0], m.nPixels[1]),
		}
	}
	if m.pixelSize, err = s.Vec2("pixel_size"); err != nil {
		return nil, err
	}
	if m.pixelSize.X <= 0 || m.pixelSize.Y <= 0 {
		return nil, s.InvalidValue("pixel_size", "pixel pitch must be positive")
	}
	grid := m.GridSize()

	thickness, err := s.Float("sensor_thickness")
	if err != nil {
		return nil, err
	}
	if thickness <= 0 {
		return nil, s.InvalidValue("sensor_thickness", "must be positive")
	}
	sensorFootprint, err := footprint(s, "sensor", grid)
	if err != nil {
		return nil, err
	}
	m.sensorSize = r3.Vec{X: sensorFootprint.X, Y: sensorFootprint.Y, Z: thickness}

	chipThickness, err := s.FloatOr("chip_thickness", 0)
	if err != nil {
		return nil, err
	}
	if chipThickness < 0 {
		return nil, s.InvalidValue("chip_thickness", "must not be negative")
	}
	chipFootprint, err := footprint(s, "chip", grid)
	if err != nil {
		return nil, err
	}
	m.chipSize = r3.Vec{X: chipFootprint.X, Y: chipFootprint.Y, Z: chipThickness}

	// Hybrid: bumps hang below the sensor and the chip below the bumps.
	// Monolithic: the chip layer sits on top of the sensor.
	top, bottom := thickness/2, -thickness/2
	if m.typ == Hybrid {
		if m.bumps, err = newBumps(s, m.sensorSize); err != nil {
			return nil, err
		}
		bottom -= m.bumps.Height
		m.chipCenter = r3.Vec{Z: bottom - chipThickness/2}
		bottom -= chipThickness
	} else {
		m.chipCenter = r3.Vec{Z: top + chipThickness/2}
		top += chipThickness
	}

	layers, err := s.Sections("support")
	if err != nil {
		return nil, err
	}
	for _, ls := range layers {
		layer, err := newSupportLayer(ls, &top, &bottom)
		if err != nil {
			return nil, fmt.Errorf("model %q: %w", m.name, err)
		}
		m.supports = append(m.supports, layer)
	}

	m.computeEnvelope()
	return m, nil
}

// footprint returns the in-plane size of the sensor or chip: an explicit
// "<part>_size" when configured, otherwise the pixel grid plus
// "<part>_excess" on every side.
func footprint(s *config.Section, part string, grid config.Vec2) (config.Vec2, error) {
	sizeKey, excessKey := part+"_size", part+"_excess"
	if s.Has(sizeKey) {
		size, err := s.Vec2(sizeKey)
		if err != nil {
			return config.Vec2{}, err
		}
		if size.X < grid.X || size.Y < grid.Y {
			return config.Vec2{}, s.InvalidValue(sizeKey, "%gmm x %gmm is smaller than the pixel grid %gmm x %gmm", size.X, size.Y, grid.X, grid.Y)
		}
		return size, nil
	}
	excess, err := s.FloatOr(excessKey, 0)
	if err != nil {
		return config.Vec2{}, err
	}
	if excess < 0 {
		return config.Vec2{}, s.InvalidValue(excessKey, "must not be negative")
	}
	return config.Vec2{X: grid.X + 2*excess, Y: grid.Y + 2*excess}, nil
}

func newBumps(s *config.Section, sensor r3.Vec) (*BumpGeometry, error) {
	height, err := s.Float("bump_height")
	if err != nil {
		return nil, err
	}
	sphere, err := s.Float("bump_sphere_radius")
	if err != nil {
		return nil, err
	}
	cylinder, err := s.FloatOr("bump_cylinder_radius", sphere)
	if err != nil {
		return nil, err
	}
	offset, err := s.Vec2Or("bump_offset", config.Vec2{})
	if err != nil {
		return nil, err
	}
	switch {
	case height <= 0:
		return nil, s.InvalidValue("bump_height", "must be positive")
	case sphere <= 0:
		return nil, s.InvalidValue("bump_sphere_radius", "must be positive")
	case cylinder <= 0:
		return nil, s.InvalidValue("bump_cylinder_radius", "must be positive")
	}
	return &BumpGeometry{
		Height:         height,
		SphereRadius:   sphere,
		CylinderRadius: cylinder,
		Offset:         offset,
		Center:         r3.Vec{X: offset.X, Y: offset.Y, Z: -sensor.Z/2 - height/2},
		Size:           r3.Vec{X: sensor.X, Y: sensor.Y, Z: height},
	}, nil
}

func (m *Model) computeEnvelope() {
	env := geometry.BoxFromHalf(r3.Scale(0.5, m.sensorSize))
	add := func(center, size r3.Vec) {
		half := r3.Scale(0.5, size)
		env = env.Union(geometry.Box{Min: r3.Sub(center, half), Max: r3.Add(center, half)})
	}
	if m.HasChip() {
		add(m.chipCenter, m.chipSize)
	}
	if m.bumps != nil {
		add(m.bumps.Center, m.bumps.Size)
	}
	for _, l := range m.supports {
		add(l.Center, l.Size)
	}
	m.center = r3.Scale(0.5, r3.Add(env.Min, env.Max))
	m.size = r3.Sub(env.Max, env.Min)
}

// nearlyZero is the thickness below which a layer is treated as absent.
const nearlyZero = 1e-9

// HasChip reports whether the model has a readout chip thick enough to build.
func (m *Model) HasChip() bool { return m.chipSize.Z > nearlyZero }
