package detector

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/pixelgeo/pkg/config"
)

// Location says where a support layer is attached.
type Location string

const (
	// OnSensor stacks the layer above the sensor side of the assembly.
	OnSensor Location = "sensor"
	// OnChip stacks the layer below the chip side of the assembly.
	OnChip Location = "chip"
	// Absolute places the layer at its configured offset.
	Absolute Location = "absolute"
)

// SupportLayer is a passive plate attached to a detector model, optionally
// with a rectangular hole. Centres are in the model's local frame.
type SupportLayer struct {
	Size       r3.Vec
	Center     r3.Vec
	HoleSize   r3.Vec
	HoleCenter r3.Vec
	Material   string
	Location   Location
}

// HasHole reports whether a hole is cut through the layer.
func (l SupportLayer) HasHole() bool {
	return l.HoleSize.X > 0 && l.HoleSize.Y > 0
}

// newSupportLayer reads one support block. top and bottom track the current
// outer faces of the stack and are advanced past the new layer.
func newSupportLayer(s *config.Section, top, bottom *float64) (SupportLayer, error) {
	size, err := s.Vec2("size")
	if err != nil {
		return SupportLayer{}, err
	}
	thickness, err := s.Float("thickness")
	if err != nil {
		return SupportLayer{}, err
	}
	if size.X <= 0 || size.Y <= 0 {
		return SupportLayer{}, s.InvalidValue("size", "must be positive")
	}
	if thickness <= 0 {
		return SupportLayer{}, s.InvalidValue("thickness", "must be positive")
	}
	loc, err := s.StringOr("location", string(OnSensor))
	if err != nil {
		return SupportLayer{}, err
	}
	mat, err := s.StringOr("material", DefaultSupportMaterial)
	if err != nil {
		return SupportLayer{}, err
	}

	layer := SupportLayer{
		Size:     r3.Vec{X: size.X, Y: size.Y, Z: thickness},
		Material: mat,
		Location: Location(loc),
	}
	switch layer.Location {
	case OnSensor, OnChip:
		offset, err := s.Vec2Or("offset", config.Vec2{})
		if err != nil {
			return SupportLayer{}, err
		}
		layer.Center = r3.Vec{X: offset.X, Y: offset.Y}
		if layer.Location == OnSensor {
			layer.Center.Z = *top + thickness/2
			*top += thickness
		} else {
			layer.Center.Z = *bottom - thickness/2
			*bottom -= thickness
		}
	case Absolute:
		if layer.Center, err = s.Vec3("offset"); err != nil {
			return SupportLayer{}, err
		}
	default:
		return SupportLayer{}, s.InvalidValue("location", "support location should be 'sensor', 'chip' or 'absolute', got %q", loc)
	}

	if s.Has("hole_size") {
		hole, err := s.Vec2("hole_size")
		if err != nil {
			return SupportLayer{}, err
		}
		if hole.X <= 0 || hole.Y <= 0 {
			return SupportLayer{}, s.InvalidValue("hole_size", "must be positive")
		}
		holeOffset, err := s.Vec2Or("hole_offset", config.Vec2{})
		if err != nil {
			return SupportLayer{}, err
		}
		layer.HoleSize = r3.Vec{X: hole.X, Y: hole.Y, Z: thickness}
		layer.HoleCenter = r3.Add(layer.Center, r3.Vec{X: holeOffset.X, Y: holeOffset.Y})
	}
	return layer, nil
}
