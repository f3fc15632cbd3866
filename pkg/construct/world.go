package construct

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/pixelgeo/pkg/config"
)

// Default world margins.
const (
	DefaultMarginPercentage = 0.1
	DefaultWorldMaterial    = "air"
)

// WorldSizer computes the half extent of the world box from the points it
// has to enclose.
type WorldSizer struct {
	// MarginPercentage is the fraction of the half extent added on each axis.
	MarginPercentage float64
	// MinimumMargin is the smallest margin added on each axis.
	MinimumMargin r3.Vec
}

// worldKey returns the key under which the world section holds key. The
// prefixed form (world_margin_percentage) is accepted when the short one is
// absent.
func worldKey(s *config.Section, key string) string {
	if !s.Has(key) && s.Has("world_"+key) {
		return "world_" + key
	}
	return key
}

// NewWorldSizer reads margin_percentage and minimum_margin from the world
// section.
func NewWorldSizer(s *config.Section) (WorldSizer, error) {
	pctKey := worldKey(s, "margin_percentage")
	pct, err := s.FloatOr(pctKey, DefaultMarginPercentage)
	if err != nil {
		return WorldSizer{}, err
	}
	if pct < 0 {
		return WorldSizer{}, s.InvalidValue(pctKey, "must not be negative, got %g", pct)
	}
	minMargin, err := s.Vec3Or(worldKey(s, "minimum_margin"), r3.Vec{})
	if err != nil {
		return WorldSizer{}, err
	}
	return WorldSizer{MarginPercentage: pct, MinimumMargin: minMargin}, nil
}

// HalfExtent returns, per axis, h + max(h·MarginPercentage, MinimumMargin)
// where h = max(|min|, |max|) over points.
func (w WorldSizer) HalfExtent(points []r3.Vec) (r3.Vec, error) {
	if len(points) == 0 {
		return r3.Vec{}, ErrEmptyGeometry
	}
	var h r3.Vec
	for _, p := range points {
		h.X = math.Max(h.X, math.Abs(p.X))
		h.Y = math.Max(h.Y, math.Abs(p.Y))
		h.Z = math.Max(h.Z, math.Abs(p.Z))
	}
	margin := func(half, minimum float64) float64 {
		return half + math.Max(half*w.MarginPercentage, minimum)
	}
	return r3.Vec{
		X: margin(h.X, w.MinimumMargin.X),
		Y: margin(h.Y, w.MinimumMargin.Y),
		Z: margin(h.Z, w.MinimumMargin.Z),
	}, nil
}
