package detector

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/pixelgeo/pkg/config"
	"github.com/chazu/pixelgeo/pkg/geometry"
	"github.com/chazu/pixelgeo/pkg/orientation"
)

func hybridSection() *config.Section {
	return config.NewSection("small", map[string]any{
		"type":               "hybrid",
		"number_of_pixels":   []any{2, 3},
		"pixel_size":         []any{0.05, 0.05},
		"sensor_thickness":   0.1,
		"sensor_size":        []any{0.3, 0.3},
		"chip_thickness":     0.2,
		"bump_height":        0.02,
		"bump_sphere_radius": 0.01,
		"bump_offset":        []any{0.01, 0.0},
		"support": []any{
			map[string]any{
				"size":      []any{2.0, 2.0},
				"thickness": 1.0,
				"location":  "chip",
				"hole_size": []any{0.5, 0.5},
			},
		},
	})
}

func assertVec(t *testing.T, want, got r3.Vec) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-9, "x")
	assert.InDelta(t, want.Y, got.Y, 1e-9, "y")
	assert.InDelta(t, want.Z, got.Z, 1e-9, "z")
}

func TestHybridModelLayout(t *testing.T) {
	m, err := NewModel(hybridSection())
	require.NoError(t, err)

	assert.Equal(t, Hybrid, m.Type())
	assert.Equal(t, [2]int{2, 3}, m.NPixels())
	assert.InDelta(t, 0.1, m.GridSize().X, 1e-12)
	assert.InDelta(t, 0.15, m.GridSize().Y, 1e-12)
	assertVec(t, r3.Vec{X: 0.3, Y: 0.3, Z: 0.1}, m.SensorSize())

	bumps, ok := m.Bumps()
	require.True(t, ok)
	assertVec(t, r3.Vec{X: 0.01, Z: -0.06}, bumps.Center)
	assert.Equal(t, 0.01, bumps.CylinderRadius, "cylinder radius defaults to the sphere radius")

	assert.True(t, m.HasChip())
	assertVec(t, r3.Vec{X: 0.1, Y: 0.15, Z: 0.2}, m.ChipSize())
	assertVec(t, r3.Vec{Z: -0.17}, m.ChipCenter())

	layers := m.SupportLayers()
	require.Len(t, layers, 1)
	assert.Equal(t, OnChip, layers[0].Location)
	assert.Equal(t, DefaultSupportMaterial, layers[0].Material)
	assertVec(t, r3.Vec{Z: -0.77}, layers[0].Center)
	assert.True(t, layers[0].HasHole())
	assertVec(t, r3.Vec{X: 0.5, Y: 0.5, Z: 1}, layers[0].HoleSize)
	assertVec(t, layers[0].Center, layers[0].HoleCenter)

	// Envelope spans the support plate in x/y and sensor top to support bottom in z.
	assertVec(t, r3.Vec{X: 2, Y: 2, Z: 1.32}, m.Size())
	assertVec(t, r3.Vec{Z: -0.61}, m.Center())
}

func TestMonolithicModelHasNoBumps(t *testing.T) {
	// Bump settings on a monolithic model are ignored.
	m, err := NewModel(config.NewSection("mono", map[string]any{
		"type":               "monolithic",
		"number_of_pixels":   "4 4",
		"pixel_size":         "25um 25um",
		"sensor_thickness":   "50um",
		"sensor_excess":      "10um",
		"bump_height":        "20um",
		"bump_sphere_radius": "9um",
		"bump_offset":        "5um 5um",
		"support": []any{
			map[string]any{"size": "1mm 1mm", "thickness": "100um"},
			map[string]any{"size": "1mm 1mm", "thickness": "200um", "material": "kapton"},
		},
	}))
	require.NoError(t, err)

	_, ok := m.Bumps()
	assert.False(t, ok)
	assert.False(t, m.HasChip())
	assertVec(t, r3.Vec{X: 0.12, Y: 0.12, Z: 0.05}, m.SensorSize())

	layers := m.SupportLayers()
	require.Len(t, layers, 2)
	assert.InDelta(t, 0.075, layers[0].Center.Z, 1e-12)
	assert.InDelta(t, 0.225, layers[1].Center.Z, 1e-12)
	assert.Equal(t, "kapton", layers[1].Material)
	assert.False(t, layers[0].HasHole())
}

func TestModelErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Section)
		key    string
		want   error
	}{
		{"bad type", func(s *config.Section) { s.Set("type", "strip") }, "type", config.ErrInvalidValue},
		{"sensor smaller than grid", func(s *config.Section) { s.Set("sensor_size", []any{0.05, 0.3}) }, "sensor_size", config.ErrInvalidValue},
		{"empty pixel column", func(s *config.Section) { s.Set("number_of_pixels", []any{0, 4}) }, "number_of_pixels", geometry.ErrInvalidGridSize},
		{"negative pixel rows", func(s *config.Section) {
			s.Set("number_of_pixels", []any{4, -1})
			s.Set("sensor_excess", 0.1)
		}, "number_of_pixels", geometry.ErrInvalidGridSize},
		{"zero bump height", func(s *config.Section) { s.Set("bump_height", 0.0) }, "bump_height", config.ErrInvalidValue},
		{"bad support location", func(s *config.Section) {
			s.Set("support", []any{map[string]any{"size": []any{1, 1}, "thickness": 1, "location": "side"}})
		}, "location", config.ErrInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := hybridSection()
			tt.mutate(s)
			_, err := NewModel(s)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			var ke *config.KeyError
			require.True(t, errors.As(err, &ke))
			assert.Equal(t, tt.key, ke.Key)
		})
	}

	_, err := NewModel(config.NewSection("m", map[string]any{"type": "monolithic", "number_of_pixels": []any{1, 1}, "pixel_size": []any{1, 1}}))
	assert.True(t, errors.Is(err, config.ErrMissingKey))
}

func TestNewDetector(t *testing.T) {
	m, err := NewModel(hybridSection())
	require.NoError(t, err)
	models := map[string]*Model{"small": m}

	d, err := NewDetector(config.NewSection("dut", map[string]any{
		"name":        "dut",
		"model":       "small",
		"position":    []any{0, 0, 10},
		"orientation": []any{0, 0, math.Pi / 2},
	}), models)
	require.NoError(t, err)
	assert.Equal(t, orientation.XYZ, d.Mode)

	// A quarter turn about z swaps the x and y extents of the envelope.
	var maxX, maxY float64
	for _, c := range d.Corners() {
		maxX = math.Max(maxX, c.X)
		maxY = math.Max(maxY, c.Y)
	}
	assert.InDelta(t, 1.0, maxX, 1e-9)
	assert.InDelta(t, 1.0, maxY, 1e-9)

	_, err = NewDetector(config.NewSection("x", map[string]any{"name": "x", "model": "nope", "position": []any{0, 0, 0}}), models)
	assert.True(t, errors.Is(err, config.ErrInvalidValue))

	_, err = NewDetector(config.NewSection("x", map[string]any{
		"name": "x", "model": "small", "position": []any{0, 0, 0}, "orientation_mode": "yzx",
	}), models)
	assert.True(t, errors.Is(err, orientation.ErrInvalidMode))
	assert.True(t, errors.Is(err, config.ErrInvalidValue))
}

func TestManager(t *testing.T) {
	m, err := NewModel(hybridSection())
	require.NoError(t, err)

	mgr := NewManager()
	assert.True(t, mgr.Empty())
	_, ok := mgr.Bounds()
	assert.False(t, ok)

	for _, name := range []string{"b", "a"} {
		require.NoError(t, mgr.AddDetector(&Detector{
			Name:      name,
			Model:     m,
			Transform: orientation.Translation(r3.Vec{Z: 100}),
		}))
	}
	assert.Error(t, mgr.AddDetector(&Detector{Name: "a", Model: m}))

	ds := mgr.Detectors()
	require.Len(t, ds, 2)
	assert.Equal(t, "a", ds[0].Name)
	assert.Equal(t, "b", ds[1].Name)

	mgr.AddPoints(r3.Vec{X: -50}, r3.Vec{Y: 20})
	assert.Len(t, mgr.Points(), 18)
	assertVec(t, r3.Vec{X: -50, Y: -1, Z: 0}, mgr.MinimumCoordinate())
	assertVec(t, r3.Vec{X: 1, Y: 20, Z: 100.66}, mgr.MaximumCoordinate())
}
