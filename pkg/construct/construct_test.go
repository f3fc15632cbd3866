package construct

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/pixelgeo/pkg/config"
	"github.com/chazu/pixelgeo/pkg/geometry"
	"github.com/chazu/pixelgeo/pkg/material"
)

const setupYAML = `
world:
  material: air
  margin_percentage: 0.1
models:
  small:
    type: hybrid
    number_of_pixels: [2, 3]
    pixel_size: [0.05mm, 0.05mm]
    sensor_thickness: 0.1mm
    sensor_size: [0.3mm, 0.3mm]
    chip_thickness: 0.05mm
    bump_height: 0.02mm
    bump_sphere_radius: 0.01mm
    support:
      - size: [1mm, 1mm]
        thickness: 0.5mm
        location: chip
        hole_size: [0.2mm, 0.2mm]
        material: kapton
  mono:
    type: monolithic
    number_of_pixels: [4, 4]
    pixel_size: 25um 25um
    sensor_thickness: 50um
    bump_height: 20um
    bump_sphere_radius: 9um
    bump_offset: [5um, 5um]
detectors:
  - name: dut
    model: small
    position: [0, 0, 20mm]
  - name: ref
    model: mono
    position: [0, 0, -20mm]
    orientation: [0, 10deg, 0]
passive:
  - name: plate
    type: box
    size: [10mm, 10mm]
    thickness: 2mm
    position: [0, 0, 5mm]
  - name: pipe
    type: cylinder
    inner_radius: 1mm
    outer_radius: 2mm
    height: 4mm
    material: Aluminum
    filling_material: water
    position: [0, 0, -5mm]
`

func parse(t *testing.T, doc string) *config.File {
	t.Helper()
	f, err := config.Parse([]byte(doc))
	require.NoError(t, err)
	return f
}

func quietLogger() logrus.FieldLogger {
	logger, _ := logtest.NewNullLogger()
	return logger
}

// ---------------------------------------------------------------------------
// World sizing
// ---------------------------------------------------------------------------

func TestWorldSizerHalfExtent(t *testing.T) {
	w := WorldSizer{MarginPercentage: 0.1, MinimumMargin: r3.Vec{X: 0, Y: 5, Z: 0.5}}
	got, err := w.HalfExtent([]r3.Vec{{X: -10, Y: 2, Z: 1}, {X: 4, Y: -3, Z: 20}})
	require.NoError(t, err)
	assert.InDelta(t, 11, got.X, 1e-12)
	assert.InDelta(t, 8, got.Y, 1e-12, "minimum margin wins")
	assert.InDelta(t, 22, got.Z, 1e-12)
}

func TestWorldSizerEmpty(t *testing.T) {
	_, err := WorldSizer{MarginPercentage: 0.1}.HalfExtent(nil)
	assert.ErrorIs(t, err, ErrEmptyGeometry)
}

func TestWorldSizerMonotonicInMargin(t *testing.T) {
	points := []r3.Vec{{X: 3, Y: -7, Z: 0.2}, {X: -1, Y: 2, Z: -9}}
	minMargin := r3.Vec{X: 1, Y: 0.5, Z: 2}
	prev := r3.Vec{}
	for _, pct := range []float64{0, 0.05, 0.1, 0.5, 1, 3} {
		got, err := WorldSizer{MarginPercentage: pct, MinimumMargin: minMargin}.HalfExtent(points)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got.X, prev.X)
		assert.GreaterOrEqual(t, got.Y, prev.Y)
		assert.GreaterOrEqual(t, got.Z, prev.Z)
		assert.GreaterOrEqual(t, got.X, minMargin.X)
		assert.GreaterOrEqual(t, got.Y, minMargin.Y)
		assert.GreaterOrEqual(t, got.Z, minMargin.Z)
		prev = got
	}
}

func TestNewWorldSizer(t *testing.T) {
	w, err := NewWorldSizer(config.NewSection(config.WorldSection, nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultMarginPercentage, w.MarginPercentage)
	assert.Equal(t, r3.Vec{}, w.MinimumMargin)

	_, err = NewWorldSizer(config.NewSection(config.WorldSection, map[string]any{"margin_percentage": -1.0}))
	assert.ErrorIs(t, err, config.ErrInvalidValue)

	w, err = NewWorldSizer(config.NewSection(config.WorldSection, map[string]any{
		"world_margin_percentage": 0.25,
		"world_minimum_margin":    []any{1, 2, 3},
	}))
	require.NoError(t, err)
	assert.Equal(t, 0.25, w.MarginPercentage)
	assert.Equal(t, r3.Vec{X: 1, Y: 2, Z: 3}, w.MinimumMargin)

	// The short key wins when both are present.
	w, err = NewWorldSizer(config.NewSection(config.WorldSection, map[string]any{
		"margin_percentage":       0.5,
		"world_margin_percentage": 0.25,
	}))
	require.NoError(t, err)
	assert.Equal(t, 0.5, w.MarginPercentage)

	_, err = NewWorldSizer(config.NewSection(config.WorldSection, map[string]any{"world_margin_percentage": -1.0}))
	var ke *config.KeyError
	require.ErrorAs(t, err, &ke)
	assert.Equal(t, "world_margin_percentage", ke.Key)
}

// ---------------------------------------------------------------------------
// Passive items
// ---------------------------------------------------------------------------

func TestPassiveBoxPoints(t *testing.T) {
	item, err := NewPassiveItem(config.NewSection("plate", map[string]any{
		"type":      "box",
		"size":      []any{10, 10},
		"thickness": 2,
		"position":  []any{0, 0, 5},
	}), "air")
	require.NoError(t, err)
	assert.Equal(t, "air", item.Material)

	seen := make(map[r3.Vec]bool)
	for _, p := range item.Points() {
		assert.Equal(t, 5.0, math.Abs(p.X))
		assert.Equal(t, 5.0, math.Abs(p.Y))
		assert.True(t, p.Z == 4 || p.Z == 6, "z = %g", p.Z)
		seen[p] = true
	}
	assert.Len(t, seen, 8)
}

func TestPassivePointsIgnoreOrientation(t *testing.T) {
	item, err := NewPassiveItem(config.NewSection("slab", map[string]any{
		"type":        "box",
		"size":        []any{10, 2},
		"thickness":   2,
		"orientation": []any{0, 0, math.Pi / 2},
	}), "air")
	require.NoError(t, err)
	for _, p := range item.Points() {
		assert.Equal(t, 5.0, math.Abs(p.X))
		assert.Equal(t, 1.0, math.Abs(p.Y))
	}
}

func TestPassiveTubeInvalidDimensions(t *testing.T) {
	s := config.NewSection("pipe", map[string]any{
		"type":           "tube",
		"outer_diameter": []any{4, 6},
		"inner_diameter": []any{5, 5},
		"length":         10,
	})
	_, err := NewPassiveItem(s, "air")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidDimensions)
	var ee *EntityError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, KindPassive, ee.Kind)
	assert.Equal(t, "pipe", ee.Name)

	// Through a full build, nothing named after the tube ends up in a scene.
	f := parse(t, setupYAML)
	f.Passive = append(f.Passive, s)
	res, err := Build(f, nil, quietLogger())
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrInvalidDimensions)
}

func TestPassiveUnknownType(t *testing.T) {
	_, err := NewPassiveItem(config.NewSection("cone", map[string]any{"type": "cone"}), "air")
	assert.ErrorIs(t, err, config.ErrInvalidValue)
}

func TestPassiveShapes(t *testing.T) {
	scene := geometry.New()
	reg := material.NewRegistry()
	worldSolid, err := scene.MakeBox("World", r3.Vec{X: 100, Y: 100, Z: 100})
	require.NoError(t, err)
	air, _ := reg.Lookup("air")
	world, err := scene.NewVolume("World", worldSolid, air)
	require.NoError(t, err)
	require.NoError(t, scene.SetRoot(world))
	b := NewPassiveBuilder(scene, world, reg, quietLogger())

	tests := []struct {
		name   string
		values map[string]any
		check  func(t *testing.T, v *PassiveVolumes)
	}{
		{"tube", map[string]any{
			"type": "tube", "outer_diameter": []any{4, 4}, "inner_diameter": []any{2, 3}, "length": 10,
			"filling_material": "water",
		}, func(t *testing.T, v *PassiveVolumes) {
			inner := scene.LookupSolid("tube_inner_volume")
			require.NotNil(t, inner)
			assert.InDelta(t, 5.5, inner.Extent().Z, 1e-12)
			final := scene.LookupSolid("tube_final_volume")
			require.NotNil(t, final)
			assert.Equal(t, geometry.SolidSubtraction, final.Kind)
			require.NotNil(t, v.Filling)
			assert.Equal(t, "water", scene.Volume(v.Filling.Volume).Material.Name())
		}},
		{"cylinder", map[string]any{
			"type": "cylinder", "inner_radius": 1, "outer_radius": 2, "height": 4,
			"starting_angle": 0.5, "arc_length": 1, "filling_material": "lead",
		}, func(t *testing.T, v *PassiveVolumes) {
			shell := scene.LookupSolid("cylinder_volume").Data.(geometry.TubeData)
			assert.InDelta(t, 2, shell.HalfZ, 1e-12)
			assert.InDelta(t, math.Pi/2, shell.PhiStart, 1e-12)
			assert.InDelta(t, math.Pi, shell.PhiDelta, 1e-12)
			fill := scene.LookupSolid("cylinder_filling_volume").Data.(geometry.TubeData)
			assert.InDelta(t, 4, fill.HalfZ, 1e-12, "filling uses the full height as half length")
			assert.Equal(t, 1.0, fill.RMax)
		}},
		{"sphere", map[string]any{
			"type": "sphere", "inner_radius": 1, "outer_radius": 3, "filling_material": "water",
		}, func(t *testing.T, v *PassiveVolumes) {
			shell := scene.LookupSolid("sphere_volume").Data.(geometry.SphereData)
			assert.InDelta(t, 2*math.Pi, shell.PhiDelta, 1e-12)
			assert.InDelta(t, math.Pi, shell.ThetaDelta, 1e-12)
			fill := scene.LookupSolid("sphere_filling_volume").Data.(geometry.SphereData)
			assert.Equal(t, 0.0, fill.RMin)
			assert.Equal(t, 1.0, fill.RMax)
		}},
		{"box", map[string]any{
			"type": "box", "size": []any{1, 2}, "thickness": 3, "material": "LEAD",
		}, func(t *testing.T, v *PassiveVolumes) {
			assert.Nil(t, v.Filling)
			assert.Equal(t, "lead", scene.Volume(v.Part.Volume).Material.Name())
			assert.Equal(t, r3.Vec{X: 0.5, Y: 1, Z: 1.5}, scene.LookupSolid("box_volume").Extent())
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, err := NewPassiveItem(config.NewSection(tt.name, tt.values), "air")
			require.NoError(t, err)
			v, err := b.Build(item)
			require.NoError(t, err)
			parent, ok := scene.ParentOf(v.Part.Volume)
			require.True(t, ok)
			assert.Equal(t, world, parent)
			tt.check(t, v)
		})
	}

	// A second item with the same name collides on solid names.
	item, err := NewPassiveItem(config.NewSection("box", map[string]any{"type": "box", "size": []any{1, 1}, "thickness": 1}), "air")
	require.NoError(t, err)
	_, err = b.Build(item)
	assert.ErrorIs(t, err, geometry.ErrDuplicateSolidName)
	assert.Contains(t, err.Error(), `"box"`)

	// Unknown materials are errors, never defaults.
	item, err = NewPassiveItem(config.NewSection("odd", map[string]any{"type": "box", "size": []any{1, 1}, "thickness": 1, "material": "unobtainium"}), "air")
	require.NoError(t, err)
	_, err = b.Build(item)
	assert.ErrorIs(t, err, material.ErrUnknownMaterial)
}

// ---------------------------------------------------------------------------
// Full builds
// ---------------------------------------------------------------------------

func TestBuildSetup(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.TraceLevel)

	res, err := Build(parse(t, setupYAML), nil, logger)
	require.NoError(t, err)
	require.NotEmpty(t, res.BuildID)

	scene := res.Scene
	root, ok := scene.Root()
	require.True(t, ok)
	assert.Equal(t, res.World, root)
	assert.Equal(t, "air", res.WorldMaterial.Name())

	// World encloses the 10mm plate with a 10% margin.
	assert.InDelta(t, 5.5, res.WorldHalfExtent.X, 1e-9)
	assert.InDelta(t, 5.5, res.WorldHalfExtent.Y, 1e-9)
	assert.Greater(t, res.WorldHalfExtent.Z, 20.0*1.1)

	// Pixel grid of the hybrid detector.
	dut := res.Detectors["dut"]
	require.NotNil(t, dut)
	grid := scene.Periodic(dut.Pixels.Rule)
	require.NotNil(t, grid)
	assert.Equal(t, [2]int{2, 3}, grid.Count)
	assert.InDelta(t, 0.05, grid.Pitch.X, 1e-12)
	assert.InDelta(t, 0.05, grid.Pitch.Y, 1e-12)
	assert.InDelta(t, -0.05, grid.Origin.X, 1e-12)
	assert.InDelta(t, -0.075, grid.Origin.Y, 1e-12)
	assert.Equal(t, dut.Sensor.Volume, grid.Parent)
	sensor := scene.Solid(scene.Volume(dut.Sensor.Volume).Solid)
	assert.InDelta(t, 0.15, sensor.Extent().X, 1e-12)
	assert.InDelta(t, 0.05, sensor.Extent().Z, 1e-12)

	// Bump grid matches the pixel count; the chip is present.
	require.NotNil(t, dut.Bumps)
	require.NotNil(t, dut.BumpsWrapper)
	bumps := scene.Periodic(dut.Bumps.Rule)
	assert.Equal(t, 6, bumps.Len())
	assert.Equal(t, "solder", scene.Volume(dut.Bumps.Cell).Material.Name())
	assert.Equal(t, geometry.SolidUnion, scene.Solid(scene.Volume(dut.Bumps.Cell).Solid).Kind)
	require.NotNil(t, dut.Chip)

	// The support is hole-cut and made of its own material.
	require.Len(t, dut.Supports, 1)
	support := scene.Volume(dut.Supports[0].Volume)
	assert.Equal(t, "kapton", support.Material.Name())
	assert.Equal(t, geometry.SolidSubtraction, scene.Solid(support.Solid).Kind)
	cutter := scene.LookupSolid("support_dut_hole_0")
	require.NotNil(t, cutter)
	assert.InDelta(t, 0.5, cutter.Extent().Z, 1e-12, "cutter is twice the plate thickness")

	// The monolithic reference has neither bumps nor chip.
	ref := res.Detectors["ref"]
	require.NotNil(t, ref)
	assert.Nil(t, ref.Bumps)
	assert.Nil(t, ref.BumpsWrapper)
	assert.Nil(t, ref.Chip)
	for _, solid := range scene.Solids() {
		assert.False(t, strings.HasPrefix(solid.Name, "bump_ref"), "unexpected solid %s", solid.Name)
		assert.False(t, strings.HasPrefix(solid.Name, "bumpbox_ref"), "unexpected solid %s", solid.Name)
	}

	// Passive items in declaration order, filling as a sibling.
	assert.Equal(t, []string{"plate", "pipe"}, res.PassiveOrder)
	pipe := res.Passive["pipe"]
	require.NotNil(t, pipe.Filling)
	assert.Equal(t, "aluminum", scene.Volume(pipe.Part.Volume).Material.Name())
	assert.Equal(t, "water", scene.Volume(pipe.Filling.Volume).Material.Name())

	// Grids are never expanded into placements.
	for _, p := range scene.Placements() {
		assert.NotEqual(t, dut.Pixels.Cell, p.Child)
	}

	v := geometry.Validate(scene)
	assert.True(t, v.OK(), "validation errors: %v", v.Errors)

	// Every entry carries the build ID.
	require.NotEmpty(t, hook.AllEntries())
	for _, e := range hook.AllEntries() {
		assert.Equal(t, res.BuildID, e.Data["build"])
	}
}

func TestBuildErrorsNameTheEntity(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(f *config.File)
		want    error
		kind    string
		mention string
	}{
		{"unknown world material", func(f *config.File) { f.World.Set("material", "plasma") },
			material.ErrUnknownMaterial, KindWorld, "plasma"},
		{"unknown support material", func(f *config.File) {
			f.Models["small"].Set("support", []any{map[string]any{"size": []any{1, 1}, "thickness": 1, "material": "cheese"}})
		}, material.ErrUnknownMaterial, KindDetector, "support_dut_0"},
		{"bad orientation mode", func(f *config.File) { f.Detectors[0].Set("orientation_mode", "xzy") },
			config.ErrInvalidValue, KindDetector, "dut"},
		{"empty pixel grid", func(f *config.File) {
			f.Models["mono"].Set("number_of_pixels", []any{0, 4})
			f.Models["mono"].Set("sensor_excess", 0.1)
		}, geometry.ErrInvalidGridSize, KindModel, "mono"},
		{"empty pixel grid without footprint", func(f *config.File) {
			f.Models["mono"].Set("number_of_pixels", []any{0, 4})
		}, geometry.ErrInvalidGridSize, KindModel, "mono"},
		{"missing model key", func(f *config.File) { delete(f.Models, "mono") },
			config.ErrInvalidValue, KindDetector, "ref"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := parse(t, setupYAML)
			tt.mutate(f)
			res, err := Build(f, nil, quietLogger())
			require.Error(t, err)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.want)
			var ee *EntityError
			require.ErrorAs(t, err, &ee)
			assert.Equal(t, tt.kind, ee.Kind)
			assert.True(t, strings.Contains(err.Error(), tt.mention), "error %q should mention %q", err, tt.mention)
		})
	}
}

func TestBuildEmptyGeometry(t *testing.T) {
	_, err := Build(config.NewFile(), nil, quietLogger())
	assert.ErrorIs(t, err, ErrEmptyGeometry)
}

func TestBuildRegistersWorldMaterials(t *testing.T) {
	f := parse(t, setupYAML)
	f.World.Set("materials", []any{map[string]any{"name": "Beryllium", "description": "G4_Be"}})
	f.Passive[0].Set("material", "beryllium")

	reg := material.NewRegistry()
	res, err := Build(f, reg, quietLogger())
	require.NoError(t, err)
	assert.True(t, reg.Has("beryllium"))
	assert.Equal(t, "G4_Be", res.Scene.Volume(res.Passive["plate"].Part.Volume).Material.Description())
}

func TestBuildAcceptsPrefixedWorldKeys(t *testing.T) {
	f := parse(t, setupYAML)
	f.World = config.NewSection(config.WorldSection, map[string]any{
		"world_material":          "vacuum",
		"world_margin_percentage": 0.2,
	})

	res, err := Build(f, nil, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, "vacuum", res.WorldMaterial.Name())
	assert.InDelta(t, 6.0, res.WorldHalfExtent.X, 1e-9)
}
