package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

const telescopeYAML = `
world:
  material: air
  margin_percentage: 0.1
  minimum_margin: [1mm, 1mm, 1mm]
models:
  timepix:
    type: hybrid
    number_of_pixels: [256, 256]
    pixel_size: 55um 55um
    sensor_thickness: 300um
    support:
      - thickness: 1.5mm
        size: [30mm, 20mm]
        hole_size: [5mm, 5mm]
detectors:
  - name: dut
    model: timepix
    position: [0, 0, 100mm]
    orientation: [0, 0, 90deg]
passive:
  - name: plate
    type: box
    size: [10mm, 10mm]
    thickness: 2mm
    position: [0, 0, 5mm]
`

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1.5", 1.5},
		{"55um", 0.055},
		{"2 mm", 2},
		{"1cm", 10},
		{"1m", 1000},
		{"90deg", math.Pi / 2},
		{"5mrad", 0.005},
		{"1e-3m", 1},
		{"-3mm", -3},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseQuantity(tt.in)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestParseQuantityErrors(t *testing.T) {
	for _, in := range []string{"", "mm", "3furlong", "1..2mm"} {
		_, err := ParseQuantity(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestParseFile(t *testing.T) {
	f, err := Parse([]byte(telescopeYAML))
	require.NoError(t, err)

	mat, err := f.World.String("material")
	require.NoError(t, err)
	assert.Equal(t, "air", mat)

	margin, err := f.World.Vec3("minimum_margin")
	require.NoError(t, err)
	assert.Equal(t, r3.Vec{X: 1, Y: 1, Z: 1}, margin)

	require.Len(t, f.Detectors, 1)
	assert.Equal(t, "dut", f.Detectors[0].Name())
	orient, err := f.Detectors[0].Vec3("orientation")
	require.NoError(t, err)
	assert.InDelta(t, math.Pi/2, orient.Z, 1e-12)

	model := f.Models["timepix"]
	require.NotNil(t, model)
	n, err := model.IntVec2("number_of_pixels")
	require.NoError(t, err)
	assert.Equal(t, [2]int{256, 256}, n)

	pitch, err := model.Vec2("pixel_size")
	require.NoError(t, err)
	if diff := cmp.Diff(Vec2{X: 0.055, Y: 0.055}, pitch, cmp.Comparer(func(a, b float64) bool {
		return math.Abs(a-b) < 1e-12
	})); diff != "" {
		t.Errorf("pixel_size mismatch (-want +got):\n%s", diff)
	}

	supports, err := model.Sections("support")
	require.NoError(t, err)
	require.Len(t, supports, 1)
	assert.Equal(t, "timepix.support[0]", supports[0].Name())
	assert.True(t, supports[0].Has("hole_size"))

	assert.Equal(t, []string{"timepix"}, f.ModelNames())
	require.Len(t, f.Passive, 1)
	assert.Equal(t, "plate", f.Passive[0].Name())
}

func TestParseRejectsUnknownTopLevelKey(t *testing.T) {
	_, err := Parse([]byte("worlds:\n  material: air\n"))
	assert.Error(t, err)
}

func TestParseEmptyDocument(t *testing.T) {
	f, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, f.Detectors)
	assert.Empty(t, f.Passive)
	assert.NotNil(t, f.World)
}

func TestMissingAndInvalidKeys(t *testing.T) {
	s := NewSection("plate", map[string]any{
		"thickness": "two",
		"size":      []any{1.0, 2.0, 3.0},
		"type":      7,
	})

	_, err := s.Float("height")
	assert.True(t, errors.Is(err, ErrMissingKey))
	var kerr *KeyError
	require.True(t, errors.As(err, &kerr))
	assert.Equal(t, "plate", kerr.Section)
	assert.Equal(t, "height", kerr.Key)

	_, err = s.Float("thickness")
	assert.True(t, errors.Is(err, ErrInvalidValue))

	_, err = s.Vec2("size")
	assert.True(t, errors.Is(err, ErrInvalidValue))

	_, err = s.String("type")
	assert.True(t, errors.Is(err, ErrInvalidValue))

	err = s.InvalidValue("type", "unsupported %q", "cone")
	assert.True(t, errors.Is(err, ErrInvalidValue))
	assert.Contains(t, err.Error(), `"plate"`)
}

func TestDefaults(t *testing.T) {
	s := NewSection("item", nil)

	f, err := s.FloatOr("height", 4)
	require.NoError(t, err)
	assert.Equal(t, 4.0, f)

	str, err := s.StringOr("orientation_mode", "xyz")
	require.NoError(t, err)
	assert.Equal(t, "xyz", str)

	v, err := s.Vec3Or("position", r3.Vec{Z: 1})
	require.NoError(t, err)
	assert.Equal(t, r3.Vec{Z: 1}, v)

	b, err := s.BoolOr("visible", true)
	require.NoError(t, err)
	assert.True(t, b)

	n, err := s.IntVec2Or("number_of_pixels", [2]int{1, 1})
	require.NoError(t, err)
	assert.Equal(t, [2]int{1, 1}, n)
}

func TestStringVectors(t *testing.T) {
	s := NewSection("item", map[string]any{"position": "1mm, 2mm 3cm"})
	v, err := s.Vec3("position")
	require.NoError(t, err)
	assert.Equal(t, r3.Vec{X: 1, Y: 2, Z: 30}, v)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "geometry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(telescopeYAML), 0o600))
	f, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, f.Detectors, 1)

	bad := filepath.Join(dir, "geometry.json")
	require.NoError(t, os.WriteFile(bad, []byte("{}"), 0o600))
	_, err = Load(bad)
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
