package detector

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/pixelgeo/pkg/config"
	"github.com/chazu/pixelgeo/pkg/geometry"
)

// Manager tracks the detectors of a setup and any extra points that must be
// enclosed by the world, such as passive item corners.
type Manager struct {
	detectors map[string]*Detector
	points    []r3.Vec
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{detectors: make(map[string]*Detector)}
}

// AddDetector registers d. Detector names must be unique.
func (m *Manager) AddDetector(d *Detector) error {
	if _, dup := m.detectors[d.Name]; dup {
		return fmt.Errorf("detector %q: %w: name already used", d.Name, config.ErrInvalidValue)
	}
	m.detectors[d.Name] = d
	return nil
}

// Detector returns the detector with the given name, or nil.
func (m *Manager) Detector(name string) *Detector {
	return m.detectors[name]
}

// Detectors returns all detectors ordered by name.
func (m *Manager) Detectors() []*Detector {
	out := make([]*Detector, 0, len(m.detectors))
	for _, d := range m.detectors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AddPoints registers extra points to enclose.
func (m *Manager) AddPoints(points ...r3.Vec) {
	m.points = append(m.points, points...)
}

// Points returns every point the world must enclose: the rotated envelope
// corners of each detector followed by the extra points.
func (m *Manager) Points() []r3.Vec {
	out := make([]r3.Vec, 0, 8*len(m.detectors)+len(m.points))
	for _, d := range m.Detectors() {
		corners := d.Corners()
		out = append(out, corners[:]...)
	}
	return append(out, m.points...)
}

// Empty reports whether nothing has been registered.
func (m *Manager) Empty() bool {
	return len(m.detectors) == 0 && len(m.points) == 0
}

// Bounds returns the axis-aligned box around Points. It reports false when
// the manager is empty.
func (m *Manager) Bounds() (geometry.Box, bool) {
	pts := m.Points()
	if len(pts) == 0 {
		return geometry.Box{}, false
	}
	b := geometry.Box{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		b = b.Extend(p)
	}
	return b, true
}

// MinimumCoordinate returns the lowest coordinate on each axis, or the
// origin when the manager is empty.
func (m *Manager) MinimumCoordinate() r3.Vec {
	b, _ := m.Bounds()
	return b.Min
}

// MaximumCoordinate returns the highest coordinate on each axis, or the
// origin when the manager is empty.
func (m *Manager) MaximumCoordinate() r3.Vec {
	b, _ := m.Bounds()
	return b.Max
}
