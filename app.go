package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/chazu/pixelgeo/pkg/config"
	"github.com/chazu/pixelgeo/pkg/construct"
	"github.com/chazu/pixelgeo/pkg/engine"
	"github.com/chazu/pixelgeo/pkg/geometry"
	"github.com/chazu/pixelgeo/pkg/kernel"
	"github.com/chazu/pixelgeo/pkg/kernel/sdfx"
	"github.com/chazu/pixelgeo/pkg/material"
	"github.com/chazu/pixelgeo/pkg/tessellate"
)

// colorPalette is a default palette used to assign distinct colors to materials.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// ambientMaterials fill the world and the wrapper boxes and are not meshed.
var ambientMaterials = []string{"air", "vacuum"}

// Options are the command line settings of a run.
type Options struct {
	GeometryPath string
	MeshPath     string
	MaxInstances int
	MeshCells    int
}

// App ties the pipeline together: description → scene → validation →
// meshes.
type App struct {
	engine *engine.Engine
	kernel kernel.Kernel
	log    logrus.FieldLogger
}

// MeshData is the JSON-serializable mesh format written by -mesh.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	Volume   string    `json:"volume"`
	Material string    `json:"material"`
	Copy     int       `json:"copy"`
	Color    string    `json:"color"`
}

// Summary is what a run reports about the constructed scene.
type Summary struct {
	BuildID    string
	WorldSize  [3]float64
	Solids     int
	Volumes    int
	Placements int
	Grids      int
	Detectors  []DetectorSummary
	Validation geometry.ValidationResult
	Meshes     int
}

// DetectorSummary describes one constructed detector.
type DetectorSummary struct {
	Name    string
	Model   string
	Pixels  [2]int
	Bumps   bool
	Chip    bool
	Support int
}

// NewApp creates a new App with an engine and the sdfx kernel.
func NewApp(log logrus.FieldLogger, meshCells int) *App {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &App{
		engine: engine.NewEngine(),
		kernel: sdfx.NewWithCells(meshCells),
		log:    log,
	}
}

// Load reads a geometry description, choosing the front end by extension.
func (a *App) Load(path string) (*config.File, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".lisp":
		return a.engine.LoadFile(path)
	case ".yaml", ".yml":
		return config.Load(path)
	}
	return nil, fmt.Errorf("unsupported geometry file %q: expected .yaml, .yml or .lisp", path)
}

// Run loads, builds, validates and summarises the scene, then writes meshes
// when opts.MeshPath is set. Validation errors fail the run; warnings are
// only logged.
func (a *App) Run(opts Options) (*Summary, error) {
	f, err := a.Load(opts.GeometryPath)
	if err != nil {
		return nil, err
	}
	res, err := construct.Build(f, material.NewRegistry(), a.log)
	if err != nil {
		return nil, err
	}

	sum := a.Summarise(res)
	for _, w := range sum.Validation.Warnings {
		a.log.Warn(w.Error())
	}
	if !sum.Validation.OK() {
		for _, e := range sum.Validation.Errors {
			a.log.Error(e.Error())
		}
		return sum, fmt.Errorf("scene validation failed with %d error(s)", len(sum.Validation.Errors))
	}

	if opts.MeshPath != "" {
		meshes, err := a.Meshes(res, opts.MaxInstances)
		if err != nil {
			return sum, err
		}
		if err := writeMeshes(opts.MeshPath, meshes); err != nil {
			return sum, err
		}
		sum.Meshes = len(meshes)
		a.log.Infof("Wrote %d meshes to %s", len(meshes), opts.MeshPath)
	}
	return sum, nil
}

// Summarise validates the scene and logs its vital statistics.
func (a *App) Summarise(res *construct.Result) *Summary {
	s := res.Scene
	sum := &Summary{
		BuildID:    res.BuildID,
		WorldSize:  [3]float64{2 * res.WorldHalfExtent.X, 2 * res.WorldHalfExtent.Y, 2 * res.WorldHalfExtent.Z},
		Solids:     s.SolidCount(),
		Volumes:    len(s.Volumes()),
		Placements: len(s.Placements()),
		Grids:      len(s.PeriodicPlacements()),
		Validation: geometry.Validate(s),
	}
	log := a.log.WithField("build", res.BuildID)
	log.Infof("World %.3f x %.3f x %.3f mm of %s", sum.WorldSize[0], sum.WorldSize[1], sum.WorldSize[2], res.WorldMaterial)
	log.Infof("%d solids, %d volumes, %d placements, %d periodic grids", sum.Solids, sum.Volumes, sum.Placements, sum.Grids)

	names := make([]string, 0, len(res.Detectors))
	for name := range res.Detectors {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		vols := res.Detectors[name]
		d := res.Manager.Detector(name)
		ds := DetectorSummary{
			Name:    name,
			Model:   d.Model.Name(),
			Pixels:  d.Model.NPixels(),
			Bumps:   vols.Bumps != nil,
			Chip:    vols.Chip != nil,
			Support: len(vols.Supports),
		}
		sum.Detectors = append(sum.Detectors, ds)
		log.WithField("detector", name).Infof("%s: %d x %d pixels, chip %t, bumps %t, %d support layer(s)",
			ds.Model, ds.Pixels[0], ds.Pixels[1], ds.Chip, ds.Bumps, ds.Support)
	}
	log.Infof("Validation: %d error(s), %d warning(s)", len(sum.Validation.Errors), len(sum.Validation.Warnings))
	return sum
}

// Meshes tessellates the scene into the JSON mesh format. Colors are
// assigned per material.
func (a *App) Meshes(res *construct.Result, maxInstances int) ([]MeshData, error) {
	meshes, err := tessellate.Tessellate(res.Scene, a.kernel, tessellate.Options{
		MaxInstances:  maxInstances,
		SkipMaterials: ambientMaterials,
		Log:           a.log,
	})
	if err != nil {
		return nil, err
	}

	colors := make(map[string]string)
	out := make([]MeshData, 0, len(meshes))
	for _, m := range meshes {
		color, ok := colors[m.Material]
		if !ok {
			color = colorPalette[len(colors)%len(colorPalette)]
			colors[m.Material] = color
		}
		out = append(out, MeshData{
			Vertices: m.Vertices,
			Normals:  m.Normals,
			Indices:  m.Indices,
			Volume:   m.Volume,
			Material: m.Material,
			Copy:     m.Copy,
			Color:    color,
		})
	}
	return out, nil
}

func writeMeshes(path string, meshes []MeshData) error {
	data, err := json.Marshal(meshes)
	if err != nil {
		return fmt.Errorf("encode meshes: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write meshes: %w", err)
	}
	return nil
}
