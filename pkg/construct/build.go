package construct

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/pixelgeo/pkg/config"
	"github.com/chazu/pixelgeo/pkg/detector"
	"github.com/chazu/pixelgeo/pkg/geometry"
	"github.com/chazu/pixelgeo/pkg/material"
)

// WorldName names the world solid and volume.
const WorldName = "World"

// Result is a fully constructed scene.
type Result struct {
	BuildID         string
	Scene           *geometry.Scene
	World           geometry.VolumeID
	WorldMaterial   material.Material
	WorldHalfExtent r3.Vec
	Manager         *detector.Manager

	// Detectors and Passive hold the handles created for each entity,
	// keyed by name.
	Detectors map[string]*DetectorVolumes
	Passive   map[string]*PassiveVolumes
	// PassiveOrder lists passive item names in declaration order.
	PassiveOrder []string
}

// Build constructs the scene described by f. Construction is all or
// nothing: on error the partial scene is dropped. A nil registry selects the
// built-in materials and a nil logger the standard logrus logger.
func Build(f *config.File, materials *material.Registry, log logrus.FieldLogger) (*Result, error) {
	if materials == nil {
		materials = material.NewRegistry()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	res := &Result{
		BuildID:   uuid.NewString(),
		Scene:     geometry.New(),
		Manager:   detector.NewManager(),
		Detectors: make(map[string]*DetectorVolumes),
		Passive:   make(map[string]*PassiveVolumes),
	}
	log = log.WithField("build", res.BuildID)

	if err := registerMaterials(f.World, materials); err != nil {
		return nil, entityErr(KindWorld, f.World.Name(), err)
	}
	worldMaterialName, err := f.World.StringOr(worldKey(f.World, "material"), DefaultWorldMaterial)
	if err != nil {
		return nil, entityErr(KindWorld, f.World.Name(), err)
	}
	if res.WorldMaterial, err = materials.Lookup(worldMaterialName); err != nil {
		return nil, entityErr(KindWorld, f.World.Name(), err)
	}
	log.Tracef("Material of world is %s", res.WorldMaterial.Description())

	// Gather everything the world has to enclose.
	models := make(map[string]*detector.Model, len(f.Models))
	for _, name := range f.ModelNames() {
		m, err := detector.NewModel(f.Models[name])
		if err != nil {
			return nil, entityErr(KindModel, name, err)
		}
		models[name] = m
	}
	for _, s := range f.Detectors {
		d, err := detector.NewDetector(s, models)
		if err != nil {
			return nil, entityErr(KindDetector, s.Name(), err)
		}
		if err := res.Manager.AddDetector(d); err != nil {
			return nil, err
		}
	}
	items := make([]*PassiveItem, 0, len(f.Passive))
	for _, s := range f.Passive {
		item, err := NewPassiveItem(s, res.WorldMaterial.Name())
		if err != nil {
			return nil, err
		}
		points := item.Points()
		res.Manager.AddPoints(points[:]...)
		items = append(items, item)
	}

	sizer, err := NewWorldSizer(f.World)
	if err != nil {
		return nil, entityErr(KindWorld, f.World.Name(), err)
	}
	if res.WorldHalfExtent, err = sizer.HalfExtent(res.Manager.Points()); err != nil {
		return nil, entityErr(KindWorld, f.World.Name(), err)
	}
	log.Debugf("World size is %v", r3.Scale(2, res.WorldHalfExtent))

	if res.World, err = buildWorld(res.Scene, res.WorldHalfExtent, res.WorldMaterial); err != nil {
		return nil, entityErr(KindWorld, f.World.Name(), err)
	}

	detectors := res.Manager.Detectors()
	log.Tracef("Building %d device(s)", len(detectors))
	db := NewDetectorBuilder(res.Scene, res.World, res.WorldMaterial, materials, log)
	for _, d := range detectors {
		vols, err := db.Build(d)
		if err != nil {
			return nil, err
		}
		res.Detectors[d.Name] = vols
	}

	pb := NewPassiveBuilder(res.Scene, res.World, materials, log)
	for _, item := range items {
		vols, err := pb.Build(item)
		if err != nil {
			return nil, err
		}
		res.Passive[item.Name] = vols
		res.PassiveOrder = append(res.PassiveOrder, item.Name)
	}

	log.Tracef("Constructed scene with %d solids", res.Scene.SolidCount())
	return res, nil
}

// registerMaterials adds the world block's extra materials to the registry.
func registerMaterials(world *config.Section, materials *material.Registry) error {
	extra, err := world.Sections("materials")
	if err != nil {
		return err
	}
	for _, s := range extra {
		name, err := s.String("name")
		if err != nil {
			return err
		}
		desc, err := s.String("description")
		if err != nil {
			return err
		}
		if _, err := materials.Register(name, desc); err != nil {
			return s.InvalidValue("name", "%v", err)
		}
	}
	return nil
}

func buildWorld(scene *geometry.Scene, half r3.Vec, mat material.Material) (geometry.VolumeID, error) {
	solid, err := scene.MakeBox(WorldName, half)
	if err != nil {
		return 0, err
	}
	world, err := scene.NewVolume(WorldName, solid, mat)
	if err != nil {
		return 0, err
	}
	return world, scene.SetRoot(world)
}
