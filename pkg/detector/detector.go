package detector

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/pixelgeo/pkg/config"
	"github.com/chazu/pixelgeo/pkg/geometry"
	"github.com/chazu/pixelgeo/pkg/orientation"
)

// Detector is a model instance placed in the world. Position is the centre
// of the model envelope in world coordinates.
type Detector struct {
	Name      string
	Model     *Model
	Position  r3.Vec
	Angles    r3.Vec
	Mode      orientation.Mode
	Transform orientation.Transform
}

// NewDetector reads a detector block and binds it to one of models.
func NewDetector(s *config.Section, models map[string]*Model) (*Detector, error) {
	name, err := s.String("name")
	if err != nil {
		return nil, err
	}
	modelName, err := s.String("model")
	if err != nil {
		return nil, err
	}
	model, ok := models[modelName]
	if !ok {
		return nil, s.InvalidValue("model", "unknown detector model %q", modelName)
	}
	position, err := s.Vec3("position")
	if err != nil {
		return nil, err
	}
	angles, err := s.Vec3Or("orientation", r3.Vec{})
	if err != nil {
		return nil, err
	}
	modeName, err := s.StringOr("orientation_mode", string(orientation.DefaultMode))
	if err != nil {
		return nil, err
	}
	mode, err := orientation.ParseMode(modeName)
	if err != nil {
		return nil, &config.KeyError{Section: s.Name(), Key: "orientation_mode", Err: err}
	}
	rot, err := orientation.Resolve(angles, mode)
	if err != nil {
		return nil, err
	}
	return &Detector{
		Name:      name,
		Model:     model,
		Position:  position,
		Angles:    angles,
		Mode:      mode,
		Transform: orientation.Transform{Rotation: rot, Translation: position},
	}, nil
}

// Corners returns the eight corners of the detector's envelope in world
// coordinates, with the orientation applied.
func (d *Detector) Corners() [8]r3.Vec {
	corners := geometry.BoxFromHalf(r3.Scale(0.5, d.Model.Size())).Corners()
	for i, c := range corners {
		corners[i] = d.Transform.Apply(c)
	}
	return corners
}

// LocalToWrapper maps a point in the model's local frame into the frame of
// the wrapper volume, which is centred on the model envelope.
func (d *Detector) LocalToWrapper(p r3.Vec) r3.Vec {
	return r3.Sub(p, d.Model.Center())
}
