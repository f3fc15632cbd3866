package orientation

import "gonum.org/v1/gonum/spatial/r3"

// Transform is a rigid transform: rotate, then translate.
type Transform struct {
	Rotation    Rotation
	Translation r3.Vec
}

// IdentityTransform leaves points unchanged.
func IdentityTransform() Transform {
	return Transform{Rotation: Identity()}
}

// Translation returns a pure translation.
func Translation(t r3.Vec) Transform {
	return Transform{Rotation: Identity(), Translation: t}
}

// NewTransform resolves a configured angle triple under the named
// convention and combines it with position.
func NewTransform(angles r3.Vec, mode string, position r3.Vec) (Transform, error) {
	rot, err := ResolveString(angles, mode)
	if err != nil {
		return Transform{}, err
	}
	return Transform{Rotation: rot, Translation: position}, nil
}

// Apply maps a point from the local frame into the parent frame.
func (t Transform) Apply(p r3.Vec) r3.Vec {
	return r3.Add(t.Rotation.Apply(p), t.Translation)
}

// Then returns the transform that applies t first and then outer.
func (t Transform) Then(outer Transform) Transform {
	return Transform{
		Rotation:    Compose(outer.Rotation, t.Rotation),
		Translation: outer.Apply(t.Translation),
	}
}

// Inverse returns the transform mapping parent coordinates back to local ones.
func (t Transform) Inverse() Transform {
	inv := t.Rotation.Inverse()
	return Transform{
		Rotation:    inv,
		Translation: r3.Scale(-1, inv.Apply(t.Translation)),
	}
}
