// Package material maps material names to the opaque handles that volumes
// reference. Physical properties are resolved downstream by the transport
// engine through each material's database identifier.
package material

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownMaterial is returned when a name has not been registered.
var ErrUnknownMaterial = errors.New("unknown material")

// Material is an opaque, comparable handle. Two handles are equal exactly
// when their names are equal.
type Material struct {
	name        string
	description string
}

// Name returns the lowercase registry name.
func (m Material) Name() string { return m.name }

// Description returns the physics database identifier, e.g. "G4_Si".
func (m Material) Description() string { return m.description }

// IsZero reports whether m is the zero handle.
func (m Material) IsZero() bool { return m.name == "" }

func (m Material) String() string { return m.name }

// builtin lists the materials every registry starts with.
var builtin = []Material{
	{"vacuum", "Vacuum"},
	{"air", "G4_AIR"},
	{"silicon", "G4_Si"},
	{"epoxy", "G4_PLEXIGLASS"},
	{"kapton", "G4_KAPTON"},
	{"copper", "G4_Cu"},
	{"solder", "Solder_Sn63Pb37"},
	{"g10", "G10"},
	{"lead", "G4_Pb"},
	{"tungsten", "G4_W"},
	{"aluminum", "G4_Al"},
	{"iron", "G4_Fe"},
	{"water", "G4_WATER"},
	{"lithium", "G4_Li"},
}

// Registry maps names to material handles. A registry belongs to a single
// scene build and is not safe for concurrent use.
type Registry struct {
	byName map[string]Material
}

// NewRegistry returns a registry holding the built-in materials.
func NewRegistry() *Registry {
	r := &Registry{byName: make(map[string]Material, len(builtin))}
	for _, m := range builtin {
		r.byName[m.name] = m
	}
	return r
}

// Register adds an externally supplied material. Names are case-insensitive.
// Registering an existing name again is allowed only with the same description.
func (r *Registry) Register(name, description string) (Material, error) {
	key := normalize(name)
	if key == "" {
		return Material{}, fmt.Errorf("material: empty name")
	}
	if existing, ok := r.byName[key]; ok {
		if existing.description != description {
			return Material{}, fmt.Errorf("material: %q already registered as %q", key, existing.description)
		}
		return existing, nil
	}
	m := Material{name: key, description: description}
	r.byName[key] = m
	return m, nil
}

// Lookup resolves a name to its handle.
func (r *Registry) Lookup(name string) (Material, error) {
	m, ok := r.byName[normalize(name)]
	if !ok {
		return Material{}, fmt.Errorf("%w %q", ErrUnknownMaterial, name)
	}
	return m, nil
}

// Has reports whether a material of that name exists.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[normalize(name)]
	return ok
}

// Names returns all registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
