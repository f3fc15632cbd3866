// Package geometry holds the scene description produced for one simulation
// run: an arena of immutable solids, the volumes binding them to materials,
// and the placement tree, including periodic grid placements that are
// evaluated lazily by whoever consumes the scene.
package geometry
