package geometry

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// ValidationSeverity indicates whether a finding makes the scene unusable
// or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks the run
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Volume   string             // which volume has the problem (empty if scene-level)
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.Volume == "" {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] volume %s: %s", e.Severity, e.Volume, e.Message)
}

// ValidationResult bundles blocking errors and advisory warnings.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// OK reports whether the scene has no blocking errors.
func (r ValidationResult) OK() bool { return len(r.Errors) == 0 }

// containmentTolerance absorbs rounding in placement translations.
const containmentTolerance = 1e-9

// Validate checks the structural invariants of the scene (single root, every
// volume placed and reachable, boolean operands created before their
// result) and warns about children whose bounding box pokes out of their
// parent. It never mutates the scene.
func Validate(s *Scene) ValidationResult {
	var res ValidationResult
	for _, e := range append(validateRoot(s), validateTree(s)...) {
		res.add(e)
	}
	for _, e := range validateSolids(s) {
		res.add(e)
	}
	for _, e := range validateContainment(s) {
		res.add(e)
	}
	return res
}

func (r *ValidationResult) add(e ValidationError) {
	if e.Severity == SeverityWarning {
		r.Warnings = append(r.Warnings, e)
		return
	}
	r.Errors = append(r.Errors, e)
}

func validateRoot(s *Scene) []ValidationError {
	root, ok := s.Root()
	if !ok {
		return []ValidationError{{Message: "no world volume set", Severity: SeverityError}}
	}
	if _, placed := s.ParentOf(root); placed {
		return []ValidationError{{
			Volume:   s.volumes[root].Name,
			Message:  "world volume is placed inside another volume",
			Severity: SeverityError,
		}}
	}
	return nil
}

// validateTree checks that every volume other than the root has a parent and
// that following parents always ends at the root.
func validateTree(s *Scene) []ValidationError {
	var errs []ValidationError
	root, hasRoot := s.Root()
	for _, v := range s.volumes {
		if hasRoot && v.ID == root {
			continue
		}
		if !v.hasParent {
			errs = append(errs, ValidationError{
				Volume:   v.Name,
				Message:  "volume is never placed",
				Severity: SeverityError,
			})
			continue
		}
		seen := map[VolumeID]bool{v.ID: true}
		a := v.parent
		for {
			if seen[a] {
				errs = append(errs, ValidationError{
					Volume:   v.Name,
					Message:  "volume is part of a placement cycle",
					Severity: SeverityError,
				})
				break
			}
			seen[a] = true
			p, ok := s.ParentOf(a)
			if !ok {
				if !hasRoot || a != root {
					errs = append(errs, ValidationError{
						Volume:   v.Name,
						Message:  fmt.Sprintf("volume is not reachable from the world volume (top ancestor %q)", s.volumes[a].Name),
						Severity: SeverityError,
					})
				}
				break
			}
			a = p
		}
	}
	return errs
}

// validateSolids checks that boolean operands precede their result, which
// keeps the solid graph acyclic.
func validateSolids(s *Scene) []ValidationError {
	var errs []ValidationError
	check := func(sol *Solid, operands ...SolidID) {
		for _, o := range operands {
			if o < 0 || o >= sol.ID {
				errs = append(errs, ValidationError{
					Message:  fmt.Sprintf("solid %q references operand %d not created before it", sol.Name, o),
					Severity: SeverityError,
				})
			}
		}
	}
	for _, sol := range s.solids {
		switch d := sol.Data.(type) {
		case SubtractionData:
			check(sol, d.A, d.B)
		case UnionData:
			check(sol, d.A, d.B)
		}
	}
	return errs
}

// validateContainment warns when a child's bounding box extends outside its
// parent's bounding box.
func validateContainment(s *Scene) []ValidationError {
	var warns []ValidationError
	bounds := func(v VolumeID) Box {
		return BoxFromHalf(s.solids[s.volumes[v].Solid].extent)
	}
	for _, p := range s.placements {
		if !bounds(p.Parent).Contains(bounds(p.Child).Transformed(p.Transform), containmentTolerance) {
			warns = append(warns, ValidationError{
				Volume:   s.volumes[p.Child].Name,
				Message:  fmt.Sprintf("extends outside parent %q", s.volumes[p.Parent].Name),
				Severity: SeverityWarning,
			})
		}
	}
	for _, p := range s.periodic {
		cell := bounds(p.Child)
		b := p.Bounds()
		grid := Box{Min: r3.Add(b.Min, cell.Min), Max: r3.Add(b.Max, cell.Max)}
		if !bounds(p.Parent).Contains(grid, containmentTolerance) {
			warns = append(warns, ValidationError{
				Volume:   s.volumes[p.Child].Name,
				Message:  fmt.Sprintf("periodic grid extends outside parent %q", s.volumes[p.Parent].Name),
				Severity: SeverityWarning,
			})
		}
	}
	return warns
}
