// Package construct builds the scene for a geometry description: it sizes
// the world, assembles every detector's volume tree and places the passive
// material items.
package construct

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDimensions is returned for shapes whose dimensions cannot
	// describe a solid, such as a tube with its inner diameter at or above
	// the outer one.
	ErrInvalidDimensions = errors.New("invalid dimensions")

	// ErrEmptyGeometry is returned when nothing contributes to the world
	// extent.
	ErrEmptyGeometry = errors.New("empty geometry: no detector or passive item to enclose")
)

// Entity kinds reported in EntityError.
const (
	KindWorld    = "world"
	KindModel    = "model"
	KindDetector = "detector"
	KindSupport  = "support"
	KindPassive  = "passive"
)

// EntityError names the configured entity a construction error belongs to.
type EntityError struct {
	Kind string
	Name string
	Err  error
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("construct: %s %q: %v", e.Kind, e.Name, e.Err)
}

func (e *EntityError) Unwrap() error { return e.Err }

func entityErr(kind, name string, err error) error {
	if err == nil {
		return nil
	}
	return &EntityError{Kind: kind, Name: name, Err: err}
}
