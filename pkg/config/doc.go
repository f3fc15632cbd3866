// Package config reads geometry description files and exposes their blocks as
// named sections with typed, unit-aware accessors.
package config
