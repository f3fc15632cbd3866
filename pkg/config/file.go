package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// maxFileSize bounds geometry files read from disk.
const maxFileSize = 1 * 1024 * 1024

// WorldSection is the name given to the world block.
const WorldSection = "world"

// File is a parsed geometry description: the world block, the detector
// models by name, and the detectors and passive items in declaration order.
type File struct {
	World     *Section
	Models    map[string]*Section
	Detectors []*Section
	Passive   []*Section
}

// NewFile returns an empty description with an empty world block.
func NewFile() *File {
	return &File{
		World:  NewSection(WorldSection, nil),
		Models: make(map[string]*Section),
	}
}

// ModelNames returns the model names in sorted order.
func (f *File) ModelNames() []string {
	names := make([]string, 0, len(f.Models))
	for n := range f.Models {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// rawFile mirrors the YAML document layout.
type rawFile struct {
	World     map[string]any            `yaml:"world"`
	Models    map[string]map[string]any `yaml:"models"`
	Detectors []map[string]any          `yaml:"detectors"`
	Passive   []map[string]any          `yaml:"passive"`
}

// Load reads a geometry description from a YAML file. The path must have a
// .yaml or .yml extension and the file must not exceed 1 MiB.
func Load(path string) (*File, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config: geometry file must have .yaml or .yml extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("config: failed to stat geometry file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config: geometry file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read geometry file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML geometry description. Unknown top-level keys are
// rejected; an empty document yields an empty description.
func Parse(data []byte) (*File, error) {
	var raw rawFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: failed to parse geometry YAML: %w", err)
	}

	f := NewFile()
	if raw.World != nil {
		f.World = NewSection(WorldSection, raw.World)
	}
	for name, m := range raw.Models {
		f.Models[name] = NewSection(name, m)
	}
	for i, m := range raw.Detectors {
		f.Detectors = append(f.Detectors, NewSection(blockName(m, fmt.Sprintf("detectors[%d]", i)), m))
	}
	for i, m := range raw.Passive {
		f.Passive = append(f.Passive, NewSection(blockName(m, fmt.Sprintf("passive[%d]", i)), m))
	}
	return f, nil
}
