package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrMissingKey is returned when a required key is absent from a section.
	ErrMissingKey = errors.New("missing key")

	// ErrInvalidValue is returned when a value is present but malformed or
	// outside its permitted set.
	ErrInvalidValue = errors.New("invalid configuration value")
)

// KeyError locates a configuration problem by section and key.
type KeyError struct {
	Section string
	Key     string
	Err     error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("config: section %q: key %q: %v", e.Section, e.Key, e.Err)
}

func (e *KeyError) Unwrap() error { return e.Err }

// Vec2 is a pair of quantities, used for in-plane sizes and pitches.
type Vec2 struct {
	X, Y float64
}

// Section is one named configuration block: a world block, a detector model,
// a detector, or a passive item.
type Section struct {
	name   string
	values map[string]any
}

// NewSection creates a section from already-decoded values. A nil map
// produces an empty section.
func NewSection(name string, values map[string]any) *Section {
	if values == nil {
		values = make(map[string]any)
	}
	return &Section{name: name, values: values}
}

// Name returns the configured name of the block.
func (s *Section) Name() string {
	return s.name
}

// Has reports whether key is present.
func (s *Section) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Set stores a raw value, replacing any previous one.
func (s *Section) Set(key string, value any) {
	s.values[key] = value
}

// Keys returns the keys of the section in sorted order.
func (s *Section) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// InvalidValue builds a KeyError wrapping ErrInvalidValue for callers that
// validate values beyond their type.
func (s *Section) InvalidValue(key, format string, args ...any) error {
	return s.keyErr(key, fmt.Errorf("%w: %s", ErrInvalidValue, fmt.Sprintf(format, args...)))
}

func (s *Section) keyErr(key string, err error) error {
	return &KeyError{Section: s.name, Key: key, Err: err}
}

func (s *Section) lookup(key string) (any, error) {
	v, ok := s.values[key]
	if !ok {
		return nil, s.keyErr(key, ErrMissingKey)
	}
	return v, nil
}

// ---------------------------------------------------------------------------
// Scalars
// ---------------------------------------------------------------------------

// Float returns a required unit-aware number.
func (s *Section) Float(key string) (float64, error) {
	v, err := s.lookup(key)
	if err != nil {
		return 0, err
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, s.keyErr(key, err)
	}
	return f, nil
}

// FloatOr returns the number at key, or def when the key is absent.
func (s *Section) FloatOr(key string, def float64) (float64, error) {
	if !s.Has(key) {
		return def, nil
	}
	return s.Float(key)
}

// Int returns a required integer.
func (s *Section) Int(key string) (int, error) {
	v, err := s.lookup(key)
	if err != nil {
		return 0, err
	}
	i, err := toInt(v)
	if err != nil {
		return 0, s.keyErr(key, err)
	}
	return i, nil
}

// IntOr returns the integer at key, or def when the key is absent.
func (s *Section) IntOr(key string, def int) (int, error) {
	if !s.Has(key) {
		return def, nil
	}
	return s.Int(key)
}

// String returns a required string value.
func (s *Section) String(key string) (string, error) {
	v, err := s.lookup(key)
	if err != nil {
		return "", err
	}
	str, ok := v.(string)
	if !ok {
		return "", s.keyErr(key, fmt.Errorf("%w: expected string, got %T", ErrInvalidValue, v))
	}
	return str, nil
}

// StringOr returns the string at key, or def when the key is absent.
func (s *Section) StringOr(key, def string) (string, error) {
	if !s.Has(key) {
		return def, nil
	}
	return s.String(key)
}

// Bool returns a required boolean.
func (s *Section) Bool(key string) (bool, error) {
	v, err := s.lookup(key)
	if err != nil {
		return false, err
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(b) {
		case "true", "yes", "1":
			return true, nil
		case "false", "no", "0":
			return false, nil
		}
	}
	return false, s.keyErr(key, fmt.Errorf("%w: expected boolean, got %v", ErrInvalidValue, v))
}

// BoolOr returns the boolean at key, or def when the key is absent.
func (s *Section) BoolOr(key string, def bool) (bool, error) {
	if !s.Has(key) {
		return def, nil
	}
	return s.Bool(key)
}

// ---------------------------------------------------------------------------
// Vectors
// ---------------------------------------------------------------------------

// Vec2 returns a required two-component quantity.
func (s *Section) Vec2(key string) (Vec2, error) {
	v, err := s.lookup(key)
	if err != nil {
		return Vec2{}, err
	}
	c, err := toFloats(v, 2)
	if err != nil {
		return Vec2{}, s.keyErr(key, err)
	}
	return Vec2{X: c[0], Y: c[1]}, nil
}

// Vec2Or returns the pair at key, or def when the key is absent.
func (s *Section) Vec2Or(key string, def Vec2) (Vec2, error) {
	if !s.Has(key) {
		return def, nil
	}
	return s.Vec2(key)
}

// Vec3 returns a required three-component quantity.
func (s *Section) Vec3(key string) (r3.Vec, error) {
	v, err := s.lookup(key)
	if err != nil {
		return r3.Vec{}, err
	}
	c, err := toFloats(v, 3)
	if err != nil {
		return r3.Vec{}, s.keyErr(key, err)
	}
	return r3.Vec{X: c[0], Y: c[1], Z: c[2]}, nil
}

// Vec3Or returns the triple at key, or def when the key is absent.
func (s *Section) Vec3Or(key string, def r3.Vec) (r3.Vec, error) {
	if !s.Has(key) {
		return def, nil
	}
	return s.Vec3(key)
}

// IntVec2 returns a required pair of integers, such as a pixel count.
func (s *Section) IntVec2(key string) ([2]int, error) {
	v, err := s.lookup(key)
	if err != nil {
		return [2]int{}, err
	}
	items, err := toItems(v)
	if err != nil {
		return [2]int{}, s.keyErr(key, err)
	}
	if len(items) != 2 {
		return [2]int{}, s.keyErr(key, fmt.Errorf("%w: expected 2 components, got %d", ErrInvalidValue, len(items)))
	}
	var out [2]int
	for i, item := range items {
		n, err := toInt(item)
		if err != nil {
			return [2]int{}, s.keyErr(key, err)
		}
		out[i] = n
	}
	return out, nil
}

// IntVec2Or returns the integer pair at key, or def when the key is absent.
func (s *Section) IntVec2Or(key string, def [2]int) ([2]int, error) {
	if !s.Has(key) {
		return def, nil
	}
	return s.IntVec2(key)
}

// ---------------------------------------------------------------------------
// Nested sections
// ---------------------------------------------------------------------------

// Sections returns the list of blocks stored under key, e.g. the support
// layers of a detector model. An absent key yields no sections. Blocks are
// named after their "name" entry, or "<section>.<key>[i]" otherwise.
func (s *Section) Sections(key string) ([]*Section, error) {
	v, ok := s.values[key]
	if !ok {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		if m, isMap := v.(map[string]any); isMap {
			list = []any{m}
		} else {
			return nil, s.keyErr(key, fmt.Errorf("%w: expected list of blocks, got %T", ErrInvalidValue, v))
		}
	}
	out := make([]*Section, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, s.keyErr(key, fmt.Errorf("%w: entry %d: expected block, got %T", ErrInvalidValue, i, item))
		}
		out = append(out, NewSection(blockName(m, fmt.Sprintf("%s.%s[%d]", s.name, key, i)), m))
	}
	return out, nil
}

// blockName returns the "name" entry of a decoded block, or fallback.
func blockName(m map[string]any, fallback string) string {
	if n, ok := m["name"].(string); ok && n != "" {
		return n
	}
	return fallback
}

// ---------------------------------------------------------------------------
// Value conversion
// ---------------------------------------------------------------------------

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	case string:
		f, err := ParseQuantity(n)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return f, nil
	}
	return 0, fmt.Errorf("%w: expected number, got %T", ErrInvalidValue, v)
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n == float64(int(n)) {
			return int(n), nil
		}
	case string:
		f, err := ParseQuantity(n)
		if err == nil && f == float64(int(f)) {
			return int(f), nil
		}
	}
	return 0, fmt.Errorf("%w: expected integer, got %v", ErrInvalidValue, v)
}

// toItems splits a vector value into its components. Sequences are used as
// is; strings are split on whitespace and commas.
func toItems(v any) ([]any, error) {
	switch x := v.(type) {
	case []any:
		return x, nil
	case []float64:
		out := make([]any, len(x))
		for i, f := range x {
			out[i] = f
		}
		return out, nil
	case string:
		fields := strings.FieldsFunc(x, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' })
		out := make([]any, len(fields))
		for i, f := range fields {
			out[i] = f
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: expected vector, got %T", ErrInvalidValue, v)
}

func toFloats(v any, n int) ([]float64, error) {
	items, err := toItems(v)
	if err != nil {
		return nil, err
	}
	if len(items) != n {
		return nil, fmt.Errorf("%w: expected %d components, got %d", ErrInvalidValue, n, len(items))
	}
	out := make([]float64, n)
	for i, item := range items {
		f, err := toFloat(item)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}
