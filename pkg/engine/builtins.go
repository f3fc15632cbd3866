package engine

import (
	"fmt"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/pixelgeo/pkg/config"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms Lisp geometry source code before passing it to
// zygomys. It performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: my-pitch -> my_pitch
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpVector holds the components of a vec2 or vec3. Components are numbers
// or unit-carrying strings such as "55um".
type sexpVector struct {
	items []any
}

func (v *sexpVector) SexpString(ps *zygo.PrintState) string {
	parts := make([]string, len(v.items))
	for i, it := range v.items {
		parts[i] = fmt.Sprint(it)
	}
	return fmt.Sprintf("(vec%d %s)", len(v.items), strings.Join(parts, " "))
}
func (v *sexpVector) Type() *zygo.RegisteredType { return nil }

// sexpBlock holds a nested configuration block, e.g. a support layer.
type sexpBlock struct {
	kind   string
	values map[string]any
}

func (b *sexpBlock) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(%s ...%d keys)", b.kind, len(b.values))
}
func (b *sexpBlock) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	order      []string
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if _, seen := result.kw[name]; !seen {
				result.order = append(result.order, name)
			}
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value: treat as flag with nil.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// configKey maps a keyword name to its configuration key: sensor-thickness
// becomes sensor_thickness.
func configKey(kw string) string {
	return strings.ReplaceAll(kw, "-", "_")
}

// block converts every keyword argument into a configuration entry.
func (pa kwArgs) block(fn string) (map[string]any, error) {
	values := make(map[string]any, len(pa.kw))
	for _, name := range pa.order {
		v, err := toValue(pa.kw[name])
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", fn, name, err)
		}
		values[configKey(name)] = v
	}
	return values, nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toComponent extracts a vector component: a number, or a string carrying
// units.
func toComponent(s zygo.Sexp) (any, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		if _, err := config.ParseQuantity(str.S); err != nil {
			return nil, err
		}
		return str.S, nil
	}
	return toFloat64(s)
}

// toValue converts a Sexp into the plain Go value a config.Section expects.
// Keywords used as values (:hybrid) become their bare names.
func toValue(s zygo.Sexp) (any, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return int(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	case *zygo.SexpStr:
		return strings.TrimPrefix(v.S, kwPrefix), nil
	case *zygo.SexpBool:
		return v.Val, nil
	case *sexpVector:
		return append([]any(nil), v.items...), nil
	case *sexpBlock:
		return v.values, nil
	case *zygo.SexpPair, *zygo.SexpArray:
		items, err := sexpListToSlice(s)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(items))
		for i, it := range items {
			if out[i], err = toValue(it); err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported value %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// ---------------------------------------------------------------------------
// Description builder
// ---------------------------------------------------------------------------

// builder accumulates the geometry description while the program runs.
type builder struct {
	file      *config.File
	materials []any
}

func newBuilder() *builder {
	return &builder{file: config.NewFile()}
}

// finish attaches the collected materials to the world block.
func (b *builder) finish() *config.File {
	if len(b.materials) > 0 {
		b.file.World.Set("materials", b.materials)
	}
	return b.file
}

// named parses (fn "name" :key value ...) into a section. Positional
// sexpBlock arguments after the name are collected under their kind.
func named(fn string, args []zygo.Sexp) (*config.Section, error) {
	pa := parseArgs(args)
	if len(pa.positional) < 1 {
		return nil, fmt.Errorf("%s requires a name argument", fn)
	}
	name, err := toString(pa.positional[0])
	if err != nil {
		return nil, fmt.Errorf("%s: name: %w", fn, err)
	}
	values, err := pa.block(fn)
	if err != nil {
		return nil, err
	}
	for i, p := range pa.positional[1:] {
		blk, ok := p.(*sexpBlock)
		if !ok {
			return nil, fmt.Errorf("%s %q: argument %d: expected keyword or block, got %T (%s)",
				fn, name, i+2, p, p.SexpString(nil))
		}
		list, _ := values[blk.kind].([]any)
		values[blk.kind] = append(list, blk.values)
	}
	values["name"] = name
	return config.NewSection(name, values), nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the geometry DSL builtins into a zygomys
// environment. The builtins populate b during evaluation.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, b *builder) {

	// -----------------------------------------------------------------------
	// (vec3 1 2 "3mm") and (vec2 "55um" "55um")
	// -----------------------------------------------------------------------
	vector := func(n int) zygo.ZlispUserFunction {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) != n {
				return zygo.SexpNull, fmt.Errorf("%s requires exactly %d arguments, got %d", name, n, len(args))
			}
			v := &sexpVector{items: make([]any, n)}
			for i, a := range args {
				c, err := toComponent(a)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: component %d: %w", name, i, err)
				}
				v.items[i] = c
			}
			return v, nil
		}
	}
	env.AddFunction("vec3", vector(3))
	env.AddFunction("vec2", vector(2))

	// -----------------------------------------------------------------------
	// (world :material "air" :margin-percentage 0.1 :minimum-margin (vec3 ...))
	// -----------------------------------------------------------------------
	env.AddFunction("world", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) > 0 {
			return zygo.SexpNull, fmt.Errorf("world takes keyword arguments only")
		}
		values, err := pa.block("world")
		if err != nil {
			return zygo.SexpNull, err
		}
		for k, v := range values {
			b.file.World.Set(k, v)
		}
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (material "beryllium" "G4_Be")
	// -----------------------------------------------------------------------
	env.AddFunction("material", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("material requires a name and a description")
		}
		matName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("material: name: %w", err)
		}
		desc, err := toString(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("material: description: %w", err)
		}
		b.materials = append(b.materials, map[string]any{"name": matName, "description": desc})
		return &zygo.SexpStr{S: matName}, nil
	})

	// -----------------------------------------------------------------------
	// (support :size (vec2 20 20) :thickness 1 :location :chip)
	// -----------------------------------------------------------------------
	env.AddFunction("support", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) > 0 {
			return zygo.SexpNull, fmt.Errorf("support takes keyword arguments only")
		}
		values, err := pa.block("support")
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpBlock{kind: "support", values: values}, nil
	})

	// -----------------------------------------------------------------------
	// (model "timepix" :type :hybrid :number-of-pixels (vec2 256 256) ...
	//        (support ...) (support ...))
	// -----------------------------------------------------------------------
	env.AddFunction("model", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		s, err := named("model", args)
		if err != nil {
			return zygo.SexpNull, err
		}
		if _, dup := b.file.Models[s.Name()]; dup {
			return zygo.SexpNull, fmt.Errorf("model: duplicate model %q", s.Name())
		}
		b.file.Models[s.Name()] = s
		return &zygo.SexpStr{S: s.Name()}, nil
	})

	// -----------------------------------------------------------------------
	// (detector "dut" :model "timepix" :position (vec3 0 0 0)
	//           :orientation (vec3 "10deg" 0 0) :orientation-mode "xyz")
	// -----------------------------------------------------------------------
	env.AddFunction("detector", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		s, err := named("detector", args)
		if err != nil {
			return zygo.SexpNull, err
		}
		b.file.Detectors = append(b.file.Detectors, s)
		return &zygo.SexpStr{S: s.Name()}, nil
	})

	// -----------------------------------------------------------------------
	// (passive "plate" :type :box :size (vec2 100 100) :thickness 1
	//          :position (vec3 0 0 50) :material "aluminum")
	// -----------------------------------------------------------------------
	env.AddFunction("passive", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		s, err := named("passive", args)
		if err != nil {
			return zygo.SexpNull, err
		}
		b.file.Passive = append(b.file.Passive, s)
		return &zygo.SexpStr{S: s.Name()}, nil
	})
}
