package loader

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/roach88/overfall/internal/ir"
)

// Format identifies a state document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCUE  Format = "cue"
	FormatTOML Format = "toml"
)

// Formats lists the supported formats.
var Formats = []Format{FormatJSON, FormatYAML, FormatCUE, FormatTOML}

// DetectFormat maps a file extension to its Format.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".cue":
		return FormatCUE, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported state document extension %q (want .json, .yaml, .yml, .cue or .toml)", filepath.Ext(path))
	}
}

// options configures a load.
type options struct {
	cuePath string
}

// Option configures LoadState and ParseState.
type Option func(*options)

// WithCUEPath selects the value at path (e.g. "state" or "fixtures.small")
// instead of the whole CUE document. Ignored for other formats.
func WithCUEPath(path string) Option {
	return func(o *options) {
		o.cuePath = path
	}
}

// LoadState reads a state document from path.
func LoadState(path string, opts ...Option) (ir.IRObject, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, &LoadError{Path: path, Message: err.Error(), Err: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newLoadError(path, format, err)
	}

	return parse(path, data, format, opts...)
}

// ParseState decodes a state document held in memory.
func ParseState(data []byte, format Format, opts ...Option) (ir.IRObject, error) {
	return parse("", data, format, opts...)
}

func parse(path string, data []byte, format Format, opts ...Option) (ir.IRObject, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	var (
		state ir.IRObject
		err   error
	)
	switch format {
	case FormatJSON:
		state, err = parseJSON(data)
	case FormatYAML:
		state, err = parseYAML(data)
	case FormatTOML:
		state, err = parseTOML(data)
	case FormatCUE:
		state, err = parseCUE(path, data, o.cuePath)
		if err != nil {
			return nil, err
		}
	default:
		err = fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return nil, newLoadError(path, format, err)
	}
	return state, nil
}

func parseJSON(data []byte) (ir.IRObject, error) {
	v, err := ir.UnmarshalIRValue(bytes.TrimSpace(data))
	if err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return asObject(v)
}

func parseYAML(data []byte) (ir.IRObject, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	// An empty document is an empty state.
	if doc == nil {
		return ir.IRObject{}, nil
	}
	v, err := ir.FromGo(doc)
	if err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return asObject(v)
}

func parseTOML(data []byte) (ir.IRObject, error) {
	var doc map[string]any
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, fmt.Errorf("parse toml: %w", err)
	}
	state, err := ir.ObjectFromGo(doc)
	if err != nil {
		return nil, fmt.Errorf("parse toml: %w", err)
	}
	return state, nil
}

// parseCUE evaluates the document and exports it through JSON, so only
// concrete values survive. Returns *LoadError with CUE positions.
func parseCUE(path string, data []byte, cuePath string) (ir.IRObject, error) {
	ctx := cuecontext.New()

	filename := path
	if filename == "" {
		filename = "state.cue"
	}
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, cueLoadError(path, err)
	}

	if cuePath != "" {
		v = v.LookupPath(cue.ParsePath(cuePath))
		if !v.Exists() {
			return nil, &LoadError{
				Path:    path,
				Format:  FormatCUE,
				Message: fmt.Sprintf("path %q not found", cuePath),
			}
		}
	}

	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, cueLoadError(path, err)
	}

	out, err := v.MarshalJSON()
	if err != nil {
		return nil, cueLoadError(path, err)
	}

	irv, err := ir.UnmarshalIRValue(out)
	if err != nil {
		return nil, newLoadError(path, FormatCUE, fmt.Errorf("parse cue: %w", err))
	}
	state, err := asObject(irv)
	if err != nil {
		return nil, newLoadError(path, FormatCUE, err)
	}
	return state, nil
}

func asObject(v ir.IRValue) (ir.IRObject, error) {
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, fmt.Errorf("state document must be an object, got %T", v)
	}
	return obj, nil
}
