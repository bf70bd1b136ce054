// Package classify holds the data-only classification tables consumed by call
// dispatch: which native APIs and tensor methods cannot be traced, and which
// special-method names each builtin operator resolves to. Defaults are
// embedded; deployments may layer additions from a YAML file.
package classify

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

//go:embed tables.toml
var defaultTOML []byte

// MagicMethod is one candidate special-method name for a builtin operator.
// Reflected entries are checked against the last operand's type; the call
// itself always receives arguments in their original order.
type MagicMethod struct {
	Name      string `toml:"name" yaml:"name"`
	Reflected bool   `toml:"reflected" yaml:"reflected"`
}

type document struct {
	UnsupportedAPIs          []string     `toml:"unsupported_apis" yaml:"unsupported_apis"`
	UnsupportedTensorMethods []string     `toml:"unsupported_tensor_methods" yaml:"unsupported_tensor_methods"`
	Magic                    []magicEntry `toml:"magic" yaml:"magic"`
}

type magicEntry struct {
	Builtin string        `toml:"builtin" yaml:"builtin"`
	Methods []MagicMethod `toml:"methods" yaml:"methods"`
}

// Tables answers the classification queries dispatch needs. Zero value is
// empty; use Default for the embedded tables.
type Tables struct {
	unsupportedAPIs          map[string]struct{}
	unsupportedTensorMethods map[string]struct{}
	magic                    map[string][]MagicMethod
}

// Default decodes the embedded tables.
func Default() (*Tables, error) {
	t := empty()
	var doc document
	if err := toml.Unmarshal(defaultTOML, &doc); err != nil {
		return nil, fmt.Errorf("decode embedded tables: %w", err)
	}
	t.merge(doc)
	return t, nil
}

func empty() *Tables {
	return &Tables{
		unsupportedAPIs:          map[string]struct{}{},
		unsupportedTensorMethods: map[string]struct{}{},
		magic:                    map[string][]MagicMethod{},
	}
}

func (t *Tables) merge(doc document) {
	for _, name := range doc.UnsupportedAPIs {
		t.unsupportedAPIs[name] = struct{}{}
	}
	for _, name := range doc.UnsupportedTensorMethods {
		t.unsupportedTensorMethods[name] = struct{}{}
	}
	for _, e := range doc.Magic {
		t.magic[e.Builtin] = append(t.magic[e.Builtin], e.Methods...)
	}
}

// LoadOverlay merges additions from a YAML file. Overlays only add entries;
// the embedded defaults are never removed.
func (t *Tables) LoadOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read overlay: %w", err)
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode overlay %s: %w", path, err)
	}
	t.merge(doc)
	return nil
}

// IsUnsupportedAPI reports whether the named native API must break the graph.
func (t *Tables) IsUnsupportedAPI(name string) bool {
	_, ok := t.unsupportedAPIs[name]
	return ok
}

// IsUnsupportedTensorMethod reports whether the named tensor intrinsic must
// break the graph.
func (t *Tables) IsUnsupportedTensorMethod(name string) bool {
	_, ok := t.unsupportedTensorMethods[name]
	return ok
}

// MagicMethods returns the ordered special-method candidates for a builtin,
// or nil when the builtin has no magic-method protocol.
func (t *Tables) MagicMethods(builtin string) []MagicMethod {
	return t.magic[builtin]
}
