package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/getmockd/mirage/pkg/schema"
)

// Scenario is the root of a scenario file.
type Scenario struct {
	Name      string `yaml:"name,omitempty"`
	Namespace string `yaml:"namespace,omitempty"`
	// Timing is the default delay before every handled call.
	Timing Duration `yaml:"timing,omitempty"`
	// Passthrough lists pass-through globs. "*" alone forwards every
	// unmatched call.
	Passthrough []string `yaml:"passthrough,omitempty"`
	// Upstream is the base URL pass-through calls without a host are sent
	// to when the scenario is served over HTTP.
	Upstream string `yaml:"upstream,omitempty"`
	// Include lists files merged into this one, relative to it.
	Include []string `yaml:"include,omitempty"`

	Models    []ModelConfig    `yaml:"models,omitempty"`
	Resources []ResourceConfig `yaml:"resources,omitempty"`
	Routes    []RouteConfig    `yaml:"routes,omitempty"`
	Fixtures  Fixtures         `yaml:"fixtures,omitempty"`
}

// ModelConfig declares one model type.
type ModelConfig struct {
	Name string `yaml:"name"`
	// Identity names the id strategy: counter, letters, uuid or ulid.
	Identity   string                      `yaml:"identity,omitempty"`
	Attributes map[string]schema.Attribute `yaml:"attributes,omitempty"`
	BelongsTo  []BelongsToConfig           `yaml:"belongsTo,omitempty"`
	HasMany    []HasManyConfig             `yaml:"hasMany,omitempty"`
}

// BelongsToConfig declares a belongs-to association.
type BelongsToConfig struct {
	Name       string `yaml:"name"`
	Model      string `yaml:"model,omitempty"`
	ForeignKey string `yaml:"foreignKey,omitempty"`
	Inverse    string `yaml:"inverse,omitempty"`
}

// HasManyConfig declares a has-many association.
type HasManyConfig struct {
	Name       string `yaml:"name"`
	Model      string `yaml:"model,omitempty"`
	ForeignKey string `yaml:"foreignKey,omitempty"`
	Inverse    string `yaml:"inverse,omitempty"`
	Dependent  bool   `yaml:"dependent,omitempty"`
}

// ResourceConfig registers shorthand CRUD routes.
type ResourceConfig struct {
	Name   string    `yaml:"name"`
	Model  string    `yaml:"model,omitempty"`
	Path   string    `yaml:"path,omitempty"`
	Only   []string  `yaml:"only,omitempty"`
	Except []string  `yaml:"except,omitempty"`
	Timing *Duration `yaml:"timing,omitempty"`
}

// RouteConfig registers one route. Without a response the route is a
// shorthand inferred from its method and path.
type RouteConfig struct {
	Method   string          `yaml:"method"`
	Path     string          `yaml:"path"`
	Model    string          `yaml:"model,omitempty"`
	Timing   *Duration       `yaml:"timing,omitempty"`
	Response *ResponseConfig `yaml:"response,omitempty"`
}

// ResponseConfig is a static response.
type ResponseConfig struct {
	Status  int               `yaml:"status,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Body    any               `yaml:"body,omitempty"`
}

// FixtureSet is the records of one collection or model type.
type FixtureSet struct {
	Model   string
	Records []map[string]any
}

// Fixtures keeps fixture sets in file order so referenced records can be
// listed before the records referencing them.
type Fixtures []FixtureSet

// UnmarshalYAML decodes a mapping of collection name to records,
// preserving key order.
func (f *Fixtures) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: fixtures must be a mapping of model to records", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		var records []map[string]any
		if err := node.Content[i+1].Decode(&records); err != nil {
			return fmt.Errorf("fixtures %q: %w", node.Content[i].Value, err)
		}
		*f = append(*f, FixtureSet{Model: node.Content[i].Value, Records: records})
	}
	return nil
}

// MarshalYAML encodes the sets as an ordered mapping.
func (f Fixtures) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, set := range f {
		var value yaml.Node
		if err := value.Encode(set.Records); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: set.Model},
			&value,
		)
	}
	return node, nil
}

// Duration accepts a Go duration string ("250ms", "1s") or a number of
// milliseconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String implements fmt.Stringer.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	v, err := parseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = v
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func parseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if ms, err := strconv.ParseFloat(s, 64); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("timing %q must not be negative", s)
		}
		return Duration(ms * float64(time.Millisecond)), nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timing %q: use a duration like \"250ms\" or milliseconds", s)
	}
	if v < 0 {
		return 0, fmt.Errorf("timing %q must not be negative", s)
	}
	return Duration(v), nil
}
