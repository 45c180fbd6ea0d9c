package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/getmockd/mirage/internal/inflect"
	"github.com/getmockd/mirage/pkg/db"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Attribute describes one declared attribute of a model type.
type Attribute struct {
	// Type is a JSON Schema type name: string, number, integer, boolean,
	// object or array. Empty accepts any value.
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
	// Required attributes must be present and non-null on create.
	Required bool `json:"required,omitempty" yaml:"required,omitempty"`
	// Enum restricts the attribute to a fixed set of values.
	Enum []any `json:"enum,omitempty" yaml:"enum,omitempty"`
}

// ModelDefinition declares a model type. Undeclared attributes are always
// accepted; declared ones are checked on every create and update.
type ModelDefinition struct {
	Name         string
	Attributes   map[string]Attribute
	Associations []Association
	// Identity overrides the id strategy for this model's collection.
	Identity db.IdentityFactory

	collection string
	belongsTo  map[string]*BelongsTo
	hasMany    map[string]*HasMany
	assocOrder []string
	validator  *jsonschema.Schema
}

// CollectionName returns the name of the backing db collection.
func (m *ModelDefinition) CollectionName() string {
	return m.collection
}

// BelongsToAssociations returns the resolved belongs-to descriptors in
// declaration order.
func (m *ModelDefinition) BelongsToAssociations() []*BelongsTo {
	var out []*BelongsTo
	for _, name := range m.assocOrder {
		if bt, ok := m.belongsTo[name]; ok {
			out = append(out, bt)
		}
	}
	return out
}

// HasManyAssociations returns the resolved has-many descriptors in
// declaration order.
func (m *ModelDefinition) HasManyAssociations() []*HasMany {
	var out []*HasMany
	for _, name := range m.assocOrder {
		if hm, ok := m.hasMany[name]; ok {
			out = append(out, hm)
		}
	}
	return out
}

// compile resolves association defaults and the attribute validator.
func (m *ModelDefinition) compile() (*ModelDefinition, error) {
	if m == nil || m.Name == "" {
		return nil, &ConfigError{Message: "model name is required"}
	}

	out := &ModelDefinition{
		Name:       m.Name,
		Attributes: m.Attributes,
		Identity:   m.Identity,
		collection: inflect.CollectionName(m.Name),
		belongsTo:  make(map[string]*BelongsTo),
		hasMany:    make(map[string]*HasMany),
	}

	for _, a := range m.Associations {
		if a == nil || a.Key() == "" {
			return nil, &ConfigError{Model: m.Name, Message: "association name is required"}
		}
		if _, dup := out.belongsTo[a.Key()]; dup {
			return nil, &ConfigError{Model: m.Name, Message: fmt.Sprintf("association %q declared twice", a.Key())}
		}
		if _, dup := out.hasMany[a.Key()]; dup {
			return nil, &ConfigError{Model: m.Name, Message: fmt.Sprintf("association %q declared twice", a.Key())}
		}
		switch r := a.resolve(m.Name).(type) {
		case *BelongsTo:
			out.belongsTo[r.Name] = r
		case *HasMany:
			out.hasMany[r.Name] = r
		}
		out.Associations = append(out.Associations, a)
		out.assocOrder = append(out.assocOrder, a.Key())
	}

	if len(m.Attributes) > 0 {
		v, err := compileAttributes(m.Name, m.Attributes)
		if err != nil {
			return nil, &ConfigError{Model: m.Name, Message: err.Error()}
		}
		out.validator = v
	}
	return out, nil
}

// compileAttributes turns attribute descriptors into a JSON Schema object
// that allows undeclared properties.
func compileAttributes(model string, attrs map[string]Attribute) (*jsonschema.Schema, error) {
	properties := make(map[string]any, len(attrs))
	var required []string
	for name, a := range attrs {
		prop := map[string]any{}
		if a.Type != "" {
			if a.Required {
				prop["type"] = a.Type
			} else {
				prop["type"] = []string{a.Type, "null"}
			}
		}
		if len(a.Enum) > 0 {
			enum := append([]any(nil), a.Enum...)
			if !a.Required {
				enum = append(enum, nil)
			}
			prop["enum"] = enum
		}
		properties[name] = prop
		if a.Required {
			required = append(required, name)
		}
	}
	sort.Strings(required)

	doc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		doc["required"] = required
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal attribute schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	url := model + ".json"
	if err := compiler.AddResource(url, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to add attribute schema: %w", err)
	}
	return compiler.Compile(url)
}

// validate checks a full record against the declared attributes.
func (m *ModelDefinition) validate(rec db.Record) error {
	if m.validator == nil {
		return nil
	}

	// Round-trip through JSON so Go values reach the validator as JSON types.
	data, err := json.Marshal(rec)
	if err != nil {
		return &ValidationError{Model: m.Name, Message: "attributes are not JSON serializable: " + err.Error()}
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return &ValidationError{Model: m.Name, Message: err.Error()}
	}

	if err := m.validator.Validate(doc); err != nil {
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			leaf := firstLeaf(ve)
			return &ValidationError{
				Model:   m.Name,
				Field:   strings.TrimPrefix(leaf.InstanceLocation, "/"),
				Message: leaf.Message,
			}
		}
		return &ValidationError{Model: m.Name, Message: err.Error()}
	}
	return nil
}

func firstLeaf(err *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(err.Causes) > 0 {
		err = err.Causes[0]
	}
	return err
}
