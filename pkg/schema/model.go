package schema

import (
	"encoding/json"

	"github.com/getmockd/mirage/pkg/db"
)

// Model is a record bound to its model type and schema. Attribute values
// are a snapshot taken when the Model was returned; use Reload to refresh.
type Model struct {
	schema *Schema
	def    *ModelDefinition
	attrs  db.Record
}

// Type returns the model type name.
func (m *Model) Type() string {
	return m.def.Name
}

// ID returns the record id.
func (m *Model) ID() string {
	return m.attrs.ID()
}

// Attrs returns a copy of the record attributes, foreign keys included.
func (m *Model) Attrs() db.Record {
	return m.attrs.Clone()
}

// Get returns one attribute.
func (m *Model) Get(key string) any {
	return m.attrs[key]
}

// BelongsTo resolves a belongs-to association.
func (m *Model) BelongsTo(name string) (*Model, error) {
	return m.schema.ResolveBelongsTo(m, name)
}

// HasMany resolves a has-many association.
func (m *Model) HasMany(name string) ([]*Model, error) {
	return m.schema.ResolveHasMany(m, name)
}

// Reload returns the current stored state, or nil if it was destroyed.
func (m *Model) Reload() (*Model, error) {
	return m.schema.Find(m.Type(), m.ID())
}

// Update merges patch into the stored record.
func (m *Model) Update(patch map[string]any) (*Model, error) {
	return m.schema.Update(m.Type(), m.ID(), patch)
}

// Destroy removes the record, cascading as declared.
func (m *Model) Destroy() error {
	return m.schema.Destroy(m.Type(), m.ID())
}

// MarshalJSON encodes the attribute snapshot.
func (m *Model) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.attrs)
}
