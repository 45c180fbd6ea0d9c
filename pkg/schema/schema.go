package schema

import (
	"fmt"
	"sort"

	"github.com/getmockd/mirage/internal/inflect"
	"github.com/getmockd/mirage/pkg/db"
)

// Schema is the model-aware facade over one Db. It is created once per
// simulated server and never shared between servers.
type Schema struct {
	db     *db.Db
	models map[string]*ModelDefinition
}

// New creates a Schema over d and registers defs in order.
func New(d *db.Db, defs ...*ModelDefinition) (*Schema, error) {
	if d == nil {
		return nil, ErrDbRequired
	}
	s := &Schema{
		db:     d,
		models: make(map[string]*ModelDefinition),
	}
	for _, def := range defs {
		if err := s.Register(def); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Db returns the underlying store, for bulk seeding and inspection.
func (s *Schema) Db() *db.Db {
	return s.db
}

// Register adds a model type and creates its collection.
func (s *Schema) Register(def *ModelDefinition) error {
	compiled, err := def.compile()
	if err != nil {
		return err
	}
	if _, exists := s.models[compiled.Name]; exists {
		return &ConfigError{Model: compiled.Name, Message: "model already registered"}
	}

	if _, err := s.db.CreateCollection(compiled.collection); err != nil {
		return fmt.Errorf("create collection for %q: %w", compiled.Name, err)
	}
	if compiled.Identity != nil {
		if err := s.db.SetIdentityManager(compiled.collection, compiled.Identity); err != nil {
			return err
		}
	}

	s.models[compiled.Name] = compiled
	return nil
}

// Models returns registered model names in sorted order.
func (s *Schema) Models() []string {
	names := make([]string, 0, len(s.models))
	for name := range s.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definition returns the resolved definition of a registered model.
func (s *Schema) Definition(modelType string) (*ModelDefinition, error) {
	def, ok := s.models[modelType]
	if !ok {
		return nil, &UnknownModelError{Model: modelType}
	}
	return def, nil
}

// ResolveModelName maps a model or collection-style name ("contacts",
// "blog-posts") to a registered model type.
func (s *Schema) ResolveModelName(name string) (string, bool) {
	if _, ok := s.models[name]; ok {
		return name, true
	}
	if singular := inflect.ModelName(name); singular != "" {
		if _, ok := s.models[singular]; ok {
			return singular, true
		}
	}
	return "", false
}

// Collection returns the collection backing a model type.
func (s *Schema) Collection(modelType string) (*db.Collection, error) {
	_, c, err := s.lookup(modelType)
	return c, err
}

// EmptyData clears every collection.
func (s *Schema) EmptyData() {
	s.db.EmptyData()
}

func (s *Schema) lookup(modelType string) (*ModelDefinition, *db.Collection, error) {
	def, err := s.Definition(modelType)
	if err != nil {
		return nil, nil, err
	}
	c, err := s.db.Collection(def.collection)
	if err != nil {
		return nil, nil, err
	}
	return def, c, nil
}

func (s *Schema) wrap(def *ModelDefinition, rec db.Record) *Model {
	return &Model{schema: s, def: def, attrs: rec}
}

func (s *Schema) wrapAll(def *ModelDefinition, recs []db.Record) []*Model {
	out := make([]*Model, len(recs))
	for i, rec := range recs {
		out[i] = s.wrap(def, rec)
	}
	return out
}

// =============================================================================
// Reads
// =============================================================================

// Find returns the record with the given id, or nil when it does not exist.
func (s *Schema) Find(modelType, id string) (*Model, error) {
	def, c, err := s.lookup(modelType)
	if err != nil {
		return nil, err
	}
	rec, ok := c.Find(id)
	if !ok {
		return nil, nil
	}
	return s.wrap(def, rec), nil
}

// FindMany returns the records for ids in the order given. Unknown ids are
// skipped.
func (s *Schema) FindMany(modelType string, ids []string) ([]*Model, error) {
	def, c, err := s.lookup(modelType)
	if err != nil {
		return nil, err
	}
	return s.wrapAll(def, c.FindMany(ids)), nil
}

// FindBy returns the first record for which pred holds, or nil.
func (s *Schema) FindBy(modelType string, pred func(db.Record) bool) (*Model, error) {
	def, c, err := s.lookup(modelType)
	if err != nil {
		return nil, err
	}
	rec, ok := c.FindBy(pred)
	if !ok {
		return nil, nil
	}
	return s.wrap(def, rec), nil
}

// Where returns the records whose attributes equal every entry of query.
func (s *Schema) Where(modelType string, query map[string]any) ([]*Model, error) {
	def, c, err := s.lookup(modelType)
	if err != nil {
		return nil, err
	}
	return s.wrapAll(def, c.Where(query)), nil
}

// Filter returns the records matching a boolean expr-lang expression.
func (s *Schema) Filter(modelType, expression string) ([]*Model, error) {
	def, c, err := s.lookup(modelType)
	if err != nil {
		return nil, err
	}
	recs, err := c.Filter(expression)
	if err != nil {
		return nil, err
	}
	return s.wrapAll(def, recs), nil
}

// All returns every record of a model type in insertion order.
func (s *Schema) All(modelType string) ([]*Model, error) {
	def, c, err := s.lookup(modelType)
	if err != nil {
		return nil, err
	}
	return s.wrapAll(def, c.Records()), nil
}

// ResolveBelongsTo looks up the record m references through the named
// belongs-to association. The foreign key is read from the stored record
// at call time. A nil or dangling key resolves to nil.
func (s *Schema) ResolveBelongsTo(m *Model, name string) (*Model, error) {
	bt, ok := m.def.belongsTo[name]
	if !ok {
		return nil, &UnknownAssociationError{Model: m.def.Name, Association: name, Kind: KindBelongsTo}
	}
	current := m.attrs
	if c, err := s.db.Collection(m.def.collection); err == nil {
		if rec, found := c.Find(m.ID()); found {
			current = rec
		}
	}
	targetID, ok := db.NormalizeID(current[bt.ForeignKey])
	if !ok {
		return nil, nil
	}
	return s.Find(bt.Target, targetID)
}

// ResolveHasMany returns the records of the named has-many association:
// every target record whose inverse foreign key equals m's id.
func (s *Schema) ResolveHasMany(m *Model, name string) ([]*Model, error) {
	hm, ok := m.def.hasMany[name]
	if !ok {
		return nil, &UnknownAssociationError{Model: m.def.Name, Association: name, Kind: KindHasMany}
	}
	fk, err := s.inverseForeignKey(m.def, hm)
	if err != nil {
		return nil, err
	}
	return s.Where(hm.Target, map[string]any{fk: m.ID()})
}

// inverseForeignKey finds the attribute on hm's target that stores the
// owner id.
func (s *Schema) inverseForeignKey(owner *ModelDefinition, hm *HasMany) (string, error) {
	if hm.InverseForeignKey != "" {
		return hm.InverseForeignKey, nil
	}
	target, err := s.Definition(hm.Target)
	if err != nil {
		return "", err
	}
	candidates := target.BelongsToAssociations()
	for _, bt := range candidates {
		if bt.Target == owner.Name && bt.Inverse == hm.Name {
			return bt.ForeignKey, nil
		}
	}
	for _, bt := range candidates {
		if bt.Target == owner.Name && bt.Inverse == "" {
			return bt.ForeignKey, nil
		}
	}
	return inflect.ForeignKey(owner.Name), nil
}
