package db

import (
	"fmt"
	"iter"

	"github.com/expr-lang/expr"
)

// Collection is an ordered, mutable set of records of one model type.
// Lookups by id are O(1); iteration follows insertion order.
type Collection struct {
	name    string
	ids     IdentityManager
	order   []string
	records map[string]Record
}

// CollectionOption configures a Collection at construction.
type CollectionOption func(*Collection)

// WithIdentityManager replaces the default counter strategy.
func WithIdentityManager(m IdentityManager) CollectionOption {
	return func(c *Collection) {
		if m != nil {
			c.ids = m
		}
	}
}

// NewCollection creates an empty collection for a model type.
func NewCollection(name string, opts ...CollectionOption) (*Collection, error) {
	if name == "" {
		return nil, ErrTypeRequired
	}
	c := &Collection{
		name:    name,
		ids:     CounterIdentity(),
		records: make(map[string]Record),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Len returns the number of stored records.
func (c *Collection) Len() int {
	return len(c.order)
}

// Insert stores a copy of r. An id is assigned when r has none; an explicit
// id that is already stored fails with a ConflictError.
func (c *Collection) Insert(r Record) (Record, error) {
	rec := r.Clone()
	if rec == nil {
		rec = Record{}
	}

	recID, ok := NormalizeID(rec[IDField])
	if ok {
		if _, exists := c.records[recID]; exists {
			return nil, &ConflictError{Collection: c.name, ID: recID}
		}
		c.ids.Set(recID)
	} else {
		recID = c.ids.Next()
	}
	rec[IDField] = recID

	c.records[recID] = rec
	c.order = append(c.order, recID)
	return rec.Clone(), nil
}

// InsertMany inserts each record in order. It stops at the first failure;
// records inserted before it stay stored.
func (c *Collection) InsertMany(rs []Record) ([]Record, error) {
	out := make([]Record, 0, len(rs))
	for _, r := range rs {
		rec, err := c.Insert(r)
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Find returns a copy of the record with the given id.
func (c *Collection) Find(id string) (Record, bool) {
	rec, ok := c.records[id]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// FindMany returns the records for ids in the order given, skipping misses.
func (c *Collection) FindMany(ids []string) []Record {
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := c.records[id]; ok {
			out = append(out, rec.Clone())
		}
	}
	return out
}

// FindBy returns the first record, in insertion order, for which pred is true.
func (c *Collection) FindBy(pred func(Record) bool) (Record, bool) {
	for _, id := range c.order {
		rec := c.records[id]
		if pred(rec.Clone()) {
			return rec.Clone(), true
		}
	}
	return nil, false
}

// Where returns all records whose attributes equal every entry of query.
func (c *Collection) Where(query map[string]any) []Record {
	var out []Record
	for _, id := range c.order {
		rec := c.records[id]
		if rec.Matches(query) {
			out = append(out, rec.Clone())
		}
	}
	return out
}

// Filter returns the records for which a boolean expr-lang expression holds.
// Attributes are exposed as variables: `age >= 18 && name startsWith "S"`.
// Attributes a record lacks evaluate to nil.
func (c *Collection) Filter(expression string) ([]Record, error) {
	program, err := expr.Compile(expression, expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compile filter %q: %w", expression, err)
	}

	var out []Record
	for _, id := range c.order {
		rec := c.records[id]
		result, err := expr.Run(program, map[string]any(rec.Clone()))
		if err != nil {
			return nil, fmt.Errorf("eval filter %q on %s/%s: %w", expression, c.name, id, err)
		}
		if matched, _ := result.(bool); matched {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

// FirstOrInsert returns the first record matching query, inserting query
// as a new record when none matches.
func (c *Collection) FirstOrInsert(query map[string]any) (Record, error) {
	if rec, ok := c.FindBy(func(r Record) bool { return r.Matches(query) }); ok {
		return rec, nil
	}
	return c.Insert(Record(query))
}

// Update merges patch into the stored record. Keys mapped to nil are kept
// as explicit nulls. The id is immutable; a patch may repeat it or leave it
// null.
func (c *Collection) Update(id string, patch Record) (Record, error) {
	rec, ok := c.records[id]
	if !ok {
		return nil, &NotFoundError{Collection: c.name, ID: id}
	}
	if v, has := patch[IDField]; has && v != nil {
		if pid, _ := NormalizeID(v); pid != id {
			return nil, fmt.Errorf("%s/%s: %w", c.name, id, ErrImmutableID)
		}
	}

	for k, v := range patch {
		if k == IDField {
			continue
		}
		rec[k] = cloneValue(v)
	}
	return rec.Clone(), nil
}

// Remove deletes the record with the given id. Missing ids are ignored.
func (c *Collection) Remove(id string) {
	if _, ok := c.records[id]; !ok {
		return
	}
	delete(c.records, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i:i], c.order[i+1:]...)
			break
		}
	}
}

// RemoveWhere deletes every record for which pred is true and returns how
// many were removed.
func (c *Collection) RemoveWhere(pred func(Record) bool) int {
	kept := c.order[:0:0]
	removed := 0
	for _, id := range c.order {
		if pred(c.records[id].Clone()) {
			delete(c.records, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	c.order = kept
	return removed
}

// All returns a restartable sequence over the records present when All was
// called. Records inserted afterwards are not yielded; records removed
// afterwards still are, as they were at call time.
func (c *Collection) All() iter.Seq[Record] {
	snapshot := make([]Record, len(c.order))
	for i, id := range c.order {
		snapshot[i] = c.records[id].Clone()
	}
	return func(yield func(Record) bool) {
		for _, rec := range snapshot {
			if !yield(rec.Clone()) {
				return
			}
		}
	}
}

// Records returns copies of all records in insertion order.
func (c *Collection) Records() []Record {
	out := make([]Record, 0, len(c.order))
	for rec := range c.All() {
		out = append(out, rec)
	}
	return out
}

// Clear removes all records and resets the identity manager.
func (c *Collection) Clear() {
	c.order = nil
	c.records = make(map[string]Record)
	c.ids.Reset()
}

func (c *Collection) setIdentityManager(m IdentityManager) error {
	if len(c.order) > 0 {
		return &ConfigError{Collection: c.name, Message: "identity strategy cannot change once records exist"}
	}
	c.ids = m
	return nil
}

// Replace swaps the stored record for id with a copy of r, keeping its
// position. It is the inverse of Update for callers that snapshot a record
// before changing it.
func (c *Collection) Replace(id string, r Record) error {
	if _, ok := c.records[id]; !ok {
		return &NotFoundError{Collection: c.name, ID: id}
	}
	rec := r.Clone()
	if rec == nil {
		rec = Record{}
	}
	rec[IDField] = id
	c.records[id] = rec
	return nil
}
