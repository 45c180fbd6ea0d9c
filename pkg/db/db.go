package db

import (
	"sort"
)

// Db is a registry of collections keyed by name.
type Db struct {
	collections     map[string]*Collection
	strict          bool
	defaultIdentity IdentityFactory
	identities      map[string]IdentityFactory
}

// Option configures a Db.
type Option func(*Db)

// WithStrict makes Collection fail for names that were never created,
// instead of creating them on first access.
func WithStrict() Option {
	return func(d *Db) {
		d.strict = true
	}
}

// WithDefaultIdentity sets the strategy for collections without an explicit one.
func WithDefaultIdentity(f IdentityFactory) Option {
	return func(d *Db) {
		if f != nil {
			d.defaultIdentity = f
		}
	}
}

// WithIdentity registers a strategy for one collection.
func WithIdentity(collection string, f IdentityFactory) Option {
	return func(d *Db) {
		if f != nil {
			d.identities[collection] = f
		}
	}
}

// New creates an empty Db.
func New(opts ...Option) *Db {
	d := &Db{
		collections:     make(map[string]*Collection),
		defaultIdentity: CounterIdentity,
		identities:      make(map[string]IdentityFactory),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// CreateCollection registers a collection. Creating an existing name returns
// the existing collection unchanged.
func (d *Db) CreateCollection(name string) (*Collection, error) {
	if c, ok := d.collections[name]; ok {
		return c, nil
	}
	factory := d.defaultIdentity
	if f, ok := d.identities[name]; ok {
		factory = f
	}
	c, err := NewCollection(name, WithIdentityManager(factory()))
	if err != nil {
		return nil, err
	}
	d.collections[name] = c
	return c, nil
}

// Collection returns the named collection, creating it on first access
// unless the Db is strict.
func (d *Db) Collection(name string) (*Collection, error) {
	if c, ok := d.collections[name]; ok {
		return c, nil
	}
	if name == "" {
		return nil, ErrTypeRequired
	}
	if d.strict {
		return nil, &ConfigError{Collection: name, Message: "collection does not exist"}
	}
	return d.CreateCollection(name)
}

// HasCollection reports whether name has been created.
func (d *Db) HasCollection(name string) bool {
	_, ok := d.collections[name]
	return ok
}

// Names returns collection names in sorted order for deterministic output.
func (d *Db) Names() []string {
	names := make([]string, 0, len(d.collections))
	for name := range d.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetIdentityManager changes the id strategy for a collection. The
// collection must not hold records yet.
func (d *Db) SetIdentityManager(name string, f IdentityFactory) error {
	if f == nil {
		return &ConfigError{Collection: name, Message: "identity factory is nil"}
	}
	if c, ok := d.collections[name]; ok {
		if err := c.setIdentityManager(f()); err != nil {
			return err
		}
	}
	d.identities[name] = f
	return nil
}

// EmptyData removes every record but keeps all collection names.
func (d *Db) EmptyData() {
	for _, c := range d.collections {
		c.Clear()
	}
}

// LoadData bulk-inserts records, creating collections as needed. Names are
// processed in sorted order so failures are deterministic.
func (d *Db) LoadData(data map[string][]Record) error {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		c, err := d.Collection(name)
		if err != nil {
			return err
		}
		if _, err := c.InsertMany(data[name]); err != nil {
			return err
		}
	}
	return nil
}

// Dump returns a copy of every collection's records.
func (d *Db) Dump() map[string][]Record {
	out := make(map[string][]Record, len(d.collections))
	for name, c := range d.collections {
		out[name] = c.Records()
	}
	return out
}
