package schema

import (
	"github.com/getmockd/mirage/internal/inflect"
)

// Kind distinguishes association variants.
type Kind int

const (
	// KindBelongsTo marks an association stored as a foreign key on the owner.
	KindBelongsTo Kind = iota + 1
	// KindHasMany marks an association resolved through a foreign key on the target.
	KindHasMany
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindBelongsTo:
		return "belongsTo"
	case KindHasMany:
		return "hasMany"
	default:
		return "unknown"
	}
}

// Association is a relationship declared on a model type. The concrete
// variants are *BelongsTo and *HasMany.
type Association interface {
	Kind() Kind
	Key() string
	TargetModel() string
	resolve(owner string) Association
}

// BelongsTo references one record of Target through ForeignKey on the owner.
type BelongsTo struct {
	// Name is the association key on the owner, e.g. "author".
	Name string
	// Target is the related model type. Defaults to Name.
	Target string
	// ForeignKey is the owner attribute holding the target id. Defaults to Name + "Id".
	ForeignKey string
	// Inverse names the has-many association on Target that points back, if any.
	Inverse string
}

// Kind implements Association.
func (b *BelongsTo) Kind() Kind { return KindBelongsTo }

// Key implements Association.
func (b *BelongsTo) Key() string { return b.Name }

// TargetModel implements Association.
func (b *BelongsTo) TargetModel() string { return b.Target }

func (b *BelongsTo) resolve(string) Association {
	out := *b
	if out.Target == "" {
		out.Target = inflect.Camelize(out.Name)
	}
	if out.ForeignKey == "" {
		out.ForeignKey = inflect.ForeignKey(out.Name)
	}
	return &out
}

// HasMany references every Target record whose InverseForeignKey equals the
// owner id.
type HasMany struct {
	// Name is the association key on the owner, e.g. "posts".
	Name string
	// Target is the related model type. Defaults to the singular of Name.
	Target string
	// InverseForeignKey is the Target attribute holding the owner id. When
	// empty it is taken from a belongs-to on Target that names this
	// association as its inverse, then from one that targets the owner type,
	// and finally defaults to owner + "Id".
	InverseForeignKey string
	// Inverse names the belongs-to association on Target, if any.
	Inverse string
	// Dependent records are destroyed with their owner. Otherwise their
	// foreign key is cleared.
	Dependent bool
}

// Kind implements Association.
func (h *HasMany) Kind() Kind { return KindHasMany }

// Key implements Association.
func (h *HasMany) Key() string { return h.Name }

// TargetModel implements Association.
func (h *HasMany) TargetModel() string { return h.Target }

func (h *HasMany) resolve(string) Association {
	out := *h
	if out.Target == "" {
		out.Target = inflect.ModelName(out.Name)
	}
	return &out
}
