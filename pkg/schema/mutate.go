package schema

import (
	"fmt"

	"github.com/getmockd/mirage/pkg/db"
)

// journal records every store change made by one schema operation so a
// failure part way through leaves the store as it was.
type journal struct {
	undo []func()
}

func (j *journal) created(c *db.Collection, id string) {
	j.undo = append(j.undo, func() { c.Remove(id) })
}

func (j *journal) changed(c *db.Collection, id string, before db.Record) {
	j.undo = append(j.undo, func() { _ = c.Replace(id, before) })
}

func (j *journal) rollback() {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}

type nestedHasMany struct {
	assoc *HasMany
	items []any
}

// Create inserts a record of modelType. Association keys in attrs are
// expanded: a belongs-to key takes a *Model, an id or an attribute map
// (created as a new related record), and a has-many key takes a list of the
// same. Nothing is stored when any part fails.
func (s *Schema) Create(modelType string, attrs map[string]any) (*Model, error) {
	j := &journal{}
	m, err := s.create(j, modelType, attrs)
	if err != nil {
		j.rollback()
		return nil, err
	}
	return m, nil
}

// Update merges patch into the record with the given id. A has-many key
// replaces the association: children not listed have their foreign key
// cleared.
func (s *Schema) Update(modelType, id string, patch map[string]any) (*Model, error) {
	j := &journal{}
	m, err := s.update(j, modelType, id, patch)
	if err != nil {
		j.rollback()
		return nil, err
	}
	return m, nil
}

func (s *Schema) create(j *journal, modelType string, attrs map[string]any) (*Model, error) {
	def, c, err := s.lookup(modelType)
	if err != nil {
		return nil, err
	}

	rec, nested, err := s.expand(j, def, attrs)
	if err != nil {
		return nil, err
	}
	if err := s.checkForeignKeys(def, rec); err != nil {
		return nil, err
	}
	if err := def.validate(rec); err != nil {
		return nil, err
	}

	stored, err := c.Insert(rec)
	if err != nil {
		return nil, err
	}
	j.created(c, stored.ID())

	for _, n := range nested {
		if err := s.assignHasMany(j, def, n.assoc, stored.ID(), n.items, false); err != nil {
			return nil, err
		}
	}
	stored, _ = c.Find(stored.ID())
	return s.wrap(def, stored), nil
}

func (s *Schema) update(j *journal, modelType, id string, patch map[string]any) (*Model, error) {
	def, c, err := s.lookup(modelType)
	if err != nil {
		return nil, err
	}
	current, ok := c.Find(id)
	if !ok {
		return nil, &db.NotFoundError{Collection: c.Name(), ID: id}
	}

	rec, nested, err := s.expand(j, def, patch)
	if err != nil {
		return nil, err
	}
	// Only keys in the patch are checked, so an untouched forward reference
	// stays valid.
	if err := s.checkForeignKeys(def, rec); err != nil {
		return nil, err
	}
	merged := current.Clone()
	for k, v := range rec {
		merged[k] = v
	}
	if err := def.validate(merged); err != nil {
		return nil, err
	}

	if _, err := c.Update(id, rec); err != nil {
		return nil, err
	}
	j.changed(c, id, current)

	for _, n := range nested {
		if err := s.assignHasMany(j, def, n.assoc, id, n.items, true); err != nil {
			return nil, err
		}
	}
	stored, _ := c.Find(id)
	return s.wrap(def, stored), nil
}

// expand splits attrs into plain attributes and association values. Plain
// attributes are applied first so an association object overrides an
// explicit foreign key given alongside it.
func (s *Schema) expand(j *journal, def *ModelDefinition, attrs map[string]any) (db.Record, []nestedHasMany, error) {
	rec := make(db.Record, len(attrs))
	for k, v := range attrs {
		if _, ok := def.belongsTo[k]; ok {
			continue
		}
		if _, ok := def.hasMany[k]; ok {
			continue
		}
		rec[k] = v
	}

	for _, bt := range def.BelongsToAssociations() {
		v, ok := attrs[bt.Name]
		if !ok {
			continue
		}
		targetID, err := s.belongsToValue(j, def, bt, v)
		if err != nil {
			return nil, nil, err
		}
		if targetID == "" {
			rec[bt.ForeignKey] = nil
		} else {
			rec[bt.ForeignKey] = targetID
		}
	}

	var nested []nestedHasMany
	for _, hm := range def.HasManyAssociations() {
		v, ok := attrs[hm.Name]
		if !ok {
			continue
		}
		items, err := toList(v)
		if err != nil {
			return nil, nil, &AssociationError{Model: def.Name, Association: hm.Name, Target: hm.Target, Message: err.Error()}
		}
		nested = append(nested, nestedHasMany{assoc: hm, items: items})
	}
	return rec, nested, nil
}

// belongsToValue turns the value given for a belongs-to key into the id to
// store. Attribute maps without a known id create a new target record.
func (s *Schema) belongsToValue(j *journal, owner *ModelDefinition, bt *BelongsTo, v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case *Model:
		if t == nil {
			return "", nil
		}
		if t.Type() != bt.Target {
			return "", &AssociationError{
				Model: owner.Name, Association: bt.Name, Target: bt.Target, ID: t.ID(),
				Message: fmt.Sprintf("expected a %s, got a %s", bt.Target, t.Type()),
			}
		}
		return t.ID(), nil
	case map[string]any:
		return s.nestedID(j, bt.Target, t)
	case db.Record:
		return s.nestedID(j, bt.Target, t)
	default:
		id, ok := db.NormalizeID(v)
		if !ok {
			return "", &AssociationError{
				Model: owner.Name, Association: bt.Name, Target: bt.Target,
				Message: fmt.Sprintf("unsupported value of type %T", v),
			}
		}
		return id, nil
	}
}

// nestedID returns the id of an existing record named by attrs["id"], or
// creates a new record of modelType from attrs.
func (s *Schema) nestedID(j *journal, modelType string, attrs map[string]any) (string, error) {
	if id, ok := db.NormalizeID(attrs[db.IDField]); ok {
		c, err := s.Collection(modelType)
		if err != nil {
			return "", err
		}
		if _, found := c.Find(id); found {
			return id, nil
		}
	}
	m, err := s.create(j, modelType, attrs)
	if err != nil {
		return "", err
	}
	return m.ID(), nil
}

// checkForeignKeys normalizes every belongs-to key present in rec and
// checks it resolves. A key into an empty collection is accepted as a
// forward reference.
func (s *Schema) checkForeignKeys(def *ModelDefinition, rec db.Record) error {
	for _, bt := range def.BelongsToAssociations() {
		v, present := rec[bt.ForeignKey]
		if !present {
			continue
		}
		id, ok := db.NormalizeID(v)
		if !ok {
			rec[bt.ForeignKey] = nil
			continue
		}
		rec[bt.ForeignKey] = id

		target, err := s.Collection(bt.Target)
		if err != nil {
			return err
		}
		if target.Len() == 0 {
			continue
		}
		if _, found := target.Find(id); !found {
			return &AssociationError{
				Model:       def.Name,
				Association: bt.Name,
				ForeignKey:  bt.ForeignKey,
				Target:      bt.Target,
				ID:          id,
			}
		}
	}
	return nil
}

// assignHasMany points each listed child at ownerID. With replace set,
// current children that are not listed are detached.
func (s *Schema) assignHasMany(j *journal, owner *ModelDefinition, hm *HasMany, ownerID string, items []any, replace bool) error {
	fk, err := s.inverseForeignKey(owner, hm)
	if err != nil {
		return err
	}
	c, err := s.Collection(hm.Target)
	if err != nil {
		return err
	}

	keep := make(map[string]struct{}, len(items))
	for _, item := range items {
		var childID string
		switch t := item.(type) {
		case *Model:
			if t == nil {
				continue
			}
			childID = t.ID()
		case map[string]any:
			childID, err = s.nestedChild(j, hm.Target, fk, ownerID, t)
		case db.Record:
			childID, err = s.nestedChild(j, hm.Target, fk, ownerID, t)
		default:
			id, ok := db.NormalizeID(item)
			if !ok {
				return &AssociationError{
					Model: owner.Name, Association: hm.Name, Target: hm.Target,
					Message: fmt.Sprintf("unsupported value of type %T", item),
				}
			}
			childID = id
		}
		if err != nil {
			return err
		}
		keep[childID] = struct{}{}

		if err := s.setForeignKey(j, c, childID, fk, ownerID); err != nil {
			if _, missing := err.(*db.NotFoundError); missing {
				return &AssociationError{
					Model: owner.Name, Association: hm.Name, ForeignKey: fk, Target: hm.Target, ID: childID,
				}
			}
			return err
		}
	}

	if !replace {
		return nil
	}
	for _, child := range c.Where(map[string]any{fk: ownerID}) {
		if _, listed := keep[child.ID()]; listed {
			continue
		}
		if err := s.setForeignKey(j, c, child.ID(), fk, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *Schema) nestedChild(j *journal, modelType, fk, ownerID string, attrs map[string]any) (string, error) {
	if id, ok := db.NormalizeID(attrs[db.IDField]); ok {
		c, err := s.Collection(modelType)
		if err != nil {
			return "", err
		}
		if _, found := c.Find(id); found {
			return id, nil
		}
	}
	withOwner := make(map[string]any, len(attrs)+1)
	for k, v := range attrs {
		withOwner[k] = v
	}
	withOwner[fk] = ownerID
	m, err := s.create(j, modelType, withOwner)
	if err != nil {
		return "", err
	}
	return m.ID(), nil
}

func (s *Schema) setForeignKey(j *journal, c *db.Collection, id, fk string, value any) error {
	before, ok := c.Find(id)
	if !ok {
		return &db.NotFoundError{Collection: c.Name(), ID: id}
	}
	if current, has := before[fk]; has && db.ValuesEqual(current, value) {
		return nil
	}
	if _, err := c.Update(id, db.Record{fk: value}); err != nil {
		return err
	}
	j.changed(c, id, before)
	return nil
}

func toList(v any) ([]any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []any:
		return t, nil
	case []*Model:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out, nil
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out, nil
	case []string:
		out := make([]any, len(t))
		for i, id := range t {
			out[i] = id
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
}

// =============================================================================
// Destroy
// =============================================================================

type recordRef struct {
	model string
	id    string
}

type destroyPlan struct {
	visited  map[recordRef]struct{}
	removals []recordRef
	nullify  []nullifyOp
}

type nullifyOp struct {
	ref recordRef
	fk  string
}

// Destroy removes the record with the given id. Dependent has-many children
// are destroyed with it, each record at most once even across cycles; other
// children have their foreign key cleared. The whole cascade is planned
// before anything is removed.
func (s *Schema) Destroy(modelType, id string) error {
	def, c, err := s.lookup(modelType)
	if err != nil {
		return err
	}
	if _, ok := c.Find(id); !ok {
		return &db.NotFoundError{Collection: c.Name(), ID: id}
	}

	plan := &destroyPlan{visited: make(map[recordRef]struct{})}
	if err := s.planDestroy(plan, def, id); err != nil {
		return err
	}

	removed := make(map[recordRef]struct{}, len(plan.removals))
	for _, ref := range plan.removals {
		removed[ref] = struct{}{}
	}
	for _, op := range plan.nullify {
		if _, gone := removed[op.ref]; gone {
			continue
		}
		target, err := s.Collection(op.ref.model)
		if err != nil {
			return err
		}
		if _, err := target.Update(op.ref.id, db.Record{op.fk: nil}); err != nil {
			return err
		}
	}
	for _, ref := range plan.removals {
		target, err := s.Collection(ref.model)
		if err != nil {
			return err
		}
		target.Remove(ref.id)
	}
	return nil
}

func (s *Schema) planDestroy(plan *destroyPlan, def *ModelDefinition, id string) error {
	ref := recordRef{model: def.Name, id: id}
	if _, seen := plan.visited[ref]; seen {
		return nil
	}
	plan.visited[ref] = struct{}{}

	for _, hm := range def.HasManyAssociations() {
		fk, err := s.inverseForeignKey(def, hm)
		if err != nil {
			return err
		}
		targetDef, c, err := s.lookup(hm.Target)
		if err != nil {
			return err
		}
		for _, child := range c.Where(map[string]any{fk: id}) {
			if hm.Dependent {
				if err := s.planDestroy(plan, targetDef, child.ID()); err != nil {
					return err
				}
				continue
			}
			plan.nullify = append(plan.nullify, nullifyOp{
				ref: recordRef{model: targetDef.Name, id: child.ID()},
				fk:  fk,
			})
		}
	}
	plan.removals = append(plan.removals, ref)
	return nil
}
