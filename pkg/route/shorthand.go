package route

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getmockd/mirage/internal/inflect"
	"github.com/getmockd/mirage/internal/matching"
	"github.com/getmockd/mirage/pkg/db"
	"github.com/getmockd/mirage/pkg/mock"
	"github.com/getmockd/mirage/pkg/schema"
)

// filterParam is the query parameter holding an expr-lang filter for index
// shorthands. filter[key]=value is an exact-match attribute filter; a bare
// key=value filters only when key is an attribute the model knows, so
// paging and cache-busting parameters are ignored.
const filterParam = "filter"

// idsParam coalesces index shorthands to the listed ids: ?ids=1&ids=3 or
// ?ids[]=1&ids[]=3.
const idsParam = "ids"

// inferShorthand derives the CRUD action a nil handler stands for. The model
// comes from the last literal segment unless overridden.
func inferShorthand(method string, p *matching.Pattern, model string) (*Shorthand, error) {
	segs := p.Segments()
	member := len(segs) > 0 && segs[len(segs)-1].Kind == matching.SegmentParam

	collection := ""
	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i].Kind == matching.SegmentLiteral {
			collection = segs[i].Value
			break
		}
	}
	if model == "" {
		model = inflect.ModelName(collection)
	}
	if model == "" {
		return nil, errors.New("cannot infer a model from the path; pass a handler or route.Model")
	}

	sh := &Shorthand{Model: model}
	if member {
		sh.param = segs[len(segs)-1].Value
	}

	switch {
	case (method == http.MethodGet || method == http.MethodHead) && !member:
		sh.Action = ActionIndex
	case (method == http.MethodGet || method == http.MethodHead) && member:
		sh.Action = ActionShow
	case method == http.MethodPost && !member:
		sh.Action = ActionCreate
	case (method == http.MethodPut || method == http.MethodPatch) && member:
		sh.Action = ActionUpdate
	case method == http.MethodDelete && member:
		sh.Action = ActionDelete
	default:
		return nil, fmt.Errorf("no shorthand for %s on this path; pass a handler", method)
	}
	return sh, nil
}

func shorthandHandler(sh Shorthand) Handler {
	return func(s *schema.Schema, req *mock.Request) (any, error) {
		model, ok := s.ResolveModelName(sh.Model)
		if !ok {
			return nil, &schema.UnknownModelError{Model: sh.Model}
		}
		id := req.Param(sh.idParam())

		switch sh.Action {
		case ActionIndex:
			return index(s, model, req)

		case ActionShow:
			m, err := s.Find(model, id)
			if err != nil {
				return nil, err
			}
			if m == nil {
				return nil, NotFound(model, id)
			}
			return map[string]any{model: m}, nil

		case ActionCreate:
			attrs, err := requestAttrs(req, model)
			if err != nil {
				return nil, err
			}
			m, err := s.Create(model, attrs)
			if err != nil {
				return nil, err
			}
			return mock.JSON(http.StatusCreated, map[string]any{model: m}), nil

		case ActionUpdate:
			attrs, err := requestAttrs(req, model)
			if err != nil {
				return nil, err
			}
			if v, has := attrs[db.IDField]; has {
				if bodyID, _ := db.NormalizeID(v); bodyID != id {
					return nil, &BadRequestError{Message: fmt.Sprintf("body id %q does not match path id %q", bodyID, id)}
				}
				delete(attrs, db.IDField)
			}
			m, err := s.Update(model, id, attrs)
			if err != nil {
				return nil, err
			}
			return map[string]any{model: m}, nil

		case ActionDelete:
			if err := s.Destroy(model, id); err != nil {
				return nil, err
			}
			return mock.Empty(http.StatusNoContent), nil
		}
		return nil, fmt.Errorf("unknown shorthand action %q", sh.Action)
	}
}

func index(s *schema.Schema, model string, req *mock.Request) (any, error) {
	query := make(map[string]any, len(req.Query))
	loose := make(map[string]any, len(req.Query))
	filter := ""
	var ids []string
	for k, vs := range req.Query {
		if len(vs) == 0 {
			continue
		}
		if k == filterParam {
			filter = vs[0]
			continue
		}
		if k == idsParam || k == idsParam+"[]" {
			ids = append(ids, vs...)
			continue
		}
		if key, ok := explicitFilterKey(k); ok {
			query[key] = vs[0]
			continue
		}
		loose[k] = vs[0]
	}

	var (
		all []*schema.Model
		err error
	)
	switch {
	case filter != "":
		all, err = s.Filter(model, filter)
		if err != nil {
			return nil, &BadRequestError{Message: err.Error()}
		}
	case ids != nil:
		all, err = s.FindMany(model, ids)
		if err != nil {
			return nil, err
		}
	default:
		all, err = s.All(model)
		if err != nil {
			return nil, err
		}
	}

	if len(loose) > 0 {
		known := knownAttributes(s, model, all)
		for k, v := range loose {
			if _, set := query[k]; known[k] && !set {
				query[k] = v
			}
		}
	}

	out := make([]*schema.Model, 0, len(all))
	for _, m := range all {
		if m.Attrs().Matches(query) {
			out = append(out, m)
		}
	}
	return map[string]any{inflect.CollectionName(model): out}, nil
}

// explicitFilterKey extracts name from a "filter[name]" query key.
func explicitFilterKey(k string) (string, bool) {
	rest, ok := strings.CutPrefix(k, filterParam+"[")
	if !ok {
		return "", false
	}
	key, ok := strings.CutSuffix(rest, "]")
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

// knownAttributes lists the attributes a bare query key may filter on: the
// id, declared attributes, belongs-to foreign keys and any key stored on
// one of the records.
func knownAttributes(s *schema.Schema, model string, records []*schema.Model) map[string]bool {
	known := map[string]bool{db.IDField: true}
	if def, err := s.Definition(model); err == nil {
		for name := range def.Attributes {
			known[name] = true
		}
		for _, bt := range def.BelongsToAssociations() {
			known[bt.ForeignKey] = true
		}
	}
	for _, m := range records {
		for k := range m.Attrs() {
			known[k] = true
		}
	}
	return known
}

// requestAttrs decodes an object body, unwrapping a single root key named
// after the model ({"contact": {...}}).
func requestAttrs(req *mock.Request, model string) (map[string]any, error) {
	attrs, err := req.JSON()
	if err != nil {
		return nil, &BadRequestError{Message: err.Error()}
	}
	if len(attrs) == 1 {
		for k, v := range attrs {
			if inner, ok := v.(map[string]any); ok && inflect.Camelize(k) == model {
				return inner, nil
			}
		}
	}
	return attrs, nil
}
