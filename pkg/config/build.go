package config

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getmockd/mirage/pkg/db"
	"github.com/getmockd/mirage/pkg/engine"
	"github.com/getmockd/mirage/pkg/mock"
	"github.com/getmockd/mirage/pkg/route"
	"github.com/getmockd/mirage/pkg/schema"
)

// passAll is the passthrough entry that forwards every unmatched call.
const passAll = "*"

var methods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// Build validates the scenario and creates a server seeded with its
// fixtures. opts are applied after the scenario's own settings.
func (s *Scenario) Build(opts ...engine.Option) (*engine.Server, error) {
	sch, tbl, err := s.compile()
	if err != nil {
		return nil, err
	}
	base := []engine.Option{
		engine.WithTiming(s.Timing.Std()),
		engine.WithSeeder(s.Seeder()),
	}
	if s.Upstream != "" {
		u, err := engine.ParseUpstream(s.Upstream)
		if err != nil {
			return nil, err
		}
		base = append(base, engine.WithUpstream(u))
	}
	return engine.New(sch, tbl, append(base, opts...)...)
}

// Validate checks the scenario without serving it: declarations, routes,
// model references and fixtures loaded into a scratch schema.
func (s *Scenario) Validate() error {
	sch, _, err := s.compile()
	if err != nil {
		return err
	}
	return s.Seeder()(sch)
}

func (s *Scenario) compile() (*schema.Schema, *route.Table, error) {
	if err := s.check(); err != nil {
		return nil, nil, err
	}
	sch, err := s.Schema()
	if err != nil {
		return nil, nil, err
	}
	tbl := s.RouteTable()
	if err := tbl.Finalize(); err != nil {
		return nil, nil, err
	}
	if err := tbl.CheckModels(sch); err != nil {
		return nil, nil, err
	}
	return sch, tbl, nil
}

// check reports every declaration problem found, joined.
func (s *Scenario) check() error {
	var errs []error
	models := map[string]bool{}
	for i, m := range s.Models {
		switch {
		case m.Name == "":
			errs = append(errs, fmt.Errorf("models[%d]: name is required", i))
		case models[m.Name]:
			errs = append(errs, fmt.Errorf("models[%d]: model %q declared twice", i, m.Name))
		}
		models[m.Name] = true
		if _, ok := db.IdentityByName(m.Identity); !ok {
			errs = append(errs, fmt.Errorf("models[%d]: unknown identity %q (use counter, letters, uuid or ulid)", i, m.Identity))
		}
	}
	if s.Upstream != "" {
		if _, err := engine.ParseUpstream(s.Upstream); err != nil {
			errs = append(errs, err)
		}
	}
	for i, r := range s.Resources {
		if r.Name == "" {
			errs = append(errs, fmt.Errorf("resources[%d]: name is required", i))
		}
		for _, a := range append(append([]string(nil), r.Only...), r.Except...) {
			if !validAction(a) {
				errs = append(errs, fmt.Errorf("resources[%d]: unknown action %q", i, a))
			}
		}
	}
	for i, r := range s.Routes {
		if !methods[strings.ToUpper(r.Method)] {
			errs = append(errs, fmt.Errorf("routes[%d]: unsupported method %q", i, r.Method))
		}
		if r.Path == "" {
			errs = append(errs, fmt.Errorf("routes[%d]: path is required", i))
		}
		if r.Response != nil && r.Response.Status != 0 && (r.Response.Status < 100 || r.Response.Status > 599) {
			errs = append(errs, fmt.Errorf("routes[%d]: invalid status %d", i, r.Response.Status))
		}
	}
	return errors.Join(errs...)
}

// Schema builds an empty schema from the model declarations.
func (s *Scenario) Schema() (*schema.Schema, error) {
	defs := make([]*schema.ModelDefinition, 0, len(s.Models))
	for _, m := range s.Models {
		identity, ok := db.IdentityByName(m.Identity)
		if !ok {
			return nil, &schema.ConfigError{Model: m.Name, Message: fmt.Sprintf("unknown identity %q", m.Identity)}
		}
		def := &schema.ModelDefinition{
			Name:       m.Name,
			Attributes: m.Attributes,
			Identity:   identity,
		}
		for _, bt := range m.BelongsTo {
			def.Associations = append(def.Associations, &schema.BelongsTo{
				Name:       bt.Name,
				Target:     bt.Model,
				ForeignKey: bt.ForeignKey,
				Inverse:    bt.Inverse,
			})
		}
		for _, hm := range m.HasMany {
			def.Associations = append(def.Associations, &schema.HasMany{
				Name:              hm.Name,
				Target:            hm.Model,
				InverseForeignKey: hm.ForeignKey,
				Inverse:           hm.Inverse,
				Dependent:         hm.Dependent,
			})
		}
		defs = append(defs, def)
	}
	return schema.New(db.New(), defs...)
}

// RouteTable builds the route table. Registration errors surface from
// Finalize.
func (s *Scenario) RouteTable() *route.Table {
	tbl := route.NewTable()
	register := func(tbl *route.Table) {
		for _, r := range s.Resources {
			tbl.Resource(r.Name, resourceOptions(r)...)
		}
		for _, r := range s.Routes {
			var opts []route.Option
			if r.Model != "" {
				opts = append(opts, route.Model(r.Model))
			}
			if r.Timing != nil {
				opts = append(opts, route.WithTiming(r.Timing.Std()))
			}
			tbl.Handle(r.Method, r.Path, staticHandler(r.Response), opts...)
		}
		var patterns []string
		for _, p := range s.Passthrough {
			if p == passAll {
				tbl.Passthrough()
				continue
			}
			patterns = append(patterns, p)
		}
		if len(patterns) > 0 {
			tbl.Passthrough(patterns...)
		}
	}

	if s.Namespace != "" {
		tbl.Namespace(s.Namespace, register)
	} else {
		register(tbl)
	}
	return tbl
}

// Seeder returns a fixture loader creating every fixture record through
// the schema, in file order.
func (s *Scenario) Seeder() engine.Seeder {
	sets := append(Fixtures(nil), s.Fixtures...)
	return func(sch *schema.Schema) error {
		for _, set := range sets {
			model, ok := sch.ResolveModelName(set.Model)
			if !ok {
				return fmt.Errorf("fixtures %q: %w", set.Model, &schema.UnknownModelError{Model: set.Model})
			}
			for i, attrs := range set.Records {
				if _, err := sch.Create(model, cloneAttrs(attrs)); err != nil {
					return fmt.Errorf("fixtures %q[%d]: %w", set.Model, i, err)
				}
			}
		}
		return nil
	}
}

func resourceOptions(r ResourceConfig) []route.Option {
	var opts []route.Option
	if r.Model != "" {
		opts = append(opts, route.Model(r.Model))
	}
	if r.Path != "" {
		opts = append(opts, route.Path(r.Path))
	}
	if len(r.Only) > 0 {
		opts = append(opts, route.Only(toActions(r.Only)...))
	}
	if len(r.Except) > 0 {
		opts = append(opts, route.Except(toActions(r.Except)...))
	}
	if r.Timing != nil {
		opts = append(opts, route.WithTiming(r.Timing.Std()))
	}
	return opts
}

// staticHandler serves a fixed response. A nil config leaves the handler
// nil so the table infers a shorthand.
func staticHandler(rc *ResponseConfig) route.Handler {
	if rc == nil {
		return nil
	}
	status := rc.Status
	if status == 0 {
		status = http.StatusOK
	}
	return func(*schema.Schema, *mock.Request) (any, error) {
		resp := mock.NewResponse(status, rc.Body)
		for k, v := range rc.Headers {
			resp.WithHeader(k, v)
		}
		return resp, nil
	}
}

func toActions(names []string) []route.Action {
	out := make([]route.Action, 0, len(names))
	for _, n := range names {
		out = append(out, route.Action(strings.ToLower(n)))
	}
	return out
}

func validAction(name string) bool {
	for _, a := range route.AllActions {
		if string(a) == strings.ToLower(name) {
			return true
		}
	}
	return false
}

// cloneAttrs copies fixture attributes so Reset can reseed from pristine
// values.
func cloneAttrs(attrs map[string]any) map[string]any {
	return db.Record(attrs).Clone()
}
