package openapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/getmockd/mirage/internal/inflect"
	"github.com/getmockd/mirage/internal/matching"
	"github.com/getmockd/mirage/pkg/route"
	"github.com/getmockd/mirage/pkg/schema"
)

// Version is the OpenAPI version the exporter writes.
const Version = "3.0.3"

const contentJSON = "application/json"

// Export builds a document from the finalized route table. Model schemas
// are only emitted when s is non-nil. Routes that collide on method and
// OpenAPI path keep the first one registered.
func Export(tbl *route.Table, s *schema.Schema, info Info) (*Document, error) {
	if tbl == nil {
		return nil, &ExportError{Message: "route table cannot be nil"}
	}
	routes, err := tbl.Routes()
	if err != nil {
		return nil, &ExportError{Message: "route table is invalid", Cause: err}
	}

	if info.Title == "" {
		info.Title = "mirage"
	}
	if info.Version == "" {
		info.Version = "1.0.0"
	}
	doc := &Document{
		OpenAPI: Version,
		Info:    info,
		Paths:   make(map[string]*PathItem),
	}

	if s != nil {
		doc.Components = &Components{Schemas: make(map[string]*Schema)}
		for _, name := range s.Models() {
			def, err := s.Definition(name)
			if err != nil {
				return nil, &ExportError{Message: "failed to read model " + name, Cause: err}
			}
			doc.Components.Schemas[componentName(name)] = modelSchema(def)
		}
	}

	// Templates differing only in parameter names are one OpenAPI path.
	byTemplate := make(map[string]*PathItem)
	ids := make(map[string]int)
	for _, r := range routes {
		template := templateKey(r.Pattern())
		item := byTemplate[template]
		if item == nil {
			item = &PathItem{}
			byTemplate[template] = item
			doc.Paths[r.Pattern().OpenAPIPath()] = item
		}
		slot := item.slot(r.Method)
		if slot == nil || *slot != nil {
			continue
		}
		op := operation(r, doc.Components)
		if n := ids[op.OperationID]; n > 0 {
			ids[op.OperationID] = n + 1
			op.OperationID = fmt.Sprintf("%s%d", op.OperationID, n+1)
		} else {
			ids[op.OperationID] = 1
		}
		*slot = op
	}
	return doc, nil
}

// JSON encodes the document with two-space indentation.
func (d *Document) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, &ExportError{Message: "failed to marshal OpenAPI document", Cause: err}
	}
	return append(data, '\n'), nil
}

// YAML encodes the document as YAML.
func (d *Document) YAML() ([]byte, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return nil, &ExportError{Message: "failed to marshal OpenAPI document", Cause: err}
	}
	return data, nil
}

// Validate loads the encoded document with kin-openapi and checks it
// against the OpenAPI 3 rules.
func (d *Document) Validate(ctx context.Context) error {
	data, err := d.JSON()
	if err != nil {
		return err
	}
	loader := openapi3.NewLoader()
	loader.Context = ctx
	spec, err := loader.LoadFromData(data)
	if err != nil {
		return &ExportError{Message: "failed to load generated document", Cause: err}
	}
	if err := spec.Validate(ctx); err != nil {
		return &ExportError{Message: "generated document is invalid", Cause: err}
	}
	return nil
}

func templateKey(p *matching.Pattern) string {
	var b strings.Builder
	for _, seg := range p.Segments() {
		b.WriteByte('/')
		if seg.Kind == matching.SegmentLiteral {
			b.WriteString(seg.Value)
		} else {
			b.WriteString("{}")
		}
	}
	return b.String()
}

func (p *PathItem) slot(method string) **Operation {
	switch method {
	case http.MethodGet:
		return &p.Get
	case http.MethodPut:
		return &p.Put
	case http.MethodPost:
		return &p.Post
	case http.MethodDelete:
		return &p.Delete
	case http.MethodOptions:
		return &p.Options
	case http.MethodHead:
		return &p.Head
	case http.MethodPatch:
		return &p.Patch
	}
	return nil
}

func operation(r *route.Route, comps *Components) *Operation {
	op := &Operation{
		OperationID: operationID(r),
		Summary:     r.Method + " " + r.Path,
		Responses:   make(map[string]*Response),
	}
	for _, seg := range r.Pattern().Segments() {
		if seg.Kind == matching.SegmentLiteral {
			continue
		}
		name := seg.Value
		if name == "*" {
			name = "path"
		}
		op.Parameters = append(op.Parameters, Parameter{
			Name:     name,
			In:       "path",
			Required: true,
			Schema:   &Schema{Type: "string"},
		})
	}

	sh := r.Shorthand
	if sh == nil || comps == nil || comps.Schemas[componentName(sh.Model)] == nil {
		op.Responses["default"] = &Response{Description: "Handler response"}
		return op
	}

	op.Tags = []string{inflect.CollectionName(sh.Model)}
	model := ref(componentName(sh.Model))
	single := rooted(sh.Model, model)
	switch sh.Action {
	case route.ActionIndex:
		op.Summary = "List " + inflect.CollectionName(sh.Model)
		op.Parameters = append(op.Parameters, Parameter{
			Name:        "filter",
			In:          "query",
			Description: "Filter expression evaluated against each record",
			Schema:      &Schema{Type: "string"},
		})
		op.Responses["200"] = jsonResponse("OK", rooted(inflect.CollectionName(sh.Model), &Schema{Type: "array", Items: model}))
	case route.ActionShow:
		op.Summary = "Get a " + sh.Model
		op.Responses["200"] = jsonResponse("OK", single)
		op.Responses["404"] = &Response{Description: "Not found"}
	case route.ActionCreate:
		op.Summary = "Create a " + sh.Model
		op.RequestBody = &RequestBody{Required: true, Content: map[string]MediaType{contentJSON: {Schema: single}}}
		op.Responses["201"] = jsonResponse("Created", single)
		op.Responses["422"] = &Response{Description: "Validation failed"}
	case route.ActionUpdate:
		op.Summary = "Update a " + sh.Model
		op.RequestBody = &RequestBody{Required: true, Content: map[string]MediaType{contentJSON: {Schema: single}}}
		op.Responses["200"] = jsonResponse("OK", single)
		op.Responses["404"] = &Response{Description: "Not found"}
	case route.ActionDelete:
		op.Summary = "Delete a " + sh.Model
		op.Responses["204"] = &Response{Description: "Deleted"}
		op.Responses["404"] = &Response{Description: "Not found"}
	}
	return op
}

func jsonResponse(desc string, s *Schema) *Response {
	return &Response{Description: desc, Content: map[string]MediaType{contentJSON: {Schema: s}}}
}

func rooted(key string, s *Schema) *Schema {
	return &Schema{Type: "object", Properties: map[string]*Schema{key: s}}
}

// modelSchema describes a stored record: the id, the declared attributes
// and one key per belongs-to association.
func modelSchema(def *schema.ModelDefinition) *Schema {
	open := true
	out := &Schema{
		Type:                 "object",
		Properties:           map[string]*Schema{"id": {Type: "string"}},
		AdditionalProperties: &open,
	}
	for name, a := range def.Attributes {
		prop := &Schema{Type: a.Type, Enum: a.Enum}
		if !a.Required {
			prop.Nullable = true
		}
		out.Properties[name] = prop
		if a.Required {
			out.Required = append(out.Required, name)
		}
	}
	for _, bt := range def.BelongsToAssociations() {
		out.Properties[bt.ForeignKey] = &Schema{Type: "string", Nullable: true}
	}
	sort.Strings(out.Required)
	return out
}

// componentName turns a model type into a schema name: "blogPost" ->
// "BlogPost".
func componentName(model string) string {
	if model == "" {
		return model
	}
	return strings.ToUpper(model[:1]) + model[1:]
}

func operationID(r *route.Route) string {
	if sh := r.Shorthand; sh != nil && r.Generated {
		id := string(sh.Action) + componentName(sh.Model)
		if r.Method == http.MethodPatch {
			id = "patch" + componentName(sh.Model)
		}
		return id
	}
	var b strings.Builder
	b.WriteString(strings.ToLower(r.Method))
	for _, seg := range r.Pattern().Segments() {
		switch seg.Kind {
		case matching.SegmentLiteral:
			b.WriteString(componentName(inflect.Camelize(seg.Value)))
		case matching.SegmentParam:
			b.WriteString("By" + componentName(seg.Value))
		default:
			b.WriteString("Rest")
		}
	}
	return b.String()
}

// ExportError reports a failed export.
type ExportError struct {
	Message string
	Cause   error
}

func (e *ExportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("openapi: %s: %v", e.Message, e.Cause)
	}
	return "openapi: " + e.Message
}

func (e *ExportError) Unwrap() error {
	return e.Cause
}
