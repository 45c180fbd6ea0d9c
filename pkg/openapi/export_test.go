package openapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/getmockd/mirage/pkg/db"
	"github.com/getmockd/mirage/pkg/mock"
	"github.com/getmockd/mirage/pkg/route"
	"github.com/getmockd/mirage/pkg/schema"
)

func contactsFixture(t *testing.T) (*route.Table, *schema.Schema) {
	t.Helper()
	s, err := schema.New(db.New(),
		&schema.ModelDefinition{
			Name: "company",
			Attributes: map[string]schema.Attribute{
				"name": {Type: "string", Required: true},
			},
		},
		&schema.ModelDefinition{
			Name: "contact",
			Attributes: map[string]schema.Attribute{
				"name":  {Type: "string", Required: true},
				"state": {Type: "string", Enum: []any{"active", "archived"}},
			},
			Associations: []schema.Association{
				&schema.BelongsTo{Name: "company"},
			},
		},
	)
	require.NoError(t, err)

	tbl := route.NewTable()
	tbl.Namespace("/api", func(tbl *route.Table) {
		tbl.Resource("contacts")
		tbl.Get("/contacts/:id/card", func(*schema.Schema, *mock.Request) (any, error) {
			return nil, nil
		})
		tbl.Get("/files/*", func(*schema.Schema, *mock.Request) (any, error) {
			return nil, nil
		})
	})
	return tbl, s
}

func TestExport_Paths(t *testing.T) {
	tbl, s := contactsFixture(t)

	doc, err := Export(tbl, s, Info{Title: "contacts"})
	require.NoError(t, err)

	assert.Equal(t, Version, doc.OpenAPI)
	assert.Equal(t, "1.0.0", doc.Info.Version)
	require.Contains(t, doc.Paths, "/api/contacts")
	require.Contains(t, doc.Paths, "/api/contacts/{id}")
	require.Contains(t, doc.Paths, "/api/contacts/{id}/card")
	require.Contains(t, doc.Paths, "/api/files/{path}")

	coll := doc.Paths["/api/contacts"]
	require.NotNil(t, coll.Get)
	require.NotNil(t, coll.Post)
	assert.Nil(t, coll.Delete)
	assert.Equal(t, "indexContact", coll.Get.OperationID)
	assert.Contains(t, coll.Post.Responses, "201")
	require.NotNil(t, coll.Post.RequestBody)

	member := doc.Paths["/api/contacts/{id}"]
	require.NotNil(t, member.Put)
	require.NotNil(t, member.Patch)
	require.NotNil(t, member.Delete)
	assert.Contains(t, member.Delete.Responses, "204")
	require.Len(t, member.Get.Parameters, 1)
	assert.Equal(t, "id", member.Get.Parameters[0].Name)
	assert.True(t, member.Get.Parameters[0].Required)

	card := doc.Paths["/api/contacts/{id}/card"].Get
	require.NotNil(t, card)
	assert.Equal(t, "getApiContactsByIdCard", card.OperationID)
	assert.Contains(t, card.Responses, "default")
}

func TestExport_ModelSchemas(t *testing.T) {
	tbl, s := contactsFixture(t)

	doc, err := Export(tbl, s, Info{})
	require.NoError(t, err)
	require.NotNil(t, doc.Components)

	contact := doc.Components.Schemas["Contact"]
	require.NotNil(t, contact)
	assert.Equal(t, []string{"name"}, contact.Required)
	assert.Equal(t, "string", contact.Properties["id"].Type)
	assert.True(t, contact.Properties["state"].Nullable)
	assert.Equal(t, []any{"active", "archived"}, contact.Properties["state"].Enum)
	require.Contains(t, contact.Properties, "companyId")
	assert.Contains(t, doc.Components.Schemas, "Company")
}

func TestExport_WithoutSchema(t *testing.T) {
	tbl, _ := contactsFixture(t)

	doc, err := Export(tbl, nil, Info{Title: "bare"})
	require.NoError(t, err)
	assert.Nil(t, doc.Components)
	assert.Contains(t, doc.Paths["/api/contacts"].Get.Responses, "default")
}

func TestExport_Errors(t *testing.T) {
	_, err := Export(nil, nil, Info{})
	require.Error(t, err)

	tbl := route.NewTable()
	tbl.Get("/files/*rest/more", nil)
	_, err = Export(tbl, nil, Info{})
	var exportErr *ExportError
	require.ErrorAs(t, err, &exportErr)
	assert.Error(t, exportErr.Unwrap())
}

func TestExport_ParamNameCollision(t *testing.T) {
	tbl := route.NewTable()
	h := func(*schema.Schema, *mock.Request) (any, error) { return nil, nil }
	tbl.Get("/things/:id", h)
	tbl.Delete("/things/:thingId", h)
	tbl.Get("/things/:thingId", h)

	doc, err := Export(tbl, nil, Info{})
	require.NoError(t, err)
	require.Len(t, doc.Paths, 1)
	item := doc.Paths["/things/{id}"]
	require.NotNil(t, item)
	assert.NotNil(t, item.Get)
	assert.NotNil(t, item.Delete)
}

func TestDocument_Validate(t *testing.T) {
	tbl, s := contactsFixture(t)

	doc, err := Export(tbl, s, Info{Title: "contacts"})
	require.NoError(t, err)
	require.NoError(t, doc.Validate(t.Context()))
}

func TestDocument_Encodings(t *testing.T) {
	tbl, s := contactsFixture(t)
	doc, err := Export(tbl, s, Info{Title: "contacts", Version: "2.0.0"})
	require.NoError(t, err)

	data, err := doc.JSON()
	require.NoError(t, err)
	var fromJSON map[string]any
	require.NoError(t, json.Unmarshal(data, &fromJSON))
	assert.Equal(t, Version, fromJSON["openapi"])

	data, err = doc.YAML()
	require.NoError(t, err)
	var fromYAML map[string]any
	require.NoError(t, yaml.Unmarshal(data, &fromYAML))
	info := fromYAML["info"].(map[string]any)
	assert.Equal(t, "2.0.0", info["version"])
}

func TestPathItem_Slot(t *testing.T) {
	var item PathItem
	assert.NotNil(t, item.slot(http.MethodHead))
	assert.Nil(t, item.slot("TRACE"))
}
