package route

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/getmockd/mirage/pkg/db"
	"github.com/getmockd/mirage/pkg/mock"
	"github.com/getmockd/mirage/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contactSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New(db.New(), &schema.ModelDefinition{Name: "contact"})
	require.NoError(t, err)
	return s
}

// serve matches and runs a request against the table.
func serve(t *testing.T, tbl *Table, s *schema.Schema, method, target, body string) (any, error) {
	t.Helper()
	req, err := mock.NewRequest(method, target, []byte(body))
	require.NoError(t, err)
	r, params, err := tbl.Match(req.Method, req.Path)
	require.NoError(t, err)
	require.NotNil(t, r, "no route for %s %s", method, target)
	req.Params = params
	return r.Handler(s, req)
}

// decode round-trips a handler result through JSON.
func decode(t *testing.T, v any) map[string]any {
	t.Helper()
	if resp, ok := v.(*mock.Response); ok {
		v = resp.Body
	}
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestShorthand_CRUD(t *testing.T) {
	s := contactSchema(t)
	tbl := NewTable()
	tbl.Resource("contacts")

	created, err := serve(t, tbl, s, "POST", "/contacts", `{"name":"Shiek"}`)
	require.NoError(t, err)
	resp, ok := created.(*mock.Response)
	require.True(t, ok)
	assert.Equal(t, http.StatusCreated, resp.Status)
	contact := decode(t, created)["contact"].(map[string]any)
	assert.Equal(t, "1", contact["id"])
	assert.Equal(t, "Shiek", contact["name"])

	shown, err := serve(t, tbl, s, "GET", "/contacts/1", "")
	require.NoError(t, err)
	assert.Equal(t, "Shiek", decode(t, shown)["contact"].(map[string]any)["name"])

	updated, err := serve(t, tbl, s, "PATCH", "/contacts/1", `{"contact":{"name":"Zelda"}}`)
	require.NoError(t, err)
	assert.Equal(t, "Zelda", decode(t, updated)["contact"].(map[string]any)["name"])

	deleted, err := serve(t, tbl, s, "DELETE", "/contacts/1", "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, deleted.(*mock.Response).Status)

	_, err = serve(t, tbl, s, "GET", "/contacts/1", "")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, http.StatusNotFound, nf.StatusCode())

	_, err = serve(t, tbl, s, "DELETE", "/contacts/1", "")
	var dbNF *db.NotFoundError
	assert.ErrorAs(t, err, &dbNF)
}

func TestShorthand_IndexFiltering(t *testing.T) {
	s := contactSchema(t)
	for _, attrs := range []map[string]any{
		{"name": "Link", "age": 17},
		{"name": "Zelda", "age": 17},
		{"name": "Ganon", "age": 300},
	} {
		_, err := s.Create("contact", attrs)
		require.NoError(t, err)
	}
	tbl := NewTable()
	tbl.Get("/contacts", nil)

	names := func(v any) []string {
		var out []string
		for _, c := range decode(t, v)["contacts"].([]any) {
			out = append(out, c.(map[string]any)["name"].(string))
		}
		return out
	}

	all, err := serve(t, tbl, s, "GET", "/contacts", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Link", "Zelda", "Ganon"}, names(all))

	young, err := serve(t, tbl, s, "GET", "/contacts?age=17", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Link", "Zelda"}, names(young))

	old, err := serve(t, tbl, s, "GET", "/contacts?filter=age+%3E+100", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ganon"}, names(old))

	none, err := serve(t, tbl, s, "GET", "/contacts?name=Impa", "")
	require.NoError(t, err)
	assert.Empty(t, names(none))
	assert.Equal(t, []any{}, decode(t, none)["contacts"])

	_, err = serve(t, tbl, s, "GET", "/contacts?filter=age+%3E", "")
	var bad *BadRequestError
	assert.ErrorAs(t, err, &bad)
}

func TestShorthand_IndexIgnoresUnknownParams(t *testing.T) {
	s, err := schema.New(db.New(),
		&schema.ModelDefinition{Name: "company"},
		&schema.ModelDefinition{
			Name:         "contact",
			Attributes:   map[string]schema.Attribute{"email": {Type: "string"}},
			Associations: []schema.Association{&schema.BelongsTo{Name: "company"}},
		},
	)
	require.NoError(t, err)
	tbl := NewTable()
	tbl.Resource("contacts")
	tbl.Resource("companies")

	_, err = serve(t, tbl, s, "POST", "/companies", `{"name":"Hyrule"}`)
	require.NoError(t, err)
	_, err = serve(t, tbl, s, "POST", "/contacts", `{"name":"Link","companyId":"1"}`)
	require.NoError(t, err)

	count := func(t *testing.T, target string) int {
		t.Helper()
		v, err := serve(t, tbl, s, "GET", target, "")
		require.NoError(t, err)
		return len(decode(t, v)["contacts"].([]any))
	}

	tests := []struct {
		target string
		want   int
	}{
		{"/contacts", 1},
		{"/contacts?_=1700000000&page=1", 1},
		{"/contacts?page=1&name=Link", 1},
		{"/contacts?page=1&name=Zelda", 0},
		{"/contacts?companyId=1", 1},
		{"/contacts?companyId=2", 0},
		{"/contacts?email=link%40hyrule.test", 0},
		{"/contacts?id=1", 1},
		{"/contacts?filter%5Bpage%5D=1", 0},
		{"/contacts?filter%5Bname%5D=Link", 1},
		{"/contacts?ids=1&page=2", 1},
		{"/contacts?ids%5B%5D=1&ids%5B%5D=7", 1},
		{"/contacts?ids=7", 0},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			assert.Equal(t, tt.want, count(t, tt.target))
		})
	}
}

func TestShorthand_Errors(t *testing.T) {
	s := contactSchema(t)
	tbl := NewTable()
	tbl.Resource("contacts")
	tbl.Resource("widgets")

	_, err := serve(t, tbl, s, "POST", "/contacts", `{"name":`)
	var bad *BadRequestError
	assert.ErrorAs(t, err, &bad)

	_, err = serve(t, tbl, s, "POST", "/contacts", `{"name":"Link"}`)
	require.NoError(t, err)
	_, err = serve(t, tbl, s, "PUT", "/contacts/1", `{"id":"2","name":"x"}`)
	assert.ErrorAs(t, err, &bad)

	_, err = serve(t, tbl, s, "PUT", "/contacts/9", `{"name":"x"}`)
	var nf *db.NotFoundError
	assert.ErrorAs(t, err, &nf)

	_, err = serve(t, tbl, s, "GET", "/widgets", "")
	var unknown *schema.UnknownModelError
	assert.ErrorAs(t, err, &unknown)

	assert.Error(t, tbl.CheckModels(s))
}

func TestShorthand_CustomIDParam(t *testing.T) {
	s := contactSchema(t)
	_, err := s.Create("contact", map[string]any{"name": "Link"})
	require.NoError(t, err)

	tbl := NewTable()
	tbl.Get("/people/:personId", nil, Model("contact"))

	got, err := serve(t, tbl, s, "GET", "/people/1", "")
	require.NoError(t, err)
	assert.Equal(t, "Link", decode(t, got)["contact"].(map[string]any)["name"])
	assert.NoError(t, tbl.CheckModels(s))
}
