package route

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/getmockd/mirage/pkg/mock"
	"github.com/getmockd/mirage/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func named(name string) Handler {
	return func(*schema.Schema, *mock.Request) (any, error) {
		return name, nil
	}
}

func call(t *testing.T, r *Route) any {
	t.Helper()
	v, err := r.Handler(nil, nil)
	require.NoError(t, err)
	return v
}

func TestTable_ExplicitBeatsResource(t *testing.T) {
	for _, explicitFirst := range []bool{true, false} {
		tbl := NewTable()
		if explicitFirst {
			tbl.Get("/widgets/:widgetId", named("explicit"))
			tbl.Resource("widgets")
		} else {
			tbl.Resource("widgets")
			tbl.Get("/widgets/:widgetId", named("explicit"))
		}

		r, params, err := tbl.Match("GET", "/widgets/3")
		require.NoError(t, err)
		require.NotNil(t, r)
		assert.Equal(t, "explicit", call(t, r))
		assert.Equal(t, "3", params["widgetId"])

		// Other shorthand routes are still generated.
		r, _, err = tbl.Match("DELETE", "/widgets/3")
		require.NoError(t, err)
		require.NotNil(t, r)
		assert.Equal(t, &Shorthand{Model: "widget", Action: ActionDelete}, r.Shorthand)
	}
}

func TestTable_LiteralBeatsParam(t *testing.T) {
	tbl := NewTable()
	tbl.Get("/widgets/:id", named("param"))
	tbl.Get("/widgets/new", named("literal"))

	r, _, err := tbl.Match("GET", "/widgets/new")
	require.NoError(t, err)
	assert.Equal(t, "literal", call(t, r))
}

func TestTable_Resource(t *testing.T) {
	tbl := NewTable()
	tbl.Resource("blogPost")

	routes, err := tbl.Routes()
	require.NoError(t, err)

	var got []string
	for _, r := range routes {
		got = append(got, r.Method+" "+r.Path+" "+string(r.Shorthand.Action))
		assert.True(t, r.Generated)
	}
	assert.Equal(t, []string{
		"GET /blog-posts index",
		"GET /blog-posts/:id show",
		"POST /blog-posts create",
		"PUT /blog-posts/:id update",
		"PATCH /blog-posts/:id update",
		"DELETE /blog-posts/:id delete",
	}, got)
}

func TestTable_ResourceOnlyExcept(t *testing.T) {
	tbl := NewTable()
	tbl.Resource("contacts", Only(ActionIndex, ActionShow, ActionDelete), Except(ActionDelete))
	tbl.Resource("people", Path("/folks"), Model("person"), Except(ActionUpdate, ActionDelete))

	routes, err := tbl.Routes()
	require.NoError(t, err)
	var got []string
	for _, r := range routes {
		got = append(got, r.Method+" "+r.Path+" "+r.Shorthand.Model)
	}
	assert.Equal(t, []string{
		"GET /contacts contact",
		"GET /contacts/:id contact",
		"GET /folks person",
		"GET /folks/:id person",
		"POST /folks person",
	}, got)
}

func TestTable_Namespace(t *testing.T) {
	tbl := NewTable()
	tbl.Namespace("/api", func(tbl *Table) {
		tbl.Get("/ping", named("ping"))
		tbl.Namespace("v2", func(tbl *Table) {
			tbl.Resource("contacts", Only(ActionIndex))
		})
	})
	tbl.Get("/ping", named("root"))

	r, _, err := tbl.Match("GET", "/api/ping")
	require.NoError(t, err)
	assert.Equal(t, "ping", call(t, r))

	r, _, err = tbl.Match("GET", "/api/v2/contacts")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, ActionIndex, r.Shorthand.Action)

	r, _, err = tbl.Match("GET", "/ping")
	require.NoError(t, err)
	assert.Equal(t, "root", call(t, r))
}

func TestTable_NilHandlerInfersShorthand(t *testing.T) {
	tests := []struct {
		method string
		path   string
		opts   []Option
		want   Shorthand
	}{
		{"GET", "/contacts", nil, Shorthand{Model: "contact", Action: ActionIndex}},
		{"GET", "/contacts/:id", nil, Shorthand{Model: "contact", Action: ActionShow, param: "id"}},
		{"POST", "/contacts", nil, Shorthand{Model: "contact", Action: ActionCreate}},
		{"PATCH", "/contacts/:contactId", nil, Shorthand{Model: "contact", Action: ActionUpdate, param: "contactId"}},
		{"DELETE", "/blog-posts/:id", nil, Shorthand{Model: "blogPost", Action: ActionDelete, param: "id"}},
		{"GET", "/friends", []Option{Model("user")}, Shorthand{Model: "user", Action: ActionIndex}},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			tbl := NewTable()
			tbl.Handle(tt.method, tt.path, nil, tt.opts...)
			routes, err := tbl.Routes()
			require.NoError(t, err)
			require.Len(t, routes, 1)
			assert.Equal(t, &tt.want, routes[0].Shorthand)
			assert.False(t, routes[0].Generated)
		})
	}
}

func TestTable_RegistrationErrors(t *testing.T) {
	tbl := NewTable()
	tbl.Get("/ok", named("ok"))
	tbl.Get("/files/*rest/x", named("bad"))
	tbl.Post("/contacts/:id", nil)
	tbl.Passthrough("/api/[")

	err := tbl.Finalize()
	require.Error(t, err)
	var reg *RegistrationError
	assert.ErrorAs(t, err, &reg)
	assert.Contains(t, err.Error(), "glob must be the last segment")
	assert.Contains(t, err.Error(), "no shorthand for POST")

	_, _, err = tbl.Match("GET", "/ok")
	assert.Error(t, err)
}

func TestTable_HeadFallsBackToGet(t *testing.T) {
	tbl := NewTable()
	tbl.Get("/status", named("get"))
	tbl.Head("/ping", named("head"))

	r, _, err := tbl.Match("HEAD", "/status")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "get", call(t, r))

	r, _, err = tbl.Match("HEAD", "/ping")
	require.NoError(t, err)
	assert.Equal(t, "head", call(t, r))

	r, _, err = tbl.Match("GET", "/ping")
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestTable_LateRegistrationRefinalizes(t *testing.T) {
	tbl := NewTable()
	tbl.Resource("widgets")
	require.NoError(t, tbl.Finalize())

	r, _, err := tbl.Match("GET", "/widgets/1")
	require.NoError(t, err)
	require.NotNil(t, r.Shorthand)

	tbl.Get("/widgets/:id", named("explicit"))
	r, _, err = tbl.Match("GET", "/widgets/1")
	require.NoError(t, err)
	assert.Equal(t, "explicit", call(t, r))
}

func TestTable_Timing(t *testing.T) {
	tbl := NewTable()
	tbl.Get("/slow", named("slow"), WithTiming(50*time.Millisecond))
	tbl.Get("/fast", named("fast"))

	r, _, err := tbl.Match("GET", "/slow")
	require.NoError(t, err)
	require.NotNil(t, r.Timing)
	assert.Equal(t, 50*time.Millisecond, *r.Timing)

	r, _, err = tbl.Match("GET", "/fast")
	require.NoError(t, err)
	assert.Nil(t, r.Timing)
}

func TestTable_Passthrough(t *testing.T) {
	tbl := NewTable()
	tbl.Namespace("/api", func(tbl *Table) {
		tbl.Passthrough("/upstream/**")
	})
	tbl.Passthrough("https://cdn.example.com/**")

	u, err := url.Parse("http://localhost/api/upstream/a/b")
	require.NoError(t, err)
	assert.True(t, tbl.PassesThrough(u, u.Path))

	u, err = url.Parse("http://localhost/upstream/a")
	require.NoError(t, err)
	assert.False(t, tbl.PassesThrough(u, u.Path))

	u, err = url.Parse("https://cdn.example.com/logo.png")
	require.NoError(t, err)
	assert.True(t, tbl.PassesThrough(u, u.Path))

	assert.False(t, tbl.PassesUnmatched())
	tbl.Passthrough()
	assert.True(t, tbl.PassesUnmatched())
	assert.Equal(t, []string{"/api/upstream/**", "https://cdn.example.com/**"}, tbl.PassthroughPatterns())
}

func TestTable_NearMisses(t *testing.T) {
	tbl := NewTable()
	tbl.Post("/contacts", named("create"))

	misses := tbl.NearMisses(http.MethodGet, "/contacts", 3)
	require.Len(t, misses, 1)
	assert.Equal(t, "POST", misses[0].Method)
}
