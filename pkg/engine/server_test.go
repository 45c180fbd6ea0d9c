package engine

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/mirage/pkg/db"
	"github.com/getmockd/mirage/pkg/mock"
	"github.com/getmockd/mirage/pkg/requestlog"
	"github.com/getmockd/mirage/pkg/route"
	"github.com/getmockd/mirage/pkg/schema"
)

func contactSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New(db.New(), &schema.ModelDefinition{
		Name: "contact",
		Attributes: map[string]schema.Attribute{
			"name": {Type: "string", Required: true},
		},
	})
	require.NoError(t, err)
	return s
}

func newServer(t *testing.T, tbl *route.Table, opts ...Option) *Server {
	t.Helper()
	srv, err := New(contactSchema(t), tbl, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func dispatch(t *testing.T, srv *Server, method, target, body string) *mock.Response {
	t.Helper()
	req, err := mock.NewRequest(method, target, []byte(body))
	require.NoError(t, err)
	resp, err := srv.Dispatch(t.Context(), req)
	require.NoError(t, err)
	return resp
}

func bodyMap(t *testing.T, resp *mock.Response) map[string]any {
	t.Helper()
	var out map[string]any
	data, err := resp.Bytes()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestNew(t *testing.T) {
	_, err := New(nil, nil)
	assert.ErrorIs(t, err, ErrSchemaRequired)

	srv, err := New(contactSchema(t), nil)
	require.NoError(t, err)
	assert.NotNil(t, srv.Routes())
	assert.NotNil(t, srv.Schema())
	assert.Zero(t, srv.Timing())
}

func TestNew_SeederFailure(t *testing.T) {
	_, err := New(contactSchema(t), nil, WithSeeder(func(*schema.Schema) error {
		return errors.New("boom")
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestDispatch_ContactsLifecycle(t *testing.T) {
	tbl := route.NewTable()
	tbl.Resource("contact")
	srv := newServer(t, tbl)

	resp := dispatch(t, srv, http.MethodPost, "/contacts", `{"name":"Shiek"}`)
	require.Equal(t, http.StatusCreated, resp.Status)
	contact := bodyMap(t, resp)["contact"].(map[string]any)
	id, _ := contact["id"].(string)
	require.NotEmpty(t, id)

	resp = dispatch(t, srv, http.MethodGet, "/contacts/"+id, "")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "Shiek", bodyMap(t, resp)["contact"].(map[string]any)["name"])

	resp = dispatch(t, srv, http.MethodDelete, "/contacts/"+id, "")
	assert.Equal(t, http.StatusNoContent, resp.Status)

	resp = dispatch(t, srv, http.MethodGet, "/contacts/"+id, "")
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, "not_found", bodyMap(t, resp)["error"])
}

func TestDispatch_ValidationIs422(t *testing.T) {
	tbl := route.NewTable()
	tbl.Resource("contacts")
	srv := newServer(t, tbl)

	resp := dispatch(t, srv, http.MethodPost, "/contacts", `{"email":"x@example.com"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Status)
	assert.Equal(t, "unprocessable_entity", bodyMap(t, resp)["error"])
	assert.Equal(t, 0, mustCollection(t, srv).Len())
}

func TestDispatch_ExplicitBeatsShorthand(t *testing.T) {
	tbl := route.NewTable()
	tbl.Get("/contacts/:id", func(_ *schema.Schema, req *mock.Request) (any, error) {
		return map[string]string{"explicit": req.Param("id")}, nil
	})
	tbl.Resource("contacts")
	srv := newServer(t, tbl)

	resp := dispatch(t, srv, http.MethodGet, "/contacts/7", "")
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "7", bodyMap(t, resp)["explicit"])
}

func TestDispatch_ResponseSynthesis(t *testing.T) {
	tbl := route.NewTable()
	tbl.Get("/nil", func(*schema.Schema, *mock.Request) (any, error) { return nil, nil })
	tbl.Get("/typed-nil", func(*schema.Schema, *mock.Request) (any, error) {
		var p *struct{}
		return p, nil
	})
	tbl.Get("/raw", func(*schema.Schema, *mock.Request) (any, error) { return []int{1, 2}, nil })
	tbl.Get("/explicit", func(*schema.Schema, *mock.Request) (any, error) {
		return mock.JSON(http.StatusAccepted, map[string]any{"ok": true}).WithHeader("X-Mirage", "yes"), nil
	})
	tbl.Get("/value", func(*schema.Schema, *mock.Request) (any, error) {
		return mock.Response{Body: "plain"}, nil
	})
	tbl.Get("/missing", func(*schema.Schema, *mock.Request) (any, error) {
		return nil, route.NotFound("contact", "9")
	})
	tbl.Get("/fail", func(*schema.Schema, *mock.Request) (any, error) {
		return nil, errors.New("database on fire")
	})
	srv := newServer(t, tbl)

	resp := dispatch(t, srv, http.MethodGet, "/nil", "")
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Nil(t, resp.Body)

	resp = dispatch(t, srv, http.MethodGet, "/typed-nil", "")
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Nil(t, resp.Body)

	resp = dispatch(t, srv, http.MethodGet, "/raw", "")
	assert.Equal(t, http.StatusOK, resp.Status)
	data, err := resp.Bytes()
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2]`, string(data))

	resp = dispatch(t, srv, http.MethodGet, "/explicit", "")
	assert.Equal(t, http.StatusAccepted, resp.Status)
	assert.Equal(t, "yes", resp.Headers.Get("X-Mirage"))

	resp = dispatch(t, srv, http.MethodGet, "/value", "")
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "plain", resp.Body)

	resp = dispatch(t, srv, http.MethodGet, "/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.Status)

	resp = dispatch(t, srv, http.MethodGet, "/fail", "")
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.Equal(t, "internal_error", bodyMap(t, resp)["error"])
	assert.Equal(t, "database on fire", bodyMap(t, resp)["message"])
}

func TestDispatch_PanicIs500(t *testing.T) {
	tbl := route.NewTable()
	tbl.Get("/boom", func(*schema.Schema, *mock.Request) (any, error) {
		panic("kaboom")
	})
	tbl.Get("/fine", func(*schema.Schema, *mock.Request) (any, error) { return "ok", nil })
	srv := newServer(t, tbl)

	resp := dispatch(t, srv, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.Contains(t, bodyMap(t, resp)["message"], "kaboom")

	resp = dispatch(t, srv, http.MethodGet, "/fine", "")
	assert.Equal(t, http.StatusOK, resp.Status)
}

func TestDispatch_UnencodableBodyIs500(t *testing.T) {
	tbl := route.NewTable()
	tbl.Get("/ratio", func(*schema.Schema, *mock.Request) (any, error) {
		return map[string]any{"ratio": math.NaN()}, nil
	})
	tbl.Get("/chan", func(*schema.Schema, *mock.Request) (any, error) {
		return mock.JSON(http.StatusCreated, map[string]any{"ch": make(chan int)}), nil
	})
	srv := newServer(t, tbl)

	for _, path := range []string{"/ratio", "/chan"} {
		t.Run(path, func(t *testing.T) {
			resp := dispatch(t, srv, http.MethodGet, path, "")
			assert.Equal(t, http.StatusInternalServerError, resp.Status)
			assert.Equal(t, "internal_error", bodyMap(t, resp)["error"])
			assert.Contains(t, bodyMap(t, resp)["message"], "failed to encode response body")

			calls := srv.Calls(&requestlog.Filter{Path: path})
			require.Len(t, calls, 1)
			assert.Equal(t, http.StatusInternalServerError, calls[0].Status)
			assert.NotEmpty(t, calls[0].Error)
		})
	}

	client := &http.Client{Transport: srv.Transport()}
	resp, err := client.Get("http://app.test/ratio")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestDispatch_EncodesBodyOnce(t *testing.T) {
	shared := mock.NewResponse(http.StatusOK, map[string]int{"n": 1})
	tbl := route.NewTable()
	tbl.Get("/shared", func(*schema.Schema, *mock.Request) (any, error) { return shared, nil })
	srv := newServer(t, tbl)

	for range 2 {
		resp := dispatch(t, srv, http.MethodGet, "/shared", "")
		assert.IsType(t, json.RawMessage{}, resp.Body)
		assert.Equal(t, "application/json", resp.ContentType())
		assert.Equal(t, float64(1), bodyMap(t, resp)["n"])
	}
	assert.Equal(t, map[string]int{"n": 1}, shared.Body)
	assert.Empty(t, shared.Headers.Get("Content-Type"))
}

func TestDispatch_UnmatchedNearMisses(t *testing.T) {
	tbl := route.NewTable()
	tbl.Resource("contacts")
	srv := newServer(t, tbl)

	resp := dispatch(t, srv, http.MethodPost, "/contacts/1", "")
	assert.Equal(t, http.StatusNotFound, resp.Status)
	body := bodyMap(t, resp)
	assert.Equal(t, "not_found", body["error"])
	misses, ok := body["nearMisses"].([]any)
	require.True(t, ok)
	assert.Len(t, misses, nearMissLimit)

	resp = dispatch(t, srv, http.MethodGet, "/elsewhere", "")
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.NotContains(t, bodyMap(t, resp), "nearMisses")

	calls := srv.Calls(&requestlog.Filter{Outcome: requestlog.OutcomeUnmatched})
	require.Len(t, calls, 2)
	assert.Equal(t, "/contacts/1", calls[0].Path)
}

func TestDispatch_InvalidTableIs500(t *testing.T) {
	tbl := route.NewTable()
	tbl.Get("/files/*rest/more", nil)
	srv := newServer(t, tbl)

	resp := dispatch(t, srv, http.MethodGet, "/files/a", "")
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
}

func TestDispatch_HeadFallsBackToGet(t *testing.T) {
	tbl := route.NewTable()
	tbl.Resource("contacts")
	srv := newServer(t, tbl)

	resp := dispatch(t, srv, http.MethodHead, "/contacts", "")
	assert.Equal(t, http.StatusOK, resp.Status)
}

func TestDispatch_Timing(t *testing.T) {
	tbl := route.NewTable()
	tbl.Get("/slow", nil, route.Model("contact"), route.WithTiming(50*time.Millisecond))
	tbl.Get("/fast", func(*schema.Schema, *mock.Request) (any, error) { return "ok", nil }, route.WithTiming(0))
	srv := newServer(t, tbl, WithTiming(time.Hour))

	start := time.Now()
	resp := dispatch(t, srv, http.MethodGet, "/slow", "")
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	start = time.Now()
	dispatch(t, srv, http.MethodGet, "/fast", "")
	assert.Less(t, time.Since(start), time.Second)

	srv.SetTiming(-time.Second)
	assert.Zero(t, srv.Timing())
}

func TestDispatch_DelaysRunConcurrently(t *testing.T) {
	tbl := route.NewTable()
	tbl.Get("/wait", func(*schema.Schema, *mock.Request) (any, error) { return "ok", nil })
	srv := newServer(t, tbl, WithTiming(100*time.Millisecond))

	start := time.Now()
	var wg sync.WaitGroup
	for range 5 {
		wg.Go(func() {
			dispatch(t, srv, http.MethodGet, "/wait", "")
		})
	}
	wg.Wait()
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestDispatch_CancelDuringDelayLeavesStoreUntouched(t *testing.T) {
	tbl := route.NewTable()
	tbl.Resource("contacts", route.WithTiming(time.Second))
	srv := newServer(t, tbl)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	req, err := mock.NewRequest(http.MethodPost, "/contacts", []byte(`{"name":"Ghost"}`))
	require.NoError(t, err)

	_, err = srv.Dispatch(ctx, req)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, mustCollection(t, srv).Len())

	calls := srv.Calls(nil)
	require.Len(t, calls, 1)
	assert.Equal(t, requestlog.OutcomeCancelled, calls[0].Outcome)
}

func TestShutdown_AbandonsPendingDelays(t *testing.T) {
	tbl := route.NewTable()
	tbl.Resource("contacts", route.WithTiming(5*time.Second))
	srv, err := New(contactSchema(t), tbl)
	require.NoError(t, err)

	errs := make(chan error, 3)
	for range 3 {
		go func() {
			req, _ := mock.NewRequest(http.MethodPost, "/contacts", []byte(`{"name":"Late"}`))
			_, err := srv.Dispatch(context.Background(), req)
			errs <- err
		}()
	}
	time.Sleep(30 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	for range 3 {
		assert.ErrorIs(t, <-errs, ErrServerClosed)
	}
	assert.Equal(t, 0, mustCollection(t, srv).Len())

	req, err := mock.NewRequest(http.MethodGet, "/contacts", nil)
	require.NoError(t, err)
	_, err = srv.Dispatch(context.Background(), req)
	assert.ErrorIs(t, err, ErrServerClosed)

	assert.NoError(t, srv.Shutdown(ctx))
}

func TestReset_ReseedsAndClearsCalls(t *testing.T) {
	tbl := route.NewTable()
	tbl.Resource("contacts")
	seed := func(s *schema.Schema) error {
		_, err := s.Create("contact", map[string]any{"name": "Seed"})
		return err
	}
	srv := newServer(t, tbl, WithSeeder(seed))
	require.Equal(t, 1, mustCollection(t, srv).Len())

	dispatch(t, srv, http.MethodPost, "/contacts", `{"name":"Extra"}`)
	require.Equal(t, 2, mustCollection(t, srv).Len())
	require.Len(t, srv.Calls(nil), 1)

	require.NoError(t, srv.Reset())
	assert.Equal(t, 1, mustCollection(t, srv).Len())
	assert.Empty(t, srv.Calls(nil))
}

func mustCollection(t *testing.T, srv *Server) *db.Collection {
	t.Helper()
	c, err := srv.Schema().Collection("contact")
	require.NoError(t, err)
	return c
}
