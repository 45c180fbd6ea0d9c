// Package testing runs a mirage backend inside Go tests.
//
// A MockServer wraps an engine.Server built from a schema and route table,
// or from a scenario file. Requests can go through an in-process client
// that never opens a socket, or through a real HTTP listener when the code
// under test needs a URL.
//
// # Basic Usage
//
//	func TestContacts(t *testing.T) {
//	    m := miragetest.FromYAML(t, `
//	models:
//	  - name: contact
//	resources:
//	  - name: contacts
//	fixtures:
//	  contacts:
//	    - {name: Link}
//	`)
//
//	    resp, err := m.Client().Get("http://api.test/contacts/1")
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer resp.Body.Close()
//
//	    m.AssertCalled(t, "GET", "/contacts/:id")
//	}
//
// # Custom Routes
//
// Routes added after the server is built take effect on the next request:
//
//	m.Route("GET", "/status").
//	    WithStatus(503).
//	    WithJSON(map[string]string{"state": "maintenance"}).
//	    WithDelay("50ms").
//	    Reply()
//
// # Real Listeners
//
// Start serves the mock over httptest and returns its base URL. The admin
// API is available under the server's admin prefix:
//
//	url := m.Start()
//	resp, _ := http.Get(url + "/__mirage/db")
//
// # Cleanup
//
// Servers are shut down with t.Cleanup, so pending delayed calls are
// abandoned when the test ends.
package testing
