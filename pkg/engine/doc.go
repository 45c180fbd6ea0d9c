// Package engine is the dispatcher of a simulated server.
//
// A Server owns one Schema and one route.Table. Each intercepted call is
// dispatched the same way:
//
//	request ─▶ explicit pass-through? ─yes─▶ real network
//	              │no
//	              ▼
//	          route match? ─no─▶ global pass-through? ─yes─▶ real network
//	              │yes                    │no
//	              ▼                       ▼
//	          delay (timing)            404
//	              │
//	              ▼
//	          handler(schema, request) ─▶ synthesized response
//
// Handlers run one at a time, so the store is never mutated concurrently;
// delays run outside that lock, so many calls can wait at once. The delay
// happens before the handler, and a call cancelled or shut down while
// waiting never touches the store.
//
// A Server can be reached three ways: Dispatch with a mock.Request,
// Transport as the http.RoundTripper of an *http.Client, or Handler as an
// http.Handler served on a real listener, which also exposes the admin API
// under /__mirage.
//
// Pass-through calls go to the request URL when it names a host. Requests
// a listener receives carry only a path; those go to the base URL set with
// WithUpstream and answer 502 without one.
//
//	srv, _ := engine.New(s, routes, engine.WithTiming(50*time.Millisecond))
//	client := &http.Client{Transport: srv.Transport()}
//	resp, _ := client.Get("http://api.test/contacts/1")
//	defer srv.Shutdown(context.Background())
package engine
