// Package requestlog records the calls a simulated server handled, for
// assertions in tests and inspection through the admin API.
//
// It is distinct from operational logging, which uses log/slog.
//
//	store := requestlog.NewMemoryStore(1000)
//	store.Log(&requestlog.Entry{Method: "GET", Path: "/contacts", Status: 200})
//	calls := store.List(&requestlog.Filter{Method: "GET"})
package requestlog
