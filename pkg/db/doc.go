// Package db provides the in-memory record store behind a simulated server.
//
// The store is deliberately small: a Db is a named registry of Collections,
// a Collection is an ordered set of Records of one model type, and every
// Collection assigns ids through a pluggable IdentityManager.
//
// Core Types:
//
//   - Db: registry of collections, auto-creating unknown names unless strict
//   - Collection: ordered records with O(1) lookup by id
//   - Record: attribute map carrying a string "id"
//   - IdentityManager: id assignment strategy (counter, letters, UUID, ULID)
//
// Concurrency:
//
// Db and Collection perform no locking. A simulated server serializes all
// store access through its dispatcher; callers that share a Db across
// goroutines outside a server must do the same.
//
// Usage:
//
//	store := db.New(db.WithIdentity("users", db.UUIDIdentity))
//	contacts, _ := store.Collection("contacts")
//	rec, err := contacts.Insert(db.Record{"name": "Shiek"})
//	found, ok := contacts.Find(rec.ID())
//	for r := range contacts.All() {
//	    fmt.Println(r["name"])
//	}
//	store.EmptyData()
package db
