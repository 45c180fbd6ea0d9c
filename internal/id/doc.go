// Package id provides the identifier primitives behind the record identity
// strategies in pkg/db.
//
// It provides several formats:
//
//   - Counter: decimal integers rendered as strings ("1", "2", ...)
//   - Letters: bijective base-26 sequences ("a" ... "z", "aa", "ab", ...)
//   - UUID: random UUID v4 values
//   - ULID: Universally Unique Lexicographically Sortable Identifiers for
//     time-ordered ids that are collision-free and sortable
//
// Counter and Letters are deterministic and round-trip through their Parse
// functions, which is what lets an identity manager skip ids that were
// assigned explicitly by a fixture.
package id
