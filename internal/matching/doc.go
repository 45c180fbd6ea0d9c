// Package matching provides the path-matching primitives behind route
// recognition.
//
// It compiles route patterns built from literal segments, ":name" capture
// segments and an optional trailing "*name" glob, orders them by
// specificity, matches pass-through globs (doublestar syntax, against a path
// or a full URL) and explains near misses when nothing matched.
//
// Key types:
//
//   - Pattern: a compiled route path with its captured parameter names
//   - Glob: a compiled pass-through entry
//   - NearMiss: a registered route that almost matched a request
package matching
