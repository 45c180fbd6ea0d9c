// Package cli implements the mirage command line.
//
//	mirage serve [scenario]       serve a scenario over HTTP
//	mirage routes <scenario>      print the route table
//	mirage openapi <scenario>     export the routes as OpenAPI 3
//	mirage validate <scenario>    check a scenario without serving it
//	mirage version
//
// Process settings come from flags, then MIRAGE_* environment variables,
// then an optional .mirage.yaml in the working directory.
package cli
