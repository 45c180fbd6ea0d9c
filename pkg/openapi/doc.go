// Package openapi exports a server's route table and model definitions as
// an OpenAPI 3 document.
//
// Shorthand routes reference a component schema per model, built from the
// declared attributes and belongs-to foreign keys. Custom routes carry only
// their path parameters and a generic response.
//
//	doc, err := openapi.Export(routes, s, openapi.Info{Title: "contacts"})
//	data, err := doc.YAML()
package openapi
