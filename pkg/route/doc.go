// Package route holds the route table of a simulated server.
//
// Routes are registered per HTTP verb with a path pattern and a Handler.
// Patterns use literal segments, ":name" captures and an optional trailing
// "*name" glob. Resource expands a model name into shorthand CRUD routes;
// they are materialized when the table is finalized, after every explicit
// route is known, and skipped wherever an explicit route already covers the
// same method and path shape:
//
//	t := route.NewTable()
//	t.Namespace("/api", func(t *route.Table) {
//	    t.Resource("contacts")
//	    t.Get("/contacts/:id", func(s *schema.Schema, req *mock.Request) (any, error) {
//	        return s.Find("contact", req.Param("id"))
//	    })
//	})
//	t.Passthrough("https://cdn.example.com/**")
//
// A nil handler asks for the shorthand implied by the path, so
// t.Get("/contacts") lists contacts and t.Delete("/contacts/:id") destroys
// one.
package route
