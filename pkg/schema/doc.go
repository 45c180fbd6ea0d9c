// Package schema is the association-aware facade over a db.Db.
//
// A Schema knows every registered model type, its attribute descriptors and
// its associations. Create, Update and Destroy resolve and cascade through
// those associations; Find-style reads return Model accessors whose related
// records are looked up only when asked for:
//
//	s, _ := schema.New(db.New(),
//	    &schema.ModelDefinition{
//	        Name: "user",
//	        Associations: []schema.Association{
//	            &schema.HasMany{Name: "posts", Dependent: true},
//	        },
//	    },
//	    &schema.ModelDefinition{
//	        Name: "post",
//	        Associations: []schema.Association{
//	            &schema.BelongsTo{Name: "author", Target: "user", Inverse: "posts"},
//	        },
//	    },
//	)
//
//	post, _ := s.Create("post", map[string]any{
//	    "title":  "Hello",
//	    "author": map[string]any{"name": "Link"}, // created first, id substituted
//	})
//	author, _ := post.BelongsTo("author")
//	posts, _ := author.HasMany("posts")
//	_ = s.Destroy("user", author.ID()) // cascades to dependent posts
//
// Foreign keys are validated when written, but only against target
// collections that already hold records, so fixtures may be created in any
// order. A key that still dangles resolves to nil.
package schema
