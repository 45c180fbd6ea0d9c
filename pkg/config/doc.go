// Package config loads scenario files describing a simulated server.
//
// A scenario declares models, associations, shorthand resources, custom
// routes with static responses, pass-through entries, timing and
// fixtures. Files are YAML or JSON and may include other files through
// doublestar globs:
//
//	name: contacts
//	namespace: /api
//	timing: 50ms
//	passthrough: ["https://cdn.example.com/**"]
//	include: ["models/**/*.yaml"]
//	models:
//	  - name: contact
//	    attributes:
//	      name: {type: string, required: true}
//	    belongsTo:
//	      - name: company
//	resources:
//	  - name: contacts
//	    except: [delete]
//	routes:
//	  - method: GET
//	    path: /status
//	    response: {status: 200, body: {ok: true}}
//	fixtures:
//	  companies:
//	    - {id: "1", name: Acme}
//	  contacts:
//	    - {name: Shiek, companyId: "1"}
//
// ${VAR} and ${VAR:-default} references are expanded from the environment
// before parsing.
package config
