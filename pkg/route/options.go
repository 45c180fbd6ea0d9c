package route

import (
	"time"
)

// Action names one shorthand CRUD operation.
type Action string

const (
	ActionIndex  Action = "index"
	ActionShow   Action = "show"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// AllActions lists the actions Resource registers by default.
var AllActions = []Action{ActionIndex, ActionShow, ActionCreate, ActionUpdate, ActionDelete}

type routeOptions struct {
	timing *time.Duration
	model  string
	only   []Action
	except []Action
	path   string
}

// Option configures a route or resource registration.
type Option func(*routeOptions)

// WithTiming overrides the server delay for the route.
func WithTiming(d time.Duration) Option {
	return func(o *routeOptions) {
		o.timing = &d
	}
}

// Model sets the model type a shorthand route operates on, instead of the
// one inferred from the path.
func Model(name string) Option {
	return func(o *routeOptions) {
		o.model = name
	}
}

// Only limits Resource to the given actions.
func Only(actions ...Action) Option {
	return func(o *routeOptions) {
		o.only = actions
	}
}

// Except removes the given actions from Resource.
func Except(actions ...Action) Option {
	return func(o *routeOptions) {
		o.except = actions
	}
}

// Path sets the collection path used by Resource, instead of the dasherized
// plural of the model name.
func Path(p string) Option {
	return func(o *routeOptions) {
		o.path = p
	}
}

func applyOptions(opts []Option) routeOptions {
	var o routeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o routeOptions) actions() []Action {
	base := AllActions
	if len(o.only) > 0 {
		base = o.only
	}
	out := make([]Action, 0, len(base))
	for _, a := range base {
		excluded := false
		for _, x := range o.except {
			if x == a {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, a)
		}
	}
	return out
}
