// Package dispatch turns a matched route into a handler invocation.
//
// The HTTP verb and the route's handler identifier select a registry entry
// through fixed naming rules (see Describe). Readers answer GET, mutators
// answer POST, PUT and DELETE, and OPTIONS and HEAD receive the CORS
// preflight answer without any handler being built.
package dispatch

import (
	"net/http"
	"strings"
)

const controllerSuffix = "Controller"

// Descriptor is the registry key a verb and handler identifier resolve to.
type Descriptor struct {
	Verb       string
	Identifier string
	// Module is the registry module path, e.g. "users/profilePut".
	Module string
	// TypeName is the handler type name, e.g. "profilePutController".
	TypeName  string
	Mutator   bool
	Preflight bool
}

// Resolvable reports whether the descriptor names a controller at all.
// Verbs outside GET, HEAD, OPTIONS, POST, PUT and DELETE never do.
func (d Descriptor) Resolvable() bool {
	return strings.Contains(d.TypeName, controllerSuffix)
}

// Describe applies the naming rules to verb and identifier:
//
//	GET users/profile     -> module users/profile,        type profileController
//	HEAD users/profile    -> module users/profileHead,    type profileHeadController (preflight)
//	PUT users/profile     -> module users/profilePut,     type profilePutController (mutator)
//	PATCH users/profile   -> type profilePatch, not resolvable
//
// Mutator modules replace the last path segment rather than substituting
// its text, so a handler name repeated elsewhere in the path is left alone.
func Describe(verb, identifier string) Descriptor {
	verb = strings.ToUpper(strings.TrimSpace(verb))
	identifier = strings.Trim(identifier, "/")
	segments := strings.Split(identifier, "/")
	last := segments[len(segments)-1]
	suffix := capitalize(verb)

	d := Descriptor{Verb: verb, Identifier: identifier}
	switch verb {
	case http.MethodGet:
		d.Module = identifier
		d.TypeName = last + controllerSuffix
	case http.MethodHead, http.MethodOptions:
		d.Module = identifier + suffix
		d.TypeName = last + suffix + controllerSuffix
		d.Preflight = true
	case http.MethodPost, http.MethodPut, http.MethodDelete:
		segments[len(segments)-1] = last + suffix
		d.Module = strings.Join(segments, "/")
		d.TypeName = last + suffix + controllerSuffix
		d.Mutator = true
	default:
		d.Module = identifier + suffix
		d.TypeName = last + suffix
	}
	return d
}

func capitalize(verb string) string {
	if verb == "" {
		return ""
	}
	return verb[:1] + strings.ToLower(verb[1:])
}
