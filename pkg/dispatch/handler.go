package dispatch

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/nimburion/docroute/pkg/route"
)

// Request carries what a handler is built from.
type Request struct {
	// Path is the normalized request path.
	Path   string
	Params route.Params
	// Files is always empty; uploads are handled outside the dispatcher.
	Files map[string][]*multipart.FileHeader
	// Restricted is always false here.
	Restricted bool
	HTTP       *http.Request
	Descriptor Descriptor
}

// Handler serves one request.
type Handler interface {
	ServeRequest(w http.ResponseWriter, r *Request)
	// Done reports whether the handler ran to completion.
	Done() bool
}

// Mutator is implemented by handlers allowed to change state. Handlers
// routed through POST, PUT or DELETE must implement it.
type Mutator interface {
	Handler
	MutatesState()
}

// Factory builds a handler for one request.
type Factory func(*Request) Handler

// ErrNotMutator marks a state-changing route served by a reader handler.
var ErrNotMutator = errors.New("handler does not implement dispatch.Mutator")

// ConfigError is a deployment defect found while dispatching, such as a
// reader handler registered for a mutating verb. It is never reported to
// the client as a missing route.
type ConfigError struct {
	Module   string
	TypeName string
	Err      error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("dispatch: %s (%s): %v", e.Module, e.TypeName, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
