package controller

import (
	"context"
	"net/http"

	"github.com/nimburion/docroute/pkg/dispatch"
)

// Flow is the body of a controller. Its result is rendered as the data of a
// success payload; an error is rendered through MapError.
type Flow func(ctx context.Context, r *dispatch.Request) (any, error)

// Base runs a Flow and renders it as JSON. It implements dispatch.Handler.
type Base struct {
	flow    Flow
	status  int
	success bool
}

// Reader returns a factory for a read-only controller.
func Reader(flow Flow) dispatch.Factory {
	return func(*dispatch.Request) dispatch.Handler {
		return &Base{flow: flow, status: http.StatusOK}
	}
}

// MutatorBase is a Base that may change state.
type MutatorBase struct {
	Base
}

// MutatesState marks the handler as a dispatch.Mutator.
func (*MutatorBase) MutatesState() {}

// Mutator returns a factory for a state-changing controller answering with
// status.
func Mutator(status int, flow Flow) dispatch.Factory {
	return func(*dispatch.Request) dispatch.Handler {
		return &MutatorBase{Base{flow: flow, status: status}}
	}
}

func (b *Base) ServeRequest(w http.ResponseWriter, r *dispatch.Request) {
	ctx := context.Background()
	if r.HTTP != nil {
		ctx = r.HTTP.Context()
	}
	data, err := b.flow(ctx, r)
	if err != nil {
		b.success = false
		_ = Error(w, err)
		return
	}
	b.success = true
	_ = JSON(w, b.status, SuccessResponse{Success: true, Data: data})
}

// Done reports whether the flow succeeded.
func (b *Base) Done() bool { return b.success }

// NotFound answers with a 404 naming the path the dispatcher could not route.
func NotFound(r *dispatch.Request) dispatch.Handler {
	return &Base{
		status: http.StatusNotFound,
		flow: func(context.Context, *dispatch.Request) (any, error) {
			return nil, NewNotFoundError("Invalid endpoint: " + r.Params.Get(dispatch.PathInfoParam))
		},
	}
}

// Param returns the decoded value of a route parameter.
func Param(r *dispatch.Request, name string) string {
	return r.Params.Get(name)
}
