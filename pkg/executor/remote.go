package executor

import (
	"context"
	"fmt"

	"github.com/morezero/textcipher/pkg/dispatcher"
	"github.com/morezero/textcipher/pkg/registry"
)

// Remote is a dispatcher reached over a transport. A non-nil error is always
// a transport failure; business failures come back as results.
type Remote interface {
	Transform(ctx context.Context, req *registry.TransformRequest, dir registry.Direction) (*dispatcher.TransformResult, error)
	Health(ctx context.Context) (*dispatcher.HealthOutput, error)
}

// TransportError reports that the remote could not produce a well-formed answer.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", registry.ErrTransportFailure, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func transportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err}
}
