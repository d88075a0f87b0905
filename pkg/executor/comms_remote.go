package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/textcipher/pkg/commsutil"
	"github.com/morezero/textcipher/pkg/dispatcher"
	"github.com/morezero/textcipher/pkg/registry"
)

// CommsRemoteOpts configures CommsRemote. Nil or zero values use defaults.
type CommsRemoteOpts struct {
	Subject string
	Caller  string
}

// CommsRemote reaches a dispatcher over COMMS request/reply.
type CommsRemote struct {
	nc      *comms.Conn
	subject string
	caller  string
}

// NewCommsRemote creates a new CommsRemote. Pass nil for opts to use defaults.
func NewCommsRemote(nc *comms.Conn, opts *CommsRemoteOpts) *CommsRemote {
	r := &CommsRemote{nc: nc, subject: commsutil.SubjectTransform, caller: "textcipher"}
	if opts != nil {
		if opts.Subject != "" {
			r.subject = opts.Subject
		}
		if opts.Caller != "" {
			r.caller = opts.Caller
		}
	}
	return r
}

// Transform sends an encode or decode envelope and decodes the reply.
func (r *CommsRemote) Transform(ctx context.Context, req *registry.TransformRequest, dir registry.Direction) (*dispatcher.TransformResult, error) {
	params, err := commsutil.EncodePayload(req)
	if err != nil {
		return nil, transportError(string(dir), err)
	}

	data, err := r.request(ctx, string(dir), params)
	if err != nil {
		return nil, err
	}

	res, err := dispatcher.DecodeTransformResponse(data)
	if err != nil {
		return nil, transportError(string(dir), err)
	}
	return res, nil
}

type healthEnvelope struct {
	Ok     bool                     `json:"ok"`
	Result *dispatcher.HealthOutput `json:"result"`
	Error  *dispatcher.ErrorDetail  `json:"error"`
}

// Health calls the remote health method.
func (r *CommsRemote) Health(ctx context.Context) (*dispatcher.HealthOutput, error) {
	data, err := r.request(ctx, dispatcher.MethodHealth, nil)
	if err != nil {
		return nil, err
	}

	env, err := commsutil.Decode[healthEnvelope](data)
	if err != nil {
		return nil, transportError(dispatcher.MethodHealth, err)
	}
	if !env.Ok || env.Result == nil {
		msg := "missing result"
		if env.Error != nil {
			msg = env.Error.Code + ": " + env.Error.Message
		}
		return nil, transportError(dispatcher.MethodHealth, errors.New(msg))
	}
	return env.Result, nil
}

func (r *CommsRemote) request(ctx context.Context, method string, params json.RawMessage) ([]byte, error) {
	id := uuid.NewString()
	env := &dispatcher.Request{
		ID:     id,
		Type:   "invoke",
		Method: method,
		Params: params,
		Ctx: &dispatcher.InvocationContext{
			RequestID: id,
			Caller:    r.caller,
		},
	}
	if deadline, ok := ctx.Deadline(); ok {
		env.Ctx.TimeoutMs = int(time.Until(deadline).Milliseconds())
	}

	data, err := commsutil.EncodePayload(env)
	if err != nil {
		return nil, transportError(method, err)
	}

	msg, err := r.nc.RequestWithContext(ctx, r.subject, data)
	if err != nil {
		return nil, transportError(method, fmt.Errorf("request on %s: %w", r.subject, err))
	}
	return msg.Data, nil
}
