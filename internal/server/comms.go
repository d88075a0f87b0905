package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/textcipher/pkg/commsutil"
	"github.com/morezero/textcipher/pkg/dispatcher"
)

const commsLogPrefix = "server:comms"

// startEmbedded runs an in-process COMMS broker.
func startEmbedded(host string, port int) (*commsserver.Server, error) {
	ns, err := commsserver.NewServer(&commsserver.Options{
		Host:   host,
		Port:   port,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create embedded COMMS: %w", commsLogPrefix, err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("%s - embedded COMMS not ready on %s:%d", commsLogPrefix, host, port)
	}
	slog.Info(fmt.Sprintf("%s - Embedded COMMS listening at %s", commsLogPrefix, ns.ClientURL()))
	return ns, nil
}

// subscribe joins the worker queue group on the transform subject.
func (s *Server) subscribe(ctx context.Context) error {
	subject := s.cfg.TransformSubject
	sub, err := s.nc.QueueSubscribe(subject, commsutil.QueueGroup, func(msg *comms.Msg) {
		s.handleMessage(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("%s - failed to subscribe to %s: %w", commsLogPrefix, subject, err)
	}
	if err := s.nc.Flush(); err != nil {
		return fmt.Errorf("%s - failed to flush subscription: %w", commsLogPrefix, err)
	}
	s.sub = sub
	slog.Info(fmt.Sprintf("%s - Subscribed to %s (queue %s)", commsLogPrefix, subject, commsutil.QueueGroup))
	return nil
}

func (s *Server) handleMessage(ctx context.Context, msg *comms.Msg) {
	var req dispatcher.Request
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to decode request: %v", commsLogPrefix, err))
		s.respond(msg, &dispatcher.Response{
			Ok: false,
			Error: &dispatcher.ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: "Failed to decode request",
			},
		})
		return
	}

	// Per-request context with timeout; respect a shorter client deadline.
	timeout := s.cfg.RequestTimeout
	if req.Ctx != nil && req.Ctx.TimeoutMs > 0 {
		if d := time.Duration(req.Ctx.TimeoutMs) * time.Millisecond; d < timeout {
			timeout = d
		}
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.respond(msg, s.disp.Dispatch(reqCtx, &req))
}

func (s *Server) respond(msg *comms.Msg, resp *dispatcher.Response) {
	data, err := commsutil.EncodePayload(resp)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response: %v", commsLogPrefix, err))
		return
	}
	if err := msg.Respond(data); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to respond: %v", commsLogPrefix, err))
	}
}
