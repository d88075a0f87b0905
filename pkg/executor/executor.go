// Package executor runs transformations against a remote dispatcher and
// falls back to the in-process dispatcher when the remote is unreachable.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/morezero/textcipher/pkg/dispatcher"
	"github.com/morezero/textcipher/pkg/events"
	"github.com/morezero/textcipher/pkg/registry"
	"github.com/morezero/textcipher/pkg/semver"
)

const logPrefix = "executor:executor"

const defaultRemoteTimeout = 5 * time.Second

// ErrNoRemote is returned by Probe when the executor is local-only.
var ErrNoRemote = errors.New("executor:executor - no remote configured")

// Params holds the dependencies of an Executor.
type Params struct {
	// Remote is optional; nil runs every request locally.
	Remote Remote
	Local  *dispatcher.Dispatcher
	// RemoteTimeout bounds a single remote call.
	RemoteTimeout time.Duration
	// RemoteCooldown is how long the remote is skipped after a transport
	// failure or a failed probe. Zero never skips.
	RemoteCooldown time.Duration
	// APIConstraint is checked against the remote health apiVersion by Probe.
	APIConstraint string
	Publisher     events.EventPublisher
}

// Executor is the dual-path entry point. It is safe for concurrent use.
type Executor struct {
	remote         Remote
	local          *dispatcher.Dispatcher
	remoteTimeout  time.Duration
	remoteCooldown time.Duration
	apiConstraint  string
	publisher      events.EventPublisher
	now            func() time.Time

	// skipUntil is the unix-nano deadline before which the remote is not tried.
	skipUntil atomic.Int64
}

// NewExecutor creates a new Executor.
func NewExecutor(p Params) *Executor {
	if p.RemoteTimeout <= 0 {
		p.RemoteTimeout = defaultRemoteTimeout
	}
	if p.Publisher == nil {
		p.Publisher = &events.NoOpPublisher{}
	}
	return &Executor{
		remote:         p.Remote,
		local:          p.Local,
		remoteTimeout:  p.RemoteTimeout,
		remoteCooldown: p.RemoteCooldown,
		apiConstraint:  p.APIConstraint,
		publisher:      p.Publisher,
		now:            time.Now,
	}
}

// Execute runs req remotely when possible and locally otherwise. Only a
// transport failure triggers the local path; a business failure from the
// remote is returned unchanged. Options are resolved against the local
// defaults before the remote call so both paths use the same key and shift.
func (e *Executor) Execute(ctx context.Context, req *registry.TransformRequest, dir registry.Direction) *dispatcher.TransformResult {
	start := e.now()
	fallback := false

	// Input neither codec can carry intact never leaves the process.
	if res := dispatcher.Validate(req); res != nil {
		e.publish(ctx, req, dir, events.PathLocal, false, res, start)
		return res
	}

	if e.remoteEnabled() {
		sent, disclosure := e.local.WithDefaults(req)
		res, err := e.callRemote(ctx, sent, dir)
		if err == nil {
			if res.Success && res.KeyDisclosure != "" {
				res.KeyDisclosure = disclosure
			}
			e.publish(ctx, req, dir, events.PathRemote, false, res, start)
			return res
		}
		slog.Debug(fmt.Sprintf("%s - remote %s failed, using local path: %v", logPrefix, dir, err))
		e.tripCooldown()
		fallback = true
	}

	res := e.local.Transform(ctx, req, dir)
	e.publish(ctx, req, dir, events.PathLocal, fallback, res, start)
	return res
}

func (e *Executor) callRemote(ctx context.Context, req *registry.TransformRequest, dir registry.Direction) (*dispatcher.TransformResult, error) {
	rctx, cancel := context.WithTimeout(ctx, e.remoteTimeout)
	defer cancel()

	res, err := e.remote.Transform(rctx, req, dir)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, transportError(string(dir), errors.New("empty result"))
	}
	if !res.Success && !registry.IsBusinessKind(res.ErrorKind) {
		return nil, transportError(string(dir), fmt.Errorf("unclassified failure %q", res.ErrorKind))
	}
	return res, nil
}

// Probe checks remote health and API compatibility. A failure puts the
// remote in cooldown; a success clears it.
func (e *Executor) Probe(ctx context.Context) error {
	if e.remote == nil {
		return ErrNoRemote
	}

	rctx, cancel := context.WithTimeout(ctx, e.remoteTimeout)
	defer cancel()

	h, err := e.remote.Health(rctx)
	if err == nil && h == nil {
		err = transportError("health", errors.New("empty health response"))
	}
	if err == nil && !h.Success {
		err = fmt.Errorf("%s - remote reported unhealthy: %s", logPrefix, h.Message)
	}
	if err == nil {
		err = semver.CheckCompatible(h.APIVersion, e.apiConstraint)
	}
	if err != nil {
		e.tripCooldown()
		return err
	}

	e.skipUntil.Store(0)
	slog.Debug(fmt.Sprintf("%s - remote healthy (apiVersion=%s)", logPrefix, h.APIVersion))
	return nil
}

// Watch probes the remote every interval until ctx is done.
func (e *Executor) Watch(ctx context.Context, interval time.Duration) {
	if e.remote == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.Probe(ctx); err != nil {
				slog.Warn(fmt.Sprintf("%s - remote probe failed: %v", logPrefix, err))
			}
		}
	}
}

// RemoteAvailable reports whether the next Execute will try the remote.
func (e *Executor) RemoteAvailable() bool {
	return e.remoteEnabled()
}

func (e *Executor) remoteEnabled() bool {
	if e.remote == nil {
		return false
	}
	until := e.skipUntil.Load()
	return until == 0 || e.now().UnixNano() >= until
}

func (e *Executor) tripCooldown() {
	if e.remoteCooldown <= 0 {
		return
	}
	e.skipUntil.Store(e.now().Add(e.remoteCooldown).UnixNano())
}

func (e *Executor) publish(ctx context.Context, req *registry.TransformRequest, dir registry.Direction, path string, fallback bool, res *dispatcher.TransformResult, start time.Time) {
	alg := string(res.Algorithm)
	if alg == "" && req != nil {
		alg = req.Algorithm
	}
	ev := events.NewTransformedEvent(alg, string(dir), path)
	ev.Fallback = fallback
	ev.Success = res.Success
	ev.ErrorKind = string(res.ErrorKind)
	ev.KeyDisclosure = string(res.KeyDisclosure)
	ev.DurationMs = e.now().Sub(start).Milliseconds()
	if req != nil {
		ev.InputLength = len(req.Text)
	}
	if err := e.publisher.PublishTransformed(ctx, ev); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to publish transform event: %v", logPrefix, err))
	}
}
