// Package commsutil provides COMMS connection helpers and utilities.
package commsutil

import (
	"fmt"
	"log/slog"
	"time"

	comms "github.com/nats-io/nats.go"
)

const logPrefix = "commsutil:connect"

// ConnectOptions tunes a COMMS connection. Zero values use the defaults.
type ConnectOptions struct {
	Timeout       time.Duration
	ReconnectWait time.Duration
	MaxReconnects int
	// RetryOnFailedConnect lets a client start before the server is up.
	RetryOnFailedConnect bool
}

// DefaultConnectOptions returns the options used by long-running services.
func DefaultConnectOptions() ConnectOptions {
	return ConnectOptions{
		Timeout:       10 * time.Second,
		ReconnectWait: 2 * time.Second,
		MaxReconnects: 60,
	}
}

// ClientConnectOptions returns options for short-lived callers that fall back
// to local execution instead of waiting on a broker.
func ClientConnectOptions(timeout time.Duration) ConnectOptions {
	return ConnectOptions{
		Timeout:       timeout,
		ReconnectWait: 500 * time.Millisecond,
		MaxReconnects: 2,
	}
}

// Connect creates a COMMS connection to the given URL with service defaults.
func Connect(url, name string) (*comms.Conn, error) {
	return ConnectWithOptions(url, name, DefaultConnectOptions())
}

// ConnectWithOptions creates a COMMS connection to the given URL.
func ConnectWithOptions(url, name string, opts ConnectOptions) (*comms.Conn, error) {
	defaults := DefaultConnectOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.ReconnectWait <= 0 {
		opts.ReconnectWait = defaults.ReconnectWait
	}
	if opts.MaxReconnects == 0 {
		opts.MaxReconnects = defaults.MaxReconnects
	}

	slog.Info(fmt.Sprintf("%s - Connecting to COMMS at %s as %s", logPrefix, url, name))

	nc, err := comms.Connect(url,
		comms.Name(name),
		comms.Timeout(opts.Timeout),
		comms.ReconnectWait(opts.ReconnectWait),
		comms.MaxReconnects(opts.MaxReconnects),
		comms.RetryOnFailedConnect(opts.RetryOnFailedConnect),
		comms.DisconnectErrHandler(func(_ *comms.Conn, err error) {
			if err != nil {
				slog.Warn(fmt.Sprintf("%s - COMMS disconnected: %v", logPrefix, err))
			}
		}),
		comms.ReconnectHandler(func(nc *comms.Conn) {
			slog.Info(fmt.Sprintf("%s - COMMS reconnected to %s", logPrefix, nc.ConnectedUrl()))
		}),
		comms.ClosedHandler(func(_ *comms.Conn) {
			slog.Debug(fmt.Sprintf("%s - COMMS connection closed", logPrefix))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to connect to COMMS: %w", logPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Connected to COMMS at %s", logPrefix, nc.ConnectedUrl()))
	return nc, nil
}
