// Package server orchestrates all components: embedded or remote COMMS, the
// transform dispatcher, transform events, the audit database and the HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/textcipher/internal/config"
	"github.com/morezero/textcipher/pkg/commsutil"
	"github.com/morezero/textcipher/pkg/db"
	"github.com/morezero/textcipher/pkg/dispatcher"
	"github.com/morezero/textcipher/pkg/events"
	"github.com/morezero/textcipher/pkg/registry"
)

const logPrefix = "server:server"

const (
	shutdownTimeout = 10 * time.Second
	publishTimeout  = 5 * time.Second
)

// statsStore is the audit query surface used by the HTTP API.
type statsStore interface {
	TransformStats(ctx context.Context) ([]db.AlgorithmStats, error)
}

// Server is the cipherd orchestrator.
type Server struct {
	cfg        *config.Config
	ns         *commsserver.Server
	nc         *comms.Conn
	sub        *comms.Subscription
	pool       *pgxpool.Pool
	stats      statsStore
	publisher  events.EventPublisher
	disp       *dispatcher.Dispatcher
	httpServer *http.Server
	listener   net.Listener
	// publishes tracks in-flight transform events.
	publishes sync.WaitGroup
}

// Run starts the server, blocks until shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("%s - Starting cipherd", logPrefix))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	if err := s.Start(ctx); err != nil {
		s.Shutdown(ctx)
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	s.Shutdown(shutdownCtx)
	return nil
}

// New wires the server components without accepting traffic.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	s := &Server{cfg: cfg}

	// Step 1: COMMS (embedded broker first when requested)
	if cfg.COMMSEnabled {
		url := cfg.COMMSURL
		if cfg.COMMSEmbedded {
			ns, err := startEmbedded(cfg.COMMSEmbeddedHost, cfg.COMMSEmbeddedPort)
			if err != nil {
				return nil, err
			}
			s.ns = ns
			url = ns.ClientURL()
		}
		nc, err := commsutil.Connect(url, cfg.COMMSName)
		if err != nil {
			s.Shutdown(ctx)
			return nil, fmt.Errorf("%s - failed to connect to COMMS: %w", logPrefix, err)
		}
		s.nc = nc
	}

	// Step 2: audit database
	var pubs []events.EventPublisher
	if cfg.AuditEnabled {
		if err := s.openAudit(ctx); err != nil {
			s.Shutdown(ctx)
			return nil, err
		}
		repo := db.NewRepository(s.pool)
		s.stats = repo
		pubs = append(pubs, db.NewAuditPublisher(repo))
	}

	// Step 3: transform events
	if s.nc != nil && cfg.EventsEnabled {
		pubs = append(pubs, events.NewCommsPublisher(s.nc, &events.CommsPublisherOpts{Subject: cfg.EventsSubject}))
	}
	s.publisher = events.NewFanoutPublisher(pubs...)

	// Step 4: dispatcher
	reg := registry.NewRegistry(registry.Config{
		DefaultKey:   cfg.DefaultKey,
		DefaultShift: cfg.DefaultShift,
	})
	s.disp = dispatcher.NewDispatcher(reg).WithObserver(s.observe)

	return s, nil
}

func (s *Server) openAudit(ctx context.Context) error {
	pool, err := db.NewPool(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
	}
	s.pool = pool

	if s.cfg.RunMigrations {
		migrations, err := db.LoadMigrations(s.cfg.MigrationPath)
		if err != nil {
			return fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
		}
		if err := db.RunMigrations(ctx, pool, migrations); err != nil {
			return fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
		}
	}
	return nil
}

// Start subscribes to the transform subject and starts the HTTP API.
func (s *Server) Start(ctx context.Context) error {
	if s.nc != nil {
		if err := s.subscribe(ctx); err != nil {
			return err
		}
	}

	ln, err := net.Listen("tcp", s.cfg.ListenAddr())
	if err != nil {
		return fmt.Errorf("%s - failed to listen on %s: %w", logPrefix, s.cfg.ListenAddr(), err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.RequestTimeout,
		WriteTimeout:      s.cfg.RequestTimeout,
	}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP API listening on %s", logPrefix, ln.Addr()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()

	slog.Info(fmt.Sprintf("%s - cipherd is ready", logPrefix))
	return nil
}

// Addr returns the HTTP listen address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// COMMSURL returns the URL of the connected broker, or "" without COMMS.
func (s *Server) COMMSURL() string {
	if s.nc == nil {
		return ""
	}
	return s.nc.ConnectedUrl()
}

// Shutdown stops traffic and releases every component. It is safe to call on
// a partially constructed server.
func (s *Server) Shutdown(ctx context.Context) {
	if s.sub != nil {
		_ = s.sub.Unsubscribe()
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - HTTP shutdown: %v", logPrefix, err))
		}
	}
	s.publishes.Wait()
	if s.nc != nil {
		_ = s.nc.Drain()
	}
	if s.ns != nil {
		s.ns.Shutdown()
		s.ns.WaitForShutdown()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
}

// observe publishes one event per served transformation without holding the reply.
func (s *Server) observe(ctx context.Context, req *registry.TransformRequest, dir registry.Direction, res *dispatcher.TransformResult, elapsed time.Duration) {
	alg := string(res.Algorithm)
	if alg == "" && req != nil {
		alg = req.Algorithm
	}
	if s.publisher == nil {
		return
	}
	ev := events.NewTransformedEvent(alg, string(dir), events.PathRemote)
	ev.RequestID = dispatcher.RequestIDFromContext(ctx)
	ev.Success = res.Success
	ev.ErrorKind = string(res.ErrorKind)
	ev.KeyDisclosure = string(res.KeyDisclosure)
	ev.DurationMs = elapsed.Milliseconds()
	if req != nil {
		ev.InputLength = len(req.Text)
	}

	// Off the response path; outlives the request context.
	pubCtx := context.WithoutCancel(ctx)
	s.publishes.Add(1)
	go func() {
		defer s.publishes.Done()
		pubCtx, cancel := context.WithTimeout(pubCtx, publishTimeout)
		defer cancel()
		if err := s.publisher.PublishTransformed(pubCtx, ev); err != nil {
			slog.Warn(fmt.Sprintf("%s - failed to publish transform event: %v", logPrefix, err))
		}
	}()
}
