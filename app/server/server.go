// Package server accepts connections, reads HTTP/1.x requests from them and
// answers each with the matched route, a static file or a 404.
package server

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/xavierroma/vala/app/config"
	"github.com/xavierroma/vala/app/events"
	"github.com/xavierroma/vala/app/listener"
	"github.com/xavierroma/vala/app/logging"
	"github.com/xavierroma/vala/app/metrics"
	"github.com/xavierroma/vala/app/middleware"
	"github.com/xavierroma/vala/app/router"
	"github.com/xavierroma/vala/app/static"
	"github.com/xavierroma/vala/app/tracing"
	"github.com/xavierroma/vala/app/types"
)

// Server owns the route table, the global middleware stack and the static
// root, and serves them once Listen or Serve is called.
type Server struct {
	frontend  *config.FrontendConfig
	staticTTL time.Duration

	logger *logging.Logger
	tracer *tracing.Tracer
	bus    *events.Bus

	table      *router.Table
	dispatcher *router.Dispatcher
	stack      *middleware.Stack
	static     *static.Resolver

	freezeOnce sync.Once
	wg         sync.WaitGroup
	mtx        sync.Mutex
	conns      map[*conn]struct{}
}

// Option configures a Server
type Option func(*Server)

// WithTracer sets the tracer that spans every request
func WithTracer(t *tracing.Tracer) Option {
	return func(s *Server) { s.tracer = t }
}

// WithEvents sets the bus lifecycle events are published on and handlers
// can reach with events.FromContext
func WithEvents(b *events.Bus) Option {
	return func(s *Server) { s.bus = b }
}

// New returns a Server for cfg. A nil cfg uses the defaults and a nil
// logger discards everything.
func New(cfg *config.Config, logger *logging.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = logging.NoOpLogger()
	}
	if cfg == nil {
		cfg = config.NewConfig()
		if err := cfg.Validate(); err != nil {
			logger.Error("default configuration is invalid", logging.Pairs{"detail": err.Error()})
		}
	}
	s := &Server{
		frontend:  cfg.Frontend,
		staticTTL: cfg.Static.CacheTTL,
		logger:    logger,
		stack:     middleware.NewStack(),
		conns:     make(map[*conn]struct{}),
	}
	s.table = router.New(
		router.WithStrict(cfg.Main.StrictRoutes),
		router.WithLogger(logger),
	)
	s.dispatcher = router.NewDispatcher(s.table)
	if cfg.Static.Root != "" {
		s.static = static.New(cfg.Static.Root, static.WithCacheTTL(s.staticTTL))
	}
	for _, o := range opts {
		o(s)
	}
	if s.tracer == nil {
		s.tracer = tracing.NoOp()
	}
	if s.bus == nil {
		s.bus = events.NewBus(logger)
	}
	return s
}

// Use appends global middleware. It fails once the server is serving.
func (s *Server) Use(mw ...types.Middleware) error {
	return s.stack.Use(mw...)
}

// Register attaches a route
func (s *Server) Register(r router.Route) (*router.Binding, error) {
	return s.table.Register(r)
}

// Controller sets the prefix of a controller and returns a group to attach
// its routes with
func (s *Server) Controller(name, prefix string) *router.Group {
	return s.table.Controller(name, prefix)
}

// SetPrefix stores the path prefix of a controller
func (s *Server) SetPrefix(controller, prefix string) error {
	return s.table.SetPrefix(controller, prefix)
}

// Static sets the directory searched when no route matches. An empty dir
// disables the fallback.
func (s *Server) Static(dir string) error {
	if s.table.Frozen() {
		return router.ErrFrozen
	}
	if dir == "" {
		s.static = nil
		return nil
	}
	s.static = static.New(dir, static.WithCacheTTL(s.staticTTL))
	return nil
}

// Routes returns the route table
func (s *Server) Routes() *router.Table {
	return s.table
}

// Events returns the server's event bus
func (s *Server) Events() *events.Bus {
	return s.bus
}

// freeze makes the route table and the middleware stack read-only
func (s *Server) freeze() {
	s.freezeOnce.Do(func() {
		s.table.Freeze()
		s.stack.Freeze()
		metrics.Routes.Set(float64(s.table.Len()))
		for _, b := range s.table.Bindings() {
			s.logger.Info("route registered", logging.Pairs{
				"method":     b.Method,
				"path":       b.EffectivePath(),
				"controller": b.Controller,
			})
		}
		root := ""
		if s.static != nil {
			root = s.static.Root()
		}
		s.logger.Info("middleware registered", logging.Pairs{
			"global":     s.stack.Len(),
			"staticRoot": root,
		})
	})
}

// ListenOptions describes where to listen
type ListenOptions struct {
	Port     int
	Hostname string
	// Running is called once with "Server running in port N" when the
	// listener is bound
	Running func(string)
}

// Listen binds the listener and serves until ctx is cancelled. In-flight
// requests are completed before it returns.
func (s *Server) Listen(ctx context.Context, opts ListenOptions) error {
	s.freeze()
	host := opts.Hostname
	if host == "" {
		host = s.frontend.ListenAddress
	}
	l, err := listener.New(host, opts.Port, s.frontend.ConnectionsLimit)
	if err != nil {
		s.logger.Error("failed to bind listener", logging.Pairs{
			"address": host, "port": opts.Port, "detail": err.Error(),
		})
		return err
	}
	msg := "Server running in port " + strconv.Itoa(l.Port())
	s.logger.Info("server listening", logging.Pairs{"address": l.Addr().String()})
	if opts.Running != nil {
		opts.Running(msg)
	}
	s.bus.Publish(ctx, events.Listening, l.Port())
	return s.serve(ctx, l)
}

// Serve serves connections accepted from l until ctx is cancelled or l is
// closed
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.freeze()
	return s.serve(ctx, l)
}

func (s *Server) serve(ctx context.Context, l net.Listener) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.bus.Publish(context.Background(), events.Stopping, nil)
			l.Close()
			s.closeIdle()
		case <-done:
		}
	}()

	for {
		nc, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				if ctx.Err() != nil {
					s.bus.Publish(context.Background(), events.Stopped, nil)
					return nil
				}
				return err
			}
			s.logger.Error("error accepting connection", logging.Pairs{"detail": err.Error()})
			continue
		}
		c := s.track(nc)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(c)
			s.handleConnection(ctx, c)
		}()
	}
}

func (s *Server) track(nc net.Conn) *conn {
	c := newConn(nc, s.frontend.MaxHeaderBytes)
	s.mtx.Lock()
	s.conns[c] = struct{}{}
	s.mtx.Unlock()
	return c
}

func (s *Server) untrack(c *conn) {
	s.mtx.Lock()
	delete(s.conns, c)
	s.mtx.Unlock()
}

// closeIdle interrupts connections waiting for their next request
func (s *Server) closeIdle() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	for c := range s.conns {
		c.interruptIfIdle()
	}
}
