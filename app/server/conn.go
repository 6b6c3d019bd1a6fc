package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"sync"
	"time"

	"github.com/go-stack/stack"

	"github.com/xavierroma/vala/app/events"
	"github.com/xavierroma/vala/app/logging"
	"github.com/xavierroma/vala/app/metrics"
	"github.com/xavierroma/vala/app/middleware"
	"github.com/xavierroma/vala/app/static"
	"github.com/xavierroma/vala/app/tracing"
	"github.com/xavierroma/vala/app/types"
)

// dispatch outcomes used as metric labels and span attributes
const (
	dispatchRoute   = "route"
	dispatchStatic  = "static"
	dispatchMiss    = "miss"
	dispatchInvalid = "invalid"
)

var errRequestTimeout = errors.New("request timed out")

// PanicError reports a panic raised inside a middleware chain
type PanicError struct {
	Value any
	Stack stack.CallStack
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// conn is one client connection. Requests are read and answered strictly
// one after the other.
type conn struct {
	nc net.Conn
	lr *io.LimitedReader
	br *bufio.Reader
	bw *bufio.Writer

	headerLimit int64

	mtx  sync.Mutex
	idle bool
}

func newConn(nc net.Conn, maxHeaderBytes int) *conn {
	c := &conn{
		nc: nc,
		lr: &io.LimitedReader{R: nc, N: math.MaxInt64},
		bw: bufio.NewWriter(nc),
	}
	c.br = bufio.NewReader(c.lr)
	// the reader may buffer up to a full page beyond the head
	c.headerLimit = int64(maxHeaderBytes) + 4096
	return c
}

// setIdle marks the connection as waiting for a request. It returns false
// when the server is shutting down.
func (c *conn) setIdle(ctx context.Context, idle bool) bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if idle && ctx.Err() != nil {
		return false
	}
	c.idle = idle
	return true
}

func (c *conn) interruptIfIdle() {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.idle {
		c.nc.SetReadDeadline(time.Now())
	}
}

func (c *conn) readRequest(maxBodyBytes int64) (*parsedRequest, error) {
	c.lr.N = c.headerLimit
	req, err := parseRequest(c.br, maxBodyBytes)
	if err != nil && c.lr.N <= 0 {
		err = errHeaderTooLarge
	}
	c.lr.N = math.MaxInt64
	return req, err
}

func (s *Server) handleConnection(ctx context.Context, c *conn) {
	defer c.nc.Close()
	remote := c.nc.RemoteAddr().String()

	for {
		if s.frontend.IdleTimeout > 0 {
			c.nc.SetReadDeadline(time.Now().Add(s.frontend.IdleTimeout))
		}
		if !c.setIdle(ctx, true) {
			return
		}
		pr, err := c.readRequest(s.frontend.MaxBodyBytes)
		c.setIdle(ctx, false)
		c.nc.SetReadDeadline(time.Time{})

		if err != nil {
			s.rejectRequest(c, pr, remote, err)
			return
		}
		pr.RemoteAddr = remote

		if !s.serveRequest(ctx, c, pr) {
			return
		}
		if err := pr.drain(c.br); err != nil {
			s.logger.Debug("error draining request body", logging.Pairs{
				"remoteAddr": remote, "detail": err.Error(),
			})
			return
		}
	}
}

// rejectRequest answers a request that could not be read and closes the
// connection. Nothing is written when the peer went away.
func (s *Server) rejectRequest(c *conn, pr *parsedRequest, remote string, err error) {
	var ne net.Error
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) ||
		(errors.As(err, &ne) && ne.Timeout()) {
		return
	}

	status, msg := types.StatusBadRequest, "bad request"
	switch {
	case errors.Is(err, errBodyTooLarge):
		status, msg = types.StatusRequestTooLarge, "request too large"
	case errors.Is(err, errHeaderTooLarge):
		msg = "request header too large"
	}
	var req *types.Request
	if pr != nil {
		req = pr.Request
	}
	s.logger.Warn("failed to parse request", logging.Pairs{
		"remoteAddr": remote, "status": status, "detail": err.Error(),
	})
	metrics.RequestStatus.WithLabelValues("other", dispatchInvalid, metrics.StatusClass(status)).Inc()
	respond(c.bw, req, errorResponse(status, msg), false, false)
}

// serveRequest dispatches one request and writes its response. It returns
// whether the connection stays open.
func (s *Server) serveRequest(ctx context.Context, c *conn, pr *parsedRequest) bool {
	start := time.Now()
	req := pr.Request
	reqCtx := events.NewContext(context.WithoutCancel(ctx), s.bus)
	reqCtx, span := s.tracer.StartRequest(reqCtx, string(req.Method), req.Path, req.RemoteAddr)

	res, dispatch, err := s.dispatch(reqCtx, req)
	alive := keepAlive(req)
	if errors.Is(err, errRequestTimeout) {
		alive = false
	}

	alive, werr := respond(c.bw, req, res, alive, s.frontend.Compression)
	if werr != nil {
		metrics.RequestErrors.WithLabelValues("write").Inc()
		s.logger.Debug("error writing response", logging.Pairs{
			"remoteAddr": req.RemoteAddr, "detail": werr.Error(),
		})
		alive = false
		if err == nil {
			err = werr
		}
	}

	elapsed := time.Since(start)
	method := string(req.Method)
	if !req.Method.Valid() {
		method = "other"
	}
	class := metrics.StatusClass(res.Status)
	metrics.RequestStatus.WithLabelValues(method, dispatch, class).Inc()
	metrics.RequestDuration.WithLabelValues(method, dispatch, class).Observe(elapsed.Seconds())
	tracing.EndRequest(span, res.Status, dispatch, err)
	s.logger.Debug("request", logging.Pairs{
		"method":     req.Method,
		"path":       req.Path,
		"status":     res.Status,
		"dispatch":   dispatch,
		"remoteAddr": req.RemoteAddr,
		"elapsed":    elapsed.String(),
	})
	return alive
}

// dispatch produces the response for req: the matched route's chain, a
// static file, or the 404 answer. Chain failures become 500 (503 on
// timeout) responses and are returned as err for reporting.
func (s *Server) dispatch(ctx context.Context, req *types.Request) (*types.Response, string, error) {
	b, ok := s.dispatcher.Resolve(req.Method, req.Path)
	if !ok {
		return s.serveStatic(ctx, req)
	}
	req.Binding = b

	chain := middleware.Build(s.stack, b.Middleware, b.Handler)
	res, err := s.runChain(ctx, chain, req)
	if err == nil {
		return res, dispatchRoute, nil
	}

	var pe *PanicError
	var ice *middleware.IncompleteChainError
	fields := logging.Pairs{
		"method": req.Method, "path": req.Path, "route": b.String(), "detail": err.Error(),
	}
	switch {
	case errors.Is(err, errRequestTimeout):
		metrics.RequestErrors.WithLabelValues("timeout").Inc()
		s.logger.Warn("request timed out", fields)
		return errorResponse(types.StatusServiceUnavailable, "request timed out"), dispatchRoute, err
	case errors.As(err, &pe):
		metrics.RequestErrors.WithLabelValues("panic").Inc()
		fields["stack"] = fmt.Sprintf("%v", pe.Stack)
		s.logger.Error("handler panicked", fields)
	case errors.As(err, &ice):
		metrics.RequestErrors.WithLabelValues("incomplete_chain").Inc()
		s.logger.Error("incomplete middleware chain", fields)
	default:
		metrics.RequestErrors.WithLabelValues("handler").Inc()
		s.logger.Error("handler failed", fields)
	}
	return errorResponse(types.StatusInternalServerError, "internal server error"), dispatchRoute, err
}

func (s *Server) runChain(ctx context.Context, chain middleware.Chain, req *types.Request) (*types.Response, error) {
	if s.frontend.RequestTimeout <= 0 {
		return safeRun(ctx, chain, req)
	}
	ctx, cancel := context.WithTimeout(ctx, s.frontend.RequestTimeout)
	defer cancel()

	type result struct {
		res *types.Response
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := safeRun(ctx, chain, req)
		done <- result{res, err}
	}()
	select {
	case r := <-done:
		return r.res, r.err
	case <-ctx.Done():
		go func() {
			r := <-done
			closeBody(r.res)
		}()
		return nil, errRequestTimeout
	}
}

func safeRun(ctx context.Context, chain middleware.Chain, req *types.Request) (res *types.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, &PanicError{Value: r, Stack: stack.Trace().TrimRuntime()}
		}
	}()
	return chain.Run(ctx, req)
}

func (s *Server) serveStatic(ctx context.Context, req *types.Request) (*types.Response, string, error) {
	if s.static == nil {
		return notFound(req), dispatchMiss, nil
	}
	f, err := s.static.Serve(ctx, req.Path)
	switch {
	case err == nil:
		metrics.StaticLookups.WithLabelValues("hit").Inc()
		res := types.NewResponse(types.StatusOK)
		res.Headers.Set("Content-Type", f.ContentType())
		res.Headers.Set("Last-Modified", f.ModTime.UTC().Format(httpTimeFormat))
		res.BodyReader = f.Reader
		res.ContentLength = f.Size
		return res, dispatchStatic, nil
	case errors.Is(err, static.ErrNotFound):
		metrics.StaticLookups.WithLabelValues("miss").Inc()
		return notFound(req), dispatchMiss, nil
	}

	metrics.StaticLookups.WithLabelValues("error").Inc()
	metrics.RequestErrors.WithLabelValues("static").Inc()
	var re *static.ResolutionError
	fields := logging.Pairs{"method": req.Method, "path": req.Path, "detail": err.Error()}
	if errors.As(err, &re) {
		fields["root"] = re.Root
	}
	s.logger.Error("static resolution failed", fields)
	return notFound(req), dispatchMiss, err
}

