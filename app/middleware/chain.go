// Package middleware composes the global and route-local middleware around
// a handler and provides the stock middleware of the framework.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/xavierroma/vala/app/types"
)

// ErrStackFrozen is returned by Use once the server has started.
var ErrStackFrozen = errors.New("middleware stack is frozen")

// IncompleteChainError reports a chain that ended without a response.
type IncompleteChainError struct {
	Method types.Method
	Path   string
	Steps  int
}

func (e *IncompleteChainError) Error() string {
	return fmt.Sprintf("middleware chain for %s %s finished %d steps without a response",
		e.Method, e.Path, e.Steps)
}

// Stack is the append-only list of global middleware.
type Stack struct {
	mtx    sync.Mutex
	mws    []types.Middleware
	frozen bool
}

func NewStack() *Stack {
	return &Stack{}
}

// Use appends middleware in the order given.
func (s *Stack) Use(mw ...types.Middleware) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.frozen {
		return ErrStackFrozen
	}
	for _, m := range mw {
		if m != nil {
			s.mws = append(s.mws, m)
		}
	}
	return nil
}

// Freeze stops further registrations. Reads after Freeze need no locking.
func (s *Stack) Freeze() {
	s.mtx.Lock()
	s.frozen = true
	s.mtx.Unlock()
}

func (s *Stack) Len() int {
	return len(s.mws)
}

// Chain is the executable sequence for one dispatch.
type Chain struct {
	steps   []types.Middleware
	handler types.Handler
}

// Build returns global (registration order), then local (declaration
// order), then the handler.
func Build(global *Stack, local []types.Middleware, h types.Handler) Chain {
	var n int
	if global != nil {
		n = len(global.mws)
	}
	steps := make([]types.Middleware, 0, n+len(local))
	if global != nil {
		steps = append(steps, global.mws...)
	}
	steps = append(steps, local...)
	return Chain{steps: steps, handler: h}
}

// Len is the number of steps including the handler.
func (c Chain) Len() int {
	return len(c.steps) + 1
}

// Run executes the chain sequentially. The first step that responds stops
// the chain, even with a nil response, which yields IncompleteChainError.
// Deferred request hooks are applied to the produced response;
// when there is none (error or panic) they run with a nil response.
func (c Chain) Run(ctx context.Context, req *types.Request) (res *types.Response, err error) {
	defer func() {
		if res == nil {
			req.Finish(nil)
		}
	}()
	responded := false
	for _, step := range c.steps {
		if o := step(ctx, req); o.Responded() {
			res, responded = o.Response(), true
			break
		}
	}
	if !responded && c.handler != nil {
		res = c.handler(ctx, req)
	}
	if res == nil {
		return nil, &IncompleteChainError{Method: req.Method, Path: req.Path, Steps: c.Len()}
	}
	if res.Headers == nil {
		res.Headers = make(types.Header)
	}
	req.Finish(res)
	return res, nil
}
