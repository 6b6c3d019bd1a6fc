package types

import (
	"context"
	"errors"
	"io"
	"strings"
)

type Method string

const (
	Get     Method = "GET"
	Post    Method = "POST"
	Put     Method = "PUT"
	Patch   Method = "PATCH"
	Delete  Method = "DELETE"
	Options Method = "OPTIONS"
)

// ErrInvalidMethod is returned when a method outside the supported set is
// used to register a route.
var ErrInvalidMethod = errors.New("invalid method")

var methods = map[Method]struct{}{
	Get: {}, Post: {}, Put: {}, Patch: {}, Delete: {}, Options: {},
}

// Methods returns every supported method in a stable order.
func Methods() []Method {
	return []Method{Get, Post, Put, Delete, Patch, Options}
}

// ParseMethod returns the Method for s, case-insensitively.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", ErrInvalidMethod
	}
	return m, nil
}

func (m Method) Valid() bool {
	_, ok := methods[m]
	return ok
}

func (m Method) String() string { return string(m) }

// Handler produces the response for a matched route. Returning nil is a
// programming error reported as an incomplete chain.
type Handler func(ctx context.Context, req *Request) *Response

// Middleware runs before the handler and either lets the request continue
// or answers it.
type Middleware func(ctx context.Context, req *Request) Outcome

// Outcome is the result of one middleware step.
type Outcome struct {
	response  *Response
	responded bool
}

// Continue passes the request on to the next step.
func Continue() Outcome { return Outcome{} }

// Respond stops the chain and answers with res. Respond(nil) still stops
// the chain; the chain then ends without a response and is reported as
// incomplete.
func Respond(res *Response) Outcome { return Outcome{response: res, responded: true} }

// Responded reports whether the outcome short-circuits the chain.
func (o Outcome) Responded() bool { return o.responded }

// Response returns the short-circuit response, or nil for Continue.
func (o Outcome) Response() *Response { return o.response }

type Request struct {
	Method     Method
	Version    string
	Target     string
	Path       string
	Query      map[string]string
	Headers    Header
	Body       io.Reader
	RemoteAddr string

	// Binding is the matched route, nil when dispatch missed.
	Binding any

	values map[string]any
	hooks  []func(*Response)
}

// NewRequest returns a Request with its maps allocated.
func NewRequest(method Method, path string) *Request {
	return &Request{
		Method:  method,
		Target:  path,
		Path:    path,
		Version: "HTTP/1.1",
		Query:   make(map[string]string),
		Headers: make(Header),
		Body:    strings.NewReader(""),
	}
}

// Set stores a value for later steps of the chain.
func (r *Request) Set(key string, v any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	r.values[key] = v
}

func (r *Request) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Defer registers fn to run against the response once the chain has
// produced one. Hooks run in reverse registration order.
func (r *Request) Defer(fn func(*Response)) {
	r.hooks = append(r.hooks, fn)
}

// Finish runs the deferred hooks against res, which is nil when the chain
// failed to produce a response.
func (r *Request) Finish(res *Response) {
	for i := len(r.hooks) - 1; i >= 0; i-- {
		r.hooks[i](res)
	}
	r.hooks = nil
}
