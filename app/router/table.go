package router

import (
	"sort"
	"sync/atomic"

	"github.com/xavierroma/vala/app/logging"
	"github.com/xavierroma/vala/app/types"
)

type routeKey struct {
	method types.Method
	path   string
}

// Table maps (method, effective path) to a single Binding and keeps the
// path prefix of every controller. It is mutated only during boot; once
// frozen it is safe for concurrent lookups.
type Table struct {
	strict   bool
	logger   *logging.Logger
	routes   map[routeKey]*Binding
	prefixes map[string]string
	frozen   atomic.Bool
}

// Option configures a Table
type Option func(*Table)

// WithStrict sets whether a duplicate route is an error (true) or replaces
// the earlier binding with a logged warning (false).
func WithStrict(strict bool) Option {
	return func(t *Table) { t.strict = strict }
}

// WithLogger sets the logger used to report replaced routes
func WithLogger(l *logging.Logger) Option {
	return func(t *Table) { t.logger = l }
}

// New returns an empty, strict Table
func New(opts ...Option) *Table {
	t := &Table{
		strict:   true,
		logger:   logging.NoOpLogger(),
		routes:   make(map[routeKey]*Binding),
		prefixes: make(map[string]string),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// SetPrefix stores the path prefix for a controller. Bindings already
// attached for that controller keep the prefix they were registered with.
func (t *Table) SetPrefix(controller, prefix string) error {
	if t.frozen.Load() {
		return ErrFrozen
	}
	t.prefixes[controller] = normalizePrefix(prefix)
	return nil
}

// Prefix returns the prefix for a controller, "" when unset.
func (t *Table) Prefix(controller string) string {
	return t.prefixes[controller]
}

// Register attaches a route to the table.
func (t *Table) Register(r Route) (*Binding, error) {
	if t.frozen.Load() {
		return nil, ErrFrozen
	}
	if !r.Method.Valid() {
		return nil, types.ErrInvalidMethod
	}
	if r.Handler == nil {
		return nil, ErrNilHandler
	}
	b := &Binding{
		Method:     r.Method,
		Path:       r.Path,
		Controller: r.Controller,
		Handler:    r.Handler,
	}
	b.ControllerPrefix = t.prefixes[r.Controller]
	if len(r.Middleware) > 0 {
		b.Middleware = make([]types.Middleware, len(r.Middleware))
		copy(b.Middleware, r.Middleware)
	}
	// the separator collapses when Path already starts with one
	b.effectivePath = Normalize(b.ControllerPrefix + "/" + b.Path)

	k := routeKey{method: b.Method, path: b.effectivePath}
	if prev, ok := t.routes[k]; ok {
		if t.strict {
			return nil, &DuplicateRouteError{Method: b.Method, Path: b.effectivePath}
		}
		t.logger.Warn("route replaced", logging.Pairs{
			"method":             b.Method,
			"path":               b.effectivePath,
			"previousController": prev.Controller,
			"controller":         b.Controller,
		})
	}
	t.routes[k] = b
	return b, nil
}

// Lookup returns the binding for an exact method and normalized path.
func (t *Table) Lookup(method types.Method, path string) (*Binding, bool) {
	b, ok := t.routes[routeKey{method: method, path: Normalize(path)}]
	return b, ok
}

// Freeze makes the table read-only.
func (t *Table) Freeze() {
	t.frozen.Store(true)
}

func (t *Table) Frozen() bool {
	return t.frozen.Load()
}

// Len returns the number of bindings
func (t *Table) Len() int {
	return len(t.routes)
}

// Bindings returns all bindings ordered by path, then method.
func (t *Table) Bindings() []*Binding {
	out := make([]*Binding, 0, len(t.routes))
	for _, b := range t.routes {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].effectivePath != out[j].effectivePath {
			return out[i].effectivePath < out[j].effectivePath
		}
		return out[i].Method < out[j].Method
	})
	return out
}
