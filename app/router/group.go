package router

import "github.com/xavierroma/vala/app/types"

// Group registers the routes of one controller under its prefix.
type Group struct {
	table      *Table
	controller string
	err        error
}

// Controller sets the prefix for name and returns a Group that attaches
// routes to it. A prefix of "/" is the root.
func (t *Table) Controller(name, prefix string) *Group {
	g := &Group{table: t, controller: name}
	g.err = t.SetPrefix(name, prefix)
	return g
}

// Handle registers a route for the group's controller. Only the first
// error is kept; see Err.
func (g *Group) Handle(m types.Method, path string, h types.Handler, mw ...types.Middleware) *Group {
	if g.err != nil {
		return g
	}
	_, g.err = g.table.Register(Route{
		Method:     m,
		Path:       path,
		Controller: g.controller,
		Handler:    h,
		Middleware: mw,
	})
	return g
}

func (g *Group) Get(path string, h types.Handler, mw ...types.Middleware) *Group {
	return g.Handle(types.Get, path, h, mw...)
}

func (g *Group) Post(path string, h types.Handler, mw ...types.Middleware) *Group {
	return g.Handle(types.Post, path, h, mw...)
}

func (g *Group) Put(path string, h types.Handler, mw ...types.Middleware) *Group {
	return g.Handle(types.Put, path, h, mw...)
}

func (g *Group) Delete(path string, h types.Handler, mw ...types.Middleware) *Group {
	return g.Handle(types.Delete, path, h, mw...)
}

func (g *Group) Patch(path string, h types.Handler, mw ...types.Middleware) *Group {
	return g.Handle(types.Patch, path, h, mw...)
}

func (g *Group) Options(path string, h types.Handler, mw ...types.Middleware) *Group {
	return g.Handle(types.Options, path, h, mw...)
}

// Err returns the first registration error of the group.
func (g *Group) Err() error {
	return g.err
}
