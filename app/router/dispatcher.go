package router

import "github.com/xavierroma/vala/app/types"

// Dispatcher resolves requests against a Table. A miss is an ordinary
// outcome, reported as (nil, false).
type Dispatcher struct {
	table *Table
}

func NewDispatcher(t *Table) *Dispatcher {
	return &Dispatcher{table: t}
}

func (d *Dispatcher) Resolve(method types.Method, path string) (*Binding, bool) {
	if !method.Valid() {
		return nil, false
	}
	return d.table.Lookup(method, path)
}
