// Package router holds the route table, the controller prefix registry and
// the dispatcher that resolves requests against them.
package router

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xavierroma/vala/app/types"
)

var (
	// ErrFrozen is returned when the table is modified after Freeze
	ErrFrozen = errors.New("route table is frozen")
	// ErrNilHandler is returned when a route is registered without a handler
	ErrNilHandler = errors.New("route handler is nil")
)

// DuplicateRouteError reports two bindings for the same method and
// effective path.
type DuplicateRouteError struct {
	Method types.Method
	Path   string
}

func (e *DuplicateRouteError) Error() string {
	return fmt.Sprintf("duplicate route: %s %s", e.Method, e.Path)
}

// Route is the registration contract: one declared endpoint.
type Route struct {
	Method     types.Method
	Path       string
	Controller string
	Handler    types.Handler
	Middleware []types.Middleware
}

// Binding is a registered route with its controller prefix resolved.
type Binding struct {
	Method           types.Method
	Path             string
	Controller       string
	ControllerPrefix string
	Handler          types.Handler
	Middleware       []types.Middleware

	effectivePath string
}

// EffectivePath is the normalized prefix + path used for lookup. A path
// without a leading separator is still joined to the prefix with one.
func (b *Binding) EffectivePath() string {
	return b.effectivePath
}

func (b *Binding) String() string {
	return string(b.Method) + " " + b.effectivePath
}

// Normalize collapses repeated separators, ensures a leading separator and
// strips a trailing one except for the root.
func Normalize(p string) string {
	if p == "" {
		return "/"
	}
	var sb strings.Builder
	sb.Grow(len(p) + 1)
	if p[0] != '/' {
		sb.WriteByte('/')
	}
	prevSlash := false
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		sb.WriteByte(c)
	}
	out := sb.String()
	if len(out) > 1 && out[len(out)-1] == '/' {
		out = out[:len(out)-1]
	}
	return out
}

func normalizePrefix(prefix string) string {
	if prefix == "" {
		return ""
	}
	p := Normalize(prefix)
	if p == "/" {
		return ""
	}
	return p
}
