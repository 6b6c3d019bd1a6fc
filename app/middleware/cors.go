package middleware

import (
	"context"
	"strconv"
	"strings"

	"github.com/xavierroma/vala/app/types"
)

// CORSOptions configures the CORS middleware
type CORSOptions struct {
	// AllowedOrigins lists the permitted origins; "*" or empty allows any
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
	AllowedMethods []string `yaml:"allowed_methods,omitempty"`
	AllowedHeaders []string `yaml:"allowed_headers,omitempty"`
	MaxAgeSecs     int      `yaml:"max_age_secs,omitempty"`
}

// CORS answers preflight OPTIONS requests with 204 and adds
// Access-Control-Allow-Origin to every other response from an allowed
// origin.
func CORS(o CORSOptions) types.Middleware {
	methods := strings.Join(o.AllowedMethods, ", ")
	if methods == "" {
		ms := types.Methods()
		names := make([]string, len(ms))
		for i, m := range ms {
			names[i] = string(m)
		}
		methods = strings.Join(names, ", ")
	}
	headers := strings.Join(o.AllowedHeaders, ", ")

	allowAny := len(o.AllowedOrigins) == 0
	allowed := make(map[string]bool, len(o.AllowedOrigins))
	for _, origin := range o.AllowedOrigins {
		if origin == "*" {
			allowAny = true
		}
		allowed[origin] = true
	}

	return func(ctx context.Context, req *types.Request) types.Outcome {
		origin := req.Headers.Get("Origin")
		if origin == "" || (!allowAny && !allowed[origin]) {
			return types.Continue()
		}
		allowOrigin := origin
		if allowAny {
			allowOrigin = "*"
		}

		if req.Method == types.Options && req.Headers.Get("Access-Control-Request-Method") != "" {
			res := types.NewResponse(types.StatusNoContent)
			res.Headers.Set("Access-Control-Allow-Origin", allowOrigin)
			res.Headers.Set("Access-Control-Allow-Methods", methods)
			if headers != "" {
				res.Headers.Set("Access-Control-Allow-Headers", headers)
			} else if rh := req.Headers.Get("Access-Control-Request-Headers"); rh != "" {
				res.Headers.Set("Access-Control-Allow-Headers", rh)
			}
			if o.MaxAgeSecs > 0 {
				res.Headers.Set("Access-Control-Max-Age", strconv.Itoa(o.MaxAgeSecs))
			}
			return types.Respond(res)
		}

		req.Defer(func(res *types.Response) {
			if res == nil {
				return
			}
			res.Headers.Set("Access-Control-Allow-Origin", allowOrigin)
			if !allowAny {
				res.Headers.Set("Vary", "Origin")
			}
		})
		return types.Continue()
	}
}
