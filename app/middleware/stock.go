package middleware

import (
	"context"
	"strconv"
	"strings"

	"github.com/xavierroma/vala/app/types"
)

// SizeLimit rejects requests whose declared body is larger than size.
func SizeLimit(size int64) types.Middleware {
	return func(ctx context.Context, req *types.Request) types.Outcome {
		cl := req.Headers.Get("Content-Length")
		if cl == "" {
			return types.Continue()
		}
		n, err := strconv.ParseInt(cl, 10, 64)
		if err != nil || n > size {
			return types.Respond(types.Text(types.StatusRequestTooLarge, "request too large"))
		}
		return types.Continue()
	}
}

// Throttle limits the number of requests in flight across all connections.
// A limit <= 0 disables throttling.
func Throttle(limit int64) types.Middleware {
	if limit <= 0 {
		return func(context.Context, *types.Request) types.Outcome { return types.Continue() }
	}
	// one semaphore shared by every request through this middleware
	ch := make(chan struct{}, limit)
	return func(ctx context.Context, req *types.Request) types.Outcome {
		select {
		case ch <- struct{}{}:
			req.Defer(func(*types.Response) { <-ch })
			return types.Continue()
		default:
			return types.Respond(types.Text(types.StatusTooManyRequests, "too many requests"))
		}
	}
}

// Headers adds "Key: Value" headers to every response. Values containing
// CR or LF are dropped.
func Headers(headers ...string) types.Middleware {
	kv := make([][2]string, 0, len(headers))
	for _, h := range headers {
		elems := strings.SplitN(h, ":", 2)
		if len(elems) != 2 {
			continue
		}
		key := strings.TrimSpace(elems[0])
		value := strings.TrimSpace(elems[1])
		if key == "" || strings.ContainsAny(key+value, "\r\n") {
			continue
		}
		kv = append(kv, [2]string{key, value})
	}
	return func(ctx context.Context, req *types.Request) types.Outcome {
		req.Defer(func(res *types.Response) {
			if res == nil {
				return
			}
			for _, p := range kv {
				if !res.Headers.Has(p[0]) {
					res.Headers.Set(p[0], p[1])
				}
			}
		})
		return types.Continue()
	}
}

// RequireHeader answers 401 unless the request carries the named header.
func RequireHeader(name string) types.Middleware {
	return func(ctx context.Context, req *types.Request) types.Outcome {
		if req.Headers.Get(name) == "" {
			return types.Respond(types.Text(types.StatusUnauthorized, "missing "+name))
		}
		return types.Continue()
	}
}
