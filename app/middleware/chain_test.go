package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xavierroma/vala/app/types"
)

type recorder struct {
	calls []string
}

func (r *recorder) step(name string, respond bool) types.Middleware {
	return func(ctx context.Context, req *types.Request) types.Outcome {
		r.calls = append(r.calls, name)
		if respond {
			return types.Respond(types.Text(types.StatusForbidden, name))
		}
		return types.Continue()
	}
}

func (r *recorder) handler() types.Handler {
	return func(ctx context.Context, req *types.Request) *types.Response {
		r.calls = append(r.calls, "handler")
		return types.Text(types.StatusOK, "handled")
	}
}

func TestChainOrder(t *testing.T) {
	tests := []struct {
		name       string
		respondAt  string
		wantCalls  []string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "All continue",
			wantCalls:  []string{"A", "B", "C", "handler"},
			wantStatus: types.StatusOK,
			wantBody:   "handled",
		},
		{
			name:       "Global B responds",
			respondAt:  "B",
			wantCalls:  []string{"A", "B"},
			wantStatus: types.StatusForbidden,
			wantBody:   "B",
		},
		{
			name:       "Local C responds",
			respondAt:  "C",
			wantCalls:  []string{"A", "B", "C"},
			wantStatus: types.StatusForbidden,
			wantBody:   "C",
		},
		{
			name:       "First global responds",
			respondAt:  "A",
			wantCalls:  []string{"A"},
			wantStatus: types.StatusForbidden,
			wantBody:   "A",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			global := NewStack()
			require.NoError(t, global.Use(rec.step("A", tt.respondAt == "A"), rec.step("B", tt.respondAt == "B")))
			local := []types.Middleware{rec.step("C", tt.respondAt == "C")}

			chain := Build(global, local, rec.handler())
			require.Equal(t, 4, chain.Len())

			res, err := chain.Run(context.Background(), types.NewRequest(types.Get, "/x"))
			require.NoError(t, err)
			require.Equal(t, tt.wantCalls, rec.calls)
			require.Equal(t, tt.wantStatus, res.Status)
			require.Equal(t, tt.wantBody, string(res.Body))
		})
	}
}

func TestChainMutatesRequest(t *testing.T) {
	global := NewStack()
	require.NoError(t, global.Use(func(ctx context.Context, req *types.Request) types.Outcome {
		req.Set("user", "ana")
		return types.Continue()
	}))
	h := func(ctx context.Context, req *types.Request) *types.Response {
		v, ok := req.Get("user")
		require.True(t, ok)
		return types.Text(types.StatusOK, v.(string))
	}
	res, err := Build(global, nil, h).Run(context.Background(), types.NewRequest(types.Get, "/"))
	require.NoError(t, err)
	require.Equal(t, "ana", string(res.Body))
}

func TestIncompleteChain(t *testing.T) {
	released := false
	global := NewStack()
	require.NoError(t, global.Use(func(ctx context.Context, req *types.Request) types.Outcome {
		req.Defer(func(res *types.Response) {
			require.Nil(t, res)
			released = true
		})
		return types.Continue()
	}))
	h := func(ctx context.Context, req *types.Request) *types.Response { return nil }

	res, err := Build(global, nil, h).Run(context.Background(), types.NewRequest(types.Post, "/broken"))
	require.Nil(t, res)
	var ice *IncompleteChainError
	require.True(t, errors.As(err, &ice))
	require.Equal(t, types.Post, ice.Method)
	require.Equal(t, "/broken", ice.Path)
	require.Equal(t, 2, ice.Steps)
	require.True(t, released)

	// a chain without a handler is also incomplete
	_, err = Build(nil, nil, nil).Run(context.Background(), types.NewRequest(types.Get, "/"))
	require.True(t, errors.As(err, &ice))
}

func TestRespondNilStopsChain(t *testing.T) {
	r := &recorder{}
	nilStep := func(ctx context.Context, req *types.Request) types.Outcome {
		r.calls = append(r.calls, "nil")
		return types.Respond(nil)
	}
	require.True(t, types.Respond(nil).Responded())
	require.False(t, types.Continue().Responded())

	res, err := Build(nil, []types.Middleware{nilStep, r.step("after", false)}, r.handler()).
		Run(context.Background(), types.NewRequest(types.Get, "/nil"))
	require.Nil(t, res)
	var ice *IncompleteChainError
	require.ErrorAs(t, err, &ice)
	require.Equal(t, []string{"nil"}, r.calls)
}

func TestDeferredHooksRunInReverse(t *testing.T) {
	var order []string
	mk := func(name string) types.Middleware {
		return func(ctx context.Context, req *types.Request) types.Outcome {
			req.Defer(func(res *types.Response) { order = append(order, name) })
			return types.Continue()
		}
	}
	global := NewStack()
	require.NoError(t, global.Use(mk("first"), mk("second")))
	_, err := Build(global, nil, (&recorder{}).handler()).Run(context.Background(), types.NewRequest(types.Get, "/"))
	require.NoError(t, err)
	require.Equal(t, []string{"second", "first"}, order)
}

func TestStackFrozen(t *testing.T) {
	s := NewStack()
	require.NoError(t, s.Use((&recorder{}).step("A", false), nil))
	require.Equal(t, 1, s.Len())
	s.Freeze()
	require.ErrorIs(t, s.Use((&recorder{}).step("B", false)), ErrStackFrozen)
	require.Equal(t, 1, s.Len())
}

func TestChainRecoversHooksOnPanic(t *testing.T) {
	released := false
	global := NewStack()
	require.NoError(t, global.Use(func(ctx context.Context, req *types.Request) types.Outcome {
		req.Defer(func(*types.Response) { released = true })
		return types.Continue()
	}))
	h := func(ctx context.Context, req *types.Request) *types.Response { panic("boom") }
	require.Panics(t, func() {
		Build(global, nil, h).Run(context.Background(), types.NewRequest(types.Get, "/"))
	})
	require.True(t, released)
}
