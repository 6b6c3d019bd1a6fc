package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishOrder(t *testing.T) {
	b := NewBus(nil)
	var got []string
	b.Subscribe(Listening, func(_ context.Context, p any) { got = append(got, "a:"+p.(string)) })
	b.Subscribe(Listening, func(_ context.Context, p any) { got = append(got, "b:"+p.(string)) })
	b.Subscribe(Stopped, func(_ context.Context, p any) { got = append(got, "stopped") })
	b.Subscribe(Listening, nil)

	n := b.Publish(context.Background(), Listening, "8080")
	require.Equal(t, 2, n)
	require.Equal(t, []string{"a:8080", "b:8080"}, got)

	require.Equal(t, 0, b.Publish(context.Background(), "unknown", nil))
}

func TestPublishSurvivesPanic(t *testing.T) {
	b := NewBus(nil)
	called := false
	b.Subscribe(Stopping, func(context.Context, any) { panic("boom") })
	b.Subscribe(Stopping, func(context.Context, any) { called = true })

	require.NotPanics(t, func() { b.Publish(context.Background(), Stopping, nil) })
	require.True(t, called)
}

func TestNilBus(t *testing.T) {
	var b *Bus
	require.Equal(t, 0, b.Publish(context.Background(), Listening, nil))
}

func TestContext(t *testing.T) {
	require.Nil(t, FromContext(context.Background()))
	b := NewBus(nil)
	ctx := NewContext(context.Background(), b)
	require.Same(t, b, FromContext(ctx))
}
