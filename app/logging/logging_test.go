package logging

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
		wantError bool
	}{
		{"debug", true, true, true, true},
		{"info", false, true, true, true},
		{"warn", false, false, true, true},
		{"error", false, false, false, true},
		{"none", false, false, false, false},
		{"bogus", false, true, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf := &bytes.Buffer{}
			l := NewWithWriter(buf, tt.level)
			l.Debug("d-event", nil)
			l.Info("i-event", nil)
			l.Warn("w-event", nil)
			l.Error("e-event", nil)
			out := buf.String()
			require.Equal(t, tt.wantDebug, strings.Contains(out, "d-event"))
			require.Equal(t, tt.wantInfo, strings.Contains(out, "i-event"))
			require.Equal(t, tt.wantWarn, strings.Contains(out, "w-event"))
			require.Equal(t, tt.wantError, strings.Contains(out, "e-event"))
		})
	}
}

func TestPairsAreWritten(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewWithWriter(buf, "info")
	l.Info("request served", Pairs{"path": "/users", "status": 200})
	out := buf.String()
	require.Contains(t, out, `event="request served"`)
	require.Contains(t, out, "path=/users")
	require.Contains(t, out, "status=200")
	require.Contains(t, out, "level=info")
	require.Contains(t, out, "app=vala")
}

func TestWarnOnce(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewWithWriter(buf, "warn")
	require.True(t, l.WarnOnce("k", "first", nil))
	require.False(t, l.WarnOnce("k", "second", nil))
	require.Contains(t, buf.String(), "first")
	require.NotContains(t, buf.String(), "second")
}

func TestNewWithFile(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "vala.log")
	l := New(&Options{LogFile: fn, LogLevel: "debug"})
	require.Equal(t, "debug", l.Level())
	l.Debug("to file", nil)
	l.Close()
	require.FileExists(t, fn)
}

func TestNoOpLogger(t *testing.T) {
	l := NoOpLogger()
	l.Error("ignored", Pairs{"a": 1})
	require.Equal(t, "none", l.Level())
	l.Close()
}
