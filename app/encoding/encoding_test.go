package encoding

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNegotiate(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"identity", ""},
		{"gzip", Gzip},
		{"gzip, deflate", Gzip},
		{"deflate, gzip, br", Brotli},
		{"br;q=0, gzip", Gzip},
		{"gzip;q=0", ""},
		{"GZIP", Gzip},
		{"br; q=0.5", Brotli},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			require.Equal(t, tt.want, Negotiate(tt.header))
		})
	}
}

func TestCompressible(t *testing.T) {
	require.True(t, Compressible("text/plain; charset=utf-8"))
	require.True(t, Compressible("application/json"))
	require.True(t, Compressible("image/svg+xml"))
	require.False(t, Compressible("image/png"))
	require.False(t, Compressible(""))
}

func TestRoundTrip(t *testing.T) {
	body := []byte(strings.Repeat("hello vala ", 100))
	for _, enc := range []string{Gzip, Brotli, ""} {
		t.Run(enc, func(t *testing.T) {
			out, err := Encode(enc, body)
			require.NoError(t, err)
			if enc != "" {
				require.Less(t, len(out), len(body))
			}
			back, err := Decode(enc, out)
			require.NoError(t, err)
			require.Equal(t, body, back)
		})
	}
}
