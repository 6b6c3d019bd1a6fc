package static

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	fp := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(fp), 0o755))
	require.NoError(t, os.WriteFile(fp, []byte(content), 0o644))
}

func readAll(t *testing.T, f *File) string {
	t.Helper()
	defer f.Reader.Close()
	b, err := io.ReadAll(f.Reader)
	require.NoError(t, err)
	return string(b)
}

func TestServe(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "assets/img/logo.png", "png-bytes")
	writeFile(t, root, "index.html", "<html></html>")
	writeFile(t, root, "a/dup.txt", "from a")
	writeFile(t, root, "b/dup.txt", "from b")

	tests := []struct {
		name      string
		requested string
		wantBody  string
		wantErr   error
	}{
		{"nested file by base name", "/logo.png", "png-bytes", nil},
		{"top level file", "/index.html", "<html></html>", nil},
		{"no leading separator", "index.html", "<html></html>", nil},
		{"directory in request is ignored", "/other/dir/logo.png", "png-bytes", nil},
		{"first match in walk order wins", "/dup.txt", "from a", nil},
		{"missing", "/missing.png", "", ErrNotFound},
		{"root", "/", "", ErrNotFound},
		{"parent", "/..", "", ErrNotFound},
		{"directory name", "/assets", "", ErrNotFound},
	}
	r := New(root)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := r.Serve(context.Background(), tt.requested)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.Nil(t, f)
				return
			}
			require.NoError(t, err)
			require.Equal(t, int64(len(tt.wantBody)), f.Size)
			require.Equal(t, tt.wantBody, readAll(t, f))
		})
	}
}

func TestServeEmptyRoot(t *testing.T) {
	f, err := New("").Serve(context.Background(), "/logo.png")
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, f)

	var r *Resolver
	_, err = r.Serve(context.Background(), "/logo.png")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestServeMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nope")
	_, err := New(root).Serve(context.Background(), "/logo.png")
	var re *ResolutionError
	require.True(t, errors.As(err, &re))
	require.Equal(t, root, re.Root)
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestServeSkipsSymlinks(t *testing.T) {
	outside := t.TempDir()
	writeFile(t, outside, "secret.txt", "secret")
	root := t.TempDir()
	if err := os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(root, "secret.txt")); err != nil {
		t.Skip("symlinks unsupported:", err)
	}
	_, err := New(root).Serve(context.Background(), "/secret.txt")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestServeCancelledContext(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "x.txt", "x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(root).Serve(ctx, "/x.txt")
	require.ErrorIs(t, err, context.Canceled)
}

func TestIndexCache(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "one.txt", "1")

	cached := New(root, WithCacheTTL(time.Hour))
	f, err := cached.Serve(context.Background(), "/one.txt")
	require.NoError(t, err)
	f.Reader.Close()

	writeFile(t, root, "two.txt", "2")
	_, err = cached.Serve(context.Background(), "/two.txt")
	require.ErrorIs(t, err, ErrNotFound, "index should still be cached")

	f, err = New(root).Serve(context.Background(), "/two.txt")
	require.NoError(t, err)
	require.Equal(t, "2", readAll(t, f))

	// removed file that is still indexed is a miss, not an error
	require.NoError(t, os.Remove(filepath.Join(root, "one.txt")))
	_, err = cached.Serve(context.Background(), "/one.txt")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestContentType(t *testing.T) {
	require.Equal(t, "text/html; charset=utf-8", (&File{Name: "a.html"}).ContentType())
	require.Equal(t, "application/octet-stream", (&File{Name: "a.unknownext"}).ContentType())
}
