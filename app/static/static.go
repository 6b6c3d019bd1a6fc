// Package static serves files from a directory tree when no route matches.
//
// Files are matched by base name only: a request for /logo.png is served by
// the first file named logo.png found by a depth-first, lexically ordered
// walk of the root, whatever subdirectory it lives in. Two files sharing a
// name in different directories cannot both be reached.
package static

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned when no file matches the requested name.
var ErrNotFound = errors.New("static file not found")

// ResolutionError reports a filesystem failure while walking the root.
type ResolutionError struct {
	Root string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("static resolution failed under %s: %v", e.Root, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// File is a resolved static file. The caller must close Reader.
type File struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
	Reader  io.ReadCloser
}

// ContentType guesses the media type from the file extension.
func (f *File) ContentType() string {
	if ct := mime.TypeByExtension(filepath.Ext(f.Name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// Resolver finds files below a root directory.
type Resolver struct {
	root     string
	cacheTTL time.Duration

	mtx      sync.Mutex
	index    []string
	indexed  time.Time
	hasIndex bool
}

// Option configures a Resolver
type Option func(*Resolver)

// WithCacheTTL keeps the walked file index for d before walking again.
// Zero walks on every lookup.
func WithCacheTTL(d time.Duration) Option {
	return func(r *Resolver) { r.cacheTTL = d }
}

// New returns a Resolver for root. An empty root never finds anything.
func New(root string, opts ...Option) *Resolver {
	r := &Resolver{root: root}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Resolver) Root() string {
	return r.root
}

// Serve resolves requestedPath to an open file.
func (r *Resolver) Serve(ctx context.Context, requestedPath string) (*File, error) {
	if r == nil || r.root == "" {
		return nil, ErrNotFound
	}
	name := path.Base(strings.TrimPrefix(requestedPath, "/"))
	if name == "" || name == "." || name == "/" || name == ".." {
		return nil, ErrNotFound
	}

	files, err := r.files(ctx)
	if err != nil {
		return nil, err
	}
	for _, fp := range files {
		if filepath.Base(fp) != name {
			continue
		}
		return open(fp)
	}
	return nil, ErrNotFound
}

func open(fp string) (*File, error) {
	f, err := os.Open(fp)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// removed between the walk and the open
			return nil, ErrNotFound
		}
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &File{
		Name:    fi.Name(),
		Path:    fp,
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
		Reader:  f,
	}, nil
}

func (r *Resolver) files(ctx context.Context) ([]string, error) {
	if r.cacheTTL <= 0 {
		return Walk(ctx, r.root)
	}
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.hasIndex && time.Since(r.indexed) < r.cacheTTL {
		return r.index, nil
	}
	files, err := Walk(ctx, r.root)
	if err != nil {
		return nil, err
	}
	r.index, r.indexed, r.hasIndex = files, time.Now(), true
	return files, nil
}

// Walk returns every regular file below root in depth-first lexical order.
// Symbolic links are not followed. Any read error aborts the walk.
func Walk(ctx context.Context, root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.Type().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, &ResolutionError{Root: root, Err: err}
	}
	return files, nil
}
