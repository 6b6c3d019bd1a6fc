package server

import (
	"bufio"
	"fmt"
	"io"
	"net/http/httputil"
	"sort"
	"strconv"
	"time"

	"github.com/xavierroma/vala/app/encoding"
	"github.com/xavierroma/vala/app/types"
)

const (
	serverName     = "vala"
	httpTimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

	notFoundReason = "404 not found"
)

// notFound is the answer when neither a route nor a static file matched.
// The body names the percent-decoded request path, so /a%20b is reported
// as "Cannot GET /a b".
func notFound(req *types.Request) *types.Response {
	res := types.Text(types.StatusNotFound, "Cannot "+string(req.Method)+" "+req.Path)
	res.StatusText = notFoundReason
	return res
}

func errorResponse(status int, msg string) *types.Response {
	return types.Text(status, msg)
}

func bodyAllowed(req *types.Request, status int) bool {
	if req != nil && req.Method == "HEAD" {
		return false
	}
	return status >= 200 && status != types.StatusNoContent && status != 304
}

func closeBody(res *types.Response) {
	if res == nil || res.BodyReader == nil {
		return
	}
	if c, ok := res.BodyReader.(io.Closer); ok {
		c.Close()
	}
}

// respond writes res to w. It returns whether the connection can carry
// another request, which is false when keepAlive was false or when the
// response framing requires closing.
func respond(w *bufio.Writer, req *types.Request, res *types.Response, keepAlive, compress bool) (bool, error) {
	defer closeBody(res)

	if res.Headers == nil {
		res.Headers = make(types.Header)
	}
	version := "HTTP/1.1"
	if req != nil && req.Version == "HTTP/1.0" {
		version = "HTTP/1.0"
	}
	if res.Headers.Get("Connection") == "close" {
		keepAlive = false
	}

	withBody := bodyAllowed(req, res.Status)
	body := res.Body

	if compress && withBody && req != nil && res.BodyReader == nil &&
		len(body) >= encoding.MinSize &&
		!res.Headers.Has("Content-Encoding") &&
		encoding.Compressible(res.Headers.Get("Content-Type")) {
		if enc := encoding.Negotiate(req.Headers.Get("Accept-Encoding")); enc != "" {
			if b, err := encoding.Encode(enc, body); err == nil {
				body = b
				res.Headers.Set("Content-Encoding", enc)
				if v := res.Headers.Get("Vary"); v != "" {
					res.Headers.Set("Vary", v+", Accept-Encoding")
				} else {
					res.Headers.Set("Vary", "Accept-Encoding")
				}
			}
		}
	}

	chunked := false
	res.Headers.Del("Transfer-Encoding")
	switch {
	case res.Status == types.StatusNoContent || res.Status == 304 || res.Status < 200:
		res.Headers.Del("Content-Length")
	case res.BodyReader == nil:
		res.Headers.Set("Content-Length", strconv.Itoa(len(body)))
	case res.ContentLength >= 0:
		res.Headers.Set("Content-Length", strconv.FormatInt(int64(len(body))+res.ContentLength, 10))
	case version == "HTTP/1.1":
		chunked = true
		res.Headers.Del("Content-Length")
		res.Headers.Set("Transfer-Encoding", "chunked")
	default:
		// an HTTP/1.0 body of unknown length ends when the connection does
		res.Headers.Del("Content-Length")
		keepAlive = false
	}

	if !res.Headers.Has("Date") {
		res.Headers.Set("Date", time.Now().UTC().Format(httpTimeFormat))
	}
	if !res.Headers.Has("Server") {
		res.Headers.Set("Server", serverName)
	}
	if keepAlive {
		res.Headers.Set("Connection", "keep-alive")
	} else {
		res.Headers.Set("Connection", "close")
	}

	if _, err := fmt.Fprintf(w, "%s %d %s\r\n", version, res.Status, res.Reason()); err != nil {
		return false, fmt.Errorf("error writing status line: %w", err)
	}

	keys := make([]string, 0, len(res.Headers))
	for k := range res.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := fmt.Fprintf(w, "%s: %s\r\n", k, res.Headers[k]); err != nil {
			return false, fmt.Errorf("error writing header %s: %w", k, err)
		}
	}
	if _, err := w.WriteString("\r\n"); err != nil {
		return false, fmt.Errorf("error writing CRLF after headers: %w", err)
	}

	if withBody {
		if err := writeBody(w, body, res, chunked); err != nil {
			return false, err
		}
	}
	if err := w.Flush(); err != nil {
		return false, fmt.Errorf("error flushing response: %w", err)
	}
	return keepAlive, nil
}

func writeBody(w *bufio.Writer, body []byte, res *types.Response, chunked bool) error {
	var out io.Writer = w
	var cw io.WriteCloser
	if chunked {
		cw = httputil.NewChunkedWriter(w)
		out = cw
	}
	if len(body) > 0 {
		if _, err := out.Write(body); err != nil {
			return fmt.Errorf("error writing body: %w", err)
		}
	}
	if res.BodyReader != nil {
		if res.ContentLength >= 0 {
			if _, err := io.CopyN(out, res.BodyReader, res.ContentLength); err != nil {
				return fmt.Errorf("error streaming body: %w", err)
			}
		} else if _, err := io.Copy(out, res.BodyReader); err != nil {
			return fmt.Errorf("error streaming body: %w", err)
		}
	}
	if cw != nil {
		if err := cw.Close(); err != nil {
			return fmt.Errorf("error closing chunked body: %w", err)
		}
		// empty trailer
		if _, err := w.WriteString("\r\n"); err != nil {
			return fmt.Errorf("error writing chunked trailer: %w", err)
		}
	}
	return nil
}
