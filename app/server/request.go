package server

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"

	"github.com/xavierroma/vala/app/types"
)

var (
	errEmptyRequestLine   = errors.New("empty request line")
	errUnsupportedVersion = errors.New("unsupported protocol version")
	errHeaderTooLarge     = errors.New("request header too large")
	errBodyTooLarge       = errors.New("request body too large")
)

// parsedRequest is a request plus the reader its body was framed with, so
// the connection can drain what the chain left unread
type parsedRequest struct {
	*types.Request
	body    io.Reader
	chunked bool
}

// parseRequest reads one request head from reader and frames its body.
// maxBodyBytes <= 0 disables the declared-length check.
func parseRequest(reader *bufio.Reader, maxBodyBytes int64) (*parsedRequest, error) {
	requestLineBytes, err := reader.ReadBytes('\n')
	if err != nil {
		if len(requestLineBytes) == 0 && err == io.EOF {
			// peer closed between requests
			return nil, io.EOF
		}
		return nil, fmt.Errorf("error reading request line: %w", err)
	}
	requestLineBytes = bytes.TrimRight(requestLineBytes, "\r\n")
	if len(requestLineBytes) == 0 {
		return nil, errEmptyRequestLine
	}

	requestLineParts := bytes.SplitN(requestLineBytes, []byte(" "), 3)
	if len(requestLineParts) != 3 {
		return nil, fmt.Errorf("malformed request line: %q", string(requestLineBytes))
	}
	version := string(requestLineParts[2])
	if !strings.HasPrefix(version, "HTTP/1.") {
		return nil, fmt.Errorf("%w: %q", errUnsupportedVersion, version)
	}
	target := string(requestLineParts[1])
	// ParseRequestURI keeps a leading "//" in the path instead of reading
	// it as an authority
	u, err := url.ParseRequestURI(target)
	if err != nil {
		return nil, fmt.Errorf("malformed request target: %w", err)
	}

	req := &parsedRequest{Request: types.NewRequest(types.Method(requestLineParts[0]), u.Path)}
	req.Version = version
	req.Target = target
	if req.Path == "" {
		req.Path = "/"
	}
	for k, vs := range u.Query() {
		if len(vs) > 0 {
			req.Query[k] = vs[len(vs)-1]
		}
	}

	for {
		headerLineBytes, err := reader.ReadBytes('\n')
		if err != nil {
			return nil, fmt.Errorf("error reading header line: %w", err)
		}

		headerLineBytes = bytes.TrimRight(headerLineBytes, "\r\n")

		if len(headerLineBytes) == 0 {
			break
		}

		headerParts := bytes.SplitN(headerLineBytes, []byte(":"), 2)
		if len(headerParts) != 2 {
			// skip malformed header lines
			continue
		}

		key := strings.TrimSpace(string(headerParts[0]))
		value := strings.TrimSpace(string(headerParts[1]))
		if key == "" {
			continue
		}
		req.Headers.Set(key, value)
	}

	if strings.EqualFold(req.Headers.Get("Transfer-Encoding"), "chunked") {
		req.chunked = true
		req.body = httputil.NewChunkedReader(reader)
		req.Body = req.body
		return req, nil
	}

	if contentLengthStr := req.Headers.Get("Content-Length"); contentLengthStr != "" {
		contentLength, err := strconv.ParseInt(contentLengthStr, 10, 64)
		if err != nil || contentLength < 0 {
			return nil, fmt.Errorf("invalid Content-Length: %q", contentLengthStr)
		}
		if maxBodyBytes > 0 && contentLength > maxBodyBytes {
			return req, errBodyTooLarge
		}
		req.body = io.LimitReader(reader, contentLength)
		req.Body = req.body
	}
	return req, nil
}

// drain discards whatever the chain left unread of the request body so the
// next request starts at a message boundary
func (r *parsedRequest) drain(reader *bufio.Reader) error {
	if r.body == nil {
		return nil
	}
	if _, err := io.Copy(io.Discard, r.body); err != nil {
		return err
	}
	if !r.chunked {
		return nil
	}
	// trailer section, ended by an empty line
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return err
		}
		if len(bytes.TrimRight(line, "\r\n")) == 0 {
			return nil
		}
	}
}

// keepAlive reports whether the client allows another request on the
// connection after this one
func keepAlive(req *types.Request) bool {
	conn := strings.ToLower(req.Headers.Get("Connection"))
	if req.Version == "HTTP/1.0" {
		return strings.Contains(conn, "keep-alive")
	}
	return !strings.Contains(conn, "close")
}
