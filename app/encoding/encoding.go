// Package encoding negotiates and applies response content encodings
package encoding

import (
	"bytes"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
)

const (
	Brotli = "br"
	Gzip   = "gzip"

	// MinSize is the smallest body worth compressing
	MinSize = 256
)

// Negotiate returns the preferred supported encoding listed in an
// Accept-Encoding header, or "" when none is acceptable.
func Negotiate(acceptEncoding string) string {
	var gz bool
	for _, part := range strings.Split(acceptEncoding, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.ReplaceAll(strings.TrimSpace(params), " ", "") == "q=0" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(name)) {
		case Brotli:
			return Brotli
		case Gzip:
			gz = true
		}
	}
	if gz {
		return Gzip
	}
	return ""
}

// Compressible reports whether a body of the given media type is worth
// compressing
func Compressible(contentType string) bool {
	ct := strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(ct, "text/"),
		strings.Contains(ct, "json"),
		strings.Contains(ct, "javascript"),
		strings.Contains(ct, "xml"),
		strings.Contains(ct, "svg"):
		return true
	}
	return false
}

// Encode compresses b with the named encoding
func Encode(enc string, b []byte) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser
	switch enc {
	case Brotli:
		w = brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	case Gzip:
		w = gzip.NewWriter(&buf)
	default:
		return b, nil
	}
	if _, err := w.Write(b); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reverses Encode
func Decode(enc string, b []byte) ([]byte, error) {
	var r io.Reader
	switch enc {
	case Brotli:
		r = brotli.NewReader(bytes.NewReader(b))
	case Gzip:
		gr, err := gzip.NewReader(bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		defer gr.Close()
		r = gr
	default:
		return b, nil
	}
	return io.ReadAll(r)
}
