package types

import (
	"encoding/json"
	"io"
	"net/textproto"
	"strconv"
)

// Header maps canonical header names to a single value.
type Header map[string]string

func (h Header) Get(key string) string {
	return h[textproto.CanonicalMIMEHeaderKey(key)]
}

func (h Header) Set(key, value string) {
	h[textproto.CanonicalMIMEHeaderKey(key)] = value
}

func (h Header) Has(key string) bool {
	_, ok := h[textproto.CanonicalMIMEHeaderKey(key)]
	return ok
}

func (h Header) Del(key string) {
	delete(h, textproto.CanonicalMIMEHeaderKey(key))
}

const (
	StatusOK                  = 200
	StatusCreated             = 201
	StatusNoContent           = 204
	StatusBadRequest          = 400
	StatusUnauthorized        = 401
	StatusForbidden           = 403
	StatusNotFound            = 404
	StatusMethodNotAllowed    = 405
	StatusRequestTooLarge     = 413
	StatusTooManyRequests     = 429
	StatusInternalServerError = 500
	StatusServiceUnavailable  = 503
)

var statusText = map[int]string{
	StatusOK:                  "OK",
	StatusCreated:             "Created",
	StatusNoContent:           "No Content",
	StatusBadRequest:          "Bad Request",
	StatusUnauthorized:        "Unauthorized",
	StatusForbidden:           "Forbidden",
	StatusNotFound:            "Not Found",
	StatusMethodNotAllowed:    "Method Not Allowed",
	StatusRequestTooLarge:     "Request Entity Too Large",
	StatusTooManyRequests:     "Too Many Requests",
	StatusInternalServerError: "Internal Server Error",
	StatusServiceUnavailable:  "Service Unavailable",
}

// StatusText returns the standard reason phrase for code, or "" if unknown.
func StatusText(code int) string {
	return statusText[code]
}

type Response struct {
	Status int
	// StatusText overrides the reason phrase written on the status line.
	StatusText string
	Headers    Header
	Body       []byte
	// BodyReader is streamed after Body when set. If it implements
	// io.Closer it is closed once written.
	BodyReader io.Reader
	// ContentLength is the length of BodyReader; -1 streams it chunked.
	ContentLength int64
}

func NewResponse(status int) *Response {
	return &Response{
		Status:        status,
		Headers:       make(Header),
		ContentLength: -1,
	}
}

// Text returns a text/plain response.
func Text(status int, body string) *Response {
	res := NewResponse(status)
	res.Headers.Set("Content-Type", "text/plain; charset=utf-8")
	res.Body = []byte(body)
	return res
}

// JSON returns an application/json response with v encoded as the body.
// Encoding failures produce a 500 text response.
func JSON(status int, v any) *Response {
	b, err := json.Marshal(v)
	if err != nil {
		return Text(StatusInternalServerError, err.Error())
	}
	res := NewResponse(status)
	res.Headers.Set("Content-Type", "application/json")
	res.Body = b
	return res
}

// Reason returns the reason phrase to write on the status line.
func (r *Response) Reason() string {
	if r.StatusText != "" {
		return r.StatusText
	}
	if t := StatusText(r.Status); t != "" {
		return t
	}
	return strconv.Itoa(r.Status)
}
