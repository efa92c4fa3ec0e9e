// Package netclient wraps an http.RoundTripper so every failed backend
// call — wherever it was issued — surfaces on the application bus. Views
// keep their own error handling; the broadcast only adds the passive toast.
package netclient

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"omnibot-console/internal/appbus"
)

// maxDetailBytes bounds how much of an error body is read for the toast.
const maxDetailBytes = 4 * 1024

// Transport reports non-2xx responses and transport failures to the bus
// and otherwise passes traffic through untouched.
type Transport struct {
	base http.RoundTripper
	bus  *appbus.Bus
}

// Wrap returns rt with error reporting attached. Wrapping a transport
// that already reports is a no-op, so repeated installation cannot build
// nested chains that double-report the same failure.
func Wrap(rt http.RoundTripper, bus *appbus.Bus) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}
	if t, ok := rt.(*Transport); ok {
		return t
	}
	return &Transport{base: rt, bus: bus}
}

// NewClient returns an http.Client whose transport reports failures to bus.
func NewClient(bus *appbus.Bus) *http.Client {
	return &http.Client{
		Transport: Wrap(nil, bus),
		Timeout:   30 * time.Second,
	}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.bus.Publish(appbus.ErrorRaised{Title: "Network error", Detail: err.Error()})
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := t.readDetail(resp)
		if detail == "" {
			detail = requestDescriptor(req)
		}
		t.bus.Publish(appbus.ErrorRaised{
			Title:  fmt.Sprintf("HTTP %d", resp.StatusCode),
			Detail: detail,
		})
	}
	return resp, nil
}

// readDetail reads up to maxDetailBytes of the error body and hands the
// caller back a response whose body is still fully readable: the read
// prefix is replayed ahead of the live body, so the remainder is never
// buffered. Any read failure yields an empty detail rather than an error
// of its own.
func (t *Transport) readDetail(resp *http.Response) string {
	if resp.Body == nil {
		return ""
	}
	buf, err := io.ReadAll(io.LimitReader(resp.Body, maxDetailBytes))
	resp.Body = replayBody{
		Reader: io.MultiReader(bytes.NewReader(buf), resp.Body),
		Closer: resp.Body,
	}

	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(buf))
}

// replayBody serves a consumed prefix before the live body; Close still
// releases the underlying connection.
type replayBody struct {
	io.Reader
	io.Closer
}

func requestDescriptor(req *http.Request) string {
	if req == nil || req.URL == nil {
		return ""
	}
	return req.Method + " " + req.URL.Path
}
