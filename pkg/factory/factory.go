// Package factory holds the constructor contracts the bridge consumes and
// their default implementations.
package factory

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"

	"httpbridge/pkg/message"
)

// URIFactory builds a URI from an absolute URI string.
type URIFactory func(uri string) (message.URI, error)

// ServerRequestFactory builds a request carrying only method and URI.
type ServerRequestFactory func(method message.Method, uri message.URI) *message.ServerRequest

// StreamFromResourceFactory wraps a readable resource into a body stream.
type StreamFromResourceFactory func(r io.Reader) message.Stream

// ResponseFactory builds an empty response. An empty reason selects the
// standard status text.
type ResponseFactory func(status int, reason string) *message.Response

// NewURIFactory returns the default URIFactory. It rejects relative
// references and unparsable input.
func NewURIFactory() URIFactory {
	return func(raw string) (message.URI, error) {
		u, err := url.Parse(raw)
		if err != nil {
			return message.URI{}, err
		}
		if u.Scheme == "" || u.Host == "" {
			return message.URI{}, fmt.Errorf("uri %q is not absolute", raw)
		}
		out := message.URI{
			Schema:   strings.ToLower(u.Scheme),
			Host:     u.Hostname(),
			Path:     u.EscapedPath(),
			Query:    u.RawQuery,
			Fragment: u.Fragment,
		}
		if u.User != nil {
			out.UserInfo = u.User.String()
		}
		if p := u.Port(); p != "" {
			port, err := strconv.Atoi(p)
			if err != nil || port < 0 || port > 65535 {
				return message.URI{}, fmt.Errorf("uri %q has invalid port %q", raw, p)
			}
			out.Port = port
		}
		return out, nil
	}
}

// NewServerRequestFactory returns the default ServerRequestFactory.
func NewServerRequestFactory() ServerRequestFactory {
	return func(method message.Method, uri message.URI) *message.ServerRequest {
		return &message.ServerRequest{
			Method:          method,
			URI:             uri,
			ProtocolVersion: message.ProtocolVersion11,
			Headers:         message.NewHeaders(),
			Body:            http.NoBody,
			Attributes:      map[string]any{},
		}
	}
}

// NewStreamFromResourceFactory returns the default StreamFromResourceFactory.
// Readers that already close are returned as they are.
func NewStreamFromResourceFactory() StreamFromResourceFactory {
	return func(r io.Reader) message.Stream {
		if rc, ok := r.(io.ReadCloser); ok {
			return rc
		}
		return io.NopCloser(r)
	}
}

// NewResponseFactory returns the default ResponseFactory.
func NewResponseFactory() ResponseFactory {
	return func(status int, reason string) *message.Response {
		if reason == "" {
			reason = fasthttp.StatusMessage(status)
		}
		return &message.Response{
			Status:          status,
			ReasonPhrase:    reason,
			ProtocolVersion: message.ProtocolVersion11,
			Headers:         message.NewHeaders(),
			Body:            http.NoBody,
		}
	}
}
