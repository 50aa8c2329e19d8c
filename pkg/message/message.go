// Package message holds the framework-agnostic HTTP message types that
// application handlers are written against.
package message

import "io"

// ProtocolVersion11 is the protocol version reported for imported requests.
const ProtocolVersion11 = "1.1"

// Stream is a readable body. Readers must Close it when they stop early.
type Stream = io.ReadCloser

// ServerRequest is an incoming request as seen by application code.
type ServerRequest struct {
	Method          Method
	URI             URI
	ProtocolVersion string
	Headers         *Headers
	Body            Stream
	Attributes      map[string]any
}

// Attribute returns a request attribute set by middleware or routing.
func (r *ServerRequest) Attribute(name string) (any, bool) {
	if r.Attributes == nil {
		return nil, false
	}
	v, ok := r.Attributes[name]
	return v, ok
}

// SetAttribute stores a request attribute.
func (r *ServerRequest) SetAttribute(name string, value any) {
	if r.Attributes == nil {
		r.Attributes = make(map[string]any)
	}
	r.Attributes[name] = value
}

// Response is an outgoing response produced by application code.
type Response struct {
	Status          int
	ReasonPhrase    string
	ProtocolVersion string
	Headers         *Headers
	Body            Stream
}
