// Package native defines the low-level request/response handle contracts of
// the server engine and binds them to fasthttp.
//
// A Request is only valid while the engine's request callback runs.
// Implementations must return owned strings so that nothing read from it
// aliases engine memory after the callback returns.
package native

import "errors"

// ErrBodyTooLarge ends request body delivery once the body exceeds the
// configured limit.
var ErrBodyTooLarge = errors.New("request body too large")

// Request is the engine's view of an incoming request.
type Request interface {
	// Method returns the request method in lower case.
	Method() string
	// URL returns the raw request path without the query.
	URL() string
	// Query returns the raw query string without the leading '?'.
	Query() string
	// Header returns the value of the named header, or "" when absent.
	// Lookup is case-insensitive.
	Header(name string) string
	// ForEach visits every header exactly once per name.
	ForEach(fn func(name, value string))
}

// DataHandler receives one request body chunk. isLast is true for the
// final chunk, which may be empty. The chunk is owned by the receiver.
type DataHandler func(chunk []byte, isLast bool)

// Response is the engine's low-level response writer. Writes are expected
// not to fail from the caller's point of view; transport errors stay inside
// the engine.
type Response interface {
	WriteStatus(status string)
	WriteHeader(name, value string)
	// Write sends one body chunk. The chunk must not be retained after
	// Write returns.
	Write(chunk []byte)
	End()
	// OnData registers the body chunk handler. Chunks are delivered later,
	// in order, from an engine-owned goroutine.
	OnData(h DataHandler)
}

// DataErrorHandler receives the error that ended request body delivery
// early. No chunk is delivered after it.
type DataErrorHandler func(err error)

// BodyErrorReporter is implemented by responses whose request body delivery
// can fail. OnDataError must be registered before OnData; without it a
// failed delivery ends with an empty chunk flagged last.
type BodyErrorReporter interface {
	OnDataError(h DataErrorHandler)
}
