// Package bridge converts between native engine handles and the generic
// message types: Importer builds a message.ServerRequest from a native
// request, Exporter writes a message.Response through a native response.
package bridge

import (
	"fmt"
	"strings"

	"httpbridge/pkg/factory"
	"httpbridge/pkg/message"
	"httpbridge/pkg/native"
	"httpbridge/pkg/stream"
)

// Importer builds generic server requests from native handles. It holds no
// per-request state and may be shared between goroutines.
type Importer struct {
	uriFactory           factory.URIFactory
	serverRequestFactory factory.ServerRequestFactory
	streamFactory        factory.StreamFromResourceFactory
	policy               URIPolicy
}

// NewImporter returns an Importer. A nil policy selects DefaultURI.
func NewImporter(
	uriFactory factory.URIFactory,
	serverRequestFactory factory.ServerRequestFactory,
	streamFactory factory.StreamFromResourceFactory,
	policy URIPolicy,
) *Importer {
	if policy == nil {
		policy = DefaultURI()
	}
	return &Importer{
		uriFactory:           uriFactory,
		serverRequestFactory: serverRequestFactory,
		streamFactory:        streamFactory,
		policy:               policy,
	}
}

// Policy returns the URI policy in use.
func (i *Importer) Policy() URIPolicy { return i.policy }

// Import reads everything it needs from req before returning and registers
// the body callback on res. On error nothing has been registered on res.
// Under the forwarded policy a missing forwarding header yields a
// *MissingHeaderError.
func (i *Importer) Import(req native.Request, res native.Response) (*message.ServerRequest, error) {
	method := message.Method(strings.ToUpper(req.Method()))

	rawURI, err := i.policy.resolve(req, pathAndQuery(req))
	if err != nil {
		return nil, err
	}
	uri, err := i.uriFactory(rawURI)
	if err != nil {
		return nil, fmt.Errorf("invalid uri %q: %w", rawURI, err)
	}

	headers := message.NewHeaders()
	req.ForEach(func(name, value string) {
		if values := normalizeHeader(value); len(values) > 0 {
			headers.Set(name, values...)
		}
	})

	sr := i.serverRequestFactory(method, uri)
	sr.ProtocolVersion = message.ProtocolVersion11
	sr.Headers = headers
	sr.Body = i.streamFactory(body(res))
	return sr, nil
}

// body returns a stream fed by the response's chunk callback. The write
// side is closed right after the chunk flagged last, or with the delivery
// error when the response reports one.
func body(res native.Response) *stream.Pipe {
	p := stream.NewPipe()
	if r, ok := res.(native.BodyErrorReporter); ok {
		r.OnDataError(func(err error) {
			_ = p.CloseWithError(err)
		})
	}
	res.OnData(func(chunk []byte, isLast bool) {
		_, _ = p.Write(chunk)
		if isLast {
			_ = p.CloseWrite()
		}
	})
	return p
}
