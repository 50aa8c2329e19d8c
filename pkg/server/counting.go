package server

import (
	"strconv"
	"strings"
	"sync"

	"httpbridge/pkg/native"
	"httpbridge/pkg/telemetry"
)

// countingResponse decorates a native response with body byte and status
// accounting. finish runs once, when the response ends.
type countingResponse struct {
	native.Response
	m    *telemetry.Metrics
	tr   *telemetry.Trace
	end  func()
	once sync.Once
}

func newCountingResponse(res native.Response, m *telemetry.Metrics, tr *telemetry.Trace) *countingResponse {
	return &countingResponse{Response: res, m: m, tr: tr, end: m.Begin()}
}

func (r *countingResponse) WriteStatus(status string) {
	code, _, _ := strings.Cut(strings.TrimSpace(status), " ")
	if n, err := strconv.Atoi(code); err == nil {
		r.m.Response(n)
	}
	r.Response.WriteStatus(status)
}

func (r *countingResponse) Write(chunk []byte) {
	r.m.ResponseBytes(len(chunk))
	r.Response.Write(chunk)
}

// End settles the accounting before the engine sees the end of the body.
func (r *countingResponse) End() {
	r.tr.Mark("export")
	r.finish()
	r.Response.End()
}

func (r *countingResponse) OnData(h native.DataHandler) {
	r.Response.OnData(func(chunk []byte, isLast bool) {
		r.m.RequestBytes(len(chunk))
		h(chunk, isLast)
	})
}

// OnDataError forwards to the wrapped response when it can report delivery
// errors.
func (r *countingResponse) OnDataError(h native.DataErrorHandler) {
	if er, ok := r.Response.(native.BodyErrorReporter); ok {
		er.OnDataError(h)
	}
}

func (r *countingResponse) finish() {
	r.once.Do(func() {
		r.end()
		r.tr.Finish()
	})
}
