package bridge

import (
	"strings"
	"sync"

	"httpbridge/pkg/native"
)

// fakeRequest records how often each accessor is used. lookup backs Header,
// iter backs ForEach; they are separate on purpose so tests can make the
// Host header visible to one and not the other.
type fakeRequest struct {
	method string
	url    string
	query  string
	lookup map[string]string
	iter   [][2]string

	methodCalls  int
	urlCalls     int
	queryCalls   int
	headerCalls  int
	forEachCalls int
}

func (r *fakeRequest) Method() string { r.methodCalls++; return r.method }
func (r *fakeRequest) URL() string    { r.urlCalls++; return r.url }
func (r *fakeRequest) Query() string  { r.queryCalls++; return r.query }

func (r *fakeRequest) Header(name string) string {
	r.headerCalls++
	return r.lookup[strings.ToLower(name)]
}

func (r *fakeRequest) ForEach(fn func(name, value string)) {
	r.forEachCalls++
	for _, kv := range r.iter {
		fn(kv[0], kv[1])
	}
}

// fakeResponse logs every write in call order.
type fakeResponse struct {
	mu          sync.Mutex
	calls       []string
	onData      native.DataHandler
	onDataError native.DataErrorHandler
	onDataCalls int
	ended       chan struct{}
}

func newFakeResponse() *fakeResponse {
	return &fakeResponse{ended: make(chan struct{})}
}

func (r *fakeResponse) record(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *fakeResponse) WriteStatus(status string)      { r.record("status:" + status) }
func (r *fakeResponse) WriteHeader(name, value string) { r.record("header:" + name + ":" + value) }
func (r *fakeResponse) Write(chunk []byte)             { r.record("write:" + string(chunk)) }

func (r *fakeResponse) End() {
	r.record("end")
	close(r.ended)
}

func (r *fakeResponse) OnData(h native.DataHandler) {
	r.onDataCalls++
	r.onData = h
}

func (r *fakeResponse) OnDataError(h native.DataErrorHandler) {
	r.onDataError = h
}

func (r *fakeResponse) log() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// deliver pushes chunks through the registered handler, flagging the last.
func (r *fakeResponse) deliver(chunks ...string) {
	for i, c := range chunks {
		r.onData([]byte(c), i == len(chunks)-1)
	}
}
