package bridge

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/valyala/bytebufferpool"

	"httpbridge/pkg/logger"
	"httpbridge/pkg/message"
	"httpbridge/pkg/native"
)

const exportChunkSize = 32 * 1024

// chunkReader is implemented by bodies that keep write boundaries, such as
// *stream.Pipe.
type chunkReader interface {
	NextChunk() ([]byte, error)
}

// Exporter writes generic responses through native response handles.
type Exporter struct{}

// NewExporter returns an Exporter.
func NewExporter() *Exporter { return &Exporter{} }

// Export writes the status line and the headers before returning, then
// streams the body on a separate goroutine and ends the response when the
// body is drained. The body is closed afterwards.
func (e *Exporter) Export(resp *message.Response, res native.Response) {
	res.WriteStatus(strconv.Itoa(resp.Status) + " " + resp.ReasonPhrase)
	resp.Headers.Each(func(name string, values []string) {
		res.WriteHeader(name, strings.Join(values, ", "))
	})
	go pump(resp.Body, res)
}

func pump(body io.Reader, res native.Response) {
	defer res.End()
	if body == nil {
		return
	}
	if c, ok := body.(io.Closer); ok {
		defer c.Close()
	}

	if cr, ok := body.(chunkReader); ok {
		for {
			chunk, err := cr.NextChunk()
			if len(chunk) > 0 {
				res.Write(chunk)
			}
			if err != nil {
				logReadError(err)
				return
			}
		}
	}

	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)
	if cap(bb.B) < exportChunkSize {
		bb.B = make([]byte, exportChunkSize)
	}
	buf := bb.B[:exportChunkSize]
	for {
		n, err := body.Read(buf)
		if n > 0 {
			res.Write(buf[:n])
		}
		if err != nil {
			logReadError(err)
			return
		}
	}
}

func logReadError(err error) {
	if !errors.Is(err, io.EOF) {
		logger.Warn("response_body_read_failed", "error", err)
	}
}
