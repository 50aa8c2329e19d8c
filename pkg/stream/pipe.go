// Package stream provides the body stream the request importer fills from
// engine chunk callbacks.
package stream

import (
	"errors"
	"io"
	"sync"
)

var (
	// ErrWriteClosed is returned when writing after CloseWrite.
	ErrWriteClosed = errors.New("stream: write on closed pipe")
	// ErrReadClosed is returned when reading after Close.
	ErrReadClosed = errors.New("stream: read on closed pipe")
)

// Pipe is an unbounded, ordered chunk queue. Writes never block; every
// written chunk is copied and handed to the reader in write order. The write
// side is closed once with CloseWrite or CloseWithError; the reader then
// drains the remaining chunks and sees io.EOF (or the close error).
//
// Pipe is safe for one producer and one consumer running concurrently.
type Pipe struct {
	mu      sync.Mutex
	cond    *sync.Cond
	chunks  [][]byte
	cur     []byte
	wclosed bool
	werr    error
	rclosed bool
	done    chan struct{}
	written int64
}

// NewPipe returns an empty open pipe.
func NewPipe() *Pipe {
	p := &Pipe{done: make(chan struct{})}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Write queues a copy of b.
func (p *Pipe) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.wclosed {
		return 0, ErrWriteClosed
	}
	if p.rclosed {
		// nobody will read it; accept and drop
		return len(b), nil
	}
	if len(b) == 0 {
		return 0, nil
	}
	p.chunks = append(p.chunks, append([]byte(nil), b...))
	p.written += int64(len(b))
	p.cond.Broadcast()
	return len(b), nil
}

// CloseWrite ends the stream. Only the first close has an effect; later
// calls return ErrWriteClosed.
func (p *Pipe) CloseWrite() error {
	return p.CloseWithError(nil)
}

// CloseWithError ends the stream; the reader gets err after draining, or
// io.EOF when err is nil.
func (p *Pipe) CloseWithError(err error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.wclosed {
		return ErrWriteClosed
	}
	p.wclosed = true
	p.werr = err
	close(p.done)
	p.cond.Broadcast()
	return nil
}

// Done is closed when the write side has been closed.
func (p *Pipe) Done() <-chan struct{} { return p.done }

// Written returns the number of bytes accepted so far.
func (p *Pipe) Written() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written
}

// NextChunk returns the next queued chunk as written, blocking until one is
// available. It returns io.EOF (or the close error) once the pipe is drained.
func (p *Pipe) NextChunk() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if p.rclosed {
			return nil, ErrReadClosed
		}
		if len(p.cur) > 0 {
			c := p.cur
			p.cur = nil
			return c, nil
		}
		if len(p.chunks) > 0 {
			c := p.chunks[0]
			p.chunks[0] = nil
			p.chunks = p.chunks[1:]
			return c, nil
		}
		if p.wclosed {
			if p.werr != nil {
				return nil, p.werr
			}
			return nil, io.EOF
		}
		p.cond.Wait()
	}
}

// Read implements io.Reader.
func (p *Pipe) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if p.rclosed {
			return 0, ErrReadClosed
		}
		if len(p.cur) == 0 && len(p.chunks) > 0 {
			p.cur = p.chunks[0]
			p.chunks[0] = nil
			p.chunks = p.chunks[1:]
		}
		if len(p.cur) > 0 {
			n := copy(b, p.cur)
			p.cur = p.cur[n:]
			return n, nil
		}
		if p.wclosed {
			if p.werr != nil {
				return 0, p.werr
			}
			return 0, io.EOF
		}
		p.cond.Wait()
	}
}

// Close releases buffered chunks. Later writes are accepted and dropped.
func (p *Pipe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rclosed = true
	p.chunks = nil
	p.cur = nil
	p.cond.Broadcast()
	return nil
}
