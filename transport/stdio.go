package transport

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// chunk is one read result pushed from the background reader goroutine.
type chunk struct {
	data []byte
	err  error
}

// StdioLink reads from the process's standard input and writes to its
// standard output. It reports an I/O failure once the input stream
// reaches end-of-file, matching the contract that a stdio link has no
// concept of "client disconnected, keep listening".
type StdioLink struct {
	buffers

	in  io.Reader
	out io.Writer

	mu      sync.Mutex
	lastErr error

	chunks chan chunk
	once   sync.Once
}

// NewStdioLink wraps in/out as a Link.
func NewStdioLink(in io.Reader, out io.Writer) *StdioLink {
	return &StdioLink{in: in, out: out, chunks: make(chan chunk, 16)}
}

func (l *StdioLink) startReader() {
	l.once.Do(func() {
		go func() {
			buf := make([]byte, 4096)
			for {
				n, err := l.in.Read(buf)
				if n > 0 {
					data := make([]byte, n)
					copy(data, buf[:n])
					l.chunks <- chunk{data: data}
				}
				if err != nil {
					l.chunks <- chunk{err: err}
					return
				}
			}
		}()
	})
}

// Poll implements Link.
func (l *StdioLink) Poll(ctx context.Context, timeout time.Duration) bool {
	l.startReader()

	l.mu.Lock()
	if l.send.Len() > 0 {
		_, err := l.out.Write(l.send.Bytes())
		l.send.Reset()
		if err != nil {
			l.lastErr = fmt.Errorf("stdio: write: %w", err)
			l.mu.Unlock()
			return false
		}
	}
	l.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case c := <-l.chunks:
		if c.err != nil {
			l.mu.Lock()
			l.lastErr = fmt.Errorf("stdio: read: %w", c.err)
			l.mu.Unlock()
			return false
		}
		l.mu.Lock()
		l.recv.Write(c.data)
		l.mu.Unlock()
		return true
	case <-timer.C:
		return true
	case <-ctx.Done():
		return true
	}
}

// RecvPacket implements Link.
func (l *StdioLink) RecvPacket() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buffers.RecvPacket()
}

// SendPacket implements Link.
func (l *StdioLink) SendPacket(packet string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buffers.SendPacket(packet)
}

// URI implements Link.
func (l *StdioLink) URI() string {
	return "cxxrtl+stdio://"
}

// PollError implements Link.
func (l *StdioLink) PollError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}
