package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultPort is the TCP link's default listening port.
const DefaultPort = 6618

// TCPLink listens on a loopback dual-stack port, serving one client at a
// time. On client disconnect it drops back to listening rather than
// failing the session.
type TCPLink struct {
	buffers

	mu       sync.Mutex
	port     int
	listener net.Listener
	conn     net.Conn
	lastErr  error
}

// NewTCPLink returns a TCPLink bound to the given port (DefaultPort when
// zero). The listening socket is opened lazily by the first Poll call.
func NewTCPLink(port int) *TCPLink {
	if port == 0 {
		port = DefaultPort
	}
	return &TCPLink{port: port}
}

func (l *TCPLink) ensureListening() error {
	if l.listener != nil {
		return nil
	}

	cfg := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var ctrlErr error
			err := c.Control(func(fd uintptr) {
				ctrlErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
				if ctrlErr != nil {
					return
				}
				// Dual-stack: accept IPv4 clients on the IPv6 loopback
				// listener too, matching the OS-dependent dual-stack
				// option the protocol's transport description calls for.
				ctrlErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0)
			})
			if err != nil {
				return err
			}
			return ctrlErr
		},
	}

	listener, err := cfg.Listen(context.Background(), "tcp6", "[::1]:"+strconv.Itoa(l.port))
	if err != nil {
		return fmt.Errorf("tcp: listen: %w", err)
	}

	// The listen backlog is the Go runtime's default, not 1; Poll serves
	// only one accepted client at a time.
	l.listener = listener
	return nil
}

// Poll implements Link.
func (l *TCPLink) Poll(ctx context.Context, timeout time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.listener == nil {
		if err := l.ensureListening(); err != nil {
			l.lastErr = err
			return false
		}
	}

	if l.conn == nil {
		if err := l.acceptWithTimeout(timeout); err != nil {
			l.lastErr = err
			return false
		}
		if l.conn == nil {
			return true // timed out waiting for a client; that is success
		}
	}

	if l.send.Len() > 0 {
		if _, err := l.conn.Write(l.send.Bytes()); err != nil {
			l.closeConn()
			l.send.Reset()
			return true // graceful client drop resumes listening, not failure
		}
		l.send.Reset()
	}

	_ = l.conn.SetReadDeadline(time.Now().Add(timeout))
	buf := make([]byte, 4096)
	n, err := l.conn.Read(buf)
	if n > 0 {
		l.recv.Write(buf[:n])
	}
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return true
		}
		// EOF or reset: the client disconnected gracefully; keep listening.
		l.closeConn()
	}

	return true
}

func (l *TCPLink) acceptWithTimeout(timeout time.Duration) error {
	tcl, ok := l.listener.(*net.TCPListener)
	if ok {
		_ = tcl.SetDeadline(time.Now().Add(timeout))
	}

	conn, err := l.listener.Accept()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil
		}
		return fmt.Errorf("tcp: accept: %w", err)
	}

	l.conn = conn
	return nil
}

func (l *TCPLink) closeConn() {
	if l.conn != nil {
		_ = l.conn.Close()
		l.conn = nil
	}
}

// RecvPacket implements Link.
func (l *TCPLink) RecvPacket() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buffers.RecvPacket()
}

// SendPacket implements Link.
func (l *TCPLink) SendPacket(packet string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buffers.SendPacket(packet)
}

// URI implements Link.
func (l *TCPLink) URI() string {
	return fmt.Sprintf("cxxrtl+tcp://localhost:%d", l.port)
}

// PollError implements Link.
func (l *TCPLink) PollError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// Close releases the listening socket and any accepted connection.
func (l *TCPLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeConn()
	if l.listener != nil {
		err := l.listener.Close()
		l.listener = nil
		return err
	}
	return nil
}
