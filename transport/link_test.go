package transport_test

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwdebug/rtlserver/transport"
)

func TestFramingIsReversible(t *testing.T) {
	in := bytes.NewBufferString("hello\x00world\x00trailing")
	out := &bytes.Buffer{}
	link := transport.NewStdioLink(in, out)

	ctx := context.Background()
	ok := link.Poll(ctx, 200*time.Millisecond)
	require.True(t, ok)

	// drain until no more complete packets; the background reader may
	// need a couple of polls to observe all bytes.
	var packets []string
	for i := 0; i < 10; i++ {
		p, got := link.RecvPacket()
		if !got {
			link.Poll(ctx, 20*time.Millisecond)
			p, got = link.RecvPacket()
			if !got {
				break
			}
		}
		packets = append(packets, p)
	}

	assert.Equal(t, []string{"hello", "world"}, packets)
}

func TestStdioLinkURI(t *testing.T) {
	link := transport.NewStdioLink(bytes.NewReader(nil), &bytes.Buffer{})
	assert.Equal(t, "cxxrtl+stdio://", link.URI())
}

func TestTCPLinkURI(t *testing.T) {
	link := transport.NewTCPLink(16618)
	assert.Equal(t, "cxxrtl+tcp://localhost:16618", link.URI())
}

func TestTCPLinkAcceptsAndEchoesFramedPacket(t *testing.T) {
	const port = 16619
	link := transport.NewTCPLink(port)
	defer link.Close()

	ctx := context.Background()

	// First poll opens the listener and times out waiting for a client.
	ok := link.Poll(ctx, 50*time.Millisecond)
	require.True(t, ok)

	conn, err := net.Dial("tcp6", "[::1]:16619")
	if err != nil {
		t.Skip("loopback TCP dial unavailable in this sandbox")
	}
	defer conn.Close()

	_, _ = conn.Write([]byte("ping\x00"))

	var packet string
	var got bool
	for i := 0; i < 20 && !got; i++ {
		link.Poll(ctx, 50*time.Millisecond)
		packet, got = link.RecvPacket()
	}

	assert.True(t, got)
	assert.Equal(t, "ping", packet)
}
