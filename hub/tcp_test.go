package hub

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Subaru-PFS/tron-actorcore-sub000/errors"
	"github.com/Subaru-PFS/tron-actorcore-sub000/pkg/retry"
)

// startHub runs a one-connection line echo server and returns its
// address plus a channel of lines it received.
func startHub(t *testing.T) (string, chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	received := make(chan string, 16)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			line := scanner.Text()
			received <- line
			// every command line gets one canned reply
			_, _ = conn.Write([]byte("prog.me 1 test : echoed\n"))
		}
	}()
	return ln.Addr().String(), received
}

func TestTCPConnection_RoundTrip(t *testing.T) {
	addr, received := startHub(t)

	c := NewTCPConnection(addr, WithRetryConfig(retry.Quick()))
	lines := make(chan string, 16)
	c.OnRead(func(line string) { lines <- line })

	require.NoError(t, c.Start())
	t.Cleanup(func() { _ = c.Close() })
	assert.True(t, c.IsConnected())

	require.NoError(t, c.WriteLine("1 test status"))
	select {
	case got := <-received:
		assert.Equal(t, "1 test status", got)
	case <-time.After(2 * time.Second):
		t.Fatal("hub never received the command")
	}
	select {
	case got := <-lines:
		assert.True(t, strings.HasPrefix(got, "prog.me 1 test :"), got)
	case <-time.After(2 * time.Second):
		t.Fatal("client never received the reply")
	}
}

func TestTCPConnection_StartTwice(t *testing.T) {
	addr, _ := startHub(t)
	c := NewTCPConnection(addr, WithRetryConfig(retry.Quick()))
	require.NoError(t, c.Start())
	t.Cleanup(func() { _ = c.Close() })

	err := c.Start()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAlreadyStarted))
}

func TestTCPConnection_WriteWhileDisconnected(t *testing.T) {
	c := NewTCPConnection("127.0.0.1:1")
	err := c.WriteLine("1 test status")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotConnected))
}

func TestNullConnection(t *testing.T) {
	c := NewNullConnection()
	var lines []string
	var states []bool
	c.OnRead(func(line string) { lines = append(lines, line) })
	c.OnStateChange(func(connected bool, _ error) { states = append(states, connected) })

	require.NoError(t, c.WriteLine("1 test status"))
	assert.Equal(t, "1 test status", c.LastWritten())

	c.Inject("prog.me 1 test :")
	assert.Equal(t, []string{"prog.me 1 test :"}, lines)

	c.SetConnected(false, nil)
	err := c.WriteLine("2 test status")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotConnected))
	assert.Equal(t, []bool{false}, states)
}
