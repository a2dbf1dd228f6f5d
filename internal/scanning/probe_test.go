package scanning

import (
	"context"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listenLoopback opens a listener on an ephemeral loopback port and
// returns the listener and its port.
func listenLoopback(t *testing.T) (net.Listener, uint16) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return listener, uint16(listener.Addr().(*net.TCPAddr).Port)
}

// freeLoopbackPort returns a loopback port that was just released, so a
// connection attempt against it is refused.
func freeLoopbackPort(t *testing.T) uint16 {
	t.Helper()
	listener, port := listenLoopback(t)
	require.NoError(t, listener.Close())
	return port
}

func TestProbeOpenPort(t *testing.T) {
	listener, port := listenLoopback(t)
	defer listener.Close()

	prober := NewProber(time.Second)
	outcome, conn := prober.Probe(context.Background(), net.ParseIP("127.0.0.1"), port, false)

	assert.Nil(t, conn)
	assert.Equal(t, PortStateOpen, outcome.State)
	assert.Equal(t, port, outcome.Port)
	assert.Equal(t, ServiceUnknown, outcome.Service)
	assert.Greater(t, outcome.Latency.Nanoseconds(), int64(0))
}

func TestProbeKeepOpen(t *testing.T) {
	listener, port := listenLoopback(t)
	defer listener.Close()

	prober := NewProber(time.Second)
	outcome, conn := prober.Probe(context.Background(), net.ParseIP("127.0.0.1"), port, true)

	require.NotNil(t, conn)
	defer conn.Close()
	assert.Equal(t, PortStateOpen, outcome.State)
}

func TestProbeClosedPort(t *testing.T) {
	port := freeLoopbackPort(t)

	prober := NewProber(time.Second)
	outcome, conn := prober.Probe(context.Background(), net.ParseIP("127.0.0.1"), port, true)

	assert.Nil(t, conn)
	assert.Equal(t, PortStateClosed, outcome.State)
	assert.Empty(t, outcome.Reason)
}

func TestProbeTimeoutBound(t *testing.T) {
	// 192.0.2.0/24 is TEST-NET-1; connection attempts black-hole.
	prober := NewProber(200 * time.Millisecond)

	start := time.Now()
	outcome, conn := prober.Probe(context.Background(), net.ParseIP("192.0.2.1"), 80, false)
	elapsed := time.Since(start)

	assert.Nil(t, conn)
	assert.Equal(t, PortStateError, outcome.State)
	assert.Less(t, elapsed, 2*time.Second, "probe must not block past its timeout")
}

func TestNewProberDefaultTimeout(t *testing.T) {
	prober := NewProber(0)
	assert.Equal(t, defaultConnectTimeout, prober.Timeout())
}

type fakeTimeoutError struct{}

func (fakeTimeoutError) Error() string   { return "i/o timeout" }
func (fakeTimeoutError) Timeout() bool   { return true }
func (fakeTimeoutError) Temporary() bool { return true }

func TestClassifyDialError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantState  PortState
		wantReason string
	}{
		{
			name:      "connection refused is closed",
			err:       &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)},
			wantState: PortStateClosed,
		},
		{
			name:       "timeout",
			err:        &net.OpError{Op: "dial", Err: fakeTimeoutError{}},
			wantState:  PortStateError,
			wantReason: "TIMEOUT",
		},
		{
			name:       "network unreachable",
			err:        &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ENETUNREACH)},
			wantState:  PortStateError,
			wantReason: "NETWORK_UNREACHABLE",
		},
		{
			name:       "host unreachable",
			err:        &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.EHOSTUNREACH)},
			wantState:  PortStateError,
			wantReason: "NETWORK_UNREACHABLE",
		},
		{
			name:       "connection reset",
			err:        &net.OpError{Op: "dial", Err: os.NewSyscallError("read", syscall.ECONNRESET)},
			wantState:  PortStateError,
			wantReason: "CONNECTION_RESET",
		},
		{
			name:       "canceled",
			err:        &net.OpError{Op: "dial", Err: context.Canceled},
			wantState:  PortStateError,
			wantReason: "CANCELED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, reason := classifyDialError(tt.err)
			assert.Equal(t, tt.wantState, state)
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, reason)
			}
		})
	}
}
