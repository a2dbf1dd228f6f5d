package scanning

import (
	"context"
	"errors"
	"net"
	"strconv"
	"syscall"
	"time"

	proberrors "github.com/probemap/probemap/internal/errors"
	"github.com/probemap/probemap/internal/metrics"
)

// Prober attempts bounded-timeout TCP connections against single ports.
// It performs no retries; retriable classification is left to the caller.
type Prober struct {
	timeout time.Duration
}

// NewProber creates a prober with the given connect timeout.
func NewProber(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	return &Prober{timeout: timeout}
}

// Probe dials (addr, port) and classifies the result. A refused
// connection is Closed, not an error. When keepOpen is true and the port
// is open, the live connection is returned so the caller can run service
// identification; the caller then owns closing it. On every other path
// the connection is released before returning.
func (p *Prober) Probe(ctx context.Context, addr net.IP, port uint16, keepOpen bool) (ProbeOutcome, net.Conn) {
	outcome := ProbeOutcome{
		Port:    port,
		Service: ServiceUnknown,
	}

	dialer := net.Dialer{Timeout: p.timeout}
	hostPort := net.JoinHostPort(addr.String(), strconv.Itoa(int(port)))

	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", hostPort)
	outcome.Latency = time.Since(start)

	metrics.GetGlobalMetrics().ObserveProbeDuration(outcome.Latency)

	if err == nil {
		outcome.State = PortStateOpen
		if keepOpen {
			return outcome, conn
		}
		_ = conn.Close()
		return outcome, nil
	}

	outcome.State, outcome.Reason = classifyDialError(err)
	return outcome, nil
}

// Timeout returns the connect timeout the prober was built with.
func (p *Prober) Timeout() time.Duration {
	return p.timeout
}

// classifyDialError maps a dial failure onto the outcome taxonomy:
// refusal means the port is closed, everything else is an errored port.
func classifyDialError(err error) (PortState, string) {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return PortStateClosed, ""
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return PortStateError, string(proberrors.CodeTimeout)
	}

	switch {
	case errors.Is(err, syscall.ENETUNREACH), errors.Is(err, syscall.EHOSTUNREACH):
		return PortStateError, string(proberrors.CodeNetworkUnreachable)
	case errors.Is(err, syscall.ECONNRESET):
		return PortStateError, string(proberrors.CodeConnectionReset)
	case errors.Is(err, context.Canceled):
		return PortStateError, string(proberrors.CodeCanceled)
	}

	return PortStateError, err.Error()
}
