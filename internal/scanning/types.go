package scanning

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// Port range parsing constants.
	expectedRangeParts = 2
	minPortNumber      = 1
	maxPortNumber      = 65535

	// Default engine limits.
	defaultConnectTimeout = 1 * time.Second
	defaultProbeTimeout   = 2 * time.Second
	defaultMaxWorkers     = 100
	defaultIdentifyLimit  = 100
)

// PortState describes the outcome of a connection attempt against a port.
type PortState string

const (
	PortStateOpen   PortState = "open"
	PortStateClosed PortState = "closed"
	PortStateError  PortState = "error"
)

// ServiceLabel identifies the network service detected behind an open port.
type ServiceLabel string

const (
	ServiceFTP     ServiceLabel = "FTP"
	ServiceSSH     ServiceLabel = "SSH"
	ServiceTelnet  ServiceLabel = "Telnet"
	ServiceSMTP    ServiceLabel = "SMTP"
	ServiceDNS     ServiceLabel = "DNS"
	ServiceHTTP    ServiceLabel = "HTTP"
	ServicePOP3    ServiceLabel = "POP3"
	ServiceIMAP    ServiceLabel = "IMAP"
	ServiceHTTPS   ServiceLabel = "HTTPS"
	ServiceMySQL   ServiceLabel = "MySQL"
	ServiceRDP     ServiceLabel = "RDP"
	ServiceVNC     ServiceLabel = "VNC"
	ServiceUnknown ServiceLabel = "Unknown"
)

// Target is a scan target whose hostname has already been resolved.
// Resolution happens once, before the engine is invoked; the engine
// only ever dials the resolved address.
type Target struct {
	// Host is the name the user asked for (hostname or IP literal)
	Host string
	// Addr is the resolved IP address used for all connection attempts
	Addr net.IP
}

// NewTarget creates a target from a hostname and its resolved address.
func NewTarget(host string, addr net.IP) Target {
	return Target{Host: host, Addr: addr}
}

// String returns the display form of the target.
func (t Target) String() string {
	if t.Host != "" && t.Host != t.Addr.String() {
		return fmt.Sprintf("%s (%s)", t.Host, t.Addr)
	}
	return t.Addr.String()
}

// PortRange is an inclusive range of TCP ports. It is fixed for the
// duration of one scan.
type PortRange struct {
	Min uint16
	Max uint16
}

// Validate checks the range bounds. A zero Min or an inverted range is
// the only condition that aborts a scan before dispatch.
func (r PortRange) Validate() error {
	if r.Min < minPortNumber {
		return fmt.Errorf("port range start must be at least %d, got %d", minPortNumber, r.Min)
	}
	if r.Min > r.Max {
		return fmt.Errorf("inverted port range: %d-%d", r.Min, r.Max)
	}
	return nil
}

// Count returns the number of ports in the range.
func (r PortRange) Count() int {
	return int(r.Max) - int(r.Min) + 1
}

// Contains reports whether the port falls inside the range.
func (r PortRange) Contains(port uint16) bool {
	return port >= r.Min && port <= r.Max
}

// String returns the "min-max" form of the range.
func (r PortRange) String() string {
	if r.Min == r.Max {
		return strconv.Itoa(int(r.Min))
	}
	return fmt.Sprintf("%d-%d", r.Min, r.Max)
}

// ParsePortRange parses a port specification of the form "80" or "20-1000".
func ParsePortRange(spec string) (PortRange, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return PortRange{}, fmt.Errorf("empty port specification")
	}

	if !strings.Contains(spec, "-") {
		port, err := parsePortNumber(spec)
		if err != nil {
			return PortRange{}, err
		}
		return PortRange{Min: port, Max: port}, nil
	}

	parts := strings.Split(spec, "-")
	if len(parts) != expectedRangeParts {
		return PortRange{}, fmt.Errorf("invalid port range format: %s", spec)
	}

	minPort, err := parsePortNumber(parts[0])
	if err != nil {
		return PortRange{}, fmt.Errorf("invalid start port: %w", err)
	}
	maxPort, err := parsePortNumber(parts[1])
	if err != nil {
		return PortRange{}, fmt.Errorf("invalid end port: %w", err)
	}

	r := PortRange{Min: minPort, Max: maxPort}
	if err := r.Validate(); err != nil {
		return PortRange{}, err
	}
	return r, nil
}

func parsePortNumber(s string) (uint16, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid port: %s", s)
	}
	if n < minPortNumber || n > maxPortNumber {
		return 0, fmt.Errorf("port %d out of range (%d-%d)", n, minPortNumber, maxPortNumber)
	}
	return uint16(n), nil
}

// ProbeOutcome is the result recorded for a single port. Exactly one
// outcome is produced per port in the requested range.
type ProbeOutcome struct {
	// Port is the port number this outcome belongs to
	Port uint16
	// State is open, closed, or error
	State PortState
	// Service is the identified service for open ports, Unknown otherwise
	Service ServiceLabel
	// Reason carries the failure description for errored ports
	Reason string
	// Latency is how long the connection attempt took
	Latency time.Duration
}

// ScanReport is the complete result set of one scan invocation. It is
// owned exclusively by the orchestrator while the scan runs and must be
// treated as read-only once returned.
type ScanReport struct {
	// ID uniquely identifies the scan run
	ID uuid.UUID
	// Target is the host that was scanned
	Target Target
	// Range is the port range that was scanned
	Range PortRange
	// Outcomes maps each scanned port to its result
	Outcomes map[uint16]ProbeOutcome
	// StartTime is when the scan started
	StartTime time.Time
	// EndTime is when the scan completed
	EndTime time.Time
	// Duration is how long the scan took
	Duration time.Duration
}

func newScanReport(target Target, r PortRange) *ScanReport {
	return &ScanReport{
		ID:        uuid.New(),
		Target:    target,
		Range:     r,
		Outcomes:  make(map[uint16]ProbeOutcome, r.Count()),
		StartTime: time.Now(),
	}
}

func (s *ScanReport) complete() {
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
}

// OpenPorts returns the outcomes for open ports in ascending port order.
func (s *ScanReport) OpenPorts() []ProbeOutcome {
	return s.portsInState(PortStateOpen)
}

// ErroredPorts returns the outcomes for errored ports in ascending port order.
func (s *ScanReport) ErroredPorts() []ProbeOutcome {
	return s.portsInState(PortStateError)
}

func (s *ScanReport) portsInState(state PortState) []ProbeOutcome {
	out := make([]ProbeOutcome, 0)
	for port := s.Range.Min; ; port++ {
		if o, ok := s.Outcomes[port]; ok && o.State == state {
			out = append(out, o)
		}
		if port == s.Range.Max {
			break
		}
	}
	return out
}

// Counts returns the number of open, closed, and errored ports.
func (s *ScanReport) Counts() (open, closed, errored int) {
	for _, o := range s.Outcomes {
		switch o.State {
		case PortStateOpen:
			open++
		case PortStateClosed:
			closed++
		case PortStateError:
			errored++
		}
	}
	return open, closed, errored
}

// Config holds the tunable limits of the scan engine. It is passed in at
// construction so tests can inject short timeouts deterministically.
type Config struct {
	// ConnectTimeout bounds each connection attempt
	ConnectTimeout time.Duration
	// ProbeTimeout bounds the identification read/write on open ports
	ProbeTimeout time.Duration
	// MaxWorkers caps concurrent probes; the effective pool size is
	// min(MaxWorkers, number of ports in the range)
	MaxWorkers int
	// IdentifyLimit restricts service identification to the first N
	// ports of the range, counted in range order
	IdentifyLimit int
	// ServiceDetection disables identification entirely when false
	ServiceDetection bool
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:   defaultConnectTimeout,
		ProbeTimeout:     defaultProbeTimeout,
		MaxWorkers:       defaultMaxWorkers,
		IdentifyLimit:    defaultIdentifyLimit,
		ServiceDetection: true,
	}
}
