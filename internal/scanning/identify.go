package scanning

import (
	"net"
	"sort"
	"strings"
	"time"

	"github.com/probemap/probemap/internal/metrics"
)

const identifyReadBuffer = 1024

// serviceProbe describes how to elicit identifying output from a
// well-known port: an optional protocol-valid payload to send, followed
// by a banner read. An empty payload means a passive banner read.
type serviceProbe struct {
	// Service is the service conventionally bound to the port, used
	// for listing the table; identification itself goes through the
	// banner matchers so a mismatched service is never reported.
	Service ServiceLabel
	// Payload is written to the connection before reading
	Payload []byte
}

// serviceProbes maps well-known ports to their probe strategy. Extending
// the table is enough to support a new service; dispatch never changes.
var serviceProbes = map[uint16]serviceProbe{
	20:   {Service: ServiceFTP, Payload: []byte("NOOP\r\n")},
	21:   {Service: ServiceFTP, Payload: []byte("HELLO\r\n")},
	22:   {Service: ServiceSSH, Payload: []byte("\n")},
	23:   {Service: ServiceTelnet, Payload: []byte("\r\n")},
	25:   {Service: ServiceSMTP, Payload: []byte("EHLO example.com\r\n")},
	53:   {Service: ServiceDNS, Payload: []byte("\x00\x00\x01\x00\x00\x01\x00\x00\x00\x00\x00\x00\x07example\x03com\x00\x00\x01\x00\x01")},
	80:   {Service: ServiceHTTP, Payload: []byte("HEAD / HTTP/1.0\r\n\r\n")},
	110:  {Service: ServicePOP3, Payload: []byte("USER test\r\n")},
	143:  {Service: ServiceIMAP, Payload: []byte("TAG LOGIN test test\r\n")},
	443:  {Service: ServiceHTTPS, Payload: []byte("\x16\x03\x01\x00\x01\x01")},
	587:  {Service: ServiceSMTP, Payload: []byte("EHLO example.com\r\n")},
	3306: {Service: ServiceMySQL, Payload: []byte("\x00")},
	3389: {Service: ServiceRDP, Payload: []byte("\x03\x00\x00\x13\x0e\xe0\x00\x00\x00\x00\x00\x01\x00\x08\x03\x00\x00\x00")},
	5900: {Service: ServiceVNC, Payload: []byte("RFB 003.003\n")},
	8080: {Service: ServiceHTTP, Payload: []byte("HEAD / HTTP/1.0\r\n\r\n")},
}

// bannerMatchers pairs response keywords with service labels. Matching
// is first-hit, so protocol-specific markers come before generic ones.
var bannerMatchers = []struct {
	keyword string
	service ServiceLabel
}{
	{"SSH", ServiceSSH},
	{"RFB", ServiceVNC},
	{"HTTP", ServiceHTTP},
	{"220 ", ServiceFTP},
	{"220-", ServiceFTP},
	{"FTP", ServiceFTP},
	{"SMTP", ServiceSMTP},
	{"POP3", ServicePOP3},
	{"IMAP", ServiceIMAP},
	{"MySQL", ServiceMySQL},
	{"mysql", ServiceMySQL},
	{"RDP", ServiceRDP},
	{"Telnet", ServiceTelnet},
	{"Login", ServiceTelnet},
	{"login", ServiceTelnet},
}

// Identifier classifies the service behind an open port by sending a
// protocol-appropriate probe and pattern-matching the response.
type Identifier struct {
	timeout time.Duration
}

// NewIdentifier creates an identifier with the given probe timeout.
func NewIdentifier(timeout time.Duration) *Identifier {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &Identifier{timeout: timeout}
}

// Identify probes the service on an established connection. It returns
// Unknown when the port has no table entry, the probe times out, or the
// response matches no known pattern; none of these are errors. The
// connection is closed on every exit path.
func (i *Identifier) Identify(conn net.Conn, port uint16) ServiceLabel {
	defer func() {
		_ = conn.Close()
	}()

	probe, ok := serviceProbes[port]
	if !ok {
		return ServiceUnknown
	}

	if err := conn.SetDeadline(time.Now().Add(i.timeout)); err != nil {
		return ServiceUnknown
	}

	if len(probe.Payload) > 0 {
		if _, err := conn.Write(probe.Payload); err != nil {
			return ServiceUnknown
		}
	}

	// A short read alongside EOF still carries a usable banner, so only
	// the byte count decides whether there is anything to match.
	buf := make([]byte, identifyReadBuffer)
	n, _ := conn.Read(buf)
	if n == 0 {
		return ServiceUnknown
	}

	label := matchBanner(string(buf[:n]))
	metrics.GetGlobalMetrics().IncrementIdentifications(string(label))
	return label
}

// Timeout returns the probe timeout the identifier was built with.
func (i *Identifier) Timeout() time.Duration {
	return i.timeout
}

// matchBanner scans the response for known service keywords.
func matchBanner(response string) ServiceLabel {
	for _, m := range bannerMatchers {
		if strings.Contains(response, m.keyword) {
			return m.service
		}
	}
	return ServiceUnknown
}

// ProbeEntry is a read-only view of one probe table row.
type ProbeEntry struct {
	Port    uint16
	Service ServiceLabel
	// Passive is true when the probe only listens for a banner
	Passive bool
	// PayloadSize is the length of the probe payload in bytes
	PayloadSize int
}

// KnownProbes lists the probe table in ascending port order.
func KnownProbes() []ProbeEntry {
	entries := make([]ProbeEntry, 0, len(serviceProbes))
	for port, probe := range serviceProbes {
		entries = append(entries, ProbeEntry{
			Port:        port,
			Service:     probe.Service,
			Passive:     len(probe.Payload) == 0,
			PayloadSize: len(probe.Payload),
		})
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].Port < entries[b].Port })
	return entries
}
