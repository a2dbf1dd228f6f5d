// Package scanning implements the concurrent TCP scan engine: bounded
// connection probing, protocol-aware service identification for the
// leading ports of a range, and result aggregation into a per-scan
// report.
package scanning

import (
	"context"
	"fmt"
	"time"

	proberrors "github.com/probemap/probemap/internal/errors"
	"github.com/probemap/probemap/internal/logging"
	"github.com/probemap/probemap/internal/metrics"
	"github.com/probemap/probemap/internal/workers"
)

// Scanner orchestrates a scan: it fans the port range out to a capped
// worker pool, drives the prober (and, for eligible ports, the
// identifier) per port, and collects exactly one outcome per port.
type Scanner struct {
	cfg        Config
	prober     *Prober
	identifier *Identifier
}

// NewScanner creates a scanner from the given engine configuration.
func NewScanner(cfg Config) *Scanner {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = defaultMaxWorkers
	}
	if cfg.IdentifyLimit < 0 {
		cfg.IdentifyLimit = 0
	}
	return &Scanner{
		cfg:        cfg,
		prober:     NewProber(cfg.ConnectTimeout),
		identifier: NewIdentifier(cfg.ProbeTimeout),
	}
}

// portJob probes a single port and reports its outcome to the
// collector. Per-port faults are absorbed into the outcome and never
// surface as job errors.
type portJob struct {
	ctx      context.Context
	target   Target
	port     uint16
	identify bool

	prober     *Prober
	identifier *Identifier
	outcomes   chan<- ProbeOutcome
}

func (j *portJob) Execute(_ context.Context) error {
	// Best-effort cancellation, checked once before any I/O. An
	// in-flight probe still respects its own timeout.
	if err := j.ctx.Err(); err != nil {
		j.outcomes <- ProbeOutcome{
			Port:    j.port,
			State:   PortStateError,
			Service: ServiceUnknown,
			Reason:  string(proberrors.CodeCanceled),
		}
		return nil
	}

	outcome, conn := j.prober.Probe(j.ctx, j.target.Addr, j.port, j.identify)
	if conn != nil {
		// Identify closes the connection on every path.
		outcome.Service = j.identifier.Identify(conn, j.port)
	}

	j.outcomes <- outcome
	return nil
}

func (j *portJob) ID() string {
	return fmt.Sprintf("port-%d", j.port)
}

func (j *portJob) Type() string {
	return "probe"
}

// Scan runs one complete scan of the target over the port range. The
// returned report holds exactly one outcome per requested port and is
// only handed back after every worker has terminated. Invalid range
// input is the sole fatal error; individual port failures are recorded
// as outcomes.
func (s *Scanner) Scan(ctx context.Context, target Target, r PortRange) (*ScanReport, error) {
	if err := r.Validate(); err != nil {
		metrics.GetGlobalMetrics().IncrementScansTotal("rejected")
		return nil, proberrors.WrapScanError(proberrors.CodeInvalidRange, "invalid port range", err)
	}

	report := newScanReport(target, r)
	logger := logging.Default().
		WithScanID(report.ID.String()).
		WithTarget(target.String())

	portCount := r.Count()
	poolSize := portCount
	if poolSize > s.cfg.MaxWorkers {
		poolSize = s.cfg.MaxWorkers
	}

	logger.Info("Starting scan",
		"ports", r.String(),
		"port_count", portCount,
		"workers", poolSize)

	scanStart := time.Now()
	defer func() {
		metrics.GetGlobalMetrics().RecordScanDuration(time.Since(scanStart))
	}()

	pool := workers.New(workers.Config{
		Size:      poolSize,
		QueueSize: portCount,
		// One ProbeOutcome per port; errored ports stay errored
		// within a scan invocation.
		MaxRetries:      0,
		ShutdownTimeout: s.shutdownTimeout(portCount, poolSize),
	})
	pool.Start()

	outcomes := make(chan ProbeOutcome, poolSize)

	for port := r.Min; ; port++ {
		job := &portJob{
			ctx:        ctx,
			target:     target,
			port:       port,
			identify:   s.identifyEligible(r, port),
			prober:     s.prober,
			identifier: s.identifier,
			outcomes:   outcomes,
		}
		if err := pool.Submit(job); err != nil {
			// Queue is sized to the full range, so submission
			// cannot fail on valid input.
			_ = pool.Shutdown()
			return nil, proberrors.WrapScanError(proberrors.CodeScanFailed, "failed to dispatch work", err)
		}
		if port == r.Max {
			break
		}
	}

	// The collector is the only writer of the report map; workers hand
	// outcomes over by message, never touching shared state.
	for i := 0; i < portCount; i++ {
		outcome := <-outcomes
		report.Outcomes[outcome.Port] = outcome
		metrics.GetGlobalMetrics().IncrementPortsScanned(string(outcome.State))
	}

	if err := pool.Shutdown(); err != nil {
		logger.Warn("Worker pool shutdown reported error", "error", err)
	}

	report.complete()
	metrics.GetGlobalMetrics().IncrementScansTotal("success")

	open, closedPorts, errored := report.Counts()
	logger.Info("Scan completed",
		"duration", report.Duration,
		"open", open,
		"closed", closedPorts,
		"errored", errored)

	return report, nil
}

// identifyEligible reports whether a port qualifies for service
// identification: only the first IdentifyLimit ports of the range,
// counted in range order rather than by absolute port number.
func (s *Scanner) identifyEligible(r PortRange, port uint16) bool {
	if !s.cfg.ServiceDetection {
		return false
	}
	return int(port)-int(r.Min) < s.cfg.IdentifyLimit
}

// shutdownTimeout bounds pool teardown by the worst-case queue drain:
// every queued port paying full connect and probe timeouts.
func (s *Scanner) shutdownTimeout(portCount, poolSize int) time.Duration {
	perPort := s.prober.Timeout() + s.identifier.Timeout()
	waves := (portCount + poolSize - 1) / poolSize
	timeout := time.Duration(waves) * perPort * 2
	if timeout < 30*time.Second {
		timeout = 30 * time.Second
	}
	return timeout
}
