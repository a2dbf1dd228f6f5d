package scanning

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePortRange(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		want    PortRange
		wantErr bool
	}{
		{name: "single port", spec: "80", want: PortRange{Min: 80, Max: 80}},
		{name: "simple range", spec: "20-1000", want: PortRange{Min: 20, Max: 1000}},
		{name: "full range", spec: "1-65535", want: PortRange{Min: 1, Max: 65535}},
		{name: "whitespace tolerated", spec: " 22 - 80 ", want: PortRange{Min: 22, Max: 80}},
		{name: "degenerate range", spec: "443-443", want: PortRange{Min: 443, Max: 443}},
		{name: "empty", spec: "", wantErr: true},
		{name: "inverted", spec: "200-100", wantErr: true},
		{name: "zero port", spec: "0-100", wantErr: true},
		{name: "port too large", spec: "1-70000", wantErr: true},
		{name: "not a number", spec: "http", wantErr: true},
		{name: "too many parts", spec: "1-2-3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePortRange(tt.spec)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPortRangeValidate(t *testing.T) {
	t.Run("accepts valid range", func(t *testing.T) {
		assert.NoError(t, PortRange{Min: 1, Max: 65535}.Validate())
		assert.NoError(t, PortRange{Min: 80, Max: 80}.Validate())
	})

	t.Run("rejects inverted range", func(t *testing.T) {
		assert.Error(t, PortRange{Min: 200, Max: 100}.Validate())
	})

	t.Run("rejects zero start", func(t *testing.T) {
		assert.Error(t, PortRange{Min: 0, Max: 100}.Validate())
	})
}

func TestPortRangeCount(t *testing.T) {
	assert.Equal(t, 1, PortRange{Min: 80, Max: 80}.Count())
	assert.Equal(t, 6, PortRange{Min: 20, Max: 25}.Count())
	assert.Equal(t, 65535, PortRange{Min: 1, Max: 65535}.Count())
}

func TestPortRangeContains(t *testing.T) {
	r := PortRange{Min: 20, Max: 25}
	assert.True(t, r.Contains(20))
	assert.True(t, r.Contains(25))
	assert.False(t, r.Contains(19))
	assert.False(t, r.Contains(26))
}

func TestTargetString(t *testing.T) {
	t.Run("hostname with resolved address", func(t *testing.T) {
		target := NewTarget("example.com", net.ParseIP("93.184.216.34"))
		assert.Equal(t, "example.com (93.184.216.34)", target.String())
	})

	t.Run("ip literal", func(t *testing.T) {
		target := NewTarget("127.0.0.1", net.ParseIP("127.0.0.1"))
		assert.Equal(t, "127.0.0.1", target.String())
	})
}

func TestScanReportHelpers(t *testing.T) {
	target := NewTarget("localhost", net.ParseIP("127.0.0.1"))
	report := newScanReport(target, PortRange{Min: 20, Max: 24})
	require.NotEqual(t, "", report.ID.String())

	report.Outcomes[20] = ProbeOutcome{Port: 20, State: PortStateClosed, Service: ServiceUnknown}
	report.Outcomes[21] = ProbeOutcome{Port: 21, State: PortStateOpen, Service: ServiceFTP}
	report.Outcomes[22] = ProbeOutcome{Port: 22, State: PortStateOpen, Service: ServiceSSH}
	report.Outcomes[23] = ProbeOutcome{Port: 23, State: PortStateError, Service: ServiceUnknown, Reason: "TIMEOUT"}
	report.Outcomes[24] = ProbeOutcome{Port: 24, State: PortStateClosed, Service: ServiceUnknown}

	t.Run("counts by state", func(t *testing.T) {
		open, closedPorts, errored := report.Counts()
		assert.Equal(t, 2, open)
		assert.Equal(t, 2, closedPorts)
		assert.Equal(t, 1, errored)
	})

	t.Run("open ports sorted ascending", func(t *testing.T) {
		openPorts := report.OpenPorts()
		require.Len(t, openPorts, 2)
		assert.Equal(t, uint16(21), openPorts[0].Port)
		assert.Equal(t, uint16(22), openPorts[1].Port)
	})

	t.Run("errored ports", func(t *testing.T) {
		errored := report.ErroredPorts()
		require.Len(t, errored, 1)
		assert.Equal(t, uint16(23), errored[0].Port)
	})

	t.Run("complete sets duration", func(t *testing.T) {
		report.complete()
		assert.False(t, report.EndTime.IsZero())
		assert.GreaterOrEqual(t, report.Duration.Nanoseconds(), int64(0))
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, defaultConnectTimeout, cfg.ConnectTimeout)
	assert.Equal(t, defaultProbeTimeout, cfg.ProbeTimeout)
	assert.Equal(t, defaultMaxWorkers, cfg.MaxWorkers)
	assert.Equal(t, defaultIdentifyLimit, cfg.IdentifyLimit)
	assert.True(t, cfg.ServiceDetection)
}
