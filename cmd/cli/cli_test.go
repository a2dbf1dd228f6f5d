package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/probemap/probemap/internal/scanning"
)

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "probemap" {
		t.Errorf("Expected root command use 'probemap', got '%s'", rootCmd.Use)
	}

	commands := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		commands[cmd.Name()] = true
	}

	for _, name := range []string{"scan", "services"} {
		if !commands[name] {
			t.Errorf("Expected root command to have '%s' subcommand", name)
		}
	}
}

func TestScanCommandFlags(t *testing.T) {
	flags := []string{"ports", "connect-timeout", "probe-timeout", "no-identify", "json"}
	for _, name := range flags {
		if scanCmd.Flags().Lookup(name) == nil {
			t.Errorf("Expected scan command to have '%s' flag", name)
		}
	}

	if flag := scanCmd.Flags().Lookup("ports"); flag != nil && flag.Shorthand != "p" {
		t.Errorf("Expected ports flag shorthand 'p', got '%s'", flag.Shorthand)
	}
}

func TestScanCommandRequiresTarget(t *testing.T) {
	if scanCmd.Args == nil {
		t.Fatal("Scan command should validate arguments")
	}

	if err := scanCmd.Args(scanCmd, []string{}); err == nil {
		t.Error("Scan command should reject zero arguments")
	}
	if err := scanCmd.Args(scanCmd, []string{"localhost"}); err != nil {
		t.Errorf("Scan command should accept one argument, got error: %v", err)
	}
	if err := scanCmd.Args(scanCmd, []string{"a", "b"}); err == nil {
		t.Error("Scan command should reject two arguments")
	}
}

func TestVersionHandling(t *testing.T) {
	origVersion, origCommit, origBuildTime := version, commit, buildTime
	defer SetVersion(origVersion, origCommit, origBuildTime)

	SetVersion("1.2.3", "abc123", "2024-01-01")

	got := getVersion()
	for _, want := range []string{"1.2.3", "abc123", "2024-01-01"} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected version string to contain '%s', got '%s'", want, got)
		}
	}
	if rootCmd.Version != got {
		t.Error("SetVersion should update the root command version")
	}
}

func TestSetConfigDefaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	setConfigDefaults()

	if got := viper.GetString("scanning.default_ports"); got != "1-65535" {
		t.Errorf("Expected default ports '1-65535', got '%s'", got)
	}
	if got := viper.GetInt("scanning.max_workers"); got != 100 {
		t.Errorf("Expected default max_workers 100, got %d", got)
	}
	if got := viper.GetDuration("scanning.connect_timeout"); got != time.Second {
		t.Errorf("Expected default connect_timeout 1s, got %v", got)
	}
	if !viper.GetBool("scanning.service_detection") {
		t.Error("Expected service detection enabled by default")
	}
	if got := viper.GetString("logging.level"); got != "info" {
		t.Errorf("Expected default log level 'info', got '%s'", got)
	}
}

// captureStdout runs fn with stdout redirected to a pipe and returns
// what was written.
func captureStdout(t *testing.T, fn func() error) string {
	t.Helper()

	orig := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	if err := fn(); err != nil {
		t.Fatal(err)
	}
	_ = w.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatal(err)
	}
	return buf.String()
}

func testReport(t *testing.T) *scanning.ScanReport {
	t.Helper()

	cfg := scanning.DefaultConfig()
	cfg.ServiceDetection = false
	scanner := scanning.NewScanner(cfg)

	target := scanning.NewTarget("localhost", net.ParseIP("127.0.0.1"))
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	port := uint16(listener.Addr().(*net.TCPAddr).Port)
	report, err := scanner.Scan(context.Background(), target, scanning.PortRange{Min: port, Max: port})
	if err != nil {
		t.Fatal(err)
	}
	return report
}

func TestDisplayReport(t *testing.T) {
	report := testReport(t)

	output := captureStdout(t, func() error {
		displayReport(report)
		return nil
	})

	if !strings.Contains(output, "1 open") {
		t.Errorf("Expected report summary with open count, got:\n%s", output)
	}
	if !strings.Contains(output, "is open") {
		t.Errorf("Expected per-port open line, got:\n%s", output)
	}
}

func TestDisplayReportJSON(t *testing.T) {
	report := testReport(t)

	output := captureStdout(t, func() error {
		return displayReportJSON(report)
	})

	var decoded struct {
		ScanID  string `json:"scan_id"`
		Target  string `json:"target"`
		Address string `json:"address"`
		Results []struct {
			Port  uint16 `json:"port"`
			State string `json:"state"`
		} `json:"results"`
	}
	if err := json.Unmarshal([]byte(output), &decoded); err != nil {
		t.Fatalf("Output should be valid JSON: %v\n%s", err, output)
	}

	if decoded.Target != "localhost" {
		t.Errorf("Expected target 'localhost', got '%s'", decoded.Target)
	}
	if decoded.Address != "127.0.0.1" {
		t.Errorf("Expected address '127.0.0.1', got '%s'", decoded.Address)
	}
	if len(decoded.Results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(decoded.Results))
	}
	if decoded.Results[0].State != "open" {
		t.Errorf("Expected open state, got '%s'", decoded.Results[0].State)
	}
}
