package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/probemap/probemap/internal/resolve"
	"github.com/probemap/probemap/internal/scanning"
)

var (
	scanPorts          string
	scanConnectTimeout time.Duration
	scanProbeTimeout   time.Duration
	scanNoIdentify     bool
	scanJSONOutput     bool
)

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan [target]",
	Short: "Scan a host for open ports and services",
	Long: `Scan a target host over an inclusive TCP port range. Open ports in
the leading portion of the range are probed further to identify the
service behind them. The target may be a hostname or an IP address;
hostnames are resolved once before the scan starts.`,
	Example: `  probemap scan 192.168.1.10
  probemap scan example.com --ports 1-1000
  probemap scan localhost --ports 20-80 --connect-timeout 500ms
  probemap scan 10.0.0.1 --ports 22 --no-identify`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVarP(&scanPorts, "ports", "p", "", "Port range to scan, e.g. '80' or '1-1000' (default from config)")
	scanCmd.Flags().DurationVar(&scanConnectTimeout, "connect-timeout", 0, "Timeout per connection attempt")
	scanCmd.Flags().DurationVar(&scanProbeTimeout, "probe-timeout", 0, "Timeout per service identification probe")
	scanCmd.Flags().BoolVar(&scanNoIdentify, "no-identify", false, "Skip service identification entirely")
	scanCmd.Flags().BoolVar(&scanJSONOutput, "json", false, "Write the report as JSON")
}

func runScan(_ *cobra.Command, args []string) error {
	host := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	portSpec := scanPorts
	if portSpec == "" {
		portSpec = cfg.Scanning.DefaultPorts
	}
	portRange, err := scanning.ParsePortRange(portSpec)
	if err != nil {
		return fmt.Errorf("invalid port specification %q: %w", portSpec, err)
	}

	engineCfg := cfg.EngineConfig()
	if scanConnectTimeout > 0 {
		engineCfg.ConnectTimeout = scanConnectTimeout
	}
	if scanProbeTimeout > 0 {
		engineCfg.ProbeTimeout = scanProbeTimeout
	}
	if scanNoIdentify {
		engineCfg.ServiceDetection = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolver := resolve.New(engineCfg.ConnectTimeout)
	addr, err := resolver.Resolve(ctx, host)
	if err != nil {
		return fmt.Errorf("resolving target: %w", err)
	}

	target := scanning.NewTarget(host, addr)
	if !scanJSONOutput {
		fmt.Printf("Scanning %s ports %s...\n", target, portRange)
	}

	scanner := scanning.NewScanner(engineCfg)
	report, err := scanner.Scan(ctx, target, portRange)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if scanJSONOutput {
		return displayReportJSON(report)
	}
	displayReport(report)
	return nil
}

// displayReport renders the scan report for the terminal.
func displayReport(report *scanning.ScanReport) {
	open, closedPorts, errored := report.Counts()

	fmt.Printf("\nScan of %s completed in %v\n", report.Target, report.Duration.Round(time.Millisecond))
	fmt.Printf("%d ports scanned: %d open, %d closed, %d errored\n\n",
		report.Range.Count(), open, closedPorts, errored)

	openPorts := report.OpenPorts()
	if len(openPorts) == 0 {
		fmt.Println("No open ports found")
	} else {
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Port", "State", "Service", "Latency")
		for _, outcome := range openPorts {
			_ = table.Append([]string{
				strconv.Itoa(int(outcome.Port)),
				string(outcome.State),
				string(outcome.Service),
				outcome.Latency.Round(time.Microsecond).String(),
			})
		}
		_ = table.Render()

		fmt.Println()
		for _, outcome := range openPorts {
			fmt.Printf("Port %d is open (Service: %s)\n", outcome.Port, outcome.Service)
		}
	}

	if errored > 0 && verbose {
		fmt.Println("\nErrored ports:")
		for _, outcome := range report.ErroredPorts() {
			fmt.Printf("Port %d: %s\n", outcome.Port, outcome.Reason)
		}
	}
}

// displayReportJSON writes the report as JSON to stdout.
func displayReportJSON(report *scanning.ScanReport) error {
	type portEntry struct {
		Port    uint16 `json:"port"`
		State   string `json:"state"`
		Service string `json:"service,omitempty"`
		Reason  string `json:"reason,omitempty"`
	}

	output := struct {
		ScanID   string      `json:"scan_id"`
		Target   string      `json:"target"`
		Address  string      `json:"address"`
		Ports    string      `json:"ports"`
		Duration string      `json:"duration"`
		Results  []portEntry `json:"results"`
	}{
		ScanID:   report.ID.String(),
		Target:   report.Target.Host,
		Address:  report.Target.Addr.String(),
		Ports:    report.Range.String(),
		Duration: report.Duration.String(),
	}

	for port := report.Range.Min; ; port++ {
		if outcome, ok := report.Outcomes[port]; ok {
			entry := portEntry{
				Port:   outcome.Port,
				State:  string(outcome.State),
				Reason: outcome.Reason,
			}
			if outcome.State == scanning.PortStateOpen {
				entry.Service = string(outcome.Service)
			}
			output.Results = append(output.Results, entry)
		}
		if port == report.Range.Max {
			break
		}
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
