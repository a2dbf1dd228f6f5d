package cli

import (
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/probemap/probemap/internal/scanning"
)

// servicesCmd represents the services command.
var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List the service identification probe table",
	Long: `Show the well-known ports the scanner can identify, the service
conventionally bound to each, and whether identification sends an
active probe or passively reads the banner.`,
	Run: runServices,
}

func init() {
	rootCmd.AddCommand(servicesCmd)
}

func runServices(_ *cobra.Command, _ []string) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Port", "Service", "Probe", "Payload Bytes")

	for _, entry := range scanning.KnownProbes() {
		probeKind := "active"
		if entry.Passive {
			probeKind = "passive"
		}
		_ = table.Append([]string{
			strconv.Itoa(int(entry.Port)),
			string(entry.Service),
			probeKind,
			strconv.Itoa(entry.PayloadSize),
		})
	}

	_ = table.Render()
}
