package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one heartbeat tick locally and print the report",
	Run:   runTick,
}

func runTick(cmd *cobra.Command, args []string) {
	cp, err := buildControlPlane()
	if err != nil {
		fmt.Printf("Startup error: %v\n", err)
		os.Exit(1)
	}
	defer cp.Close()

	if !cp.store.HeartbeatEnabled() {
		color.Yellow("Heartbeat is disabled (settings key heartbeat_enabled)")
		return
	}

	report := cp.controller.Tick(context.Background())
	for _, name := range report.Order {
		slot := report.Phases[name]
		var failure struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(slot, &failure) == nil && failure.Error != "" {
			color.Red("✗ %-20s %s", name, failure.Error)
			continue
		}
		color.Green("✓ %-20s %s", name, string(slot))
	}
	fmt.Printf("\n%d phases in %dms, %d failed\n", len(report.Order), report.DurationMs, len(report.Failed))
}
