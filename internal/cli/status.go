package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent heartbeat runs",
	Run:   runStatus,
}

func runStatus(cmd *cobra.Command, args []string) {
	cp, err := buildControlPlane()
	if err != nil {
		fmt.Printf("Startup error: %v\n", err)
		os.Exit(1)
	}
	defer cp.Close()

	if cp.store.HeartbeatEnabled() {
		color.Green("Heartbeat: enabled")
	} else {
		color.Yellow("Heartbeat: disabled")
	}

	runs, err := cp.store.ListActionRuns(10)
	if err != nil {
		fmt.Printf("List error: %v\n", err)
		os.Exit(1)
	}
	for _, r := range runs {
		fmt.Printf("%s  %-10s %-8s %dms\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"), r.Action, r.Status, r.DurationMs)
	}
}
