package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the control-plane gateway",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	printHeader("🫀 Vivarium Control Plane")

	cp, err := buildControlPlane()
	if err != nil {
		fmt.Printf("Startup error: %v\n", err)
		os.Exit(1)
	}
	defer cp.Close()

	fmt.Printf("Data dir: %s\n", cp.cfg.Paths.DataDir)
	fmt.Printf("Roster:   %v\n", cp.cfg.Heartbeat.Roster)
	if cp.cfg.Gateway.SharedSecret == "" {
		fmt.Println("⚠️  No gateway secret configured; tick endpoint is open")
	}

	if err := cp.gateway.ListenAndServe(); err != nil {
		fmt.Printf("Gateway error: %v\n", err)
		os.Exit(1)
	}
}
