package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vivarium-collective/vivarium/internal/cron"
	"github.com/vivarium-collective/vivarium/internal/store"
)

var schedulesCmd = &cobra.Command{
	Use:   "schedules",
	Short: "List cron schedules",
	Run:   runSchedules,
}

var scheduleAddCmd = &cobra.Command{
	Use:   "add <name> <agent> <cron-expr>",
	Short: "Add a cron schedule",
	Args:  cobra.ExactArgs(3),
	Run:   runScheduleAdd,
}

var (
	scheduleTZ     string
	schedulePrompt string
)

func init() {
	scheduleAddCmd.Flags().StringVar(&scheduleTZ, "tz", "UTC", "IANA timezone for the schedule")
	scheduleAddCmd.Flags().StringVar(&schedulePrompt, "prompt", "", "prompt dispatched when the schedule fires")
	schedulesCmd.AddCommand(scheduleAddCmd)
}

func runSchedules(cmd *cobra.Command, args []string) {
	cp, err := buildControlPlane()
	if err != nil {
		fmt.Printf("Startup error: %v\n", err)
		os.Exit(1)
	}
	defer cp.Close()

	schedules, err := cp.store.ListSchedules(false)
	if err != nil {
		fmt.Printf("List error: %v\n", err)
		os.Exit(1)
	}
	if len(schedules) == 0 {
		fmt.Println("No schedules.")
		return
	}

	now := time.Now()
	for _, sc := range schedules {
		state := " "
		if !sc.Enabled {
			state = "⏸"
		}
		next := cron.NextFireAt(sc.CronExpr, sc.Timezone, now)
		fmt.Printf("%s %-24s %-12s %-16s %s  next %s\n",
			state, sc.Name, sc.AgentID, sc.CronExpr, sc.Timezone, next.Format("2006-01-02 15:04 MST"))
	}
}

func runScheduleAdd(cmd *cobra.Command, args []string) {
	cp, err := buildControlPlane()
	if err != nil {
		fmt.Printf("Startup error: %v\n", err)
		os.Exit(1)
	}
	defer cp.Close()

	sc, err := cp.store.CreateSchedule(&store.CronSchedule{
		Name:     args[0],
		AgentID:  args[1],
		CronExpr: args[2],
		Timezone: scheduleTZ,
		Prompt:   schedulePrompt,
		Enabled:  true,
	})
	if err != nil {
		fmt.Printf("Create error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Created schedule %q (#%d)\n", sc.Name, sc.ID)
}
