package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"lendhub.GO/config"
	"lendhub.GO/cron/jobs"
)

var sweepCmd = &cobra.Command{
	Use:   "lending:sweep",
	Short: "Run one expiry sweep over uncollected approved reservations",
	Run: func(cmd *cobra.Command, args []string) {
		db, err := config.NewDB()
		if err != nil {
			fmt.Printf("Database connection failed: %v\n", err)
			return
		}
		jobs.Init(db, config.LendingPolicy())
		jobs.ExpirySweepJob(args...)
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
