package cmd

import (
	"fmt"
	"os"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lendhub",
	Short: "LendHub resource lending and enrollment CLI",
	Run: func(cmd *cobra.Command, args []string) {
		figure.NewFigure("LendHub", "", true).Print()
		fmt.Println()
		cmd.Help()
	},
}

// Execute runs the root command. Called from the cli build-tag main.
func Execute() {
	Apply()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
