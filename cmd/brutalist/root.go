package main

import (
	"context"

	"brutalist/cmd/brutalist/report"
	"brutalist/cmd/brutalist/server"

	"github.com/spf13/cobra"
)

func Execute() error {
	var rootCmd = &cobra.Command{
		Use:   "brutalist",
		Short: "Run the brutalist.report analysis script",
		Long:  `Brutalist runs brutalist_report.py, streams its progress, and keeps the grouped headline results`,
	}

	rootCmd.AddCommand(report.NewReportCommand())
	rootCmd.AddCommand(report.NewTopicsCommand())
	rootCmd.AddCommand(report.NewShowCommand())
	rootCmd.AddCommand(server.NewServerCommand())
	return rootCmd.ExecuteContext(context.Background())
}
