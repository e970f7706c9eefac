package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go-rivermind/internal/logger"

	"github.com/spf13/cobra"
)

// Version is the riverctl release
const Version = "0.1.0"

var logLevel string

var rootCmd = &cobra.Command{
	Use:     "riverctl",
	Short:   "Offline river footage analysis and classification",
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Configure(os.Stderr, logLevel)
	},
	SilenceUsage: true,
}

// Execute runs the root command until it finishes or the process is interrupted
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
}
