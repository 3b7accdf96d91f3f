package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vidshape/logger"
	"vidshape/routes"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	err := cmd.ExecuteContext(ctx)
	logger.Close()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var logLevel string
	var logFile string

	rootCmd := &cobra.Command{
		Use:           "vidshape",
		Short:         "Video capture, resize and HLS packaging service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if logFile != "" {
				if err := logger.Init(logFile, true); err != nil {
					return err
				}
			}
			if logLevel != "" {
				level, ok := logger.ParseLevel(logLevel)
				if !ok {
					return fmt.Errorf("unknown log level %q", logLevel)
				}
				logger.SetLevel(level)
			}
			// stdout carries command output everywhere but serve
			if cmd.Name() != "serve" {
				logger.SetConsole(os.Stderr)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides VIDSHAPE_LOG_LEVEL")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this file")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newProbeCommand())
	rootCmd.AddCommand(newResizeCommand())
	rootCmd.AddCommand(newPackageCommand())
	rootCmd.AddCommand(newCaptureCommand())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := routes.Version()
			fmt.Fprintf(cmd.OutOrStdout(), "vidshape %s (%s, %s, built %s)\n", v.Version, v.GitCommit, v.GoVersion, v.BuildTime)
			return nil
		},
	})
	return rootCmd
}
