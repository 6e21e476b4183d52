package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pulsedev/retrace"
	"github.com/pulsedev/retrace/internal/config"
	"github.com/pulsedev/retrace/internal/storage/sqlite"
)

var (
	cfgPath string
	cfg     config.Config
	engine  *retrace.Engine
)

var rootCmd = &cobra.Command{
	Use:   "retrace",
	Short: "Time-travel debugger for recorded executions",
	Long: `retrace records program execution step by step and lets you navigate
the recording bidirectionally: step forward and backward, continue to
breakpoints in either direction, watch expressions over time, and diff
named snapshots of the heap.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		store, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open database %s: %w", cfg.DatabasePath, err)
		}
		engine = retrace.New(cfg, store)
		engine.SetLogSink(func(msg string) {
			fmt.Fprintln(os.Stderr, msg)
		})
		if _, err := engine.RestoreBreakpoints(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to restore breakpoints: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if engine != nil {
			engine.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", ".retrace/config.yaml", "Path to the config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
