package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export a session to a portable JSON file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := engine.LoadSession(context.Background(), args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer engine.UnloadSession()

		data, err := engine.ExportSession()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		out := exportOut
		if out == "" {
			out = args[0] + ".json"
		}
		if err := os.WriteFile(out, data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Exported %s to %s (%d bytes)\n", green("✓"), args[0], out, len(data))
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a previously exported session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		sess, err := engine.ImportSession(context.Background(), data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		engine.UnloadSession()
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Imported %s (%d snapshots)\n", green("✓"), sess.ID, sess.Len())
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "Output file (default <session-id>.json)")
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
