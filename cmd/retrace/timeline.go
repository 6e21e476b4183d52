package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var timelineLimit int

var timelineCmd = &cobra.Command{
	Use:   "timeline <session-id>",
	Short: "Print a session's execution timeline",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := engine.LoadSession(context.Background(), args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer engine.UnloadSession()

		sess := engine.Replayer().Session()
		summaries := sess.Summaries()
		if timelineLimit > 0 && len(summaries) > timelineLimit {
			summaries = summaries[:timelineLimit]
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		dim := color.New(color.Faint).SprintFunc()
		fmt.Printf("\n%s  %d snapshots over %s\n\n", cyan(sess.ID), sess.Len(), sess.Duration().Round(time.Millisecond))
		for _, summary := range summaries {
			indent := ""
			for i := 1; i < summary.Depth; i++ {
				indent += "  "
			}
			fmt.Printf("  %4d  %s  %s%-16s  %s\n",
				summary.Sequence,
				dim(summary.Timestamp.Format("15:04:05.000")),
				indent, summary.Event, summary.Location)
		}
		if timelineLimit > 0 && sess.Len() > timelineLimit {
			fmt.Printf("  %s\n", dim(fmt.Sprintf("… %d more", sess.Len()-timelineLimit)))
		}
		fmt.Println()
	},
}

func init() {
	timelineCmd.Flags().IntVarP(&timelineLimit, "limit", "n", 0, "Show at most n snapshots (0 = all)")
	rootCmd.AddCommand(timelineCmd)
}
