package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var capturesCmd = &cobra.Command{
	Use:   "captures",
	Short: "List stored production captures",
	Run: func(cmd *cobra.Command, args []string) {
		infos, err := engine.ListCaptures(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(infos) == 0 {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("\n%s No stored captures\n\n", yellow("✨"))
			return
		}
		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Println()
		for _, info := range infos {
			fmt.Printf("  %s  %-20s  %s  %d objects\n",
				cyan(info.ID), info.Name, info.CreatedAt.Format("2006-01-02 15:04:05"), info.ObjectCount)
		}
		fmt.Println()
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare <capture-id> <capture-id>",
	Short: "Diff two stored captures",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		for _, id := range args {
			if _, err := engine.LoadCapture(ctx, id); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}
		cmp, err := engine.CompareCaptures(args[0], args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Println()
		printObjectSet(green("+ added"), cmp.AddedObjects)
		printObjectSet(red("- removed"), cmp.RemovedObjects)
		printObjectSet(yellow("~ modified"), cmp.ModifiedObjects)
		fmt.Printf("  stack delta: %+d frames\n\n", cmp.StackDelta)
	},
}

func printObjectSet(label string, ids []string) {
	if len(ids) == 0 {
		fmt.Printf("  %s: none\n", label)
		return
	}
	fmt.Printf("  %s:\n", label)
	for _, id := range ids {
		fmt.Printf("      %s\n", id)
	}
}

func init() {
	rootCmd.AddCommand(capturesCmd)
	rootCmd.AddCommand(compareCmd)
}
