package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/pacer/internal/cache"
	"github.com/dusk-indust/pacer/internal/export"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [output-dir]",
		Short: "Show the cache and artifacts of an output directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "pacer-out"
			if len(args) > 0 {
				dir = args[0]
			}
			return printStatus(cmd, dir)
		},
	}
}

func printStatus(cmd *cobra.Command, dir string) error {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Output: %s\n\n", dir)

	info := cache.Scan(dir)
	if info.Exists {
		fmt.Fprintf(w, "  preparation cache  [%s]\n", info.CreatedAt.Local().Format(time.DateTime))
		for _, in := range info.Inputs {
			fmt.Fprintf(w, "    %s\n", in)
		}
	} else {
		fmt.Fprintln(w, "  preparation cache  [missing]")
	}

	for _, name := range []string{export.ReportFile, export.PlanFile, export.GanttFile, export.WorkflowResultFile} {
		label := "missing"
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			label = "present"
		}
		fmt.Fprintf(w, "  %-19s [%s]\n", name, label)
	}

	if !info.Exists {
		fmt.Fprintln(w, "\nRun 'pacer run --output "+dir+"' to analyze activities.")
	}
	return nil
}
