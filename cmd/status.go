package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/reality-cli/internal/report"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the most recent consensus report",
	RunE: func(cmd *cobra.Command, args []string) error {
		emitter := report.NewEmitter(cfg.Report.Dir, nil)
		rep, err := emitter.Latest()
		if err != nil {
			return err
		}
		if rep == nil {
			fmt.Println("no reality check has run yet")
			return nil
		}

		if statusJSON {
			data, err := json.MarshalIndent(rep, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		fmt.Print(report.Summary(rep))
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the full report as JSON")
	rootCmd.AddCommand(statusCmd)
}
