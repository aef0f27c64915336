package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/reality-cli/internal/report"
)

var baselineJSON bool

var baselineCmd = &cobra.Command{
	Use:   "baseline [YYYY-MM-DD]",
	Short: "Show the immutable baseline captured for a day (default today)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		day := time.Now().Format("2006-01-02")
		if len(args) == 1 {
			if _, err := time.Parse("2006-01-02", args[0]); err != nil {
				return fmt.Errorf("invalid day %q: %w", args[0], err)
			}
			day = args[0]
		}

		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		rep, err := st.GetBaseline(ctx, day)
		if err != nil {
			return err
		}
		if rep == nil {
			fmt.Printf("no baseline captured for %s\n", day)
			return nil
		}

		if baselineJSON {
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
	baselineCmd.Flags().BoolVar(&baselineJSON, "json", false, "print the full baseline report as JSON")
	rootCmd.AddCommand(baselineCmd)
}
