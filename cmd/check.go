package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/reality-cli/internal/checker"
	"github.com/sells-group/reality-cli/internal/report"
)

var checkCmd = &cobra.Command{
	Use:   "check [emergency|quick|full]",
	Short: "Run a consensus check and gate on the result",
	Long: `Probes the configured truth sources, aggregates their answers into a
consensus score, persists the report, and exits non-zero when the result
is BLOCKED.

Modes trade coverage for speed: emergency is a filesystem-only smoke test
within 10s, quick probes the fast sources within 30s, full probes
everything within 3 minutes.`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		modeArg := "quick"
		if len(args) == 1 {
			modeArg = args[0]
		}
		mode, err := checker.ParseMode(modeArg)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		rep, err := env.Aggregator.Run(ctx, mode)
		if err != nil {
			return err
		}

		if err := env.Emitter.Emit(ctx, rep); err != nil {
			// A run that happened but could not be persisted is still a run;
			// report the outcome and the persistence failure together.
			zap.L().Error("report persistence failed", zap.Error(err))
		}

		fmt.Print(report.Summary(rep))

		return report.Gate(rep)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
