package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sawpanic/viralrisk/internal/config/risk"
	"github.com/sawpanic/viralrisk/internal/config/versions"
)

func newABTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "abtest",
		Short: "Run A/B tests between two scoring configurations",
	}

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start an A/B test",
		Long:  "Starts a test between two configuration files. An omitted arm uses the current configuration.",
		Args:  cobra.NoArgs,
		RunE: withRuntime(func(cmd *cobra.Command, rt *runtime, _ []string) (interface{}, error) {
			flags := cmd.Flags()
			a, err := armConfig(cmd.Context(), rt, stringFlag(flags, "a"))
			if err != nil {
				return nil, err
			}
			b, err := armConfig(cmd.Context(), rt, stringFlag(flags, "b"))
			if err != nil {
				return nil, err
			}
			split, _ := flags.GetFloat64("split")
			id, err := rt.engine.StartABTest(cmd.Context(), a, b, stringFlag(flags, "name"), split)
			if err != nil {
				return nil, err
			}
			return rt.engine.ABTestStats(cmd.Context(), id)
		}),
	}
	startCmd.Flags().String("a", "", "Config file for arm A (default: current config)")
	startCmd.Flags().String("b", "", "Config file for arm B (default: current config)")
	startCmd.Flags().String("name", "", "Test name (required)")
	startCmd.Flags().Float64("split", 0.5, "Share of subjects assigned to arm A")
	_ = startCmd.MarkFlagRequired("name")

	stopCmd := &cobra.Command{
		Use:   "stop <test-id>",
		Short: "Stop an A/B test and print its final counters",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(func(cmd *cobra.Command, rt *runtime, args []string) (interface{}, error) {
			return rt.engine.StopABTest(cmd.Context(), args[0])
		}),
	}

	statsCmd := &cobra.Command{
		Use:   "stats <test-id>",
		Short: "Print an A/B test with its assignment counters",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(func(cmd *cobra.Command, rt *runtime, args []string) (interface{}, error) {
			return rt.engine.ABTestStats(cmd.Context(), args[0])
		}),
	}

	resolveCmd := &cobra.Command{
		Use:   "resolve <test-id> <subject-id>",
		Short: "Show which arm and configuration a subject receives",
		Args:  cobra.ExactArgs(2),
		RunE: withRuntime(func(cmd *cobra.Command, rt *runtime, args []string) (interface{}, error) {
			cfg, arm, err := rt.engine.ResolveABTest(cmd.Context(), args[0], args[1])
			if err != nil {
				return nil, err
			}
			return resolution{TestID: args[0], SubjectID: args[1], Arm: arm, Config: cfg}, nil
		}),
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List A/B test ids",
		Args:  cobra.NoArgs,
		RunE: withRuntime(func(cmd *cobra.Command, rt *runtime, _ []string) (interface{}, error) {
			return rt.engine.ListABTests(cmd.Context())
		}),
	}

	cmd.AddCommand(startCmd, stopCmd, statsCmd, resolveCmd, listCmd)
	return cmd
}

type resolution struct {
	TestID    string       `json:"testId"`
	SubjectID string       `json:"subjectId"`
	Arm       versions.Arm `json:"arm"`
	Config    risk.Config  `json:"config"`
}

func armConfig(ctx context.Context, rt *runtime, path string) (risk.Config, error) {
	if path != "" {
		return risk.LoadFile(path)
	}
	current, err := rt.engine.CurrentConfig(ctx)
	if err != nil {
		return risk.Config{}, err
	}
	return current.Config, nil
}
