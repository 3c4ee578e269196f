package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/viralrisk/internal/application"
	"github.com/sawpanic/viralrisk/internal/tune/data"
	"github.com/sawpanic/viralrisk/internal/tune/report"
)

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Tune weights and thresholds from historical outcomes",
		Long: `Collects analyzed items and their observed engagement (or reads --samples),
grid-searches weights and thresholds for the best macro F1 on a held-out split,
and with --publish publishes the result when it beats the current configuration.`,
		RunE: runTrain,
	}
	cmd.Flags().String("from", "", "Start of the collection window (RFC3339 or YYYY-MM-DD, default: lookback before --to)")
	cmd.Flags().String("to", "", "End of the collection window (RFC3339 or YYYY-MM-DD, default: now)")
	cmd.Flags().Int64("min-engagement", -1, "Minimum engagement for an item to be used (default from config)")
	cmd.Flags().Int("limit", 0, "Maximum number of items to collect (0 = no limit)")
	cmd.Flags().Float64("validation-split", 0, "Held-out fraction (default from config)")
	cmd.Flags().Bool("publish", false, "Publish the optimal configuration when it improves on the current one")
	cmd.Flags().String("author", "", "Author recorded with a published version")
	cmd.Flags().String("samples", "", "Train on samples from a JSON or JSONL file instead of the database")
	cmd.Flags().String("save-samples", "", "Write the collected samples to this JSON file")
	cmd.Flags().String("report", "", "Write a markdown training report to this path")
	return cmd
}

func runTrain(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()

	req := application.TrainRequest{
		MinEngagement: appConfig.Training.MinEngagement,
		Publish:       appConfig.Training.Publish,
		Author:        stringFlag(flags, "author"),
	}
	if flags.Changed("publish") {
		req.Publish, _ = flags.GetBool("publish")
	}
	if v, _ := flags.GetInt64("min-engagement"); v >= 0 {
		req.MinEngagement = v
	}
	req.Limit, _ = flags.GetInt("limit")
	req.ValidationSplit, _ = flags.GetFloat64("validation-split")

	to := time.Now().UTC()
	if s := stringFlag(flags, "to"); s != "" {
		t, err := parseTime(s)
		if err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}
		to = t
	}
	from := to.AddDate(0, 0, -appConfig.Training.LookbackDays)
	if s := stringFlag(flags, "from"); s != "" {
		t, err := parseTime(s)
		if err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}
		from = t
	}
	if !from.Before(to) {
		return fmt.Errorf("--from %s must be before --to %s", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	req.From, req.To = from, to

	if path := stringFlag(flags, "samples"); path != "" {
		samples, err := data.LoadSamples(path)
		if err != nil {
			return err
		}
		req.Samples = samples
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, commandTimeout())
	rt, err := buildRuntime(initCtx, appConfig)
	cancel()
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := rt.engine.Train(ctx, req)
	if err != nil {
		return err
	}

	if path := stringFlag(flags, "save-samples"); path != "" && res.Collection != nil {
		if err := data.SaveSamples(path, res.Collection.Samples); err != nil {
			return err
		}
		log.Info().Str("path", path).Int("samples", len(res.Collection.Samples)).Msg("Training samples saved")
	}

	if path := stringFlag(flags, "report"); path != "" {
		if err := report.NewReportGenerator().GenerateReport(path, res.Result, res.BaselineConfig, res.PublishedVersion); err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("Training report written")
	}

	if res.Collection != nil {
		// stdout carries the counts only
		res.Collection.Samples = nil
	}
	return printJSON(cmd.OutOrStdout(), res)
}

// parseTime accepts RFC3339 timestamps or bare UTC dates
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
