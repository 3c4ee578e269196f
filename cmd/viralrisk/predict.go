package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sawpanic/viralrisk/internal/application"
)

func newPredictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score one item or a list of items",
		Long: `Reads a prediction request (or a JSON array of them) and prints the scored result.
With --analyze only the item is used and the sentiment and emotion providers are called.`,
		RunE: runPredict,
	}
	cmd.Flags().String("file", "", "JSON request file, - for stdin (required)")
	cmd.Flags().Bool("analyze", false, "Classify the item text with the configured providers")
	cmd.Flags().String("ab-test", "", "Score with the arm of this A/B test")
	cmd.Flags().String("subject", "", "Subject id used for A/B arm assignment")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runPredict(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	reqs, many, err := readPredictRequests(stringFlag(flags, "file"), cmd.InOrStdin())
	if err != nil {
		return err
	}
	if id := stringFlag(flags, "ab-test"); id != "" {
		subject := stringFlag(flags, "subject")
		for i := range reqs {
			reqs[i].ABTestID = id
			if subject != "" {
				reqs[i].SubjectID = subject
			}
		}
	}
	analyze, _ := flags.GetBool("analyze")

	ctx, cancel := commandContext(cmd)
	defer cancel()

	rt, err := buildRuntime(ctx, appConfig)
	if err != nil {
		return err
	}
	defer rt.Close()

	if !many {
		req := reqs[0]
		if analyze {
			pred, err := rt.engine.Analyze(ctx, application.AnalyzeRequest{Item: req.Item, ABTestID: req.ABTestID, SubjectID: req.SubjectID})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), pred)
		}
		pred, err := rt.engine.Predict(ctx, req)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), pred)
	}

	var results []application.BatchResult
	if analyze {
		areqs := make([]application.AnalyzeRequest, len(reqs))
		for i, r := range reqs {
			areqs[i] = application.AnalyzeRequest{Item: r.Item, ABTestID: r.ABTestID, SubjectID: r.SubjectID}
		}
		results = rt.engine.AnalyzeBatch(ctx, areqs)
	} else {
		results = rt.engine.PredictBatch(ctx, reqs)
	}
	return printJSON(cmd.OutOrStdout(), results)
}

// readPredictRequests decodes a single request object or an array of them
func readPredictRequests(path string, stdin io.Reader) ([]application.PredictRequest, bool, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read request file %s: %w", path, err)
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var reqs []application.PredictRequest
		if err := json.Unmarshal(raw, &reqs); err != nil {
			return nil, false, fmt.Errorf("failed to parse request file %s: %w", path, err)
		}
		if len(reqs) == 0 {
			return nil, false, fmt.Errorf("request file %s contains no items", path)
		}
		return reqs, true, nil
	}

	var req application.PredictRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, false, fmt.Errorf("failed to parse request file %s: %w", path, err)
	}
	return []application.PredictRequest{req}, false, nil
}
