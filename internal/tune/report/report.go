package report

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/sawpanic/viralrisk/internal/config/risk"
	"github.com/sawpanic/viralrisk/internal/score"
	"github.com/sawpanic/viralrisk/internal/tune"
)

// significantChange marks weight or threshold moves worth highlighting
const significantChange = 0.02

// ReportGenerator creates markdown training reports
type ReportGenerator struct {
	now func() time.Time
}

// NewReportGenerator creates a new report generator
func NewReportGenerator() *ReportGenerator {
	return &ReportGenerator{now: time.Now}
}

// GenerateReport writes the report for a training run to filePath.
// versionID is empty when the result was not published.
func (rg *ReportGenerator) GenerateReport(filePath string, res tune.Result, baseline risk.Config, versionID string) error {
	report := rg.BuildReport(res, baseline, versionID)
	if err := os.WriteFile(filePath, []byte(report), 0644); err != nil {
		return fmt.Errorf("failed to write training report %s: %w", filePath, err)
	}
	return nil
}

// BuildReport renders the report as markdown
func (rg *ReportGenerator) BuildReport(res tune.Result, baseline risk.Config, versionID string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Virality Risk Training Report\n\n**Generated:** %s\n\n", rg.now().Format("2006-01-02 15:04:05 MST"))

	b.WriteString(rg.summary(res, versionID))
	b.WriteString(rg.metrics(res))
	b.WriteString(rg.configChanges(baseline, res.OptimalConfig))
	b.WriteString(rg.importance(res))
	b.WriteString(rg.suggestions(res))
	b.WriteString(rg.technicalDetails(res))

	return b.String()
}

func (rg *ReportGenerator) summary(res tune.Result, versionID string) string {
	var b strings.Builder
	b.WriteString("## Summary\n\n")

	delta := res.Performance.MacroF1 - res.BaselinePerformance.MacroF1
	fmt.Fprintf(&b, "- Macro F1: %.4f → %.4f (%+.4f)\n", res.BaselinePerformance.MacroF1, res.Performance.MacroF1, delta)
	fmt.Fprintf(&b, "- Samples: %d train, %d validation\n", res.TrainSize, res.ValidationSize)

	switch {
	case versionID != "":
		fmt.Fprintf(&b, "- Published as version `%s`\n", versionID)
	case res.Improved:
		b.WriteString("- Improvement found but not published\n")
	default:
		b.WriteString("- No candidate beat the current configuration; nothing to publish\n")
	}
	b.WriteString("\n")
	return b.String()
}

func (rg *ReportGenerator) metrics(res tune.Result) string {
	var b strings.Builder
	b.WriteString("## Validation Metrics\n\n")
	b.WriteString("| Metric | Baseline | Optimal |\n")
	b.WriteString("|--------|----------|---------|\n")

	base, best := res.BaselinePerformance, res.Performance
	rows := []struct {
		name      string
		base, opt float64
	}{
		{"Accuracy", base.Accuracy, best.Accuracy},
		{"Precision (macro)", base.Precision, best.Precision},
		{"Recall (macro)", base.Recall, best.Recall},
		{"F1 (macro)", base.MacroF1, best.MacroF1},
	}
	for _, r := range rows {
		fmt.Fprintf(&b, "| %s | %.4f | %.4f |\n", r.name, r.base, r.opt)
	}

	b.WriteString("\n**Per-tier (optimal):**\n\n")
	b.WriteString("| Tier | Precision | Recall | F1 | Support |\n")
	b.WriteString("|------|-----------|--------|----|---------|\n")
	for _, tier := range score.Tiers {
		m := best.PerTier[tier]
		fmt.Fprintf(&b, "| %s | %.4f | %.4f | %.4f | %d |\n", tier, m.Precision, m.Recall, m.F1, m.Support)
	}

	fmt.Fprintf(&b, "\n**Confusion matrix (optimal):**\n\n```\n%s\n```\n\n", best.Matrix.String())
	return b.String()
}

func (rg *ReportGenerator) configChanges(baseline, optimal risk.Config) string {
	var b strings.Builder
	b.WriteString("## Configuration Changes\n\n")
	b.WriteString("| Parameter | Current | Optimal | Change |\n")
	b.WriteString("|-----------|---------|---------|--------|\n")

	bw, ow := baseline.Weights, optimal.Weights
	bt, ot := baseline.Thresholds, optimal.Thresholds
	rows := []struct {
		name         string
		current, opt float64
	}{
		{"weight.toneSeverity", bw.ToneSeverity, ow.ToneSeverity},
		{"weight.engagementVelocity", bw.EngagementVelocity, ow.EngagementVelocity},
		{"weight.userInfluence", bw.UserInfluence, ow.UserInfluence},
		{"weight.contentLength", bw.ContentLength, ow.ContentLength},
		{"weight.platformMultiplier", bw.PlatformMultiplier, ow.PlatformMultiplier},
		{"weight.timeDecay", bw.TimeDecay, ow.TimeDecay},
		{"threshold.low", bt.Low, ot.Low},
		{"threshold.medium", bt.Medium, ot.Medium},
		{"threshold.high", bt.High, ot.High},
		{"threshold.viralThreat", bt.ViralThreat, ot.ViralThreat},
	}

	for _, r := range rows {
		change := r.opt - r.current
		changeStr := fmt.Sprintf("%+.4f", change)
		if math.Abs(change) > significantChange {
			changeStr = fmt.Sprintf("**%+.4f**", change)
		}
		fmt.Fprintf(&b, "| %s | %.4f | %.4f | %s |\n", r.name, r.current, r.opt, changeStr)
	}
	b.WriteString("\n")
	return b.String()
}

func (rg *ReportGenerator) importance(res tune.Result) string {
	if len(res.FeatureImportance) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Feature Importance\n\n")

	names := make([]string, 0, len(res.FeatureImportance))
	for name := range res.FeatureImportance {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		vi, vj := res.FeatureImportance[names[i]], res.FeatureImportance[names[j]]
		if vi != vj {
			return vi > vj
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		fmt.Fprintf(&b, "- %s: %.4f\n", name, res.FeatureImportance[name])
	}
	b.WriteString("\n")
	return b.String()
}

func (rg *ReportGenerator) suggestions(res tune.Result) string {
	var b strings.Builder
	b.WriteString("## Suggestions\n\n")
	if len(res.Suggestions) == 0 {
		b.WriteString("None.\n\n")
		return b.String()
	}
	for _, s := range res.Suggestions {
		fmt.Fprintf(&b, "- %s\n", s)
	}
	b.WriteString("\n")
	return b.String()
}

func (rg *ReportGenerator) technicalDetails(res tune.Result) string {
	var b strings.Builder
	b.WriteString("## Technical Details\n\n")
	b.WriteString("- Algorithm: bounded grid search, baseline evaluated first\n")
	fmt.Fprintf(&b, "- Candidates evaluated: %d\n", res.Evaluated)
	fmt.Fprintf(&b, "- Candidates pruned: %d\n", res.Pruned)
	fmt.Fprintf(&b, "- Elapsed: %v\n", res.Duration)
	b.WriteString("- Outcome labels use the engagement/alert proxy, an approximation of true virality\n\n")
	return b.String()
}
