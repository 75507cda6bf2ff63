package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/idguard/internal/fingerprint"
	"github.com/Veraticus/idguard/internal/model"
)

// RenderExtractions renders the requested vs skipped batch counts per class.
func RenderExtractions(summaries []model.ExtractionSummary) string {
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		status := SuccessStyle.Render(SuccessIcon + " complete")
		if !s.Complete() {
			status = WarningStyle.Render(fmt.Sprintf("%s skipped %s", WarningIcon, joinInts(s.SkippedBatches)))
		}
		rows = append(rows, []string{
			s.Label.String(),
			strconv.FormatInt(s.TotalRecords, 10),
			strconv.Itoa(s.BatchesRequested),
			strconv.Itoa(s.BatchesSkipped),
			strconv.Itoa(s.RowsFetched),
			status,
		})
	}
	return RenderTable(
		[]string{"Class", "Records", "Batches", "Skipped", "Rows", "Status"},
		rows,
		[]Alignment{AlignLeft, AlignRight, AlignRight, AlignRight, AlignRight, AlignLeft},
	)
}

// RenderMetrics renders holdout metrics and the confusion counts in a box.
func RenderMetrics(m model.Metrics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render("Accuracy: "), formatRatio(m.Accuracy))
	fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render("Precision:"), formatRatio(m.Precision))
	fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render("Recall:   "), formatRatio(m.Recall))
	fmt.Fprintf(&b, "%s %s\n\n", BoldStyle.Render("F1:       "), formatRatio(m.F1))
	fmt.Fprintf(&b, "%s TP %d  TN %d  FP %d  FN %d",
		SubtleStyle.Render("confusion"),
		m.TruePositives, m.TrueNegatives, m.FalsePositives, m.FalseNegatives)
	return RenderBox(ChartIcon+" Holdout evaluation", b.String())
}

// RenderRun renders the end-of-run summary for a training run.
func RenderRun(run *model.TrainingRun) string {
	var b strings.Builder
	b.WriteString(FormatTitle("Training run " + run.ID))
	b.WriteString("\n")
	b.WriteString(RenderExtractions(run.Extractions))
	b.WriteString("\n\n")

	switch run.Status {
	case model.RunStatusSucceeded:
		b.WriteString(RenderMetrics(run.Metrics))
		b.WriteString("\n\n")
		fmt.Fprintf(&b, "%s\n", FormatSuccess(fmt.Sprintf("Trained on %d rows, evaluated on %d, %d features",
			run.TrainRows, run.TestRows, run.FeatureCount)))
		fmt.Fprintf(&b, "%s\n", FormatInfo("Model:     "+run.ModelPath))
		fmt.Fprintf(&b, "%s\n", FormatInfo("Transform: "+run.TransformPath))
	case model.RunStatusFailed:
		fmt.Fprintf(&b, "%s\n", FormatError("Run failed: "+run.Error))
	default:
		fmt.Fprintf(&b, "%s\n", FormatWarning("Run status: "+run.Status))
	}
	return b.String()
}

// RenderRuns renders a list of recent training runs.
func RenderRuns(runs []model.TrainingRun) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		skipped := 0
		for _, e := range r.Extractions {
			skipped += e.BatchesSkipped
		}
		duration := "-"
		if !r.FinishedAt.IsZero() {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		rows = append(rows, []string{
			shortID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			statusLabel(r.Status),
			duration,
			strconv.Itoa(skipped),
			formatRatio(r.Metrics.F1),
		})
	}
	return RenderTable(
		[]string{"Run", "Started", "Status", "Duration", "Skipped", "F1"},
		rows,
		[]Alignment{AlignLeft, AlignLeft, AlignLeft, AlignRight, AlignRight, AlignRight},
	)
}

// Score is one scored customer.
type Score struct {
	CustomerID  string
	Probability float64
	Predicted   model.Label
}

// RenderScores renders scoring output.
func RenderScores(scores []Score) string {
	rows := make([][]string, 0, len(scores))
	for _, s := range scores {
		pred := SuccessStyle.Render(s.Predicted.String())
		if s.Predicted == model.LabelInvalid {
			pred = ErrorStyle.Render(s.Predicted.String())
		}
		rows = append(rows, []string{s.CustomerID, strconv.FormatFloat(s.Probability, 'f', 3, 64), pred})
	}
	return RenderTable(
		[]string{"Customer", "P(valid)", "Prediction"},
		rows,
		[]Alignment{AlignLeft, AlignRight, AlignLeft},
	)
}

// RenderFingerprint renders the features of a single identifier.
func RenderFingerprint(id string, f fingerprint.Features) string {
	return RenderTable(
		[]string{"Identifier", "Length", "Repeated", "Ascending", "Descending", "Repetitive"},
		[][]string{{
			id,
			strconv.Itoa(f.Length),
			strconv.FormatBool(f.HasRepeatedDigit),
			strconv.FormatBool(f.IsAscending),
			strconv.FormatBool(f.IsDescending),
			strconv.FormatBool(f.HasRepetitivePattern),
		}},
		[]Alignment{AlignLeft, AlignRight},
	)
}

func statusLabel(status string) string {
	switch status {
	case model.RunStatusSucceeded:
		return SuccessStyle.Render(status)
	case model.RunStatusFailed:
		return ErrorStyle.Render(status)
	default:
		return WarningStyle.Render(status)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatRatio(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
