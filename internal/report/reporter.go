package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Reporter writes scoring results to a directory.
type Reporter struct {
	results    *Results
	outputPath string
}

// NewReporter creates a new reporter
func NewReporter(results *Results, outputPath string) *Reporter {
	return &Reporter{
		results:    results,
		outputPath: outputPath,
	}
}

// GenerateReport writes summary.txt, predictions.csv and report.json.
func (r *Reporter) GenerateReport() error {
	if err := os.MkdirAll(r.outputPath, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := r.generateSummary(); err != nil {
		return err
	}

	if err := r.generatePredictionLog(); err != nil {
		return err
	}

	return r.generateJSONReport()
}

func (r *Reporter) generateSummary() error {
	summaryPath := filepath.Join(r.outputPath, "summary.txt")
	file, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	r.writeSummary(file)

	log.Info().Str("file", summaryPath).Msg("Summary report generated")
	return nil
}

func (r *Reporter) writeSummary(w io.Writer) {
	res := r.results

	fmt.Fprintf(w, "SENTIMENT SCORING SUMMARY\n")
	fmt.Fprintf(w, "=========================\n\n")
	fmt.Fprintf(w, "Run: %s (%s)\n\n", res.StartTime.Format("2006-01-02 15:04:05"), res.EndTime.Sub(res.StartTime))

	fmt.Fprintf(w, "OVERALL\n")
	fmt.Fprintf(w, "-------\n")
	fmt.Fprintf(w, "Businesses: %d\n", len(res.Businesses))
	fmt.Fprintf(w, "Reviews: %d\n", res.TotalReviews)
	fmt.Fprintf(w, "Positive: %d  Neutral: %d  Negative: %d\n", res.Positive, res.Neutral, res.Negative)
	fmt.Fprintf(w, "Acceptance: %.2f%%\n", res.Acceptance)
	if res.Rated > 0 {
		fmt.Fprintf(w, "Star agreement: %.2f%% of %d rated reviews\n", res.Agreement*100, res.Rated)
	}

	if len(res.Businesses) > 0 {
		fmt.Fprintf(w, "\nBY BUSINESS\n")
		fmt.Fprintf(w, "-----------\n")
		for _, b := range res.Businesses {
			fmt.Fprintf(w, "%s: %d reviews, %.2f%% acceptance (+%d/%d/-%d)\n",
				b.BusinessID, len(b.Labels), b.Acceptance, b.Positive, b.Neutral, b.Negative)
		}
	}
}

func (r *Reporter) generatePredictionLog() error {
	csvPath := filepath.Join(r.outputPath, "predictions.csv")
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create prediction log: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write([]string{"business_id", "review_id", "label", "sentiment"}); err != nil {
		return err
	}

	for _, b := range r.results.Businesses {
		for i, l := range b.Labels {
			record := []string{
				b.BusinessID,
				b.ReviewIDs[i],
				strconv.Itoa(int(l)),
				l.String(),
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to write prediction log: %w", err)
	}

	log.Info().Str("file", csvPath).Msg("Prediction log generated")
	return nil
}

func (r *Reporter) generateJSONReport() error {
	jsonPath := filepath.Join(r.outputPath, "report.json")

	report := map[string]interface{}{
		"results":      r.results,
		"generated_at": time.Now(),
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}

	log.Info().Str("file", jsonPath).Msg("JSON report generated")
	return nil
}

// PrintSummary writes the summary to w.
func (r *Reporter) PrintSummary(w io.Writer) {
	fmt.Fprintln(w)
	r.writeSummary(w)
	fmt.Fprintln(w, "=========================")
}
