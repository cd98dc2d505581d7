// Command analyze runs the analysis pipeline over a predictions JSON file
// without the server: aggregation, disease detection, risk scoring and the
// deterministic narrative, printed to stdout.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bloodcell-ai-server/internal/domain"
	"github.com/bloodcell-ai-server/internal/explain"
	"github.com/bloodcell-ai-server/internal/service"
)

func main() {
	var (
		input       = flag.String("input", "", "path to predictions JSON file ([][]float64, one score vector per cell)")
		asJSON      = flag.Bool("json", false, "print the full report as JSON instead of the narrative")
		showCounts  = flag.Bool("counts", false, "print the differential count table")
		logLevelArg = flag.String("log-level", "warn", "log level (debug, info, warn, error)")
	)
	flag.Parse()

	logger := logrus.New()
	if level, err := logrus.ParseLevel(*logLevelArg); err == nil {
		logger.SetLevel(level)
	}

	predictions, err := loadPredictions(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "analyze: %v\n", err)
		os.Exit(1)
	}

	thresholds := domain.DefaultThresholds()
	aggregator := service.NewCellCountAggregator(logger, thresholds)
	engine := service.NewDiseasePatternEngine(logger, thresholds)
	scorer := service.NewRiskScorer(thresholds)

	counts, confidence := aggregator.Aggregate(predictions)
	detection := engine.DetectDiseases(counts)

	report := &domain.AnalysisReport{
		AnalysisID:       uuid.New().String(),
		CellCounts:       counts,
		Diseases:         detection.Diseases,
		Abnormalities:    detection.Abnormalities,
		ConfidenceScores: confidence,
		RiskScores:       scorer.Score(counts),
		TotalCells:       len(predictions),
		Timestamp:        time.Now().UTC(),
	}
	report.Explanation = explain.NewTemplateGenerator(logger).Explain(report)

	if *asJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(report); err != nil {
			fmt.Fprintf(os.Stderr, "analyze: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *showCounts {
		fmt.Printf("Neutrophils:  %d%%\n", counts.Neutrophils)
		fmt.Printf("Lymphocytes:  %d%%\n", counts.Lymphocytes)
		fmt.Printf("Monocytes:    %d%%\n", counts.Monocytes)
		fmt.Printf("Eosinophils:  %d%%\n", counts.Eosinophils)
		fmt.Printf("Basophils:    %d%%\n", counts.Basophils)
		fmt.Printf("Platelets:    %d/μL\n", counts.Platelets)
		fmt.Printf("RBCs:         %d/μL\n\n", counts.RBCs)
	}

	fmt.Println(report.Explanation)
}

// loadPredictions reads one score vector per cell from a JSON file. An
// empty path reads stdin.
func loadPredictions(path string) ([]domain.Prediction, error) {
	var (
		raw []byte
		err error
	)
	if path == "" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read predictions: %w", err)
	}

	var vectors [][]float64
	if err := json.Unmarshal(raw, &vectors); err != nil {
		return nil, fmt.Errorf("failed to parse predictions: %w", err)
	}

	predictions := make([]domain.Prediction, 0, len(vectors))
	for i, scores := range vectors {
		if len(scores) != domain.NumCellClasses {
			return nil, fmt.Errorf("prediction %d has %d scores, expected %d", i, len(scores), domain.NumCellClasses)
		}
		predictions = append(predictions, domain.Prediction(scores))
	}
	return predictions, nil
}
