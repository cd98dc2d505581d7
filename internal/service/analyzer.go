package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bloodcell-ai-server/internal/domain"
	"github.com/bloodcell-ai-server/internal/explain"
)

// Analyzer orchestrates the analysis pipeline for one uploaded smear:
// classification, aggregation, pattern detection, risk scoring and
// persistence, reporting progress at each stage. Degraded inputs never
// crash a run; the classifier falls back to the deterministic mock and
// explanation generation falls back to the template strategy.
type Analyzer struct {
	logger     *logrus.Logger
	store      domain.Store
	tracker    domain.ProgressTracker
	classifier domain.CellClassifier
	fallback   domain.CellClassifier
	aggregator *CellCountAggregator
	engine     *DiseasePatternEngine
	risk       *RiskScorer
	generator  explain.Generator
}

// NewAnalyzer wires the pipeline. The fallback classifier is used when the
// primary one fails; pass the mock classifier as both to run fully offline.
func NewAnalyzer(
	logger *logrus.Logger,
	store domain.Store,
	tracker domain.ProgressTracker,
	classifier domain.CellClassifier,
	fallback domain.CellClassifier,
	generator explain.Generator,
) *Analyzer {
	thresholds := domain.DefaultThresholds()
	return &Analyzer{
		logger:     logger,
		store:      store,
		tracker:    tracker,
		classifier: classifier,
		fallback:   fallback,
		aggregator: NewCellCountAggregator(logger, thresholds),
		engine:     NewDiseasePatternEngine(logger, thresholds),
		risk:       NewRiskScorer(thresholds),
		generator:  generator,
	}
}

// Run executes the full pipeline for one analysis. It is intended to be
// launched in the background after the upload handler has stored the image
// and set the initial progress entry.
func (a *Analyzer) Run(ctx context.Context, analysisID, imagePath string, image []byte) {
	log := a.logger.WithField("analysis_id", analysisID)

	a.setProgress(ctx, analysisID, domain.StatusPreprocessing, 20, "Preprocessing image...")

	a.setProgress(ctx, analysisID, domain.StatusAnalyzing, 40, "Classifying blood cells...")
	predictions := a.classify(ctx, analysisID, image)

	counts, confidence := a.aggregator.Aggregate(predictions)

	a.setProgress(ctx, analysisID, domain.StatusDetecting, 70, "Disease detection...")
	detection := a.engine.DetectDiseases(counts)
	risks := a.risk.Score(counts)

	a.setProgress(ctx, analysisID, domain.StatusFinalizing, 90, "Finalizing results...")
	report := &domain.AnalysisReport{
		AnalysisID:       analysisID,
		CellCounts:       counts,
		Diseases:         detection.Diseases,
		Abnormalities:    detection.Abnormalities,
		ConfidenceScores: confidence,
		RiskScores:       risks,
		TotalCells:       len(predictions),
		ImagePath:        imagePath,
		Timestamp:        time.Now().UTC(),
	}

	if err := a.store.SaveReport(ctx, report); err != nil {
		log.WithError(err).Error("Failed to save analysis result")
		a.setProgress(ctx, analysisID, domain.StatusError, 0, fmt.Sprintf("Analysis failed: %v", err))
		return
	}

	a.setProgress(ctx, analysisID, domain.StatusCompleted, 100, "Analysis completed successfully!")
	log.WithFields(logrus.Fields{
		"total_cells": report.TotalCells,
		"diseases":    len(report.Diseases),
	}).Info("Analysis completed")
}

// classify runs the primary classifier and degrades to the fallback when
// it fails. A failing fallback yields no predictions, which the aggregator
// handles with its demo differential.
func (a *Analyzer) classify(ctx context.Context, analysisID string, image []byte) []domain.Prediction {
	predictions, err := a.classifier.Classify(ctx, image)
	if err == nil {
		return predictions
	}

	log := a.logger.WithField("analysis_id", analysisID)
	log.WithError(err).Warn("Classifier failed, using fallback predictions")

	if a.fallback == nil || a.fallback == a.classifier {
		return nil
	}
	predictions, err = a.fallback.Classify(ctx, image)
	if err != nil {
		log.WithError(err).Warn("Fallback classifier failed")
		return nil
	}
	return predictions
}

// GenerateExplanation produces the narrative for a stored report and
// persists it. Returns the domain not-found error when the analysis is
// unknown.
func (a *Analyzer) GenerateExplanation(ctx context.Context, analysisID string) (string, error) {
	report, err := a.store.GetReport(ctx, analysisID)
	if err != nil {
		return "", fmt.Errorf("failed to load analysis result: %w", err)
	}
	if report == nil {
		return "", domain.ErrReportNotFound
	}

	explanation := a.generator.Explain(ctx, report)
	if err := a.store.UpdateExplanation(ctx, analysisID, explanation); err != nil {
		return "", fmt.Errorf("failed to store explanation: %w", err)
	}
	return explanation, nil
}

// AnswerFollowUp answers a question about a stored report and records the
// exchange.
func (a *Analyzer) AnswerFollowUp(ctx context.Context, analysisID, question string) (string, error) {
	report, err := a.store.GetReport(ctx, analysisID)
	if err != nil {
		return "", fmt.Errorf("failed to load analysis result: %w", err)
	}
	if report == nil {
		return "", domain.ErrReportNotFound
	}

	answer := a.generator.AnswerFollowUp(ctx, question, report)
	if err := a.store.AppendFollowUp(ctx, analysisID, question, answer); err != nil {
		return "", fmt.Errorf("failed to store follow-up: %w", err)
	}
	return answer, nil
}

func (a *Analyzer) setProgress(ctx context.Context, analysisID, status string, percent int, stage string) {
	err := a.tracker.Set(ctx, analysisID, domain.Progress{
		Status:   status,
		Progress: percent,
		Stage:    stage,
	})
	if err != nil {
		a.logger.WithError(err).WithField("analysis_id", analysisID).Warn("Failed to record progress")
	}
}
