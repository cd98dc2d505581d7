// Package explain renders analysis results into human-readable medical
// narratives and answers follow-up questions about them. Two strategies
// sit behind one interface: a model-backed generator using the external
// text-generation capability, and a deterministic template generator that
// is always present as the fallback.
package explain

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/bloodcell-ai-server/internal/domain"
)

// Generator produces narrative text for one analysis report. Both methods
// are total: any internal failure degrades to the deterministic strategy
// instead of propagating.
type Generator interface {
	Explain(ctx context.Context, report *domain.AnalysisReport) string
	AnswerFollowUp(ctx context.Context, question string, report *domain.AnalysisReport) string
}

// followUpMaxTokens and followUpTemperature bound the model-backed
// follow-up path; the main narrative uses the configured generator limits.
const (
	followUpMaxTokens   = 300
	followUpTemperature = 0.6
)

// NewGenerator selects the strategy by capability presence, decided once
// at startup. A nil or unavailable text generator yields the deterministic
// template generator.
func NewGenerator(logger *logrus.Logger, textGen domain.TextGenerator, cfg domain.GeneratorConfig) Generator {
	fallback := &templateStrategy{templates: NewTemplateGenerator(logger)}

	if textGen == nil || !textGen.Available() {
		logger.Info("Text-generation capability unavailable, using deterministic narratives")
		return fallback
	}

	logger.Info("Text-generation capability available, using model-backed narratives")
	return &modelStrategy{
		logger:   logger,
		textGen:  textGen,
		cfg:      cfg,
		fallback: fallback,
	}
}

// templateStrategy adapts TemplateGenerator to the Generator interface.
type templateStrategy struct {
	templates *TemplateGenerator
}

func (s *templateStrategy) Explain(_ context.Context, report *domain.AnalysisReport) string {
	return s.templates.Explain(report)
}

func (s *templateStrategy) AnswerFollowUp(_ context.Context, question string, _ *domain.AnalysisReport) string {
	return CannedAnswer(question)
}

// modelStrategy invokes the language-model capability with constructed
// prompts and strips the echoed prompt prefix from returned text.
type modelStrategy struct {
	logger   *logrus.Logger
	textGen  domain.TextGenerator
	cfg      domain.GeneratorConfig
	fallback *templateStrategy
}

func (s *modelStrategy) Explain(ctx context.Context, report *domain.AnalysisReport) string {
	prompt := BuildExplanationPrompt(report)

	generated, err := s.textGen.Generate(ctx, prompt, s.cfg.MaxLength, s.cfg.Temperature)
	if err != nil {
		s.logger.WithError(err).WithField("analysis_id", report.AnalysisID).
			Warn("Model-backed explanation failed, falling back to deterministic narrative")
		return s.fallback.Explain(ctx, report)
	}

	explanation := stripPromptEcho(generated, prompt)
	if explanation == "" {
		s.logger.WithField("analysis_id", report.AnalysisID).
			Warn("Model returned empty explanation, falling back to deterministic narrative")
		return s.fallback.Explain(ctx, report)
	}

	return explanation
}

func (s *modelStrategy) AnswerFollowUp(ctx context.Context, question string, report *domain.AnalysisReport) string {
	prompt := BuildFollowUpPrompt(question, report)

	generated, err := s.textGen.Generate(ctx, prompt, followUpMaxTokens, followUpTemperature)
	if err != nil {
		s.logger.WithError(err).Warn("Model-backed follow-up answer failed, using canned answer")
		return CannedAnswer(question)
	}

	answer := stripPromptEcho(generated, prompt)
	if answer == "" {
		return CannedAnswer(question)
	}

	return answer
}

// stripPromptEcho removes an echoed prompt prefix from model output.
// Models that echo their input return the prompt verbatim at the front.
func stripPromptEcho(generated, prompt string) string {
	return strings.TrimSpace(strings.TrimPrefix(generated, prompt))
}
