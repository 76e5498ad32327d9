// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package evaluator scores submissions with LLM judges. Each configured
// metric is one judge call at temperature zero; the overall score is the
// weighted aggregate of the per-metric scores.
package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/mixseek/mixseek/internal/log"
	"github.com/mixseek/mixseek/pkg/config"
	"github.com/mixseek/mixseek/pkg/llm"
	"github.com/mixseek/mixseek/pkg/llm/factory"
	"github.com/mixseek/mixseek/pkg/mixerr"
	"github.com/mixseek/mixseek/pkg/types"
)

// judgePrompt is the shared scoring prompt scaffold. The metric's own
// system instruction defines what is being judged.
const judgePrompt = `Evaluate the submission below against the task.

# Task

%s

# Submission

%s

Think through the submission's strengths and weaknesses step by step, then answer with a single JSON object on its own line:

{"score": <number from 0 to 100>, "comment": "<one or two sentences justifying the score>"}`

// metricJudge is one configured metric bound to its provider.
type metricJudge struct {
	spec     config.MetricSpec
	weight   float64
	provider types.LLMProvider
}

// Evaluator scores submissions per the evaluator configuration.
type Evaluator struct {
	judges     []metricJudge
	maxRetries int
}

// New builds an Evaluator. Metric fields left unset fall back to the
// evaluator defaults; every judge runs at temperature zero unless the
// metric overrides it.
func New(cfg *config.EvaluatorConfig) (*Evaluator, error) {
	weights := cfg.EffectiveWeights()

	judges := make([]metricJudge, 0, len(cfg.Metrics))
	for i, m := range cfg.Metrics {
		// A metric configured by name only gets the built-in
		// instruction for that name.
		if m.SystemInstruction == "" {
			m.SystemInstruction = defaultInstruction(m.Name)
		}
		if m.SystemInstruction == "" {
			return nil, mixerr.New(mixerr.KindConfiguration, "evaluator.new",
				fmt.Sprintf("metric %q has no system_instruction and no built-in default", m.Name))
		}
		model := m.Model
		if model == "" {
			model = cfg.DefaultModel
		}
		maxTokens := m.MaxTokens
		if maxTokens == 0 {
			maxTokens = cfg.MaxTokens
		}
		temp := 0.0
		if m.Temperature != nil {
			temp = *m.Temperature
		} else if cfg.Temperature != 0 {
			temp = cfg.Temperature
		}

		provider, err := factory.CreateProvider(model, factory.Options{
			Temperature: &temp,
			MaxTokens:   maxTokens,
			Timeout:     cfg.Timeout,
		})
		if err != nil {
			return nil, mixerr.Wrapf(mixerr.KindOf(err), "evaluator.new", err, "metric %s", m.Name)
		}
		judges = append(judges, metricJudge{spec: m, weight: weights[i], provider: provider})
	}

	return &Evaluator{judges: judges, maxRetries: cfg.MaxRetries}, nil
}

// Evaluate scores one submission against the task. Every metric must
// produce a valid in-range score; a metric that stays malformed after
// retries fails the evaluation.
func (e *Evaluator) Evaluate(ctx context.Context, task, submission string) (*types.EvaluationResult, types.Usage, error) {
	var usage types.Usage
	result := &types.EvaluationResult{}

	for _, j := range e.judges {
		score, u, err := e.scoreMetric(ctx, &j, task, submission)
		usage.Add(u)
		if err != nil {
			return nil, usage, err
		}
		result.Metrics = append(result.Metrics, *score)
		result.OverallScore += score.Score * j.weight
	}

	log.Debug("evaluation complete",
		zap.Float64("overall", result.OverallScore),
		zap.Int("metrics", len(result.Metrics)))
	return result, usage, nil
}

// scoreMetric runs one judge with transient retry plus a malformed-
// output retry budget.
func (e *Evaluator) scoreMetric(ctx context.Context, j *metricJudge, task, submission string) (*types.MetricScore, types.Usage, error) {
	op := fmt.Sprintf("evaluator.metric[%s]", j.spec.Name)
	var usage types.Usage

	messages := []types.Message{
		{Role: "system", Content: j.spec.SystemInstruction},
		{Role: "user", Content: fmt.Sprintf(judgePrompt, task, submission)},
	}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		resp, err := llm.ChatWithRetry(ctx, j.provider, messages, nil, llm.RetryConfig{
			MaxRetries: &e.maxRetries,
			Logger:     log.Logger(),
		})
		if err != nil {
			return nil, usage, err
		}
		usage.Add(resp.Usage)

		score, comment, err := parseVerdict(resp.Content)
		if err == nil {
			return &types.MetricScore{Name: j.spec.Name, Score: score, Comment: comment}, usage, nil
		}
		lastErr = err
		log.Warn("malformed judge verdict",
			zap.String("metric", j.spec.Name),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	return nil, usage, mixerr.Wrapf(mixerr.KindEvaluation, op, lastErr, "no valid verdict after %d attempts", e.maxRetries+1)
}

// verdict is the judge's required output shape.
type verdict struct {
	Score   *float64 `json:"score"`
	Comment string   `json:"comment"`
}

// parseVerdict extracts and validates the judge's JSON verdict. Models
// wrap JSON in markdown fences or prose; the last JSON object in the
// output wins.
func parseVerdict(content string) (float64, string, error) {
	raw := extractJSON(content)
	if raw == "" {
		return 0, "", fmt.Errorf("no JSON object in judge output")
	}

	var v verdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return 0, "", fmt.Errorf("parsing judge output: %w", err)
	}
	if v.Score == nil {
		return 0, "", fmt.Errorf("judge output has no score")
	}
	score := *v.Score
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, "", fmt.Errorf("judge score is not finite")
	}
	if score < 0 || score > 100 {
		return 0, "", fmt.Errorf("judge score %g outside [0, 100]", score)
	}
	return score, v.Comment, nil
}

// extractJSON returns the last balanced top-level JSON object in s.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	// Strip markdown fences first.
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		if j := strings.Index(rest, "```"); j >= 0 {
			if candidate := strings.TrimSpace(rest[:j]); strings.HasPrefix(candidate, "{") {
				return candidate
			}
		}
	}

	end := strings.LastIndex(s, "}")
	if end < 0 {
		return ""
	}
	depth := 0
	for i := end; i >= 0; i-- {
		switch s[i] {
		case '}':
			depth++
		case '{':
			depth--
			if depth == 0 {
				return s[i : end+1]
			}
		}
	}
	return ""
}
