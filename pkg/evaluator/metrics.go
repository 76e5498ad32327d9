// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package evaluator

import "github.com/mixseek/mixseek/pkg/config"

// Default metric instructions used when evaluator.toml configures a
// metric by name only, and by `mixseek init` scaffolding.
const (
	ClarityCoherenceInstruction = `You judge the clarity and coherence of a submission. Score how well the text reads: logical flow, structure, absence of contradictions and filler. A 90+ submission is effortless to follow end to end; below 40 the reader has to reconstruct the argument themselves.`

	CoverageInstruction = `You judge how completely a submission addresses the task. Every explicit requirement in the task should be answered; implicit expectations of a competent answer count too. Missing a stated requirement caps the score at 60.`

	RelevanceInstruction = `You judge how relevant a submission is to the task. Penalize digressions, boilerplate and content that answers a different question. A focused answer that stays on task throughout scores 85+.`
)

// DefaultMetrics returns the built-in three-metric evaluation set with
// uniform weights.
func DefaultMetrics() []config.MetricSpec {
	return []config.MetricSpec{
		{Name: "ClarityCoherence", SystemInstruction: ClarityCoherenceInstruction},
		{Name: "Coverage", SystemInstruction: CoverageInstruction},
		{Name: "Relevance", SystemInstruction: RelevanceInstruction},
	}
}

// defaultInstruction returns the built-in system instruction for a
// metric name, or "" when the name has no default.
func defaultInstruction(name string) string {
	for _, m := range DefaultMetrics() {
		if m.Name == name {
			return m.SystemInstruction
		}
	}
	return ""
}
