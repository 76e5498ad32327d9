// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package types contains shared types used across the mixseek kernel.
// This package breaks import cycles by providing common types that the
// agent, llm and orchestration packages all depend on.
package types

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mixseek/mixseek/pkg/tools"
)

// ============================================================================
// LLM types
// ============================================================================

// ToolCall represents a tool invocation emitted by the LLM.
type ToolCall struct {
	// ID is a unique identifier for this tool call.
	ID string `json:"id"`

	// Name is the tool name.
	Name string `json:"name"`

	// Input contains the tool parameters as decoded JSON.
	Input map[string]any `json:"input"`
}

// Message represents a single message in an agent conversation.
type Message struct {
	// Role is the message sender (system, user, assistant, tool).
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`

	// ToolCalls contains tool invocations (if role is assistant).
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolUseID is the ID of the tool call this result corresponds to
	// (if role is tool). Providers use it to match results to requests.
	ToolUseID string `json:"tool_use_id,omitempty"`

	// Timestamp when the message was created.
	Timestamp time.Time `json:"timestamp"`
}

// Usage tracks provider-reported token and request counts.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	Requests     int `json:"requests"`
}

// Add accumulates other into u.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.Requests += other.Requests
}

// LLMResponse represents a response from the LLM.
type LLMResponse struct {
	// Content is the text response (if no tool calls).
	Content string

	// ToolCalls contains requested tool executions.
	ToolCalls []ToolCall

	// StopReason indicates why the LLM stopped.
	StopReason string

	// Usage tracks token usage for this call.
	Usage Usage
}

// Capability names a provider-native member capability.
type Capability string

const (
	// CapabilityPlain is plain text in, text out.
	CapabilityPlain Capability = "plain"

	// CapabilityWebSearch requires a provider-native search tool.
	CapabilityWebSearch Capability = "web-search"

	// CapabilityCodeExec requires a provider-native execution sandbox.
	CapabilityCodeExec Capability = "code-exec"
)

// LLMProvider defines the interface for LLM providers. This allows
// pluggable backends (Anthropic, OpenAI, Gemini, Grok).
type LLMProvider interface {
	// Chat sends a conversation to the LLM and returns the response.
	Chat(ctx context.Context, messages []Message, tls []tools.Tool) (*LLMResponse, error)

	// Name returns the provider name.
	Name() string

	// Model returns the model identifier.
	Model() string
}

// ============================================================================
// Round records
// ============================================================================

// SubmissionStatus is the terminal status of one member invocation.
type SubmissionStatus string

const (
	SubmissionSuccess SubmissionStatus = "success"
	SubmissionFailure SubmissionStatus = "failure"
)

// MemberSubmission is one member agent's contribution inside a round.
type MemberSubmission struct {
	AgentName    string           `json:"agent_name"`
	AgentType    string           `json:"agent_type"`
	Content      string           `json:"content"`
	Status       SubmissionStatus `json:"status"`
	ErrorKind    string           `json:"error_kind,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	Usage        Usage            `json:"usage"`
	Timestamp    time.Time        `json:"timestamp"`
}

// MetricScore is one evaluator metric's score and comment.
type MetricScore struct {
	Name    string  `json:"name"`
	Score   float64 `json:"score"`
	Comment string  `json:"comment"`
}

// EvaluationResult is the evaluator's verdict on a single submission.
type EvaluationResult struct {
	// OverallScore is the weighted aggregate in [0, 100].
	OverallScore float64 `json:"overall_score"`

	// Metrics holds the per-metric scores in configuration order.
	Metrics []MetricScore `json:"metrics"`
}

// RoundState is the output of one round for one team.
type RoundState struct {
	ExecutionID string `json:"execution_id"`
	TeamID      string `json:"team_id"`
	TeamName    string `json:"team_name"`
	RoundNumber int    `json:"round_number"`

	// SubmissionContent is the leader's synthesized text.
	SubmissionContent string `json:"submission_content"`

	// MemberSubmissions is ordered by leader invocation order.
	MemberSubmissions []MemberSubmission `json:"member_submissions"`

	// MessageHistory is the opaque serialized conversation payload,
	// sufficient to resume. Treated as a JSON blob; the first byte of the
	// schema is a version tag ({"v":1,...}).
	MessageHistory json.RawMessage `json:"message_history"`

	// EvaluationScore is present only on success, in [0, 100].
	EvaluationScore *float64 `json:"evaluation_score,omitempty"`

	// EvaluationFeedback holds the per-metric score and comment rows.
	EvaluationFeedback []MetricScore `json:"evaluation_feedback,omitempty"`

	// Usage is summed across leader plus all invoked members.
	Usage Usage `json:"usage"`

	// ExecutionTime is the wall-clock duration of the round.
	ExecutionTime time.Duration `json:"execution_time"`

	// CompletedAt is the UTC completion instant.
	CompletedAt time.Time `json:"completed_at"`
}

// Score returns the evaluation score, or -1 when absent.
func (r *RoundState) Score() float64 {
	if r.EvaluationScore == nil {
		return -1
	}
	return *r.EvaluationScore
}

// LeaderboardEntry is the ranking projection of a persisted round.
type LeaderboardEntry struct {
	ExecutionID       string  `json:"execution_id"`
	TeamID            string  `json:"team_id"`
	TeamName          string  `json:"team_name"`
	RoundNumber       int     `json:"round_number"`
	Score             float64 `json:"score"`
	SubmissionExcerpt string  `json:"submission_excerpt"`
}

// ============================================================================
// Execution state
// ============================================================================

// TeamState is a team's lifecycle status within one execution.
type TeamState string

const (
	TeamPending   TeamState = "pending"
	TeamRunning   TeamState = "running"
	TeamCompleted TeamState = "completed"
	TeamFailed    TeamState = "failed"
	TeamTimeout   TeamState = "timeout"
)

// TeamStatus tracks one team's progress. Orchestrator scope, in-memory.
type TeamStatus struct {
	TeamID       string    `json:"team_id"`
	TeamName     string    `json:"team_name"`
	Status       TeamState `json:"status"`
	CurrentRound int       `json:"current_round"`
	StartedAt    time.Time `json:"started_at,omitzero"`
	CompletedAt  time.Time `json:"completed_at,omitzero"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// ExecutionSummary is the final artifact of one execution.
type ExecutionSummary struct {
	ExecutionID string `json:"execution_id"`
	UserPrompt  string `json:"user_prompt"`

	// TeamResults maps team_id to that team's best successful round.
	// Teams that produced no successful round are absent here and carry a
	// failed or timeout status in TeamStatuses.
	TeamResults map[string]*RoundState `json:"team_results"`

	// TeamStatuses maps team_id to the team's terminal status.
	TeamStatuses map[string]*TeamStatus `json:"team_statuses"`

	// BestTeamID is the team whose best-round score is maximal. Empty when
	// no team completed any round.
	BestTeamID string `json:"best_team_id,omitempty"`

	TotalTeams         int           `json:"total_teams"`
	CompletedTeams     int           `json:"completed_teams"`
	FailedTeams        int           `json:"failed_teams"`
	TotalExecutionTime time.Duration `json:"total_execution_time"`
}
