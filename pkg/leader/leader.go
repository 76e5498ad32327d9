// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package leader runs the team leader: a tool-using conversation loop
// whose tools are the team's members. The leader decomposes the round
// prompt, delegates through delegation tools and synthesizes the final
// submission.
package leader

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mixseek/mixseek/internal/log"
	"github.com/mixseek/mixseek/pkg/config"
	"github.com/mixseek/mixseek/pkg/llm"
	"github.com/mixseek/mixseek/pkg/llm/factory"
	"github.com/mixseek/mixseek/pkg/member"
	"github.com/mixseek/mixseek/pkg/mixerr"
	"github.com/mixseek/mixseek/pkg/tools"
	"github.com/mixseek/mixseek/pkg/types"
)

// DefaultMaxTurns bounds the conversation loop.
const DefaultMaxTurns = 20

// historyVersion tags the serialized conversation payload.
const historyVersion = 1

// DelegationTool exposes one team member to the leader's model. A
// failing member never aborts the round: the failure is recorded and
// reported back to the model as a tool error so the leader can route
// around it.
type DelegationTool struct {
	member      member.Member
	toolName    string
	description string
}

// NewDelegationTool binds a member to its tool surface.
func NewDelegationTool(m member.Member, spec *config.MemberSpec) *DelegationTool {
	return &DelegationTool{
		member:      m,
		toolName:    spec.ToolName,
		description: spec.ToolDescription,
	}
}

// Name returns the delegation tool name.
func (t *DelegationTool) Name() string { return t.toolName }

// Description returns the member's tool description.
func (t *DelegationTool) Description() string { return t.description }

// InputSchema returns the single-field task schema.
func (t *DelegationTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema(
		"Delegation request",
		map[string]*tools.JSONSchema{
			"task": tools.NewStringSchema("The task to delegate to this team member, fully self-contained."),
		},
		[]string{"task"},
	)
}

// Execute runs the member and records the outcome on the round's
// recorder.
func (t *DelegationTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	start := time.Now()

	rec := RecorderFrom(ctx)

	task, _ := params["task"].(string)
	if task == "" {
		// Every delegation call yields a submission, including one the
		// model malformed.
		if rec != nil {
			rec.RecordFailure(t.member.Name(), t.member.Type(), "invalid_params", "task is required", types.Usage{})
		}
		return &tools.Result{
			Success: false,
			Error:   &tools.Error{Code: "invalid_params", Message: "task is required", Retryable: true},
		}, nil
	}

	content, usage, err := t.member.Run(ctx, task)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		kind := string(mixerr.KindOf(err))
		if rec != nil {
			rec.RecordFailure(t.member.Name(), t.member.Type(), kind, err.Error(), usage)
		}
		log.Warn("member failed",
			zap.String("member", t.member.Name()),
			zap.String("kind", kind),
			zap.Error(err))
		return &tools.Result{
			Success:         false,
			Error:           &tools.Error{Code: kind, Message: err.Error(), Retryable: mixerr.IsTransient(err)},
			ExecutionTimeMs: elapsed,
		}, nil
	}

	if rec != nil {
		rec.RecordSuccess(t.member.Name(), t.member.Type(), content, usage)
	}
	return &tools.Result{
		Success:         true,
		Content:         content,
		ExecutionTimeMs: elapsed,
	}, nil
}

// Leader drives the conversation loop for one team.
type Leader struct {
	provider types.LLMProvider
	system   string
	tools    []tools.Tool
	maxTurns int
}

// New builds a leader from team configuration. Member providers are
// constructed eagerly so credential problems fail team setup.
func New(team *config.TeamConfig) (*Leader, error) {
	provider, err := factory.CreateProvider(team.Leader.Model, factory.Options{
		Temperature: team.Leader.Temperature,
		MaxTokens:   team.Leader.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	var delegation []tools.Tool
	for i := range team.Members {
		spec := &team.Members[i]
		m, err := member.New(spec)
		if err != nil {
			return nil, mixerr.Wrapf(mixerr.KindOf(err), "leader.new", err, "member %s", spec.AgentName)
		}
		delegation = append(delegation, NewDelegationTool(m, spec))
	}

	return &Leader{
		provider: provider,
		system:   team.Leader.SystemInstruction,
		tools:    delegation,
		maxTurns: DefaultMaxTurns,
	}, nil
}

// Result is the leader's round output.
type Result struct {
	// Content is the synthesized submission text.
	Content string

	// History is the serialized conversation ({"v":1,"messages":[...]}).
	History json.RawMessage

	// Usage sums the leader's own calls plus all member calls.
	Usage types.Usage

	// Submissions are the member contributions in invocation order.
	Submissions []types.MemberSubmission
}

// historyEnvelope is the persisted conversation format.
type historyEnvelope struct {
	V        int             `json:"v"`
	Messages []types.Message `json:"messages"`
}

// Run executes one round. The prompt is the round prompt from the
// builder; prior conversation state arrives through the prompt's
// submission history, not a resumed message log.
func (l *Leader) Run(ctx context.Context, prompt string) (*Result, error) {
	const op = "leader.run"

	rec := RecorderFrom(ctx)
	if rec == nil {
		rec = NewRecorder()
		ctx = WithRecorder(ctx, rec)
	}

	var messages []types.Message
	if l.system != "" {
		messages = append(messages, types.Message{Role: "system", Content: l.system, Timestamp: time.Now().UTC()})
	}
	messages = append(messages, types.Message{Role: "user", Content: prompt, Timestamp: time.Now().UTC()})

	toolIndex := make(map[string]tools.Tool, len(l.tools))
	for _, t := range l.tools {
		toolIndex[t.Name()] = t
	}

	var final string
	for turn := 0; turn < l.maxTurns; turn++ {
		resp, err := llm.ChatWithRetry(ctx, l.provider, messages, l.tools, llm.RetryConfig{Logger: log.Logger()})
		if err != nil {
			return nil, err
		}
		rec.AddUsage(resp.Usage)

		assistant := types.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
			Timestamp: time.Now().UTC(),
		}
		messages = append(messages, assistant)

		if len(resp.ToolCalls) == 0 {
			final = resp.Content
			break
		}

		// Tool calls run sequentially in the order the model emitted
		// them; recorded submission order is the invocation order.
		for _, tc := range resp.ToolCalls {
			if err := ctx.Err(); err != nil {
				return nil, mixerr.Wrap(mixerr.KindOf(err), op, err)
			}

			result := executeTool(ctx, toolIndex, tc)
			messages = append(messages, types.Message{
				Role:      "tool",
				Content:   result,
				ToolUseID: tc.ID,
				Timestamp: time.Now().UTC(),
			})
		}
	}

	if final == "" {
		return nil, mixerr.New(mixerr.KindProviderPermanent, op, fmt.Sprintf("no final submission after %d turns", l.maxTurns))
	}

	history, err := json.Marshal(historyEnvelope{V: historyVersion, Messages: messages})
	if err != nil {
		return nil, mixerr.Wrap(mixerr.KindProviderPermanent, op, err)
	}

	return &Result{
		Content:     final,
		History:     history,
		Usage:       rec.Usage(),
		Submissions: rec.Submissions(),
	}, nil
}

// executeTool runs one tool call and renders its result for the model.
func executeTool(ctx context.Context, toolIndex map[string]tools.Tool, tc types.ToolCall) string {
	t, ok := toolIndex[tc.Name]
	if !ok {
		return fmt.Sprintf("Error: unknown tool %q", tc.Name)
	}

	result, err := t.Execute(ctx, tc.Input)
	if err != nil {
		return fmt.Sprintf("Error: %s", err)
	}
	if !result.Success {
		if result.Error != nil {
			return fmt.Sprintf("Error (%s): %s", result.Error.Code, result.Error.Message)
		}
		return "Error: tool execution failed"
	}
	return result.Content
}
