// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package member

import (
	"context"

	"github.com/mixseek/mixseek/pkg/config"
	"github.com/mixseek/mixseek/pkg/llm"
	"github.com/mixseek/mixseek/pkg/llm/factory"
	"github.com/mixseek/mixseek/pkg/mixerr"
	"github.com/mixseek/mixseek/pkg/types"
)

// llmMember is a single-call LLM-backed member. The capability is baked
// into the provider at construction (web search and code execution are
// provider-native tools, not conversation machinery).
type llmMember struct {
	name       string
	agentType  string
	system     string
	provider   types.LLMProvider
	capability types.Capability
}

func newLLMMember(spec *config.MemberSpec, capability types.Capability) (*llmMember, error) {
	provider, err := factory.CreateProvider(spec.Agent.Model, factory.Options{
		Temperature: spec.Agent.Temperature,
		MaxTokens:   spec.Agent.MaxTokens,
		Capability:  capability,
	})
	if err != nil {
		return nil, err
	}
	return &llmMember{
		name:       spec.AgentName,
		agentType:  spec.AgentType,
		system:     spec.Agent.SystemInstruction,
		provider:   provider,
		capability: capability,
	}, nil
}

func (m *llmMember) Name() string { return m.name }
func (m *llmMember) Type() string { return m.agentType }

// Run performs one provider call with transient-error retry.
func (m *llmMember) Run(ctx context.Context, task string) (string, types.Usage, error) {
	var messages []types.Message
	if m.system != "" {
		messages = append(messages, types.Message{Role: "system", Content: m.system})
	}
	messages = append(messages, types.Message{Role: "user", Content: task})

	resp, err := llm.ChatWithRetry(ctx, m.provider, messages, nil, llm.RetryConfig{})
	if err != nil {
		return "", types.Usage{}, err
	}
	if resp.Content == "" {
		return "", resp.Usage, mixerr.New(mixerr.KindProviderPermanent, "member.run", "provider returned empty content")
	}
	return resp.Content, resp.Usage, nil
}
