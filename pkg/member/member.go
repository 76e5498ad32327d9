// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package member implements the team member agents the leader delegates
// to. Plain, web-search and code-exec members are one LLM call with the
// matching provider capability; custom members shell out to a plugin
// executable speaking line-delimited JSON.
package member

import (
	"context"
	"fmt"

	"github.com/mixseek/mixseek/pkg/config"
	"github.com/mixseek/mixseek/pkg/mixerr"
	"github.com/mixseek/mixseek/pkg/types"
)

// Member is one delegable team member.
type Member interface {
	// Name returns the agent name from configuration.
	Name() string

	// Type returns the agent type (plain, web-search, code-exec, custom).
	Type() string

	// Run executes one task and returns the member's text result plus
	// the provider usage it consumed.
	Run(ctx context.Context, task string) (string, types.Usage, error)
}

// New builds a member from its spec. Provider construction happens here
// so credential and capability problems surface at team setup, not
// mid-round.
func New(spec *config.MemberSpec) (Member, error) {
	switch spec.AgentType {
	case "plain":
		return newLLMMember(spec, types.CapabilityPlain)
	case "web-search":
		return newLLMMember(spec, types.CapabilityWebSearch)
	case "code-exec":
		return newLLMMember(spec, types.CapabilityCodeExec)
	case "custom":
		return newCustomMember(spec)
	default:
		return nil, mixerr.New(mixerr.KindConfiguration, "member.new", fmt.Sprintf("unknown agent_type %q", spec.AgentType))
	}
}
