// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package factory creates LLM providers from model identifiers. A model
// id is either explicit "provider:model" or a bare model name whose
// provider is inferred from its prefix.
package factory

import (
	"fmt"
	"strings"
	"time"

	"github.com/mixseek/mixseek/pkg/llm/anthropic"
	"github.com/mixseek/mixseek/pkg/llm/gemini"
	"github.com/mixseek/mixseek/pkg/llm/openai"
	"github.com/mixseek/mixseek/pkg/mixerr"
	"github.com/mixseek/mixseek/pkg/types"
)

// Known provider names.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderGrok      = "grok"
)

// Options carries per-agent provider settings.
type Options struct {
	Temperature *float64
	MaxTokens   int
	Timeout     time.Duration
	Capability  types.Capability
}

// ParseModelID splits a model identifier into provider and model. An
// explicit "provider:model" form wins; otherwise the provider is
// inferred from the model name prefix.
func ParseModelID(modelID string) (provider, model string, err error) {
	const op = "factory.parse"

	if modelID == "" {
		return "", "", mixerr.New(mixerr.KindConfiguration, op, "model id is empty")
	}

	if prov, rest, ok := strings.Cut(modelID, ":"); ok {
		switch prov {
		case ProviderAnthropic, ProviderOpenAI, ProviderGemini, ProviderGrok:
			if rest == "" {
				return "", "", mixerr.New(mixerr.KindConfiguration, op, fmt.Sprintf("model id %q has no model after the provider prefix", modelID))
			}
			return prov, rest, nil
		case "google":
			if rest == "" {
				return "", "", mixerr.New(mixerr.KindConfiguration, op, fmt.Sprintf("model id %q has no model after the provider prefix", modelID))
			}
			return ProviderGemini, rest, nil
		default:
			return "", "", mixerr.New(mixerr.KindConfiguration, op, fmt.Sprintf("unknown provider %q in model id %q", prov, modelID))
		}
	}

	switch {
	case strings.HasPrefix(modelID, "claude"):
		return ProviderAnthropic, modelID, nil
	case strings.HasPrefix(modelID, "gpt"), strings.HasPrefix(modelID, "o"):
		return ProviderOpenAI, modelID, nil
	case strings.HasPrefix(modelID, "gemini"):
		return ProviderGemini, modelID, nil
	case strings.HasPrefix(modelID, "grok"):
		return ProviderGrok, modelID, nil
	default:
		return "", "", mixerr.New(mixerr.KindConfiguration, op, fmt.Sprintf("cannot infer provider from model id %q; use provider:model", modelID))
	}
}

// CreateProvider builds a provider client for the model id. Missing
// credentials surface as typed authentication errors; an unsupported
// capability for the resolved provider is a permanent error.
func CreateProvider(modelID string, opts Options) (types.LLMProvider, error) {
	provider, model, err := ParseModelID(modelID)
	if err != nil {
		return nil, err
	}

	switch provider {
	case ProviderAnthropic:
		return anthropic.NewClient(anthropic.Config{
			Model:       model,
			Temperature: opts.Temperature,
			MaxTokens:   opts.MaxTokens,
			Timeout:     opts.Timeout,
			Capability:  opts.Capability,
		})
	case ProviderOpenAI:
		return openai.NewClient(openai.Config{
			Model:       model,
			Temperature: opts.Temperature,
			MaxTokens:   opts.MaxTokens,
			Timeout:     opts.Timeout,
			Capability:  opts.Capability,
		})
	case ProviderGrok:
		return openai.NewGrokClient(openai.Config{
			Model:       model,
			Temperature: opts.Temperature,
			MaxTokens:   opts.MaxTokens,
			Timeout:     opts.Timeout,
			Capability:  opts.Capability,
		})
	case ProviderGemini:
		return gemini.NewClient(gemini.Config{
			Model:       model,
			Temperature: opts.Temperature,
			MaxTokens:   opts.MaxTokens,
			Timeout:     opts.Timeout,
			Capability:  opts.Capability,
		})
	default:
		return nil, mixerr.New(mixerr.KindConfiguration, "factory.create", fmt.Sprintf("unknown provider %q", provider))
	}
}
