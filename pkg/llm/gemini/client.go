// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package gemini implements the LLMProvider interface for Google's
// Gemini generateContent API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/mixseek/mixseek/pkg/llm"
	"github.com/mixseek/mixseek/pkg/mixerr"
	"github.com/mixseek/mixseek/pkg/tools"
	"github.com/mixseek/mixseek/pkg/types"
)

const (
	// DefaultBaseURL is the Gemini API base. The model and method are
	// appended per request.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	// DefaultMaxTokens is the default maximum output tokens.
	DefaultMaxTokens = 4096
	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 120 * time.Second
)

// Client implements types.LLMProvider for Gemini.
type Client struct {
	apiKey      string
	model       string
	baseURL     string
	httpClient  *http.Client
	maxTokens   int
	temperature *float64
	capability  types.Capability
}

// Config holds configuration for the Gemini client.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	MaxTokens   int
	Temperature *float64

	// Capability enables a provider-native tool: web-search maps to
	// google_search, code-exec maps to code_execution.
	Capability types.Capability
}

// NewClient creates a new Gemini client. The default path authenticates
// with GOOGLE_API_KEY against the Gemini API; when
// GOOGLE_GENAI_USE_VERTEXAI is set the client targets the Vertex AI
// publisher endpoint and authenticates with application default
// credentials (GOOGLE_APPLICATION_CREDENTIALS).
func NewClient(config Config) (*Client, error) {
	const op = "gemini.new"

	if config.Model == "" {
		return nil, mixerr.New(mixerr.KindConfiguration, op, "model id is required")
	}
	switch config.Capability {
	case "", types.CapabilityPlain, types.CapabilityWebSearch, types.CapabilityCodeExec:
	default:
		return nil, &mixerr.Error{
			Kind:     mixerr.KindProviderPermanent,
			Op:       op,
			Provider: "gemini",
			Message:  fmt.Sprintf("capability %q is not supported", config.Capability),
		}
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = DefaultMaxTokens
	}

	if vertexEnabled() {
		return newVertexClient(config)
	}

	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, &mixerr.Error{
			Kind:     mixerr.KindAuthentication,
			Op:       op,
			Provider: "gemini",
			Message:  "GOOGLE_API_KEY is not set",
		}
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}

	return &Client{
		apiKey:      apiKey,
		model:       config.Model,
		baseURL:     config.BaseURL,
		maxTokens:   config.MaxTokens,
		temperature: config.Temperature,
		capability:  config.Capability,
		httpClient:  &http.Client{Timeout: config.Timeout},
	}, nil
}

// vertexEnabled reports whether GOOGLE_GENAI_USE_VERTEXAI requests the
// Vertex AI routing.
func vertexEnabled() bool {
	v := os.Getenv("GOOGLE_GENAI_USE_VERTEXAI")
	return v == "1" || strings.EqualFold(v, "true")
}

// newVertexClient builds a client for the Vertex AI publisher endpoint.
// The request and response wire format is the same generateContent
// shape; only the URL and the credential source differ. Requires
// GOOGLE_CLOUD_PROJECT; GOOGLE_CLOUD_LOCATION defaults to us-central1.
func newVertexClient(config Config) (*Client, error) {
	const op = "gemini.new"

	project := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if project == "" {
		return nil, mixerr.New(mixerr.KindConfiguration, op, "GOOGLE_CLOUD_PROJECT is required when GOOGLE_GENAI_USE_VERTEXAI is set")
	}
	location := os.Getenv("GOOGLE_CLOUD_LOCATION")
	if location == "" {
		location = "us-central1"
	}

	ts, err := google.DefaultTokenSource(context.Background(), "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return nil, &mixerr.Error{
			Kind:     mixerr.KindAuthentication,
			Op:       op,
			Provider: "gemini",
			Message:  "loading application default credentials",
			Err:      err,
		}
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		host := location + "-aiplatform.googleapis.com"
		if location == "global" {
			host = "aiplatform.googleapis.com"
		}
		baseURL = fmt.Sprintf("https://%s/v1/projects/%s/locations/%s/publishers/google/models", host, project, location)
	}

	httpClient := oauth2.NewClient(context.Background(), ts)
	httpClient.Timeout = config.Timeout

	return &Client{
		model:       config.Model,
		baseURL:     baseURL,
		maxTokens:   config.MaxTokens,
		temperature: config.Temperature,
		capability:  config.Capability,
		httpClient:  httpClient,
	}, nil
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "gemini"
}

// Model returns the model identifier.
func (c *Client) Model() string {
	return c.model
}

// Chat sends a conversation to Gemini and returns the response.
func (c *Client) Chat(ctx context.Context, messages []types.Message, tls []tools.Tool) (*types.LLMResponse, error) {
	system, contents, err := convertMessages(messages)
	if err != nil {
		return nil, err
	}

	req := &GenerateRequest{
		Contents: contents,
		GenerationConfig: &GenerationConfig{
			Temperature:     c.temperature,
			MaxOutputTokens: c.maxTokens,
		},
	}
	if system != "" {
		req.SystemInstruction = &Content{Parts: []Part{{Text: system}}}
	}

	decl, err := convertTools(tls)
	if err != nil {
		return nil, err
	}
	switch c.capability {
	case types.CapabilityWebSearch:
		decl.GoogleSearch = &struct{}{}
	case types.CapabilityCodeExec:
		decl.CodeExecution = &struct{}{}
	}
	if len(decl.FunctionDeclarations) > 0 || decl.GoogleSearch != nil || decl.CodeExecution != nil {
		req.Tools = []ToolDeclaration{*decl}
	}

	resp, err := c.callAPI(ctx, req)
	if err != nil {
		return nil, err
	}
	return convertResponse(resp)
}

// convertMessages converts kernel messages to Gemini contents. System
// messages are extracted into systemInstruction; Gemini uses role
// "model" for assistant turns and matches function responses by name,
// so the tool call id carries the function name.
func convertMessages(messages []types.Message) (string, []Content, error) {
	var system string
	var contents []Content

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content

		case "user":
			contents = append(contents, Content{
				Role:  "user",
				Parts: []Part{{Text: msg.Content}},
			})

		case "assistant":
			var parts []Part
			if msg.Content != "" {
				parts = append(parts, Part{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				args, err := json.Marshal(tc.Input)
				if err != nil {
					return "", nil, fmt.Errorf("marshaling function args for %s: %w", tc.Name, err)
				}
				parts = append(parts, Part{
					FunctionCall: &FunctionCall{Name: tc.Name, Args: args},
				})
			}
			contents = append(contents, Content{Role: "model", Parts: parts})

		case "tool":
			contents = append(contents, Content{
				Role: "user",
				Parts: []Part{{
					FunctionResponse: &FunctionResponse{
						Name:     functionNameFromID(msg.ToolUseID),
						Response: map[string]any{"result": msg.Content},
					},
				}},
			})

		default:
			return "", nil, fmt.Errorf("unsupported message role %q", msg.Role)
		}
	}

	return system, contents, nil
}

// functionNameFromID recovers the function name from a call id minted
// by convertResponse ("name-xxxxxxxx"). Ids without a suffix pass
// through unchanged.
func functionNameFromID(id string) string {
	if i := strings.LastIndex(id, "-"); i > 0 {
		return id[:i]
	}
	return id
}

// convertTools converts kernel tools to function declarations.
func convertTools(tls []tools.Tool) (*ToolDeclaration, error) {
	decl := &ToolDeclaration{}
	for _, t := range tls {
		schema, err := t.InputSchema().ToJSON()
		if err != nil {
			return nil, fmt.Errorf("marshaling schema for tool %s: %w", t.Name(), err)
		}
		decl.FunctionDeclarations = append(decl.FunctionDeclarations, FunctionDeclaration{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  schema,
		})
	}
	return decl, nil
}

// convertResponse converts a Gemini response to the kernel format.
// Gemini does not mint call ids, so each function call gets a fresh
// uuid; the function name rides along for response matching.
func convertResponse(resp *GenerateResponse) (*types.LLMResponse, error) {
	if len(resp.Candidates) == 0 {
		return nil, mixerr.New(mixerr.KindProviderPermanent, "gemini.chat", "response has no candidates")
	}
	cand := resp.Candidates[0]

	out := &types.LLMResponse{
		StopReason: cand.FinishReason,
		Usage:      types.Usage{Requests: 1},
	}
	if resp.UsageMetadata != nil {
		out.Usage.InputTokens = resp.UsageMetadata.PromptTokenCount
		out.Usage.OutputTokens = resp.UsageMetadata.CandidatesTokenCount
	}

	for _, part := range cand.Content.Parts {
		switch {
		case part.Text != "":
			if out.Content != "" {
				out.Content += "\n"
			}
			out.Content += part.Text
		case part.FunctionCall != nil:
			input := map[string]any{}
			if len(part.FunctionCall.Args) > 0 {
				_ = json.Unmarshal(part.FunctionCall.Args, &input)
			}
			out.ToolCalls = append(out.ToolCalls, types.ToolCall{
				ID:    part.FunctionCall.Name + "-" + uuid.New().String()[:8],
				Name:  part.FunctionCall.Name,
				Input: input,
			})
		}
	}

	return out, nil
}

// callAPI performs one HTTP round trip with status classification.
func (c *Client) callAPI(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	const op = "gemini.chat"

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	// Vertex clients authenticate through the oauth2 transport instead.
	if c.apiKey != "" {
		httpReq.Header.Set("x-goog-api-key", c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, llm.WrapTransport("gemini", op, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, llm.WrapTransport("gemini", op, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var apiErr ErrorResponse
		msg := string(respBody)
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return nil, &mixerr.Error{
			Kind:     llm.ClassifyStatus(httpResp.StatusCode),
			Op:       op,
			Provider: "gemini",
			Message:  fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode, msg),
		}
	}

	var resp GenerateResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, &mixerr.Error{
			Kind:     mixerr.KindProviderPermanent,
			Op:       op,
			Provider: "gemini",
			Message:  "unparseable response body",
			Err:      err,
		}
	}
	return &resp, nil
}
