// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package member

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mixseek/mixseek/pkg/config"
	"github.com/mixseek/mixseek/pkg/mixerr"
	"github.com/mixseek/mixseek/pkg/types"
)

// pluginRequest is one task sent to a custom member plugin over stdin.
type pluginRequest struct {
	Task string `json:"task"`
}

// pluginResponse is the plugin's reply on stdout.
type pluginResponse struct {
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// customMember runs an external executable per task. Protocol: one JSON
// request line on stdin, one JSON response line on stdout, exit 0.
type customMember struct {
	name       string
	pluginPath string
}

func newCustomMember(spec *config.MemberSpec) (*customMember, error) {
	if spec.PluginPath == "" {
		return nil, mixerr.New(mixerr.KindConfiguration, "member.custom", "plugin_path is required")
	}
	return &customMember{
		name:       spec.AgentName,
		pluginPath: spec.PluginPath,
	}, nil
}

func (m *customMember) Name() string { return m.name }
func (m *customMember) Type() string { return "custom" }

// Run invokes the plugin once. Usage counts one request with zero
// tokens; whatever the plugin spends internally is invisible here.
func (m *customMember) Run(ctx context.Context, task string) (string, types.Usage, error) {
	const op = "member.custom"
	usage := types.Usage{Requests: 1}

	req, err := json.Marshal(pluginRequest{Task: task})
	if err != nil {
		return "", usage, mixerr.Wrap(mixerr.KindProviderPermanent, op, err)
	}

	cmd := exec.CommandContext(ctx, m.pluginPath)
	cmd.Stdin = strings.NewReader(string(req) + "\n")

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", usage, mixerr.Wrap(mixerr.KindProviderPermanent, op, err)
	}
	if err := cmd.Start(); err != nil {
		return "", usage, mixerr.Wrapf(mixerr.KindProviderPermanent, op, err, "starting plugin %s", m.pluginPath)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var line string
	if scanner.Scan() {
		line = scanner.Text()
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return "", usage, mixerr.Wrap(mixerr.KindOf(ctx.Err()), op, ctx.Err())
		}
		return "", usage, mixerr.Wrapf(mixerr.KindProviderPermanent, op, err, "plugin %s exited abnormally", m.pluginPath)
	}

	if line == "" {
		return "", usage, mixerr.New(mixerr.KindProviderPermanent, op, fmt.Sprintf("plugin %s produced no output", m.pluginPath))
	}

	var resp pluginResponse
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return "", usage, mixerr.Wrapf(mixerr.KindProviderPermanent, op, err, "plugin %s output is not valid JSON", m.pluginPath)
	}
	if resp.Error != "" {
		return "", usage, mixerr.New(mixerr.KindProviderPermanent, op, fmt.Sprintf("plugin %s: %s", m.pluginPath, resp.Error))
	}
	return resp.Content, usage, nil
}
