package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusPrompt handles the smart-status MCP prompt.
// It instructs the AI to summarize recent orchestration runs.
type StatusPrompt struct{}

// NewStatusPrompt creates a StatusPrompt.
func NewStatusPrompt() *StatusPrompt {
	return &StatusPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StatusPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("smart-status",
		mcp.WithPromptDescription(
			"Review recent orchestration runs: which succeeded, which phases failed "+
				"their quality gate, and what to do next.",
		),
	)
}

// Handle processes the smart-status prompt request.
func (p *StatusPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Orchestration status",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please run `smart_workflow_status` to list my recent orchestration runs.\n\n" +
						"Then:\n" +
						"1. Show the runs in a short table: workflow, status, warnings, time\n" +
						"2. For any failed run, fetch it with its orchestration_id and explain which phase failed and why\n" +
						"3. Collect the open next steps across runs, highest priority first\n" +
						"4. Tell me exactly what I should do next",
				),
			},
		},
	}, nil
}
