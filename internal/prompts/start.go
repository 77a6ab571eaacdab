// Package prompts implements MCP prompt handlers for the orchestration
// server.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/smartflow/internal/workflow"
)

// StartPrompt handles the smart-start MCP prompt.
// It guides the AI through a first orchestration run.
type StartPrompt struct{}

// NewStartPrompt creates a StartPrompt.
func NewStartPrompt() *StartPrompt {
	return &StartPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StartPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("smart-start",
		mcp.WithPromptDescription(
			"Turn a business request into a multi-role workflow run. "+
				"Collects goals and constraints, picks a workflow template, "+
				"runs the orchestration and walks you through the result.",
		),
		mcp.WithArgument("request",
			mcp.ArgumentDescription("What you want built or changed, in plain language"),
		),
		mcp.WithArgument("workflow",
			mcp.ArgumentDescription(
				"Workflow template: "+strings.Join(workflow.TemplateNames(), ", ")+". Default: project",
			),
		),
		mcp.WithArgument("project_id",
			mcp.ArgumentDescription("Existing project whose business context should be extended"),
		),
	)
}

// Handle processes the smart-start prompt request.
func (p *StartPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	args := req.Params.Arguments
	request := strings.TrimSpace(args["request"])
	wf := strings.TrimSpace(args["workflow"])
	if wf == "" {
		wf = workflow.DefaultTemplate
	}
	projectID := strings.TrimSpace(args["project_id"])

	var b strings.Builder
	if request == "" {
		b.WriteString("I want to start a new orchestrated workflow.\n\n")
		b.WriteString("1. Ask me what I want built or changed, in one or two sentences\n")
	} else {
		fmt.Fprintf(&b, "I want to run this request through a %s workflow: %q\n\n", wf, request)
		b.WriteString("1. Restate the request in one sentence so we agree on it\n")
	}
	b.WriteString("2. Ask me for the business goals, key requirements, stakeholders and hard constraints (budget, deadline, tech)\n")
	if projectID != "" {
		fmt.Fprintf(&b, "3. Call `smart_context` with project_id=%q to see what the project already knows, and only ask about gaps\n", projectID)
	} else {
		b.WriteString("3. Pick a short project_id for this work so later runs can build on it\n")
	}
	fmt.Fprintf(&b, "4. Call `smart_orchestrate` with workflow=%q, the request, the goals/requirements/stakeholders/constraints you collected, and cost_prevention=true\n", wf)
	b.WriteString("5. Present the result: phase by phase with the gate verdicts, then warnings, then the next steps ordered by priority\n")
	b.WriteString("6. If a blocking phase failed, propose how to address it before running again\n")

	return &mcp.GetPromptResult{
		Description: "Start an orchestrated workflow",
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.NewTextContent(b.String()),
			},
		},
	}, nil
}
