package tools

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/smartflow/internal/bizctx"
	"github.com/HendryAvila/smartflow/internal/orchestrator"
	"github.com/HendryAvila/smartflow/internal/workflow"
)

// Orchestrator runs one orchestration request. *orchestrator.Engine
// implements it.
type Orchestrator interface {
	Orchestrate(ctx context.Context, req orchestrator.Request) *orchestrator.WorkflowResult
}

// OrchestrateTool handles the smart_orchestrate MCP tool.
type OrchestrateTool struct {
	engine Orchestrator
}

// NewOrchestrateTool creates an OrchestrateTool.
func NewOrchestrateTool(engine Orchestrator) *OrchestrateTool {
	return &OrchestrateTool{engine: engine}
}

// Definition returns the MCP tool definition for registration.
func (t *OrchestrateTool) Definition() mcp.Tool {
	return mcp.NewTool("smart_orchestrate",
		mcp.WithDescription(
			"Run a business request through a multi-role workflow. Each phase gathers "+
				"supporting knowledge, runs its role, merges the outcome into the project's "+
				"shared business context and passes a quality gate. Returns the full workflow "+
				"result as JSON: phases, business context, metrics, next steps and warnings.",
		),
		mcp.WithString("request",
			mcp.Required(),
			mcp.Description("The business request in plain language, e.g. 'Create a login page'"),
		),
		mcp.WithString("workflow",
			mcp.Description("Workflow template. Default: project"),
			mcp.Enum(workflow.TemplateNames()...),
		),
		mcp.WithString("role",
			mcp.Description("Pin every phase to one role"),
			mcp.Enum("developer", "designer", "qa-engineer", "operations-engineer", "product-strategist"),
		),
		mcp.WithString("quality_level",
			mcp.Description("Quality gate strictness. Default: standard"),
			mcp.Enum("basic", "standard", "high", "enterprise"),
		),
		mcp.WithBoolean("cost_prevention",
			mcp.Description("Gather knowledge from documentation, web search and memory before every phase"),
		),
		mcp.WithString("project_id",
			mcp.Description("Project whose business context the run extends. A new project is created when omitted."),
		),
		mcp.WithArray("business_goals",
			mcp.Description("Business goals to add to the context"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithArray("requirements",
			mcp.Description("Requirements to add to the context"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithArray("stakeholders",
			mcp.Description("Stakeholders to add to the context"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithObject("constraints",
			mcp.Description("Constraint key/value pairs to merge into the context"),
		),
	)
}

// Handle processes the smart_orchestrate tool call.
func (t *OrchestrateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// An empty request is rejected by the engine as a structured result.
	request := req.GetString("request", "")

	partial := bizctx.PartialBusinessContext{
		ProjectID:     strings.TrimSpace(req.GetString("project_id", "")),
		BusinessGoals: stringsArg(req, "business_goals"),
		Requirements:  stringsArg(req, "requirements"),
		Stakeholders:  stringsArg(req, "stakeholders"),
		Constraints:   objectArg(req, "constraints"),
	}
	in := orchestrator.Request{
		Request:        request,
		Workflow:       req.GetString("workflow", ""),
		Role:           req.GetString("role", ""),
		QualityLevel:   req.GetString("quality_level", ""),
		CostPrevention: boolArg(req, "cost_prevention", false),
	}
	if partial.ProjectID != "" || !partial.IsEmpty() {
		in.Context = &partial
	}

	res := t.engine.Orchestrate(ctx, in)
	text, err := marshalResult(res)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return mcp.NewToolResultError(text), nil
	}
	return mcp.NewToolResultText(text), nil
}
