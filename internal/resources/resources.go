// Package resources implements MCP resource handlers for the
// orchestration server.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (smartflow://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"gopkg.in/yaml.v3"

	"github.com/HendryAvila/smartflow/internal/bizctx"
	"github.com/HendryAvila/smartflow/internal/workflow"
)

const (
	// WorkflowsURI is the address of the workflow template catalogue.
	WorkflowsURI = "smartflow://workflows"
	// contextURIPrefix precedes the project id in context URIs.
	contextURIPrefix = "smartflow://context/"
)

// ContextReader reads a project's business context. *bizctx.Broker
// implements it.
type ContextReader interface {
	Snapshot(projectID string) (bizctx.BusinessContext, bool)
}

// Handler manages the server's resource endpoints.
type Handler struct {
	contexts ContextReader
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(contexts ContextReader) *Handler {
	return &Handler{contexts: contexts}
}

// WorkflowsResource returns the MCP resource definition for the template
// catalogue.
func (h *Handler) WorkflowsResource() mcp.Resource {
	return mcp.NewResource(
		WorkflowsURI,
		"Workflow Templates",
		mcp.WithResourceDescription("The built-in workflow templates: phases, roles, tasks and which phases are blocking"),
		mcp.WithMIMEType("application/yaml"),
	)
}

// HandleWorkflows returns the template catalogue as YAML.
func (h *Handler) HandleWorkflows(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	catalogue := make([]workflow.Template, 0, len(workflow.Registry))
	for _, name := range workflow.TemplateNames() {
		catalogue = append(catalogue, workflow.Registry[name])
	}
	data, err := yaml.Marshal(map[string]any{
		"default":   workflow.DefaultTemplate,
		"workflows": catalogue,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling workflows: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/yaml",
			Text:     string(data),
		},
	}, nil
}

// ContextTemplate returns the MCP resource template for project contexts.
func (h *Handler) ContextTemplate() mcp.ResourceTemplate {
	return mcp.NewResourceTemplate(
		contextURIPrefix+"{projectId}",
		"Business Context",
		mcp.WithTemplateDescription("Current business context of a project: goals, requirements, stakeholders, constraints and version"),
		mcp.WithTemplateMIMEType("application/json"),
	)
}

// HandleContext returns a project's business context as JSON.
func (h *Handler) HandleContext(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	projectID := strings.TrimPrefix(uri, contextURIPrefix)
	if projectID == uri || projectID == "" {
		return errorResource(uri, "expected "+contextURIPrefix+"{projectId}"), nil
	}

	snap, ok := h.contexts.Snapshot(projectID)
	if !ok {
		return errorResource(uri, fmt.Sprintf("no business context for project %q", projectID)), nil
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling context: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
