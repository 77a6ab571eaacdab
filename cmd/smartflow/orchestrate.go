package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/smartflow/internal/bizctx"
	"github.com/HendryAvila/smartflow/internal/orchestrator"
	sfserver "github.com/HendryAvila/smartflow/internal/server"
)

type orchestrateOptions struct {
	request        string
	workflow       string
	role           string
	qualityLevel   string
	projectID      string
	costPrevention bool
	goals          []string
	requirements   []string
}

func newOrchestrateCmd(root *rootOptions) *cobra.Command {
	o := &orchestrateOptions{}

	cmd := &cobra.Command{
		Use:   "orchestrate",
		Short: "Run one business request through a workflow and print the result",
		Long: `Run one business request through a workflow template without starting
the MCP server. The WorkflowResult is printed as JSON on stdout. The exit
code is 1 when the result is not successful.

Examples:
  smartflow orchestrate --request "Create a login page"
  smartflow orchestrate --request "Fix logout" --workflow bugfix --project-id acme
  smartflow orchestrate --request "Add CSV export" --workflow feature --cost-prevention`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(o.request) == "" {
				return fmt.Errorf("--request is required")
			}

			cfg, logger, err := loadRuntime(root)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			app, cleanup, err := sfserver.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res := app.Engine.Orchestrate(ctx, o.toRequest())

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return fmt.Errorf("writing result: %w", err)
			}
			if !res.Success {
				return errRunFailed
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.request, "request", "", "business request in plain language (required)")
	f.StringVar(&o.workflow, "workflow", "", "workflow template: project, feature, bugfix or refactor")
	f.StringVar(&o.role, "role", "", "pin every phase to one role")
	f.StringVar(&o.qualityLevel, "quality-level", "", "quality gate strictness: basic, standard, high, enterprise")
	f.StringVar(&o.projectID, "project-id", "", "project whose business context the run extends")
	f.BoolVar(&o.costPrevention, "cost-prevention", false, "gather knowledge before every phase")
	f.StringSliceVar(&o.goals, "goal", nil, "business goal to add to the context (repeatable)")
	f.StringSliceVar(&o.requirements, "requirement", nil, "requirement to add to the context (repeatable)")
	return cmd
}

func (o *orchestrateOptions) toRequest() orchestrator.Request {
	req := orchestrator.Request{
		Request:        o.request,
		Workflow:       o.workflow,
		Role:           o.role,
		QualityLevel:   o.qualityLevel,
		CostPrevention: o.costPrevention,
	}
	partial := bizctx.PartialBusinessContext{
		ProjectID:     strings.TrimSpace(o.projectID),
		BusinessGoals: o.goals,
		Requirements:  o.requirements,
	}
	if partial.ProjectID != "" || !partial.IsEmpty() {
		req.Context = &partial
	}
	return req
}
