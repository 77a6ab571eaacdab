// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates concrete implementations and
// injects them into the tools, prompts and resources that depend on
// abstractions. No business logic lives here, only wiring.
package server

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/HendryAvila/smartflow/internal/bizctx"
	"github.com/HendryAvila/smartflow/internal/config"
	"github.com/HendryAvila/smartflow/internal/knowledge"
	"github.com/HendryAvila/smartflow/internal/logging"
	"github.com/HendryAvila/smartflow/internal/memory"
	"github.com/HendryAvila/smartflow/internal/memtools"
	"github.com/HendryAvila/smartflow/internal/orchestrator"
	"github.com/HendryAvila/smartflow/internal/prompts"
	"github.com/HendryAvila/smartflow/internal/resources"
	"github.com/HendryAvila/smartflow/internal/runs"
	"github.com/HendryAvila/smartflow/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// App holds the wired components. MCP is ready to be served; the rest is
// exposed for the CLI and for tests.
type App struct {
	MCP       *server.MCPServer
	Engine    *orchestrator.Engine
	Broker    *bizctx.Broker
	Knowledge *knowledge.Coordinator
	Runs      *runs.FileStore
	// Memory is nil when the memory subsystem is disabled or failed to open.
	Memory   *memory.Store
	Registry *prometheus.Registry
}

// New creates and configures the application with all tools, prompts and
// resources registered. This is the single place where all dependencies
// are resolved.
//
// The returned cleanup function closes the memory store's database
// connection and must be called on shutdown (typically via defer).
// It is always non-nil and safe to call even if memory init failed.
func New(cfg *config.Config, logger *logging.Logger) (*App, func(), error) {
	if cfg == nil {
		return nil, noop, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, noop, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx := context.Background()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// --- Memory ---
	//
	// Memory is an independent subsystem: if it fails to initialize,
	// orchestration keeps working without the memory knowledge source
	// and without run recording in memory.

	cleanup := noop
	var memStore *memory.Store
	if cfg.Knowledge.Memory.Enabled {
		ms, err := memory.New(memory.DefaultConfig(cfg.DataDir))
		if err != nil {
			logger.Warn(ctx, "memory subsystem disabled", zap.Error(err))
		} else {
			memStore = ms
			cleanup = func() {
				if err := ms.Close(); err != nil {
					logger.Warn(ctx, "memory store close", zap.Error(err))
				}
			}
		}
	}

	// --- Knowledge ---

	kc := cfg.Knowledge
	adapters := []knowledge.Adapter{
		knowledge.NewContext7Adapter(knowledge.Context7Options{
			Enabled: kc.Context7.Enabled,
			BaseURL: kc.Context7.BaseURL,
			APIKey:  kc.Context7.APIKey.Value(),
		}),
		knowledge.NewWebSearchAdapter(knowledge.WebSearchOptions{
			Enabled:       kc.WebSearch.Enabled,
			BaseURL:       kc.WebSearch.BaseURL,
			APIKey:        kc.WebSearch.APIKey.Value(),
			RatePerSecond: kc.WebSearch.RatePerSecond,
			Burst:         kc.WebSearch.Burst,
		}),
	}
	// A nil *memory.Store inside the interface would not compare nil.
	var searcher knowledge.MemorySearcher
	if memStore != nil {
		searcher = memStore
	}
	adapters = append(adapters, knowledge.NewMemoryAdapter(searcher, kc.Memory.Enabled))

	coordinator, err := knowledge.NewCoordinator(adapters,
		knowledge.WithAdapterTimeout(kc.AdapterTimeout.Duration()),
		knowledge.WithMaxResults(kc.MaxResults),
		knowledge.WithMaxConcurrency(kc.MaxConcurrency),
		knowledge.WithLogger(logger),
		knowledge.WithMetrics(knowledge.NewMetrics(reg)),
	)
	if err != nil {
		cleanup()
		return nil, noop, fmt.Errorf("creating knowledge coordinator: %w", err)
	}

	// --- Orchestration ---

	broker := bizctx.NewBroker()
	runStore := runs.NewFileStore(cfg.DataDir, logger)

	var observers []orchestrator.RunObserver
	if cfg.Orchestration.RecordRuns {
		observers = append(observers, runStore)
	}
	if memStore != nil {
		observers = append(observers, orchestrator.NewMemoryRecorder(memStore, logger))
	}

	engine, err := orchestrator.NewEngine(orchestrator.Deps{
		Contexts:  broker,
		Knowledge: coordinator,
		Observers: observers,
		Logger:    logger,
		Metrics:   orchestrator.NewMetrics(reg),
	}, orchestrator.Options{
		DefaultWorkflow:   cfg.Orchestration.DefaultWorkflow,
		Deadline:          cfg.Orchestration.Deadline.Duration(),
		StrictGates:       cfg.Orchestration.StrictGates,
		MaxKnowledgeItems: kc.MaxResults,
	})
	if err != nil {
		cleanup()
		return nil, noop, fmt.Errorf("creating orchestration engine: %w", err)
	}

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		"smartflow",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register orchestration tools ---

	orchestrateTool := tools.NewOrchestrateTool(engine)
	s.AddTool(orchestrateTool.Definition(), orchestrateTool.Handle)

	contextTool := tools.NewContextTool(broker)
	s.AddTool(contextTool.Definition(), contextTool.Handle)

	knowledgeTool := tools.NewKnowledgeTool(coordinator)
	s.AddTool(knowledgeTool.Definition(), knowledgeTool.Handle)

	statusTool := tools.NewWorkflowStatusTool(runStore)
	s.AddTool(statusTool.Definition(), statusTool.Handle)

	// --- Register memory tools ---

	if memStore != nil {
		registerMemoryTools(s, memStore)
	}

	// --- Register prompts ---

	startPrompt := prompts.NewStartPrompt()
	s.AddPrompt(startPrompt.Definition(), startPrompt.Handle)

	statusPrompt := prompts.NewStatusPrompt()
	s.AddPrompt(statusPrompt.Definition(), statusPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(broker)
	s.AddResource(resourceHandler.WorkflowsResource(), resourceHandler.HandleWorkflows)
	s.AddResourceTemplate(resourceHandler.ContextTemplate(), resourceHandler.HandleContext)

	logger.Info(ctx, "smartflow wired",
		zap.String("version", Version),
		zap.Any("knowledge_sources", coordinator.Sources()),
		zap.Bool("memory", memStore != nil),
		zap.Bool("record_runs", cfg.Orchestration.RecordRuns),
	)

	return &App{
		MCP:       s,
		Engine:    engine,
		Broker:    broker,
		Knowledge: coordinator,
		Runs:      runStore,
		Memory:    memStore,
		Registry:  reg,
	}, cleanup, nil
}

// noop is a no-op cleanup function used as the default when memory
// is disabled or hasn't been initialized.
func noop() {}

// registerMemoryTools registers the memory MCP tools with the server.
func registerMemoryTools(s *server.MCPServer, ms *memory.Store) {
	saveTool := memtools.NewSaveTool(ms)
	s.AddTool(saveTool.Definition(), saveTool.Handle)

	searchTool := memtools.NewSearchTool(ms)
	s.AddTool(searchTool.Definition(), searchTool.Handle)

	recentTool := memtools.NewRecentTool(ms)
	s.AddTool(recentTool.Definition(), recentTool.Handle)

	getTool := memtools.NewGetTool(ms)
	s.AddTool(getTool.Definition(), getTool.Handle)

	deleteTool := memtools.NewDeleteTool(ms)
	s.AddTool(deleteTool.Definition(), deleteTool.Handle)

	statsTool := memtools.NewStatsTool(ms)
	s.AddTool(statsTool.Definition(), statsTool.Handle)
}

// serverInstructions returns the system instructions that tell the AI
// how to use smartflow effectively.
func serverInstructions() string {
	return `You have access to smartflow, a workflow orchestration MCP server.

## WHEN TO USE smartflow

Use smart_orchestrate when the user asks for work that spans several
disciplines: product thinking, design, implementation, testing and
operations. Examples: "create a login page", "fix the checkout bug",
"add CSV export". Small one-line edits do not need an orchestration.

## Workflows
- project: discovery, design, scaffold, quality, deployment
- feature: analysis, implementation, verification
- bugfix: triage, fix, regression
- refactor: scope, restructure, verification

Pick the smallest workflow that fits. Read smartflow://workflows for the
full catalogue. Pin a single role with ` + "`role`" + ` only when the user
asks for one discipline.

## Business Context
Every run extends a project's shared business context: goals,
requirements, stakeholders and constraints. Pass the same project_id to
build on earlier runs. Inspect it with smart_context or the resource
smartflow://context/{projectId}.

## Knowledge (cost prevention)
Set cost_prevention=true to gather documentation, web results and project
memory before every phase. Slow or failing sources are skipped. Use
smart_knowledge for a one-off lookup.

## Reading Results
- success=false means the request was rejected or the run was aborted.
  Read errorKind and error.
- success=true with workflow.status=failed means a blocking phase failed
  its quality gate. The remaining phases still ran. Start with the
  high-priority next steps.
- warnings list every non-passing gate.

## Memory
When memory is available, finished runs are recorded automatically.
Save decisions and lessons with smart_memory_save so later runs with
cost_prevention can find them. Review past runs with smart_workflow_status.`
}
