package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HendryAvila/smartflow/internal/bizctx"
	"github.com/HendryAvila/smartflow/internal/knowledge"
	"github.com/HendryAvila/smartflow/internal/logging"
	"github.com/HendryAvila/smartflow/internal/quality"
	"github.com/HendryAvila/smartflow/internal/workflow"
)

// Package-level variables for testability.
var (
	timeNow = time.Now
	newID   = uuid.NewString
)

// maxKnowledgeRequirements caps the requirements derived from one
// phase's knowledge items.
const maxKnowledgeRequirements = 3

// ContextStore is the part of the business context broker the engine
// needs. *bizctx.Broker implements it.
type ContextStore interface {
	GetOrCreate(projectID string) bizctx.BusinessContext
	MergeWithReport(projectID string, partial bizctx.PartialBusinessContext) (bizctx.MergeReport, error)
	Snapshot(projectID string) (bizctx.BusinessContext, bool)
}

// KnowledgeGatherer fans a knowledge request out to the configured
// sources. *knowledge.Coordinator implements it.
type KnowledgeGatherer interface {
	Gather(ctx context.Context, req knowledge.Request) knowledge.Result
}

// RunObserver is notified once a run has finished, whatever its outcome.
// It's an optional dependency. Observers get a context that is never
// canceled, and must not modify the result.
type RunObserver interface {
	OnRunComplete(ctx context.Context, res *WorkflowResult)
}

// Deps are the collaborators of an Engine. Only Contexts is required.
type Deps struct {
	Contexts  ContextStore
	Knowledge KnowledgeGatherer
	// Executors overrides the executor per role; missing roles use the
	// standard executor.
	Executors map[workflow.Role]RoleExecutor
	Evaluator quality.Evaluator
	Estimator quality.ValueEstimator
	Observers []RunObserver
	Logger    *logging.Logger
	Metrics   *Metrics
}

// Options tune an Engine.
type Options struct {
	// DefaultWorkflow applies when a request names none.
	DefaultWorkflow string
	// Deadline bounds a whole run; zero means no deadline.
	Deadline time.Duration
	// StrictGates marks every phase blocking.
	StrictGates bool
	// MaxKnowledgeItems bounds each phase's knowledge request; zero uses
	// the coordinator's default.
	MaxKnowledgeItems int
}

// Engine drives requests through workflow templates. It is safe for
// concurrent use; every run owns its own workflow state.
type Engine struct {
	contexts  ContextStore
	knowledge KnowledgeGatherer
	executors map[workflow.Role]RoleExecutor
	evaluator quality.Evaluator
	estimator quality.ValueEstimator
	observers []RunObserver
	logger    *logging.Logger
	metrics   *Metrics
	opts      Options
}

// NewEngine wires an Engine from its dependencies.
func NewEngine(deps Deps, opts Options) (*Engine, error) {
	if deps.Contexts == nil {
		return nil, errors.New("orchestrator: context store is required")
	}
	if _, err := workflow.Lookup(opts.DefaultWorkflow); err != nil {
		return nil, fmt.Errorf("orchestrator: default workflow: %w", err)
	}
	if opts.Deadline < 0 {
		return nil, fmt.Errorf("orchestrator: deadline must not be negative, got %s", opts.Deadline)
	}

	e := &Engine{
		contexts:  deps.Contexts,
		knowledge: deps.Knowledge,
		executors: DefaultExecutors(PlanRunner{}),
		evaluator: deps.Evaluator,
		estimator: deps.Estimator,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		opts:      opts,
	}
	for role, ex := range deps.Executors {
		if ex != nil {
			e.executors[role] = ex
		}
	}
	for _, o := range deps.Observers {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
	if e.evaluator == nil {
		e.evaluator = quality.DefaultEvaluator{}
	}
	if e.estimator == nil {
		e.estimator = quality.NewDefaultValueEstimator()
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	e.logger = e.logger.Named("orchestrator")
	return e, nil
}

// plan is a validated request.
type plan struct {
	req       Request
	template  workflow.Template
	role      workflow.Role
	level     quality.Level
	projectID string
	seed      bizctx.PartialBusinessContext
	// goals are the business goals the caller asked for, checked against
	// the final context for the alignment score.
	goals []string
}

// run is the bookkeeping of one in-flight orchestration.
type run struct {
	plan
	id    string
	state *workflow.State

	attempted int
	merged    int
	clean     int

	knowledgeItems int
	sources        map[knowledge.Source]knowledge.Status
	integration    time.Duration

	phaseTime time.Duration
	loopTime  time.Duration

	warnings []string
	steps    []NextStep
}

func (r *run) warn(format string, args ...any) {
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
}

// Orchestrate runs a request through its workflow template and reports
// the outcome. Validation, missing context, deadline and cancellation
// failures come back with Success false; quality gate and knowledge
// source problems are reported as warnings of a successful call.
func (e *Engine) Orchestrate(ctx context.Context, req Request) *WorkflowResult {
	started := time.Now()
	id := newID()
	ctx = logging.WithOrchestrationID(ctx, id)

	res := &WorkflowResult{
		OrchestrationID: id,
		NextSteps:       []NextStep{},
		Warnings:        []string{},
	}
	res.ExternalIntegration = integrationSummary(nil, 0)

	p, err := e.validate(req)
	if err != nil {
		res.Workflow = WorkflowSummary{
			Template: strings.ToLower(strings.TrimSpace(req.Workflow)),
			Phases:   []workflow.Phase{},
			Status:   workflow.StatusFailed,
		}
		res.setError(err)
		res.TechnicalMetrics.ResponseTimeMs = time.Since(started).Milliseconds()
		res.Timestamp = stamp()
		e.metrics.run(res.Workflow.Template, "rejected")
		e.logger.Warn(ctx, "orchestration request rejected", zap.Error(err))
		return res
	}

	r := &run{
		plan:    p,
		id:      id,
		sources: make(map[knowledge.Source]knowledge.Status),
	}
	ctx = logging.WithProjectID(ctx, r.projectID)
	e.logger.Info(ctx, "orchestration started",
		zap.String("workflow", r.template.Name),
		zap.String("quality_level", string(r.level)),
		zap.Bool("cost_prevention", req.CostPrevention),
	)

	err = e.execute(ctx, r)
	e.finish(ctx, r, res, err, started)
	return res
}

// validate checks a request without touching any state.
func (e *Engine) validate(req Request) (plan, error) {
	p := plan{req: req}
	if strings.TrimSpace(req.Request) == "" {
		return p, &ValidationError{Field: "request", Message: "must not be empty"}
	}

	name := req.Workflow
	if strings.TrimSpace(name) == "" {
		name = e.opts.DefaultWorkflow
	}
	t, err := workflow.Lookup(name)
	if err != nil {
		return p, &ValidationError{Field: "workflow", Message: err.Error()}
	}
	p.template = t

	if strings.TrimSpace(req.Role) != "" {
		role, err := workflow.ParseRole(req.Role)
		if err != nil {
			return p, &ValidationError{Field: "role", Message: err.Error()}
		}
		p.role = role
	}

	level, err := quality.ParseLevel(req.QualityLevel)
	if err != nil {
		return p, &ValidationError{Field: "qualityLevel", Message: err.Error()}
	}
	p.level = level

	if req.Context != nil {
		p.seed = *req.Context
		p.projectID = strings.TrimSpace(req.Context.ProjectID)
	}
	if p.projectID == "" {
		p.projectID = newID()
	}
	request := strings.TrimSpace(req.Request)
	p.seed.ProjectID = p.projectID
	p.seed.BusinessGoals = append(slices.Clone(p.seed.BusinessGoals), request)
	p.goals = p.seed.BusinessGoals
	return p, nil
}

// execute walks the run through its phases. A returned error is fatal.
func (e *Engine) execute(ctx context.Context, r *run) error {
	phases := r.template.Plan(workflow.PlanOptions{Role: r.role, StrictGates: e.opts.StrictGates})
	r.state = workflow.NewState(r.id, r.template.Name, phases)

	e.contexts.GetOrCreate(r.projectID)
	if err := e.merge(ctx, r, r.seed); err != nil {
		return err
	}
	if err := workflow.Start(r.state); err != nil {
		return err
	}

	runCtx := ctx
	if e.opts.Deadline > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.opts.Deadline)
		defer cancel()
	}

	loopStart := time.Now()
	defer func() { r.loopTime = time.Since(loopStart) }()

	var last string
	for r.state.Status == workflow.StatusInProgress {
		p := workflow.CurrentPhase(r.state)
		last = p.ID
		if err := e.interrupted(runCtx, p.ID); err != nil {
			return err
		}
		if err := e.runPhase(runCtx, r, p); err != nil {
			return err
		}
	}
	// The final phase may overrun the deadline without observing ctx.
	if err := e.interrupted(runCtx, last); err != nil {
		workflow.Overrun(r.state, err.Error())
		return err
	}
	return nil
}

// interrupted converts a done context into the run's fatal error.
func (e *Engine) interrupted(ctx context.Context, phaseID string) error {
	err := ctx.Err()
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &OrchestrationTimeoutError{Deadline: e.opts.Deadline, Phase: phaseID}
	}
	return fmt.Errorf("orchestration canceled during phase %q: %w", phaseID, err)
}

// runPhase gathers knowledge, executes, gates and records one phase.
func (e *Engine) runPhase(ctx context.Context, r *run, p *workflow.Phase) error {
	phaseStart := time.Now()

	var items []knowledge.Item
	if r.req.CostPrevention && e.knowledge != nil {
		items = e.gather(ctx, r, p)
		if len(items) > 0 {
			if err := e.merge(ctx, r, knowledgePartial(p.ID, items)); err != nil {
				return err
			}
		}
		if err := e.interrupted(ctx, p.ID); err != nil {
			return err
		}
	}

	snap, ok := e.contexts.Snapshot(r.projectID)
	if !ok {
		return &bizctx.NotFoundError{ProjectID: r.projectID}
	}
	in := ExecInput{
		OrchestrationID: r.id,
		Request:         r.req.Request,
		Phase:           clonePhase(*p),
		Context:         snap,
		Knowledge:       items,
	}
	out, execErr := e.executor(p.Role).Execute(ctx, in)
	if err := e.interrupted(ctx, p.ID); err != nil {
		return err
	}
	if execErr != nil {
		e.logger.Warn(ctx, "role executor failed",
			zap.String("phase", p.ID),
			zap.String("role", string(p.Role)),
			zap.Error(execErr),
		)
		r.warn("phase %s: %s executor failed: %v", p.ID, p.Role, execErr)
	}
	applyTasks(p, out.Tasks)
	for _, note := range out.Notes {
		r.warn("phase %s: %s", p.ID, note)
	}
	if err := e.merge(ctx, r, out.Partial); err != nil {
		return err
	}

	rep, err := e.evaluate(ctx, r, p, len(items), execErr)
	if err != nil {
		return err
	}
	if err := e.merge(ctx, r, outcomePartial(p, rep.Result)); err != nil {
		return err
	}

	d := time.Since(phaseStart)
	r.phaseTime += d
	e.metrics.phase(p.Role, rep.Result, d)
	e.logger.Debug(ctx, "phase finished",
		zap.String("phase", p.ID),
		zap.String("role", string(p.Role)),
		zap.String("gate", string(rep.Result)),
		zap.Int("score", rep.Score),
		zap.Duration("duration", d),
	)
	return e.advance(r, p, rep, d)
}

func (e *Engine) executor(role workflow.Role) RoleExecutor {
	if ex, ok := e.executors[role]; ok {
		return ex
	}
	return NewRoleExecutor(role, PlanRunner{})
}

// gather asks the knowledge sources about the phase's domain.
func (e *Engine) gather(ctx context.Context, r *run, p *workflow.Phase) []knowledge.Item {
	priority := "normal"
	if p.Blocking {
		priority = "high"
	}
	kres := e.knowledge.Gather(ctx, knowledge.Request{
		ProjectID:       r.projectID,
		BusinessRequest: r.req.Request,
		Domain:          p.Role.Domain(),
		Priority:        priority,
		MaxResults:      e.opts.MaxKnowledgeItems,
	})
	r.integration += kres.Duration
	r.knowledgeItems += len(kres.Items)
	for _, s := range knowledge.AllSources {
		r.sources[s] = strongest(r.sources[s], kres.StatusOf(s))
	}
	return kres.Items
}

// evaluate runs the quality gate on the merged context. An executor or
// evaluator failure counts as a failed gate.
func (e *Engine) evaluate(ctx context.Context, r *run, p *workflow.Phase, knowledgeItems int, execErr error) (quality.Report, error) {
	snap, ok := e.contexts.Snapshot(r.projectID)
	if !ok {
		return quality.Report{}, &bizctx.NotFoundError{ProjectID: r.projectID}
	}
	rep, err := e.evaluator.Evaluate(ctx, quality.Input{
		Phase:          *p,
		Context:        snap,
		Level:          r.level,
		KnowledgeItems: knowledgeItems,
	})
	if err != nil {
		e.logger.Warn(ctx, "quality gate evaluation failed", zap.String("phase", p.ID), zap.Error(err))
		r.warn("phase %s: quality gate could not be evaluated: %v", p.ID, err)
		rep.Result = workflow.GateFail
	}
	if execErr != nil {
		rep.Result = workflow.GateFail
	}
	return rep, nil
}

// advance moves the state machine past the phase according to its gate.
func (e *Engine) advance(r *run, p *workflow.Phase, rep quality.Report, d time.Duration) error {
	switch {
	case rep.Result == workflow.GateFail && p.Blocking:
		r.warn("blocking phase %s failed its quality gate (score %d, threshold %d)", p.ID, rep.Score, rep.Threshold)
		r.steps = append(r.steps, phaseStep(p, rep.Result))
		return workflow.FailPhase(r.state, rep.Result, d,
			fmt.Sprintf("quality gate failed for blocking phase %q", p.ID))
	case rep.Result != workflow.GatePass:
		r.warn("phase %s: quality gate %s (score %d, threshold %d)", p.ID, rep.Result, rep.Score, rep.Threshold)
		r.steps = append(r.steps, phaseStep(p, rep.Result))
	}
	return workflow.CompletePhase(r.state, rep.Result, d)
}

// merge routes a partial context through the broker and counts it.
func (e *Engine) merge(ctx context.Context, r *run, partial bizctx.PartialBusinessContext) error {
	if partial.IsEmpty() {
		return nil
	}
	r.attempted++
	rep, err := e.contexts.MergeWithReport(r.projectID, partial)
	if err != nil {
		e.metrics.merge("error")
		return err
	}
	r.merged++
	if len(rep.Conflicts) > 0 {
		e.metrics.merge("conflict")
		e.logger.Debug(ctx, "context merge overwrote constraints", zap.Strings("keys", rep.Conflicts))
		return nil
	}
	r.clean++
	e.metrics.merge("clean")
	return nil
}

// finish fills the result from the run and notifies observers.
func (e *Engine) finish(ctx context.Context, r *run, res *WorkflowResult, err error, started time.Time) {
	if err != nil {
		workflow.Abort(r.state, err.Error())
	}

	res.ProjectID = r.projectID
	res.Workflow = WorkflowSummary{
		Template:          r.template.Name,
		Phases:            r.state.Phases,
		Status:            r.state.Status,
		CurrentPhaseIndex: r.state.CurrentPhaseIndex,
	}

	var goals []string
	if snap, ok := e.contexts.Snapshot(r.projectID); ok {
		res.BusinessContext = &snap
		goals = snap.BusinessGoals
	}

	res.Warnings = append(res.Warnings, r.warnings...)
	res.NextSteps = append(res.NextSteps, r.steps...)
	if r.state.Status == workflow.StatusCompleted {
		if step, ok := followUpStep(r.template, r.state.Phases); ok {
			res.NextSteps = append(res.NextSteps, step)
		}
	}

	res.BusinessValue = e.estimator.Estimate(quality.ValueInput{
		Phases:         r.state.Phases,
		Level:          r.level,
		KnowledgeItems: r.knowledgeItems,
	})
	res.TechnicalMetrics = TechnicalMetrics{
		ResponseTimeMs:              time.Since(started).Milliseconds(),
		OrchestrationTimeMs:         r.phaseTime.Milliseconds(),
		RoleTransitionTimeMs:        max(r.loopTime-r.phaseTime, 0).Milliseconds(),
		ContextPreservationAccuracy: ratio(r.clean, r.attempted),
		BusinessAlignmentScore:      alignmentScore(r.goals, goals),
		MergeCount:                  r.merged,
		KnowledgeItems:              r.knowledgeItems,
	}
	res.ExternalIntegration = integrationSummary(r.sources, r.integration)

	res.Success = err == nil
	if err != nil {
		res.setError(err)
	}
	res.Timestamp = stamp()

	e.metrics.run(r.template.Name, string(r.state.Status))
	fields := []zap.Field{
		zap.String("workflow", r.template.Name),
		zap.String("status", string(r.state.Status)),
		zap.Int("merge_count", r.merged),
		zap.Int("knowledge_items", r.knowledgeItems),
		zap.Int64("response_time_ms", res.TechnicalMetrics.ResponseTimeMs),
	}
	switch {
	case err != nil:
		e.logger.Error(ctx, "orchestration aborted", append(fields, zap.String("error_kind", res.ErrorKind), zap.Error(err))...)
	case r.state.Status == workflow.StatusFailed:
		e.logger.Warn(ctx, "orchestration finished with failed blocking phases",
			append(fields, zap.Strings("phases", r.state.BlockingFailures))...)
	default:
		e.logger.Info(ctx, "orchestration finished", fields...)
	}

	notifyCtx := context.WithoutCancel(ctx)
	for _, o := range e.observers {
		o.OnRunComplete(notifyCtx, res)
	}
}

func (res *WorkflowResult) setError(err error) {
	res.Err = err
	res.Error = err.Error()
	res.ErrorKind = errorKind(err)
}

// --- Partial context builders ---

// knowledgePartial records which items informed a phase, and derives a
// few requirements from the best of them.
func knowledgePartial(phaseID string, items []knowledge.Item) bizctx.PartialBusinessContext {
	titles := make([]string, 0, len(items))
	var sources []string
	var reqs []string
	for _, it := range items {
		titles = append(titles, it.Title)
		if !slices.Contains(sources, string(it.Source)) {
			sources = append(sources, string(it.Source))
		}
		if len(reqs) < maxKnowledgeRequirements && strings.TrimSpace(it.Title) != "" {
			reqs = append(reqs, "Consider: "+strings.TrimSpace(it.Title))
		}
	}
	return bizctx.PartialBusinessContext{
		Requirements: reqs,
		Constraints: map[string]any{
			"knowledge." + phaseID: map[string]any{
				"sources": sources,
				"items":   titles,
			},
		},
	}
}

// outcomePartial records a phase's verdict in the shared context.
func outcomePartial(p *workflow.Phase, gate workflow.GateResult) bizctx.PartialBusinessContext {
	done := 0
	for _, t := range p.Tasks {
		if t.Status == "completed" {
			done++
		}
	}
	return bizctx.PartialBusinessContext{
		Constraints: map[string]any{
			"phase." + p.ID: map[string]any{
				"role":           string(p.Role),
				"gate":           string(gate),
				"tasksCompleted": done,
			},
		},
	}
}

// --- Helpers ---

func clonePhase(p workflow.Phase) workflow.Phase {
	p.Tasks = slices.Clone(p.Tasks)
	return p
}

// applyTasks copies reported task statuses onto the phase by task ID.
func applyTasks(p *workflow.Phase, reported []workflow.Task) {
	for _, rt := range reported {
		for i := range p.Tasks {
			if p.Tasks[i].ID == rt.ID && rt.Status != "" {
				p.Tasks[i].Status = rt.Status
			}
		}
	}
}

// sourceRank orders statuses when one source is seen across phases; the
// best outcome wins.
var sourceRank = map[knowledge.Status]int{
	knowledge.StatusNotRequested: 0,
	knowledge.StatusDisabled:     1,
	knowledge.StatusFailed:       2,
	knowledge.StatusTimeout:      3,
	knowledge.StatusSuccess:      4,
}

func strongest(a, b knowledge.Status) knowledge.Status {
	if sourceRank[b] > sourceRank[a] || a == "" {
		return b
	}
	return a
}

func integrationSummary(sources map[knowledge.Source]knowledge.Status, d time.Duration) ExternalIntegration {
	status := func(s knowledge.Source) knowledge.Status {
		if st, ok := sources[s]; ok && st != "" {
			return st
		}
		return knowledge.StatusNotRequested
	}
	return ExternalIntegration{
		Context7Status:    status(knowledge.SourceContext7),
		WebSearchStatus:   status(knowledge.SourceWebSearch),
		MemoryStatus:      status(knowledge.SourceMemory),
		IntegrationTimeMs: d.Milliseconds(),
	}
}

// alignmentScore is the fraction of requested goals found in the final
// goals, by case-insensitive substring. Nothing requested scores 1.
func alignmentScore(requested, goals []string) float64 {
	total, hit := 0, 0
	for _, want := range requested {
		w := strings.ToLower(strings.TrimSpace(want))
		if w == "" {
			continue
		}
		total++
		for _, g := range goals {
			if strings.Contains(strings.ToLower(g), w) {
				hit++
				break
			}
		}
	}
	return ratio(hit, total)
}

// ratio returns n/d rounded to three places, or 1 when d is zero.
func ratio(n, d int) float64 {
	if d == 0 {
		return 1
	}
	return math.Round(float64(n)/float64(d)*1000) / 1000
}

func stamp() string {
	return timeNow().UTC().Format(time.RFC3339)
}
