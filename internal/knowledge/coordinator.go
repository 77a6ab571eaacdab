package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HendryAvila/smartflow/internal/logging"
)

const (
	// DefaultAdapterTimeout bounds a single adapter call.
	DefaultAdapterTimeout = 2 * time.Second
	// DefaultMaxResults applies when a request leaves MaxResults unset.
	DefaultMaxResults = 10
)

// Coordinator fans knowledge requests out to adapters.
type Coordinator struct {
	adapters   []Adapter
	timeout    time.Duration
	maxResults int
	// concurrency caps in-flight adapter calls; 0 means one per adapter.
	concurrency int
	logger      *logging.Logger
	metrics     *Metrics
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithAdapterTimeout sets the per-adapter call timeout.
func WithAdapterTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxResults sets the default result bound.
func WithMaxResults(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxResults = n
		}
	}
}

// WithMaxConcurrency caps how many adapters are called at once. Queued
// calls start their own timeout when they run.
func WithMaxConcurrency(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// NewCoordinator creates a coordinator over the given adapters. Adapters
// sharing a name are rejected.
func NewCoordinator(adapters []Adapter, opts ...Option) (*Coordinator, error) {
	seen := make(map[Source]bool, len(adapters))
	for _, a := range adapters {
		if seen[a.Name()] {
			return nil, fmt.Errorf("knowledge: duplicate adapter %q", a.Name())
		}
		seen[a.Name()] = true
	}

	c := &Coordinator{
		adapters:   append([]Adapter(nil), adapters...),
		timeout:    DefaultAdapterTimeout,
		maxResults: DefaultMaxResults,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	sort.SliceStable(c.adapters, func(i, j int) bool {
		return c.adapters[i].Name().priority() < c.adapters[j].Name().priority()
	})
	c.logger = c.logger.Named("knowledge")
	return c, nil
}

// Sources returns the registered source names in priority order.
func (c *Coordinator) Sources() []Source {
	out := make([]Source, len(c.adapters))
	for i, a := range c.adapters {
		out[i] = a.Name()
	}
	return out
}

// GatherKnowledge returns at most MaxResults items ordered by relevance.
// Adapter failures and timeouts are absorbed.
func (c *Coordinator) GatherKnowledge(ctx context.Context, req Request) []Item {
	return c.Gather(ctx, req).Items
}

// Gather is GatherKnowledge plus a per-source report.
func (c *Coordinator) Gather(ctx context.Context, req Request) Result {
	start := time.Now()
	limit := req.MaxResults
	if limit <= 0 {
		limit = c.maxResults
	}
	req.MaxResults = limit

	res := Result{
		Items:   []Item{},
		Sources: make(map[Source]SourceReport, len(c.adapters)),
	}

	var active []int
	for i, a := range c.adapters {
		switch {
		case !req.wants(a.Name()):
			res.Sources[a.Name()] = SourceReport{Source: a.Name(), Status: StatusNotRequested}
		case !a.Enabled():
			res.Sources[a.Name()] = SourceReport{Source: a.Name(), Status: StatusDisabled}
		default:
			active = append(active, i)
		}
	}
	if len(active) == 0 {
		res.Duration = time.Since(start)
		return res
	}

	items := make([][]Item, len(c.adapters))
	reports := make([]SourceReport, len(c.adapters))

	// Join-all: calls absorb their own failures and return nil, so Wait
	// never short-circuits. The group only bounds concurrency.
	var g errgroup.Group
	if c.concurrency > 0 {
		g.SetLimit(c.concurrency)
	}
	for _, i := range active {
		g.Go(func() error {
			items[i], reports[i] = c.call(ctx, c.adapters[i], req)
			return nil
		})
	}
	_ = g.Wait()

	var all []Item
	for _, i := range active {
		res.Sources[c.adapters[i].Name()] = reports[i]
		all = append(all, items[i]...)
	}

	// Adapters are already in priority order, so a stable sort on
	// relevance leaves ties by source priority then arrival order.
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].RelevanceScore != all[j].RelevanceScore {
			return all[i].RelevanceScore > all[j].RelevanceScore
		}
		return all[i].Source.priority() < all[j].Source.priority()
	})
	if len(all) > limit {
		all = all[:limit]
	}
	if all != nil {
		res.Items = all
	}
	res.Duration = time.Since(start)

	c.logger.Debug(ctx, "knowledge gathered",
		zap.Int("items", len(res.Items)),
		zap.Int("adapters", len(active)),
		zap.Duration("duration", res.Duration))
	return res
}

type fetchResult struct {
	items []Item
	err   error
}

// call runs one adapter under its own timeout. The coordinator stops
// waiting at the deadline even if the adapter ignores ctx.
func (c *Coordinator) call(ctx context.Context, a Adapter, req Request) ([]Item, SourceReport) {
	src := a.Name()
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan fetchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchResult{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		items, err := a.Fetch(callCtx, req)
		done <- fetchResult{items: items, err: err}
	}()

	var fr fetchResult
	select {
	case fr = <-done:
	case <-callCtx.Done():
		fr = fetchResult{err: callCtx.Err()}
	}
	elapsed := time.Since(start)

	rep := SourceReport{Source: src, Duration: elapsed}
	if fr.err != nil {
		aerr := &AdapterError{
			Source:  src,
			Timeout: errors.Is(fr.err, context.DeadlineExceeded),
			Err:     fr.err,
		}
		rep.Status = StatusFailed
		if aerr.Timeout {
			rep.Status = StatusTimeout
		}
		rep.Error = aerr.Error()
		c.metrics.observe(src, rep.Status, elapsed)
		c.logger.Warn(ctx, "knowledge adapter contributed no items",
			zap.String("source", string(src)),
			zap.String("status", string(rep.Status)),
			zap.Duration("elapsed", elapsed),
			zap.Error(aerr))
		return nil, rep
	}

	items := normalize(src, fr.items)
	rep.Status = StatusSuccess
	rep.Items = len(items)
	c.metrics.observe(src, rep.Status, elapsed)
	c.logger.Debug(ctx, "knowledge adapter returned",
		zap.String("source", string(src)),
		zap.Int("items", len(items)),
		zap.Duration("elapsed", elapsed))
	return items, rep
}

// normalize stamps the source, fills missing ids and clamps relevance.
func normalize(src Source, in []Item) []Item {
	out := make([]Item, 0, len(in))
	for i, it := range in {
		it.Source = src
		if it.ID == "" {
			it.ID = fmt.Sprintf("%s-%d", src, i+1)
		}
		it.RelevanceScore = clamp01(it.RelevanceScore)
		out = append(out, it)
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
