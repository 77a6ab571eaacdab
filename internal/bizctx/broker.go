package bizctx

import (
	"slices"
	"sync"
)

// Broker owns every live BusinessContext, keyed by project id.
//
// Writers to the same project are serialized by that project's entry lock;
// writers to different projects never contend beyond the brief registry
// lookup.
type Broker struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu      sync.Mutex
	ctx     *BusinessContext
	evicted bool
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{entries: make(map[string]*entry)}
}

// GetOrCreate returns the project's context, creating an empty one at
// version 0 on first use.
func (b *Broker) GetOrCreate(projectID string) BusinessContext {
	b.mu.Lock()
	e, ok := b.entries[projectID]
	if !ok {
		e = &entry{ctx: newContext(projectID)}
		b.entries[projectID] = e
	}
	b.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ctx.clone()
}

// Merge unions goals, requirements and stakeholders, overwrites matching
// constraint keys, bumps the version and returns the new snapshot.
func (b *Broker) Merge(projectID string, partial PartialBusinessContext) (BusinessContext, error) {
	rep, err := b.MergeWithReport(projectID, partial)
	if err != nil {
		return BusinessContext{}, err
	}
	return rep.Context, nil
}

// MergeWithReport is Merge plus the list of constraint keys whose value
// changed.
func (b *Broker) MergeWithReport(projectID string, partial PartialBusinessContext) (MergeReport, error) {
	e, err := b.lookup(projectID)
	if err != nil {
		return MergeReport{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	// Evicted between lookup and lock.
	if e.evicted {
		return MergeReport{}, &NotFoundError{ProjectID: projectID}
	}
	conflicts := e.ctx.apply(partial)
	return MergeReport{Context: e.ctx.clone(), Conflicts: conflicts}, nil
}

// Snapshot returns a copy of the project's context. ok is false when the
// project has no live context.
func (b *Broker) Snapshot(projectID string) (BusinessContext, bool) {
	e, err := b.lookup(projectID)
	if err != nil {
		return BusinessContext{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return BusinessContext{}, false
	}
	return e.ctx.clone(), true
}

// Reset empties the project's context. The version keeps increasing so
// readers can still order snapshots.
func (b *Broker) Reset(projectID string) (BusinessContext, error) {
	e, err := b.lookup(projectID)
	if err != nil {
		return BusinessContext{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return BusinessContext{}, &NotFoundError{ProjectID: projectID}
	}
	fresh := newContext(projectID)
	fresh.CreatedAt = e.ctx.CreatedAt
	fresh.Version = e.ctx.Version + 1
	e.ctx = fresh
	return e.ctx.clone(), nil
}

// Evict drops the project's context. It reports whether one existed.
func (b *Broker) Evict(projectID string) bool {
	b.mu.Lock()
	e, ok := b.entries[projectID]
	if ok {
		delete(b.entries, projectID)
	}
	b.mu.Unlock()
	if !ok {
		return false
	}
	e.mu.Lock()
	e.evicted = true
	e.mu.Unlock()
	return true
}

// Projects returns the ids of every live context, sorted.
func (b *Broker) Projects() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]string, 0, len(b.entries))
	for id := range b.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (b *Broker) lookup(projectID string) (*entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[projectID]
	if !ok {
		return nil, &NotFoundError{ProjectID: projectID}
	}
	return e, nil
}
