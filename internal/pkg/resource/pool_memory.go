package resource

import (
	"context"
	"sync"
	"time"

	"crawld/internal/pkg/dispatch"
)

// entry wraps a resource with rotation bookkeeping
type entry struct {
	res              dispatch.Resource
	failures         int
	quarantinedUntil time.Time
}

// MemoryPool is an in-process round-robin pool. Failed resources are
// quarantined for a fixed duration before re-entering rotation.
// WARNING: This is NOT distributed-safe; use the redis pool when several
// processes share one credential set.
type MemoryPool struct {
	mu         sync.Mutex
	entries    []*entry
	byID       map[string]*entry
	next       int
	quarantine time.Duration
}

// NewMemoryPool creates an empty pool
func NewMemoryPool(quarantine time.Duration) *MemoryPool {
	return &MemoryPool{
		byID:       make(map[string]*entry),
		quarantine: quarantine,
	}
}

// Add puts a resource into rotation
func (p *MemoryPool) Add(res dispatch.Resource) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byID[res.ID]; exists {
		return ErrDuplicateID
	}
	e := &entry{res: res}
	p.entries = append(p.entries, e)
	p.byID[res.ID] = e
	return nil
}

// Remove takes a resource out of rotation permanently
func (p *MemoryPool) Remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byID[id]; !exists {
		return
	}
	delete(p.byID, id)
	for i, e := range p.entries {
		if e.res.ID == id {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			if p.next > i {
				p.next--
			}
			break
		}
	}
}

// Get returns the next resource in rotation, skipping quarantined ones.
// When every resource is quarantined it returns nil, nil: running
// without a credential is the caller's fallback.
func (p *MemoryPool) Get(ctx context.Context) (*dispatch.Resource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.entries)
	if n == 0 {
		return nil, nil
	}

	now := time.Now()
	for i := 0; i < n; i++ {
		e := p.entries[(p.next+i)%n]
		if now.Before(e.quarantinedUntil) {
			continue
		}
		p.next = (p.next + i + 1) % n
		res := e.res
		return &res, nil
	}
	return nil, nil
}

// MarkSuccess clears the failure count for a resource
func (p *MemoryPool) MarkSuccess(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.byID[id]; ok {
		e.failures = 0
	}
	return nil
}

// MarkFailed records a failure and quarantines the resource
func (p *MemoryPool) MarkFailed(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.byID[id]; ok {
		e.failures++
		e.quarantinedUntil = time.Now().Add(p.quarantine)
	}
	return nil
}

// Len returns the number of resources in the pool
func (p *MemoryPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Available returns the number of resources currently in rotation
func (p *MemoryPool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	available := 0
	for _, e := range p.entries {
		if !now.Before(e.quarantinedUntil) {
			available++
		}
	}
	return available
}
