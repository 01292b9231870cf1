package persona

import (
	"sort"
	"sync"
	"time"
)

// Pool owns the set of persona instances and all of their mutable state.
// MarkIdle is called from completion callbacks that run concurrently with the
// dispatch loop, so every access is serialized here.
type Pool struct {
	mu        sync.Mutex
	instances map[string]*Instance
	order     []string // insertion order, the pool's iteration order
}

// NewPool creates an empty persona pool.
func NewPool() *Pool {
	return &Pool{
		instances: make(map[string]*Instance),
	}
}

// Add registers an instance with the pool. Instances are created
// administratively; the dispatcher never adds or removes them.
func (p *Pool) Add(inst *Instance) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.instances[inst.InstanceID]; !exists {
		p.order = append(p.order, inst.InstanceID)
	}
	p.instances[inst.InstanceID] = inst
}

// Remove deletes an instance from the pool (administrative action).
func (p *Pool) Remove(instanceID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.instances[instanceID]; !exists {
		return &NotFoundError{InstanceID: instanceID}
	}
	delete(p.instances, instanceID)
	for i, id := range p.order {
		if id == instanceID {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns a snapshot copy of an instance.
func (p *Pool) Get(instanceID string) (*Instance, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	inst, ok := p.instances[instanceID]
	if !ok {
		return nil, false
	}
	snapshot := *inst
	return &snapshot, true
}

// AvailablePersonas returns snapshot copies of all available instances in
// pool iteration order. The first-available fallback in the matcher depends
// on this order being stable.
func (p *Pool) AvailablePersonas() []*Instance {
	p.mu.Lock()
	defer p.mu.Unlock()

	available := make([]*Instance, 0, len(p.order))
	for _, id := range p.order {
		inst := p.instances[id]
		if inst.Available {
			snapshot := *inst
			available = append(available, &snapshot)
		}
	}
	return available
}

// MarkBusy assigns a work item to a persona. Fails with NotFoundError or
// AlreadyBusyError; the latter indicates a dispatch race if it ever fires.
func (p *Pool) MarkBusy(instanceID, itemID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	inst, ok := p.instances[instanceID]
	if !ok {
		return &NotFoundError{InstanceID: instanceID}
	}
	if !inst.Available || inst.CurrentItemID != "" {
		return &AlreadyBusyError{InstanceID: instanceID, CurrentItemID: inst.CurrentItemID}
	}

	inst.Available = false
	inst.CurrentItemID = itemID
	inst.LastActivity = time.Now().UTC()
	return nil
}

// MarkIdle clears the persona's assignment and bumps its counters.
func (p *Pool) MarkIdle(instanceID string, success bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	inst, ok := p.instances[instanceID]
	if !ok {
		return &NotFoundError{InstanceID: instanceID}
	}

	inst.Available = true
	inst.CurrentItemID = ""
	if success {
		inst.CompletedCount++
	} else {
		inst.FailedCount++
	}
	inst.LastActivity = time.Now().UTC()
	return nil
}

// All returns snapshot copies of every instance, sorted by instance id for
// stable serialization.
func (p *Pool) All() []*Instance {
	p.mu.Lock()
	defer p.mu.Unlock()

	all := make([]*Instance, 0, len(p.instances))
	for _, inst := range p.instances {
		snapshot := *inst
		all = append(all, &snapshot)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].InstanceID < all[j].InstanceID
	})
	return all
}

// Counts returns the total and available instance counts.
func (p *Pool) Counts() (total, available int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	total = len(p.instances)
	for _, inst := range p.instances {
		if inst.Available {
			available++
		}
	}
	return total, available
}
