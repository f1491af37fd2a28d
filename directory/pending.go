package directory

import (
	"slices"
	"sync"
)

// registration remembers how a participant was last added.
type registration struct {
	await bool
	gbids []string
	// generation identifies the add; a remove only clears state it observed.
	generation uint64
	// removing is set while a remove that clears on completion is queued.
	removing bool
}

// pendingRegistrations maps participant ids to their latest add.
type pendingRegistrations struct {
	mu      sync.Mutex
	byID    map[string]registration
	counter uint64
}

func newPendingRegistrations() *pendingRegistrations {
	return &pendingRegistrations{byID: make(map[string]registration)}
}

// recordAdd stores the await flag of an add and merges gbids into the
// participant's known gbids, keeping earlier ones after the new ones. It
// also returns the record it replaced, if any.
func (p *pendingRegistrations) recordAdd(participantID string, await bool, gbids []string) (r, prev registration, hadPrev bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	merged := slices.Clone(gbids)
	prev, hadPrev = p.byID[participantID]
	if hadPrev {
		for _, g := range prev.gbids {
			if !slices.Contains(merged, g) {
				merged = append(merged, g)
			}
		}
	}
	p.counter++
	r = registration{await: await, gbids: merged, generation: p.counter}
	p.byID[participantID] = r
	return r, prev, hadPrev
}

// revert undoes the add identified by generation, restoring prev when the
// participant had a record before. Later adds are left untouched.
func (p *pendingRegistrations) revert(participantID string, generation uint64, prev registration, hadPrev bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.byID[participantID]
	if !ok || r.generation != generation {
		return
	}
	if hadPrev {
		p.byID[participantID] = prev
		return
	}
	delete(p.byID, participantID)
}

// markRemoving flags the add identified by generation as being removed.
func (p *pendingRegistrations) markRemoving(participantID string, generation uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.byID[participantID]; ok && r.generation == generation {
		r.removing = true
		p.byID[participantID] = r
	}
}

func (p *pendingRegistrations) get(participantID string) (registration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.byID[participantID]
	if !ok {
		return registration{}, false
	}
	r.gbids = slices.Clone(r.gbids)
	return r, true
}

func (p *pendingRegistrations) delete(participantID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.byID, participantID)
}

// deleteIf removes the record only if no add happened since generation.
func (p *pendingRegistrations) deleteIf(participantID string, generation uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.byID[participantID]
	if ok && r.generation != generation {
		return false
	}
	delete(p.byID, participantID)
	return true
}

func (p *pendingRegistrations) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byID = make(map[string]registration)
}
