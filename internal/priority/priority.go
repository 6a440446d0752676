// Package priority implements the bookkeeping the state-replication
// scheduler uses to decide what to send next and who owns what: a sortable
// priority set, a dedup-on-insert response queue, per-object ownership with
// aging and tie-break rules, and transitive-closure interaction walking.
package priority

import "sort"

// ObjectId identifies an object these structures track.
type ObjectId uint32

// PrioritySet holds a set of objects each with an associated priority
// value, sortable into descending-priority order. The replication
// scheduler walks it front-to-back to pick what to send within a bit
// budget.
type PrioritySet struct {
	ids        []ObjectId
	priorities []float64
	indexOf    map[ObjectId]int
}

// NewPrioritySet constructs an empty set.
func NewPrioritySet() *PrioritySet {
	return &PrioritySet{indexOf: make(map[ObjectId]int)}
}

// AddObject appends id with priority 0.
func (p *PrioritySet) AddObject(id ObjectId) {
	p.indexOf[id] = len(p.ids)
	p.ids = append(p.ids, id)
	p.priorities = append(p.priorities, 0)
}

// RemoveObject removes id, swapping it with the last entry to keep both
// arrays dense.
func (p *PrioritySet) RemoveObject(id ObjectId) {
	idx, ok := p.indexOf[id]
	if !ok {
		return
	}
	last := len(p.ids) - 1
	p.ids[idx] = p.ids[last]
	p.priorities[idx] = p.priorities[last]
	p.indexOf[p.ids[idx]] = idx
	p.ids = p.ids[:last]
	p.priorities = p.priorities[:last]
	delete(p.indexOf, id)
}

// GetObjectCount returns how many objects are tracked.
func (p *PrioritySet) GetObjectCount() int { return len(p.ids) }

// SetPriorityAtIndex sets the priority of the object currently at index i.
func (p *PrioritySet) SetPriorityAtIndex(i int, v float64) { p.priorities[i] = v }

// GetPriorityAtIndex returns the priority of the object currently at index i.
func (p *PrioritySet) GetPriorityAtIndex(i int) float64 { return p.priorities[i] }

// GetPriorityObject returns the object id currently at index i.
func (p *PrioritySet) GetPriorityObject(i int) ObjectId { return p.ids[i] }

// SortObjects reorders both arrays so priorities are descending.
func (p *PrioritySet) SortObjects() {
	idx := make([]int, len(p.ids))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return p.priorities[idx[a]] > p.priorities[idx[b]] })

	sortedIDs := make([]ObjectId, len(p.ids))
	sortedPriorities := make([]float64, len(p.priorities))
	for newIdx, oldIdx := range idx {
		sortedIDs[newIdx] = p.ids[oldIdx]
		sortedPriorities[newIdx] = p.priorities[oldIdx]
		p.indexOf[p.ids[oldIdx]] = newIdx
	}
	p.ids = sortedIDs
	p.priorities = sortedPriorities
}

// Clear empties the set.
func (p *PrioritySet) Clear() {
	p.ids = nil
	p.priorities = nil
	p.indexOf = make(map[ObjectId]int)
}
