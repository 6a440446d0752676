package priority

// InteractionPair is an unordered contact between two objects, e.g. two
// cubes whose bounding volumes overlap this tick.
type InteractionPair struct {
	A, B ObjectId
}

// InteractionManager computes the transitive closure of a contact graph
// starting from a seed object, used to answer "does the player owning this
// object also own everything physically touching it, transitively?".
type InteractionManager struct {
	marked []bool
}

// NewInteractionManager constructs an empty manager; call PrepInteractions
// before the first WalkInteractions.
func NewInteractionManager() *InteractionManager {
	return &InteractionManager{}
}

// PrepInteractions (re)sizes the interaction set for numObjects objects,
// clearing all of them to not-interacting.
func (m *InteractionManager) PrepInteractions(numObjects int) {
	m.marked = make([]bool, numObjects)
}

// IsInteracting reports whether id was reached by the most recent
// WalkInteractions.
func (m *InteractionManager) IsInteracting(id ObjectId) bool {
	if int(id) < 0 || int(id) >= len(m.marked) {
		return false
	}
	return m.marked[id]
}

// WalkInteractions marks seed, then repeatedly scans pairs: any pair with
// exactly one marked endpoint marks the other, unless that endpoint is in
// ignores (which terminates traversal through it). It iterates to a fixed
// point — a full scan producing no new marks ends the walk.
func (m *InteractionManager) WalkInteractions(seed ObjectId, pairs []InteractionPair, ignores []bool) {
	for i := range m.marked {
		m.marked[i] = false
	}
	if int(seed) >= 0 && int(seed) < len(m.marked) {
		m.marked[seed] = true
	}

	for {
		changed := false
		for _, p := range pairs {
			aMarked := m.IsInteracting(p.A)
			bMarked := m.IsInteracting(p.B)
			if aMarked == bMarked {
				continue
			}
			target := p.B
			if bMarked {
				target = p.A
			}
			if m.ignored(target, ignores) {
				continue
			}
			if !m.IsInteracting(target) {
				m.marked[target] = true
				changed = true
			}
		}
		if !changed {
			break
		}
	}
}

func (m *InteractionManager) ignored(id ObjectId, ignores []bool) bool {
	return int(id) >= 0 && int(id) < len(ignores) && ignores[id]
}
