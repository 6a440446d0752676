package priority

// PlayerId is a player slot index; MaxPlayers is the sentinel meaning "no
// owner".
type PlayerId uint8

// MaxPlayers is the sentinel PlayerId used for an unowned object.
const MaxPlayers PlayerId = 255

type authorityEntry struct {
	owner PlayerId
	timer float64
}

// AuthorityManager tracks, per object, which player currently owns it, with
// a lower-player-id-wins tie-break rule and an aging timer that reverts
// ownership to MaxPlayers if it isn't refreshed.
type AuthorityManager struct {
	entries map[ObjectId]*authorityEntry
}

// NewAuthorityManager constructs an empty manager.
func NewAuthorityManager() *AuthorityManager {
	return &AuthorityManager{entries: make(map[ObjectId]*authorityEntry)}
}

// GetEntryCount returns how many objects currently have a tracked owner.
func (a *AuthorityManager) GetEntryCount() int { return len(a.entries) }

// GetAuthority returns id's current owner, or MaxPlayers if unowned.
func (a *AuthorityManager) GetAuthority(id ObjectId) PlayerId {
	e, ok := a.entries[id]
	if !ok {
		return MaxPlayers
	}
	return e.owner
}

// SetAuthority attempts to set id's owner to player. It succeeds (and
// restarts the aging timer) if the object is currently unowned, already
// owned by player, force is set, or player's id is lower than the current
// owner's — the tie-break rule that lets a lower player id claim a
// contested object.
func (a *AuthorityManager) SetAuthority(id ObjectId, player PlayerId, force ...bool) bool {
	forced := len(force) > 0 && force[0]
	current := a.GetAuthority(id)
	if !(current == MaxPlayers || current == player || forced || player < current) {
		return false
	}
	a.entries[id] = &authorityEntry{owner: player, timer: 0}
	return true
}

// Update ages every tracked entry by dt, reverting any whose timer exceeds
// timeout back to unowned.
func (a *AuthorityManager) Update(dt, timeout float64) {
	for id, e := range a.entries {
		e.timer += dt
		if e.timer > timeout {
			delete(a.entries, id)
		}
	}
}

// Clear drops every tracked entry.
func (a *AuthorityManager) Clear() {
	a.entries = make(map[ObjectId]*authorityEntry)
}
