package cubes

import (
	"sort"

	"cubesnet-go/internal/activation"
	"cubesnet-go/internal/priority"
	"cubesnet-go/pkg/logger"
)

// MaxPlayers mirrors priority.MaxPlayers: player slot indices are
// priority.PlayerId, so the two sentinels must agree.
const MaxPlayers = int(priority.MaxPlayers)

// Flag is a per-instance behavior toggle set with SetFlag/ClearFlag.
type Flag int

// FlagPause freezes everything downstream of physics (which this package
// never simulates — see Update) but leaves activation running: pausing
// must not also freeze proximity bookkeeping.
const FlagPause Flag = 1 << iota

// Config configures the activation grid a new Instance builds.
type Config struct {
	CellSize   float64
	CellWidth  int
	CellHeight int
}

// Contact is an observed overlap between two cubes during the last
// simulation step. The rigid-body solver that produces these is an
// external collaborator; Instance reads a caller-supplied contact list
// each Update rather than computing one.
type Contact struct {
	A, B ObjectId
}

// Instance is the game-level wiring: it owns the object database, the
// activation system that decides which objects are currently live, and
// the priority/authority/interaction bookkeeping that decides who gets to
// move which cube. It is the Go analogue of the source's
// game::Instance<DatabaseObject, ActiveObject> template instantiation —
// concrete rather than generic, since cubes are its only instantiation.
type Instance struct {
	config Config

	objects map[ObjectId]*DatabaseObject
	active  map[ObjectId]*ActiveObject
	nextID  ObjectId

	activationSys *activation.System
	authority     *priority.AuthorityManager
	interactions  *priority.InteractionManager
	priorities    *priority.PrioritySet

	joined [256]bool
	focus  [256]ObjectId

	localPlayer int
	flags       Flag

	contacts []Contact
}

// NewInstance builds an Instance whose activation grid matches config. A
// zero Config is legal (the source's default-constructed game::Config) and
// produces a single-cell grid large enough for small unit tests.
func NewInstance(config Config) *Instance {
	if config.CellWidth == 0 {
		config.CellWidth = 1
	}
	if config.CellHeight == 0 {
		config.CellHeight = 1
	}
	if config.CellSize == 0 {
		config.CellSize = 1
	}
	inst := &Instance{
		config:       config,
		objects:      make(map[ObjectId]*DatabaseObject),
		active:       make(map[ObjectId]*ActiveObject),
		nextID:       1,
		authority:    priority.NewAuthorityManager(),
		interactions: priority.NewInteractionManager(),
		priorities:   priority.NewPrioritySet(),
		localPlayer:  -1,
	}
	for i := range inst.focus {
		inst.focus[i] = 0
	}
	return inst
}

// InitializeBegin starts a (re)build of the object database. AddObject may
// only be called between InitializeBegin and InitializeEnd.
func (g *Instance) InitializeBegin() {
	g.objects = make(map[ObjectId]*DatabaseObject)
	g.active = make(map[ObjectId]*ActiveObject)
	g.nextID = 1
	g.contacts = nil
	g.authority.Clear()
	g.priorities.Clear()
	g.activationSys = nil
}

// InitializeEnd finishes the build: it sizes the activation grid and the
// interaction manager now that the final object count is known.
func (g *Instance) InitializeEnd() {
	radius := g.config.CellSize * 3
	g.activationSys = activation.NewSystem(
		len(g.objects),
		radius,
		g.config.CellWidth,
		g.config.CellHeight,
		g.config.CellSize,
		len(g.objects),
		len(g.objects)*2,
	)
	for id, obj := range g.objects {
		if err := g.activationSys.InsertObject(activation.ObjectId(id), obj.Position.X, obj.Position.Y); err != nil {
			logger.Warn("cubes: object %d seeded outside activation grid, will never activate: %v", id, err)
		}
	}
	g.interactions.PrepInteractions(int(g.nextID))
}

// Shutdown drops every joined player and clears in-game state, leaving the
// object database itself untouched (mirroring the source, which treats
// Shutdown as a round-trip back to game_initial_conditions for players).
func (g *Instance) Shutdown() {
	for i := range g.joined {
		g.joined[i] = false
		g.focus[i] = 0
	}
	g.localPlayer = -1
}

// AddObject inserts a new database record and returns its assigned id. x,y
// seed its activation-grid placement; valid only between InitializeBegin
// and InitializeEnd.
func (g *Instance) AddObject(obj DatabaseObject, x, y float64) ObjectId {
	id := g.nextID
	g.nextID++
	obj.ID = id
	obj.Position.X = x
	obj.Position.Y = y
	g.objects[id] = &obj
	return id
}

// SetFlag and ClearFlag toggle instance-wide behavior flags.
func (g *Instance) SetFlag(f Flag)   { g.flags |= f }
func (g *Instance) ClearFlag(f Flag) { g.flags &^= f }
func (g *Instance) HasFlag(f Flag) bool { return g.flags&f != 0 }

// OnPlayerJoined marks player present. Focus is left as whatever it was
// previously set to — a rejoining player keeps the cube they were
// attached to before they left.
func (g *Instance) OnPlayerJoined(player int) {
	g.joined[player] = true
}

// OnPlayerLeft marks player absent. Focus is preserved (see OnPlayerJoined);
// if player was the local player, there is no longer one.
func (g *Instance) OnPlayerLeft(player int) {
	g.joined[player] = false
	if g.localPlayer == player {
		g.localPlayer = -1
	}
}

// IsPlayerJoined reports whether player currently occupies a slot.
func (g *Instance) IsPlayerJoined(player int) bool { return g.joined[player] }

// SetPlayerFocus assigns the cube player is currently attached to — the
// activation point tracks the local player's focus cube.
func (g *Instance) SetPlayerFocus(player int, id ObjectId) { g.focus[player] = id }

// GetPlayerFocus returns player's focus cube, or 0 if none.
func (g *Instance) GetPlayerFocus(player int) ObjectId { return g.focus[player] }

// SetLocalPlayer designates which joined player drives this instance's
// activation point. -1 means no local player (not in game).
func (g *Instance) SetLocalPlayer(player int) { g.localPlayer = player }

// GetLocalPlayer returns the current local player, or -1 if none.
func (g *Instance) GetLocalPlayer() int { return g.localPlayer }

// InGame reports whether a local player is currently set.
func (g *Instance) InGame() bool { return g.localPlayer != -1 }

// GetOrigin returns the activation point's current world position (z is
// always 0: activation is a 2D proximity test over x,y only).
func (g *Instance) GetOrigin() Vector3 {
	if g.activationSys == nil {
		return Vector3{}
	}
	return Vector3{X: g.activationSys.GetX(), Y: g.activationSys.GetY()}
}

// SetContacts replaces the contact list Update's authority cascade walks.
// Contacts represent "these two cubes are touching this tick" — produced
// externally by whatever physics solver is wired in front of this package.
func (g *Instance) SetContacts(contacts []Contact) { g.contacts = contacts }

// Update advances activation, applies the activate/deactivate transitions
// to the object database, ages out authority, and — unless FlagPause is
// set — cascades the local player's authority across whatever cluster of
// cubes is transitively touching their focus cube.
func (g *Instance) Update(dt float64) {
	if g.activationSys == nil {
		return
	}

	g.activationSys.SetEnabled(g.localPlayer != -1)
	if g.localPlayer != -1 {
		if obj, ok := g.objects[g.focus[g.localPlayer]]; ok {
			g.activationSys.MoveActivationPoint(obj.Position.X, obj.Position.Y)
		} else if act, ok := g.active[g.focus[g.localPlayer]]; ok {
			g.activationSys.MoveActivationPoint(act.Position.X, act.Position.Y)
		}
	}

	g.activationSys.Update(dt)
	for i := 0; i < g.activationSys.GetEventCount(); i++ {
		ev := g.activationSys.GetEvent(i)
		id := ObjectId(ev.ID)
		switch ev.Type {
		case activation.Activate:
			db := g.objects[id]
			act := fromDatabase(*db, 0)
			g.active[id] = &act
			delete(g.objects, id)
		case activation.Deactivate:
			act := g.active[id]
			db := act.toDatabase()
			g.objects[id] = &db
			delete(g.active, id)
			g.authority.SetAuthority(priority.ObjectId(id), priority.MaxPlayers, true)
		}
	}
	g.activationSys.ClearEvents()

	g.rebuildReplicationOrder()
	g.authority.Update(dt, authorityTimeout)

	if g.HasFlag(FlagPause) {
		return
	}
	g.runAuthorityCascade()
}

const authorityTimeout = 30.0

// rebuildReplicationOrder recomputes the priority set from scratch against
// the current active set: every active cube contributes its Priority(),
// and the set is left sorted descending so ReplicationOrder can be read
// off directly. Rebuilding each tick is simpler than incrementally
// patching the set through every activate/deactivate/reorder and cheap
// enough at the object counts this engine targets.
func (g *Instance) rebuildReplicationOrder() {
	g.priorities.Clear()
	ids := make([]ObjectId, 0, len(g.active))
	for id := range g.active {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		g.priorities.AddObject(priority.ObjectId(id))
	}
	for i, id := range ids {
		g.priorities.SetPriorityAtIndex(i, g.active[id].Priority())
	}
	g.priorities.SortObjects()
}

// ReplicationOrder returns every currently active cube's id, ordered
// highest-Priority()-first — the order a state-replication channel should
// walk when picking what to send within a bit budget.
func (g *Instance) ReplicationOrder() []ObjectId {
	out := make([]ObjectId, g.priorities.GetObjectCount())
	for i := range out {
		out[i] = ObjectId(g.priorities.GetPriorityObject(i))
	}
	return out
}

// runAuthorityCascade answers "does the local player own every cube
// transitively touching the cube they're focused on?" for each joined,
// in-game player and, where the answer is yes, extends their authority
// across the whole cluster.
func (g *Instance) runAuthorityCascade() {
	for player := 0; player < len(g.joined); player++ {
		if !g.joined[player] {
			continue
		}
		focus := g.focus[player]
		if focus == 0 {
			continue
		}
		if _, ok := g.active[focus]; !ok {
			continue
		}
		if g.authority.GetAuthority(priority.ObjectId(focus)) != priority.PlayerId(player) {
			if !g.authority.SetAuthority(priority.ObjectId(focus), priority.PlayerId(player)) {
				continue
			}
		}

		pairs := make([]priority.InteractionPair, 0, len(g.contacts))
		for _, c := range g.contacts {
			pairs = append(pairs, priority.InteractionPair{A: priority.ObjectId(c.A), B: priority.ObjectId(c.B)})
		}
		ignores := make([]bool, g.nextID)
		for id := range g.objects {
			ignores[id] = true // inactive cubes never join the cascade
		}

		g.interactions.WalkInteractions(priority.ObjectId(focus), pairs, ignores)
		for id := range g.active {
			if id == focus {
				continue
			}
			if g.interactions.IsInteracting(priority.ObjectId(id)) {
				g.authority.SetAuthority(priority.ObjectId(id), priority.PlayerId(player))
			}
		}
	}
}

// GetObjectAuthority returns the player currently owning id, or MaxPlayers
// if unowned.
func (g *Instance) GetObjectAuthority(id ObjectId) int {
	return int(g.authority.GetAuthority(priority.ObjectId(id)))
}

// IsObjectActive reports whether id is currently within activation range.
func (g *Instance) IsObjectActive(id ObjectId) bool {
	_, ok := g.active[id]
	return ok
}

// GetActiveObjectCount returns the number of currently active cubes.
func (g *Instance) GetActiveObjectCount() int { return len(g.active) }

// GetActiveObjects returns a snapshot of every currently active cube.
// Order is unspecified; callers that need determinism should sort by ID.
func (g *Instance) GetActiveObjects() []ActiveObject {
	out := make([]ActiveObject, 0, len(g.active))
	for _, a := range g.active {
		out = append(out, *a)
	}
	return out
}

// GetActiveObject returns a copy of id's active state, and whether it's
// currently active at all — used by a state-replication channel walking
// ReplicationOrder to build an outgoing snapshot.
func (g *Instance) GetActiveObject(id ObjectId) (ActiveObject, bool) {
	act, ok := g.active[id]
	if !ok {
		return ActiveObject{}, false
	}
	return *act, true
}

// SetObjectState overwrites an active cube's replicated state — used by a
// state-replication channel applying an incoming snapshot, and by tests
// exercising persistence across an activate/deactivate/reactivate cycle.
// Returns an error, leaving the object's prior state untouched, if obj's
// position falls outside the activation grid — a caller applying an
// untrusted remote snapshot needs to see that rejection.
func (g *Instance) SetObjectState(id ObjectId, obj ActiveObject) error {
	act, ok := g.active[id]
	if !ok {
		return nil
	}
	if err := g.activationSys.MoveObject(activation.ObjectId(id), obj.Position.X, obj.Position.Y); err != nil {
		return err
	}
	obj.ID = id
	*act = obj
	return nil
}
