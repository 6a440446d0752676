package cubes

import (
	"math/rand"
	"testing"

	"cubesnet-go/internal/bitstream"
)

func testConfig() Config {
	return Config{CellSize: 4.0, CellWidth: 16, CellHeight: 16}
}

func addCube(inst *Instance, scale float64, x, y, z float64) ObjectId {
	obj := DatabaseObject{
		Position:    Vector3{X: x, Y: y, Z: z},
		Orientation: Quaternion{W: 1},
		Scale:       scale,
		Enabled:     true,
	}
	return inst.AddObject(obj, x, y)
}

func TestGame_InitialConditions(t *testing.T) {
	inst := NewInstance(Config{})
	if inst.GetLocalPlayer() != -1 {
		t.Fatalf("GetLocalPlayer() = %d, want -1", inst.GetLocalPlayer())
	}
	for i := 0; i < MaxPlayers; i++ {
		if inst.IsPlayerJoined(i) {
			t.Fatalf("IsPlayerJoined(%d) = true before any join", i)
		}
		if inst.GetPlayerFocus(i) != 0 {
			t.Fatalf("GetPlayerFocus(%d) = %d, want 0", i, inst.GetPlayerFocus(i))
		}
	}
	if inst.InGame() {
		t.Fatal("InGame() = true before a local player is set")
	}
}

func TestGame_PlayerJoinAndLeave(t *testing.T) {
	inst := NewInstance(testConfig())

	inst.InitializeBegin()
	for i := 0; i < 4; i++ {
		addCube(inst, 1.0, 0, 0, 0)
	}
	inst.InitializeEnd()

	for i := 0; i < 4; i++ {
		if inst.IsPlayerJoined(i) {
			t.Fatalf("IsPlayerJoined(%d) = true before join", i)
		}
		inst.OnPlayerJoined(i)
		inst.SetPlayerFocus(i, ObjectId(i+1))
		if !inst.IsPlayerJoined(i) {
			t.Fatalf("IsPlayerJoined(%d) = false after join", i)
		}
		if inst.GetPlayerFocus(i) != ObjectId(i+1) {
			t.Fatalf("GetPlayerFocus(%d) = %d, want %d", i, inst.GetPlayerFocus(i), i+1)
		}
	}

	if inst.InGame() {
		t.Fatal("InGame() = true before SetLocalPlayer")
	}
	inst.SetLocalPlayer(1)
	if inst.GetLocalPlayer() != 1 {
		t.Fatalf("GetLocalPlayer() = %d, want 1", inst.GetLocalPlayer())
	}
	if !inst.InGame() {
		t.Fatal("InGame() = false after SetLocalPlayer")
	}

	for i := 0; i < 4; i++ {
		inst.OnPlayerLeft(i)
		if inst.IsPlayerJoined(i) {
			t.Fatalf("IsPlayerJoined(%d) = true after leave", i)
		}
	}

	inst.Shutdown()

	if inst.GetLocalPlayer() != -1 {
		t.Fatalf("GetLocalPlayer() after Shutdown = %d, want -1", inst.GetLocalPlayer())
	}
	if inst.InGame() {
		t.Fatal("InGame() = true after Shutdown")
	}
	for i := 0; i < 4; i++ {
		if inst.GetPlayerFocus(i) != 0 {
			t.Fatalf("GetPlayerFocus(%d) after Shutdown = %d, want 0", i, inst.GetPlayerFocus(i))
		}
	}
}

func TestGame_ObjectActivation(t *testing.T) {
	inst := NewInstance(testConfig())

	inst.InitializeBegin()
	addCube(inst, 1.0, 0, 0, 0)
	inst.InitializeEnd()

	inst.SetFlag(FlagPause)
	inst.OnPlayerJoined(0)
	inst.SetPlayerFocus(0, 1)
	inst.SetLocalPlayer(0)

	inst.Update(1.0 / 60)

	if inst.GetActiveObjectCount() != 1 {
		t.Fatalf("GetActiveObjectCount() = %d, want 1", inst.GetActiveObjectCount())
	}
	if !inst.IsObjectActive(1) {
		t.Fatal("IsObjectActive(1) = false, want true")
	}

	inst.OnPlayerLeft(0)
	inst.Update(1.0 / 60)

	if inst.GetActiveObjectCount() != 0 {
		t.Fatalf("GetActiveObjectCount() after leave = %d, want 0", inst.GetActiveObjectCount())
	}
	if inst.IsObjectActive(1) {
		t.Fatal("IsObjectActive(1) = true after the owning player left")
	}
}

func TestGame_ObjectPersistence(t *testing.T) {
	inst := NewInstance(testConfig())
	rng := rand.New(rand.NewSource(7))

	inst.InitializeBegin()
	playerCube := addCube(inst, 1.4, 0, 0, 0)
	var others []ObjectId
	for i := 0; i < 19; i++ {
		x := rng.Float64()*8 - 4
		y := rng.Float64()*8 - 4
		others = append(others, addCube(inst, 0.4, x, y, 5))
	}
	inst.InitializeEnd()

	inst.OnPlayerJoined(0)
	inst.SetLocalPlayer(0)
	inst.SetPlayerFocus(0, playerCube)

	for i := 0; i < 5; i++ {
		inst.Update(1.0 / 60)
	}

	if inst.GetActiveObjectCount() == 0 {
		t.Fatal("expected at least one active cube after settling")
	}
	if !inst.IsObjectActive(playerCube) {
		t.Fatal("expected the player's focus cube to be active")
	}

	before := make(map[ObjectId]ActiveObject)
	for _, a := range inst.GetActiveObjects() {
		before[a.ID] = a
	}

	origin := inst.GetOrigin()
	for id, a := range before {
		if id == playerCube {
			continue
		}
		a.Position.X = origin.X + (a.Position.X-origin.X)*0.5
		a.Position.Y = origin.Y + (a.Position.Y-origin.Y)*0.5
		a.Orientation = Quaternion{W: 0.5, X: a.Position.X, Y: a.Position.Y, Z: a.Position.X + a.Position.Y}
		a.Orientation.Normalize()
		if err := inst.SetObjectState(id, a); err != nil {
			t.Fatalf("SetObjectState(%d): %v", id, err)
		}
		before[id] = a
	}

	for i := 0; i < 3; i++ {
		inst.Update(1.0 / 60)
	}
	if inst.GetActiveObjectCount() != len(before) {
		t.Fatalf("GetActiveObjectCount() = %d, want %d after moving within radius", inst.GetActiveObjectCount(), len(before))
	}

	inst.OnPlayerLeft(0)
	for i := 0; i < 5; i++ {
		inst.Update(1.0 / 60)
	}
	if inst.GetActiveObjectCount() != 0 {
		t.Fatalf("GetActiveObjectCount() after player left = %d, want 0", inst.GetActiveObjectCount())
	}

	inst.OnPlayerJoined(0)
	inst.SetLocalPlayer(0)
	for i := 0; i < 5; i++ {
		inst.Update(1.0 / 60)
	}

	after := inst.GetActiveObjects()
	if len(after) != len(before) {
		t.Fatalf("rejoin active count = %d, want %d", len(after), len(before))
	}
	for _, a := range after {
		want, ok := before[a.ID]
		if !ok {
			t.Fatalf("unexpected cube %d reactivated", a.ID)
		}
		const eps = 0.001
		if absf(a.Position.X-want.Position.X) > eps || absf(a.Position.Y-want.Position.Y) > eps {
			t.Fatalf("cube %d position = %+v, want %+v", a.ID, a.Position, want.Position)
		}
		cosine := a.Orientation.Dot(want.Orientation)
		got := a.Orientation
		if cosine < 0 {
			got.W, got.X, got.Y, got.Z = -got.W, -got.X, -got.Y, -got.Z
		}
		const orientEps = 0.03
		if absf(got.W-want.Orientation.W) > orientEps || absf(got.X-want.Orientation.X) > orientEps {
			t.Fatalf("cube %d orientation = %+v, want %+v", a.ID, got, want.Orientation)
		}
	}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestGame_ObjectAuthorityCascade(t *testing.T) {
	inst := NewInstance(testConfig())

	inst.InitializeBegin()
	playerCube := addCube(inst, 1.4, 0, 0, 0)
	var stack []ObjectId
	for i := 0; i < 5; i++ {
		stack = append(stack, addCube(inst, 0.4, 0, 0, 0))
	}
	loose := addCube(inst, 0.4, 0, 0, 0)
	inst.InitializeEnd()

	contacts := []Contact{
		{A: playerCube, B: stack[0]},
		{A: stack[0], B: stack[1]},
		{A: stack[1], B: stack[2]},
		{A: stack[2], B: stack[3]},
		{A: stack[3], B: stack[4]},
	}
	inst.SetContacts(contacts)

	inst.OnPlayerJoined(0)
	inst.SetLocalPlayer(0)
	inst.SetPlayerFocus(0, playerCube)

	for i := 0; i < 3; i++ {
		inst.Update(1.0 / 60)
	}

	if inst.GetObjectAuthority(playerCube) != 0 {
		t.Fatalf("player's focus cube authority = %d, want 0", inst.GetObjectAuthority(playerCube))
	}
	for _, id := range stack {
		if inst.GetObjectAuthority(id) != 0 {
			t.Fatalf("stacked cube %d authority = %d, want 0 (cascaded)", id, inst.GetObjectAuthority(id))
		}
	}
	if inst.GetObjectAuthority(loose) == 0 {
		t.Fatalf("loose cube %d should not have inherited authority", loose)
	}
}

// TestGame_ActiveObjectTrait exercises the pack/unpack/priority/authority_id
// capability set a concrete active-object type must provide.
func TestGame_ActiveObjectTrait(t *testing.T) {
	original := ActiveObject{
		DatabaseObject: DatabaseObject{
			ID:              3,
			Position:        Vector3{X: 1, Y: -2, Z: 0.5},
			Orientation:     Quaternion{W: 1},
			Scale:           1.2,
			LinearVelocity:  Vector3{X: 0.1, Y: 0.2, Z: 0.3},
			AngularVelocity: Vector3{X: 0, Y: 0, Z: 1},
			Enabled:         true,
			Activated:       true,
		},
	}

	buf := make([]byte, 64)
	ws := bitstream.NewWriteStream(buf)
	if !original.Pack(ws) {
		t.Fatal("Pack() failed")
	}

	var roundTrip ActiveObject
	rs := bitstream.NewReadStream(buf)
	if !roundTrip.Unpack(rs) {
		t.Fatal("Unpack() failed")
	}

	const packEps = 0.001
	if absf(roundTrip.Position.X-original.Position.X) > packEps ||
		absf(roundTrip.Position.Y-original.Position.Y) > packEps ||
		absf(roundTrip.Position.Z-original.Position.Z) > packEps {
		t.Fatalf("Position = %+v, want %+v (within quantization error)", roundTrip.Position, original.Position)
	}
	if roundTrip.Enabled != original.Enabled || roundTrip.Activated != original.Activated {
		t.Fatalf("Enabled/Activated = %v/%v, want %v/%v", roundTrip.Enabled, roundTrip.Activated, original.Enabled, original.Activated)
	}

	original.ID = 3
	if original.AuthorityID() != 3 {
		t.Fatalf("AuthorityID() = %d, want 3", original.AuthorityID())
	}
	moving := original
	moving.LinearVelocity = Vector3{X: 5, Y: 0, Z: 0}
	if moving.Priority() <= original.Priority() {
		t.Fatal("a cube with nonzero velocity should have higher priority than a still one")
	}
}
