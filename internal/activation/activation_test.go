package activation

import (
	"math/rand"
	"testing"
)

func TestSystem_InitialConditions(t *testing.T) {
	s := NewSystem(1024, 10.0, 20, 20, 1, 32, 32)

	if s.GetEventCount() != 0 {
		t.Fatalf("GetEventCount() = %d, want 0", s.GetEventCount())
	}
	if s.GetX() != 0 || s.GetY() != 0 {
		t.Fatalf("reference point = (%v,%v), want (0,0)", s.GetX(), s.GetY())
	}
	if s.GetActiveCount() != 0 {
		t.Fatalf("GetActiveCount() = %d, want 0", s.GetActiveCount())
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if s.GetWidth() != 20 || s.GetHeight() != 20 {
		t.Fatalf("grid dims = (%d,%d), want (20,20)", s.GetWidth(), s.GetHeight())
	}
	if s.GetCellSize() != 1 {
		t.Fatalf("GetCellSize() = %v, want 1", s.GetCellSize())
	}
	if !s.IsEnabled() {
		t.Fatal("expected system to start enabled")
	}
}

func insertFourQuadrants(t *testing.T, s *System, rng *rand.Rand) {
	t.Helper()
	id := ObjectId(1)
	ranges := [4][4]float64{
		{-1, 0, -1, 0},
		{0, 1, -1, 0},
		{-1, 0, 0, 1},
		{0, 1, 0, 1},
	}
	for _, r := range ranges {
		for i := 0; i < 10; i++ {
			x := r[0] + rng.Float64()*(r[1]-r[0])
			y := r[2] + rng.Float64()*(r[3]-r[2])
			if err := s.InsertObject(id, x, y); err != nil {
				t.Fatalf("InsertObject(%d, %v, %v): %v", id, x, y, err)
			}
			id++
		}
	}
}

func TestSystem_ActivateDeactivate(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	s := NewSystem(1024, 10.0, 100, 100, 1, 32, 32)
	insertFourQuadrants(t, s, rng)

	for i := 0; i < 10; i++ {
		s.Update(0.1)
	}
	if s.GetActiveCount() != 40 {
		t.Fatalf("GetActiveCount() = %d, want 40", s.GetActiveCount())
	}
	if s.GetEventCount() != 40 {
		t.Fatalf("GetEventCount() = %d, want 40", s.GetEventCount())
	}
	for i := 0; i < s.GetEventCount(); i++ {
		ev := s.GetEvent(i)
		if ev.Type != Activate {
			t.Fatalf("event %d type = %v, want Activate", i, ev.Type)
		}
		if ev.ID != ObjectId(i+1) {
			t.Fatalf("event %d id = %d, want %d", i, ev.ID, i+1)
		}
	}
	s.ClearEvents()
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	for id := ObjectId(1); id <= 40; id++ {
		if !s.IsActive(id) {
			t.Fatalf("object %d expected active", id)
		}
	}

	// Move the activation point far away: everything deactivates.
	s.MoveActivationPoint(1000, 1000)
	for i := 0; i < 10; i++ {
		s.Update(0.1)
	}
	if s.GetActiveCount() != 0 {
		t.Fatalf("GetActiveCount() = %d, want 0", s.GetActiveCount())
	}
	if s.GetEventCount() != 40 {
		t.Fatalf("GetEventCount() = %d, want 40", s.GetEventCount())
	}
	for i := 0; i < s.GetEventCount(); i++ {
		ev := s.GetEvent(i)
		if ev.Type != Deactivate {
			t.Fatalf("event %d type = %v, want Deactivate", i, ev.Type)
		}
	}
	s.ClearEvents()
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	for id := ObjectId(1); id <= 40; id++ {
		if s.IsActive(id) {
			t.Fatalf("object %d expected inactive", id)
		}
	}

	// Move back to the origin: everything reactivates.
	s.MoveActivationPoint(0, 0)
	for i := 0; i < 10; i++ {
		s.Update(0.1)
	}
	if s.GetActiveCount() != 40 {
		t.Fatalf("GetActiveCount() = %d, want 40", s.GetActiveCount())
	}
	s.ClearEvents()

	// Moving within the activation disc doesn't emit events.
	if err := s.MoveObject(1, 0.5, -0.5); err != nil {
		t.Fatalf("MoveObject: %v", err)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !s.IsActive(1) || s.GetEventCount() != 0 {
		t.Fatalf("expected object 1 still active with no events, active=%v events=%d", s.IsActive(1), s.GetEventCount())
	}

	// Move an active object outside the disc (but still in the grid): it deactivates.
	if err := s.MoveObject(1, -15, -15); err != nil {
		t.Fatalf("MoveObject: %v", err)
	}
	for i := 0; i < 10; i++ {
		if err := s.Validate(); err != nil {
			t.Fatalf("Validate: %v", err)
		}
		s.Update(0.1)
	}
	if s.IsActive(1) {
		t.Fatal("expected object 1 to deactivate")
	}
	if s.GetActiveCount() != 39 {
		t.Fatalf("GetActiveCount() = %d, want 39", s.GetActiveCount())
	}
	if s.GetEventCount() != 1 || s.GetEvent(0).Type != Deactivate || s.GetEvent(0).ID != 1 {
		t.Fatalf("expected a single Deactivate(1) event, got %+v", s.events)
	}
	s.ClearEvents()

	// Move it back in: it reactivates.
	if err := s.MoveObject(1, 0, 0); err != nil {
		t.Fatalf("MoveObject: %v", err)
	}
	for i := 0; i < 10; i++ {
		if err := s.Validate(); err != nil {
			t.Fatalf("Validate: %v", err)
		}
		s.Update(0.1)
	}
	if !s.IsActive(1) {
		t.Fatal("expected object 1 to reactivate")
	}
	if s.GetEventCount() != 1 || s.GetEvent(0).Type != Activate || s.GetEvent(0).ID != 1 {
		t.Fatalf("expected a single Activate(1) event, got %+v", s.events)
	}
}

func TestSystem_EnableDisable(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	s := NewSystem(1024, 10.0, 20, 20, 1, 32, 32)
	insertFourQuadrants(t, s, rng)

	s.SetEnabled(false)
	for i := 0; i < 10; i++ {
		s.Update(0.1)
	}
	if s.GetActiveCount() != 0 || s.GetEventCount() != 0 {
		t.Fatalf("disabled system should activate nothing: active=%d events=%d", s.GetActiveCount(), s.GetEventCount())
	}

	s.SetEnabled(true)
	for i := 0; i < 10; i++ {
		s.Update(0.1)
	}
	if s.GetActiveCount() != 40 || s.GetEventCount() != 40 {
		t.Fatalf("expected 40 active/40 events after enabling, got active=%d events=%d", s.GetActiveCount(), s.GetEventCount())
	}
	s.ClearEvents()
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	s.SetEnabled(false)
	for i := 0; i < 10; i++ {
		s.Update(0.1)
	}
	if s.GetActiveCount() != 0 {
		t.Fatalf("GetActiveCount() = %d, want 0 after disabling", s.GetActiveCount())
	}
	if s.GetEventCount() != 40 {
		t.Fatalf("GetEventCount() = %d, want 40", s.GetEventCount())
	}
	for i := 0; i < s.GetEventCount(); i++ {
		if s.GetEvent(i).Type != Deactivate {
			t.Fatalf("event %d type = %v, want Deactivate", i, s.GetEvent(i).Type)
		}
	}
}

func TestSystem_Sweep(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	s := NewSystem(1024, 10.0, 50, 50, 1, 32, 32)
	insertFourQuadrants(t, s, rng)

	activated := make([]bool, 40)
	for x := -100.0; x < 100.0; x += 0.1 {
		s.MoveActivationPoint(x, 0)
		s.Update(0.1)
		for i := 0; i < s.GetEventCount(); i++ {
			ev := s.GetEvent(i)
			if ev.ID < 1 || ev.ID > 40 {
				t.Fatalf("event id %d out of range", ev.ID)
			}
			idx := ev.ID - 1
			switch ev.Type {
			case Activate:
				if activated[idx] {
					t.Fatalf("object %d activated while already active", ev.ID)
				}
				activated[idx] = true
			case Deactivate:
				if !activated[idx] {
					t.Fatalf("object %d deactivated while not active", ev.ID)
				}
				activated[idx] = false
			}
		}
		s.ClearEvents()
	}
}

func TestSystem_InsertMoveRejectOutOfBounds(t *testing.T) {
	s := NewSystem(16, 10.0, 10, 10, 1, 8, 8)

	// Grid spans [-5,5) on each axis; (100,100) is well outside it.
	if err := s.InsertObject(1, 100, 100); err == nil {
		t.Fatal("expected InsertObject to reject an out-of-bounds position")
	}
	if _, ok := s.records[1]; ok {
		t.Fatal("rejected InsertObject must not leave a record behind")
	}

	if err := s.InsertObject(1, 0, 0); err != nil {
		t.Fatalf("InsertObject: %v", err)
	}
	if err := s.MoveObject(1, 100, 100); err == nil {
		t.Fatal("expected MoveObject to reject an out-of-bounds position")
	}
	if r := s.records[1]; r.x != 0 || r.y != 0 {
		t.Fatalf("rejected MoveObject must leave the object at its prior position, got (%v,%v)", r.x, r.y)
	}
}

func TestSystem_ValidateCatchesMismatch(t *testing.T) {
	s := NewSystem(16, 10.0, 10, 10, 1, 8, 8)
	if err := s.InsertObject(1, 0, 0); err != nil {
		t.Fatalf("InsertObject: %v", err)
	}
	// Directly corrupt the record to simulate a bookkeeping bug.
	s.records[1].cellIdx = 99
	if err := s.Validate(); err == nil {
		t.Fatal("expected Validate to catch the cell-index mismatch")
	}
}
