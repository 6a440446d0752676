package priority

import "testing"

func TestPrioritySet_InitialConditions(t *testing.T) {
	p := NewPrioritySet()
	if p.GetObjectCount() != 0 {
		t.Fatalf("GetObjectCount() = %d, want 0", p.GetObjectCount())
	}
}

func TestPrioritySet_AddRemoveClear(t *testing.T) {
	p := NewPrioritySet()
	p.AddObject(1)
	p.AddObject(2)
	p.AddObject(3)
	p.AddObject(4)
	p.AddObject(5)
	p.RemoveObject(3)
	p.AddObject(6)

	if p.GetObjectCount() != 5 {
		t.Fatalf("GetObjectCount() = %d, want 5", p.GetObjectCount())
	}
	want := []ObjectId{1, 2, 5, 4, 6}
	for i, w := range want {
		if got := p.GetPriorityObject(i); got != w {
			t.Fatalf("GetPriorityObject(%d) = %d, want %d", i, got, w)
		}
	}

	p.Clear()
	if p.GetObjectCount() != 0 {
		t.Fatalf("GetObjectCount() after Clear = %d, want 0", p.GetObjectCount())
	}
}

func TestPrioritySet_SortObjects(t *testing.T) {
	p := NewPrioritySet()
	for i := ObjectId(1); i <= 6; i++ {
		p.AddObject(i)
	}
	priorities := []float64{0.5, 0.1, 1.0, 0.7, 1000.0, 100.0}
	for i, v := range priorities {
		p.SetPriorityAtIndex(i, v)
	}

	p.SortObjects()

	wantIDs := []ObjectId{5, 6, 3, 4, 1, 2}
	wantPriorities := []float64{1000.0, 100.0, 1.0, 0.7, 0.5, 0.1}
	for i := range wantIDs {
		if got := p.GetPriorityObject(i); got != wantIDs[i] {
			t.Fatalf("GetPriorityObject(%d) = %d, want %d", i, got, wantIDs[i])
		}
		if got := p.GetPriorityAtIndex(i); got != wantPriorities[i] {
			t.Fatalf("GetPriorityAtIndex(%d) = %v, want %v", i, got, wantPriorities[i])
		}
	}

	// Index 0 currently holds object 5 (priority 1000); zero it and re-sort.
	p.SetPriorityAtIndex(0, 0.0)
	p.SortObjects()

	wantIDs2 := []ObjectId{6, 3, 4, 1, 2, 5}
	wantPriorities2 := []float64{100.0, 1.0, 0.7, 0.5, 0.1, 0.0}
	for i := range wantIDs2 {
		if got := p.GetPriorityObject(i); got != wantIDs2[i] {
			t.Fatalf("round 2: GetPriorityObject(%d) = %d, want %d", i, got, wantIDs2[i])
		}
		if got := p.GetPriorityAtIndex(i); got != wantPriorities2[i] {
			t.Fatalf("round 2: GetPriorityAtIndex(%d) = %v, want %v", i, got, wantPriorities2[i])
		}
	}
}
