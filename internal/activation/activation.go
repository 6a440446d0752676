// Package activation implements the grid-based proximity engine that
// decides which objects are "active" (close enough to a reference point to
// matter for replication) at any given tick. Objects are bucketed into a
// uniform grid; each Update only walks the cells whose bounding square
// intersects the activation disc, instead of testing every object against
// the reference point every tick.
package activation

import (
	"fmt"
	"math"
	"sort"
)

// ObjectId identifies an object tracked by the activation system.
type ObjectId uint32

// EventType distinguishes an activation transition.
type EventType int

const (
	Activate EventType = iota
	Deactivate
)

func (t EventType) String() string {
	if t == Activate {
		return "activate"
	}
	return "deactivate"
}

// Event records one activation transition observed during an Update.
type Event struct {
	Type EventType
	ID   ObjectId
}

type record struct {
	id        ObjectId
	x, y      float64
	cellIdx   int
	activeIdx int // index into System.active, or -1 if not active
}

// System is a single activation grid: insert objects into it, drive it with
// Update(dt), and read off Activate/Deactivate transitions as Events.
type System struct {
	maxObjects       int
	activationRadius float64
	gridWidth        int
	gridHeight       int
	cellSize         float64
	activeCapacity   int
	eventCapacity    int

	cells   [][]ObjectId // gridWidth*gridHeight buckets of object ids
	records map[ObjectId]*record
	active  []ObjectId // dense array of currently active object ids

	px, py  float64
	enabled bool

	events []Event
}

// NewSystem constructs an activation grid of gridWidth x gridHeight cells,
// each cellSize world units across, activating objects within
// activationRadius of the current reference point. activeCapacity and
// eventCapacity size the initial dense-array/event-buffer allocations only
// — both grow past them on demand, so they bound nothing at runtime.
func NewSystem(maxObjects int, activationRadius float64, gridWidth, gridHeight int, cellSize float64, activeCapacity, eventCapacity int) *System {
	return &System{
		maxObjects:       maxObjects,
		activationRadius: activationRadius,
		gridWidth:        gridWidth,
		gridHeight:       gridHeight,
		cellSize:         cellSize,
		activeCapacity:   activeCapacity,
		eventCapacity:    eventCapacity,
		cells:            make([][]ObjectId, gridWidth*gridHeight),
		records:          make(map[ObjectId]*record, maxObjects),
		active:           make([]ObjectId, 0, activeCapacity),
		events:           make([]Event, 0, eventCapacity),
		enabled:          true,
	}
}

func (s *System) cellCoord(v float64, cells int) int {
	c := int(math.Floor((v + float64(cells)*s.cellSize/2) / s.cellSize))
	if c < 0 {
		return 0
	}
	if c >= cells {
		return cells - 1
	}
	return c
}

func (s *System) cellIndex(x, y float64) int {
	cx := s.cellCoord(x, s.gridWidth)
	cy := s.cellCoord(y, s.gridHeight)
	return cy*s.gridWidth + cx
}

// inBounds reports whether x,y fall within the grid's world extent —
// [-width*cellSize/2, +width*cellSize/2) on each axis, and likewise for
// height. Coordinates outside this extent are rejected rather than bent
// into an edge cell: a silent clamp would put an object in a cell that
// doesn't correspond to its real position, corrupting every later
// Validate/Update pass against it.
func (s *System) inBounds(x, y float64) bool {
	halfW := float64(s.gridWidth) * s.cellSize / 2
	halfH := float64(s.gridHeight) * s.cellSize / 2
	return x >= -halfW && x < halfW && y >= -halfH && y < halfH
}

// InsertObject places an object in its mapped cell. It does not activate
// until the next Update. Returns an error, without inserting, if x,y falls
// outside the grid's world extent.
func (s *System) InsertObject(id ObjectId, x, y float64) error {
	if !s.inBounds(x, y) {
		return fmt.Errorf("activation: object %d position (%.2f,%.2f) outside grid extent", id, x, y)
	}
	cellIdx := s.cellIndex(x, y)
	s.records[id] = &record{id: id, x: x, y: y, cellIdx: cellIdx, activeIdx: -1}
	s.cells[cellIdx] = append(s.cells[cellIdx], id)
	return nil
}

// MoveObject updates an object's position, re-bucketing it into a new cell
// if its mapped cell changed. It never emits events directly; activation
// state only changes on the next Update. Returns an error, leaving the
// object at its previous position, if x,y falls outside the grid's world
// extent.
func (s *System) MoveObject(id ObjectId, x, y float64) error {
	r, ok := s.records[id]
	if !ok {
		return nil
	}
	if !s.inBounds(x, y) {
		return fmt.Errorf("activation: object %d position (%.2f,%.2f) outside grid extent", id, x, y)
	}
	r.x, r.y = x, y
	newCell := s.cellIndex(x, y)
	if newCell == r.cellIdx {
		return nil
	}
	s.removeFromCell(r.cellIdx, id)
	s.cells[newCell] = append(s.cells[newCell], id)
	r.cellIdx = newCell
	return nil
}

func (s *System) removeFromCell(cellIdx int, id ObjectId) {
	bucket := s.cells[cellIdx]
	for i, existing := range bucket {
		if existing == id {
			bucket[i] = bucket[len(bucket)-1]
			s.cells[cellIdx] = bucket[:len(bucket)-1]
			return
		}
	}
}

// MoveActivationPoint updates the reference point. The new position takes
// effect on the next Update.
func (s *System) MoveActivationPoint(px, py float64) {
	s.px, s.py = px, py
}

// SetEnabled toggles activation. While disabled, Update never activates new
// objects and deactivates every currently active one.
func (s *System) SetEnabled(enabled bool) { s.enabled = enabled }

// IsEnabled reports the current enabled state.
func (s *System) IsEnabled() bool { return s.enabled }

// GetX and GetY return the current reference point.
func (s *System) GetX() float64 { return s.px }
func (s *System) GetY() float64 { return s.py }

// GetWidth, GetHeight, and GetCellSize return the grid's static dimensions.
func (s *System) GetWidth() int        { return s.gridWidth }
func (s *System) GetHeight() int       { return s.gridHeight }
func (s *System) GetCellSize() float64 { return s.cellSize }

// GetActiveCount returns how many objects are currently active.
func (s *System) GetActiveCount() int { return len(s.active) }

// IsActive reports whether id is currently active.
func (s *System) IsActive(id ObjectId) bool {
	r, ok := s.records[id]
	return ok && r.activeIdx != -1
}

// Update recomputes activation state against the current reference point:
// objects within activationRadius whose cell falls in the disc's bounding
// square activate; active objects no longer within radius (or everything,
// if disabled) deactivate. Transitions are reported as Activate events
// (ascending ObjectId) followed by Deactivate events (ascending ObjectId).
func (s *System) Update(dt float64) {
	var activated, deactivated []ObjectId

	if s.enabled {
		minX := s.cellCoord(s.px-s.activationRadius, s.gridWidth)
		maxX := s.cellCoord(s.px+s.activationRadius, s.gridWidth)
		minY := s.cellCoord(s.py-s.activationRadius, s.gridHeight)
		maxY := s.cellCoord(s.py+s.activationRadius, s.gridHeight)

		for cy := minY; cy <= maxY; cy++ {
			for cx := minX; cx <= maxX; cx++ {
				for _, id := range s.cells[cy*s.gridWidth+cx] {
					r := s.records[id]
					if r.activeIdx != -1 {
						continue
					}
					if s.withinRadius(r) {
						activated = append(activated, id)
					}
				}
			}
		}
	}

	for _, id := range s.active {
		r := s.records[id]
		if !s.enabled || !s.withinRadius(r) {
			deactivated = append(deactivated, id)
		}
	}

	sort.Slice(activated, func(i, j int) bool { return activated[i] < activated[j] })
	for _, id := range activated {
		r := s.records[id]
		r.activeIdx = len(s.active)
		s.active = append(s.active, id)
		s.events = append(s.events, Event{Type: Activate, ID: id})
	}

	sort.Slice(deactivated, func(i, j int) bool { return deactivated[i] < deactivated[j] })
	for _, id := range deactivated {
		s.deactivate(id)
		s.events = append(s.events, Event{Type: Deactivate, ID: id})
	}
}

func (s *System) withinRadius(r *record) bool {
	dx := r.x - s.px
	dy := r.y - s.py
	return dx*dx+dy*dy <= s.activationRadius*s.activationRadius
}

// deactivate removes id from the dense active array via swap-with-last.
func (s *System) deactivate(id ObjectId) {
	r := s.records[id]
	last := len(s.active) - 1
	movedID := s.active[last]
	s.active[r.activeIdx] = movedID
	s.active = s.active[:last]
	if movedID != id {
		s.records[movedID].activeIdx = r.activeIdx
	}
	r.activeIdx = -1
}

// GetEventCount and GetEvent read the event buffer accumulated since the
// last ClearEvents; events are never dropped.
func (s *System) GetEventCount() int { return len(s.events) }

func (s *System) GetEvent(i int) Event { return s.events[i] }

// ClearEvents empties the event buffer.
func (s *System) ClearEvents() { s.events = s.events[:0] }

// Validate is an O(N) consistency check intended for debug builds: every
// object's recorded cell matches its position, every cell bucket contains
// exactly the objects that map to it, and every active index is unique and
// in range.
func (s *System) Validate() error {
	for id, r := range s.records {
		if want := s.cellIndex(r.x, r.y); want != r.cellIdx {
			return fmt.Errorf("activation: object %d recorded cell %d, want %d", id, r.cellIdx, want)
		}
	}
	for cellIdx, bucket := range s.cells {
		for _, id := range bucket {
			r, ok := s.records[id]
			if !ok || r.cellIdx != cellIdx {
				return fmt.Errorf("activation: cell %d lists object %d that doesn't map to it", cellIdx, id)
			}
		}
	}
	seen := make(map[int]ObjectId, len(s.active))
	for _, id := range s.active {
		r := s.records[id]
		if r.activeIdx < 0 || r.activeIdx >= len(s.active) {
			return fmt.Errorf("activation: object %d has out-of-range active index %d", id, r.activeIdx)
		}
		if other, dup := seen[r.activeIdx]; dup {
			return fmt.Errorf("activation: active index %d shared by objects %d and %d", r.activeIdx, other, id)
		}
		seen[r.activeIdx] = id
	}
	return nil
}
