// Package cubes is the concrete object type the rest of the engine
// replicates: a physical cube with a persistent database record and a
// transient active-object representation. Where the original engine
// templated its game instance on a database-record type and an
// active-object type, Go has no equivalent of instantiating a template
// once per concrete type pair — so this package plays that role directly:
// Instance (in instance.go) is concrete over DatabaseObject/ActiveObject
// rather than generic, since cubes are the only capability-set the engine
// ever needs.
package cubes

import (
	"math"

	"cubesnet-go/internal/bitstream"
)

// ObjectId identifies a cube's database record. It is distinct from (but
// numerically interchangeable with) activation.ObjectId and
// priority.ObjectId — each subsystem only ever sees the projection of a
// cube it cares about, so Instance converts at the boundary rather than
// forcing every subsystem onto a single shared id type.
type ObjectId uint32

// Vector3 is a position, velocity, or axis in world space.
type Vector3 struct {
	X, Y, Z float64
}

// Quaternion is a unit rotation, W-first to match the engine's convention.
type Quaternion struct {
	W, X, Y, Z float64
}

// Normalize scales q to unit length in place. The zero quaternion is left
// unchanged (there is no sensible unit form of it).
func (q *Quaternion) Normalize() {
	n := q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z
	if n == 0 {
		return
	}
	inv := 1 / math.Sqrt(n)
	q.W *= inv
	q.X *= inv
	q.Y *= inv
	q.Z *= inv
}

// Dot is the quaternion inner product, used to find the shorter of the two
// rotations a unit quaternion and its negation both represent.
func (q Quaternion) Dot(o Quaternion) float64 {
	return q.W*o.W + q.X*o.X + q.Y*o.Y + q.Z*o.Z
}

// DatabaseObject is a cube's persistent record: the state that exists
// whether or not the cube is currently within anyone's activation radius.
type DatabaseObject struct {
	ID              ObjectId
	Position        Vector3
	Orientation     Quaternion
	Scale           float64
	LinearVelocity  Vector3
	AngularVelocity Vector3
	Enabled         bool
	Activated       bool
}

// ActiveObject is the live, replicated form of a cube while it is within
// activation range. It carries the same fields as DatabaseObject (the
// active-object lifecycle restores from the record on activation and
// writes back on deactivation) plus its dense active-index.
type ActiveObject struct {
	DatabaseObject
	ActiveIndex int
}

// fromDatabase builds the active-object snapshot restored at activation.
func fromDatabase(d DatabaseObject, activeIndex int) ActiveObject {
	return ActiveObject{DatabaseObject: d, ActiveIndex: activeIndex}
}

// toDatabase is the write-back performed at deactivation.
func (a ActiveObject) toDatabase() DatabaseObject {
	return a.DatabaseObject
}

// Pack serializes a cube's replicated state: position, orientation, scale,
// both velocities, and the enabled/activated bits. It is one half of the
// pack/unpack/priority/authority_id capability set the game instance
// requires of its active-object type.
func (a *ActiveObject) Pack(s *bitstream.Stream) bool {
	return a.serialize(s)
}

// Unpack reads back what Pack wrote, in the same field order.
func (a *ActiveObject) Unpack(s *bitstream.Stream) bool {
	return a.serialize(s)
}

func (a *ActiveObject) serialize(s *bitstream.Stream) bool {
	if !packPosition(s, &a.Position) {
		return false
	}
	if !packOrientation(s, &a.Orientation) {
		return false
	}
	scale := float32(a.Scale)
	if !s.SerializeFloat(&scale) {
		return false
	}
	a.Scale = float64(scale)

	velocities := []*float64{
		&a.LinearVelocity.X, &a.LinearVelocity.Y, &a.LinearVelocity.Z,
		&a.AngularVelocity.X, &a.AngularVelocity.Y, &a.AngularVelocity.Z,
	}
	for _, f := range velocities {
		v := float32(*f)
		if !s.SerializeFloat(&v) {
			return false
		}
		*f = float64(v)
	}
	if !s.SerializeBoolean(&a.Enabled) {
		return false
	}
	if !s.SerializeBoolean(&a.Activated) {
		return false
	}
	return true
}

// Priority is the state-replication scheduler's ranking input: the squared
// linear speed, so cubes moving less are lower priority than ones with
// non-trivial velocity, which are more likely to have drifted since the
// last snapshot a peer received. Angular velocity does not count.
func (a *ActiveObject) Priority() float64 {
	v := a.LinearVelocity
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

// AuthorityID is the key the authority manager tracks ownership under.
func (a *ActiveObject) AuthorityID() ObjectId {
	return a.ID
}
