// Package reliability implements the sliding-window acknowledgement layer that
// rides on top of package connection: sequence numbers, ack-bitfield
// generation, RTT estimation, and a sorted packet queue used both for
// pending acknowledgements and for generating those bitfields.
package reliability

import "github.com/lithdew/seq"

// MaxSequence bounds the sequence-number ring. Sequences are u32 on the
// wire (§4.6's 12-byte header is seq:u32 || ack:u32 || ack_bits:u32) and
// compared with full-width wraparound via lithdew/seq's half-range
// comparator, so the ring size is the full 2^32 rather than an arbitrary
// configurable modulus — see DESIGN.md's Open Question notes for why.
const MaxSequence = 0xFFFFFFFF

// PacketData is one entry tracked by a PacketQueue: a sequence number plus
// whatever bookkeeping the owning queue needs (send time for pending-ack
// entries, nothing for the received-queue entries).
type PacketData struct {
	Sequence uint32
	SentAt   float64 // seconds, only meaningful in the pending-ack queue
	Size     int
}

// SequenceMoreRecent reports whether a is nearer-forward than b on the
// sequence ring — the §4.4 comparator, implemented via lithdew/seq's
// wraparound-aware greater-than.
func SequenceMoreRecent(a, b uint32) bool {
	return seq.GT(a, b)
}

// PacketQueue is a queue of PacketData kept sorted ascending by sequence in
// ring order (the sequence "before" head, if any, is the most recent
// relative to whatever operation last trimmed the queue).
type PacketQueue struct {
	items []PacketData
}

// Len returns the number of entries in the queue.
func (q *PacketQueue) Len() int { return len(q.items) }

// Items returns the queue's entries in sorted order. The slice is owned by
// the queue; callers must not mutate it.
func (q *PacketQueue) Items() []PacketData { return q.items }

// InsertSorted inserts data keeping the queue sorted in ring order relative
// to the existing entries: each new entry is placed before the first
// existing entry that is more recent than it.
func (q *PacketQueue) InsertSorted(data PacketData) {
	i := 0
	for i < len(q.items) && !SequenceMoreRecent(q.items[i].Sequence, data.Sequence) {
		i++
	}
	q.items = append(q.items, PacketData{})
	copy(q.items[i+1:], q.items[i:])
	q.items[i] = data
}

// Contains reports whether sequence is present in the queue.
func (q *PacketQueue) Contains(sequence uint32) bool {
	for _, item := range q.items {
		if item.Sequence == sequence {
			return true
		}
	}
	return false
}

// Remove deletes the entry with the given sequence, if present, and
// returns it.
func (q *PacketQueue) Remove(sequence uint32) (PacketData, bool) {
	for i, item := range q.items {
		if item.Sequence == sequence {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return item, true
		}
	}
	return PacketData{}, false
}

// Append adds data to the back of the queue without reordering — used by
// the acked queue, which is populated in the order process_ack discovers
// acknowledgements rather than sequence order.
func (q *PacketQueue) Append(data PacketData) {
	q.items = append(q.items, data)
}

// TrimToMostRecent keeps only the n most-recent entries (by ring order),
// dropping the oldest. Used to bound the received queue used for ack-bit
// generation to the last 32 entries.
func (q *PacketQueue) TrimToMostRecent(n int) {
	if len(q.items) <= n {
		return
	}
	q.items = q.items[len(q.items)-n:]
}

// VerifySorted is a debug invariant check: it returns false if the queue is
// not in ring-sorted order, and true otherwise. It does not panic. Used by
// tests, mirroring the original's verify_sorted.
func (q *PacketQueue) VerifySorted() bool {
	for i := 1; i < len(q.items); i++ {
		if SequenceMoreRecent(q.items[i-1].Sequence, q.items[i].Sequence) {
			return false
		}
	}
	return true
}
