package reliability

import "github.com/VictoriaMetrics/metrics"

// MaxPacketAge bounds how long (in the same time units Update/System.Send
// are driven with — seconds, in this module) an unacked packet is kept in
// the pending queue before it is dropped as lost, without ever notifying
// the caller of an ack for it.
const MaxPacketAge = 1.0

// ackBitsWindow is the number of prior sequence numbers a single ack_bits
// field can cover (one bit per prior sequence).
const ackBitsWindow = 32

// System tracks everything needed to generate and process sliding-window
// ack bitfields (acknowledgements only; there are no NACKs) for one
// connection direction: the next sequence number
// to assign, the highest sequence observed from the peer, the set of sent
// packets still awaiting acknowledgement, a short history of acked packets,
// a trimmed history of received sequences used to build outgoing ack bits,
// and an RTT estimate.
type System struct {
	localSequence  uint32
	haveRemote     bool
	remoteSequence uint32

	pendingAck PacketQueue
	acked      PacketQueue
	received   PacketQueue

	newAcks []uint32

	rtt float64 // seconds, EWMA

	sentPackets     uint64
	receivedPackets uint64
	lostPackets     uint64
	ackedPackets    uint64

	metricsRTT  *metrics.Gauge
	metricsLoss *metrics.Counter
}

// NewSystem constructs a fresh reliability state. instanceLabel disambiguates
// this connection's metrics series from any other System in the same
// process (e.g. "server" vs a specific peer address).
func NewSystem(instanceLabel string) *System {
	s := &System{}
	s.metricsRTT = metrics.GetOrCreateGauge(`cubesnet_rtt_seconds{conn="`+instanceLabel+`"}`, func() float64 {
		return s.rtt
	})
	s.metricsLoss = metrics.GetOrCreateCounter(`cubesnet_packets_lost_total{conn="` + instanceLabel + `"}`)
	return s
}

// RTT returns the current EWMA round-trip-time estimate, in seconds.
func (s *System) RTT() float64 { return s.rtt }

// NextSequence returns the sequence number the next call to PacketSent
// will assign, without consuming it.
func (s *System) NextSequence() uint32 { return s.localSequence }

// Stats returns simple running counters useful for diagnostics and tests.
func (s *System) Stats() (sent, received, acked, lost uint64) {
	return s.sentPackets, s.receivedPackets, s.ackedPackets, s.lostPackets
}

// PacketSent records that a packet carrying sequence local_sequence was
// just sent, and returns the sequence (so the caller can embed it in the
// wire header) before advancing local_sequence.
func (s *System) PacketSent(now float64, size int) uint32 {
	sequence := s.localSequence
	s.pendingAck.InsertSorted(PacketData{Sequence: sequence, SentAt: now, Size: size})
	s.localSequence++
	s.sentPackets++
	return sequence
}

// PacketReceived records an inbound packet's sequence number, advancing
// remote_sequence if it is more recent, and trims the received-sequence
// history used for ack-bit generation to the most recent 32 entries.
func (s *System) PacketReceived(sequence uint32) {
	if !s.haveRemote || SequenceMoreRecent(sequence, s.remoteSequence) {
		s.remoteSequence = sequence
		s.haveRemote = true
	}
	s.received.InsertSorted(PacketData{Sequence: sequence})
	s.received.TrimToMostRecent(ackBitsWindow)
	s.receivedPackets++
}

// AckBasis returns (ack, ack_bits) to embed in the next outgoing header:
// the highest sequence observed from the peer, and a 32-bit field whose
// bit i is set iff sequence (ack-(i+1)) has also been received.
func (s *System) AckBasis() (ack uint32, ackBits uint32) {
	return s.remoteSequence, generateAckBits(s.remoteSequence, &s.received)
}

// generateAckBits builds the ack-bits field: bit i (0-indexed, LSB =
// immediately-previous sequence) is set iff queue contains sequence
// ack-(i+1), wrapping through the sequence ring.
func generateAckBits(ack uint32, queue *PacketQueue) uint32 {
	var bits uint32
	for i := 0; i < ackBitsWindow; i++ {
		sequence := ack - uint32(i+1)
		if queue.Contains(sequence) {
			bits |= 1 << uint(i)
		}
	}
	return bits
}

// ProcessAck applies an incoming (ack, ack_bits) pair: every sequence it
// covers that is still in the pending-ack queue is moved to the acked
// queue, appended to the returned slice exactly once, and folds into the
// RTT estimate; anything older than MaxPacketAge is dropped from pending
// as a loss without being reported.
func (s *System) ProcessAck(now float64, ack uint32, ackBits uint32) (newlyAcked []uint32) {
	s.newAcks = s.newAcks[:0]

	s.ackOne(now, ack)
	for i := 0; i < ackBitsWindow; i++ {
		if ackBits&(1<<uint(i)) != 0 {
			s.ackOne(now, ack-uint32(i+1))
		}
	}

	s.expirePending(now)

	return s.newAcks
}

func (s *System) ackOne(now float64, sequence uint32) {
	data, ok := s.pendingAck.Remove(sequence)
	if !ok {
		return // already acked or never sent; process_ack is idempotent
	}
	s.acked.Append(data)
	s.newAcks = append(s.newAcks, sequence)
	s.ackedPackets++

	sampleRTT := now - data.SentAt
	if sampleRTT < 0 {
		sampleRTT = 0
	}
	s.rtt += (sampleRTT - s.rtt) * 0.1
}

func (s *System) expirePending(now float64) {
	kept := s.pendingAck.items[:0]
	for _, p := range s.pendingAck.items {
		if now-p.SentAt > MaxPacketAge {
			s.lostPackets++
			s.metricsLoss.Inc()
			continue
		}
		kept = append(kept, p)
	}
	s.pendingAck.items = kept
}
