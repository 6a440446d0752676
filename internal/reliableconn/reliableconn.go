// Package reliableconn wraps a connection.Connection with the sliding-window
// ack bookkeeping from package reliability, producing delivery
// notifications and an RTT estimate without ever retransmitting anything.
package reliableconn

import (
	"encoding/binary"
	"fmt"

	"cubesnet-go/internal/connection"
	"cubesnet-go/internal/netio"
	"cubesnet-go/internal/reliability"
)

// headerSize is the 12-byte reliability header: seq:u32 || ack:u32 ||
// ack_bits:u32, prepended after the connection layer's own ProtocolId.
const headerSize = 12

// ReliableConnection pairs a connection.Connection with a
// reliability.System, handling header encode/decode on every packet.
type ReliableConnection struct {
	conn      *connection.Connection
	system    *reliability.System
	now       float64
	newAcks   []uint32

	// PacketLossMask is a test-only knob: an outgoing packet is dropped at
	// the send side (never touches the socket) when its sequence number,
	// ANDed with this mask, is nonzero. The dropped packet is still recorded
	// as sent, so its sequence number is consumed and it later expires from
	// the pending queue as lost. Zero (the default) disables it.
	PacketLossMask uint32
}

// New constructs a ReliableConnection over a fresh connection.Connection
// for the given protocol id and timeout, labelling its metrics series with
// label.
func New(protocolID uint32, timeoutSeconds float64, label string) *ReliableConnection {
	return &ReliableConnection{
		conn:   connection.New(protocolID, timeoutSeconds),
		system: reliability.NewSystem(label),
	}
}

// Listen delegates to the underlying Connection.
func (r *ReliableConnection) Listen(port int) error { return r.conn.Listen(port) }

// Connect delegates to the underlying Connection.
func (r *ReliableConnection) Connect(addr netio.Address) error { return r.conn.Connect(addr) }

// Stop delegates to the underlying Connection.
func (r *ReliableConnection) Stop() { r.conn.Stop() }

// State exposes the underlying Connection's lifecycle state.
func (r *ReliableConnection) State() connection.State { return r.conn.State() }

// LocalPort exposes the underlying Connection's bound socket port.
func (r *ReliableConnection) LocalPort() int { return r.conn.LocalPort() }

// IsConnected exposes the underlying Connection's connectedness.
func (r *ReliableConnection) IsConnected() bool { return r.conn.IsConnected() }

// RTT returns the current round-trip-time estimate, in seconds.
func (r *ReliableConnection) RTT() float64 { return r.system.RTT() }

// Update advances both the connection timeout clock and this connection's
// notion of "now" used for RTT sampling and packet-age expiry.
func (r *ReliableConnection) Update(dt float64) {
	r.conn.Update(dt)
	r.now += dt
}

// SendPacket assigns the next sequence number, prepends the 12-byte
// reliability header, and sends the framed packet. If PacketLossMask drops
// this sequence, the packet is silently discarded but still recorded as
// sent, so it consumes its sequence number and is later counted as lost
// (matching the reference test harness's loss-simulation knob).
func (r *ReliableConnection) SendPacket(payload []byte) error {
	if r.PacketLossMask != 0 && r.system.NextSequence()&r.PacketLossMask != 0 {
		r.system.PacketSent(r.now, len(payload)) // consume the sequence number, drop the packet
		return nil
	}
	sequence := r.system.PacketSent(r.now, len(payload))
	ack, ackBits := r.system.AckBasis()

	framed := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint32(framed[0:4], sequence)
	binary.BigEndian.PutUint32(framed[4:8], ack)
	binary.BigEndian.PutUint32(framed[8:12], ackBits)
	copy(framed[headerSize:], payload)

	return r.conn.SendPacket(framed)
}

// ReceivePacket polls the underlying connection once. ok is false if no
// packet was available, if the connection layer dropped or consumed the
// packet, or if the packet is shorter than the 12-byte reliability header
// (such a packet is discarded here without touching the ack state).
func (r *ReliableConnection) ReceivePacket() (payload []byte, ok bool, err error) {
	raw, ok, err := r.conn.ReceivePacket()
	if err != nil || !ok {
		return nil, false, err
	}
	if len(raw) < headerSize {
		return nil, false, nil
	}
	sequence := binary.BigEndian.Uint32(raw[0:4])
	ack := binary.BigEndian.Uint32(raw[4:8])
	ackBits := binary.BigEndian.Uint32(raw[8:12])

	r.system.PacketReceived(sequence)
	r.newAcks = append(r.newAcks, r.system.ProcessAck(r.now, ack, ackBits)...)

	return raw[headerSize:], true, nil
}

// GetAcks returns every sequence newly acknowledged since the last call to
// GetAcks, and clears that list.
func (r *ReliableConnection) GetAcks() []uint32 {
	acks := r.newAcks
	r.newAcks = nil
	return acks
}

// Stats exposes the underlying reliability.System's running counters.
func (r *ReliableConnection) Stats() (sent, received, acked, lost uint64) {
	return r.system.Stats()
}

func (r *ReliableConnection) String() string {
	return fmt.Sprintf("ReliableConnection{state=%s rtt=%.3fs}", r.conn.State(), r.system.RTT())
}
