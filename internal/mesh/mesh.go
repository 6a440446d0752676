// Package mesh implements a star-topology node identity service: one host
// assigning small integer node ids to a bounded set of peers and
// broadcasting the resulting address table, and peers that route to each
// other by looking up that table.
//
// Every packet on the wire starts with the 4-byte protocol id (framed via
// internal/bitstream's packet-framing helper) followed by a 1-byte kind,
// then a kind-specific body.
package mesh

import (
	"encoding/binary"
	"fmt"

	"cubesnet-go/internal/bitstream"
	"cubesnet-go/internal/netio"
	"cubesnet-go/pkg/logger"

	"github.com/rs/xid"
)

const (
	kindJoinRequest  byte = 0
	kindAddressTable byte = 1
	kindNodePacket   byte = 2
)

// SlotState describes one row of the host's node table.
type SlotState int

const (
	Free SlotState = iota
	Reserved
	ConnectedAwaitingAck
	Connected
)

func (s SlotState) String() string {
	switch s {
	case Free:
		return "free"
	case Reserved:
		return "reserved"
	case ConnectedAwaitingAck:
		return "connected_awaiting_ack"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

type slot struct {
	state         SlotState
	reservedAddr  netio.Address
	hasReserved   bool
	peerAddr      netio.Address
	hasPeer       bool
	lastHeard     float64
}

// Mesh is the host side of the star topology: it owns node-id assignment
// and periodically broadcasts the full address table to every peer it
// knows about.
type Mesh struct {
	protocolID uint32
	maxNodes   int
	sendRate   float64
	timeOut    float64

	socket *netio.Socket
	slots  []slot

	clock     float64
	sendAccum float64

	instanceID xid.ID
}

// NewMesh constructs a host for up to maxNodes peers, broadcasting its
// address table every sendRate seconds and expiring silent slots after
// timeOut seconds.
func NewMesh(protocolID uint32, maxNodes int, sendRate, timeOut float64) *Mesh {
	return &Mesh{
		protocolID: protocolID,
		maxNodes:   maxNodes,
		sendRate:   sendRate,
		timeOut:    timeOut,
		slots:      make([]slot, maxNodes),
		instanceID: xid.New(),
	}
}

// Start binds the host's well-known port.
func (m *Mesh) Start(port int) error {
	sock, err := netio.Listen(port)
	if err != nil {
		return fmt.Errorf("mesh: start: %w", err)
	}
	m.socket = sock
	logger.Info("mesh %s started on port %d (max nodes %d)", m.instanceID.String(), sock.LocalPort(), m.maxNodes)
	return nil
}

// Reserve pre-binds slotIdx to expectedAddress, so that address (once it
// connects) is assigned that slot rather than the first Free one — used to
// pin a well-known identity such as slot 0 to a game server. The
// reservation lasts until the slot times out: expiry resets the slot to
// Free and drops the reservation with it.
func (m *Mesh) Reserve(slotIdx int, expectedAddress netio.Address) error {
	if slotIdx < 0 || slotIdx >= len(m.slots) {
		return fmt.Errorf("mesh: slot %d out of range", slotIdx)
	}
	m.slots[slotIdx] = slot{state: Reserved, reservedAddr: expectedAddress, hasReserved: true}
	return nil
}

// IsNodeConnected reports whether slotIdx currently holds a Connected peer.
func (m *Mesh) IsNodeConnected(slotIdx int) bool {
	if slotIdx < 0 || slotIdx >= len(m.slots) {
		return false
	}
	return m.slots[slotIdx].state == Connected
}

// GetMaxNodes returns the configured slot count.
func (m *Mesh) GetMaxNodes() int { return m.maxNodes }

// BytesSent and BytesReceived report the host socket's cumulative traffic,
// for metrics export; both are 0 before Start.
func (m *Mesh) BytesSent() uint64 {
	if m.socket == nil {
		return 0
	}
	return m.socket.BytesSent()
}

func (m *Mesh) BytesReceived() uint64 {
	if m.socket == nil {
		return 0
	}
	return m.socket.BytesReceived()
}

// Stop releases the host's socket. Peers lose the heartbeat and will
// eventually time out on their own.
func (m *Mesh) Stop() {
	if m.socket != nil {
		m.socket.Close()
		m.socket = nil
	}
}

// Update advances the host's clock, drains any pending datagrams, expires
// stale slots, and broadcasts the address table if sendRate has elapsed.
func (m *Mesh) Update(dt float64) error {
	m.clock += dt
	m.sendAccum += dt

	for {
		pkt, ok, err := m.socket.TryReadPacket()
		if err != nil {
			return fmt.Errorf("mesh: update: %w", err)
		}
		if !ok {
			break
		}
		payload, framed := bitstream.ReadPacketFrame(m.protocolID, pkt.Data)
		if !framed || len(payload) == 0 {
			continue
		}
		m.handlePacket(payload, pkt.From)
	}

	m.expireStaleSlots()

	if m.sendAccum >= m.sendRate {
		m.sendAccum = 0
		m.broadcastAddressTable()
	}

	return nil
}

func (m *Mesh) handlePacket(payload []byte, from netio.Address) {
	switch payload[0] {
	case kindJoinRequest:
		m.handleJoinRequest(from)
	case kindNodePacket:
		// Peer-to-peer traffic is routed directly between peers; the host
		// doesn't forward it, so any NodePacket arriving here is logged
		// and dropped rather than acted on.
		logger.Debug("mesh: unexpected node packet from %s", from.String())
	default:
		logger.Debug("mesh: unknown packet kind %d from %s", payload[0], from.String())
	}
}

func (m *Mesh) handleJoinRequest(from netio.Address) {
	for i := range m.slots {
		s := &m.slots[i]
		if s.hasPeer && s.peerAddr.Equal(from) {
			s.lastHeard = m.clock
			if s.state == ConnectedAwaitingAck {
				s.state = Connected
			}
			return
		}
	}

	slotIdx := m.findSlotFor(from)
	if slotIdx < 0 {
		return // mesh full, or reserved for someone else: silently ignore
	}
	s := &m.slots[slotIdx]
	s.peerAddr = from
	s.hasPeer = true
	s.lastHeard = m.clock
	s.state = ConnectedAwaitingAck
}

// findSlotFor returns the slot index from should occupy: its reservation
// if it has one, else the first Free slot, else -1 if the mesh is full.
func (m *Mesh) findSlotFor(from netio.Address) int {
	for i := range m.slots {
		if m.slots[i].hasReserved && m.slots[i].reservedAddr.Equal(from) {
			return i
		}
	}
	for i := range m.slots {
		if m.slots[i].state == Free {
			return i
		}
	}
	return -1
}

func (m *Mesh) expireStaleSlots() {
	for i := range m.slots {
		s := &m.slots[i]
		if !s.hasPeer {
			continue
		}
		if m.clock-s.lastHeard > m.timeOut {
			*s = slot{}
		}
	}
}

func (m *Mesh) broadcastAddressTable() {
	body := compressTable(encodeAddressTable(m.slots))
	framed := bitstream.WritePacketFrame(m.protocolID, append([]byte{kindAddressTable}, body...))
	for i := range m.slots {
		s := &m.slots[i]
		if !s.hasPeer {
			continue
		}
		if err := m.socket.SendPacket(s.peerAddr, framed); err != nil {
			logger.Warn("mesh: broadcast to slot %d failed: %v", i, err)
		}
	}
}

// encodeAddressTable serializes [maxNodes u16, count u16, (slotIdx u16, ip4,
// port u16) x count] for every slot currently holding a peer (connected or
// awaiting ack — a peer appears in the table as soon as the host has
// assigned it a slot, so it can learn its own id from the very first
// broadcast it receives). maxNodes is the mesh's total capacity, carried
// even when most slots are still empty, so a peer can learn the shape of
// the mesh it joined without querying the host separately.
func encodeAddressTable(slots []slot) []byte {
	var entries []byte
	var count uint16
	for i, s := range slots {
		if !s.hasPeer {
			continue
		}
		entry := make([]byte, 8)
		binary.BigEndian.PutUint16(entry[0:2], uint16(i))
		ip4 := s.peerAddr.IP.To4()
		if ip4 == nil {
			ip4 = []byte{0, 0, 0, 0}
		}
		copy(entry[2:6], ip4)
		binary.BigEndian.PutUint16(entry[6:8], uint16(s.peerAddr.Port))
		entries = append(entries, entry...)
		count++
	}
	out := make([]byte, 4, 4+len(entries))
	binary.BigEndian.PutUint16(out[0:2], uint16(len(slots)))
	binary.BigEndian.PutUint16(out[2:4], count)
	return append(out, entries...)
}

// addressTable is the Node-side decoding of a host's broadcast: maxNodes is
// the mesh's total slot capacity, and byNode maps currently-assigned slot
// indices to their peer's address.
type addressTable struct {
	maxNodes int
	byNode   map[int]netio.Address
}

// decodeAddressTable is the Node-side counterpart of encodeAddressTable.
func decodeAddressTable(body []byte) (addressTable, bool) {
	if len(body) < 4 {
		return addressTable{}, false
	}
	maxNodes := int(binary.BigEndian.Uint16(body[0:2]))
	count := int(binary.BigEndian.Uint16(body[2:4]))
	body = body[4:]
	if len(body) < count*8 {
		return addressTable{}, false
	}
	table := make(map[int]netio.Address, count)
	for i := 0; i < count; i++ {
		entry := body[i*8 : i*8+8]
		slotIdx := int(binary.BigEndian.Uint16(entry[0:2]))
		ip := make([]byte, 4)
		copy(ip, entry[2:6])
		port := int(binary.BigEndian.Uint16(entry[6:8]))
		table[slotIdx] = netio.Address{IP: ip, Port: port}
	}
	return addressTable{maxNodes: maxNodes, byNode: table}, true
}
