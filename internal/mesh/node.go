package mesh

import (
	"fmt"
	"net"

	"cubesnet-go/internal/bitstream"
	"cubesnet-go/internal/netio"
	"cubesnet-go/pkg/logger"
)

// nodeState is the Node's view of its own membership in the mesh.
type nodeState int

const (
	nodeDisconnected nodeState = iota
	nodeConnecting
	nodeConnectFail
	nodeConnected
)

// Node is the peer side of the star topology: it joins a Mesh host, learns
// its assigned slot index (its "local node id") from the broadcast address
// table, and then routes packets to other peers by looking that table up —
// never through the host.
type Node struct {
	protocolID uint32
	sendRate   float64
	timeOut    float64

	socket     *netio.Socket
	ownAddress netio.Address

	state        nodeState
	meshAddr     netio.Address
	timeoutAccum float64
	sendAccum    float64

	localNodeID int
	maxNodes    int
	table       map[int]netio.Address
	inbox       []nodePacket
}

// NewNode constructs a peer that will join a mesh at the given protocol id,
// resending its join request every sendRate seconds and giving up after
// timeOut seconds of silence.
func NewNode(protocolID uint32, sendRate, timeOut float64) *Node {
	return &Node{
		protocolID:  protocolID,
		sendRate:    sendRate,
		timeOut:     timeOut,
		localNodeID: -1,
	}
}

// Start binds the node's local socket.
func (n *Node) Start(port int) error {
	sock, err := netio.Listen(port)
	if err != nil {
		return fmt.Errorf("mesh: node start: %w", err)
	}
	n.socket = sock
	// The mesh has no NAT/STUN traversal story; every test and deployment
	// target here is loopback or a flat LAN, so the node's own address for
	// table-matching purposes is its bound port on localhost.
	n.ownAddress = netio.Address{IP: net.IPv4(127, 0, 0, 1), Port: sock.LocalPort()}
	return nil
}

// Stop releases the node's socket and resets its membership state.
func (n *Node) Stop() {
	if n.socket != nil {
		n.socket.Close()
		n.socket = nil
	}
	n.state = nodeDisconnected
	n.localNodeID = -1
	n.table = nil
}

// Connect begins joining the mesh host at addr.
func (n *Node) Connect(addr netio.Address) {
	n.meshAddr = addr
	n.state = nodeConnecting
	n.timeoutAccum = 0
	n.sendAccum = n.sendRate // send the first join request immediately
	n.localNodeID = -1
	n.table = nil
}

// IsConnecting reports whether a join is in flight.
func (n *Node) IsConnecting() bool { return n.state == nodeConnecting }

// ConnectFailed reports whether the most recent join attempt timed out.
func (n *Node) ConnectFailed() bool { return n.state == nodeConnectFail }

// IsConnected reports whether this node currently holds a slot in the mesh.
func (n *Node) IsConnected() bool { return n.state == nodeConnected }

// GetLocalNodeId returns this node's assigned slot index, or -1 if it
// isn't currently connected.
func (n *Node) GetLocalNodeId() int { return n.localNodeID }

// GetMaxNodes returns the mesh's total slot count, learned from the first
// address table broadcast; 0 before that.
func (n *Node) GetMaxNodes() int { return n.maxNodes }

// Address returns this node's own bound address. A caller that also owns
// the Mesh host (the common case: the authoritative server process runs
// both) uses it with Mesh.Reserve to bind a known slot, such as slot 0,
// to itself ahead of time.
func (n *Node) Address() netio.Address { return n.ownAddress }

// BytesSent and BytesReceived report this node's socket's cumulative
// traffic, for metrics export; both are 0 before Start.
func (n *Node) BytesSent() uint64 {
	if n.socket == nil {
		return 0
	}
	return n.socket.BytesSent()
}

func (n *Node) BytesReceived() uint64 {
	if n.socket == nil {
		return 0
	}
	return n.socket.BytesReceived()
}

// Update advances the node's clocks, resends a join request at sendRate
// while connecting, drains incoming datagrams, and expires the connection
// (to ConnectFail while connecting, or to Disconnected once connected) if
// nothing has been heard from the mesh for timeOut seconds.
func (n *Node) Update(dt float64) error {
	if n.state == nodeDisconnected || n.state == nodeConnectFail {
		return nil
	}

	n.sendAccum += dt
	n.timeoutAccum += dt

	// Keep pinging the host at sendRate both while joining and once
	// connected: the same packet doubles as the join request and the
	// keepalive the host's slot expiry is watching for, matching
	// handleJoinRequest's re-heard-peer branch on the host side.
	if (n.state == nodeConnecting || n.state == nodeConnected) && n.sendAccum >= n.sendRate {
		n.sendAccum = 0
		n.sendJoinRequest()
	}

	for {
		pkt, ok, err := n.socket.TryReadPacket()
		if err != nil {
			return fmt.Errorf("mesh: node update: %w", err)
		}
		if !ok {
			break
		}
		payload, framed := bitstream.ReadPacketFrame(n.protocolID, pkt.Data)
		if !framed || len(payload) == 0 {
			continue
		}
		n.handlePacket(payload, pkt.From)
	}

	if n.timeoutAccum > n.timeOut {
		if n.state == nodeConnecting {
			n.state = nodeConnectFail
			logger.Debug("mesh: node connect to %s timed out", n.meshAddr.String())
		} else if n.state == nodeConnected {
			logger.Debug("mesh: node %d lost contact with mesh, disconnecting", n.localNodeID)
			n.state = nodeDisconnected
			n.localNodeID = -1
			n.table = nil
		}
	}

	return nil
}

func (n *Node) sendJoinRequest() {
	framed := bitstream.WritePacketFrame(n.protocolID, []byte{kindJoinRequest})
	if err := n.socket.SendPacket(n.meshAddr, framed); err != nil {
		logger.Warn("mesh: node join request to %s failed: %v", n.meshAddr.String(), err)
	}
}

func (n *Node) handlePacket(payload []byte, from netio.Address) {
	switch payload[0] {
	case kindAddressTable:
		if !from.Equal(n.meshAddr) {
			return // only the mesh host we joined gets to update our table
		}
		n.handleAddressTable(payload[1:])
	case kindNodePacket:
		// routed peer-to-peer traffic; left for ReceivePacket to consume via
		// a small inbox instead of being handled here.
		n.inbox = append(n.inbox, nodePacket{from: from, data: payload[1:]})
	}
}

func (n *Node) handleAddressTable(body []byte) {
	raw, err := decompressTable(body)
	if err != nil {
		logger.Debug("mesh: node: malformed address table from %s: %v", n.meshAddr.String(), err)
		return
	}
	at, ok := decodeAddressTable(raw)
	if !ok {
		return
	}
	n.table = at.byNode
	n.maxNodes = at.maxNodes
	for idx, addr := range at.byNode {
		if addr.Equal(n.ownAddress) {
			if n.state != nodeConnected {
				logger.Info("mesh: node joined as slot %d", idx)
			}
			n.localNodeID = idx
			n.state = nodeConnected
			n.timeoutAccum = 0
			return
		}
	}
}

type nodePacket struct {
	from netio.Address
	data []byte
}

// SendPacket routes payload to nodeId by looking up its address in the
// last address table this node received; if nodeId isn't in the table
// (unknown, or not yet assigned), the packet is silently dropped.
func (n *Node) SendPacket(nodeID int, payload []byte) error {
	addr, ok := n.lookup(nodeID)
	if !ok {
		return nil
	}
	body := make([]byte, 1+len(payload))
	body[0] = kindNodePacket
	copy(body[1:], payload)
	framed := bitstream.WritePacketFrame(n.protocolID, body)
	return n.socket.SendPacket(addr, framed)
}

func (n *Node) lookup(nodeID int) (netio.Address, bool) {
	if n.table == nil {
		return netio.Address{}, false
	}
	addr, ok := n.table[nodeID]
	return addr, ok
}

// ReceivePacket returns the next buffered peer-to-peer packet, identifying
// the sender by its table slot index; ok is false once the inbox is empty.
func (n *Node) ReceivePacket() (nodeID int, payload []byte, ok bool) {
	if len(n.inbox) == 0 {
		return -1, nil, false
	}
	pkt := n.inbox[0]
	n.inbox = n.inbox[1:]
	nodeID = n.slotFor(pkt.from)
	return nodeID, pkt.data, true
}

func (n *Node) slotFor(addr netio.Address) int {
	for idx, a := range n.table {
		if a.Equal(addr) {
			return idx
		}
	}
	return -1
}
