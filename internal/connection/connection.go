// Package connection implements the unreliable, protocol-tagged UDP
// connection state machine: a single peer-to-peer session with handshake,
// heartbeat, and timeout, but no retransmission or ordering guarantees of
// its own (ack tracking lives one layer up, in package reliability, which
// does not retransmit either).
package connection

import (
	"cubesnet-go/internal/netio"
	"fmt"
)

// State is one node in the connection's lifecycle.
type State int

const (
	Disconnected State = iota
	Listening
	Connecting
	Connected
	ConnectFail
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Listening:
		return "listening"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case ConnectFail:
		return "connect_fail"
	default:
		return "unknown"
	}
}

// Connection is a single-threaded, cooperatively-updated UDP endpoint. Every
// method is expected to be called from one goroutine; Update(dt) advances
// timers, SendPacket/ReceivePacket touch only local buffers and the socket.
type Connection struct {
	protocolID uint32
	timeout    float64 // seconds with no received packet before disconnect

	socket *netio.Socket
	state  State

	remote    netio.Address
	haveRemote bool

	timeoutAccum float64 // seconds since last received packet
	isInitiator  bool    // true if this side called Connect, not Listen
}

// New constructs a Connection bound to protocolID, using timeoutSeconds as
// the no-traffic window before a Connected session is dropped.
func New(protocolID uint32, timeoutSeconds float64) *Connection {
	return &Connection{protocolID: protocolID, timeout: timeoutSeconds, state: Disconnected}
}

// State returns the current lifecycle state.
func (c *Connection) State() State { return c.state }

// IsConnected reports whether the connection currently has an established
// peer. This is the only surface that reports a post-connect timeout: it
// simply flips false, there is no separate error channel.
func (c *Connection) IsConnected() bool { return c.state == Connected }

// IsConnecting reports whether a Connect() attempt is still in flight.
func (c *Connection) IsConnecting() bool { return c.state == Connecting }

// ConnectFailed reports whether the last connection attempt failed.
func (c *Connection) ConnectFailed() bool { return c.state == ConnectFail }

// RemoteAddress returns the address of the connected (or connecting) peer.
func (c *Connection) RemoteAddress() (netio.Address, bool) {
	return c.remote, c.haveRemote
}

// LocalPort returns the port of the bound socket, valid once Listen or
// Connect has succeeded.
func (c *Connection) LocalPort() int {
	return c.socket.LocalPort()
}

// Listen binds a socket and moves to Listening, ready to accept the first
// peer that sends a valid-protocol packet.
func (c *Connection) Listen(port int) error {
	sock, err := netio.Listen(port)
	if err != nil {
		return fmt.Errorf("connection: listen: %w", err)
	}
	c.socket = sock
	c.state = Listening
	c.haveRemote = false
	c.timeoutAccum = 0
	c.isInitiator = false
	return nil
}

// Connect binds an ephemeral local socket and begins connecting to addr.
func (c *Connection) Connect(addr netio.Address) error {
	sock, err := netio.Listen(0)
	if err != nil {
		return fmt.Errorf("connection: connect: %w", err)
	}
	c.socket = sock
	c.state = Connecting
	c.remote = addr
	c.haveRemote = true
	c.timeoutAccum = 0
	c.isInitiator = true
	return nil
}

// Stop tears the connection down, releasing its socket and returning to
// Disconnected.
func (c *Connection) Stop() {
	if c.socket != nil {
		c.socket.Close()
		c.socket = nil
	}
	c.state = Disconnected
	c.haveRemote = false
	c.timeoutAccum = 0
}

// Update advances the timeout clock by dt seconds. It must be called
// regularly regardless of traffic, since it is the only place a timeout is
// detected.
func (c *Connection) Update(dt float64) {
	switch c.state {
	case Connecting, Connected:
		c.timeoutAccum += dt
		if c.timeoutAccum >= c.timeout {
			if c.state == Connecting {
				c.state = ConnectFail
			} else if c.isInitiator {
				c.state = ConnectFail
			} else {
				c.state = Disconnected
			}
			c.haveRemote = false
		}
	}
}

// SendPacket frames payload with the 4-byte protocol id and writes it to the
// connected peer. It is a no-op error if there is no established peer yet.
func (c *Connection) SendPacket(payload []byte) error {
	if !c.haveRemote {
		return fmt.Errorf("connection: no remote peer")
	}
	framed := frameProtocol(c.protocolID, payload)
	return c.socket.SendPacket(c.remote, framed)
}

// ReceivePacket polls the socket once for a datagram. It returns ok=false
// (with a nil error) for any packet that is silently dropped per the busy
// or wrong-protocol rules, so callers should loop calling it until it
// returns no packet for this tick (this module performs no internal
// buffering across calls).
func (c *Connection) ReceivePacket() (payload []byte, ok bool, err error) {
	if c.socket == nil {
		return nil, false, nil
	}
	pkt, got, err := c.socket.TryReadPacket()
	if err != nil {
		if netio.IsClosed(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if !got {
		return nil, false, nil
	}

	payload, framed := stripProtocol(c.protocolID, pkt.Data)
	if !framed {
		return nil, false, nil
	}

	switch c.state {
	case Listening:
		c.remote = pkt.From
		c.haveRemote = true
		c.state = Connected
		c.timeoutAccum = 0
	case Connecting:
		if !pkt.From.Equal(c.remote) {
			return nil, false, nil
		}
		c.state = Connected
		c.timeoutAccum = 0
	case Connected:
		if !pkt.From.Equal(c.remote) {
			// Busy semantics: a different source is dropped, not accepted.
			return nil, false, nil
		}
		c.timeoutAccum = 0
	default:
		return nil, false, nil
	}

	return payload, true, nil
}

func frameProtocol(protocolID uint32, payload []byte) []byte {
	framed := make([]byte, 4+len(payload))
	framed[0] = byte(protocolID >> 24)
	framed[1] = byte(protocolID >> 16)
	framed[2] = byte(protocolID >> 8)
	framed[3] = byte(protocolID)
	copy(framed[4:], payload)
	return framed
}

func stripProtocol(protocolID uint32, packet []byte) ([]byte, bool) {
	if len(packet) < 4 {
		return nil, false
	}
	id := uint32(packet[0])<<24 | uint32(packet[1])<<16 | uint32(packet[2])<<8 | uint32(packet[3])
	if id != protocolID {
		return nil, false
	}
	return packet[4:], true
}
