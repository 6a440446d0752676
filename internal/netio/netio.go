// Package netio wraps the raw UDP socket this module sends and receives
// datagrams on. It stays intentionally thin — address parsing, a blocking
// read plus a polling read, and the one socket option the connection
// layer above it cares about (address reuse across quick restarts).
package netio

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// Address is a parsed IPv4/IPv6 endpoint, kept separate from net.UDPAddr so
// higher layers (connection, mesh) don't need to import net directly.
type Address struct {
	IP   net.IP
	Port int
}

func (a Address) String() string {
	return fmt.Sprintf("%s:%d", a.IP.String(), a.Port)
}

// Equal reports whether two addresses refer to the same endpoint.
func (a Address) Equal(other Address) bool {
	return a.IP.Equal(other.IP) && a.Port == other.Port
}

func (a Address) udpAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: a.IP, Port: a.Port}
}

// ParseAddress parses "host:port" into an Address.
func ParseAddress(s string) (Address, error) {
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return Address{}, err
	}
	udpAddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, port))
	if err != nil {
		return Address{}, err
	}
	return Address{IP: udpAddr.IP, Port: udpAddr.Port}, nil
}

func fromUDPAddr(a *net.UDPAddr) Address {
	return Address{IP: a.IP, Port: a.Port}
}

// Packet is one datagram read off the socket.
type Packet struct {
	Data []byte
	From Address
}

// Socket is a UDP endpoint: ReadPacket blocks until a datagram arrives,
// while TryReadPacket polls without waiting. A zero value is not usable;
// build one with Listen.
type Socket struct {
	conn   *net.UDPConn
	closed bool

	bytesSent     uint64
	bytesReceived uint64
}

// Listen opens a UDP socket bound to port (0 picks an ephemeral port) with
// SO_REUSEADDR set, so a server that crashed and restarted doesn't have to
// wait out TIME_WAIT before rebinding — the same option wireguard-go sets
// on its bind socket.
func Listen(port int) (*Socket, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, fmt.Errorf("netio: listen on port %d: %w", port, err)
	}
	if err := setReuseAddr(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("netio: set reuseaddr: %w", err)
	}
	return &Socket{conn: conn}, nil
}

func setReuseAddr(conn *net.UDPConn) error {
	sc, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	err = sc.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// LocalPort returns the port the socket is actually bound to.
func (s *Socket) LocalPort() int {
	return s.conn.LocalAddr().(*net.UDPAddr).Port
}

// MaxPacketSize is the largest datagram this module ever sends; it bounds
// the read buffer passed to ReadPacket.
const MaxPacketSize = 4096

// ReadPacket blocks until a datagram arrives, or the socket is closed, in
// which case it returns an error (detected via IsClosed).
func (s *Socket) ReadPacket() (Packet, error) {
	buf := make([]byte, MaxPacketSize)
	n, from, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		return Packet{}, err
	}
	atomic.AddUint64(&s.bytesReceived, uint64(n))
	return Packet{Data: buf[:n], From: fromUDPAddr(from)}, nil
}

// TryReadPacket attempts to read one datagram without blocking: it returns
// ok=false (and a nil error) if nothing was waiting, instead of blocking
// until one arrives. This is what the cooperative Update/SendPacket/
// ReceivePacket tick loop polls every frame.
func (s *Socket) TryReadPacket() (pkt Packet, ok bool, err error) {
	if err := s.conn.SetReadDeadline(time.Now()); err != nil {
		return Packet{}, false, err
	}
	buf := make([]byte, MaxPacketSize)
	n, from, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		if ne, isNetErr := err.(net.Error); isNetErr && ne.Timeout() {
			return Packet{}, false, nil
		}
		return Packet{}, false, err
	}
	atomic.AddUint64(&s.bytesReceived, uint64(n))
	return Packet{Data: buf[:n], From: fromUDPAddr(from)}, true, nil
}

// SendPacket writes data to the given address. Short writes are impossible
// for UDP sendto, so a nil error means the whole datagram went out.
func (s *Socket) SendPacket(to Address, data []byte) error {
	n, err := s.conn.WriteToUDP(data, to.udpAddr())
	atomic.AddUint64(&s.bytesSent, uint64(n))
	return err
}

// BytesSent returns the cumulative number of payload bytes this socket has
// written, for metrics export.
func (s *Socket) BytesSent() uint64 { return atomic.LoadUint64(&s.bytesSent) }

// BytesReceived returns the cumulative number of payload bytes this socket
// has read, for metrics export.
func (s *Socket) BytesReceived() uint64 { return atomic.LoadUint64(&s.bytesReceived) }

// IsClosed reports whether err is the expected error from a ReadPacket call
// racing a concurrent Close.
func IsClosed(err error) bool {
	ne, ok := err.(*net.OpError)
	return ok && ne.Err.Error() == "use of closed network connection"
}

// Close shuts down the socket; any blocked ReadPacket returns an error.
func (s *Socket) Close() error {
	s.closed = true
	return s.conn.Close()
}
