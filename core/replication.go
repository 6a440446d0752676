package main

import (
	"cubesnet-go/internal/bitstream"
	"cubesnet-go/internal/cubes"
	"cubesnet-go/internal/netio"
	"cubesnet-go/pkg/logger"
)

// objectHeaderBits is the 32-bit ObjectId that precedes every packed cube.
const objectHeaderBits = 32

// countHeaderBits is the leading u32 cube count every state packet starts
// with.
const countHeaderBits = 32

// perObjectBits is the exact, fixed cost of one replicated cube on the
// wire: its id header plus whatever ActiveObject.Pack always writes.
const perObjectBits = objectHeaderBits + cubes.PackedBits

// maxObjectsPerPacket bounds how many cubes one state packet carries, so a
// single tick's replication traffic never exceeds a single UDP datagram.
const maxObjectsPerPacket = (netio.MaxPacketSize*8 - countHeaderBits) / perObjectBits

// buildStatePacket packs the highest-priority active cubes (in
// ReplicationOrder) into a bit-exact snapshot: a u32 count followed by
// (ObjectId u32, ActiveObject.Pack) per cube. Each cube's fixed bit cost is
// checked against the remaining space before it's written, so the stream
// never aborts partway through a cube and the count written up front
// always matches what actually fits.
func buildStatePacket(game *cubes.Instance) []byte {
	order := game.ReplicationOrder()
	if len(order) > maxObjectsPerPacket {
		order = order[:maxObjectsPerPacket]
	}

	buf := make([]byte, netio.MaxPacketSize)
	s := bitstream.NewWriteStream(buf)

	// The leading count is only known once the pack loop below finds out
	// how many cubes actually fit; reserve its bits now and backfill them
	// through a second stream over the same backing array once packing is
	// done.
	if !s.WriteBits(0, countHeaderBits) {
		return nil
	}

	packed := uint32(0)
	for _, id := range order {
		obj, ok := game.GetActiveObject(id)
		if !ok {
			continue
		}
		if s.BitsRemaining() < perObjectBits {
			break
		}
		if !s.WriteBits(uint32(id), objectHeaderBits) {
			break
		}
		if !obj.Pack(s) {
			break
		}
		packed++
	}

	end := s.BytesProcessed()
	header := bitstream.NewWriteStream(buf[:4])
	if !header.WriteBits(packed, countHeaderBits) {
		return nil
	}
	return buf[:end]
}

// broadcastState sends the current tick's state packet to every connected
// peer except the server's own reserved slot.
func (s *Server) broadcastState() {
	payload := buildStatePacket(s.game)
	if len(payload) == 0 {
		return
	}
	for i := 0; i < s.cfg.MaxNodes; i++ {
		if i == hostNodeSlot || !s.mesh.IsNodeConnected(i) {
			continue
		}
		if err := s.self.SendPacket(i, payload); err != nil {
			logger.Warn("replicate to node %d: %v", i, err)
		}
	}
}
