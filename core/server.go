package main

import (
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"

	"cubesnet-go/core/events"
	"cubesnet-go/internal/cubes"
	"cubesnet-go/internal/mesh"
	"cubesnet-go/internal/netio"
	"cubesnet-go/pkg/logger"
	"cubesnet-go/pkg/metricsx"
)

// hostNodeSlot is the slot the authoritative server process reserves for
// itself, so that clients addressing node 0 always reach the server: a
// well-known identity the host binds to its own future address.
const hostNodeSlot = 0

// Server is the authoritative process: it runs the mesh host (peer
// identity/directory service), a Node of its own reserved into slot 0 so
// clients can address it directly, and the cube simulation those clients
// are replicated against. Every component is driven from one Update(dt)
// call per tick, following a single-threaded cooperative model.
type Server struct {
	cfg    Config
	events *events.Manager

	mesh *mesh.Mesh
	self *mesh.Node
	game *cubes.Instance

	tickDuration   *metrics.Histogram
	activeObjects  *metrics.Gauge
	connectedNodes *metrics.Gauge
	bytesSent      *metrics.Gauge
	bytesReceived  *metrics.Gauge
}

// NewServer builds a Server from cfg. Call Start to bind sockets.
func NewServer(cfg Config) *Server {
	s := &Server{
		cfg:    cfg,
		events: events.NewManager(),
		mesh:   mesh.NewMesh(cfg.ProtocolID, cfg.MaxNodes, cfg.SendRate, cfg.Timeout),
		self:   mesh.NewNode(cfg.ProtocolID, cfg.SendRate, cfg.Timeout),
		game: cubes.NewInstance(cubes.Config{
			CellSize:   cfg.CellSize,
			CellWidth:  cfg.CellWidth,
			CellHeight: cfg.CellHeight,
		}),
	}

	s.tickDuration = metrics.GetOrCreateHistogram(metricsx.Name("cubesnet_tick_duration_seconds"))
	s.activeObjects = metrics.GetOrCreateGauge(metricsx.Name("cubesnet_active_objects"), func() float64 {
		return float64(s.game.GetActiveObjectCount())
	})
	s.connectedNodes = metrics.GetOrCreateGauge(metricsx.Name("cubesnet_connected_nodes"), func() float64 {
		count := 0.0
		for i := 0; i < s.cfg.MaxNodes; i++ {
			if s.mesh.IsNodeConnected(i) {
				count++
			}
		}
		return count
	})
	s.bytesSent = metrics.GetOrCreateGauge(metricsx.Name("cubesnet_bytes_sent_total"), func() float64 {
		return float64(s.mesh.BytesSent() + s.self.BytesSent())
	})
	s.bytesReceived = metrics.GetOrCreateGauge(metricsx.Name("cubesnet_bytes_received_total"), func() float64 {
		return float64(s.mesh.BytesReceived() + s.self.BytesReceived())
	})

	s.events.On(events.NodeConnected, func(e events.Event) {
		logger.Success("node %d joined the mesh", e.NodeID)
	})
	s.events.On(events.NodeDisconnected, func(e events.Event) {
		logger.Warn("node %d disconnected", e.NodeID)
	})

	return s
}

// Start binds the mesh host and the server's own reserved node.
func (s *Server) Start() error {
	if err := s.mesh.Start(s.cfg.Port); err != nil {
		return fmt.Errorf("start mesh host: %w", err)
	}
	if err := s.self.Start(0); err != nil {
		s.mesh.Stop()
		return fmt.Errorf("start host node: %w", err)
	}
	if err := s.mesh.Reserve(hostNodeSlot, s.self.Address()); err != nil {
		s.Stop()
		return fmt.Errorf("reserve host slot: %w", err)
	}
	s.self.Connect(netio.Address{IP: s.self.Address().IP, Port: s.cfg.Port})

	s.game.InitializeBegin()

	logger.Info("mesh host listening on port %d (max %d nodes)", s.cfg.Port, s.cfg.MaxNodes)
	return nil
}

// AddObject seeds the world with one cube at the given position. Callers
// must add every starting object between Start and Finalize — the game's
// activation system is sized from, and seeded with, the objects Finalize
// sees; an object added later is never inserted into it.
func (s *Server) AddObject(obj cubes.DatabaseObject, x, y float64) cubes.ObjectId {
	return s.game.AddObject(obj, x, y)
}

// Finalize closes the world's two-phase startup once every starting object
// has been added, building the activation system and sizing the
// interaction manager.
func (s *Server) Finalize() {
	s.game.InitializeEnd()
}

// Stop releases both sockets.
func (s *Server) Stop() {
	s.self.Stop()
	s.mesh.Stop()
}

// Update drains network I/O and advances the simulation by one tick, in a
// fixed order: mesh identity bookkeeping first (so newly joined nodes are
// visible to the game this same tick), then the host's own node (it
// observes the mesh exactly like any other peer), then the game
// simulation.
func (s *Server) Update(dt float64) error {
	start := time.Now()
	defer func() { s.tickDuration.Update(time.Since(start).Seconds()) }()

	wasConnected := make([]bool, s.cfg.MaxNodes)
	for i := range wasConnected {
		wasConnected[i] = s.mesh.IsNodeConnected(i)
	}

	if err := s.mesh.Update(dt); err != nil {
		return fmt.Errorf("mesh update: %w", err)
	}
	for i := range wasConnected {
		now := s.mesh.IsNodeConnected(i)
		if now && !wasConnected[i] {
			s.events.Trigger(events.Event{Type: events.NodeConnected, NodeID: i})
		} else if !now && wasConnected[i] {
			s.events.Trigger(events.Event{Type: events.NodeDisconnected, NodeID: i})
		}
	}

	if err := s.self.Update(dt); err != nil {
		return fmt.Errorf("host node update: %w", err)
	}

	s.game.Update(dt)
	s.broadcastState()
	return nil
}
