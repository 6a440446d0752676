package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"cubesnet-go/internal/cubes"
	"cubesnet-go/pkg/logger"
)

const (
	VERSION = "1.0.0"

	// tickRate runs the simulation loop at a typical 1/60 s fixed step.
	tickRate = 1.0 / 60.0

	// seedObjectCount is the number of cubes the world starts with, scattered
	// across the activation grid so a fresh server has something to
	// replicate immediately instead of an empty world.
	seedObjectCount = 64
)

func main() {
	envFile := pflag.StringP("env-file", "e", "", "optional dotenv-style file of CUBESNET_* settings")
	help := pflag.BoolP("help", "h", false, "show usage")
	pflag.Parse()
	if *help {
		fmt.Fprintln(os.Stderr, "cubesnet: a networked cube-replication server")
		pflag.PrintDefaults()
		os.Exit(0)
	}

	env := os.Environ()
	if *envFile != "" {
		fileEnv, err := readEnvFile(*envFile)
		if err != nil {
			logger.Fatal("read env file %s: %v", *envFile, err)
		}
		env = append(env, fileEnv...)
	}
	cfg := loadConfig(env)

	logger.Banner("cubesnet", VERSION)
	logger.Info("listening on %s:%d (max nodes %d)", cfg.Host, cfg.Port, cfg.MaxNodes)
	logger.Info("activation grid: %dx%d cells of size %.1f", cfg.CellWidth, cfg.CellHeight, cfg.CellSize)

	srv := NewServer(cfg)
	if err := srv.Start(); err != nil {
		logger.Fatal("start server: %v", err)
	}
	seedWorld(srv, cfg)
	srv.Finalize()
	logger.Success("world seeded with %d objects", seedObjectCount)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(time.Duration(tickRate * float64(time.Second)))
	defer ticker.Stop()

	logger.Success("server running")
	for {
		select {
		case <-ctx.Done():
			logger.Warn("shutting down")
			srv.Stop()
			logger.Success("server stopped")
			return
		case <-ticker.C:
			if err := srv.Update(tickRate); err != nil {
				logger.Error("tick update: %v", err)
			}
		}
	}
}

// seedWorld scatters seedObjectCount cubes uniformly across the activation
// grid's extent, giving every fresh server a non-empty world to replicate.
func seedWorld(srv *Server, cfg Config) {
	extentX := float64(cfg.CellWidth) * cfg.CellSize
	extentY := float64(cfg.CellHeight) * cfg.CellSize
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < seedObjectCount; i++ {
		x := rng.Float64()*extentX - extentX/2
		y := rng.Float64()*extentY - extentY/2
		srv.AddObject(cubes.DatabaseObject{
			Position:    cubes.Vector3{X: x, Y: y, Z: 0},
			Orientation: cubes.Quaternion{W: 1},
			Scale:       1,
			Enabled:     true,
		}, x, y)
	}
}
