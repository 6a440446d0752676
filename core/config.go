package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/go-envparse"
)

// Config is every tunable value the engine's component constructors accept,
// flattened into one process-level settings struct.
type Config struct {
	Host string
	Port int

	ProtocolID uint32
	Timeout    float64

	MaxNodes int
	SendRate float64

	CellSize   float64
	CellWidth  int
	CellHeight int
}

// defaultConfig mirrors the values the engine packages' own unit tests
// exercise: the sequence ring itself is a fixed uint32 wraparound
// (internal/reliability.MaxSequence) per the Open Question decision in
// DESIGN.md, so there's no configurable sequence width here.
func defaultConfig() Config {
	return Config{
		Host:       "0.0.0.0",
		Port:       7777,
		ProtocolID: 0x43554245, // "CUBE"
		Timeout:    10.0,
		MaxNodes:   32,
		SendRate:   0.25,
		CellSize:   4.0,
		CellWidth:  64,
		CellHeight: 64,
	}
}

// loadConfig applies env KEY=VALUE pairs from e on top of defaultConfig.
// Unrecognized keys and malformed values are ignored — they're either not
// ours or the default is a safe fallback.
func loadConfig(e []string) Config {
	c := defaultConfig()
	for _, kv := range e {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		switch k {
		case "CUBESNET_HOST":
			c.Host = v
		case "CUBESNET_PORT":
			if n, err := strconv.Atoi(v); err == nil {
				c.Port = n
			}
		case "CUBESNET_PROTOCOL_ID":
			if n, err := strconv.ParseUint(v, 0, 32); err == nil {
				c.ProtocolID = uint32(n)
			}
		case "CUBESNET_TIMEOUT":
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				c.Timeout = f
			}
		case "CUBESNET_MAX_NODES":
			if n, err := strconv.Atoi(v); err == nil {
				c.MaxNodes = n
			}
		case "CUBESNET_SEND_RATE":
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				c.SendRate = f
			}
		case "CUBESNET_CELL_SIZE":
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				c.CellSize = f
			}
		case "CUBESNET_CELL_WIDTH":
			if n, err := strconv.Atoi(v); err == nil {
				c.CellWidth = n
			}
		case "CUBESNET_CELL_HEIGHT":
			if n, err := strconv.Atoi(v); err == nil {
				c.CellHeight = n
			}
		}
	}
	return c
}

// readEnvFile parses a dotenv-style file into KEY=VALUE pairs, the same
// shape os.Environ() returns.
func readEnvFile(name string) ([]string, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := envparse.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse env file: %w", err)
	}
	r := make([]string, 0, len(m))
	for k, v := range m {
		r = append(r, k+"="+v)
	}
	return r, nil
}
