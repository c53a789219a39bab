// Package config holds the server tuning parameters and the
// process-wide restoration settings.
package config

import (
	"runtime"
	"time"
)

// ServerConfig holds tuned parameters for the restoration server.
type ServerConfig struct {
	Addr        string
	DBPath      string
	PostgresDSN string // Selects the PostgreSQL backend when set
	GameID      string

	// Clock
	TicksPerSecond int
	Speed          int // Ticks advanced per clock wake

	// Persistence
	SnapshotInterval time.Duration

	// Status publishing
	StatusPublishEvery int64 // Ticks between status cache refreshes
	StatusCacheSize    int

	// WebSocket
	BroadcastChannelBuffer int
	ClientSendBuffer       int
	ClientCommandInterval  time.Duration // Minimum gap between commands from one client

	// Connection pools
	DBMaxOpenConns int
}

// DefaultConfig returns sensible defaults for production.
func DefaultConfig() *ServerConfig {
	numCPU := runtime.NumCPU()

	return &ServerConfig{
		Addr:   ":8080",
		DBPath: "cryo.db",
		GameID: "GAME_1",

		TicksPerSecond: 60, // Normal game speed
		Speed:          1,

		SnapshotInterval: 5 * time.Second,

		StatusPublishEvery: 60,
		StatusCacheSize:    256,

		BroadcastChannelBuffer: 256,
		ClientSendBuffer:       64,
		ClientCommandInterval:  250 * time.Millisecond,

		DBMaxOpenConns: numCPU * 4,
	}
}

// LowResourceConfig returns minimal settings for development.
func LowResourceConfig() *ServerConfig {
	cfg := DefaultConfig()
	cfg.TicksPerSecond = 20
	cfg.StatusPublishEvery = 20
	cfg.StatusCacheSize = 32
	cfg.BroadcastChannelBuffer = 16
	cfg.ClientSendBuffer = 8
	cfg.DBMaxOpenConns = 2
	return cfg
}

// TickInterval is the real-time gap between clock wakes.
func (c *ServerConfig) TickInterval() time.Duration {
	tps := c.TicksPerSecond
	if tps <= 0 {
		tps = 60
	}
	return time.Second / time.Duration(tps)
}
