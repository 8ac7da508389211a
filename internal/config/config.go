// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for all arena and server settings.
//
// IMPORTANT: When changing values, only modify this file.
// All other parts of the codebase should reference these values.
package config

import (
	"os"
	"strconv"
)

// =============================================================================
// SPATIAL GRID CONFIGURATION
// =============================================================================

// SpatialConfig holds the world and grid-cell dimensions. These are fixed for
// the process lifetime; the grid does not support resizing.
type SpatialConfig struct {
	WorldWidth  float64 // World width in pixels
	WorldHeight float64 // World height in pixels
	CellSize    float64 // Grid cell size; ~2x the typical circle diameter
}

// DefaultSpatial returns the default spatial configuration.
func DefaultSpatial() SpatialConfig {
	return SpatialConfig{
		WorldWidth:  1280,
		WorldHeight: 720,
		CellSize:    80, // ~2x largest circle diameter keeps buckets small
	}
}

// SpatialFromEnv returns spatial configuration with environment overrides.
func SpatialFromEnv() SpatialConfig {
	cfg := DefaultSpatial()

	if w := getEnvFloat("WORLD_WIDTH", 0); w > 0 {
		cfg.WorldWidth = w
	}
	if h := getEnvFloat("WORLD_HEIGHT", 0); h > 0 {
		cfg.WorldHeight = h
	}
	if c := getEnvFloat("GRID_CELL_SIZE", 0); c > 0 {
		cfg.CellSize = c
	}

	return cfg
}

// =============================================================================
// SIMULATION CONFIGURATION
// =============================================================================

// SimConfig holds the demo simulation settings.
type SimConfig struct {
	TickRate    int     // Simulation ticks per second
	CircleCount int     // Circles spawned at startup
	MinRadius   float64 // Smallest spawned circle radius
	MaxRadius   float64 // Largest spawned circle radius
	MaxSpeed    float64 // Max per-axis speed in pixels/second
	Seed        int64   // RNG seed; 0 = derive from wall clock
	UseRefresh  bool    // Maintain the grid via bulk Refresh instead of per-item Update
}

// DefaultSim returns the default simulation configuration.
func DefaultSim() SimConfig {
	return SimConfig{
		TickRate:    30,
		CircleCount: 150,
		MinRadius:   8,
		MaxRadius:   24,
		MaxSpeed:    150,
	}
}

// SimFromEnv returns simulation configuration with environment overrides.
func SimFromEnv() SimConfig {
	cfg := DefaultSim()

	if t := getEnvInt("TICK_RATE", 0); t > 0 {
		cfg.TickRate = t
	}
	if n := getEnvInt("CIRCLE_COUNT", 0); n > 0 {
		cfg.CircleCount = n
	}
	if r := getEnvFloat("MIN_RADIUS", 0); r > 0 {
		cfg.MinRadius = r
	}
	if r := getEnvFloat("MAX_RADIUS", 0); r > 0 {
		cfg.MaxRadius = r
	}
	if s := getEnvFloat("MAX_SPEED", 0); s > 0 {
		cfg.MaxSpeed = s
	}
	if s := getEnvInt("SIM_SEED", 0); s != 0 {
		cfg.Seed = int64(s)
	}
	if os.Getenv("USE_REFRESH") == "true" {
		cfg.UseRefresh = true
	}

	return cfg
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port: 3000,
	}
}

// ServerFromEnv returns server configuration with environment overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Spatial SpatialConfig
	Sim     SimConfig
	Server  ServerConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Spatial: SpatialFromEnv(),
		Sim:     SimFromEnv(),
		Server:  ServerFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
