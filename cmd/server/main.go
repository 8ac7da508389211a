package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"grid-arena/internal/api"
	"grid-arena/internal/config"
	"grid-arena/internal/game"
	"grid-arena/internal/render"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("💡 No .env file found, using environment variables only")
	}

	log.Println("🟦 ================================")
	log.Println("🟦  GRID ARENA")
	log.Println("🟦  uniform-grid broad phase demo")
	log.Println("🟦 ================================")

	// Load centralized configuration (SSOT - Single Source of Truth)
	appConfig := config.Load()
	spatialCfg := appConfig.Spatial
	simCfg := appConfig.Sim
	serverCfg := appConfig.Server

	log.Printf("🗺️ World: %.0fx%.0f, cell %.0f (%d x %d buckets)",
		spatialCfg.WorldWidth, spatialCfg.WorldHeight, spatialCfg.CellSize,
		int(spatialCfg.WorldWidth/spatialCfg.CellSize),
		int(spatialCfg.WorldHeight/spatialCfg.CellSize))
	log.Printf("🎮 Sim: %d circles, %d TPS, radius %.0f-%.0f, speed %.0f",
		simCfg.CircleCount, simCfg.TickRate, simCfg.MinRadius, simCfg.MaxRadius, simCfg.MaxSpeed)
	if simCfg.UseRefresh {
		log.Println("🔄 Grid maintenance: bulk Refresh per tick")
	} else {
		log.Println("🔄 Grid maintenance: per-circle Update per tick")
	}

	engine, err := game.NewEngine(game.EngineConfig{
		TickRate:    simCfg.TickRate,
		WorldWidth:  spatialCfg.WorldWidth,
		WorldHeight: spatialCfg.WorldHeight,
		CellSize:    spatialCfg.CellSize,
		CircleCount: simCfg.CircleCount,
		MinRadius:   simCfg.MinRadius,
		MaxRadius:   simCfg.MaxRadius,
		MaxSpeed:    simCfg.MaxSpeed,
		Seed:        simCfg.Seed,
		UseRefresh:  simCfg.UseRefresh,
	})
	if err != nil {
		log.Fatalf("❌ Engine init failed: %v", err)
	}

	// Feed tick metrics without the engine importing the observability layer.
	engine.OnTick = api.RecordTick

	// Start debug server (pprof + Prometheus, localhost only)
	if os.Getenv("DISABLE_DEBUG_SERVER") != "true" {
		if err := api.StartDebugServer(api.DefaultObservabilityConfig()); err != nil {
			log.Printf("⚠️ Debug server disabled: %v", err)
		}
	}

	renderer := render.New(int(spatialCfg.WorldWidth), int(spatialCfg.WorldHeight))

	server := api.NewServer(api.ServerConfig{
		Engine:   engine,
		Renderer: renderer,
	})

	engine.Start()

	go func() {
		if err := server.Start(serverCfg.Port); err != nil {
			log.Fatalf("❌ Failed to start server: %v", err)
		}
	}()

	log.Printf("🌐 State:   http://localhost:%d/api/state", serverCfg.Port)
	log.Printf("🖼️ Frame:   http://localhost:%d/frame.png", serverCfg.Port)
	log.Printf("📡 Live:    ws://localhost:%d/ws", serverCfg.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	server.Stop()
	engine.Stop()
	log.Println("👋 Goodbye!")
}
