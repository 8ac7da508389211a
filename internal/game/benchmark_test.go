package game

import "testing"

// =============================================================================
// BENCHMARK SUITE: ARENA TICK
// Run with: go test -bench=. -benchmem ./internal/game/...
// =============================================================================

func BenchmarkEngineTick_100Circles(b *testing.B)  { benchmarkEngineTick(b, 100, false) }
func BenchmarkEngineTick_500Circles(b *testing.B)  { benchmarkEngineTick(b, 500, false) }
func BenchmarkEngineTick_1000Circles(b *testing.B) { benchmarkEngineTick(b, 1000, false) }

func BenchmarkEngineTickRefresh_500Circles(b *testing.B) { benchmarkEngineTick(b, 500, true) }

func benchmarkEngineTick(b *testing.B, circles int, useRefresh bool) {
	e, err := NewEngine(EngineConfig{
		TickRate:    30,
		WorldWidth:  1280,
		WorldHeight: 720,
		CellSize:    80,
		CircleCount: circles,
		MinRadius:   8,
		MaxRadius:   24,
		MaxSpeed:    150,
		Seed:        42,
		UseRefresh:  useRefresh,
	})
	if err != nil {
		b.Fatalf("NewEngine failed: %v", err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		e.tick()
	}
}

func BenchmarkSnapshot_500Circles(b *testing.B) {
	e, err := NewEngine(EngineConfig{
		TickRate:    30,
		WorldWidth:  1280,
		WorldHeight: 720,
		CellSize:    80,
		CircleCount: 500,
		MinRadius:   8,
		MaxRadius:   24,
		MaxSpeed:    150,
		Seed:        42,
	})
	if err != nil {
		b.Fatalf("NewEngine failed: %v", err)
	}
	e.tick()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		e.Snapshot()
	}
}
