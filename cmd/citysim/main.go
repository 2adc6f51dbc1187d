// Command citysim runs the housing-market city simulation.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"log/slog"

	"github.com/talgya/cityblocks/internal/api"
	"github.com/talgya/cityblocks/internal/config"
	"github.com/talgya/cityblocks/internal/engine"
	"github.com/talgya/cityblocks/internal/persistence"
)

func main() {
	var (
		configPath = flag.String("config", "", "scenario TOML file (empty = built-in demo scenario)")
		dbPath     = flag.String("db", "data/cityblocks.db", "SQLite database path (empty = persistence disabled)")
		port       = flag.Int("port", 8080, "HTTP API port (0 = API disabled)")
		interval   = flag.Duration("interval", 0, "pause between steps (0 = run flat out)")
		hold       = flag.Bool("hold", false, "keep serving the API after the run completes")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// ── Scenario ──────────────────────────────────────────────────────
	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			slog.Error("failed to load scenario", "path", *configPath, "error", err)
			os.Exit(1)
		}
		slog.Info("scenario loaded", "path", *configPath)
	} else {
		slog.Info("using built-in demo scenario")
	}

	// ── Database ──────────────────────────────────────────────────────
	var db *persistence.DB
	var runID string
	if *dbPath != "" {
		os.MkdirAll(filepath.Dir(*dbPath), 0755)
		var err error
		db, err = persistence.Open(*dbPath)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		runID, err = db.BeginRun(cfg.Seed)
		if err != nil {
			slog.Error("failed to register run", "error", err)
			os.Exit(1)
		}
		slog.Info("database opened", "path", *dbPath, "run", runID)
	} else {
		slog.Warn("persistence disabled")
	}

	// ── Simulation ────────────────────────────────────────────────────
	sim, err := engine.New(cfg)
	if err != nil {
		slog.Error("failed to initialize simulation", "error", err)
		os.Exit(1)
	}
	if db != nil {
		if err := db.SaveStepStats(runID, sim.StatsSnapshot()); err != nil {
			slog.Error("initial stats save failed", "error", err)
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if *port > 0 {
		apiServer := &api.Server{Sim: sim, DB: db, RunID: runID, Port: *port}
		apiServer.Start()
	} else {
		slog.Warn("HTTP API disabled")
	}

	var stopped atomic.Bool
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, stopping", "signal", sig)
		stopped.Store(true)
	}()

	st := sim.StatsSnapshot()
	fmt.Printf("\n%d parcels in %d district groups, %d buildings, %d households seeking housing.\n",
		st.Parcels, st.Groups, st.StandingBuildings, st.Unhoused)
	if *port > 0 {
		fmt.Printf("API: http://localhost:%d/api/v1/status\n", *port)
	}
	fmt.Println("Running simulation... (Ctrl+C to stop)")

	// ── Run ───────────────────────────────────────────────────────────
	for sim.StepsRemaining() > 0 && !stopped.Load() {
		sim.Step()
		if db != nil {
			if err := db.SaveStepStats(runID, sim.StatsSnapshot()); err != nil {
				slog.Error("stats save failed", "step", sim.CurrentStep(), "error", err)
			}
		}
		if *interval > 0 {
			time.Sleep(*interval)
		}
	}

	if db != nil {
		slog.Info("final save...")
		if err := db.SaveCityState(runID, sim); err != nil {
			slog.Error("final save failed", "error", err)
		}
	}

	st = sim.StatsSnapshot()
	fmt.Printf("Simulation finished at step %d: %d housed, %d unhoused, price index %.2f.\n",
		st.Step, st.Housed, st.Unhoused, st.PricePerArea)

	if *hold && !stopped.Load() {
		fmt.Println("Holding API open. (Ctrl+C to exit)")
		<-sigCh
	}
}
