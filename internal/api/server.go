// Package api provides the read-only HTTP API for observing a simulation
// run. All endpoints are GET; the API never mutates simulation state.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talgya/cityblocks/internal/engine"
	"github.com/talgya/cityblocks/internal/persistence"
)

// Server serves the city state over HTTP.
type Server struct {
	Sim   *engine.Simulation
	DB    *persistence.DB // nil when persistence is disabled
	RunID string
	Port  int
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	historyLimiter := NewRateLimiter(120, time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/stats", s.handleStats)
	mux.HandleFunc("/api/v1/stats/history", RateLimitMiddleware(historyLimiter, s.handleStatsHistory))
	mux.HandleFunc("/api/v1/groups", s.handleGroups)
	mux.HandleFunc("/api/v1/parcels", s.handleParcels)
	mux.HandleFunc("/api/v1/buildings", s.handleBuildings)
	mux.HandleFunc("/api/v1/units", s.handleUnits)
	mux.HandleFunc("/api/v1/households", s.handleHouseholds)
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr)

	go func() {
		if err := http.ListenAndServe(addr, corsMiddleware(mux)); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins. Set
// CORS_ORIGINS to a comma-separated list; localhost dev servers are always
// allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	// One snapshot for the whole payload, so mid-run responses never mix
	// fields from two steps.
	st := s.Sim.StatsSnapshot()
	writeJSON(w, map[string]any{
		"name":            "cityblocks",
		"run":             s.RunID,
		"step":            st.Step,
		"steps_remaining": st.StepsRemaining,
		"households":      st.Households,
		"housed":          st.Housed,
		"unhoused":        st.Unhoused,
		"buildings":       st.StandingBuildings,
		"units":           st.Units,
		"vacant_units":    st.VacantUnits,
		"price_per_area":  st.PricePerArea,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.StatsSnapshot())
}

func (s *Server) handleStatsHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	rows, err := s.DB.StatsHistory(s.RunID)
	if err != nil {
		slog.Error("stats history query failed", "error", err)
		// Empty array instead of an error; the table may have no data yet.
		writeJSON(w, []engine.SimStats{})
		return
	}
	if rows == nil {
		rows = []engine.SimStats{}
	}

	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v < len(rows) {
			rows = rows[len(rows)-v:]
		}
	}
	writeJSON(w, rows)
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.GroupSnapshots())
}

func (s *Server) handleParcels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.ParcelSnapshots())
}

func (s *Server) handleBuildings(w http.ResponseWriter, r *http.Request) {
	buildings := s.Sim.BuildingSnapshots()
	if r.URL.Query().Get("standing") == "true" {
		standing := buildings[:0]
		for _, b := range buildings {
			if b.Demolished == nil {
				standing = append(standing, b)
			}
		}
		buildings = standing
	}
	writeJSON(w, buildings)
}

func (s *Server) handleUnits(w http.ResponseWriter, r *http.Request) {
	units := s.Sim.UnitSnapshots()
	if r.URL.Query().Get("vacant") == "true" {
		vacant := units[:0]
		for _, u := range units {
			if u.Occupant == 0 {
				vacant = append(vacant, u)
			}
		}
		units = vacant
	}
	writeJSON(w, units)
}

func (s *Server) handleHouseholds(w http.ResponseWriter, r *http.Request) {
	households := s.Sim.HouseholdSnapshots()
	if r.URL.Query().Get("unhoused") == "true" {
		unhoused := households[:0]
		for _, h := range households {
			if h.Housed == 0 {
				unhoused = append(unhoused, h)
			}
		}
		households = unhoused
	}
	writeJSON(w, households)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
