// Package engine ties the housing-market systems together and runs them
// each step: zoning, construction, matching, eviction, demolition, and
// price feedback, in a fixed order over shared entity registries.
package engine

import (
	"log/slog"
	"sync"

	"github.com/talgya/cityblocks/internal/config"
	"github.com/talgya/cityblocks/internal/entropy"
	"github.com/talgya/cityblocks/internal/history"
	"github.com/talgya/cityblocks/internal/housing"
	"github.com/talgya/cityblocks/internal/land"
	"github.com/talgya/cityblocks/internal/regulator"
)

// Simulation holds the complete city state and wires systems together.
// One step = one unit of calendar time; inflation and arrival parameters
// are calibrated to that unit.
type Simulation struct {
	mu sync.RWMutex

	cfg config.Scenario
	rng *entropy.Source

	LastStep int // most recent step processed

	// Land registries, fixed after partitioning.
	Groups     []*land.DistrictGroup
	Parcels    []*land.Parcel
	GroupIndex map[land.GroupID]*land.DistrictGroup

	// Built-environment and population registries. Buildings and
	// households are appended, never removed; a demolished building keeps
	// its slot so its history stays queryable.
	Buildings      []*housing.Building
	BuildingIndex  map[housing.BuildingID]*housing.Building
	Units          []*housing.LivingUnit
	UnitIndex      map[housing.UnitID]*housing.LivingUnit
	Households     []*housing.Household
	HouseholdIndex map[housing.HouseholdID]*housing.Household

	Regulator *regulator.Regulator
	Builder   *Builder

	// Global price and arrival-income series, one sample per step.
	PricePerArea history.Series[float64]
	BudgetMean   history.Series[float64]
	BudgetStddev history.Series[float64]

	schedule  map[int]map[int]int // group index → step → zoning level
	zoningMax int

	pendingArrivals []int // one entry per remaining step

	nextBuilding  uint64
	nextUnit      uint64
	nextHousehold uint64

	// Statistics for the most recent step.
	Stats SimStats
}

// SimStats tracks aggregate city statistics for one step.
type SimStats struct {
	Step              int     `json:"step"`
	StepsRemaining    int     `json:"steps_remaining"`
	Parcels           int     `json:"parcels"`
	Groups            int     `json:"groups"`
	Buildings         int     `json:"buildings"`
	StandingBuildings int     `json:"standing_buildings"`
	Units             int     `json:"units"`
	OccupiedUnits     int     `json:"occupied_units"`
	VacantUnits       int     `json:"vacant_units"`
	Households        int     `json:"households"`
	Housed            int     `json:"housed"`
	Unhoused          int     `json:"unhoused"`
	Owners            int     `json:"owners"`
	Constructed       int     `json:"constructed"`
	Demolished        int     `json:"demolished"`
	MovedIn           int     `json:"moved_in"`
	MovedOut          int     `json:"moved_out"`
	PricePerArea      float64 `json:"price_per_area"`
	UnmetFraction     float64 `json:"unmet_fraction"`
	Ceiling           float64 `json:"ceiling"`
}

// Builder is the construction/demolition agent. It keeps an append-only
// per-step record of what it built and knocked down, used for reporting,
// never for control.
type Builder struct {
	Built      history.Series[[]housing.BuildingID]
	Demolished history.Series[[]housing.BuildingID]
}

// NewBuilder creates a builder whose records start at step 0.
func NewBuilder() *Builder {
	return &Builder{
		Built:      history.New(0, []housing.BuildingID{}),
		Demolished: history.New(0, []housing.BuildingID{}),
	}
}

// Advance opens empty record slots for the given step. Unlike entity
// attributes, ledger slots start empty instead of mirroring forward.
func (b *Builder) Advance(step int) {
	for b.Built.LastStep() < step {
		b.Built.Append([]housing.BuildingID{})
		b.Demolished.Append([]housing.BuildingID{})
	}
}

func (b *Builder) recordBuilt(id housing.BuildingID) {
	b.Built.Set(append(b.Built.Current(), id))
}

func (b *Builder) recordDemolished(id housing.BuildingID) {
	b.Demolished.Set(append(b.Demolished.Current(), id))
}

// New creates a simulation from a validated scenario and runs the
// initialization sequence: partition land, zone it, run the initial
// construction rounds, admit the first household batch, and match it.
// Step 0 is the first step at which an existing city is modeled, not the
// step at which a city appears from nothing.
func New(cfg config.Scenario) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rng := entropy.NewSource(cfg.Seed)
	reg, err := regulator.New(cfg.ConstructP, cfg.DemolishP, rng)
	if err != nil {
		return nil, err
	}

	parcels, groups, err := land.Partition(cfg.Land, cfg.ParcelCapacity, cfg.Groups)
	if err != nil {
		return nil, err
	}

	s := &Simulation{
		cfg:            cfg,
		rng:            rng,
		Groups:         groups,
		Parcels:        parcels,
		GroupIndex:     make(map[land.GroupID]*land.DistrictGroup, len(groups)),
		BuildingIndex:  make(map[housing.BuildingID]*housing.Building),
		UnitIndex:      make(map[housing.UnitID]*housing.LivingUnit),
		HouseholdIndex: make(map[housing.HouseholdID]*housing.Household),
		Regulator:      reg,
		Builder:        NewBuilder(),
		PricePerArea:   history.New(0, cfg.PricePerArea),
		BudgetMean:     history.New(0, cfg.BudgetMean),
		BudgetStddev:   history.New(0, cfg.BudgetStddev),
		schedule:       cfg.Schedule(),
		zoningMax:      cfg.MaxZoning(),
	}
	for _, g := range groups {
		s.GroupIndex[g.ID] = g
	}

	// Initial zoning: every group has a step-0 rule (validated above), and
	// every parcel copies its group's level immediately.
	for i, g := range s.Groups {
		s.Regulator.Rezone(g, 0, s.schedule[i][0])
	}
	for _, p := range s.Parcels {
		p.Advance(0, s.GroupIndex[p.Group].Zoning.Current())
	}

	// Initial development: an existing city already has buildings.
	for round := 0; round < cfg.InitialRounds; round++ {
		s.roundOfConstruction()
	}
	slog.Info("initial development complete",
		"rounds", cfg.InitialRounds,
		"buildings", len(s.Buildings),
		"units", len(s.Units),
	)

	// First household batch moves to town and looks for housing. The
	// unmet-demand signal is discarded at step 0; price feedback starts
	// with the first full step.
	s.spawnHouseholds(cfg.Arrivals[0])
	matched, _, _ := s.roundOfMatching()
	s.pendingArrivals = cfg.Arrivals[1:]

	s.updateStats(0, 0, matched, 0)
	s.report()
	return s, nil
}

// CurrentStep returns the most recently processed step number.
func (s *Simulation) CurrentStep() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastStep
}

// StepsRemaining returns how many scheduled steps have not yet run.
func (s *Simulation) StepsRemaining() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pendingArrivals)
}

// Step runs the next scheduled step and reports whether one remained.
// The schedule pop happens under the mutex so concurrent observers never
// see a torn arrivals list.
func (s *Simulation) Step() bool {
	s.mu.Lock()
	if len(s.pendingArrivals) == 0 {
		s.mu.Unlock()
		return false
	}
	arrivals := s.pendingArrivals[0]
	s.pendingArrivals = s.pendingArrivals[1:]
	s.mu.Unlock()

	s.Advance(arrivals)
	return true
}

// Run executes every remaining scheduled step. onStep, if non-nil, is
// called with the step's statistics after each step completes.
func (s *Simulation) Run(onStep func(SimStats)) {
	for s.Step() {
		if onStep != nil {
			onStep(s.StatsSnapshot())
		}
	}
}

// StatsSnapshot returns the most recent step's statistics.
func (s *Simulation) StatsSnapshot() SimStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Stats
}

func (s *Simulation) updateStats(unmet, ceiling float64, movedIn, movedOut int) {
	st := SimStats{
		Step:           s.LastStep,
		StepsRemaining: len(s.pendingArrivals),
		Parcels:        len(s.Parcels),
		Groups:         len(s.Groups),
		Buildings:      len(s.Buildings),
		Units:          len(s.Units),
		Households:     len(s.Households),
		PricePerArea:   s.PricePerArea.Current(),
		UnmetFraction:  unmet,
		Ceiling:        ceiling,
	}
	for _, b := range s.Buildings {
		if b.Standing() {
			st.StandingBuildings++
		}
	}
	for _, u := range s.Units {
		if u.Vacant() {
			st.VacantUnits++
		} else {
			st.OccupiedUnits++
		}
	}
	for _, h := range s.Households {
		if h.Unhoused() {
			st.Unhoused++
		} else {
			st.Housed++
		}
		if h.Owns.Current() {
			st.Owners++
		}
	}
	st.Constructed = len(s.Builder.Built.Current())
	st.Demolished = len(s.Builder.Demolished.Current())
	st.MovedIn = movedIn
	st.MovedOut = movedOut
	s.Stats = st
}

// report logs the step summary, the per-step analogue of a city yearbook.
func (s *Simulation) report() {
	st := s.Stats
	slog.Info("step report",
		"step", st.Step,
		"households", st.Households,
		"housed", st.Housed,
		"unhoused", st.Unhoused,
		"owners", st.Owners,
		"buildings_standing", st.StandingBuildings,
		"units", st.Units,
		"vacant", st.VacantUnits,
		"constructed", st.Constructed,
		"demolished", st.Demolished,
		"price_per_area", st.PricePerArea,
		"unmet_fraction", st.UnmetFraction,
	)
}
