package engine

import (
	"math"
	"sync"
	"testing"

	"github.com/talgya/cityblocks/internal/config"
	"github.com/talgya/cityblocks/internal/housing"
)

// testScenario is a one-parcel city with every stochastic phase switched
// off, so tests can inject exactly the state they need.
func testScenario() config.Scenario {
	return config.Scenario{
		Seed:           1,
		Land:           51000,
		ParcelCapacity: 51000,
		Groups:         1,
		MinArea:        425,
		PricePerArea:   10,
		Inflation:      0.02,
		ConstructP:     0,
		DemolishP:      0,
		Arrivals:       []int{0},
		BudgetMean:     18000,
		BudgetStddev:   0,
		OwnP:           0,
		InitialRounds:  0,
		Rezone:         []config.RezoneRule{{Group: 0, Step: 0, Level: 1}},
	}
}

func newTestSim(t *testing.T, cfg config.Scenario) *Simulation {
	t.Helper()
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

// addTestBuilding injects a standing single-unit building priced at value
// into the first parcel and returns its unit.
func addTestBuilding(s *Simulation, value float64) *housing.LivingUnit {
	p := s.Parcels[0]
	s.nextBuilding++
	b := &housing.Building{
		ID:            housing.BuildingID(s.nextBuilding),
		Parcel:        p.ID,
		Footprint:     value / s.PricePerArea.Current(),
		VintageZoning: p.Zoning.Current(),
		Floors:        1,
		Built:         s.LastStep,
	}
	s.Buildings = append(s.Buildings, b)
	s.BuildingIndex[b.ID] = b
	p.Attach(uint64(b.ID))

	s.nextUnit++
	u := housing.NewLivingUnit(housing.UnitID(s.nextUnit), b.ID, s.LastStep, b.Footprint, s.PricePerArea.Current())
	s.Units = append(s.Units, u)
	s.UnitIndex[u.ID] = u
	b.Units = append(b.Units, u.ID)
	return u
}

func addTestHousehold(s *Simulation, budget float64) *housing.Household {
	s.nextHousehold++
	h := housing.NewHousehold(housing.HouseholdID(s.nextHousehold), s.LastStep, budget)
	s.Households = append(s.Households, h)
	s.HouseholdIndex[h.ID] = h
	return h
}

func TestInitialConstructionTwoParcels(t *testing.T) {
	cfg := testScenario()
	cfg.Land = 2 * cfg.ParcelCapacity
	cfg.ConstructP = 1
	cfg.InitialRounds = 1
	s := newTestSim(t, cfg)

	if len(s.Parcels) != 2 {
		t.Fatalf("parcels = %d, want 2", len(s.Parcels))
	}
	if len(s.Groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(s.Groups))
	}
	if len(s.Buildings) != 2 {
		t.Fatalf("buildings = %d, want 2", len(s.Buildings))
	}
	for _, p := range s.Parcels {
		if got := len(p.Standing.Current()); got != 1 {
			t.Errorf("parcel %d holds %d buildings, want 1", p.ID, got)
		}
	}
	for _, b := range s.Buildings {
		if b.Floors != 1 {
			t.Errorf("building %d has %d floors, want 1 at zoning 1", b.ID, b.Floors)
		}
		if len(b.Units) != 1 {
			t.Errorf("building %d has %d units, want 1 at zoning 1", b.ID, len(b.Units))
		}
		if b.Footprint < cfg.MinArea || b.Footprint > cfg.ParcelCapacity {
			t.Errorf("building %d footprint %v outside [%v, %v]", b.ID, b.Footprint, cfg.MinArea, cfg.ParcelCapacity)
		}
	}
}

func TestMatchingRicherFirst(t *testing.T) {
	s := newTestSim(t, testScenario())
	u := addTestBuilding(s, 100)
	rich := addTestHousehold(s, 150)
	poor := addTestHousehold(s, 50)

	matched, unmet, ceiling := s.roundOfMatching()

	if matched != 1 {
		t.Fatalf("matched = %d, want 1", matched)
	}
	if rich.Housed.Current() != u.ID {
		t.Errorf("richer household housed in %d, want %d", rich.Housed.Current(), u.ID)
	}
	if !poor.Unhoused() {
		t.Errorf("poorer household should remain unhoused")
	}
	if u.Occupant.Current() != rich.ID {
		t.Errorf("unit occupant = %d, want %d", u.Occupant.Current(), rich.ID)
	}
	if unmet != 0.2 {
		t.Errorf("unmet = %v, want clamp to 0.2", unmet)
	}
	if ceiling != 50 {
		t.Errorf("ceiling = %v, want 50", ceiling)
	}
}

func TestMatchingSkipsUnaffordableTier(t *testing.T) {
	s := newTestSim(t, testScenario())
	addTestBuilding(s, 300)
	cheap := addTestBuilding(s, 100)
	h := addTestHousehold(s, 150)

	matched, unmet, _ := s.roundOfMatching()
	if matched != 1 {
		t.Fatalf("matched = %d, want 1", matched)
	}
	if h.Housed.Current() != cheap.ID {
		t.Errorf("household housed in %d, want the affordable unit %d", h.Housed.Current(), cheap.ID)
	}
	if unmet != 0 {
		t.Errorf("unmet = %v, want 0 with every seeker housed", unmet)
	}
}

func TestMatchingNoAffordableUnits(t *testing.T) {
	s := newTestSim(t, testScenario())
	addTestBuilding(s, 1000)
	addTestHousehold(s, 50)

	matched, unmet, ceiling := s.roundOfMatching()
	if matched != 0 || unmet != 0 || ceiling != 0 {
		t.Fatalf("got (%d, %v, %v), want all zero when nothing is affordable", matched, unmet, ceiling)
	}
}

func TestMatchingSkipsDemolishedBuildings(t *testing.T) {
	s := newTestSim(t, testScenario())
	u := addTestBuilding(s, 100)
	step := 0
	s.BuildingIndex[u.Building].Demolished = &step
	addTestHousehold(s, 150)

	matched, _, _ := s.roundOfMatching()
	if matched != 0 {
		t.Fatalf("matched = %d, want 0 when the only unit's building is demolished", matched)
	}
}

func TestMatchedHouseholdNotEvictedSameStep(t *testing.T) {
	s := newTestSim(t, testScenario())
	addTestBuilding(s, 100)
	h := addTestHousehold(s, 150)

	if matched, _, _ := s.roundOfMatching(); matched != 1 {
		t.Fatalf("expected a match")
	}
	if moved := s.roundOfMoveOuts(); moved != 0 {
		t.Fatalf("moved out = %d, want 0 in the step a household moves in", moved)
	}
	if h.Unhoused() {
		t.Fatalf("household should stay housed through the eviction round")
	}
}

func TestEvictionOnValueAboveBudget(t *testing.T) {
	s := newTestSim(t, testScenario())
	u := addTestBuilding(s, 100)
	h := addTestHousehold(s, 150)
	s.roundOfMatching()

	u.Value.Set(200)
	if moved := s.roundOfMoveOuts(); moved != 1 {
		t.Fatalf("moved out = %d, want 1", moved)
	}
	if !h.Unhoused() {
		t.Errorf("household should be unhoused after eviction")
	}
	if !u.Vacant() {
		t.Errorf("unit should be vacant after eviction")
	}
}

func TestOwnersNeverEvicted(t *testing.T) {
	cfg := testScenario()
	cfg.OwnP = 1
	s := newTestSim(t, cfg)
	u := addTestBuilding(s, 100)
	h := addTestHousehold(s, 150)
	s.roundOfMatching()

	if u.Owner.Current() != h.ID {
		t.Fatalf("single-unit building with own_p = 1 should grant the deed")
	}
	u.Value.Set(10000)
	if moved := s.roundOfMoveOuts(); moved != 0 {
		t.Fatalf("moved out = %d, want 0 for an owner", moved)
	}
}

func TestRezoneDemolitionStepAlignment(t *testing.T) {
	cfg := testScenario()
	cfg.ConstructP = 1
	cfg.DemolishP = 1
	cfg.InitialRounds = 1
	cfg.Arrivals = []int{0, 0}
	cfg.Rezone = []config.RezoneRule{
		{Group: 0, Step: 0, Level: 1},
		{Group: 0, Step: 1, Level: 4},
	}
	s := newTestSim(t, cfg)

	// Step 0: zoning 1, so every building is one floor and none is
	// underzoned; nothing is demolished at initialization.
	for _, b := range s.Buildings {
		if !b.Standing() {
			t.Fatalf("building %d demolished at step 0", b.ID)
		}
		if b.Floors != 1 {
			t.Fatalf("building %d has %d floors at zoning 1", b.ID, b.Floors)
		}
	}
	initial := len(s.Buildings)

	// Step 1 rezones to 4. One-floor buildings become underzoned
	// (1*1 < 4); the per-parcel cap round(4/4) allows exactly one
	// demolition, and approval is certain.
	s.Advance(0)

	demolished := 0
	for _, b := range s.Buildings[:initial] {
		if b.Demolished != nil {
			demolished++
			if *b.Demolished != 1 {
				t.Errorf("building %d demolished at step %d, want 1", b.ID, *b.Demolished)
			}
		}
	}
	if demolished != 1 {
		t.Errorf("demolished %d buildings, want exactly 1 under the per-parcel cap", demolished)
	}
	// Buildings constructed in the rezoning step are never same-step
	// demolition candidates.
	for _, b := range s.Buildings[initial:] {
		if b.Built != 1 {
			t.Errorf("building %d built at step %d, want 1", b.ID, b.Built)
		}
		if !b.Standing() {
			t.Errorf("building %d constructed and demolished in the same step", b.ID)
		}
	}
	if got := s.Parcels[0].Zoning.Current(); got != 4 {
		t.Errorf("parcel zoning = %d, want 4 after propagation", got)
	}
}

func TestSpikeRespectsCeiling(t *testing.T) {
	s := newTestSim(t, testScenario())
	cheap := addTestBuilding(s, 100)
	atCeiling := addTestBuilding(s, 200)
	expensive := addTestBuilding(s, 300)
	gone := addTestBuilding(s, 150)
	step := 0
	s.BuildingIndex[gone.Building].Demolished = &step
	priceBefore := s.PricePerArea.Current()

	s.applySpike(0.05, 200)

	if got := cheap.Value.Current(); math.Abs(got-105) > 1e-9 {
		t.Errorf("unit at 100 spiked to %v, want 105", got)
	}
	if got := atCeiling.Value.Current(); math.Abs(got-210) > 1e-9 {
		t.Errorf("unit at 200 spiked to %v, want 210", got)
	}
	if got := expensive.Value.Current(); got != 300 {
		t.Errorf("unit above the ceiling moved to %v, want 300", got)
	}
	if got := gone.Value.Current(); got != 150 {
		t.Errorf("unit in demolished building moved to %v, want 150", got)
	}
	if got := s.PricePerArea.Current(); math.Abs(got-priceBefore*1.05) > 1e-9 {
		t.Errorf("price index = %v, want %v", got, priceBefore*1.05)
	}
}

func TestSpikeZeroSignalsNoOp(t *testing.T) {
	s := newTestSim(t, testScenario())
	u := addTestBuilding(s, 100)
	s.applySpike(0, 0)
	if u.Value.Current() != 100 {
		t.Fatalf("value = %v, want 100 untouched", u.Value.Current())
	}
}

func TestInflationCompoundsWithoutSpike(t *testing.T) {
	cfg := testScenario()
	cfg.Arrivals = []int{0, 0}
	s := newTestSim(t, cfg)
	u := addTestBuilding(s, 100)
	h := addTestHousehold(s, 50) // cannot afford anything, so no match and no spike
	index := s.PricePerArea.Current()

	s.Advance(0)

	if got, want := u.Value.Current(), 100*1.02; math.Abs(got-want) > 1e-9 {
		t.Errorf("unit value = %v, want %v", got, want)
	}
	if got, want := h.Budget.Current(), 50*1.02; math.Abs(got-want) > 1e-9 {
		t.Errorf("budget = %v, want %v", got, want)
	}
	if got, want := s.PricePerArea.Current(), index*1.02; math.Abs(got-want) > 1e-9 {
		t.Errorf("price index = %v, want %v", got, want)
	}
}

func TestMirrorIdempotence(t *testing.T) {
	cfg := testScenario()
	cfg.Inflation = 0
	cfg.Arrivals = []int{0, 0}
	s := newTestSim(t, cfg)
	u := addTestBuilding(s, 100)
	h := addTestHousehold(s, 50)

	s.Advance(0)

	prevValue, _ := u.Value.At(0)
	curValue, _ := u.Value.At(1)
	if prevValue != curValue {
		t.Errorf("untouched unit value changed across steps: %v != %v", prevValue, curValue)
	}
	prevBudget, _ := h.Budget.At(0)
	curBudget, _ := h.Budget.At(1)
	if prevBudget != curBudget {
		t.Errorf("untouched budget changed across steps: %v != %v", prevBudget, curBudget)
	}
	if occ, ok := u.Occupant.At(1); !ok || occ != 0 {
		t.Errorf("occupant at step 1 = %d ok=%v, want vacant slot", occ, ok)
	}
}

func TestRunInvariants(t *testing.T) {
	cfg := config.Default()
	cfg.Arrivals = []int{40, 30, 30, 30, 30, 30}
	s := newTestSim(t, cfg)

	check := func(st SimStats) {
		for _, p := range s.Parcels {
			built := 0.0
			for _, id := range p.Standing.Current() {
				built += s.BuildingIndex[housing.BuildingID(id)].Footprint
			}
			if built > p.Capacity {
				t.Errorf("step %d: parcel %d built area %v exceeds capacity %v", st.Step, p.ID, built, p.Capacity)
			}
		}
		for _, u := range s.Units {
			if owner := u.Owner.Current(); owner != 0 && owner != u.Occupant.Current() {
				t.Errorf("step %d: unit %d owner %d != occupant %d", st.Step, u.ID, owner, u.Occupant.Current())
			}
			if occ := u.Occupant.Current(); occ != 0 {
				if housed := s.HouseholdIndex[occ].Housed.Current(); housed != u.ID {
					t.Errorf("step %d: unit %d occupant %d is housed in %d", st.Step, u.ID, occ, housed)
				}
			}
		}
		for _, h := range s.Households {
			if h.Unhoused() && h.Owns.Current() {
				t.Errorf("step %d: household %d unhoused yet owning", st.Step, h.ID)
			}
			if unitID := h.Housed.Current(); unitID != 0 {
				if occ := s.UnitIndex[unitID].Occupant.Current(); occ != h.ID {
					t.Errorf("step %d: household %d in unit %d occupied by %d", st.Step, h.ID, unitID, occ)
				}
			}
		}
		if st.Housed+st.Unhoused != st.Households {
			t.Errorf("step %d: housed %d + unhoused %d != households %d", st.Step, st.Housed, st.Unhoused, st.Households)
		}
		if st.StepsRemaining != s.StepsRemaining() {
			t.Errorf("step %d: stats report %d steps remaining, schedule has %d", st.Step, st.StepsRemaining, s.StepsRemaining())
		}
	}

	check(s.StatsSnapshot())
	s.Run(check)
	if s.CurrentStep() != len(cfg.Arrivals)-1 {
		t.Errorf("final step = %d, want %d", s.CurrentStep(), len(cfg.Arrivals)-1)
	}
	if s.StepsRemaining() != 0 {
		t.Errorf("steps remaining = %d, want 0", s.StepsRemaining())
	}
}

func TestConcurrentObservationDuringRun(t *testing.T) {
	cfg := config.Default()
	arrivals := make([]int, 50)
	for i := range arrivals {
		arrivals[i] = 5
	}
	cfg.Arrivals = arrivals
	s := newTestSim(t, cfg)

	// Poll the read-side accessors from another goroutine while the run
	// drives steps, the way the HTTP API observes a live simulation.
	// The race detector flags any unguarded access.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				_ = s.StepsRemaining()
				_ = s.CurrentStep()
				_ = s.StatsSnapshot()
			}
		}
	}()

	for s.Step() {
	}
	close(stop)
	wg.Wait()

	if s.StepsRemaining() != 0 {
		t.Errorf("steps remaining = %d, want 0 after the schedule is drained", s.StepsRemaining())
	}
	if s.CurrentStep() != len(arrivals)-1 {
		t.Errorf("final step = %d, want %d", s.CurrentStep(), len(arrivals)-1)
	}
}

func TestDeterministicReplay(t *testing.T) {
	run := func() []SimStats {
		s := newTestSim(t, config.Default())
		out := []SimStats{s.StatsSnapshot()}
		s.Run(func(st SimStats) { out = append(out, st) })
		return out
	}
	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("run lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("step %d stats diverge between identically seeded runs:\n%+v\n%+v", i, a[i], b[i])
		}
	}
}

func TestConstructionAttempts(t *testing.T) {
	cases := []struct {
		max, level, want int
	}{
		{4, 1, 4},
		{4, 2, 2},
		{4, 3, 1},
		{4, 4, 1},
		{1, 1, 1},
		{3, 2, 2}, // round half away from zero
	}
	for _, c := range cases {
		if got := constructionAttempts(c.max, c.level); got != c.want {
			t.Errorf("constructionAttempts(%d, %d) = %d, want %d", c.max, c.level, got, c.want)
		}
	}
}

func TestBuilderLedger(t *testing.T) {
	b := NewBuilder()
	b.recordBuilt(1)
	b.recordBuilt(2)
	b.Advance(1)
	if got := len(b.Built.Current()); got != 0 {
		t.Fatalf("new step opens with %d built records, want 0", got)
	}
	prev, _ := b.Built.At(0)
	if len(prev) != 2 {
		t.Fatalf("step 0 ledger lost records: %v", prev)
	}
	b.recordDemolished(1)
	if got := len(b.Demolished.Current()); got != 1 {
		t.Fatalf("demolished records = %d, want 1", got)
	}
}

func TestSnapshotsReflectState(t *testing.T) {
	cfg := testScenario()
	cfg.Land = 2 * cfg.ParcelCapacity
	s := newTestSim(t, cfg)
	u := addTestBuilding(s, 100)
	h := addTestHousehold(s, 150)
	s.roundOfMatching()

	parcels := s.ParcelSnapshots()
	if len(parcels) != 2 {
		t.Fatalf("parcel snapshots = %d, want 2", len(parcels))
	}
	if parcels[0].AreaBuilt != 10 {
		t.Errorf("area built = %v, want 10", parcels[0].AreaBuilt)
	}

	units := s.UnitSnapshots()
	if len(units) != 1 {
		t.Fatalf("unit snapshots = %d, want 1", len(units))
	}
	if units[0].Occupant != uint64(h.ID) {
		t.Errorf("snapshot occupant = %d, want %d", units[0].Occupant, h.ID)
	}

	households := s.HouseholdSnapshots()
	if households[0].Housed != uint64(u.ID) {
		t.Errorf("snapshot housed = %d, want %d", households[0].Housed, u.ID)
	}

	buildings := s.BuildingSnapshots()
	if len(buildings) != 1 || buildings[0].Demolished != nil {
		t.Fatalf("building snapshots = %+v, want one standing building", buildings)
	}

	groups := s.GroupSnapshots()
	if len(groups) != 1 || len(groups[0].Parcels) != 2 {
		t.Fatalf("group snapshots = %+v, want one group with two parcels", groups)
	}
}
