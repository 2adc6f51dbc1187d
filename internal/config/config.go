// Package config loads and validates simulation scenarios. A scenario file
// is TOML; every field has a default so a missing file still yields a
// runnable demo city. Validation failures are fatal at initialization — no
// partial simulation state is ever produced from a bad scenario.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// RezoneRule schedules one zoning change: at Step, the district group with
// index Group (0-based) is rezoned to Level.
type RezoneRule struct {
	Group int `toml:"group"`
	Step  int `toml:"step"`
	Level int `toml:"level"`
}

// Scenario holds every externally supplied parameter of a run.
type Scenario struct {
	Seed int64 `toml:"seed"`

	// Land.
	Land           float64 `toml:"land"`            // total land area
	ParcelCapacity float64 `toml:"parcel_capacity"` // area per parcel
	Groups         int     `toml:"groups"`          // district-group count

	// Construction sizing. MinArea is both the base minimum building
	// footprint at zoning level 1 and the minimum living-unit size.
	MinArea float64 `toml:"min_area"`

	// Prices.
	PricePerArea float64 `toml:"price_per_area"` // initial price index
	Inflation    float64 `toml:"inflation"`      // per-step compounding rate

	// Regulator probabilities.
	ConstructP float64 `toml:"construct_p"`
	DemolishP  float64 `toml:"demolish_p"`

	// Population. Arrivals[0] is the initial batch at step 0; each later
	// entry drives one simulation step.
	Arrivals     []int   `toml:"arrivals"`
	BudgetMean   float64 `toml:"budget_mean"`
	BudgetStddev float64 `toml:"budget_stddev"`
	OwnP         float64 `toml:"own_p"` // single-unit ownership probability

	// InitialRounds is how many construction rounds run at step 0 before
	// the first households arrive.
	InitialRounds int `toml:"initial_rounds"`

	// Rezone is the full zoning schedule. Every group needs a step-0 rule;
	// a parcel must never reach a size query unzoned.
	Rezone []RezoneRule `toml:"rezone"`
}

// Default returns a small runnable scenario: ten parcels in two groups, one
// group upzoned to 4 at step 3.
func Default() Scenario {
	return Scenario{
		Seed:           42,
		Land:           10 * 51000,
		ParcelCapacity: 51000,
		Groups:         2,
		MinArea:        425,
		PricePerArea:   10,
		Inflation:      0.02,
		ConstructP:     0.8,
		DemolishP:      0.5,
		Arrivals:       []int{40, 30, 30, 30, 30, 30, 30, 30, 30, 30, 30},
		BudgetMean:     18000,
		BudgetStddev:   6000,
		OwnP:           0.3,
		InitialRounds:  3,
		Rezone: []RezoneRule{
			{Group: 0, Step: 0, Level: 1},
			{Group: 1, Step: 0, Level: 2},
			{Group: 1, Step: 3, Level: 4},
		},
	}
}

// Load reads a scenario from a TOML file, filling unset fields from the
// defaults, and validates it.
func Load(path string) (Scenario, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Scenario{}, fmt.Errorf("load scenario: %w", err)
	}
	if meta.IsDefined("arrivals") && len(cfg.Arrivals) == 0 {
		return Scenario{}, fmt.Errorf("load scenario: arrivals list is empty")
	}
	if err := cfg.Validate(); err != nil {
		return Scenario{}, err
	}
	return cfg, nil
}

// Validate checks every configuration invariant. All violations are fatal
// at initialization.
func (c Scenario) Validate() error {
	if c.Land <= 0 {
		return fmt.Errorf("scenario: land must be positive, got %v", c.Land)
	}
	if c.ParcelCapacity <= 0 {
		return fmt.Errorf("scenario: parcel_capacity must be positive, got %v", c.ParcelCapacity)
	}
	if c.Groups < 1 {
		return fmt.Errorf("scenario: at least one district group required, got %d", c.Groups)
	}
	if c.MinArea <= 0 {
		return fmt.Errorf("scenario: min_area must be positive, got %v", c.MinArea)
	}
	if c.PricePerArea <= 0 {
		return fmt.Errorf("scenario: price_per_area must be positive, got %v", c.PricePerArea)
	}
	if c.Inflation < 0 {
		return fmt.Errorf("scenario: inflation must be non-negative, got %v", c.Inflation)
	}
	for name, p := range map[string]float64{
		"construct_p": c.ConstructP,
		"demolish_p":  c.DemolishP,
		"own_p":       c.OwnP,
	} {
		if p < 0 || p > 1 {
			return fmt.Errorf("scenario: %s = %v outside [0, 1]", name, p)
		}
	}
	if len(c.Arrivals) == 0 {
		return fmt.Errorf("scenario: arrivals schedule is empty")
	}
	for i, n := range c.Arrivals {
		if n < 0 {
			return fmt.Errorf("scenario: arrivals[%d] = %d is negative", i, n)
		}
	}
	if c.BudgetStddev < 0 {
		return fmt.Errorf("scenario: budget_stddev must be non-negative, got %v", c.BudgetStddev)
	}
	if c.InitialRounds < 0 {
		return fmt.Errorf("scenario: initial_rounds must be non-negative, got %d", c.InitialRounds)
	}

	zonedAtStart := make(map[int]bool)
	for i, r := range c.Rezone {
		if r.Group < 0 || r.Group >= c.Groups {
			return fmt.Errorf("scenario: rezone[%d] targets group %d, have %d groups", i, r.Group, c.Groups)
		}
		if r.Step < 0 {
			return fmt.Errorf("scenario: rezone[%d] has negative step %d", i, r.Step)
		}
		if r.Level < 1 {
			return fmt.Errorf("scenario: rezone[%d] has zoning level %d, must be >= 1", i, r.Level)
		}
		if r.Step == 0 {
			zonedAtStart[r.Group] = true
		}
	}
	for g := 0; g < c.Groups; g++ {
		if !zonedAtStart[g] {
			return fmt.Errorf("scenario: group %d has no step-0 zoning rule", g)
		}
	}
	return nil
}

// MaxZoning returns the highest zoning level anywhere in the schedule.
func (c Scenario) MaxZoning() int {
	max := 1
	for _, r := range c.Rezone {
		if r.Level > max {
			max = r.Level
		}
	}
	return max
}

// Schedule indexes the rezone rules as group index → step → level.
func (c Scenario) Schedule() map[int]map[int]int {
	sched := make(map[int]map[int]int, c.Groups)
	for _, r := range c.Rezone {
		if sched[r.Group] == nil {
			sched[r.Group] = make(map[int]int)
		}
		sched[r.Group][r.Step] = r.Level
	}
	return sched
}
