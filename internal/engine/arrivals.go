// Household arrivals — each step a configured number of households moves to
// town with budgets drawn from the (inflated) income distribution.
package engine

import (
	"log/slog"

	"github.com/talgya/cityblocks/internal/housing"
)

// spawnHouseholds creates n households at the current step. Budgets are
// normal draws from the current mean and standard deviation; a household's
// budget represents only the share of income it can spend on housing.
func (s *Simulation) spawnHouseholds(n int) {
	if n <= 0 {
		return
	}
	mean := s.BudgetMean.Current()
	std := s.BudgetStddev.Current()
	for i := 0; i < n; i++ {
		s.nextHousehold++
		h := housing.NewHousehold(housing.HouseholdID(s.nextHousehold), s.LastStep, s.rng.Normal(mean, std))
		s.Households = append(s.Households, h)
		s.HouseholdIndex[h.ID] = h
	}
	slog.Debug("households arrived", "step", s.LastStep, "count", n)
}
