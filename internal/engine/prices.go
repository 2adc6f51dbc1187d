// Price feedback — compounding inflation each step, plus a demand-driven
// spike on the affordable tier when households who could pay were left
// unhoused. Prices in this model never fall.
package engine

import (
	"log/slog"
)

// applyInflation compounds every monetary quantity by the fixed rate: all
// unit values (demolished buildings included — their histories keep
// moving), all household budgets, the global price-per-area index, and the
// arrival-income parameters. Runs after the advance pass, so each series
// multiplies its freshly mirrored slot.
func (s *Simulation) applyInflation() {
	rate := 1 + s.cfg.Inflation
	for _, u := range s.Units {
		u.Value.Set(u.Value.Current() * rate)
	}
	for _, h := range s.Households {
		h.Budget.Set(h.Budget.Current() * rate)
	}
	s.PricePerArea.Append(s.PricePerArea.Current() * rate)
	s.BudgetMean.Append(s.BudgetMean.Current() * rate)
	s.BudgetStddev.Append(s.BudgetStddev.Current() * rate)
}

// applySpike raises the value of every unit in a standing building priced
// at or below the ceiling by the unmet fraction, and the global price index
// with it. Inflation and spike are two separate multiplicative updates; a
// step with both applies both.
func (s *Simulation) applySpike(unmet, ceiling float64) {
	if unmet <= 0 || ceiling <= 0 {
		return
	}
	spiked := 0
	for _, u := range s.Units {
		if !s.BuildingIndex[u.Building].Standing() {
			continue
		}
		if v := u.Value.Current(); v <= ceiling {
			u.Value.Set(v * (1 + unmet))
			spiked++
		}
	}
	s.PricePerArea.Set(s.PricePerArea.Current() * (1 + unmet))
	slog.Info("prices spike",
		"step", s.LastStep,
		"unmet_fraction", unmet,
		"ceiling", ceiling,
		"units_spiked", spiked,
		"price_per_area", s.PricePerArea.Current(),
	)
}
