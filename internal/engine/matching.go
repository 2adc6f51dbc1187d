// Market clearing — the round of moving in and the round of moving out.
// Matching is a single greedy, spending-power-ordered pass: deterministic
// given the sorted orderings, with pseudo-randomness entering only through
// the ownership trial.
package engine

import (
	"log/slog"
	"slices"
	"sort"

	"github.com/talgya/cityblocks/internal/housing"
)

// Unmet-demand spikes are clamped to this band when nonzero.
const (
	minSpike = 0.01
	maxSpike = 0.2
)

// roundOfMatching matches unhoused households against vacant units and
// returns the match count plus the two demand signals consumed by the price
// feedback: the clamped unmet fraction and the budget ceiling of the
// households left unhoused.
func (s *Simulation) roundOfMatching() (matched int, unmet, ceiling float64) {
	var vacant []*housing.LivingUnit
	for _, u := range s.Units {
		if u.Vacant() && s.BuildingIndex[u.Building].Standing() {
			vacant = append(vacant, u)
		}
	}
	var seekers []*housing.Household
	for _, h := range s.Households {
		if h.Unhoused() {
			seekers = append(seekers, h)
		}
	}
	if len(vacant) == 0 || len(seekers) == 0 {
		slog.Debug("no matching possible", "step", s.LastStep, "vacant", len(vacant), "seeking", len(seekers))
		return 0, 0, 0
	}

	// Total orderings: value/budget descending with ID tie-breaks, so the
	// pass is reproducible independent of registry order.
	sort.Slice(vacant, func(i, j int) bool {
		vi, vj := vacant[i].Value.Current(), vacant[j].Value.Current()
		if vi != vj {
			return vi > vj
		}
		return vacant[i].ID < vacant[j].ID
	})
	sort.Slice(seekers, func(i, j int) bool {
		bi, bj := seekers[i].Budget.Current(), seekers[j].Budget.Current()
		if bi != bj {
			return bi > bj
		}
		return seekers[i].ID < seekers[j].ID
	})

	// Units nobody could afford are out of the market this step. Sorted by
	// value descending, they form the head of the list; the affordable
	// suffix starts at the first unit the richest seeker can pay for.
	richest := seekers[0].Budget.Current()
	cut := len(vacant)
	for i, u := range vacant {
		if u.Value.Current() <= richest {
			cut = i
			break
		}
	}
	affordable := vacant[cut:]
	if len(affordable) == 0 {
		slog.Debug("no affordable units for households looking", "step", s.LastStep)
		return 0, 0, 0
	}

	// Households priced out of even the cheapest remaining unit are out
	// too, and no market can match more households than units.
	cheapest := affordable[len(affordable)-1].Value.Current()
	var buyers []*housing.Household
	for _, h := range seekers {
		if len(buyers) >= len(affordable) {
			break
		}
		if h.Budget.Current() >= cheapest {
			buyers = append(buyers, h)
		}
	}
	if len(buyers) == 0 {
		return 0, 0, 0
	}

	remaining := s.match(buyers, affordable)
	matched = len(buyers) - len(remaining)

	// Demand signals count every seeker left unhoused, the priced-out
	// included, against the pool that actually entered the pass. The raw
	// fraction can exceed one; the clamp absorbs that.
	unhoused := 0
	for _, h := range seekers {
		if h.Unhoused() {
			unhoused++
		}
	}
	slog.Debug("matching round",
		"step", s.LastStep,
		"considered", len(buyers),
		"matched", matched,
		"unhoused", unhoused,
	)

	if unhoused > 0 {
		unmet = float64(unhoused) / float64(len(buyers))
		if unmet < minSpike {
			unmet = minSpike
		} else if unmet > maxSpike {
			unmet = maxSpike
		}
		// Seekers are sorted budget-descending, so the first still
		// unhoused holds the ceiling.
		for _, h := range seekers {
			if h.Unhoused() {
				ceiling = h.Budget.Current()
				break
			}
		}
	}
	return matched, unmet, ceiling
}

// match walks the price-sorted unit list top to bottom, trying each unit
// against only the current richest remaining household. A unit is never
// revisited; richer households may end up in cheap units, units may go
// untaken, households may go unhoused. Returns the households still
// unhoused.
func (s *Simulation) match(buyers []*housing.Household, units []*housing.LivingUnit) []*housing.Household {
	remaining := slices.Clone(buyers)
	for _, u := range units {
		if len(remaining) == 0 {
			break
		}
		head := remaining[0]
		if head.Unhoused() && u.Vacant() && u.Value.Current() <= head.Budget.Current() {
			s.moveIn(head, u)
			remaining = remaining[1:]
		}
	}
	return remaining
}

// moveIn assigns the household as the unit's occupant. When the building
// holds exactly one living unit it is functionally a single-family home,
// and an ownership trial may grant the household the deed.
func (s *Simulation) moveIn(h *housing.Household, u *housing.LivingUnit) {
	u.Occupant.Set(h.ID)
	h.Housed.Set(u.ID)
	if len(s.BuildingIndex[u.Building].Units) == 1 && s.rng.Bernoulli(s.cfg.OwnP) {
		u.Owner.Set(h.ID)
		h.Owns.Set(true)
	}
}

// roundOfMoveOuts evicts every housed, non-owning household whose unit's
// current value has risen above its budget. Runs strictly after matching;
// a household that just moved in cannot be priced out of the same unit in
// the same step, because it could afford it at this step's value.
func (s *Simulation) roundOfMoveOuts() int {
	moved := 0
	for _, h := range s.Households {
		if h.Unhoused() {
			continue
		}
		u := s.UnitIndex[h.Housed.Current()]
		if h.MustMoveOut(u.Value.Current()) {
			s.moveOut(h)
			moved++
		}
	}
	if moved > 0 {
		slog.Debug("households moved out", "step", s.LastStep, "count", moved)
	}
	return moved
}

// moveOut releases the household's unit, and the deed if it held one.
func (s *Simulation) moveOut(h *housing.Household) {
	unitID := h.Housed.Current()
	if unitID == 0 {
		return
	}
	u := s.UnitIndex[unitID]
	u.Occupant.Set(0)
	if h.Owns.Current() {
		u.Owner.Set(0)
		h.Owns.Set(false)
	}
	h.Housed.Set(0)
}
