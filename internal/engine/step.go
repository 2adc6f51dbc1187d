// Step sequencing. Each step is a strict, total ordering of sub-phases:
// rezone, advance histories (zoning propagation included), inflate,
// arrivals, construct, match, evict, demolish, spike. No phase interleaves
// with another, and each entity attribute has exactly one writer per step.
package engine

import (
	"log/slog"
)

// Advance runs one full simulation step with the given number of arriving
// households.
func (s *Simulation) Advance(arrivals int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LastStep++
	step := s.LastStep

	// 1. Rezoning per the configured schedule; groups without a scheduled
	// change this step mirror their zoning forward.
	for i, g := range s.Groups {
		if level, ok := s.schedule[i][step]; ok {
			s.Regulator.Rezone(g, step, level)
			slog.Info("district rezoned", "step", step, "group", g.ID, "level", level)
		} else {
			g.Zoning.Mirror()
		}
	}

	// 2. Advance every still-live entity so all histories have a slot for
	// this step before any phase reads current values. Parcels copy their
	// group's zoning during this pass — propagation is immediate.
	for _, p := range s.Parcels {
		p.Advance(step, s.GroupIndex[p.Group].Zoning.Current())
	}
	for _, u := range s.Units {
		u.Advance(step)
	}
	for _, h := range s.Households {
		h.Advance(step)
	}
	s.Builder.Advance(step)

	// 3. Inflation compounds every monetary quantity, including the global
	// price index and the arrival-income parameters.
	s.applyInflation()

	// 4. New households move to town.
	s.spawnHouseholds(arrivals)

	// 5. Construction on any parcel with room.
	s.roundOfConstruction()

	// 6–7. Matching, then eviction. Eviction runs strictly after matching,
	// so no household moves in and back out within one step.
	movedIn, unmet, ceiling := s.roundOfMatching()
	movedOut := s.roundOfMoveOuts()

	// 8. Demolition of underzoned buildings.
	s.roundOfDemolition()

	// 9. Prices spike in response to this step's unmet demand.
	s.applySpike(unmet, ceiling)

	s.updateStats(unmet, ceiling, movedIn, movedOut)
	s.report()
	publishMetrics(s.Stats)
}
