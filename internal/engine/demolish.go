// Demolition round — the builder knocks down buildings stranded by
// upzoning. A demolished building keeps its records and its units; it is
// only detached from its parcel's standing snapshot.
package engine

import (
	"log/slog"
	"math"

	"github.com/talgya/cityblocks/internal/housing"
	"github.com/talgya/cityblocks/internal/land"
)

// roundOfDemolition selects underzoned buildings per parcel, capped in
// inverse proportion to the parcel's zoning level, and demolishes each one
// the regulator approves. Buildings constructed this step are never
// considered.
func (s *Simulation) roundOfDemolition() int {
	step := s.LastStep
	eligibleTotal := 0
	demolished := 0

	for _, p := range s.Parcels {
		zoning := p.Zoning.Current()
		var eligible []*housing.Building
		for _, id := range p.Standing.Current() {
			b := s.BuildingIndex[housing.BuildingID(id)]
			if b.Built == step {
				continue
			}
			if b.Underzoned(zoning) {
				eligible = append(eligible, b)
			}
		}
		if len(eligible) == 0 {
			continue
		}
		eligibleTotal += len(eligible)

		// A zone-1 parcel may lose many buildings in one step, the
		// maximum-zoned parcel at most one.
		limit := int(math.Round(float64(s.zoningMax) / float64(zoning)))
		if limit < 1 {
			limit = 1
		}
		if limit > len(eligible) {
			limit = len(eligible)
		}

		for i := 0; i < limit; i++ {
			if !s.Regulator.ApproveDemolition() {
				continue
			}
			s.demolish(eligible[i], p)
			demolished++
		}
	}

	if eligibleTotal == 0 {
		slog.Debug("no buildings eligible for demolition", "step", step)
	} else {
		slog.Debug("demolition round", "step", step, "eligible", eligibleTotal, "demolished", demolished)
	}
	return demolished
}

// demolish evicts every occupant, detaches the building from its parcel's
// standing snapshot, and stamps the demolition step. The units and their
// full histories remain attached to the building for later inspection.
func (s *Simulation) demolish(b *housing.Building, p *land.Parcel) {
	for _, unitID := range b.Units {
		u := s.UnitIndex[unitID]
		if occupant := u.Occupant.Current(); occupant != 0 {
			s.moveOut(s.HouseholdIndex[occupant])
		}
	}
	p.Detach(uint64(b.ID))
	step := s.LastStep
	b.Demolished = &step
	s.Builder.recordDemolished(b.ID)
}
