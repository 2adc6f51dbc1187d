// Construction round — the builder iterates parcels with room, requests
// regulator approval per attempt, and fills approved buildings with living
// units. The builder does not respond to supply or demand; the cycle of
// development is slow enough that iterative, approval-gated construction is
// the right model.
package engine

import (
	"log/slog"
	"math"

	"github.com/talgya/cityblocks/internal/housing"
	"github.com/talgya/cityblocks/internal/land"
)

// roundOfConstruction attempts construction on every parcel with at least
// one minimum-building's worth of available area. A parcel gets attempts in
// inverse proportion to its zoning level: a zone-1 parcel is tried many
// times per step, the maximum-zoned parcel roughly once.
func (s *Simulation) roundOfConstruction() int {
	buildable := 0
	built := 0
	for _, p := range s.Parcels {
		if s.areaAvailable(p) < p.MinBuildingSize(s.cfg.MinArea) {
			continue
		}
		buildable++
		attempts := constructionAttempts(s.zoningMax, p.Zoning.Current())
		for i := 0; i < attempts; i++ {
			if s.attemptBuild(p) != nil {
				built++
			}
		}
	}
	slog.Debug("construction round", "step", s.LastStep, "parcels_buildable", buildable, "built", built)
	return built
}

// constructionAttempts returns how many times the builder tries a parcel in
// one round: round(maxZoning / level), never below one.
func constructionAttempts(maxZoning, level int) int {
	n := int(math.Round(float64(maxZoning) / float64(level)))
	if n < 1 {
		n = 1
	}
	return n
}

// attemptBuild makes one construction attempt on the parcel. A denied
// approval or an infeasible footprint is a silent no-op, not an error.
func (s *Simulation) attemptBuild(p *land.Parcel) *housing.Building {
	minSize := p.MinBuildingSize(s.cfg.MinArea)
	avail := s.areaAvailable(p)
	if avail < minSize {
		return nil
	}
	if !s.Regulator.ApproveConstruction() {
		return nil
	}

	level := p.Zoning.Current()

	// Buildings in higher-zoned parcels must start somewhat bigger;
	// extremely skinny tall buildings would be strange. The cap is clipped
	// so a building never exceeds the available area, nor half the parcel
	// when the zoning-scaled cap overshoots.
	maxSize := minSize * 5 * float64(level)
	if maxSize > avail {
		if avail > p.Capacity/2 {
			maxSize = p.Capacity / 2
		} else {
			maxSize = avail
		}
	}
	footprint := s.rng.Uniform(minSize, maxSize)

	floors := 1
	if level > 1 {
		floors = s.rng.IntBetween(2, level)
	}

	s.nextBuilding++
	b := &housing.Building{
		ID:            housing.BuildingID(s.nextBuilding),
		Parcel:        p.ID,
		Footprint:     footprint,
		VintageZoning: level,
		Floors:        floors,
		Built:         s.LastStep,
	}
	s.Buildings = append(s.Buildings, b)
	s.BuildingIndex[b.ID] = b
	p.Attach(uint64(b.ID))

	s.createUnits(b)
	s.Builder.recordBuilt(b.ID)
	return b
}

// createUnits partitions the building's interior area (footprint × floors)
// into living units: exactly one at zoning level 1, otherwise a random
// count between one per floor and as many minimum-size units as fit. Each
// unit is priced at its share of the current price-per-area index.
func (s *Simulation) createUnits(b *housing.Building) {
	interior := b.Footprint * float64(b.Floors)

	count := 1
	if b.VintageZoning != 1 {
		minCount := b.Floors
		maxCount := int(interior / s.cfg.MinArea)
		if maxCount < minCount {
			maxCount = minCount
		}
		count = s.rng.IntBetween(minCount, maxCount)
	}

	size := interior / float64(count)
	price := s.PricePerArea.Current()
	for i := 0; i < count; i++ {
		s.nextUnit++
		u := housing.NewLivingUnit(housing.UnitID(s.nextUnit), b.ID, s.LastStep, size, price)
		s.Units = append(s.Units, u)
		s.UnitIndex[u.ID] = u
		b.Units = append(b.Units, u.ID)
	}
}

// areaAvailable returns the parcel capacity not covered by standing
// buildings.
func (s *Simulation) areaAvailable(p *land.Parcel) float64 {
	built := 0.0
	for _, id := range p.Standing.Current() {
		built += s.BuildingIndex[housing.BuildingID(id)].Footprint
	}
	return p.Capacity - built
}
