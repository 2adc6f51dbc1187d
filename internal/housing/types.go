// Package housing provides the built-environment and population entities:
// buildings, the living units inside them, and the households that occupy
// them. Cross-entity references are stable identifiers, never nested
// ownership, so a demolished building's units stay independently queryable.
package housing

import (
	"github.com/talgya/cityblocks/internal/history"
	"github.com/talgya/cityblocks/internal/land"
)

// BuildingID identifies a building.
type BuildingID uint64

// UnitID identifies a living unit. Zero means "no unit" in occupant and
// housed references.
type UnitID uint64

// HouseholdID identifies a household. Zero means "vacant" / "no owner" in
// unit references.
type HouseholdID uint64

// Building is the only structure type in the simulation. Everything about
// it except its demolition step is fixed at construction: its parcel, its
// footprint, the zoning level in force when it was built (vintage zoning),
// its floor count, and its unit roster.
type Building struct {
	ID            BuildingID
	Parcel        land.ParcelID
	Footprint     float64
	VintageZoning int
	Floors        int
	Units         []UnitID

	Built      int
	Demolished *int // nil while standing
}

// StandingAt reports whether the building was standing at the given step.
func (b *Building) StandingAt(step int) bool {
	if step < b.Built {
		return false
	}
	return b.Demolished == nil || step < *b.Demolished
}

// Standing reports whether the building has not been demolished.
func (b *Building) Standing() bool {
	return b.Demolished == nil
}

// Underzoned reports whether the building is demolition-eligible under the
// parcel's current zoning: a floor count below the square root of the
// zoning level marks a low-rise stranded in a since-upzoned parcel.
func (b *Building) Underzoned(parcelZoning int) bool {
	return float64(b.Floors)*float64(b.Floors) < float64(parcelZoning)
}

// LivingUnit is the smallest occupiable subdivision of a building. Size is
// its fixed share of the building's interior area; value, occupant, and
// owner are per-step histories.
type LivingUnit struct {
	ID       UnitID
	Building BuildingID
	Size     float64

	Value    history.Series[float64]
	Occupant history.Series[HouseholdID]
	Owner    history.Series[HouseholdID]
}

// NewLivingUnit creates a unit priced at its share of the current
// price-per-area index.
func NewLivingUnit(id UnitID, building BuildingID, step int, size, pricePerArea float64) *LivingUnit {
	return &LivingUnit{
		ID:       id,
		Building: building,
		Size:     size,
		Value:    history.New(step, size*pricePerArea),
		Occupant: history.New(step, HouseholdID(0)),
		Owner:    history.New(step, HouseholdID(0)),
	}
}

// Advance mirrors the unit's histories into the given step. Units created
// during the step start their histories there and are not advanced again;
// calling Advance twice in one step is a no-op.
func (u *LivingUnit) Advance(step int) {
	if u.Value.LastStep() >= step {
		return
	}
	u.Value.Mirror()
	u.Occupant.Mirror()
	u.Owner.Mirror()
}

// Vacant reports whether the unit currently has no occupant.
func (u *LivingUnit) Vacant() bool {
	return u.Occupant.Current() == 0
}

// Household is the unit of population. Its budget is the share of income it
// can spend on housing, inflated each step.
type Household struct {
	ID      HouseholdID
	Arrived int

	Housed history.Series[UnitID]
	Owns   history.Series[bool]
	Budget history.Series[float64]
}

// NewHousehold creates an unhoused household arriving at the given step.
func NewHousehold(id HouseholdID, step int, budget float64) *Household {
	return &Household{
		ID:      id,
		Arrived: step,
		Housed:  history.New(step, UnitID(0)),
		Owns:    history.New(step, false),
		Budget:  history.New(step, budget),
	}
}

// Advance mirrors the household's histories into the given step. No-op when
// the household arrived this step or was already advanced.
func (h *Household) Advance(step int) {
	if h.Budget.LastStep() >= step {
		return
	}
	h.Housed.Mirror()
	h.Owns.Mirror()
	h.Budget.Mirror()
}

// Unhoused reports whether the household currently has no unit.
func (h *Household) Unhoused() bool {
	return h.Housed.Current() == 0
}

// MustMoveOut reports whether a housed, non-owning household can no longer
// afford its unit at the given current value. Owners never move out on
// price alone.
func (h *Household) MustMoveOut(unitValue float64) bool {
	return !h.Unhoused() && !h.Owns.Current() && h.Budget.Current() < unitValue
}
