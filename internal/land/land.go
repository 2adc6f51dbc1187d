// Package land provides the fixed land model: parcels, district groups, and
// the one-time partitioning of raw land area into parcels. Parcels and
// groups are created at initialization and never destroyed.
package land

import (
	"fmt"
	"slices"

	"github.com/talgya/cityblocks/internal/history"
)

// ParcelID identifies a parcel.
type ParcelID uint64

// GroupID identifies a district group.
type GroupID uint64

// Parcel is the smallest buildable land division. Its capacity never
// changes; its zoning mirrors its district group's zoning each step; the
// standing-building snapshot records, per step, the IDs of the buildings
// occupying it. Building IDs are owned by the engine registries.
type Parcel struct {
	ID       ParcelID
	Group    GroupID
	Capacity float64

	// Zoning is empty until the first propagation from the district group.
	Zoning history.Series[int]

	// Standing holds one building-ID snapshot per step.
	Standing history.Series[[]uint64]
}

// Advance gives the parcel a slot for the given step: it copies the district
// group's current zoning into its own history (propagation is immediate, not
// deferred) and clones the standing-building snapshot so later phases can
// mutate it without aliasing the previous step. Safe to call once per step;
// a second call in the same step is a no-op.
func (p *Parcel) Advance(step int, groupZoning int) {
	if p.Zoning.Len() == 0 {
		p.Zoning = history.New(step, groupZoning)
	} else if p.Zoning.LastStep() < step {
		p.Zoning.Append(groupZoning)
	}
	if p.Standing.LastStep() < step {
		p.Standing.Append(slices.Clone(p.Standing.Current()))
	}
}

// MinBuildingSize returns the minimum footprint a new building on this
// parcel may have: the base minimum at zoning level 1, scaled up at higher
// levels so tall buildings are not absurdly skinny.
// Panics when the parcel has never been zoned — a sequencing bug, since
// zoning propagation must always precede size queries.
func (p *Parcel) MinBuildingSize(base float64) float64 {
	if p.Zoning.Len() == 0 {
		panic(fmt.Sprintf("land: minimum building size queried on unzoned parcel %d", p.ID))
	}
	level := p.Zoning.Current()
	if level == 1 {
		return base
	}
	return base * float64(level) / 2
}

// Attach adds a building to the current standing snapshot.
func (p *Parcel) Attach(buildingID uint64) {
	p.Standing.Set(append(slices.Clone(p.Standing.Current()), buildingID))
}

// Detach removes a building from the current standing snapshot. Earlier
// snapshots keep the building, so its full tenure remains queryable.
func (p *Parcel) Detach(buildingID uint64) {
	cur := p.Standing.Current()
	next := make([]uint64, 0, len(cur))
	for _, id := range cur {
		if id != buildingID {
			next = append(next, id)
		}
	}
	p.Standing.Set(next)
}

// DistrictGroup is a fixed set of parcels sharing a zoning authority.
// Membership is assigned once at partition time and never changes.
type DistrictGroup struct {
	ID      GroupID
	Parcels []ParcelID
	Zoning  history.Series[int] // empty until the first scheduled zoning
}

// Partition divides a raw land quantity into full-capacity parcels and
// distributes them round-robin across groups, so group sizes differ by at
// most one parcel. Any remainder smaller than one capacity unit is
// discarded; an undersized parcel is never created.
func Partition(total, capacity float64, groups int) ([]*Parcel, []*DistrictGroup, error) {
	if total <= 0 {
		return nil, nil, fmt.Errorf("land: total land quantity must be positive, got %v", total)
	}
	if capacity <= 0 {
		return nil, nil, fmt.Errorf("land: parcel capacity must be positive, got %v", capacity)
	}
	if groups < 1 {
		return nil, nil, fmt.Errorf("land: at least one district group required, got %d", groups)
	}

	count := int(total / capacity)
	if count == 0 {
		return nil, nil, fmt.Errorf("land: total %v does not fit a single parcel of capacity %v", total, capacity)
	}

	districts := make([]*DistrictGroup, groups)
	for i := range districts {
		districts[i] = &DistrictGroup{ID: GroupID(i + 1)}
	}

	parcels := make([]*Parcel, 0, count)
	for i := 0; i < count; i++ {
		g := districts[i%groups]
		p := &Parcel{
			ID:       ParcelID(i + 1),
			Group:    g.ID,
			Capacity: capacity,
			Standing: history.New(0, []uint64{}),
		}
		g.Parcels = append(g.Parcels, p.ID)
		parcels = append(parcels, p)
	}

	return parcels, districts, nil
}
