// Read-only snapshots of entity state. These are the engine's sole output
// surface: persistence, the HTTP API, and any downstream analysis consume
// snapshots and never reach into live registries.
package engine

// ParcelSnapshot is the current state of one parcel.
type ParcelSnapshot struct {
	ID        uint64   `json:"id"`
	Group     uint64   `json:"group"`
	Capacity  float64  `json:"capacity"`
	Zoning    int      `json:"zoning"`
	Standing  []uint64 `json:"standing"`
	AreaBuilt float64  `json:"area_built"`
}

// GroupSnapshot is the current state of one district group.
type GroupSnapshot struct {
	ID      uint64   `json:"id"`
	Zoning  int      `json:"zoning"`
	Parcels []uint64 `json:"parcels"`
}

// BuildingSnapshot is the fixed record plus lifecycle of one building.
type BuildingSnapshot struct {
	ID            uint64   `json:"id"`
	Parcel        uint64   `json:"parcel"`
	Footprint     float64  `json:"footprint"`
	VintageZoning int      `json:"vintage_zoning"`
	Floors        int      `json:"floors"`
	Units         []uint64 `json:"units"`
	Built         int      `json:"built"`
	Demolished    *int     `json:"demolished,omitempty"`
}

// UnitSnapshot is the current state of one living unit. Occupant and owner
// are zero when vacant / unowned.
type UnitSnapshot struct {
	ID       uint64  `json:"id"`
	Building uint64  `json:"building"`
	Size     float64 `json:"size"`
	Value    float64 `json:"value"`
	Occupant uint64  `json:"occupant,omitempty"`
	Owner    uint64  `json:"owner,omitempty"`
}

// HouseholdSnapshot is the current state of one household. Housed is zero
// when unhoused.
type HouseholdSnapshot struct {
	ID      uint64  `json:"id"`
	Arrived int     `json:"arrived"`
	Housed  uint64  `json:"housed,omitempty"`
	Owns    bool    `json:"owns"`
	Budget  float64 `json:"budget"`
}

// ParcelSnapshots returns the current state of every parcel.
func (s *Simulation) ParcelSnapshots() []ParcelSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ParcelSnapshot, 0, len(s.Parcels))
	for _, p := range s.Parcels {
		standing := append([]uint64(nil), p.Standing.Current()...)
		out = append(out, ParcelSnapshot{
			ID:        uint64(p.ID),
			Group:     uint64(p.Group),
			Capacity:  p.Capacity,
			Zoning:    p.Zoning.Current(),
			Standing:  standing,
			AreaBuilt: p.Capacity - s.areaAvailable(p),
		})
	}
	return out
}

// GroupSnapshots returns the current state of every district group.
func (s *Simulation) GroupSnapshots() []GroupSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]GroupSnapshot, 0, len(s.Groups))
	for _, g := range s.Groups {
		parcels := make([]uint64, 0, len(g.Parcels))
		for _, pid := range g.Parcels {
			parcels = append(parcels, uint64(pid))
		}
		out = append(out, GroupSnapshot{
			ID:      uint64(g.ID),
			Zoning:  g.Zoning.Current(),
			Parcels: parcels,
		})
	}
	return out
}

// BuildingSnapshots returns every building ever constructed, demolished
// ones included.
func (s *Simulation) BuildingSnapshots() []BuildingSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]BuildingSnapshot, 0, len(s.Buildings))
	for _, b := range s.Buildings {
		units := make([]uint64, 0, len(b.Units))
		for _, uid := range b.Units {
			units = append(units, uint64(uid))
		}
		out = append(out, BuildingSnapshot{
			ID:            uint64(b.ID),
			Parcel:        uint64(b.Parcel),
			Footprint:     b.Footprint,
			VintageZoning: b.VintageZoning,
			Floors:        b.Floors,
			Units:         units,
			Built:         b.Built,
			Demolished:    b.Demolished,
		})
	}
	return out
}

// UnitSnapshots returns the current state of every living unit.
func (s *Simulation) UnitSnapshots() []UnitSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]UnitSnapshot, 0, len(s.Units))
	for _, u := range s.Units {
		out = append(out, UnitSnapshot{
			ID:       uint64(u.ID),
			Building: uint64(u.Building),
			Size:     u.Size,
			Value:    u.Value.Current(),
			Occupant: uint64(u.Occupant.Current()),
			Owner:    uint64(u.Owner.Current()),
		})
	}
	return out
}

// HouseholdSnapshots returns the current state of every household.
func (s *Simulation) HouseholdSnapshots() []HouseholdSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]HouseholdSnapshot, 0, len(s.Households))
	for _, h := range s.Households {
		out = append(out, HouseholdSnapshot{
			ID:      uint64(h.ID),
			Arrived: h.Arrived,
			Housed:  uint64(h.Housed.Current()),
			Owns:    h.Owns.Current(),
			Budget:  h.Budget.Current(),
		})
	}
	return out
}
