// Package regulator provides the zoning and approval authority. It rezones
// district groups on instruction and rules on construction and demolition
// requests as independent Bernoulli trials. The probabilities allow for a
// laissez-faire regulator (p = 1) or a capricious, micro-managing one
// (p = 0.01); beyond them it keeps no state between calls.
package regulator

import (
	"fmt"

	"github.com/talgya/cityblocks/internal/entropy"
	"github.com/talgya/cityblocks/internal/history"
	"github.com/talgya/cityblocks/internal/land"
)

// Regulator issues zoning decisions and project approvals.
type Regulator struct {
	constructP float64
	demolishP  float64
	rng        *entropy.Source
}

// New creates a regulator. Both probabilities must lie in [0, 1].
func New(constructP, demolishP float64, rng *entropy.Source) (*Regulator, error) {
	if constructP < 0 || constructP > 1 {
		return nil, fmt.Errorf("regulator: construction probability %v outside [0, 1]", constructP)
	}
	if demolishP < 0 || demolishP > 1 {
		return nil, fmt.Errorf("regulator: demolition probability %v outside [0, 1]", demolishP)
	}
	return &Regulator{constructP: constructP, demolishP: demolishP, rng: rng}, nil
}

// Rezone appends a new zoning level to the group's history. Callers apply
// the configured schedule; when no change is scheduled for a step the
// group's zoning is mirrored forward instead of rezoned.
func (r *Regulator) Rezone(g *land.DistrictGroup, step, level int) {
	if g.Zoning.Len() == 0 {
		g.Zoning = history.New(step, level)
		return
	}
	g.Zoning.Append(level)
}

// ApproveConstruction rules on one construction request.
func (r *Regulator) ApproveConstruction() bool {
	return r.rng.Bernoulli(r.constructP)
}

// ApproveDemolition rules on one demolition request.
func (r *Regulator) ApproveDemolition() bool {
	return r.rng.Bernoulli(r.demolishP)
}
