package domain

// GraduationStatus is whether a token has left its bonding curve.
// It is recomputed on every cycle and never cached across cycles.
type GraduationStatus struct {
	IsGraduated    bool
	PoolIdentifier string // AMM pool address, only meaningful when graduated (may be empty)
}

// Phase maps the status to a cycle phase.
func (g GraduationStatus) Phase() Phase {
	if g.IsGraduated {
		return PhaseGraduated
	}
	return PhaseBonding
}

// HasPool reports whether a graduated token has a known pool.
func (g GraduationStatus) HasPool() bool {
	return g.IsGraduated && g.PoolIdentifier != ""
}
