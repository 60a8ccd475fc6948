package model

import (
	"fmt"
	"time"
)

// Phase is a named interval of the coverage cycle.
type Phase uint8

const (
	PhaseActive Phase = iota
	PhaseClaims
	PhaseFinalClaims
)

var phaseNames = [...]string{
	PhaseActive:      "ACTIVE",
	PhaseClaims:      "CLAIMS",
	PhaseFinalClaims: "FINAL_CLAIMS",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", uint8(p))
}

// Valid reports whether p is one of the three cycle phases.
func (p Phase) Valid() bool { return p <= PhaseFinalClaims }

// Next returns the phase that follows p within a cycle. The final phase has
// no successor; only a cycle restart leaves it.
func (p Phase) Next() (Phase, bool) {
	if p >= PhaseFinalClaims {
		return p, false
	}
	return p + 1, true
}

func (p Phase) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid phase %d", uint8(p))
	}
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	parsed, err := ParsePhase(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePhase converts a phase name back into a Phase.
func ParsePhase(s string) (Phase, error) {
	for i, name := range phaseNames {
		if name == s {
			return Phase(i), nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", s)
}

// PhaseDurations holds the configured length of every phase.
type PhaseDurations struct {
	Active      time.Duration `json:"active"`
	Claims      time.Duration `json:"claims"`
	FinalClaims time.Duration `json:"final_claims"`
}

// For returns the configured duration of p.
func (d PhaseDurations) For(p Phase) time.Duration {
	switch p {
	case PhaseActive:
		return d.Active
	case PhaseClaims:
		return d.Claims
	default:
		return d.FinalClaims
	}
}

// PhaseState is the persisted position of the phase clock.
type PhaseState struct {
	Current    Phase          `json:"current"`
	PhaseStart time.Time      `json:"phase_start"`
	CycleStart time.Time      `json:"cycle_start"`
	Cycle      uint64         `json:"cycle"`
	Durations  PhaseDurations `json:"durations"`
}
