// Package phase tracks where the vault is in its coverage cycle. Nothing in
// here runs on a timer: every transition is an explicit call.
package phase

import (
	"errors"
	"fmt"
	"time"

	"TrancheVault/internal/model"
)

var ErrTransitionNotReady = errors.New("phase transition not ready")

// Transition describes a single phase change.
type Transition struct {
	From   model.Phase
	To     model.Phase
	At     time.Time
	Forced bool
}

// Clock is not safe for concurrent use; the vault serializes access.
type Clock struct {
	st model.PhaseState
}

// NewClock starts cycle 1 in ACTIVE at now.
func NewClock(d model.PhaseDurations, now time.Time) (*Clock, error) {
	if err := validateDurations(d); err != nil {
		return nil, err
	}
	return &Clock{st: model.PhaseState{
		Current:    model.PhaseActive,
		PhaseStart: now,
		CycleStart: now,
		Cycle:      1,
		Durations:  d,
	}}, nil
}

// Restore rebuilds a clock from persisted state.
func Restore(st model.PhaseState) (*Clock, error) {
	if !st.Current.Valid() {
		return nil, fmt.Errorf("restore phase clock: invalid phase %d", uint8(st.Current))
	}
	if err := validateDurations(st.Durations); err != nil {
		return nil, err
	}
	if st.Cycle == 0 {
		st.Cycle = 1
	}
	return &Clock{st: st}, nil
}

func (c *Clock) Current() model.Phase    { return c.st.Current }
func (c *Clock) State() model.PhaseState { return c.st }

// DueAt is the earliest time the current phase may end.
func (c *Clock) DueAt() time.Time {
	return c.st.PhaseStart.Add(c.st.Durations.For(c.st.Current))
}

// Due reports whether the current phase's duration has elapsed at now.
func (c *Clock) Due(now time.Time) bool { return !now.Before(c.DueAt()) }

// Remaining returns the time left in the current phase, zero once due.
func (c *Clock) Remaining(now time.Time) time.Duration {
	if left := c.DueAt().Sub(now); left > 0 {
		return left
	}
	return 0
}

// AdvanceIfDue moves to the next phase once the current one has run its
// course. In FINAL_CLAIMS there is no next phase; a due call changes nothing
// and reports ok=false, leaving RestartCycle as the only way forward.
func (c *Clock) AdvanceIfDue(now time.Time) (tr Transition, ok bool, err error) {
	if !c.Due(now) {
		return Transition{}, false, fmt.Errorf("%w: %s ends at %s", ErrTransitionNotReady,
			c.st.Current, c.DueAt().UTC().Format(time.RFC3339))
	}
	return c.advance(now, false)
}

// ForceAdvance moves to the next phase regardless of elapsed time.
func (c *Clock) ForceAdvance(now time.Time) (Transition, bool) {
	tr, ok, _ := c.advance(now, true)
	return tr, ok
}

// RestartCycle returns to ACTIVE once FINAL_CLAIMS has elapsed and returns
// the new cycle number.
func (c *Clock) RestartCycle(now time.Time) (uint64, error) {
	if c.st.Current != model.PhaseFinalClaims {
		return 0, fmt.Errorf("%w: cycle restart requires %s, current phase is %s",
			ErrTransitionNotReady, model.PhaseFinalClaims, c.st.Current)
	}
	if !c.Due(now) {
		return 0, fmt.Errorf("%w: %s ends at %s", ErrTransitionNotReady,
			c.st.Current, c.DueAt().UTC().Format(time.RFC3339))
	}
	c.st.Current = model.PhaseActive
	c.st.PhaseStart = now
	c.st.CycleStart = now
	c.st.Cycle++
	return c.st.Cycle, nil
}

func (c *Clock) advance(now time.Time, forced bool) (Transition, bool, error) {
	next, ok := c.st.Current.Next()
	if !ok {
		return Transition{}, false, nil
	}
	tr := Transition{From: c.st.Current, To: next, At: now, Forced: forced}
	c.st.Current = next
	c.st.PhaseStart = now
	return tr, true, nil
}

func validateDurations(d model.PhaseDurations) error {
	if d.Active < 0 || d.Claims < 0 || d.FinalClaims < 0 {
		return errors.New("phase durations must not be negative")
	}
	return nil
}
