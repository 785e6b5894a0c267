// Package selection tracks which layout is active on the hardware, which
// one is displayed for browsing, and which ones are available this cycle.
package selection

import (
	"context"
	"errors"

	"github.com/bryanchriswhite/ScreenCycler/internal/combination"
	"github.com/bryanchriswhite/ScreenCycler/internal/logger"
)

var (
	// ErrEmptyRing means no combination is available this cycle.
	ErrEmptyRing = errors.New("no combination available")
	// ErrNotAvailable means the displayed combination is not in the ring.
	ErrNotAvailable = errors.New("displayed combination is not available")
	// ErrSkipped is returned by an ApplyFunc that chose not to touch the
	// hardware, as in a dry run. The tracker state is left unchanged.
	ErrSkipped = errors.New("apply skipped")
)

// ApplyFunc realizes a combination on the hardware. A nil error means the
// layout took effect.
type ApplyFunc func(ctx context.Context, c combination.Combination) error

// Tracker is the selection state machine. The ring is the cycle's
// Available Set addressed through a cursor; its head is ring[cursor].
// The zero value is not usable; call New.
type Tracker struct {
	seps combination.Separators

	ring   *combination.Set
	cursor int

	displayed  string
	active     string
	activeComb combination.Combination
	activeInit bool

	forceOnStart string
}

// New returns a Tracker. forceOnStart is the one-shot startup Display
// String, empty for none.
func New(seps combination.Separators, forceOnStart string) *Tracker {
	return &Tracker{seps: seps, forceOnStart: forceOnStart}
}

// InitActive infers the active layout from the outputs that currently
// carry a mode. Only the first call has an effect.
func (t *Tracker) InitActive(activeIDs []string) {
	if t.activeInit {
		return
	}
	t.activeInit = true
	t.activeComb = combination.Combination{
		Outputs: append([]string(nil), activeIDs...),
		Mode:    combination.Extend,
	}
	if len(activeIDs) == 1 {
		t.activeComb.Mode = combination.Single
	}
	t.active = combination.DisplayString(activeIDs, combination.Extend, t.seps)
	logger.WithComponent("selection").Info().
		Str("active", t.active).
		Msg("Inferred active layout")
}

// SetSeparators changes the separators used to render display strings.
// The displayed and active strings are re-rendered so they survive the
// next cycle's regeneration.
func (t *Tracker) SetSeparators(seps combination.Separators) {
	t.seps = seps
	if c, ok := t.ring.Lookup(t.displayed); ok {
		t.displayed = combination.DisplayString(c.Outputs, c.Mode, seps)
	}
	if t.activeInit {
		t.active = combination.DisplayString(t.activeComb.Outputs, t.activeComb.Mode, seps)
	}
}

// Observe installs this cycle's Available Set as the ring.
func (t *Tracker) Observe(set *combination.Set) {
	t.ring = set
	if n := set.Len(); n > 0 {
		t.cursor = mod(t.cursor, n)
	} else {
		t.cursor = 0
	}
}

// Reconcile points the ring head at the displayed combination. When
// nothing is displayed yet the active layout is preferred, otherwise the
// current head is taken. If the displayed combination is gone, force snaps
// it to the head; without force ErrNotAvailable is returned and nothing
// changes.
func (t *Tracker) Reconcile(force bool) error {
	n := t.ring.Len()
	if n == 0 {
		return ErrEmptyRing
	}
	if t.displayed == "" {
		if i := t.ring.Index(t.active); i >= 0 {
			t.cursor = i
			t.displayed = t.active
			return nil
		}
		t.displayed = t.ring.At(t.cursor)
		return nil
	}
	if i := t.ring.Index(t.displayed); i >= 0 {
		t.cursor = i
		return nil
	}
	if force {
		t.displayed = t.ring.At(t.cursor)
		return nil
	}
	return ErrNotAvailable
}

// Rotate moves the cursor by step positions and displays the new head.
func (t *Tracker) Rotate(step int) {
	n := t.ring.Len()
	if n == 0 {
		return
	}
	t.cursor = mod(t.cursor+step, n)
	t.displayed = t.ring.At(t.cursor)
}

// SelectHead force-reconciles so the displayed combination is the head.
func (t *Tracker) SelectHead() error {
	return t.Reconcile(true)
}

// Select displays a specific combination by its display string.
func (t *Tracker) Select(display string) error {
	i := t.ring.Index(display)
	if i < 0 {
		return ErrNotAvailable
	}
	t.cursor = i
	t.displayed = display
	return nil
}

// Apply realizes the displayed combination through fn. It is a no-op when
// the displayed combination is already active (unless forced) or unknown.
// State only advances when fn succeeds.
func (t *Tracker) Apply(ctx context.Context, force bool, fn ApplyFunc) (bool, error) {
	if t.displayed == t.active && !force {
		return false, nil
	}
	comb, ok := t.ring.Lookup(t.displayed)
	if !ok {
		return false, nil
	}
	if err := fn(ctx, comb); err != nil {
		if errors.Is(err, ErrSkipped) {
			return false, nil
		}
		return false, err
	}
	t.active = t.displayed
	t.activeComb = comb
	t.activeInit = true
	return true, nil
}

// Drifted reports whether the active layout is missing from the ring.
func (t *Tracker) Drifted() bool {
	return !t.ring.Contains(t.active)
}

// FallbackCheck recovers from losing a single-output active layout by
// applying the head of the ring. It returns true when the guard fired so
// the caller can signal a refresh.
func (t *Tracker) FallbackCheck(ctx context.Context, fn ApplyFunc) (bool, error) {
	if !t.Drifted() || len(t.activeComb.Outputs) != 1 {
		return false, nil
	}
	if err := t.Reconcile(true); err != nil {
		return true, err
	}
	logger.WithComponent("selection").Warn().
		Str("lost", t.active).
		Str("fallback", t.displayed).
		Msg("Active output disappeared, falling back")
	applied, err := t.Apply(ctx, false, fn)
	if err == nil && !applied {
		return false, nil
	}
	return true, err
}

// ForceOnStart applies the configured startup combination once it shows
// up in the ring, then forgets it. It returns true when it fired. A
// skipped apply keeps the startup combination pending.
func (t *Tracker) ForceOnStart(ctx context.Context, fn ApplyFunc) (bool, error) {
	if t.forceOnStart == "" || !t.ring.Contains(t.forceOnStart) {
		return false, nil
	}
	target := t.forceOnStart
	t.forceOnStart = ""
	if err := t.Select(target); err != nil {
		return true, err
	}
	if err := t.Reconcile(true); err != nil {
		return true, err
	}
	logger.WithComponent("selection").Info().
		Str("display", target).
		Msg("Forcing startup layout")
	applied, err := t.Apply(ctx, true, fn)
	if err == nil && !applied {
		t.forceOnStart = target
		return false, nil
	}
	return true, err
}

// RetargetForceOnStart replaces a still pending startup combination. It
// never re-arms one that already fired.
func (t *Tracker) RetargetForceOnStart(display string) {
	if t.forceOnStart != "" {
		t.forceOnStart = display
	}
}

// PendingForceOnStart is the startup combination still waiting to fire.
func (t *Tracker) PendingForceOnStart() string { return t.forceOnStart }

// Displayed is the highlighted display string, empty when unset.
func (t *Tracker) Displayed() string { return t.displayed }

// Active is the display string of the layout running on the hardware.
func (t *Tracker) Active() string { return t.active }

// ActiveCombination is the combination behind Active.
func (t *Tracker) ActiveCombination() combination.Combination {
	c := t.activeComb
	c.Outputs = append([]string(nil), c.Outputs...)
	return c
}

// Available lists this cycle's display strings starting at the head.
func (t *Tracker) Available() []string {
	all := t.ring.Strings()
	out := make([]string, 0, len(all))
	if len(all) == 0 {
		return out
	}
	out = append(out, all[t.cursor:]...)
	return append(out, all[:t.cursor]...)
}

// Head is the display string at the cursor, empty for an empty ring.
func (t *Tracker) Head() string {
	if t.ring.Len() == 0 {
		return ""
	}
	return t.ring.At(t.cursor)
}

// Ring is this cycle's Available Set.
func (t *Tracker) Ring() *combination.Set { return t.ring }

func mod(a, n int) int {
	return ((a % n) + n) % n
}
