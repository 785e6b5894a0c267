// Package switcher runs the detect, generate, reconcile and apply cycle
// and exposes the user actions that drive it.
package switcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bryanchriswhite/ScreenCycler/internal/combination"
	"github.com/bryanchriswhite/ScreenCycler/internal/command"
	"github.com/bryanchriswhite/ScreenCycler/internal/config"
	"github.com/bryanchriswhite/ScreenCycler/internal/logger"
	"github.com/bryanchriswhite/ScreenCycler/internal/notify"
	"github.com/bryanchriswhite/ScreenCycler/internal/selection"
	"github.com/bryanchriswhite/ScreenCycler/internal/topology"
	"github.com/bryanchriswhite/ScreenCycler/internal/workspace"
)

// ErrUnknownAction is returned for an action name that does not exist.
var ErrUnknownAction = errors.New("unknown action")

// Action is a user request.
type Action string

const (
	ActionNext     Action = "next"
	ActionPrevious Action = "previous"
	ActionSelect   Action = "select"
	ActionApply    Action = "apply"
	ActionRefresh  Action = "refresh"
)

// ParseAction validates an action name.
func ParseAction(name string) (Action, error) {
	switch a := Action(name); a {
	case ActionNext, ActionPrevious, ActionSelect, ActionApply, ActionRefresh:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, name)
}

// ButtonAction maps an i3bar mouse button to an action. Scroll down moves
// forward; left click and scroll up move back. Unmapped buttons refresh.
func ButtonAction(button int) Action {
	switch button {
	case 4:
		return ActionNext
	case 1, 5:
		return ActionPrevious
	case 2:
		return ActionSelect
	case 3:
		return ActionApply
	}
	return ActionRefresh
}

// Applier runs synthesized directives.
type Applier interface {
	Apply(ctx context.Context, directives []command.Directive) error
}

// StatusPublisher receives the status after every cycle.
type StatusPublisher interface {
	PublishStatus(status any)
}

// Options wires a Switcher's collaborators. Only Source and Applier are
// required.
type Options struct {
	Source     topology.Source
	Applier    Applier
	Reassigner *workspace.Reassigner
	Refresher  notify.Refresher
	Notifier   notify.Notifier
	Publisher  StatusPublisher
	Sleep      workspace.SleepFunc
	// DryRun skips the startup layout and the fallback guard. Applies
	// still synthesize and log their command.
	DryRun bool
}

// View is one entry of the Available Set.
type View struct {
	Display string           `json:"display"`
	Outputs []string         `json:"outputs"`
	Mode    combination.Mode `json:"mode"`
	Active  bool             `json:"active"`
}

// Switcher owns the selection state. Every cycle and action runs under
// one mutex so reconcile, apply and fallback see a consistent snapshot.
type Switcher struct {
	mu sync.Mutex

	opts      Options
	cfg       *config.Config
	generator combination.Generator
	tracker   *selection.Tracker

	topo   *topology.Topology
	last   Status
	cycles int
}

// New returns a Switcher for cfg.
func New(cfg *config.Config, opts Options) *Switcher {
	if opts.Sleep == nil {
		opts.Sleep = workspace.Sleep
	}
	if opts.Refresher == nil {
		opts.Refresher = notify.Multi{}
	}
	seps := combination.Separators{Clone: cfg.FormatClone, Extend: cfg.FormatExtend}
	return &Switcher{
		opts:      opts,
		cfg:       cfg.Clone(),
		generator: combination.Generator{Separators: seps, Ordered: cfg.Ordered},
		tracker:   selection.New(seps, cfg.ForceOnStart),
	}
}

// SetConfig swaps in a reloaded configuration. A startup layout that is
// still pending takes the reloaded value; one that already fired is not
// re-armed.
func (s *Switcher) SetConfig(cfg *config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg = cfg.Clone()
	seps := combination.Separators{Clone: cfg.FormatClone, Extend: cfg.FormatExtend}
	s.generator = combination.Generator{Separators: seps, Ordered: cfg.Ordered}
	s.tracker.SetSeparators(seps)
	s.tracker.RetargetForceOnStart(cfg.ForceOnStart)
	logger.WithComponent("switcher").Info().Msg("Configuration updated")
}

// Cycle runs one full refresh-and-reconcile pass.
func (s *Switcher) Cycle(ctx context.Context) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycleLocked(ctx)
}

// HandleAction performs a user action followed by a cycle.
func (s *Switcher) HandleAction(ctx context.Context, a Action) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cycles == 0 {
		if _, err := s.cycleLocked(ctx); err != nil {
			return s.last, err
		}
	}

	log := logger.WithComponent("switcher")
	var err error
	switch a {
	case ActionNext:
		s.tracker.Rotate(1)
	case ActionPrevious:
		s.tracker.Rotate(-1)
	case ActionSelect:
		err = s.tracker.SelectHead()
	case ActionApply:
		_, err = s.tracker.Apply(ctx, false, s.apply)
	case ActionRefresh:
	default:
		return s.last, fmt.Errorf("%w: %q", ErrUnknownAction, a)
	}
	log.Debug().Str("action", string(a)).Str("displayed", s.tracker.Displayed()).Msg("Handled action")

	status, cerr := s.cycleLocked(ctx)
	if err == nil {
		err = cerr
	}
	return status, err
}

// Button handles an i3bar click.
func (s *Switcher) Button(ctx context.Context, button int) (Status, error) {
	return s.HandleAction(ctx, ButtonAction(button))
}

// SelectDisplay jumps the displayed layout to display without applying.
func (s *Switcher) SelectDisplay(ctx context.Context, display string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cycles == 0 {
		if _, err := s.cycleLocked(ctx); err != nil {
			return s.last, err
		}
	}
	if err := s.tracker.Select(display); err != nil {
		return s.last, fmt.Errorf("%w: %q", err, display)
	}
	return s.cycleLocked(ctx)
}

// ApplyDisplay selects display and applies it, even if it is already
// active.
func (s *Switcher) ApplyDisplay(ctx context.Context, display string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.cycleLocked(ctx); err != nil {
		return s.last, err
	}
	if err := s.tracker.Select(display); err != nil {
		return s.last, fmt.Errorf("%w: %q", err, display)
	}
	if _, err := s.tracker.Apply(ctx, true, s.apply); err != nil {
		return s.last, err
	}
	return s.cycleLocked(ctx)
}

// Snapshot returns the status of the last cycle.
func (s *Switcher) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Topology returns the last detected snapshot, nil before the first cycle.
func (s *Switcher) Topology() *topology.Topology {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topo
}

// Combinations lists the Available Set starting at the ring head.
func (s *Switcher) Combinations() []View {
	s.mu.Lock()
	defer s.mu.Unlock()

	ring := s.tracker.Ring()
	available := s.tracker.Available()
	views := make([]View, 0, len(available))
	for _, display := range available {
		c, _ := ring.Lookup(display)
		views = append(views, View{
			Display: display,
			Outputs: c.Outputs,
			Mode:    c.Mode,
			Active:  display == s.tracker.Active(),
		})
	}
	return views
}

func (s *Switcher) cycleLocked(ctx context.Context) (Status, error) {
	log := logger.WithComponent("switcher")

	topo, err := s.opts.Source.Detect(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to detect outputs")
		status := s.last
		status.Error = err.Error()
		s.publish(status)
		return status, fmt.Errorf("detect outputs: %w", err)
	}
	s.topo = topo
	s.cycles++

	s.tracker.InitActive(topo.ActiveIDs())
	s.tracker.Observe(s.generator.Generate(topo.ConnectedIDs()))

	if err := s.tracker.Reconcile(false); errors.Is(err, selection.ErrEmptyRing) {
		log.Warn().Err(combination.ErrNoOutputs).Msg("Nothing to display")
	} else if err != nil {
		log.Warn().Err(err).Str("displayed", s.tracker.Displayed()).Msg("Displayed layout unavailable")
	}

	if target := s.tracker.PendingForceOnStart(); !s.opts.DryRun && target != "" && s.tracker.Ring().Contains(target) {
		if err := s.opts.Sleep(ctx, s.cfg.StartDelay.Std()); err != nil {
			return s.last, err
		}
		fired, err := s.tracker.ForceOnStart(ctx, s.apply)
		if err != nil {
			log.Error().Err(err).Str("display", target).Msg("Failed to force startup layout")
		}
		if fired {
			s.opts.Refresher.Refresh(ctx)
		}
	}

	degraded := s.tracker.Drifted()
	if degraded {
		log.Warn().Str("active", s.tracker.Active()).Msg("Active layout is no longer available")
		if s.cfg.Fallback && !s.opts.DryRun {
			fired, err := s.tracker.FallbackCheck(ctx, s.apply)
			if err != nil {
				log.Error().Err(err).Msg("Fallback failed")
			}
			if fired {
				s.opts.Refresher.Refresh(ctx)
			}
		}
	}

	status := s.statusLocked(degraded)
	s.last = status
	s.publish(status)
	return status, nil
}

func (s *Switcher) statusLocked(degraded bool) Status {
	ring := s.tracker.Ring()
	displayed := s.tracker.Displayed()
	status := Status{
		Displayed: displayed,
		Active:    s.tracker.Active(),
		Degraded:  degraded,
		Available: s.tracker.Available(),
	}
	status.Class = classify(displayed, status.Active, ring.Contains, degraded)
	status.Color = Color(status.Class, s.cfg.Colors)

	text := displayed
	if ring.Empty() {
		text = noOutputsText
		status.Error = combination.ErrNoOutputs.Error()
	}
	if s.cfg.FixedWidth {
		text = Center(text, ring.MaxWidth())
	}
	status.FullText = text
	return status
}

func (s *Switcher) publish(status Status) {
	if s.opts.Publisher != nil {
		s.opts.Publisher.PublishStatus(status)
	}
}

// apply is the selection.ApplyFunc: synthesize, run, then move workspaces.
// Only the layout command decides success.
func (s *Switcher) apply(ctx context.Context, c combination.Combination) error {
	log := logger.WithComponent("switcher")
	display := combination.DisplayString(c.Outputs, c.Mode, s.generator.Separators)

	directives, err := command.Synthesize(s.topo.AllIDs(), c, s.cfg.Outputs)
	if err != nil {
		return err
	}
	if err := s.opts.Applier.Apply(ctx, directives); errors.Is(err, command.ErrDryRun) {
		return selection.ErrSkipped
	} else if err != nil {
		s.notify(ctx, "Display layout failed", display+": "+err.Error(), notify.UrgencyCritical)
		return err
	}
	log.Info().Str("display", display).Str("mode", string(c.Mode)).Msg("Layout applied")

	if s.opts.Reassigner != nil {
		plan := workspace.Plan(c, s.cfg.Outputs)
		if err := s.opts.Reassigner.Execute(ctx, plan); err != nil {
			log.Warn().Err(err).Msg("Workspace reassignment incomplete")
		}
	}
	s.notify(ctx, "Display layout applied", display, notify.UrgencyLow)
	return nil
}

func (s *Switcher) notify(ctx context.Context, summary, body string, urgency byte) {
	if s.opts.Notifier == nil || !s.cfg.Refresh.DesktopNotify {
		return
	}
	if err := s.opts.Notifier.Notify(ctx, summary, body, urgency); err != nil {
		logger.WithComponent("switcher").Warn().Err(err).Msg("Desktop notification failed")
	}
}
