// Package workspace moves configured workspaces onto the outputs of a
// freshly applied extended layout.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bryanchriswhite/ScreenCycler/internal/combination"
	"github.com/bryanchriswhite/ScreenCycler/internal/config"
	"github.com/bryanchriswhite/ScreenCycler/internal/logger"
)

// Kind is the type of a reassignment action.
type Kind string

const (
	// Switch focuses a workspace.
	Switch Kind = "switch"
	// Move moves the focused workspace to an output.
	Move Kind = "move"
)

// Action is one window-manager command.
type Action struct {
	Kind      Kind   `json:"kind"`
	Workspace string `json:"workspace"`
	Output    string `json:"output,omitempty"`
}

func (a Action) String() string {
	if a.Kind == Move {
		return fmt.Sprintf("move workspace %s to output %s", a.Workspace, a.Output)
	}
	return "workspace " + a.Workspace
}

// Plan returns the ordered switch/move pairs for an applied combination.
// Only extended layouts of two or more outputs are planned; clone and
// single layouts yield nothing.
func Plan(c combination.Combination, hints config.Hints) []Action {
	if c.Mode != combination.Extend || len(c.Outputs) < 2 {
		return nil
	}
	var actions []Action
	for _, output := range c.Outputs {
		for _, ws := range hints.Workspaces(output) {
			actions = append(actions,
				Action{Kind: Switch, Workspace: ws},
				Action{Kind: Move, Workspace: ws, Output: output},
			)
		}
	}
	return actions
}

// Backend talks to the window manager.
type Backend interface {
	// SwitchWorkspace focuses the named workspace
	SwitchWorkspace(ctx context.Context, workspace string) error

	// MoveWorkspaceToOutput moves the focused workspace to output
	MoveWorkspaceToOutput(ctx context.Context, output string) error

	// Name returns the backend name (e.g., "i3", "sway")
	Name() string
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Reassigner executes plans after a settling delay.
type Reassigner struct {
	Backend     Backend
	SettleDelay time.Duration
	Sleep       SleepFunc
}

// NewReassigner returns a Reassigner using the real clock.
func NewReassigner(backend Backend, settle time.Duration) *Reassigner {
	return &Reassigner{Backend: backend, SettleDelay: settle, Sleep: Sleep}
}

// Execute waits once for the layout change to settle and then runs every
// action in order. A failing action is logged and the rest still run.
func (r *Reassigner) Execute(ctx context.Context, actions []Action) error {
	if len(actions) == 0 || r.Backend == nil {
		return nil
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	if err := sleep(ctx, r.SettleDelay); err != nil {
		return err
	}

	log := logger.WithComponent("workspace")
	var errs []error
	for _, a := range actions {
		var err error
		switch a.Kind {
		case Switch:
			err = r.Backend.SwitchWorkspace(ctx, a.Workspace)
		case Move:
			err = r.Backend.MoveWorkspaceToOutput(ctx, a.Output)
		}
		if err != nil {
			log.Warn().Err(err).Str("backend", r.Backend.Name()).Str("action", a.String()).Msg("Workspace action failed")
			errs = append(errs, err)
			continue
		}
		if a.Kind == Move {
			logger.WithOutput("workspace", a.Output).Info().Str("workspace", a.Workspace).Msg("Moved workspace to output")
		}
	}
	return errors.Join(errs...)
}
