package workspace

import (
	"context"
	"strings"

	"github.com/bryanchriswhite/ScreenCycler/internal/shell"
)

// I3 drives i3 through i3-msg.
type I3 struct {
	Runner shell.Runner
	Binary string
}

// NewI3 returns an i3 backend using the i3-msg binary on PATH.
func NewI3(runner shell.Runner) *I3 {
	return &I3{Runner: runner, Binary: "i3-msg"}
}

func (b *I3) SwitchWorkspace(ctx context.Context, workspace string) error {
	_, err := b.Runner.Run(ctx, b.Binary, "workspace "+quote(workspace))
	return err
}

func (b *I3) MoveWorkspaceToOutput(ctx context.Context, output string) error {
	_, err := b.Runner.Run(ctx, b.Binary, "move workspace to output "+quote(output))
	return err
}

func (b *I3) Name() string { return "i3" }

// quote wraps s in double quotes for the i3/sway command parser.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// Noop ignores every action.
type Noop struct{}

func (Noop) SwitchWorkspace(context.Context, string) error       { return nil }
func (Noop) MoveWorkspaceToOutput(context.Context, string) error { return nil }
func (Noop) Name() string                                        { return "none" }
