// Package command turns a combination into the ordered per-output
// directives of one xrandr invocation.
package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bryanchriswhite/ScreenCycler/internal/combination"
	"github.com/bryanchriswhite/ScreenCycler/internal/config"
	"github.com/bryanchriswhite/ScreenCycler/internal/logger"
	"github.com/bryanchriswhite/ScreenCycler/internal/shell"
)

// ErrUnknownOutput means a combination names an output the topology lacks.
var ErrUnknownOutput = errors.New("combination references unknown output")

// ErrDryRun is returned by a dry-run Applier; the hardware was not touched.
var ErrDryRun = errors.New("dry run, layout not applied")

// Kind is what a directive does to its output.
type Kind string

const (
	// Off disables the output.
	Off Kind = "off"
	// Absolute enables the output at fixed coordinates.
	Absolute Kind = "absolute"
	// Relative enables the output next to another one.
	Relative Kind = "relative"
	// SameAs mirrors the output from the previous one in the combination.
	SameAs Kind = "same-as"
)

var relations = []string{"above", "below", "left-of", "right-of"}

// Directive configures exactly one output.
type Directive struct {
	Output string `json:"output"`
	Kind   Kind   `json:"kind"`
	// Position is the coordinate string of Absolute directives.
	Position string `json:"position,omitempty"`
	// Relation and Anchor describe Relative directives, e.g. left-of eDP1.
	Relation string `json:"relation,omitempty"`
	Anchor   string `json:"anchor,omitempty"`
	// Source is the output mirrored by SameAs directives.
	Source string `json:"source,omitempty"`
}

// Args renders the directive as xrandr arguments.
func (d Directive) Args() []string {
	args := []string{"--output", d.Output}
	switch d.Kind {
	case Off:
		return append(args, "--off")
	case SameAs:
		return append(args, "--auto", "--same-as", d.Source)
	case Relative:
		args = append(args, "--auto", "--"+d.Relation)
		if d.Anchor != "" {
			args = append(args, strings.Fields(d.Anchor)...)
		}
		return append(args, "--rotate", "normal")
	default:
		return append(args, "--auto", "--pos", d.Position, "--rotate", "normal")
	}
}

func (d Directive) String() string {
	switch d.Kind {
	case Off:
		return d.Output + " off"
	case SameAs:
		return fmt.Sprintf("%s same-as %s auto", d.Output, d.Source)
	case Relative:
		return fmt.Sprintf("%s auto %s %s", d.Output, d.Relation, d.Anchor)
	default:
		return fmt.Sprintf("%s auto pos %s", d.Output, d.Position)
	}
}

// Synthesize builds one directive per output in outputs (connected then
// disconnected, in detection order). Outputs outside the combination are
// turned off. In clone mode every member after the first mirrors the
// member processed before it.
func Synthesize(outputs []string, c combination.Combination, hints config.Hints) ([]Directive, error) {
	known := make(map[string]bool, len(outputs))
	for _, o := range outputs {
		known[o] = true
	}
	for _, o := range c.Outputs {
		if !known[o] {
			return nil, fmt.Errorf("%w: %s", ErrUnknownOutput, o)
		}
	}

	directives := make([]Directive, 0, len(outputs))
	previous := ""
	for _, output := range outputs {
		if !c.Contains(output) {
			directives = append(directives, Directive{Output: output, Kind: Off})
			continue
		}
		switch {
		case c.Mode == combination.Clone && previous != "":
			directives = append(directives, Directive{Output: output, Kind: SameAs, Source: previous})
		default:
			directives = append(directives, positioned(output, hints.Position(output)))
		}
		previous = output
	}
	return directives, nil
}

func positioned(output, pos string) Directive {
	for _, rel := range relations {
		if !strings.Contains(pos, rel) {
			continue
		}
		fields := strings.Fields(pos)
		relation := strings.TrimPrefix(fields[0], "--")
		return Directive{
			Output:   output,
			Kind:     Relative,
			Relation: relation,
			Anchor:   strings.Join(fields[1:], " "),
		}
	}
	return Directive{Output: output, Kind: Absolute, Position: pos}
}

// Args flattens directives into one xrandr argument list.
func Args(directives []Directive) []string {
	var args []string
	for _, d := range directives {
		args = append(args, d.Args()...)
	}
	return args
}

// Applier runs xrandr with synthesized directives.
type Applier struct {
	Runner shell.Runner
	Binary string
	// DryRun logs the command without running it.
	DryRun bool
}

// NewApplier returns an Applier for the xrandr binary on PATH.
func NewApplier(runner shell.Runner) *Applier {
	return &Applier{Runner: runner, Binary: "xrandr"}
}

// Apply runs one xrandr invocation for all directives. The attempt is
// logged with its exact arguments and exit status.
func (a *Applier) Apply(ctx context.Context, directives []Directive) error {
	args := Args(directives)
	log := logger.WithComponent("apply")
	if a.DryRun {
		log.Info().Str("binary", a.Binary).Strs("args", args).Msg("Dry run, not applying layout")
		return ErrDryRun
	}

	start := time.Now()
	_, err := a.Runner.Run(ctx, a.Binary, args...)
	code := 0
	if err != nil {
		code = -1
		var exitErr *shell.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.Code
		}
	}
	event := log.Info()
	if err != nil {
		event = log.Error().Err(err)
	}
	event.Str("binary", a.Binary).
		Strs("args", args).
		Int("exit_code", code).
		Dur("took", time.Since(start)).
		Msg("Applied layout command")
	if err != nil {
		return fmt.Errorf("apply layout: %w", err)
	}
	return nil
}
