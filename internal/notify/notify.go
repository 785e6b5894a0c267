// Package notify fans a refresh request out to whatever is drawing the
// current status: the in-process loop, an external bar process and any
// stream subscribers.
package notify

import (
	"context"
	"strings"

	"github.com/bryanchriswhite/ScreenCycler/internal/logger"
	"github.com/bryanchriswhite/ScreenCycler/internal/shell"
)

// Refresher asks a host to redraw now instead of waiting for its poll.
// Refresh is fire-and-forget; implementations log their own failures.
type Refresher interface {
	Refresh(ctx context.Context)
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context)

func (f RefresherFunc) Refresh(ctx context.Context) { f(ctx) }

// Multi refreshes every member in order.
type Multi []Refresher

func (m Multi) Refresh(ctx context.Context) {
	for _, r := range m {
		if r != nil {
			r.Refresh(ctx)
		}
	}
}

// Channel coalesces refresh requests for an in-process loop. Pending
// requests collapse into one.
type Channel struct {
	ch chan struct{}
}

// NewChannel returns an empty Channel.
func NewChannel() *Channel {
	return &Channel{ch: make(chan struct{}, 1)}
}

func (c *Channel) Refresh(context.Context) {
	select {
	case c.ch <- struct{}{}:
	default:
	}
}

// C is signalled once per batch of refresh requests.
func (c *Channel) C() <-chan struct{} { return c.ch }

// ProcessSignal signals a named process with killall.
type ProcessSignal struct {
	Runner  shell.Runner
	Process string
	Signal  string
	Binary  string
}

// NewProcessSignal returns a ProcessSignal, or nil when process is empty.
func NewProcessSignal(runner shell.Runner, process, signal string) *ProcessSignal {
	if process == "" {
		return nil
	}
	signal = strings.TrimPrefix(strings.ToUpper(signal), "SIG")
	if signal == "" {
		signal = "USR1"
	}
	return &ProcessSignal{Runner: runner, Process: process, Signal: signal, Binary: "killall"}
}

func (p *ProcessSignal) Refresh(ctx context.Context) {
	if p == nil {
		return
	}
	log := logger.WithComponent("notify")
	if _, err := p.Runner.Run(ctx, p.Binary, "-s", p.Signal, p.Process); err != nil {
		log.Warn().Err(err).Str("process", p.Process).Str("signal", p.Signal).Msg("Failed to signal process")
		return
	}
	log.Debug().Str("process", p.Process).Str("signal", p.Signal).Msg("Signalled process")
}
