package bar

import (
	"context"
	"io"
	"time"

	"github.com/bryanchriswhite/ScreenCycler/internal/logger"
	"github.com/bryanchriswhite/ScreenCycler/internal/switcher"
)

// Controller is the part of the switcher the bar drives.
type Controller interface {
	Cycle(ctx context.Context) (switcher.Status, error)
	Button(ctx context.Context, button int) (switcher.Status, error)
}

// Loop redraws the status line every interval, after each click and on
// every refresh request.
type Loop struct {
	Controller Controller
	Sink       Sink
	// Clicks is read for click events when the sink wants them.
	Clicks io.Reader
	// Interval returns the current poll interval.
	Interval func() time.Duration
	// Refresh triggers an immediate cycle.
	Refresh <-chan struct{}
}

// Run blocks until ctx is done or the sink fails.
func (l *Loop) Run(ctx context.Context) error {
	log := logger.WithComponent("bar")
	if err := l.Sink.Start(); err != nil {
		return err
	}
	defer l.Sink.Stop()

	clicks := make(chan ClickEvent)
	if l.Sink.ClickEvents() && l.Clicks != nil {
		go func() {
			if err := ReadClicks(ctx, l.Clicks, clicks); err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Msg("Click event stream closed")
			}
		}()
	}

	write := func(status switcher.Status, err error) error {
		if err != nil {
			log.Debug().Err(err).Msg("Cycle reported an error")
		}
		return l.Sink.WriteStatus(status)
	}

	log.Info().Str("sink", l.Sink.Name()).Msg("Status line started")
	if err := write(l.Controller.Cycle(ctx)); err != nil {
		return err
	}

	timer := time.NewTimer(l.interval())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-clicks:
			if ev.Instance != "" && ev.Instance != BlockName {
				continue
			}
			log.Debug().Int("button", ev.Button).Msg("Click")
			if err := write(l.Controller.Button(ctx, ev.Button)); err != nil {
				return err
			}
		case <-l.Refresh:
			if err := write(l.Controller.Cycle(ctx)); err != nil {
				return err
			}
		case <-timer.C:
			if err := write(l.Controller.Cycle(ctx)); err != nil {
				return err
			}
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(l.interval())
	}
}

func (l *Loop) interval() time.Duration {
	if l.Interval == nil {
		return 10 * time.Second
	}
	if d := l.Interval(); d > 0 {
		return d
	}
	return 10 * time.Second
}
