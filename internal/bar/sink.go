// Package bar renders switcher status lines for status bars and feeds
// their click events back into the switcher.
package bar

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/pgaskin/barlib/barproto"

	"github.com/bryanchriswhite/ScreenCycler/internal/switcher"
)

// Sink defines the interface for status line outputs.
// This allows us to swap between different bar protocols:
// - i3bar/swaybar JSON
// - plain text lines (polybar, lemonbar, scripts)
type Sink interface {
	// Start writes any protocol preamble
	Start() error

	// WriteStatus renders one status line
	WriteStatus(status switcher.Status) error

	// Stop finishes the stream
	Stop() error

	// Name returns a human-readable name for this sink
	Name() string

	// ClickEvents reports whether the host sends click events on stdin
	ClickEvents() bool
}

// BlockName identifies this program's block in click events.
const BlockName = "screencycler"

// Header is the i3bar protocol header.
type Header struct {
	Version     int  `json:"version"`
	ClickEvents bool `json:"click_events"`
}

// BlockFor converts a status into a block. The block is tagged with
// BlockName as its instance so clicks can be routed back.
func BlockFor(status switcher.Status) barproto.Block {
	return barproto.Block{
		Instance:  BlockName,
		FullText:  status.FullText,
		Color:     ParseColor(status.Color),
		Separator: true,
	}
}

// ParseColor converts "#RRGGBB" or "#RRGGBBAA" into RGBA. Anything else,
// including the empty string, is 0 which leaves the bar's default color.
func ParseColor(hex string) uint32 {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 && len(hex) != 8 {
		return 0
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0
	}
	if len(hex) == 6 {
		v = v<<8 | 0xFF
	}
	return uint32(v)
}

// I3Bar writes the i3bar JSON protocol: a header line followed by an
// endless array of status lines.
type I3Bar struct {
	mu      sync.Mutex
	w       io.Writer
	started bool
	lines   int
	clicks  bool
}

// NewI3Bar returns an i3bar sink writing to w.
func NewI3Bar(w io.Writer, clickEvents bool) *I3Bar {
	return &I3Bar{w: w, clicks: clickEvents}
}

func (b *I3Bar) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return fmt.Errorf("i3bar sink already started")
	}
	header, err := json.Marshal(Header{Version: 1, ClickEvents: b.clicks})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(b.w, "%s\n[\n", header); err != nil {
		return err
	}
	b.started = true
	return nil
}

func (b *I3Bar) WriteStatus(status switcher.Status) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		return fmt.Errorf("i3bar sink not started")
	}
	line, err := json.Marshal([]barproto.Block{BlockFor(status)})
	if err != nil {
		return err
	}
	prefix := ""
	if b.lines > 0 {
		prefix = ","
	}
	if _, err := fmt.Fprintf(b.w, "%s%s\n", prefix, line); err != nil {
		return err
	}
	b.lines++
	return nil
}

func (b *I3Bar) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		return nil
	}
	b.started = false
	_, err := io.WriteString(b.w, "]\n")
	return err
}

func (b *I3Bar) Name() string { return "i3bar" }

func (b *I3Bar) ClickEvents() bool { return b.clicks }

// Plain writes the full text of every status on its own line.
type Plain struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPlain returns a plain text sink writing to w.
func NewPlain(w io.Writer) *Plain {
	return &Plain{w: w}
}

func (p *Plain) Start() error { return nil }

func (p *Plain) WriteStatus(status switcher.Status) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintln(p.w, status.FullText)
	return err
}

func (p *Plain) Stop() error { return nil }

func (p *Plain) Name() string { return "plain" }

func (p *Plain) ClickEvents() bool { return false }

// NewSink returns the sink for a protocol name.
func NewSink(protocol string, w io.Writer) (Sink, error) {
	switch protocol {
	case "i3bar", "swaybar", "":
		return NewI3Bar(w, true), nil
	case "plain":
		return NewPlain(w), nil
	}
	return nil, fmt.Errorf("unsupported bar protocol %q (use i3bar or plain)", protocol)
}
