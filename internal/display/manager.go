// Package display reads output topology straight from the X server's RandR
// extension and reports hotplug events.
package display

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/bryanchriswhite/ScreenCycler/internal/logger"
	"github.com/bryanchriswhite/ScreenCycler/internal/notify"
	"github.com/bryanchriswhite/ScreenCycler/internal/topology"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("display connection closed")

// Manager owns an X connection with RandR initialised.
type Manager struct {
	conn     *xgb.Conn
	root     xproto.Window
	mu       sync.RWMutex
	closed   bool
	watching bool
}

// NewManager connects to the X display named by display, or $DISPLAY when
// it is empty.
func NewManager(display string) (*Manager, error) {
	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}
	if err := randr.Init(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialise RandR: %w", err)
	}

	setup := xproto.Setup(conn)
	m := &Manager{
		conn: conn,
		root: setup.DefaultScreen(conn).Root,
	}
	return m, nil
}

// Close drops the X connection; a running Watch returns.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	m.conn.Close()
	logger.WithComponent("display").Debug().Msg("X connection closed")
}

// outputRecord is the subset of RandR output state a topology needs.
type outputRecord struct {
	Name       string
	Connection byte
	HasMode    bool
	Width      uint16
	Height     uint16
	X          int16
	Y          int16
	MmWidth    uint32
	MmHeight   uint32
	Primary    bool
}

// buildTopology converts RandR records, in server order, to a snapshot.
// Outputs whose connection state is unknown are skipped.
func buildTopology(records []outputRecord) *topology.Topology {
	topo := &topology.Topology{}
	for _, r := range records {
		o := topology.Output{ID: r.Name, Primary: r.Primary}
		switch r.Connection {
		case randr.ConnectionConnected:
			o.State = topology.Connected
			if r.HasMode {
				o.Mode = fmt.Sprintf("%dx%d%+d%+d", r.Width, r.Height, r.X, r.Y)
			}
			if r.MmWidth > 0 || r.MmHeight > 0 {
				o.Info = fmt.Sprintf("%dmm x %dmm", r.MmWidth, r.MmHeight)
			}
		case randr.ConnectionDisconnected:
			o.State = topology.Disconnected
		default:
			continue
		}
		topo.Add(o)
	}
	return topo
}

// Detect implements topology.Source.
func (m *Manager) Detect(ctx context.Context) (*topology.Topology, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	resources, err := randr.GetScreenResources(m.conn, m.root).Reply()
	if err != nil {
		return nil, fmt.Errorf("get screen resources: %w", err)
	}
	primary, err := randr.GetOutputPrimary(m.conn, m.root).Reply()
	if err != nil {
		return nil, fmt.Errorf("get primary output: %w", err)
	}

	records := make([]outputRecord, 0, len(resources.Outputs))
	for _, output := range resources.Outputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := randr.GetOutputInfo(m.conn, output, resources.ConfigTimestamp).Reply()
		if err != nil {
			return nil, fmt.Errorf("get output info: %w", err)
		}
		r := outputRecord{
			Name:       string(info.Name),
			Connection: info.Connection,
			MmWidth:    info.MmWidth,
			MmHeight:   info.MmHeight,
			Primary:    output == primary.Output,
		}
		if info.Crtc != 0 {
			crtc, err := randr.GetCrtcInfo(m.conn, info.Crtc, resources.ConfigTimestamp).Reply()
			if err != nil {
				return nil, fmt.Errorf("get crtc info for %s: %w", r.Name, err)
			}
			if crtc.Mode != 0 {
				r.HasMode = true
				r.Width, r.Height = crtc.Width, crtc.Height
				r.X, r.Y = crtc.X, crtc.Y
			}
		}
		records = append(records, r)
	}
	return buildTopology(records), nil
}

// Watch subscribes to RandR output and CRTC changes and refreshes r on
// each one until ctx is done or the connection drops.
func (m *Manager) Watch(ctx context.Context, r notify.Refresher) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.watching {
		m.mu.Unlock()
		return fmt.Errorf("display watch already running")
	}
	m.watching = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.watching = false
		m.mu.Unlock()
	}()

	const mask = randr.NotifyMaskOutputChange | randr.NotifyMaskCrtcChange | randr.NotifyMaskScreenChange
	if err := randr.SelectInputChecked(m.conn, m.root, mask).Check(); err != nil {
		return fmt.Errorf("failed to select RandR input: %w", err)
	}

	log := logger.WithComponent("display")
	events := make(chan xgb.Event)
	errs := make(chan error, 1)
	go func() {
		for {
			ev, err := m.conn.WaitForEvent()
			if ev == nil && err == nil {
				errs <- ErrClosed
				return
			}
			if err != nil {
				log.Debug().Err(err).Msg("X error while watching")
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info().Msg("Watching for output changes")
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errs:
			return err
		case ev := <-events:
			if !isTopologyEvent(ev) {
				continue
			}
			log.Debug().Str("event", ev.String()).Msg("Output change")
			r.Refresh(ctx)
		}
	}
}

func isTopologyEvent(ev xgb.Event) bool {
	switch ev.(type) {
	case randr.NotifyEvent, randr.ScreenChangeNotifyEvent:
		return true
	}
	return false
}
