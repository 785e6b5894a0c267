package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/bryanchriswhite/ScreenCycler/internal/logger"
)

const (
	notificationsService   = "org.freedesktop.Notifications"
	notificationsPath      = "/org/freedesktop/Notifications"
	notificationsInterface = "org.freedesktop.Notifications"

	appName       = "screencycler"
	expireTimeout = int32(5000)
)

// Urgency levels understood by freedesktop notification daemons.
const (
	UrgencyLow      byte = 0
	UrgencyNormal   byte = 1
	UrgencyCritical byte = 2
)

// Notifier shows a user-visible message.
type Notifier interface {
	Notify(ctx context.Context, summary, body string, urgency byte) error
}

// Desktop posts notifications on the session bus.
type Desktop struct {
	mu     sync.Mutex
	conn   *dbus.Conn
	lastID uint32
}

// NewDesktop returns a Desktop notifier that connects on first use.
func NewDesktop() *Desktop {
	return &Desktop{}
}

func (d *Desktop) connect() (*dbus.Conn, error) {
	if d.conn != nil {
		return d.conn, nil
	}
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	d.conn = conn
	return conn, nil
}

// Notify replaces the previous notification from this process, if any.
func (d *Desktop) Notify(ctx context.Context, summary, body string, urgency byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	conn, err := d.connect()
	if err != nil {
		return err
	}

	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(urgency),
	}
	obj := conn.Object(notificationsService, dbus.ObjectPath(notificationsPath))
	call := obj.CallWithContext(ctx, notificationsInterface+".Notify", 0,
		appName, d.lastID, "video-display", summary, body, []string{}, hints, expireTimeout)

	var id uint32
	if err := call.Store(&id); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	d.lastID = id
	logger.WithComponent("notify").Debug().Uint32("id", id).Str("summary", summary).Msg("Posted desktop notification")
	return nil
}

// Close releases the bus connection.
func (d *Desktop) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}
