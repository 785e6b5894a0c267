// Package topology holds the per-cycle snapshot of connected and
// disconnected outputs and the sources that produce it.
package topology

import "context"

// State is the connectivity of an output.
type State string

const (
	Connected    State = "connected"
	Disconnected State = "disconnected"
)

// Output is one display connector as reported by the topology source.
type Output struct {
	ID      string `json:"id"`
	State   State  `json:"state"`
	Mode    string `json:"mode,omitempty"` // empty when no mode is set
	Info    string `json:"info,omitempty"`
	Primary bool   `json:"primary,omitempty"`
}

// Active reports whether the output currently has a mode set.
func (o Output) Active() bool {
	return o.State == Connected && o.Mode != ""
}

// Topology is an immutable snapshot of outputs in detection order.
type Topology struct {
	Connected    []Output `json:"connected"`
	Disconnected []Output `json:"disconnected"`
}

// Source produces a fresh Topology each cycle.
type Source interface {
	Detect(ctx context.Context) (*Topology, error)
}

// Add appends an output to the list matching its state.
func (t *Topology) Add(o Output) {
	switch o.State {
	case Connected:
		t.Connected = append(t.Connected, o)
	case Disconnected:
		t.Disconnected = append(t.Disconnected, o)
	}
}

// ConnectedIDs returns connected output ids in detection order.
func (t *Topology) ConnectedIDs() []string {
	ids := make([]string, 0, len(t.Connected))
	for _, o := range t.Connected {
		ids = append(ids, o.ID)
	}
	return ids
}

// AllIDs returns connected then disconnected output ids, each in
// detection order.
func (t *Topology) AllIDs() []string {
	ids := make([]string, 0, len(t.Connected)+len(t.Disconnected))
	ids = append(ids, t.ConnectedIDs()...)
	for _, o := range t.Disconnected {
		ids = append(ids, o.ID)
	}
	return ids
}

// ActiveIDs returns the connected outputs that carry a mode.
func (t *Topology) ActiveIDs() []string {
	var ids []string
	for _, o := range t.Connected {
		if o.Active() {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

// Lookup finds an output by id in either list.
func (t *Topology) Lookup(id string) (Output, bool) {
	for _, o := range t.Connected {
		if o.ID == id {
			return o, true
		}
	}
	for _, o := range t.Disconnected {
		if o.ID == id {
			return o, true
		}
	}
	return Output{}, false
}
