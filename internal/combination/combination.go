// Package combination enumerates every clone/extend layout that can be
// built from the connected outputs.
package combination

import (
	"errors"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/bryanchriswhite/ScreenCycler/internal/logger"
)

// ErrNoOutputs is reported when a cycle sees no connected output.
var ErrNoOutputs = errors.New("no connected outputs")

// Mode is how the outputs of a combination share the desktop.
type Mode string

const (
	Single Mode = "single"
	Clone  Mode = "clone"
	Extend Mode = "extend"
)

// Combination is an ordered subset of connected outputs with a mode.
type Combination struct {
	Outputs []string `json:"outputs"`
	Mode    Mode     `json:"mode"`
}

// Contains reports whether id is part of the combination.
func (c Combination) Contains(id string) bool {
	for _, o := range c.Outputs {
		if o == id {
			return true
		}
	}
	return false
}

// Separators are the strings placed between output ids per mode.
type Separators struct {
	Clone  string
	Extend string
}

// DefaultSeparators are "=" for clone and "+" for extend.
var DefaultSeparators = Separators{Clone: "=", Extend: "+"}

// For returns the separator of a mode. Single has none.
func (s Separators) For(mode Mode) string {
	switch mode {
	case Clone:
		return s.Clone
	case Extend:
		return s.Extend
	default:
		return ""
	}
}

// DisplayString renders outputs joined by the separator of mode, with any
// trailing separator stripped.
func DisplayString(outputs []string, mode Mode, seps Separators) string {
	sep := seps.For(mode)
	show := strings.Join(outputs, sep)
	if sep == "" {
		return show
	}
	for strings.HasSuffix(show, sep) {
		show = strings.TrimSuffix(show, sep)
	}
	return show
}

// Width is the terminal cell width of a display string.
func Width(s string) int {
	return runewidth.StringWidth(s)
}

// Generator builds the Available Set of a cycle.
type Generator struct {
	Separators Separators
	// Ordered emits every ordering of each multi-output subset instead of
	// only the detection-order one.
	Ordered bool
}

// Set is one cycle's Available Set in ring order plus its lookup table.
type Set struct {
	strings  []string
	lookup   map[string]Combination
	maxWidth int
}

// Generate enumerates every non-empty subset of connected, smallest
// subsets first. Subsets of two or more outputs yield extend then clone
// combinations; single outputs yield one Single combination.
func (g Generator) Generate(connected []string) *Set {
	set := &Set{lookup: make(map[string]Combination)}
	n := len(connected)
	for size := 1; size <= n; size++ {
		forEachSubset(n, size, func(idx []int) {
			subset := make([]string, len(idx))
			for i, j := range idx {
				subset[i] = connected[j]
			}
			if size == 1 {
				set.add(Combination{Outputs: subset, Mode: Single}, g.Separators)
				return
			}
			orders := [][]string{subset}
			if g.Ordered {
				orders = permutations(subset)
			}
			for _, mode := range []Mode{Extend, Clone} {
				for _, order := range orders {
					set.add(Combination{Outputs: order, Mode: mode}, g.Separators)
				}
			}
		})
	}
	return set
}

func (s *Set) add(c Combination, seps Separators) {
	display := DisplayString(c.Outputs, c.Mode, seps)
	if prev, ok := s.lookup[display]; ok {
		logger.WithComponent("combination").Warn().
			Str("display", display).
			Strs("kept", prev.Outputs).
			Strs("dropped", c.Outputs).
			Msg("Display string collision, output ids contain a separator")
		return
	}
	s.lookup[display] = c
	s.strings = append(s.strings, display)
	if w := Width(display); w > s.maxWidth {
		s.maxWidth = w
	}
}

// Len is the number of distinct display strings.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.strings)
}

// Empty reports whether no combination is available.
func (s *Set) Empty() bool { return s.Len() == 0 }

// Strings returns the display strings in ring order.
func (s *Set) Strings() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.strings...)
}

// At returns the display string at ring position i.
func (s *Set) At(i int) string { return s.strings[i] }

// Index returns the ring position of display, or -1.
func (s *Set) Index(display string) int {
	if s == nil {
		return -1
	}
	for i, d := range s.strings {
		if d == display {
			return i
		}
	}
	return -1
}

// Contains reports whether display is available this cycle.
func (s *Set) Contains(display string) bool {
	if s == nil {
		return false
	}
	_, ok := s.lookup[display]
	return ok
}

// Lookup maps a display string back to its combination.
func (s *Set) Lookup(display string) (Combination, bool) {
	if s == nil {
		return Combination{}, false
	}
	c, ok := s.lookup[display]
	return c, ok
}

// MaxWidth is the widest display string generated this cycle.
func (s *Set) MaxWidth() int {
	if s == nil {
		return 0
	}
	return s.maxWidth
}

// forEachSubset calls fn with every k-sized index subset of [0,n) in
// lexicographic order.
func forEachSubset(n, k int, fn func([]int)) {
	if k > n || k <= 0 {
		return
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		fn(append([]int(nil), idx...))
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

// permutations returns every ordering of items in lexicographic order of
// their positions.
func permutations(items []string) [][]string {
	if len(items) <= 1 {
		return [][]string{append([]string(nil), items...)}
	}
	var out [][]string
	for i := range items {
		rest := make([]string, 0, len(items)-1)
		rest = append(rest, items[:i]...)
		rest = append(rest, items[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]string{items[i]}, p...))
		}
	}
	return out
}
