package bar

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/bryanchriswhite/ScreenCycler/internal/logger"
)

// ClickEvent is one click reported by i3bar on stdin.
type ClickEvent struct {
	Name      string   `json:"name"`
	Instance  string   `json:"instance"`
	Button    int      `json:"button"`
	X         int      `json:"x"`
	Y         int      `json:"y"`
	Modifiers []string `json:"modifiers"`
}

// ReadClicks decodes the endless click event array from r and sends each
// event to out until r ends or ctx is done. Lines that do not decode are
// logged and skipped.
func ReadClicks(ctx context.Context, r io.Reader, out chan<- ClickEvent) error {
	log := logger.WithComponent("bar")
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		line = bytes.TrimLeft(line, "[,")
		line = bytes.TrimSpace(line)
		if len(line) == 0 || bytes.Equal(line, []byte("]")) {
			continue
		}

		var ev ClickEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			log.Warn().Err(err).Str("line", string(line)).Msg("Ignoring malformed click event")
			continue
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return scanner.Err()
}
