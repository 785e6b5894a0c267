package topology

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/bryanchriswhite/ScreenCycler/internal/logger"
	"github.com/bryanchriswhite/ScreenCycler/internal/shell"
)

// ParseError describes an xrandr header line that could not be decoded.
type ParseError struct {
	LineNo int
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.LineNo, e.Reason, e.Line)
}

// Parse decodes `xrandr --query` output. Malformed output records are
// skipped and returned as ParseErrors; everything else is kept.
func Parse(text string) (*Topology, []*ParseError) {
	topo := &Topology{}
	var errs []*ParseError

	scanner := bufio.NewScanner(strings.NewReader(text))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		out, ok, err := parseLine(line)
		if err != nil {
			err.LineNo = lineNo
			errs = append(errs, err)
			continue
		}
		if ok {
			topo.Add(out)
		}
	}
	return topo, errs
}

// parseLine returns ok=false for lines that are not output headers.
func parseLine(line string) (Output, bool, *ParseError) {
	// mode lines are indented
	if line == "" || line[0] == ' ' || line[0] == '\t' {
		return Output{}, false, nil
	}
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Output{}, false, nil
	}

	id, state := fields[0], fields[1]
	switch state {
	case string(Connected):
		rest := fields[2:]
		out := Output{ID: id, State: Connected}
		if len(rest) > 0 && rest[0] == "primary" {
			out.Primary = true
			rest = rest[1:]
		}
		if len(rest) == 0 {
			return Output{}, false, &ParseError{Line: line, Reason: "connected output without mode or info"}
		}
		if !strings.HasPrefix(rest[0], "(") {
			if !looksLikeGeometry(rest[0]) {
				return Output{}, false, &ParseError{Line: line, Reason: "unrecognised mode descriptor"}
			}
			out.Mode = rest[0]
			rest = rest[1:]
		}
		out.Info = strings.Join(rest, " ")
		return out, true, nil
	case string(Disconnected):
		return Output{
			ID:    id,
			State: Disconnected,
			Info:  strings.Join(fields[2:], " "),
		}, true, nil
	default:
		return Output{}, false, nil
	}
}

// looksLikeGeometry accepts WxH+X+Y descriptors.
func looksLikeGeometry(s string) bool {
	var w, h, x, y int
	n, err := fmt.Sscanf(s, "%dx%d%d%d", &w, &h, &x, &y)
	return err == nil && n == 4
}

// XrandrSource detects the topology by running xrandr.
type XrandrSource struct {
	Runner shell.Runner
	Binary string
}

// NewXrandrSource returns a source that runs the xrandr binary on PATH.
func NewXrandrSource(runner shell.Runner) *XrandrSource {
	return &XrandrSource{Runner: runner, Binary: "xrandr"}
}

func (s *XrandrSource) Detect(ctx context.Context) (*Topology, error) {
	out, err := s.Runner.Run(ctx, s.Binary, "--query")
	if err != nil {
		return nil, fmt.Errorf("query outputs: %w", err)
	}
	topo, errs := Parse(string(out))
	for _, perr := range errs {
		logger.WithComponent("topology").Warn().
			Int("line_no", perr.LineNo).
			Str("line", perr.Line).
			Str("reason", perr.Reason).
			Msg("Skipping malformed output record")
	}
	return topo, nil
}
