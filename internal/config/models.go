package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPosition is used for outputs without a position hint.
const DefaultPosition = "0x0"

// Topology sources
const (
	SourceXrandr = "xrandr"
	SourceRandR  = "randr"
)

// Workspace backends
const (
	BackendI3   = "i3"
	BackendSway = "sway"
	BackendNone = "none"
)

// Duration is a time.Duration that reads and writes as "10s" in YAML.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML accepts "1m30s" style strings and bare seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON renders the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", time.Duration(d).String())), nil
}

// UnmarshalJSON accepts the same forms as UnmarshalYAML.
func (d *Duration) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDuration accepts Go duration syntax or a bare number of seconds.
func ParseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if dur, err := time.ParseDuration(s); err == nil {
		return Duration(dur), nil
	}
	var secs float64
	if _, err := fmt.Sscanf(s, "%g", &secs); err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return Duration(secs * float64(time.Second)), nil
}

// OutputHint holds per-output placement hints.
type OutputHint struct {
	// Position is "WxH"-style coordinates ("-2560x0") or a relation
	// such as "left-of eDP1".
	Position string `json:"position,omitempty" yaml:"position,omitempty"`
	// Workspaces is a comma separated list moved to the output when it
	// becomes part of an extended layout.
	Workspaces string `json:"workspaces,omitempty" yaml:"workspaces,omitempty"`
}

// Hints maps output ids to their hints.
type Hints map[string]OutputHint

// Position returns the position hint of id, DefaultPosition when unset.
func (h Hints) Position(id string) string {
	if p := strings.TrimSpace(h[id].Position); p != "" {
		return p
	}
	return DefaultPosition
}

// Workspaces returns the non-empty workspace names configured for id.
func (h Hints) Workspaces(id string) []string {
	var out []string
	for _, ws := range strings.Split(h[id].Workspaces, ",") {
		if ws = strings.TrimSpace(ws); ws != "" {
			out = append(out, ws)
		}
	}
	return out
}

// RefreshConfig controls who is told to redraw after a layout change.
type RefreshConfig struct {
	// Process is signalled on refresh (e.g. "py3status"); empty disables.
	Process       string `json:"process" yaml:"process"`
	Signal        string `json:"signal" yaml:"signal"`
	DesktopNotify bool   `json:"desktop_notify" yaml:"desktop_notify"`
}

// ColorConfig holds the status line colors.
type ColorConfig struct {
	Good     string `json:"good" yaml:"good"`
	Degraded string `json:"degraded" yaml:"degraded"`
	Bad      string `json:"bad" yaml:"bad"`
}

// Config represents the application configuration
type Config struct {
	LogLevel     string   `json:"log_level" yaml:"log_level"`
	PollInterval Duration `json:"poll_interval" yaml:"poll_interval"`

	Fallback     bool   `json:"fallback" yaml:"fallback"`
	FixedWidth   bool   `json:"fixed_width" yaml:"fixed_width"`
	ForceOnStart string `json:"force_on_start" yaml:"force_on_start"`
	FormatClone  string `json:"format_clone" yaml:"format_clone"`
	FormatExtend string `json:"format_extend" yaml:"format_extend"`
	Ordered      bool   `json:"ordered" yaml:"ordered"`

	TopologySource   string   `json:"topology_source" yaml:"topology_source"`
	WorkspaceBackend string   `json:"workspace_backend" yaml:"workspace_backend"`
	SettleDelay      Duration `json:"settle_delay" yaml:"settle_delay"`
	StartDelay       Duration `json:"start_delay" yaml:"start_delay"`

	Refresh    RefreshConfig `json:"refresh" yaml:"refresh"`
	Colors     ColorConfig   `json:"colors" yaml:"colors"`
	ServerPort int           `json:"server_port" yaml:"server_port"`

	Outputs Hints `json:"outputs" yaml:"outputs"`
}

// Defaults returns the default configuration
func Defaults() *Config {
	return &Config{
		LogLevel:         "info",
		PollInterval:     Duration(10 * time.Second),
		Fallback:         true,
		FixedWidth:       true,
		FormatClone:      "=",
		FormatExtend:     "+",
		Ordered:          true,
		TopologySource:   SourceXrandr,
		WorkspaceBackend: BackendI3,
		SettleDelay:      Duration(3 * time.Second),
		StartDelay:       Duration(time.Second),
		Refresh: RefreshConfig{
			Signal: "USR1",
		},
		Colors: ColorConfig{
			Good:     "#00FF00",
			Degraded: "#FFFF00",
			Bad:      "#FF0000",
		},
		ServerPort: 8080,
		Outputs:    Hints{},
	}
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	cp := *c
	cp.Outputs = make(Hints, len(c.Outputs))
	for k, v := range c.Outputs {
		cp.Outputs[k] = v
	}
	return &cp
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.SettleDelay < 0 || c.StartDelay < 0 {
		return fmt.Errorf("settle_delay and start_delay must not be negative")
	}
	if c.FormatClone == "" || c.FormatExtend == "" {
		return fmt.Errorf("format_clone and format_extend must not be empty")
	}
	if c.FormatClone == c.FormatExtend {
		return fmt.Errorf("format_clone and format_extend must differ, both are %q", c.FormatClone)
	}
	switch c.TopologySource {
	case SourceXrandr, SourceRandR:
	default:
		return fmt.Errorf("unsupported topology_source %q (use %s or %s)", c.TopologySource, SourceXrandr, SourceRandR)
	}
	switch c.WorkspaceBackend {
	case BackendI3, BackendSway, BackendNone:
	default:
		return fmt.Errorf("unsupported workspace_backend %q (use %s, %s or %s)", c.WorkspaceBackend, BackendI3, BackendSway, BackendNone)
	}
	if c.ServerPort < 0 || c.ServerPort > 65535 {
		return fmt.Errorf("server_port out of range: %d", c.ServerPort)
	}
	return nil
}
