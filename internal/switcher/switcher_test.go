package switcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/bryanchriswhite/ScreenCycler/internal/combination"
	"github.com/bryanchriswhite/ScreenCycler/internal/command"
	"github.com/bryanchriswhite/ScreenCycler/internal/config"
	"github.com/bryanchriswhite/ScreenCycler/internal/notify"
	"github.com/bryanchriswhite/ScreenCycler/internal/selection"
	"github.com/bryanchriswhite/ScreenCycler/internal/topology"
	"github.com/bryanchriswhite/ScreenCycler/internal/workspace"
)

type fakeSource struct {
	topo *topology.Topology
	err  error
}

func (f *fakeSource) Detect(context.Context) (*topology.Topology, error) {
	return f.topo, f.err
}

type fakeApplier struct {
	calls [][]command.Directive
	err   error
}

func (f *fakeApplier) Apply(_ context.Context, ds []command.Directive) error {
	f.calls = append(f.calls, ds)
	return f.err
}

type countingRefresher struct{ n int }

func (c *countingRefresher) Refresh(context.Context) { c.n++ }

type recordingPublisher struct{ statuses []Status }

func (r *recordingPublisher) PublishStatus(status any) {
	r.statuses = append(r.statuses, status.(Status))
}

type recordingNotifier struct{ summaries []string }

func (r *recordingNotifier) Notify(_ context.Context, summary, _ string, _ byte) error {
	r.summaries = append(r.summaries, summary)
	return nil
}

func laptopWithMonitor(monitorActive bool) *topology.Topology {
	topo := &topology.Topology{}
	topo.Add(topology.Output{ID: "eDP1", State: topology.Connected, Mode: "1920x1080+0+0"})
	dp := topology.Output{ID: "DP1", State: topology.Connected}
	if monitorActive {
		dp.Mode = "2560x1440+1920+0"
	}
	topo.Add(dp)
	topo.Add(topology.Output{ID: "HDMI1", State: topology.Disconnected})
	return topo
}

func laptopOnly() *topology.Topology {
	topo := &topology.Topology{}
	topo.Add(topology.Output{ID: "eDP1", State: topology.Connected})
	topo.Add(topology.Output{ID: "DP1", State: topology.Disconnected})
	topo.Add(topology.Output{ID: "HDMI1", State: topology.Disconnected})
	return topo
}

type fixture struct {
	source    *fakeSource
	applier   *fakeApplier
	refresher *countingRefresher
	slept     []time.Duration
	sw        *Switcher
}

func newFixture(t *testing.T, cfg *config.Config, topo *topology.Topology) *fixture {
	t.Helper()
	f := &fixture{
		source:    &fakeSource{topo: topo},
		applier:   &fakeApplier{},
		refresher: &countingRefresher{},
	}
	f.sw = New(cfg, Options{
		Source:    f.source,
		Applier:   f.applier,
		Refresher: f.refresher,
		Sleep: func(_ context.Context, d time.Duration) error {
			f.slept = append(f.slept, d)
			return nil
		},
	})
	return f
}

func TestFirstCycleInfersActive(t *testing.T) {
	f := newFixture(t, config.Defaults(), laptopWithMonitor(false))

	status, err := f.sw.Cycle(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	want := Status{
		FullText:  "  eDP1  ",
		Displayed: "eDP1",
		Active:    "eDP1",
		Class:     ClassActive,
		Color:     "#00FF00",
		Available: []string{"eDP1", "DP1", "eDP1+DP1", "DP1+eDP1", "eDP1=DP1", "DP1=eDP1"},
	}
	if diff := cmp.Diff(want, status); diff != "" {
		t.Fatalf("status mismatch (-want +got):\n%s", diff)
	}
	if len(f.applier.calls) != 0 {
		t.Fatalf("first cycle applied %v", f.applier.calls)
	}
}

func TestFirstCycleExtendedActive(t *testing.T) {
	cfg := config.Defaults()
	cfg.FixedWidth = false
	f := newFixture(t, cfg, laptopWithMonitor(true))

	status, err := f.sw.Cycle(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if status.Active != "eDP1+DP1" || status.FullText != "eDP1+DP1" || status.Class != ClassActive {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestNextThenApply(t *testing.T) {
	f := newFixture(t, config.Defaults(), laptopWithMonitor(false))
	ctx := context.Background()

	status, err := f.sw.HandleAction(ctx, ActionNext)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if status.Displayed != "DP1" || status.Class != ClassNormal || status.Color != "" {
		t.Fatalf("after next: %+v", status)
	}

	status, err = f.sw.HandleAction(ctx, ActionApply)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if status.Active != "DP1" || status.Class != ClassActive {
		t.Fatalf("after apply: %+v", status)
	}
	want := [][]command.Directive{{
		{Output: "eDP1", Kind: command.Off},
		{Output: "DP1", Kind: command.Absolute, Position: "0x0"},
		{Output: "HDMI1", Kind: command.Off},
	}}
	if diff := cmp.Diff(want, f.applier.calls); diff != "" {
		t.Fatalf("apply mismatch (-want +got):\n%s", diff)
	}

	// already active: a second apply is a no-op
	if _, err := f.sw.HandleAction(ctx, ActionApply); err != nil {
		t.Fatalf("apply again: %v", err)
	}
	if len(f.applier.calls) != 1 {
		t.Fatalf("expected idempotent apply, got %d calls", len(f.applier.calls))
	}
}

func TestPreviousWrapsToLastEntry(t *testing.T) {
	f := newFixture(t, config.Defaults(), laptopWithMonitor(false))
	status, err := f.sw.Button(context.Background(), 1)
	if err != nil {
		t.Fatalf("button: %v", err)
	}
	if status.Displayed != "DP1=eDP1" {
		t.Fatalf("displayed = %q, want DP1=eDP1", status.Displayed)
	}
	if status.Available[0] != "DP1=eDP1" {
		t.Fatalf("available should start at the head, got %v", status.Available)
	}
}

func TestApplyFailureKeepsActive(t *testing.T) {
	f := newFixture(t, config.Defaults(), laptopWithMonitor(false))
	f.applier.err = errors.New("xrandr: cannot find crtc")
	ctx := context.Background()

	if _, err := f.sw.HandleAction(ctx, ActionNext); err != nil {
		t.Fatalf("next: %v", err)
	}
	status, err := f.sw.HandleAction(ctx, ActionApply)
	if err == nil {
		t.Fatal("expected apply error")
	}
	if status.Active != "eDP1" {
		t.Fatalf("active = %q, want eDP1 after failed apply", status.Active)
	}
	if f.sw.Snapshot().Displayed != "DP1" {
		t.Fatalf("displayed changed: %+v", f.sw.Snapshot())
	}
}

func TestFallbackWhenSingleOutputDisappears(t *testing.T) {
	f := newFixture(t, config.Defaults(), laptopWithMonitor(false))
	ctx := context.Background()

	if _, err := f.sw.HandleAction(ctx, ActionNext); err != nil {
		t.Fatal(err)
	}
	if _, err := f.sw.HandleAction(ctx, ActionApply); err != nil {
		t.Fatal(err)
	}

	f.source.topo = laptopOnly()
	status, err := f.sw.Cycle(ctx)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if !status.Degraded || status.Class != ClassDegraded || status.Color != "#FFFF00" {
		t.Fatalf("expected degraded status, got %+v", status)
	}
	if status.Active != "eDP1" || status.Displayed != "eDP1" {
		t.Fatalf("fallback did not land on eDP1: %+v", status)
	}
	if f.refresher.n != 1 {
		t.Fatalf("refresh count = %d, want 1", f.refresher.n)
	}
	last := f.applier.calls[len(f.applier.calls)-1]
	want := []command.Directive{
		{Output: "eDP1", Kind: command.Absolute, Position: "0x0"},
		{Output: "DP1", Kind: command.Off},
		{Output: "HDMI1", Kind: command.Off},
	}
	if diff := cmp.Diff(want, last); diff != "" {
		t.Fatalf("fallback directives (-want +got):\n%s", diff)
	}

	// healed: the next cycle is clean
	status, err = f.sw.Cycle(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if status.Degraded || status.Class != ClassActive {
		t.Fatalf("expected healed status, got %+v", status)
	}
}

func TestFallbackDisabledOnlyFlags(t *testing.T) {
	cfg := config.Defaults()
	cfg.Fallback = false
	f := newFixture(t, cfg, laptopWithMonitor(false))
	ctx := context.Background()
	if _, err := f.sw.HandleAction(ctx, ActionNext); err != nil {
		t.Fatal(err)
	}
	if _, err := f.sw.HandleAction(ctx, ActionApply); err != nil {
		t.Fatal(err)
	}
	calls := len(f.applier.calls)

	f.source.topo = laptopOnly()
	status, err := f.sw.Cycle(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !status.Degraded || status.Active != "DP1" {
		t.Fatalf("expected degraded DP1, got %+v", status)
	}
	if len(f.applier.calls) != calls || f.refresher.n != 0 {
		t.Fatal("fallback disabled must not apply or refresh")
	}
}

func TestNoFallbackForMultiOutputActive(t *testing.T) {
	f := newFixture(t, config.Defaults(), laptopWithMonitor(true))
	ctx := context.Background()
	if _, err := f.sw.Cycle(ctx); err != nil {
		t.Fatal(err)
	}
	f.source.topo = laptopOnly()
	status, err := f.sw.Cycle(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !status.Degraded || len(f.applier.calls) != 0 {
		t.Fatalf("multi-output active must only degrade: %+v, calls %d", status, len(f.applier.calls))
	}
	if status.Class != ClassDegraded {
		t.Fatalf("class = %s", status.Class)
	}
}

func TestForceOnStartFiresOnce(t *testing.T) {
	cfg := config.Defaults()
	cfg.ForceOnStart = "eDP1+DP1"
	f := newFixture(t, cfg, laptopOnly())
	ctx := context.Background()

	// target not available yet: nothing happens
	if _, err := f.sw.Cycle(ctx); err != nil {
		t.Fatal(err)
	}
	if len(f.applier.calls) != 0 || len(f.slept) != 0 {
		t.Fatal("startup layout fired before its outputs were connected")
	}

	f.source.topo = laptopWithMonitor(false)
	status, err := f.sw.Cycle(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if status.Active != "eDP1+DP1" || status.Displayed != "eDP1+DP1" {
		t.Fatalf("startup layout not applied: %+v", status)
	}
	if diff := cmp.Diff([]time.Duration{time.Second}, f.slept); diff != "" {
		t.Fatalf("sleep mismatch (-want +got):\n%s", diff)
	}
	if f.refresher.n != 1 || len(f.applier.calls) != 1 {
		t.Fatalf("refresh=%d applies=%d, want 1 and 1", f.refresher.n, len(f.applier.calls))
	}

	if _, err := f.sw.Cycle(ctx); err != nil {
		t.Fatal(err)
	}
	if len(f.applier.calls) != 1 || len(f.slept) != 1 {
		t.Fatal("startup layout fired twice")
	}
}

func TestDryRunApplierKeepsStartupLayoutPending(t *testing.T) {
	cfg := config.Defaults()
	cfg.ForceOnStart = "eDP1+DP1"
	f := newFixture(t, cfg, laptopWithMonitor(false))
	applier := command.NewApplier(nil)
	applier.DryRun = true
	f.sw.opts.Applier = applier

	status, err := f.sw.Cycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if status.Active != "eDP1" {
		t.Fatalf("active = %q, want eDP1", status.Active)
	}
	if got := f.sw.tracker.PendingForceOnStart(); got != "eDP1+DP1" {
		t.Fatalf("pending startup layout = %q, want eDP1+DP1", got)
	}
	if f.refresher.n != 0 {
		t.Fatalf("refresh fired %d times for a dry run", f.refresher.n)
	}
}

func TestDryRunSkipsStartupLayoutAndFallback(t *testing.T) {
	cfg := config.Defaults()
	cfg.ForceOnStart = "eDP1+DP1"
	f := newFixture(t, cfg, laptopWithMonitor(false))
	f.sw.opts.DryRun = true
	ctx := context.Background()

	status, err := f.sw.Cycle(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if status.Active != "eDP1" || len(f.slept) != 0 || len(f.applier.calls) != 0 {
		t.Fatalf("dry run fired the startup layout: %+v slept=%v", status, f.slept)
	}

	// the active single output disappears
	topo := &topology.Topology{}
	topo.Add(topology.Output{ID: "eDP1", State: topology.Disconnected})
	topo.Add(topology.Output{ID: "DP1", State: topology.Connected})
	f.source.topo = topo
	status, err = f.sw.Cycle(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(f.applier.calls) != 0 || status.Active != "eDP1" || status.Class != ClassDegraded {
		t.Fatalf("dry run ran the fallback: %+v", status)
	}
}

func TestDryRunApplyDisplayKeepsActive(t *testing.T) {
	f := newFixture(t, config.Defaults(), laptopWithMonitor(false))
	applier := command.NewApplier(nil)
	applier.DryRun = true
	f.sw.opts.Applier = applier

	status, err := f.sw.ApplyDisplay(context.Background(), "eDP1+DP1")
	if err != nil {
		t.Fatal(err)
	}
	if status.Active != "eDP1" || status.Displayed != "eDP1+DP1" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestApplyDisplayIssuesOneCommand(t *testing.T) {
	cfg := config.Defaults()
	cfg.Fallback = false
	f := newFixture(t, cfg, laptopWithMonitor(true))

	status, err := f.sw.ApplyDisplay(context.Background(), "eDP1")
	if err != nil {
		t.Fatal(err)
	}
	if status.Active != "eDP1" || len(f.applier.calls) != 1 || len(f.slept) != 0 {
		t.Fatalf("active=%q applies=%d slept=%v, want eDP1, 1 and none", status.Active, len(f.applier.calls), f.slept)
	}

	if _, err := f.sw.ApplyDisplay(context.Background(), "HDMI1"); !errors.Is(err, selection.ErrNotAvailable) {
		t.Fatalf("err = %v, want ErrNotAvailable", err)
	}
	if len(f.applier.calls) != 1 {
		t.Fatalf("unavailable layout was applied: %d calls", len(f.applier.calls))
	}
}

func TestSetConfigRetargetsPendingStartupLayout(t *testing.T) {
	cfg := config.Defaults()
	cfg.ForceOnStart = "eDP1+DP1"
	f := newFixture(t, cfg, laptopOnly())
	ctx := context.Background()
	if _, err := f.sw.Cycle(ctx); err != nil {
		t.Fatal(err)
	}

	reloaded := config.Defaults()
	reloaded.FormatExtend = " + "
	reloaded.ForceOnStart = "eDP1 + DP1"
	f.sw.SetConfig(reloaded)

	f.source.topo = laptopWithMonitor(false)
	status, err := f.sw.Cycle(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if status.Active != "eDP1 + DP1" || len(f.applier.calls) != 1 {
		t.Fatalf("startup layout did not follow the reload: %+v", status)
	}
}

func TestApplyExtendMovesWorkspaces(t *testing.T) {
	cfg := config.Defaults()
	cfg.Outputs = config.Hints{"DP1": {Workspaces: "1,2", Position: "right-of eDP1"}}
	backend := &recordingBackend{}
	f := newFixture(t, cfg, laptopWithMonitor(false))
	f.sw.opts.Reassigner = &workspace.Reassigner{
		Backend:     backend,
		SettleDelay: 3 * time.Second,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	}

	status, err := f.sw.ApplyDisplay(context.Background(), "eDP1+DP1")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if status.Active != "eDP1+DP1" {
		t.Fatalf("active = %q", status.Active)
	}
	want := []string{"workspace 1", "move DP1", "workspace 2", "move DP1"}
	if diff := cmp.Diff(want, backend.calls); diff != "" {
		t.Fatalf("workspace calls (-want +got):\n%s", diff)
	}
	dp := f.applier.calls[0][1]
	if dp.Kind != command.Relative || dp.Relation != "right-of" || dp.Anchor != "eDP1" {
		t.Fatalf("DP1 directive = %+v", dp)
	}
}

func TestCloneApplySkipsWorkspaces(t *testing.T) {
	cfg := config.Defaults()
	cfg.Outputs = config.Hints{"DP1": {Workspaces: "1"}}
	backend := &recordingBackend{}
	f := newFixture(t, cfg, laptopWithMonitor(false))
	f.sw.opts.Reassigner = &workspace.Reassigner{Backend: backend, Sleep: func(context.Context, time.Duration) error { return nil }}

	if _, err := f.sw.ApplyDisplay(context.Background(), "eDP1=DP1"); err != nil {
		t.Fatal(err)
	}
	if len(backend.calls) != 0 {
		t.Fatalf("clone apply moved workspaces: %v", backend.calls)
	}
}

func TestSelectDisplayUnknown(t *testing.T) {
	f := newFixture(t, config.Defaults(), laptopWithMonitor(false))
	if _, err := f.sw.SelectDisplay(context.Background(), "VGA1"); err == nil {
		t.Fatal("expected error for unknown display")
	}
	status, err := f.sw.SelectDisplay(context.Background(), "DP1=eDP1")
	if err != nil {
		t.Fatal(err)
	}
	if status.Displayed != "DP1=eDP1" || len(f.applier.calls) != 0 {
		t.Fatalf("select must not apply: %+v", status)
	}
}

func TestDetectErrorReported(t *testing.T) {
	f := newFixture(t, config.Defaults(), nil)
	f.source.err = errors.New("xrandr missing")
	status, err := f.sw.Cycle(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if status.Error == "" {
		t.Fatal("expected status to carry the error")
	}
}

func TestNoOutputs(t *testing.T) {
	cfg := config.Defaults()
	cfg.FixedWidth = false
	f := newFixture(t, cfg, &topology.Topology{})
	status, err := f.sw.Cycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if status.FullText != noOutputsText || len(status.Available) != 0 {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.Error != combination.ErrNoOutputs.Error() {
		t.Fatalf("error = %q, want %q", status.Error, combination.ErrNoOutputs.Error())
	}
}

func TestPublisherAndNotifier(t *testing.T) {
	cfg := config.Defaults()
	cfg.Refresh.DesktopNotify = true
	pub := &recordingPublisher{}
	notifier := &recordingNotifier{}
	f := newFixture(t, cfg, laptopWithMonitor(false))
	f.sw.opts.Publisher = pub
	f.sw.opts.Notifier = notifier

	if _, err := f.sw.ApplyDisplay(context.Background(), "DP1"); err != nil {
		t.Fatal(err)
	}
	if len(pub.statuses) == 0 || pub.statuses[len(pub.statuses)-1].Active != "DP1" {
		t.Fatalf("publisher saw %+v", pub.statuses)
	}
	if diff := cmp.Diff([]string{"Display layout applied"}, notifier.summaries); diff != "" {
		t.Fatalf("notifications (-want +got):\n%s", diff)
	}
}

func TestSetConfigRerendersSeparators(t *testing.T) {
	f := newFixture(t, config.Defaults(), laptopWithMonitor(true))
	ctx := context.Background()
	if _, err := f.sw.Cycle(ctx); err != nil {
		t.Fatal(err)
	}
	cfg := config.Defaults()
	cfg.FormatExtend = " + "
	cfg.FixedWidth = false
	f.sw.SetConfig(cfg)

	status, err := f.sw.Cycle(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if status.Active != "eDP1 + DP1" || status.Displayed != "eDP1 + DP1" || status.Class != ClassActive {
		t.Fatalf("unexpected status after reload %+v", status)
	}
}

func TestCombinationsStartAtHead(t *testing.T) {
	f := newFixture(t, config.Defaults(), laptopWithMonitor(false))
	if _, err := f.sw.HandleAction(context.Background(), ActionNext); err != nil {
		t.Fatal(err)
	}
	views := f.sw.Combinations()
	if len(views) != 6 || views[0].Display != "DP1" || views[len(views)-1].Display != "eDP1" || !views[len(views)-1].Active {
		t.Fatalf("unexpected views %+v", views)
	}
}

func TestButtonAction(t *testing.T) {
	cases := map[int]Action{
		1: ActionPrevious,
		2: ActionSelect,
		3: ActionApply,
		4: ActionNext,
		5: ActionPrevious,
		9: ActionRefresh,
	}
	for button, want := range cases {
		if got := ButtonAction(button); got != want {
			t.Errorf("ButtonAction(%d) = %s, want %s", button, got, want)
		}
	}
}

func TestParseAction(t *testing.T) {
	if a, err := ParseAction("next"); err != nil || a != ActionNext {
		t.Fatalf("ParseAction(next) = %v, %v", a, err)
	}
	if _, err := ParseAction("explode"); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("err = %v, want ErrUnknownAction", err)
	}
}

func TestCenter(t *testing.T) {
	cases := []struct {
		in    string
		width int
		want  string
	}{
		{"eDP1", 9, "  eDP1   "},
		{"eDP1", 4, "eDP1"},
		{"eDP1", 2, "eDP1"},
		{"ab", 6, "  ab  "},
	}
	for _, c := range cases {
		if got := Center(c.in, c.width); got != c.want {
			t.Errorf("Center(%q, %d) = %q, want %q", c.in, c.width, got, c.want)
		}
	}
}

type recordingBackend struct{ calls []string }

func (b *recordingBackend) SwitchWorkspace(_ context.Context, ws string) error {
	b.calls = append(b.calls, "workspace "+ws)
	return nil
}

func (b *recordingBackend) MoveWorkspaceToOutput(_ context.Context, output string) error {
	b.calls = append(b.calls, "move "+output)
	return nil
}

func (b *recordingBackend) Name() string { return "recording" }

var _ notify.Notifier = (*recordingNotifier)(nil)
