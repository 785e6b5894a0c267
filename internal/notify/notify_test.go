package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type fakeRunner struct {
	calls [][]string
	err   error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return nil, f.err
}

func TestProcessSignalRunsKillall(t *testing.T) {
	runner := &fakeRunner{}
	NewProcessSignal(runner, "py3status", "SIGUSR1").Refresh(context.Background())
	want := [][]string{{"killall", "-s", "USR1", "py3status"}}
	if diff := cmp.Diff(want, runner.calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessSignalSwallowsErrors(t *testing.T) {
	runner := &fakeRunner{err: errors.New("no process found")}
	NewProcessSignal(runner, "py3status", "").Refresh(context.Background())
	if len(runner.calls) != 1 || runner.calls[0][2] != "USR1" {
		t.Fatalf("calls = %v", runner.calls)
	}
}

func TestProcessSignalDisabled(t *testing.T) {
	if p := NewProcessSignal(&fakeRunner{}, "", "USR1"); p != nil {
		t.Fatalf("expected nil refresher for empty process, got %+v", p)
	}
	var p *ProcessSignal
	p.Refresh(context.Background())
}

func TestChannelCoalesces(t *testing.T) {
	c := NewChannel()
	ctx := context.Background()
	c.Refresh(ctx)
	c.Refresh(ctx)
	c.Refresh(ctx)

	<-c.C()
	select {
	case <-c.C():
		t.Fatal("expected pending refreshes to coalesce")
	default:
	}
}

func TestMultiFansOut(t *testing.T) {
	var order []string
	m := Multi{
		RefresherFunc(func(context.Context) { order = append(order, "a") }),
		nil,
		RefresherFunc(func(context.Context) { order = append(order, "b") }),
	}
	m.Refresh(context.Background())
	if diff := cmp.Diff([]string{"a", "b"}, order); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestHubDeliversAndReplaysStatus(t *testing.T) {
	h := NewHub()
	first := h.Subscribe()
	h.PublishStatus("eDP1")

	if ev := <-first; ev.Type != EventStatus || ev.Data != "eDP1" {
		t.Fatalf("first got %+v", ev)
	}

	late := h.Subscribe()
	if ev := <-late; ev.Data != "eDP1" {
		t.Fatalf("late subscriber got %+v, want replayed status", ev)
	}

	h.Refresh(context.Background())
	if ev := <-first; ev.Type != EventRefresh {
		t.Fatalf("expected refresh event, got %+v", ev)
	}

	h.Unsubscribe(first)
	h.Unsubscribe(late)
	if h.Len() != 0 {
		t.Fatalf("Len = %d after unsubscribe", h.Len())
	}
	if _, ok := <-first; ok {
		t.Fatal("expected channel closed")
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()
	for i := 0; i < 50; i++ {
		h.Refresh(context.Background())
	}
	if len(ch) != cap(ch) {
		t.Fatalf("buffer len = %d, want full %d", len(ch), cap(ch))
	}
}
