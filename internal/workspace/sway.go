package workspace

import (
	"context"
	"fmt"
	"sync"

	"github.com/joshuarubin/go-sway"
)

// Sway drives sway over its IPC socket.
type Sway struct {
	mu     sync.Mutex
	client sway.Client
	dial   func(ctx context.Context) (sway.Client, error)
}

// NewSway returns a sway backend that connects on first use.
func NewSway() *Sway {
	return &Sway{dial: func(ctx context.Context) (sway.Client, error) { return sway.New(ctx) }}
}

func (b *Sway) conn(ctx context.Context) (sway.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		return b.client, nil
	}
	client, err := b.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to sway: %w", err)
	}
	b.client = client
	return client, nil
}

func (b *Sway) run(ctx context.Context, command string) error {
	client, err := b.conn(ctx)
	if err != nil {
		return err
	}
	if _, err := client.RunCommand(ctx, command); err != nil {
		return fmt.Errorf("sway %q: %w", command, err)
	}
	return nil
}

func (b *Sway) SwitchWorkspace(ctx context.Context, workspace string) error {
	return b.run(ctx, "workspace "+quote(workspace))
}

func (b *Sway) MoveWorkspaceToOutput(ctx context.Context, output string) error {
	return b.run(ctx, "move workspace to output "+quote(output))
}

func (b *Sway) Name() string { return "sway" }
