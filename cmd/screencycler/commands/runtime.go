package commands

import (
	"context"
	"time"

	"github.com/bryanchriswhite/ScreenCycler/internal/command"
	"github.com/bryanchriswhite/ScreenCycler/internal/config"
	"github.com/bryanchriswhite/ScreenCycler/internal/display"
	"github.com/bryanchriswhite/ScreenCycler/internal/logger"
	"github.com/bryanchriswhite/ScreenCycler/internal/notify"
	"github.com/bryanchriswhite/ScreenCycler/internal/shell"
	"github.com/bryanchriswhite/ScreenCycler/internal/switcher"
	"github.com/bryanchriswhite/ScreenCycler/internal/topology"
	"github.com/bryanchriswhite/ScreenCycler/internal/workspace"
)

type runtimeOptions struct {
	// DryRun logs layout commands instead of running them.
	DryRun bool
	// Watch opens an X connection for hotplug events.
	Watch bool
	// Hub publishes status to stream subscribers.
	Hub bool
	// OneShot drops the startup layout and the fallback guard so a single
	// command only ever applies what it was asked to.
	OneShot bool
}

// runtime is the wired application shared by the long-running commands.
type runtime struct {
	configMgr *config.Manager
	switcher  *switcher.Switcher
	refresh   *notify.Channel
	hub       *notify.Hub
	display   *display.Manager
	desktop   *notify.Desktop
}

func newRuntime(configMgr *config.Manager, opts runtimeOptions) (*runtime, error) {
	cfg := configMgr.Get()
	if opts.OneShot {
		cfg = cfg.Clone()
		cfg.ForceOnStart = ""
		cfg.Fallback = false
	}
	runner := shell.NewExecRunner()
	log := logger.WithComponent("runtime")

	r := &runtime{
		configMgr: configMgr,
		refresh:   notify.NewChannel(),
		desktop:   notify.NewDesktop(),
	}

	var source topology.Source
	switch cfg.TopologySource {
	case config.SourceRandR:
		dm, err := display.NewManager("")
		if err != nil {
			return nil, err
		}
		r.display = dm
		source = dm
	default:
		source = topology.NewXrandrSource(runner)
		if opts.Watch {
			dm, err := display.NewManager("")
			if err != nil {
				log.Warn().Err(err).Msg("Hotplug detection unavailable, relying on polling")
			} else {
				r.display = dm
			}
		}
	}

	var backend workspace.Backend
	switch cfg.WorkspaceBackend {
	case config.BackendI3:
		backend = workspace.NewI3(runner)
	case config.BackendSway:
		backend = workspace.NewSway()
	default:
		backend = workspace.Noop{}
	}

	applier := command.NewApplier(runner)
	applier.DryRun = opts.DryRun

	swOpts := switcher.Options{
		Source:  source,
		Applier: applier,
		DryRun:  opts.DryRun,
	}
	refreshers := notify.Multi{r.refresh}

	// a dry run leaves the window manager and other processes alone
	if !opts.DryRun {
		swOpts.Reassigner = workspace.NewReassigner(backend, cfg.SettleDelay.Std())
		swOpts.Notifier = r.desktop
		if ps := notify.NewProcessSignal(runner, cfg.Refresh.Process, cfg.Refresh.Signal); ps != nil {
			refreshers = append(refreshers, ps)
		}
	}
	if opts.Hub {
		r.hub = notify.NewHub()
		refreshers = append(refreshers, r.hub)
		swOpts.Publisher = r.hub
	}
	swOpts.Refresher = refreshers

	r.switcher = switcher.New(cfg, swOpts)
	log.Debug().
		Str("source", cfg.TopologySource).
		Str("workspace_backend", backend.Name()).
		Bool("dry_run", opts.DryRun).
		Msg("Runtime ready")
	return r, nil
}

// watch starts hotplug and config watchers in the background.
func (r *runtime) watch(ctx context.Context) {
	log := logger.WithComponent("runtime")
	if r.display != nil {
		go func() {
			if err := r.display.Watch(ctx, r.refresh); err != nil {
				log.Warn().Err(err).Msg("Hotplug watcher stopped")
			}
		}()
	}
	go func() {
		err := r.configMgr.Watch(ctx, func(cfg *config.Config) {
			logger.SetLevel(cfg.LogLevel)
			r.switcher.SetConfig(cfg)
			r.refresh.Refresh(ctx)
		})
		if err != nil {
			log.Warn().Err(err).Msg("Config watcher stopped")
		}
	}()
}

func (r *runtime) pollInterval() time.Duration {
	return r.configMgr.Get().PollInterval.Std()
}

func (r *runtime) Close() {
	if r.display != nil {
		r.display.Close()
	}
	if err := r.desktop.Close(); err != nil {
		logger.WithComponent("runtime").Debug().Err(err).Msg("Failed to close session bus")
	}
}
