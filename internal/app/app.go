// Package app assembles the monitoring service: config, logging, storage,
// notifications and the polling core, plus hot-reload plumbing between them.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"streamwatch/internal/channel"
	"streamwatch/internal/config"
	"streamwatch/internal/eventbus"
	"streamwatch/internal/monitor"
	"streamwatch/internal/notify"
	"streamwatch/internal/record"
	"streamwatch/internal/resolve"
	rtsup "streamwatch/internal/runtime/supervisor"
	"streamwatch/internal/storage"
	logx "streamwatch/pkg/logx"
)

// Options carries collaborators the embedding binary may override. Nil
// Resolver and Recorder default to the streamlink-backed implementations;
// a nil Desktop falls back to a log-backed sink.
type Options struct {
	Resolver resolve.Resolver
	Recorder monitor.Recorder
	Desktop  notify.Desktop
}

type App struct {
	cfgm *config.Manager
	logs *logx.Service
	log  logx.Logger

	reg   *channel.Registry
	bus   eventbus.Bus
	store storage.Store
	saver *storage.Saver

	notif *notify.Service
	mon   *monitor.Service

	sup *rtsup.Supervisor
}

func New(cfgPath string, opts Options) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	reg := channel.NewRegistry()
	bus := eventbus.New()

	// Persistence is optional; with no storage section channels live in memory
	// only.
	storeCfg, err := storageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storeCfg, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	var saver *storage.Saver
	if store != nil {
		if err := loadChannels(store, reg, log); err != nil {
			_ = store.Close()
			return nil, err
		}
		saver = storage.NewSaver(store, func() []storage.Document {
			return snapshotChannels(reg)
		}, 0, log.With(logx.String("comp", "storage")))
		reg.SetOnChange(saver.Request)
	}

	notifCfg := notifyConfig(cfg)
	if opts.Desktop == nil {
		// Headless hosts have no notification daemon; surface desktop
		// notifications through the log stream instead.
		opts.Desktop = logDesktop{log: log.With(logx.String("comp", "desktop"))}
	}
	var pusher notify.Pusher
	if strings.TrimSpace(notifCfg.Telegram.Token) != "" {
		tp, err := notify.NewTelegramPusher(notifCfg.Telegram)
		if err != nil {
			return nil, fmt.Errorf("telegram pusher: %w", err)
		}
		pusher = tp
	}
	notifSvc := notify.New(notifCfg, opts.Desktop, pusher, log.With(logx.String("comp", "notify")))

	monCfg, err := monitorConfig(cfg)
	if err != nil {
		return nil, err
	}
	if opts.Resolver == nil {
		opts.Resolver = resolve.NewStreamlink("", 0)
	}
	if opts.Recorder == nil {
		opts.Recorder = record.NewStreamlink(record.Config{OutputDir: monCfg.OutputDir},
			log.With(logx.String("comp", "record")))
	}
	monSvc := monitor.New(monCfg, reg, opts.Resolver, opts.Recorder, notifSvc, bus,
		log.With(logx.String("comp", "monitor")))

	return &App{
		cfgm:  cfgm,
		logs:  logSvc,
		log:   log,
		reg:   reg,
		bus:   bus,
		store: store,
		saver: saver,
		notif: notifSvc,
		mon:   monSvc,
	}, nil
}

func (a *App) Registry() *channel.Registry { return a.reg }
func (a *App) Bus() eventbus.Bus           { return a.bus }
func (a *App) Monitor() *monitor.Service   { return a.mon }
func (a *App) Logger() logx.Logger         { return a.log }

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(false))

	// Reject bad hot-reloads before they are committed or published.
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := monitorConfig(cfg); err != nil {
			return err
		}
		if _, err := storageConfig(cfg); err != nil {
			return err
		}
		return nil
	})

	a.notif.Start(a.sup.Context())
	if err := a.mon.Start(a.sup.Context()); err != nil {
		return err
	}

	// Config hot-reload fan-out.
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyReload(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.GoRestart("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("started", logx.Int("channels", a.reg.Len()))
	return nil
}

func (a *App) applyReload(oldCfg, newCfg *config.Config) {
	sections, fields := config.SummarizeChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, no effective changes")
		return
	}

	a.logs.Apply(logx.Config{
		Level:   newCfg.Logging.Level,
		Console: newCfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: newCfg.Logging.File.Enabled,
			Path:    newCfg.Logging.File.Path,
		},
	})

	// The validator already vetted duration fields; failures here mean the
	// validator and the mapper disagree, keep the old monitor config then.
	if monCfg, err := monitorConfig(newCfg); err == nil {
		a.mon.Apply(monCfg)
	} else {
		a.log.Warn("monitor config rejected on reload", logx.Err(err))
	}
	a.notif.Apply(notifyConfig(newCfg))

	// Storage driver/path changes need a restart; say so instead of silently
	// ignoring them.
	for _, s := range sections {
		if s == "storage" {
			a.log.Warn("storage config changed; restart required to take effect")
		}
	}

	a.log.Info("config reloaded",
		append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, fields...)...)
}

// Stop shuts down in dependency order: the polling core first (it may fire
// final notifications and saves), then notifications, then a final flush of
// channel state.
func (a *App) Stop(ctx context.Context) {
	if a.sup == nil {
		return
	}
	a.log.Info("stopping")

	a.mon.Stop(ctx)
	a.notif.Stop(ctx)

	a.sup.Cancel()
	if err := a.sup.Wait(ctx); err != nil {
		a.log.Warn("supervisor wait", logx.Err(err))
	}

	if a.saver != nil {
		a.saver.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close", logx.Err(err))
		}
	}

	a.log.Info("stopped")
	_ = a.logs.Close()
}

// loadChannels restores persisted channels into the registry. A record that
// fails to decode is skipped with a warn; one bad row must not block startup.
func loadChannels(store storage.Store, reg *channel.Registry, log logx.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	docs, err := store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load channels: %w", err)
	}
	for _, doc := range docs {
		st := &channel.State{}
		if err := json.Unmarshal(doc.Body, st); err != nil {
			log.Warn("skipping corrupt channel record",
				logx.String("id", doc.ID), logx.Err(err))
			continue
		}
		if st.ID == "" {
			st.ID = doc.ID
		}
		// Runtime flags are not persisted; every channel restarts idle.
		st.Status = channel.StatusMonitoring
		if err := reg.Add(st); err != nil {
			log.Warn("skipping duplicate channel record",
				logx.String("id", doc.ID), logx.Err(err))
		}
	}
	log.Info("channels loaded", logx.Int("count", reg.Len()))
	return nil
}

type logDesktop struct {
	log logx.Logger
}

func (d logDesktop) Send(_ context.Context, title, message string) error {
	d.log.Info(title, logx.String("message", message))
	return nil
}

func snapshotChannels(reg *channel.Registry) []storage.Document {
	states := reg.All()
	docs := make([]storage.Document, 0, len(states))
	for _, st := range states {
		body, err := json.Marshal(st)
		if err != nil {
			continue
		}
		docs = append(docs, storage.Document{ID: st.ID, Body: body})
	}
	return docs
}
