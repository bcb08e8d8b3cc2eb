// Package tracker wires configuration, storage, ingest and analytics into the
// operations a shell exposes.
package tracker

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/samber/lo"

	"github.com/janekbaraniewski/codextracker/internal/analytics"
	"github.com/janekbaraniewski/codextracker/internal/config"
	"github.com/janekbaraniewski/codextracker/internal/core"
	"github.com/janekbaraniewski/codextracker/internal/detect"
	"github.com/janekbaraniewski/codextracker/internal/ingest"
	"github.com/janekbaraniewski/codextracker/internal/pricing"
	"github.com/janekbaraniewski/codextracker/internal/settings"
	"github.com/janekbaraniewski/codextracker/internal/store"
)

type App struct {
	cfg         config.Config
	store       *store.Store
	pipeline    *ingest.Pipeline
	analytics   *analytics.Engine
	settings    *settings.Service
	defaultHome string
	detect      func() []detect.Candidate
}

// Open prepares the data directory and database. A fresh database is seeded
// with pricing from the mirror file, else the bundled defaults.
func Open(ctx context.Context, cfg config.Config) (*App, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("tracker: create data dir: %w", err)
	}
	_, statErr := os.Stat(cfg.DBPath)
	fresh := os.IsNotExist(statErr)

	defaultHome := cfg.CodexHome
	if defaultHome == "" {
		var err error
		if defaultHome, err = store.DefaultCodexHome(); err != nil {
			return nil, err
		}
	}

	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	a := &App{
		cfg:         cfg,
		store:       st,
		pipeline:    ingest.NewPipeline(st, ingest.Options{Workers: cfg.Ingest.Workers}),
		analytics:   analytics.New(st),
		settings:    settings.NewService(st, defaultHome),
		defaultHome: defaultHome,
		detect:      detect.CodexHomes,
	}
	if fresh {
		if err := a.seedPricing(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
	}
	if err := a.syncPricingMirror(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) Close() error {
	return a.store.Close()
}

func (a *App) Analytics() *analytics.Engine { return a.analytics }

func (a *App) Settings() *settings.Service { return a.settings }

func (a *App) seedPricing(ctx context.Context) error {
	rules, found, err := pricing.LoadFile(a.cfg.PricingPath)
	if err != nil {
		return err
	}
	if !found {
		if rules, err = pricing.Defaults(); err != nil {
			return err
		}
	}
	_, err = a.store.ReplacePricingRules(ctx, rules)
	return err
}

// syncPricingMirror rewrites the mirror file from the database unless both
// hold nothing.
func (a *App) syncPricingMirror(ctx context.Context) error {
	rules, err := a.store.ListPricingRules(ctx)
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		mirror, _, err := pricing.LoadFile(a.cfg.PricingPath)
		if err == nil && len(mirror) == 0 {
			return nil
		}
	}
	return pricing.SaveFile(a.cfg.PricingPath, ruleInputs(rules))
}

func ruleInputs(rules pricing.Rules) []core.PricingRuleInput {
	return lo.Map(rules, func(r core.PricingRule, _ int) core.PricingRuleInput {
		return r.Input()
	})
}

// ActiveHome resolves the active home, creating the default one on first use.
func (a *App) ActiveHome(ctx context.Context) (core.Home, error) {
	return a.store.EnsureActiveHome(ctx, a.defaultHome)
}

func (a *App) ListHomes(ctx context.Context) ([]core.Home, error) {
	if _, err := a.ActiveHome(ctx); err != nil {
		return nil, err
	}
	return a.store.ListHomes(ctx)
}

// CreateHome returns the home at path, creating it if needed, and makes it
// active.
func (a *App) CreateHome(ctx context.Context, path, label string) (core.Home, error) {
	h, err := a.store.GetOrCreateHome(ctx, path, label)
	if err != nil {
		return core.Home{}, err
	}
	return a.activate(ctx, h.ID)
}

func (a *App) ActivateHome(ctx context.Context, id int64) (core.Home, error) {
	return a.activate(ctx, id)
}

func (a *App) activate(ctx context.Context, id int64) (core.Home, error) {
	if err := a.store.SetActiveHome(ctx, id); err != nil {
		return core.Home{}, err
	}
	if err := a.store.TouchHome(ctx, id); err != nil {
		return core.Home{}, err
	}
	h, err := a.store.HomeByID(ctx, id)
	if err != nil {
		return core.Home{}, err
	}
	if h == nil {
		return core.Home{}, core.NotFound("home not found")
	}
	return *h, nil
}

// DeleteHome removes a home and its data. When the active home is deleted,
// another home becomes active first; the last home cannot be deleted.
func (a *App) DeleteHome(ctx context.Context, id int64) error {
	homes, err := a.ListHomes(ctx)
	if err != nil {
		return err
	}
	if _, ok := lo.Find(homes, func(h core.Home) bool { return h.ID == id }); !ok {
		return core.NotFound("home not found")
	}
	if len(homes) == 1 {
		return core.InvalidInput("cannot delete the last home")
	}

	active, err := a.store.ActiveHome(ctx)
	if err != nil {
		return err
	}
	if active == nil || active.ID == id {
		survivor, _ := lo.Find(homes, func(h core.Home) bool { return h.ID != id })
		if err := a.store.SetActiveHome(ctx, survivor.ID); err != nil {
			return err
		}
	}
	return a.store.DeleteHome(ctx, id)
}

// DetectedHome is a Codex home found on disk and whether it is tracked.
type DetectedHome struct {
	detect.Candidate
	HomeID *int64 `json:"home_id"`
}

// DetectHomes lists Codex homes found on disk. With track set, untracked
// homes are added without changing the active home.
func (a *App) DetectHomes(ctx context.Context, track bool) ([]DetectedHome, error) {
	candidates := a.detect()
	out := make([]DetectedHome, len(candidates))
	for i, c := range candidates {
		out[i].Candidate = c
		h, err := a.store.HomeByPath(ctx, c.Path)
		if err != nil {
			return nil, err
		}
		if h == nil && track {
			created, err := a.store.GetOrCreateHome(ctx, c.Path, "")
			if err != nil {
				return nil, err
			}
			h = &created
		}
		if h != nil {
			out[i].HomeID = lo.ToPtr(h.ID)
		}
	}
	return out, nil
}

func (a *App) ClearHome(ctx context.Context, id int64) error {
	return a.store.ClearHomeData(ctx, id)
}

func (a *App) HomeCounts(ctx context.Context, id int64) (core.HomeCounts, error) {
	return a.store.HomeCounts(ctx, id)
}

func (a *App) ListPricing(ctx context.Context) (pricing.Rules, error) {
	return a.store.ListPricingRules(ctx)
}

// ReplacePricing stores rules and rewrites the mirror file. A mirror write
// failure is logged and does not fail the call.
func (a *App) ReplacePricing(ctx context.Context, inputs []core.PricingRuleInput) (pricing.Rules, error) {
	rules, err := a.store.ReplacePricingRules(ctx, inputs)
	if err != nil {
		return nil, err
	}
	if err := pricing.SaveFile(a.cfg.PricingPath, ruleInputs(rules)); err != nil {
		log.Printf("[pricing] mirror write failed path=%s: %v", a.cfg.PricingPath, err)
	}
	return rules, nil
}

// RecomputeCosts reprices every stored row of the active home.
func (a *App) RecomputeCosts(ctx context.Context) (int, error) {
	home, err := a.ActiveHome(ctx)
	if err != nil {
		return 0, err
	}
	rules, err := a.store.ListPricingRules(ctx)
	if err != nil {
		return 0, err
	}
	return a.store.UpdateEventCosts(ctx, home.ID, rules)
}

func (a *App) Ingest(ctx context.Context) (core.IngestStats, error) {
	home, err := a.ActiveHome(ctx)
	if err != nil {
		return core.IngestStats{}, err
	}
	return a.pipeline.Run(ctx, home.Path)
}

// Watch ingests the active home now and again whenever its transcripts
// change, until ctx is done. onRun observes each run.
func (a *App) Watch(ctx context.Context, onRun func(core.IngestStats)) error {
	home, err := a.ActiveHome(ctx)
	if err != nil {
		return err
	}
	w := ingest.NewWatcher(home.Path, ingest.WatchOptions{
		Debounce:    a.cfg.Watch.Debounce,
		MinInterval: a.cfg.Watch.MinInterval,
	}, func(ctx context.Context) error {
		stats, err := a.pipeline.Run(ctx, home.Path)
		if err != nil {
			return err
		}
		if onRun != nil {
			onRun(stats)
		}
		return nil
	})
	return w.Watch(ctx)
}

func (a *App) StoreStats(ctx context.Context) (store.StoreStats, error) {
	return a.store.Stats(ctx)
}

func (a *App) Compact(ctx context.Context) (store.CompactionResult, error) {
	return a.store.Compact(ctx)
}
