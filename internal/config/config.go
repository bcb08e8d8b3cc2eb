package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/janekbaraniewski/codextracker/internal/pricing"
	"github.com/janekbaraniewski/codextracker/internal/store"
)

const (
	appDirName     = "codex-tracker"
	configFileName = "config.yaml"
)

type IngestConfig struct {
	// Workers bounds concurrent transcript parsing. Zero means GOMAXPROCS.
	Workers int `koanf:"workers" json:"workers"`
}

type WatchConfig struct {
	Debounce    time.Duration `koanf:"debounce" json:"debounce"`
	MinInterval time.Duration `koanf:"min_interval" json:"min_interval"`
}

type Config struct {
	DataDir     string       `koanf:"data_dir" json:"data_dir"`
	DBPath      string       `koanf:"db_path" json:"db_path"`
	PricingPath string       `koanf:"pricing_path" json:"pricing_path"`
	CodexHome   string       `koanf:"codex_home" json:"codex_home"`
	Ingest      IngestConfig `koanf:"ingest" json:"ingest"`
	Watch       WatchConfig  `koanf:"watch" json:"watch"`
}

func DefaultConfig() Config {
	cfg := Config{DataDir: store.DefaultDataDir()}
	cfg.applyDefaults()
	return cfg
}

func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, appDirName)
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), configFileName)
}

func Load() (Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads a YAML config file. A missing file yields the defaults.
func LoadFrom(path string) (Config, error) {
	var cfg Config
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return DefaultConfig(), fmt.Errorf("config: stat %s: %w", path, err)
		}
	} else {
		k := koanf.New(".")
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return DefaultConfig(), fmt.Errorf("config: parse %s: %w", path, err)
		}
		if err := k.Unmarshal("", &cfg); err != nil {
			return DefaultConfig(), fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return DefaultConfig(), err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.DataDir = strings.TrimSpace(c.DataDir)
	if c.DataDir == "" {
		c.DataDir = store.DefaultDataDir()
	}
	if strings.TrimSpace(c.DBPath) == "" {
		c.DBPath = filepath.Join(c.DataDir, store.DBFileName)
	}
	if strings.TrimSpace(c.PricingPath) == "" {
		c.PricingPath = filepath.Join(c.DataDir, pricing.FileName)
	}
	c.CodexHome = strings.TrimSpace(c.CodexHome)
	if c.Ingest.Workers == 0 {
		c.Ingest.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = 750 * time.Millisecond
	}
	if c.Watch.MinInterval == 0 {
		c.Watch.MinInterval = 5 * time.Second
	}
}

func (c Config) validate() error {
	if c.Ingest.Workers < 0 {
		return fmt.Errorf("config: ingest.workers must not be negative, got %d", c.Ingest.Workers)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("config: watch.debounce must not be negative, got %s", c.Watch.Debounce)
	}
	if c.Watch.MinInterval < 0 {
		return fmt.Errorf("config: watch.min_interval must not be negative, got %s", c.Watch.MinInterval)
	}
	return nil
}

// saveMu guards read-modify-write cycles on the config file.
var saveMu sync.Mutex

func Save(cfg Config) error {
	return SaveTo(ConfigPath(), cfg)
}

func SaveTo(path string, cfg Config) error {
	saveMu.Lock()
	defer saveMu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create dir: %w", err)
	}

	k := koanf.New(".")
	values := map[string]any{
		"data_dir":           cfg.DataDir,
		"db_path":            cfg.DBPath,
		"pricing_path":       cfg.PricingPath,
		"codex_home":         cfg.CodexHome,
		"ingest.workers":     cfg.Ingest.Workers,
		"watch.debounce":     cfg.Watch.Debounce.String(),
		"watch.min_interval": cfg.Watch.MinInterval.String(),
	}
	for key, v := range values {
		if err := k.Set(key, v); err != nil {
			return fmt.Errorf("config: set %s: %w", key, err)
		}
	}
	data, err := k.Marshal(yaml.Parser())
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write: %w", err)
	}
	return nil
}
