package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// Config file base names inside the config directory.
const (
	DispatcherFile = "dispatcher"
	CatalogFile    = "catalog"
	PolicyFile     = "policy"
	AgentsFile     = "agents"
)

var extensions = []string{".yaml", ".yml", ".toml"}

const defaultDebounce = 250 * time.Millisecond

// expandEnvVars replaces ${VAR} and ${VAR:default} patterns in a string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		submatch := envVarPattern.FindStringSubmatch(match)
		if len(submatch) < 2 {
			return match
		}
		varName := submatch[1]
		defaultVal := ""
		if len(submatch) >= 3 {
			defaultVal = submatch[2]
		}
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return defaultVal
	})
}

// LoadFile reads a YAML or TOML file (by extension), expands env vars, and
// decodes into dest.
func LoadFile(path string, dest any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	expanded := expandEnvVars(string(data))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(expanded, dest); err != nil {
			return fmt.Errorf("parse config file %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal([]byte(expanded), dest); err != nil {
			return fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	return nil
}

// FindFile returns the first existing <dir>/<base>{.yaml,.yml,.toml}.
func FindFile(dir, base string) (string, error) {
	for _, ext := range extensions {
		path := filepath.Join(dir, base+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", path, err)
		}
	}
	return "", fmt.Errorf("no %s config (%s) in %s: %w", base, strings.Join(extensions, ", "), dir, os.ErrNotExist)
}

// Snapshot is one consistent read of the config directory.
type Snapshot struct {
	Dir     string
	Config  *Config
	Catalog *CatalogConfig
	Policy  *PolicyConfig
	Agents  *AgentsConfig
}

// ResolvePath resolves a path from a config file relative to the config directory.
func (s *Snapshot) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.Dir, p)
}

// WatchDirs lists the directories holding files this snapshot was built
// from.
func (s *Snapshot) WatchDirs() []string {
	dirs := []string{s.Dir}
	rego := s.ResolvePath(s.Policy.Weights.Rego)
	if rego == "" {
		return dirs
	}
	dir := rego
	if info, err := os.Stat(rego); err != nil || !info.IsDir() {
		dir = filepath.Dir(rego)
	}
	if filepath.Clean(dir) != filepath.Clean(s.Dir) {
		dirs = append(dirs, dir)
	}
	return dirs
}

// Loader manages configuration loading and change notification via fsnotify.
type Loader struct {
	configDir string
	mu        sync.RWMutex
	snap      *Snapshot
	watchers  []func(*Snapshot)
	logger    *slog.Logger
	debounce  time.Duration
}

func NewLoader(configDir string, logger *slog.Logger) *Loader {
	return &Loader{
		configDir: configDir,
		logger:    logger,
		debounce:  defaultDebounce,
	}
}

func (l *Loader) Load() error {
	snap, err := l.read()
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.snap = snap
	l.mu.Unlock()

	l.logger.Info("configuration loaded", "dir", l.configDir, "models", len(snap.Catalog.Models))
	return nil
}

func (l *Loader) read() (*Snapshot, error) {
	snap := &Snapshot{
		Dir:     l.configDir,
		Config:  DefaultConfig(),
		Catalog: &CatalogConfig{},
		Policy:  &PolicyConfig{},
		Agents:  &AgentsConfig{},
	}
	files := []struct {
		base string
		dest any
	}{
		{DispatcherFile, snap.Config},
		{CatalogFile, snap.Catalog},
		{PolicyFile, snap.Policy},
		{AgentsFile, snap.Agents},
	}
	for _, f := range files {
		path, err := FindFile(l.configDir, f.base)
		if err != nil {
			return nil, fmt.Errorf("load %s config: %w", f.base, err)
		}
		if err := LoadFile(path, f.dest); err != nil {
			return nil, fmt.Errorf("load %s config: %w", f.base, err)
		}
	}
	return snap, nil
}

// Snapshot returns the most recently loaded configuration.
func (l *Loader) Snapshot() *Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snap
}

func (l *Loader) Config() *Config {
	return l.Snapshot().Config
}

// OnReload registers a callback that fires after config is reloaded.
func (l *Loader) OnReload(fn func(*Snapshot)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.watchers = append(l.watchers, fn)
}

// Watch reloads the configuration when a file in the config directory, or
// in the directory holding the Rego weight policy, changes. Bursts of events
// are coalesced into one reload. Watching stops when done is closed.
func (l *Loader) Watch(done <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	dirs := []string{l.configDir}
	if snap := l.Snapshot(); snap != nil {
		dirs = snap.WatchDirs()
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return fmt.Errorf("watch config dir %s: %w", dir, err)
		}
	}

	go l.watch(watcher, done)
	return nil
}

func (l *Loader) watch(watcher *fsnotify.Watcher, done <-chan struct{}) {
	defer watcher.Close()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-done:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !configEvent(event) {
				continue
			}
			l.logger.Debug("config file changed", "file", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(l.debounce)
			} else {
				timer.Reset(l.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			l.reload(watcher)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			l.logger.Error("fsnotify error", "error", err)
		}
	}
}

func (l *Loader) reload(watcher *fsnotify.Watcher) {
	l.logger.Info("configuration changed, reloading", "dir", l.configDir)
	if err := l.Load(); err != nil {
		l.logger.Error("failed to reload config", "error", err)
		return
	}

	l.mu.RLock()
	snap, fns := l.snap, append([]func(*Snapshot){}, l.watchers...)
	l.mu.RUnlock()

	// The policy may now point at a different Rego directory.
	for _, dir := range snap.WatchDirs() {
		if err := watcher.Add(dir); err != nil {
			l.logger.Warn("failed to watch config dir", "dir", dir, "error", err)
		}
	}
	for _, fn := range fns {
		fn(snap)
	}
}

func configEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(event.Name))
	return ext == ".rego" || slices.Contains(extensions, ext)
}
