package config

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/zeebo/blake3"
)

// SettingsFileName is the name of the persisted settings document.
const SettingsFileName = "settings.json"

// Source records where a loaded configuration came from.
type Source string

const (
	SourceDefaults Source = "defaults"
	SourceFile     Source = "file"
	SourceMigrated Source = "migrated"
)

// Store owns the process-wide AppConfig and its persisted JSON document.
//
// Writers are serialized by writeMu for the whole read-modify-write cycle,
// including the disk swap. The snapshot itself is guarded by mu, which is
// never held across I/O, so readers do not wait on disk.
type Store struct {
	path     string
	platform Platform
	logger   zerolog.Logger
	schemas  *SchemaValidator

	writeMu sync.Mutex

	mu     sync.RWMutex
	config AppConfig
	digest string
}

// NewStore creates a store for the settings file at path. The in-memory
// snapshot starts at the platform defaults until Load is called.
func NewStore(path string, platform Platform, logger zerolog.Logger) *Store {
	return &Store{
		path:     path,
		platform: platform,
		logger:   logger.With().Str("component", "config-store").Logger(),
		schemas:  NewSchemaValidator(),
		config:   DefaultConfig(platform),
	}
}

// Path returns the settings file path.
func (s *Store) Path() string {
	return s.path
}

// Platform returns the platform whose defaults this store uses.
func (s *Store) Platform() Platform {
	return s.platform
}

// Load reads the settings file, migrating a legacy document forward when
// needed, and replaces the in-memory snapshot. It never fails: unreadable or
// unparsable files fall back to the platform defaults.
func (s *Store) Load() AppConfig {
	cfg, _ := s.LoadWithSource()
	return cfg
}

// LoadWithSource is Load that also reports where the configuration came from.
func (s *Store) LoadWithSource() (AppConfig, Source) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cfg, source, data, err := s.read()
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.logger.Info().Str("path", s.path).Msg("No settings file found, using defaults")
		cfg, source = DefaultConfig(s.platform), SourceDefaults
	case err != nil:
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Failed to load settings, using defaults")
		cfg, source = DefaultConfig(s.platform), SourceDefaults
	case source == SourceMigrated:
		s.logger.Info().Str("path", s.path).Msg("Migrating settings to current format")
		if persistErr := s.persist(cfg); persistErr != nil {
			s.logger.Warn().Err(persistErr).Msg("Failed to save migrated settings")
		} else {
			s.logger.Info().Msg("Settings migration successful")
			data = nil
		}
	default:
		s.logger.Info().Str("path", s.path).Msg("Loaded settings")
	}

	s.mu.Lock()
	s.config = cfg.Clone()
	if data != nil {
		s.digest = digestOf(data)
	}
	s.mu.Unlock()

	return cfg, source
}

// Reload re-reads the settings file after an external change. Unlike Load it
// keeps the current snapshot when the file cannot be used.
func (s *Store) Reload() (AppConfig, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cfg, source, data, err := s.read()
	if err != nil {
		return s.Config(), fmt.Errorf("failed to reload settings: %w", err)
	}
	if source == SourceMigrated {
		if err := s.persist(cfg); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to save migrated settings")
		} else {
			data = nil
		}
	}

	s.mu.Lock()
	s.config = cfg.Clone()
	if data != nil {
		s.digest = digestOf(data)
	}
	s.mu.Unlock()

	return cfg, nil
}

// Config returns a copy of the current configuration.
func (s *Store) Config() AppConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.Clone()
}

// Digest returns the blake3 digest of the document last read or written.
func (s *Store) Digest() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.digest
}

// Save persists cfg and replaces the in-memory snapshot. The file is swapped
// atomically; on error neither the file nor the snapshot changes.
func (s *Store) Save(cfg AppConfig) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.saveLocked(cfg)
}

// Update applies fn to a copy of the current configuration and saves the
// whole document. Every settings mutation goes through here so that fields
// set by other callers are never lost.
func (s *Store) Update(fn func(cfg *AppConfig)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cfg := s.Config()
	fn(&cfg)
	return s.saveLocked(cfg)
}

// SetShortcutConfig replaces the shortcut bindings, preserving connection settings.
// The new bindings take effect after a restart.
func (s *Store) SetShortcutConfig(sc ShortcutConfig) error {
	return s.Update(func(cfg *AppConfig) {
		cfg.Shortcuts = sc.Clone()
	})
}

// UpdateConnectionURL replaces the connection URL, preserving all other fields.
func (s *Store) UpdateConnectionURL(url *string) error {
	return s.Update(func(cfg *AppConfig) {
		cfg.ConnectionURL = clonePtr(url)
	})
}

// UpdateConnectionAPIKey replaces the API key, preserving all other fields.
func (s *Store) UpdateConnectionAPIKey(key *string) error {
	return s.Update(func(cfg *AppConfig) {
		cfg.ConnectionAPIKey = clonePtr(key)
	})
}

func (s *Store) saveLocked(cfg AppConfig) error {
	cfg = normalize(cfg)
	if err := s.persist(cfg); err != nil {
		s.logger.Error().Err(err).Str("path", s.path).Msg("Failed to save settings")
		return err
	}

	s.mu.Lock()
	s.config = cfg.Clone()
	s.mu.Unlock()

	s.logger.Info().Str("path", s.path).Msg("Saved settings")
	return nil
}

// read loads and decodes the settings file without touching the snapshot.
// data is the raw document that was decoded.
func (s *Store) read() (AppConfig, Source, []byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return AppConfig{}, "", nil, err
		}
		return AppConfig{}, "", nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	currentErr := s.schemas.ValidateCurrent(data)
	if currentErr == nil {
		var cfg AppConfig
		if err := json.Unmarshal(data, &cfg); err != nil {
			return AppConfig{}, "", nil, fmt.Errorf("failed to decode settings: %w", err)
		}
		return normalize(cfg), SourceFile, data, nil
	}

	legacyErr := s.schemas.ValidateLegacy(data)
	if legacyErr == nil {
		var sc ShortcutConfig
		if err := json.Unmarshal(data, &sc); err != nil {
			return AppConfig{}, "", nil, fmt.Errorf("failed to decode legacy settings: %w", err)
		}
		return normalize(AppConfig{Shortcuts: sc}), SourceMigrated, data, nil
	}

	return AppConfig{}, "", nil, fmt.Errorf("settings match neither current (%v) nor legacy (%v) format", currentErr, legacyErr)
}

// persist writes cfg to a temporary file next to the target and renames it
// into place, then records the digest of what was written.
func (s *Store) persist(cfg AppConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+SettingsFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp settings file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync settings file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close settings file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace settings file: %w", err)
	}

	s.mu.Lock()
	s.digest = digestOf(data)
	s.mu.Unlock()

	return nil
}

func normalize(cfg AppConfig) AppConfig {
	if cfg.Shortcuts.AgentShortcuts == nil {
		cfg.Shortcuts.AgentShortcuts = map[string]string{}
	}
	return cfg
}

// DigestBytes returns the hex blake3 digest of data.
func DigestBytes(data []byte) string {
	return digestOf(data)
}

func digestOf(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
