/*-------------------------------------------------------------------------
 *
 * LATS Admin - Reloadable Configuration
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package config

import (
	"errors"
	"fmt"
	"sync"

	"lats-admin/internal/logging"
)

// ReloadableConfig holds the configuration of a long running watch. Import
// tuning, phone rules and logging follow the file; the connection settings
// stay pinned to the values the destination was opened with.
type ReloadableConfig struct {
	mu       sync.RWMutex
	current  *Config
	path     string
	flags    CLIFlags
	handlers []func(*Config)
}

// NewReloadableConfig wraps cfg, which was loaded from path with flags
func NewReloadableConfig(cfg *Config, path string, flags CLIFlags) *ReloadableConfig {
	return &ReloadableConfig{current: cfg, path: path, flags: flags}
}

// Get returns the configuration for the next run. Callers must not modify it.
func (rc *ReloadableConfig) Get() *Config {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.current
}

// OnReload registers fn to run after every successful reload
func (rc *ReloadableConfig) OnReload(fn func(*Config)) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.handlers = append(rc.handlers, fn)
}

// Reload reads the file again. On error the previous configuration stays in
// effect.
func (rc *ReloadableConfig) Reload() error {
	if rc.path == "" {
		return errors.New("no configuration file to reload")
	}

	next, err := LoadConfig(rc.path, rc.flags)
	if err != nil {
		return fmt.Errorf("configuration not reloaded: %w", err)
	}

	rc.mu.Lock()
	pinned := pinConnection(rc.current, next)
	rc.current = next
	handlers := append([]func(*Config){}, rc.handlers...)
	rc.mu.Unlock()

	for _, name := range pinned {
		logging.Warn("setting changed but only applies after restart", "section", name)
	}
	for _, fn := range handlers {
		fn(next)
	}

	logging.Info("configuration reloaded",
		"path", rc.path,
		"batch_size", next.Import.BatchSize,
		"concurrency", next.Import.Concurrency,
		"batch_delay", next.Import.BatchDelay,
		"dedupe_names", next.Import.DedupeNames)
	return nil
}

// pinConnection copies the connection sections of old into next and returns
// the names of the sections whose new values were discarded.
func pinConnection(old, next *Config) []string {
	var pinned []string
	if old.Database != next.Database {
		pinned = append(pinned, "database")
		next.Database = old.Database
	}
	if old.Supabase != next.Supabase {
		pinned = append(pinned, "supabase")
		next.Supabase = old.Supabase
	}
	if old.Destination != next.Destination {
		pinned = append(pinned, "destination")
		next.Destination = old.Destination
	}
	if old.Retry != next.Retry {
		pinned = append(pinned, "retry")
		next.Retry = old.Retry
	}
	return pinned
}
