// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/joshndala/shyft-rag-app/internal/logging"
	"github.com/joshndala/shyft-rag-app/internal/util"
)

// CurrentVersion is written into newly created config files.
const CurrentVersion = "1"

// DefaultServerURL is the address the reference backend listens on.
const DefaultServerURL = "http://127.0.0.1:8000"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete shyft configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	Server  ServerConfig  `toml:"server" json:"server"`
	Search  SearchConfig  `toml:"search" json:"search"`
	Log     LogConfig     `toml:"log" json:"log"`
	History HistoryConfig `toml:"history" json:"history"`
	Watch   WatchConfig   `toml:"watch" json:"watch"`
	UI      UIConfig      `toml:"ui" json:"ui"`
}

// ServerConfig describes the RAG backend.
type ServerConfig struct {
	// URL is the backend base URL, e.g. http://127.0.0.1:8000
	URL string `toml:"url" json:"url"`
	// TimeoutSecs bounds upload, search and non-streaming ask requests.
	// Answer streams are never timed out.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	// SearchCacheTTLSecs caches identical searches for this long. 0 disables.
	SearchCacheTTLSecs int `toml:"search_cache_ttl_secs" json:"search_cache_ttl_secs"`
}

// SearchConfig holds the default hybrid search parameters.
type SearchConfig struct {
	TopK           int     `toml:"top_k" json:"top_k"`
	SemanticWeight float64 `toml:"semantic_weight" json:"semantic_weight"`
	KeywordWeight  float64 `toml:"keyword_weight" json:"keyword_weight"`
	// SnippetLength is the display width result text is truncated to.
	SnippetLength int `toml:"snippet_length" json:"snippet_length"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	// Level is debug, info, warn or error
	Level string `toml:"level" json:"level"`
	// File overrides the log file path. Empty means <config dir>/logs/shyft.log
	File string `toml:"file" json:"file"`
	// Console mirrors log entries to stderr
	Console bool `toml:"console" json:"console"`
}

// HistoryConfig controls the local query history database.
type HistoryConfig struct {
	Enabled bool `toml:"enabled" json:"enabled"`
	// Path overrides the database path. Empty means <config dir>/history.db
	Path string `toml:"path" json:"path"`
	// MaxEntries prunes the oldest entries past this count. 0 keeps everything.
	MaxEntries int `toml:"max_entries" json:"max_entries"`
}

// WatchConfig controls `shyft watch`.
type WatchConfig struct {
	// Extensions lists the file suffixes that are uploaded
	Extensions []string `toml:"extensions" json:"extensions"`
	// DebounceMillis coalesces bursts of filesystem events per file
	DebounceMillis int `toml:"debounce_millis" json:"debounce_millis"`
	// UploadsPerMinute rate limits uploads. 0 means unlimited.
	UploadsPerMinute int `toml:"uploads_per_minute" json:"uploads_per_minute"`
	// StateFile overrides where uploaded file hashes are kept
	StateFile string `toml:"state_file" json:"state_file"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is "dark", "light" or "auto"
	Theme string `toml:"theme" json:"theme"`
	// Markdown renders answers through glamour when attached to a terminal
	Markdown bool `toml:"markdown" json:"markdown"`
	// ShowScores prints relevance scores next to search results
	ShowScores bool `toml:"show_scores" json:"show_scores"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Server: ServerConfig{
			URL:                DefaultServerURL,
			TimeoutSecs:        60,
			SearchCacheTTLSecs: 0,
		},
		Search: SearchConfig{
			TopK:           5,
			SemanticWeight: 0.7,
			KeywordWeight:  0.3,
			SnippetLength:  300,
		},
		Log: LogConfig{
			Level: "info",
		},
		History: HistoryConfig{
			Enabled:    true,
			MaxEntries: 1000,
		},
		Watch: WatchConfig{
			Extensions:       []string{".pdf", ".html"},
			DebounceMillis:   500,
			UploadsPerMinute: 30,
		},
		UI: UIConfig{
			Theme:      "auto",
			Markdown:   true,
			ShowScores: true,
		},
	}
}

// Timeout returns the request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Server.TimeoutSecs) * time.Second
}

// SearchCacheTTL returns the search cache lifetime. Zero disables caching.
func (c *Config) SearchCacheTTL() time.Duration {
	return time.Duration(c.Server.SearchCacheTTLSecs) * time.Second
}

// Debounce returns the watcher debounce window.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMillis) * time.Millisecond
}

// LogPath returns the configured log file or the default under ConfigDir.
func (c *Config) LogPath() string {
	if c.Log.File != "" {
		return c.Log.File
	}
	return defaultPath("logs", "shyft.log")
}

// HistoryPath returns the configured history database or the default.
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return defaultPath("history.db")
}

// WatchStatePath returns the configured watch state file or the default.
func (c *Config) WatchStatePath() string {
	if c.Watch.StateFile != "" {
		return c.Watch.StateFile
	}
	return defaultPath("watch-state.json")
}

func defaultPath(elem ...string) string {
	dir, err := ConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(append([]string{dir}, elem...)...)
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the shyft configuration directory. SHYFT_CONFIG_DIR
// overrides the default of ~/.shyft.
func ConfigDir() (string, error) {
	if dir := os.Getenv("SHYFT_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".shyft"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ensureSecurePermissions tightens config files to 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// LoadDotEnv loads KEY=VALUE pairs from the given files (./.env when none
// are given) into the process environment. Variables that are already set
// win. Missing files are not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults. .env values and
// environment overrides are applied last.
//
// A broken config file does not prevent startup: defaults are returned
// together with the load error.
func Load() (*Config, error) {
	var loadErr error
	if err := LoadDotEnv(); err != nil {
		loadErr = err
	}

	if tomlPath, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			cfg := Default()
			if err := LoadTOML(cfg, tomlPath); err != nil {
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
			} else {
				return finish(cfg)
			}
		}
	}

	if jsonPath, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			cfg := Default()
			if err := LoadJSON(cfg, jsonPath); err != nil {
				loadErr = fmt.Errorf("failed to load JSON config: %w", err)
			} else {
				return finish(cfg)
			}
		}
	}

	cfg, err := finish(Default())
	if err != nil {
		return nil, err
	}
	return cfg, loadErr
}

// LoadFromPath loads configuration from a specific file with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file on top of cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		fmt.Fprintf(os.Stderr, "Warning: unknown config keys in %s: %s\n", path, strings.Join(keys, ", "))
	}
	return nil
}

// LoadJSON decodes a JSON file on top of cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	b.WriteString("# shyft configuration file\n")
	b.WriteString("# Generated by shyft - edit with care\n\n")

	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes cfg as indented JSON with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks ranges and formats. Search weights are only range-checked;
// they are sent to the backend as configured, never normalized.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Server.URL == "" {
		errs = append(errs, ValidationError{"server.url", "must not be empty"})
	} else if u, err := url.Parse(c.Server.URL); err != nil {
		errs = append(errs, ValidationError{"server.url", fmt.Sprintf("invalid URL: %v", err)})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, ValidationError{"server.url", "scheme must be http or https"})
	} else if u.Host == "" {
		errs = append(errs, ValidationError{"server.url", "missing host"})
	}
	if c.Server.TimeoutSecs < 0 {
		errs = append(errs, ValidationError{"server.timeout_secs", "must not be negative"})
	}
	if c.Server.SearchCacheTTLSecs < 0 {
		errs = append(errs, ValidationError{"server.search_cache_ttl_secs", "must not be negative"})
	}

	if c.Search.TopK < 1 || c.Search.TopK > 100 {
		errs = append(errs, ValidationError{"search.top_k", "must be between 1 and 100"})
	}
	if c.Search.SemanticWeight < 0 || c.Search.SemanticWeight > 1 {
		errs = append(errs, ValidationError{"search.semantic_weight", "must be between 0 and 1"})
	}
	if c.Search.KeywordWeight < 0 || c.Search.KeywordWeight > 1 {
		errs = append(errs, ValidationError{"search.keyword_weight", "must be between 0 and 1"})
	}
	if c.Search.SnippetLength < 0 {
		errs = append(errs, ValidationError{"search.snippet_length", "must not be negative"})
	}

	if !logging.ValidLevel(c.Log.Level) {
		errs = append(errs, ValidationError{"log.level", "must be debug, info, warn or error"})
	}

	if c.History.MaxEntries < 0 {
		errs = append(errs, ValidationError{"history.max_entries", "must not be negative"})
	}

	for _, ext := range c.Watch.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			errs = append(errs, ValidationError{"watch.extensions", fmt.Sprintf("%q must look like .pdf", ext)})
		}
	}
	if c.Watch.DebounceMillis < 0 {
		errs = append(errs, ValidationError{"watch.debounce_millis", "must not be negative"})
	}
	if c.Watch.UploadsPerMinute < 0 {
		errs = append(errs, ValidationError{"watch.uploads_per_minute", "must not be negative"})
	}

	switch c.UI.Theme {
	case "dark", "light", "auto":
	default:
		errs = append(errs, ValidationError{"ui.theme", "must be dark, light or auto"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero values that have no meaningful zero setting.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Version == "" {
		c.Version = d.Version
	}
	c.Server.URL = strings.TrimRight(strings.TrimSpace(c.Server.URL), "/")
	if c.Server.URL == "" {
		c.Server.URL = d.Server.URL
	}
	if c.Search.TopK == 0 {
		c.Search.TopK = d.Search.TopK
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if len(c.Watch.Extensions) == 0 {
		c.Watch.Extensions = d.Watch.Extensions
	}
	for i, ext := range c.Watch.Extensions {
		c.Watch.Extensions[i] = strings.ToLower(strings.TrimSpace(ext))
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - SHYFT_SERVER_URL: overrides server.url
//   - SHYFT_TIMEOUT: overrides server.timeout_secs
//   - SHYFT_TOP_K: overrides search.top_k
//   - SHYFT_SEMANTIC_WEIGHT / SHYFT_KEYWORD_WEIGHT: override search weights
//   - SHYFT_LOG_LEVEL / SHYFT_LOG_FILE: override logging
//   - SHYFT_HISTORY: "0" or "false" disables the history database
//
// Unparseable numeric values are ignored with a warning.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("SHYFT_SERVER_URL"); v != "" {
		c.Server.URL = v
	}
	envInt("SHYFT_TIMEOUT", &c.Server.TimeoutSecs)
	envInt("SHYFT_TOP_K", &c.Search.TopK)
	envFloat("SHYFT_SEMANTIC_WEIGHT", &c.Search.SemanticWeight)
	envFloat("SHYFT_KEYWORD_WEIGHT", &c.Search.KeywordWeight)
	if v := os.Getenv("SHYFT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("SHYFT_LOG_FILE"); v != "" {
		c.Log.File = v
	}
	if v := os.Getenv("SHYFT_HISTORY"); v != "" {
		c.History.Enabled = parseBool(v)
	}
}

func envInt(name string, dst *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: ignoring %s=%q: not an integer\n", name, v)
		return
	}
	*dst = n
}

func envFloat(name string, dst *float64) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: ignoring %s=%q: not a number\n", name, v)
		return
	}
	*dst = f
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g. "search.top_k").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field's type; lists are comma separated.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown key: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("key %q is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("key '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// fieldByTag finds a struct field by its toml tag, accepting kebab-case too.
func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	name = strings.ReplaceAll(strings.ToLower(name), "-", "_")
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if tagName(t.Field(i)) == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func tagName(f reflect.StructField) string {
	tag := f.Tag.Get("toml")
	if idx := strings.Index(tag, ","); idx >= 0 {
		tag = tag[:idx]
	}
	return tag
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		strVal = strings.TrimSpace(strVal)
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			n, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %q", strVal)
			}
			field.SetInt(n)
			return nil
		case reflect.Float64:
			f, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid number value: %q", strVal)
			}
			field.SetFloat(f)
			return nil
		case reflect.Bool:
			field.SetBool(parseBool(strVal))
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				var items []string
				for _, item := range strings.Split(strVal, ",") {
					if item = strings.TrimSpace(item); item != "" {
						items = append(items, item)
					}
				}
				field.Set(reflect.ValueOf(items))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return errors.New("cannot assign nil")
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) && val.Kind() != reflect.String {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns every settable key in dot notation, sorted.
func GetAllKeys() []string {
	var keys []string
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name := tagName(f)
			if name == "" || name == "-" {
				continue
			}
			if f.Type.Kind() == reflect.Struct {
				walk(f.Type, prefix+name+".")
				continue
			}
			keys = append(keys, prefix+name)
		}
	}
	walk(reflect.TypeOf(Config{}), "")
	sort.Strings(keys)
	return keys
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Watch.Extensions != nil {
		clone.Watch.Extensions = append([]string(nil), c.Watch.Extensions...)
	}
	return &clone
}

// String returns the config as indented JSON.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the process-wide configuration, loading it on first access.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
		}
		globalConfigMu.Lock()
		globalConfig = cfg
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// SetGlobal sets the global configuration instance.
func SetGlobal(cfg *Config) {
	globalConfigOnce.Do(func() {})
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state between tests.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
