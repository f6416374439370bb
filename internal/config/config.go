// Package config layers chatvault's settings the way the teacher's own
// config package does: a handful of bootstrap keys that must be known
// before the store can open live in config.yaml/env, everything else is
// persisted through internal/store's config table (spec.md §7 "Ambient
// stack").
package config

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/chatvault/chatvault/internal/store"
)

// BootstrapKeys are the settings read before the store opens, so they
// cannot live in the store's config table — mirroring the teacher's
// YamlOnlyKeys split in internal/config/yaml_config.go.
var BootstrapKeys = map[string]bool{
	"db-path":   true,
	"cache-dir": true,
	"addr":      true,
}

// IsBootstrapKey reports whether key must be read from config.yaml/env
// rather than the store's config table.
func IsBootstrapKey(key string) bool {
	return BootstrapKeys[key]
}

// Bootstrap holds the settings needed to open the store and start
// serving, resolved from (in increasing priority) defaults, config.yaml,
// and environment variables.
type Bootstrap struct {
	DBPath   string
	CacheDir string
	Addr     string
}

// LoadBootstrap resolves Bootstrap. configPath may be empty or point to
// a file that does not exist yet, in which case only defaults and env
// apply — chatvault init is what actually creates the file.
func LoadBootstrap(configPath string) (Bootstrap, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("CHATVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("db-path", "chatvault.db")
	v.SetDefault("cache-dir", "generated")
	v.SetDefault("addr", ":8080")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return Bootstrap{}, fmt.Errorf("config: read %s: %w", configPath, err)
			}
		}
	}

	return Bootstrap{
		DBPath:   v.GetString("db-path"),
		CacheDir: v.GetString("cache-dir"),
		Addr:     v.GetString("addr"),
	}, nil
}

// Settings is the non-bootstrap configuration surface, persisted
// through the store once it is open (spec.md §4.3).
type Settings struct {
	ChunkTarget     int
	ChunkOverlap    int
	RedactByDefault bool
}

// DefaultSettings matches what `chatvault init` seeds on first run.
func DefaultSettings() Settings {
	return Settings{
		ChunkTarget:     2000,
		ChunkOverlap:    200,
		RedactByDefault: false,
	}
}

const (
	keyChunkTarget     = "chunk-target"
	keyChunkOverlap    = "chunk-overlap"
	keyRedactByDefault = "redact-by-default"
)

// Load reads Settings from the store's config table, falling back to
// DefaultSettings for any key that has never been set.
func Load(ctx context.Context, s *store.Store) (Settings, error) {
	settings := DefaultSettings()

	if v, ok, err := s.GetConfigValue(ctx, keyChunkTarget); err != nil {
		return Settings{}, fmt.Errorf("config: load %s: %w", keyChunkTarget, err)
	} else if ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Settings{}, fmt.Errorf("config: %s is not an integer: %w", keyChunkTarget, err)
		}
		settings.ChunkTarget = n
	}

	if v, ok, err := s.GetConfigValue(ctx, keyChunkOverlap); err != nil {
		return Settings{}, fmt.Errorf("config: load %s: %w", keyChunkOverlap, err)
	} else if ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Settings{}, fmt.Errorf("config: %s is not an integer: %w", keyChunkOverlap, err)
		}
		settings.ChunkOverlap = n
	}

	if v, ok, err := s.GetConfigValue(ctx, keyRedactByDefault); err != nil {
		return Settings{}, fmt.Errorf("config: load %s: %w", keyRedactByDefault, err)
	} else if ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Settings{}, fmt.Errorf("config: %s is not a bool: %w", keyRedactByDefault, err)
		}
		settings.RedactByDefault = b
	}

	return settings, nil
}

// Save persists Settings to the store's config table.
func Save(ctx context.Context, s *store.Store, settings Settings) error {
	if err := s.SetConfigValue(ctx, keyChunkTarget, strconv.Itoa(settings.ChunkTarget)); err != nil {
		return fmt.Errorf("config: save %s: %w", keyChunkTarget, err)
	}
	if err := s.SetConfigValue(ctx, keyChunkOverlap, strconv.Itoa(settings.ChunkOverlap)); err != nil {
		return fmt.Errorf("config: save %s: %w", keyChunkOverlap, err)
	}
	if err := s.SetConfigValue(ctx, keyRedactByDefault, strconv.FormatBool(settings.RedactByDefault)); err != nil {
		return fmt.Errorf("config: save %s: %w", keyRedactByDefault, err)
	}
	return nil
}

// SetValue routes a single key/value write to whichever tier owns that
// key: bootstrap keys go to config.yaml, everything else to the store.
// This is the split the teacher's `bd config set` enforces via
// IsYamlOnlyKey, resolving GH#536 in the teacher's words: a key read at
// startup can't be changed by writing somewhere the startup code never
// looks.
func SetValue(ctx context.Context, s *store.Store, configPath, key, value string) error {
	if IsBootstrapKey(key) {
		return setYamlValue(configPath, key, value)
	}
	return s.SetConfigValue(ctx, key, value)
}

// setYamlValue rewrites key's line in configPath in place, preserving
// the rest of the file, adapted from the teacher's updateYamlKey.
func setYamlValue(configPath, key, value string) error {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", configPath, err)
	}

	updated, err := updateYamlKey(string(content), key, value)
	if err != nil {
		return err
	}

	if err := os.WriteFile(configPath, []byte(updated), 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", configPath, err)
	}
	return nil
}

func updateYamlKey(content, key, value string) (string, error) {
	newLine := fmt.Sprintf("%s: %s", key, formatYamlValue(value))
	keyPattern := regexp.MustCompile(`^(\s*)(#\s*)?` + regexp.QuoteMeta(key) + `\s*:`)

	var result []string
	found := false

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		if keyPattern.MatchString(line) {
			indent := ""
			if matches := keyPattern.FindStringSubmatch(line); len(matches) > 1 {
				indent = matches[1]
			}
			result = append(result, indent+newLine)
			found = true
		} else {
			result = append(result, line)
		}
	}

	if !found {
		if len(result) > 0 && result[len(result)-1] != "" {
			result = append(result, "")
		}
		result = append(result, newLine)
	}

	return strings.Join(result, "\n"), nil
}

func formatYamlValue(value string) string {
	lower := strings.ToLower(value)
	if lower == "true" || lower == "false" {
		return lower
	}
	if isNumeric(value) {
		return value
	}
	if needsQuoting(value) {
		return fmt.Sprintf("%q", value)
	}
	return value
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		if c == '-' && i == 0 {
			continue
		}
		if c == '.' {
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func needsQuoting(s string) bool {
	special := []string{":", "#", "[", "]", "{", "}", ",", "&", "*", "!", "|", ">", "'", "\"", "%", "@", "`"}
	for _, c := range special {
		if strings.Contains(s, c) {
			return true
		}
	}
	return strings.TrimSpace(s) != s
}
