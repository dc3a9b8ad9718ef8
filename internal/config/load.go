package config

import (
	"fmt"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load reads the config document at path and validates it, following the
// teacher's koanf-backed loading style (internal/config/koanf.go) while
// keeping the actual schema validation in Parse (config.go), which koanf's
// struct-tag binding cannot express (path-annotated errors, residual-key
// rejection).
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if isYAMLPath(path) {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
		if err := k.Load(confmap.Provider(doc, "."), nil); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg, err := Parse(k.Raw())
	if err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func isYAMLPath(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}
