package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "MEMVAULT_"
	// Delimiter is the key delimiter for nested config.
	Delimiter = "."
	// envNesting separates nested keys in environment variable names, since
	// single underscores appear inside key names.
	envNesting = "__"
)

// searchPaths are tried in order when no config file is given.
var searchPaths = []string{
	"memvault.yaml",
	"config.yaml",
	"config.yml",
	"config.json",
	"/etc/memvault/config.yaml",
}

// envAliases maps conventional provider variables onto config keys. A
// MEMVAULT_-prefixed variable for the same key wins.
var envAliases = map[string]string{
	"OPENAI_API_KEY":  "providers.openai_api_key",
	"OPENAI_BASE_URL": "providers.openai_base_url",
	"OLLAMA_BASE_URL": "providers.ollama_base_url",
}

// listKeys are split on commas when read from the environment.
var listKeys = map[string]bool{
	"auth.bootstrap_namespaces":   true,
	"server.cors.allowed_origins": true,
	"server.cors.allowed_methods": true,
	"server.cors.allowed_headers": true,
}

// Loader merges defaults, a config file, the environment and explicit
// overrides, in increasing priority, into a validated Config.
type Loader struct {
	k *koanf.Koanf
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{k: koanf.New(Delimiter)}
}

// Load builds a Config. With an empty configPath the first file found in
// searchPaths is used, if any; an explicit path must exist.
func (l *Loader) Load(configPath string, overrides map[string]interface{}) (*Config, error) {
	l.k = koanf.New(Delimiter)

	layers := []struct {
		name string
		load func() error
	}{
		{"defaults", l.loadDefaults},
		{"config file", func() error { return l.loadFile(configPath) }},
		{"env vars", l.loadEnv},
		{"overrides", func() error { return l.loadMap(overrides) }},
	}
	for _, layer := range layers {
		if err := layer.load(); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", layer.name, err)
		}
	}

	var cfg Config
	if err := l.k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "mapstructure"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := ValidateWithDetails(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDefaults loads DefaultConfig as flat dotted keys so that later layers
// merge field by field instead of replacing whole sections.
func (l *Loader) loadDefaults() error {
	flat := make(map[string]interface{})
	flatten(reflect.ValueOf(DefaultConfig()), "", flat)
	return l.loadMap(flat)
}

func (l *Loader) loadMap(m map[string]interface{}) error {
	if len(m) == 0 {
		return nil
	}
	return l.k.Load(confmap.Provider(m, Delimiter), nil)
}

func (l *Loader) loadFile(path string) error {
	if path == "" {
		for _, candidate := range searchPaths {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			return nil
		}
	} else if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config file not found: %s", path)
	}

	var parser koanf.Parser
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}
	return l.k.Load(file.Provider(path), parser)
}

// loadEnv loads configuration from environment variables.
//
//	MEMVAULT_SERVER__PORT                -> server.port
//	MEMVAULT_COMPACTION__EVENT_THRESHOLD -> compaction.event_threshold
//	MEMVAULT_AUTH__BOOTSTRAP_NAMESPACES  -> auth.bootstrap_namespaces (comma list)
func (l *Loader) loadEnv() error {
	if err := l.k.Load(env.ProviderWithValue(EnvPrefix, Delimiter, envValue), nil); err != nil {
		return err
	}

	aliases := make(map[string]interface{})
	for name, key := range envAliases {
		if _, prefixed := os.LookupEnv(EnvPrefix + envName(key)); prefixed {
			continue
		}
		if v := os.Getenv(name); v != "" {
			aliases[key] = v
		}
	}
	return l.loadMap(aliases)
}

func envValue(name, value string) (string, interface{}) {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	key = strings.ReplaceAll(key, envNesting, Delimiter)
	if !listKeys[key] {
		return key, value
	}
	items := []string{}
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return key, items
}

func envName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, Delimiter, envNesting))
}

// flatten writes every mapstructure-tagged leaf of v into out under its
// dotted key.
func flatten(v reflect.Value, prefix string, out map[string]interface{}) {
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if !field.IsExported() || tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + Delimiter + tag
		}

		fv := v.Field(i)
		switch fv.Kind() {
		case reflect.Struct, reflect.Ptr:
			flatten(fv, key, out)
		case reflect.Slice:
			items := make([]interface{}, fv.Len())
			for j := range items {
				items[j] = fv.Index(j).Interface()
			}
			out[key] = items
		default:
			out[key] = fv.Interface()
		}
	}
}

// Load is a convenience function to load configuration.
func Load(configPath string, overrides map[string]interface{}) (*Config, error) {
	return NewLoader().Load(configPath, overrides)
}
