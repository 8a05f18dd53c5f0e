package config

import (
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/quiver/pkg/errors"
)

// EnvPrefix prefixes environment overrides read by LoadWithViper, e.g.
// QUIVER_COMPRESSION_ALGORITHM=zstd.
const EnvPrefix = "QUIVER"

// Load reads a YAML file over the defaults. ${VAR} references in the file
// are replaced with environment values before parsing.
func Load(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeIO, "failed to read config file")
	}

	cfg := NewConfig()
	if err := yaml.Unmarshal([]byte(substituteEnvVars(string(data))), cfg); err != nil {
		return nil, errors.Wrap(err, errors.CodeValidation, "failed to parse YAML")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML.
func Save(filePath string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, errors.CodeValidation, "failed to marshal YAML")
	}
	if err := os.WriteFile(filePath, data, 0o644); err != nil { //nolint:gosec
		return errors.Wrap(err, errors.CodeIO, "failed to write config file")
	}
	return nil
}

// LoadWithViper layers, lowest first: defaults, the YAML file at filePath
// (skipped when empty) and QUIVER_* environment variables. Nested keys map
// to variables with dots replaced by underscores, so engine.max_batch_rows
// is QUIVER_ENGINE_MAX_BATCH_ROWS. A nil v gets a fresh viper instance.
func LoadWithViper(filePath string, v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	defaults, err := flatten(NewConfig())
	if err != nil {
		return nil, err
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if filePath != "" {
		data, err := os.ReadFile(filePath) //nolint:gosec // G304: path comes from the operator
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeIO, "failed to read config file")
		}
		v.SetConfigType("yaml")
		if err := v.MergeConfig(strings.NewReader(substituteEnvVars(string(data)))); err != nil {
			return nil, errors.Wrap(err, errors.CodeValidation, "failed to parse YAML")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) { dc.TagName = "yaml" }); err != nil {
		return nil, errors.Wrap(err, errors.CodeValidation, "failed to decode configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// flatten turns cfg into dotted keys ("engine.allocator") with leaf values.
func flatten(cfg *Config) (map[string]interface{}, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidation, "failed to marshal defaults")
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, errors.Wrap(err, errors.CodeValidation, "failed to read defaults")
	}

	out := make(map[string]interface{})
	var walk func(prefix string, node map[string]interface{})
	walk = func(prefix string, node map[string]interface{}) {
		for k, val := range node {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if child, ok := val.(map[string]interface{}); ok {
				walk(key, child)
				continue
			}
			out[key] = val
		}
	}
	walk("", tree)
	return out, nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		envValue := os.Getenv(varName)
		content = content[:start] + envValue + content[end+1:]
	}
	return content
}
