package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/ex30link/internal/app"
)

// envPrefix is stripped from environment variables during config loading (e.g., EX30LINK_VOLVO__CLIENT_ID → volvo.client_id)
const envPrefix = "EX30LINK_"

// listKeys are split on commas or spaces when read from the environment.
var listKeys = map[string]struct{}{
	"volvo.scopes": {},
}

// secretKeys must not sit in a config file other users can read.
var secretKeys = []string{"volvo.client_secret", "volvo.refresh_token"}

// loadConfig loads application configuration from various sources with precedence:
// config file → environment variables → CLI flags → defaults
func loadConfig(configPath string, cmd *cli.Command, environFunc func() []string) (*app.Config, error) {
	known, err := knownKeys()
	if err != nil {
		return nil, err
	}

	k := koanf.New(".")

	// 1. Load from config file if provided
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		for _, key := range k.Keys() {
			if _, ok := known[key]; !ok {
				slog.Warn("ignoring unknown config file key", "path", configPath, "key", key)
			}
		}
		checkSecretPermissions(k, configPath)
	}

	// 2. Load from environment variables
	envProvider := env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			stripped := strings.TrimPrefix(key, envPrefix)
			nested := strings.ToLower(strings.ReplaceAll(stripped, "__", "."))
			if _, ok := known[nested]; !ok {
				slog.Warn("ignoring unknown environment variable", "name", key)
				return "", nil
			}
			if _, ok := listKeys[nested]; ok {
				return nested, strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ' ' })
			}
			return nested, value
		},
		EnvironFunc: environFunc,
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	// 3. Load from CLI flags if provided
	if cmd != nil {
		flagValues := extractAndTransformFlags(cmd)
		if err := k.Load(confmap.Provider(flagValues, "."), nil); err != nil {
			return nil, fmt.Errorf("loading CLI flags: %w", err)
		}
	}

	config := &app.Config{}
	if err := k.UnmarshalWithConf("", config, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := config.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// knownKeys returns every dotted key app.Config accepts, derived from its json tags.
func knownKeys() (map[string]struct{}, error) {
	raw, err := json.Marshal(app.Config{})
	if err != nil {
		return nil, fmt.Errorf("listing config keys: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("listing config keys: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(fields, "."), nil); err != nil {
		return nil, fmt.Errorf("listing config keys: %w", err)
	}

	keys := make(map[string]struct{})
	for _, key := range k.Keys() {
		keys[key] = struct{}{}
	}
	return keys, nil
}

// checkSecretPermissions warns when a config file holding credentials is readable
// by group or others.
func checkSecretPermissions(k *koanf.Koanf, configPath string) {
	var present []string
	for _, key := range secretKeys {
		if k.String(key) != "" {
			present = append(present, key)
		}
	}
	if len(present) == 0 {
		return
	}

	info, err := os.Stat(configPath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		slog.Warn("config file holding credentials is readable by other users, restrict it with chmod 600",
			"path", configPath, "mode", perm.String(), "keys", present)
	}
}

// extractAndTransformFlags transforms CLI flag names to match config structure.
// Includes parent flags. Examples: --server--host → server.host, --log-level → log_level
func extractAndTransformFlags(cmd *cli.Command) map[string]any {
	values := make(map[string]any)

	// FlagNames() includes flags from parent commands (via lineage)
	for _, name := range cmd.FlagNames() {
		// Skip unset flags to preserve precedence from earlier config sources
		if !cmd.IsSet(name) {
			continue
		}

		if value := cmd.Value(name); value != nil {
			key := strings.ReplaceAll(name, "--", ".")
			key = strings.ReplaceAll(key, "-", "_")
			values[key] = value
		}
	}

	return values
}
