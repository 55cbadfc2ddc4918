package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/tidwall/jsonc"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".usherbot"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("USHERBOT_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := resolveHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := resolveHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

func resolveHomeDir() (string, error) {
	if h := strings.TrimSpace(os.Getenv("USHERBOT_HOME")); h != "" {
		if strings.HasPrefix(h, "~") {
			base, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(base, h[1:]), nil
		}
		return h, nil
	}
	return os.UserHomeDir()
}

// Load loads the configuration from file and environment variables.
// Priority: environment > file > defaults.
func Load() (*Config, error) {
	// Load process env vars from ~/.usherbot/env (and fallbacks) first.
	LoadEnvFileCandidates()

	path, err := ConfigPath()
	if err != nil {
		return finalize(DefaultConfig()) // Use defaults if we can't find config path
	}
	return LoadFile(path)
}

// LoadFile loads path over the defaults, then applies environment
// overrides. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := loadResolvedConfig(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	// If file doesn't exist, continue with defaults

	// Override with environment variables for each group
	envconfig.Process("USHERBOT_PATHS", &cfg.Paths)
	envconfig.Process("USHERBOT_BOT", &cfg.Bot)
	envconfig.Process("USHERBOT_ADMISSION", &cfg.Admission)
	envconfig.Process("USHERBOT_CHAT", &cfg.Chat)
	envconfig.Process("USHERBOT_SCHEDULER", &cfg.Scheduler)
	envconfig.Process("USHERBOT_BRIDGE", &cfg.Bridge)
	envconfig.Process("USHERBOT_KAFKA", &cfg.Remote.Kafka)
	envconfig.Process("USHERBOT_RESPONDERS", &cfg.Responders)
	envconfig.Process("USHERBOT_PROVIDER", &cfg.Provider)
	envconfig.Process("USHERBOT_MAIL", &cfg.Mail)
	envconfig.Process("USHERBOT_NOTIFY", &cfg.Notify)

	// Fallback for API Key
	if cfg.Provider.APIKey == "" {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			cfg.Provider.APIKey = key
		} else if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
			cfg.Provider.APIKey = key
		}
	}

	return finalize(cfg)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// finalize expands paths and dictionary keys, then validates.
func finalize(cfg *Config) (*Config, error) {
	cfg.Paths.DataDir = expandHome(cfg.Paths.DataDir)
	resolve := func(p *string) {
		if *p == "" {
			return
		}
		*p = expandHome(*p)
		if !filepath.IsAbs(*p) {
			*p = filepath.Join(cfg.Paths.DataDir, *p)
		}
	}
	resolve(&cfg.Paths.KnownUsers)
	resolve(&cfg.Paths.CommandFile)
	resolve(&cfg.Paths.AuditDB)
	resolve(&cfg.Paths.LockFile)
	resolve(&cfg.Paths.ResponderFile)

	cfg.Chat.BroadcastCommands = ExpandPipes(cfg.Chat.BroadcastCommands)
	cfg.Chat.EmailCommands = ExpandPipes(cfg.Chat.EmailCommands)
	cfg.Chat.OneTimeHiSequences = ExpandPipes(cfg.Chat.OneTimeHiSequences)
	cfg.Chat.SmallTalkSequences = ExpandPipes(cfg.Chat.SmallTalkSequences)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ExpandPipes turns keys such as "hi|hello" into one lower-cased entry per
// alternative. Later alternatives do not overwrite earlier explicit keys.
func ExpandPipes[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for key, val := range in {
		if !strings.Contains(key, "|") {
			out[strings.ToLower(strings.TrimSpace(key))] = val
		}
	}
	for key, val := range in {
		if !strings.Contains(key, "|") {
			continue
		}
		for _, alt := range strings.Split(key, "|") {
			alt = strings.ToLower(strings.TrimSpace(alt))
			if alt == "" {
				continue
			}
			if _, exists := out[alt]; !exists {
				out[alt] = val
			}
		}
	}
	return out
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[1:])
		}
	}
	return p
}

// Save writes cfg to the default config path.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// EnsureDir ensures a directory exists with proper permissions.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func loadResolvedConfig(path string) ([]byte, error) {
	obj, err := loadConfigObject(path, map[string]struct{}{})
	if err != nil {
		return nil, err
	}
	return json.Marshal(obj)
}

func loadConfigObject(path string, visited map[string]struct{}) (map[string]any, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if _, seen := visited[absPath]; seen {
		return nil, fmt.Errorf("config include cycle detected at %s", absPath)
	}
	visited[absPath] = struct{}{}
	defer delete(visited, absPath)

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", absPath, err)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	merged := map[string]any{}
	if includeRaw, ok := raw["$include"]; ok {
		includeFiles, err := parseIncludes(includeRaw)
		if err != nil {
			return nil, err
		}
		baseDir := filepath.Dir(absPath)
		for _, includePath := range includeFiles {
			resolvedPath := includePath
			if !filepath.IsAbs(includePath) {
				resolvedPath = filepath.Join(baseDir, includePath)
			}
			child, err := loadConfigObject(resolvedPath, visited)
			if err != nil {
				return nil, err
			}
			deepMerge(merged, child)
		}
	}
	delete(raw, "$include")
	substituteEnvValues(raw)
	deepMerge(merged, raw)
	return merged, nil
}

func parseIncludes(v any) ([]string, error) {
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, nil
		}
		return []string{t}, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("$include entries must be strings")
			}
			if strings.TrimSpace(s) == "" {
				continue
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("$include must be a string or array of strings")
	}
}

func deepMerge(dst, src map[string]any) {
	for key, val := range src {
		srcMap, srcIsMap := val.(map[string]any)
		if !srcIsMap {
			dst[key] = val
			continue
		}

		existing, ok := dst[key]
		if !ok {
			copyMap := map[string]any{}
			deepMerge(copyMap, srcMap)
			dst[key] = copyMap
			continue
		}
		dstMap, dstIsMap := existing.(map[string]any)
		if !dstIsMap {
			copyMap := map[string]any{}
			deepMerge(copyMap, srcMap)
			dst[key] = copyMap
			continue
		}
		deepMerge(dstMap, srcMap)
	}
}

func substituteEnvValues(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = substituteEnvValues(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = substituteEnvValues(item)
		}
		return t
	case string:
		return envPattern.ReplaceAllStringFunc(t, func(match string) string {
			parts := envPattern.FindStringSubmatch(match)
			if len(parts) != 2 {
				return match
			}
			if value, ok := os.LookupEnv(parts[1]); ok {
				return value
			}
			return match
		})
	default:
		return v
	}
}
