package core

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
	"github.com/tidwall/jsonc"
)

// ConfigProvider loads the effective configuration on top of defaults.
type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

// RawConfigLoader produces the raw key/value layer a provider builds from.
type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

// OptionsResolver merges defaults, loaded config, and runtime overrides.
type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// FileRawConfigLoader reads a comment-tolerant JSON settings file
// (spladmin.jsonc). A missing file is not an error: the defaults apply.
type FileRawConfigLoader struct {
	Path string
}

func (l FileRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	path := strings.TrimSpace(l.Path)
	if path == "" {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("core: read settings file %q: %w", path, err)
	}
	raw := map[string]any{}
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return nil, fmt.Errorf("core: parse settings file %q: %w", path, err)
	}
	return raw, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GoOptionsResolver layers defaults, file config, and runtime overrides
// with defaults < config < runtime precedence.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}
	if includeZero || cfg.Interactive {
		layer["interactive"] = cfg.Interactive
	}
	if includeZero || cfg.DefaultUserPassword != "" {
		layer["default_user_password"] = cfg.DefaultUserPassword
	}
	if includeZero || len(cfg.Connections) > 0 {
		connections := map[string]any{}
		for name, connection := range cfg.Connections {
			connections[name] = map[string]any{
				"scheme":   connection.Scheme,
				"host":     connection.Host,
				"port":     connection.Port,
				"username": connection.Username,
				"password": connection.Password,
				"token":    connection.Token,
				"insecure": connection.Insecure,
				"namespace": map[string]any{
					"app":     connection.Namespace.App,
					"sharing": connection.Namespace.Sharing,
					"owner":   connection.Namespace.Owner,
				},
			}
		}
		layer["connections"] = connections
	}
	if includeZero || cfg.Audit.Enabled() {
		layer["audit"] = map[string]any{
			"driver": cfg.Audit.Driver,
			"dsn":    cfg.Audit.DSN,
		}
	}
	if includeZero || cfg.Apps.Directory != "" || cfg.Apps.Ruleset != "" {
		layer["apps"] = map[string]any{
			"directory": cfg.Apps.Directory,
			"ruleset":   cfg.Apps.Ruleset,
		}
	}
	if includeZero || len(cfg.Samples.Queries) > 0 || cfg.Samples.Directory != "" {
		samples := map[string]any{
			"earliest":    cfg.Samples.Earliest,
			"latest":      cfg.Samples.Latest,
			"directory":   cfg.Samples.Directory,
			"concurrency": cfg.Samples.Concurrency,
		}
		if len(cfg.Samples.Queries) > 0 {
			queries := map[string]any{}
			for name, query := range cfg.Samples.Queries {
				queries[name] = query
			}
			samples["queries"] = queries
		}
		layer["samples"] = samples
	}
	return layer
}

// LoadConfig is the convenience path used by the CLI: defaults, then the
// settings file, then runtime overrides.
func LoadConfig(ctx context.Context, path string, runtime Config) (Config, error) {
	provider := NewCfgxConfigProvider(FileRawConfigLoader{Path: path})
	loaded, err := provider.Load(ctx, DefaultConfig())
	if err != nil {
		return Config{}, err
	}
	return GoOptionsResolver{}.Resolve(DefaultConfig(), loaded, runtime)
}
