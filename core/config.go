package core

import (
	"fmt"
	"strings"
)

type NamespaceConfig struct {
	App     string `koanf:"app" mapstructure:"app"`
	Sharing string `koanf:"sharing" mapstructure:"sharing"`
	Owner   string `koanf:"owner" mapstructure:"owner"`
}

func (c NamespaceConfig) Namespace() Namespace {
	return Namespace{App: c.App, Sharing: c.Sharing, Owner: c.Owner}
}

type ConnectionConfig struct {
	Scheme    string          `koanf:"scheme" mapstructure:"scheme"`
	Host      string          `koanf:"host" mapstructure:"host"`
	Port      int             `koanf:"port" mapstructure:"port"`
	Username  string          `koanf:"username" mapstructure:"username"`
	Password  string          `koanf:"password" mapstructure:"password"`
	Token     string          `koanf:"token" mapstructure:"token"`
	Insecure  bool            `koanf:"insecure" mapstructure:"insecure"`
	Namespace NamespaceConfig `koanf:"namespace" mapstructure:"namespace"`
}

func (c ConnectionConfig) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("core: connection host is required")
	}
	if c.Token == "" && (c.Username == "" || c.Password == "") {
		return fmt.Errorf("core: connection requires a token or username/password")
	}
	return nil
}

type AuditConfig struct {
	// Driver selects the audit ledger backend: "sqlite" or "postgres".
	// Empty disables persistence; decisions are still logged.
	Driver string `koanf:"driver" mapstructure:"driver"`
	DSN    string `koanf:"dsn" mapstructure:"dsn"`
}

func (c AuditConfig) Enabled() bool {
	return strings.TrimSpace(c.Driver) != ""
}

func (c AuditConfig) Validate() error {
	switch strings.TrimSpace(c.Driver) {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("core: unsupported audit driver %q", c.Driver)
	}
	if c.Enabled() && strings.TrimSpace(c.DSN) == "" {
		return fmt.Errorf("core: audit dsn is required when a driver is set")
	}
	return nil
}

type AppsConfig struct {
	Directory string `koanf:"directory" mapstructure:"directory"`
	Ruleset   string `koanf:"ruleset" mapstructure:"ruleset"`
}

type SamplesConfig struct {
	// Queries maps an export name to the search issued for it.
	Queries     map[string]string `koanf:"queries" mapstructure:"queries"`
	Earliest    string            `koanf:"earliest" mapstructure:"earliest"`
	Latest      string            `koanf:"latest" mapstructure:"latest"`
	Directory   string            `koanf:"directory" mapstructure:"directory"`
	Concurrency int               `koanf:"concurrency" mapstructure:"concurrency"`
}

type Config struct {
	ServiceName         string                      `koanf:"service_name" mapstructure:"service_name"`
	Interactive         bool                        `koanf:"interactive" mapstructure:"interactive"`
	DefaultUserPassword string                      `koanf:"default_user_password" mapstructure:"default_user_password"`
	Connections         map[string]ConnectionConfig `koanf:"connections" mapstructure:"connections"`
	Audit               AuditConfig                 `koanf:"audit" mapstructure:"audit"`
	Apps                AppsConfig                  `koanf:"apps" mapstructure:"apps"`
	Samples             SamplesConfig               `koanf:"samples" mapstructure:"samples"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:         "spladmin",
		DefaultUserPassword: DefaultUserPassword,
		Samples: SamplesConfig{
			Earliest:    "-24h",
			Latest:      "now",
			Directory:   "samples",
			Concurrency: 4,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	for name, connection := range c.Connections {
		if err := connection.Validate(); err != nil {
			return fmt.Errorf("core: connection %q: %w", name, err)
		}
	}
	if err := c.Audit.Validate(); err != nil {
		return err
	}
	return nil
}

// Connection returns the named connection config.
func (c Config) Connection(name string) (ConnectionConfig, error) {
	connection, ok := c.Connections[name]
	if !ok {
		return ConnectionConfig{}, fmt.Errorf("core: connection %q is not configured", name)
	}
	return connection, nil
}
