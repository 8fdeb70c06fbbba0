// Package apps manages local application bundles: discovery on disk,
// ruleset vetting, and packaging into deployable .spl archives.
package apps

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-spladmin/core"
)

// App is one discovered application bundle rooted at Path.
type App struct {
	Name    string
	Path    string
	Version string
	Label   string
}

// Manager discovers and packages application bundles under one directory.
type Manager struct {
	dir     string
	ruleset Ruleset
	logger  core.Logger
}

type ManagerOption func(*Manager)

func WithManagerLogger(logger core.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithRuleset(ruleset Ruleset) ManagerOption {
	return func(m *Manager) {
		if len(ruleset.Rules) > 0 {
			m.ruleset = ruleset
		}
	}
}

func NewManager(dir string, opts ...ManagerOption) (*Manager, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("apps: directory is required")
	}
	_, logger := glog.Resolve("spladmin.apps", nil, nil)
	manager := &Manager{
		dir:     dir,
		ruleset: DefaultRuleset(),
		logger:  logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(manager)
		}
	}
	return manager, nil
}

// Discover lists the app bundles under the managed directory. A bundle is
// any subdirectory carrying default/app.conf.
func (m *Manager) Discover() ([]App, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("apps: read directory %q: %w", m.dir, err)
	}
	discovered := make([]App, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(m.dir, entry.Name())
		confPath := filepath.Join(path, "default", "app.conf")
		if _, err := os.Stat(confPath); err != nil {
			continue
		}
		app := App{Name: entry.Name(), Path: path}
		app.Version, app.Label = readAppConf(confPath)
		discovered = append(discovered, app)
	}
	sort.Slice(discovered, func(i, j int) bool {
		return discovered[i].Name < discovered[j].Name
	})
	return discovered, nil
}

// Get returns one discovered bundle by name.
func (m *Manager) Get(name string) (App, error) {
	discovered, err := m.Discover()
	if err != nil {
		return App{}, err
	}
	for _, app := range discovered {
		if app.Name == name {
			return app, nil
		}
	}
	return App{}, fmt.Errorf("apps: %w: %q", core.ErrEntityNotFound, name)
}

// PackageResult describes one packaged bundle.
type PackageResult struct {
	App      App
	Archive  string
	Findings []Finding
}

// Package vets the named bundle and writes its .spl archive into destDir.
// Error-severity findings block packaging; warnings ride along.
func (m *Manager) Package(ctx context.Context, name, destDir string) (PackageResult, error) {
	app, err := m.Get(name)
	if err != nil {
		return PackageResult{}, err
	}
	findings, err := m.Vet(app)
	if err != nil {
		return PackageResult{}, err
	}
	result := PackageResult{App: app, Findings: findings}
	for _, finding := range findings {
		if finding.Severity == SeverityError {
			return result, fmt.Errorf("apps: %s fails rule %s: %s", app.Name, finding.Rule, finding.Message)
		}
		m.logger.Warn("app vetting finding",
			"app", app.Name, "rule", finding.Rule, "file", finding.File, "message", finding.Message)
	}

	if destDir == "" {
		destDir = m.dir
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return result, fmt.Errorf("apps: create output directory %q: %w", destDir, err)
	}
	archive := filepath.Join(destDir, app.Name+".spl")
	if err := writeArchive(ctx, app, archive, m.ruleset); err != nil {
		return result, err
	}
	m.logger.Info("packaged app bundle",
		"app", app.Name, "version", app.Version, "archive", archive)
	result.Archive = archive
	return result, nil
}

// writeArchive tars the bundle under a top-level directory named after the
// app, gzip-compressed. Excluded paths never enter the archive.
func writeArchive(ctx context.Context, app App, archive string, ruleset Ruleset) error {
	out, err := os.Create(archive)
	if err != nil {
		return fmt.Errorf("apps: create archive %q: %w", archive, err)
	}
	defer out.Close()

	gzWriter := gzip.NewWriter(out)
	defer gzWriter.Close()
	tarWriter := tar.NewWriter(gzWriter)
	defer tarWriter.Close()

	walkErr := filepath.Walk(app.Path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctx != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		relative, err := filepath.Rel(app.Path, path)
		if err != nil {
			return err
		}
		if relative == "." {
			return nil
		}
		if ruleset.Excluded(relative) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(filepath.Join(app.Name, relative))
		if info.IsDir() {
			header.Name += "/"
		}
		if err := tarWriter.WriteHeader(header); err != nil {
			return err
		}
		if info.IsDir() || !info.Mode().IsRegular() {
			return nil
		}
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()
		_, err = io.Copy(tarWriter, file)
		return err
	})
	if walkErr != nil {
		return fmt.Errorf("apps: archive %q: %w", app.Name, walkErr)
	}
	return nil
}

// readAppConf pulls version and label out of default/app.conf. The file is
// plain ini; a parse failure just leaves the fields empty.
func readAppConf(path string) (version string, label string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "[") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		switch strings.TrimSpace(key) {
		case "version":
			version = strings.TrimSpace(value)
		case "label":
			label = strings.TrimSpace(value)
		}
	}
	return version, label
}
