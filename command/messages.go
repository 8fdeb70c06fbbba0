// Package command exposes the administrative operations as dispatchable
// command messages with validation up front and results collected through
// the dispatcher context.
package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-spladmin/core"
)

const (
	TypeSyncEntities  = "spladmin.command.sync"
	TypeListEntities  = "spladmin.command.list"
	TypePackageApps   = "spladmin.command.apps.package"
	TypeExportSamples = "spladmin.command.samples.export"
)

type SyncEntitiesMessage struct {
	Kind    core.Kind
	Options core.Options
}

func (SyncEntitiesMessage) Type() string { return TypeSyncEntities }

func (m SyncEntitiesMessage) Validate() error {
	if err := m.Kind.Validate(); err != nil {
		return fmt.Errorf("command: %w", err)
	}
	if !m.Options.Enabled() {
		return fmt.Errorf("command: at least one of create, update, delete must be enabled")
	}
	return nil
}

type ListEntitiesMessage struct {
	Kind core.Kind
}

func (ListEntitiesMessage) Type() string { return TypeListEntities }

func (m ListEntitiesMessage) Validate() error {
	if err := m.Kind.Validate(); err != nil {
		return fmt.Errorf("command: %w", err)
	}
	return nil
}

type PackageAppsMessage struct {
	// Names selects the bundles to package; empty means every discovered
	// bundle.
	Names []string
	// Destination overrides the output directory for the archives.
	Destination string
}

func (PackageAppsMessage) Type() string { return TypePackageApps }

func (m PackageAppsMessage) Validate() error {
	for _, name := range m.Names {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("command: app name must not be blank")
		}
	}
	return nil
}

type ExportSamplesMessage struct {
	// Names selects the configured sample queries; empty means all.
	Names []string
}

func (ExportSamplesMessage) Type() string { return TypeExportSamples }

func (m ExportSamplesMessage) Validate() error {
	for _, name := range m.Names {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("command: sample query name must not be blank")
		}
	}
	return nil
}
