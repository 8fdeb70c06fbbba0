package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-spladmin/apps"
	"github.com/goliatone/go-spladmin/core"
	"github.com/goliatone/go-spladmin/samples"
)

// SyncService runs one kind-scoped synchronization pass.
type SyncService interface {
	Kind(ctx context.Context, kind core.Kind, opts core.Options) error
}

// ListingService reads entities off one instance.
type ListingService interface {
	List(ctx context.Context, kind core.Kind) ([]core.Entity, error)
}

// AppPackagingService vets and packages local app bundles.
type AppPackagingService interface {
	Discover() ([]apps.App, error)
	Package(ctx context.Context, name, destDir string) (apps.PackageResult, error)
}

// SampleExportService pulls configured sample queries into files.
type SampleExportService interface {
	Run(ctx context.Context, names []string) ([]samples.Export, error)
}

type SyncEntitiesCommand struct {
	service SyncService
}

func NewSyncEntitiesCommand(service SyncService) *SyncEntitiesCommand {
	return &SyncEntitiesCommand{service: service}
}

func (c *SyncEntitiesCommand) Execute(ctx context.Context, msg SyncEntitiesMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: sync service is required")
	}
	return c.service.Kind(ctx, msg.Kind, msg.Options)
}

type ListEntitiesCommand struct {
	service ListingService
}

func NewListEntitiesCommand(service ListingService) *ListEntitiesCommand {
	return &ListEntitiesCommand{service: service}
}

func (c *ListEntitiesCommand) Execute(ctx context.Context, msg ListEntitiesMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: listing service is required")
	}
	entities, err := c.service.List(ctx, msg.Kind)
	if err != nil {
		return err
	}
	storeResult(ctx, entities)
	return nil
}

type PackageAppsCommand struct {
	service AppPackagingService
}

func NewPackageAppsCommand(service AppPackagingService) *PackageAppsCommand {
	return &PackageAppsCommand{service: service}
}

func (c *PackageAppsCommand) Execute(ctx context.Context, msg PackageAppsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: app packaging service is required")
	}
	names := msg.Names
	if len(names) == 0 {
		discovered, err := c.service.Discover()
		if err != nil {
			return err
		}
		names = make([]string, 0, len(discovered))
		for _, app := range discovered {
			names = append(names, app.Name)
		}
	}
	results := make([]apps.PackageResult, 0, len(names))
	for _, name := range names {
		result, err := c.service.Package(ctx, name, msg.Destination)
		if err != nil {
			return err
		}
		results = append(results, result)
	}
	storeResult(ctx, results)
	return nil
}

type ExportSamplesCommand struct {
	service SampleExportService
}

func NewExportSamplesCommand(service SampleExportService) *ExportSamplesCommand {
	return &ExportSamplesCommand{service: service}
}

func (c *ExportSamplesCommand) Execute(ctx context.Context, msg ExportSamplesMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: sample export service is required")
	}
	results, err := c.service.Run(ctx, msg.Names)
	if err != nil {
		return err
	}
	storeResult(ctx, results)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
