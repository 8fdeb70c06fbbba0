package command

import (
	"context"
	"errors"
	"reflect"
	"testing"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-spladmin/apps"
	"github.com/goliatone/go-spladmin/core"
	"github.com/goliatone/go-spladmin/samples"
)

type stubSyncService struct {
	calls []string
	err   error
}

func (s *stubSyncService) Kind(_ context.Context, kind core.Kind, _ core.Options) error {
	s.calls = append(s.calls, string(kind))
	return s.err
}

type stubListingService struct {
	entities []core.Entity
	err      error
}

func (s *stubListingService) List(context.Context, core.Kind) ([]core.Entity, error) {
	return s.entities, s.err
}

type stubPackagingService struct {
	discovered []apps.App
	packaged   []string
	err        error
}

func (s *stubPackagingService) Discover() ([]apps.App, error) {
	return s.discovered, nil
}

func (s *stubPackagingService) Package(_ context.Context, name, destDir string) (apps.PackageResult, error) {
	if s.err != nil {
		return apps.PackageResult{}, s.err
	}
	s.packaged = append(s.packaged, name)
	return apps.PackageResult{
		App:     apps.App{Name: name},
		Archive: destDir + "/" + name + ".spl",
	}, nil
}

type stubExportService struct {
	exports []samples.Export
	err     error
}

func (s *stubExportService) Run(context.Context, []string) ([]samples.Export, error) {
	return s.exports, s.err
}

func TestSyncEntitiesCommand(t *testing.T) {
	service := &stubSyncService{}
	cmd := NewSyncEntitiesCommand(service)

	msg := SyncEntitiesMessage{Kind: core.KindRole, Options: core.Options{Create: true}}
	if err := cmd.Execute(context.Background(), msg); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !reflect.DeepEqual(service.calls, []string{"role"}) {
		t.Fatalf("service not invoked: %v", service.calls)
	}

	if err := NewSyncEntitiesCommand(nil).Execute(context.Background(), msg); err == nil {
		t.Fatalf("missing service must be a dependency error")
	}
}

func TestSyncEntitiesMessageValidation(t *testing.T) {
	if err := (SyncEntitiesMessage{Kind: core.KindRole, Options: core.Options{Create: true}}).Validate(); err != nil {
		t.Fatalf("valid message rejected: %v", err)
	}
	if err := (SyncEntitiesMessage{Kind: core.Kind("widget"), Options: core.Options{Create: true}}).Validate(); err == nil {
		t.Fatalf("invalid kind must be rejected")
	}
	if err := (SyncEntitiesMessage{Kind: core.KindRole}).Validate(); err == nil {
		t.Fatalf("no enabled phase must be rejected")
	}
	if err := (SyncEntitiesMessage{Kind: core.KindRole, Options: core.Options{Simulate: true}}).Validate(); err == nil {
		t.Fatalf("simulate alone enables nothing and must be rejected")
	}
}

func TestListEntitiesCommandCollectsResult(t *testing.T) {
	service := &stubListingService{entities: []core.Entity{
		{Name: "admin", Kind: core.KindUser},
		{Name: "jdoe", Kind: core.KindUser},
	}}
	cmd := NewListEntitiesCommand(service)

	collector := gocmd.NewResult[[]core.Entity]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := cmd.Execute(ctx, ListEntitiesMessage{Kind: core.KindUser}); err != nil {
		t.Fatalf("execute: %v", err)
	}

	entities, ok := collector.Load()
	if !ok {
		t.Fatalf("expected a collected result")
	}
	if len(entities) != 2 || entities[0].Name != "admin" {
		t.Fatalf("unexpected result: %+v", entities)
	}
}

func TestListEntitiesCommandPropagatesError(t *testing.T) {
	service := &stubListingService{err: errors.New("connection refused")}
	cmd := NewListEntitiesCommand(service)

	collector := gocmd.NewResult[[]core.Entity]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := cmd.Execute(ctx, ListEntitiesMessage{Kind: core.KindUser}); err == nil {
		t.Fatalf("service error must propagate")
	}
	if _, ok := collector.Load(); ok {
		t.Fatalf("no result must be stored on failure")
	}
}

func TestPackageAppsCommandExpandsEmptySelection(t *testing.T) {
	service := &stubPackagingService{discovered: []apps.App{
		{Name: "alpha_app"},
		{Name: "zeta_app"},
	}}
	cmd := NewPackageAppsCommand(service)

	collector := gocmd.NewResult[[]apps.PackageResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := cmd.Execute(ctx, PackageAppsMessage{Destination: "dist"}); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if !reflect.DeepEqual(service.packaged, []string{"alpha_app", "zeta_app"}) {
		t.Fatalf("empty selection must package every bundle: %v", service.packaged)
	}
	results, ok := collector.Load()
	if !ok || len(results) != 2 {
		t.Fatalf("expected 2 collected results, got %v (%v)", results, ok)
	}
	if results[0].Archive != "dist/alpha_app.spl" {
		t.Fatalf("destination must travel: %q", results[0].Archive)
	}
}

func TestPackageAppsMessageValidation(t *testing.T) {
	if err := (PackageAppsMessage{}).Validate(); err != nil {
		t.Fatalf("empty selection is valid: %v", err)
	}
	if err := (PackageAppsMessage{Names: []string{"dashboards", " "}}).Validate(); err == nil {
		t.Fatalf("blank name must be rejected")
	}
}

func TestExportSamplesCommandCollectsResult(t *testing.T) {
	service := &stubExportService{exports: []samples.Export{
		{Name: "web_errors", Rows: 12},
	}}
	cmd := NewExportSamplesCommand(service)

	collector := gocmd.NewResult[[]samples.Export]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := cmd.Execute(ctx, ExportSamplesMessage{Names: []string{"web_errors"}}); err != nil {
		t.Fatalf("execute: %v", err)
	}

	exports, ok := collector.Load()
	if !ok || len(exports) != 1 || exports[0].Rows != 12 {
		t.Fatalf("unexpected collected exports: %v (%v)", exports, ok)
	}
}

func TestCommandsRequireServices(t *testing.T) {
	ctx := context.Background()
	if err := NewListEntitiesCommand(nil).Execute(ctx, ListEntitiesMessage{Kind: core.KindApp}); err == nil {
		t.Fatalf("listing command without service must fail")
	}
	if err := NewPackageAppsCommand(nil).Execute(ctx, PackageAppsMessage{}); err == nil {
		t.Fatalf("packaging command without service must fail")
	}
	if err := NewExportSamplesCommand(nil).Execute(ctx, ExportSamplesMessage{}); err == nil {
		t.Fatalf("export command without service must fail")
	}
}
