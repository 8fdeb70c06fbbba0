// spladmin is the administrative CLI: diff-driven entity synchronization
// between instances, entity listings, app bundle packaging, and sample
// exports.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	gocmd "github.com/goliatone/go-command"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/spf13/pflag"

	"github.com/goliatone/go-spladmin/apps"
	"github.com/goliatone/go-spladmin/command"
	"github.com/goliatone/go-spladmin/core"
	"github.com/goliatone/go-spladmin/interactive"
	"github.com/goliatone/go-spladmin/render"
	"github.com/goliatone/go-spladmin/samples"
	sqlstore "github.com/goliatone/go-spladmin/store/sql"
	syncpkg "github.com/goliatone/go-spladmin/sync"
	"github.com/goliatone/go-spladmin/transport"
)

const usage = `Usage: spladmin [global flags] <command> [args]

Commands:
  sync <kind>        synchronize entities of one kind between two instances
  list <kind>        list entities of one kind on one instance
  apps package       vet and package local app bundles
  samples export     export configured sample queries to CSV
  audit runs         show recent sync runs from the audit ledger
  audit decisions    show the decisions of one sync run

Kinds: roles, users, apps, indexes, event-types, saved-searches, inputs

Global flags:
  --config <path>    settings file (default: spladmin.jsonc)
  --interactive      prompt before each action
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "spladmin: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	globals := pflag.NewFlagSet("spladmin", pflag.ContinueOnError)
	globals.SetInterspersed(false)
	configPath := globals.String("config", "spladmin.jsonc", "settings file")
	interactiveFlag := globals.Bool("interactive", false, "prompt before each action")
	globals.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	if err := globals.Parse(args); err != nil {
		return err
	}
	rest := globals.Args()
	if len(rest) == 0 {
		globals.Usage()
		return fmt.Errorf("a command is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runtime := core.Config{Interactive: *interactiveFlag}
	cfg, err := core.LoadConfig(ctx, *configPath, runtime)
	if err != nil {
		return err
	}
	_, logger := glog.Resolve(cfg.ServiceName, nil, nil)

	app := &cli{cfg: cfg, logger: logger}
	switch rest[0] {
	case "sync":
		return app.sync(ctx, rest[1:])
	case "list":
		return app.list(ctx, rest[1:])
	case "apps":
		return app.apps(ctx, rest[1:])
	case "samples":
		return app.samples(ctx, rest[1:])
	case "audit":
		return app.audit(ctx, rest[1:])
	case "help", "-h", "--help":
		globals.Usage()
		return nil
	default:
		globals.Usage()
		return fmt.Errorf("unknown command %q", rest[0])
	}
}

type cli struct {
	cfg    core.Config
	logger core.Logger
}

func (c *cli) selector() core.Selector {
	if c.cfg.Interactive {
		return interactive.NewSelector()
	}
	return core.NopSelector{}
}

func (c *cli) connect(name string) (*transport.Client, error) {
	connectionCfg, err := c.cfg.Connection(name)
	if err != nil {
		return nil, err
	}
	return transport.NewClient(name, connectionCfg, transport.WithClientLogger(c.logger))
}

func (c *cli) sync(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("sync", pflag.ContinueOnError)
	from := flags.String("from", "", "source connection name")
	to := flags.String("to", "", "destination connection name")
	create := flags.Bool("create", false, "create entities missing on the destination")
	update := flags.Bool("update", false, "update changed fields on the destination")
	deleteFlag := flags.Bool("delete", false, "delete entities extra on the destination")
	simulate := flags.Bool("simulate", false, "log actions without applying them")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("sync expects exactly one kind argument")
	}
	kind, err := core.ParseKind(flags.Arg(0))
	if err != nil {
		return err
	}
	if *from == "" || *to == "" {
		return fmt.Errorf("sync requires --from and --to connection names")
	}
	if *from == *to {
		return fmt.Errorf("source and destination must differ")
	}

	src, err := c.connect(*from)
	if err != nil {
		return err
	}
	dest, err := c.connect(*to)
	if err != nil {
		return err
	}

	options := []syncpkg.Option{
		syncpkg.WithLogger(c.logger),
		syncpkg.WithSelector(c.selector()),
		syncpkg.WithUserPassword(c.cfg.DefaultUserPassword),
	}
	if c.cfg.Audit.Enabled() {
		store, client, err := sqlstore.Open(ctx, c.cfg.Audit)
		if err != nil {
			return err
		}
		defer client.Close()
		options = append(options, syncpkg.WithAuditSink(store))
	}

	orchestrator, err := syncpkg.New(src, dest, options...)
	if err != nil {
		return err
	}
	handler := command.NewSyncEntitiesCommand(orchestrator)
	return handler.Execute(ctx, command.SyncEntitiesMessage{
		Kind: kind,
		Options: core.Options{
			Create:   *create,
			Update:   *update,
			Delete:   *deleteFlag,
			Simulate: *simulate,
		},
	})
}

func (c *cli) list(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("list", pflag.ContinueOnError)
	connection := flags.String("conn", "", "connection name")
	detail := flags.String("detail", "", "show one entity's full content")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("list expects exactly one kind argument")
	}
	kind, err := core.ParseKind(flags.Arg(0))
	if err != nil {
		return err
	}
	if *connection == "" {
		return fmt.Errorf("list requires --conn")
	}
	client, err := c.connect(*connection)
	if err != nil {
		return err
	}

	if *detail != "" {
		entity, err := client.Get(ctx, kind, *detail)
		if err != nil {
			return err
		}
		fmt.Print(render.Detail(entity))
		return nil
	}

	handler := command.NewListEntitiesCommand(client)
	collector := gocmd.NewResult[[]core.Entity]()
	if err := handler.Execute(
		gocmd.ContextWithResult(ctx, collector),
		command.ListEntitiesMessage{Kind: kind},
	); err != nil {
		return err
	}
	entities, _ := collector.Load()
	fmt.Print(render.Listing(kind, entities))
	return nil
}

func (c *cli) apps(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] != "package" {
		return fmt.Errorf("apps supports the package subcommand")
	}
	flags := pflag.NewFlagSet("apps package", pflag.ContinueOnError)
	dir := flags.String("dir", c.cfg.Apps.Directory, "app bundle directory")
	rulesetPath := flags.String("ruleset", c.cfg.Apps.Ruleset, "vetting ruleset file")
	dest := flags.String("dest", "", "archive output directory")
	if err := flags.Parse(args[1:]); err != nil {
		return err
	}
	if *dir == "" {
		return fmt.Errorf("apps package requires --dir or apps.directory in the settings file")
	}

	ruleset, err := apps.LoadRuleset(*rulesetPath)
	if err != nil {
		return err
	}
	manager, err := apps.NewManager(*dir,
		apps.WithManagerLogger(c.logger),
		apps.WithRuleset(ruleset),
	)
	if err != nil {
		return err
	}

	handler := command.NewPackageAppsCommand(manager)
	collector := gocmd.NewResult[[]apps.PackageResult]()
	if err := handler.Execute(
		gocmd.ContextWithResult(ctx, collector),
		command.PackageAppsMessage{Names: flags.Args(), Destination: *dest},
	); err != nil {
		return err
	}
	results, _ := collector.Load()
	for _, result := range results {
		fmt.Printf("packaged %s (version %s) -> %s\n",
			result.App.Name, result.App.Version, result.Archive)
	}
	return nil
}

func (c *cli) samples(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] != "export" {
		return fmt.Errorf("samples supports the export subcommand")
	}
	flags := pflag.NewFlagSet("samples export", pflag.ContinueOnError)
	connection := flags.String("conn", "", "connection name")
	if err := flags.Parse(args[1:]); err != nil {
		return err
	}
	if *connection == "" {
		return fmt.Errorf("samples export requires --conn")
	}
	client, err := c.connect(*connection)
	if err != nil {
		return err
	}
	exporter, err := samples.NewExporter(client, c.cfg.Samples,
		samples.WithExporterLogger(c.logger))
	if err != nil {
		return err
	}

	handler := command.NewExportSamplesCommand(exporter)
	collector := gocmd.NewResult[[]samples.Export]()
	if err := handler.Execute(
		gocmd.ContextWithResult(ctx, collector),
		command.ExportSamplesMessage{Names: flags.Args()},
	); err != nil {
		return err
	}
	results, _ := collector.Load()
	for _, result := range results {
		fmt.Printf("exported %s (%d rows) -> %s\n", result.Name, result.Rows, result.File)
	}
	return nil
}

func (c *cli) audit(ctx context.Context, args []string) error {
	if !c.cfg.Audit.Enabled() {
		return fmt.Errorf("audit ledger is not configured; set audit.driver and audit.dsn")
	}
	store, client, err := sqlstore.Open(ctx, c.cfg.Audit)
	if err != nil {
		return err
	}
	defer client.Close()

	if len(args) == 0 {
		args = []string{"runs"}
	}
	switch args[0] {
	case "runs":
		runs, err := store.Runs(ctx, 50)
		if err != nil {
			return err
		}
		for _, run := range runs {
			fmt.Printf("%s  %-12s  %s -> %s  started %s\n",
				run.ID, run.Kind, run.Source, run.Destination,
				run.StartedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	case "decisions":
		if len(args) != 2 {
			return fmt.Errorf("audit decisions expects a run id")
		}
		decisions, err := store.Decisions(ctx, args[1])
		if err != nil {
			return err
		}
		for _, decision := range decisions {
			fmt.Printf("%-8s  %-10s  %-30s  %s\n",
				decision.Action, decision.Outcome, decision.Entity, decision.Path)
		}
		return nil
	default:
		return fmt.Errorf("audit supports the runs and decisions subcommands")
	}
}
