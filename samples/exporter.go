// Package samples pulls event samples off an instance through the
// streaming search export API and materializes them as CSV files.
package samples

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-spladmin/core"
)

// SearchClient is the one transport capability the exporter needs.
type SearchClient interface {
	Name() string
	Export(ctx context.Context, query, earliest, latest string) (io.ReadCloser, error)
}

// Exporter fans configured sample queries out against one instance.
type Exporter struct {
	client SearchClient
	cfg    core.SamplesConfig
	logger core.Logger
}

type ExporterOption func(*Exporter)

func WithExporterLogger(logger core.Logger) ExporterOption {
	return func(e *Exporter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func NewExporter(client SearchClient, cfg core.SamplesConfig, opts ...ExporterOption) (*Exporter, error) {
	if client == nil {
		return nil, core.ErrMissingConnection
	}
	if len(cfg.Queries) == 0 {
		return nil, fmt.Errorf("samples: no sample queries configured")
	}
	if cfg.Directory == "" {
		cfg.Directory = "samples"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	_, logger := glog.Resolve("spladmin.samples", nil, nil)
	exporter := &Exporter{client: client, cfg: cfg, logger: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(exporter)
		}
	}
	return exporter, nil
}

// Export describes one finished sample file.
type Export struct {
	Name  string
	Query string
	File  string
	Rows  int
}

// Run exports the named queries concurrently; an empty selection means
// every configured query. One failed query fails the whole run.
func (e *Exporter) Run(ctx context.Context, names []string) ([]Export, error) {
	selected, err := e.selectQueries(names)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(e.cfg.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("samples: create output directory %q: %w", e.cfg.Directory, err)
	}

	results := make([]Export, len(selected))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.cfg.Concurrency)
	for index, name := range selected {
		group.Go(func() error {
			export, err := e.exportOne(groupCtx, name, e.cfg.Queries[name])
			if err != nil {
				return err
			}
			results[index] = export
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Exporter) selectQueries(names []string) ([]string, error) {
	if len(names) == 0 {
		all := make([]string, 0, len(e.cfg.Queries))
		for name := range e.cfg.Queries {
			all = append(all, name)
		}
		sort.Strings(all)
		return all, nil
	}
	for _, name := range names {
		if _, ok := e.cfg.Queries[name]; !ok {
			return nil, fmt.Errorf("samples: query %q is not configured", name)
		}
	}
	return names, nil
}

func (e *Exporter) exportOne(ctx context.Context, name, query string) (Export, error) {
	e.logger.Info("exporting sample query",
		"name", name, "instance", e.client.Name(),
		"earliest", e.cfg.Earliest, "latest", e.cfg.Latest)

	stream, err := e.client.Export(ctx, query, e.cfg.Earliest, e.cfg.Latest)
	if err != nil {
		return Export{}, fmt.Errorf("samples: export %q: %w", name, err)
	}
	defer stream.Close()

	file := filepath.Join(e.cfg.Directory, name+".csv")
	rows, err := writeCSV(stream, file)
	if err != nil {
		return Export{}, fmt.Errorf("samples: write %q: %w", file, err)
	}
	e.logger.Info("sample export finished", "name", name, "file", file, "rows", rows)
	return Export{Name: name, Query: query, File: file, Rows: rows}, nil
}

// exportLine is one record of the JSON-lines export stream. Only result
// lines carry data; preview and control lines are skipped.
type exportLine struct {
	Preview bool           `json:"preview"`
	LastRow bool           `json:"lastrow"`
	Result  map[string]any `json:"result"`
}

// writeCSV converts the JSON-lines stream into one CSV file. The header is
// the sorted union of all field names, so rows are buffered first.
func writeCSV(stream io.Reader, file string) (int, error) {
	var records []map[string]any
	columns := map[string]struct{}{}

	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		line := exportLine{}
		if err := json.Unmarshal([]byte(text), &line); err != nil {
			return 0, fmt.Errorf("decode export line: %w", err)
		}
		if line.Preview || len(line.Result) == 0 {
			continue
		}
		records = append(records, line.Result)
		for column := range line.Result {
			columns[column] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read export stream: %w", err)
	}

	header := make([]string, 0, len(columns))
	for column := range columns {
		header = append(header, column)
	}
	sort.Strings(header)

	out, err := os.Create(file)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	writer := csv.NewWriter(out)
	if err := writer.Write(header); err != nil {
		return 0, err
	}
	for _, record := range records {
		row := make([]string, len(header))
		for position, column := range header {
			if value, ok := record[column]; ok {
				row[position] = stringifyField(value)
			}
		}
		if err := writer.Write(row); err != nil {
			return 0, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return 0, err
	}
	return len(records), nil
}

// stringifyField flattens multi-value fields into newline-joined text the
// way the UI renders them.
func stringifyField(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case []any:
		parts := make([]string, 0, len(typed))
		for _, item := range typed {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, "\n")
	default:
		return fmt.Sprint(typed)
	}
}
