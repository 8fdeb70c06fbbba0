package samples

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/goliatone/go-spladmin/core"
)

// fakeSearchClient serves canned JSON-lines streams per query.
type fakeSearchClient struct {
	mu      sync.Mutex
	streams map[string]string
	windows []string
	fail    map[string]error
}

func (c *fakeSearchClient) Name() string { return "fake" }

func (c *fakeSearchClient) Export(_ context.Context, query, earliest, latest string) (io.ReadCloser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.fail[query]; ok {
		return nil, err
	}
	c.windows = append(c.windows, earliest+".."+latest)
	stream, ok := c.streams[query]
	if !ok {
		return nil, fmt.Errorf("fake: unexpected query %q", query)
	}
	return io.NopCloser(strings.NewReader(stream)), nil
}

func testConfig(dir string) core.SamplesConfig {
	return core.SamplesConfig{
		Queries: map[string]string{
			"web_errors": "index=web status>=500",
			"logins":     "index=auth action=login",
		},
		Earliest:  "-24h",
		Latest:    "now",
		Directory: dir,
	}
}

func TestNewExporterValidation(t *testing.T) {
	if _, err := NewExporter(nil, testConfig(t.TempDir())); !errors.Is(err, core.ErrMissingConnection) {
		t.Fatalf("expected ErrMissingConnection, got %v", err)
	}
	if _, err := NewExporter(&fakeSearchClient{}, core.SamplesConfig{}); err == nil {
		t.Fatalf("empty query set must be rejected")
	}
}

func TestRunWritesCSVPerQuery(t *testing.T) {
	dir := t.TempDir()
	client := &fakeSearchClient{streams: map[string]string{
		"index=web status>=500": strings.Join([]string{
			`{"preview":true,"result":{"host":"ignored"}}`,
			`{"result":{"host":"web-01","status":"503"}}`,
			`{"result":{"host":"web-02","status":"500","referer":"internal"}}`,
			``,
			`{"lastrow":true}`,
		}, "\n"),
		"index=auth action=login": `{"result":{"user":"jdoe"}}`,
	}}

	exporter, err := NewExporter(client, testConfig(dir))
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}
	exports, err := exporter.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(exports) != 2 {
		t.Fatalf("expected 2 exports, got %d", len(exports))
	}
	// empty selection walks the configured queries in name order
	if exports[0].Name != "logins" || exports[1].Name != "web_errors" {
		t.Fatalf("unexpected export order: %+v", exports)
	}
	if exports[1].Rows != 2 {
		t.Fatalf("preview and control lines must not count as rows: %d", exports[1].Rows)
	}

	rows := readCSVFile(t, filepath.Join(dir, "web_errors.csv"))
	if !reflect.DeepEqual(rows[0], []string{"host", "referer", "status"}) {
		t.Fatalf("header must be the sorted field union: %v", rows[0])
	}
	if !reflect.DeepEqual(rows[1], []string{"web-01", "", "503"}) {
		t.Fatalf("missing fields must render empty: %v", rows[1])
	}
	if !reflect.DeepEqual(rows[2], []string{"web-02", "internal", "500"}) {
		t.Fatalf("unexpected data row: %v", rows[2])
	}

	for _, window := range client.windows {
		if window != "-24h..now" {
			t.Fatalf("configured time window must travel: %q", window)
		}
	}
}

func TestRunRejectsUnknownQueryName(t *testing.T) {
	exporter, err := NewExporter(&fakeSearchClient{}, testConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}
	if _, err := exporter.Run(context.Background(), []string{"ghost"}); err == nil {
		t.Fatalf("unknown query name must fail before any export starts")
	}
}

func TestRunFailsWhenOneQueryFails(t *testing.T) {
	dir := t.TempDir()
	client := &fakeSearchClient{
		streams: map[string]string{
			"index=auth action=login": `{"result":{"user":"jdoe"}}`,
		},
		fail: map[string]error{
			"index=web status>=500": errors.New("export stream refused"),
		},
	}
	exporter, err := NewExporter(client, testConfig(dir))
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}
	if _, err := exporter.Run(context.Background(), nil); err == nil {
		t.Fatalf("one failed query must fail the run")
	}
}

func TestMultiValueFieldsJoinWithNewlines(t *testing.T) {
	dir := t.TempDir()
	cfg := core.SamplesConfig{
		Queries:   map[string]string{"tags": "index=web | stats values(tag) as tag"},
		Directory: dir,
	}
	client := &fakeSearchClient{streams: map[string]string{
		"index=web | stats values(tag) as tag": `{"result":{"tag":["prod","edge"]}}`,
	}}

	exporter, err := NewExporter(client, cfg)
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}
	if _, err := exporter.Run(context.Background(), []string{"tags"}); err != nil {
		t.Fatalf("run: %v", err)
	}

	rows := readCSVFile(t, filepath.Join(dir, "tags.csv"))
	if rows[1][0] != "prod\nedge" {
		t.Fatalf("multi-value field must join with newlines: %q", rows[1][0])
	}
}

func readCSVFile(t *testing.T, path string) [][]string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return rows
}
