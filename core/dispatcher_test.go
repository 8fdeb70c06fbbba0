package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"
)

// memoryConnection is an in-memory Connection fake. Entities are stored
// per kind; grants and revokes are applied to the capabilities field so a
// re-diff observes them.
type memoryConnection struct {
	mu           sync.Mutex
	name         string
	namespace    Namespace
	entities     map[Kind]map[string]Entity
	capabilities []string

	failCreate map[string]error
	creates    []string
	updates    []string
	deletes    []string
	grants     []string
	revokes    []string
}

func newMemoryConnection(name string) *memoryConnection {
	return &memoryConnection{
		name:         name,
		entities:     map[Kind]map[string]Entity{},
		capabilities: []string{"search", "edit_user", "schedule_search"},
		failCreate:   map[string]error{},
	}
}

func (c *memoryConnection) put(entity Entity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entities[entity.Kind] == nil {
		c.entities[entity.Kind] = map[string]Entity{}
	}
	c.entities[entity.Kind][entity.Name] = entity
}

func (c *memoryConnection) Name() string         { return c.name }
func (c *memoryConnection) Namespace() Namespace { return c.namespace }

func (c *memoryConnection) List(_ context.Context, kind Kind) ([]Entity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.entities[kind]))
	for name := range c.entities[kind] {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Entity, 0, len(names))
	for _, name := range names {
		out = append(out, cloneEntity(c.entities[kind][name]))
	}
	return out, nil
}

func (c *memoryConnection) Get(_ context.Context, kind Kind, name string) (Entity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entity, ok := c.entities[kind][name]
	if !ok {
		return Entity{}, fmt.Errorf("%w: %s %q", ErrEntityNotFound, kind, name)
	}
	return cloneEntity(entity), nil
}

func (c *memoryConnection) Create(_ context.Context, kind Kind, name string, fields map[string]any) (Entity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.failCreate[name]; ok {
		return Entity{}, err
	}
	content := map[string]any{}
	for key, value := range fields {
		content[key] = value
	}
	entity := Entity{Name: name, Kind: kind, Content: content}
	if c.entities[kind] == nil {
		c.entities[kind] = map[string]Entity{}
	}
	c.entities[kind][name] = entity
	c.creates = append(c.creates, name)
	return cloneEntity(entity), nil
}

func (c *memoryConnection) Update(_ context.Context, kind Kind, name string, fields map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entity, ok := c.entities[kind][name]
	if !ok {
		return fmt.Errorf("%w: %s %q", ErrEntityNotFound, kind, name)
	}
	for key, value := range fields {
		entity.Content[key] = value
	}
	c.updates = append(c.updates, name)
	return nil
}

func (c *memoryConnection) Delete(_ context.Context, kind Kind, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entities[kind][name]; !ok {
		return fmt.Errorf("%w: %s %q", ErrEntityNotFound, kind, name)
	}
	delete(c.entities[kind], name)
	c.deletes = append(c.deletes, name)
	return nil
}

func (c *memoryConnection) Grant(_ context.Context, kind Kind, name string, capability string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entity, ok := c.entities[kind][name]
	if !ok {
		return fmt.Errorf("%w: %s %q", ErrEntityNotFound, kind, name)
	}
	current := StringSlice(entity.Content["capabilities"])
	entity.Content["capabilities"] = append(current, capability)
	c.grants = append(c.grants, name+":"+capability)
	return nil
}

func (c *memoryConnection) Revoke(_ context.Context, kind Kind, name string, capability string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entity, ok := c.entities[kind][name]
	if !ok {
		return fmt.Errorf("%w: %s %q", ErrEntityNotFound, kind, name)
	}
	kept := make([]string, 0)
	for _, existing := range StringSlice(entity.Content["capabilities"]) {
		if existing != capability {
			kept = append(kept, existing)
		}
	}
	entity.Content["capabilities"] = kept
	c.revokes = append(c.revokes, name+":"+capability)
	return nil
}

func (c *memoryConnection) Capabilities(context.Context) ([]string, error) {
	return append([]string(nil), c.capabilities...), nil
}

func cloneEntity(entity Entity) Entity {
	content := make(map[string]any, len(entity.Content))
	for key, value := range entity.Content {
		switch typed := value.(type) {
		case []any:
			content[key] = append([]any(nil), typed...)
		case []string:
			content[key] = append([]string(nil), typed...)
		default:
			content[key] = value
		}
	}
	clone := entity
	clone.Content = content
	return clone
}

// memorySink collects audit records in memory.
type memorySink struct {
	mu        sync.Mutex
	runs      []SyncRun
	decisions []Decision
	completed map[string]string
}

func newMemorySink() *memorySink {
	return &memorySink{completed: map[string]string{}}
}

func (s *memorySink) BeginRun(_ context.Context, run SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

func (s *memorySink) RecordDecision(_ context.Context, decision Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions = append(s.decisions, decision)
	return nil
}

func (s *memorySink) CompleteRun(_ context.Context, runID string, status string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed[runID] = status
	return nil
}

func newTestDispatcher(t *testing.T, src, dest Connection, kind Kind, sink AuditSink) *Dispatcher {
	t.Helper()
	ops, err := NewEntityOps(dest, kind)
	if err != nil {
		t.Fatalf("new entity ops: %v", err)
	}
	table := ActionTable{
		Create:   ops.Create,
		Delete:   ops.Delete,
		Wildcard: ops.Update,
	}
	opts := []DispatcherOption{}
	if sink != nil {
		opts = append(opts, WithDispatcherAuditSink(sink))
	}
	dispatcher, err := NewDispatcher(src, dest, kind, table, opts...)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	return dispatcher
}

func TestSyncCreatesMissingEntities(t *testing.T) {
	src := newMemoryConnection("source")
	dest := newMemoryConnection("destination")
	src.put(Entity{Name: "nightly", Kind: KindSavedSearch, Content: map[string]any{
		"search":        "index=main | stats count",
		"cron_schedule": "0 2 * * *",
	}})

	dispatcher := newTestDispatcher(t, src, dest, KindSavedSearch, nil)
	if err := dispatcher.Sync(context.Background(), Options{Create: true}); err != nil {
		t.Fatalf("sync: %v", err)
	}

	created, err := dest.Get(context.Background(), KindSavedSearch, "nightly")
	if err != nil {
		t.Fatalf("created entity missing: %v", err)
	}
	if created.Content["search"] != "index=main | stats count" {
		t.Fatalf("unexpected content: %v", created.Content)
	}
}

func TestSyncUpdatesChangedFields(t *testing.T) {
	src := newMemoryConnection("source")
	dest := newMemoryConnection("destination")
	src.put(Entity{Name: "nightly", Kind: KindSavedSearch, Content: map[string]any{
		"search": "index=main | stats count by host",
	}})
	dest.put(Entity{Name: "nightly", Kind: KindSavedSearch, Content: map[string]any{
		"search": "index=main | stats count",
	}})

	dispatcher := newTestDispatcher(t, src, dest, KindSavedSearch, nil)
	if err := dispatcher.Sync(context.Background(), Options{Update: true}); err != nil {
		t.Fatalf("sync: %v", err)
	}

	updated, _ := dest.Get(context.Background(), KindSavedSearch, "nightly")
	if updated.Content["search"] != "index=main | stats count by host" {
		t.Fatalf("destination not updated: %v", updated.Content)
	}
}

func TestSyncDeleteIsStrictlyOptIn(t *testing.T) {
	src := newMemoryConnection("source")
	dest := newMemoryConnection("destination")
	dest.put(Entity{Name: "stale", Kind: KindEventType, Content: map[string]any{"search": "x"}})

	dispatcher := newTestDispatcher(t, src, dest, KindEventType, nil)
	if err := dispatcher.Sync(context.Background(), Options{Create: true, Update: true}); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if _, err := dest.Get(context.Background(), KindEventType, "stale"); err != nil {
		t.Fatalf("extra entity must survive without the delete flag: %v", err)
	}

	if err := dispatcher.Sync(context.Background(), Options{Delete: true}); err != nil {
		t.Fatalf("sync with delete: %v", err)
	}
	if _, err := dest.Get(context.Background(), KindEventType, "stale"); err == nil {
		t.Fatalf("extra entity must be removed when delete is enabled")
	}
}

func TestSimulateNeverMutatesDestination(t *testing.T) {
	src := newMemoryConnection("source")
	dest := newMemoryConnection("destination")
	src.put(Entity{Name: "created", Kind: KindIndex, Content: map[string]any{"homePath": "$DB/created/db"}})
	src.put(Entity{Name: "shared", Kind: KindIndex, Content: map[string]any{"maxTotalDataSizeMB": "1000"}})
	dest.put(Entity{Name: "shared", Kind: KindIndex, Content: map[string]any{"maxTotalDataSizeMB": "500"}})
	dest.put(Entity{Name: "doomed", Kind: KindIndex, Content: map[string]any{"homePath": "$DB/doomed/db"}})

	sink := newMemorySink()
	dispatcher := newTestDispatcher(t, src, dest, KindIndex, sink)
	err := dispatcher.Sync(context.Background(), Options{Create: true, Update: true, Delete: true, Simulate: true})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	if len(dest.creates) != 0 || len(dest.updates) != 0 || len(dest.deletes) != 0 {
		t.Fatalf("simulate must not mutate: creates=%v updates=%v deletes=%v",
			dest.creates, dest.updates, dest.deletes)
	}
	shared, _ := dest.Get(context.Background(), KindIndex, "shared")
	if shared.Content["maxTotalDataSizeMB"] != "500" {
		t.Fatalf("destination content changed under simulate")
	}
	for _, decision := range sink.decisions {
		if decision.Outcome != OutcomeSimulated {
			t.Fatalf("expected simulated outcomes, got %+v", decision)
		}
		if !decision.Simulated {
			t.Fatalf("decision not flagged simulated: %+v", decision)
		}
	}
	if len(sink.decisions) != 3 {
		t.Fatalf("expected create+update+delete decisions, got %d", len(sink.decisions))
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	src := newMemoryConnection("source")
	dest := newMemoryConnection("destination")
	src.put(Entity{Name: "web", Kind: KindInput, Content: map[string]any{
		"index":      "web",
		"sourcetype": "access_combined",
	}})
	dest.put(Entity{Name: "web", Kind: KindInput, Content: map[string]any{
		"index":      "old",
		"sourcetype": "access_combined",
	}})

	dispatcher := newTestDispatcher(t, src, dest, KindInput, nil)
	options := Options{Create: true, Update: true, Delete: true}
	if err := dispatcher.Sync(context.Background(), options); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	mutations := len(dest.creates) + len(dest.updates) + len(dest.deletes)

	if err := dispatcher.Sync(context.Background(), options); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if again := len(dest.creates) + len(dest.updates) + len(dest.deletes); again != mutations {
		t.Fatalf("second sync mutated a converged destination: %d -> %d", mutations, again)
	}
}

func TestSyncContainsPerEntityFailures(t *testing.T) {
	src := newMemoryConnection("source")
	dest := newMemoryConnection("destination")
	src.put(Entity{Name: "broken", Kind: KindEventType, Content: map[string]any{"search": "a"}})
	src.put(Entity{Name: "healthy", Kind: KindEventType, Content: map[string]any{"search": "b"}})
	dest.failCreate["broken"] = fmt.Errorf("backend rejected the entity")

	sink := newMemorySink()
	dispatcher := newTestDispatcher(t, src, dest, KindEventType, sink)
	if err := dispatcher.Sync(context.Background(), Options{Create: true}); err != nil {
		t.Fatalf("a contained entity failure must not abort the run: %v", err)
	}

	if _, err := dest.Get(context.Background(), KindEventType, "healthy"); err != nil {
		t.Fatalf("sibling entity must still be created: %v", err)
	}
	var errored *Decision
	for i := range sink.decisions {
		if sink.decisions[i].Outcome == OutcomeErrored {
			errored = &sink.decisions[i]
		}
	}
	if errored == nil || errored.Entity != "broken" {
		t.Fatalf("expected an errored decision for the broken entity, got %+v", sink.decisions)
	}
}

func TestSyncAuditTrail(t *testing.T) {
	src := newMemoryConnection("source")
	dest := newMemoryConnection("destination")
	src.put(Entity{Name: "fresh", Kind: KindApp, Content: map[string]any{"version": "1.0.0"}})

	sink := newMemorySink()
	dispatcher := newTestDispatcher(t, src, dest, KindApp, sink)
	if err := dispatcher.Sync(context.Background(), Options{Create: true}); err != nil {
		t.Fatalf("sync: %v", err)
	}

	if len(sink.runs) != 1 {
		t.Fatalf("expected one run, got %d", len(sink.runs))
	}
	run := sink.runs[0]
	if run.Kind != KindApp || run.Source != "source" || run.Destination != "destination" {
		t.Fatalf("unexpected run: %+v", run)
	}
	if status := sink.completed[run.ID]; status != "completed" {
		t.Fatalf("expected completed status, got %q", status)
	}
	if len(sink.decisions) != 1 {
		t.Fatalf("expected one decision, got %d", len(sink.decisions))
	}
	decision := sink.decisions[0]
	if decision.RunID != run.ID || decision.Action != "create" || decision.Outcome != OutcomeApplied {
		t.Fatalf("unexpected decision: %+v", decision)
	}
	// the serialized path must parse back to the entity it addresses
	parsed, err := ParsePath(decision.Path)
	if err != nil {
		t.Fatalf("decision path %q does not parse: %v", decision.Path, err)
	}
	if parsed.Entity != "fresh" {
		t.Fatalf("expected entity fresh, got %q", parsed.Entity)
	}
}

func TestSyncGrantsMissingRoleCapabilities(t *testing.T) {
	src := newMemoryConnection("source")
	dest := newMemoryConnection("destination")
	src.put(Entity{Name: "auditor", Kind: KindRole, Content: map[string]any{
		"capabilities": []any{"search", "schedule_search"},
	}})
	dest.put(Entity{Name: "auditor", Kind: KindRole, Content: map[string]any{
		"capabilities": []any{"search"},
	}})

	dispatcher := newTestDispatcher(t, src, dest, KindRole, nil)
	if err := dispatcher.Sync(context.Background(), Options{Update: true}); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(dest.grants) != 1 || dest.grants[0] != "auditor:schedule_search" {
		t.Fatalf("expected a single grant, got %v", dest.grants)
	}
	if len(dest.updates) != 0 {
		t.Fatalf("capability changes must route through grant, not update: %v", dest.updates)
	}
}

func TestSyncDeniesUnknownReferenceAssignments(t *testing.T) {
	src := newMemoryConnection("source")
	dest := newMemoryConnection("destination")
	src.put(Entity{Name: "jdoe", Kind: KindUser, Content: map[string]any{
		"defaultApp": "brand_new_app",
	}})
	dest.put(Entity{Name: "jdoe", Kind: KindUser, Content: map[string]any{
		"defaultApp": "search",
	}})
	dest.put(Entity{Name: "search", Kind: KindApp, Content: map[string]any{}})

	sink := newMemorySink()
	dispatcher := newTestDispatcher(t, src, dest, KindUser, sink)
	if err := dispatcher.Sync(context.Background(), Options{Update: true}); err != nil {
		t.Fatalf("sync: %v", err)
	}

	current, _ := dest.Get(context.Background(), KindUser, "jdoe")
	if current.Content["defaultApp"] != "search" {
		t.Fatalf("denied assignment must not be written: %v", current.Content)
	}
	var denied bool
	for _, decision := range sink.decisions {
		if decision.Outcome == OutcomeDenied {
			denied = true
		}
	}
	if !denied {
		t.Fatalf("expected a denied decision, got %+v", sink.decisions)
	}
}

func TestSyncIgnoresExcludedUserFields(t *testing.T) {
	src := newMemoryConnection("source")
	dest := newMemoryConnection("destination")
	src.put(Entity{Name: "jdoe", Kind: KindUser, Content: map[string]any{
		"capabilities": []any{"search", "edit_user"},
	}})
	dest.put(Entity{Name: "jdoe", Kind: KindUser, Content: map[string]any{
		"capabilities": []any{"search"},
	}})

	dispatcher := newTestDispatcher(t, src, dest, KindUser, nil)
	if err := dispatcher.Sync(context.Background(), Options{Update: true}); err != nil {
		t.Fatalf("sync: %v", err)
	}
	// user capabilities are role-derived on the destination: never granted
	// directly even when the source reports more of them
	if len(dest.grants) != 0 || len(dest.updates) != 0 {
		t.Fatalf("excluded field must not be written: grants=%v updates=%v", dest.grants, dest.updates)
	}
}

func TestSelectorNarrowsCreateCandidates(t *testing.T) {
	src := newMemoryConnection("source")
	dest := newMemoryConnection("destination")
	src.put(Entity{Name: "keep", Kind: KindEventType, Content: map[string]any{"search": "a"}})
	src.put(Entity{Name: "skip", Kind: KindEventType, Content: map[string]any{"search": "b"}})

	ops, err := NewEntityOps(dest, KindEventType)
	if err != nil {
		t.Fatalf("new entity ops: %v", err)
	}
	selector := pickSelector{pick: "keep"}
	dispatcher, err := NewDispatcher(src, dest, KindEventType,
		ActionTable{Create: ops.Create, Wildcard: ops.Update},
		WithDispatcherSelector(selector))
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	if err := dispatcher.Sync(context.Background(), Options{Create: true}); err != nil {
		t.Fatalf("sync: %v", err)
	}

	if _, err := dest.Get(context.Background(), KindEventType, "keep"); err != nil {
		t.Fatalf("selected entity must be created: %v", err)
	}
	if _, err := dest.Get(context.Background(), KindEventType, "skip"); err == nil {
		t.Fatalf("unselected entity must not be created")
	}
}

// pickSelector keeps only the named candidate.
type pickSelector struct {
	pick string
}

func (s pickSelector) Select(_ context.Context, _ string, candidates []string) ([]string, error) {
	for _, candidate := range candidates {
		if candidate == s.pick {
			return []string{candidate}, nil
		}
	}
	return nil, nil
}

func (s pickSelector) Confirm(_ context.Context, _ string, fallback bool) (bool, error) {
	return fallback, nil
}
