package ingest

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sandgraal/retro-games-sub003/internal/catalog"
	"github.com/sandgraal/retro-games-sub003/internal/moderation"
	"github.com/sandgraal/retro-games-sub003/internal/store"
)

type failingSource struct {
	name string
	err  error
}

func (s failingSource) Name() string { return s.name }

func (s failingSource) Fetch(context.Context) ([]catalog.RawRecord, error) {
	return nil, s.err
}

type recordedRun struct {
	status  string
	metrics Metrics
}

type fakeRecorder struct {
	mu        sync.Mutex
	started   []string
	completed map[string]recordedRun
}

func (f *fakeRecorder) StartRun(_ context.Context, runID string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, runID)
	return nil
}

func (f *fakeRecorder) CompleteRun(_ context.Context, runID, status string, m Metrics, _, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completed == nil {
		f.completed = make(map[string]recordedRun)
	}
	f.completed[runID] = recordedRun{status: status, metrics: m}
	return nil
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return st
}

func inline(name string, records ...catalog.RawRecord) InlineSource {
	return InlineSource{SourceName: name, Records: records}
}

func runOnce(t *testing.T, st *store.Store, opts Options) Result {
	t.Helper()
	result, err := NewOrchestrator(st, opts, zerolog.Nop()).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return result
}

func TestRunMergesSpellingVariantsAcrossRuns(t *testing.T) {
	t.Parallel()

	st := openStore(t)

	first := runOnce(t, st, Options{Sources: []Source{
		inline("source-a", catalog.RawRecord{"title": "Chrono Trigger", "platform": "SNES"}),
	}})
	if first.Metrics.Upserted != 1 || first.Metrics.Merged != 0 {
		t.Fatalf("unexpected first run metrics: %+v", first.Metrics)
	}

	second := runOnce(t, st, Options{Sources: []Source{
		inline("source-b", catalog.RawRecord{"title": "chrono  trigger", "platform_slug": "snes"}),
	}})
	if second.Metrics.Merged != 1 || second.Metrics.Upserted != 1 {
		t.Fatalf("unexpected second run metrics: %+v", second.Metrics)
	}

	state, err := st.LoadCatalog()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	if len(state.Records) != 1 {
		t.Fatalf("expected one canonical entry, got %d", len(state.Records))
	}
	entry := state.Records["chrono trigger___snes"]
	if !reflect.DeepEqual(entry.Record.Source, []string{"source-a", "source-b"}) {
		t.Fatalf("unexpected source set: %v", entry.Record.Source)
	}
	if entry.Version != 2 || entry.Hash != catalog.Hash(entry.Record) {
		t.Fatalf("unexpected entry versioning: %+v", entry)
	}
	if state.LastRun == nil {
		t.Fatalf("expected lastRun to be stamped")
	}
}

func TestRunReportsUnchangedObservations(t *testing.T) {
	t.Parallel()

	st := openStore(t)
	src := inline("igdb", catalog.RawRecord{"title": "Super Metroid", "platform": "SNES", "genres": []any{"Action"}})

	runOnce(t, st, Options{Sources: []Source{src}})
	again := runOnce(t, st, Options{Sources: []Source{src}})

	m := again.Metrics
	if m.Fetched != 1 || m.Normalized != 1 || m.Merged != 1 || m.Unchanged != 1 || m.Upserted != 0 {
		t.Fatalf("unexpected metrics for identical re-ingestion: %+v", m)
	}

	state, _ := st.LoadCatalog()
	if entry := state.Records["super metroid___snes"]; entry.Version != 1 {
		t.Fatalf("identical observation bumped version to %d", entry.Version)
	}
}

func TestRunReusesDecisionAfterThresholdTightened(t *testing.T) {
	t.Parallel()

	st := openStore(t)
	runOnce(t, st, Options{Sources: []Source{
		inline("a", catalog.RawRecord{"title": "Chrono Trigger", "platform": "SNES"}),
	}})

	fuzzy := runOnce(t, st, Options{Sources: []Source{
		inline("b", catalog.RawRecord{"title": "Chrono Triger", "platform": "SNES"}),
	}})
	if fuzzy.Metrics.Merged != 1 {
		t.Fatalf("expected fuzzy merge, got %+v", fuzzy.Metrics)
	}

	decisions, err := st.LoadDecisions()
	if err != nil {
		t.Fatalf("load decisions: %v", err)
	}
	if decisions["chrono triger___snes"] != "chrono trigger___snes" {
		t.Fatalf("expected recorded decision, got %v", decisions)
	}

	strict := runOnce(t, st, Options{
		FuzzyThreshold: 0.99,
		Sources: []Source{
			inline("c", catalog.RawRecord{"title": "Chrono Triger", "platform": "SNES"}),
		},
	})
	if strict.Metrics.Merged != 1 || strict.Metrics.Upserted != 1 {
		t.Fatalf("expected decision reuse to merge, got %+v", strict.Metrics)
	}

	state, _ := st.LoadCatalog()
	if len(state.Records) != 1 {
		t.Fatalf("expected a single entity, got keys %v", keysOf(state.Records))
	}
	if got := state.Records["chrono trigger___snes"].Record.Source; !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected source set: %v", got)
	}
}

func TestRunSurvivesFailingSources(t *testing.T) {
	t.Parallel()

	st := openStore(t)
	rec := &fakeRecorder{}
	result, err := NewOrchestrator(st, Options{
		Sources: []Source{
			failingSource{name: "down", err: &SourceError{Source: "down", URL: "https://x.example", StatusCode: 503, Body: "maintenance"}},
			failingSource{name: "broken", err: errors.New("connection reset")},
		},
		Runs: rec,
	}, zerolog.Nop()).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.Status != StatusCompleted || result.Metrics.SourceFailures != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Metrics.SnapshotPath == "" {
		t.Fatalf("expected a snapshot even when every source failed")
	}
	_, data, err := st.LatestSnapshot()
	if err != nil {
		t.Fatalf("latest snapshot: %v", err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Fatalf("expected empty snapshot, got %s", data)
	}

	if len(rec.started) != 1 || rec.started[0] != result.RunID {
		t.Fatalf("expected run start to be recorded, got %v", rec.started)
	}
	done, ok := rec.completed[result.RunID]
	if !ok || done.status != StatusCompleted || done.metrics.SourceFailures != 2 {
		t.Fatalf("unexpected recorded completion: %+v", rec.completed)
	}
}

func TestRunContinuesPastFailedSource(t *testing.T) {
	t.Parallel()

	st := openStore(t)
	result := runOnce(t, st, Options{
		Concurrency: 3,
		Sources: []Source{
			inline("first", catalog.RawRecord{"title": "Okami", "platform": "PS2"}),
			failingSource{name: "middle", err: errors.New("timeout")},
			inline("last", catalog.RawRecord{"title": "Halo", "platform": "Xbox"}),
		},
	})

	if result.Metrics.SourceFailures != 1 || result.Metrics.Upserted != 2 {
		t.Fatalf("unexpected metrics: %+v", result.Metrics)
	}
}

func TestSnapshotsAccumulateAcrossRuns(t *testing.T) {
	t.Parallel()

	st := openStore(t)
	const runs = 3

	var firstPath string
	var firstBytes []byte
	for i := 0; i < runs; i++ {
		result := runOnce(t, st, Options{Sources: []Source{
			inline("src", catalog.RawRecord{"title": "Game " + string(rune('A'+i)), "platform": "PC"}),
		}})
		if i == 0 {
			firstPath = result.Metrics.SnapshotPath
			var err error
			firstBytes, err = os.ReadFile(firstPath)
			if err != nil {
				t.Fatalf("read first snapshot: %v", err)
			}
		}
	}

	names, err := st.ListSnapshots()
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	if len(names) != runs {
		t.Fatalf("expected %d snapshots, got %v", runs, names)
	}
	if filepath.Base(firstPath) != names[0] {
		t.Fatalf("first snapshot %s is not the oldest name %s", firstPath, names[0])
	}
	again, err := os.ReadFile(firstPath)
	if err != nil {
		t.Fatalf("reread first snapshot: %v", err)
	}
	if !bytes.Equal(firstBytes, again) {
		t.Fatalf("first snapshot was modified by later runs")
	}
}

func TestCancelledRunStillSnapshots(t *testing.T) {
	t.Parallel()

	st := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewOrchestrator(st, Options{Sources: []Source{
		inline("never", catalog.RawRecord{"title": "Okami", "platform": "PS2"}),
	}}, zerolog.Nop()).Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Status != StatusCancelled {
		t.Fatalf("expected cancelled status, got %s", result.Status)
	}
	if result.Metrics.Fetched != 0 || result.Metrics.SourceFailures != 0 {
		t.Fatalf("abandoned fetches must not count: %+v", result.Metrics)
	}
	if _, _, err := st.LatestSnapshot(); err != nil {
		t.Fatalf("expected snapshot after cancellation: %v", err)
	}
}

func TestApprovedNewSuggestionDoesNotDuplicateIngestedEntry(t *testing.T) {
	t.Parallel()

	st := openStore(t)
	ctx := context.Background()
	svc := moderation.NewService(st, zerolog.Nop())

	sg, err := svc.SubmitNew(ctx, catalog.RawRecord{"title": "Okami", "platform": "PS2"}, "", moderation.Author{Role: "contributor", SessionID: "s1"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	runOnce(t, st, Options{Sources: []Source{
		inline("igdb", catalog.RawRecord{"title": "OKAMI", "platform": "PlayStation 2"}),
	}, Suggestions: svc})

	if _, _, err := svc.Decide(ctx, sg.ID, moderation.StatusApproved, "", moderation.Author{Role: "moderator", SessionID: "m1"}); err != nil {
		t.Fatalf("decide: %v", err)
	}

	result := runOnce(t, st, Options{Suggestions: svc})
	if result.Metrics.SuggestionsApplied != 0 {
		t.Fatalf("colliding suggestion must not count as applied: %+v", result.Metrics)
	}

	state, _ := st.LoadCatalog()
	if len(state.Records) != 1 {
		t.Fatalf("expected no duplicate entry, got keys %v", keysOf(state.Records))
	}
	if got := state.Records["okami___ps2"].Record.Source; !reflect.DeepEqual(got, []string{"igdb"}) {
		t.Fatalf("existing entry was modified: %v", got)
	}

	all, err := svc.List(ctx, moderation.ListAll)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 || all[0].AppliedAt == nil {
		t.Fatalf("expected suggestion to be marked processed: %+v", all)
	}
}

func TestApprovedUpdateIsAppliedOnce(t *testing.T) {
	t.Parallel()

	st := openStore(t)
	ctx := context.Background()
	svc := moderation.NewService(st, zerolog.Nop())
	src := inline("igdb", catalog.RawRecord{"title": "Halo", "platform": "Xbox", "esrb": "M"})

	runOnce(t, st, Options{Sources: []Source{src}, Suggestions: svc})

	sg, err := svc.SubmitUpdate(ctx, "halo___xbox", catalog.RawRecord{"pegi": "16"}, "", moderation.Author{Role: "contributor", SessionID: "s1"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, _, err := svc.Decide(ctx, sg.ID, moderation.StatusApproved, "", moderation.Author{Role: "admin", SessionID: "a1"}); err != nil {
		t.Fatalf("decide: %v", err)
	}

	applied := runOnce(t, st, Options{Sources: []Source{src}, Suggestions: svc})
	if applied.Metrics.SuggestionsApplied != 1 {
		t.Fatalf("expected one applied suggestion, got %+v", applied.Metrics)
	}
	next := runOnce(t, st, Options{Sources: []Source{src}, Suggestions: svc})
	if next.Metrics.SuggestionsApplied != 0 {
		t.Fatalf("suggestion applied twice: %+v", next.Metrics)
	}

	state, _ := st.LoadCatalog()
	entry := state.Records["halo___xbox"]
	if entry.Record.PEGI != "16" || entry.Version != 2 {
		t.Fatalf("unexpected entry after suggestion: %+v", entry)
	}
}

func keysOf(m map[string]catalog.Entry) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
