package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sandgraal/retro-games-sub003/internal/catalog"
	"github.com/sandgraal/retro-games-sub003/internal/globaltime"
	"github.com/sandgraal/retro-games-sub003/internal/store"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// Metrics are the per-run counters logged and recorded in the run ledger.
type Metrics struct {
	Fetched            int    `json:"fetched"`
	Normalized         int    `json:"normalized"`
	Merged             int    `json:"merged"`
	Upserted           int    `json:"upserted"`
	Unchanged          int    `json:"unchanged"`
	SuggestionsApplied int    `json:"suggestionsApplied"`
	SourceFailures     int    `json:"sourceFailures"`
	SnapshotPath       string `json:"snapshotPath"`
}

type Result struct {
	RunID      string    `json:"runId"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Metrics    Metrics   `json:"metrics"`
}

// RunRecorder persists run bookkeeping. Failures are logged, never fatal.
type RunRecorder interface {
	StartRun(ctx context.Context, runID string, startedAt time.Time) error
	CompleteRun(ctx context.Context, runID, status string, m Metrics, startedAt, finishedAt time.Time) error
}

// SuggestionApplier folds approved moderation suggestions into the working
// catalog. ApplyApproved returns how many suggestions changed the catalog and
// the ids of every suggestion it processed; MarkApplied is called with those
// ids once the catalog is persisted.
type SuggestionApplier interface {
	ApplyApproved(ctx context.Context, c *catalog.Catalog, decisions map[string]string, now time.Time) (int, []string, error)
	MarkApplied(ctx context.Context, ids []string, at time.Time) error
}

type Options struct {
	Sources        []Source
	FuzzyThreshold float64
	// Concurrency bounds parallel source fetches.
	Concurrency int
	Suggestions SuggestionApplier
	Runs        RunRecorder
}

// Orchestrator runs ingestion passes over the configured sources. Runs are
// serialized; the working catalog and platform index live only for one run.
type Orchestrator struct {
	store       *store.Store
	sources     []Source
	matcher     catalog.Matcher
	concurrency int
	suggestions SuggestionApplier
	runs        RunRecorder
	logger      zerolog.Logger

	mu sync.Mutex
}

func NewOrchestrator(st *store.Store, opts Options, logger zerolog.Logger) *Orchestrator {
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Orchestrator{
		store:       st,
		sources:     opts.Sources,
		matcher:     catalog.NewMatcher(opts.FuzzyThreshold),
		concurrency: concurrency,
		suggestions: opts.Suggestions,
		runs:        opts.Runs,
		logger:      logger,
	}
}

type fetchResult struct {
	records []catalog.RawRecord
	err     error
	skipped bool
}

// Run executes one ingestion pass. Source failures are logged and counted;
// the run still writes a snapshot and persists the store. When ctx is
// cancelled, fetches not yet finished are abandoned and the run goes straight
// to snapshot and persist.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	if o == nil || o.store == nil {
		return Result{}, fmt.Errorf("orchestrator is not initialized")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	// Persistence must finish even after a shutdown signal.
	persistCtx := context.WithoutCancel(ctx)

	result := Result{
		RunID:     uuid.NewString(),
		Status:    StatusRunning,
		StartedAt: globaltime.UTC(),
	}
	logger := o.logger.With().Str("run_id", result.RunID).Logger()
	logger.Info().Int("sources", len(o.sources)).Msg("ingestion run started")

	if o.runs != nil {
		if err := o.runs.StartRun(persistCtx, result.RunID, result.StartedAt); err != nil {
			logger.Warn().Err(err).Msg("record run start failed")
		}
	}

	state, err := o.store.LoadCatalog()
	if err != nil {
		return o.fail(persistCtx, logger, result, fmt.Errorf("load catalog store: %w", err))
	}
	decisions, err := o.store.LoadDecisions()
	if err != nil {
		return o.fail(persistCtx, logger, result, fmt.Errorf("load merge decisions: %w", err))
	}

	working := catalog.NewCatalog(state.Records)
	m := &result.Metrics

	fetched := o.prefetch(ctx)
	for i, src := range o.sources {
		res := fetched[i]
		switch {
		case res.skipped:
			logger.Warn().Str("source", src.Name()).Msg("source fetch abandoned")
			continue
		case res.err != nil:
			m.SourceFailures++
			logSourceFailure(logger, src.Name(), res.err)
			continue
		}

		m.Fetched += len(res.records)
		normalized := make([]catalog.Record, 0, len(res.records))
		for _, raw := range res.records {
			normalized = append(normalized, catalog.Normalize(raw, src.Name()))
		}
		m.Normalized += len(normalized)

		o.mergeAll(working, decisions, normalized, m)
		logger.Debug().Str("source", src.Name()).Int("records", len(normalized)).Msg("source merged")
	}

	var applied []string
	if o.suggestions != nil {
		n, ids, err := o.suggestions.ApplyApproved(persistCtx, working, decisions, globaltime.UTC())
		if err != nil {
			logger.Error().Err(err).Msg("apply approved suggestions failed")
		}
		m.SuggestionsApplied = n
		applied = ids
	}

	snapshotPath, snapErr := o.store.WriteSnapshot(working.Entries(), globaltime.UTC())
	if snapErr != nil {
		logger.Error().Err(snapErr).Msg("write snapshot failed")
	}
	m.SnapshotPath = snapshotPath

	finishedAt := globaltime.UTC()
	if err := o.store.SaveDecisions(decisions); err != nil {
		return o.fail(persistCtx, logger, result, fmt.Errorf("save merge decisions: %w", err))
	}
	if err := o.store.SaveCatalog(store.CatalogState{Records: working.Entries(), LastRun: &finishedAt}); err != nil {
		return o.fail(persistCtx, logger, result, fmt.Errorf("save catalog store: %w", err))
	}

	if o.suggestions != nil && len(applied) > 0 {
		if err := o.suggestions.MarkApplied(persistCtx, applied, finishedAt); err != nil {
			logger.Error().Err(err).Strs("suggestion_ids", applied).Msg("mark suggestions applied failed")
		}
	}

	switch {
	case snapErr != nil:
		result.Status = StatusFailed
	case ctx.Err() != nil:
		result.Status = StatusCancelled
	default:
		result.Status = StatusCompleted
	}
	result.FinishedAt = finishedAt
	o.complete(persistCtx, logger, result)

	if snapErr != nil {
		return result, fmt.Errorf("write snapshot: %w", snapErr)
	}
	return result, nil
}

// prefetch fetches every source with bounded concurrency. Results are
// indexed like o.sources so merging keeps config order.
func (o *Orchestrator) prefetch(ctx context.Context) []fetchResult {
	results := make([]fetchResult, len(o.sources))

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, src := range o.sources {
		i, src := i, src
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i] = fetchResult{skipped: true}
				return nil
			}
			records, err := src.Fetch(ctx)
			if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				results[i] = fetchResult{skipped: true}
				return nil
			}
			results[i] = fetchResult{records: records, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (o *Orchestrator) mergeAll(working *catalog.Catalog, decisions map[string]string, records []catalog.Record, m *Metrics) {
	now := globaltime.UTC()
	for _, rec := range records {
		res := o.matcher.Resolve(rec, working, decisions)
		_, existed := working.Get(res.CanonicalKey)
		_, outcome := working.Observe(res.CanonicalKey, rec, now)

		if res.CanonicalKey != res.DeterministicKey {
			decisions[res.DeterministicKey] = res.CanonicalKey
		}

		if !existed {
			m.Upserted++
			continue
		}
		m.Merged++
		if outcome == catalog.OutcomeChanged {
			m.Upserted++
		} else {
			m.Unchanged++
		}
	}
}

func (o *Orchestrator) fail(ctx context.Context, logger zerolog.Logger, result Result, err error) (Result, error) {
	result.Status = StatusFailed
	result.FinishedAt = globaltime.UTC()
	logger.Error().Err(err).Msg("ingestion run failed")
	o.complete(ctx, logger, result)
	return result, err
}

func (o *Orchestrator) complete(ctx context.Context, logger zerolog.Logger, result Result) {
	if o.runs != nil {
		if err := o.runs.CompleteRun(ctx, result.RunID, result.Status, result.Metrics, result.StartedAt, result.FinishedAt); err != nil {
			logger.Warn().Err(err).Msg("record run completion failed")
		}
	}

	m := result.Metrics
	logger.Info().
		Str("status", result.Status).
		Int("fetched", m.Fetched).
		Int("normalized", m.Normalized).
		Int("merged", m.Merged).
		Int("upserted", m.Upserted).
		Int("unchanged", m.Unchanged).
		Int("suggestions_applied", m.SuggestionsApplied).
		Int("source_failures", m.SourceFailures).
		Str("snapshot_path", m.SnapshotPath).
		Dur("duration", result.FinishedAt.Sub(result.StartedAt)).
		Msg("ingestion run finished")
}

func logSourceFailure(logger zerolog.Logger, name string, err error) {
	event := logger.Error().Err(err).Str("source", name)
	var srcErr *SourceError
	if errors.As(err, &srcErr) {
		if srcErr.URL != "" {
			event = event.Str("url", srcErr.URL)
		}
		if srcErr.StatusCode != 0 {
			event = event.Int("status_code", srcErr.StatusCode)
		}
		if srcErr.Body != "" {
			event = event.Str("body", srcErr.Body)
		}
	}
	event.Msg("source failed")
}
