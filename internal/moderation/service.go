package moderation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sandgraal/retro-games-sub003/internal/catalog"
	"github.com/sandgraal/retro-games-sub003/internal/globaltime"
	"github.com/sandgraal/retro-games-sub003/internal/store"
)

// SuggestionSource is the provenance recorded on records created from an
// approved "new" suggestion.
const SuggestionSource = "community"

// Service owns the suggestion queue and the audit log. It never writes the
// canonical store; approved changes are folded in by the orchestrator
// through ApplyApproved.
type Service struct {
	store  *store.Store
	logger zerolog.Logger
}

func NewService(st *store.Store, logger zerolog.Logger) *Service {
	return &Service{store: st, logger: logger}
}

func (s *Service) SubmitUpdate(ctx context.Context, targetID string, delta catalog.RawRecord, notes string, author Author) (Suggestion, error) {
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return Suggestion{}, ErrMissingTarget
	}
	if len(delta) == 0 {
		return Suggestion{}, ErrMissingDelta
	}
	return s.submit(ctx, Suggestion{Type: TypeUpdate, TargetID: targetID, Delta: delta, Notes: notes, Author: author})
}

func (s *Service) SubmitNew(ctx context.Context, delta catalog.RawRecord, notes string, author Author) (Suggestion, error) {
	if len(delta) == 0 {
		return Suggestion{}, ErrMissingDelta
	}
	if !catalog.HasTitle(delta) {
		return Suggestion{}, ErrMissingTitle
	}
	return s.submit(ctx, Suggestion{Type: TypeNew, Delta: delta, Notes: notes, Author: author})
}

func (s *Service) submit(_ context.Context, sg Suggestion) (Suggestion, error) {
	sg.ID = uuid.NewString()
	sg.Status = StatusPending
	sg.SubmittedAt = globaltime.UTC()
	sg.Notes = strings.TrimSpace(sg.Notes)

	err := store.Update(s.store, store.SuggestionsFile, func(list *[]Suggestion) error {
		*list = append(*list, sg)
		return nil
	})
	if err != nil {
		return Suggestion{}, fmt.Errorf("save suggestion: %w", err)
	}

	s.logger.Info().
		Str("suggestion_id", sg.ID).
		Str("type", string(sg.Type)).
		Str("target_id", sg.TargetID).
		Str("role", sg.Author.Role).
		Msg("suggestion submitted")
	return sg, nil
}

// List returns suggestions whose status matches filter, oldest first. An
// empty filter means pending; ListAll returns everything.
func (s *Service) List(_ context.Context, filter string) ([]Suggestion, error) {
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter == "" {
		filter = string(StatusPending)
	}
	if filter != ListAll && filter != string(StatusPending) && !Status(filter).decision() {
		return nil, ErrInvalidFilter
	}

	all, err := store.Read[[]Suggestion](s.store, store.SuggestionsFile)
	if err != nil {
		return nil, fmt.Errorf("read suggestions: %w", err)
	}

	out := make([]Suggestion, 0, len(all))
	for _, sg := range all {
		if filter == ListAll || string(sg.Status) == filter {
			out = append(out, sg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out, nil
}

// Decide moves a pending suggestion to approved or rejected and appends one
// audit entry. A suggestion is decided at most once.
func (s *Service) Decide(_ context.Context, id string, status Status, notes string, moderator Author) (Suggestion, AuditEntry, error) {
	if !status.decision() {
		return Suggestion{}, AuditEntry{}, ErrInvalidStatus
	}
	id = strings.TrimSpace(id)
	notes = strings.TrimSpace(notes)
	now := globaltime.UTC()

	var decided Suggestion
	err := store.Update(s.store, store.SuggestionsFile, func(list *[]Suggestion) error {
		for i := range *list {
			sg := &(*list)[i]
			if sg.ID != id {
				continue
			}
			if sg.Status != StatusPending {
				return ErrAlreadyDecided
			}
			mod := moderator
			sg.Status = status
			sg.ModerationNotes = notes
			sg.Moderator = &mod
			sg.DecidedAt = &now
			decided = *sg
			return nil
		}
		return ErrSuggestionNotFound
	})
	if err != nil {
		return Suggestion{}, AuditEntry{}, err
	}

	entry := AuditEntry{
		SuggestionID: decided.ID,
		Decision:     status,
		Notes:        notes,
		Moderator:    moderator,
		Timestamp:    now,
	}
	if err := s.appendAudit(entry); err != nil {
		return Suggestion{}, AuditEntry{}, err
	}

	s.logger.Info().
		Str("suggestion_id", decided.ID).
		Str("decision", string(status)).
		Str("moderator_role", moderator.Role).
		Msg("suggestion decided")
	return decided, entry, nil
}

func (s *Service) appendAudit(entry AuditEntry) error {
	err := store.Update(s.store, store.AuditFile, func(log *[]AuditEntry) error {
		*log = append(*log, entry)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// Audit returns the audit log in append order.
func (s *Service) Audit(_ context.Context) ([]AuditEntry, error) {
	entries, err := store.Read[[]AuditEntry](s.store, store.AuditFile)
	if err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	if entries == nil {
		entries = []AuditEntry{}
	}
	return entries, nil
}

// ApplyApproved folds approved suggestions that were not applied yet into c.
// Updates are shallow-merged onto their target and versioned; content
// identical deltas change nothing. New records are inserted under their
// deterministic key only when that key is free: no entry holds it and no merge
// decision already redirects it. It returns the number of suggestions that
// changed c and the ids of all suggestions processed.
func (s *Service) ApplyApproved(_ context.Context, c *catalog.Catalog, decisions map[string]string, now time.Time) (int, []string, error) {
	all, err := store.Read[[]Suggestion](s.store, store.SuggestionsFile)
	if err != nil {
		return 0, nil, fmt.Errorf("read suggestions: %w", err)
	}

	applied := 0
	var processed []string
	for _, sg := range all {
		if sg.Status != StatusApproved || sg.AppliedAt != nil {
			continue
		}
		processed = append(processed, sg.ID)
		logger := s.logger.With().Str("suggestion_id", sg.ID).Str("type", string(sg.Type)).Logger()

		switch sg.Type {
		case TypeUpdate:
			current, ok := c.Get(sg.TargetID)
			if !ok {
				logger.Warn().Str("target_id", sg.TargetID).Msg("approved update targets unknown game, dropped")
				continue
			}
			next := catalog.ApplyDelta(current.Record, sg.Delta)
			_, outcome, _ := c.Revise(sg.TargetID, next, now)
			if outcome == catalog.OutcomeChanged {
				applied++
			}
			logger.Debug().Str("target_id", sg.TargetID).Str("outcome", string(outcome)).Msg("approved update applied")
		case TypeNew:
			rec := catalog.Normalize(sg.Delta, SuggestionSource)
			key := catalog.KeyFor(rec)
			if canonical, decided := decisions[key]; decided {
				logger.Warn().Str("key", key).Str("canonical_key", canonical).Msg("approved new game resolves to a merged entry, dropped")
				continue
			}
			if _, inserted := c.Insert(key, rec, now); !inserted {
				logger.Warn().Str("key", key).Msg("approved new game collides with existing entry, dropped")
				continue
			}
			applied++
			logger.Debug().Str("key", key).Msg("approved new game inserted")
		default:
			logger.Warn().Msg("unknown suggestion type, skipped")
		}
	}
	return applied, processed, nil
}

// MarkApplied stamps appliedAt on the given suggestions.
func (s *Service) MarkApplied(_ context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	return store.Update(s.store, store.SuggestionsFile, func(list *[]Suggestion) error {
		for i := range *list {
			sg := &(*list)[i]
			if _, ok := want[sg.ID]; ok && sg.AppliedAt == nil {
				stamp := at
				sg.AppliedAt = &stamp
			}
		}
		return nil
	})
}
