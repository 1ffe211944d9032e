package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sandgraal/retro-games-sub003/internal/catalog"
	"github.com/sandgraal/retro-games-sub003/internal/moderation"
	"github.com/sandgraal/retro-games-sub003/internal/store"
)

type suggestionRequest struct {
	Delta catalog.RawRecord `json:"delta"`
	Notes string            `json:"notes"`
}

type decisionRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func (s *Server) handleCatalog(c echo.Context) error {
	name, data, err := s.snapshots.LatestSnapshot()
	if err != nil {
		if errors.Is(err, store.ErrNoSnapshot) {
			return fail(c, http.StatusServiceUnavailable, "Catalog snapshot not available yet", nil)
		}
		s.logger.Error().Err(err).Msg("read latest snapshot failed")
		return internalError(c, "Failed to load catalog")
	}

	h := c.Response().Header()
	h.Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(s.opts.SnapshotMaxAge.Seconds())))
	h.Set("X-Catalog-Snapshot", name)
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, data)
}

func (s *Server) handleSubmitUpdate(c echo.Context) error {
	var req suggestionRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}

	author := authorFromPrincipal(principalFromContext(c))
	sg, err := s.moderation.SubmitUpdate(c.Request().Context(), c.Param("id"), req.Delta, req.Notes, author)
	switch {
	case errors.Is(err, moderation.ErrMissingTarget):
		return failValidation(c, map[string]string{"id": err.Error()})
	case errors.Is(err, moderation.ErrMissingDelta):
		return failValidation(c, map[string]string{"delta": err.Error()})
	case err != nil:
		s.logger.Error().Err(err).Str("target_id", c.Param("id")).Msg("submit update suggestion failed")
		return internalError(c, "Failed to save suggestion")
	}
	return successWithStatus(c, http.StatusCreated, map[string]any{"suggestion": sg})
}

func (s *Server) handleSubmitNew(c echo.Context) error {
	var req suggestionRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}

	author := authorFromPrincipal(principalFromContext(c))
	sg, err := s.moderation.SubmitNew(c.Request().Context(), req.Delta, req.Notes, author)
	switch {
	case errors.Is(err, moderation.ErrMissingDelta), errors.Is(err, moderation.ErrMissingTitle):
		return failValidation(c, map[string]string{"delta": err.Error()})
	case err != nil:
		s.logger.Error().Err(err).Msg("submit new game suggestion failed")
		return internalError(c, "Failed to save suggestion")
	}
	return successWithStatus(c, http.StatusCreated, map[string]any{"suggestion": sg})
}

func (s *Server) handleListSuggestions(c echo.Context) error {
	items, err := s.moderation.List(c.Request().Context(), c.QueryParam("status"))
	if err != nil {
		if errors.Is(err, moderation.ErrInvalidFilter) {
			return failValidation(c, map[string]string{"status": err.Error()})
		}
		s.logger.Error().Err(err).Msg("list suggestions failed")
		return internalError(c, "Failed to load suggestions")
	}
	return success(c, map[string]any{"items": items})
}

func (s *Server) handleDecide(c echo.Context) error {
	var req decisionRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}

	status := moderation.Status(strings.ToLower(strings.TrimSpace(req.Status)))
	moderator := authorFromPrincipal(principalFromContext(c))
	sg, entry, err := s.moderation.Decide(c.Request().Context(), c.Param("id"), status, req.Notes, moderator)
	switch {
	case errors.Is(err, moderation.ErrInvalidStatus):
		return failValidation(c, map[string]string{"status": err.Error()})
	case errors.Is(err, moderation.ErrSuggestionNotFound):
		return failNotFound(c, "Suggestion not found")
	case errors.Is(err, moderation.ErrAlreadyDecided):
		return fail(c, http.StatusConflict, "Suggestion already decided", nil)
	case err != nil:
		s.logger.Error().Err(err).Str("suggestion_id", c.Param("id")).Msg("decide suggestion failed")
		return internalError(c, "Failed to record decision")
	}
	return success(c, map[string]any{
		"suggestion": sg,
		"audit":      entry,
	})
}

func (s *Server) handleAudit(c echo.Context) error {
	entries, err := s.moderation.Audit(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("load audit log failed")
		return internalError(c, "Failed to load audit log")
	}
	return success(c, map[string]any{"items": entries})
}

func (s *Server) handleRuns(c echo.Context) error {
	if s.runs == nil {
		return fail(c, http.StatusServiceUnavailable, "Run ledger is not configured", nil)
	}

	limit := 0
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return failValidation(c, map[string]string{"limit": "must be a positive integer"})
		}
		limit = parsed
	}

	runs, err := s.runs.RecentRuns(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("query ingest runs failed")
		return internalError(c, "Failed to load ingest runs")
	}
	return success(c, map[string]any{"items": runs})
}

// decodeJSONBody decodes exactly one JSON object and rejects unknown fields.
// Numbers stay json.Number so ids are not rounded through float64.
func decodeJSONBody(c echo.Context, v any) error {
	dec := json.NewDecoder(c.Request().Body)
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}
