package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sandgraal/retro-games-sub003/internal/catalog"
	"github.com/sandgraal/retro-games-sub003/internal/config"
)

const (
	maxSourceErrorBodyLength = 4000
	maxSourcePayloadBytes    = 64 << 20
)

// Source delivers raw game records. Implementations return an error when the
// fetch fails; they never retry.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]catalog.RawRecord, error)
}

// SourceError carries the diagnostic context of a failed fetch.
type SourceError struct {
	Source     string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *SourceError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "source %s", e.Source)
	if e.URL != "" {
		fmt.Fprintf(&b, " (%s)", e.URL)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// InlineSource serves records embedded in the configuration.
type InlineSource struct {
	SourceName string
	Records    []catalog.RawRecord
}

func (s InlineSource) Name() string {
	return s.SourceName
}

func (s InlineSource) Fetch(ctx context.Context) ([]catalog.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]catalog.RawRecord, len(s.Records))
	copy(out, s.Records)
	return out, nil
}

// HTTPSource issues a GET and accepts either a JSON array of records or an
// object with a "results" array.
type HTTPSource struct {
	name    string
	url     string
	headers map[string]string
	client  *http.Client
}

func NewHTTPSource(name, url string, headers map[string]string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	h := make(map[string]string, len(headers))
	for k, v := range headers {
		h[k] = v
	}
	return &HTTPSource{name: name, url: url, headers: h, client: client}
}

func (s *HTTPSource) Name() string {
	return s.name
}

func (s *HTTPSource) Fetch(ctx context.Context) ([]catalog.RawRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, &SourceError{Source: s.name, URL: s.url, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &SourceError{Source: s.name, URL: s.url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSourcePayloadBytes))
	if err != nil {
		return nil, &SourceError{Source: s.name, URL: s.url, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &SourceError{
			Source:     s.name,
			URL:        s.url,
			StatusCode: resp.StatusCode,
			Body:       truncateBody(body),
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	records, err := decodeRecords(body)
	if err != nil {
		return nil, &SourceError{
			Source:     s.name,
			URL:        s.url,
			StatusCode: resp.StatusCode,
			Body:       truncateBody(body),
			Err:        err,
		}
	}
	return records, nil
}

func decodeRecords(body []byte) ([]catalog.RawRecord, error) {
	decoder := json.NewDecoder(bytes.NewReader(bytes.TrimSpace(body)))
	decoder.UseNumber()

	var payload any
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	var items []any
	switch typed := payload.(type) {
	case []any:
		items = typed
	case map[string]any:
		results, ok := typed["results"].([]any)
		if !ok {
			return nil, fmt.Errorf("payload object has no results array")
		}
		items = results
	default:
		return nil, fmt.Errorf("payload is neither an array nor an object")
	}

	records := make([]catalog.RawRecord, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			records = append(records, catalog.RawRecord(obj))
		}
	}
	return records, nil
}

func truncateBody(body []byte) string {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxSourceErrorBodyLength {
		msg = msg[:maxSourceErrorBodyLength]
	}
	return msg
}

// BuildSources turns source configs into sources, in config order.
func BuildSources(cfgs []config.SourceConfig, client *http.Client) []Source {
	sources := make([]Source, 0, len(cfgs))
	for _, cfg := range cfgs {
		name := strings.TrimSpace(cfg.Name)
		switch {
		case cfg.Records != nil:
			sources = append(sources, InlineSource{SourceName: name, Records: cfg.Records})
		case strings.TrimSpace(cfg.URL) != "":
			sources = append(sources, NewHTTPSource(name, strings.TrimSpace(cfg.URL), cfg.Headers, client))
		default:
			sources = append(sources, InlineSource{SourceName: name})
		}
	}
	return sources
}
