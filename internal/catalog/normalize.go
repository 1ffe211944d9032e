package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	titleKeys        = []string{"title", "name", "game_name", "gameName"}
	platformKeys     = []string{"platform", "platform_name", "platformName"}
	platformSlugKeys = []string{"platform_slug", "platformSlug"}
	releaseDateKeys  = []string{"release_date", "releaseDate", "released", "first_release_date"}
	regionKeys       = []string{"regions", "region"}
	genreKeys        = []string{"genres", "genre"}
	esrbKeys         = []string{"esrb", "rating"}
	pegiKeys         = []string{"pegi"}
	coverKeys        = []string{"cover_url", "coverUrl", "cover"}
	screenshotKeys   = []string{"screenshots"}
	sourceIDKeys     = []string{"id", "slug", "external_id"}
)

// scalar external id fields and the external_ids key they populate
var externalIDAliases = []struct {
	field string
	key   string
}{
	{field: "igdb_id", key: "igdb"},
	{field: "giantbomb_id", key: "giantbomb"},
	{field: "rawg_id", key: "rawg"},
	{field: "steam_app_id", key: "steam"},
	{field: "gog_id", key: "gog"},
}

type field string

const (
	fieldTitle        field = "title"
	fieldPlatform     field = "platform"
	fieldPlatformSlug field = "platform_slug"
	fieldReleaseDate  field = "release_date"
	fieldRegions      field = "regions"
	fieldGenres       field = "genres"
	fieldESRB         field = "esrb"
	fieldPEGI         field = "pegi"
	fieldCover        field = "cover"
	fieldScreenshots  field = "screenshots"
	fieldExternalIDs  field = "external_ids"
	fieldSourceID     field = "source_id"
)

// extraction is a record plus the set of logical fields the payload actually
// carried, so deltas can be applied field by field.
type extraction struct {
	record  Record
	present map[field]bool
	// ids given through scalar aliases such as igdb_id
	aliasIDs map[string]string
}

// Normalize maps a raw payload from the named source into a Record. It never
// fails: missing or unusable fields become empty values.
func Normalize(raw RawRecord, source string) Record {
	rec := extract(raw).record
	if s := strings.TrimSpace(source); s != "" {
		rec.Source = []string{s}
	}
	return rec.canonical()
}

func extract(raw RawRecord) extraction {
	ex := extraction{present: make(map[field]bool)}
	rec := &ex.record

	if v, ok := firstString(raw, titleKeys...); ok {
		rec.Title = v
		ex.present[fieldTitle] = true
	}

	display, hasDisplay := firstString(raw, platformKeys...)
	slug, hasSlug := firstString(raw, platformSlugKeys...)
	switch {
	case hasDisplay && hasSlug:
		rec.Platform, rec.PlatformSlug = display, slug
	case hasDisplay:
		rec.Platform, rec.PlatformSlug = display, display
	case hasSlug:
		rec.Platform, rec.PlatformSlug = slug, slug
	}
	ex.present[fieldPlatform] = hasDisplay
	ex.present[fieldPlatformSlug] = hasSlug

	if v, ok := firstString(raw, releaseDateKeys...); ok {
		rec.ReleaseDate = v
		ex.present[fieldReleaseDate] = true
	}
	if v, ok := firstSet(raw, regionKeys...); ok {
		rec.Regions = v
		ex.present[fieldRegions] = true
	}
	if v, ok := firstSet(raw, genreKeys...); ok {
		rec.Genres = v
		ex.present[fieldGenres] = true
	}
	if v, ok := firstString(raw, esrbKeys...); ok {
		rec.ESRB = v
		ex.present[fieldESRB] = true
	}
	if v, ok := firstString(raw, pegiKeys...); ok {
		rec.PEGI = v
		ex.present[fieldPEGI] = true
	}

	assets, _ := raw["assets"].(map[string]any)
	if v, ok := firstString(RawRecord(assets), "cover", "cover_url"); ok {
		rec.Assets.Cover = v
		ex.present[fieldCover] = true
	} else if v, ok := firstString(raw, coverKeys...); ok {
		rec.Assets.Cover = v
		ex.present[fieldCover] = true
	}
	if v, ok := firstSet(RawRecord(assets), screenshotKeys...); ok {
		rec.Assets.Screenshots = v
		ex.present[fieldScreenshots] = true
	} else if v, ok := firstSet(raw, screenshotKeys...); ok {
		rec.Assets.Screenshots = v
		ex.present[fieldScreenshots] = true
	}

	ids := make(map[string]string)
	if m, ok := raw["external_ids"].(map[string]any); ok {
		for k, v := range m {
			if s, ok := scalarString(v); ok {
				ids[k] = s
			}
		}
		ex.present[fieldExternalIDs] = true
	}
	ex.aliasIDs = make(map[string]string)
	for _, alias := range externalIDAliases {
		if _, exists := ids[alias.key]; exists {
			continue
		}
		if v, ok := firstString(raw, alias.field); ok {
			ex.aliasIDs[alias.key] = v
		}
	}
	for k, v := range ex.aliasIDs {
		ids[k] = v
	}
	rec.ExternalIDs = ids

	if v, ok := firstString(raw, sourceIDKeys...); ok {
		rec.SourceID = v
		ex.present[fieldSourceID] = true
	}

	return ex
}

// firstString returns the first alias holding a usable scalar value.
func firstString(raw RawRecord, keys ...string) (string, bool) {
	for _, key := range keys {
		v, exists := raw[key]
		if !exists {
			continue
		}
		if s, ok := scalarString(v); ok {
			return s, true
		}
		if m, ok := v.(map[string]any); ok {
			if s, ok := scalarString(m["name"]); ok {
				return s, true
			}
		}
	}
	return "", false
}

// firstSet accepts either a scalar or an array for the first alias present.
func firstSet(raw RawRecord, keys ...string) ([]string, bool) {
	for _, key := range keys {
		v, exists := raw[key]
		if !exists || v == nil {
			continue
		}
		var values []string
		switch typed := v.(type) {
		case []any:
			for _, item := range typed {
				if s, ok := scalarString(item); ok {
					values = append(values, s)
					continue
				}
				if m, ok := item.(map[string]any); ok {
					if s, ok := scalarString(m["name"]); ok {
						values = append(values, s)
					}
				}
			}
		case []string:
			values = append(values, typed...)
		default:
			if s, ok := scalarString(typed); ok {
				values = append(values, s)
			}
		}
		return stringSet(values), true
	}
	return nil, false
}

func scalarString(v any) (string, bool) {
	var s string
	switch typed := v.(type) {
	case string:
		s = typed
	case json.Number:
		s = typed.String()
	case float64:
		if math.IsNaN(typed) || math.IsInf(typed, 0) {
			return "", false
		}
		s = strconv.FormatFloat(typed, 'f', -1, 64)
	case int:
		s = strconv.Itoa(typed)
	case int64:
		s = strconv.FormatInt(typed, 10)
	case bool:
		return "", false
	case nil:
		return "", false
	default:
		if _, isMap := v.(map[string]any); isMap {
			return "", false
		}
		if _, isSlice := v.([]any); isSlice {
			return "", false
		}
		s = fmt.Sprint(typed)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}

// ApplyDelta shallow-merges a partial payload onto rec: every logical field
// the delta carries replaces the record's value. Provenance is untouched.
func ApplyDelta(rec Record, delta RawRecord) Record {
	ex := extract(delta)
	in := ex.record
	out := rec.canonical()

	if ex.present[fieldTitle] {
		out.Title = in.Title
	}
	if ex.present[fieldPlatform] {
		out.Platform = in.Platform
	}
	if ex.present[fieldPlatformSlug] {
		out.PlatformSlug = in.PlatformSlug
	}
	if ex.present[fieldReleaseDate] {
		out.ReleaseDate = in.ReleaseDate
	}
	if ex.present[fieldRegions] {
		out.Regions = in.Regions
	}
	if ex.present[fieldGenres] {
		out.Genres = in.Genres
	}
	if ex.present[fieldESRB] {
		out.ESRB = in.ESRB
	}
	if ex.present[fieldPEGI] {
		out.PEGI = in.PEGI
	}
	if ex.present[fieldCover] {
		out.Assets.Cover = in.Assets.Cover
	}
	if ex.present[fieldScreenshots] {
		out.Assets.Screenshots = in.Assets.Screenshots
	}
	// An explicit external_ids map replaces the set; scalar aliases only
	// touch their own key.
	if ex.present[fieldExternalIDs] {
		out.ExternalIDs = in.ExternalIDs
	} else {
		for k, v := range ex.aliasIDs {
			out.ExternalIDs[k] = v
		}
	}
	if ex.present[fieldSourceID] {
		out.SourceID = in.SourceID
	}
	return out.canonical()
}

// HasTitle reports whether a delta carries a usable title under any alias.
func HasTitle(delta RawRecord) bool {
	_, ok := firstString(delta, titleKeys...)
	return ok
}
