package extractor

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/siteaudit/internal/domain"
)

// extractStructuredData collects JSON-LD objects (including @graph
// envelopes) and microdata itemtype declarations. Malformed blocks become
// warnings on the record, never errors.
func extractStructuredData(doc *goquery.Document, rec *domain.PageRecord) {
	doc.Find(`script[type="application/ld+json"]`).Each(func(i int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}

		var parsed any
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			rec.SchemaWarnings = append(rec.SchemaWarnings,
				fmt.Sprintf("JSON-LD block %d: %v", i+1, err))
			return
		}

		switch v := parsed.(type) {
		case map[string]any:
			recordSchemaObject(v, rec)
		case []any:
			for _, item := range v {
				if obj, ok := item.(map[string]any); ok {
					recordSchemaObject(obj, rec)
				}
			}
		}
	})

	doc.Find("[itemtype]").Each(func(_ int, s *goquery.Selection) {
		itemtype, _ := s.Attr("itemtype")
		itemtype = strings.TrimSpace(itemtype)
		if itemtype == "" {
			return
		}
		// Record the tail of the schema.org URL path.
		if idx := strings.LastIndex(itemtype, "/"); idx >= 0 {
			itemtype = itemtype[idx+1:]
		}
		if itemtype != "" {
			appendSchemaType(rec, itemtype)
		}
	})

	rec.HasSchema = len(rec.SchemaTypes) > 0
}

func recordSchemaObject(obj map[string]any, rec *domain.PageRecord) {
	if graph, ok := obj["@graph"].([]any); ok {
		for _, node := range graph {
			if nodeObj, ok := node.(map[string]any); ok {
				recordSchemaObject(nodeObj, rec)
			}
		}
		return
	}
	for _, t := range schemaTypes(obj) {
		appendSchemaType(rec, t)
	}
	if _, ok := obj["@type"]; ok {
		rec.SchemaObjects = append(rec.SchemaObjects, obj)
	}
}

func appendSchemaType(rec *domain.PageRecord, t string) {
	for _, existing := range rec.SchemaTypes {
		if existing == t {
			return
		}
	}
	rec.SchemaTypes = append(rec.SchemaTypes, t)
}

// schemaTypes returns the @type value(s) of a JSON-LD object; @type may be
// a string or an array of strings.
func schemaTypes(obj map[string]any) []string {
	switch v := obj["@type"].(type) {
	case string:
		return []string{v}
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// hasSchemaType reports whether the object declares the given @type.
func hasSchemaType(obj map[string]any, want string) bool {
	for _, t := range schemaTypes(obj) {
		if t == want {
			return true
		}
	}
	return false
}

// --- coercion helpers for loosely shaped JSON-LD values ---

// asString coerces a string or numeric value to its string form.
func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

// asFloat coerces a number or numeric string.
func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

// asInt coerces a number or numeric string to an int.
func asInt(v any) (int, bool) {
	f, ok := asFloat(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// firstImage extracts an image URL from a string, an array, or an object
// carrying a url property.
func firstImage(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		if len(t) > 0 {
			return firstImage(t[0])
		}
	case map[string]any:
		return asString(t["url"])
	}
	return ""
}

// asAttribution coerces an author or publisher value: plain string, object
// with name/url/logo, or the first element of an array.
func asAttribution(v any) *domain.Attribution {
	switch t := v.(type) {
	case string:
		if name := strings.TrimSpace(t); name != "" {
			return &domain.Attribution{Name: name}
		}
	case []any:
		if len(t) > 0 {
			return asAttribution(t[0])
		}
	case map[string]any:
		attr := &domain.Attribution{
			Name: asString(t["name"]),
			URL:  asString(t["url"]),
		}
		if logo, ok := t["logo"].(map[string]any); ok {
			attr.LogoURL = asString(logo["url"])
		}
		if attr.Name != "" || attr.URL != "" || attr.LogoURL != "" {
			return attr
		}
	}
	return nil
}

// normalizeAvailability strips the schema.org prefix from an availability
// value, leaving the short form ("InStock", "OutOfStock", ...).
func normalizeAvailability(v any) string {
	s := asString(v)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "schema.org/")
	return s
}
