package issues

import (
	"net/url"
	"strings"

	"github.com/user/siteaudit/internal/domain"
)

const maxURLParams = 3

var sortingParams = map[string]struct{}{
	"sort": {}, "sortby": {}, "order": {}, "orderby": {}, "dir": {},
}

var sessionParams = map[string]struct{}{
	"sessionid": {}, "session_id": {}, "sid": {}, "phpsessid": {}, "jsessionid": {},
}

var filterParams = map[string]struct{}{
	"filter": {}, "color": {}, "size": {}, "price": {}, "brand": {}, "category": {},
}

// technicalRules covers pagination markup, URL parameter hygiene, and
// canonical coverage.
func technicalRules(page *domain.PageRecord) []domain.IssueTuple {
	var out []domain.IssueTuple

	params := parseParams(page.QueryString)
	paginated := isPaginated(page, params)

	if paginated {
		if !page.HasRelPrev && !page.HasRelNext {
			out = append(out, tuple("pagination_missing_rel_links", nil))
		}
		if page.CanonicalURL != "" && page.IsSelfCanonical != nil && !*page.IsSelfCanonical {
			out = append(out, tuple("pagination_canonical_mismatch", map[string]any{
				"canonical": page.CanonicalURL,
			}))
		}
		if strings.Contains(strings.ToLower(page.RobotsMeta), "noindex") {
			out = append(out, tuple("pagination_noindex", nil))
		}
	}

	if len(params) >= maxURLParams {
		out = append(out, tuple("excessive_url_parameters", map[string]any{
			"count": len(params),
		}))
	}
	var facets int
	for key := range params {
		k := strings.ToLower(key)
		if _, ok := sortingParams[k]; ok {
			out = append(out, tuple("url_sorting_parameters", map[string]any{"param": key}))
		}
		if _, ok := sessionParams[k]; ok {
			out = append(out, tuple("url_session_parameters", map[string]any{"param": key}))
		}
		if _, ok := filterParams[k]; ok {
			facets++
		}
	}
	if facets > 0 && page.IsIndexable {
		out = append(out, tuple("indexable_faceted_navigation", map[string]any{
			"filterParams": facets,
		}))
	}

	if page.IsIndexable && page.StatusCode == 200 && page.CanonicalURL == "" {
		out = append(out, tuple("missing_canonical", nil))
	}

	return out
}

func parseParams(query string) url.Values {
	if query == "" {
		return url.Values{}
	}
	params, err := url.ParseQuery(query)
	if err != nil {
		return url.Values{}
	}
	return params
}

func isPaginated(page *domain.PageRecord, params url.Values) bool {
	for _, key := range []string{"page", "p", "paged", "offset"} {
		if params.Has(key) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(page.Path), "/page/")
}

// internationalRules covers hreflang validity and the html lang attribute.
func internationalRules(page *domain.PageRecord) []domain.IssueTuple {
	var out []domain.IssueTuple

	if page.HTMLLang == "" {
		out = append(out, tuple("intl_missing_html_lang", nil))
	}
	for _, token := range page.HreflangIssues {
		switch {
		case strings.HasPrefix(token, "invalid_lang_code"), strings.HasPrefix(token, "invalid_region_code"):
			out = append(out, tuple("intl_invalid_hreflang", map[string]any{"detail": token}))
		case strings.HasPrefix(token, "duplicate_hreflang"):
			out = append(out, tuple("intl_duplicate_hreflang", map[string]any{"detail": token}))
		case token == "missing_self_reference":
			out = append(out, tuple("intl_hreflang_missing_self", nil))
		}
	}

	return out
}

// socialRules covers Open Graph and Twitter card coverage.
func socialRules(page *domain.PageRecord) []domain.IssueTuple {
	if !page.IsIndexable {
		return nil
	}
	var out []domain.IssueTuple
	if page.OGTitle == "" {
		out = append(out, tuple("social_missing_og_title", nil))
	}
	if page.OGDescription == "" {
		out = append(out, tuple("social_missing_og_description", nil))
	}
	if page.OGImage == "" {
		out = append(out, tuple("social_missing_og_image", nil))
	}
	if page.TwitterCard == "" {
		out = append(out, tuple("social_missing_twitter_card", nil))
	}
	return out
}
