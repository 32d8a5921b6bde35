package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/siteaudit/internal/domain"
	"github.com/user/siteaudit/internal/urlutil"
)

var validLangCodes = map[string]struct{}{
	"aa": {}, "ab": {}, "af": {}, "am": {}, "ar": {}, "az": {}, "be": {},
	"bg": {}, "bn": {}, "bs": {}, "ca": {}, "cs": {}, "cy": {}, "da": {},
	"de": {}, "el": {}, "en": {}, "eo": {}, "es": {}, "et": {}, "eu": {},
	"fa": {}, "fi": {}, "fr": {}, "ga": {}, "gl": {}, "gu": {}, "he": {},
	"hi": {}, "hr": {}, "hu": {}, "hy": {}, "id": {}, "is": {}, "it": {},
	"ja": {}, "ka": {}, "kk": {}, "km": {}, "kn": {}, "ko": {}, "ku": {},
	"ky": {}, "lo": {}, "lt": {}, "lv": {}, "mk": {}, "ml": {}, "mn": {},
	"mr": {}, "ms": {}, "mt": {}, "my": {}, "ne": {}, "nl": {}, "no": {},
	"pa": {}, "pl": {}, "ps": {}, "pt": {}, "ro": {}, "ru": {}, "si": {},
	"sk": {}, "sl": {}, "sq": {}, "sr": {}, "sv": {}, "sw": {}, "ta": {},
	"te": {}, "th": {}, "tl": {}, "tr": {}, "uk": {}, "ur": {}, "uz": {},
	"vi": {}, "zh": {}, "zu": {},
}

var validRegionCodes = map[string]struct{}{
	"AE": {}, "AR": {}, "AT": {}, "AU": {}, "BE": {}, "BG": {}, "BR": {},
	"CA": {}, "CH": {}, "CL": {}, "CN": {}, "CO": {}, "CZ": {}, "DE": {},
	"DK": {}, "EE": {}, "EG": {}, "ES": {}, "FI": {}, "FR": {}, "GB": {},
	"GR": {}, "HK": {}, "HR": {}, "HU": {}, "ID": {}, "IE": {}, "IL": {},
	"IN": {}, "IT": {}, "JP": {}, "KR": {}, "LT": {}, "LV": {}, "MX": {},
	"MY": {}, "NL": {}, "NO": {}, "NZ": {}, "PE": {}, "PH": {}, "PL": {},
	"PT": {}, "RO": {}, "RU": {}, "SA": {}, "SE": {}, "SG": {}, "SK": {},
	"TH": {}, "TR": {}, "TW": {}, "UA": {}, "US": {}, "VN": {}, "ZA": {},
}

// extractHreflang collects alternate hreflang links and validates language
// and region codes. x-default entries are listed but never code-checked.
func extractHreflang(doc *goquery.Document, pageURL string, rec *domain.PageRecord) {
	seenLangs := make(map[string]int)
	selfReference := false

	normalizedPage, err := urlutil.Normalize(pageURL)
	if err != nil {
		normalizedPage = pageURL
	}

	doc.Find(`link[rel="alternate"][hreflang]`).Each(func(_ int, s *goquery.Selection) {
		lang, _ := s.Attr("hreflang")
		href, _ := s.Attr("href")
		lang = strings.TrimSpace(lang)
		href = strings.TrimSpace(href)
		if lang == "" || href == "" {
			return
		}

		rec.Hreflangs = append(rec.Hreflangs, domain.HreflangTag{Lang: lang, URL: href})
		seenLangs[strings.ToLower(lang)]++

		if norm, err := urlutil.Normalize(href); err == nil && norm == normalizedPage {
			selfReference = true
		}

		if strings.EqualFold(lang, "x-default") {
			return
		}

		parts := strings.SplitN(lang, "-", 2)
		langCode := strings.ToLower(parts[0])
		if _, ok := validLangCodes[langCode]; !ok {
			rec.HreflangIssues = append(rec.HreflangIssues, "invalid_lang_code:"+lang)
		}
		if len(parts) == 2 {
			region := strings.ToUpper(parts[1])
			if _, ok := validRegionCodes[region]; !ok {
				rec.HreflangIssues = append(rec.HreflangIssues, "invalid_region_code:"+lang)
			}
		}
	})

	for lang, count := range seenLangs {
		if count > 1 {
			rec.HreflangIssues = append(rec.HreflangIssues, "duplicate_hreflang:"+lang)
		}
	}
	if len(rec.Hreflangs) > 0 && !selfReference {
		rec.HreflangIssues = append(rec.HreflangIssues, "missing_self_reference")
	}
}
