package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/siteaudit/internal/domain"
)

var (
	phoneRe         = regexp.MustCompile(`(\+?\d{1,3}[\s.-]?)?\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}`)
	fontSizeRe      = regexp.MustCompile(`font-size\s*:\s*([\d.]+)\s*(px|pt|em|rem)`)
	positionFixedRe = regexp.MustCompile(`position\s*:\s*(fixed|sticky)`)
)

// Selectors whose first image is the likely LCP candidate.
const lcpContainerSelector = "header img, .hero img, .banner img, .jumbotron img, .masthead img, main > img"

// Class substrings treated as responsive table wrappers.
var responsiveWrapperHints = []string{"overflow", "responsive", "scroll", "data-responsive"}

// Common fixed-position selectors beyond inline styles.
const fixedSelectors = ".fixed, .sticky, .fixed-top, .fixed-bottom, .navbar-fixed-top, .sticky-top, [data-fixed]"

// CSS framework names looked for in stylesheet hrefs.
var cssFrameworks = []string{"bootstrap", "tailwind", "foundation", "bulma", "materialize", "uikit"}

// Utility-class tokens implying responsive breakpoints.
var responsiveClassTokens = []string{"col-sm", "col-md", "col-lg", "md:", "lg:", "sm:", "d-sm-", "d-md-", "@screen"}

// analyzeMobile derives the mobile-usability signals from the document.
func analyzeMobile(doc *goquery.Document, rec *domain.PageRecord) *domain.MobileAnalysis {
	m := &domain.MobileAnalysis{
		HasAppleTouchIcon: rec.HasAppleTouchIcon,
		HasManifest:       rec.HasManifest,
		HasThemeColor:     rec.ThemeColor != "",
	}

	viewport := parseViewport(rec.ViewportContent)
	m.HasViewport = rec.ViewportContent != ""

	if scalable, ok := viewport["user-scalable"]; ok && (scalable == "no" || scalable == "0") {
		m.IsZoomDisabled = true
	}
	if maxScale, ok := viewport["maximum-scale"]; ok {
		if f, err := strconv.ParseFloat(maxScale, 64); err == nil && f <= 1 {
			m.IsZoomDisabled = true
		}
	}
	if initial, ok := viewport["initial-scale"]; ok {
		if f, err := strconv.ParseFloat(initial, 64); err == nil && f != 1 {
			m.InitialScaleNotOne = true
		}
	}

	m.NonResponsiveImages = countNonResponsiveImages(doc)
	m.TablesNotResponsive = countNonResponsiveTables(doc)
	m.FixedElements = countFixedElements(doc)
	m.SmallTextElements = countSmallText(doc)
	m.UsesMediaQueries = detectMediaQueries(doc)
	m.LCPImageLazyLoaded = lcpImageLazy(doc)

	m.HasTelLinks = doc.Find(`a[href^="tel:"]`).Length() > 0
	body := doc.Find("body").Clone()
	body.Find(nonContentSelector).Remove()
	m.PhoneNumbersInBody = len(phoneRe.FindAllString(body.Text(), -1))

	return m
}

// parseViewport splits a viewport content attribute into key/value pairs.
func parseViewport(content string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(content, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(kv[0]))] = strings.ToLower(strings.TrimSpace(kv[1]))
	}
	return out
}

// countNonResponsiveImages counts images larger than 50px on either side
// that carry no srcset and sit outside a <picture> element.
func countNonResponsiveImages(doc *goquery.Document) int {
	count := 0
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		w := attrInt(s, "width")
		h := attrInt(s, "height")
		if w <= 50 && h <= 50 {
			return
		}
		if _, hasSrcset := s.Attr("srcset"); hasSrcset {
			return
		}
		if s.ParentsFiltered("picture").Length() > 0 {
			return
		}
		count++
	})
	return count
}

func countNonResponsiveTables(doc *goquery.Document) int {
	count := 0
	doc.Find("table").Each(func(_ int, s *goquery.Selection) {
		wrapped := false
		s.Parents().EachWithBreak(func(_ int, p *goquery.Selection) bool {
			class, _ := p.Attr("class")
			lower := strings.ToLower(class)
			for _, hint := range responsiveWrapperHints {
				if strings.Contains(lower, hint) {
					wrapped = true
					return false
				}
			}
			return true
		})
		if !wrapped {
			count++
		}
	})
	return count
}

func countFixedElements(doc *goquery.Document) int {
	count := 0
	doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		style, _ := s.Attr("style")
		if positionFixedRe.MatchString(strings.ToLower(style)) {
			count++
		}
	})
	count += doc.Find(fixedSelectors).Length()
	return count
}

// countSmallText counts elements whose inline font-size resolves below
// 12px. Points convert at 1pt = 1.333px; em/rem assume a 16px base.
func countSmallText(doc *goquery.Document) int {
	count := 0
	doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		style, _ := s.Attr("style")
		match := fontSizeRe.FindStringSubmatch(strings.ToLower(style))
		if match == nil {
			return
		}
		size, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			return
		}
		switch match[2] {
		case "pt":
			size *= 1.333
		case "em", "rem":
			size *= 16
		}
		if size < 12 {
			count++
		}
	})
	return count
}

func detectMediaQueries(doc *goquery.Document) bool {
	found := false
	doc.Find("style").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(s.Text(), "@media") {
			found = true
			return false
		}
		return true
	})
	if found {
		return true
	}

	doc.Find(`link[rel="stylesheet"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		lower := strings.ToLower(href)
		for _, fw := range cssFrameworks {
			if strings.Contains(lower, fw) {
				found = true
				return false
			}
		}
		return true
	})
	if found {
		return true
	}

	doc.Find("[class]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		for _, token := range responsiveClassTokens {
			if strings.Contains(class, token) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// lcpImageLazy reports whether the likely LCP image is lazy-loaded.
func lcpImageLazy(doc *goquery.Document) bool {
	first := doc.Find(lcpContainerSelector).First()
	if first.Length() == 0 {
		return false
	}
	loading, _ := first.Attr("loading")
	return strings.EqualFold(strings.TrimSpace(loading), "lazy")
}

func attrInt(s *goquery.Selection, name string) int {
	v, ok := s.Attr(name)
	if !ok {
		return 0
	}
	n, _ := strconv.Atoi(strings.TrimSpace(v))
	return n
}
