// Package extractor turns rendered HTML into a uniform PageRecord. All
// extraction is pure: the package never touches the network.
package extractor

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/siteaudit/internal/domain"
	"github.com/user/siteaudit/internal/urlutil"
)

// Input carries the rendered HTML and transport metadata for one page.
type Input struct {
	HTML             string
	FinalURL         string
	StatusCode       int
	ContentType      string
	ResponseTimeMs   int
	RedirectChain    []domain.RedirectHop
	PageDepth        int
	DiscoveredVia    domain.DiscoverySource
	ProjectDomain    string
	FollowSubdomains bool
}

// Extract parses the HTML and produces a PageRecord. Parse-level problems
// in sub-extractions are recorded as warnings on the record, never fatal.
func Extract(in Input) (*domain.PageRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(in.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	base, err := url.Parse(in.FinalURL)
	if err != nil {
		return nil, fmt.Errorf("parse final url: %w", err)
	}

	rec := &domain.PageRecord{
		URL:            in.FinalURL,
		URLHash:        urlutil.Hash(in.FinalURL),
		Path:           base.Path,
		QueryString:    base.RawQuery,
		StatusCode:     in.StatusCode,
		RedirectChain:  in.RedirectChain,
		ContentType:    in.ContentType,
		ResponseTimeMs: in.ResponseTimeMs,
		PageSizeBytes:  len(in.HTML),
		PageDepth:      in.PageDepth,
		DiscoveredVia:  in.DiscoveredVia,
		IsHTTPS:        base.Scheme == "https",
	}
	if len(in.RedirectChain) > 0 {
		rec.RedirectURL = in.FinalURL
	}

	extractHead(doc, base, rec)
	classifyIndexability(rec)
	extractHeadings(doc, rec)
	extractLinks(doc, base, in.ProjectDomain, in.FollowSubdomains, rec)
	extractImages(doc, base, rec)
	extractContent(doc, in.HTML, rec)
	rec.BodyMarkdown = extractMarkdown(doc)
	extractStructuredData(doc, rec)
	extractArticle(rec)
	extractProduct(rec)
	extractHreflang(doc, in.FinalURL, rec)
	rec.Mobile = analyzeMobile(doc, rec)
	if rec.Mobile != nil {
		rec.ViewportConfigured = rec.Mobile.HasViewport
	}
	detectMixedContent(doc, rec)

	return rec, nil
}

func extractHead(doc *goquery.Document, base *url.URL, rec *domain.PageRecord) {
	rec.Title = strings.TrimSpace(doc.Find("title").First().Text())

	rec.MetaDescription = metaContent(doc, "description")

	rec.RobotsMeta = metaContent(doc, "robots")
	if rec.RobotsMeta == "" {
		rec.RobotsMeta = metaContent(doc, "googlebot")
	}

	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		rec.CanonicalURL = strings.TrimSpace(href)
	}
	if rec.CanonicalURL != "" {
		self := canonicalMatches(rec.CanonicalURL, base)
		rec.IsSelfCanonical = &self
	}

	if lang, ok := doc.Find("html").First().Attr("lang"); ok {
		rec.HTMLLang = strings.TrimSpace(lang)
	}
	if viewport := metaContent(doc, "viewport"); viewport != "" {
		rec.ViewportContent = viewport
	}
	rec.ThemeColor = metaContent(doc, "theme-color")
	rec.HasAppleTouchIcon = doc.Find(`link[rel="apple-touch-icon"], link[rel="apple-touch-icon-precomposed"]`).Length() > 0
	rec.HasManifest = doc.Find(`link[rel="manifest"]`).Length() > 0
	rec.HasRelPrev = doc.Find(`link[rel="prev"]`).Length() > 0
	rec.HasRelNext = doc.Find(`link[rel="next"]`).Length() > 0

	rec.OGTitle = propertyContent(doc, "og:title")
	rec.OGDescription = propertyContent(doc, "og:description")
	rec.OGImage = propertyContent(doc, "og:image")
	rec.TwitterCard = metaContent(doc, "twitter:card")
}

func metaContent(doc *goquery.Document, name string) string {
	content, _ := doc.Find(`meta[name="` + name + `"]`).First().Attr("content")
	return strings.TrimSpace(content)
}

func propertyContent(doc *goquery.Document, property string) string {
	content, _ := doc.Find(`meta[property="` + property + `"]`).First().Attr("content")
	return strings.TrimSpace(content)
}

func classifyIndexability(rec *domain.PageRecord) {
	switch {
	case rec.StatusCode >= 400:
		rec.IsIndexable = false
		rec.IndexabilityReason = fmt.Sprintf("HTTP %d error", rec.StatusCode)
	case rec.StatusCode >= 300:
		rec.IsIndexable = false
		rec.IndexabilityReason = "Redirect"
	case strings.Contains(strings.ToLower(rec.RobotsMeta), "noindex"):
		rec.IsIndexable = false
		rec.IndexabilityReason = "noindex directive"
	default:
		rec.IsIndexable = true
	}
}

// canonicalMatches resolves the canonical href against the page URL and
// compares the two with fragments stripped and trailing slashes dropped.
func canonicalMatches(canonical string, base *url.URL) bool {
	resolved, err := url.Parse(canonical)
	if err != nil {
		return false
	}
	abs := base.ResolveReference(resolved)
	return canonicalForm(abs) == canonicalForm(base)
}

func canonicalForm(u *url.URL) string {
	clone := *u
	clone.Fragment = ""
	if clone.Path != "/" {
		clone.Path = strings.TrimSuffix(clone.Path, "/")
	}
	return clone.String()
}

func extractHeadings(doc *goquery.Document, rec *domain.PageRecord) {
	doc.Find("h1").Each(func(_ int, s *goquery.Selection) {
		rec.H1Tags = append(rec.H1Tags, strings.TrimSpace(s.Text()))
	})
	doc.Find("h2").Each(func(_ int, s *goquery.Selection) {
		rec.H2Tags = append(rec.H2Tags, strings.TrimSpace(s.Text()))
	})
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		rec.HeadingOrder = append(rec.HeadingOrder, goquery.NodeName(s))
	})
}

func detectMixedContent(doc *goquery.Document, rec *domain.PageRecord) {
	if !rec.IsHTTPS {
		return
	}
	doc.Find("img[src], script[src], iframe[src], link[href], audio[src], video[src], source[src]").
		EachWithBreak(func(_ int, s *goquery.Selection) bool {
			ref, ok := s.Attr("src")
			if !ok {
				ref, _ = s.Attr("href")
			}
			if strings.HasPrefix(strings.TrimSpace(ref), "http://") {
				rec.HasMixedContent = true
				return false
			}
			return true
		})
}
