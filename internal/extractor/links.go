package extractor

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/siteaudit/internal/domain"
	"github.com/user/siteaudit/internal/urlutil"
)

// extractLinks resolves every <a href> against the base URL and splits the
// result into internal and external lists, de-duplicated in first-seen
// order. Subdomains of the project domain count as internal only when the
// job follows subdomains; non-HTTP schemes are discarded.
func extractLinks(doc *goquery.Document, base *url.URL, projectDomain string, followSubdomains bool, rec *domain.PageRecord) {
	seenInternal := make(map[string]struct{})
	seenExternal := make(map[string]struct{})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		abs.Fragment = ""
		link := abs.String()

		if urlutil.SameDomain(abs.Hostname(), projectDomain, followSubdomains) {
			if _, dup := seenInternal[link]; !dup {
				seenInternal[link] = struct{}{}
				rec.InternalLinks = append(rec.InternalLinks, link)
			}
		} else {
			if _, dup := seenExternal[link]; !dup {
				seenExternal[link] = struct{}{}
				rec.ExternalLinks = append(rec.ExternalLinks, link)
			}
		}
	})
}
