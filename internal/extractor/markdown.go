package extractor

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
)

// Substrings of id/class attributes that mark cookie and consent chrome.
var consentAttrHints = []string{
	"cookie-banner", "cookie-consent", "cookieconsent", "cookie-notice",
	"consent-banner", "consent-manager", "gdpr", "privacy-banner",
	"onetrust", "cookiebot", "didomi", "usercentrics", "osano", "truste",
	"qc-cmp", "cmp-container",
}

// Vendor selectors removed wholesale before conversion.
const consentVendorSelector = "#onetrust-consent-sdk, #CybotCookiebotDialog, " +
	"#didomi-host, #usercentrics-root, #qc-cmp2-container, " +
	".cc-window, .osano-cm-window, .truste_box_overlay, .cky-consent-container"

// boilerplateRes matches lines that survive container removal but are
// still consent or privacy chrome.
var boilerplateRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^we value your privacy`),
	regexp.MustCompile(`(?i)we use cookies`),
	regexp.MustCompile(`(?i)this (web)?site uses cookies`),
	regexp.MustCompile(`(?i)^(accept|reject|deny)( all)?( cookies)?$`),
	regexp.MustCompile(`(?i)^manage (preferences|consent|cookies)$`),
	regexp.MustCompile(`(?i)^cookie (settings|preferences|policy)$`),
	regexp.MustCompile(`(?i)^(necessary|functional|performance|analytics|advertisement|uncategorized) cookies?$`),
	regexp.MustCompile(`(?i)always (active|enabled)$`),
	regexp.MustCompile(`(?i)^(save & accept|save my preferences)$`),
	regexp.MustCompile(`(?i)powered by (onetrust|cookieyes|cookiebot|termly)`),
	regexp.MustCompile(`(?i)gdpr cookie consent`),
	regexp.MustCompile(`(?i)^do not sell my personal information$`),
}

var blankRunRe = regexp.MustCompile(`\n{3,}`)

// extractMarkdown renders the content portion of the body as Markdown:
// non-content tags and consent containers removed, boilerplate lines
// filtered, blank runs collapsed.
func extractMarkdown(doc *goquery.Document) string {
	body := doc.Find("body").Clone()
	if body.Length() == 0 {
		return ""
	}
	body.Find(nonContentSelector).Remove()
	body.Find(consentVendorSelector).Remove()
	removeConsentContainers(body)

	if len(body.Nodes) == 0 {
		return ""
	}
	md, err := htmltomarkdown.ConvertNode(body.Nodes[0])
	if err != nil {
		return ""
	}

	lines := strings.Split(string(md), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if isBoilerplateLine(line) {
			continue
		}
		kept = append(kept, line)
	}

	out := strings.TrimSpace(blankRunRe.ReplaceAllString(strings.Join(kept, "\n"), "\n\n"))
	return stripLeadingPrivacyBlock(out)
}

func removeConsentContainers(body *goquery.Selection) {
	body.Find("div, section, aside, dialog").Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("id")
		class, _ := s.Attr("class")
		attrs := strings.ToLower(id + " " + class)
		for _, hint := range consentAttrHints {
			if strings.Contains(attrs, hint) {
				s.Remove()
				return
			}
		}
	})
}

func isBoilerplateLine(line string) bool {
	trimmed := strings.TrimSpace(strings.TrimLeft(line, "#->*1234567890. "))
	if trimmed == "" {
		return false
	}
	for _, re := range boilerplateRes {
		if re.MatchString(trimmed) {
			return true
		}
	}
	return false
}

// stripLeadingPrivacyBlock drops a leading privacy banner that slipped
// through container removal: everything up to the first blank line when
// the text opens with the standard banner phrase.
func stripLeadingPrivacyBlock(md string) string {
	if !strings.HasPrefix(strings.ToLower(md), "we value your privacy") {
		return md
	}
	if idx := strings.Index(md, "\n\n"); idx >= 0 {
		return strings.TrimSpace(md[idx+2:])
	}
	return ""
}
