// Package robots fetches and evaluates a site's robots.txt for one crawl
// job. A missing or erroring robots.txt yields a fully permissive policy.
package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/temoto/robotstxt"
)

// AIAccess is the tri-state access classification for a named AI bot.
type AIAccess string

const (
	AIAllowed     AIAccess = "allowed"
	AIDisallowed  AIAccess = "disallowed"
	AIUnmentioned AIAccess = "unmentioned"
)

// AIBots is the fixed list of AI user agents classified by the policy.
var AIBots = []string{
	"GPTBot",
	"ChatGPT-User",
	"Google-Extended",
	"anthropic-ai",
	"Claude-Web",
	"PerplexityBot",
	"Amazonbot",
	"OAI-SearchBot",
	"cohere-ai",
	"FacebookBot",
}

// Policy answers allow/deny questions for one domain's robots.txt.
type Policy struct {
	userAgent  string
	data       *robotstxt.RobotsData
	sitemaps   []string
	crawlDelay time.Duration
	aiAccess   map[string]AIAccess
	found      bool
}

// Fetch retrieves https://{domain}/robots.txt with the given user agent.
// Any non-2xx response or transport error produces a permissive policy.
func Fetch(ctx context.Context, client *http.Client, domain, userAgent string) *Policy {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	p := &Policy{
		userAgent: userAgent,
		aiAccess:  unmentionedAll(),
	}

	robotsURL := "https://" + domain + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return p
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return p
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return p
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return p
	}
	return Parse(body, userAgent)
}

// Parse builds a policy from raw robots.txt content.
func Parse(body []byte, userAgent string) *Policy {
	p := &Policy{
		userAgent: userAgent,
		aiAccess:  unmentionedAll(),
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		// Fail-open on parse errors, same as on fetch errors.
		return p
	}
	p.data = data
	p.found = true
	p.sitemaps = append(p.sitemaps, data.Sitemaps...)

	if group := data.FindGroup(userAgent); group != nil {
		p.crawlDelay = group.CrawlDelay
	}

	p.scanAIBots(string(body))
	return p
}

// Found reports whether a robots.txt was successfully fetched and parsed.
func (p *Policy) Found() bool { return p.found }

// IsAllowed reports whether the configured user agent may fetch the URL.
// Policies without robots data allow everything.
func (p *Policy) IsAllowed(rawURL string) bool {
	if p == nil || p.data == nil {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	group := p.data.FindGroup(p.userAgent)
	if group == nil {
		return true
	}
	return group.Test(path)
}

// CrawlDelay returns the robots-declared delay for the configured user
// agent, zero when unset.
func (p *Policy) CrawlDelay() time.Duration { return p.crawlDelay }

// Sitemaps lists Sitemap: directives in file order.
func (p *Policy) Sitemaps() []string { return p.sitemaps }

// AIBotAccess returns the tri-state access per known AI user agent.
func (p *Policy) AIBotAccess() map[string]AIAccess {
	out := make(map[string]AIAccess, len(p.aiAccess))
	for k, v := range p.aiAccess {
		out[k] = v
	}
	return out
}

func unmentionedAll() map[string]AIAccess {
	m := make(map[string]AIAccess, len(AIBots))
	for _, bot := range AIBots {
		m[bot] = AIUnmentioned
	}
	return m
}

// scanAIBots classifies each known AI agent by looking for its User-agent
// line followed by a root-wide Allow or Disallow before the block ends.
func (p *Policy) scanAIBots(body string) {
	lines := strings.Split(body, "\n")
	for _, bot := range AIBots {
		p.aiAccess[bot] = scanAgentBlock(lines, bot)
	}
}

func scanAgentBlock(lines []string, agent string) AIAccess {
	for i, line := range lines {
		name, ok := directiveValue(line, "user-agent")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), agent) {
			continue
		}
		// Scan the block until a blank line, comment, or next User-agent.
		for j := i + 1; j < len(lines); j++ {
			trimmed := strings.TrimSpace(lines[j])
			if trimmed == "" || strings.HasPrefix(trimmed, "#") {
				break
			}
			if _, isUA := directiveValue(trimmed, "user-agent"); isUA {
				break
			}
			if v, ok := directiveValue(trimmed, "disallow"); ok && strings.TrimSpace(v) == "/" {
				return AIDisallowed
			}
			if v, ok := directiveValue(trimmed, "allow"); ok && strings.TrimSpace(v) == "/" {
				return AIAllowed
			}
		}
	}
	return AIUnmentioned
}

func directiveValue(line, directive string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) <= len(directive)+1 {
		return "", false
	}
	if !strings.EqualFold(trimmed[:len(directive)], directive) {
		return "", false
	}
	rest := trimmed[len(directive):]
	if !strings.HasPrefix(rest, ":") {
		return "", false
	}
	return strings.TrimSpace(rest[1:]), true
}

// String summarizes the policy for logs.
func (p *Policy) String() string {
	if p == nil || p.data == nil {
		return "robots: permissive (not found)"
	}
	return fmt.Sprintf("robots: found, %d sitemaps, crawl-delay %s", len(p.sitemaps), p.crawlDelay)
}
