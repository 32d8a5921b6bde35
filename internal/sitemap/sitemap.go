// Package sitemap fetches XML sitemaps for one domain, resolving sitemap
// indexes breadth-first and yielding same-domain URLs with metadata.
package sitemap

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/user/siteaudit/internal/domain"
	"github.com/user/siteaudit/internal/urlutil"
)

const (
	fetchTimeout = 30 * time.Second
	maxBodyBytes = 50 << 20
)

type urlEntry struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

type urlSet struct {
	XMLName xml.Name   `xml:"urlset"`
	URLs    []urlEntry `xml:"url"`
}

type sitemapIndex struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// Reader resolves sitemaps for a single domain.
type Reader struct {
	client    *http.Client
	userAgent string
	domain    string
	maxURLs   int
	logger    *zap.Logger
}

// NewReader builds a reader bounded by maxURLs total yielded entries.
func NewReader(client *http.Client, domain, userAgent string, maxURLs int, logger *zap.Logger) *Reader {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	if maxURLs <= 0 {
		maxURLs = 10000
	}
	return &Reader{
		client:    client,
		userAgent: userAgent,
		domain:    domain,
		maxURLs:   maxURLs,
		logger:    logger,
	}
}

// Read fetches the candidate sitemap URLs breadth-first. With no
// candidates it probes the two conventional locations. Indexes are
// expanded in place; a processed set guarantees termination on cyclic
// references.
func (r *Reader) Read(ctx context.Context, candidates []string) []domain.SitemapURL {
	if len(candidates) == 0 {
		candidates = []string{
			"https://" + r.domain + "/sitemap.xml",
			"https://" + r.domain + "/sitemap_index.xml",
		}
	}

	queue := append([]string(nil), candidates...)
	processed := make(map[string]struct{})
	var out []domain.SitemapURL

	for len(queue) > 0 && len(out) < r.maxURLs {
		if ctx.Err() != nil {
			break
		}
		smURL := queue[0]
		queue = queue[1:]

		if _, seen := processed[smURL]; seen {
			continue
		}
		processed[smURL] = struct{}{}

		body, err := r.fetch(ctx, smURL)
		if err != nil {
			r.logger.Debug("sitemap fetch failed", zap.String("url", smURL), zap.Error(err))
			continue
		}

		if strings.Contains(string(body), "<sitemapindex") {
			var idx sitemapIndex
			if err := decodeXML(body, &idx); err != nil {
				r.logger.Debug("sitemap index parse failed", zap.String("url", smURL), zap.Error(err))
				continue
			}
			for _, child := range idx.Sitemaps {
				loc := strings.TrimSpace(child.Loc)
				if loc != "" {
					queue = append(queue, loc)
				}
			}
			continue
		}

		var set urlSet
		if err := decodeXML(body, &set); err != nil {
			r.logger.Debug("sitemap parse failed", zap.String("url", smURL), zap.Error(err))
			continue
		}
		for _, entry := range set.URLs {
			if len(out) >= r.maxURLs {
				break
			}
			loc := strings.TrimSpace(entry.Loc)
			if loc == "" || !r.sameDomain(loc) {
				continue
			}
			out = append(out, domain.SitemapURL{
				Loc:        loc,
				LastMod:    strings.TrimSpace(entry.LastMod),
				ChangeFreq: strings.TrimSpace(entry.ChangeFreq),
				Priority:   strings.TrimSpace(entry.Priority),
			})
		}
	}

	return out
}

func (r *Reader) fetch(ctx context.Context, smURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, smURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &httpStatusError{status: resp.StatusCode}
	}

	var reader io.Reader = io.LimitReader(resp.Body, maxBodyBytes)
	if strings.HasSuffix(strings.ToLower(strings.SplitN(smURL, "?", 2)[0]), ".gz") {
		gz, err := gzip.NewReader(reader)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	}
	return io.ReadAll(reader)
}

// decodeXML tolerates the non-UTF-8 encodings sitemap generators still
// emit, honoring the XML declaration's charset label.
func decodeXML(body []byte, v any) error {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = charset.NewReaderLabel
	return dec.Decode(v)
}

func (r *Reader) sameDomain(loc string) bool {
	u, err := url.Parse(loc)
	if err != nil {
		return false
	}
	return urlutil.SameDomain(u.Hostname(), r.domain, true)
}

type httpStatusError struct{ status int }

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("sitemap returned status %d", e.status)
}
