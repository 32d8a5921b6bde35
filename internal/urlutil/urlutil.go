// Package urlutil canonicalizes URLs and decides whether a URL is worth
// crawling for an SEO audit.
package urlutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"
	"strings"
)

// ErrInvalidURL marks URLs that cannot be normalized.
var ErrInvalidURL = errors.New("invalid URL")

// Normalize canonicalizes a URL: fragment dropped, query keys sorted
// ascending, host lower-cased, trailing slash stripped except on the root
// path. Returns ErrInvalidURL for unparseable or non-HTTP URLs.
func Normalize(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", ErrInvalidURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrInvalidURL
	}
	if u.Host == "" {
		return "", ErrInvalidURL
	}

	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)

	if u.RawQuery != "" {
		q := u.Query()
		keys := make([]string, 0, len(q))
		for k := range q {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		for _, k := range keys {
			vals := q[k]
			sort.Strings(vals)
			for _, v := range vals {
				if b.Len() > 0 {
					b.WriteByte('&')
				}
				b.WriteString(url.QueryEscape(k))
				if v != "" {
					b.WriteByte('=')
					b.WriteString(url.QueryEscape(v))
				}
			}
		}
		u.RawQuery = b.String()
	}

	if u.Path == "" {
		u.Path = "/"
	} else if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String(), nil
}

// StripWWW removes a leading "www." from a host for domain comparison.
func StripWWW(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

// SameDomain reports whether host belongs to domain. With followSubdomains
// any subdomain of domain also matches.
func SameDomain(host, domain string, followSubdomains bool) bool {
	h := StripWWW(host)
	d := StripWWW(domain)
	if h == d {
		return true
	}
	return followSubdomains && strings.HasSuffix(h, "."+d)
}

// Hash returns the SHA-256 hex digest of s. Pages are keyed by
// (crawl_id, Hash(url)) so re-writes are idempotent.
func Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// File extensions that never lead to auditable HTML.
var skippedExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".svg": {},
	".ico": {}, ".bmp": {}, ".tiff": {}, ".avif": {},
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {},
	".zip": {}, ".rar": {}, ".7z": {}, ".tar": {}, ".gz": {}, ".bz2": {},
	".mp3": {}, ".mp4": {}, ".avi": {}, ".mov": {}, ".wmv": {}, ".flv": {}, ".webm": {},
	".ogg": {}, ".wav": {},
	".css": {}, ".js": {}, ".mjs": {}, ".map": {}, ".json": {}, ".xml": {}, ".rss": {},
	".atom": {}, ".txt": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".eot": {}, ".otf": {},
	".exe": {}, ".dmg": {}, ".apk": {}, ".iso": {},
}

// Path segments that mark non-content areas. Compared exact and
// case-insensitive against each segment.
var skippedSegments = map[string]struct{}{
	"admin": {}, "wp-admin": {}, "login": {}, "logout": {}, "register": {},
	"signin": {}, "signup": {}, "account": {}, "cart": {}, "checkout": {},
	"search": {}, "feed": {}, "rss": {}, "api": {}, "cgi-bin": {}, "wp-json": {},
	"tag": {}, "tags": {}, "author": {}, "print": {}, "preview": {},
	"xmlrpc.php": {}, "wp-login.php": {},
}

// Path substrings that mark asset or plumbing URLs.
var skippedPathPatterns = []string{
	"/wp-content/uploads",
	"/wp-content/plugins",
	"/wp-content/themes",
	"/wp-includes/",
	"/static/",
	"/assets/",
	"/.well-known/",
}

// Query keys that produce duplicate or session-bound content.
var skippedQueryKeys = map[string]struct{}{
	"fbclid": {}, "gclid": {}, "msclkid": {}, "mc_cid": {}, "mc_eid": {},
	"sessionid": {}, "session_id": {}, "sid": {}, "phpsessid": {}, "jsessionid": {},
	"page": {}, "p": {}, "paged": {}, "offset": {}, "start": {}, "limit": {},
	"sort": {}, "sortby": {}, "order": {}, "orderby": {}, "dir": {},
	"filter": {}, "view": {}, "layout": {}, "display": {},
	"replytocom": {}, "share": {}, "print": {},
	"t": {}, "_": {}, "v": {}, "ver": {}, "cb": {},
	"q": {}, "s": {}, "query": {}, "keyword": {},
}

// IsSeoRelevant reports whether a URL is worth crawling, with a short
// reason when it is not. Fragments are ignored; all path comparisons are
// lower-case.
func IsSeoRelevant(raw string) (bool, string) {
	u, err := url.Parse(raw)
	if err != nil {
		return false, "unparseable URL"
	}

	path := strings.ToLower(u.Path)

	if idx := strings.LastIndex(path, "."); idx >= 0 && idx > strings.LastIndex(path, "/") {
		if _, ok := skippedExtensions[path[idx:]]; ok {
			return false, "non-HTML file extension " + path[idx:]
		}
	}

	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		if _, ok := skippedSegments[seg]; ok {
			return false, "excluded path segment /" + seg
		}
	}

	for _, pat := range skippedPathPatterns {
		if strings.Contains(path, pat) {
			return false, "excluded path pattern " + pat
		}
	}

	for key := range u.Query() {
		k := strings.ToLower(key)
		if strings.HasPrefix(k, "utm_") {
			return false, "tracking parameter " + key
		}
		if _, ok := skippedQueryKeys[k]; ok {
			return false, "excluded query parameter " + key
		}
	}

	return true, ""
}
