package sitemap

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReadPlainURLSet(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sitemap.xml", r.URL.Path)
		w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>` + server.URL + `/</loc><lastmod>2024-05-01</lastmod><priority>1.0</priority></url>
  <url><loc>` + server.URL + `/about</loc><changefreq>monthly</changefreq></url>
  <url><loc>https://other.example/external</loc></url>
</urlset>`))
	}))
	defer server.Close()

	reader := NewReader(server.Client(), "127.0.0.1", "AuditBot/1.0", 0, zap.NewNop())
	got := reader.Read(context.Background(), []string{server.URL + "/sitemap.xml"})

	require.Len(t, got, 2)
	assert.Equal(t, server.URL+"/", got[0].Loc)
	assert.Equal(t, "2024-05-01", got[0].LastMod)
	assert.Equal(t, "1.0", got[0].Priority)
	assert.Equal(t, server.URL+"/about", got[1].Loc)
	assert.Equal(t, "monthly", got[1].ChangeFreq)
}

func TestReadExpandsIndex(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml":
			w.Write([]byte(`<?xml version="1.0"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>` + server.URL + `/sitemap-posts.xml</loc></sitemap>
  <sitemap><loc>` + server.URL + `/sitemap-pages.xml</loc></sitemap>
  <sitemap><loc>` + server.URL + `/sitemap.xml</loc></sitemap>
</sitemapindex>`))
		case "/sitemap-posts.xml":
			w.Write([]byte(`<urlset><url><loc>` + server.URL + `/post-1</loc></url></urlset>`))
		case "/sitemap-pages.xml":
			w.Write([]byte(`<urlset><url><loc>` + server.URL + `/page-1</loc></url></urlset>`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	reader := NewReader(server.Client(), "127.0.0.1", "AuditBot/1.0", 0, zap.NewNop())
	got := reader.Read(context.Background(), []string{server.URL + "/sitemap.xml"})

	// The self-referencing index entry must not loop.
	require.Len(t, got, 2)
	assert.Equal(t, server.URL+"/post-1", got[0].Loc)
	assert.Equal(t, server.URL+"/page-1", got[1].Loc)
}

func TestReadGzippedSitemap(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sitemap.xml.gz", r.URL.Path)
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		gz.Write([]byte(`<urlset><url><loc>` + server.URL + `/compressed</loc></url></urlset>`))
		gz.Close()
		w.Write(buf.Bytes())
	}))
	defer server.Close()

	reader := NewReader(server.Client(), "127.0.0.1", "AuditBot/1.0", 0, zap.NewNop())
	got := reader.Read(context.Background(), []string{server.URL + "/sitemap.xml.gz"})

	require.Len(t, got, 1)
	assert.Equal(t, server.URL+"/compressed", got[0].Loc)
}

func TestReadHonorsCap(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := `<urlset>`
		for _, p := range []string{"/a", "/b", "/c", "/d", "/e"} {
			body += `<url><loc>` + server.URL + p + `</loc></url>`
		}
		body += `</urlset>`
		w.Write([]byte(body))
	}))
	defer server.Close()

	reader := NewReader(server.Client(), "127.0.0.1", "AuditBot/1.0", 3, zap.NewNop())
	got := reader.Read(context.Background(), []string{server.URL + "/sitemap.xml"})
	assert.Len(t, got, 3)
}

func TestReadSurvivesFetchAndParseErrors(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/broken.xml":
			w.Write([]byte(`<urlset><url><loc>unterminated`))
		case "/missing.xml":
			w.WriteHeader(http.StatusNotFound)
		case "/good.xml":
			w.Write([]byte(`<urlset><url><loc>` + server.URL + `/ok</loc></url></urlset>`))
		}
	}))
	defer server.Close()

	reader := NewReader(server.Client(), "127.0.0.1", "AuditBot/1.0", 0, zap.NewNop())
	got := reader.Read(context.Background(), []string{
		server.URL + "/broken.xml",
		server.URL + "/missing.xml",
		server.URL + "/good.xml",
	})

	require.Len(t, got, 1)
	assert.Equal(t, server.URL+"/ok", got[0].Loc)
}
