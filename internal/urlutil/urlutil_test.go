package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare root", "https://Example.com", "https://example.com/"},
		{"fragment dropped", "https://example.com/a#section", "https://example.com/a"},
		{"trailing slash stripped", "https://example.com/about/", "https://example.com/about"},
		{"root slash kept", "https://example.com/", "https://example.com/"},
		{"query keys sorted", "https://example.com/p?b=2&a=1", "https://example.com/p?a=1&b=2"},
		{"host lowercased", "https://WWW.Example.COM/About", "https://www.example.com/About"},
		{"whitespace trimmed", "  https://example.com/x  ", "https://example.com/x"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeRejectsInvalid(t *testing.T) {
	for _, in := range []string{
		"mailto:x@example.com",
		"javascript:void(0)",
		"ftp://example.com/file",
		"/relative/path",
		"",
	} {
		_, err := Normalize(in)
		assert.ErrorIs(t, err, ErrInvalidURL, "input %q", in)
	}
}

// Normalizing twice must be a no-op.
func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"https://example.com/a/b/?z=1&a=2#frag",
		"https://Example.com",
		"http://www.example.com/page?utm_source=x",
		"https://example.com/search?q=hello+world",
	}
	for _, in := range inputs {
		first, err := Normalize(in)
		require.NoError(t, err)
		second, err := Normalize(first)
		require.NoError(t, err)
		assert.Equal(t, first, second, "input %q", in)
	}
}

func TestSameDomain(t *testing.T) {
	assert.True(t, SameDomain("example.com", "example.com", false))
	assert.True(t, SameDomain("www.example.com", "example.com", false))
	assert.True(t, SameDomain("example.com", "www.example.com", false))
	assert.False(t, SameDomain("blog.example.com", "example.com", false))
	assert.True(t, SameDomain("blog.example.com", "example.com", true))
	assert.False(t, SameDomain("example.com.evil.net", "example.com", true))
	assert.False(t, SameDomain("otherexample.com", "example.com", true))
}

func TestIsSeoRelevant(t *testing.T) {
	relevant := []string{
		"https://example.com/",
		"https://example.com/products/widget",
		"https://example.com/blog/2024/my-post",
		"https://example.com/page?id=42",
	}
	for _, in := range relevant {
		ok, reason := IsSeoRelevant(in)
		assert.True(t, ok, "%s rejected: %s", in, reason)
	}

	irrelevant := []string{
		"https://example.com/logo.png",
		"https://example.com/styles.css",
		"https://example.com/doc.pdf",
		"https://example.com/admin/settings",
		"https://example.com/wp-admin/edit",
		"https://example.com/cart",
		"https://example.com/tag/news",
		"https://example.com/wp-content/uploads/x",
		"https://example.com/static/bundle",
		"https://example.com/p?utm_source=mail",
		"https://example.com/p?utm_campaign=x",
		"https://example.com/p?sessionid=abc",
		"https://example.com/list?sort=price",
		"https://example.com/list?page=3",
	}
	for _, in := range irrelevant {
		ok, reason := IsSeoRelevant(in)
		assert.False(t, ok, "%s should be rejected", in)
		assert.NotEmpty(t, reason, "%s needs a reason", in)
	}
}

// Every entry of the filter tables must reject on its own.
func TestIsSeoRelevantTablesExhaustive(t *testing.T) {
	for ext := range skippedExtensions {
		ok, _ := IsSeoRelevant("https://example.com/file" + ext)
		assert.False(t, ok, "extension %s", ext)
	}
	for seg := range skippedSegments {
		ok, _ := IsSeoRelevant("https://example.com/" + seg + "/item")
		assert.False(t, ok, "segment %s", seg)
	}
	for _, pat := range skippedPathPatterns {
		ok, _ := IsSeoRelevant("https://example.com" + pat + "x")
		assert.False(t, ok, "pattern %s", pat)
	}
	for key := range skippedQueryKeys {
		ok, _ := IsSeoRelevant("https://example.com/p?" + key + "=1")
		assert.False(t, ok, "query key %s", key)
	}
}

func TestHash(t *testing.T) {
	a := Hash("https://example.com/")
	b := Hash("https://example.com/")
	c := Hash("https://example.com/other")
	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
