package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/siteaudit/internal/domain"
)

func extract(t *testing.T, html string, in Input) *domain.PageRecord {
	t.Helper()
	in.HTML = html
	if in.FinalURL == "" {
		in.FinalURL = "https://shop.test/page"
	}
	if in.StatusCode == 0 {
		in.StatusCode = 200
	}
	if in.ProjectDomain == "" {
		in.ProjectDomain = "shop.test"
	}
	rec, err := Extract(in)
	require.NoError(t, err)
	return rec
}

const fullPage = `<!DOCTYPE html>
<html lang="en">
<head>
	<title>Blue Widget, hand made in small batches</title>
	<meta name="description" content="A blue widget that does widget things, hand made in small batches from recycled aluminium by people who care.">
	<link rel="canonical" href="https://shop.test/page">
	<meta name="viewport" content="width=device-width, initial-scale=1">
	<meta property="og:title" content="Blue Widget">
	<meta property="og:description" content="A blue widget.">
	<meta property="og:image" content="https://shop.test/widget.jpg">
	<meta name="twitter:card" content="summary_large_image">
	<link rel="apple-touch-icon" href="/icon.png">
	<link rel="manifest" href="/manifest.json">
</head>
<body>
	<h1>Blue Widget</h1>
	<h2>Features</h2>
	<h2>Reviews</h2>
	<p>The blue widget is the widget you always wanted. Widget lovers agree that
	this widget outperforms every other widget on the widget market today.</p>
	<a href="/about">About us</a>
	<a href="/about#team">Team anchor</a>
	<a href="https://shop.test/contact">Contact</a>
	<a href="https://elsewhere.test/partner">Partner</a>
	<a href="mailto:hi@shop.test">Mail</a>
	<img src="/widget.jpg" alt="A blue widget">
	<img src="/detail.jpg" alt="">
	<img src="/naked.jpg">
</body>
</html>`

func TestExtractFullPage(t *testing.T) {
	rec := extract(t, fullPage, Input{})

	assert.Equal(t, "Blue Widget, hand made in small batches", rec.Title)
	assert.Contains(t, rec.MetaDescription, "widget things")
	assert.Equal(t, "https://shop.test/page", rec.CanonicalURL)
	require.NotNil(t, rec.IsSelfCanonical)
	assert.True(t, *rec.IsSelfCanonical)
	assert.Equal(t, "en", rec.HTMLLang)
	assert.True(t, rec.IsHTTPS)
	assert.True(t, rec.IsIndexable)

	assert.Equal(t, []string{"Blue Widget"}, rec.H1Tags)
	assert.Equal(t, []string{"Features", "Reviews"}, rec.H2Tags)
	assert.Equal(t, []string{"h1", "h2", "h2"}, rec.HeadingOrder)

	// /about appears twice but the fragment variant dedups onto it.
	assert.Equal(t, []string{"https://shop.test/about", "https://shop.test/contact"}, rec.InternalLinks)
	assert.Equal(t, []string{"https://elsewhere.test/partner"}, rec.ExternalLinks)

	assert.Equal(t, 3, rec.ImagesCount)
	assert.Equal(t, 1, rec.ImagesWithoutAlt)
	assert.Equal(t, 1, rec.ImagesWithEmptyAlt)

	assert.Equal(t, "Blue Widget", rec.OGTitle)
	assert.Equal(t, "summary_large_image", rec.TwitterCard)

	assert.Greater(t, rec.WordCount, 20)
	assert.NotEmpty(t, rec.ContentHash)
	assert.NotEmpty(t, rec.BodyMarkdown)

	require.NotNil(t, rec.Mobile)
	assert.True(t, rec.Mobile.HasViewport)
	assert.False(t, rec.Mobile.IsZoomDisabled)
	assert.True(t, rec.Mobile.HasAppleTouchIcon)
	assert.True(t, rec.Mobile.HasManifest)
}

func TestIndexability(t *testing.T) {
	rec := extract(t, "<html><body>gone</body></html>", Input{StatusCode: 404})
	assert.False(t, rec.IsIndexable)
	assert.Equal(t, "HTTP 404 error", rec.IndexabilityReason)

	rec = extract(t, "<html><body>moved</body></html>", Input{StatusCode: 301})
	assert.False(t, rec.IsIndexable)
	assert.Equal(t, "Redirect", rec.IndexabilityReason)

	rec = extract(t, `<html><head><meta name="robots" content="noindex, follow"></head><body>x</body></html>`, Input{})
	assert.False(t, rec.IsIndexable)
	assert.Equal(t, "noindex directive", rec.IndexabilityReason)
}

func TestCanonicalMismatch(t *testing.T) {
	html := `<html><head><link rel="canonical" href="https://shop.test/other"></head><body>x</body></html>`
	rec := extract(t, html, Input{})
	require.NotNil(t, rec.IsSelfCanonical)
	assert.False(t, *rec.IsSelfCanonical)
}

// A relative canonical with only a trailing-slash difference still counts
// as self-referencing.
func TestCanonicalRelativeSlash(t *testing.T) {
	html := `<html><head><link rel="canonical" href="/page/"></head><body>x</body></html>`
	rec := extract(t, html, Input{})
	require.NotNil(t, rec.IsSelfCanonical)
	assert.True(t, *rec.IsSelfCanonical)
}

func TestProductValidation(t *testing.T) {
	html := `<html><head><script type="application/ld+json">
	{
		"@context": "https://schema.org",
		"@type": "Product",
		"name": "Blue Widget",
		"description": "A blue widget.",
		"sku": "BW-1",
		"image": "https://shop.test/widget.jpg",
		"offers": {
			"@type": "Offer",
			"price": -5,
			"priceCurrency": "EUR",
			"availability": "https://schema.org/OutOfStock",
			"priceValidUntil": "2000-01-01"
		}
	}
	</script></head><body>x</body></html>`
	rec := extract(t, html, Input{})

	require.NotNil(t, rec.Product)
	assert.Equal(t, "Blue Widget", rec.Product.Name)
	assert.Equal(t, "BW-1", rec.Product.SKU)
	require.Len(t, rec.Product.Offers, 1)
	assert.Equal(t, "EUR", rec.Product.Offers[0].Currency)

	assert.ElementsMatch(t, []string{
		"missing_brand",
		"invalid_price",
		"out_of_stock",
		"price_expired",
	}, rec.ProductIssues)
}

func TestProductAggregateOffer(t *testing.T) {
	html := `<html><head><script type="application/ld+json">
	{
		"@type": "Product",
		"name": "Widget",
		"description": "d",
		"sku": "W-1",
		"image": "https://shop.test/w.jpg",
		"brand": {"@type": "Brand", "name": "Widgets Inc"},
		"offers": {
			"@type": "AggregateOffer",
			"lowPrice": 9.5,
			"highPrice": 19.5,
			"priceCurrency": "USD",
			"availability": "https://schema.org/InStock"
		}
	}
	</script></head><body>x</body></html>`
	rec := extract(t, html, Input{})

	require.NotNil(t, rec.Product)
	assert.Equal(t, "Widgets Inc", rec.Product.Brand)
	require.Len(t, rec.Product.Offers, 2)
	assert.Equal(t, 9.5, *rec.Product.Offers[0].Price)
	assert.Equal(t, 19.5, *rec.Product.Offers[1].Price)
	assert.Empty(t, rec.ProductIssues)
}

func TestArticleValidation(t *testing.T) {
	html := `<html><head><script type="application/ld+json">
	{
		"@type": "BlogPosting",
		"headline": "Too short",
		"datePublished": "2099-01-01",
		"image": "https://shop.test/hero.jpg"
	}
	</script></head><body>x</body></html>`
	rec := extract(t, html, Input{})

	require.NotNil(t, rec.Article)
	assert.Equal(t, "BlogPosting", rec.Article.Type)
	assert.ElementsMatch(t, []string{
		"headline_too_short",
		"missing_author",
		"future_date_published",
	}, rec.ArticleIssues)
}

func TestArticleInvalidDate(t *testing.T) {
	html := `<html><head><script type="application/ld+json">
	{
		"@type": "Article",
		"headline": "A headline long enough to pass the length check",
		"author": "Jo Writer",
		"image": "https://shop.test/hero.jpg",
		"datePublished": "2024-02-31"
	}
	</script></head><body>x</body></html>`
	rec := extract(t, html, Input{})
	require.NotNil(t, rec.Article)
	assert.Contains(t, rec.ArticleIssues, "invalid_date_published")
}

func TestStructuredDataGraphAndWarnings(t *testing.T) {
	html := `<html><head>
	<script type="application/ld+json">{"@graph": [{"@type": "Organization"}, {"@type": "WebSite"}]}</script>
	<script type="application/ld+json">{not json at all</script>
	</head><body>x</body></html>`
	rec := extract(t, html, Input{})

	assert.Contains(t, rec.SchemaTypes, "Organization")
	assert.Contains(t, rec.SchemaTypes, "WebSite")
	assert.True(t, rec.HasSchema)
	assert.Len(t, rec.SchemaWarnings, 1)
}

func TestHreflangValidation(t *testing.T) {
	html := `<html><head>
	<link rel="alternate" hreflang="en" href="https://shop.test/page">
	<link rel="alternate" hreflang="de-DE" href="https://shop.test/de/page">
	<link rel="alternate" hreflang="zz" href="https://shop.test/zz/page">
	<link rel="alternate" hreflang="en-XX" href="https://shop.test/en-xx/page">
	<link rel="alternate" hreflang="de-DE" href="https://shop.test/de/page2">
	<link rel="alternate" hreflang="x-default" href="https://shop.test/page">
	</head><body>x</body></html>`
	rec := extract(t, html, Input{})

	assert.Len(t, rec.Hreflangs, 6)
	assert.Contains(t, rec.HreflangIssues, "invalid_lang_code:zz")
	assert.Contains(t, rec.HreflangIssues, "invalid_region_code:en-XX")
	assert.Contains(t, rec.HreflangIssues, "duplicate_hreflang:de-de")
	assert.NotContains(t, rec.HreflangIssues, "missing_self_reference")
}

func TestHreflangMissingSelfReference(t *testing.T) {
	html := `<html><head>
	<link rel="alternate" hreflang="en" href="https://shop.test/en/page">
	<link rel="alternate" hreflang="de" href="https://shop.test/de/page">
	</head><body>x</body></html>`
	rec := extract(t, html, Input{})
	assert.Contains(t, rec.HreflangIssues, "missing_self_reference")
}

func TestMobileZoomDisabled(t *testing.T) {
	html := `<html><head>
	<meta name="viewport" content="width=device-width, initial-scale=1, user-scalable=no">
	</head><body>x</body></html>`
	rec := extract(t, html, Input{})
	require.NotNil(t, rec.Mobile)
	assert.True(t, rec.Mobile.HasViewport)
	assert.True(t, rec.Mobile.IsZoomDisabled)
}

func TestMobileMissingViewport(t *testing.T) {
	rec := extract(t, "<html><body>x</body></html>", Input{})
	require.NotNil(t, rec.Mobile)
	assert.False(t, rec.Mobile.HasViewport)
}

func TestMixedContent(t *testing.T) {
	html := `<html><body><img src="http://insecure.test/img.png"></body></html>`
	rec := extract(t, html, Input{})
	assert.True(t, rec.HasMixedContent)

	rec = extract(t, `<html><body><img src="https://secure.test/img.png"></body></html>`, Input{})
	assert.False(t, rec.HasMixedContent)

	// Mixed content is only meaningful on HTTPS pages.
	rec = extract(t, html, Input{FinalURL: "http://shop.test/page"})
	assert.False(t, rec.HasMixedContent)
}

func TestSubdomainLinkClassification(t *testing.T) {
	html := `<html><body>
	<a href="https://blog.shop.test/post">Blog</a>
	<a href="https://shop.test/here">Here</a>
	</body></html>`

	rec := extract(t, html, Input{FollowSubdomains: true})
	assert.Contains(t, rec.InternalLinks, "https://blog.shop.test/post")
	assert.Contains(t, rec.InternalLinks, "https://shop.test/here")

	// With subdomains off, the blog link belongs to another site.
	rec = extract(t, html, Input{})
	assert.Contains(t, rec.ExternalLinks, "https://blog.shop.test/post")
	assert.NotContains(t, rec.InternalLinks, "https://blog.shop.test/post")
	assert.Contains(t, rec.InternalLinks, "https://shop.test/here")
}

func TestRedirectRecord(t *testing.T) {
	rec := extract(t, "<html><body>x</body></html>", Input{
		RedirectChain: []domain.RedirectHop{{URL: "https://shop.test/old", StatusCode: 301}},
	})
	assert.Equal(t, "https://shop.test/page", rec.RedirectURL)
	assert.Len(t, rec.RedirectChain, 1)
}
