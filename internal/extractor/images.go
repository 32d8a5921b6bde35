package extractor

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/siteaudit/internal/domain"
)

// extractImages collects every <img> with its alt and numeric dimensions.
// An absent alt attribute and a present-but-empty alt are counted
// separately.
func extractImages(doc *goquery.Document, base *url.URL, rec *domain.PageRecord) {
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		src = strings.TrimSpace(src)
		if src == "" {
			return
		}
		if ref, err := url.Parse(src); err == nil {
			src = base.ResolveReference(ref).String()
		}

		img := domain.ImageInfo{Src: src}
		if alt, ok := s.Attr("alt"); ok {
			trimmed := strings.TrimSpace(alt)
			img.Alt = &trimmed
			if trimmed == "" {
				rec.ImagesWithEmptyAlt++
			}
		} else {
			rec.ImagesWithoutAlt++
		}
		if w, ok := s.Attr("width"); ok {
			img.Width, _ = strconv.Atoi(strings.TrimSpace(w))
		}
		if h, ok := s.Attr("height"); ok {
			img.Height, _ = strconv.Atoi(strings.TrimSpace(h))
		}

		rec.Images = append(rec.Images, img)
	})
	rec.ImagesCount = len(rec.Images)
}
