package extractor

import (
	"strings"
	"time"

	"github.com/user/siteaudit/internal/domain"
)

// extractProduct pulls the first Product JSON-LD object out of the page's
// structured data and validates it.
func extractProduct(rec *domain.PageRecord) {
	var products []map[string]any
	for _, obj := range rec.SchemaObjects {
		if hasSchemaType(obj, "Product") {
			products = append(products, obj)
		}
	}
	if len(products) == 0 {
		return
	}

	obj := products[0]
	prod := &domain.ProductData{
		Name:          asString(obj["name"]),
		Description:   asString(obj["description"]),
		SKU:           firstNonEmpty(asString(obj["sku"]), asString(obj["gtin"]), asString(obj["gtin8"]), asString(obj["gtin12"]), asString(obj["gtin13"]), asString(obj["gtin14"]), asString(obj["mpn"])),
		Brand:         brandName(obj["brand"]),
		Image:         firstImage(obj["image"]),
		ItemCondition: normalizeAvailability(obj["itemCondition"]),
	}
	if rating, ok := obj["aggregateRating"].(map[string]any); ok {
		if v, ok := asFloat(rating["ratingValue"]); ok {
			prod.RatingValue = &v
		}
		if c, ok := asInt(rating["reviewCount"]); ok {
			prod.ReviewCount = &c
		} else if c, ok := asInt(rating["ratingCount"]); ok {
			prod.ReviewCount = &c
		}
	}
	prod.Offers = extractOffers(obj["offers"])

	rec.Product = prod
	rec.ProductIssues = validateProduct(prod, len(products), time.Now())
}

func brandName(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		return asString(t["name"])
	}
	return ""
}

// extractOffers handles a single offer object, an array of offers, and the
// AggregateOffer envelope (lowPrice/highPrice collapse to two offers).
func extractOffers(v any) []domain.ProductOffer {
	switch t := v.(type) {
	case []any:
		var out []domain.ProductOffer
		for _, item := range t {
			if obj, ok := item.(map[string]any); ok {
				out = append(out, extractOffers(obj)...)
			}
		}
		return out
	case map[string]any:
		if hasSchemaType(t, "AggregateOffer") {
			var out []domain.ProductOffer
			for _, key := range []string{"lowPrice", "highPrice"} {
				if price, ok := asFloat(t[key]); ok {
					out = append(out, domain.ProductOffer{
						Price:        &price,
						Currency:     asString(t["priceCurrency"]),
						Availability: normalizeAvailability(t["availability"]),
					})
				}
			}
			return out
		}
		offer := domain.ProductOffer{
			Currency:        asString(t["priceCurrency"]),
			Availability:    normalizeAvailability(t["availability"]),
			PriceValidUntil: asString(t["priceValidUntil"]),
		}
		if price, ok := asFloat(t["price"]); ok {
			offer.Price = &price
		}
		return []domain.ProductOffer{offer}
	}
	return nil
}

func validateProduct(prod *domain.ProductData, total int, now time.Time) []string {
	var issues []string

	if prod.Name == "" {
		issues = append(issues, "missing_name")
	}
	if prod.Description == "" {
		issues = append(issues, "missing_description")
	}
	if prod.Image == "" {
		issues = append(issues, "missing_image")
	}
	if prod.Brand == "" {
		issues = append(issues, "missing_brand")
	}
	if prod.SKU == "" {
		issues = append(issues, "missing_sku")
	}

	if len(prod.Offers) == 0 {
		issues = append(issues, "missing_offer")
	}
	for _, offer := range prod.Offers {
		if offer.Price == nil {
			appendOnce(&issues, "missing_price")
		} else if *offer.Price < 0 {
			appendOnce(&issues, "invalid_price")
		}
		if offer.Currency == "" {
			appendOnce(&issues, "missing_currency")
		}
		if offer.Availability == "" {
			appendOnce(&issues, "missing_availability")
		} else {
			lower := strings.ToLower(offer.Availability)
			if strings.Contains(lower, "outofstock") || strings.Contains(lower, "discontinued") {
				appendOnce(&issues, "out_of_stock")
			}
		}
		if offer.PriceValidUntil != "" {
			if until, ok := parseISODate(offer.PriceValidUntil); ok && until.Before(now) {
				appendOnce(&issues, "price_expired")
			}
		}
	}

	if total > 1 {
		issues = append(issues, "multiple_products")
	}

	return issues
}

func appendOnce(issues *[]string, code string) {
	for _, existing := range *issues {
		if existing == code {
			return
		}
	}
	*issues = append(*issues, code)
}
