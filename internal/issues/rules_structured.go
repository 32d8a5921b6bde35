package issues

import "github.com/user/siteaudit/internal/domain"

// structuredDataRules surfaces JSON-LD problems and the article/product
// validations performed during extraction. Extraction emits stable tokens
// ("missing_brand", "invalid_price", ...) which map 1:1 onto catalogue
// codes via the family prefix.
func structuredDataRules(page *domain.PageRecord) []domain.IssueTuple {
	var out []domain.IssueTuple

	if !page.HasSchema && page.IsIndexable {
		out = append(out, tuple("SCHEMA_MISSING", nil))
	}
	if len(page.SchemaWarnings) > 0 {
		out = append(out, tuple("SCHEMA_PARSE_ERROR", map[string]any{
			"warnings": page.SchemaWarnings,
		}))
	}

	for _, token := range page.ArticleIssues {
		out = append(out, tuple("article_"+token, map[string]any{
			"headline": headlineOf(page),
		}))
	}
	for _, token := range page.ProductIssues {
		out = append(out, tuple("product_"+token, map[string]any{
			"product": productNameOf(page),
		}))
	}

	return out
}

func headlineOf(page *domain.PageRecord) string {
	if page.Article != nil {
		return page.Article.Headline
	}
	return ""
}

func productNameOf(page *domain.PageRecord) string {
	if page.Product != nil {
		return page.Product.Name
	}
	return ""
}
