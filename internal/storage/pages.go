package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/user/siteaudit/internal/domain"
)

// UpsertPage writes one PageRecord keyed by (crawl_id, url_hash) and
// returns the persistent page id. Re-running a job over the same URL
// replaces the previous row.
func (s *PostgresStore) UpsertPage(ctx context.Context, crawlID int64, rec *domain.PageRecord) (int64, error) {
	redirects, err := json.Marshal(rec.RedirectChain)
	if err != nil {
		return 0, err
	}
	signals, err := json.Marshal(pageSignals(rec))
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.db.QueryRow(ctx,
		`INSERT INTO crawled_pages (
			crawl_id, url, url_hash, path, query_string, status_code,
			redirect_url, redirect_chain, content_type, response_time_ms,
			page_size_bytes, word_count, page_depth, discovered_via,
			title, title_length, meta_description, meta_description_length,
			canonical_url, is_self_canonical, h1_tags, h2_tags, h1_count, h2_count,
			robots_meta, is_indexable, indexability_reason,
			internal_links_count, external_links_count, internal_links_received,
			images_count, images_without_alt, images_with_empty_alt,
			schema_types, has_schema, html_lang, is_https, has_mixed_content,
			content_hash, body_text, fetch_error, signals
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27, $28, $29, $30,
			$31, $32, $33, $34, $35, $36, $37, $38, $39, $40, $41, $42
		)
		ON CONFLICT (crawl_id, url_hash) DO UPDATE SET
			status_code = EXCLUDED.status_code,
			redirect_url = EXCLUDED.redirect_url,
			redirect_chain = EXCLUDED.redirect_chain,
			content_type = EXCLUDED.content_type,
			response_time_ms = EXCLUDED.response_time_ms,
			page_size_bytes = EXCLUDED.page_size_bytes,
			word_count = EXCLUDED.word_count,
			title = EXCLUDED.title,
			title_length = EXCLUDED.title_length,
			meta_description = EXCLUDED.meta_description,
			meta_description_length = EXCLUDED.meta_description_length,
			canonical_url = EXCLUDED.canonical_url,
			is_self_canonical = EXCLUDED.is_self_canonical,
			h1_tags = EXCLUDED.h1_tags,
			h2_tags = EXCLUDED.h2_tags,
			h1_count = EXCLUDED.h1_count,
			h2_count = EXCLUDED.h2_count,
			robots_meta = EXCLUDED.robots_meta,
			is_indexable = EXCLUDED.is_indexable,
			indexability_reason = EXCLUDED.indexability_reason,
			internal_links_count = EXCLUDED.internal_links_count,
			external_links_count = EXCLUDED.external_links_count,
			images_count = EXCLUDED.images_count,
			images_without_alt = EXCLUDED.images_without_alt,
			images_with_empty_alt = EXCLUDED.images_with_empty_alt,
			schema_types = EXCLUDED.schema_types,
			has_schema = EXCLUDED.has_schema,
			html_lang = EXCLUDED.html_lang,
			is_https = EXCLUDED.is_https,
			has_mixed_content = EXCLUDED.has_mixed_content,
			content_hash = EXCLUDED.content_hash,
			body_text = EXCLUDED.body_text,
			fetch_error = EXCLUDED.fetch_error,
			signals = EXCLUDED.signals,
			updated_at = NOW()
		RETURNING id`,
		crawlID, rec.URL, rec.URLHash, rec.Path, rec.QueryString, rec.StatusCode,
		nullable(rec.RedirectURL), redirects, rec.ContentType, rec.ResponseTimeMs,
		rec.PageSizeBytes, rec.WordCount, rec.PageDepth, rec.DiscoveredVia,
		nullable(rec.Title), len(rec.Title), nullable(rec.MetaDescription), len(rec.MetaDescription),
		nullable(rec.CanonicalURL), rec.IsSelfCanonical, rec.H1Tags, rec.H2Tags,
		len(rec.H1Tags), len(rec.H2Tags),
		nullable(rec.RobotsMeta), rec.IsIndexable, nullable(rec.IndexabilityReason),
		len(rec.InternalLinks), len(rec.ExternalLinks), rec.InternalLinksReceived,
		rec.ImagesCount, rec.ImagesWithoutAlt, rec.ImagesWithEmptyAlt,
		rec.SchemaTypes, rec.HasSchema, nullable(rec.HTMLLang), rec.IsHTTPS, rec.HasMixedContent,
		rec.ContentHash, rec.BodyMarkdown, nullable(rec.FetchError), signals,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert page %s: %w", rec.URL, err)
	}
	return id, nil
}

// pageSignals bundles the less queried extraction output into one JSONB
// column: vitals, social tags, hreflang, mobile analysis, article/product
// schema, keywords, and parse warnings.
func pageSignals(rec *domain.PageRecord) map[string]any {
	return map[string]any{
		"vitals":         rec.Vitals,
		"ogTitle":        rec.OGTitle,
		"ogDescription":  rec.OGDescription,
		"ogImage":        rec.OGImage,
		"twitterCard":    rec.TwitterCard,
		"hreflangs":      rec.Hreflangs,
		"hreflangIssues": rec.HreflangIssues,
		"mobile":         rec.Mobile,
		"article":        rec.Article,
		"articleIssues":  rec.ArticleIssues,
		"product":        rec.Product,
		"productIssues":  rec.ProductIssues,
		"keywords":       rec.Keywords,
		"schemaWarnings": rec.SchemaWarnings,
		"readingGrade":   rec.ReadingGrade,
		"readingLevel":   rec.ReadingLevel,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// UpdateIncomingLinks flushes the back-reference table, batched by URL
// hash.
func (s *PostgresStore) UpdateIncomingLinks(ctx context.Context, crawlID int64, counts map[string]int) error {
	if len(counts) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for urlHash, count := range counts {
		batch.Queue(
			`UPDATE crawled_pages SET internal_links_received = $3 WHERE crawl_id = $1 AND url_hash = $2`,
			crawlID, urlHash, count)
	}
	return s.db.SendBatch(ctx, batch).Close()
}

// PageSummary is the slice of a page row the post-crawl analyzer needs.
type PageSummary struct {
	ID                    int64
	URL                   string
	URLHash               string
	StatusCode            int
	PageDepth             int
	DiscoveredVia         domain.DiscoverySource
	IsIndexable           bool
	InternalLinksCount    int
	InternalLinksReceived int
	TitleLength           int
	H1Count               int
	H2Count               int
	WordCount             int
	SchemaTypes           []string
	FetchError            string
}

// PagesForAnalysis streams the summaries for every page of a job.
func (s *PostgresStore) PagesForAnalysis(ctx context.Context, crawlID int64) ([]PageSummary, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, url, url_hash, status_code, page_depth, discovered_via, is_indexable,
		        internal_links_count, internal_links_received, COALESCE(title_length, 0),
		        h1_count, h2_count, word_count, schema_types, COALESCE(fetch_error, '')
		 FROM crawled_pages WHERE crawl_id = $1`,
		crawlID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PageSummary
	for rows.Next() {
		var p PageSummary
		if err := rows.Scan(&p.ID, &p.URL, &p.URLHash, &p.StatusCode, &p.PageDepth,
			&p.DiscoveredVia, &p.IsIndexable, &p.InternalLinksCount, &p.InternalLinksReceived,
			&p.TitleLength, &p.H1Count, &p.H2Count, &p.WordCount, &p.SchemaTypes, &p.FetchError); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RecordIssue upserts the per-code aggregate and links the page to it.
// The aggregate row exists before its first PageIssue; the affected-pages
// count only moves when a new (page, issue) link is actually inserted, so
// double detection never inflates it.
func (s *PostgresStore) RecordIssue(ctx context.Context, crawlID, pageID, definitionID int64, details map[string]any) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var aggregateID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO crawl_issues (crawl_id, issue_definition_id, affected_pages_count)
		 VALUES ($1, $2, 0)
		 ON CONFLICT (crawl_id, issue_definition_id) DO UPDATE SET crawl_id = EXCLUDED.crawl_id
		 RETURNING id`,
		crawlID, definitionID).Scan(&aggregateID)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx,
		`INSERT INTO page_issues (page_id, crawl_issue_id, details)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (page_id, crawl_issue_id) DO NOTHING`,
		pageID, aggregateID, detailsJSON)
	if err != nil {
		var pgErr *pgconn.PgError
		// Unique violations are absorbed; anything else aborts.
		if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
			return err
		}
		return tx.Commit(ctx)
	}

	if tag.RowsAffected() == 1 {
		_, err = tx.Exec(ctx,
			`UPDATE crawl_issues SET affected_pages_count = affected_pages_count + 1 WHERE id = $1`,
			aggregateID)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// SavePerformanceAudit stores the oracle result for the job's homepage.
func (s *PostgresStore) SavePerformanceAudit(ctx context.Context, crawlID int64, audit any) error {
	payload, err := json.Marshal(audit)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx,
		`UPDATE crawl_jobs SET performance_audit = $2 WHERE id = $1`,
		crawlID, payload)
	return err
}

// SaveAIReadiness stores the AI-search readiness score and breakdown.
func (s *PostgresStore) SaveAIReadiness(ctx context.Context, crawlID int64, score int, breakdown any) error {
	payload, err := json.Marshal(breakdown)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx,
		`UPDATE crawl_jobs SET ai_search_score = $2, ai_search_details = $3 WHERE id = $1`,
		crawlID, score, payload)
	return err
}
