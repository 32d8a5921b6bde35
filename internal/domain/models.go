package domain

import "time"

// JobStatus is the lifecycle state of a crawl job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the status can no longer change.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// DiscoverySource records how a URL entered the frontier.
type DiscoverySource string

const (
	SourceSeed    DiscoverySource = "seed"
	SourceSitemap DiscoverySource = "sitemap"
	SourceCrawl   DiscoverySource = "crawl"
)

// CrawlJob is one audit run for one project.
type CrawlJob struct {
	ID              int64
	ProjectID       int64
	Status          JobStatus
	StartedAt       *time.Time
	CompletedAt     *time.Time
	DurationSeconds int
	PagesDiscovered int
	PagesCrawled    int
	PagesFailed     int
	Progress        float64
	CurrentURL      string
	ErrorMessage    string
	Settings        CrawlSettings
	HealthScore     *int
	TotalIssues     int
	ErrorsCount     int
	WarningsCount   int
	NoticesCount    int
	PassedCount     int
	CategoryScores  map[string]int
	CreatedAt       time.Time
}

// Project is the stable site being audited. Read-only to the worker.
type Project struct {
	ID       int64
	Domain   string // host without "www."
	Settings CrawlSettings
}

// CrawlSettings is the policy snapshot a job runs under.
type CrawlSettings struct {
	MaxPages         int         `json:"max_pages"`
	MaxDepth         int         `json:"max_depth"`
	CrawlDelayMs     int         `json:"crawl_delay_ms"`
	RespectRobotsTxt bool        `json:"respect_robots_txt"`
	FollowSubdomains bool        `json:"follow_subdomains"`
	RenderJavascript bool        `json:"render_javascript"`
	UserAgent        string      `json:"user_agent"`
	IncludePatterns  []string    `json:"include_patterns,omitempty"`
	ExcludePatterns  []string    `json:"exclude_patterns,omitempty"`
	Resume           *ResumeInfo `json:"resume_info,omitempty"`
}

// ResumeInfo carries the predecessor's progress into an auto-resume job.
type ResumeInfo struct {
	ResumedFrom             int64    `json:"resumed_from"`
	SkipURLs                []string `json:"skip_urls"`
	OriginalPagesCrawled    int      `json:"original_pages_crawled"`
	OriginalPagesDiscovered int      `json:"original_pages_discovered"`
}

// FrontierEntry is a URL waiting to be fetched.
type FrontierEntry struct {
	URL       string
	Depth     int
	ParentURL string
	Source    DiscoverySource
}

// RedirectHop is one element of a page's redirect chain.
type RedirectHop struct {
	URL        string `json:"url"`
	StatusCode int    `json:"statusCode"`
}

// CoreWebVitals holds best-effort in-page performance samples.
// Missing metrics stay nil.
type CoreWebVitals struct {
	LCPMs  *float64 `json:"lcp,omitempty"`
	FCPMs  *float64 `json:"fcp,omitempty"`
	TTFBMs *float64 `json:"ttfb,omitempty"`
	CLS    *float64 `json:"cls,omitempty"`
	INPMs  *float64 `json:"inp,omitempty"`
}

// ImageInfo is one <img> occurrence on a page.
type ImageInfo struct {
	Src    string  `json:"src"`
	Alt    *string `json:"alt,omitempty"`
	Width  int     `json:"width,omitempty"`
	Height int     `json:"height,omitempty"`
}

// HreflangTag is one <link rel="alternate" hreflang> entry.
type HreflangTag struct {
	Lang string `json:"lang"`
	URL  string `json:"url"`
}

// KeywordDensity is one entry of the top-keyword table.
type KeywordDensity struct {
	Word    string  `json:"word"`
	Count   int     `json:"count"`
	Density float64 `json:"density"`
}

// PageRecord is the uniform result of extracting one crawled page.
type PageRecord struct {
	URL            string
	URLHash        string // SHA-256 hex of URL
	Path           string
	QueryString    string
	StatusCode     int
	RedirectURL    string
	RedirectChain  []RedirectHop
	ContentType    string
	ResponseTimeMs int
	PageSizeBytes  int
	PageDepth      int
	DiscoveredVia  DiscoverySource

	Title              string
	MetaDescription    string
	CanonicalURL       string
	IsSelfCanonical    *bool
	RobotsMeta         string
	IsIndexable        bool
	IndexabilityReason string
	H1Tags             []string
	H2Tags             []string
	HeadingOrder       []string // document-order tag names, for hierarchy checks
	HTMLLang           string
	ViewportContent    string
	ViewportConfigured bool
	ThemeColor         string
	HasAppleTouchIcon  bool
	HasManifest        bool
	HasRelPrev         bool
	HasRelNext         bool

	InternalLinks         []string
	ExternalLinks         []string
	InternalLinksReceived int

	Images             []ImageInfo
	ImagesCount        int
	ImagesWithoutAlt   int
	ImagesWithEmptyAlt int

	WordCount       int
	TextToHTMLRatio int
	ContentHash     string // SHA-256 of collapsed body text
	BodyMarkdown    string
	Keywords        []KeywordDensity
	ReadingGrade    *int
	ReadingLevel    string

	SchemaTypes    []string
	HasSchema      bool
	SchemaObjects  []map[string]any
	SchemaWarnings []string
	Article        *ArticleData
	ArticleIssues  []string
	Product        *ProductData
	ProductIssues  []string

	Hreflangs      []HreflangTag
	HreflangIssues []string

	Mobile *MobileAnalysis

	OGTitle       string
	OGDescription string
	OGImage       string
	TwitterCard   string

	IsHTTPS         bool
	HasMixedContent bool

	Vitals *CoreWebVitals

	FetchError string // non-empty when the fetch itself failed
}

// ArticleData is the article schema extracted from JSON-LD.
type ArticleData struct {
	Type             string       `json:"type"`
	Headline         string       `json:"headline,omitempty"`
	Description      string       `json:"description,omitempty"`
	Body             string       `json:"body,omitempty"`
	DatePublished    string       `json:"datePublished,omitempty"`
	DateModified     string       `json:"dateModified,omitempty"`
	Image            string       `json:"image,omitempty"`
	Author           *Attribution `json:"author,omitempty"`
	Publisher        *Attribution `json:"publisher,omitempty"`
	WordCount        int          `json:"wordCount,omitempty"`
	InLanguage       string       `json:"inLanguage,omitempty"`
	MainEntityOfPage string       `json:"mainEntityOfPage,omitempty"`
}

// Attribution is an author or publisher reference.
type Attribution struct {
	Name    string `json:"name,omitempty"`
	URL     string `json:"url,omitempty"`
	LogoURL string `json:"logoUrl,omitempty"`
}

// ProductData is the product schema extracted from JSON-LD.
type ProductData struct {
	Name          string         `json:"name,omitempty"`
	Description   string         `json:"description,omitempty"`
	SKU           string         `json:"sku,omitempty"`
	Brand         string         `json:"brand,omitempty"`
	Image         string         `json:"image,omitempty"`
	RatingValue   *float64       `json:"ratingValue,omitempty"`
	ReviewCount   *int           `json:"reviewCount,omitempty"`
	ItemCondition string         `json:"itemCondition,omitempty"`
	Offers        []ProductOffer `json:"offers,omitempty"`
}

// ProductOffer is one offer attached to a product.
type ProductOffer struct {
	Price           *float64 `json:"price,omitempty"`
	Currency        string   `json:"currency,omitempty"`
	Availability    string   `json:"availability,omitempty"`
	PriceValidUntil string   `json:"priceValidUntil,omitempty"`
}

// MobileAnalysis holds the viewport and mobile-usability signals.
type MobileAnalysis struct {
	HasViewport          bool `json:"hasViewport"`
	IsZoomDisabled       bool `json:"isZoomDisabled"`
	InitialScaleNotOne   bool `json:"initialScaleNotOne"`
	HasAppleTouchIcon    bool `json:"hasAppleTouchIcon"`
	HasManifest          bool `json:"hasManifest"`
	HasThemeColor        bool `json:"hasThemeColor"`
	NonResponsiveImages  int  `json:"nonResponsiveImages"`
	TablesNotResponsive  int  `json:"tablesNotResponsive"`
	FixedElements        int  `json:"fixedElements"`
	HasTelLinks          bool `json:"hasTelLinks"`
	PhoneNumbersInBody   int  `json:"phoneNumbersInBody"`
	LCPImageLazyLoaded   bool `json:"lcpImageLazyLoaded"`
	UsesMediaQueries     bool `json:"usesMediaQueries"`
	SmallTextElements    int  `json:"smallTextElements"`
}

// Severity classifies an issue definition.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityNotice  Severity = "notice"
)

// IssueDefinition is one catalogue entry. Loaded once per job; rules may
// only emit codes present in the catalogue.
type IssueDefinition struct {
	ID       int64
	Code     string
	Name     string
	Category string
	Severity Severity
	Active   bool
}

// IssueTuple is one detected (code, details) pair for a page.
type IssueTuple struct {
	Code    string
	Details map[string]any
}

// IssueAggregate is the per-job, per-code roll-up.
type IssueAggregate struct {
	ID            int64
	CrawlID       int64
	DefinitionID  int64
	Code          string
	AffectedPages int
}

// IssueCounts sums detected issues by severity.
type IssueCounts struct {
	Errors   int
	Warnings int
	Notices  int
	Total    int
}

// SitemapURL is one <url> entry yielded by the sitemap reader.
type SitemapURL struct {
	Loc        string
	LastMod    string
	ChangeFreq string
	Priority   string
}
