package fetcher

import (
	"context"

	"github.com/chromedp/chromedp"
)

// Browser owns one headless Chrome instance for the duration of a job.
// Pages are short-lived child contexts; closing the browser cancels any
// in-flight navigation.
type Browser struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewBrowser launches a headless browser with the job's user agent set on
// the context.
func NewBrowser(ctx context.Context, userAgent string) (*Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser process eagerly so launch failures surface here
	// rather than on the first page.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, err
	}

	return &Browser{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		ctx:         browserCtx,
		cancel:      browserCancel,
	}, nil
}

// NewPage derives a fresh page context from the shared browser.
func (b *Browser) NewPage() (context.Context, context.CancelFunc) {
	return chromedp.NewContext(b.ctx)
}

// Close tears down the browser and its allocator.
func (b *Browser) Close() {
	b.cancel()
	b.allocCancel()
}
