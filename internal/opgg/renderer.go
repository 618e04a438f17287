package opgg

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	// UserAgent sent by both renderers; op.gg serves an empty shell to obvious bots.
	UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	maxPageBytes = 8 << 20
)

// Renderer returns the HTML of a page. waitSelector is a CSS selector the
// page is expected to contain once rendered; renderers that cannot wait ignore it.
type Renderer interface {
	Render(ctx context.Context, url, waitSelector string) (string, error)
}

// StatusError is a non-2xx answer from op.gg.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("op.gg returned %d for %s", e.StatusCode, e.URL)
}

// HTTPRenderer fetches server-rendered HTML with a plain GET.
type HTTPRenderer struct {
	client *http.Client
}

func NewHTTPRenderer(client *http.Client) *HTTPRenderer {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPRenderer{client: client}
}

func (r *HTTPRenderer) Render(ctx context.Context, url, _ string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", url, err)
	}
	return string(body), nil
}

// ChromeRenderer loads pages in a headless Chrome so client-rendered tables
// are present in the returned HTML.
type ChromeRenderer struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	settle   time.Duration
}

// NewChromeRenderer starts a browser allocator. Call Close to release it.
func NewChromeRenderer(headless bool) *ChromeRenderer {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(UserAgent),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &ChromeRenderer{allocCtx: allocCtx, cancel: cancel, settle: 2 * time.Second}
}

func (r *ChromeRenderer) Close() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *ChromeRenderer) Render(ctx context.Context, url, waitSelector string) (string, error) {
	browserCtx, cancel := chromedp.NewContext(r.allocCtx)
	defer cancel()

	// Tie the tab's lifetime to the caller's context.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		var cancelTimeout context.CancelFunc
		browserCtx, cancelTimeout = context.WithDeadline(browserCtx, deadline)
		defer cancelTimeout()
	}

	if waitSelector == "" {
		waitSelector = "body"
	}

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady(waitSelector, chromedp.ByQuery),
		chromedp.Sleep(r.settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("chromedp render %s: %w", url, err)
	}
	if html == "" {
		return "", fmt.Errorf("empty HTML content returned for %s", url)
	}

	log.Printf("[UPSTREAM] rendered %s (%d bytes)", url, len(html))
	return html, nil
}
