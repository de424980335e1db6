package crawl

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/startup-scraper/internal/resilience"
)

// cardSelectors match a company card anchor across the directory's markup
// revisions, most specific first.
const cardSelectors = `a[class*="_company_"], a[href^="/companies/"]`

// CollyConfig configures the colly-backed directory driver.
type CollyConfig struct {
	// BaseURL is the directory listing URL; the cohort filter is appended
	// as a ?batch= query parameter.
	BaseURL string

	// UserAgent sent with every request.
	UserAgent string

	// RequestsPerSecond paces navigations across cohorts. Default: 1.
	RequestsPerSecond float64

	// Delay between requests within one navigation. Default: 500ms.
	Delay time.Duration
}

// CollyDriver implements Driver over plain HTTP with colly. One driver holds
// the blocks of the most recent navigation; Navigate resets them.
type CollyDriver struct {
	cfg       CollyConfig
	collector *colly.Collector
	limiter   *rate.Limiter

	mu      sync.Mutex
	blocks  []Block
	limit   int
	lastErr error
}

// NewCollyDriver builds a driver for the directory at cfg.BaseURL.
func NewCollyDriver(cfg CollyConfig) (*CollyDriver, error) {
	if cfg.BaseURL == "" {
		return nil, eris.New("crawl: base URL is required")
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 500 * time.Millisecond
	}

	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	if err := collector.Limit(&colly.LimitRule{
		DomainGlob: "*",
		Delay:      cfg.Delay,
	}); err != nil {
		return nil, eris.Wrap(err, "crawl: configure limit rule")
	}

	d := &CollyDriver{
		cfg:       cfg,
		collector: collector,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}

	collector.OnHTML(cardSelectors, func(e *colly.HTMLElement) {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.limit > 0 && len(d.blocks) >= d.limit {
			return
		}
		d.blocks = append(d.blocks, blockFromCard(e))
	})

	collector.OnError(func(r *colly.Response, err error) {
		d.mu.Lock()
		defer d.mu.Unlock()
		if r != nil && resilience.IsTransientHTTPStatus(r.StatusCode) {
			d.lastErr = resilience.NewTransientError(err, r.StatusCode)
			return
		}
		d.lastErr = err
	})

	return d, nil
}

// Navigate loads the directory page for the given filter and collects its
// company blocks.
func (d *CollyDriver) Navigate(ctx context.Context, filter Filter) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "crawl: rate limit wait")
	}

	d.mu.Lock()
	d.blocks = nil
	d.limit = filter.Limit
	d.lastErr = nil
	d.mu.Unlock()

	if filter.Settle > 0 {
		d.collector.SetRequestTimeout(filter.Settle)
	}

	url := d.cfg.BaseURL
	if filter.Cohort != "" {
		url += "?batch=" + filter.Cohort
	}

	zap.L().Debug("crawl: navigating",
		zap.String("url", url),
		zap.String("cohort", filter.Cohort),
	)

	if err := d.collector.Visit(url); err != nil {
		return eris.Wrapf(err, "crawl: visit %s", url)
	}
	d.collector.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lastErr != nil {
		return eris.Wrapf(d.lastErr, "crawl: load %s", url)
	}
	return nil
}

// Blocks returns the company blocks collected by the last Navigate.
func (d *CollyDriver) Blocks(ctx context.Context) ([]Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Block, len(d.blocks))
	copy(out, d.blocks)
	return out, nil
}

// blockFromCard turns one card anchor into a Block.
func blockFromCard(e *colly.HTMLElement) Block {
	return buildBlock(NewElement(e.DOM), cardText(e.DOM), e.Request.AbsoluteURL)
}

// buildBlock assembles a Block from a card element: logo, location hints,
// and founder social links come from sub-elements; resolve turns relative
// hrefs into absolute URLs.
func buildBlock(el Element, text string, resolve func(string) string) Block {
	b := Block{
		Text: text,
		URL:  resolve(el.Attribute("href")),
	}

	if imgs := el.Children(`img[src*="bookface-images"], img[src*="logo"], img[src*="Logo"]`); len(imgs) > 0 {
		b.LogoURL = resolve(imgs[0].Attribute("src"))
	}

	for _, loc := range el.Children(`[class*="location"], [class*="Location"]`) {
		if t := strings.TrimSpace(loc.Text()); t != "" {
			b.LocationHints = append(b.LocationHints, t)
		}
	}

	for _, link := range el.Children(`a[href*="linkedin.com"], a[href*="twitter.com"], a[href*="github.com"]`) {
		href := link.Attribute("href")
		if href == "" {
			continue
		}
		b.FounderLinks = append(b.FounderLinks, FounderLink{
			Name: strings.TrimSpace(link.Text()),
			URL:  resolve(href),
		})
	}

	return b
}

// cardText joins the card's leaf text nodes with newlines, reconstructing
// the line structure the extractor's first-line-is-name convention needs.
func cardText(sel *goquery.Selection) string {
	var lines []string
	sel.Find("*").Each(func(_ int, s *goquery.Selection) {
		if s.Children().Length() > 0 {
			return
		}
		if t := strings.TrimSpace(s.Text()); t != "" {
			lines = append(lines, t)
		}
	})
	if len(lines) == 0 {
		if t := strings.TrimSpace(sel.Text()); t != "" {
			lines = []string{t}
		}
	}
	return strings.Join(lines, "\n")
}
