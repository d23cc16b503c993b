package lookup

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/DarkSmileee/BlockShelf/pkg/config"
	"github.com/DarkSmileee/BlockShelf/pkg/logger"
)

var (
	itemNamePattern = regexp.MustCompile(`(?is)<[^>]+id="item-name"[^>]*>(.*?)</`)
	ogTitlePattern  = regexp.MustCompile(`(?i)<meta[^>]+property="og:title"[^>]+content="([^"]*)"`)
	titlePattern    = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	tagPattern      = regexp.MustCompile(`<[^>]*>`)
)

// BrickLinkScraper pulls a part name out of the public catalog page. It
// is the last resort of the pipeline: names only, never images.
type BrickLinkScraper struct {
	http    *http.Client
	baseURL string
	enabled bool
	logg    *logger.Logger
}

// NewBrickLinkScraper builds the scraper with the configured timeout.
func NewBrickLinkScraper(cfg config.BrickLinkConfig, timeout time.Duration, logg *logger.Logger) *BrickLinkScraper {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BrickLinkScraper{
		http:    &http.Client{Timeout: timeout},
		baseURL: cfg.BaseURL,
		enabled: cfg.Enabled,
		logg:    logg,
	}
}

// Enabled reports whether the scrape fallback is switched on.
func (s *BrickLinkScraper) Enabled() bool {
	return s != nil && s.enabled
}

// FetchName scrapes the catalog page for a part token. An empty name with
// a nil error means the page had no usable title.
func (s *BrickLinkScraper) FetchName(ctx context.Context, token string) (string, error) {
	endpoint := fmt.Sprintf("%s/v2/catalog/catalogitem.page?P=%s", s.baseURL, url.QueryEscape(token))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; BlockShelf/1.0)")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bricklink returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", err
	}
	return extractName(string(body)), nil
}

// extractName tries the item-name node, then og:title, then <title>,
// stripping the site's own suffixes from the page title forms.
func extractName(page string) string {
	if m := itemNamePattern.FindStringSubmatch(page); m != nil {
		if name := cleanScrapedName(m[1]); name != "" {
			return name
		}
	}
	if m := ogTitlePattern.FindStringSubmatch(page); m != nil {
		if name := cleanScrapedName(stripSiteSuffix(m[1])); name != "" {
			return name
		}
	}
	if m := titlePattern.FindStringSubmatch(page); m != nil {
		if name := cleanScrapedName(stripSiteSuffix(m[1])); name != "" {
			return name
		}
	}
	return ""
}

func stripSiteSuffix(title string) string {
	for _, sep := range []string{" | BrickLink", " - BrickLink"} {
		if idx := strings.Index(title, sep); idx >= 0 {
			title = title[:idx]
		}
	}
	// "BrickLink - Part 3001 : name" page title form
	if idx := strings.Index(title, " : "); idx >= 0 && strings.HasPrefix(title, "BrickLink") {
		title = title[idx+3:]
	}
	return title
}

func cleanScrapedName(fragment string) string {
	fragment = tagPattern.ReplaceAllString(fragment, " ")
	fragment = html.UnescapeString(fragment)
	return strings.Join(strings.Fields(fragment), " ")
}
