// Package scraper crawls a grant listing site and turns each page into a
// raw grant record, as a supplementary ingestion path next to the JSON
// grants file.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/grantlab/grantrag/internal/models"
)

type ScraperConfig struct {
	BaseURL        string
	MaxDepth       int
	RateLimit      float64 // requests per second
	IgnorePatterns []string
	Timeout        time.Duration
	OnProgress     func(url string)
}

type Scraper struct {
	config   ScraperConfig
	client   *http.Client
	visited  map[string]bool
	limiter  *rate.Limiter
	baseHost string
}

func NewWithConfig(config ScraperConfig) (*Scraper, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxDepth == 0 {
		config.MaxDepth = 3
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}

	parsedURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, err
	}

	return &Scraper{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		visited:  make(map[string]bool),
		limiter:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		baseHost: parsedURL.Host,
	}, nil
}

// Scrape crawls from the start URL up to the configured depth and returns
// one raw record per page.
func (s *Scraper) Scrape(startURL string) ([]models.RawRecord, error) {
	var records []models.RawRecord
	if err := s.scrapePage(startURL, 0, &records); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no pages scraped from %s", startURL)
	}
	return records, nil
}

func (s *Scraper) scrapePage(pageURL string, depth int, records *[]models.RawRecord) error {
	if depth > s.config.MaxDepth || s.visited[pageURL] {
		return nil
	}
	if !s.shouldProcessURL(pageURL) {
		return nil
	}
	s.visited[pageURL] = true

	if err := s.limiter.Wait(context.Background()); err != nil {
		return err
	}

	resp, err := s.client.Get(pageURL)
	if err != nil {
		// Unreachable pages are skipped, not fatal to the crawl.
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil
	}

	record := s.extractRecord(pageURL, doc)
	if record.GetString("description") != "" {
		*records = append(*records, record)
		if s.config.OnProgress != nil {
			s.config.OnProgress(pageURL)
		}
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		abs := s.resolveURL(pageURL, href)
		if abs != "" {
			links = append(links, abs)
		}
	})

	for _, link := range links {
		if err := s.scrapePage(link, depth+1, records); err != nil {
			return err
		}
	}
	return nil
}

// extractRecord maps a page onto the raw grant record shape: title becomes
// the program name, the main content becomes the description.
func (s *Scraper) extractRecord(pageURL string, doc *goquery.Document) models.RawRecord {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		title = h1
	}

	content := doc.Find("main").Text()
	if strings.TrimSpace(content) == "" {
		content = doc.Find("body").Text()
	}

	return models.RawRecord{
		"program_name":   title,
		"program_source": s.baseHost,
		"description":    cleanContent(content),
		"url":            pageURL,
	}
}

func (s *Scraper) resolveURL(base, href string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := baseURL.ResolveReference(ref)
	abs.Fragment = ""
	return abs.String()
}

func (s *Scraper) shouldProcessURL(urlStr string) bool {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	if parsedURL.Host != s.baseHost {
		return false
	}

	for _, pattern := range s.config.IgnorePatterns {
		if strings.Contains(urlStr, pattern) {
			return false
		}
	}

	return true
}

func cleanContent(content string) string {
	content = strings.Join(strings.Fields(content), " ")

	noisePatterns := []string{
		"Cookie Policy",
		"Accept Cookies",
		"Privacy Policy",
		"Terms of Service",
	}
	for _, pattern := range noisePatterns {
		content = strings.ReplaceAll(content, pattern, "")
	}

	return strings.TrimSpace(content)
}
