// Package integration handles external service interactions
package integration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// DefaultReportPageURL is the council page that links the water quality spreadsheets
	DefaultReportPageURL = "https://www.brisbane.qld.gov.au/clean-and-green/natural-environment-and-water/water/water-quality-monitoring/"

	// DefaultUserAgent is sent with page requests, the council site rejects the Go default
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/70.0.3538.110 Safari/537.36"
)

var (
	// ErrNoReportLinks is returned when the page links no .xlsx documents
	ErrNoReportLinks = errors.New("no spreadsheet links were found")
	// ErrNoReportSelected is returned when links were found but none declared a size
	ErrNoReportSelected = errors.New("spreadsheet links were found but none were selected for processing")
)

// ReportScraper finds and downloads the current water quality spreadsheet
type ReportScraper struct {
	pageURL   string
	userAgent string
	client    *http.Client
}

// NewReportScraper creates a new report scraper
func NewReportScraper(pageURL, userAgent string) *ReportScraper {
	if pageURL == "" {
		pageURL = DefaultReportPageURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &ReportScraper{
		pageURL:   pageURL,
		userAgent: userAgent,
		client:    &http.Client{},
	}
}

func (rs *ReportScraper) newRequest(ctx context.Context, method, target string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request for %s: %w", method, target, err)
	}
	req.Header.Set("User-Agent", rs.userAgent)
	return req, nil
}

// FindReportLinks returns the absolute URLs of every .xlsx document linked from
// the report page, in document order
func (rs *ReportScraper) FindReportLinks(ctx context.Context) ([]string, error) {
	log.Printf("Sending HTTP request to report page %s", rs.pageURL)
	req, err := rs.newRequest(ctx, http.MethodGet, rs.pageURL)
	if err != nil {
		return nil, err
	}
	res, err := rs.client.Do(req)
	if err != nil {
		log.Printf("Error fetching report page: %v", err)
		return nil, fmt.Errorf("failed to fetch the webpage: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		log.Printf("Received unexpected status code: %d %s", res.StatusCode, res.Status)
		return nil, fmt.Errorf("unexpected status code: %d %s", res.StatusCode, res.Status)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		log.Printf("Error parsing HTML: %v", err)
		return nil, fmt.Errorf("failed to parse the webpage: %w", err)
	}

	base, err := url.Parse(rs.pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid report page URL %q: %w", rs.pageURL, err)
	}

	var links []string
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if !strings.HasSuffix(strings.ToLower(href), ".xlsx") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			log.Printf("Warning: skipping malformed link %q: %v", href, err)
			return
		}
		link := base.ResolveReference(ref).String()
		if seen[link] {
			return
		}
		seen[link] = true
		links = append(links, link)
	})

	log.Printf("Found %d spreadsheet links", len(links))
	if len(links) == 0 {
		return nil, ErrNoReportLinks
	}
	return links, nil
}

// FindCurrentReport picks the link whose declared Content-Length is largest.
// The council publishes one workbook per year and the current one is the
// largest, so size stands in for recency. On equal sizes the later link wins.
func (rs *ReportScraper) FindCurrentReport(ctx context.Context, links []string) (string, error) {
	var (
		current string
		largest int64 = -1
	)

	for _, link := range links {
		req, err := rs.newRequest(ctx, http.MethodHead, link)
		if err != nil {
			return "", err
		}
		res, err := rs.client.Do(req)
		if err != nil {
			log.Printf("Error requesting headers for %s: %v", link, err)
			return "", fmt.Errorf("failed to request headers for %s: %w", link, err)
		}
		res.Body.Close()

		if res.StatusCode != http.StatusOK {
			log.Printf("Warning: skipping %s, HEAD returned %s", link, res.Status)
			continue
		}
		if res.ContentLength < 0 {
			log.Printf("Warning: skipping %s, no Content-Length declared", link)
			continue
		}

		log.Printf("Report %s declares %d bytes", link, res.ContentLength)
		if res.ContentLength >= largest {
			largest = res.ContentLength
			current = link
		}
	}

	if current == "" {
		return "", ErrNoReportSelected
	}
	return current, nil
}

// DownloadReport downloads a spreadsheet
func (rs *ReportScraper) DownloadReport(ctx context.Context, link string) ([]byte, error) {
	log.Printf("Downloading report %s", link)
	req, err := rs.newRequest(ctx, http.MethodGet, link)
	if err != nil {
		return nil, err
	}
	res, err := rs.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", link, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code downloading %s: %d %s", link, res.StatusCode, res.Status)
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", link, err)
	}
	log.Printf("Downloaded %d bytes", len(data))
	return data, nil
}

// GetLatestSpreadsheet finds the current report on the page and downloads it
func (rs *ReportScraper) GetLatestSpreadsheet(ctx context.Context) ([]byte, error) {
	links, err := rs.FindReportLinks(ctx)
	if err != nil {
		return nil, err
	}
	current, err := rs.FindCurrentReport(ctx, links)
	if err != nil {
		return nil, err
	}
	log.Printf("Selected current report %s", current)
	return rs.DownloadReport(ctx, current)
}
