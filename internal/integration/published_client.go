package integration

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/abelzeko/maiwar-wq/internal/entities"
)

// DefaultPublishedURL is where the site serves the last deployed measurements
const DefaultPublishedURL = "https://eightytwo.net/maiwar-wq/data/measurements.json"

// ErrEmptyPublishedData is returned when the published document holds no dates
var ErrEmptyPublishedData = errors.New("published measurements are empty")

// PublishedClient reads the measurements currently published on the site
type PublishedClient struct {
	url    string
	client *http.Client
}

// NewPublishedClient creates a client for the published measurements document
func NewPublishedClient(url string) *PublishedClient {
	if url == "" {
		url = DefaultPublishedURL
	}
	return &PublishedClient{
		url:    url,
		client: &http.Client{},
	}
}

// FetchPublished downloads and decodes the published measurements
func (pc *PublishedClient) FetchPublished(ctx context.Context) (entities.Measurements, error) {
	log.Printf("Fetching published measurements from %s", pc.url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pc.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", pc.url, err)
	}
	res, err := pc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch published measurements: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code fetching published measurements: %d %s", res.StatusCode, res.Status)
	}

	m, err := entities.DecodeMeasurements(res.Body)
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, ErrEmptyPublishedData
	}
	log.Printf("Published measurements cover %d dates", len(m))
	return m, nil
}
