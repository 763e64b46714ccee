package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// MaxSuggestions bounds the search dropdown.
const MaxSuggestions = 4

// PlacesClient fetches the reference place-name list. It is called
// once at startup; the list is read-only for the rest of the session.
type PlacesClient struct {
	Endpoint string
	Client   *http.Client
}

func NewPlacesClient() *PlacesClient {
	endpoint := os.Getenv("PLACE_DIRECTORY_ENDPOINT")
	if endpoint == "" {
		endpoint = "https://countriesnow.space/api/v0.1/countries/positions"
	}

	return &PlacesClient{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type placeRecord struct {
	Name string `json:"name"`
}

// FetchPlaceNames loads the directory and keeps only each record's
// display name. The directory returns either a bare array of records
// or an envelope with a data field, depending on deployment.
func (c *PlacesClient) FetchPlaceNames(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create place directory request: %w", err)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch place directory: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read place directory response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("place directory returned status %d", resp.StatusCode)
	}

	var records []placeRecord
	if err := json.Unmarshal(bodyBytes, &records); err != nil {
		var envelope struct {
			Data []placeRecord `json:"data"`
		}
		if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
			return nil, fmt.Errorf("failed to decode place directory response: %w", err)
		}
		records = envelope.Data
	}

	names := make([]string, 0, len(records))
	for _, record := range records {
		if record.Name != "" {
			names = append(names, record.Name)
		}
	}
	return names, nil
}

// RankSuggestions orders the reference names against query: names the
// query is a prefix of first, then names that merely contain it, each
// tier preserving reference order, truncated to MaxSuggestions.
// Prefix-before-substring is deliberate ranking policy, not an
// accident of iteration. An empty query yields nothing rather than
// listing the world.
func RankSuggestions(query string, names []string) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	var prefixed, contained []string
	for _, name := range names {
		lower := strings.ToLower(name)
		switch {
		case strings.HasPrefix(lower, q):
			prefixed = append(prefixed, name)
		case strings.Contains(lower, q):
			contained = append(contained, name)
		}
	}

	ranked := append(prefixed, contained...)
	if len(ranked) > MaxSuggestions {
		ranked = ranked[:MaxSuggestions]
	}
	return ranked
}
