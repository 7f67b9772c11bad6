// Package banadresse geocodes French addresses against the Base Adresse
// Nationale search API (api-adresse.data.gouv.fr).
package banadresse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/coverage-lookup/internal/core/model"
	"github.com/mohammed-shakir/coverage-lookup/internal/geocoder"
)

const DefaultBaseURL = "https://api-adresse.data.gouv.fr"

// maxBody caps how much of an upstream response is read.
const maxBody = 1 << 20

type Client struct {
	base   *url.URL
	client *http.Client
	limit  int
}

type Option func(*Client)

// WithLimit sets the limit parameter sent upstream; only the first feature
// is used either way.
func WithLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.limit = n
		}
	}
}

func New(baseURL string, hc *http.Client, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse geocoder url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("geocoder url %q: unsupported scheme", baseURL)
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	c := &Client{base: u, client: hc, limit: 1}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

type featureCollection struct {
	Features []struct {
		Geometry struct {
			Type        string    `json:"type"`
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

func (c *Client) searchURL(address string) string {
	u := *c.base
	u.Path += "/search/"
	q := url.Values{}
	q.Set("q", address)
	q.Set("limit", strconv.Itoa(c.limit))
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) Geocode(ctx context.Context, address string) (*model.GeodeticPoint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL(address), nil)
	if err != nil {
		return nil, fmt.Errorf("build geocode request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return nil, fmt.Errorf("geocode upstream status %d", resp.StatusCode)
	}

	var fc featureCollection
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode geocode response: %w", err)
	}
	if len(fc.Features) == 0 {
		return nil, nil
	}

	// GeoJSON positions are [lon, lat]
	coords := fc.Features[0].Geometry.Coordinates
	if len(coords) < 2 {
		return nil, fmt.Errorf("geocode feature has %d coordinates", len(coords))
	}
	p := model.GeodeticPoint{Lon: coords[0], Lat: coords[1]}
	if err := geocoder.Validate(p); err != nil {
		return nil, err
	}
	return &p, nil
}
