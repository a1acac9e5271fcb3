package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// AddressUnavailable is the fixed placeholder shown when reverse geocoding
// fails or returns nothing. Coordinates and the map link are still valid in
// that case.
const AddressUnavailable = "Address not available"

const defaultBaseURL = "https://nominatim.openstreetmap.org"

// Location is the result of resolving a coordinate pair. It is always fully
// populated: resolution failures degrade the address to AddressUnavailable
// instead of erroring out.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
	MapLink   string  `json:"map_link"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewClient(baseURL string, logger *logrus.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// MapLink builds the shareable map URL for a coordinate pair.
func MapLink(lat, lon float64) string {
	return fmt.Sprintf("https://maps.google.com/?q=%s,%s",
		strconv.FormatFloat(lat, 'f', -1, 64),
		strconv.FormatFloat(lon, 'f', -1, 64))
}

// Resolve reverse-geocodes the coordinates. It never fails: any transport or
// decode problem, and any response without a display name, yields the
// AddressUnavailable placeholder.
func (c *Client) Resolve(ctx context.Context, lat, lon float64) Location {
	loc := Location{
		Latitude:  lat,
		Longitude: lon,
		Address:   AddressUnavailable,
		MapLink:   MapLink(lat, lon),
	}

	query := url.Values{}
	query.Set("format", "json")
	query.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	query.Set("zoom", "18")
	query.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/reverse?"+query.Encode(), nil)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to build reverse geocode request")
		return loc
	}
	req.Header.Set("User-Agent", "storefront-gateway/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).Warn("Reverse geocode request failed")
		return loc
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.WithField("status", resp.StatusCode).Warn("Reverse geocode returned error status")
		return loc
	}

	var body struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.logger.WithError(err).Warn("Failed to decode reverse geocode response")
		return loc
	}

	if body.DisplayName != "" {
		loc.Address = body.DisplayName
	}
	return loc
}
