package storeapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopworks/storefront-gateway/pkg/models"
)

func (c *Client) GetStores() ([]models.Store, error) {
	c.logger.Debug("Fetching stores from storefront API")

	var stores []models.Store
	err := c.guard("stores").Execute(func() error {
		req, err := http.NewRequest("GET", c.baseURL+"/api/stores", nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to send request to storefront API: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("storefront API returned error status: %d", resp.StatusCode)
		}

		var response struct {
			Success bool           `json:"success"`
			Stores  []models.Store `json:"stores"`
			Count   int            `json:"count"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
			return fmt.Errorf("failed to decode storefront API response: %w", err)
		}

		stores = response.Stores
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.WithField("count", len(stores)).Debug("Retrieved stores from storefront API")
	return stores, nil
}

func (c *Client) GetStore(storeID string) (*models.Store, error) {
	var store models.Store
	// A 404 is a valid upstream answer, not an upstream fault; it must not
	// count against the breaker.
	var notFound bool
	err := c.guard("stores").Execute(func() error {
		req, err := http.NewRequest("GET", c.baseURL+"/api/stores/"+storeID, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to send request to storefront API: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			notFound = true
			return nil
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("storefront API returned error status: %d", resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(&store); err != nil {
			return fmt.Errorf("failed to decode storefront API response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if notFound {
		return nil, ErrNotFound
	}

	return &store, nil
}
