package storeapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopworks/storefront-gateway/pkg/models"
)

func (c *Client) GetCategories() ([]models.Category, error) {
	var categories []models.Category
	err := c.guard("categories").Execute(func() error {
		req, err := http.NewRequest("GET", c.baseURL+"/api/categories", nil)
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
			Success    bool              `json:"success"`
			Categories []models.Category `json:"categories"`
			Count      int               `json:"count"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
			return fmt.Errorf("failed to decode storefront API response: %w", err)
		}

		categories = response.Categories
		return nil
	})
	if err != nil {
		return nil, err
	}

	return categories, nil
}

func (c *Client) CreateCategory(name string) (*models.Category, error) {
	var created models.Category
	err := c.guard("categories").Execute(func() error {
		jsonData, err := json.Marshal(models.Category{Name: name})
		if err != nil {
			return fmt.Errorf("failed to marshal category: %w", err)
		}

		req, err := http.NewRequest("POST", c.baseURL+"/api/categories", bytes.NewBuffer(jsonData))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to send request to storefront API: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("storefront API returned error status: %d", resp.StatusCode)
		}

		var response models.CategoryResponse
		if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
			return fmt.Errorf("failed to decode storefront API response: %w", err)
		}
		if !response.Success || response.Category == nil {
			return fmt.Errorf("storefront API rejected category: %s", response.Message)
		}

		created = *response.Category
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &created, nil
}
