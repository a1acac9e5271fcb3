package storeapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopworks/storefront-gateway/pkg/models"
	"github.com/sirupsen/logrus"
)

func (c *Client) GetProducts() ([]models.Product, error) {
	return c.fetchProducts(c.baseURL + "/api/products")
}

func (c *Client) GetProductsByStore(storeID string) ([]models.Product, error) {
	return c.fetchProducts(c.baseURL + "/api/products/store/" + storeID)
}

func (c *Client) fetchProducts(url string) ([]models.Product, error) {
	var products []models.Product
	err := c.guard("products").Execute(func() error {
		req, err := http.NewRequest("GET", url, nil)
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
			Success  bool             `json:"success"`
			Products []models.Product `json:"products"`
			Count    int              `json:"count"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
			return fmt.Errorf("failed to decode storefront API response: %w", err)
		}

		products = response.Products
		return nil
	})
	if err != nil {
		return nil, err
	}

	return products, nil
}

func (c *Client) GetProduct(productID string) (*models.Product, error) {
	var product models.Product
	// A 404 is a valid upstream answer, not an upstream fault; it must not
	// count against the breaker.
	var notFound bool
	err := c.guard("products").Execute(func() error {
		req, err := http.NewRequest("GET", c.baseURL+"/api/products/"+productID, nil)
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

		if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
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

	return &product, nil
}

func (c *Client) CreateProduct(product *models.Product) (*models.Product, error) {
	c.logger.WithFields(logrus.Fields{
		"store_id": product.StoreID,
		"name":     product.Name,
	}).Info("Creating product in storefront API")

	var created models.Product
	err := c.guard("products").Execute(func() error {
		jsonData, err := json.Marshal(product)
		if err != nil {
			return fmt.Errorf("failed to marshal product: %w", err)
		}

		req, err := http.NewRequest("POST", c.baseURL+"/api/products", bytes.NewBuffer(jsonData))
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

		var response models.ProductResponse
		if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
			return fmt.Errorf("failed to decode storefront API response: %w", err)
		}
		if !response.Success || response.Product == nil {
			return fmt.Errorf("storefront API rejected product: %s", response.Message)
		}

		created = *response.Product
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &created, nil
}

func (c *Client) UpdateProduct(product *models.Product) (*models.Product, error) {
	c.logger.WithField("product_id", product.ID).Info("Updating product in storefront API")

	var updated models.Product
	var notFound bool
	err := c.guard("products").Execute(func() error {
		jsonData, err := json.Marshal(product)
		if err != nil {
			return fmt.Errorf("failed to marshal product: %w", err)
		}

		req, err := http.NewRequest("PUT", c.baseURL+"/api/products/"+product.ID, bytes.NewBuffer(jsonData))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

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

		var response models.ProductResponse
		if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
			return fmt.Errorf("failed to decode storefront API response: %w", err)
		}
		if !response.Success || response.Product == nil {
			return fmt.Errorf("storefront API rejected product update: %s", response.Message)
		}

		updated = *response.Product
		return nil
	})
	if err != nil {
		return nil, err
	}
	if notFound {
		return nil, ErrNotFound
	}

	return &updated, nil
}

// DeleteProduct removes a product. A 404 from the upstream means another
// session already deleted it, which is treated as success.
func (c *Client) DeleteProduct(productID string) error {
	c.logger.WithField("product_id", productID).Info("Deleting product in storefront API")

	return c.guard("products").Execute(func() error {
		req, err := http.NewRequest("DELETE", c.baseURL+"/api/products/"+productID, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to send request to storefront API: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			c.logger.WithField("product_id", productID).Warn("Product already deleted upstream, treating as success")
			return nil
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
			return fmt.Errorf("storefront API returned error status: %d", resp.StatusCode)
		}

		return nil
	})
}
