package storeapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopworks/storefront-gateway/pkg/models"
	"github.com/sirupsen/logrus"
)

func (c *Client) GetOrdersByStore(storeID string) ([]models.Order, error) {
	var orders []models.Order
	err := c.guard("orders").Execute(func() error {
		req, err := http.NewRequest("GET", c.baseURL+"/api/orders/store/"+storeID, nil)
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
			Orders  []models.Order `json:"orders"`
			Count   int            `json:"count"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
			return fmt.Errorf("failed to decode storefront API response: %w", err)
		}

		orders = response.Orders
		return nil
	})
	if err != nil {
		return nil, err
	}

	return orders, nil
}

func (c *Client) UpdateOrderStatus(orderID, status string) (*models.Order, error) {
	c.logger.WithFields(logrus.Fields{
		"order_id": orderID,
		"status":   status,
	}).Info("Updating order status in storefront API")

	var updated models.Order
	// A 404 is a valid upstream answer, not an upstream fault; it must not
	// count against the breaker.
	var notFound bool
	err := c.guard("orders").Execute(func() error {
		jsonData, err := json.Marshal(map[string]string{"status": status})
		if err != nil {
			return fmt.Errorf("failed to marshal status update: %w", err)
		}

		req, err := http.NewRequest("PUT", c.baseURL+"/api/orders/"+orderID+"/status", bytes.NewBuffer(jsonData))
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

		var response models.OrderResponse
		if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
			return fmt.Errorf("failed to decode storefront API response: %w", err)
		}
		if !response.Success || response.Order == nil {
			return fmt.Errorf("storefront API rejected status update: %s", response.Message)
		}

		updated = *response.Order
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
