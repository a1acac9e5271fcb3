package storeapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopworks/storefront-gateway/internal/breaker"
	"github.com/shopworks/storefront-gateway/pkg/models"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestGetStoresDecodesEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/stores" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"stores": []models.Store{
				{ID: "s1", Name: "Everest Electronics", OwnerID: "owner-1"},
				{ID: "s2", Name: "Valley Books", OwnerID: "owner-2"},
			},
			"count": 2,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, testLogger())

	stores, err := client.GetStores()
	if err != nil {
		t.Fatalf("GetStores failed: %v", err)
	}
	if len(stores) != 2 {
		t.Fatalf("Expected 2 stores, got %d", len(stores))
	}
	if stores[0].Name != "Everest Electronics" {
		t.Errorf("Unexpected first store: %+v", stores[0])
	}
}

func TestGetProductMapsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"success":false,"message":"Product not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, testLogger())

	_, err := client.GetProduct("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestNotFoundDoesNotTripBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"success":false,"message":"Product not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, testLogger())

	// Far more 404s than the failure threshold.
	for i := 0; i < 20; i++ {
		if _, err := client.GetProduct("missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Request %d: expected ErrNotFound, got %v", i, err)
		}
	}

	if state := client.guard("products").State(); state != breaker.StateClosed {
		t.Errorf("Breaker should stay closed on 404s, got state %v", state)
	}
}

func TestServerErrorsOpenBreaker(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, testLogger())

	for i := 0; i < 5; i++ {
		if _, err := client.GetProducts(); err == nil {
			t.Fatalf("Request %d: expected error", i)
		}
	}

	if state := client.guard("products").State(); state != breaker.StateOpen {
		t.Fatalf("Breaker should be open after 5 failures, got state %v", state)
	}

	before := atomic.LoadInt32(&hits)
	if _, err := client.GetProducts(); !errors.Is(err, breaker.ErrOpen) {
		t.Errorf("Expected breaker.ErrOpen, got %v", err)
	}
	if after := atomic.LoadInt32(&hits); after != before {
		t.Errorf("Open breaker must not hit the upstream: %d -> %d", before, after)
	}
}

func TestDeleteProductTreats404AsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "DELETE" {
			t.Errorf("Unexpected method: %s", r.Method)
		}
		http.Error(w, `{"success":false,"message":"Product not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, testLogger())

	if err := client.DeleteProduct("already-gone"); err != nil {
		t.Errorf("Delete of a missing product must succeed, got %v", err)
	}
}

func TestCreateProductRejectedByUpstream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.ProductResponse{
			Success: false,
			Message: "price must be a decimal string",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, testLogger())

	_, err := client.CreateProduct(&models.Product{Name: "Phone", StoreID: "s1", Price: "bad"})
	if err == nil {
		t.Fatal("Expected error when upstream rejects the product")
	}
}

func TestUpdateOrderStatusSendsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/orders/o1/status" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		var body struct {
			Status string `json:"status"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Status != models.OrderStatusShipped {
			t.Errorf("Unexpected status in body: %q", body.Status)
		}
		json.NewEncoder(w).Encode(models.OrderResponse{
			Success: true,
			Message: "Order status updated",
			Order:   &models.Order{ID: "o1", StoreID: "s1", Status: body.Status, TotalAmount: "99.00"},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, testLogger())

	order, err := client.UpdateOrderStatus("o1", models.OrderStatusShipped)
	if err != nil {
		t.Fatalf("UpdateOrderStatus failed: %v", err)
	}
	if order.Status != models.OrderStatusShipped {
		t.Errorf("Expected shipped status, got %q", order.Status)
	}
}
