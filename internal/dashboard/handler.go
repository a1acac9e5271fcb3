package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopworks/storefront-gateway/internal/geocode"
	"github.com/shopworks/storefront-gateway/internal/invalidation"
	"github.com/shopworks/storefront-gateway/internal/querycache"
	"github.com/shopworks/storefront-gateway/internal/reconcile"
	"github.com/shopworks/storefront-gateway/internal/storeapi"
	"github.com/shopworks/storefront-gateway/pkg/models"
	"github.com/sirupsen/logrus"
)

// OwnerHeader carries the authenticated owner's id, set by the edge proxy in
// front of the gateway.
const OwnerHeader = "X-Owner-ID"

// Upstream is the slice of the storefront API client the dashboard uses.
type Upstream interface {
	GetProducts() ([]models.Product, error)
	GetProductsByStore(storeID string) ([]models.Product, error)
	GetProduct(productID string) (*models.Product, error)
	GetOrdersByStore(storeID string) ([]models.Order, error)
	GetCategories() ([]models.Category, error)
	CreateProduct(product *models.Product) (*models.Product, error)
	UpdateProduct(product *models.Product) (*models.Product, error)
	DeleteProduct(productID string) error
	UpdateOrderStatus(orderID, status string) (*models.Order, error)
	CreateCategory(name string) (*models.Category, error)
}

// StoreResolver finds stores; satisfied by the catalog browser.
type StoreResolver interface {
	StoreOwnedBy(ctx context.Context, ownerID string) (*models.Store, error)
	SearchStores(ctx context.Context, query string) ([]models.Store, error)
}

type WebSocketHub interface {
	Broadcast(messageType string, data interface{}, source string)
	GetClientCount() int
}

// InvalidationPublisher fans a successful mutation out to peer replicas.
type InvalidationPublisher interface {
	PublishInvalidation(mutation, storeID string) error
}

type Geocoder interface {
	Resolve(ctx context.Context, lat, lon float64) geocode.Location
}

type Handler struct {
	upstream  Upstream
	cache     *querycache.Cache
	stores    StoreResolver
	analyzer  *reconcile.Analyzer
	geocoder  Geocoder
	logger    *logrus.Logger
	wsHub     WebSocketHub
	publisher InvalidationPublisher
}

func NewHandler(upstream Upstream, cache *querycache.Cache, stores StoreResolver, analyzer *reconcile.Analyzer, logger *logrus.Logger) *Handler {
	return &Handler{
		upstream: upstream,
		cache:    cache,
		stores:   stores,
		analyzer: analyzer,
		logger:   logger,
	}
}

func (h *Handler) SetWebSocketHub(hub WebSocketHub) {
	h.wsHub = hub
}

func (h *Handler) SetPublisher(publisher InvalidationPublisher) {
	h.publisher = publisher
}

func (h *Handler) SetGeocoder(geocoder Geocoder) {
	h.geocoder = geocoder
}

// RegisterRoutes wires the dashboard and catalog surface onto the router.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/dashboard/summary", h.GetSummary).Methods("GET")
	router.HandleFunc("/dashboard/products", h.GetProducts).Methods("GET")
	router.HandleFunc("/dashboard/products", h.CreateProduct).Methods("POST")
	router.HandleFunc("/dashboard/products/{id}", h.UpdateProduct).Methods("PUT")
	router.HandleFunc("/dashboard/products/{id}", h.DeleteProduct).Methods("DELETE")
	router.HandleFunc("/dashboard/orders", h.GetOrders).Methods("GET")
	router.HandleFunc("/dashboard/orders/{id}/status", h.UpdateOrderStatus).Methods("PUT")
	router.HandleFunc("/dashboard/categories", h.GetCategories).Methods("GET")
	router.HandleFunc("/dashboard/categories", h.CreateCategory).Methods("POST")
	router.HandleFunc("/dashboard/consistency", h.GetConsistency).Methods("GET")
	router.HandleFunc("/dashboard/location", h.ResolveLocation).Methods("GET")
	router.HandleFunc("/catalog/stores", h.SearchStores).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}

// ownerStore resolves the request's owner to their store. A missing identity
// header or an owner without a store both terminate in the access-denied
// payload; there is no retry path for the client here.
func (h *Handler) ownerStore(w http.ResponseWriter, r *http.Request) *models.Store {
	ownerID := r.Header.Get(OwnerHeader)
	if ownerID == "" {
		h.respondWithError(w, http.StatusForbidden, "Access denied")
		return nil
	}

	store, err := h.stores.StoreOwnedBy(r.Context(), ownerID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to resolve owner's store")
		h.respondWithError(w, http.StatusBadGateway, "Storefront API unavailable")
		return nil
	}
	if store == nil {
		h.logger.WithField("owner_id", ownerID).Warn("Owner has no store")
		h.respondWithError(w, http.StatusForbidden, "Access denied")
		return nil
	}
	return store
}

func (h *Handler) storeProducts(ctx context.Context, storeID string) ([]models.Product, bool, error) {
	res, err := h.cache.Get(ctx, querycache.DescProductsByStore(storeID), func(ctx context.Context) (interface{}, error) {
		return h.upstream.GetProductsByStore(storeID)
	})
	products, _ := res.Data.([]models.Product)
	if err != nil && res.Data != nil {
		return products, true, nil
	}
	return products, false, err
}

func (h *Handler) storeOrders(ctx context.Context, storeID string) ([]models.Order, bool, error) {
	res, err := h.cache.Get(ctx, querycache.DescOrdersByStore(storeID), func(ctx context.Context) (interface{}, error) {
		return h.upstream.GetOrdersByStore(storeID)
	})
	orders, _ := res.Data.([]models.Order)
	if err != nil && res.Data != nil {
		return orders, true, nil
	}
	return orders, false, err
}

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	store := h.ownerStore(w, r)
	if store == nil {
		return
	}

	products, productsStale, err := h.storeProducts(r.Context(), store.ID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load products for summary")
		h.respondWithError(w, http.StatusBadGateway, "Storefront API unavailable")
		return
	}
	orders, ordersStale, err := h.storeOrders(r.Context(), store.ID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load orders for summary")
		h.respondWithError(w, http.StatusBadGateway, "Storefront API unavailable")
		return
	}

	summary := BuildSummary(products, orders, time.Now())

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"store_id": store.ID,
		"summary":  summary,
		"stale":    productsStale || ordersStale,
	})
}

func (h *Handler) GetProducts(w http.ResponseWriter, r *http.Request) {
	store := h.ownerStore(w, r)
	if store == nil {
		return
	}

	products, stale, err := h.storeProducts(r.Context(), store.ID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load products")
		h.respondWithError(w, http.StatusBadGateway, "Storefront API unavailable")
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"products": products,
		"count":    len(products),
		"stale":    stale,
	})
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	store := h.ownerStore(w, r)
	if store == nil {
		return
	}

	var product models.Product
	if err := json.NewDecoder(r.Body).Decode(&product); err != nil {
		h.logger.WithError(err).Error("Failed to decode product request")
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(product.Name) == "" {
		h.respondWithError(w, http.StatusBadRequest, "Product name is required")
		return
	}

	// Products are always created in the owner's store, whatever the body says.
	product.StoreID = store.ID

	created, err := h.upstream.CreateProduct(&product)
	if err != nil {
		h.logger.WithError(err).Error("Failed to create product")
		h.respondWithError(w, http.StatusBadGateway, "Failed to create product")
		return
	}

	h.applyInvalidation(invalidation.ProductCreate, store.ID)

	h.respondWithJSON(w, http.StatusCreated, models.ProductResponse{
		Success: true,
		Message: "Product created",
		Product: created,
	})
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	store := h.ownerStore(w, r)
	if store == nil {
		return
	}

	productID := mux.Vars(r)["id"]

	existing, err := h.upstream.GetProduct(productID)
	if err != nil {
		if errors.Is(err, storeapi.ErrNotFound) {
			h.respondWithError(w, http.StatusNotFound, "Product not found")
			return
		}
		h.logger.WithError(err).Error("Failed to load product for update")
		h.respondWithError(w, http.StatusBadGateway, "Storefront API unavailable")
		return
	}
	if existing.StoreID != store.ID {
		h.respondWithError(w, http.StatusForbidden, "Access denied")
		return
	}

	var product models.Product
	if err := json.NewDecoder(r.Body).Decode(&product); err != nil {
		h.logger.WithError(err).Error("Failed to decode product request")
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	product.ID = productID
	product.StoreID = store.ID

	updated, err := h.upstream.UpdateProduct(&product)
	if err != nil {
		if errors.Is(err, storeapi.ErrNotFound) {
			h.respondWithError(w, http.StatusNotFound, "Product not found")
			return
		}
		h.logger.WithError(err).Error("Failed to update product")
		h.respondWithError(w, http.StatusBadGateway, "Failed to update product")
		return
	}

	h.applyInvalidation(invalidation.ProductUpdate, store.ID)

	h.respondWithJSON(w, http.StatusOK, models.ProductResponse{
		Success: true,
		Message: "Product updated",
		Product: updated,
	})
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	store := h.ownerStore(w, r)
	if store == nil {
		return
	}

	productID := mux.Vars(r)["id"]

	existing, err := h.upstream.GetProduct(productID)
	if err != nil {
		if errors.Is(err, storeapi.ErrNotFound) {
			// Already gone; deleting twice is a success, not a conflict.
			h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
				"success": true,
				"message": "Product already deleted",
			})
			return
		}
		h.logger.WithError(err).Error("Failed to load product for delete")
		h.respondWithError(w, http.StatusBadGateway, "Storefront API unavailable")
		return
	}
	if existing.StoreID != store.ID {
		h.respondWithError(w, http.StatusForbidden, "Access denied")
		return
	}

	if err := h.upstream.DeleteProduct(productID); err != nil {
		h.logger.WithError(err).Error("Failed to delete product")
		h.respondWithError(w, http.StatusBadGateway, "Failed to delete product")
		return
	}

	h.applyInvalidation(invalidation.ProductDelete, store.ID)

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Product deleted",
	})
}

func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	store := h.ownerStore(w, r)
	if store == nil {
		return
	}

	orders, stale, err := h.storeOrders(r.Context(), store.ID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load orders")
		h.respondWithError(w, http.StatusBadGateway, "Storefront API unavailable")
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"orders":  orders,
		"count":   len(orders),
		"stale":   stale,
	})
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	store := h.ownerStore(w, r)
	if store == nil {
		return
	}

	orderID := mux.Vars(r)["id"]

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.WithError(err).Error("Failed to decode status update")
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !models.ValidOrderStatus(body.Status) {
		h.respondWithError(w, http.StatusBadRequest, "Invalid order status")
		return
	}

	// The order must belong to the owner's store. The upstream has no
	// order-by-id lookup, so check against the store's order set.
	orders, err := h.upstream.GetOrdersByStore(store.ID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load orders for ownership check")
		h.respondWithError(w, http.StatusBadGateway, "Storefront API unavailable")
		return
	}
	owned := false
	for _, order := range orders {
		if order.ID == orderID {
			owned = true
			break
		}
	}
	if !owned {
		h.respondWithError(w, http.StatusForbidden, "Access denied")
		return
	}

	updated, err := h.upstream.UpdateOrderStatus(orderID, body.Status)
	if err != nil {
		if errors.Is(err, storeapi.ErrNotFound) {
			h.respondWithError(w, http.StatusNotFound, "Order not found")
			return
		}
		h.logger.WithError(err).Error("Failed to update order status")
		h.respondWithError(w, http.StatusBadGateway, "Failed to update order status")
		return
	}

	h.applyInvalidation(invalidation.OrderStatusUpdate, store.ID)

	h.respondWithJSON(w, http.StatusOK, models.OrderResponse{
		Success: true,
		Message: "Order status updated",
		Order:   updated,
	})
}

func (h *Handler) GetCategories(w http.ResponseWriter, r *http.Request) {
	res, err := h.cache.Get(r.Context(), querycache.DescCategories, func(ctx context.Context) (interface{}, error) {
		return h.upstream.GetCategories()
	})
	categories, _ := res.Data.([]models.Category)
	if err != nil && res.Data == nil {
		h.logger.WithError(err).Error("Failed to load categories")
		h.respondWithError(w, http.StatusBadGateway, "Storefront API unavailable")
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"categories": categories,
		"count":      len(categories),
		"stale":      res.Stale,
	})
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	store := h.ownerStore(w, r)
	if store == nil {
		return
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.WithError(err).Error("Failed to decode category request")
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		h.respondWithError(w, http.StatusBadRequest, "Category name is required")
		return
	}

	created, err := h.upstream.CreateCategory(body.Name)
	if err != nil {
		h.logger.WithError(err).Error("Failed to create category")
		h.respondWithError(w, http.StatusBadGateway, "Failed to create category")
		return
	}

	h.applyInvalidation(invalidation.CategoryCreate, store.ID)

	h.respondWithJSON(w, http.StatusCreated, models.CategoryResponse{
		Success:  true,
		Message:  "Category created",
		Category: created,
	})
}

func (h *Handler) GetConsistency(w http.ResponseWriter, r *http.Request) {
	store := h.ownerStore(w, r)
	if store == nil {
		return
	}

	scoped, _, err := h.storeProducts(r.Context(), store.ID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load scoped products for consistency check")
		h.respondWithError(w, http.StatusBadGateway, "Storefront API unavailable")
		return
	}

	res, err := h.cache.Get(r.Context(), querycache.DescProducts, func(ctx context.Context) (interface{}, error) {
		return h.upstream.GetProducts()
	})
	broad, _ := res.Data.([]models.Product)
	if err != nil && res.Data == nil {
		h.logger.WithError(err).Error("Failed to load broad product listing for consistency check")
		h.respondWithError(w, http.StatusBadGateway, "Storefront API unavailable")
		return
	}

	report := h.analyzer.Compare(store.ID, scoped, broad)

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"report":  report,
	})
}

func (h *Handler) ResolveLocation(w http.ResponseWriter, r *http.Request) {
	if h.geocoder == nil {
		h.respondWithError(w, http.StatusServiceUnavailable, "Geocoding not configured")
		return
	}

	lat, latErr := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if latErr != nil || lonErr != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid coordinates")
		return
	}

	location := h.geocoder.Resolve(r.Context(), lat, lon)

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"location": location,
	})
}

func (h *Handler) SearchStores(w http.ResponseWriter, r *http.Request) {
	stores, err := h.stores.SearchStores(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.logger.WithError(err).Error("Failed to search stores")
		h.respondWithError(w, http.StatusBadGateway, "Storefront API unavailable")
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"stores":  stores,
		"count":   len(stores),
	})
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	payload := map[string]interface{}{
		"status":  "healthy",
		"service": "gateway",
	}
	if h.wsHub != nil {
		payload["ws_clients"] = h.wsHub.GetClientCount()
	}
	h.respondWithJSON(w, http.StatusOK, payload)
}

// applyInvalidation runs after a mutation succeeds: local descriptors first,
// then the peer fan-out and UI push. Publish failures are logged, not
// surfaced; the local cache is already consistent.
func (h *Handler) applyInvalidation(mutation invalidation.Mutation, storeID string) {
	descs := invalidation.DescriptorsFor(mutation, storeID)
	h.cache.Invalidate(descs...)

	if h.publisher != nil {
		if err := h.publisher.PublishInvalidation(string(mutation), storeID); err != nil {
			h.logger.WithError(err).WithField("mutation", mutation).Error("Failed to publish invalidation event")
		}
	}

	if h.wsHub != nil {
		h.wsHub.Broadcast("invalidation", map[string]interface{}{
			"mutation": string(mutation),
			"store_id": storeID,
		}, "gateway")
	}
}

func (h *Handler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func (h *Handler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, map[string]interface{}{
		"success": false,
		"message": message,
	})
}
