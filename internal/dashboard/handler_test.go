package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/shopworks/storefront-gateway/internal/geocode"
	"github.com/shopworks/storefront-gateway/internal/invalidation"
	"github.com/shopworks/storefront-gateway/internal/querycache"
	"github.com/shopworks/storefront-gateway/internal/reconcile"
	"github.com/shopworks/storefront-gateway/internal/storeapi"
	"github.com/shopworks/storefront-gateway/pkg/models"
	"github.com/sirupsen/logrus"
)

type fakeUpstream struct {
	products   map[string]*models.Product
	orders     map[string]*models.Order
	categories []models.Category

	failCreate bool
	failUpdate bool

	productFetches int
	orderFetches   int
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		products: make(map[string]*models.Product),
		orders:   make(map[string]*models.Order),
	}
}

func (f *fakeUpstream) GetProducts() ([]models.Product, error) {
	f.productFetches++
	var out []models.Product
	for _, p := range f.products {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeUpstream) GetProductsByStore(storeID string) ([]models.Product, error) {
	f.productFetches++
	var out []models.Product
	for _, p := range f.products {
		if p.StoreID == storeID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeUpstream) GetProduct(productID string) (*models.Product, error) {
	p, ok := f.products[productID]
	if !ok {
		return nil, storeapi.ErrNotFound
	}
	copy := *p
	return &copy, nil
}

func (f *fakeUpstream) GetOrdersByStore(storeID string) ([]models.Order, error) {
	f.orderFetches++
	var out []models.Order
	for _, o := range f.orders {
		if o.StoreID == storeID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeUpstream) GetCategories() ([]models.Category, error) {
	return f.categories, nil
}

func (f *fakeUpstream) CreateProduct(product *models.Product) (*models.Product, error) {
	if f.failCreate {
		return nil, errors.New("upstream rejected product")
	}
	p := *product
	p.ID = fmt.Sprintf("p%d", len(f.products)+1)
	f.products[p.ID] = &p
	return &p, nil
}

func (f *fakeUpstream) UpdateProduct(product *models.Product) (*models.Product, error) {
	if f.failUpdate {
		return nil, errors.New("upstream rejected update")
	}
	if _, ok := f.products[product.ID]; !ok {
		return nil, storeapi.ErrNotFound
	}
	p := *product
	f.products[p.ID] = &p
	return &p, nil
}

func (f *fakeUpstream) DeleteProduct(productID string) error {
	// Mirrors the real client: a missing product deletes fine.
	delete(f.products, productID)
	return nil
}

func (f *fakeUpstream) UpdateOrderStatus(orderID, status string) (*models.Order, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return nil, storeapi.ErrNotFound
	}
	o.Status = status
	copy := *o
	return &copy, nil
}

func (f *fakeUpstream) CreateCategory(name string) (*models.Category, error) {
	c := models.Category{ID: fmt.Sprintf("c%d", len(f.categories)+1), Name: name}
	f.categories = append(f.categories, c)
	return &c, nil
}

type fakeResolver struct {
	stores map[string]*models.Store // ownerID -> store
}

func (f *fakeResolver) StoreOwnedBy(ctx context.Context, ownerID string) (*models.Store, error) {
	return f.stores[ownerID], nil
}

func (f *fakeResolver) SearchStores(ctx context.Context, query string) ([]models.Store, error) {
	var out []models.Store
	for _, s := range f.stores {
		if query == "" || strings.Contains(strings.ToLower(s.Name), strings.ToLower(query)) {
			out = append(out, *s)
		}
	}
	return out, nil
}

type recordingPublisher struct {
	published []string
}

func (r *recordingPublisher) PublishInvalidation(mutation, storeID string) error {
	r.published = append(r.published, mutation)
	return nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

type fixture struct {
	handler   *Handler
	upstream  *fakeUpstream
	cache     *querycache.Cache
	publisher *recordingPublisher
	router    *mux.Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	upstream := newFakeUpstream()
	cache := querycache.New(querycache.Config{}, testLogger())
	t.Cleanup(cache.Close)

	resolver := &fakeResolver{stores: map[string]*models.Store{
		"owner-1": {ID: "s1", Name: "Everest Electronics", OwnerID: "owner-1"},
	}}

	handler := NewHandler(upstream, cache, resolver, reconcile.NewAnalyzer(testLogger()), testLogger())
	publisher := &recordingPublisher{}
	handler.SetPublisher(publisher)

	router := mux.NewRouter()
	handler.RegisterRoutes(router)

	return &fixture{
		handler:   handler,
		upstream:  upstream,
		cache:     cache,
		publisher: publisher,
		router:    router,
	}
}

func (f *fixture) do(t *testing.T, method, path, owner string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewBuffer(data)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if owner != "" {
		req.Header.Set(OwnerHeader, owner)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("Response is not JSON: %v (%s)", err, rec.Body.String())
	}
	return out
}

func TestSummaryRevenueSkipsUnparseable(t *testing.T) {
	f := newFixture(t)
	f.upstream.orders["o1"] = &models.Order{ID: "o1", StoreID: "s1", Status: "pending", TotalAmount: "100.50"}
	f.upstream.orders["o2"] = &models.Order{ID: "o2", StoreID: "s1", Status: "delivered", TotalAmount: "garbage"}
	f.upstream.orders["o3"] = &models.Order{ID: "o3", StoreID: "s1", Status: "delivered", TotalAmount: "49.50"}

	rec := f.do(t, "GET", "/dashboard/summary", "owner-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	summary := body["summary"].(map[string]interface{})
	if revenue := summary["total_revenue"].(float64); revenue != 150.00 {
		t.Errorf("Expected revenue 150.00 with the unparseable amount skipped, got %v", revenue)
	}
	if pending := summary["pending_orders"].(float64); pending != 1 {
		t.Errorf("Expected 1 pending order, got %v", pending)
	}
}

func TestProductEditRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.upstream.products["p1"] = &models.Product{ID: "p1", StoreID: "s1", Name: "Phone", Price: "299.99"}

	// Warm the cache.
	rec := f.do(t, "GET", "/dashboard/products", "owner-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	rec = f.do(t, "PUT", "/dashboard/products/p1", "owner-1",
		models.Product{Name: "Phone Pro", Price: "349.99"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Update expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// The edit must be visible on the next read: the update invalidated the
	// snapshot, so this read refetches.
	rec = f.do(t, "GET", "/dashboard/products", "owner-1", nil)
	body := decodeBody(t, rec)
	products := body["products"].([]interface{})
	if len(products) != 1 {
		t.Fatalf("Expected 1 product, got %d", len(products))
	}
	p := products[0].(map[string]interface{})
	if p["name"] != "Phone Pro" || p["price"] != "349.99" {
		t.Errorf("Edit did not round-trip: %v", p)
	}

	if len(f.publisher.published) != 1 || f.publisher.published[0] != string(invalidation.ProductUpdate) {
		t.Errorf("Expected one product.update publication, got %v", f.publisher.published)
	}
}

func TestDoubleDeleteIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.upstream.products["p1"] = &models.Product{ID: "p1", StoreID: "s1", Name: "Phone"}

	rec := f.do(t, "DELETE", "/dashboard/products/p1", "owner-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("First delete expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, "DELETE", "/dashboard/products/p1", "owner-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Second delete expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Errorf("Second delete should report success, got %v", body)
	}
}

func TestFailedCreateLeavesCacheUntouched(t *testing.T) {
	f := newFixture(t)
	f.upstream.products["p1"] = &models.Product{ID: "p1", StoreID: "s1", Name: "Phone"}

	// Warm the cache, then count upstream fetches.
	f.do(t, "GET", "/dashboard/products", "owner-1", nil)
	fetchesBefore := f.upstream.productFetches

	f.upstream.failCreate = true
	rec := f.do(t, "POST", "/dashboard/products", "owner-1",
		models.Product{Name: "Doomed", Price: "1.00"})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("Expected 502 for failed create, got %d", rec.Code)
	}

	// A failed mutation must not invalidate: the next read serves the cached
	// snapshot without refetching.
	rec = f.do(t, "GET", "/dashboard/products", "owner-1", nil)
	body := decodeBody(t, rec)
	products := body["products"].([]interface{})
	if len(products) != 1 {
		t.Errorf("Cache content changed after failed create: %v", products)
	}
	if f.upstream.productFetches != fetchesBefore {
		t.Errorf("Failed create triggered a refetch: %d -> %d", fetchesBefore, f.upstream.productFetches)
	}
	if len(f.publisher.published) != 0 {
		t.Errorf("Failed create must not publish invalidations, got %v", f.publisher.published)
	}
}

func TestCreateProductForcesOwnersStore(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/dashboard/products", "owner-1",
		models.Product{Name: "Phone", Price: "10.00", StoreID: "someone-elses-store"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	for _, p := range f.upstream.products {
		if p.StoreID != "s1" {
			t.Errorf("Product created in wrong store: %s", p.StoreID)
		}
	}
}

func TestAccessDenied(t *testing.T) {
	f := newFixture(t)
	f.upstream.products["p9"] = &models.Product{ID: "p9", StoreID: "other-store", Name: "Not yours"}

	// No identity header.
	rec := f.do(t, "GET", "/dashboard/summary", "", nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("Missing identity expected 403, got %d", rec.Code)
	}

	// Owner with no store.
	rec = f.do(t, "GET", "/dashboard/summary", "owner-unknown", nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("Owner without store expected 403, got %d", rec.Code)
	}

	// Another store's product.
	rec = f.do(t, "PUT", "/dashboard/products/p9", "owner-1", models.Product{Name: "Hijack"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("Foreign product update expected 403, got %d", rec.Code)
	}
	rec = f.do(t, "DELETE", "/dashboard/products/p9", "owner-1", nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("Foreign product delete expected 403, got %d", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["success"] != false || body["message"] != "Access denied" {
		t.Errorf("Unexpected access-denied payload: %v", body)
	}
}

func TestUpdateOrderStatus(t *testing.T) {
	f := newFixture(t)
	f.upstream.orders["o1"] = &models.Order{ID: "o1", StoreID: "s1", Status: "pending", TotalAmount: "10.00"}
	f.upstream.orders["o2"] = &models.Order{ID: "o2", StoreID: "other-store", Status: "pending", TotalAmount: "10.00"}

	// Invalid status rejected before any upstream call.
	rec := f.do(t, "PUT", "/dashboard/orders/o1/status", "owner-1", map[string]string{"status": "teleported"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Invalid status expected 400, got %d", rec.Code)
	}

	// Another store's order.
	rec = f.do(t, "PUT", "/dashboard/orders/o2/status", "owner-1", map[string]string{"status": "shipped"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("Foreign order expected 403, got %d", rec.Code)
	}

	rec = f.do(t, "PUT", "/dashboard/orders/o1/status", "owner-1", map[string]string{"status": "shipped"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if f.upstream.orders["o1"].Status != "shipped" {
		t.Errorf("Status not updated upstream: %s", f.upstream.orders["o1"].Status)
	}
	if len(f.publisher.published) != 1 || f.publisher.published[0] != string(invalidation.OrderStatusUpdate) {
		t.Errorf("Expected order.status.update publication, got %v", f.publisher.published)
	}
}

func TestSearchStoresEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/catalog/stores?search=everest", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if count := body["count"].(float64); count != 1 {
		t.Errorf("Expected 1 matching store, got %v", count)
	}

	rec = f.do(t, "GET", "/catalog/stores", "", nil)
	body = decodeBody(t, rec)
	if count := body["count"].(float64); count != 1 {
		t.Errorf("Empty query should return full listing, got %v", count)
	}
}

func TestConsistencyEndpoint(t *testing.T) {
	f := newFixture(t)
	f.upstream.products["p1"] = &models.Product{ID: "p1", StoreID: "s1", Name: "Phone", Price: "10.00"}

	rec := f.do(t, "GET", "/dashboard/consistency", "owner-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	report := body["report"].(map[string]interface{})
	if score := report["consistency_score"].(float64); score != 100 {
		t.Errorf("Identical snapshots expected score 100, got %v", score)
	}
}

func TestResolveLocationValidation(t *testing.T) {
	f := newFixture(t)

	// No geocoder configured.
	rec := f.do(t, "GET", "/dashboard/location?lat=1&lon=2", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 without geocoder, got %d", rec.Code)
	}

	f.handler.SetGeocoder(stubGeocoder{})

	rec = f.do(t, "GET", "/dashboard/location?lat=abc&lon=2", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad coordinates, got %d", rec.Code)
	}

	rec = f.do(t, "GET", "/dashboard/location?lat=26.7271&lon=87.2751", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	location := body["location"].(map[string]interface{})
	if location["map_link"] != "https://maps.google.com/?q=26.7271,87.2751" {
		t.Errorf("Unexpected map link: %v", location["map_link"])
	}
}

type stubGeocoder struct{}

func (stubGeocoder) Resolve(ctx context.Context, lat, lon float64) geocode.Location {
	return geocode.Location{
		Latitude:  lat,
		Longitude: lon,
		Address:   geocode.AddressUnavailable,
		MapLink:   geocode.MapLink(lat, lon),
	}
}
