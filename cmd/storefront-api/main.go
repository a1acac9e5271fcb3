package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/shopworks/storefront-gateway/pkg/models"
	"github.com/sirupsen/logrus"
)

// StorefrontAPI is the authoritative store. The gateway never talks to the
// database directly; everything goes through this HTTP surface.
type StorefrontAPI struct {
	db     *sql.DB
	logger *logrus.Logger
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbUser := getEnv("DB_USER", "storefront")
	dbPassword := getEnv("DB_PASSWORD", "storefront")
	dbName := getEnv("DB_NAME", "storefront")

	port := getEnv("STOREFRONT_API_PORT", "8081")

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		dbHost, dbPort, dbUser, dbPassword, dbName)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	// Wait for database to be ready
	for i := 0; i < 30; i++ {
		if err := db.Ping(); err == nil {
			logger.Info("Database connection established")
			break
		}
		logger.Info("Waiting for database...")
		time.Sleep(2 * time.Second)
	}

	if err := createTables(db); err != nil {
		logger.WithError(err).Fatal("Failed to create tables")
	}

	service := &StorefrontAPI{
		db:     db,
		logger: logger,
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", service.HealthCheck).Methods("GET")
	router.HandleFunc("/api/stores", service.ListStores).Methods("GET")
	router.HandleFunc("/api/stores", service.CreateStore).Methods("POST")
	router.HandleFunc("/api/stores/{id}", service.GetStore).Methods("GET")
	router.HandleFunc("/api/stores/{id}", service.UpdateStore).Methods("PUT")
	router.HandleFunc("/api/products", service.ListProducts).Methods("GET")
	router.HandleFunc("/api/products", service.CreateProduct).Methods("POST")
	router.HandleFunc("/api/products/store/{storeID}", service.ListProductsByStore).Methods("GET")
	router.HandleFunc("/api/products/{id}", service.GetProduct).Methods("GET")
	router.HandleFunc("/api/products/{id}", service.UpdateProduct).Methods("PUT")
	router.HandleFunc("/api/products/{id}", service.DeleteProduct).Methods("DELETE")
	router.HandleFunc("/api/orders", service.CreateOrder).Methods("POST")
	router.HandleFunc("/api/orders/store/{storeID}", service.ListOrdersByStore).Methods("GET")
	router.HandleFunc("/api/orders/{id}/status", service.UpdateOrderStatus).Methods("PUT")
	router.HandleFunc("/api/categories", service.ListCategories).Methods("GET")
	router.HandleFunc("/api/categories", service.CreateCategory).Methods("POST")

	router.Use(loggingMiddleware(logger))

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("port", port).Info("Starting storefront API")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server gracefully stopped")
}

func (s *StorefrontAPI) ListStores(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.Query(`
		SELECT id, name, description, address, phone, website, logo, rating, owner_id
		FROM stores ORDER BY name
	`)
	if err != nil {
		s.logger.WithError(err).Error("Failed to query stores")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to get stores")
		return
	}
	defer rows.Close()

	stores := []models.Store{}
	for rows.Next() {
		var store models.Store
		if err := rows.Scan(&store.ID, &store.Name, &store.Description, &store.Address,
			&store.Phone, &store.Website, &store.Logo, &store.Rating, &store.OwnerID); err != nil {
			s.logger.WithError(err).Error("Failed to scan store row")
			s.respondWithError(w, http.StatusInternalServerError, "Failed to get stores")
			return
		}
		stores = append(stores, store)
	}

	s.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"stores":  stores,
		"count":   len(stores),
	})
}

func (s *StorefrontAPI) GetStore(w http.ResponseWriter, r *http.Request) {
	storeID := mux.Vars(r)["id"]

	var store models.Store
	err := s.db.QueryRow(`
		SELECT id, name, description, address, phone, website, logo, rating, owner_id
		FROM stores WHERE id = $1
	`, storeID).Scan(&store.ID, &store.Name, &store.Description, &store.Address,
		&store.Phone, &store.Website, &store.Logo, &store.Rating, &store.OwnerID)
	if err == sql.ErrNoRows {
		s.respondWithError(w, http.StatusNotFound, "Store not found")
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("Failed to get store")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to get store")
		return
	}

	s.respondWithJSON(w, http.StatusOK, store)
}

func (s *StorefrontAPI) CreateStore(w http.ResponseWriter, r *http.Request) {
	var store models.Store
	if err := json.NewDecoder(r.Body).Decode(&store); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if store.ID == "" {
		store.ID = uuid.New().String()
	}

	_, err := s.db.Exec(`
		INSERT INTO stores (id, name, description, address, phone, website, logo, rating, owner_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, store.ID, store.Name, store.Description, store.Address,
		store.Phone, store.Website, store.Logo, store.Rating, store.OwnerID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to insert store")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to create store")
		return
	}

	s.respondWithJSON(w, http.StatusCreated, models.StoreResponse{
		Success: true,
		Message: "Store created",
		Store:   &store,
	})
}

func (s *StorefrontAPI) UpdateStore(w http.ResponseWriter, r *http.Request) {
	storeID := mux.Vars(r)["id"]

	var store models.Store
	if err := json.NewDecoder(r.Body).Decode(&store); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	store.ID = storeID

	result, err := s.db.Exec(`
		UPDATE stores SET name = $2, description = $3, address = $4, phone = $5,
			website = $6, logo = $7, rating = $8
		WHERE id = $1
	`, store.ID, store.Name, store.Description, store.Address,
		store.Phone, store.Website, store.Logo, store.Rating)
	if err != nil {
		s.logger.WithError(err).Error("Failed to update store")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to update store")
		return
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		s.respondWithError(w, http.StatusNotFound, "Store not found")
		return
	}

	s.respondWithJSON(w, http.StatusOK, models.StoreResponse{
		Success: true,
		Message: "Store updated",
		Store:   &store,
	})
}

const productColumns = `id, store_id, category_id, name, description, price, original_price,
	stock, images, is_fast_sell, is_on_offer, offer_percentage, offer_end_date,
	specifications, features, tags, is_active, created_at, updated_at`

func scanProduct(scanner interface {
	Scan(dest ...interface{}) error
}) (models.Product, error) {
	var p models.Product
	var images, specifications, features, tags []byte
	var offerEndDate sql.NullTime

	err := scanner.Scan(&p.ID, &p.StoreID, &p.CategoryID, &p.Name, &p.Description,
		&p.Price, &p.OriginalPrice, &p.Stock, &images, &p.IsFastSell, &p.IsOnOffer,
		&p.OfferPercentage, &offerEndDate, &specifications, &features, &tags,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}

	if offerEndDate.Valid {
		t := offerEndDate.Time
		p.OfferEndDate = &t
	}
	json.Unmarshal(images, &p.Images)
	json.Unmarshal(specifications, &p.Specifications)
	json.Unmarshal(features, &p.Features)
	json.Unmarshal(tags, &p.Tags)

	return p, nil
}

func (s *StorefrontAPI) queryProducts(query string, args ...interface{}) ([]models.Product, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

func (s *StorefrontAPI) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.queryProducts(`SELECT ` + productColumns + ` FROM products ORDER BY created_at DESC`)
	if err != nil {
		s.logger.WithError(err).Error("Failed to query products")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to get products")
		return
	}

	s.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"products": products,
		"count":    len(products),
	})
}

func (s *StorefrontAPI) ListProductsByStore(w http.ResponseWriter, r *http.Request) {
	storeID := mux.Vars(r)["storeID"]

	products, err := s.queryProducts(
		`SELECT `+productColumns+` FROM products WHERE store_id = $1 ORDER BY created_at DESC`, storeID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to query products by store")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to get products")
		return
	}

	s.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"products": products,
		"count":    len(products),
	})
}

func (s *StorefrontAPI) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["id"]

	row := s.db.QueryRow(`SELECT `+productColumns+` FROM products WHERE id = $1`, productID)
	product, err := scanProduct(row)
	if err == sql.ErrNoRows {
		s.respondWithError(w, http.StatusNotFound, "Product not found")
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("Failed to get product")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to get product")
		return
	}

	s.respondWithJSON(w, http.StatusOK, product)
}

func (s *StorefrontAPI) saveProduct(p *models.Product, insert bool) error {
	images, _ := json.Marshal(p.Images)
	specifications, _ := json.Marshal(p.Specifications)
	features, _ := json.Marshal(p.Features)
	tags, _ := json.Marshal(p.Tags)

	var offerEndDate interface{}
	if p.OfferEndDate != nil {
		offerEndDate = *p.OfferEndDate
	}

	if insert {
		_, err := s.db.Exec(`
			INSERT INTO products (id, store_id, category_id, name, description, price,
				original_price, stock, images, is_fast_sell, is_on_offer, offer_percentage,
				offer_end_date, specifications, features, tags, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		`, p.ID, p.StoreID, p.CategoryID, p.Name, p.Description, p.Price, p.OriginalPrice,
			p.Stock, images, p.IsFastSell, p.IsOnOffer, p.OfferPercentage, offerEndDate,
			specifications, features, tags, p.IsActive, p.CreatedAt, p.UpdatedAt)
		return err
	}

	result, err := s.db.Exec(`
		UPDATE products SET store_id = $2, category_id = $3, name = $4, description = $5,
			price = $6, original_price = $7, stock = $8, images = $9, is_fast_sell = $10,
			is_on_offer = $11, offer_percentage = $12, offer_end_date = $13,
			specifications = $14, features = $15, tags = $16, is_active = $17, updated_at = $18
		WHERE id = $1
	`, p.ID, p.StoreID, p.CategoryID, p.Name, p.Description, p.Price, p.OriginalPrice,
		p.Stock, images, p.IsFastSell, p.IsOnOffer, p.OfferPercentage, offerEndDate,
		specifications, features, tags, p.IsActive, p.UpdatedAt)
	if err != nil {
		return err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *StorefrontAPI) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var product models.Product
	if err := json.NewDecoder(r.Body).Decode(&product); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	now := time.Now()
	product.CreatedAt = now
	product.UpdatedAt = now

	if err := s.saveProduct(&product, true); err != nil {
		s.logger.WithError(err).Error("Failed to insert product")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to create product")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"product_id": product.ID,
		"store_id":   product.StoreID,
	}).Info("Product created")

	s.respondWithJSON(w, http.StatusCreated, models.ProductResponse{
		Success: true,
		Message: "Product created",
		Product: &product,
	})
}

func (s *StorefrontAPI) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["id"]

	var product models.Product
	if err := json.NewDecoder(r.Body).Decode(&product); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	product.ID = productID
	product.UpdatedAt = time.Now()

	if err := s.saveProduct(&product, false); err != nil {
		if err == sql.ErrNoRows {
			s.respondWithError(w, http.StatusNotFound, "Product not found")
			return
		}
		s.logger.WithError(err).Error("Failed to update product")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to update product")
		return
	}

	s.respondWithJSON(w, http.StatusOK, models.ProductResponse{
		Success: true,
		Message: "Product updated",
		Product: &product,
	})
}

func (s *StorefrontAPI) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["id"]

	result, err := s.db.Exec(`DELETE FROM products WHERE id = $1`, productID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to delete product")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to delete product")
		return
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		s.respondWithError(w, http.StatusNotFound, "Product not found")
		return
	}

	s.logger.WithField("product_id", productID).Info("Product deleted")

	s.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Product deleted",
	})
}

func (s *StorefrontAPI) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var order models.Order
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}
	if !models.ValidOrderStatus(order.Status) {
		s.respondWithError(w, http.StatusBadRequest, "Invalid order status")
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		s.respondWithError(w, http.StatusInternalServerError, "Failed to save order")
		return
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO orders (id, store_id, customer_name, phone, total_amount, status, shipping_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, order.ID, order.StoreID, order.CustomerName, order.Phone,
		order.TotalAmount, order.Status, order.ShippingAddress, order.CreatedAt)
	if err != nil {
		s.logger.WithError(err).Error("Failed to insert order")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to save order")
		return
	}

	for _, item := range order.Items {
		_, err = tx.Exec(`
			INSERT INTO order_items (order_id, product_id, name, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)
		`, order.ID, item.ProductID, item.Name, item.Quantity, item.UnitPrice)
		if err != nil {
			s.logger.WithError(err).Error("Failed to insert order item")
			s.respondWithError(w, http.StatusInternalServerError, "Failed to save order")
			return
		}
	}

	if err := tx.Commit(); err != nil {
		s.respondWithError(w, http.StatusInternalServerError, "Failed to save order")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":     order.ID,
		"store_id":     order.StoreID,
		"total_amount": order.TotalAmount,
	}).Info("Order created")

	s.respondWithJSON(w, http.StatusCreated, models.OrderResponse{
		Success: true,
		Message: "Order created",
		Order:   &order,
	})
}

func (s *StorefrontAPI) ListOrdersByStore(w http.ResponseWriter, r *http.Request) {
	storeID := mux.Vars(r)["storeID"]

	rows, err := s.db.Query(`
		SELECT id, store_id, customer_name, phone, total_amount, status, shipping_address, created_at
		FROM orders WHERE store_id = $1 ORDER BY created_at DESC
	`, storeID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to query orders")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to get orders")
		return
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var order models.Order
		if err := rows.Scan(&order.ID, &order.StoreID, &order.CustomerName, &order.Phone,
			&order.TotalAmount, &order.Status, &order.ShippingAddress, &order.CreatedAt); err != nil {
			s.logger.WithError(err).Error("Failed to scan order row")
			s.respondWithError(w, http.StatusInternalServerError, "Failed to get orders")
			return
		}
		orders = append(orders, order)
	}

	for i := range orders {
		itemRows, err := s.db.Query(`
			SELECT product_id, name, quantity, unit_price
			FROM order_items WHERE order_id = $1
		`, orders[i].ID)
		if err != nil {
			s.logger.WithError(err).Error("Failed to query order items")
			s.respondWithError(w, http.StatusInternalServerError, "Failed to get orders")
			return
		}
		for itemRows.Next() {
			var item models.OrderItem
			if err := itemRows.Scan(&item.ProductID, &item.Name, &item.Quantity, &item.UnitPrice); err != nil {
				itemRows.Close()
				s.respondWithError(w, http.StatusInternalServerError, "Failed to get orders")
				return
			}
			orders[i].Items = append(orders[i].Items, item)
		}
		itemRows.Close()
	}

	s.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"orders":  orders,
		"count":   len(orders),
	})
}

func (s *StorefrontAPI) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["id"]

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !models.ValidOrderStatus(body.Status) {
		s.respondWithError(w, http.StatusBadRequest, "Invalid order status")
		return
	}

	var order models.Order
	err := s.db.QueryRow(`
		UPDATE orders SET status = $2 WHERE id = $1
		RETURNING id, store_id, customer_name, phone, total_amount, status, shipping_address, created_at
	`, orderID, body.Status).Scan(&order.ID, &order.StoreID, &order.CustomerName, &order.Phone,
		&order.TotalAmount, &order.Status, &order.ShippingAddress, &order.CreatedAt)
	if err == sql.ErrNoRows {
		s.respondWithError(w, http.StatusNotFound, "Order not found")
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("Failed to update order status")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to update order status")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"order_id": orderID,
		"status":   body.Status,
	}).Info("Order status updated")

	s.respondWithJSON(w, http.StatusOK, models.OrderResponse{
		Success: true,
		Message: "Order status updated",
		Order:   &order,
	})
}

func (s *StorefrontAPI) ListCategories(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.Query(`SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		s.logger.WithError(err).Error("Failed to query categories")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to get categories")
		return
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var category models.Category
		if err := rows.Scan(&category.ID, &category.Name); err != nil {
			s.respondWithError(w, http.StatusInternalServerError, "Failed to get categories")
			return
		}
		categories = append(categories, category)
	}

	s.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"categories": categories,
		"count":      len(categories),
	})
}

func (s *StorefrontAPI) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var category models.Category
	if err := json.NewDecoder(r.Body).Decode(&category); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if category.Name == "" {
		s.respondWithError(w, http.StatusBadRequest, "Category name is required")
		return
	}
	if category.ID == "" {
		category.ID = uuid.New().String()
	}

	_, err := s.db.Exec(`INSERT INTO categories (id, name) VALUES ($1, $2)`, category.ID, category.Name)
	if err != nil {
		s.logger.WithError(err).Error("Failed to insert category")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to create category")
		return
	}

	s.respondWithJSON(w, http.StatusCreated, models.CategoryResponse{
		Success:  true,
		Message:  "Category created",
		Category: &category,
	})
}

func (s *StorefrontAPI) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "unhealthy",
			"service": "storefront-api",
			"error":   "database connection failed",
		})
		return
	}

	s.respondWithJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "storefront-api",
	})
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS stores (
			id VARCHAR(255) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			phone VARCHAR(50) NOT NULL DEFAULT '',
			website VARCHAR(255) NOT NULL DEFAULT '',
			logo TEXT NOT NULL DEFAULT '',
			rating DECIMAL(3,2) NOT NULL DEFAULT 0,
			owner_id VARCHAR(255) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS categories (
			id VARCHAR(255) PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id VARCHAR(255) PRIMARY KEY,
			store_id VARCHAR(255) NOT NULL REFERENCES stores(id),
			category_id VARCHAR(255) NOT NULL DEFAULT '',
			name VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price VARCHAR(50) NOT NULL,
			original_price VARCHAR(50) NOT NULL DEFAULT '',
			stock INTEGER NOT NULL DEFAULT 0,
			images JSONB NOT NULL DEFAULT '[]',
			is_fast_sell BOOLEAN NOT NULL DEFAULT FALSE,
			is_on_offer BOOLEAN NOT NULL DEFAULT FALSE,
			offer_percentage INTEGER NOT NULL DEFAULT 0,
			offer_end_date TIMESTAMP,
			specifications JSONB NOT NULL DEFAULT '[]',
			features JSONB NOT NULL DEFAULT '[]',
			tags JSONB NOT NULL DEFAULT '[]',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id VARCHAR(255) PRIMARY KEY,
			store_id VARCHAR(255) NOT NULL REFERENCES stores(id),
			customer_name VARCHAR(255) NOT NULL DEFAULT '',
			phone VARCHAR(50) NOT NULL DEFAULT '',
			total_amount VARCHAR(50) NOT NULL,
			status VARCHAR(50) NOT NULL,
			shipping_address TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			id SERIAL PRIMARY KEY,
			order_id VARCHAR(255) NOT NULL REFERENCES orders(id),
			product_id VARCHAR(255) NOT NULL,
			name VARCHAR(255) NOT NULL DEFAULT '',
			quantity INTEGER NOT NULL,
			unit_price VARCHAR(50) NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_products_store_id ON products(store_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_store_id ON orders(store_id)`,
		`CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

func (s *StorefrontAPI) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func (s *StorefrontAPI) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]interface{}{
		"success": false,
		"message": message,
	})
}

func loggingMiddleware(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			logger.WithFields(logrus.Fields{
				"method": r.Method,
				"path":   r.URL.Path,
				"remote": r.RemoteAddr,
			}).Info("Request received")

			next.ServeHTTP(w, r)

			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start).Milliseconds(),
			}).Info("Request completed")
		})
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
