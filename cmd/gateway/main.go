package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopworks/storefront-gateway/internal/catalog"
	"github.com/shopworks/storefront-gateway/internal/dashboard"
	"github.com/shopworks/storefront-gateway/internal/events"
	"github.com/shopworks/storefront-gateway/internal/geocode"
	"github.com/shopworks/storefront-gateway/internal/querycache"
	"github.com/shopworks/storefront-gateway/internal/reconcile"
	"github.com/shopworks/storefront-gateway/internal/storeapi"
	"github.com/shopworks/storefront-gateway/internal/websocket"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	port := getEnv("GATEWAY_PORT", "8080")
	storefrontURL := getEnv("STOREFRONT_API_URL", "http://localhost:8081")
	kafkaBrokers := getEnv("KAFKA_BROKERS", "")
	nominatimURL := getEnv("NOMINATIM_URL", "")
	gatewayID := getEnv("GATEWAY_ID", uuid.New().String())
	ordersPollInterval := getDurationEnv("ORDERS_POLL_INTERVAL", 30*time.Second, logger)
	cacheTTL := getDurationEnv("CACHE_TTL", 5*time.Minute, logger)

	upstream := storeapi.NewClient(storefrontURL, logger)
	cache := querycache.New(querycache.Config{TTL: cacheTTL}, logger)
	browser := catalog.NewBrowser(cache, upstream, logger)
	analyzer := reconcile.NewAnalyzer(logger)

	handler := dashboard.NewHandler(upstream, cache, browser, analyzer, logger)
	handler.SetGeocoder(geocode.NewClient(nominatimURL, logger))

	wsHub := websocket.NewHub(logger)
	wsHub.SetFocusHandler(cache.TriggerFocus)
	go wsHub.Run()
	handler.SetWebSocketHub(wsHub)

	// Kafka is optional: a single-replica deployment invalidates locally only.
	var producer *events.KafkaProducer
	var consumer *events.KafkaConsumerWithRetry
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()

	if kafkaBrokers != "" {
		var err error
		producer, err = events.NewKafkaProducer(kafkaBrokers, gatewayID, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create Kafka producer")
		}
		defer producer.Close()
		handler.SetPublisher(producer)

		applier := events.NewCacheApplier(cache, gatewayID, logger)
		applier.SetBroadcaster(wsHub)
		consumer, err = events.NewKafkaConsumerWithRetry(kafkaBrokers, "gateway-"+gatewayID, applier, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create Kafka consumer")
		}
		defer consumer.Close()

		go func() {
			if err := consumer.Start(consumerCtx); err != nil {
				logger.WithError(err).Error("Invalidation consumer stopped")
			}
		}()
		logger.WithField("brokers", kafkaBrokers).Info("Peer invalidation bus enabled")
	} else {
		logger.Info("KAFKA_BROKERS not configured - peer invalidation disabled")
	}

	registerPollers(cache, upstream, ordersPollInterval, logger)

	router := mux.NewRouter()
	handler.RegisterRoutes(router)
	router.HandleFunc("/ws", wsHub.HandleWebSocket)

	router.Use(corsMiddleware())
	router.Use(loggingMiddleware(logger))

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("port", port).Info("Starting dashboard gateway")
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

	stopConsumer()
	cache.Close()

	logger.Info("Server gracefully stopped")
}

// registerPollers sets up background refresh. The broad collections refetch
// on window focus; each known store's orders also poll so new orders appear
// on the dashboard without a manual reload.
func registerPollers(cache *querycache.Cache, upstream *storeapi.Client, ordersPollInterval time.Duration, logger *logrus.Logger) {
	cache.Register(querycache.Registration{
		Descriptor: querycache.DescStores,
		Fetch: func(ctx context.Context) (interface{}, error) {
			return upstream.GetStores()
		},
		RefetchOnFocus: true,
	})
	cache.Register(querycache.Registration{
		Descriptor: querycache.DescProducts,
		Fetch: func(ctx context.Context) (interface{}, error) {
			return upstream.GetProducts()
		},
		RefetchOnFocus: true,
	})
	cache.Register(querycache.Registration{
		Descriptor: querycache.DescCategories,
		Fetch: func(ctx context.Context) (interface{}, error) {
			return upstream.GetCategories()
		},
		RefetchOnFocus: true,
	})

	stores, err := upstream.GetStores()
	if err != nil {
		logger.WithError(err).Warn("Could not list stores at startup - order polling starts empty")
		return
	}

	for _, store := range stores {
		storeID := store.ID
		cache.Register(querycache.Registration{
			Descriptor: querycache.DescOrdersByStore(storeID),
			Fetch: func(ctx context.Context) (interface{}, error) {
				return upstream.GetOrdersByStore(storeID)
			},
			PollInterval:   ordersPollInterval,
			RefetchOnFocus: true,
		})
		cache.Register(querycache.Registration{
			Descriptor: querycache.DescProductsByStore(storeID),
			Fetch: func(ctx context.Context) (interface{}, error) {
				return upstream.GetProductsByStore(storeID)
			},
			RefetchOnFocus: true,
		})
	}

	logger.WithFields(logrus.Fields{
		"stores":   len(stores),
		"interval": ordersPollInterval.String(),
	}).Info("Order polling registered")
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

func corsMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Allow all origins for development
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Owner-ID")

			// Handle preflight requests
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration, logger *logrus.Logger) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		logger.WithField(key, value).Warn("Invalid duration, using default")
		return defaultValue
	}
	return d
}
