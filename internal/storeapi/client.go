package storeapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/shopworks/storefront-gateway/internal/breaker"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when the upstream reports 404 for an entity.
var ErrNotFound = errors.New("not found in storefront API")

// Client talks to the upstream storefront REST API, the authority for all
// catalog and order data. Each collection gets its own circuit breaker so a
// broken orders endpoint does not take product reads down with it.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
	breakers   map[string]*breaker.Breaker
}

func NewClient(baseURL string, logger *logrus.Logger) *Client {
	breakers := make(map[string]*breaker.Breaker)
	for _, name := range []string{"stores", "products", "orders", "categories"} {
		breakers[name] = breaker.New(breaker.Config{
			Name:        "storefront-api-" + name,
			MaxFailures: 5,
			Cooldown:    30 * time.Second,
			MaxProbes:   1,
		}, logger)
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:   logger,
		breakers: breakers,
	}
}

func (c *Client) guard(collection string) *breaker.Breaker {
	return c.breakers[collection]
}

// BreakerMetrics exposes per-collection breaker state for the health endpoint.
func (c *Client) BreakerMetrics() map[string]interface{} {
	metrics := make(map[string]interface{})
	for name, b := range c.breakers {
		metrics[name] = b.Metrics()
	}
	return metrics
}
