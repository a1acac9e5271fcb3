package querycache

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// FetchFunc loads the current result set for a descriptor from the upstream.
type FetchFunc func(ctx context.Context) (interface{}, error)

// Result is what consumers get back from a read. When Stale is true the data
// is the last good snapshot and the accompanying error describes why a fresh
// fetch failed.
type Result struct {
	Data      interface{}
	FetchedAt time.Time
	Stale     bool
}

type entry struct {
	data      interface{}
	fetchedAt time.Time
	hasData   bool
	invalid   bool

	// version is bumped on every invalidation. A fetch that began before the
	// bump must not overwrite the entry (last-write-wins per descriptor).
	version uint64

	// registration state
	fetch          FetchFunc
	refetchOnFocus bool
	pollStop       chan struct{}
}

// Cache is the process-wide read cache, keyed by descriptor. All collections
// the gateway serves are snapshots of upstream state held here; mutations
// never write to it directly, they only invalidate.
type Cache struct {
	mutex   sync.Mutex
	entries map[string]*entry
	group   singleflight.Group
	ttl     time.Duration
	logger  *logrus.Logger
	wg      sync.WaitGroup
	closed  bool
}

type Config struct {
	// TTL bounds staleness for descriptors nobody invalidates or polls.
	// Zero means snapshots stay fresh until explicitly invalidated.
	TTL time.Duration
}

func New(config Config, logger *logrus.Logger) *Cache {
	return &Cache{
		entries: make(map[string]*entry),
		ttl:     config.TTL,
		logger:  logger,
	}
}

func (c *Cache) ensureLocked(key string) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	return e
}

// Get returns the cached result for the descriptor, fetching when the entry
// is absent, past its TTL, or invalidated. Concurrent Gets for one descriptor
// coalesce into a single in-flight fetch. A failed fetch surfaces the error
// together with the last good snapshot (stale-while-error); cached data is
// never cleared by an error.
func (c *Cache) Get(ctx context.Context, desc Descriptor, fetch FetchFunc) (Result, error) {
	key := desc.Key()

	c.mutex.Lock()
	e := c.ensureLocked(key)
	if e.hasData && !e.invalid && (c.ttl <= 0 || time.Since(e.fetchedAt) < c.ttl) {
		res := Result{Data: e.data, FetchedAt: e.fetchedAt}
		c.mutex.Unlock()
		return res, nil
	}
	version := e.version
	c.mutex.Unlock()

	data, err, shared := c.group.Do(key, func() (interface{}, error) {
		return fetch(ctx)
	})
	if shared {
		c.logger.WithField("descriptor", key).Debug("Coalesced into in-flight fetch")
	}

	now := time.Now()

	c.mutex.Lock()
	defer c.mutex.Unlock()
	e = c.ensureLocked(key)

	if err != nil {
		c.logger.WithError(err).WithField("descriptor", key).Warn("Fetch failed, serving stale snapshot if available")
		if e.hasData {
			return Result{Data: e.data, FetchedAt: e.fetchedAt, Stale: true}, err
		}
		return Result{}, err
	}

	if e.version == version {
		e.data = data
		e.fetchedAt = now
		e.hasData = true
		e.invalid = false
	} else {
		// Invalidated while the fetch was in flight; the entry stays stale so
		// the next read refetches, but this caller still gets fresh data.
		c.logger.WithField("descriptor", key).Debug("Discarding fetch result that predates an invalidation")
	}

	return Result{Data: data, FetchedAt: now}, nil
}

// Peek returns the current snapshot without triggering a fetch. The second
// return reports whether any data is cached at all.
func (c *Cache) Peek(desc Descriptor) (Result, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	e, ok := c.entries[desc.Key()]
	if !ok || !e.hasData {
		return Result{}, false
	}
	return Result{Data: e.data, FetchedAt: e.fetchedAt, Stale: e.invalid}, true
}

// Invalidate marks the descriptors stale. The next read (or poll tick)
// refetches; results from fetches that were already in flight are discarded.
func (c *Cache) Invalidate(descs ...Descriptor) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for _, desc := range descs {
		e := c.ensureLocked(desc.Key())
		e.invalid = true
		e.version++
		c.logger.WithField("descriptor", desc.Key()).Debug("Descriptor invalidated")
	}
}

// Registration binds a fetcher to a descriptor so the cache can refresh it
// autonomously: on a poll interval, and on focus signals when opted in.
type Registration struct {
	Descriptor     Descriptor
	Fetch          FetchFunc
	PollInterval   time.Duration // 0 disables polling
	RefetchOnFocus bool
}

func (c *Cache) Register(reg Registration) {
	key := reg.Descriptor.Key()

	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return
	}
	e := c.ensureLocked(key)
	e.fetch = reg.Fetch
	e.refetchOnFocus = reg.RefetchOnFocus

	if reg.PollInterval > 0 && e.pollStop == nil {
		stop := make(chan struct{})
		e.pollStop = stop
		c.wg.Add(1)
		go c.poll(key, reg.PollInterval, stop)
	}
	c.mutex.Unlock()
}

// Unregister stops the descriptor's poller and detaches its fetcher. The
// cached snapshot is kept.
func (c *Cache) Unregister(desc Descriptor) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	e, ok := c.entries[desc.Key()]
	if !ok {
		return
	}
	if e.pollStop != nil {
		close(e.pollStop)
		e.pollStop = nil
	}
	e.fetch = nil
	e.refetchOnFocus = false
}

func (c *Cache) poll(key string, interval time.Duration, stop chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.logger.WithFields(logrus.Fields{
		"descriptor": key,
		"interval":   interval.String(),
	}).Info("Polling started for descriptor")

	for {
		select {
		case <-ticker.C:
			c.refresh(key)
		case <-stop:
			c.logger.WithField("descriptor", key).Info("Polling stopped for descriptor")
			return
		}
	}
}

// refresh forces a fetch for a registered descriptor, regardless of
// freshness. Used by poll ticks and focus signals.
func (c *Cache) refresh(key string) {
	c.mutex.Lock()
	e, ok := c.entries[key]
	if !ok || e.fetch == nil {
		c.mutex.Unlock()
		return
	}
	fetch := e.fetch
	version := e.version
	c.mutex.Unlock()

	data, err, _ := c.group.Do(key, func() (interface{}, error) {
		return fetch(context.Background())
	})

	c.mutex.Lock()
	defer c.mutex.Unlock()
	e = c.ensureLocked(key)

	if err != nil {
		// Keep the last good snapshot; the poller will try again.
		c.logger.WithError(err).WithField("descriptor", key).Warn("Background refresh failed")
		return
	}
	if e.version != version {
		c.logger.WithField("descriptor", key).Debug("Discarding refresh result that predates an invalidation")
		return
	}

	e.data = data
	e.fetchedAt = time.Now()
	e.hasData = true
	e.invalid = false
}

// TriggerFocus re-fetches every descriptor that opted into focus refetch.
// Fired when a dashboard UI regains window focus.
func (c *Cache) TriggerFocus() {
	c.mutex.Lock()
	var keys []string
	for key, e := range c.entries {
		if e.refetchOnFocus && e.fetch != nil {
			keys = append(keys, key)
		}
	}
	c.mutex.Unlock()

	for _, key := range keys {
		go c.refresh(key)
	}

	if len(keys) > 0 {
		c.logger.WithField("descriptors", len(keys)).Info("Focus refetch triggered")
	}
}

// Close stops all pollers and waits for them to exit.
func (c *Cache) Close() {
	c.mutex.Lock()
	c.closed = true
	for _, e := range c.entries {
		if e.pollStop != nil {
			close(e.pollStop)
			e.pollStop = nil
		}
	}
	c.mutex.Unlock()

	c.wg.Wait()
}
