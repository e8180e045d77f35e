package comps

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/yourorg/presentation-api/internal/model"
	"github.com/yourorg/presentation-api/internal/redisx"
)

type cachedEnvelope struct {
	Comps []model.ComparableRecord `json:"comps"`
	Meta  struct {
		LastFetch  time.Time `json:"last_fetch_at"`
		StaleAfter time.Time `json:"stale_after"`
	} `json:"meta"`
}

// CachedProvider decorates a Provider with a Redis stale-while-revalidate
// cache. Stale hits are served immediately while a background worker
// refreshes; concurrent misses for the same property take a short lock so only
// one request hits the upstream.
type CachedProvider struct {
	Redis  *redisx.Client
	Source Provider

	CacheTTL    time.Duration
	StaleAfter  time.Duration
	NegativeTTL time.Duration

	jobs  chan refreshJob
	inFly sync.Map // property key -> struct{}
	once  sync.Once
}

type refreshJob struct {
	key      string
	property model.PropertyRecord
}

func NewCached(redis *redisx.Client, source Provider) *CachedProvider {
	c := &CachedProvider{
		Redis:       redis,
		Source:      source,
		CacheTTL:    time.Hour,
		StaleAfter:  5 * time.Minute,
		NegativeTTL: 2 * time.Minute,
	}
	c.startWorkers(2)
	return c
}

func (c *CachedProvider) startWorkers(n int) {
	c.once.Do(func() {
		c.jobs = make(chan refreshJob, 256)
		for i := 0; i < n; i++ {
			go c.worker()
		}
	})
}

func (c *CachedProvider) Fetch(ctx context.Context, p model.PropertyRecord) ([]model.ComparableRecord, error) {
	pk := PropertyKey(p.Address, p.City, p.State, p.Zip)
	cacheKey := "comps:pk:" + pk
	missKey := "comps:miss:" + pk

	if ok, _ := c.Redis.Exists(ctx, missKey); ok {
		// recent upstream miss, don't hammer the provider
		return nil, nil
	}

	if val, err := c.Redis.Get(ctx, cacheKey); err == nil && val != "" {
		var env cachedEnvelope
		if err := json.Unmarshal([]byte(val), &env); err == nil {
			if time.Now().After(env.Meta.StaleAfter) {
				c.enqueue(refreshJob{key: pk, property: p})
			}
			return env.Comps, nil
		}
	}

	// miss: short lock to avoid a fetch stampede; losers serve empty and let
	// the winner fill the cache
	if ok, _ := c.Redis.SetNX(ctx, "comps:lock:"+pk, "1", 8*time.Second); !ok {
		return nil, nil
	}
	return c.fetchAndStore(ctx, pk, p)
}

func (c *CachedProvider) fetchAndStore(ctx context.Context, pk string, p model.PropertyRecord) ([]model.ComparableRecord, error) {
	comps, err := c.Source.Fetch(ctx, p)
	if err != nil {
		return nil, err
	}
	if len(comps) == 0 {
		_ = c.Redis.Set(ctx, "comps:miss:"+pk, "1", c.NegativeTTL)
		return nil, nil
	}
	var env cachedEnvelope
	env.Comps = comps
	env.Meta.LastFetch = time.Now()
	env.Meta.StaleAfter = env.Meta.LastFetch.Add(c.StaleAfter)
	if b, err := json.Marshal(env); err == nil {
		_ = c.Redis.Set(ctx, "comps:pk:"+pk, string(b), c.CacheTTL)
	}
	return comps, nil
}

func (c *CachedProvider) enqueue(j refreshJob) {
	if _, exists := c.inFly.LoadOrStore(j.key, struct{}{}); exists {
		return
	}
	select {
	case c.jobs <- j:
	default:
		// drop if saturated
		c.inFly.Delete(j.key)
	}
}

func (c *CachedProvider) worker() {
	for j := range c.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if _, err := c.fetchAndStore(ctx, j.key, j.property); err != nil {
			slog.Warn("comps refresh failed", "property_key", j.key, "err", err)
		}
		c.inFly.Delete(j.key)
		cancel()
	}
}
