package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"github.com/yourorg/presentation-api/internal/comps"
	"github.com/yourorg/presentation-api/internal/deliver"
	"github.com/yourorg/presentation-api/internal/env"
	"github.com/yourorg/presentation-api/internal/events"
	"github.com/yourorg/presentation-api/internal/export"
	"github.com/yourorg/presentation-api/internal/logger"
	"github.com/yourorg/presentation-api/internal/paginate"
	"github.com/yourorg/presentation-api/internal/quota"
	"github.com/yourorg/presentation-api/internal/redisx"
	"github.com/yourorg/presentation-api/internal/store"
)

func main() {
	_ = godotenv.Load()
	logger.Init(env.Get("LOG_LEVEL", "info"), env.Get("LOG_FORMAT", "text"))

	port := env.GetInt("PORT", 4003)
	brand := env.Get("BRAND", "presentation-api")
	geometry := paginate.Letter()

	// Subscription store: Postgres when a DSN is configured, in-memory
	// otherwise (dev/test only, reservations don't survive restarts).
	var subs quota.SubscriptionStore
	var receipts export.ReceiptStore
	if dsn := env.Get("PG_DSN", ""); dsn != "" {
		st, err := store.Open(dsn)
		if err != nil {
			log.Fatalf("store open error: %v", err)
		}
		defer st.DB.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := st.Ping(ctx); err != nil {
			cancel()
			log.Fatalf("postgres ping error: %v", err)
		}
		if err := st.Migrate(ctx); err != nil {
			cancel()
			log.Fatalf("postgres migrate error: %v", err)
		}
		cancel()
		subs = st
		receipts = st
	} else {
		slog.Warn("PG_DSN not set, using in-memory subscription store")
		subs = quota.NewMemoryStore()
	}
	quotaMgr := quota.NewManager(subs)

	// Comparables provider, optionally wrapped in the Redis cache.
	var compsProvider comps.Provider
	if key := env.Get("COMPS_API_KEY", ""); key != "" {
		client := comps.NewClient(key)
		if addr := env.Get("REDIS_ADDR", ""); addr != "" {
			rc := redisx.New(addr, env.Get("REDIS_PASSWORD", ""), env.GetInt("REDIS_DB", 0))
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := rc.Ping(ctx); err != nil {
				cancel()
				log.Fatalf("redis ping error: %v", err)
			}
			cancel()
			cached := comps.NewCached(rc, client)
			cached.CacheTTL = env.GetDuration("COMPS_CACHE_TTL", time.Hour)
			cached.StaleAfter = env.GetDuration("COMPS_STALE_AFTER", 5*time.Minute)
			compsProvider = cached
		} else {
			compsProvider = client
		}
	}

	dispatcher := &deliver.Dispatcher{
		Timeout: env.GetDuration("DELIVERY_TIMEOUT", 30*time.Second),
	}
	if endpoint := env.Get("EMAIL_API_URL", ""); endpoint != "" {
		dispatcher.Email = deliver.NewEmailClient(endpoint, env.Must("EMAIL_API_KEY"), env.Get("EMAIL_FROM", "presentations@example.com"))
	}
	if key := env.Get("LOB_API_KEY", ""); key != "" {
		dispatcher.Mail = deliver.NewLobClient(key, deliver.Destination{
			Name:         env.Get("MAIL_FROM_NAME", brand),
			AddressLine1: env.Must("MAIL_FROM_LINE1"),
			City:         env.Must("MAIL_FROM_CITY"),
			State:        env.Must("MAIL_FROM_STATE"),
			Zip:          env.Must("MAIL_FROM_ZIP"),
		})
	}

	exporter := &export.Exporter{
		Quota:      quotaMgr,
		Dispatcher: dispatcher,
		Comps:      compsProvider,
		Events:     events.NewInMemory(256),
		Receipts:   receipts,
		Geometry:   geometry,
		Brand:      brand,
	}

	router := BuildRouter(routerDeps{
		Exporter: exporter,
		Quota:    quotaMgr,
		Geometry: geometry,
		Brand:    brand,
	})

	slog.Info("presentation-api listening", "port", port)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", port), logger.Middleware(router)); err != nil {
		log.Fatal(err)
	}
}
