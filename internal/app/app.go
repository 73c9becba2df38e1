// Package app builds the service graph shared by the server and worker
// binaries from a loaded configuration.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/ignite/guest-reconciler/internal/agent"
	"github.com/ignite/guest-reconciler/internal/api"
	"github.com/ignite/guest-reconciler/internal/config"
	"github.com/ignite/guest-reconciler/internal/mailfetch"
	"github.com/ignite/guest-reconciler/internal/pkg/distlock"
	"github.com/ignite/guest-reconciler/internal/pkg/logger"
	"github.com/ignite/guest-reconciler/internal/repository/memory"
	"github.com/ignite/guest-reconciler/internal/repository/postgres"
	"github.com/ignite/guest-reconciler/internal/service/feed"
	"github.com/ignite/guest-reconciler/internal/service/feedsync"
	"github.com/ignite/guest-reconciler/internal/service/guestimport"
	"github.com/ignite/guest-reconciler/internal/service/ledger"
	"github.com/ignite/guest-reconciler/internal/service/vendormerge"
	"github.com/ignite/guest-reconciler/internal/worker"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"
)

const pollLockKey = "feed-poll"

// guestStore is what both import paths need from the guest table.
type guestStore interface {
	guestimport.GuestRepository
	feed.GuestRepository
}

// repos is the backend-neutral view of a store.
type repos struct {
	tx           interface{ WithinTx(context.Context, func(context.Context) error) error }
	guests       guestStore
	reservations feed.ReservationRepository
	vendors      vendormerge.VendorRepository
	ledger       ledger.Repository
	pinger       api.Pinger
}

// App holds the wired services.
type App struct {
	Config  *config.Config
	DB      *sql.DB       // nil with the memory store
	Redis   *redis.Client // nil when not configured or unreachable
	Ledger  *ledger.Service
	Imports *guestimport.Service
	Feed    *feedsync.Service
	Vendors *vendormerge.Service

	pinger api.Pinger
}

// New opens the configured store and collaborators and builds every
// service. Optional collaborators that fail to initialise are logged and
// left out; the store is required.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger.Configure(cfg.Logging.Level, cfg.Logging.ShowPII)

	a := &App{Config: cfg}

	r, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.pinger = r.pinger
	a.Redis = openRedis(ctx, cfg.Redis.URL)

	fetcher, err := newFetcher(ctx, cfg.Mail)
	if err != nil {
		a.Close()
		return nil, err
	}

	var classifier vendormerge.Classifier
	if cfg.Bedrock.Enabled {
		bc, err := agent.NewBedrockClassifier(ctx, cfg.Bedrock)
		if err != nil {
			log.Printf("Warning: Bedrock classifier unavailable, vendor grouping uses the heuristic: %v", err)
		} else {
			classifier = bc
			log.Printf("Bedrock classifier initialized (model: %s)", bc.ModelID())
		}
	} else {
		log.Println("Bedrock disabled - vendor grouping uses the name heuristic")
	}

	a.Ledger = ledger.NewService(r.ledger)
	a.Imports = guestimport.NewService(r.tx, r.guests, a.Ledger)
	a.Feed = feedsync.NewService(fetcher, feed.NewImporter(r.tx, r.guests, r.reservations), a.Ledger)
	a.Vendors, err = vendormerge.NewService(r.tx, r.vendors, classifier, a.Ledger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("vendor service: %w", err)
	}
	return a, nil
}

func (a *App) openStore(ctx context.Context) (*repos, error) {
	if a.Config.Store.Type == "memory" {
		log.Println("Using in-memory store (data is lost on restart)")
		s := memory.New()
		return &repos{tx: s, guests: s.Guests, reservations: s.Reservations,
			vendors: s.Vendors, ledger: s.Ledger, pinger: s}, nil
	}

	dbCfg := a.Config.Database
	db, err := sql.Open("postgres", dbCfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(dbCfg.MaxOpenConns)
	db.SetMaxIdleConns(dbCfg.MaxIdleConns)
	db.SetConnMaxLifetime(dbCfg.ConnMaxLifetime())

	pingCtx, cancel := context.WithTimeout(ctx, dbCfg.ConnectTimeout())
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	log.Println("Connected to PostgreSQL")

	a.DB = db
	s := postgres.New(db)
	return &repos{tx: s, guests: s.Guests, reservations: s.Reservations,
		vendors: s.Vendors, ledger: s.Ledger, pinger: s}, nil
}

// openRedis returns nil when url is empty or the server does not answer.
func openRedis(ctx context.Context, url string) *redis.Client {
	if url == "" {
		log.Println("Redis not configured - using PG advisory locks for the poller")
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("Warning: Redis connection failed: %v - falling back to PG advisory locks", err)
		client.Close()
		return nil
	}
	log.Println("Redis connected (distributed locking enabled)")
	return client
}

func newFetcher(ctx context.Context, cfg config.MailConfig) (mailfetch.Fetcher, error) {
	switch cfg.Source {
	case "gmail":
		log.Printf("Mail source: Gmail (label %q)", cfg.Gmail.Label)
		return mailfetch.NewGmailFetcher(ctx, cfg.Gmail), nil
	case "s3":
		inbox, err := mailfetch.NewS3Inbox(ctx, cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("s3 inbox: %w", err)
		}
		log.Printf("Mail source: s3://%s/%s", cfg.S3.Bucket, cfg.S3.Prefix)
		return inbox, nil
	default:
		log.Println("Mail source not configured - feed sync accepts uploads only")
		return nil, nil
	}
}

// NewPoller builds the scheduled feed poller, or returns nil when no
// mailbox is configured. The lock prefers Redis; without Redis it needs
// the Postgres store, and with neither the poller runs unlocked.
func (a *App) NewPoller() *worker.FeedPoller {
	if !a.Feed.HasMailSource() {
		return nil
	}
	var lock distlock.DistLock
	if a.Redis != nil || a.DB != nil {
		lock = distlock.NewLock(a.Redis, a.DB, pollLockKey, a.Config.Feed.LockTTL())
	}
	return worker.NewFeedPoller(a.Feed, lock, a.Config.Feed.Interval())
}

// Handlers builds the HTTP handlers. poller may be nil.
func (a *App) Handlers(poller *worker.FeedPoller) *api.Handlers {
	d := api.Deps{
		Imports:        a.Imports,
		Feed:           a.Feed,
		Vendors:        a.Vendors,
		Ledger:         a.Ledger,
		Store:          a.pinger,
		StoreType:      a.Config.Store.Type,
		MaxUploadBytes: a.Config.Import.MaxUploadBytes(),
	}
	if poller != nil {
		d.Poller = poller
	}
	return api.NewHandlers(d)
}

// Close releases the database pool and Redis client.
func (a *App) Close() {
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
