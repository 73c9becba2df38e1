package worker

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ignite/guest-reconciler/internal/pkg/distlock"
	"github.com/ignite/guest-reconciler/internal/service/feedsync"
)

// TriggerScheduled is the ledger label of poller runs.
const TriggerScheduled = "scheduled"

// Syncer runs one mailbox sweep.
type Syncer interface {
	RunOnce(ctx context.Context, triggeredBy string) (*feedsync.SyncResult, error)
}

// FeedPoller sweeps the PMS mailbox on a fixed interval. Each tick takes a
// distributed lock so that only one replica sweeps at a time; a replica
// that loses the race skips the tick. Manual syncs never take the lock.
type FeedPoller struct {
	syncer   Syncer
	lock     distlock.DistLock
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	running int32

	mu        sync.Mutex
	lastRunAt time.Time
	healthy   bool
	lastErr   string
}

// NewFeedPoller creates a poller. lock may be nil for single-replica
// deployments.
func NewFeedPoller(syncer Syncer, lock distlock.DistLock, interval time.Duration) *FeedPoller {
	if interval <= 0 {
		interval = time.Hour
	}
	return &FeedPoller{syncer: syncer, lock: lock, interval: interval, healthy: true}
}

// Start runs one sweep immediately and then one per interval until Stop.
func (p *FeedPoller) Start() {
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.done = make(chan struct{})
	log.Printf("[feed-poller] started, interval=%s", p.interval)

	go func() {
		defer close(p.done)
		p.runOnce(p.ctx)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.ctx.Done():
				return
			case <-ticker.C:
				p.runOnce(p.ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-flight sweep to return.
func (p *FeedPoller) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	log.Printf("[feed-poller] stopped")
}

func (p *FeedPoller) IsHealthy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.healthy
}

func (p *FeedPoller) LastRunAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRunAt
}

func (p *FeedPoller) LastError() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *FeedPoller) IsRunning() bool { return atomic.LoadInt32(&p.running) == 1 }

// runOnce executes one tick. It returns false when the tick was skipped
// because a sweep is already running here or on another replica.
func (p *FeedPoller) runOnce(ctx context.Context) bool {
	if !atomic.CompareAndSwapInt32(&p.running, 0, 1) {
		return false
	}
	defer atomic.StoreInt32(&p.running, 0)

	if p.lock != nil {
		ok, err := p.lock.Acquire(ctx)
		if err != nil {
			log.Printf("[feed-poller] lock error: %v", err)
			p.finish(err)
			return false
		}
		if !ok {
			log.Printf("[feed-poller] another replica holds the lock, skipping tick")
			return false
		}
		defer func() {
			if err := p.lock.Release(context.Background()); err != nil {
				log.Printf("[feed-poller] release lock: %v", err)
			}
		}()
	}

	res, err := p.syncer.RunOnce(ctx, TriggerScheduled)
	if err == nil {
		err = res.MailboxError()
	}
	if err != nil {
		log.Printf("[feed-poller] sweep failed: %v", err)
	} else {
		log.Printf("[feed-poller] sweep done: emails=%d xmls=%d created=%d updated=%d errors=%d",
			res.EmailsFound, res.XMLsProcessed, res.Created, res.Updated, len(res.Errors))
	}
	p.finish(err)
	return true
}

func (p *FeedPoller) finish(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastRunAt = time.Now()
	p.healthy = err == nil
	p.lastErr = ""
	if err != nil {
		p.lastErr = err.Error()
	}
}
