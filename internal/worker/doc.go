// Package worker runs background jobs. FeedPoller sweeps the feed mailbox
// on a fixed interval and holds a distributed lock for each tick so that
// only one replica imports a given batch.
package worker
