// Package syncer implements the background sync engine: a periodic,
// connectivity-gated job that delivers locally created assessments to the
// central system and reconciles their sync status.
package syncer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/outpost/internal/remote"
	"github.com/linnemanlabs/outpost/internal/triage"
)

const (
	// DefaultInterval between scheduled runs.
	DefaultInterval = 15 * time.Minute

	// maxAttempts bounds the submit retries within one run. The run is
	// job-level failed after exhaustion; the records themselves are retried
	// indefinitely by subsequent scheduled runs.
	maxAttempts = 3
)

// Uploader is the slice of the central-API client the engine needs.
type Uploader interface {
	Sync(ctx context.Context, records []remote.Record) (*remote.SyncResult, error)
	Online(ctx context.Context) bool
}

// Outcome classifies one engine run for logs and metrics.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeOffline Outcome = "offline"
	OutcomeEmpty   Outcome = "empty"
	OutcomeDropped Outcome = "dropped" // trigger fired while a run was in flight
	OutcomeError   Outcome = "error"   // local store error before submit
)

// Engine periodically pushes pending assessments to the central system.
//
// Concurrency: at most one run is in flight at any time; an overlapping
// trigger (tick or Kick) is dropped, never queued. Partial progress is never
// rolled back: an id marked SYNCED stays SYNCED even if the run is cancelled
// mid-batch.
type Engine struct {
	store    triage.Store
	client   Uploader
	logger   log.Logger
	metrics  *Metrics // may be nil
	interval time.Duration

	inFlight atomic.Bool
	kick     chan struct{}
}

// New creates a sync engine. interval <= 0 selects DefaultInterval.
func New(store triage.Store, client Uploader, logger log.Logger, metrics *Metrics, interval time.Duration) *Engine {
	if logger == nil {
		logger = log.Nop()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Engine{
		store:    store,
		client:   client,
		logger:   logger,
		metrics:  metrics,
		interval: interval,
		kick:     make(chan struct{}, 1),
	}
}

// Kick requests an immediate run. Non-blocking; if a trigger is already
// queued or a run is in flight the request coalesces or is dropped.
func (e *Engine) Kick() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// Run drives the schedule until ctx is cancelled. Call it on its own
// goroutine; it never returns early on sync failures.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.logger.Info(ctx, "sync engine started", "interval", e.interval.String())

	for {
		select {
		case <-ctx.Done():
			e.logger.Info(context.WithoutCancel(ctx), "sync engine stopped")
			return
		case <-ticker.C:
			e.trigger(ctx)
		case <-e.kick:
			e.trigger(ctx)
		}
	}
}

// trigger starts a run unless one is already in flight, in which case the
// trigger is dropped.
func (e *Engine) trigger(ctx context.Context) {
	if !e.inFlight.CompareAndSwap(false, true) {
		e.logger.Info(ctx, "sync run already in flight, dropping trigger")
		e.observe(OutcomeDropped, 0)
		return
	}
	go func() {
		defer e.inFlight.Store(false)
		start := time.Now()
		outcome, synced := e.runOnce(ctx)
		e.observe(outcome, synced)
		if e.metrics != nil {
			e.metrics.RunDuration.Observe(time.Since(start).Seconds())
		}
	}()
}

// RunOnce executes one synchronous sync run, bypassing the scheduler but
// respecting the in-flight guard. Used by tests and the startup kick path.
func (e *Engine) RunOnce(ctx context.Context) (Outcome, int) {
	if !e.inFlight.CompareAndSwap(false, true) {
		return OutcomeDropped, 0
	}
	defer e.inFlight.Store(false)
	outcome, synced := e.runOnce(ctx)
	e.observe(outcome, synced)
	return outcome, synced
}

func (e *Engine) runOnce(ctx context.Context) (Outcome, int) {
	if !e.client.Online(ctx) {
		e.logger.Info(ctx, "central system unreachable, skipping sync run")
		return OutcomeOffline, 0
	}

	pending, err := e.store.ListPending(ctx)
	if err != nil {
		e.logger.Error(ctx, err, "failed to read pending assessments")
		return OutcomeError, 0
	}
	if e.metrics != nil {
		e.metrics.PendingRecords.Set(float64(len(pending)))
	}
	if len(pending) == 0 {
		return OutcomeEmpty, 0
	}

	records := make([]remote.Record, len(pending))
	for i, a := range pending {
		records[i] = remote.RecordFromAssessment(a)
	}

	L := e.logger.With("batch_size", len(records))
	L.Info(ctx, "submitting sync batch")

	res, err := e.submit(ctx, records)
	if err != nil {
		// Job-level failure after exhausting in-run retries. Mark the batch
		// FAILED as attempt-cycle bookkeeping; ListPending selects FAILED
		// too, so the next scheduled run retries the same records.
		L.Error(ctx, err, "sync run failed, records left for next run")
		e.markBatch(ctx, pending, triage.SyncFailed)
		return OutcomeFailure, 0
	}

	// Whole-batch acceptance confirmed: reconcile statuses. A mid-batch
	// cancellation leaves already-marked ids SYNCED, which is valid state.
	synced := e.markBatch(ctx, pending, triage.SyncSynced)

	L.Info(ctx, "sync run complete",
		"accepted", res.Count,
		"marked_synced", synced,
		"synced_at", res.SyncedAt,
	)
	return OutcomeSuccess, synced
}

// submit pushes the batch with bounded retries. A timeout is a network
// failure like any other: retry, then give up until the next run.
func (e *Engine) submit(ctx context.Context, records []remote.Record) (*remote.SyncResult, error) {
	res, err := backoff.Retry(ctx, func() (*remote.SyncResult, error) {
		return e.client.Sync(ctx, records)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxAttempts),
	)
	if err != nil {
		return nil, fmt.Errorf("submit batch of %d: %w", len(records), err)
	}
	return res, nil
}

// markBatch updates each record's status individually; one failed update
// never rolls back or blocks the others. Returns the number updated.
func (e *Engine) markBatch(ctx context.Context, batch []*triage.Assessment, status triage.SyncStatus) int {
	updated := 0
	for _, a := range batch {
		if err := e.store.UpdateSyncStatus(ctx, a.ID, status); err != nil {
			e.logger.Error(ctx, err, "failed to update sync status",
				"assessment_id", a.ID, "status", status)
			continue
		}
		updated++
	}
	return updated
}

func (e *Engine) observe(outcome Outcome, synced int) {
	if e.metrics == nil {
		return
	}
	e.metrics.RunsTotal.WithLabelValues(string(outcome)).Inc()
	if synced > 0 {
		e.metrics.RecordsSynced.Add(float64(synced))
	}
}
