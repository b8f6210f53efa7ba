// Package runner orchestrates one change-detection cycle per source:
// fetch listing → adapt → diff against the previous snapshot → persist →
// notify. Each source walks the pipeline independently; one source's
// failure never stops its siblings.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"jobwatch/internal/diff"
	"jobwatch/internal/model"
	"jobwatch/internal/retry"
	"jobwatch/internal/snapshot"
)

// State is a stage of the per-source pipeline. A run moves forward through
// the stages in order; Failed can be entered from any of them.
type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateAdapting   State = "adapting"
	StateDiffing    State = "diffing"
	StatePersisting State = "persisting"
	StateNotifying  State = "notifying"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Outcome summarizes a finished run for callers that do not care which
// stage it reached.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"   // run completed and the diff had changes
	OutcomeNoChange Outcome = "no_change" // run completed, nothing added or removed
	OutcomeFailed   Outcome = "failed"    // run aborted; Err and State say where
)

// Result is the terminal record of one source's run.
type Result struct {
	Source    string
	State     State // StateDone, or the stage where the run failed
	Outcome   Outcome
	Added     int
	Removed   int
	Unchanged int
	Err       error
}

// Options are the per-source knobs the orchestrator does not hardcode.
type Options struct {
	SnapshotKey string       // blob key for this source's snapshot; defaults to the adapter's source name
	Policy      retry.Policy // retry posture for listing and detail fetches
	FetchDetail bool         // enrich postings with detail pages
	DetailLimit int          // concurrent detail fetches; <=0 means 1
	MaxDetails  int          // cap on detail fetches per run; <=0 means no cap
}

// SourceRunner owns the full pipeline for a single source.
type SourceRunner struct {
	adapter   model.SourceAdapter
	snapshots *snapshot.Store
	notifier  model.Notifier
	opts      Options
	logger    *slog.Logger
}

// NewSourceRunner creates a runner wired with all its dependencies.
func NewSourceRunner(
	adapter model.SourceAdapter,
	snapshots *snapshot.Store,
	notifier model.Notifier,
	opts Options,
	logger *slog.Logger,
) *SourceRunner {
	if opts.SnapshotKey == "" {
		opts.SnapshotKey = adapter.Source()
	}
	if opts.DetailLimit <= 0 {
		opts.DetailLimit = 1
	}
	return &SourceRunner{
		adapter:   adapter,
		snapshots: snapshots,
		notifier:  notifier,
		opts:      opts,
		logger:    logger.With("source", adapter.Source()),
	}
}

// Run executes one cycle for the source. It never panics the caller's
// goroutine with an error return; everything the caller needs is in the
// Result.
func (r *SourceRunner) Run(ctx context.Context) Result {
	source := r.adapter.Source()
	start := time.Now()

	state := StateFetching
	var postings []model.Posting
	err := r.opts.Policy.Do(ctx, r.logger, "listing "+source, func(ctx context.Context) error {
		var ferr error
		postings, ferr = r.adapter.FetchListing(ctx)
		return ferr
	})
	if err != nil {
		return r.fail(state, fmt.Errorf("fetching listing for %s: %w", source, err))
	}

	state = StateAdapting
	prev, err := r.loadPrevious()
	if err != nil {
		return r.fail(state, err)
	}

	coll := model.NewCollection(source)
	dropped := 0
	for _, p := range postings {
		if !coll.Add(p) {
			dropped++
		}
	}
	if dropped > 0 {
		r.logger.Warn("dropped postings with duplicate identities", "count", dropped)
	}

	if r.opts.FetchDetail {
		r.carryDetails(prev, coll)
		if err := r.fetchDetails(ctx, coll); err != nil {
			return r.fail(state, fmt.Errorf("fetching details for %s: %w", source, err))
		}
	}

	state = StateDiffing
	d := diff.Diff(prev, coll)

	// A run that blew its deadline mid-flight must leave the previous
	// snapshot untouched: an incomplete listing would diff as a wave of
	// false removals on the next run.
	if ctx.Err() != nil {
		return r.fail(state, fmt.Errorf("running %s: %w", source, ctx.Err()))
	}

	state = StatePersisting
	if err := r.snapshots.Save(r.opts.SnapshotKey, coll); err != nil {
		return r.fail(state, err)
	}

	state = StateNotifying
	if !d.Empty() {
		if err := r.notifier.Send(ctx, source, d); err != nil {
			// Delivery is fire-and-forget: the snapshot already advanced,
			// failing the run here would re-announce the same diff never.
			r.logger.Warn("notification delivery failed", "error", err)
		}
	}

	res := Result{
		Source:    source,
		State:     StateDone,
		Outcome:   OutcomeSuccess,
		Added:     len(d.Added),
		Removed:   len(d.Removed),
		Unchanged: len(d.Unchanged),
	}
	if d.Empty() {
		res.Outcome = OutcomeNoChange
	}

	r.logger.Info("run complete",
		"outcome", res.Outcome,
		"fetched", len(postings),
		"added", res.Added,
		"removed", res.Removed,
		"unchanged", res.Unchanged,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return res
}

func (r *SourceRunner) fail(state State, err error) Result {
	r.logger.Error("run failed", "state", state, "error", err)
	return Result{
		Source:  r.adapter.Source(),
		State:   state,
		Outcome: OutcomeFailed,
		Err:     err,
	}
}

// loadPrevious returns the prior collection, or nil when there is no usable
// prior state. A missing snapshot and a corrupted one both mean "first run";
// corruption is logged loudly because the old data is about to be replaced.
// Any other storage error (including a refused future schema) aborts the run
// so we never clobber a snapshot we could not read.
func (r *SourceRunner) loadPrevious() (*model.Collection, error) {
	prev, err := r.snapshots.Load(r.opts.SnapshotKey)
	switch {
	case err == nil:
		return prev, nil
	case errors.Is(err, model.ErrNotFound):
		r.logger.Info("no previous snapshot, treating run as baseline")
		return nil, nil
	}
	var corrupt *model.CorruptError
	if errors.As(err, &corrupt) {
		r.logger.Error("previous snapshot is corrupted, rebuilding from scratch", "error", err)
		return nil, nil
	}
	return nil, fmt.Errorf("loading previous snapshot for %s: %w", r.adapter.Source(), err)
}

// carryDetails copies details forward from the previous snapshot so a
// posting's detail page is fetched once, not once per run. An Unavailable
// detail carries over too: a permanently protected page stays marked and is
// not hammered again.
func (r *SourceRunner) carryDetails(prev *model.Collection, coll *model.Collection) {
	if prev == nil {
		return
	}
	for id, p := range coll.Postings {
		if p.Detail != nil {
			continue
		}
		if old, ok := prev.Postings[id]; ok && old.Detail != nil {
			p.Detail = old.Detail
			coll.Postings[id] = p
		}
	}
}

// fetchDetails enriches postings that still lack a detail, a bounded number
// at a time. Individual failures degrade the posting, not the run: a page
// still blocked after the cool-down retry is marked Unavailable, transient
// failures leave the detail absent for the next run to pick up. Only context
// cancellation aborts the pass.
func (r *SourceRunner) fetchDetails(ctx context.Context, coll *model.Collection) error {
	// Copy the pending postings out before spawning anything: once workers
	// start writing results back into the map, no goroutine may read it.
	var pending []model.Posting
	for _, p := range coll.Postings {
		if p.Detail == nil {
			pending = append(pending, p)
		}
	}
	if r.opts.MaxDetails > 0 && len(pending) > r.opts.MaxDetails {
		r.logger.Info("capping detail fetches for this run",
			"pending", len(pending),
			"cap", r.opts.MaxDetails,
		)
		pending = pending[:r.opts.MaxDetails]
	}
	if len(pending) == 0 {
		return nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.DetailLimit)
	for _, p := range pending {
		g.Go(func() error {
			var detail *model.Detail
			err := r.opts.Policy.Do(gctx, r.logger, "detail "+p.Identity, func(ctx context.Context) error {
				var ferr error
				detail, ferr = r.adapter.FetchDetail(ctx, p)
				return ferr
			})
			switch {
			case err == nil:
			case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
				return err
			case model.FetchKindOf(err) == model.FetchBlocked:
				// Still blocked after the cool-down: record the terminal
				// state so the posting survives with its listing fields.
				r.logger.Warn("detail page blocked, marking unavailable", "identity", p.Identity)
				detail = &model.Detail{Unavailable: true}
			default:
				r.logger.Warn("detail fetch failed, leaving detail absent",
					"identity", p.Identity,
					"error", err,
				)
				return nil
			}

			mu.Lock()
			p.Detail = detail
			coll.Postings[p.Identity] = p
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// Runner fans a run out across all configured sources.
type Runner struct {
	sources []*SourceRunner
	limit   int
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a multi-source runner. limit bounds how many sources run
// concurrently (<=0 means all at once); timeout, when positive, is the
// deadline for the whole run.
func New(sources []*SourceRunner, limit int, timeout time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		sources: sources,
		limit:   limit,
		timeout: timeout,
		logger:  logger,
	}
}

// RunAll executes one cycle for every source and returns one Result per
// source, in configuration order.
func (r *Runner) RunAll(ctx context.Context) []Result {
	runID := uuid.NewString()
	logger := r.logger.With("run_id", runID)

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	logger.Info("starting run", "sources", len(r.sources))
	start := time.Now()

	results := make([]Result, len(r.sources))
	var g errgroup.Group
	if r.limit > 0 {
		g.SetLimit(r.limit)
	}
	for i, sr := range r.sources {
		g.Go(func() error {
			results[i] = sr.Run(ctx)
			return nil
		})
	}
	g.Wait()

	failed := 0
	added, removed := 0, 0
	for _, res := range results {
		if res.Outcome == OutcomeFailed {
			failed++
			continue
		}
		added += res.Added
		removed += res.Removed
	}
	logger.Info("run finished",
		"sources", len(results),
		"failed", failed,
		"added", added,
		"removed", removed,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return results
}

// AnyFailed reports whether any result carries a failed outcome.
func AnyFailed(results []Result) bool {
	for _, res := range results {
		if res.Outcome == OutcomeFailed {
			return true
		}
	}
	return false
}
