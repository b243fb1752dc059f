// Package search owns the concurrent, cancellable search tasks that feed a
// meal draft. One task may be active per channel; starting a new search on a
// channel cancels the running one, and a stale result (from a task that is no
// longer the most recently started on its channel) is never committed.
package search

import (
	"context"
	"sync"
	"time"

	"github.com/glucobite/glucobite-api/internal/logger"
	"github.com/glucobite/glucobite-api/internal/meal"
	"github.com/glucobite/glucobite-api/internal/models"
	"go.uber.org/zap"
)

// Channel is one source of search results.
type Channel string

// Channel values.
const (
	ChannelPhoto    Channel = "photo"
	ChannelText     Channel = "text"
	ChannelBarcode  Channel = "barcode"
	ChannelDatabase Channel = "database"
)

// TaskState is the lifecycle state of a channel's current search.
type TaskState string

// TaskState values.
const (
	StateIdle      TaskState = "idle"
	StateRunning   TaskState = "running"
	StateCompleted TaskState = "completed"
	StateCancelled TaskState = "cancelled"
	StateFailed    TaskState = "failed"
)

// RetryBackoff is how long the explicit wait-and-retry affordance waits before
// re-issuing a rate-limited query.
const RetryBackoff = 4 * time.Second

// SearchFunc performs one search against an external source. It must honor
// ctx cancellation and return the whole result group or an error; partial
// results are never merged.
type SearchFunc func(ctx context.Context) (*models.FoodGroup, error)

// Listener receives orchestrator outcomes. Callbacks run on the task's
// goroutine after the result has been committed (or rejected).
type Listener interface {
	SearchCompleted(ch Channel, group models.FoodGroup)
	SearchFailed(ch Channel, cerr *ClassifiedError)
}

// task tracks one spawned unit of work.
type task struct {
	gen    uint64
	cancel context.CancelFunc
	state  TaskState
}

// Orchestrator arbitrates searches across channels and commits accepted
// results into the draft atomically.
type Orchestrator struct {
	mu       sync.Mutex
	draft    *meal.Draft
	tasks    map[Channel]*task
	nextGen  uint64
	listener Listener

	// retryWait overrides RetryBackoff when nonzero.
	retryWait time.Duration
}

// NewOrchestrator creates an orchestrator feeding the given draft. The
// listener may be nil.
func NewOrchestrator(draft *meal.Draft, listener Listener) *Orchestrator {
	return &Orchestrator{
		draft:    draft,
		tasks:    make(map[Channel]*task),
		listener: listener,
	}
}

// State returns the lifecycle state of the channel's most recent search.
func (o *Orchestrator) State(ch Channel) TaskState {
	o.mu.Lock()
	defer o.mu.Unlock()
	if t, ok := o.tasks[ch]; ok {
		return t.state
	}
	return StateIdle
}

// Search starts a new search on the channel, cancelling any search already
// running there. It returns immediately; the outcome is delivered through the
// listener. The parent ctx bounds the task's lifetime.
func (o *Orchestrator) Search(ctx context.Context, ch Channel, fn SearchFunc) {
	o.mu.Lock()
	if prev, ok := o.tasks[ch]; ok && prev.state == StateRunning {
		prev.cancel()
		prev.state = StateCancelled
	}
	o.nextGen++
	taskCtx, cancel := context.WithCancel(ctx)
	t := &task{gen: o.nextGen, cancel: cancel, state: StateRunning}
	o.tasks[ch] = t
	gen := t.gen
	o.mu.Unlock()

	go func() {
		defer cancel()
		group, err := fn(taskCtx)
		o.finish(taskCtx, ch, gen, group, err)
	}()
}

// Cancel cancels the channel's running search, if any.
func (o *Orchestrator) Cancel(ch Channel) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if t, ok := o.tasks[ch]; ok && t.state == StateRunning {
		t.cancel()
		t.state = StateCancelled
	}
}

// CancelAll cancels every running search.
func (o *Orchestrator) CancelAll() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, t := range o.tasks {
		if t.state == StateRunning {
			t.cancel()
			t.state = StateCancelled
		}
	}
}

// Retry waits the fixed backoff and re-issues the query once. It is the
// explicit user-triggered affordance for rate-limited failures; no other
// failure kind is retried automatically. A retry is abandoned when a new
// search starts on the channel during the wait, so a stale replay can never
// cancel a fresher query.
func (o *Orchestrator) Retry(ctx context.Context, ch Channel, fn SearchFunc) {
	o.mu.Lock()
	var gen uint64
	if t, ok := o.tasks[ch]; ok {
		gen = t.gen
	}
	wait := o.retryWait
	if wait == 0 {
		wait = RetryBackoff
	}
	o.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		o.mu.Lock()
		superseded := false
		if t, ok := o.tasks[ch]; ok && t.gen != gen {
			superseded = true
		}
		o.mu.Unlock()
		if superseded {
			return
		}
		o.Search(ctx, ch, fn)
	}()
}

// finish applies last-write-wins arbitration and commits or rejects the
// result. A result is committed only when its task is still the most recently
// started on its channel and was not cancelled; the group is added whole or
// not at all.
func (o *Orchestrator) finish(taskCtx context.Context, ch Channel, gen uint64, group *models.FoodGroup, err error) {
	o.mu.Lock()
	t, ok := o.tasks[ch]
	if !ok || t.gen != gen {
		// A newer search started on this channel; this result is stale.
		o.mu.Unlock()
		logger.Get().Debug("discarding stale search result",
			zap.String("channel", string(ch)),
			zap.Uint64("generation", gen),
		)
		return
	}
	if t.state == StateCancelled || taskCtx.Err() != nil {
		t.state = StateCancelled
		o.mu.Unlock()
		return
	}

	if err != nil {
		cerr := Classify(err)
		if cerr == nil {
			// Cooperative cancellation surfaced as context.Canceled.
			t.state = StateCancelled
			o.mu.Unlock()
			return
		}
		t.state = StateFailed
		o.mu.Unlock()

		logger.Get().Warn("search failed",
			zap.String("channel", string(ch)),
			zap.String("kind", string(cerr.Kind)),
			zap.Error(cerr.Err),
		)
		if o.listener != nil {
			o.listener.SearchFailed(ch, cerr)
		}
		return
	}

	t.state = StateCompleted
	if group == nil {
		o.mu.Unlock()
		return
	}
	// Commit while still holding the arbitration lock so a newer search on
	// this channel cannot start between the staleness check and the commit.
	o.draft.AddGroup(*group)
	o.mu.Unlock()

	logger.Get().Info("search result committed",
		zap.String("channel", string(ch)),
		zap.String("group_id", group.ID),
		zap.Int("items", len(group.Items)),
	)
	if o.listener != nil {
		o.listener.SearchCompleted(ch, *group)
	}
}
