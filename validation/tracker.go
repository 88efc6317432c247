package validation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/plantsight/pipevalidation/internal/logger"
)

// DefaultPollInterval is the delay between polling rounds while any
// tracked test is still pending.
const DefaultPollInterval = 5 * time.Second

// TestActivity is one test decorated with its runs, newest first.
// Pending means at least one attached run has not completed yet.
// CanTrigger exposes whether a new run may be started: false while the
// test is pending or after a run was triggered from this client, until
// the next full catalog refresh.
type TestActivity struct {
	Test       *TestSpec    `json:"test"`
	Runs       []*RunRecord `json:"runs"`
	Pending    bool         `json:"pending"`
	CanTrigger bool         `json:"canTrigger"`
}

// TrackerConfig configures a Tracker.
type TrackerConfig struct {
	// PollInterval overrides DefaultPollInterval when positive.
	PollInterval time.Duration

	// OnError receives failures of individual polling rounds. Such a
	// failure never aborts the polling schedule. Nil means the failure
	// is logged.
	OnError func(error)
}

// Tracker manages the lifecycle of test executions: it submits runs,
// fetches and sorts the test and run catalogs, attaches runs to their
// owning tests, and polls until no tracked test is pending. The backend
// offers no completion event, so this is a client-driven polling loop.
type Tracker struct {
	backend        Backend
	projectID      string
	modelID        string
	modelVersionID string
	interval       time.Duration
	onError        func(error)

	mu         sync.Mutex
	fetchSeq   uint64
	appliedSeq uint64
	activities []*TestActivity
	triggered  map[string]bool
	closed     bool
}

// NewTracker creates a Tracker for one project and model snapshot.
func NewTracker(backend Backend, projectID, modelID, modelVersionID string, config TrackerConfig) *Tracker {
	interval := config.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Tracker{
		backend:        backend,
		projectID:      projectID,
		modelID:        modelID,
		modelVersionID: modelVersionID,
		interval:       interval,
		onError:        config.OnError,
		triggered:      make(map[string]bool),
	}
}

// SubmitRun starts one run of the given test: a single backend call,
// no retry, the error surfaced as-is. The test's trigger affordance is
// suppressed until the next full refresh so a single client cannot
// start duplicate concurrent executions of the same test.
func (t *Tracker) SubmitRun(ctx context.Context, testID string) (*RunRecord, error) {
	t.mu.Lock()
	if t.triggered[testID] {
		t.mu.Unlock()
		return nil, fmt.Errorf("test %s already has a run triggered", testID)
	}
	t.triggered[testID] = true
	for _, a := range t.activities {
		if a.Test != nil && a.Test.ID == testID {
			a.CanTrigger = false
		}
	}
	t.mu.Unlock()

	run, err := t.backend.RunTest(ctx, testID, t.modelID, t.modelVersionID)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRunsAndTests fetches the full current catalogs, each sorted
// descending by creation/execution timestamp with stable ties: latest
// activity surfaces at the top, a user-facing contract.
func (t *Tracker) ListRunsAndTests(ctx context.Context) ([]*TestSpec, []*RunRecord, error) {
	tests, err := t.backend.GetTests(ctx, t.projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch tests: %w", err)
	}
	runs, err := t.backend.GetRuns(ctx, t.projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch runs: %w", err)
	}

	tests = append([]*TestSpec(nil), tests...)
	sort.SliceStable(tests, func(i, j int) bool {
		return tests[i].CreatedAt.After(tests[j].CreatedAt)
	})

	runs = append([]*RunRecord(nil), runs...)
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].ExecutedAt.After(runs[j].ExecutedAt)
	})

	return tests, runs, nil
}

// CorrelateRunsToTests attaches every run to the test whose id matches
// the run's back-reference, preserving both input orders. A test may
// own zero or many runs; a run with no matching test is dropped. Any
// attached run that has not completed marks its test pending.
func CorrelateRunsToTests(tests []*TestSpec, runs []*RunRecord) []*TestActivity {
	activities := make([]*TestActivity, len(tests))
	index := make(map[string]*TestActivity, len(tests))
	for i, test := range tests {
		activities[i] = &TestActivity{Test: test}
		index[test.ID] = activities[i]
	}

	for _, run := range runs {
		activity, ok := index[run.TestID]
		if !ok {
			continue
		}
		activity.Runs = append(activity.Runs, run)
		if !run.Status.Completed() {
			activity.Pending = true
		}
	}

	for _, a := range activities {
		a.CanTrigger = !a.Pending
	}

	return activities
}

// Refresh runs one full list+correlate round and applies the result.
// Every fetch carries a monotonic sequence number; a result is applied
// only when no newer result has been applied in the meantime, so a
// stale poll racing a user-triggered refresh cannot overwrite newer
// state.
func (t *Tracker) Refresh(ctx context.Context) ([]*TestActivity, error) {
	t.mu.Lock()
	t.fetchSeq++
	seq := t.fetchSeq
	t.mu.Unlock()

	tests, runs, err := t.ListRunsAndTests(ctx)
	if err != nil {
		return nil, err
	}
	activities := CorrelateRunsToTests(tests, runs)

	t.mu.Lock()
	defer t.mu.Unlock()
	if seq < t.appliedSeq {
		// A newer fetch already landed; the stale result loses.
		return t.snapshotLocked(), nil
	}
	t.appliedSeq = seq
	// A full refresh restores every trigger affordance.
	t.triggered = make(map[string]bool)
	t.activities = activities
	return t.snapshotLocked(), nil
}

// Snapshot returns the last applied activity view.
func (t *Tracker) Snapshot() []*TestActivity {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() []*TestActivity {
	out := make([]*TestActivity, len(t.activities))
	copy(out, t.activities)
	return out
}

// PollUntilSettled refreshes, then keeps re-refreshing after the poll
// interval while any test is pending. A failed round is reported and
// the schedule continues; the loop stops when nothing is pending, the
// context is done, or the tracker is closed.
func (t *Tracker) PollUntilSettled(ctx context.Context) error {
	for {
		activities, err := t.Refresh(ctx)
		if err != nil {
			t.reportError(err)
		} else if !anyPending(activities) {
			return nil
		}

		t.mu.Lock()
		closed := t.closed
		t.mu.Unlock()
		if closed {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.interval):
		}
	}
}

// Close stops the tracker from rescheduling further polls. Refresh and
// SubmitRun stay usable; only the self-rescheduling loop ends.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

func (t *Tracker) reportError(err error) {
	if t.onError != nil {
		t.onError(err)
		return
	}
	logger.Warn("polling round failed", "error", err)
}

func anyPending(activities []*TestActivity) bool {
	for _, a := range activities {
		if a.Pending {
			return true
		}
	}
	return false
}
