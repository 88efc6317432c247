// Package backend provides reference implementations of the validation
// service boundary: an in-memory backend that simulates the run
// lifecycle for tests and local development, and a PostgreSQL-backed
// one for deployments that own their catalog persistence.
package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plantsight/pipevalidation/validation"
)

// InMemoryBackend implements validation.Backend in memory. Each run
// advances one lifecycle step (queued → running → completed) per
// GetRuns observation, and a completed run gains a result id bound to
// a stored result set, so polling behavior can be exercised without a
// real service.
type InMemoryBackend struct {
	mu        sync.Mutex
	templates []validation.RuleTemplate
	rules     []*validation.RuleSpec
	tests     []*validation.TestSpec
	runs      []*validation.RunRecord
	results   map[string]*validation.ResultSet
	resultFn  func(test *validation.TestSpec) *validation.ResultSet
	errs      map[string]error
	now       func() time.Time
}

// NewInMemory creates a backend pre-seeded with the PropertyValueRange
// template.
func NewInMemory() *InMemoryBackend {
	return &InMemoryBackend{
		templates: []validation.RuleTemplate{
			{ID: uuid.NewString(), DisplayName: validation.TemplatePropertyValueRange},
		},
		results: make(map[string]*validation.ResultSet),
		errs:    make(map[string]error),
		now:     time.Now,
	}
}

// SetTemplates replaces the template catalog.
func (b *InMemoryBackend) SetTemplates(templates []validation.RuleTemplate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.templates = append([]validation.RuleTemplate(nil), templates...)
}

// SetResultFn sets the generator for the result set a completing run
// produces. Nil results default to an empty result set.
func (b *InMemoryBackend) SetResultFn(fn func(test *validation.TestSpec) *validation.ResultSet) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resultFn = fn
}

// SetClock overrides the timestamp source.
func (b *InMemoryBackend) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// FailNext makes the next call of the named operation fail with err.
func (b *InMemoryBackend) FailNext(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errs[op] = err
}

func (b *InMemoryBackend) takeErr(op string) error {
	if err, ok := b.errs[op]; ok {
		delete(b.errs, op)
		return err
	}
	return nil
}

func (b *InMemoryBackend) GetTemplates(ctx context.Context, projectID string) ([]validation.RuleTemplate, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.takeErr("GetTemplates"); err != nil {
		return nil, err
	}
	return append([]validation.RuleTemplate(nil), b.templates...), nil
}

func (b *InMemoryBackend) CreateRule(ctx context.Context, params validation.RuleCreateParams) (*validation.RuleSpec, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.takeErr("CreateRule"); err != nil {
		return nil, err
	}

	functionName := ""
	for _, t := range b.templates {
		if t.ID == params.TemplateID {
			functionName = t.DisplayName
			break
		}
	}

	rule := &validation.RuleSpec{
		ID:                 uuid.NewString(),
		DisplayName:        params.DisplayName,
		Description:        params.Description,
		TemplateID:         params.TemplateID,
		FunctionName:       functionName,
		Severity:           params.Severity,
		TargetSchema:       params.TargetSchema,
		TargetClass:        params.TargetClass,
		WhereClause:        params.WhereClause,
		FunctionParameters: params.FunctionParameters,
		CreatedAt:          b.now(),
	}
	b.rules = append(b.rules, rule)

	out := *rule
	return &out, nil
}

func (b *InMemoryBackend) GetRules(ctx context.Context, projectID string) ([]*validation.RuleSpec, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.takeErr("GetRules"); err != nil {
		return nil, err
	}

	out := make([]*validation.RuleSpec, len(b.rules))
	for i, r := range b.rules {
		c := *r
		out[i] = &c
	}
	return out, nil
}

func (b *InMemoryBackend) CreateTest(ctx context.Context, params validation.TestCreateParams) (*validation.TestSpec, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.takeErr("CreateTest"); err != nil {
		return nil, err
	}

	test := &validation.TestSpec{
		ID:            uuid.NewString(),
		DisplayName:   params.DisplayName,
		Description:   params.Description,
		RuleIDs:       append([]string(nil), params.RuleIDs...),
		StopOnFailure: params.StopOnFailure,
		CreatedAt:     b.now(),
	}
	b.tests = append(b.tests, test)

	out := *test
	return &out, nil
}

func (b *InMemoryBackend) GetTests(ctx context.Context, projectID string) ([]*validation.TestSpec, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.takeErr("GetTests"); err != nil {
		return nil, err
	}

	out := make([]*validation.TestSpec, len(b.tests))
	for i, t := range b.tests {
		c := *t
		out[i] = &c
	}
	return out, nil
}

func (b *InMemoryBackend) RunTest(ctx context.Context, testID, modelID, modelVersionID string) (*validation.RunRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.takeErr("RunTest"); err != nil {
		return nil, err
	}

	if b.findTest(testID) == nil {
		return nil, fmt.Errorf("test %s not found", testID)
	}

	run := &validation.RunRecord{
		ID:         uuid.NewString(),
		TestID:     testID,
		Status:     validation.RunQueued,
		ExecutedAt: b.now(),
	}
	b.runs = append(b.runs, run)

	out := *run
	return &out, nil
}

// GetRuns returns the run catalog, advancing every unfinished run one
// lifecycle step first. The resultId-iff-completed invariant holds at
// every step: the id appears in the same step the status turns
// completed.
func (b *InMemoryBackend) GetRuns(ctx context.Context, projectID string) ([]*validation.RunRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.takeErr("GetRuns"); err != nil {
		return nil, err
	}

	for _, run := range b.runs {
		switch run.Status {
		case validation.RunQueued:
			run.Status = validation.RunRunning
		case validation.RunRunning:
			run.Status = validation.RunCompleted
			run.ResultID = uuid.NewString()
			result := &validation.ResultSet{}
			if b.resultFn != nil {
				if r := b.resultFn(b.findTest(run.TestID)); r != nil {
					result = r
				}
			}
			b.results[run.ResultID] = result
		}
	}

	out := make([]*validation.RunRecord, len(b.runs))
	for i, r := range b.runs {
		c := *r
		out[i] = &c
	}
	return out, nil
}

func (b *InMemoryBackend) GetResult(ctx context.Context, resultID string) (*validation.ResultSet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.takeErr("GetResult"); err != nil {
		return nil, err
	}

	result, ok := b.results[resultID]
	if !ok {
		return nil, fmt.Errorf("result %s not found", resultID)
	}
	return result, nil
}

func (b *InMemoryBackend) findTest(testID string) *validation.TestSpec {
	for _, t := range b.tests {
		if t.ID == testID {
			return t
		}
	}
	return nil
}
