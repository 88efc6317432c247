package validation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// CatalogConfig holds configuration for catalog snapshot behavior.
type CatalogConfig struct {
	// TTL is the time-to-live for a snapshot. Zero means no expiration:
	// the snapshot stays valid until the next Refresh or Invalidate.
	TTL time.Duration
}

// DefaultCatalogConfig returns the default: refresh on demand only.
func DefaultCatalogConfig() CatalogConfig {
	return CatalogConfig{TTL: 0}
}

// Catalog is an in-memory snapshot of the backend's rule and test
// catalogs: refreshed on demand, sorted most-recent-first, and indexed
// by id for the correlator's lookups. Reads return copies so callers
// cannot mutate the snapshot.
type Catalog struct {
	backend   Backend
	projectID string
	config    CatalogConfig

	mu        sync.RWMutex
	rules     []*RuleSpec
	tests     []*TestSpec
	rulesByID map[string]*RuleSpec
	testsByID map[string]*TestSpec
	cachedAt  time.Time
	isValid   bool
}

// NewCatalog creates a catalog snapshot for one project.
func NewCatalog(backend Backend, projectID string, config CatalogConfig) *Catalog {
	return &Catalog{
		backend:   backend,
		projectID: projectID,
		config:    config,
	}
}

// Refresh fetches the current rule and test catalogs. Rules are
// filtered to the PropertyValueRange function and both catalogs are
// sorted descending by creation time with stable ties.
func (c *Catalog) Refresh(ctx context.Context) error {
	fetched, err := c.backend.GetRules(ctx, c.projectID)
	if err != nil {
		return fmt.Errorf("failed to fetch rules: %w", err)
	}

	rules := make([]*RuleSpec, 0, len(fetched))
	for _, r := range fetched {
		if r.FunctionName == TemplatePropertyValueRange {
			rules = append(rules, r)
		}
	}
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].CreatedAt.After(rules[j].CreatedAt)
	})

	tests, err := c.backend.GetTests(ctx, c.projectID)
	if err != nil {
		return fmt.Errorf("failed to fetch tests: %w", err)
	}
	tests = append([]*TestSpec(nil), tests...)
	sort.SliceStable(tests, func(i, j int) bool {
		return tests[i].CreatedAt.After(tests[j].CreatedAt)
	})

	rulesByID := make(map[string]*RuleSpec, len(rules))
	for _, r := range rules {
		rulesByID[r.ID] = r
	}
	testsByID := make(map[string]*TestSpec, len(tests))
	for _, t := range tests {
		testsByID[t.ID] = t
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules = rules
	c.tests = tests
	c.rulesByID = rulesByID
	c.testsByID = testsByID
	c.cachedAt = time.Now()
	c.isValid = true
	return nil
}

// Rules returns the cached rules, most recent first. Nil when the
// snapshot is invalid or expired.
func (c *Catalog) Rules() []*RuleSpec {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.validLocked() {
		return nil
	}
	out := make([]*RuleSpec, len(c.rules))
	copy(out, c.rules)
	return out
}

// Tests returns the cached tests, most recent first. Nil when the
// snapshot is invalid or expired.
func (c *Catalog) Tests() []*TestSpec {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.validLocked() {
		return nil
	}
	out := make([]*TestSpec, len(c.tests))
	copy(out, c.tests)
	return out
}

// Rule looks up a cached rule by id.
func (c *Catalog) Rule(id string) (*RuleSpec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.validLocked() {
		return nil, false
	}
	r, ok := c.rulesByID[id]
	return r, ok
}

// Test looks up a cached test by id.
func (c *Catalog) Test(id string) (*TestSpec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.validLocked() {
		return nil, false
	}
	t, ok := c.testsByID[id]
	return t, ok
}

// RuleIndex returns a copy of the id→rule mapping for correlation.
func (c *Catalog) RuleIndex() map[string]*RuleSpec {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.validLocked() {
		return nil
	}
	out := make(map[string]*RuleSpec, len(c.rulesByID))
	for id, r := range c.rulesByID {
		out[id] = r
	}
	return out
}

// Invalidate clears the snapshot, forcing the next reader through
// Refresh.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.isValid = false
	c.rules = nil
	c.tests = nil
	c.rulesByID = nil
	c.testsByID = nil
}

// Valid reports whether the snapshot holds usable data.
func (c *Catalog) Valid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.validLocked()
}

func (c *Catalog) validLocked() bool {
	if !c.isValid {
		return false
	}
	if c.config.TTL > 0 && time.Since(c.cachedAt) > c.config.TTL {
		return false
	}
	return true
}
