package backend

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/plantsight/pipevalidation/validation"
)

// PostgresBackend implements validation.Backend on PostgreSQL. It owns
// catalog persistence and run bookkeeping; rule evaluation itself stays
// external, so a run is inserted queued and settled later through
// CompleteRun or FailRun by whatever executes it.
type PostgresBackend struct {
	db *sql.DB
}

// NewPostgres creates a backend on an open database. The schema under
// migrations/ must have been applied.
func NewPostgres(db *sql.DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

func (b *PostgresBackend) GetTemplates(ctx context.Context, projectID string) ([]validation.RuleTemplate, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT id, display_name
		FROM rule_templates
		ORDER BY display_name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var templates []validation.RuleTemplate
	for rows.Next() {
		var t validation.RuleTemplate
		if err := rows.Scan(&t.ID, &t.DisplayName); err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating templates: %w", err)
	}
	return templates, nil
}

func (b *PostgresBackend) CreateRule(ctx context.Context, params validation.RuleCreateParams) (*validation.RuleSpec, error) {
	var functionName string
	err := b.db.QueryRowContext(ctx, `
		SELECT display_name FROM rule_templates WHERE id = $1
	`, params.TemplateID).Scan(&functionName)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("template %s not found", params.TemplateID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve template: %w", err)
	}

	functionParams, err := json.Marshal(params.FunctionParameters)
	if err != nil {
		return nil, fmt.Errorf("failed to encode function parameters: %w", err)
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
		CreatedAt:          time.Now().UTC(),
	}

	_, err = b.db.ExecContext(ctx, `
		INSERT INTO rules (id, project_id, display_name, description, template_id,
			function_name, severity, target_schema, target_class, where_clause,
			function_parameters, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, rule.ID, params.ProjectID, rule.DisplayName, rule.Description, rule.TemplateID,
		rule.FunctionName, rule.Severity, rule.TargetSchema, rule.TargetClass,
		rule.WhereClause, functionParams, rule.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert rule: %w", err)
	}

	return rule, nil
}

func (b *PostgresBackend) GetRules(ctx context.Context, projectID string) ([]*validation.RuleSpec, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT id, display_name, description, template_id, function_name, severity,
			target_schema, target_class, where_clause, function_parameters, created_at
		FROM rules
		WHERE project_id = $1
		ORDER BY created_at ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rules []*validation.RuleSpec
	for rows.Next() {
		var r validation.RuleSpec
		var functionParams []byte
		if err := rows.Scan(&r.ID, &r.DisplayName, &r.Description, &r.TemplateID,
			&r.FunctionName, &r.Severity, &r.TargetSchema, &r.TargetClass,
			&r.WhereClause, &functionParams, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		if err := json.Unmarshal(functionParams, &r.FunctionParameters); err != nil {
			return nil, fmt.Errorf("invalid function parameters for rule %s: %w", r.ID, err)
		}
		rules = append(rules, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}
	return rules, nil
}

func (b *PostgresBackend) CreateTest(ctx context.Context, params validation.TestCreateParams) (*validation.TestSpec, error) {
	test := &validation.TestSpec{
		ID:            uuid.NewString(),
		DisplayName:   params.DisplayName,
		Description:   params.Description,
		RuleIDs:       append([]string(nil), params.RuleIDs...),
		StopOnFailure: params.StopOnFailure,
		CreatedAt:     time.Now().UTC(),
	}

	_, err := b.db.ExecContext(ctx, `
		INSERT INTO tests (id, project_id, display_name, description, rule_ids,
			stop_on_failure, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, test.ID, params.ProjectID, test.DisplayName, test.Description,
		pq.Array(test.RuleIDs), test.StopOnFailure, test.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert test: %w", err)
	}

	return test, nil
}

func (b *PostgresBackend) GetTests(ctx context.Context, projectID string) ([]*validation.TestSpec, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT id, display_name, description, rule_ids, stop_on_failure, created_at
		FROM tests
		WHERE project_id = $1
		ORDER BY created_at ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tests: %w", err)
	}
	defer rows.Close()

	var tests []*validation.TestSpec
	for rows.Next() {
		var t validation.TestSpec
		var ruleIDs pq.StringArray
		if err := rows.Scan(&t.ID, &t.DisplayName, &t.Description, &ruleIDs,
			&t.StopOnFailure, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan test: %w", err)
		}
		t.RuleIDs = []string(ruleIDs)
		tests = append(tests, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tests: %w", err)
	}
	return tests, nil
}

func (b *PostgresBackend) RunTest(ctx context.Context, testID, modelID, modelVersionID string) (*validation.RunRecord, error) {
	var exists bool
	err := b.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM tests WHERE id = $1)
	`, testID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check test existence: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("test %s not found", testID)
	}

	run := &validation.RunRecord{
		ID:         uuid.NewString(),
		TestID:     testID,
		Status:     validation.RunQueued,
		ExecutedAt: time.Now().UTC(),
	}

	_, err = b.db.ExecContext(ctx, `
		INSERT INTO runs (id, test_id, model_id, model_version_id, status, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, run.ID, run.TestID, modelID, modelVersionID, run.Status, run.ExecutedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	return run, nil
}

func (b *PostgresBackend) GetRuns(ctx context.Context, projectID string) ([]*validation.RunRecord, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT r.id, r.test_id, r.status, r.executed_at, COALESCE(r.result_id, '')
		FROM runs r
		JOIN tests t ON t.id = r.test_id
		WHERE t.project_id = $1
		ORDER BY r.executed_at ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*validation.RunRecord
	for rows.Next() {
		var r validation.RunRecord
		if err := rows.Scan(&r.ID, &r.TestID, &r.Status, &r.ExecutedAt, &r.ResultID); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// CompleteRun stores the result set and marks the run completed, in one
// transaction so the result id appears exactly when the status does.
func (b *PostgresBackend) CompleteRun(ctx context.Context, runID string, result *validation.ResultSet) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result set: %w", err)
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	resultID := uuid.NewString()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO results (id, payload) VALUES ($1, $2)
	`, resultID, payload); err != nil {
		return fmt.Errorf("failed to insert result: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE runs SET status = $1, result_id = $2 WHERE id = $3
	`, validation.RunCompleted, resultID, runID)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s not found", runID)
	}

	return tx.Commit()
}

// FailRun marks the run failed with no result.
func (b *PostgresBackend) FailRun(ctx context.Context, runID string) error {
	res, err := b.db.ExecContext(ctx, `
		UPDATE runs SET status = $1 WHERE id = $2
	`, validation.RunFailed, runID)
	if err != nil {
		return fmt.Errorf("failed to fail run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

func (b *PostgresBackend) GetResult(ctx context.Context, resultID string) (*validation.ResultSet, error) {
	var payload []byte
	err := b.db.QueryRowContext(ctx, `
		SELECT payload FROM results WHERE id = $1
	`, resultID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("result %s not found", resultID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}

	var result validation.ResultSet
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("invalid result payload: %w", err)
	}
	return &result, nil
}
