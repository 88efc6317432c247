//go:build integration
// +build integration

package backend_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/plantsight/pipevalidation/backend"
	"github.com/plantsight/pipevalidation/validation"

	_ "github.com/lib/pq"
)

// setupTestDB creates a PostgreSQL container, applies the schema, and
// returns a connection.
func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "validation_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithStartupTimeout(60 * time.Second),
	}

	postgresContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	host, err := postgresContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgresContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	connStr := fmt.Sprintf("host=%s port=%s user=test password=test dbname=validation_test sslmode=disable", host, port.Port())

	var db *sql.DB
	for i := 0; i < 30; i++ {
		db, err = sql.Open("postgres", connStr)
		if err == nil {
			err = db.Ping()
			if err == nil {
				break
			}
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	migrationSQL, err := os.ReadFile(filepath.Join("..", "migrations", "000001_initial_schema.up.sql"))
	if err != nil {
		t.Fatalf("Failed to read migration file: %v", err)
	}
	if _, err := db.Exec(string(migrationSQL)); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		db.Close()
		postgresContainer.Terminate(ctx)
	}

	return db, cleanup
}

func TestPostgresBackend_RuleCRUD(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	be := backend.NewPostgres(db)
	ctx := context.Background()

	templates, err := be.GetTemplates(ctx, "project-1")
	if err != nil {
		t.Fatalf("Failed to list templates: %v", err)
	}
	if len(templates) == 0 {
		t.Fatal("Seed migration should provide the PropertyValueRange template")
	}
	var templateID string
	for _, tmpl := range templates {
		if tmpl.DisplayName == validation.TemplatePropertyValueRange {
			templateID = tmpl.ID
		}
	}
	if templateID == "" {
		t.Fatal("PropertyValueRange template missing from seed data")
	}

	rule, err := be.CreateRule(ctx, validation.RuleCreateParams{
		ProjectID:    "project-1",
		DisplayName:  "Mineral Wool | Temperature: 32 - 500 | Insulation: 1 - 4",
		Description:  `{"insulationLow":1}`,
		TemplateID:   templateID,
		Severity:     "high",
		TargetSchema: "Openplant_3d",
		TargetClass:  "Piping_network_system",
		WhereClause:  "INSULATION = 'MINERAL_WOOL'",
		FunctionParameters: validation.FunctionParameters{
			LowerBound:   0.0254,
			UpperBound:   0.1016,
			PropertyName: "INSULATION_THICKNESS",
		},
	})
	if err != nil {
		t.Fatalf("Failed to create rule: %v", err)
	}
	if rule.FunctionName != validation.TemplatePropertyValueRange {
		t.Errorf("Expected function name %q, got %q", validation.TemplatePropertyValueRange, rule.FunctionName)
	}

	rules, err := be.GetRules(ctx, "project-1")
	if err != nil {
		t.Fatalf("Failed to list rules: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("Expected 1 rule, got %d", len(rules))
	}
	got := rules[0]
	if got.ID != rule.ID {
		t.Errorf("Expected rule id %q, got %q", rule.ID, got.ID)
	}
	if got.FunctionParameters.LowerBound != 0.0254 {
		t.Errorf("Expected lower bound 0.0254, got %v", got.FunctionParameters.LowerBound)
	}
	if got.WhereClause != "INSULATION = 'MINERAL_WOOL'" {
		t.Errorf("Unexpected where clause %q", got.WhereClause)
	}
}

func TestPostgresBackend_ProjectIsolation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	be := backend.NewPostgres(db)
	ctx := context.Background()

	templates, err := be.GetTemplates(ctx, "project-a")
	if err != nil {
		t.Fatalf("Failed to list templates: %v", err)
	}

	if _, err := be.CreateRule(ctx, validation.RuleCreateParams{
		ProjectID:   "project-a",
		DisplayName: "rule-a",
		TemplateID:  templates[0].ID,
	}); err != nil {
		t.Fatalf("Failed to create rule for project A: %v", err)
	}

	rulesB, err := be.GetRules(ctx, "project-b")
	if err != nil {
		t.Fatalf("Failed to list rules for project B: %v", err)
	}
	if len(rulesB) != 0 {
		t.Errorf("Project B should not see project A's rules, got %d", len(rulesB))
	}
}

func TestPostgresBackend_RunLifecycle(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	be := backend.NewPostgres(db)
	ctx := context.Background()

	test, err := be.CreateTest(ctx, validation.TestCreateParams{
		ProjectID:   "project-1",
		DisplayName: "insulation",
		RuleIDs:     []string{"rule-1", "rule-2"},
	})
	if err != nil {
		t.Fatalf("Failed to create test: %v", err)
	}

	tests, err := be.GetTests(ctx, "project-1")
	if err != nil {
		t.Fatalf("Failed to list tests: %v", err)
	}
	if len(tests) != 1 || len(tests[0].RuleIDs) != 2 {
		t.Fatalf("Expected 1 test with 2 rule ids, got %+v", tests)
	}

	run, err := be.RunTest(ctx, test.ID, "model-1", "version-1")
	if err != nil {
		t.Fatalf("Failed to run test: %v", err)
	}
	if run.Status != validation.RunQueued {
		t.Errorf("Expected queued status, got %q", run.Status)
	}

	runs, err := be.GetRuns(ctx, "project-1")
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ResultID != "" {
		t.Fatalf("Expected 1 queued run without result id, got %+v", runs)
	}

	resultSet := &validation.ResultSet{
		RuleList: []validation.RuleRef{{ID: "rule-1"}},
		Rows:     []validation.ResultRow{{RuleIndex: 0, ElementID: "pl-1", ElementLabel: "Line 1", BadValue: 0.01}},
	}
	if err := be.CompleteRun(ctx, run.ID, resultSet); err != nil {
		t.Fatalf("Failed to complete run: %v", err)
	}

	runs, err = be.GetRuns(ctx, "project-1")
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	completed := runs[0]
	if completed.Status != validation.RunCompleted {
		t.Errorf("Expected completed status, got %q", completed.Status)
	}
	if completed.ResultID == "" {
		t.Fatal("A completed run must carry a result id")
	}

	result, err := be.GetResult(ctx, completed.ResultID)
	if err != nil {
		t.Fatalf("Failed to get result: %v", err)
	}
	if len(result.Rows) != 1 || result.Rows[0].ElementID != "pl-1" {
		t.Errorf("Unexpected result payload %+v", result)
	}
}

func TestPostgresBackend_FailRun(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	be := backend.NewPostgres(db)
	ctx := context.Background()

	test, err := be.CreateTest(ctx, validation.TestCreateParams{
		ProjectID:   "project-1",
		DisplayName: "insulation",
	})
	if err != nil {
		t.Fatalf("Failed to create test: %v", err)
	}

	run, err := be.RunTest(ctx, test.ID, "model-1", "version-1")
	if err != nil {
		t.Fatalf("Failed to run test: %v", err)
	}

	if err := be.FailRun(ctx, run.ID); err != nil {
		t.Fatalf("Failed to fail run: %v", err)
	}

	runs, err := be.GetRuns(ctx, "project-1")
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if runs[0].Status != validation.RunFailed {
		t.Errorf("Expected failed status, got %q", runs[0].Status)
	}
	if runs[0].ResultID != "" {
		t.Error("A failed run must not carry a result id")
	}
}

func TestPostgresBackend_RunUnknownTest(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	be := backend.NewPostgres(db)
	if _, err := be.RunTest(context.Background(), "missing", "model-1", "version-1"); err == nil {
		t.Error("Expected error when running an unknown test, got nil")
	}
}

func TestPostgresBackend_CompleteUnknownRun(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	be := backend.NewPostgres(db)
	err := be.CompleteRun(context.Background(), "missing", &validation.ResultSet{})
	if err == nil {
		t.Error("Expected error when completing an unknown run, got nil")
	}
}
