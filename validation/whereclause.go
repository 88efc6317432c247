package validation

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
)

// WhereClause builds the boolean filter restricting which model
// entities a rule applies to, as a conjunction of property comparisons.
// It renders the backend's filter syntax and, separately, a CEL form
// used to validate the clause's structure before a rule is submitted.
type WhereClause struct {
	conds []condition
}

type condition struct {
	property string
	op       string
	number   float64
	text     string
	isText   bool
}

// NewWhereClause returns an empty clause. An empty clause is invalid:
// every rule filter names at least one property.
func NewWhereClause() *WhereClause {
	return &WhereClause{}
}

// LessThan adds "property < value" (strict).
func (w *WhereClause) LessThan(property string, value float64) *WhereClause {
	w.conds = append(w.conds, condition{property: property, op: "<", number: value})
	return w
}

// GreaterThan adds "property > value" (strict).
func (w *WhereClause) GreaterThan(property string, value float64) *WhereClause {
	w.conds = append(w.conds, condition{property: property, op: ">", number: value})
	return w
}

// Equals adds "property = 'value'".
func (w *WhereClause) Equals(property, value string) *WhereClause {
	w.conds = append(w.conds, condition{property: property, op: "=", text: value, isText: true})
	return w
}

// String renders the clause in the backend's filter syntax, e.g.
// "NORMAL_OPERATING_TEMPERATURE < 533.15 AND INSULATION = 'FIBER_GLASS'".
func (w *WhereClause) String() string {
	parts := make([]string, 0, len(w.conds))
	for _, c := range w.conds {
		if c.isText {
			parts = append(parts, fmt.Sprintf("%s %s '%s'", c.property, c.op, c.text))
		} else {
			parts = append(parts, fmt.Sprintf("%s %s %s", c.property, c.op, formatNumber(c.number)))
		}
	}
	return strings.Join(parts, " AND ")
}

// celExpr renders the clause as a CEL expression over the same
// properties.
func (w *WhereClause) celExpr() string {
	parts := make([]string, 0, len(w.conds))
	for _, c := range w.conds {
		if c.isText {
			parts = append(parts, fmt.Sprintf("%s == %q", c.property, c.text))
		} else {
			parts = append(parts, fmt.Sprintf("%s %s %s", c.property, c.op, formatNumber(c.number)))
		}
	}
	return strings.Join(parts, " && ")
}

// Validate compiles the clause's CEL rendering with every referenced
// property declared as a variable. A clause that does not compile never
// reaches the backend.
func (w *WhereClause) Validate() error {
	if len(w.conds) == 0 {
		return fmt.Errorf("where clause is empty")
	}

	var opts []cel.EnvOption
	seen := make(map[string]bool)
	for _, c := range w.conds {
		if !seen[c.property] {
			opts = append(opts, cel.Variable(c.property, cel.DynType))
			seen[c.property] = true
		}
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return fmt.Errorf("failed to create CEL environment: %w", err)
	}

	if _, issues := env.Compile(w.celExpr()); issues != nil && issues.Err() != nil {
		return fmt.Errorf("where clause does not compile: %w", issues.Err())
	}

	return nil
}
