package ogm

import (
	"context"
	"fmt"
	"strings"

	"github.com/CaliLuke/go-cypherogm/cypher"
)

// SchemaStatements returns idempotent statements creating the constraints
// and indexes the mapping relies on: a uniqueness constraint per registered
// type over its key, one for the identity counter, and an index on the
// PropertyName of connection edges.
func SchemaStatements() []Statement {
	var stmts []Statement
	for _, desc := range RegisteredTypes() {
		stmts = append(stmts, keyConstraint(desc))
	}
	stmts = append(stmts,
		schemaStatement(fmt.Sprintf(
			"CREATE CONSTRAINT %s IF NOT EXISTS FOR (n:%s) REQUIRE n.Scope IS UNIQUE",
			constraintName(IdentityLabel, "scope"), IdentityLabel)),
		schemaStatement(fmt.Sprintf(
			"CREATE INDEX %s IF NOT EXISTS FOR ()-[r:%s]-() ON (r.PropertyName)",
			constraintName(ConnectionType, "property"), ConnectionType)),
	)
	return stmts
}

// GenerateSchema returns the schema statements as one script, one statement
// per line, terminated by semicolons.
func GenerateSchema() string {
	stmts := SchemaStatements()
	lines := make([]string, len(stmts))
	for i, s := range stmts {
		lines[i] = s.Text + ";"
	}
	return strings.Join(lines, "\n")
}

// EnsureSchema executes the schema statements in order.
func EnsureSchema(ctx context.Context, exec Executor) error {
	if exec == nil {
		return &ArgumentError{Op: "ensure schema", Message: "executor must not be nil"}
	}
	for _, stmt := range SchemaStatements() {
		if err := checkCtx(ctx, "ensure schema", ""); err != nil {
			return err
		}
		if _, err := exec.Execute(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func keyConstraint(desc *TypeDescriptor) Statement {
	props := make([]string, len(desc.Key))
	for i, k := range desc.Key {
		props[i] = "n." + cypher.QuoteIdent(k)
	}
	target := props[0]
	if len(props) > 1 {
		target = "(" + strings.Join(props, ", ") + ")"
	}
	return schemaStatement(fmt.Sprintf(
		"CREATE CONSTRAINT %s IF NOT EXISTS FOR (n:%s) REQUIRE %s IS UNIQUE",
		constraintName(desc.Label, "key"), cypher.QuoteIdent(desc.Label), target))
}

func schemaStatement(text string) Statement {
	c := &cypher.Compiler{}
	out, _ := c.Compile(cypher.SchemaClause{Content: text})
	return Statement{Text: out, Params: map[string]any{}, Op: OpSchema}
}

// constraintName builds a stable constraint or index name.
func constraintName(label, suffix string) string {
	var b strings.Builder
	b.WriteString("ogm_")
	for _, r := range strings.ToLower(label) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	b.WriteByte('_')
	b.WriteString(suffix)
	return b.String()
}
