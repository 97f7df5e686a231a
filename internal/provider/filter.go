package provider

import (
	"fmt"

	"github.com/dnswlt/apicsync/internal/api"
	"github.com/google/cel-go/cel"
)

// CatalogFilter selects the catalogs to ingest with a CEL expression over
// the variables name, title, id, and org (the organization name).
type CatalogFilter struct {
	expr string
	prg  cel.Program
}

// NewCatalogFilter compiles expr, which must evaluate to a bool.
// An empty expr yields a nil filter, which matches all catalogs.
func NewCatalogFilter(expr string) (*CatalogFilter, error) {
	if expr == "" {
		return nil, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("name", cel.StringType),
		cel.Variable("title", cel.StringType),
		cel.Variable("id", cel.StringType),
		cel.Variable("org", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("invalid catalog filter %q: %w", expr, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("catalog filter %q must evaluate to bool, not %s", expr, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog filter %q: %w", expr, err)
	}
	return &CatalogFilter{expr: expr, prg: prg}, nil
}

func (f *CatalogFilter) String() string {
	return f.expr
}

// Matches reports whether the catalog of organization orgName passes the filter.
// A nil filter matches all catalogs.
func (f *CatalogFilter) Matches(catalog *api.System, orgName string) (bool, error) {
	if f == nil {
		return true, nil
	}
	val, _, err := f.prg.Eval(map[string]any{
		"name":  catalog.Metadata.Name,
		"title": catalog.Metadata.Title,
		"id":    catalog.Metadata.ID,
		"org":   orgName,
	})
	if err != nil {
		return false, fmt.Errorf("evaluating catalog filter for %s: %w", catalog.GetRef(), err)
	}
	b, ok := val.Value().(bool)
	if !ok {
		return false, fmt.Errorf("catalog filter returned %T, want bool", val.Value())
	}
	return b, nil
}
