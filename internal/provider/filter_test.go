package provider

import (
	"testing"

	"github.com/dnswlt/apicsync/internal/apic"
	"github.com/dnswlt/apicsync/internal/transform"
)

func TestCatalogFilter(t *testing.T) {
	sandbox := transform.Catalog(&apic.Catalog{ID: "c1", Name: "sandbox", Title: "Sandbox"})
	prod := transform.Catalog(&apic.Catalog{ID: "c2", Name: "production", Title: "Production"})

	tests := []struct {
		expr        string
		wantSandbox bool
		wantProd    bool
	}{
		{`name != "sandbox"`, false, true},
		{`title.startsWith("Prod")`, false, true},
		{`org == "org1"`, true, true},
		{`id in ["c1"]`, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			f, err := NewCatalogFilter(tt.expr)
			if err != nil {
				t.Fatalf("NewCatalogFilter() failed: %v", err)
			}
			if got, err := f.Matches(sandbox, "org1"); err != nil || got != tt.wantSandbox {
				t.Errorf("Matches(sandbox) = %v, %v, want %v", got, err, tt.wantSandbox)
			}
			if got, err := f.Matches(prod, "org1"); err != nil || got != tt.wantProd {
				t.Errorf("Matches(production) = %v, %v, want %v", got, err, tt.wantProd)
			}
		})
	}
}

func TestCatalogFilter_Invalid(t *testing.T) {
	for _, expr := range []string{`name +`, `name`, `unknown == "x"`} {
		if _, err := NewCatalogFilter(expr); err == nil {
			t.Errorf("NewCatalogFilter(%q) succeeded, want error", expr)
		}
	}
}

func TestCatalogFilter_Nil(t *testing.T) {
	var f *CatalogFilter
	ok, err := f.Matches(transform.Catalog(&apic.Catalog{Name: "x"}), "")
	if err != nil || !ok {
		t.Errorf("nil filter: Matches() = %v, %v", ok, err)
	}
}

func TestCatalogFilter_Empty(t *testing.T) {
	f, err := NewCatalogFilter("")
	if err != nil || f != nil {
		t.Errorf("NewCatalogFilter(\"\") = %v, %v, want nil filter", f, err)
	}
}
