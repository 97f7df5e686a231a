package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	t.Setenv("APIC_TEST_SECRET", "s3cret")
	bundle, err := Parse([]byte(`
providers:
  production:
    baseUrl: https://apic.example.com/api
    clientId: cid
    clientSecret: ${APIC_TEST_SECRET}
    username: admin
    password: pw
    schedule: 30m
    fetchDocuments: false
    catalogFilter: 'name != "sandbox"'
sink:
  dir: out
  gitCommit: true
`))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	p := bundle.Providers["production"]
	want := &Provider{
		BaseURL:        "https://apic.example.com/api",
		Realm:          "provider/default-idp-2",
		ClientID:       "cid",
		ClientSecret:   "s3cret",
		Username:       "admin",
		Password:       "pw",
		Schedule:       30 * time.Minute,
		Timeout:        30 * time.Second,
		FetchDocuments: p.FetchDocuments,
		CatalogFilter:  `name != "sandbox"`,
		RateLimit:      10,
	}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("provider mismatch (-want +got):\n%s", diff)
	}
	if p.ShouldFetchDocuments() {
		t.Error("ShouldFetchDocuments() = true, want false")
	}
	if diff := cmp.Diff(Sink{Dir: "out", GitCommit: true}, bundle.Sink); diff != "" {
		t.Errorf("sink mismatch (-want +got):\n%s", diff)
	}
	cc := p.ClientConfig("production")
	if cc.ProviderID != "production" || cc.ClientSecret != "s3cret" {
		t.Errorf("ClientConfig() = %+v", cc)
	}
}

func TestParse_OnlyBracedReferencesAreExpanded(t *testing.T) {
	t.Setenv("APIC_TEST_SECRET", "s3cret")
	bundle, err := Parse([]byte(`
providers:
  p1:
    baseUrl: https://apic.example.com/api
    clientId: cid
    clientSecret: ${APIC_TEST_SECRET}
    username: admin
    password: 'pa$$w0rd$HOME'
    catalogFilter: 'name.startsWith("$")'
`))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	p := bundle.Providers["p1"]
	if p.ClientSecret != "s3cret" {
		t.Errorf("ClientSecret = %q, want s3cret", p.ClientSecret)
	}
	if p.Password != "pa$$w0rd$HOME" {
		t.Errorf("Password = %q, want it unchanged", p.Password)
	}
	if p.CatalogFilter != `name.startsWith("$")` {
		t.Errorf("CatalogFilter = %q, want it unchanged", p.CatalogFilter)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "no providers",
			yaml:    "sink:\n  dir: out\n",
			wantErr: "no providers",
		},
		{
			name:    "missing baseUrl",
			yaml:    "providers:\n  p1:\n    realm: x\n",
			wantErr: "baseUrl is required",
		},
		{
			name:    "unpaired client credentials",
			yaml:    "providers:\n  p1:\n    baseUrl: https://h\n    clientId: cid\n",
			wantErr: "clientId and clientSecret",
		},
		{
			name:    "unpaired user credentials",
			yaml:    "providers:\n  p1:\n    baseUrl: https://h\n    password: pw\n",
			wantErr: "username and password",
		},
		{
			name:    "unknown field",
			yaml:    "providers:\n  p1:\n    baseUrl: https://h\n    colour: red\n",
			wantErr: "colour",
		},
		{
			name:    "invalid provider id",
			yaml:    "providers:\n  -bad:\n    baseUrl: https://h\n",
			wantErr: "invalid provider id",
		},
		{
			name:    "git without dir",
			yaml:    "providers:\n  p1:\n    baseUrl: https://h\nsink:\n  gitCommit: true\n",
			wantErr: "gitCommit requires dir",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatalf("Parse() succeeded, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apicsync.yml")
	if err := os.WriteFile(path, []byte("providers:\n  p1:\n    baseUrl: https://h\n"), 0644); err != nil {
		t.Fatal(err)
	}
	bundle, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if diff := cmp.Diff([]string{"p1"}, bundle.ProviderIDs()); diff != "" {
		t.Errorf("ProviderIDs() mismatch (-want +got):\n%s", diff)
	}
	if !bundle.Providers["p1"].ShouldFetchDocuments() {
		t.Error("fetchDocuments must default to true")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("Load() of missing file succeeded")
	}
}
