package sink

import (
	"context"
	"slices"
	"testing"

	"github.com/dnswlt/apicsync/internal/api"
	"github.com/dnswlt/apicsync/internal/gitclient"
	"github.com/dnswlt/apicsync/internal/store"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func system(name string) *api.System {
	return &api.System{
		APIVersion: api.APIVersionBackstage,
		Kind:       api.YAMLKindSystem,
		Metadata:   &api.Metadata{Name: name},
		Spec:       &api.SystemSpec{Type: api.SystemTypeCatalog},
	}
}

func apiEntity(ns, name string) *api.API {
	return &api.API{
		APIVersion: api.APIVersionBackstage,
		Kind:       api.YAMLKindAPI,
		Metadata:   &api.Metadata{Name: name, Namespace: ns},
		Spec:       &api.APISpec{Owner: api.NewRef(api.KindSystem, "", ns), System: api.NewRef(api.KindSystem, "", ns)},
	}
}

func TestWithLocation(t *testing.T) {
	s := system("cat1")
	d := WithLocation(LocationKey("prod"), s)
	if d.LocationKey != "apic:prod" {
		t.Errorf("LocationKey = %q", d.LocationKey)
	}
	for _, a := range []string{api.AnnotManagedByLocation, api.AnnotManagedByOriginLoc} {
		if got := s.Metadata.Annotation(a); got != "apic:prod" {
			t.Errorf("annotation %s = %q", a, got)
		}
	}
}

func TestMutation_Validate(t *testing.T) {
	pending := system("cat1")
	pending.Spec.Owner = api.Pending(api.KindUser, "u1")
	badOwner := system("cat1")
	badOwner.Spec.Owner = api.NewRef(api.KindUser, "", "jane@example.com")
	tests := []struct {
		name    string
		m       *Mutation
		wantErr bool
	}{
		{"valid full", &Mutation{Type: Full, Entities: WithLocations(LocationKey("p"), []*api.System{system("cat1")})}, false},
		{"valid delta", &Mutation{Type: Delta, Removed: []string{"api:cat1/a_1"}}, false},
		{"pending ref", &Mutation{Type: Full, Entities: WithLocations(LocationKey("p"), []*api.System{pending})}, true},
		{"invalid owner ref", &Mutation{Type: Full, Entities: WithLocations(LocationKey("p"), []*api.System{badOwner})}, true},
		{"invalid name", &Mutation{Type: Delta, Added: WithLocations(LocationKey("p"), []*api.System{system("bad name")})}, true},
		{"invalid removed ref", &Mutation{Type: Delta, Removed: []string{"widget:x/y"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.m.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMemorySink(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySink()
	steps := []struct {
		m    *Mutation
		want []string
	}{
		{
			m:    &Mutation{Type: Full, Entities: WithLocations(LocationKey("p"), []*api.System{system("cat1"), system("cat2")})},
			want: []string{"system:default/cat1", "system:default/cat2"},
		},
		{
			m:    &Mutation{Type: Delta, Added: WithLocations(LocationKey("p"), []*api.API{apiEntity("cat1", "a_1")})},
			want: []string{"api:cat1/a_1", "system:default/cat1", "system:default/cat2"},
		},
		{
			m:    &Mutation{Type: Delta, Removed: []string{"api:cat1/a_1"}},
			want: []string{"system:default/cat1", "system:default/cat2"},
		},
		{
			m:    &Mutation{Type: Full, Entities: WithLocations(LocationKey("p"), []*api.System{system("cat2")})},
			want: []string{"system:default/cat2"},
		},
	}
	for i, st := range steps {
		if err := s.ApplyMutation(ctx, st.m); err != nil {
			t.Fatalf("step %d: ApplyMutation() failed: %v", i, err)
		}
		if diff := cmp.Diff(st.want, s.Refs()); diff != "" {
			t.Errorf("step %d: refs mismatch (-want +got):\n%s", i, diff)
		}
	}
	if n := len(s.Mutations()); n != len(steps) {
		t.Errorf("len(Mutations()) = %d, want %d", n, len(steps))
	}
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s := NewLogSink(zap.New(core).Sugar())
	err := s.ApplyMutation(context.Background(), &Mutation{
		Type:    Delta,
		Added:   WithLocations(LocationKey("p"), []*api.API{apiEntity("cat1", "a_1")}),
		Removed: []string{"api:cat1/b_1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if n := logs.FilterMessage("Applying mutation").Len(); n != 1 {
		t.Errorf("got %d mutation log entries, want 1", n)
	}
	if n := logs.FilterField(zap.String("ref", "api:cat1/a_1")).Len(); n != 1 {
		t.Errorf("upsert of api:cat1/a_1 was not logged")
	}
	if n := logs.FilterField(zap.String("resource", "api")).Len(); n != 1 {
		t.Errorf("resource type of api:cat1/a_1 was not logged")
	}
}

func TestStoreSink(t *testing.T) {
	ctx := context.Background()
	st := store.NewDiskStore(t.TempDir())
	s := NewStoreSink(st)

	mustApply := func(m *Mutation) {
		t.Helper()
		if err := s.ApplyMutation(ctx, m); err != nil {
			t.Fatalf("ApplyMutation() failed: %v", err)
		}
	}
	files := func() []string {
		t.Helper()
		fs, err := store.EntityFiles(st, "")
		if err != nil {
			t.Fatal(err)
		}
		slices.Sort(fs)
		return fs
	}

	mustApply(&Mutation{Type: Full, Entities: WithLocations(LocationKey("p"), []*api.System{system("cat1"), system("cat2")})})
	mustApply(&Mutation{Type: Delta, Added: WithLocations(LocationKey("p"), []*api.API{apiEntity("cat1", "a_1"), apiEntity("cat1", "b_1")})})
	mustApply(&Mutation{Type: Delta, Removed: []string{"api:cat1/b_1"}})
	want := []string{"cat1/api.a_1.yml", "default/system.cat1.yml", "default/system.cat2.yml"}
	if diff := cmp.Diff(want, files()); diff != "" {
		t.Errorf("files mismatch (-want +got):\n%s", diff)
	}

	mustApply(&Mutation{Type: Full, Entities: WithLocations(LocationKey("p"), []*api.System{system("cat1")})})
	if diff := cmp.Diff([]string{"default/system.cat1.yml"}, files()); diff != "" {
		t.Errorf("files after full mutation mismatch (-want +got):\n%s", diff)
	}

	entities, err := store.ReadEntities(st, "default/system.cat1.yml")
	if err != nil {
		t.Fatal(err)
	}
	if got := entities[0].GetMetadata().Annotation(api.AnnotManagedByLocation); got != LocationKey("p") {
		t.Errorf("managed-by-location = %q", got)
	}
}

func TestGitSink(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewGitSink(dir, gitclient.DefaultAuthor)
	if err != nil {
		t.Fatalf("NewGitSink() failed: %v", err)
	}
	var _ Flusher = s

	if err := s.ApplyMutation(ctx, &Mutation{Type: Full, Entities: WithLocations(LocationKey("p"), []*api.System{system("cat1")})}); err != nil {
		t.Fatal(err)
	}
	if err := s.Flush(ctx, "sync p"); err != nil {
		t.Fatalf("Flush() failed: %v", err)
	}
	files, err := s.Committer().ListFiles("HEAD")
	if err != nil {
		t.Fatalf("ListFiles() failed: %v", err)
	}
	if diff := cmp.Diff([]string{"default/system.cat1.yml"}, files); diff != "" {
		t.Errorf("committed files mismatch (-want +got):\n%s", diff)
	}
	// Nothing changed: Flush must succeed without a new commit.
	if err := s.Flush(ctx, "sync p"); err != nil {
		t.Errorf("Flush() on clean tree failed: %v", err)
	}
}

func TestLocationKey(t *testing.T) {
	if got := LocationKey("prod"); got != "apic:prod" {
		t.Errorf("LocationKey(prod) = %q", got)
	}
	if got := LocationKey("prod", "cat1"); got != "apic:prod/cat1" {
		t.Errorf("LocationKey(prod, cat1) = %q", got)
	}
}

func TestFullMutation_ScopedByLocationKey(t *testing.T) {
	ctx := context.Background()
	orgKey := LocationKey("p")
	catKey := LocationKey("p", "cat1")
	memory := NewMemorySink()
	disk := store.NewDiskStore(t.TempDir())
	sinks := map[string]Sink{"memory": memory, "store": NewStoreSink(disk)}

	for name, s := range sinks {
		t.Run(name, func(t *testing.T) {
			mutations := []*Mutation{
				{Type: Full, LocationKey: orgKey, Entities: WithLocations(orgKey, []*api.System{system("cat1"), system("cat2")})},
				{Type: Delta, Added: WithLocations(catKey, []*api.API{apiEntity("cat1", "a_1")})},
				// Replaces the organization-level set only.
				{Type: Full, LocationKey: orgKey, Entities: WithLocations(orgKey, []*api.System{system("cat1")})},
			}
			for _, m := range mutations {
				if err := s.ApplyMutation(ctx, m); err != nil {
					t.Fatalf("ApplyMutation() failed: %v", err)
				}
			}
		})
	}

	if diff := cmp.Diff([]string{"api:cat1/a_1", "system:default/cat1"}, memory.Refs()); diff != "" {
		t.Errorf("memory refs mismatch (-want +got):\n%s", diff)
	}
	files, err := store.EntityFiles(disk, "")
	if err != nil {
		t.Fatal(err)
	}
	slices.Sort(files)
	if diff := cmp.Diff([]string{"cat1/api.a_1.yml", "default/system.cat1.yml"}, files); diff != "" {
		t.Errorf("store files mismatch (-want +got):\n%s", diff)
	}
}
