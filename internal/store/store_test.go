package store

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/dnswlt/apicsync/internal/api"
	"github.com/google/go-cmp/cmp"
)

func TestReadEntities(t *testing.T) {
	t.Run("valid entities", func(t *testing.T) {
		content := `
apiVersion: backstage.io/v1alpha1
kind: Component
metadata:
  name: my-app
  namespace: cat1
spec:
  type: application
  owner: group:cat1/acme
  lifecycle: production
---
apiVersion: backstage.io/v1alpha1
kind: System
metadata:
  name: cat1
spec:
  owner: user:default/jdoe
  domain: default/org1
`
		st, tmpfile := writeTempFile(t, "entities.yml", content)

		entities, err := ReadEntities(st, filepath.Base(tmpfile))
		if err != nil {
			t.Fatalf("ReadEntities() error = %v, wantErr %v", err, false)
		}
		if len(entities) != 2 {
			t.Fatalf("len(entities) = %d, want %d", len(entities), 2)
		}

		component, ok := entities[0].(*api.Component)
		if !ok {
			t.Fatalf("entities[0] is not a *Component")
		}
		if got := component.Spec.Owner.String(); got != "group:cat1/acme" {
			t.Errorf("component owner = %s, want %s", got, "group:cat1/acme")
		}

		system, ok := entities[1].(*api.System)
		if !ok {
			t.Fatalf("entities[1] is not a *System")
		}
		if got := system.Spec.Domain.String(); got != "default/org1" {
			t.Errorf("system domain = %s, want %s", got, "default/org1")
		}
	})

	t.Run("empty file", func(t *testing.T) {
		st, tmpfile := writeTempFile(t, "empty.yml", "")

		entities, err := ReadEntities(st, filepath.Base(tmpfile))
		if err != nil {
			t.Fatalf("ReadEntities() error = %v, wantErr %v", err, false)
		}
		if len(entities) != 0 {
			t.Errorf("len(entities) = %d, want %d", len(entities), 0)
		}
	})

	t.Run("invalid kind", func(t *testing.T) {
		content := `
apiVersion: backstage.io/v1alpha1
kind: InvalidKind
metadata:
  name: invalid-kind
`
		st, tmpfile := writeTempFile(t, "invalid-kind.yml", content)

		_, err := ReadEntities(st, filepath.Base(tmpfile))
		if err == nil {
			t.Errorf("ReadEntities() error = %v, wantErr %v", err, true)
		}
	})

	t.Run("invalid ref", func(t *testing.T) {
		content := `
apiVersion: backstage.io/v1alpha1
kind: Component
metadata:
  name: x
spec:
  owner: widget:default/x
`
		st, tmpfile := writeTempFile(t, "invalid-ref.yml", content)

		_, err := ReadEntities(st, filepath.Base(tmpfile))
		if err == nil {
			t.Errorf("ReadEntities() error = %v, wantErr %v", err, true)
		}
	})

	t.Run("non-existent file", func(t *testing.T) {
		_, err := ReadEntities(NewDiskStore(t.TempDir()), "non-existent-file.yml")
		if err == nil {
			t.Errorf("ReadEntities() error = %v, wantErr %v", err, true)
		}
	})
}

func TestWriteEntity(t *testing.T) {
	st := NewDiskStore(t.TempDir())
	app := &api.Component{
		APIVersion: api.APIVersionBackstage,
		Kind:       api.YAMLKindComponent,
		Metadata:   &api.Metadata{ID: "app1", Name: "my-app", Namespace: "cat1"},
		Spec: &api.ComponentSpec{
			Type:   api.ComponentTypeApplication,
			Owner:  api.NewRef(api.KindGroup, "cat1", "acme"),
			System: api.NewRef(api.KindSystem, "", "cat1"),
		},
	}
	if err := WriteEntity(st, app); err != nil {
		t.Fatalf("WriteEntity() failed: %v", err)
	}

	files, err := EntityFiles(st, "")
	if err != nil {
		t.Fatalf("EntityFiles() failed: %v", err)
	}
	if diff := cmp.Diff([]string{"cat1/component.my-app.yml"}, files); diff != "" {
		t.Errorf("EntityFiles() mismatch (-want +got):\n%s", diff)
	}

	entities, err := ReadEntities(st, files[0])
	if err != nil {
		t.Fatalf("ReadEntities() failed: %v", err)
	}
	got := entities[0].(*api.Component)
	if got.GetRef() != app.GetRef() || got.Spec.Owner.String() != app.Spec.Owner.String() {
		t.Errorf("read back %s with owner %s", got.GetRef(), got.Spec.Owner)
	}

	path, err := EntityRefPath(app.GetRef())
	if err != nil {
		t.Fatalf("EntityRefPath() failed: %v", err)
	}
	if err := st.RemoveFile(path); err != nil {
		t.Fatalf("RemoveFile() failed: %v", err)
	}
	if err := st.RemoveFile(path); err != nil {
		t.Errorf("RemoveFile() of missing file failed: %v", err)
	}
	files, _ = EntityFiles(st, "")
	if len(files) != 0 {
		t.Errorf("files after remove = %v", files)
	}
}

func TestDiskStore_RejectsEscapingPaths(t *testing.T) {
	st := NewDiskStore(t.TempDir())
	if err := st.WriteFile("../outside.yml", []byte("x")); err == nil {
		t.Error("WriteFile() outside of root succeeded")
	}
}

func TestDiskStore_ListFiles_SkipsGitDir(t *testing.T) {
	dir := t.TempDir()
	st := NewDiskStore(dir)
	for _, p := range []string{".git/config", "default/system.cat1.yml"} {
		if err := st.WriteFile(p, []byte("x")); err != nil {
			t.Fatal(err)
		}
	}
	files, err := st.ListFiles("")
	if err != nil {
		t.Fatal(err)
	}
	if slices.Contains(files, ".git/config") {
		t.Errorf("ListFiles() = %v, includes .git", files)
	}
	if _, err := os.Stat(filepath.Join(dir, "default")); err != nil {
		t.Errorf("WriteFile() did not create parent dir: %v", err)
	}
}

func writeTempFile(t *testing.T, name, content string) (Store, string) {
	t.Helper()
	dir := t.TempDir()
	tmpfile := filepath.Join(dir, name)
	err := os.WriteFile(tmpfile, []byte(content), 0666)
	if err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	return NewDiskStore(dir), tmpfile
}
