package store

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dnswlt/apicsync/internal/api"
	"gopkg.in/yaml.v3"
)

const (
	YAMLIndent = 2
	// File extension of entity files.
	EntityFileExt = ".yml"
)

// Store is a minimal abstraction to list, read, write, and remove files.
type Store interface {
	// ListFiles lists all files in dir (recursively).
	// The resulting paths will all be relative to the store's root directory,
	// so they can be passed to ReadFile and WriteFile unmodified.
	ListFiles(dir string) ([]string, error)
	// ReadFile reads the contents of path from the store.
	// path should be a relative path (e.g., "default/system.cat1.yml").
	ReadFile(path string) ([]byte, error)
	// WriteFile writes the given contents to path in the store,
	// creating parent directories as needed.
	WriteFile(path string, contents []byte) error
	// RemoveFile removes path. Removing a non-existent file is not an error.
	RemoveFile(path string) error
}

// DiskStore is an implementation of Store that operates on the local file system.
type DiskStore struct {
	rootDir string
}

var _ Store = (*DiskStore)(nil)

func NewDiskStore(rootDir string) *DiskStore {
	return &DiskStore{
		rootDir: rootDir,
	}
}

func (d *DiskStore) RootDir() string {
	return d.rootDir
}

func (d *DiskStore) ListFiles(dir string) ([]string, error) {
	files, err := listFilesRecursively(d.rootDir, dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return files, err
}

func resolveRelPath(root, subpath string) (string, error) {
	fullPath := filepath.Join(root, subpath)

	// Verify ancestry by calculating the relative path from the root.
	rel, err := filepath.Rel(root, fullPath)
	if err != nil {
		return "", fmt.Errorf("not a relative path: %v", err) // e.g. paths on different volumes
	}

	// A relative path escaping the root will start with ".."
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path %q escapes root directory", subpath)
	}

	return fullPath, nil
}

func (d *DiskStore) ReadFile(path string) ([]byte, error) {
	fullPath, err := resolveRelPath(d.rootDir, path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(fullPath)
}

func (d *DiskStore) WriteFile(path string, contents []byte) error {
	fullPath, err := resolveRelPath(d.rootDir, path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(fullPath, contents, 0644)
}

func (d *DiskStore) RemoveFile(path string) error {
	fullPath, err := resolveRelPath(d.rootDir, path)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// EntityPath returns the path of the file that holds the entity with the
// given kind, namespace, and name: <namespace>/<kind>.<name>.yml
func EntityPath(kind, namespace, name string) string {
	if namespace == "" {
		namespace = api.DefaultNamespace
	}
	return path.Join(namespace, kind+"."+name+EntityFileExt)
}

// EntityRefPath returns the file path of the entity identified by the given
// fully qualified reference.
func EntityRefPath(ref string) (string, error) {
	r, err := api.ParseRef(ref)
	if err != nil {
		return "", err
	}
	if r.Kind == "" {
		return "", fmt.Errorf("reference %q has no kind", ref)
	}
	return EntityPath(r.Kind, r.Namespace, r.Name), nil
}

// WriteEntity writes e to its file, replacing any previous contents.
func WriteEntity(st Store, e api.Entity) error {
	p := EntityPath(e.GetKind(), e.GetMetadata().Namespace, e.GetMetadata().Name)
	return WriteEntities(st, p, []api.Entity{e})
}

// WriteEntities writes a slice of entities as a multi-document YAML file to path.
func WriteEntities(st Store, path string, entities []api.Entity) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(YAMLIndent)
	for _, e := range entities {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("failed to encode %s: %w", e.GetRef(), err)
		}
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to close encoder: %w", err)
	}
	return st.WriteFile(path, buf.Bytes())
}

func newEntity(kind string) (api.Entity, error) {
	switch kind {
	case api.YAMLKindDomain:
		return &api.Domain{}, nil
	case api.YAMLKindSystem:
		return &api.System{}, nil
	case api.YAMLKindUser:
		return &api.User{}, nil
	case api.YAMLKindGroup:
		return &api.Group{}, nil
	case api.YAMLKindComponent:
		return &api.Component{}, nil
	case api.YAMLKindAPI:
		return &api.API{}, nil
	case api.YAMLKindProduct:
		return &api.Product{}, nil
	}
	return nil, fmt.Errorf("invalid kind %q", kind)
}

// kindOf returns the value of the top-level kind field of a document node.
func kindOf(doc *yaml.Node) string {
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return ""
	}
	m := doc.Content[0]
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == "kind" {
			return m.Content[i+1].Value
		}
	}
	return ""
}

// ReadEntities reads all entities from the multi-document YAML file at path.
func ReadEntities(st Store, path string) ([]api.Entity, error) {
	bs, err := st.ReadFile(path)
	if err != nil {
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(bs))
	var entities []api.Entity
	for {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode YAML node in %q: %w", path, err)
		}

		// node.Content will be empty for blank documents (e.g., just "---")
		if len(node.Content) == 0 {
			continue
		}

		entity, err := newEntity(kindOf(&node))
		if err != nil {
			return nil, fmt.Errorf("error in document %q starting at line %d: %v", path, node.Line, err)
		}
		if err := node.Decode(entity); err != nil {
			return nil, fmt.Errorf("error in document %q starting at line %d: %v", path, node.Line, err)
		}
		entities = append(entities, entity)
	}

	return entities, nil
}

// listFilesRecursively lists all files in subDir, which must
// be a relative path specifying a sub-directory of rootDir.
// The resulting paths will all be relative to rootDir.
//
// Example:
// with rootDir "/foo/bar" and subDir "baz/quz", all files under
// "/foo/bar/baz/quz" will be returned, relative to "/foo/bar", such as
// ["baz/quz/yankee.yml"].
func listFilesRecursively(rootDir, subDir string) ([]string, error) {
	var files []string

	startDir := filepath.Join(rootDir, subDir)
	err := filepath.WalkDir(startDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Skip VCS metadata, the store may live inside a git worktree.
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		relPath, err := filepath.Rel(rootDir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(relPath))
		return nil
	})

	if err != nil {
		return nil, err
	}

	return files, nil
}

// EntityFiles lists all entity files under dir, which must be a relative
// path (relative to the store's root).
func EntityFiles(st Store, dir string) ([]string, error) {
	allFiles, err := st.ListFiles(dir)
	if err != nil {
		return nil, err
	}
	var result []string
	for _, f := range allFiles {
		if strings.HasSuffix(strings.ToLower(f), EntityFileExt) {
			result = append(result, f)
		}
	}

	return result, nil
}
