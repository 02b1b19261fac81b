package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xunlong/api/internal/model"
)

// Store lays out one durable directory per task under a single root:
//
//	storage/<task-id>/
//	  metadata.json
//	  intermediate/0N_<stage>.json
//	  search_results/search_results.txt
//	  reports/FINAL_REPORT.md|.html, PPT_DATA.json, SPEECH_NOTES.*
//	  exports/
//	  execution_log.txt
//
// The directory is the system's durable state; everything in it is a
// whole-file replace so a crash leaves at worst one missing slot.
type Store struct {
	root string
}

// Metadata mirrors the task record inside the project directory.
type Metadata struct {
	ID        string           `json:"id"`
	Query     string           `json:"query"`
	Type      model.TaskType   `json:"type,omitempty"`
	Status    model.TaskStatus `json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// Project is an open handle on one task's directory.
type Project struct {
	ID    string
	Query string
	Dir   string
}

// New opens (or creates) a store rooted at root.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the storage root directory.
func (s *Store) Root() string {
	return s.root
}

// CreateProject derives a fresh id from the query and creates the project
// directory tree for it.
func (s *Store) CreateProject(query string) (*Project, error) {
	return s.CreateProjectID(model.NewTaskID(query, time.Now()), query)
}

// CreateProjectID creates the project tree for an externally assigned id
// (normally the task id, so queue record and project directory share
// identity). Writes metadata.json with status=running.
func (s *Store) CreateProjectID(id, query string) (*Project, error) {
	dir := filepath.Join(s.root, id)
	for _, sub := range []string{"intermediate", "reports", "search_results", "exports"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create project tree: %w", err)
		}
	}

	now := time.Now()
	meta := Metadata{
		ID:        id,
		Query:     query,
		Status:    model.TaskStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := writeJSON(filepath.Join(dir, "metadata.json"), meta); err != nil {
		return nil, err
	}
	return &Project{ID: id, Query: query, Dir: dir}, nil
}

// OpenProject opens an existing project directory by exact id.
func (s *Store) OpenProject(id string) (*Project, error) {
	dir := filepath.Join(s.root, id)
	meta, err := readMetadata(dir)
	if err != nil {
		return nil, err
	}
	return &Project{ID: id, Query: meta.Query, Dir: dir}, nil
}

// ListProjects enumerates all project directories, newest first.
func (s *Store) ListProjects() ([]Metadata, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	var metas []Metadata
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		meta, err := readMetadata(filepath.Join(s.root, e.Name()))
		if err != nil {
			continue
		}
		metas = append(metas, meta)
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.After(metas[j].CreatedAt)
	})
	return metas, nil
}

// FindProject returns the first project whose directory name contains the
// given prefix string, so partial ids work.
func (s *Store) FindProject(prefix string) (*Project, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if !e.IsDir() || !strings.Contains(e.Name(), prefix) {
			continue
		}
		return s.OpenProject(e.Name())
	}
	return nil, fmt.Errorf("no project matching %q", prefix)
}

// UpdateStatus rewrites the metadata mirror with a new status.
func (s *Store) UpdateStatus(id string, status model.TaskStatus) error {
	dir := filepath.Join(s.root, id)
	meta, err := readMetadata(dir)
	if err != nil {
		return err
	}
	meta.Status = status
	meta.UpdatedAt = time.Now()
	return writeJSON(filepath.Join(dir, "metadata.json"), meta)
}

func readMetadata(dir string) (Metadata, error) {
	var meta Metadata
	data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return meta, nil
}

// writeJSON replaces path with the indented JSON encoding of v, via a
// temp-file rename.
func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
