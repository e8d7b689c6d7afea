package sharedlist

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"sewing-planner/internal/fsutil"
	"sewing-planner/internal/model"
)

// Entry is one project as the import surface sees it.
type Entry = model.ProjectSummary

// File is the shared projects list: a JSON array of {id, name} read by
// surfaces that pick a project without opening the database.
type File struct {
	path string
	mu   sync.Mutex
}

func New(path string) *File { return &File{path: path} }

func (f *File) Path() string { return f.path }

// Read returns the entries on disk. A missing file is an empty list.
func (f *File) Read() ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, err
	}
	var out []Entry
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("shared list %s: %w", f.path, err)
	}
	if out == nil {
		out = []Entry{}
	}
	return out, nil
}

// Write replaces the file with entries sorted by id.
func (f *File) Write(entries []Entry) error {
	out := append([]Entry{}, entries...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return fsutil.WriteFileAtomic(f.path, append(b, '\n'), 0o644)
}
