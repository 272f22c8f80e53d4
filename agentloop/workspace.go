package agentloop

import (
	"sort"
	"sync"
)

// FileChangeKind discriminates workspace mutations.
type FileChangeKind string

const (
	FileCreate FileChangeKind = "create"
	FileModify FileChangeKind = "modify"
	FileDelete FileChangeKind = "delete"
)

// FileChange records one mutation of the workspace snapshot. The core never
// touches a real filesystem; the host applies accumulated changes after the
// session ends (or streams them for live diff preview).
type FileChange struct {
	Kind       FileChangeKind `json:"kind"`
	Path       string         `json:"path"`
	NewContent string         `json:"new_content,omitempty"`
	OldContent string         `json:"old_content,omitempty"`
}

// Workspace is the in-memory path→content snapshot tools read and write.
// All mutations are recorded as FileChanges in order.
type Workspace struct {
	mu      sync.RWMutex
	files   map[string]string
	changes []FileChange
}

// NewWorkspace creates a workspace seeded with the given files. The map is
// copied; the caller's map is not retained.
func NewWorkspace(files map[string]string) *Workspace {
	copied := make(map[string]string, len(files))
	for p, c := range files {
		copied[p] = c
	}
	return &Workspace{files: copied}
}

// Read returns the content of path and whether it exists.
func (w *Workspace) Read(path string) (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	content, ok := w.files[path]
	return content, ok
}

// Exists reports whether path is present in the snapshot.
func (w *Workspace) Exists(path string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.files[path]
	return ok
}

// Write sets the content of path, recording a create or modify change.
func (w *Workspace) Write(path, content string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	old, existed := w.files[path]
	change := FileChange{Kind: FileCreate, Path: path, NewContent: content}
	if existed {
		change.Kind = FileModify
		change.OldContent = old
	}
	w.files[path] = content
	w.changes = append(w.changes, change)
}

// Delete removes path from the snapshot, recording a delete change.
// Returns false if the path did not exist.
func (w *Workspace) Delete(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	old, existed := w.files[path]
	if !existed {
		return false
	}
	delete(w.files, path)
	w.changes = append(w.changes, FileChange{Kind: FileDelete, Path: path, OldContent: old})
	return true
}

// Paths returns all snapshot paths, sorted.
func (w *Workspace) Paths() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	paths := make([]string, 0, len(w.files))
	for p := range w.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Snapshot returns a copy of the current path→content map.
func (w *Workspace) Snapshot() map[string]string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	copied := make(map[string]string, len(w.files))
	for p, c := range w.files {
		copied[p] = c
	}
	return copied
}

// Changes returns a copy of the accumulated change list.
func (w *Workspace) Changes() []FileChange {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]FileChange, len(w.changes))
	copy(out, w.changes)
	return out
}

// ChangeCount returns the number of recorded changes.
func (w *Workspace) ChangeCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.changes)
}

// ChangesSince returns the changes recorded after the first n.
func (w *Workspace) ChangesSince(n int) []FileChange {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if n >= len(w.changes) {
		return nil
	}
	out := make([]FileChange, len(w.changes)-n)
	copy(out, w.changes[n:])
	return out
}
