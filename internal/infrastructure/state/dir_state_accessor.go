// Package state provides StateAccessor implementations: the live-state
// capture and restore capability snapshots are built from.
package state

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/ductware/atomtx/internal/infrastructure/persistence/file"
)

// dirState is the serialized form of a directory capture. Paths are
// slash-separated and relative to the accessor root; contents are
// base64 so the payload stays valid JSON.
type dirState struct {
	Files map[string]string `json:"files"`
}

// DirStateAccessor captures and restores a directory tree. Restore is
// authoritative: files absent from the capture are deleted, so applying
// a snapshot really returns the tree to the captured state.
type DirStateAccessor struct {
	fs         afero.Fs
	root       string
	exclusions []string
}

// NewDirStateAccessor creates a directory accessor. Exclusions are
// root-relative path prefixes left untouched by both capture and
// restore; the engine's own data directory must be excluded when it
// lives inside the root.
func NewDirStateAccessor(fs afero.Fs, root string, exclusions ...string) *DirStateAccessor {
	return &DirStateAccessor{fs: fs, root: root, exclusions: exclusions}
}

// CollectState reads every file under the root into a JSON document
func (a *DirStateAccessor) CollectState(ctx context.Context) ([]byte, error) {
	files, err := a.listFiles()
	if err != nil {
		return nil, err
	}

	capture := dirState{Files: make(map[string]string, len(files))}
	for _, rel := range files {
		content, err := afero.ReadFile(a.fs, filepath.Join(a.root, filepath.FromSlash(rel)))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", rel, err)
		}
		capture.Files[rel] = base64.StdEncoding.EncodeToString(content)
	}

	// map keys marshal sorted, so identical trees produce identical
	// payloads and checksums
	data, err := json.Marshal(capture)
	if err != nil {
		return nil, fmt.Errorf("marshal directory state: %w", err)
	}
	return data, nil
}

// ApplyState restores the root to a captured state: captured files are
// written atomically and files outside the capture are removed
func (a *DirStateAccessor) ApplyState(ctx context.Context, data []byte) error {
	var capture dirState
	if err := json.Unmarshal(data, &capture); err != nil {
		return fmt.Errorf("parse directory state: %w", err)
	}

	for rel, encoded := range capture.Files {
		content, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return fmt.Errorf("decode %s: %w", rel, err)
		}
		path := filepath.Join(a.root, filepath.FromSlash(rel))
		if err := file.WriteFileAtomic(a.fs, path, content); err != nil {
			return fmt.Errorf("restore %s: %w", rel, err)
		}
	}

	existing, err := a.listFiles()
	if err != nil {
		return err
	}
	for _, rel := range existing {
		if _, captured := capture.Files[rel]; captured {
			continue
		}
		if err := a.fs.Remove(filepath.Join(a.root, filepath.FromSlash(rel))); err != nil {
			return fmt.Errorf("remove %s: %w", rel, err)
		}
	}
	return nil
}

// listFiles walks the root and returns non-excluded file paths,
// slash-separated and root-relative
func (a *DirStateAccessor) listFiles() ([]string, error) {
	var files []string
	err := afero.Walk(a.fs, a.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, relErr := filepath.Rel(a.root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if rel != "." && a.excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if a.excluded(rel) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("walk %s: %w", a.root, err)
	}
	return files, nil
}

func (a *DirStateAccessor) excluded(rel string) bool {
	for _, prefix := range a.exclusions {
		if rel == prefix || strings.HasPrefix(rel, prefix+"/") {
			return true
		}
	}
	return false
}
