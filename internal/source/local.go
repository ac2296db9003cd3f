package source

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"codebrew/internal/review"
)

// Local reads files from disk. Relative identifiers resolve against Root.
type Local struct {
	Root string
}

// NewLocal creates a local provider rooted at root ("" means the working directory)
func NewLocal(root string) *Local {
	return &Local{Root: root}
}

func (l *Local) resolve(id string) string {
	if filepath.IsAbs(id) || l.Root == "" {
		return filepath.Clean(id)
	}
	return filepath.Join(l.Root, id)
}

// Fetch reads one file
func (l *Local) Fetch(ctx context.Context, id string) (review.SourceArtifact, error) {
	if err := ctx.Err(); err != nil {
		return review.SourceArtifact{}, &TransportError{ID: id, Cause: err}
	}

	p := l.resolve(id)
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return review.SourceArtifact{}, &NotFoundError{ID: id}
		}
		return review.SourceArtifact{}, &TransportError{ID: id, Cause: err}
	}

	return review.SourceArtifact{
		Path:    filepath.ToSlash(id),
		Name:    filepath.Base(p),
		Content: string(data),
	}, nil
}

// List walks dir and returns files ending in ext, sorted, skipping the
// directories SkipDir names. Returned identifiers are relative to Root in
// the same form as dir.
func (l *Local) List(ctx context.Context, dir, ext string) ([]string, error) {
	root := l.resolve(dir)
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{ID: dir}
		}
		return nil, &TransportError{ID: dir, Cause: err}
	}
	if !info.IsDir() {
		return []string{dir}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ext) {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.Join(dir, rel))
		return nil
	})
	if err != nil {
		return nil, &TransportError{ID: dir, Cause: err}
	}

	sort.Strings(files)
	return files, nil
}
