// Package assets verifies the pre-built asset directory and resolves request
// paths against it.
package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotBuilt is matched by every startup verification failure.
var ErrNotBuilt = errors.New("asset directory not built")

// MissingError names the parts of the build output that failed startup
// verification. An empty field means that part was found.
type MissingError struct {
	Dir   string
	Entry string
}

// Paths lists the missing paths, directory first.
func (e *MissingError) Paths() []string {
	var paths []string
	if e.Dir != "" {
		paths = append(paths, e.Dir)
	}
	if e.Entry != "" {
		paths = append(paths, e.Entry)
	}
	return paths
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing build output: %s", strings.Join(e.Paths(), ", "))
}

func (e *MissingError) Is(target error) bool {
	return target == ErrNotBuilt
}

// Directory is a verified asset directory.
type Directory struct {
	Root          string
	EntryDocument string // slash-separated, relative to Root
}

// EntryPath returns the on-disk location of the entry document.
func (d *Directory) EntryPath() string {
	return filepath.Join(d.Root, filepath.FromSlash(d.EntryDocument))
}

// Verify checks that root is a directory and that entry names a regular file
// inside it. Both checks always run so the error names every missing path.
func Verify(root, entry string) (*Directory, error) {
	d := &Directory{Root: root, EntryDocument: filepath.ToSlash(entry)}

	missing := &MissingError{}
	info, err := os.Stat(root)
	switch {
	case err == nil && info.IsDir():
	case err == nil, errors.Is(err, os.ErrNotExist):
		missing.Dir = root
	default:
		return nil, fmt.Errorf("failed to stat asset directory %s: %w", root, err)
	}

	entryPath := d.EntryPath()
	info, err = os.Stat(entryPath)
	switch {
	case err == nil && info.Mode().IsRegular():
	case err == nil, errors.Is(err, os.ErrNotExist), isNotDir(err):
		missing.Entry = entryPath
	default:
		return nil, fmt.Errorf("failed to stat entry document %s: %w", entryPath, err)
	}

	if missing.Dir != "" || missing.Entry != "" {
		return nil, missing
	}
	return d, nil
}
