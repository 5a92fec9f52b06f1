package assets

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"
	"syscall"
	"time"
)

// ErrMiss reports that a request path does not name a servable file.
var ErrMiss = errors.New("no static file for path")

// Outcome tells which resolution tier produced an asset.
type Outcome string

const (
	OutcomeStatic   Outcome = "static"
	OutcomeFallback Outcome = "fallback"
)

// Asset is an opened file ready to be written to one response. It must be
// closed by the caller.
type Asset struct {
	Name    string // slash-separated path inside the asset directory
	Content io.ReadSeeker
	Size    int64
	ModTime time.Time
	Outcome Outcome

	closer io.Closer
}

func (a *Asset) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// ETag returns a weak validator derived from size and modification time.
func (a *Asset) ETag() string {
	return fmt.Sprintf(`W/"%x-%x"`, a.Size, a.ModTime.UnixMilli())
}

// Resolver maps request paths onto an asset directory. It holds no mutable
// state and is safe for concurrent use.
type Resolver struct {
	fsys  fs.FS
	entry string
}

// NewResolver serves files from fsys, falling back to entry.
func NewResolver(fsys fs.FS, entry string) *Resolver {
	return &Resolver{fsys: fsys, entry: path.Clean(entry)}
}

// NewDirectoryResolver serves a verified directory from disk.
func NewDirectoryResolver(d *Directory) *Resolver {
	return NewResolver(os.DirFS(d.Root), d.EntryDocument)
}

// Resolve tries the static tier first and, on a miss, returns the entry
// document.
func (r *Resolver) Resolve(urlPath string) (*Asset, error) {
	asset, err := r.Static(urlPath)
	if err == nil {
		return asset, nil
	}
	if !errors.Is(err, ErrMiss) {
		return nil, err
	}
	return r.Entry()
}

// Static returns the regular file named by urlPath. Directories, missing
// files and dot-prefixed segments yield ErrMiss.
func (r *Resolver) Static(urlPath string) (*Asset, error) {
	name, ok := fsName(urlPath)
	if !ok {
		return nil, ErrMiss
	}

	asset, err := r.open(name, OutcomeStatic)
	if err != nil {
		if isMiss(err) {
			return nil, ErrMiss
		}
		return nil, err
	}
	return asset, nil
}

// Entry returns the entry document.
func (r *Resolver) Entry() (*Asset, error) {
	asset, err := r.open(r.entry, OutcomeFallback)
	if err != nil {
		if errors.Is(err, errNotRegular) {
			return nil, fmt.Errorf("entry document %s is not a regular file", r.entry)
		}
		return nil, fmt.Errorf("failed to open entry document: %w", err)
	}
	return asset, nil
}

var errNotRegular = errors.New("not a regular file")

func (r *Resolver) open(name string, outcome Outcome) (*Asset, error) {
	f, err := r.fsys.Open(name)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, errNotRegular
	}

	asset := &Asset{
		Name:    name,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Outcome: outcome,
		closer:  f,
	}

	if rs, ok := f.(io.ReadSeeker); ok {
		asset.Content = rs
		return asset, nil
	}

	data, err := io.ReadAll(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	asset.Content = bytes.NewReader(data)
	return asset, nil
}

// fsName converts a URL path into an fs.FS name. It reports false for the
// root and for any dot-prefixed segment.
func fsName(urlPath string) (string, bool) {
	name := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if name == "" {
		return "", false
	}
	for _, segment := range strings.Split(name, "/") {
		if strings.HasPrefix(segment, ".") {
			return "", false
		}
	}
	return name, fs.ValidPath(name)
}

func isMiss(err error) bool {
	return errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrInvalid) ||
		errors.Is(err, errNotRegular) ||
		errors.Is(err, syscall.ENAMETOOLONG) ||
		isNotDir(err)
}

// isNotDir reports ENOTDIR, returned when an intermediate path component is
// a file, as in /index.html/extra.
func isNotDir(err error) bool {
	return errors.Is(err, syscall.ENOTDIR)
}
