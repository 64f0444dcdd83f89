// Package filesystem resolves asset paths and opens byte streams on a
// hackpadfs file system (the host OS in production, memory in tests).
package filesystem

import (
	iofs "io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/hack-pad/hackpadfs"
	"github.com/hack-pad/hackpadfs/mem"
	osfs "github.com/hack-pad/hackpadfs/os"
)

// AccessMode selects how a stream is opened.
type AccessMode uint8

const (
	AccessRead AccessMode = 1 << iota
	AccessWrite
)

var (
	ErrNotFound          = errors.New("filesystem: file not found")
	ErrUnsupportedAccess = errors.New("filesystem: unsupported access mode")
)

const defaultAssetPath = "./"

// FileSystem opens streams relative to an asset path.
type FileSystem struct {
	fsys hackpadfs.FS

	mu        sync.RWMutex
	assetPath string
}

// New wraps fsys. Paths given to fsys are non-rooted, as required by io/fs.
func New(fsys hackpadfs.FS) *FileSystem {
	return &FileSystem{fsys: fsys, assetPath: defaultAssetPath}
}

// NewOS returns a FileSystem on the host file system. Relative asset
// paths are resolved against the working directory.
func NewOS() (*FileSystem, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, "working directory")
	}
	fsys := New(osfs.NewFS())
	fsys.SetAssetPath(wd)
	return fsys, nil
}

// NewMemory returns an empty in-memory FileSystem.
func NewMemory() (*FileSystem, error) {
	fsys, err := mem.NewFS()
	if err != nil {
		return nil, errors.Wrap(err, "memory fs")
	}
	return New(fsys), nil
}

// SetAssetPath sets the root that relative paths resolve against.
func (f *FileSystem) SetAssetPath(p string) {
	f.mu.Lock()
	f.assetPath = p
	f.mu.Unlock()
}

func (f *FileSystem) AssetPath() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.assetPath
}

// ResolvePath joins relative paths to the asset path. Absolute paths are
// returned unchanged apart from slash normalization.
func (f *FileSystem) ResolvePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if IsAbsolutePath(p) {
		return p
	}
	return path.Join(strings.ReplaceAll(f.AssetPath(), "\\", "/"), p)
}

// name converts a resolved path into an io/fs name.
func (f *FileSystem) name(p string) string {
	return NormPath(f.ResolvePath(p))
}

// NormPath cleans p and strips the root, as io/fs names are non-rooted.
func NormPath(p string) string {
	p = path.Clean(strings.ReplaceAll(p, "\\", "/"))
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "."
	}
	return p
}

// Open opens a stream for p. Write mode creates the file, and any missing
// parent directory, truncating existing content.
func (f *FileSystem) Open(p string, mode AccessMode) (Stream, error) {
	name := f.name(p)
	var flag int
	switch mode {
	case AccessRead:
		flag = os.O_RDONLY
	case AccessWrite:
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case AccessRead | AccessWrite:
		flag = os.O_RDWR | os.O_CREATE
	default:
		return nil, errors.Wrapf(ErrUnsupportedAccess, "mode %d", mode)
	}
	if mode&AccessWrite != 0 {
		if dir := path.Dir(name); dir != "." {
			if err := hackpadfs.MkdirAll(f.fsys, dir, 0o755); err != nil {
				return nil, errors.Wrapf(err, "create directory %q", dir)
			}
		}
	}
	file, err := hackpadfs.OpenFile(f.fsys, name, flag, 0o644)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil, errors.Mark(errors.Wrapf(err, "open %q", p), ErrNotFound)
		}
		return nil, errors.Wrapf(err, "open %q", p)
	}
	return &fileStream{file: file, mode: mode}, nil
}

// Create opens p for writing.
func (f *FileSystem) Create(p string) (Stream, error) {
	return f.Open(p, AccessWrite)
}

// ReadAll returns the full content of p.
func (f *FileSystem) ReadAll(p string) ([]byte, error) {
	data, err := hackpadfs.ReadFile(f.fsys, f.name(p))
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil, errors.Mark(errors.Wrapf(err, "read %q", p), ErrNotFound)
		}
		return nil, errors.Wrapf(err, "read %q", p)
	}
	return data, nil
}

// FileExists reports whether p names an existing file.
func (f *FileSystem) FileExists(p string) bool {
	info, err := hackpadfs.Stat(f.fsys, f.name(p))
	return err == nil && !info.IsDir()
}

// ListFiles lists the files (not directories) in dir, sorted by name.
func (f *FileSystem) ListFiles(dir string) ([]string, error) {
	entries, err := hackpadfs.ReadDir(f.fsys, f.name(dir))
	if err != nil {
		return nil, errors.Wrapf(err, "list %q", dir)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// IsAbsolutePath reports whether p is rooted, including Windows drive paths.
func IsAbsolutePath(p string) bool {
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, "\\") {
		return true
	}
	return len(p) >= 3 && p[1] == ':' && (p[2] == '/' || p[2] == '\\')
}

// DirectoryName returns the directory part of p including the trailing
// slash, or "" when p has no directory. Back slashes become forward slashes.
func DirectoryName(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return ""
	}
	return p[:i+1]
}

// Extension returns the upper-case extension of p including the dot, or "".
func Extension(p string) string {
	base := p[strings.LastIndexAny(p, "/\\")+1:]
	i := strings.LastIndexByte(base, '.')
	if i < 0 {
		return ""
	}
	return strings.ToUpper(base[i:])
}
