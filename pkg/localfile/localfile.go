// Package localfile gives the uploader read access to the local file system
// through go-billy, so tests can substitute an in-memory file system.
package localfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// ErrNotRegular is returned by Stat for directories and other non-regular files.
var ErrNotRegular = errors.New("not a regular file")

// FS resolves local paths to uploadable files.
type FS struct {
	fs billy.Filesystem
	os bool
}

// NewOS returns an FS backed by the operating system.
func NewOS() *FS {
	return &FS{fs: osfs.New("/"), os: true}
}

// New returns an FS backed by fs, for example memfs.New() in tests.
func New(fs billy.Filesystem) *FS {
	return &FS{fs: fs}
}

// IsOS reports whether files live on the operating system file system, which
// transports that pass paths to external programs require.
func (f *FS) IsOS() bool {
	return f.os
}

func (f *FS) abs(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %q: %w", path, err)
	}

	return abs, nil
}

// Exists reports whether path exists.
func (f *FS) Exists(path string) (bool, error) {
	abs, err := f.abs(path)
	if err != nil {
		return false, err
	}

	_, err = f.fs.Stat(abs)

	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, fmt.Errorf("stat %q: %w", abs, err)
	}
}

// Stat returns the file at path. Missing paths return an error matching
// os.ErrNotExist; directories return ErrNotRegular.
func (f *FS) Stat(path string) (*File, error) {
	abs, err := f.abs(path)
	if err != nil {
		return nil, err
	}

	info, err := f.fs.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat %q: %w", abs, err)
	}

	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%q: %w", abs, ErrNotRegular)
	}

	return &File{
		Path: abs,
		Name: filepath.Base(abs),
		Size: info.Size(),
		fs:   f,
	}, nil
}

// File is a regular local file selected for upload.
type File struct {
	Path string
	Name string
	Size int64

	fs *FS
}

// OnOS reports whether Path can be handed to an external program.
func (f *File) OnOS() bool {
	return f.fs != nil && f.fs.os
}

// Open opens the file for reading.
func (f *File) Open() (billy.File, error) {
	if f.fs == nil {
		return nil, fmt.Errorf("open %q: file has no file system", f.Path)
	}

	file, err := f.fs.fs.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", f.Path, err)
	}

	return file, nil
}

// ReadAll returns the whole file content.
func (f *File) ReadAll() ([]byte, error) {
	file, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", f.Path, err)
	}

	return data, nil
}
