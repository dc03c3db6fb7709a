package history

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
)

// FileSurface stores the value in a single file. Writes land in a temporary
// file next to the target which is then renamed over it, so readers see
// either the old or the new value.
type FileSurface struct {
	fs   afero.Fs
	path string
}

// NewFileSurface returns a FileSurface for path on fsys.
func NewFileSurface(fsys afero.Fs, path string) *FileSurface {
	return &FileSurface{fs: fsys, path: path}
}

func (f *FileSurface) Get() (string, bool, error) {
	data, err := afero.ReadFile(f.fs, f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", f.path, err)
	}
	return string(data), true, nil
}

func (f *FileSurface) Set(value string) error {
	dir := filepath.Dir(f.path)
	if err := f.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := afero.TempFile(f.fs, dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		f.fs.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		f.fs.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := f.fs.Rename(tmp.Name(), f.path); err != nil {
		f.fs.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}
