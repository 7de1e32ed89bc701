// Package registry lists the files in the output directory.
// The directory itself is the source of truth; nothing is cached.
package registry

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/shirou/gopsutil/v3/disk"

	"clipdeck/internal/httputil"
	"clipdeck/internal/media"
)

// Registry reads a single output directory.
type Registry struct {
	dir string
}

// New returns a Registry for dir.
func New(dir string) *Registry {
	return &Registry{dir: dir}
}

// Dir returns the directory being listed.
func (r *Registry) Dir() string { return r.dir }

// List returns every entry in the directory, newest first. Subdirectories
// are included like files. A missing directory yields an empty list.
func (r *Registry) List(ctx context.Context) ([]media.DownloadedFile, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []media.DownloadedFile{}, nil
		}
		return nil, fmt.Errorf("reading downloads directory: %w", err)
	}

	files := make([]media.DownloadedFile, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		files = append(files, media.DownloadedFile{
			Filename: e.Name(),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if !files[i].Modified.Equal(files[j].Modified) {
			return files[i].Modified.After(files[j].Modified)
		}
		return files[i].Filename < files[j].Filename
	})
	return files, nil
}

// Usage describes the filesystem holding the output directory.
type Usage struct {
	Total       uint64  `json:"total"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"used_percent"`
}

// Usage reports disk usage for the output directory's filesystem.
func (r *Registry) Usage() (*Usage, error) {
	path := r.dir
	if _, err := os.Stat(path); err != nil {
		// Not created yet; report its parent's filesystem.
		path = "."
	}
	u, err := disk.Usage(path)
	if err != nil {
		return nil, fmt.Errorf("reading disk usage: %w", err)
	}
	return &Usage{Total: u.Total, Free: u.Free, UsedPercent: u.UsedPercent}, nil
}

// Open opens name inside the directory. It fails with an error wrapping
// os.ErrNotExist for unknown files and for names that try to leave it.
func (r *Registry) Open(name string) (*os.File, os.FileInfo, error) {
	path, err := httputil.SafeDownloadPath(r.dir, name)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", os.ErrNotExist, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, fmt.Errorf("%s: %w", name, os.ErrNotExist)
	}
	return f, info, nil
}
