package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// Dir is a directory-backed queue: one {clientId}.json file per job.
// Files are written under a dot-prefixed name and renamed into place, so
// a reader never sees a partial job.
type Dir struct {
	fs        afero.Fs
	dir       string
	failedDir string

	mu       sync.Mutex
	inflight map[string]bool
}

// NewDir creates the queue (and failed) directories when missing.
// An empty failedDir leaves failed jobs where they are.
func NewDir(fs afero.Fs, dir, failedDir string) (*Dir, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create queue dir: %w", err)
	}
	if failedDir != "" {
		if err := fs.MkdirAll(failedDir, 0o755); err != nil {
			return nil, fmt.Errorf("create failed queue dir: %w", err)
		}
	}
	return &Dir{fs: fs, dir: dir, failedDir: failedDir, inflight: make(map[string]bool)}, nil
}

// Path returns the directory holding pending jobs.
func (d *Dir) Path() string { return d.dir }

// Enqueue writes job as {clientId}.json, replacing any pending job for
// the same client.
func (d *Dir) Enqueue(_ context.Context, job Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	final := filepath.Join(d.dir, job.Name())
	tmp := filepath.Join(d.dir, "."+job.Name()+".tmp")
	if err := afero.WriteFile(d.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write job: %w", err)
	}
	if err := d.fs.Rename(tmp, final); err != nil {
		_ = d.fs.Remove(tmp)
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// IsJobFile reports whether name is a published job file.
func IsJobFile(name string) bool {
	base := filepath.Base(name)
	return !strings.HasPrefix(base, ".") && strings.HasSuffix(base, ".json")
}

// Pending lists published job files, oldest first.
func (d *Dir) Pending() ([]string, error) {
	infos, err := afero.ReadDir(d.fs, d.dir)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	var files []os.FileInfo
	for _, fi := range infos {
		if fi.Mode().IsRegular() && IsJobFile(fi.Name()) {
			files = append(files, fi)
		}
	}
	sort.SliceStable(files, func(i, j int) bool { return files[i].ModTime().Before(files[j].ModTime()) })
	paths := make([]string, len(files))
	for i, fi := range files {
		paths[i] = filepath.Join(d.dir, fi.Name())
	}
	return paths, nil
}

// Claim reads the job file at path. It returns (nil, nil) when the file
// is gone or already claimed.
func (d *Dir) Claim(path string) (*Delivery, error) {
	d.mu.Lock()
	if d.inflight[path] {
		d.mu.Unlock()
		return nil, nil
	}
	d.inflight[path] = true
	d.mu.Unlock()

	body, err := afero.ReadFile(d.fs, path)
	if err != nil {
		d.release(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read job %s: %w", path, err)
	}
	return &Delivery{ID: path, Body: body}, nil
}

// Ack deletes the job file.
func (d *Dir) Ack(_ context.Context, del *Delivery) error {
	defer d.release(del.ID)
	if err := d.fs.Remove(del.ID); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}

// Fail moves the job file to the failed directory, next to a .err file
// holding the cause. Without a failed directory the file stays in place.
func (d *Dir) Fail(_ context.Context, del *Delivery, cause error) error {
	defer d.release(del.ID)
	if d.failedDir == "" {
		return nil
	}
	dst := filepath.Join(d.failedDir, filepath.Base(del.ID))
	if err := d.fs.Rename(del.ID, dst); err != nil {
		return fmt.Errorf("move failed job: %w", err)
	}
	if cause != nil {
		_ = afero.WriteFile(d.fs, dst+".err", []byte(cause.Error()+"\n"), 0o644)
	}
	return nil
}

func (d *Dir) release(path string) {
	d.mu.Lock()
	delete(d.inflight, path)
	d.mu.Unlock()
}
