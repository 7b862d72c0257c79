// Package filestore owns the on-disk playlist files: uploaded source
// playlists, generated client playlists, merged temp files and the
// import folder.
package filestore

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// ErrBadName is returned for a file name that would escape its directory.
var ErrBadName = errors.New("invalid file name")

// Dirs lists the directories Files manages.
type Dirs struct {
	Source string // uploaded source playlists
	Output string // generated {username}.m3u files
	Temp   string // merged selections awaiting the refresher
	Import string // operator-provided .m3u files for sync-master
}

// Files reads and writes playlist files on an afero filesystem.
type Files struct {
	fs   afero.Fs
	dirs Dirs
}

// New creates every configured directory that does not exist yet.
func New(fs afero.Fs, dirs Dirs) (*Files, error) {
	for _, d := range []string{dirs.Source, dirs.Output, dirs.Temp, dirs.Import} {
		if d == "" {
			continue
		}
		if err := fs.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", d, err)
		}
	}
	return &Files{fs: fs, dirs: dirs}, nil
}

// FS exposes the underlying filesystem.
func (f *Files) FS() afero.Fs { return f.fs }

// writeAtomic writes data next to path under a dot name and renames it
// into place.
func (f *Files) writeAtomic(path string, data []byte) error {
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+uuid.NewString()[:8])
	if err := afero.WriteFile(f.fs, tmp, data, 0o644); err != nil {
		return err
	}
	if err := f.fs.Rename(tmp, path); err != nil {
		_ = f.fs.Remove(tmp)
		return err
	}
	return nil
}

// --- source playlists ---

// CreateSource stores content under a fresh name in the source directory
// and returns its absolute path.
func (f *Files) CreateSource(content string) (string, error) {
	path, err := filepath.Abs(filepath.Join(f.dirs.Source, uuid.NewString()+".m3u"))
	if err != nil {
		return "", err
	}
	if err := f.writeAtomic(path, []byte(content)); err != nil {
		return "", fmt.Errorf("write source playlist: %w", err)
	}
	return path, nil
}

// ReplaceSource overwrites an existing source file.
func (f *Files) ReplaceSource(path, content string) error {
	if err := f.writeAtomic(path, []byte(content)); err != nil {
		return fmt.Errorf("replace source playlist: %w", err)
	}
	return nil
}

// Read returns the content of any managed file.
func (f *Files) Read(path string) (string, error) {
	data, err := afero.ReadFile(f.fs, path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Remove deletes a file; a missing file is not an error.
func (f *Files) Remove(path string) error {
	if err := f.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Fingerprint identifies the current content of path by modification
// time and size.
func (f *Files) Fingerprint(path string) (string, error) {
	fi, err := f.fs.Stat(path)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(fi.ModTime().UnixNano(), 36) + "-" + strconv.FormatInt(fi.Size(), 36), nil
}

// --- client playlists ---

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q", ErrBadName, name)
	}
	return nil
}

// ValidName reports whether name can be used as a file name inside a
// managed directory.
func ValidName(name string) bool {
	return checkName(name) == nil
}

// ClientFileName is the generated playlist file name of a client.
func ClientFileName(username string) string {
	return username + ".m3u"
}

// WriteClientPlaylist atomically writes a client's generated playlist.
func (f *Files) WriteClientPlaylist(username, content string) (string, error) {
	if err := checkName(username); err != nil {
		return "", err
	}
	path := filepath.Join(f.dirs.Output, ClientFileName(username))
	if err := f.writeAtomic(path, []byte(content)); err != nil {
		return "", fmt.Errorf("write client playlist: %w", err)
	}
	return path, nil
}

// ReadClientPlaylist returns a client's generated playlist. A playlist
// that was never generated yields an error matching os.ErrNotExist.
func (f *Files) ReadClientPlaylist(username string) (string, error) {
	if err := checkName(username); err != nil {
		return "", err
	}
	return f.Read(filepath.Join(f.dirs.Output, ClientFileName(username)))
}

// RemoveClientPlaylist deletes a client's generated playlist if present.
func (f *Files) RemoveClientPlaylist(username string) error {
	if err := checkName(username); err != nil {
		return err
	}
	return f.Remove(filepath.Join(f.dirs.Output, ClientFileName(username)))
}

// --- temp and import files ---

// CreateTemp writes content to a new file in the temp directory and
// returns its absolute path.
func (f *Files) CreateTemp(content string) (string, error) {
	path, err := filepath.Abs(filepath.Join(f.dirs.Temp, "merged-"+uuid.NewString()+".m3u"))
	if err != nil {
		return "", err
	}
	if err := f.writeAtomic(path, []byte(content)); err != nil {
		return "", fmt.Errorf("write temp playlist: %w", err)
	}
	return path, nil
}

// ListImport returns the .m3u file names in the import folder, sorted.
func (f *Files) ListImport() ([]string, error) {
	infos, err := afero.ReadDir(f.fs, f.dirs.Import)
	if err != nil {
		return nil, fmt.Errorf("list import folder: %w", err)
	}
	names := []string{}
	for _, fi := range infos {
		if fi.Mode().IsRegular() && strings.EqualFold(filepath.Ext(fi.Name()), ".m3u") {
			names = append(names, fi.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// ReadImport returns the content of one file from the import folder.
func (f *Files) ReadImport(name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	return f.Read(filepath.Join(f.dirs.Import, name))
}

// WriteText atomically replaces a standalone text file, creating its
// directory when needed.
func (f *Files) WriteText(path, content string) error {
	if err := f.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return f.writeAtomic(path, []byte(content))
}

// FileURL returns the file:// URL of an absolute path.
func FileURL(path string) string {
	return (&url.URL{Scheme: "file", Path: path}).String()
}

// PathFromURL is the inverse of FileURL.
func PathFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", raw, err)
	}
	if u.Scheme != "file" || u.Path == "" {
		return "", fmt.Errorf("%q is not a file URL", raw)
	}
	return u.Path, nil
}
