package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"jpegfit/pkg/imgutil"
)

// SessionLayout names one run's output subfolder.
const SessionLayout = "2006-01-02_15-04-05"

// EnsureInput creates dir when it does not exist yet. created is true only
// when this call made the folder.
func EnsureInput(dir string) (bool, error) {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return false, fmt.Errorf("input path %s is not a directory", dir)
		}
		return false, nil
	}
	if !os.IsNotExist(err) {
		return false, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, err
	}
	return true, nil
}

// List returns the regular files directly inside dir whose extension is on
// the allow-list, including symlinks to regular files. Order follows
// directory enumeration.
func List(dir string) ([]string, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := f.ReadDir(-1)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !imgutil.IsSupportedExt(filepath.Ext(entry.Name())) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if !isRegular(path, entry) {
			continue
		}
		files = append(files, path)
	}
	return files, nil
}

func isRegular(path string, entry fs.DirEntry) bool {
	if entry.Type()&fs.ModeSymlink == 0 {
		return entry.Type().IsRegular()
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// CountEntries counts every regular file below dir, recursively.
func CountEntries(dir string) (int, error) {
	count := 0
	err := fs.WalkDir(os.DirFS(dir), ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.Type().IsRegular() {
			count++
		}
		return nil
	})
	return count, err
}

func SessionName(t time.Time) string {
	return t.Format(SessionLayout)
}

// CreateSession makes <outputRoot>/<timestamp> and returns its path.
func CreateSession(outputRoot string, t time.Time) (string, error) {
	dir := filepath.Join(outputRoot, SessionName(t))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create session folder: %w", err)
	}
	return dir, nil
}
