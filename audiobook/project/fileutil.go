package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/makeitchaccha/audiobook/audiobook"
)

// writeFileAtomic writes data to a temp file in the target directory and
// renames it over path, so readers see either the old or the new content.
func writeFileAtomic(path string, data []byte) error {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w: %w", path, audiobook.ErrProjectIO, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w: %w", path, audiobook.ErrProjectIO, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w: %w", path, audiobook.ErrProjectIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w: %w", path, audiobook.ErrProjectIO, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w: %w", path, audiobook.ErrProjectIO, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w: %w", path, audiobook.ErrProjectIO, err)
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// MoveFile renames src over dst. Both must live on the same filesystem, which
// holds for the project's .work directory.
func MoveFile(src, dst string) error {
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("failed to move %s to %s: %w: %w", src, dst, audiobook.ErrProjectIO, err)
	}
	return nil
}

type rename struct {
	from string
	to   string
}

// applyRenames moves every source to its target through an intermediate
// "<target>.tmp" name, so a target may also be another rename's source.
// removals are deleted between the two phases. Stale targets are replaced.
func applyRenames(dir string, renames []rename, removals []string) error {
	for _, r := range renames {
		from := filepath.Join(dir, r.from)
		tmp := filepath.Join(dir, r.to+".tmp")
		if err := os.Rename(from, tmp); err != nil {
			return fmt.Errorf("failed to stage rename %s -> %s: %w: %w", r.from, r.to, audiobook.ErrProjectIO, err)
		}
	}

	for _, name := range removals {
		if err := removeIfExists(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("failed to remove %s: %w: %w", name, audiobook.ErrProjectIO, err)
		}
	}

	for _, r := range renames {
		target := filepath.Join(dir, r.to)
		if err := removeIfExists(target); err != nil {
			return fmt.Errorf("failed to remove stale %s: %w: %w", r.to, audiobook.ErrProjectIO, err)
		}
		if err := os.Rename(target+".tmp", target); err != nil {
			return fmt.Errorf("failed to finish rename %s -> %s: %w: %w", r.from, r.to, audiobook.ErrProjectIO, err)
		}
	}
	return nil
}
