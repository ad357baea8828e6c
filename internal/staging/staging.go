package staging

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/otiai10/copy"
)

// DirMode is the permission used for directories created while staging.
const DirMode os.FileMode = 0o755

// Reset removes path with everything below it and recreates it empty,
// including missing parents. Leftovers of an interrupted run never survive.
func Reset(path string) error {
	if err := removeTree(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}

	if err := os.MkdirAll(path, DirMode); err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	return nil
}

// CopyTree copies the directory src to dest recursively.
// Permission bits and modification times are preserved, symlinks are copied
// as links and directories already present at dest are merged. Files and links
// already present at dest are replaced, so the copy can be repeated.
func CopyTree(src, dest string) error {
	opts := copy.Options{
		Skip: replaceExisting,
		OnSymlink: func(string) copy.SymlinkAction {
			return copy.Shallow
		},
		OnDirExists: func(_, _ string) copy.DirExistsAction {
			return copy.Merge
		},
		PermissionControl: copy.PerservePermission,
		PreserveTimes:     true,
	}

	if err := copy.Copy(src, dest, opts); err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dest, err)
	}

	return nil
}

// Link creates a symbolic link at dir/name pointing to target.
func Link(dir, name, target string) error {
	linkPath := filepath.Join(dir, name)
	if err := os.Symlink(target, linkPath); err != nil {
		return fmt.Errorf("link %s to %s: %w", linkPath, target, err)
	}

	return nil
}

// RemoveFile deletes path if it exists. A missing file is not an error.
func RemoveFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", path, err)
	}

	return nil
}

// Remove deletes the staging directory. A missing directory is not an error.
func Remove(path string) error {
	if err := removeTree(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}

	return nil
}

// replaceExisting clears a non-directory entry at dest before it is copied over.
// Read-only files and symlinks cannot be overwritten in place.
func replaceExisting(srcinfo os.FileInfo, _, dest string) (bool, error) {
	if srcinfo.IsDir() {
		return false, nil
	}

	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return false, err
	}

	return false, nil
}

// removeTree deletes path recursively. Bundles copied with their permission
// bits may contain read-only directories, whose entries cannot be unlinked
// until the owner write bit is restored.
func removeTree(path string) error {
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		if info.Mode().Perm()&0o700 != 0o700 {
			_ = os.Chmod(p, info.Mode().Perm()|0o700)
		}

		return nil
	})

	return os.RemoveAll(path)
}
