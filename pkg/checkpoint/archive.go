package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// backupLayout names timestamped backup directories.
const backupLayout = "20060102_150405"

const archiveDirPerm = 0o750

// ArchiveResult reports what Archive did.
type ArchiveResult struct {
	// Dir is the timestamped backup directory.
	Dir string
	// Moved lists the paths that were backed up and removed.
	Moved []string
	// Missing lists the paths that did not exist.
	Missing []string
}

// Archive copies every existing file in paths into a new
// backupDir/backup_YYYYMMDD_HHMMSS directory and then removes the original.
// Absent files are reported in Missing and are not an error.
func Archive(backupDir string, now time.Time, paths ...string) (ArchiveResult, error) {
	res := ArchiveResult{
		Dir: filepath.Join(backupDir, "backup_"+now.Format(backupLayout)),
	}

	err := os.MkdirAll(res.Dir, archiveDirPerm)
	if err != nil {
		return res, fmt.Errorf("create backup dir: %w", err)
	}

	for _, path := range paths {
		dst := filepath.Join(res.Dir, filepath.Base(path))

		copyErr := copyFile(path, dst)
		if errors.Is(copyErr, fs.ErrNotExist) {
			res.Missing = append(res.Missing, path)

			continue
		}

		if copyErr != nil {
			return res, fmt.Errorf("back up %s: %w", path, copyErr)
		}

		removeErr := os.Remove(path)
		if removeErr != nil {
			return res, fmt.Errorf("remove %s: %w", path, removeErr)
		}

		res.Moved = append(res.Moved, path)
	}

	return res, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	_, copyErr := io.Copy(out, in)
	if copyErr == nil {
		copyErr = out.Sync()
	}

	closeErr := out.Close()

	if copyErr != nil {
		return copyErr
	}

	return closeErr
}
