package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// sqliteCompanions are the suffixes of the files SQLite keeps next to a WAL-mode database.
var sqliteCompanions = []string{"-wal", "-shm"}

// SQLiteFiles returns dbPath followed by its -wal and -shm files.
func SQLiteFiles(dbPath string) []string {
	files := []string{dbPath}
	for _, suffix := range sqliteCompanions {
		files = append(files, dbPath+suffix)
	}
	return files
}

// DatabaseSizeBytes returns the on-disk size of the SQLite database at dbPath,
// write-ahead log and shared-memory index included.
func DatabaseSizeBytes(dbPath string) (int64, error) {
	if dbPath == "" {
		return 0, nil
	}
	return DiskUsageBytes(SQLiteFiles(dbPath)...)
}

// DiskUsageBytes sums the sizes of the given files and directory trees.
// Empty and missing paths count as zero.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, root := range paths {
		if root == "" {
			continue
		}
		err := filepath.WalkDir(root, func(_ string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if entry.IsDir() {
				return nil
			}
			info, err := entry.Info()
			if err != nil {
				return err
			}
			total += info.Size()
			return nil
		})
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
