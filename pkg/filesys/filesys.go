// Package filesys provides the small set of filesystem utilities GrausDb
// needs around its store directory: creating it, checking it exists, and
// deleting it wholesale.
package filesys

import (
	"errors"
	"os"
)

// ErrIsNotDir is returned when a path expected to be a directory turns
// out to be a regular file.
var ErrIsNotDir = errors.New("path isn't a directory")

// CreateDir creates a directory at dirPath with the given permissions.
//
// If the directory already exists:
//   - If force is true, it proceeds without error.
//   - If force is false, it returns an error satisfying os.IsExist (or
//     any other error os.Stat reported for the path).
//
// It also returns an error if the existing path is a file, not a
// directory.
func CreateDir(dirPath string, permission os.FileMode, force bool) error {
	stat, err := os.Stat(dirPath)
	if !force {
		if err == nil {
			return &os.PathError{Op: "mkdir", Path: dirPath, Err: os.ErrExist}
		}
		if !os.IsNotExist(err) {
			return err
		}
	}

	if stat != nil && !stat.IsDir() {
		return ErrIsNotDir
	}

	if err := os.MkdirAll(dirPath, permission); err != nil {
		return err
	}

	return os.Chmod(dirPath, permission)
}

// DeleteDir deletes a directory and all its contents recursively. Nothing
// in this module calls it; cmd/grausctl has no subcommand that deletes a
// store directory.
func DeleteDir(path string) error {
	return os.RemoveAll(path)
}

// Exists reports whether a file or directory exists at path.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}
