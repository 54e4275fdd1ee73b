// Package fileurl provides small filesystem path helpers.
package fileurl

import (
	"os"
	"path/filepath"
)

// IsExist determines if the given path exists
func IsExist(dst string) bool {
	_, err := os.Stat(dst)
	if err != nil {
		return os.IsExist(err)
	}
	return true
}

// CreatePath creates the parent directory of the given path
func CreatePath(dst string, perm os.FileMode) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, perm); err != nil {
		return err
	}
	return nil
}
