// Package filex holds small filesystem helpers.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SQLitePath extracts the database file path from a sqlite DSN such as
// "file:cache.db?_pragma=busy_timeout(5000)". In-memory DSNs yield "".
func SQLitePath(dsn string) string {
	path, query, _ := strings.Cut(dsn, "?")
	path = strings.TrimPrefix(path, "file:")
	if path == "" || path == ":memory:" || strings.Contains(query, "mode=memory") {
		return ""
	}
	return path
}

// EnsureDirFor creates the parent directory of path, resolved against the
// working directory when relative, and returns the absolute directory.
// An empty path is a no-op.
func EnsureDirFor(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	dir := filepath.Dir(path)
	if !filepath.IsAbs(dir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getwd: %w", err)
		}
		dir = filepath.Join(cwd, dir)
	}

	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}
