// Package libpath makes just-built native libraries discoverable to later
// pipeline steps by augmenting the dynamic-library search path in a job's
// environment map. The mutation is scoped to the map it is given, never the
// process environment, so concurrent jobs cannot contaminate each other.
package libpath

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"git.home.luguber.info/inful/matrixci/internal/config"
	"git.home.luguber.info/inful/matrixci/internal/logfields"
)

// Augment prepends discovered library output directories to the configured
// search-path variable in env. Patterns are globbed relative to rootDir, the
// job's private build-output directory (the project directory when a job has
// no workspace). Only jobs on the configured OS are affected. Zero matches is
// a silent no-op: the step itself never fails, though a later step may then
// fail on dynamic-library resolution.
func Augment(env map[string]string, jobOS, rootDir string, cfg config.LibpathConfig) []string {
	if jobOS != cfg.OS || len(cfg.Patterns) == 0 {
		return nil
	}

	dirs := Discover(rootDir, cfg.Patterns)
	if len(dirs) == 0 {
		slog.Debug("No native library directories found, search path unchanged",
			logfields.Path(rootDir))
		return nil
	}

	base := env[cfg.Variable]
	if base == "" {
		base = os.Getenv(cfg.Variable)
	}

	parts := append([]string{}, dirs...)
	if base != "" {
		parts = append(parts, base)
	}
	env[cfg.Variable] = strings.Join(parts, string(os.PathListSeparator))

	slog.Debug("Augmented dynamic-library search path",
		slog.String("variable", cfg.Variable),
		slog.Int("directories", len(dirs)))
	return dirs
}

// Discover globs the given patterns relative to rootDir and returns the
// matching directories, sorted for stable ordering. Non-directory matches and
// malformed patterns are skipped.
func Discover(rootDir string, patterns []string) []string {
	var dirs []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(rootDir, pattern))
		if err != nil {
			slog.Warn("Skipping malformed library path pattern",
				slog.String("pattern", pattern), logfields.Error(err))
			continue
		}
		for _, m := range matches {
			if info, err := os.Stat(m); err == nil && info.IsDir() {
				dirs = append(dirs, m)
			}
		}
	}
	sort.Strings(dirs)
	return dirs
}
