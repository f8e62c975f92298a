// Package archive packages a local source directory into a gzip-compressed
// tarball for upload to the platform's local-deploy endpoint.
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/moby/patternmatcher"

	"github.com/stackpilot-hq/stackpilot-mcp/pkg/logger"
)

// defaultExcludes is what never belongs in an upload: dependency caches,
// VCS metadata, logs, secret files, build output, and editor/OS litter.
// Patterns are dockerignore-style and apply at any depth.
var defaultExcludes = []string{
	"**/node_modules",
	"**/vendor",
	"**/__pycache__",
	"**/.git",
	"**/.hg",
	"**/.svn",
	"**/*.log",
	"**/.env",
	"**/.env.*",
	"**/dist",
	"**/build",
	"**/target",
	"**/.next",
	"**/.DS_Store",
	"**/Thumbs.db",
	"**/.idea",
	"**/.vscode",
}

// Build archives the directory tree rooted at sourceDir into a temporary
// .tar.gz file at maximum compression and returns its path. The caller
// owns the file and must remove it after the upload, whether or not the
// upload succeeds.
func Build(sourceDir string) (string, error) {
	info, err := os.Stat(sourceDir)
	if err != nil {
		return "", fmt.Errorf("cannot access source directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", sourceDir)
	}

	matcher, err := patternmatcher.New(defaultExcludes)
	if err != nil {
		return "", fmt.Errorf("failed to compile exclusion patterns: %w", err)
	}

	tmp, err := os.CreateTemp("", "stackpilot-upload-*.tar.gz")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary archive: %w", err)
	}

	if err := writeArchive(tmp, sourceDir, matcher); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to finalize archive: %w", err)
	}

	logger.Debugf("archived %s to %s", sourceDir, tmp.Name())
	return tmp.Name(), nil
}

func writeArchive(out io.Writer, sourceDir string, matcher *patternmatcher.PatternMatcher) error {
	gzw, err := gzip.NewWriterLevel(out, gzip.BestCompression)
	if err != nil {
		return fmt.Errorf("failed to create gzip stream: %w", err)
	}
	tw := tar.NewWriter(gzw)

	walkErr := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == sourceDir {
			return nil
		}

		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		// Exclusion is decided during the walk so excluded directory
		// trees are never descended into.
		excluded, err := matcher.MatchesOrParentMatches(rel)
		if err != nil {
			return err
		}
		if excluded {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		return addEntry(tw, path, rel, d)
	})
	if walkErr != nil {
		return fmt.Errorf("failed to archive %s: %w", sourceDir, walkErr)
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to close tar stream: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("failed to close gzip stream: %w", err)
	}
	return nil
}

func addEntry(tw *tar.Writer, path, rel string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	var linkTarget string
	if info.Mode()&fs.ModeSymlink != 0 {
		if linkTarget, err = os.Readlink(path); err != nil {
			return err
		}
	} else if !info.Mode().IsRegular() && !info.IsDir() {
		// Sockets, devices and the like have no business in an upload.
		return nil
	}

	header, err := tar.FileInfoHeader(info, linkTarget)
	if err != nil {
		return err
	}
	header.Name = rel
	if info.IsDir() {
		header.Name += "/"
	}

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	if info.Mode().IsRegular() {
		file, err := os.Open(path) // #nosec G304 - path comes from the walk
		if err != nil {
			return err
		}
		defer file.Close()
		if _, err := io.Copy(tw, file); err != nil {
			return err
		}
	}
	return nil
}
