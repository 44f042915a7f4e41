package source

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/filerank/internal/indexer/index"
	"github.com/bmatcuk/doublestar/v4"
)

// DirectoryOptions filter the files LoadDirectory keeps.
type DirectoryOptions struct {
	Include []string
	Exclude []string
	// MaxFileBytes skips larger files. Zero disables the cap.
	MaxFileBytes int64
}

// DefaultDirectoryOptions keeps Python sources up to 1 MiB.
func DefaultDirectoryOptions() DirectoryOptions {
	return DirectoryOptions{
		Include:      []string{"**/*.py"},
		MaxFileBytes: 1 << 20,
	}
}

// LoadDirectory walks root and returns every file matching an include glob
// and no exclude glob. Document ids are slash separated paths relative to
// root, in lexical order. Files over the size cap and files that are not
// valid UTF-8 are skipped.
func LoadDirectory(root string, opts DirectoryOptions) ([]index.Document, error) {
	for _, p := range append(append([]string{}, opts.Include...), opts.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob pattern %q", p)
		}
	}
	logger := slog.Default().With("component", "directory-loader", "root", root)
	root = filepath.Clean(root)

	var docs []index.Document
	skipped := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", path, err)
		}
		rel = filepath.ToSlash(rel)
		if !matchAny(opts.Include, rel) || matchAny(opts.Exclude, rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", rel, err)
		}
		if opts.MaxFileBytes > 0 && info.Size() > opts.MaxFileBytes {
			skipped++
			logger.Debug("skipping large file", "path", rel, "size", info.Size())
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", rel, err)
		}
		if !utf8.Valid(data) {
			skipped++
			logger.Debug("skipping non-utf8 file", "path", rel)
			return nil
		}
		docs = append(docs, index.Document{ID: rel, Content: string(data)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	if docs == nil {
		docs = []index.Document{}
	}
	logger.Info("directory loaded", "documents", len(docs), "skipped", skipped)
	return docs, nil
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}
