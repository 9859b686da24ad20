// Package fs finds and reads plain-text documents on disk.
package fs

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"

	"docqa/internal/domain"
	"docqa/internal/port"
)

type Walker struct {
	includes []string
	excludes []string
}

func NewWalker(includes, excludes []string) *Walker {
	if len(includes) == 0 {
		includes = []string{"**/*"}
	}
	return &Walker{
		includes: includes,
		excludes: excludes,
	}
}

var _ port.FileWalker = (*Walker)(nil)

// Walk returns matching files under root. A root that is a single file is returned as is and
// keyed by its base name; files under a directory are keyed by their slash path relative to it.
func (w *Walker) Walk(root string) ([]port.FileInfo, error) {
	var files []port.FileInfo

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == root && !info.IsDir() {
			files = append(files, port.FileInfo{
				Path:    path,
				DocID:   info.Name(),
				ModTime: info.ModTime().Unix(),
				Size:    info.Size(),
			})
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if info.IsDir() {
			if relPath != "." && w.shouldExclude(relPath+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if w.shouldInclude(relPath) && !w.shouldExclude(relPath) {
			files = append(files, port.FileInfo{
				Path:    path,
				DocID:   relPath,
				ModTime: info.ModTime().Unix(),
				Size:    info.Size(),
			})
		}
		return nil
	})

	return files, err
}

func (w *Walker) shouldInclude(path string) bool {
	for _, pattern := range w.includes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func (w *Walker) shouldExclude(path string) bool {
	for _, pattern := range w.excludes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

// TextReader reads UTF-8 text files. Unreadable, binary or blank files fail with an extraction error.
type TextReader struct{}

func (TextReader) ReadFile(path string) (string, error) {
	const op = "extract"
	data, err := os.ReadFile(path)
	if err != nil {
		return "", domain.ExtractionError(op, "cannot read "+path, err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
		return "", domain.ExtractionError(op, path+" is not UTF-8 text", nil)
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return "", domain.ExtractionError(op, path+" contains no text", nil)
	}
	return text, nil
}
