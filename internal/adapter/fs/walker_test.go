package fs

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
	"docqa/internal/port"
)

var (
	_ port.FileWalker = (*Walker)(nil)
	_ port.FileReader = TextReader{}
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestWalker_Walk(t *testing.T) {
	t.Run("Should apply include and exclude globs", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "a.txt"), "a")
		writeFile(t, filepath.Join(root, "notes", "b.md"), "b")
		writeFile(t, filepath.Join(root, "notes", "c.go"), "c")
		writeFile(t, filepath.Join(root, ".git", "d.txt"), "d")

		w := NewWalker([]string{"**/*.txt", "**/*.md"}, []string{"**/.git/**"})
		files, err := w.Walk(root)
		require.NoError(t, err)

		var rel, ids []string
		for _, f := range files {
			r, err := filepath.Rel(root, f.Path)
			require.NoError(t, err)
			rel = append(rel, filepath.ToSlash(r))
			ids = append(ids, f.DocID)
		}
		sort.Strings(rel)
		sort.Strings(ids)
		assert.Equal(t, []string{"a.txt", "notes/b.md"}, rel)
		assert.Equal(t, rel, ids)
	})

	t.Run("Should return a single file root", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "one.txt")
		writeFile(t, path, "hello")

		files, err := NewWalker(nil, nil).Walk(path)
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, int64(5), files[0].Size)
		assert.Equal(t, "one.txt", files[0].DocID)
	})
}

func TestTextReader_ReadFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("Should read UTF-8 text and drop a byte order mark", func(t *testing.T) {
		path := filepath.Join(dir, "ok.txt")
		writeFile(t, path, "\xef\xbb\xbfThe cat sat.")
		text, err := TextReader{}.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "The cat sat.", text)
	})

	t.Run("Should fail with extraction errors for unusable files", func(t *testing.T) {
		binary := filepath.Join(dir, "bin.dat")
		writeFile(t, binary, "\x00\x01\xff")
		blank := filepath.Join(dir, "blank.txt")
		writeFile(t, blank, "  \n\t")

		for _, path := range []string{binary, blank, filepath.Join(dir, "missing.txt")} {
			_, err := TextReader{}.ReadFile(path)
			require.Error(t, err, path)
			assert.True(t, domain.IsKind(err, domain.KindExtraction), path)
		}
	})
}
