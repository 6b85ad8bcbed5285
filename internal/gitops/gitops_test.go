package gitops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for p, content := range files {
		full := filepath.Join(dir, p)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}
}

func TestSnapshotCommitsChangedPaths(t *testing.T) {
	dir := t.TempDir()
	repo, err := Open(dir, "", "")
	require.NoError(t, err)
	assert.Equal(t, defaultAuthorName, repo.AuthorName)

	writeFiles(t, dir, map[string]string{
		"architecture.md": "# Architecture",
		"src/app.py":      "print('hi')",
		"scratch.txt":     "not materialized",
	})

	hash, err := repo.Snapshot("crewgen: architect stage", []string{"architecture.md", "./src/app.py"})
	require.NoError(t, err)
	assert.Len(t, hash, 40)

	// Nothing changed: no new commit.
	hash, err = repo.Snapshot("crewgen: developer stage", []string{"architecture.md"})
	require.NoError(t, err)
	assert.Empty(t, hash)

	writeFiles(t, dir, map[string]string{"src/app.py": "print('bye')"})
	hash, err = repo.Snapshot("crewgen: tester stage", []string{"src/app.py"})
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	messages, err := repo.Log()
	require.NoError(t, err)
	assert.Equal(t, []string{"crewgen: tester stage", "crewgen: architect stage"}, messages)
}

func TestOpenReusesExistingRepo(t *testing.T) {
	dir := t.TempDir()
	first, err := Open(dir, "Bot", "bot@example.com")
	require.NoError(t, err)
	writeFiles(t, dir, map[string]string{"a.txt": "a"})
	_, err = first.Snapshot("first", []string{"a.txt"})
	require.NoError(t, err)

	second, err := Open(dir, "Bot", "bot@example.com")
	require.NoError(t, err)
	messages, err := second.Log()
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, messages)
}
