package workspace

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string, mode os.FileMode) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
}

func sampleSource(t *testing.T) string {
	t.Helper()
	src := t.TempDir()
	writeFile(t, src, "main.go", "package main\n", 0o644)
	writeFile(t, src, "src/lib.go", "package lib\n", 0o644)
	writeFile(t, src, "docs/readme.md", "# docs\n", 0o644)
	writeFile(t, src, "scripts/build.sh", "#!/bin/sh\n", 0o755)
	writeFile(t, src, ".git/HEAD", "ref: refs/heads/main\n", 0o644)
	writeFile(t, src, ".git/objects/ab/cdef", "blob", 0o644)
	return src
}

func TestStageCopiesTree(t *testing.T) {
	staged, err := Stage(sampleSource(t), Options{})
	require.NoError(t, err)
	defer func() { _ = staged.Release() }()

	files, err := Listing(staged.Root())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"docs/readme.md", "main.go", "scripts/build.sh", "src/lib.go",
	}, files)
}

func TestStageAlwaysExcludesGit(t *testing.T) {
	staged, err := Stage(sampleSource(t), Options{Include: []string{"**"}})
	require.NoError(t, err)
	defer func() { _ = staged.Release() }()

	_, err = os.Stat(filepath.Join(staged.Root(), ".git"))
	assert.True(t, os.IsNotExist(err), "source .git must never be copied")
}

func TestStageHonorsGlobs(t *testing.T) {
	staged, err := Stage(sampleSource(t), Options{
		Include: []string{"**/*.go"},
		Exclude: []string{"src/**"},
	})
	require.NoError(t, err)
	defer func() { _ = staged.Release() }()

	files, err := Listing(staged.Root())
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go"}, files)
}

func TestStagePreservesContentAndExecuteBit(t *testing.T) {
	staged, err := Stage(sampleSource(t), Options{})
	require.NoError(t, err)
	defer func() { _ = staged.Release() }()

	content, err := os.ReadFile(filepath.Join(staged.Root(), "main.go"))
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(content))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(filepath.Join(staged.Root(), "scripts", "build.sh"))
		require.NoError(t, err)
		assert.NotZero(t, info.Mode()&0o111, "execute bit is preserved")

		info, err = os.Stat(filepath.Join(staged.Root(), "main.go"))
		require.NoError(t, err)
		assert.Zero(t, info.Mode()&0o111)
	}
}

func TestStageSkipsSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	src := sampleSource(t)
	require.NoError(t, os.Symlink(
		filepath.Join(src, "main.go"), filepath.Join(src, "link.go")))

	staged, err := Stage(src, Options{})
	require.NoError(t, err)
	defer func() { _ = staged.Release() }()

	files, err := Listing(staged.Root())
	require.NoError(t, err)
	assert.NotContains(t, files, "link.go")
}

func TestStageTwiceIsIndependent(t *testing.T) {
	src := sampleSource(t)
	first, err := Stage(src, Options{})
	require.NoError(t, err)
	second, err := Stage(src, Options{})
	require.NoError(t, err)
	defer func() { _ = second.Release() }()

	assert.NotEqual(t, first.Root(), second.Root())

	listFirst, err := Listing(first.Root())
	require.NoError(t, err)
	listSecond, err := Listing(second.Root())
	require.NoError(t, err)
	assert.Equal(t, listFirst, listSecond)

	// Mutating one workspace leaves the other untouched.
	require.NoError(t, os.Remove(filepath.Join(first.Root(), "main.go")))
	_, err = os.Stat(filepath.Join(second.Root(), "main.go"))
	assert.NoError(t, err)

	require.NoError(t, first.Release())
}

func TestReleaseRemovesDirectory(t *testing.T) {
	staged, err := Stage(sampleSource(t), Options{})
	require.NoError(t, err)

	root := staged.Root()
	require.NoError(t, staged.Release())
	_, err = os.Stat(root)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, staged.Release(), "double release is a no-op")
}

func TestStageInitVCSBaseline(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	staged, err := Stage(sampleSource(t), Options{InitVCS: true})
	require.NoError(t, err)
	defer func() { _ = staged.Release() }()

	info, err := os.Stat(filepath.Join(staged.Root(), ".git"))
	require.NoError(t, err)
	assert.True(t, info.IsDir(), "the workspace owns a fresh repository")

	// The baseline repository never leaks into listings.
	files, err := Listing(staged.Root())
	require.NoError(t, err)
	assert.Contains(t, files, "main.go")
	for _, f := range files {
		assert.NotContains(t, f, ".git/")
	}
}

func TestStageMissingSourceFails(t *testing.T) {
	_, err := Stage(filepath.Join(t.TempDir(), "nope"), Options{})
	assert.Error(t, err)
}

func TestStageInvalidGlobFails(t *testing.T) {
	_, err := Stage(sampleSource(t), Options{Include: []string{"["}})
	assert.Error(t, err)
}
