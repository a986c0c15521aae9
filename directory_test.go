package fatfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirectoryCreateFindDelete(t *testing.T) {
	fs := mountFreshFAT16(t, 16*1024*1024)
	root, err := fs.RootDir()
	require.NoError(t, err)

	entry, err := root.Create("hello.txt", 0)
	require.NoError(t, err)
	require.Equal(t, "hello.txt", entry.Name)

	found, err := root.FindPath("HELLO.TXT")
	require.NoError(t, err)
	require.Equal(t, entry.FirstCluster, found.FirstCluster)

	require.NoError(t, root.Delete(found))
	_, err = root.FindPath("hello.txt")
	require.Error(t, err)
}

func TestDirectoryLongNameAndSubdir(t *testing.T) {
	fs := mountFreshFAT16(t, 16*1024*1024)
	root, err := fs.RootDir()
	require.NoError(t, err)

	sub, err := root.Create("a rather long subdirectory name", attrDir)
	require.NoError(t, err)
	require.True(t, sub.IsDir)

	dir, err := root.OpenSubdir(sub)
	require.NoError(t, err)

	empty, err := dir.FindPath(".")
	require.NoError(t, err)
	require.True(t, empty.IsDir)

	parent, err := dir.FindPath("..")
	require.NoError(t, err)
	require.True(t, parent.IsDir)
}

func TestDirectoryRenameAcrossParents(t *testing.T) {
	fs := mountFreshFAT16(t, 16*1024*1024)
	root, err := fs.RootDir()
	require.NoError(t, err)

	subEntry, err := root.Create("sub", attrDir)
	require.NoError(t, err)
	sub, err := root.OpenSubdir(subEntry)
	require.NoError(t, err)

	file, err := root.Create("movable.txt", 0)
	require.NoError(t, err)

	require.NoError(t, root.Rename(file, sub, "movable.txt"))

	_, err = root.FindPath("movable.txt")
	require.Error(t, err)

	moved, err := sub.FindPath("movable.txt")
	require.NoError(t, err)
	require.Equal(t, file.FirstCluster, moved.FirstCluster)
}

func TestDirectoryLongNameSpanningMultipleFragments(t *testing.T) {
	fs := mountFreshFAT16(t, 16*1024*1024)
	root, err := fs.RootDir()
	require.NoError(t, err)

	// 44 characters needs 4 LFN fragments (13 UTF-16 units each), enough to
	// catch a fragment-ordering mistake that a single-fragment name would
	// not expose.
	name := "this name is definitely over forty chars.txt"
	_, err = root.Create(name, 0)
	require.NoError(t, err)

	found, err := root.FindPath(name)
	require.NoError(t, err)
	require.Equal(t, name, found.Name)
}

func TestDirectoryDeleteNonEmptyFails(t *testing.T) {
	fs := mountFreshFAT16(t, 16*1024*1024)
	root, err := fs.RootDir()
	require.NoError(t, err)

	subEntry, err := root.Create("sub", attrDir)
	require.NoError(t, err)
	sub, err := root.OpenSubdir(subEntry)
	require.NoError(t, err)
	_, err = sub.Create("inner.txt", 0)
	require.NoError(t, err)

	err = root.Delete(subEntry)
	require.Error(t, err)
}
